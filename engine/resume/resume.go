// Package resume holds best-effort text analysis of resumes: splitting
// text into labelled sections and deriving a skill list. Neither function
// returns an error; absent information yields an empty or sentinel result.
package resume

import (
	"regexp"
	"strings"
)

// Section labels, in their canonical spelling.
const (
	SectionSkills     = "Skills"
	SectionExperience = "Experience"
	SectionEducation  = "Education"
)

// Sections maps a section label to its text.
type Sections map[string]string

var (
	sectionRe    = regexp.MustCompile(`(?i)\b(Skills|Experience|Education)\b`)
	sectionLabel = map[string]string{
		"skills":     SectionSkills,
		"experience": SectionExperience,
		"education":  SectionEducation,
	}
)

// ExtractSections splits text at every case-insensitive whole-word
// occurrence of Skills, Experience or Education. Each segment runs from the
// end of its keyword to the start of the next keyword (or end of text), is
// trimmed of surrounding space and a leading ':' separator, and is stored
// under the canonical label. A repeated keyword keeps its last segment.
// Text without keywords yields an empty map.
func ExtractSections(text string) Sections {
	out := Sections{}
	locs := sectionRe.FindAllStringIndex(text, -1)
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		label := sectionLabel[strings.ToLower(text[loc[0]:loc[1]])]
		out[label] = cleanSegment(text[loc[1]:end])
	}
	return out
}

func cleanSegment(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, ":")
	return strings.TrimSpace(s)
}
