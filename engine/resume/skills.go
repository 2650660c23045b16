package resume

import (
	"regexp"
	"strings"
)

// NotSpecified is the single-element result used when no skill is found.
const NotSpecified = "Not specified"

// Vocabulary is matched, in this order, when text has no "Skills:" line.
var Vocabulary = []string{
	"javascript", "typescript", "react", "node", "python", "java", "c#", "c++",
	"html", "css", "sql", "nosql", "mongodb", "postgresql", "mysql",
	"aws", "azure", "gcp", "docker", "kubernetes", "git", "github",
	"machine learning", "data science", "ai",
	"product management", "agile", "scrum", "kanban", "jira",
	"figma", "adobe", "photoshop", "illustrator", "ui", "ux", "design",
	"marketing", "seo", "content",
}

var (
	skillsLineRe = regexp.MustCompile(`(?i)skills:(.+?)(?:\n|$)`)
	vocabRe      = compileVocabulary(Vocabulary)
)

// compileVocabulary builds one whole-word matcher per term. Boundaries are
// non-word characters rather than \b so terms ending in '#' or '+' match.
func compileVocabulary(terms []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(terms))
	for i, t := range terms {
		out[i] = regexp.MustCompile(`(?i)(?:^|\W)` + regexp.QuoteMeta(t) + `(?:\W|$)`)
	}
	return out
}

// ExtractSkills derives the skills in text.
//
// Empty text yields an empty slice. A "Skills:" line (case-insensitive)
// wins: its value is split on commas and each piece trimmed, keeping empty
// pieces. Otherwise the Vocabulary terms found in text are returned in
// vocabulary order. When nothing is found the result is [NotSpecified].
func ExtractSkills(text string) (skills []string) {
	if text == "" {
		return []string{}
	}
	defer func() {
		if recover() != nil {
			skills = []string{NotSpecified}
		}
	}()

	if m := skillsLineRe.FindStringSubmatch(text); m != nil {
		parts := strings.Split(m[1], ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}

	for i, re := range vocabRe {
		if re.MatchString(text) {
			skills = append(skills, Vocabulary[i])
		}
	}
	if len(skills) == 0 {
		return []string{NotSpecified}
	}
	return skills
}
