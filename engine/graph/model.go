package graph

import (
	"sort"
	"strings"

	"github.com/WessleyAI/resume-portal/pkg/fn"
)

// Applicant is the graph node of a submitted application.
type Applicant struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	LinkedIn string `json:"linkedin,omitempty"`
}

// SkillCount is a skill and the number of applicants declaring it.
type SkillCount struct {
	Skill      string `json:"skill"`
	Applicants int64  `json:"applicants"`
}

// NormalizeSkills lowercases and trims skills, dropping blanks, duplicates
// and the ignore values. The result is sorted.
func NormalizeSkills(skills []string, ignore ...string) []string {
	skip := make(map[string]bool, len(ignore))
	for _, s := range ignore {
		skip[strings.ToLower(s)] = true
	}
	cleaned := fn.Map(skills, func(s string) string {
		return strings.ToLower(strings.TrimSpace(s))
	})
	out := fn.Uniq(fn.Filter(cleaned, func(s string) bool {
		return s != "" && !skip[s]
	}))
	sort.Strings(out)
	return out
}

func applicantFromProps(props map[string]any) Applicant {
	return Applicant{
		ID:       strProp(props, "id"),
		Name:     strProp(props, "name"),
		Email:    strProp(props, "email"),
		LinkedIn: strProp(props, "linkedin"),
	}
}

func strProp(props map[string]any, key string) string {
	if s, ok := props[key].(string); ok {
		return s
	}
	return ""
}
