// Package domain defines the applicant and search-result types shared by
// the portal engines, plus request validation.
package domain

import "math"

// Defaults shown for search results with incomplete metadata.
const (
	UnknownName    = "Unknown"
	NoEmailMessage = "No email provided"
)

// Application is a submitted resume.
type Application struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	LinkedIn string `json:"linkedin,omitempty"`
	Text     string `json:"text"`
}

// Metadata returns the record stored next to the application's vector.
func (a Application) Metadata() ResumeMetadata {
	return ResumeMetadata{Name: a.Name, Email: a.Email, LinkedIn: a.LinkedIn, Text: a.Text}
}

// ResumeMetadata is the structured payload kept alongside a resume vector.
// Every field is optional on read.
type ResumeMetadata struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	LinkedIn string `json:"linkedin,omitempty"`
	Text     string `json:"text,omitempty"`
}

// Candidate is one ranked search result as presented to administrators.
type Candidate struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Email          string   `json:"email"`
	LinkedIn       string   `json:"linkedin"`
	Skills         []string `json:"skills"`
	Text           string   `json:"text"`
	RelevanceScore int      `json:"relevanceScore"`
}

// NewCandidate builds a result from a store match. Missing names and
// emails get display defaults; skills are filled in by the caller.
func NewCandidate(id string, score float64, meta ResumeMetadata) Candidate {
	c := Candidate{
		ID:             id,
		Name:           meta.Name,
		Email:          meta.Email,
		LinkedIn:       meta.LinkedIn,
		Text:           meta.Text,
		RelevanceScore: RelevancePercent(score),
	}
	if c.Name == "" {
		c.Name = UnknownName
	}
	if c.Email == "" {
		c.Email = NoEmailMessage
	}
	return c
}

// RelevancePercent converts a 0..1 similarity score to a rounded percentage.
func RelevancePercent(score float64) int {
	if math.IsNaN(score) {
		return 0
	}
	return int(math.Round(score * 100))
}
