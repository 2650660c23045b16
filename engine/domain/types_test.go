package domain

import (
	"math"
	"testing"
)

func TestRelevancePercent(t *testing.T) {
	tests := []struct {
		score float64
		want  int
	}{
		{0, 0},
		{0.874, 87},
		{0.875, 88},
		{1, 100},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		if got := RelevancePercent(tt.score); got != tt.want {
			t.Errorf("RelevancePercent(%v) = %d, want %d", tt.score, got, tt.want)
		}
	}
}

func TestNewCandidateDefaults(t *testing.T) {
	c := NewCandidate("r1", 0.5, ResumeMetadata{})
	if c.Name != UnknownName || c.Email != NoEmailMessage {
		t.Fatalf("expected defaults, got %+v", c)
	}
	if c.LinkedIn != "" || c.Text != "" || c.RelevanceScore != 50 {
		t.Fatalf("unexpected candidate %+v", c)
	}
}

func TestNewCandidateKeepsMetadata(t *testing.T) {
	meta := ResumeMetadata{Name: "Ada", Email: "ada@example.com", LinkedIn: "in/ada", Text: "Skills: Go"}
	c := NewCandidate("r2", 0.91, meta)
	if c.Name != "Ada" || c.Email != "ada@example.com" || c.LinkedIn != "in/ada" || c.Text != "Skills: Go" {
		t.Fatalf("metadata not carried: %+v", c)
	}
	if c.RelevanceScore != 91 {
		t.Fatalf("score = %d", c.RelevanceScore)
	}
}

func TestApplicationMetadata(t *testing.T) {
	a := Application{ID: "x", Name: "Ada", Email: "a@b.co", LinkedIn: "l", Text: "t"}
	want := ResumeMetadata{Name: "Ada", Email: "a@b.co", LinkedIn: "l", Text: "t"}
	if a.Metadata() != want {
		t.Fatalf("got %+v", a.Metadata())
	}
}
