// Package portal orchestrates the applicant portal: storing submitted
// resumes as vectors, ranking them against a search query, parsing
// uploaded PDFs and summarizing resume text.
package portal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/WessleyAI/resume-portal/engine/domain"
	"github.com/WessleyAI/resume-portal/engine/embedding"
	"github.com/WessleyAI/resume-portal/engine/graph"
	"github.com/WessleyAI/resume-portal/engine/pdftext"
	"github.com/WessleyAI/resume-portal/engine/resume"
	"github.com/WessleyAI/resume-portal/engine/semantic"
	"github.com/WessleyAI/resume-portal/engine/summary"
	"github.com/WessleyAI/resume-portal/pkg/fn"
	"github.com/WessleyAI/resume-portal/pkg/natsutil"
)

var (
	// ErrGraphDisabled is returned by skill queries when no graph is configured.
	ErrGraphDisabled = errors.New("portal: skill graph not configured")
	// ErrSummaryDisabled is returned by Summarize when no generator is configured.
	ErrSummaryDisabled = errors.New("portal: summarizer not configured")
)

// Embedder turns text into a vector. *embedding.Service never fails.
type Embedder interface {
	Embed(ctx context.Context, text string) embedding.Vector
}

// SkillGraph is the optional applicant/skill graph.
type SkillGraph interface {
	SaveApplicant(ctx context.Context, a graph.Applicant, skills []string) error
	DeleteApplicant(ctx context.Context, id string) error
	ApplicantsWithSkill(ctx context.Context, skill string) ([]graph.Applicant, error)
	TopSkills(ctx context.Context, limit int) ([]graph.SkillCount, error)
}

// Deps are the collaborators of a Service. Embedder and Store are required.
type Deps struct {
	Embedder   Embedder
	Store      semantic.Store
	Summarizer summary.Generator
	Graph      SkillGraph
	Events     natsutil.Publisher
}

// Options configures the portal behaviour.
type Options struct {
	TopK         int
	StoreTimeout time.Duration
}

// DefaultOptions returns the portal defaults.
func DefaultOptions() Options {
	return Options{
		TopK:         10,
		StoreTimeout: 10 * time.Second,
	}
}

// Event subjects.
const (
	SubjectStored    = "portal.application.stored"
	SubjectWithdrawn = "portal.application.withdrawn"
)

// ApplicationEvent is published after an application is stored or withdrawn.
type ApplicationEvent struct {
	ID     string    `json:"id"`
	Skills []string  `json:"skills,omitempty"`
	At     time.Time `json:"at"`
}

// Service is the portal orchestration service.
type Service struct {
	deps   Deps
	opts   Options
	logger *slog.Logger
	submit fn.Stage[domain.Application, submission]
}

// New creates a portal Service.
func New(deps Deps, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultOptions()
	if opts.TopK <= 0 {
		opts.TopK = def.TopK
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = def.StoreTimeout
	}
	s := &Service{deps: deps, opts: opts, logger: logger}
	s.submit = s.submitPipeline()
	return s
}

// Receipt describes a stored application.
type Receipt struct {
	ID         string   `json:"id"`
	Skills     []string `json:"skills"`
	Dimensions int      `json:"dimensions"`
}

// Submit validates, embeds and stores an application. Graph and event
// updates are best effort and never fail the submission.
func (s *Service) Submit(ctx context.Context, app domain.Application) (Receipt, error) {
	sub, err := s.submit(ctx, app).Unwrap()
	if err != nil {
		return Receipt{}, err
	}
	s.logger.Info("application stored", "id", sub.app.ID, "skills", len(sub.skills))
	return Receipt{ID: sub.app.ID, Skills: sub.skills, Dimensions: len(sub.vector)}, nil
}

// Search ranks stored resumes against query and returns at most TopK candidates.
func (s *Service) Search(ctx context.Context, query string) ([]domain.Candidate, error) {
	if err := domain.ValidateQuery(query); err != nil {
		return nil, err
	}
	vec := s.deps.Embedder.Embed(ctx, query)

	matches, err := s.deps.Store.Query(ctx, vec, s.opts.TopK)
	if err != nil {
		return nil, fmt.Errorf("portal: search: %w", err)
	}

	out := fn.Map(matches, func(m semantic.Match) domain.Candidate {
		c := domain.NewCandidate(m.ID, m.Score, m.Meta)
		c.Skills = resume.ExtractSkills(m.Meta.Text)
		return c
	})
	s.logger.Info("search done", "query_len", len(query), "results", len(out))
	return out, nil
}

// ParsedResume is the text analysis of an uploaded PDF.
type ParsedResume struct {
	Text     string          `json:"text"`
	Sections resume.Sections `json:"extractedSections"`
	Skills   []string        `json:"skills"`
}

// ParseResume extracts text from a PDF and splits it into sections.
func (s *Service) ParseResume(_ context.Context, pdf []byte) (ParsedResume, error) {
	text, err := pdftext.Extract(pdf)
	if err != nil {
		return ParsedResume{}, err
	}
	return ParsedResume{
		Text:     text,
		Sections: resume.ExtractSections(text),
		Skills:   resume.ExtractSkills(text),
	}, nil
}

// Summarize returns a prose summary of resume text.
func (s *Service) Summarize(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", summary.ErrEmptyText
	}
	if s.deps.Summarizer == nil {
		return "", ErrSummaryDisabled
	}
	out, err := s.deps.Summarizer.Summarize(ctx, text)
	if err != nil {
		return "", err
	}
	return out, nil
}

// Withdraw removes an application from the vector store and the graph.
func (s *Service) Withdraw(ctx context.Context, id string) error {
	if id == "" {
		return domain.NewValidationError("id", "", domain.ErrMissingField)
	}
	if err := s.deps.Store.Delete(ctx, id); err != nil {
		return fmt.Errorf("portal: withdraw %s: %w", id, err)
	}
	if s.deps.Graph != nil {
		if err := s.deps.Graph.DeleteApplicant(ctx, id); err != nil {
			s.logger.Warn("graph delete failed", "id", id, "err", err)
		}
	}
	s.publish(ctx, SubjectWithdrawn, ApplicationEvent{ID: id, At: time.Now().UTC()})
	s.logger.Info("application withdrawn", "id", id)
	return nil
}

// ApplicantsWithSkill lists applicants declaring skill.
func (s *Service) ApplicantsWithSkill(ctx context.Context, skill string) ([]graph.Applicant, error) {
	if s.deps.Graph == nil {
		return nil, ErrGraphDisabled
	}
	return s.deps.Graph.ApplicantsWithSkill(ctx, skill)
}

// TopSkills returns the most common skills across applicants.
func (s *Service) TopSkills(ctx context.Context, limit int) ([]graph.SkillCount, error) {
	if s.deps.Graph == nil {
		return nil, ErrGraphDisabled
	}
	return s.deps.Graph.TopSkills(ctx, limit)
}

func (s *Service) publish(ctx context.Context, subject string, ev ApplicationEvent) {
	if s.deps.Events == nil {
		return
	}
	if err := natsutil.Publish(ctx, s.deps.Events, subject, ev); err != nil {
		s.logger.Warn("event publish failed", "subject", subject, "err", err)
	}
}
