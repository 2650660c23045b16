package portal

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/WessleyAI/resume-portal/engine/domain"
	"github.com/WessleyAI/resume-portal/engine/embedding"
	"github.com/WessleyAI/resume-portal/engine/graph"
	"github.com/WessleyAI/resume-portal/engine/resume"
	"github.com/WessleyAI/resume-portal/pkg/fn"
)

// submission is the value flowing through the submit pipeline.
type submission struct {
	app    domain.Application
	vector embedding.Vector
	skills []string
}

// submitPipeline wires validate -> embed -> upsert -> graph -> publish.
func (s *Service) submitPipeline() fn.Stage[domain.Application, submission] {
	validate := fn.TracedStage[domain.Application, submission]("portal.validate", func(_ context.Context, app domain.Application) fn.Result[submission] {
		if err := domain.ValidateApplication(app); err != nil {
			return fn.Err[submission](err)
		}
		return fn.Ok(submission{app: app})
	})

	embed := fn.TracedStage[submission, submission]("portal.embed", func(ctx context.Context, sub submission) fn.Result[submission] {
		sub.vector = s.deps.Embedder.Embed(ctx, sub.app.Text)
		sub.skills = graph.NormalizeSkills(resume.ExtractSkills(sub.app.Text), resume.NotSpecified)
		return fn.Ok(sub)
	})

	upsert := fn.TracedStage[submission, submission]("portal.upsert", func(ctx context.Context, sub submission) fn.Result[submission] {
		ctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
		defer cancel()
		if err := s.deps.Store.Upsert(ctx, sub.app.ID, sub.vector, sub.app.Metadata()); err != nil {
			return fn.Err[submission](fmt.Errorf("portal: store %s: %w", sub.app.ID, err))
		}
		return fn.Ok(sub)
	}, attribute.String("portal.store_timeout", s.opts.StoreTimeout.String()))

	linkGraph := fn.TapStage(func(ctx context.Context, sub submission) {
		if s.deps.Graph == nil {
			return
		}
		a := graph.Applicant{ID: sub.app.ID, Name: sub.app.Name, Email: sub.app.Email, LinkedIn: sub.app.LinkedIn}
		if err := s.deps.Graph.SaveApplicant(ctx, a, sub.skills); err != nil {
			s.logger.Warn("graph update failed", "id", sub.app.ID, "err", err)
		}
	})

	announce := fn.TapStage(func(ctx context.Context, sub submission) {
		s.publish(ctx, SubjectStored, ApplicationEvent{ID: sub.app.ID, Skills: sub.skills, At: time.Now().UTC()})
	})

	return fn.Then(fn.Then(fn.Then(fn.Then(validate, embed), upsert), linkGraph), announce)
}
