package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/urfave/cli/v3"

	"github.com/WessleyAI/resume-portal/engine/domain"
	"github.com/WessleyAI/resume-portal/engine/embedding"
	"github.com/WessleyAI/resume-portal/engine/ingest"
	"github.com/WessleyAI/resume-portal/engine/pdftext"
	"github.com/WessleyAI/resume-portal/engine/portal"
	"github.com/WessleyAI/resume-portal/engine/resume"
	"github.com/WessleyAI/resume-portal/engine/summary"
	"github.com/WessleyAI/resume-portal/internal/bootstrap"
	"github.com/WessleyAI/resume-portal/pkg/config"
	"github.com/WessleyAI/resume-portal/pkg/natsutil"
)

func out(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func errOut(cmd *cli.Command) io.Writer {
	if w := cmd.Root().ErrWriter; w != nil {
		return w
	}
	return os.Stderr
}

func printJSON(cmd *cli.Command, v any) error {
	enc := json.NewEncoder(out(cmd))
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readResume returns the text of path, extracting it first for PDFs.
func readResume(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return pdftext.Extract(data)
	}
	return string(data), nil
}

// outcomeRecorder remembers the outcome of the last embedding request.
type outcomeRecorder struct {
	mu      sync.Mutex
	outcome embedding.Outcome
	errors  []string
}

func (r *outcomeRecorder) Outcome(o embedding.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcome = o
}

func (r *outcomeRecorder) ProviderError(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, kind)
}

func (r *outcomeRecorder) ProviderLatency(time.Duration) {}

// EmbedReport is printed by the embed command.
type EmbedReport struct {
	Model          string            `json:"model"`
	Outcome        embedding.Outcome `json:"outcome"`
	Dimensions     int               `json:"dimensions"`
	Norm           float64           `json:"norm"`
	ProviderErrors []string          `json:"provider_errors,omitempty"`
	Vector         embedding.Vector  `json:"vector,omitempty"`
}

func embedAction(ctx context.Context, cmd *cli.Command) error {
	if err := config.Load(cmd.String("env")); err != nil {
		return err
	}
	text := strings.Join(cmd.Args().Slice(), " ")

	cfg := bootstrap.LoadConfig()
	rec := &outcomeRecorder{}
	opts := embedding.Options{
		Dimensions: cfg.EmbedDimensions,
		MaxRetries: cfg.EmbedMaxRetries,
		Recorder:   rec,
	}
	if p := bootstrap.Provider(cfg); p != nil {
		opts.Provider = p
	}
	svc := embedding.New(opts)
	vec := svc.Embed(ctx, text)

	report := EmbedReport{
		Model:          svc.Model(),
		Outcome:        rec.outcome,
		Dimensions:     len(vec),
		Norm:           vec.Norm(),
		ProviderErrors: rec.errors,
	}
	if cmd.Bool("vector") {
		report.Vector = vec
	}
	return printJSON(cmd, report)
}

func sectionsAction(_ context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return errors.New("sections: FILE is required")
	}
	text, err := readResume(path)
	if err != nil {
		return err
	}
	return printJSON(cmd, resume.ExtractSections(text))
}

func skillsAction(_ context.Context, cmd *cli.Command) error {
	text := strings.Join(cmd.Args().Slice(), " ")
	if path := cmd.String("file"); path != "" {
		var err error
		if text, err = readResume(path); err != nil {
			return err
		}
	}
	return printJSON(cmd, resume.ExtractSkills(text))
}

func summarizeAction(ctx context.Context, cmd *cli.Command) error {
	if err := config.Load(cmd.String("env")); err != nil {
		return err
	}
	path := cmd.Args().First()
	if path == "" {
		return errors.New("summarize: FILE is required")
	}
	text, err := readResume(path)
	if err != nil {
		return err
	}

	model := cmd.String("model")
	if model == "" {
		model = config.String("SUMMARY_MODEL", summary.DefaultModel)
	}
	gen, err := summary.NewGemini(ctx, os.Getenv("GOOGLE_GEMINI_API_KEY"), model)
	if err != nil {
		return err
	}
	defer gen.Close()

	s, err := gen.Summarize(ctx, text)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out(cmd), s)
	return err
}

func connectNATS(cmd *cli.Command) (*nats.Conn, string, error) {
	url := cmd.String("nats")
	if url == "" {
		url = config.String("NATS_URL", nats.DefaultURL)
	}
	nc, err := nats.Connect(url, nats.Name("portalctl"))
	if err != nil {
		return nil, url, fmt.Errorf("nats connect: %w", err)
	}
	return nc, url, nil
}

func enqueueAction(ctx context.Context, cmd *cli.Command) error {
	if err := config.Load(cmd.String("env")); err != nil {
		return err
	}
	path := cmd.Args().First()
	if path == "" {
		return errors.New("enqueue: FILE is required")
	}
	text, err := readResume(path)
	if err != nil {
		return err
	}
	app := domain.Application{
		ID:       cmd.String("id"),
		Name:     cmd.String("name"),
		Email:    cmd.String("email"),
		LinkedIn: cmd.String("linkedin"),
		Text:     text,
	}
	if err := domain.ValidateApplication(app); err != nil {
		return err
	}

	nc, _, err := connectNATS(cmd)
	if err != nil {
		return err
	}
	defer nc.Close()

	if err := natsutil.Publish(ctx, nc, ingest.SubmitSubject, app); err != nil {
		return err
	}
	if err := nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}
	_, err = fmt.Fprintf(out(cmd), "queued %s on %s\n", app.ID, ingest.SubmitSubject)
	return err
}

func eventsAction(ctx context.Context, cmd *cli.Command) error {
	if err := config.Load(cmd.String("env")); err != nil {
		return err
	}
	nc, url, err := connectNATS(cmd)
	if err != nil {
		return err
	}
	defer nc.Close()

	var mu sync.Mutex
	emit := func(subject string, v any) {
		mu.Lock()
		defer mu.Unlock()
		printJSON(cmd, map[string]any{"subject": subject, "event": v})
	}
	onErr := func(err error) { fmt.Fprintln(errOut(cmd), "decode:", err) }

	subs := make([]*nats.Subscription, 0, 4)
	sub, err := natsutil.Subscribe(nc, embedding.FallbackSubject, func(_ context.Context, ev embedding.FallbackEvent) {
		emit(embedding.FallbackSubject, ev)
	}, onErr)
	if err != nil {
		return err
	}
	subs = append(subs, sub)
	sub, err = natsutil.Subscribe(nc, ingest.DLQSubject, func(_ context.Context, m ingest.DLQMessage) {
		emit(ingest.DLQSubject, m)
	}, onErr)
	if err != nil {
		return err
	}
	subs = append(subs, sub)
	for _, subject := range []string{portal.SubjectStored, portal.SubjectWithdrawn} {
		sub, err := natsutil.Subscribe(nc, subject, func(_ context.Context, ev portal.ApplicationEvent) {
			emit(subject, ev)
		}, onErr)
		if err != nil {
			return err
		}
		subs = append(subs, sub)
	}
	defer func() {
		for _, s := range subs {
			s.Unsubscribe()
		}
	}()

	fmt.Fprintf(errOut(cmd), "listening on %s\n", url)
	<-ctx.Done()
	return nil
}
