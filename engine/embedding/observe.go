package embedding

import (
	"context"
	"log/slog"
	"time"

	"github.com/WessleyAI/resume-portal/pkg/metrics"
	"github.com/WessleyAI/resume-portal/pkg/natsutil"
)

// Provider error kinds reported to a Recorder.
const (
	KindRateLimited   = "rate_limited"
	KindError         = "error"
	KindCircuitOpen   = "circuit_open"
	KindBadDimensions = "bad_dimensions"
)

// Recorder receives the internal signals that Embed never returns.
type Recorder interface {
	Outcome(o Outcome)
	ProviderError(kind string)
	ProviderLatency(d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) Outcome(Outcome)               {}
func (nopRecorder) ProviderError(string)          {}
func (nopRecorder) ProviderLatency(time.Duration) {}

// MetricsRecorder counts outcomes and provider errors in a metrics registry.
type MetricsRecorder struct {
	reg     *metrics.Registry
	latency *metrics.Histogram
}

// NewMetricsRecorder registers the embedding metrics on reg.
func NewMetricsRecorder(reg *metrics.Registry) *MetricsRecorder {
	for _, o := range []Outcome{OutcomeCache, OutcomeProvider, OutcomeFallback} {
		reg.Counter(metrics.WithLabels("embedding_requests_total", "outcome", string(o)),
			"Embedding requests by the path that produced the vector.")
	}
	return &MetricsRecorder{
		reg: reg,
		latency: reg.Histogram("embedding_provider_duration_seconds",
			"Latency of single embedding provider calls.", nil),
	}
}

func (m *MetricsRecorder) Outcome(o Outcome) {
	m.reg.Counter(metrics.WithLabels("embedding_requests_total", "outcome", string(o)), "").Inc()
}

func (m *MetricsRecorder) ProviderError(kind string) {
	m.reg.Counter(metrics.WithLabels("embedding_provider_errors_total", "kind", kind),
		"Embedding provider failures by kind.").Inc()
}

func (m *MetricsRecorder) ProviderLatency(d time.Duration) {
	m.latency.Observe(d.Seconds())
}

// FallbackEvent describes a request answered by the local fallback vector.
type FallbackEvent struct {
	Reason     string    `json:"reason"`
	Model      string    `json:"model,omitempty"`
	TextLength int       `json:"text_length"`
	At         time.Time `json:"at"`
}

// Fallback reasons.
const (
	ReasonNoProvider    = "no_provider"
	ReasonProviderError = "provider_error"
	ReasonCancelled     = "cancelled"
	ReasonCircuitOpen   = "circuit_open"
)

// Notifier is told about every fallback so sustained degradation is visible.
type Notifier interface {
	Fallback(ctx context.Context, ev FallbackEvent)
}

// FallbackSubject is the NATS subject fallback events are published on.
const FallbackSubject = "portal.embedding.fallback"

// NATSNotifier publishes fallback events to NATS. Publish failures are logged.
type NATSNotifier struct {
	pub     natsutil.Publisher
	subject string
	log     *slog.Logger
}

// NewNATSNotifier publishes on FallbackSubject through pub.
func NewNATSNotifier(pub natsutil.Publisher, log *slog.Logger) *NATSNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &NATSNotifier{pub: pub, subject: FallbackSubject, log: log}
}

func (n *NATSNotifier) Fallback(ctx context.Context, ev FallbackEvent) {
	if err := natsutil.Publish(ctx, n.pub, n.subject, ev); err != nil {
		n.log.Warn("fallback event not published", "error", err)
	}
}
