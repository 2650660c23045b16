// Package ingest consumes queued application submissions from NATS and
// runs them through the portal, with bounded redelivery and a dead letter
// queue for submissions that keep failing.
package ingest

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel/trace"

	"github.com/WessleyAI/resume-portal/engine/domain"
	"github.com/WessleyAI/resume-portal/engine/portal"
	"github.com/WessleyAI/resume-portal/pkg/metrics"
	"github.com/WessleyAI/resume-portal/pkg/natsutil"
)

const (
	// SubmitSubject carries queued domain.Application submissions.
	SubmitSubject = "portal.application.submit"
	// DLQSubject receives submissions that could not be stored.
	DLQSubject = "portal.application.submit.dlq"
	// MaxRetries before a submission is sent to the DLQ.
	MaxRetries = 3
	// RetryHeader counts redeliveries of a submission.
	RetryHeader = "X-Retry-Count"
	// QueueGroup spreads submissions across ingest replicas.
	QueueGroup = "portal-ingest"
)

// Submitter stores one application. *portal.Service satisfies it.
type Submitter interface {
	Submit(ctx context.Context, app domain.Application) (portal.Receipt, error)
}

// Deps holds the external dependencies of a Consumer.
type Deps struct {
	Submitter Submitter
	Publisher natsutil.Publisher
	Logger    *slog.Logger
	// Metrics counts outcomes as ingest_submissions_total{result}. Optional.
	Metrics *metrics.Registry
	// Timeout bounds one submission (default 30s).
	Timeout time.Duration
}

// DLQMessage is published to DLQSubject when a submission is given up on.
type DLQMessage struct {
	Application domain.Application `json:"application"`
	Error       string             `json:"error"`
	Retries     int                `json:"retries"`
}

// Consumer handles submission messages.
type Consumer struct {
	deps Deps
	log  *slog.Logger
}

// NewConsumer creates a Consumer.
func NewConsumer(deps Deps) *Consumer {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	if deps.Timeout <= 0 {
		deps.Timeout = 30 * time.Second
	}
	return &Consumer{deps: deps, log: log}
}

// Start subscribes c to SubmitSubject on nc within QueueGroup.
func Start(nc *nats.Conn, c *Consumer) (*nats.Subscription, error) {
	return nc.QueueSubscribe(SubmitSubject, QueueGroup, func(msg *nats.Msg) {
		c.Handle(context.Background(), msg)
	})
}

// Handle runs one submission message through the portal. Invalid
// submissions go straight to the DLQ; other failures are republished with
// an incremented retry count until MaxRetries is reached.
func (c *Consumer) Handle(ctx context.Context, msg *nats.Msg) {
	defer ack(msg)

	msgCtx, app, err := natsutil.Decode[domain.Application](msg)
	if err != nil {
		c.log.Error("ingest: decode failed", "err", err)
		c.count(ResultMalformed)
		return
	}
	ctx = trace.ContextWithRemoteSpanContext(ctx, trace.SpanContextFromContext(msgCtx))

	ctx, cancel := context.WithTimeout(ctx, c.deps.Timeout)
	defer cancel()

	receipt, err := c.deps.Submitter.Submit(ctx, app)
	if err == nil {
		c.log.Info("ingest: stored", "id", receipt.ID, "skills", len(receipt.Skills))
		c.count(ResultStored)
		return
	}

	retries := retryCount(msg) + 1
	c.log.Error("ingest: submit failed", "id", app.ID, "retry", retries, "err", err)

	if domain.IsValidation(err) || retries >= MaxRetries {
		c.deadLetter(ctx, app, err, retries)
		c.count(ResultDeadLettered)
		return
	}
	c.redeliver(msg, retries)
	c.count(ResultRetried)
}

// Submission results.
const (
	ResultStored       = "stored"
	ResultRetried      = "retried"
	ResultDeadLettered = "dead_lettered"
	ResultMalformed    = "malformed"
)

func (c *Consumer) count(result string) {
	if c.deps.Metrics == nil {
		return
	}
	c.deps.Metrics.Counter(metrics.WithLabels("ingest_submissions_total", "result", result),
		"Queued submissions by result.").Inc()
}

func (c *Consumer) deadLetter(ctx context.Context, app domain.Application, cause error, retries int) {
	dlq := DLQMessage{Application: app, Error: cause.Error(), Retries: retries}
	if err := natsutil.Publish(context.WithoutCancel(ctx), c.deps.Publisher, DLQSubject, dlq); err != nil {
		c.log.Error("ingest: DLQ publish failed", "id", app.ID, "err", err)
	}
}

func (c *Consumer) redeliver(msg *nats.Msg, retries int) {
	retry := nats.NewMsg(SubmitSubject)
	retry.Data = msg.Data
	retry.Header = nats.Header{}
	for k, v := range msg.Header {
		retry.Header[k] = v
	}
	retry.Header.Set(RetryHeader, strconv.Itoa(retries))
	if err := c.deps.Publisher.PublishMsg(retry); err != nil {
		c.log.Error("ingest: retry publish failed", "err", err)
	}
}

func retryCount(msg *nats.Msg) int {
	if msg.Header == nil {
		return 0
	}
	n, err := strconv.Atoi(msg.Header.Get(RetryHeader))
	if err != nil {
		return 0
	}
	return n
}

// ack acknowledges JetStream deliveries; plain subscriptions have no reply.
func ack(msg *nats.Msg) {
	if msg.Reply == "" {
		return
	}
	if err := msg.Ack(); err != nil && !errors.Is(err, nats.ErrMsgNoReply) {
		slog.Warn("ingest: ack failed", "err", err)
	}
}
