package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/WessleyAI/resume-portal/pkg/fn"
	"github.com/WessleyAI/resume-portal/pkg/resilience"
)

var tracer = otel.Tracer("engine/embedding")

// Options configures a Service. Only Provider is commonly set; every
// other field has a working default.
type Options struct {
	// Provider is the remote model. Nil means no credential is configured
	// and every miss is answered by the fallback vector.
	Provider Provider
	// Dimensions is the vector length D (default Dimensions).
	Dimensions int
	// MaxRetries is the retry budget used by Embed. Zero means
	// DefaultMaxRetries; use NoRetries for a single provider attempt.
	MaxRetries int
	// InitialBackoff is the wait before the first retry (default 1s).
	// Retry n waits InitialBackoff * 2^n.
	InitialBackoff time.Duration
	// Cache stores vectors by normalized text (default unbounded MapCache).
	Cache Cache
	// Limiter throttles provider calls client side.
	Limiter *rate.Limiter
	// Breaker skips the provider while it keeps failing.
	Breaker  *resilience.Breaker
	Recorder Recorder
	Notifier Notifier
	Logger   *slog.Logger
	// Sleep replaces the backoff wait. Tests use it to avoid real delays.
	Sleep func(context.Context, time.Duration) error
}

// Service produces embeddings. It is safe for concurrent use.
type Service struct {
	provider   Provider
	dims       int
	maxRetries int
	backoff    time.Duration
	cache      Cache
	limiter    *rate.Limiter
	breaker    *resilience.Breaker
	rec        Recorder
	notifier   Notifier
	log        *slog.Logger
	sleep      func(context.Context, time.Duration) error

	warnOnce sync.Once
}

// New creates a Service from opts.
func New(opts Options) *Service {
	s := &Service{
		provider:   opts.Provider,
		dims:       opts.Dimensions,
		maxRetries: opts.MaxRetries,
		backoff:    opts.InitialBackoff,
		cache:      opts.Cache,
		limiter:    opts.Limiter,
		breaker:    opts.Breaker,
		rec:        opts.Recorder,
		notifier:   opts.Notifier,
		log:        opts.Logger,
		sleep:      opts.Sleep,
	}
	if s.dims <= 0 {
		s.dims = Dimensions
	}
	switch {
	case s.maxRetries == 0:
		s.maxRetries = DefaultMaxRetries
	case s.maxRetries < 0:
		s.maxRetries = 0
	}
	if s.backoff <= 0 {
		s.backoff = time.Second
	}
	if s.cache == nil {
		s.cache = NewMapCache()
	}
	if s.rec == nil {
		s.rec = nopRecorder{}
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.sleep == nil {
		s.sleep = fn.SleepContext
	}
	return s
}

// Dimensions returns the length of every vector the service returns.
func (s *Service) Dimensions() int { return s.dims }

// ProviderConfigured reports whether a remote provider is in use.
func (s *Service) ProviderConfigured() bool { return s.provider != nil }

// Model names the provider model, or "fallback" when there is none.
func (s *Service) Model() string {
	if s.provider == nil {
		return "fallback"
	}
	return s.provider.Model()
}

// MaxRetries returns the retry budget used by Embed.
func (s *Service) MaxRetries() int { return s.maxRetries }

// CacheLen returns the number of cached vectors.
func (s *Service) CacheLen() int { return s.cache.Len() }

// Embed returns the embedding of text using the configured retry budget.
func (s *Service) Embed(ctx context.Context, text string) Vector {
	return s.embed(ctx, NormalizeText(text), s.maxRetries)
}

// EmbedWithRetries is Embed with an explicit retry budget: at most
// maxRetries+1 provider calls are made for a rate-limited key.
func (s *Service) EmbedWithRetries(ctx context.Context, text string, maxRetries int) Vector {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return s.embed(ctx, NormalizeText(text), maxRetries)
}

// EmbedValue serializes v (see NormalizeValue) and embeds the result.
func (s *Service) EmbedValue(ctx context.Context, v any) Vector {
	return s.embed(ctx, NormalizeValue(v), s.maxRetries)
}

// EmbedAll embeds texts with at most workers concurrent calls, preserving order.
func (s *Service) EmbedAll(ctx context.Context, texts []string, workers int) []Vector {
	return fn.ParMap(texts, workers, func(t string) Vector {
		return s.Embed(ctx, t)
	})
}

func (s *Service) embed(ctx context.Context, key string, maxRetries int) Vector {
	ctx, span := tracer.Start(ctx, "embedding.Embed")
	defer span.End()

	s.log.Debug("embedding request", "chars", utf8.RuneCountInString(key))

	if v, ok := s.cache.Get(key); ok {
		s.done(span, OutcomeCache)
		return v
	}

	if s.provider == nil {
		s.warnOnce.Do(func() {
			s.log.Warn("no embedding provider configured, serving fallback vectors")
		})
		return s.fallback(ctx, span, key, ReasonNoProvider, true)
	}

	res := fn.Retry(ctx, fn.RetryOpts{
		MaxAttempts: maxRetries + 1,
		InitialWait: s.backoff,
		ShouldRetry: IsRateLimited,
		Sleep:       s.sleep,
		OnRetry: func(attempt int, wait time.Duration, err error) {
			s.log.Warn("embedding provider rate limited, backing off",
				"attempt", attempt+1, "wait", wait, "model", s.provider.Model())
		},
	}, func(ctx context.Context) fn.Result[Vector] {
		return fn.FromPair(s.call(ctx, key))
	})

	fellBack := false
	v := res.OrElse(func(err error) Vector {
		fellBack = true
		span.RecordError(err)
		reason := fallbackReason(ctx, err)
		if reason == ReasonProviderError {
			s.log.Error("embedding provider failed, serving fallback vector",
				"error", err, "model", s.provider.Model())
		} else {
			s.log.Warn("embedding provider skipped, serving uncached fallback vector",
				"reason", reason, "error", err, "model", s.provider.Model())
		}
		// Cancellation and an open breaker say nothing about this text, so
		// the fallback is not cached and the next call tries the provider.
		return s.fallback(ctx, span, key, reason, reason == ReasonProviderError)
	})
	if !fellBack {
		s.cache.Put(key, v)
		s.done(span, OutcomeProvider)
	}
	return v
}

// call makes one throttled, breaker-guarded provider request.
func (s *Service) call(ctx context.Context, key string) (Vector, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("embedding: throttle: %w", err)
		}
	}

	var vals []float32
	attempt := func(ctx context.Context) error {
		start := time.Now()
		out, err := s.provider.Embed(ctx, key)
		s.rec.ProviderLatency(time.Since(start))
		if err != nil {
			return err
		}
		if len(out) != s.dims {
			return fmt.Errorf("%w: got %d, want %d", ErrBadDimensions, len(out), s.dims)
		}
		vals = out
		return nil
	}

	var err error
	if s.breaker != nil {
		err = s.breaker.Call(ctx, attempt)
	} else {
		err = attempt(ctx)
	}
	if err != nil {
		s.rec.ProviderError(errorKind(err))
		return nil, err
	}
	return unit(vals), nil
}

func (s *Service) fallback(ctx context.Context, span trace.Span, key, reason string, cache bool) Vector {
	v := Fallback(key, s.dims)
	if cache {
		s.cache.Put(key, v)
	}
	s.done(span, OutcomeFallback)
	if s.notifier != nil {
		s.notifier.Fallback(ctx, FallbackEvent{
			Reason:     reason,
			Model:      s.Model(),
			TextLength: utf8.RuneCountInString(key),
			At:         time.Now().UTC(),
		})
	}
	return v
}

func (s *Service) done(span trace.Span, o Outcome) {
	span.SetAttributes(attribute.String("embedding.outcome", string(o)))
	s.rec.Outcome(o)
}

func fallbackReason(ctx context.Context, err error) string {
	switch {
	case ctx.Err() != nil, errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ReasonCancelled
	case errors.Is(err, resilience.ErrCircuitOpen):
		return ReasonCircuitOpen
	default:
		return ReasonProviderError
	}
}

func errorKind(err error) string {
	switch {
	case IsRateLimited(err):
		return KindRateLimited
	case errors.Is(err, resilience.ErrCircuitOpen):
		return KindCircuitOpen
	case errors.Is(err, ErrBadDimensions):
		return KindBadDimensions
	default:
		return KindError
	}
}

// unit copies v scaled to unit length.
func unit(v []float32) Vector {
	acc := make([]float64, len(v))
	for i, x := range v {
		acc[i] = float64(x)
	}
	normalize(acc)
	out := make(Vector, len(v))
	for i, x := range acc {
		out[i] = float32(x)
	}
	return out
}
