package embedding

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WessleyAI/resume-portal/pkg/metrics"
	"github.com/WessleyAI/resume-portal/pkg/resilience"
)

const testDims = 8

// scriptedProvider returns errs[i] for call i, then vec.
type scriptedProvider struct {
	mu    sync.Mutex
	errs  []error
	vec   []float32
	calls int
	texts []string
}

func (p *scriptedProvider) Embed(_ context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.calls
	p.calls++
	p.texts = append(p.texts, text)
	if i < len(p.errs) && p.errs[i] != nil {
		return nil, p.errs[i]
	}
	out := make([]float32, len(p.vec))
	copy(out, p.vec)
	return out, nil
}

func (p *scriptedProvider) Model() string { return "test-model" }

func (p *scriptedProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func unitVec() []float32 {
	v := make([]float32, testDims)
	v[0] = 1
	return v
}

type recordingSleep struct {
	waits []time.Duration
	err   error
}

func (r *recordingSleep) Sleep(_ context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return r.err
}

type countingRecorder struct {
	mu       sync.Mutex
	outcomes map[Outcome]int
	kinds    map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{outcomes: map[Outcome]int{}, kinds: map[string]int{}}
}

func (r *countingRecorder) Outcome(o Outcome) {
	r.mu.Lock()
	r.outcomes[o]++
	r.mu.Unlock()
}

func (r *countingRecorder) ProviderError(kind string) {
	r.mu.Lock()
	r.kinds[kind]++
	r.mu.Unlock()
}

func (r *countingRecorder) ProviderLatency(time.Duration) {}

type captureNotifier struct {
	events []FallbackEvent
}

func (n *captureNotifier) Fallback(_ context.Context, ev FallbackEvent) {
	n.events = append(n.events, ev)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func newTestService(p Provider, sleep *recordingSleep, rec Recorder) *Service {
	opts := Options{
		Dimensions: testDims,
		Recorder:   rec,
		Logger:     quietLogger(),
	}
	if p != nil {
		opts.Provider = p
	}
	if sleep != nil {
		opts.Sleep = sleep.Sleep
	}
	return New(opts)
}

func TestNewDefaults(t *testing.T) {
	s := New(Options{})
	assert.Equal(t, Dimensions, s.Dimensions())
	assert.Equal(t, DefaultMaxRetries, s.maxRetries)
	assert.Equal(t, time.Second, s.backoff)
	assert.False(t, s.ProviderConfigured())
	assert.Equal(t, "fallback", s.Model())
}

func TestMaxRetriesOption(t *testing.T) {
	assert.Equal(t, DefaultMaxRetries, New(Options{}).MaxRetries())
	assert.Equal(t, 5, New(Options{MaxRetries: 5}).MaxRetries())
	assert.Equal(t, 0, New(Options{MaxRetries: NoRetries}).MaxRetries())
}

func TestEmbedNoRetries(t *testing.T) {
	p := &scriptedProvider{errs: []error{ErrRateLimited}, vec: unitVec()}
	sleep := &recordingSleep{}
	s := New(Options{Provider: p, Dimensions: testDims, MaxRetries: NoRetries, Sleep: sleep.Sleep, Logger: quietLogger()})

	got := s.Embed(context.Background(), "kotlin")
	assert.Equal(t, 1, p.Calls())
	assert.Empty(t, sleep.waits)
	assert.Equal(t, Fallback("kotlin", testDims), got)
}

func TestEmbedWithoutProviderUsesFallback(t *testing.T) {
	rec := newCountingRecorder()
	notes := &captureNotifier{}
	s := New(Options{Dimensions: testDims, Recorder: rec, Notifier: notes, Logger: quietLogger()})

	got := s.Embed(context.Background(), "python developer")
	assert.Equal(t, Fallback("python developer", testDims), got)
	assert.Equal(t, 1, rec.outcomes[OutcomeFallback])
	require.Len(t, notes.events, 1)
	assert.Equal(t, ReasonNoProvider, notes.events[0].Reason)
	assert.Equal(t, len("python developer"), notes.events[0].TextLength)

	// Second call is served from the cache.
	again := s.Embed(context.Background(), "python developer")
	assert.Equal(t, got, again)
	assert.Equal(t, 1, rec.outcomes[OutcomeCache])
	assert.Len(t, notes.events, 1)
}

func TestEmbedCacheIdempotence(t *testing.T) {
	p := &scriptedProvider{vec: unitVec()}
	s := newTestService(p, nil, nil)

	a := s.Embed(context.Background(), "golang")
	b := s.Embed(context.Background(), "golang")
	assert.Equal(t, a, b)
	assert.Equal(t, 1, p.Calls(), "second call must not reach the provider")
	assert.Equal(t, 1, s.CacheLen())
}

func TestEmbedTruncationEquivalence(t *testing.T) {
	p := &scriptedProvider{vec: unitVec()}
	s := newTestService(p, nil, nil)

	prefix := strings.Repeat("a", MaxInputChars)
	a := s.Embed(context.Background(), prefix+"tail one")
	b := s.Embed(context.Background(), prefix+"a completely different tail")
	assert.Equal(t, a, b)
	assert.Equal(t, 1, p.Calls())
	assert.Len(t, p.texts[0], MaxInputChars, "provider receives truncated text")
}

func TestEmbedNormalizesProviderVector(t *testing.T) {
	vec := make([]float32, testDims)
	vec[1] = 3
	vec[2] = 4
	s := newTestService(&scriptedProvider{vec: vec}, nil, nil)

	got := s.Embed(context.Background(), "x")
	assert.InDelta(t, 1.0, got.Norm(), 1e-6)
	assert.InDelta(t, 0.6, got[1], 1e-6)
}

func TestEmbedRetriesRateLimit(t *testing.T) {
	const maxRetries = 3
	p := &scriptedProvider{
		errs: []error{ErrRateLimited, ErrRateLimited, ErrRateLimited},
		vec:  unitVec(),
	}
	sleep := &recordingSleep{}
	rec := newCountingRecorder()
	s := newTestService(p, sleep, rec)

	got := s.EmbedWithRetries(context.Background(), "java", maxRetries)

	assert.Equal(t, maxRetries+1, p.Calls())
	assert.Equal(t, Vector(unitVec()), got, "final vector is the provider's, not the fallback")
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, sleep.waits)
	assert.Equal(t, 1, rec.outcomes[OutcomeProvider])
	assert.Equal(t, 3, rec.kinds[KindRateLimited])
}

func TestEmbedRetriesExhausted(t *testing.T) {
	p := &scriptedProvider{errs: []error{ErrRateLimited, ErrRateLimited, ErrRateLimited}, vec: unitVec()}
	sleep := &recordingSleep{}
	rec := newCountingRecorder()
	s := newTestService(p, sleep, rec)

	got := s.EmbedWithRetries(context.Background(), "java", 2)

	assert.Equal(t, 3, p.Calls())
	assert.Equal(t, Fallback("java", testDims), got)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sleep.waits)
	assert.Equal(t, 1, rec.outcomes[OutcomeFallback])
}

func TestEmbedZeroRetries(t *testing.T) {
	p := &scriptedProvider{errs: []error{ErrRateLimited}, vec: unitVec()}
	sleep := &recordingSleep{}
	s := newTestService(p, sleep, nil)

	got := s.EmbedWithRetries(context.Background(), "x", 0)
	assert.Equal(t, 1, p.Calls())
	assert.Empty(t, sleep.waits)
	assert.Equal(t, Fallback("x", testDims), got)
}

func TestEmbedNonRateLimitErrorFallsBackImmediately(t *testing.T) {
	p := &scriptedProvider{errs: []error{errors.New("invalid api key")}, vec: unitVec()}
	sleep := &recordingSleep{}
	rec := newCountingRecorder()
	notes := &captureNotifier{}
	s := New(Options{Provider: p, Dimensions: testDims, Sleep: sleep.Sleep, Recorder: rec, Notifier: notes, Logger: quietLogger()})

	got := s.Embed(context.Background(), "react")
	assert.Equal(t, 1, p.Calls())
	assert.Empty(t, sleep.waits)
	assert.Equal(t, Fallback("react", testDims), got)
	assert.Equal(t, 1, rec.kinds[KindError])
	require.Len(t, notes.events, 1)
	assert.Equal(t, ReasonProviderError, notes.events[0].Reason)
	assert.Equal(t, "test-model", notes.events[0].Model)

	// The fallback is cached like any other vector.
	s.Embed(context.Background(), "react")
	assert.Equal(t, 1, p.Calls())
}

func TestEmbedWrongDimensionsFallsBack(t *testing.T) {
	p := &scriptedProvider{vec: []float32{1, 0, 0}}
	rec := newCountingRecorder()
	s := newTestService(p, nil, rec)

	got := s.Embed(context.Background(), "sql")
	assert.Len(t, got, testDims)
	assert.Equal(t, Fallback("sql", testDims), got)
	assert.Equal(t, 1, rec.kinds[KindBadDimensions])
}

func TestEmbedCancelledDuringBackoff(t *testing.T) {
	p := &scriptedProvider{errs: []error{ErrRateLimited, ErrRateLimited}, vec: unitVec()}
	sleep := &recordingSleep{err: context.Canceled}
	s := newTestService(p, sleep, nil)

	got := s.Embed(context.Background(), "aws")
	assert.Equal(t, 1, p.Calls())
	assert.Equal(t, Fallback("aws", testDims), got)
}

// ctxProvider fails with the context error once ctx is done.
type ctxProvider struct{ scriptedProvider }

func (p *ctxProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		p.mu.Lock()
		p.calls++
		p.mu.Unlock()
		return nil, err
	}
	return p.scriptedProvider.Embed(ctx, text)
}

func TestEmbedCancelledFallbackNotCached(t *testing.T) {
	p := &ctxProvider{scriptedProvider{vec: unitVec()}}
	notes := &captureNotifier{}
	s := New(Options{Provider: p, Dimensions: testDims, Notifier: notes, Logger: quietLogger()})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	first := s.Embed(ctx, "senior go engineer")
	assert.Equal(t, Fallback("senior go engineer", testDims), first)
	assert.Equal(t, 0, s.CacheLen())
	require.Len(t, notes.events, 1)
	assert.Equal(t, ReasonCancelled, notes.events[0].Reason)

	second := s.Embed(context.Background(), "senior go engineer")
	assert.Equal(t, Vector(unitVec()), second)
	assert.Equal(t, 2, p.Calls(), "a live request must reach the provider")
	assert.Equal(t, 1, s.CacheLen())
}

func TestEmbedCancelledBackoffNotCached(t *testing.T) {
	p := &scriptedProvider{errs: []error{ErrRateLimited}, vec: unitVec()}
	s := newTestService(p, &recordingSleep{err: context.Canceled}, nil)

	s.Embed(context.Background(), "aws")
	assert.Equal(t, 0, s.CacheLen())

	got := s.Embed(context.Background(), "aws")
	assert.Equal(t, 2, p.Calls())
	assert.Equal(t, Vector(unitVec()), got)
}

func TestEmbedBreakerOpenSkipsProvider(t *testing.T) {
	p := &scriptedProvider{errs: []error{errors.New("down"), errors.New("down")}, vec: unitVec()}
	rec := newCountingRecorder()
	s := New(Options{
		Provider:   p,
		Dimensions: testDims,
		Breaker:    resilience.NewBreaker(resilience.BreakerOpts{FailThreshold: 1, Timeout: time.Hour}),
		Recorder:   rec,
		Logger:     quietLogger(),
	})

	s.Embed(context.Background(), "first")
	got := s.Embed(context.Background(), "second")

	assert.Equal(t, 1, p.Calls(), "open breaker must short-circuit the provider")
	assert.Equal(t, Fallback("second", testDims), got)
	assert.Equal(t, 1, rec.kinds[KindCircuitOpen])
	// Only the provider failure is cached, not the breaker-open fallback.
	assert.Equal(t, 1, s.CacheLen())
}

func TestEmbedValue(t *testing.T) {
	s := newTestService(nil, nil, nil)
	v := s.EmbedValue(context.Background(), map[string]string{"name": "Ada"})
	assert.Equal(t, Fallback(`{"name":"Ada"}`, testDims), v)
	assert.Equal(t, v, s.Embed(context.Background(), `{"name":"Ada"}`))
}

func TestEmbedAllPreservesOrder(t *testing.T) {
	s := newTestService(nil, nil, nil)
	texts := []string{"go", "rust", "python", "java", "sql"}
	got := s.EmbedAll(context.Background(), texts, 2)
	require.Len(t, got, len(texts))
	for i, text := range texts {
		assert.Equal(t, Fallback(text, testDims), got[i])
	}
}

func TestEmbedConcurrentSameKey(t *testing.T) {
	p := &scriptedProvider{vec: unitVec()}
	s := newTestService(p, nil, nil)

	var wg sync.WaitGroup
	results := make([]Vector, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.Embed(context.Background(), "same text")
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, Vector(unitVec()), r)
	}
	assert.GreaterOrEqual(t, p.Calls(), 1)
	assert.Equal(t, 1, s.CacheLen())
}

func TestEmbedLengthAllPaths(t *testing.T) {
	paths := map[string]Provider{
		"none":     nil,
		"provider": &scriptedProvider{vec: unitVec()},
		"error":    &scriptedProvider{errs: []error{errors.New("x")}, vec: unitVec()},
		"bad dims": &scriptedProvider{vec: []float32{1}},
	}
	for name, p := range paths {
		t.Run(name, func(t *testing.T) {
			s := New(Options{Provider: p, Dimensions: testDims, Logger: quietLogger()})
			assert.Len(t, s.Embed(context.Background(), "text"), testDims)
			assert.Len(t, s.Embed(context.Background(), "text"), testDims)
		})
	}
}

func TestMetricsRecorder(t *testing.T) {
	reg := metrics.New()
	s := New(Options{
		Provider:   &scriptedProvider{errs: []error{ErrRateLimited}, vec: unitVec()},
		Dimensions: testDims,
		Recorder:   NewMetricsRecorder(reg),
		Sleep:      (&recordingSleep{}).Sleep,
		Logger:     quietLogger(),
	})

	s.Embed(context.Background(), "a")
	s.Embed(context.Background(), "a")

	out := reg.Render()
	assert.Contains(t, out, `embedding_requests_total{outcome="provider"} 1`)
	assert.Contains(t, out, `embedding_requests_total{outcome="cache"} 1`)
	assert.Contains(t, out, `embedding_requests_total{outcome="fallback"} 0`)
	assert.Contains(t, out, `embedding_provider_errors_total{kind="rate_limited"} 1`)
	assert.Contains(t, out, "embedding_provider_duration_seconds_count 2")
}
