// Package resilience guards calls to upstream providers with a circuit
// breaker, so an embedding API that keeps failing is skipped until it has
// had time to recover.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is the breaker position. Its numeric value is exported as a gauge.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

var stateNames = [...]string{"closed", "open", "half-open"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// ErrCircuitOpen is returned without calling the guarded function.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerOpts configures a Breaker. Zero fields take DefaultBreakerOpts.
type BreakerOpts struct {
	// FailThreshold consecutive failures open the breaker.
	FailThreshold int
	// Timeout is the cool-down before a probe is let through.
	Timeout time.Duration
	// HalfOpenMax probes may run at once while half-open.
	HalfOpenMax int
	// Ignore marks errors that are returned but neither fail nor heal the
	// breaker, e.g. the caller's cancellation or a provider rate limit.
	Ignore func(error) bool
	// OnStateChange runs outside the lock after each transition.
	OnStateChange func(from, to State)
}

var DefaultBreakerOpts = BreakerOpts{
	FailThreshold: 5,
	Timeout:       30 * time.Second,
	HalfOpenMax:   1,
}

type transition struct{ from, to State }

// Breaker is a closed / open / half-open circuit breaker. It is safe for
// concurrent use.
type Breaker struct {
	opts BreakerOpts
	now  func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probes   int
	pending  []transition
}

func NewBreaker(opts BreakerOpts) *Breaker {
	def := DefaultBreakerOpts
	if opts.FailThreshold <= 0 {
		opts.FailThreshold = def.FailThreshold
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.HalfOpenMax <= 0 {
		opts.HalfOpenMax = def.HalfOpenMax
	}
	return &Breaker{opts: opts, now: time.Now}
}

// State reports the current position, moving an expired open breaker to
// half-open.
func (b *Breaker) State() State {
	b.mu.Lock()
	b.expire()
	st := b.state
	b.unlock()
	return st
}

// Call runs f unless the breaker is open or out of half-open probes.
func (b *Breaker) Call(ctx context.Context, f func(context.Context) error) error {
	if err := b.acquire(); err != nil {
		return err
	}
	err := f(ctx)
	b.mu.Lock()
	b.settle(err)
	b.unlock()
	return err
}

func (b *Breaker) acquire() error {
	b.mu.Lock()
	defer b.unlock()
	b.expire()
	switch b.state {
	case StateOpen:
		return ErrCircuitOpen
	case StateHalfOpen:
		if b.probes >= b.opts.HalfOpenMax {
			return ErrCircuitOpen
		}
		b.probes++
	}
	return nil
}

// settle folds the outcome of one call into the breaker. Must hold mu.
func (b *Breaker) settle(err error) {
	switch {
	case err != nil && b.opts.Ignore != nil && b.opts.Ignore(err):
		if b.state == StateHalfOpen && b.probes > 0 {
			b.probes--
		}
	case err != nil:
		b.failures++
		if b.state == StateHalfOpen || b.failures >= b.opts.FailThreshold {
			b.openedAt = b.now()
			b.failures = 0
			b.probes = 0
			b.move(StateOpen)
		}
	default:
		b.failures = 0
		if b.state == StateHalfOpen {
			b.move(StateClosed)
		}
	}
}

// expire moves an open breaker past its timeout to half-open. Must hold mu.
func (b *Breaker) expire() {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.opts.Timeout {
		b.probes = 0
		b.move(StateHalfOpen)
	}
}

// move records a transition for delivery by unlock. Must hold mu.
func (b *Breaker) move(to State) {
	if b.state == to {
		return
	}
	b.pending = append(b.pending, transition{b.state, to})
	b.state = to
}

// unlock releases mu and then reports queued transitions.
func (b *Breaker) unlock() {
	pending := b.pending
	b.pending = nil
	b.mu.Unlock()
	if b.opts.OnStateChange == nil {
		return
	}
	for _, t := range pending {
		b.opts.OnStateChange(t.from, t.to)
	}
}
