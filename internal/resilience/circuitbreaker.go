// Package resilience guards remote transcription backends.
//
// A [Breaker] stops hammering a backend that keeps failing: after MaxFailures
// consecutive errors it opens and rejects calls until Cooldown has passed,
// then lets a few probes through before closing again. A [Chain] orders
// several backends of the same kind, each behind its own breaker, and
// [TranscriberChain] applies that to stt.Transcriber.
//
// All types are safe for concurrent use.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned by [Breaker.Do] while the breaker rejects calls.
var ErrOpen = errors.New("resilience: breaker open")

// State is the operating mode of a [Breaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota
	// StateOpen rejects calls until the cooldown elapses.
	StateOpen
	// StateProbing lets up to Probes calls through to test recovery.
	StateProbing
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateProbing:
		return "probing"
	default:
		return "unknown"
	}
}

// BreakerConfig tunes a [Breaker]. Zero fields take defaults.
type BreakerConfig struct {
	// Name labels log lines and state-change callbacks.
	Name string

	// MaxFailures is the number of consecutive failures that opens the
	// breaker. Default: 3.
	MaxFailures int

	// Cooldown is how long the breaker stays open. Default: 30s.
	Cooldown time.Duration

	// Probes is the number of successful probe calls needed to close the
	// breaker again. Default: 1.
	Probes int

	// OnStateChange, if set, is called after every transition. It runs with
	// the breaker unlocked.
	OnStateChange func(name string, from, to State)

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	now func() time.Time
}

// Breaker is a three-state circuit breaker.
type Breaker struct {
	cfg BreakerConfig

	mu        sync.Mutex
	state     State
	failures  int
	openedAt  time.Time
	inFlight  int
	successes int
}

// NewBreaker returns a closed [Breaker].
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.Probes <= 0 {
		cfg.Probes = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}
	return &Breaker{cfg: cfg}
}

// Do runs fn unless the breaker is open. Cancellation errors from ctx are
// passed through without counting as failures.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	probing, err := b.admit()
	if err != nil {
		return err
	}

	err = fn(ctx)
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		b.release(probing)
		return err
	}
	b.record(probing, err)
	return err
}

// State reports the current state. An open breaker whose cooldown has passed
// reports [StateProbing]; the transition itself happens on the next call.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.cfg.now().Sub(b.openedAt) >= b.cfg.Cooldown {
		return StateProbing
	}
	return b.state
}

// Reset forces the breaker closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	from := b.state
	b.state = StateClosed
	b.failures, b.inFlight, b.successes = 0, 0, 0
	b.mu.Unlock()
	b.notify(from, StateClosed)
}

func (b *Breaker) admit() (probing bool, err error) {
	b.mu.Lock()
	from := b.state
	switch b.state {
	case StateOpen:
		if b.cfg.now().Sub(b.openedAt) < b.cfg.Cooldown {
			b.mu.Unlock()
			return false, ErrOpen
		}
		b.state = StateProbing
		b.inFlight, b.successes = 0, 0
	case StateProbing:
		if b.inFlight >= b.cfg.Probes {
			b.mu.Unlock()
			return false, ErrOpen
		}
	}
	probing = b.state == StateProbing
	if probing {
		b.inFlight++
	}
	to := b.state
	b.mu.Unlock()
	b.notify(from, to)
	return probing, nil
}

func (b *Breaker) release(probing bool) {
	if !probing {
		return
	}
	b.mu.Lock()
	if b.state == StateProbing && b.inFlight > 0 {
		b.inFlight--
	}
	b.mu.Unlock()
}

func (b *Breaker) record(probing bool, err error) {
	b.mu.Lock()
	from := b.state
	switch {
	case err != nil && probing:
		b.trip()
	case err != nil:
		b.failures++
		if b.state == StateClosed && b.failures >= b.cfg.MaxFailures {
			b.trip()
		}
	case probing:
		b.successes++
		if b.state == StateProbing && b.successes >= b.cfg.Probes {
			b.state = StateClosed
			b.failures, b.inFlight, b.successes = 0, 0, 0
		}
	default:
		b.failures = 0
	}
	to := b.state
	failures := b.failures
	b.mu.Unlock()

	switch {
	case from != StateOpen && to == StateOpen:
		b.cfg.Logger.Warn("breaker opened", "name", b.cfg.Name, "consecutive_failures", failures, "err", err)
	case from == StateProbing && to == StateClosed:
		b.cfg.Logger.Info("breaker closed after probe", "name", b.cfg.Name)
	}
	b.notify(from, to)
}

// trip opens the breaker. Must be called with b.mu held.
func (b *Breaker) trip() {
	b.state = StateOpen
	b.openedAt = b.cfg.now()
	b.inFlight, b.successes = 0, 0
}

func (b *Breaker) notify(from, to State) {
	if from != to && b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.cfg.Name, from, to)
	}
}
