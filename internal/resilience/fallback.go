package resilience

import (
	"context"
	"errors"
	"fmt"
)

// ErrExhausted is returned when every member of a [Chain] failed or was
// skipped by its breaker.
var ErrExhausted = errors.New("resilience: all backends failed")

type member[T any] struct {
	name    string
	value   T
	breaker *Breaker
}

// Chain holds backends of one kind in priority order, each behind its own
// [Breaker]. Members are fixed after construction.
type Chain[T any] struct {
	members []member[T]
}

// NewChain returns an empty chain. Add members with [Chain.Add] before first
// use.
func NewChain[T any]() *Chain[T] {
	return &Chain[T]{}
}

// Add appends a backend. cfg.Name is overwritten with name.
func (c *Chain[T]) Add(name string, value T, cfg BreakerConfig) {
	cfg.Name = name
	c.members = append(c.members, member[T]{name: name, value: value, breaker: NewBreaker(cfg)})
}

// Len returns the number of members.
func (c *Chain[T]) Len() int { return len(c.members) }

// States reports each member's breaker state by name.
func (c *Chain[T]) States() map[string]State {
	out := make(map[string]State, len(c.members))
	for _, m := range c.members {
		out[m.name] = m.breaker.State()
	}
	return out
}

// Call runs fn against each member in order and returns the first success
// together with the name of the member that produced it. A cancelled ctx
// stops the walk immediately.
func Call[T, R any](ctx context.Context, c *Chain[T], fn func(context.Context, T) (R, error)) (R, string, error) {
	var (
		zero R
		errs []error
	)
	for _, m := range c.members {
		if err := ctx.Err(); err != nil {
			return zero, "", err
		}
		var out R
		err := m.breaker.Do(ctx, func(ctx context.Context) error {
			var err error
			out, err = fn(ctx, m.value)
			return err
		})
		if err == nil {
			return out, m.name, nil
		}
		if ctx.Err() != nil {
			return zero, "", err
		}
		errs = append(errs, fmt.Errorf("%s: %w", m.name, err))
		if !errors.Is(err, ErrOpen) {
			m.breaker.cfg.Logger.Warn("backend failed, trying next", "backend", m.name, "err", err)
		}
	}
	if len(errs) == 0 {
		return zero, "", fmt.Errorf("%w: chain is empty", ErrExhausted)
	}
	return zero, "", fmt.Errorf("%w: %w", ErrExhausted, errors.Join(errs...))
}
