package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var errTest = errors.New("test error")

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestBreaker(cfg BreakerConfig) (*Breaker, *fakeClock) {
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	cfg.now = clk.now
	if cfg.Name == "" {
		cfg.Name = "test"
	}
	return NewBreaker(cfg), clk
}

func fail(context.Context) error    { return errTest }
func succeed(context.Context) error { return nil }

func TestNewBreaker_Defaults(t *testing.T) {
	t.Parallel()
	b := NewBreaker(BreakerConfig{Name: "test"})
	if b.cfg.MaxFailures != 3 {
		t.Errorf("MaxFailures = %d, want 3", b.cfg.MaxFailures)
	}
	if b.cfg.Cooldown != 30*time.Second {
		t.Errorf("Cooldown = %v, want 30s", b.cfg.Cooldown)
	}
	if b.cfg.Probes != 1 {
		t.Errorf("Probes = %d, want 1", b.cfg.Probes)
	}
	if b.State() != StateClosed {
		t.Errorf("initial state = %v, want closed", b.State())
	}
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b, _ := newTestBreaker(BreakerConfig{MaxFailures: 3})

	for range 3 {
		_ = b.Do(ctx, fail)
	}
	if b.State() != StateOpen {
		t.Fatalf("state = %v, want open", b.State())
	}
	called := false
	err := b.Do(ctx, func(context.Context) error { called = true; return nil })
	if !errors.Is(err, ErrOpen) {
		t.Fatalf("err = %v, want ErrOpen", err)
	}
	if called {
		t.Error("fn ran while breaker was open")
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b, _ := newTestBreaker(BreakerConfig{MaxFailures: 3})

	_ = b.Do(ctx, fail)
	_ = b.Do(ctx, fail)
	_ = b.Do(ctx, succeed)
	_ = b.Do(ctx, fail)
	_ = b.Do(ctx, fail)
	if b.State() != StateClosed {
		t.Fatalf("state = %v, want closed", b.State())
	}
}

func TestBreaker_ProbeCycle(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		probe func(context.Context) error
		want  State
	}{
		{"successful probe closes", succeed, StateClosed},
		{"failed probe reopens", fail, StateOpen},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			b, clk := newTestBreaker(BreakerConfig{MaxFailures: 1, Cooldown: time.Minute})
			_ = b.Do(ctx, fail)

			clk.advance(59 * time.Second)
			if b.State() != StateOpen {
				t.Fatalf("state before cooldown = %v, want open", b.State())
			}
			clk.advance(time.Second)
			if b.State() != StateProbing {
				t.Fatalf("state after cooldown = %v, want probing", b.State())
			}

			_ = b.Do(ctx, tt.probe)
			if got := b.State(); got != tt.want {
				t.Errorf("state after probe = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBreaker_ProbeBudget(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b, clk := newTestBreaker(BreakerConfig{MaxFailures: 1, Cooldown: time.Second, Probes: 1})
	_ = b.Do(ctx, fail)
	clk.advance(time.Second)

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error)
	go func() {
		done <- b.Do(ctx, func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	if err := b.Do(ctx, succeed); !errors.Is(err, ErrOpen) {
		t.Errorf("second probe err = %v, want ErrOpen", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("probe err = %v", err)
	}
	if b.State() != StateClosed {
		t.Errorf("state = %v, want closed", b.State())
	}
}

func TestBreaker_CancellationIsNotAFailure(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b, _ := newTestBreaker(BreakerConfig{MaxFailures: 1})

	err := b.Do(ctx, func(ctx context.Context) error { return ctx.Err() })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if b.State() != StateClosed {
		t.Errorf("state = %v, want closed", b.State())
	}
}

func TestBreaker_OnStateChange(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	type change struct{ from, to State }
	var got []change
	b, clk := newTestBreaker(BreakerConfig{
		Name:        "whisper",
		MaxFailures: 1,
		Cooldown:    time.Second,
		OnStateChange: func(name string, from, to State) {
			if name != "whisper" {
				t.Errorf("name = %q", name)
			}
			got = append(got, change{from, to})
		},
	})

	_ = b.Do(ctx, fail)
	clk.advance(time.Second)
	_ = b.Do(ctx, succeed)
	b.Reset()

	want := []change{
		{StateClosed, StateOpen},
		{StateOpen, StateProbing},
		{StateProbing, StateClosed},
	}
	if len(got) != len(want) {
		t.Fatalf("changes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("change %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestBreaker_Reset(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b, _ := newTestBreaker(BreakerConfig{MaxFailures: 1, Cooldown: time.Hour})
	_ = b.Do(ctx, fail)
	b.Reset()
	if b.State() != StateClosed {
		t.Fatalf("state = %v, want closed", b.State())
	}
	if err := b.Do(ctx, succeed); err != nil {
		t.Fatalf("err after reset = %v", err)
	}
}

func TestState_String(t *testing.T) {
	t.Parallel()
	tests := []struct {
		state State
		want  string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateProbing, "probing"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
