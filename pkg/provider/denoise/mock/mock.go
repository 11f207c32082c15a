// Package mock provides a test double for the denoise.Reducer interface.
//
// Reducer records every request it receives and either returns ReduceErr or
// scales the input signal by Gain (1 when zero), which is enough to exercise
// the candidate mixing and scoring paths deterministically.
package mock

import (
	"sync"

	"github.com/MrWong99/speechgate/pkg/provider/denoise"
)

// ReduceCall records a single invocation of Reducer.Reduce.
type ReduceCall struct {
	// Strength is the requested strength.
	Strength float64
	// SignalLen and NoiseLen are the lengths of the request slices.
	SignalLen int
	NoiseLen  int
}

// Reducer is a mock implementation of denoise.Reducer.
type Reducer struct {
	mu sync.Mutex

	// Gain multiplies every sample of the signal. Zero means 1.
	Gain float32

	// ScaleByStrength, when true, multiplies the signal by (1 - Strength)
	// instead of Gain.
	ScaleByStrength bool

	// ReduceErr, if non-nil, is returned by every Reduce call.
	ReduceErr error

	// ReduceCalls records every call to Reduce in order.
	ReduceCalls []ReduceCall
}

// Reduce records the call and returns a scaled copy of req.Signal or ReduceErr.
func (r *Reducer) Reduce(req denoise.Request) ([]float32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ReduceCalls = append(r.ReduceCalls, ReduceCall{
		Strength:  req.Strength,
		SignalLen: len(req.Signal),
		NoiseLen:  len(req.Noise),
	})
	if r.ReduceErr != nil {
		return nil, r.ReduceErr
	}
	g := r.Gain
	if g == 0 {
		g = 1
	}
	if r.ScaleByStrength {
		g = float32(1 - req.Strength)
	}
	out := make([]float32, len(req.Signal))
	for i, s := range req.Signal {
		out[i] = s * g
	}
	return out, nil
}

// CallCount returns the number of Reduce calls recorded so far. Thread-safe.
func (r *Reducer) CallCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ReduceCalls)
}

// Reset clears all recorded calls. Thread-safe.
func (r *Reducer) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ReduceCalls = nil
}

// Ensure Reducer implements denoise.Reducer at compile time.
var _ denoise.Reducer = (*Reducer)(nil)
