// Package denoise defines the Reducer interface for noise-reduction
// primitives.
//
// A Reducer takes a mono signal and a clip of pure background noise and
// returns a same-length signal with that noise suppressed. Strength scales
// how much of the detected noise is removed, from 0 (leave the signal as-is)
// to 1 (remove everything classified as noise).
//
// Reducers are pure functions of their inputs: implementations must not keep
// state between calls and must be safe for concurrent use.
package denoise

import (
	"errors"
	"fmt"
)

var (
	// ErrNoiseTooShort is returned when the noise clip is too short for the
	// reducer to build a noise profile.
	ErrNoiseTooShort = errors.New("denoise: noise clip too short")

	// ErrInvalidStrength is returned when Request.Strength is outside [0, 1].
	ErrInvalidStrength = errors.New("denoise: strength must be in [0, 1]")
)

// Request is the input to a single reduction call.
type Request struct {
	// Signal is the mono signal to clean.
	Signal []float32

	// Noise is a clip of background noise from the same recording.
	Noise []float32

	// SampleRate of both Signal and Noise in Hz.
	SampleRate int

	// Strength is the proportion of detected noise to remove, in [0, 1].
	Strength float64
}

// Validate checks the request fields that every reducer depends on.
func (r Request) Validate() error {
	if r.SampleRate <= 0 {
		return fmt.Errorf("denoise: sample rate must be positive, got %d", r.SampleRate)
	}
	if r.Strength < 0 || r.Strength > 1 || r.Strength != r.Strength {
		return fmt.Errorf("%w: got %v", ErrInvalidStrength, r.Strength)
	}
	if len(r.Noise) == 0 {
		return fmt.Errorf("%w: empty", ErrNoiseTooShort)
	}
	return nil
}

// Reducer is the abstraction over any noise-reduction primitive.
type Reducer interface {
	// Reduce returns a copy of req.Signal with noise suppressed. The result
	// has exactly len(req.Signal) samples.
	Reduce(req Request) ([]float32, error)
}

// ReducerFunc adapts an ordinary function to the Reducer interface.
type ReducerFunc func(req Request) ([]float32, error)

// Reduce calls f(req).
func (f ReducerFunc) Reduce(req Request) ([]float32, error) {
	return f(req)
}
