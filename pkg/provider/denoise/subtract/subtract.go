// Package subtract implements magnitude spectral subtraction with a spectral
// floor, using go-dsp's FFT.
//
// The noise profile is the mean magnitude spectrum of the noise clip. Each
// signal cell keeps max(|X| - OverSubtraction*strength*N, (1-strength)*|X|)
// of its magnitude while preserving phase, so strength 0 leaves the signal
// untouched and strength 1 removes up to OverSubtraction times the noise
// estimate.
package subtract

import (
	"fmt"

	"github.com/mjibson/go-dsp/fft"

	"github.com/MrWong99/speechgate/pkg/provider/denoise"
)

const (
	defaultFFTSize         = 512
	defaultHop             = 128
	defaultOverSubtraction = 2.0
)

// Compile-time assertion that Reducer implements denoise.Reducer.
var _ denoise.Reducer = (*Reducer)(nil)

// Option is a functional option for configuring a Reducer.
type Option func(*Reducer)

// WithFFTSize sets the analysis frame length in samples. Defaults to 512.
func WithFFTSize(n int) Option {
	return func(r *Reducer) {
		r.fftSize = n
	}
}

// WithHop sets the hop between analysis frames in samples. Defaults to 128.
func WithHop(n int) Option {
	return func(r *Reducer) {
		r.hop = n
	}
}

// WithOverSubtraction sets the factor applied to the noise magnitude at full
// strength. Defaults to 2.
func WithOverSubtraction(a float64) Option {
	return func(r *Reducer) {
		r.overSubtraction = a
	}
}

// Reducer is a spectral-subtraction noise reducer. Safe for concurrent use.
type Reducer struct {
	fftSize         int
	hop             int
	overSubtraction float64
}

// New creates a Reducer with the given options applied over the defaults.
func New(opts ...Option) (*Reducer, error) {
	r := &Reducer{
		fftSize:         defaultFFTSize,
		hop:             defaultHop,
		overSubtraction: defaultOverSubtraction,
	}
	for _, o := range opts {
		o(r)
	}
	if r.fftSize < 16 || r.fftSize%2 != 0 {
		return nil, fmt.Errorf("subtract: fft size must be even and >= 16, got %d", r.fftSize)
	}
	if r.hop <= 0 || r.hop > r.fftSize/2 {
		return nil, fmt.Errorf("subtract: hop must be in (0, %d], got %d", r.fftSize/2, r.hop)
	}
	if r.overSubtraction <= 0 {
		return nil, fmt.Errorf("subtract: over-subtraction must be positive, got %v", r.overSubtraction)
	}
	return r, nil
}

// Reduce subtracts the noise clip's mean magnitude spectrum from req.Signal.
func (r *Reducer) Reduce(req denoise.Request) ([]float32, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if len(req.Noise) < r.fftSize {
		return nil, fmt.Errorf("%w: %d samples, need %d", denoise.ErrNoiseTooShort, len(req.Noise), r.fftSize)
	}
	if len(req.Signal) == 0 {
		return []float32{}, nil
	}

	t := newTransform(r.fftSize)
	profile := meanMagnitude(denoise.Analyze(req.Noise, r.fftSize, r.hop, t))

	spec := denoise.Analyze(req.Signal, r.fftSize, r.hop, t)
	sub := r.overSubtraction * req.Strength
	floor := 1 - req.Strength
	for _, bins := range spec.Frames {
		for k, c := range bins {
			mag := denoise.Magnitude(c)
			clean := mag - sub*profile[k]
			if lo := floor * mag; clean < lo {
				clean = lo
			}
			bins[k] = c * complex(clean/mag, 0)
		}
	}
	return denoise.Synthesize(spec, t), nil
}

func meanMagnitude(spec denoise.Spectrogram) []float64 {
	out := make([]float64, spec.Size/2+1)
	for _, frame := range spec.Frames {
		for k, c := range frame {
			out[k] += denoise.Magnitude(c)
		}
	}
	for k := range out {
		out[k] /= float64(len(spec.Frames))
	}
	return out
}

// newTransform adapts go-dsp's full complex FFT to the half-spectrum
// transform used by the STFT helpers. The inverse rebuilds the conjugate
// mirror so the output is real; its scale is measured with an impulse.
func newTransform(n int) denoise.Transform {
	half := n/2 + 1
	inverse := func(bins []complex128) []float64 {
		full := make([]complex128, n)
		copy(full, bins[:half])
		for k := 1; k < n-half+1; k++ {
			full[n-k] = complex(real(bins[k]), -imag(bins[k]))
		}
		out := fft.IFFT(full)
		seq := make([]float64, n)
		for i, v := range out {
			seq[i] = real(v)
		}
		return seq
	}
	forward := func(frame []float64) []complex128 {
		return fft.FFTReal(frame)[:half]
	}

	impulse := make([]float64, n)
	impulse[0] = 1
	scale := inverse(forward(impulse))[0]
	if scale == 0 {
		scale = 1
	}
	return denoise.Transform{
		Forward: forward,
		Inverse: func(bins []complex128) []float64 {
			seq := inverse(bins)
			for i := range seq {
				seq[i] /= scale
			}
			return seq
		},
	}
}
