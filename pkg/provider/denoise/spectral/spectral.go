// Package spectral implements stationary spectral gating on top of gonum's
// real FFT.
//
// A per-frequency threshold is learned from the noise clip (mean plus NStd
// standard deviations of the noise magnitude in dB). Time-frequency cells of
// the signal above the threshold are kept; cells below it are attenuated by
// the request strength. The binary mask is optionally smoothed over
// neighbouring frequencies and frames before it is applied, which avoids
// isolated "musical noise" cells.
//
// Usage:
//
//	r := spectral.New(
//	    spectral.WithFFTSize(2048),
//	    spectral.WithHop(512),
//	    spectral.WithMaskSmoothing(600, 64),
//	)
//	clean, err := r.Reduce(denoise.Request{Signal: x, Noise: n, SampleRate: 16000, Strength: 0.6})
package spectral

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/MrWong99/speechgate/pkg/provider/denoise"
)

const (
	defaultFFTSize = 2048
	defaultHop     = 512
	defaultNStd    = 1.5
)

// Compile-time assertion that Reducer implements denoise.Reducer.
var _ denoise.Reducer = (*Reducer)(nil)

// Option is a functional option for configuring a Reducer.
type Option func(*Reducer)

// WithFFTSize sets the analysis frame length in samples. Must be a power of
// two. Defaults to 2048.
func WithFFTSize(n int) Option {
	return func(r *Reducer) {
		r.fftSize = n
	}
}

// WithHop sets the hop between analysis frames in samples. Defaults to 512.
func WithHop(n int) Option {
	return func(r *Reducer) {
		r.hop = n
	}
}

// WithNStd sets how many standard deviations above the mean noise level a
// cell must be to count as signal. Defaults to 1.5.
func WithNStd(n float64) Option {
	return func(r *Reducer) {
		r.nStd = n
	}
}

// WithMaskSmoothing enables triangular smoothing of the gate mask over
// freqHz of neighbouring frequencies and timeMs of neighbouring frames.
// Zero values disable smoothing along that axis (the default).
func WithMaskSmoothing(freqHz, timeMs float64) Option {
	return func(r *Reducer) {
		r.freqSmoothHz = freqHz
		r.timeSmoothMs = timeMs
	}
}

// Reducer is a stationary spectral gate. It is immutable after New and safe
// for concurrent use.
type Reducer struct {
	fftSize      int
	hop          int
	nStd         float64
	freqSmoothHz float64
	timeSmoothMs float64
}

// New creates a Reducer with the given options applied over the defaults.
func New(opts ...Option) (*Reducer, error) {
	r := &Reducer{
		fftSize: defaultFFTSize,
		hop:     defaultHop,
		nStd:    defaultNStd,
	}
	for _, o := range opts {
		o(r)
	}
	if r.fftSize < 16 || r.fftSize&(r.fftSize-1) != 0 {
		return nil, fmt.Errorf("spectral: fft size must be a power of two >= 16, got %d", r.fftSize)
	}
	if r.hop <= 0 || r.hop > r.fftSize/2 {
		return nil, fmt.Errorf("spectral: hop must be in (0, %d], got %d", r.fftSize/2, r.hop)
	}
	if r.freqSmoothHz < 0 || r.timeSmoothMs < 0 {
		return nil, fmt.Errorf("spectral: smoothing widths must be non-negative")
	}
	return r, nil
}

// Reduce applies the spectral gate to req.Signal using req.Noise as the noise
// profile. Returns denoise.ErrNoiseTooShort if the noise clip is shorter than
// one FFT frame.
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
	thresh := r.noiseThreshold(denoise.Analyze(req.Noise, r.fftSize, r.hop, t))

	spec := denoise.Analyze(req.Signal, r.fftSize, r.hop, t)
	mask := make([][]float64, len(spec.Frames))
	for f, bins := range spec.Frames {
		row := make([]float64, len(bins))
		for k, c := range bins {
			if toDB(denoise.Magnitude(c)) > thresh[k] {
				row[k] = 1
			}
		}
		mask[f] = row
	}

	binHz := float64(req.SampleRate) / float64(r.fftSize)
	frameMs := float64(r.hop) * 1000 / float64(req.SampleRate)
	mask = smoothMask(mask, int(r.freqSmoothHz/binHz), int(r.timeSmoothMs/frameMs))

	for f, bins := range spec.Frames {
		for k := range bins {
			gain := 1 - req.Strength*(1-mask[f][k])
			bins[k] *= complex(gain, 0)
		}
	}
	return denoise.Synthesize(spec, t), nil
}

// noiseThreshold returns the per-bin dB gate threshold learned from the noise
// spectrogram.
func (r *Reducer) noiseThreshold(noise denoise.Spectrogram) []float64 {
	bins := r.fftSize/2 + 1
	mean := make([]float64, bins)
	sq := make([]float64, bins)
	for _, frame := range noise.Frames {
		for k, c := range frame {
			db := toDB(denoise.Magnitude(c))
			mean[k] += db
			sq[k] += db * db
		}
	}
	n := float64(len(noise.Frames))
	thresh := make([]float64, bins)
	for k := range bins {
		m := mean[k] / n
		variance := sq[k]/n - m*m
		if variance < 0 {
			variance = 0
		}
		thresh[k] = m + r.nStd*math.Sqrt(variance)
	}
	return thresh
}

func toDB(mag float64) float64 {
	return 20 * math.Log10(mag)
}

// newTransform wraps a gonum FFT of size n. gonum leaves the inverse
// unnormalized; the scale is measured once with an impulse so it is removed
// regardless of convention.
func newTransform(n int) denoise.Transform {
	fft := fourier.NewFFT(n)
	impulse := make([]float64, n)
	impulse[0] = 1
	scale := fft.Sequence(nil, fft.Coefficients(nil, impulse))[0]
	if scale == 0 {
		scale = 1
	}
	return denoise.Transform{
		Forward: func(frame []float64) []complex128 {
			return fft.Coefficients(nil, frame)
		},
		Inverse: func(bins []complex128) []float64 {
			seq := fft.Sequence(nil, bins)
			for i := range seq {
				seq[i] /= scale
			}
			return seq
		},
	}
}

// smoothMask convolves the mask with a separable triangular kernel of
// half-width nf bins and nt frames, renormalizing at the edges.
func smoothMask(mask [][]float64, nf, nt int) [][]float64 {
	if len(mask) == 0 {
		return mask
	}
	if nf > 0 {
		for f := range mask {
			mask[f] = triangleSmooth(mask[f], nf)
		}
	}
	if nt > 0 {
		bins := len(mask[0])
		col := make([]float64, len(mask))
		for k := range bins {
			for f := range mask {
				col[f] = mask[f][k]
			}
			sm := triangleSmooth(col, nt)
			for f := range mask {
				mask[f][k] = sm[f]
			}
		}
	}
	return mask
}

func triangleSmooth(x []float64, half int) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		var sum, wsum float64
		for d := -half; d <= half; d++ {
			j := i + d
			if j < 0 || j >= len(x) {
				continue
			}
			w := 1 - math.Abs(float64(d))/float64(half+1)
			sum += w * x[j]
			wsum += w
		}
		out[i] = sum / wsum
	}
	return out
}
