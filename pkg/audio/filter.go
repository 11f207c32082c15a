package audio

import "math"

// Biquad is a second-order IIR section in transposed direct form II.
// Coefficients are normalized so that a0 == 1.
type Biquad struct {
	B0, B1, B2 float64
	A1, A2     float64
}

// NewHighPass returns a Butterworth (Q = 1/√2) high-pass section with the
// given cutoff. Coefficients follow the RBJ audio EQ cookbook.
func NewHighPass(sampleRate int, cutoffHz float64) Biquad {
	w0, alpha := biquadAngles(sampleRate, cutoffHz)
	cosw := math.Cos(w0)
	a0 := 1 + alpha
	return Biquad{
		B0: (1 + cosw) / 2 / a0,
		B1: -(1 + cosw) / a0,
		B2: (1 + cosw) / 2 / a0,
		A1: -2 * cosw / a0,
		A2: (1 - alpha) / a0,
	}
}

// NewLowPass returns a Butterworth (Q = 1/√2) low-pass section with the
// given cutoff.
func NewLowPass(sampleRate int, cutoffHz float64) Biquad {
	w0, alpha := biquadAngles(sampleRate, cutoffHz)
	cosw := math.Cos(w0)
	a0 := 1 + alpha
	return Biquad{
		B0: (1 - cosw) / 2 / a0,
		B1: (1 - cosw) / a0,
		B2: (1 - cosw) / 2 / a0,
		A1: -2 * cosw / a0,
		A2: (1 - alpha) / a0,
	}
}

func biquadAngles(sampleRate int, cutoffHz float64) (w0, alpha float64) {
	w0 = 2 * math.Pi * cutoffHz / float64(sampleRate)
	// alpha = sin(w0) / 2Q with Q = 1/√2.
	alpha = math.Sin(w0) / math.Sqrt2
	return w0, alpha
}

// Apply filters interleaved samples, running an independent filter state per
// channel, and returns a new slice.
func (f Biquad) Apply(samples []float32, channels int) []float32 {
	if channels <= 0 {
		channels = 1
	}
	out := make([]float32, len(samples))
	for c := range channels {
		var z1, z2 float64
		for i := c; i < len(samples); i += channels {
			x := float64(samples[i])
			y := f.B0*x + z1
			z1 = f.B1*x - f.A1*y + z2
			z2 = f.B2*x - f.A2*y
			out[i] = float32(y)
		}
	}
	return out
}

// LowPass applies a Butterworth low-pass at cutoffHz. Cutoffs at or above the
// Nyquist frequency leave the signal untouched (a copy is returned).
func LowPass(samples []float32, channels, sampleRate int, cutoffHz float64) []float32 {
	if cutoffHz <= 0 || cutoffHz >= float64(sampleRate)/2 {
		out := make([]float32, len(samples))
		copy(out, samples)
		return out
	}
	return NewLowPass(sampleRate, cutoffHz).Apply(samples, channels)
}

// HighPass applies a Butterworth high-pass at cutoffHz. A non-positive cutoff
// or one at or above Nyquist leaves the signal untouched.
func HighPass(samples []float32, channels, sampleRate int, cutoffHz float64) []float32 {
	if cutoffHz <= 0 || cutoffHz >= float64(sampleRate)/2 {
		out := make([]float32, len(samples))
		copy(out, samples)
		return out
	}
	return NewHighPass(sampleRate, cutoffHz).Apply(samples, channels)
}
