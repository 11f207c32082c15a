package denoise

import "math"

// Transform is a real-input FFT pair used by the STFT helpers. Forward maps a
// frame of n samples to its n/2+1 non-negative-frequency bins; Inverse maps
// n/2+1 bins back to n samples. Any constant scale factor in Inverse must be
// removed by the implementation.
type Transform struct {
	Forward func(frame []float64) []complex128
	Inverse func(bins []complex128) []float64
}

// HannWindow returns a periodic Hann window of length n.
func HannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

// Spectrogram is the short-time Fourier transform of a signal. Frames[f][k]
// is bin k of frame f.
type Spectrogram struct {
	Frames [][]complex128
	Size   int
	Hop    int
	// Length is the sample count of the analyzed signal.
	Length int
}

// Analyze computes the STFT of signal with a periodic Hann window. The signal
// is centered: size/2 zeros are padded on both sides so that every sample is
// covered by full-weight frames.
func Analyze(signal []float32, size, hop int, t Transform) Spectrogram {
	pad := size / 2
	frames := frameCount(len(signal), size, hop)
	padded := make([]float64, (frames-1)*hop+size)
	for i, s := range signal {
		padded[pad+i] = float64(s)
	}

	win := HannWindow(size)
	spec := Spectrogram{Frames: make([][]complex128, frames), Size: size, Hop: hop, Length: len(signal)}
	seg := make([]float64, size)
	for f := range frames {
		start := f * hop
		for i := range size {
			seg[i] = padded[start+i] * win[i]
		}
		spec.Frames[f] = t.Forward(seg)
	}
	return spec
}

// Synthesize inverts a spectrogram produced by Analyze using weighted
// overlap-add. An unmodified spectrogram reconstructs the original signal.
func Synthesize(spec Spectrogram, t Transform) []float32 {
	if len(spec.Frames) == 0 {
		return make([]float32, spec.Length)
	}
	size, hop := spec.Size, spec.Hop
	n := (len(spec.Frames)-1)*hop + size
	acc := make([]float64, n)
	norm := make([]float64, n)
	win := HannWindow(size)

	for f, bins := range spec.Frames {
		frame := t.Inverse(bins)
		start := f * hop
		for i := range size {
			acc[start+i] += frame[i] * win[i]
			norm[start+i] += win[i] * win[i]
		}
	}

	pad := size / 2
	out := make([]float32, spec.Length)
	for i := range out {
		j := i + pad
		if norm[j] > 1e-10 {
			out[i] = float32(acc[j] / norm[j])
		}
	}
	return out
}

// frameCount returns the number of hop-spaced frames needed to cover a
// centered signal of n samples.
func frameCount(n, size, hop int) int {
	total := n + 2*(size/2)
	if total <= size {
		return 1
	}
	return 1 + (total-size+hop-1)/hop
}

// Magnitude returns |c| with a floor so that decibel conversion stays finite.
func Magnitude(c complex128) float64 {
	m := math.Hypot(real(c), imag(c))
	if m < 1e-10 {
		return 1e-10
	}
	return m
}
