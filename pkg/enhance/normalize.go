package enhance

import (
	"fmt"
	"math"

	"github.com/MrWong99/speechgate/pkg/audio"
)

// normalizeHeadroomDB is the peak level, in dBFS, that Normalize scales to.
const normalizeHeadroomDB = -0.1

// Normalize converts in to the canonical analysis format: the configured
// sample rate, mono, band-limited to [HighPassHz, LowPassHz] and peak
// normalized. Non-finite samples are zeroed. An empty input, or one that is
// entirely NaN, yields an empty buffer and a nil error.
func Normalize(in audio.Buffer, cfg Config) (audio.Buffer, error) {
	empty := audio.Buffer{SampleRate: cfg.TargetSampleRate, Channels: 1}
	if in.Empty() {
		return empty, nil
	}

	samples, finite := sanitize(in.Samples)
	if finite == 0 {
		return empty, nil
	}

	conv, err := audio.Convert(audio.Buffer{Samples: samples, SampleRate: in.SampleRate, Channels: in.Channels},
		audio.Format{SampleRate: cfg.TargetSampleRate, Channels: 1})
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("enhance: normalize: %w", err)
	}

	out := conv.Samples
	out = audio.HighPass(out, 1, cfg.TargetSampleRate, cfg.HighPassHz)
	out = audio.LowPass(out, 1, cfg.TargetSampleRate, cfg.LowPassHz)
	peakNormalize(out, math.Pow(10, normalizeHeadroomDB/20))

	return audio.Buffer{Samples: out, SampleRate: cfg.TargetSampleRate, Channels: 1}, nil
}

// sanitize returns a copy of samples with NaN and ±Inf replaced by zero, and
// the number of samples that were finite.
func sanitize(samples []float32) ([]float32, int) {
	out := make([]float32, len(samples))
	finite := 0
	for i, s := range samples {
		f := float64(s)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		out[i] = s
		finite++
	}
	return out, finite
}

// peakNormalize scales x in place so its absolute peak equals target. Silent
// signals are left unchanged.
func peakNormalize(x []float32, target float64) {
	peak := peakAbs(x)
	if peak == 0 {
		return
	}
	g := target / peak
	for i := range x {
		x[i] = float32(float64(x[i]) * g)
	}
}

func peakAbs(x []float32) float64 {
	var peak float64
	for _, v := range x {
		if a := math.Abs(float64(v)); a > peak {
			peak = a
		}
	}
	return peak
}
