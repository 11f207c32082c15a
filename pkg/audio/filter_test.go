package audio_test

import (
	"math"
	"testing"

	"github.com/MrWong99/speechgate/pkg/audio"
)

func sine(freq float64, rate, n int, amp float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amp * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return out
}

// tailRMS measures the second half of a signal so filter transients are excluded.
func tailRMS(s []float32) float64 {
	var sum float64
	tail := s[len(s)/2:]
	for _, v := range tail {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum / float64(len(tail)))
}

func TestHighPass_RemovesDC(t *testing.T) {
	t.Parallel()
	dc := make([]float32, 16000)
	for i := range dc {
		dc[i] = 0.5
	}
	out := audio.HighPass(dc, 1, 16000, 80)
	if got := tailRMS(out); got > 1e-3 {
		t.Errorf("DC residual RMS = %v, want < 1e-3", got)
	}
}

func TestLowPass_AttenuatesAboveCutoff(t *testing.T) {
	t.Parallel()
	in := sine(7500, 16000, 16000, 0.5)
	out := audio.LowPass(in, 1, 16000, 1000)
	if ratio := tailRMS(out) / tailRMS(in); ratio > 0.05 {
		t.Errorf("7.5 kHz gain through 1 kHz low-pass = %v, want < 0.05", ratio)
	}
}

func TestLowPass_PassesBelowCutoff(t *testing.T) {
	t.Parallel()
	in := sine(200, 16000, 16000, 0.5)
	out := audio.LowPass(in, 1, 16000, 6500)
	if ratio := tailRMS(out) / tailRMS(in); math.Abs(ratio-1) > 0.02 {
		t.Errorf("200 Hz gain through 6.5 kHz low-pass = %v, want ~1", ratio)
	}
}

func TestLowPass_AboveNyquistIsIdentity(t *testing.T) {
	t.Parallel()
	in := sine(440, 8000, 100, 0.5)
	out := audio.LowPass(in, 1, 8000, 6500)
	for i := range in {
		if in[i] != out[i] {
			t.Fatalf("sample %d changed: %v -> %v", i, in[i], out[i])
		}
	}
}
