package spectral_test

import (
	"errors"
	"math"
	"testing"

	"github.com/MrWong99/speechgate/pkg/provider/denoise"
	"github.com/MrWong99/speechgate/pkg/provider/denoise/spectral"
)

// noise returns n samples of deterministic uniform noise in [-amp, amp].
func noise(n int, amp float64, seed uint32) []float32 {
	out := make([]float32, n)
	s := seed
	for i := range out {
		s = s*1664525 + 1013904223
		out[i] = float32(amp * (float64(s)/float64(math.MaxUint32)*2 - 1))
	}
	return out
}

func tone(n int, freq, amp float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amp * math.Sin(2*math.Pi*freq*float64(i)/16000))
	}
	return out
}

func rms(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum / float64(len(x)))
}

func newReducer(t *testing.T, opts ...spectral.Option) *spectral.Reducer {
	t.Helper()
	r, err := spectral.New(opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func TestReduce_ZeroStrengthReconstructs(t *testing.T) {
	t.Parallel()
	r := newReducer(t, spectral.WithMaskSmoothing(600, 64))
	sig := noise(10000, 0.3, 1)
	out, err := r.Reduce(denoise.Request{Signal: sig, Noise: noise(8000, 0.1, 2), SampleRate: 16000, Strength: 0})
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	if len(out) != len(sig) {
		t.Fatalf("length: got %d, want %d", len(out), len(sig))
	}
	for i := range sig {
		if math.Abs(float64(out[i]-sig[i])) > 1e-4 {
			t.Fatalf("sample %d: got %v, want %v", i, out[i], sig[i])
		}
	}
}

func TestReduce_AttenuatesNoise(t *testing.T) {
	t.Parallel()
	r := newReducer(t)
	sig := noise(16000, 0.2, 3)
	out, err := r.Reduce(denoise.Request{Signal: sig, Noise: noise(8000, 0.2, 4), SampleRate: 16000, Strength: 0.8})
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	if got, in := rms(out), rms(sig); got > 0.5*in {
		t.Errorf("noise RMS after reduction = %v, want < %v", got, 0.5*in)
	}
}

func TestReduce_KeepsToneAboveNoiseFloor(t *testing.T) {
	t.Parallel()
	r := newReducer(t)
	sig := tone(16000, 440, 0.5)
	out, err := r.Reduce(denoise.Request{Signal: sig, Noise: noise(8000, 0.01, 5), SampleRate: 16000, Strength: 0.8})
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	if ratio := rms(out) / rms(sig); ratio < 0.9 {
		t.Errorf("tone RMS ratio = %v, want >= 0.9", ratio)
	}
}

func TestReduce_Silence(t *testing.T) {
	t.Parallel()
	r := newReducer(t, spectral.WithMaskSmoothing(600, 64))
	out, err := r.Reduce(denoise.Request{
		Signal: make([]float32, 4000), Noise: make([]float32, 4000), SampleRate: 16000, Strength: 0.6,
	})
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	for i, v := range out {
		if v != 0 || math.IsNaN(float64(v)) {
			t.Fatalf("sample %d = %v, want 0", i, v)
		}
	}
}

func TestReduce_ShortSignal(t *testing.T) {
	t.Parallel()
	r := newReducer(t)
	out, err := r.Reduce(denoise.Request{Signal: noise(100, 0.1, 6), Noise: noise(4096, 0.1, 7), SampleRate: 16000, Strength: 0.5})
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	if len(out) != 100 {
		t.Errorf("length: got %d, want 100", len(out))
	}
}

func TestReduce_Errors(t *testing.T) {
	t.Parallel()
	r := newReducer(t)
	tests := []struct {
		name string
		req  denoise.Request
		want error
	}{
		{
			name: "noise shorter than frame",
			req:  denoise.Request{Signal: noise(4000, 0.1, 1), Noise: noise(1000, 0.1, 2), SampleRate: 16000, Strength: 0.5},
			want: denoise.ErrNoiseTooShort,
		},
		{
			name: "empty noise",
			req:  denoise.Request{Signal: noise(4000, 0.1, 1), SampleRate: 16000, Strength: 0.5},
			want: denoise.ErrNoiseTooShort,
		},
		{
			name: "strength above one",
			req:  denoise.Request{Signal: noise(4000, 0.1, 1), Noise: noise(4000, 0.1, 2), SampleRate: 16000, Strength: 1.5},
			want: denoise.ErrInvalidStrength,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := r.Reduce(tt.req); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestNew_InvalidOptions(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		opts []spectral.Option
	}{
		{"non power of two", []spectral.Option{spectral.WithFFTSize(1000)}},
		{"hop too large", []spectral.Option{spectral.WithFFTSize(512), spectral.WithHop(512)}},
		{"negative smoothing", []spectral.Option{spectral.WithMaskSmoothing(-1, 0)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := spectral.New(tt.opts...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestReduce_Deterministic(t *testing.T) {
	t.Parallel()
	r := newReducer(t, spectral.WithMaskSmoothing(600, 64))
	req := denoise.Request{Signal: noise(12000, 0.3, 8), Noise: noise(6000, 0.1, 9), SampleRate: 16000, Strength: 0.6}
	a, err := r.Reduce(req)
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	b, err := r.Reduce(req)
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("sample %d differs between runs: %v vs %v", i, a[i], b[i])
		}
	}
}
