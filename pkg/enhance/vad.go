package enhance

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/MrWong99/speechgate/pkg/audio"
	"github.com/MrWong99/speechgate/pkg/provider/vad"
)

const (
	// energyQuantile is the RMS percentile used as the energy VAD threshold.
	energyQuantile = 0.2
	// energyFloor is the minimum energy VAD threshold, so near-silent input
	// is never classified as speech.
	energyFloor = 1e-4
)

// VoiceActivityEstimator labels every sample of a mono signal as speech
// (true) or non-speech (false). The returned mask has exactly len(samples)
// entries and has not yet been smoothed or dilated.
type VoiceActivityEstimator interface {
	Estimate(samples []float32, sampleRate int) ([]bool, error)
}

var (
	_ VoiceActivityEstimator = (*EnergyEstimator)(nil)
	_ VoiceActivityEstimator = (*ModelEstimator)(nil)
	_ VoiceActivityEstimator = (*SegmentEstimator)(nil)
)

// ---- energy -----------------------------------------------------------------

// EnergyEstimator classifies samples by their moving RMS: a sample is speech
// when the RMS of the window centred on it exceeds the 20th percentile of all
// window RMS values (and at least 1e-4).
type EnergyEstimator struct {
	// FrameMs is the RMS window length in milliseconds.
	FrameMs int
}

// Estimate implements VoiceActivityEstimator.
func (e *EnergyEstimator) Estimate(samples []float32, sampleRate int) ([]bool, error) {
	if len(samples) == 0 {
		return []bool{}, nil
	}
	r := movingRMS(samples, windowSamples(e.FrameMs, sampleRate))
	thr := math.Max(quantile(r, energyQuantile), energyFloor)
	mask := make([]bool, len(samples))
	for i, v := range r {
		mask[i] = v > thr
	}
	return mask, nil
}

// ---- model ------------------------------------------------------------------

// ModelEstimator classifies fixed-length frames with a vad.Engine. Each call
// opens its own session, so one ModelEstimator may serve concurrent callers.
type ModelEstimator struct {
	Engine         vad.Engine
	FrameMs        int
	Aggressiveness int
}

// Estimate implements VoiceActivityEstimator. Every sample of a frame takes
// the frame's decision; a trailing partial frame takes the decision of the
// last full frame (non-speech when there is none).
func (m *ModelEstimator) Estimate(samples []float32, sampleRate int) ([]bool, error) {
	mask := make([]bool, len(samples))
	if len(samples) == 0 {
		return mask, nil
	}
	cfg := vad.Config{SampleRate: sampleRate, FrameSizeMs: m.FrameMs, Aggressiveness: m.Aggressiveness}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sess, err := m.Engine.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("enhance: open vad session: %w", err)
	}
	defer sess.Close()

	frame := sampleRate * m.FrameMs / 1000
	last := false
	i := 0
	for ; i+frame <= len(samples); i += frame {
		ev, err := sess.ProcessFrame(audio.Float32ToPCM16(samples[i : i+frame]))
		if err != nil {
			return nil, fmt.Errorf("enhance: vad frame at sample %d: %w", i, err)
		}
		last = ev.IsSpeech()
		for j := i; j < i+frame; j++ {
			mask[j] = last
		}
	}
	for j := i; j < len(samples); j++ {
		mask[j] = last
	}
	return mask, nil
}

// SegmentEstimator marks the spans reported by a whole-recording detector as
// speech.
type SegmentEstimator struct {
	Detector vad.SegmentDetector
}

// Estimate implements VoiceActivityEstimator.
func (s *SegmentEstimator) Estimate(samples []float32, sampleRate int) ([]bool, error) {
	mask := make([]bool, len(samples))
	if len(samples) == 0 {
		return mask, nil
	}
	segs, err := s.Detector.DetectSegments(samples, sampleRate)
	if err != nil {
		return nil, fmt.Errorf("enhance: detect speech segments: %w", err)
	}
	for _, seg := range segs {
		lo := offsetSamples(seg.Start, sampleRate, len(samples))
		hi := len(samples)
		if seg.End > seg.Start {
			hi = offsetSamples(seg.End, sampleRate, len(samples))
		}
		for i := lo; i < hi; i++ {
			mask[i] = true
		}
	}
	return mask, nil
}

func offsetSamples(d time.Duration, sampleRate, n int) int {
	i := int(d.Seconds() * float64(sampleRate))
	return max(0, min(i, n))
}

// ---- post-processing --------------------------------------------------------

// smoothAndDilate removes short speech flickers and then widens the remaining
// speech regions. A sample stays speech when at least half of the smoothMs
// window centred on it is speech; afterwards every sample within the dilateMs
// window of a speech sample becomes speech.
func smoothAndDilate(mask []bool, sampleRate, smoothMs, dilateMs int) []bool {
	if len(mask) == 0 {
		return mask
	}
	x := make([]float64, len(mask))
	for i, v := range mask {
		if v {
			x[i] = 1
		}
	}

	k1 := windowSamples(smoothMs, sampleRate)
	sm := movingSum(x, k1)
	half := 0.5 * float64(k1)
	for i := range x {
		if sm[i] >= half {
			x[i] = 1
		} else {
			x[i] = 0
		}
	}

	k2 := windowSamples(dilateMs, sampleRate)
	dl := movingSum(x, k2)
	out := make([]bool, len(mask))
	for i, v := range dl {
		out[i] = v > 0.5
	}
	return out
}

// ---- helpers ----------------------------------------------------------------

// windowSamples converts a duration in milliseconds to a sample count of at
// least one.
func windowSamples(ms, sampleRate int) int {
	n := sampleRate * ms / 1000
	if n < 1 {
		return 1
	}
	return n
}

// movingSum returns, for every index, the sum of the length-k window aligned
// like numpy.convolve(x, ones(k), "same"): indices [i-k/2, i+(k-1)/2],
// clipped to the signal.
func movingSum(x []float64, k int) []float64 {
	prefix := make([]float64, len(x)+1)
	for i, v := range x {
		prefix[i+1] = prefix[i] + v
	}
	out := make([]float64, len(x))
	for i := range x {
		lo := i - k/2
		hi := i + (k-1)/2
		if lo < 0 {
			lo = 0
		}
		if hi > len(x)-1 {
			hi = len(x) - 1
		}
		out[i] = prefix[hi+1] - prefix[lo]
	}
	return out
}

// movingRMS returns sqrt(windowed mean of x² + 1e-12) for every sample, with
// the window aligned like movingSum and the mean always taken over k.
func movingRMS(x []float32, k int) []float64 {
	sq := make([]float64, len(x))
	for i, v := range x {
		sq[i] = float64(v) * float64(v)
	}
	s := movingSum(sq, k)
	for i, v := range s {
		if v < 0 {
			v = 0
		}
		s[i] = math.Sqrt(v/float64(k) + 1e-12)
	}
	return s
}

// quantile returns the q-th quantile of x using linear interpolation between
// order statistics.
func quantile(x []float64, q float64) float64 {
	if len(x) == 0 {
		return 0
	}
	sorted := make([]float64, len(x))
	copy(sorted, x)
	sort.Float64s(sorted)
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
