package enhance

import (
	"log/slog"

	"github.com/MrWong99/speechgate/pkg/provider/denoise"
)

// Strength identifies one of the three candidate reduction levels.
type Strength int

const (
	StrengthSoft Strength = iota
	StrengthBase
	StrengthHard
)

// strengths is the candidate generation order. Selection ties resolve to the
// earliest entry.
var strengths = [...]Strength{StrengthSoft, StrengthBase, StrengthHard}

// String returns "soft", "base" or "hard".
func (s Strength) String() string {
	switch s {
	case StrengthSoft:
		return "soft"
	case StrengthBase:
		return "base"
	case StrengthHard:
		return "hard"
	default:
		return "unknown"
	}
}

// reduction returns the reducer strength and non-speech gate attenuation
// configured for s.
func (s Strength) reduction(cfg Config) (strength, gate float64) {
	switch s {
	case StrengthSoft:
		return cfg.NRStrengthSoft, cfg.GateAttenSoft
	case StrengthBase:
		return cfg.NRStrengthBase, cfg.GateAttenBase
	default:
		return cfg.NRStrengthHard, cfg.GateAttenHard
	}
}

// Candidate is one enhanced rendition of the signal.
type Candidate struct {
	Strength Strength
	// Strategy names the reduction strategy that produced the candidate.
	Strategy string
	// Failed lists the strategies that failed before Strategy succeeded.
	Failed  []Attempt
	Samples []float32
	Score   Score
}

// PreEmphasis applies y[n] = x[n] − coef·x[n−1] with y[0] = x[0].
func PreEmphasis(x []float32, coef float64) []float32 {
	y := make([]float32, len(x))
	if len(x) == 0 {
		return y
	}
	y[0] = x[0]
	for n := 1; n < len(x); n++ {
		y[n] = float32(float64(x[n]) - coef*float64(x[n-1]))
	}
	return y
}

// generateCandidates produces the soft, base and hard candidates, in that
// order. The reducer sees the pre-emphasized signal; speech regions are then
// blended back with the original.
func generateCandidates(log *slog.Logger, x []float32, mask []bool, noise []float32, sampleRate int, cfg Config, strategies []Strategy) ([]Candidate, error) {
	emph := PreEmphasis(x, cfg.PreemphasisCoef)
	out := make([]Candidate, 0, len(strengths))
	for _, s := range strengths {
		strength, gate := s.reduction(cfg)
		den, name, failed, err := reduceWithFallback(log, strategies, s, denoise.Request{
			Signal:     emph,
			Noise:      noise,
			SampleRate: sampleRate,
			Strength:   strength,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, Candidate{
			Strength: s,
			Strategy: name,
			Failed:   failed,
			Samples:  mix(x, den, mask, gate, cfg.SpeechBlendRatio, cfg.SpeechGain),
		})
	}
	return out, nil
}

// mix combines the reduced signal den with the original x. Non-speech samples
// are den scaled by gate; speech samples are (blend·den + (1−blend)·x)·gain.
func mix(x, den []float32, mask []bool, gate, blend, gain float64) []float32 {
	out := make([]float32, len(x))
	for i := range x {
		if mask[i] {
			out[i] = float32((blend*float64(den[i]) + (1-blend)*float64(x[i])) * gain)
		} else {
			out[i] = float32(float64(den[i]) * gate)
		}
	}
	return out
}
