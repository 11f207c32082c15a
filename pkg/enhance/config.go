package enhance

import (
	"errors"
	"fmt"
	"math"
)

// VADVariant selects the voice-activity estimator implementation.
type VADVariant string

const (
	// VADModel uses a registered vad.Engine classifier.
	VADModel VADVariant = "model"
	// VADEnergy uses the moving-RMS percentile estimator.
	VADEnergy VADVariant = "energy"
)

// IsValid reports whether v is a known variant.
func (v VADVariant) IsValid() bool {
	return v == VADModel || v == VADEnergy
}

// Weights are the coefficients of the candidate quality score.
type Weights struct {
	NSAtten float64 `yaml:"ns_atten"`
	SPKeep  float64 `yaml:"sp_keep"`
	SPCorr  float64 `yaml:"sp_corr"`
}

// Config holds every tunable of the enhancement pipeline. A Config is a plain
// value: it is copied into the Enhancer at construction and never mutated
// afterwards.
type Config struct {
	// Normalization.
	TargetSampleRate int     `yaml:"target_sample_rate"`
	TargetChannels   int     `yaml:"target_channels"`
	HighPassHz       float64 `yaml:"high_pass_hz"`
	LowPassHz        float64 `yaml:"low_pass_hz"`

	// Voice activity.
	VADVariant        VADVariant `yaml:"vad_variant"`
	VADAggressiveness int        `yaml:"vad_aggressiveness"`
	VADFrameMs        int        `yaml:"vad_frame_ms"`
	VADSmoothMs       int        `yaml:"vad_smooth_ms"`
	VADDilateMs       int        `yaml:"vad_dilate_ms"`

	// Noise profile and bypass gate.
	MinNoiseSeconds float64 `yaml:"min_noise_seconds"`
	SNRBypassDB     float64 `yaml:"snr_bypass_db"`

	// Candidates.
	PreemphasisCoef   float64 `yaml:"preemphasis_coef"`
	NRStrengthSoft    float64 `yaml:"nr_strength_soft"`
	NRStrengthBase    float64 `yaml:"nr_strength_base"`
	NRStrengthHard    float64 `yaml:"nr_strength_hard"`
	GateAttenSoft     float64 `yaml:"gate_attenuation_soft"`
	GateAttenBase     float64 `yaml:"gate_attenuation_base"`
	GateAttenHard     float64 `yaml:"gate_attenuation_hard"`
	SpeechBlendRatio  float64 `yaml:"speech_blend_ratio"`
	SpeechGain        float64 `yaml:"speech_gain"`
	ScoringWeights    Weights `yaml:"scoring_weights"`
	OutputPeakCeiling float64 `yaml:"output_peak_ceiling"`

	// StrictReduction makes Enhance return an *AlgorithmError when every
	// reduction strategy fails, instead of falling back to the bypass output.
	StrictReduction bool `yaml:"strict_reduction"`
}

// DefaultConfig returns the tuned defaults for 16 kHz speech recognition
// input.
func DefaultConfig() Config {
	return Config{
		TargetSampleRate: 16000,
		TargetChannels:   1,
		HighPassHz:       80,
		LowPassHz:        6500,

		VADVariant:        VADModel,
		VADAggressiveness: 2,
		VADFrameMs:        30,
		VADSmoothMs:       80,
		VADDilateMs:       40,

		MinNoiseSeconds: 0.5,
		SNRBypassDB:     12,

		PreemphasisCoef:  0.97,
		NRStrengthSoft:   0.55,
		NRStrengthBase:   0.60,
		NRStrengthHard:   0.80,
		GateAttenSoft:    0.45,
		GateAttenBase:    0.40,
		GateAttenHard:    0.35,
		SpeechBlendRatio: 0.70,
		SpeechGain:       1.03,
		ScoringWeights: Weights{
			NSAtten: 0.45,
			SPKeep:  0.30,
			SPCorr:  0.25,
		},
		OutputPeakCeiling: 0.98,
	}
}

// ConfigError reports one or more invalid configuration values. It is
// returned before any audio is processed.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return "enhance: invalid configuration: " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Validate checks every field and returns a *ConfigError joining all
// problems, or nil.
func (c Config) Validate() error {
	var errs []error

	if c.TargetSampleRate < 8000 {
		errs = append(errs, fmt.Errorf("target_sample_rate must be >= 8000, got %d", c.TargetSampleRate))
	}
	if c.TargetChannels != 1 {
		errs = append(errs, fmt.Errorf("target_channels must be 1, got %d", c.TargetChannels))
	}
	nyquist := float64(c.TargetSampleRate) / 2
	if c.HighPassHz < 0 || c.HighPassHz >= nyquist {
		errs = append(errs, fmt.Errorf("high_pass_hz must be in [0, %v), got %v", nyquist, c.HighPassHz))
	}
	if c.LowPassHz < 0 {
		errs = append(errs, fmt.Errorf("low_pass_hz must be non-negative, got %v", c.LowPassHz))
	}
	if c.LowPassHz > 0 && c.LowPassHz <= c.HighPassHz {
		errs = append(errs, fmt.Errorf("low_pass_hz (%v) must be above high_pass_hz (%v)", c.LowPassHz, c.HighPassHz))
	}

	if !c.VADVariant.IsValid() {
		errs = append(errs, fmt.Errorf("vad_variant %q is invalid; valid values: model, energy", c.VADVariant))
	}
	if c.VADAggressiveness < 0 || c.VADAggressiveness > 3 {
		errs = append(errs, fmt.Errorf("vad_aggressiveness must be in [0, 3], got %d", c.VADAggressiveness))
	}
	switch c.VADFrameMs {
	case 10, 20, 30:
	default:
		errs = append(errs, fmt.Errorf("vad_frame_ms must be 10, 20 or 30, got %d", c.VADFrameMs))
	}
	if c.VADSmoothMs <= 0 {
		errs = append(errs, fmt.Errorf("vad_smooth_ms must be positive, got %d", c.VADSmoothMs))
	}
	if c.VADDilateMs <= 0 {
		errs = append(errs, fmt.Errorf("vad_dilate_ms must be positive, got %d", c.VADDilateMs))
	}

	if c.MinNoiseSeconds <= 0 {
		errs = append(errs, fmt.Errorf("min_noise_seconds must be positive, got %v", c.MinNoiseSeconds))
	}
	if math.IsNaN(c.SNRBypassDB) || math.IsInf(c.SNRBypassDB, 0) {
		errs = append(errs, fmt.Errorf("snr_bypass_db must be finite, got %v", c.SNRBypassDB))
	}

	if c.PreemphasisCoef < 0 || c.PreemphasisCoef >= 1 {
		errs = append(errs, fmt.Errorf("preemphasis_coef must be in [0, 1), got %v", c.PreemphasisCoef))
	}
	for _, p := range []struct {
		name string
		v    float64
	}{
		{"nr_strength_soft", c.NRStrengthSoft},
		{"nr_strength_base", c.NRStrengthBase},
		{"nr_strength_hard", c.NRStrengthHard},
		{"gate_attenuation_soft", c.GateAttenSoft},
		{"gate_attenuation_base", c.GateAttenBase},
		{"gate_attenuation_hard", c.GateAttenHard},
		{"speech_blend_ratio", c.SpeechBlendRatio},
	} {
		if p.v < 0 || p.v > 1 || math.IsNaN(p.v) {
			errs = append(errs, fmt.Errorf("%s must be in [0, 1], got %v", p.name, p.v))
		}
	}
	if c.SpeechGain <= 0 {
		errs = append(errs, fmt.Errorf("speech_gain must be positive, got %v", c.SpeechGain))
	}

	w := c.ScoringWeights
	if w.NSAtten < 0 || w.SPKeep < 0 || w.SPCorr < 0 {
		errs = append(errs, fmt.Errorf("scoring_weights must be non-negative, got %+v", w))
	} else if sum := w.NSAtten + w.SPKeep + w.SPCorr; sum <= 0 {
		errs = append(errs, errors.New("scoring_weights must not all be zero"))
	}
	if c.OutputPeakCeiling <= 0 || c.OutputPeakCeiling > 1 {
		errs = append(errs, fmt.Errorf("output_peak_ceiling must be in (0, 1], got %v", c.OutputPeakCeiling))
	}

	if len(errs) == 0 {
		return nil
	}
	return &ConfigError{Err: errors.Join(errs...)}
}
