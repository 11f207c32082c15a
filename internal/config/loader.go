package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/speechgate/pkg/enhance"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"vad": {"energy", "webrtc", "silero"},
	"stt": {"whisper", "whisper-native"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r over [Default] and validates
// the result. An empty document yields the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found. Problems
// in the enhance section unwrap to an [*enhance.ConfigError].
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	if err := cfg.Enhance.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("enhance: %w", err))
	}

	// VAD ↔ enhance.vad_variant
	validateProviderName("vad", cfg.VAD.Name)
	modelVAD := cfg.VAD.Name != "" && cfg.VAD.Name != "energy"
	switch {
	case modelVAD && cfg.Enhance.VADVariant != enhance.VADModel:
		slog.Warn("vad provider is configured but enhance.vad_variant is not model; it will be ignored",
			"vad", cfg.VAD.Name, "vad_variant", cfg.Enhance.VADVariant)
	case !modelVAD && cfg.Enhance.VADVariant == enhance.VADModel:
		slog.Warn("enhance.vad_variant is model but no vad provider is configured; using the energy detector")
	}
	if cfg.VAD.Name == "silero" && cfg.VAD.ModelPath == "" {
		errs = append(errs, errors.New("vad.model_path is required for silero"))
	}

	// Denoise strategies
	strategyNames := make(map[string]int, len(cfg.Denoise.Strategies))
	for i, s := range cfg.Denoise.Strategies {
		prefix := fmt.Sprintf("denoise.strategies[%d]", i)
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		} else {
			if prev, ok := strategyNames[s.Name]; ok {
				errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of denoise.strategies[%d]", prefix, s.Name, prev))
			}
			strategyNames[s.Name] = i
		}
		if !s.Kind.IsValid() {
			errs = append(errs, fmt.Errorf("%s.kind %q is invalid; valid values: spectral, subtract", prefix, s.Kind))
		}
		if s.FFTSize < 0 || s.Hop < 0 || s.NStd < 0 || s.FreqSmoothHz < 0 || s.TimeSmoothMs < 0 || s.OverSubtraction < 0 {
			errs = append(errs, fmt.Errorf("%s: numeric fields must not be negative", prefix))
		}
		if s.FFTSize > 0 && s.Hop > s.FFTSize {
			errs = append(errs, fmt.Errorf("%s.hop %d exceeds fft_size %d", prefix, s.Hop, s.FFTSize))
		}
	}

	// Transcribers
	labels := make(map[string]int, len(cfg.Transcribers))
	for i, t := range cfg.Transcribers {
		prefix := fmt.Sprintf("transcribers[%d]", i)
		if t.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		validateProviderName("stt", t.Name)
		if prev, ok := labels[t.DisplayName()]; ok {
			errs = append(errs, fmt.Errorf("%s label %q is a duplicate of transcribers[%d]; set a distinct label", prefix, t.DisplayName(), prev))
		}
		labels[t.DisplayName()] = i
		switch t.Name {
		case "whisper":
			if t.BaseURL == "" {
				errs = append(errs, fmt.Errorf("%s.base_url is required for whisper", prefix))
			}
		case "whisper-native":
			if t.ModelPath == "" {
				errs = append(errs, fmt.Errorf("%s.model_path is required for whisper-native", prefix))
			}
		}
	}
	b := cfg.TranscriberBreaker
	if b.MaxFailures < 0 || b.Cooldown < 0 || b.Probes < 0 {
		errs = append(errs, errors.New("transcriber_breaker: values must not be negative"))
	}

	// Batch
	if cfg.Batch.Workers < 0 {
		errs = append(errs, fmt.Errorf("batch.workers %d must not be negative", cfg.Batch.Workers))
	}
	if cfg.Batch.WriteAudio && cfg.Batch.OutputDir == "" {
		errs = append(errs, errors.New("batch.output_dir is required when batch.write_audio is true"))
	}
	if cfg.Batch.TranscribeOriginal && len(cfg.Transcribers) == 0 {
		slog.Warn("batch.transcribe_original is set but no transcribers are configured")
	}

	// Evaluation
	ev := cfg.Evaluation
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"fuzzy_threshold", ev.FuzzyThreshold},
		{"phonetic_threshold", ev.PhoneticThreshold},
		{"min_token_recall", ev.MinTokenRecall},
		{"trigram_threshold", ev.TrigramThreshold},
	} {
		if f.v < 0 || f.v > 1 {
			errs = append(errs, fmt.Errorf("evaluation.%s %.2f is out of range [0, 1]", f.name, f.v))
		}
	}
	if ev.GroundTruthCSV != "" && len(cfg.Transcribers) == 0 {
		slog.Warn("evaluation.ground_truth_csv is set but no transcribers are configured; keywords will not be scored")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
