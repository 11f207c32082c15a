// Package config provides the configuration schema, loader, and provider
// registry for speechgate.
package config

import (
	"runtime"
	"time"

	"github.com/MrWong99/speechgate/pkg/enhance"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// ReducerKind selects the reduction primitive behind a denoise strategy.
type ReducerKind string

const (
	// ReducerSpectral is spectral gating against a noise-clip threshold.
	ReducerSpectral ReducerKind = "spectral"

	// ReducerSubtract is magnitude spectral subtraction.
	ReducerSubtract ReducerKind = "subtract"
)

// IsValid reports whether k is a recognised reducer kind.
func (k ReducerKind) IsValid() bool {
	return k == ReducerSpectral || k == ReducerSubtract
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader];
// keys omitted from the file keep the values from [Default].
type Config struct {
	LogLevel LogLevel `yaml:"log_level"`

	// Enhance is the enhancement engine configuration.
	Enhance enhance.Config `yaml:"enhance"`

	// VAD selects the model-based voice activity backend used when
	// enhance.vad_variant is "model". An empty name or "energy" keeps the
	// built-in energy detector.
	VAD ProviderEntry `yaml:"vad"`

	Denoise DenoiseConfig `yaml:"denoise"`

	// Transcribers lists recognition backends in priority order. The first
	// healthy one handles each request.
	Transcribers []ProviderEntry `yaml:"transcribers"`

	// TranscriberBreaker tunes the circuit breaker in front of each
	// transcriber.
	TranscriberBreaker BreakerConfig `yaml:"transcriber_breaker"`

	Batch      BatchConfig      `yaml:"batch"`
	Evaluation EvaluationConfig `yaml:"evaluation"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "whisper", "silero").
	Name string `yaml:"name"`

	// Label distinguishes several entries with the same Name in logs, metrics
	// and the report. Defaults to Name.
	Label string `yaml:"label"`

	// BaseURL is the endpoint of server-backed providers.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider.
	Model string `yaml:"model"`

	// ModelPath is the local model file of embedded providers.
	ModelPath string `yaml:"model_path"`

	// Language is the recognition language code (e.g., "ko"). Empty means
	// provider default.
	Language string `yaml:"language"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above.
	Options map[string]any `yaml:"options"`
}

// DisplayName returns Label, or Name when no label is set.
func (p ProviderEntry) DisplayName() string {
	if p.Label != "" {
		return p.Label
	}
	return p.Name
}

// DenoiseConfig overrides the reduction strategy chain.
type DenoiseConfig struct {
	// Strategies replaces the built-in chain when non-empty. Strategies are
	// tried in order for every candidate; the first success wins.
	Strategies []StrategyConfig `yaml:"strategies"`
}

// StrategyConfig describes one reduction strategy. Zero numeric fields keep
// the reducer's own defaults.
type StrategyConfig struct {
	Name string      `yaml:"name"`
	Kind ReducerKind `yaml:"kind"`

	FFTSize int     `yaml:"fft_size"`
	Hop     int     `yaml:"hop"`
	NStd    float64 `yaml:"n_std"`

	// FreqSmoothHz and TimeSmoothMs enable mask smoothing for spectral
	// gating when both are positive.
	FreqSmoothHz float64 `yaml:"freq_smooth_hz"`
	TimeSmoothMs float64 `yaml:"time_smooth_ms"`

	// OverSubtraction scales the noise estimate for spectral subtraction.
	OverSubtraction float64 `yaml:"over_subtraction"`
}

// BreakerConfig tunes a circuit breaker.
type BreakerConfig struct {
	MaxFailures int           `yaml:"max_failures"`
	Cooldown    time.Duration `yaml:"cooldown"`
	Probes      int           `yaml:"probes"`
}

// BatchConfig controls the batch runner.
type BatchConfig struct {
	// Workers is the number of recordings processed concurrently. Zero means
	// GOMAXPROCS.
	Workers int `yaml:"workers"`

	// OutputDir receives the <stem>_enhanced.wav files.
	OutputDir string `yaml:"output_dir"`

	// ReportPath is the CSV report file. Empty disables the report.
	ReportPath string `yaml:"report_path"`

	WriteAudio bool `yaml:"write_audio"`

	// TranscribeOriginal also transcribes the unprocessed recording so the
	// report can compare both.
	TranscribeOriginal bool `yaml:"transcribe_original"`
}

// EvaluationConfig controls keyword scoring of transcripts.
type EvaluationConfig struct {
	// GroundTruthCSV maps recordings to expected keywords. Empty disables
	// evaluation.
	GroundTruthCSV string `yaml:"ground_truth_csv"`
	FileColumn     string `yaml:"file_column"`
	KeywordColumn  string `yaml:"keyword_column"`

	// Aliases lists alternative spellings per keyword.
	Aliases map[string][]string `yaml:"aliases"`

	FuzzyThreshold    float64 `yaml:"fuzzy_threshold"`
	PhoneticThreshold float64 `yaml:"phonetic_threshold"`
	MinTokenRecall    float64 `yaml:"min_token_recall"`
	TrigramThreshold  float64 `yaml:"trigram_threshold"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	// ListenAddr serves /metrics when non-empty (e.g., ":9090").
	ListenAddr string `yaml:"listen_addr"`
}

// Default returns the configuration used for keys absent from a config file.
func Default() Config {
	return Config{
		LogLevel: LogInfo,
		Enhance:  enhance.DefaultConfig(),
		TranscriberBreaker: BreakerConfig{
			MaxFailures: 3,
			Cooldown:    30 * time.Second,
			Probes:      1,
		},
		Batch: BatchConfig{
			Workers:    runtime.GOMAXPROCS(0),
			OutputDir:  "enhanced",
			ReportPath: "report.csv",
			WriteAudio: true,
		},
		Evaluation: EvaluationConfig{
			FuzzyThreshold:    0.84,
			PhoneticThreshold: 0.70,
			MinTokenRecall:    0.5,
			TrigramThreshold:  0.16,
		},
	}
}
