package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/MrWong99/speechgate/internal/config"
	"github.com/MrWong99/speechgate/internal/observe"
	"github.com/MrWong99/speechgate/internal/resilience"
	"github.com/MrWong99/speechgate/pkg/enhance"
	"github.com/MrWong99/speechgate/pkg/provider/denoise"
	"github.com/MrWong99/speechgate/pkg/provider/denoise/spectral"
	"github.com/MrWong99/speechgate/pkg/provider/denoise/subtract"
	"github.com/MrWong99/speechgate/pkg/provider/stt"
	"github.com/MrWong99/speechgate/pkg/provider/stt/whisper"
	"github.com/MrWong99/speechgate/pkg/provider/vad"
	"github.com/MrWong99/speechgate/pkg/provider/vad/silero"
	"github.com/MrWong99/speechgate/pkg/provider/vad/webrtc"
)

// ── Provider wiring ───────────────────────────────────────────────────────────

// builtinProviders maps provider categories to the implementations that ship
// with speechgate. Used for startup logging.
var builtinProviders = map[string][]string{
	"vad":     {"webrtc", "silero"},
	"stt":     {"whisper", "whisper-native"},
	"reducer": {string(config.ReducerSpectral), string(config.ReducerSubtract)},
}

// registerBuiltinProviders wires all built-in provider factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// ── VAD ───────────────────────────────────────────────────────────────────

	// Aggressiveness reaches each session from enhance.vad_aggressiveness.
	reg.RegisterVAD("webrtc", func(config.ProviderEntry) (vad.Engine, error) {
		return webrtc.New(), nil
	})

	reg.RegisterSegmentVAD("silero", func(entry config.ProviderEntry) (vad.SegmentDetector, error) {
		var opts []silero.Option
		if v, ok := optFloat(entry.Options, "threshold"); ok {
			opts = append(opts, silero.WithThreshold(float32(v)))
		}
		if v, ok := optFloat(entry.Options, "min_silence_ms"); ok {
			opts = append(opts, silero.WithMinSilence(time.Duration(v*float64(time.Millisecond))))
		}
		if v, ok := optFloat(entry.Options, "speech_pad_ms"); ok {
			opts = append(opts, silero.WithSpeechPad(time.Duration(v*float64(time.Millisecond))))
		}
		if v, ok := optFloat(entry.Options, "sample_rate"); ok {
			opts = append(opts, silero.WithSampleRate(int(v)))
		}
		return silero.New(entry.ModelPath, opts...)
	})

	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := language(entry); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterSTT("whisper-native", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		modelPath := entry.ModelPath
		if modelPath == "" {
			modelPath = optString(entry.Options, "model_path")
		}
		var opts []whisper.NativeOption
		if lang := language(entry); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		return whisper.NewNative(modelPath, opts...)
	})

	// ── Reducers ──────────────────────────────────────────────────────────────

	reg.RegisterReducer(config.ReducerSpectral, func(s config.StrategyConfig) (denoise.Reducer, error) {
		var opts []spectral.Option
		if s.FFTSize > 0 {
			opts = append(opts, spectral.WithFFTSize(s.FFTSize))
		}
		if s.Hop > 0 {
			opts = append(opts, spectral.WithHop(s.Hop))
		}
		if s.NStd > 0 {
			opts = append(opts, spectral.WithNStd(s.NStd))
		}
		if s.FreqSmoothHz > 0 && s.TimeSmoothMs > 0 {
			opts = append(opts, spectral.WithMaskSmoothing(s.FreqSmoothHz, s.TimeSmoothMs))
		}
		return spectral.New(opts...)
	})

	reg.RegisterReducer(config.ReducerSubtract, func(s config.StrategyConfig) (denoise.Reducer, error) {
		var opts []subtract.Option
		if s.FFTSize > 0 {
			opts = append(opts, subtract.WithFFTSize(s.FFTSize))
		}
		if s.Hop > 0 {
			opts = append(opts, subtract.WithHop(s.Hop))
		}
		if s.OverSubtraction > 0 {
			opts = append(opts, subtract.WithOverSubtraction(s.OverSubtraction))
		}
		return subtract.New(opts...)
	})

	for kind, names := range builtinProviders {
		for _, name := range names {
			slog.Debug("registered provider", "kind", kind, "name", name)
		}
	}
}

// Providers holds everything built from the provider sections of the config.
type Providers struct {
	// EnhanceOptions carries the VAD backend and strategy chain into
	// enhance.New.
	EnhanceOptions []enhance.Option
	Strategies     []enhance.Strategy

	// Transcriber is nil when no transcriber is configured.
	Transcriber      *resilience.TranscriberChain
	TranscriberNames []string

	closers []io.Closer
}

// TranscriberStates reports the breaker state of each transcriber. It is
// empty when none is configured.
func (p *Providers) TranscriberStates() map[string]resilience.State {
	if p.Transcriber == nil {
		return nil
	}
	return p.Transcriber.States()
}

// Close releases model-backed providers.
func (p *Providers) Close() {
	for _, c := range p.closers {
		if err := c.Close(); err != nil {
			slog.Warn("provider close error", "err", err)
		}
	}
	p.closers = nil
}

func (p *Providers) track(v any) {
	if c, ok := v.(io.Closer); ok {
		p.closers = append(p.closers, c)
	}
}

// buildProviders instantiates all providers named in cfg using the registry.
func buildProviders(cfg *config.Config, reg *config.Registry, m *observe.Metrics) (_ *Providers, err error) {
	ps := &Providers{}
	defer func() {
		if err != nil {
			ps.Close()
		}
	}()

	if err = buildVAD(cfg, reg, ps); err != nil {
		return nil, err
	}
	if err = buildStrategies(cfg, reg, ps); err != nil {
		return nil, err
	}
	if err = buildTranscribers(cfg, reg, ps, m); err != nil {
		return nil, err
	}
	return ps, nil
}

func buildVAD(cfg *config.Config, reg *config.Registry, ps *Providers) error {
	name := cfg.VAD.Name
	if name == "" || name == "energy" || cfg.Enhance.VADVariant != enhance.VADModel {
		return nil
	}
	if reg.HasSegmentVAD(name) {
		d, err := reg.CreateSegmentVAD(cfg.VAD)
		if err != nil {
			return fmt.Errorf("create vad provider %q: %w", name, err)
		}
		ps.track(d)
		ps.EnhanceOptions = append(ps.EnhanceOptions, enhance.WithSegmentDetector(d))
		slog.Info("provider created", "kind", "vad", "name", name)
		return nil
	}
	e, err := reg.CreateVAD(cfg.VAD)
	if errors.Is(err, config.ErrProviderNotRegistered) {
		slog.Warn("vad provider not available, using the energy detector", "name", name)
		return nil
	}
	if err != nil {
		return fmt.Errorf("create vad provider %q: %w", name, err)
	}
	ps.track(e)
	ps.EnhanceOptions = append(ps.EnhanceOptions, enhance.WithVADEngine(e))
	slog.Info("provider created", "kind", "vad", "name", name)
	return nil
}

func buildStrategies(cfg *config.Config, reg *config.Registry, ps *Providers) error {
	if len(cfg.Denoise.Strategies) == 0 {
		s, err := enhance.DefaultStrategies()
		if err != nil {
			return fmt.Errorf("create default strategies: %w", err)
		}
		ps.Strategies = s
		return nil
	}
	for _, sc := range cfg.Denoise.Strategies {
		r, err := reg.CreateReducer(sc)
		if err != nil {
			return fmt.Errorf("create strategy %q: %w", sc.Name, err)
		}
		ps.Strategies = append(ps.Strategies, enhance.Strategy{Name: sc.Name, Reducer: r})
		slog.Info("strategy created", "name", sc.Name, "kind", sc.Kind)
	}
	ps.EnhanceOptions = append(ps.EnhanceOptions, enhance.WithStrategies(ps.Strategies...))
	return nil
}

func buildTranscribers(cfg *config.Config, reg *config.Registry, ps *Providers, m *observe.Metrics) error {
	if len(cfg.Transcribers) == 0 {
		return nil
	}
	chain := resilience.NewTranscriberChain()
	bc := cfg.TranscriberBreaker
	for _, entry := range cfg.Transcribers {
		name := entry.DisplayName()
		tr, err := reg.CreateSTT(entry)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Warn("transcriber not available, skipping", "name", entry.Name, "label", name)
			continue
		}
		if err != nil {
			return fmt.Errorf("create stt provider %q: %w", name, err)
		}
		ps.track(tr)
		chain.Add(name, tr, resilience.BreakerConfig{
			Name:        name,
			MaxFailures: bc.MaxFailures,
			Cooldown:    bc.Cooldown,
			Probes:      bc.Probes,
			OnStateChange: func(breaker string, from, to resilience.State) {
				m.RecordBreakerTransition(context.Background(), breaker, from.String(), to.String())
			},
		})
		ps.TranscriberNames = append(ps.TranscriberNames, name)
		slog.Info("provider created", "kind", "stt", "name", entry.Name, "label", name)
	}
	if chain.Len() > 0 {
		ps.Transcriber = chain
	}
	return nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// language returns the entry's language, falling back to options.language.
func language(entry config.ProviderEntry) string {
	if entry.Language != "" {
		return entry.Language
	}
	return optString(entry.Options, "language")
}

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}

// optFloat extracts a numeric value from a provider Options map. YAML decodes
// integers as int and decimals as float64; both are accepted.
func optFloat(opts map[string]any, key string) (float64, bool) {
	switch v := opts[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}
