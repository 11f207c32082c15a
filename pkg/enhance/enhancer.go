// Package enhance implements the self-tuning speech enhancement pipeline.
//
// An Enhancer decides, from the recording alone, whether background noise is
// worth suppressing and how hard. Each call to Enhance runs:
//
//	Normalize → voice activity → noise clip + SNR → bypass gate
//	    bypass:  Finalize(normalized)
//	    enhance: soft/base/hard candidates → score → pick best → Finalize
//
// Enhance is a pure function of its input and the immutable Config: the same
// input always produces bit-identical output, and one Enhancer may be shared
// by any number of goroutines.
package enhance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrWong99/speechgate/pkg/audio"
	"github.com/MrWong99/speechgate/pkg/provider/vad"
)

// Decision is the path an invocation took.
type Decision int

const (
	// DecisionEnhanced means a candidate was selected.
	DecisionEnhanced Decision = iota
	// DecisionBypassed means the bypass gate skipped enhancement.
	DecisionBypassed
	// DecisionFallback means every reduction strategy failed and the
	// normalized signal was returned instead.
	DecisionFallback
	// DecisionEmpty means the input was empty or entirely non-finite.
	DecisionEmpty
)

// String returns the decision name used in logs, metrics and reports.
func (d Decision) String() string {
	switch d {
	case DecisionEnhanced:
		return "enhanced"
	case DecisionBypassed:
		return "bypassed"
	case DecisionFallback:
		return "fallback"
	case DecisionEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

// Result is the outcome of one Enhance call. It is owned by the caller.
type Result struct {
	// Audio is the final mono signal at the target rate, peak ≤ 1.
	Audio audio.Buffer

	Decision     Decision
	BypassReason BypassReason

	// SNR is the estimated signal-to-noise ratio in dB.
	SNR float64

	// Mask is the smoothed and dilated voice-activity mask.
	Mask []bool

	// NoiseSamples is the length of the noise clip after backfilling.
	NoiseSamples int

	// Candidates holds the scored candidates in soft, base, hard order. Empty
	// unless Decision is DecisionEnhanced.
	Candidates []Candidate

	// Selected indexes the chosen entry of Candidates, or -1.
	Selected int

	// ReductionErr is the *AlgorithmError that caused DecisionFallback.
	ReductionErr error
}

// SelectedCandidate returns the chosen candidate, if any.
func (r *Result) SelectedCandidate() (Candidate, bool) {
	if r.Selected < 0 || r.Selected >= len(r.Candidates) {
		return Candidate{}, false
	}
	return r.Candidates[r.Selected], true
}

// Option is a functional option for configuring an Enhancer.
type Option func(*options)

type options struct {
	engine     vad.Engine
	detector   vad.SegmentDetector
	strategies []Strategy
	logger     *slog.Logger
}

// WithVADEngine supplies the classifier used when Config.VADVariant is
// "model". Without it the energy estimator is used.
func WithVADEngine(e vad.Engine) Option {
	return func(o *options) { o.engine = e }
}

// WithSegmentDetector supplies a whole-recording detector used when
// Config.VADVariant is "model". It takes precedence over WithVADEngine.
func WithSegmentDetector(d vad.SegmentDetector) Option {
	return func(o *options) { o.detector = d }
}

// WithStrategies replaces the default reduction chain. Strategies are tried in
// the given order.
func WithStrategies(s ...Strategy) Option {
	return func(o *options) { o.strategies = append([]Strategy(nil), s...) }
}

// WithLogger sets the logger for per-call debug output. Defaults to
// slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Enhancer runs the enhancement pipeline. It is immutable after New.
type Enhancer struct {
	cfg        Config
	estimator  VoiceActivityEstimator
	strategies []Strategy
	log        *slog.Logger
}

// New validates cfg and builds an Enhancer. It returns a *ConfigError when cfg
// is invalid.
func New(cfg Config, opts ...Option) (*Enhancer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.strategies == nil {
		s, err := DefaultStrategies()
		if err != nil {
			return nil, fmt.Errorf("enhance: default strategies: %w", err)
		}
		o.strategies = s
	}
	if len(o.strategies) == 0 {
		return nil, &ConfigError{Err: errors.New("at least one reduction strategy is required")}
	}

	var est VoiceActivityEstimator
	switch {
	case cfg.VADVariant == VADModel && o.detector != nil:
		est = &SegmentEstimator{Detector: o.detector}
	case cfg.VADVariant == VADModel && o.engine != nil:
		est = &ModelEstimator{Engine: o.engine, FrameMs: cfg.VADFrameMs, Aggressiveness: cfg.VADAggressiveness}
	case cfg.VADVariant == VADModel:
		o.logger.Info("no vad engine available, using energy estimator")
		est = &EnergyEstimator{FrameMs: cfg.VADFrameMs}
	default:
		est = &EnergyEstimator{FrameMs: cfg.VADFrameMs}
	}

	return &Enhancer{cfg: cfg, estimator: est, strategies: o.strategies, log: o.logger}, nil
}

// Config returns a copy of the configuration the Enhancer was built with.
func (e *Enhancer) Config() Config {
	return e.cfg
}

// Estimator returns the voice-activity estimator chosen at construction.
func (e *Enhancer) Estimator() VoiceActivityEstimator {
	return e.estimator
}

// Enhance runs the pipeline on in. Degenerate input (empty or all NaN) yields
// an empty result and a nil error. ctx is only consulted before work starts;
// a single invocation is not interruptible.
func (e *Enhancer) Enhance(ctx context.Context, in audio.Buffer) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cfg := e.cfg

	norm, err := Normalize(in, cfg)
	if err != nil {
		return nil, err
	}
	res := &Result{Audio: norm, Selected: -1}
	if norm.Empty() {
		res.Decision = DecisionEmpty
		res.Mask = []bool{}
		return res, nil
	}
	x := norm.Samples
	rate := norm.SampleRate

	raw, err := e.estimator.Estimate(x, rate)
	if err != nil {
		return nil, err
	}
	mask := smoothAndDilate(raw, rate, cfg.VADSmoothMs, cfg.VADDilateMs)
	res.Mask = mask

	need := int(cfg.MinNoiseSeconds * float64(rate))
	noise := collectNoise(x, mask, need, windowSamples(cfg.VADFrameMs, rate))
	res.NoiseSamples = len(noise)
	res.SNR = EstimateSNR(x, noise)

	res.BypassReason = decideBypass(res.SNR, len(noise), need, cfg.SNRBypassDB)
	if res.BypassReason != BypassNone {
		e.log.Debug("enhancement bypassed",
			"reason", res.BypassReason.String(), "snr_db", res.SNR, "noise_samples", len(noise))
		res.Decision = DecisionBypassed
		res.Audio = audio.Buffer{Samples: Finalize(x, cfg.OutputPeakCeiling), SampleRate: rate, Channels: 1}
		return res, nil
	}

	cands, err := generateCandidates(e.log, x, mask, noise, rate, cfg, e.strategies)
	if err != nil {
		var algErr *AlgorithmError
		if cfg.StrictReduction || !errors.As(err, &algErr) {
			return nil, err
		}
		e.log.Warn("all reduction strategies failed, returning normalized audio", "err", err)
		res.Decision = DecisionFallback
		res.ReductionErr = err
		res.Audio = audio.Buffer{Samples: Finalize(x, cfg.OutputPeakCeiling), SampleRate: rate, Channels: 1}
		return res, nil
	}

	for i := range cands {
		cands[i].Score = ScoreCandidate(x, cands[i].Samples, mask, cfg.ScoringWeights)
	}
	best := selectBest(cands)
	e.log.Debug("candidate selected",
		"strength", cands[best].Strength.String(),
		"strategy", cands[best].Strategy,
		"score", cands[best].Score.Total,
		"snr_db", res.SNR)

	res.Decision = DecisionEnhanced
	res.Candidates = cands
	res.Selected = best
	res.Audio = audio.Buffer{Samples: Finalize(cands[best].Samples, cfg.OutputPeakCeiling), SampleRate: rate, Channels: 1}
	return res, nil
}
