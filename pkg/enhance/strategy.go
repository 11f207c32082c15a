package enhance

import (
	"fmt"
	"log/slog"

	"github.com/MrWong99/speechgate/pkg/provider/denoise"
	"github.com/MrWong99/speechgate/pkg/provider/denoise/spectral"
	"github.com/MrWong99/speechgate/pkg/provider/denoise/subtract"
)

// Strategy is a named reduction primitive in the fallback chain.
type Strategy struct {
	Name    string
	Reducer denoise.Reducer
}

// DefaultStrategies returns the built-in reduction chain, in priority order:
// smoothed spectral gating, unsmoothed spectral gating, and short-frame
// spectral subtraction for recordings whose noise clip is too short for a
// 2048-sample frame.
func DefaultStrategies() ([]Strategy, error) {
	smoothed, err := spectral.New(
		spectral.WithFFTSize(2048),
		spectral.WithHop(512),
		spectral.WithMaskSmoothing(600, 64),
	)
	if err != nil {
		return nil, err
	}
	plain, err := spectral.New(spectral.WithFFTSize(2048), spectral.WithHop(512))
	if err != nil {
		return nil, err
	}
	short, err := subtract.New(subtract.WithFFTSize(512), subtract.WithHop(128))
	if err != nil {
		return nil, err
	}
	return []Strategy{
		{Name: "spectral", Reducer: smoothed},
		{Name: "spectral-unsmoothed", Reducer: plain},
		{Name: "subtract-short", Reducer: short},
	}, nil
}

// reduceWithFallback tries each strategy in order and returns the first
// successful output together with the attempts that failed before it.
// Strategies hold no state, so unlike a circuit-breaker group every call
// starts from the top of the list. When all strategies fail, the returned
// *AlgorithmError carries every attempt.
func reduceWithFallback(log *slog.Logger, strategies []Strategy, strength Strength, req denoise.Request) ([]float32, string, []Attempt, error) {
	var attempts []Attempt
	for _, s := range strategies {
		out, err := s.Reducer.Reduce(req)
		if err == nil && len(out) != len(req.Signal) {
			err = fmt.Errorf("returned %d samples for a %d-sample signal", len(out), len(req.Signal))
		}
		if err == nil {
			return out, s.Name, attempts, nil
		}
		attempts = append(attempts, Attempt{Strategy: s.Name, Strength: strength, Err: err})
		log.Debug("reduction strategy failed, trying next",
			"strategy", s.Name, "strength", strength.String(), "err", err)
	}
	return nil, "", nil, &AlgorithmError{Strength: strength, Attempts: attempts}
}
