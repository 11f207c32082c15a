package enhance

import (
	"math"
	"testing"
)

var defaultWeights = Weights{NSAtten: 0.45, SPKeep: 0.30, SPCorr: 0.25}

func TestScoreCandidate_Identity(t *testing.T) {
	t.Parallel()
	x := []float32{0.5, -0.5, 0.4, -0.4, 0.05, -0.05, 0.04, -0.04}
	mask := []bool{true, true, true, true, false, false, false, false}
	s := ScoreCandidate(x, x, mask, defaultWeights)
	if math.Abs(s.NSAtten) > 1e-6 {
		t.Errorf("NSAtten = %v, want 0", s.NSAtten)
	}
	if math.Abs(s.SPKeep-1) > 1e-6 {
		t.Errorf("SPKeep = %v, want 1", s.SPKeep)
	}
	if math.Abs(s.SPCorr-1) > 1e-6 {
		t.Errorf("SPCorr = %v, want 1", s.SPCorr)
	}
	if want := 0.30 + 0.25; math.Abs(s.Total-want) > 1e-6 {
		t.Errorf("Total = %v, want %v", s.Total, want)
	}
}

func TestScoreCandidate_SilencedNoise(t *testing.T) {
	t.Parallel()
	x := []float32{0.5, -0.5, 0.4, -0.4, 0.05, -0.05, 0.04, -0.04}
	c := []float32{0.5, -0.5, 0.4, -0.4, 0, 0, 0, 0}
	mask := []bool{true, true, true, true, false, false, false, false}
	s := ScoreCandidate(x, c, mask, defaultWeights)
	if s.NSAtten < 0.99 {
		t.Errorf("NSAtten = %v, want ~1", s.NSAtten)
	}
	if math.Abs(s.Total-1) > 1e-3 {
		t.Errorf("Total = %v, want ~1", s.Total)
	}
}

func TestScoreCandidate_BoundedComponents(t *testing.T) {
	t.Parallel()
	x := []float32{0.1, -0.1, 0.1, -0.1}
	// Tripled speech and louder noise both push raw ratios out of range.
	c := []float32{0.9, -0.9, 0.5, -0.5}
	mask := []bool{true, true, false, false}
	s := ScoreCandidate(x, c, mask, defaultWeights)
	if s.SPKeep != 0 {
		t.Errorf("SPKeep = %v, want 0 when speech RMS changes by more than 100%%", s.SPKeep)
	}
	if s.NSAtten > 0 {
		t.Errorf("NSAtten = %v, want negative for amplified noise", s.NSAtten)
	}
	if s.SPCorr < 0 || s.SPCorr > 1 {
		t.Errorf("SPCorr = %v, want in [0, 1]", s.SPCorr)
	}
}

func TestScoreCandidate_EmptyRegions(t *testing.T) {
	t.Parallel()
	x := make([]float32, 8)
	s := ScoreCandidate(x, x, make([]bool, 8), defaultWeights)
	for name, v := range map[string]float64{"ns": s.NSAtten, "keep": s.SPKeep, "corr": s.SPCorr, "total": s.Total} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("%s = %v, want finite", name, v)
		}
	}
	if s.SPCorr != 0.5 {
		t.Errorf("SPCorr with no speech = %v, want 0.5", s.SPCorr)
	}
}

func TestSelectBest_FirstMaximumWins(t *testing.T) {
	t.Parallel()
	cands := []Candidate{
		{Strength: StrengthSoft, Score: Score{Total: 0.7}},
		{Strength: StrengthBase, Score: Score{Total: 0.9}},
		{Strength: StrengthHard, Score: Score{Total: 0.9}},
	}
	if got := selectBest(cands); got != 1 {
		t.Errorf("selectBest = %d, want 1", got)
	}
}

func TestFinalize(t *testing.T) {
	t.Parallel()
	got := Finalize([]float32{2, -0.5, 0.25}, 0.98)
	want := []float32{0.98, -0.49, 0.245}
	for i := range want {
		if math.Abs(float64(got[i]-want[i])) > 1e-6 {
			t.Errorf("sample %d: got %v, want %v", i, got[i], want[i])
		}
	}

	silent := Finalize(make([]float32, 4), 0.98)
	for i, v := range silent {
		if v != 0 {
			t.Errorf("silent sample %d = %v, want 0", i, v)
		}
	}
}

func TestPreEmphasis(t *testing.T) {
	t.Parallel()
	got := PreEmphasis([]float32{1, 1, 0, 0.5}, 0.97)
	want := []float32{1, 0.03, -0.97, 0.5}
	for i := range want {
		if math.Abs(float64(got[i]-want[i])) > 1e-6 {
			t.Errorf("sample %d: got %v, want %v", i, got[i], want[i])
		}
	}
	if len(PreEmphasis(nil, 0.97)) != 0 {
		t.Error("empty input must give empty output")
	}
}

func TestMix(t *testing.T) {
	t.Parallel()
	x := []float32{1, 1}
	den := []float32{0.5, 0.5}
	got := mix(x, den, []bool{true, false}, 0.4, 0.7, 1.03)
	want := []float32{(0.7*0.5 + 0.3*1) * 1.03, 0.5 * 0.4}
	for i := range want {
		if math.Abs(float64(got[i]-want[i])) > 1e-6 {
			t.Errorf("sample %d: got %v, want %v", i, got[i], want[i])
		}
	}
}
