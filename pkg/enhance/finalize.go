package enhance

// selectBest returns the index of the highest-scoring candidate. The first
// maximum wins, so ties favour the softer candidate.
func selectBest(cands []Candidate) int {
	best := 0
	for i := 1; i < len(cands); i++ {
		if cands[i].Score.Total > cands[best].Score.Total {
			best = i
		}
	}
	return best
}

// Finalize clips x to [-1, 1] and, if the result is not silent, rescales it
// so its absolute peak equals ceiling. It returns a new slice.
func Finalize(x []float32, ceiling float64) []float32 {
	out := make([]float32, len(x))
	for i, v := range x {
		switch {
		case v > 1:
			v = 1
		case v < -1:
			v = -1
		}
		out[i] = v
	}
	peakNormalize(out, ceiling)
	return out
}
