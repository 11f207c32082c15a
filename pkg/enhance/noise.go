package enhance

import (
	"math"
	"sort"
)

const (
	// backfillFraction is the share of lowest-energy samples eligible to pad
	// a short noise clip.
	backfillFraction = 0.1
	// snrEpsilon guards both variances in the SNR ratio.
	snrEpsilon = 1e-9
	// snrNoNoiseDB is reported when there is no noise sample at all.
	snrNoNoiseDB = 99.0
)

// collectNoise gathers the non-speech samples of x in temporal order. When
// fewer than need samples are non-speech, it backfills from the lowest-energy
// tenth of the signal (lowest energy first, ties by position), skipping samples
// already collected, until need is met or the pool is exhausted. Backfilled
// samples are appended in temporal order.
func collectNoise(x []float32, mask []bool, need, frameSamples int) []float32 {
	noise := make([]float32, 0, len(x))
	for i, speech := range mask {
		if !speech {
			noise = append(noise, x[i])
		}
	}
	if len(noise) >= need || len(x) == 0 {
		return noise
	}

	r := movingRMS(x, frameSamples)
	order := make([]int, len(x))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return r[order[a]] < r[order[b]]
	})
	pool := order[:int(backfillFraction*float64(len(x)))]

	deficit := need - len(noise)
	var picked []int
	for _, idx := range pool {
		if deficit == 0 {
			break
		}
		if !mask[idx] {
			continue
		}
		picked = append(picked, idx)
		deficit--
	}
	sort.Ints(picked)
	for _, idx := range picked {
		noise = append(noise, x[idx])
	}
	return noise
}

// EstimateSNR returns the signal-to-noise ratio of x in dB, treating noise as
// a sample of the background:
//
//	10·log10(max(var(x) − var(noise), ε) / max(var(noise), ε))
//
// An empty x yields 0 dB and an empty noise clip yields 99 dB.
func EstimateSNR(x, noise []float32) float64 {
	if len(x) == 0 {
		return 0
	}
	if len(noise) == 0 {
		return snrNoNoiseDB
	}
	nv := variance(noise)
	sv := variance(x)
	sig := math.Max(sv-nv, snrEpsilon)
	return 10 * math.Log10(sig/math.Max(nv, snrEpsilon))
}

func variance(x []float32) float64 {
	if len(x) == 0 {
		return 0
	}
	var mean float64
	for _, v := range x {
		mean += float64(v)
	}
	mean /= float64(len(x))
	var acc float64
	for _, v := range x {
		d := float64(v) - mean
		acc += d * d
	}
	return acc / float64(len(x))
}
