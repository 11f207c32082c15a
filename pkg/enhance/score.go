package enhance

import "math"

const (
	// emptyRegionRMS is the RMS reported for a region with no samples.
	emptyRegionRMS = 1e-9
	// rmsEpsilon keeps the RMS of digital silence strictly positive.
	rmsEpsilon = 1e-12
	// ratioEpsilon guards RMS ratios against division by zero.
	ratioEpsilon = 1e-9
)

// Score is the quality breakdown of one candidate. Every component is in
// [0, 1]; Total is their weighted sum.
type Score struct {
	// NSAtten is how much non-speech energy was removed, capped at 1.
	NSAtten float64
	// SPKeep is 1 minus the relative change in speech RMS, floored at 0.
	SPKeep float64
	// SPCorr is the speech-region correlation with the original mapped from
	// [-1, 1] to [0, 1].
	SPCorr float64
	Total  float64
}

// ScoreCandidate rates candidate c against the original x under mask.
func ScoreCandidate(x, c []float32, mask []bool, w Weights) Score {
	origNS := math.Max(maskedRMS(x, mask, false), ratioEpsilon)
	origSP := math.Max(maskedRMS(x, mask, true), ratioEpsilon)

	ns := 1 - maskedRMS(c, mask, false)/origNS
	if ns > 1 {
		ns = 1
	}
	keep := 1 - math.Min(math.Abs(maskedRMS(c, mask, true)/origSP-1), 1)
	corr := (maskedCorr(x, c, mask) + 1) / 2

	return Score{
		NSAtten: ns,
		SPKeep:  keep,
		SPCorr:  corr,
		Total:   w.NSAtten*ns + w.SPKeep*keep + w.SPCorr*corr,
	}
}

// maskedRMS returns sqrt(mean(x²) + 1e-12) over the samples whose mask value
// equals speech, or 1e-9 if there are none.
func maskedRMS(x []float32, mask []bool, speech bool) float64 {
	var sum float64
	n := 0
	for i, m := range mask {
		if m != speech {
			continue
		}
		v := float64(x[i])
		sum += v * v
		n++
	}
	if n == 0 {
		return emptyRegionRMS
	}
	return math.Sqrt(sum/float64(n) + rmsEpsilon)
}

// maskedCorr returns the zero-mean normalized cross-correlation of a and b
// over the speech samples, or 0 if there are none.
func maskedCorr(a, b []float32, mask []bool) float64 {
	var ma, mb float64
	n := 0
	for i, m := range mask {
		if m {
			ma += float64(a[i])
			mb += float64(b[i])
			n++
		}
	}
	if n == 0 {
		return 0
	}
	ma /= float64(n)
	mb /= float64(n)

	var num, na, nb float64
	for i, m := range mask {
		if !m {
			continue
		}
		da := float64(a[i]) - ma
		db := float64(b[i]) - mb
		num += da * db
		na += da * da
		nb += db * db
	}
	return num / (math.Sqrt(na)*math.Sqrt(nb) + ratioEpsilon)
}
