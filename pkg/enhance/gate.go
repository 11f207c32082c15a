package enhance

// BypassReason explains why enhancement was skipped.
type BypassReason int

const (
	// BypassNone means the signal was enhanced.
	BypassNone BypassReason = iota
	// BypassClean means the estimated SNR was at or above the threshold.
	BypassClean
	// BypassNoNoiseProfile means too little noise could be collected, even
	// after backfilling, to drive the reducer.
	BypassNoNoiseProfile
)

// String returns the snake_case reason name.
func (r BypassReason) String() string {
	switch r {
	case BypassNone:
		return "none"
	case BypassClean:
		return "clean"
	case BypassNoNoiseProfile:
		return "no_noise_profile"
	default:
		return "unknown"
	}
}

// decideBypass returns the reason to skip enhancement, or BypassNone.
func decideBypass(snr float64, noiseLen, need int, thresholdDB float64) BypassReason {
	if snr >= thresholdDB {
		return BypassClean
	}
	if noiseLen < need {
		return BypassNoNoiseProfile
	}
	return BypassNone
}
