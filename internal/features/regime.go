package features

// Trend regime codes. Higher means stronger directional pressure upward;
// 1 is a confirmed downtrend, 2 a quiet drift, 0 an unclassified chop.
const (
	TrendChoppy     = 0
	TrendDown       = 1
	TrendQuiet      = 2
	TrendUp         = 3
	TrendStrongUp   = 4
	trendStateCount = 5
)

// Volatility regime codes from IV rank bands.
const (
	VolVeryLow    = 0
	VolLow        = 1
	VolNormal     = 2
	VolElevated   = 3
	VolExtreme    = 4
	volStateCount = 5
)

// Volume regime codes from the volume-vs-average ratio.
const (
	VolumeDry        = 0
	VolumeNormal     = 1
	VolumeHeavy      = 2
	volumeStateCount = 3
)

// TrendRegime classifies directional state from ADX, the MACD histogram,
// and the price's distance from its 50 day average.
func TrendRegime(adx, macdHist, priceVsSMA50 float64) int {
	switch {
	case adx > 30 && macdHist > 0 && priceVsSMA50 > 0.02:
		return TrendStrongUp
	case adx > 25 && priceVsSMA50 > 0:
		return TrendUp
	case adx < 20:
		return TrendQuiet
	case adx > 25 && priceVsSMA50 < 0:
		return TrendDown
	default:
		return TrendChoppy
	}
}

// VolatilityRegime classifies IV rank (0-100) into five bands.
func VolatilityRegime(ivRank float64) int {
	switch {
	case ivRank > 75:
		return VolExtreme
	case ivRank > 60:
		return VolElevated
	case ivRank > 40:
		return VolNormal
	case ivRank > 25:
		return VolLow
	default:
		return VolVeryLow
	}
}

// VolumeRegime classifies today's volume relative to its 20 day mean.
func VolumeRegime(volumeVsAvg float64) int {
	switch {
	case volumeVsAvg > 1.5:
		return VolumeHeavy
	case volumeVsAvg > 0.8:
		return VolumeNormal
	default:
		return VolumeDry
	}
}

// CombinedState packs the three regimes into a single 0-74 code.
func CombinedState(trend, vol, volume int) int {
	return trend*volStateCount*volumeStateCount + vol*volumeStateCount + volume
}

// StateCount is the number of distinct combined regime codes.
const StateCount = trendStateCount * volStateCount * volumeStateCount

// RegimeAge counts how many consecutive days, ending with the latest
// entry, share the latest combined state. Fewer than two observations is
// age zero, and the count caps at 60.
func RegimeAge(states []int) int {
	if len(states) < 2 {
		return 0
	}
	latest := states[len(states)-1]
	age := 0
	for i := len(states) - 1; i >= 0; i-- {
		if states[i] != latest {
			break
		}
		age++
		if age >= 60 {
			break
		}
	}
	return age
}
