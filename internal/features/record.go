package features

import (
	"fmt"
	"math"
)

// Count is the fixed length of every feature vector ever produced.
// Training and serving must agree on this bit-for-bit.
const Count = 84

// Record is one trading day's full feature vector. Field order in Vector()
// and Names() is frozen; adding, removing, or reordering a feature is a
// breaking change to every stored dataset and trained model.
type Record struct {
	Date string

	CurrentPrice float64
	Return1D     float64
	Return3D     float64
	Return5D     float64
	Return10D    float64
	Return20D    float64
	Return50D    float64

	RSI14         float64
	MACD          float64
	MACDSignal    float64
	MACDHistogram float64
	ADX14         float64
	ATR14         float64

	SMA5   float64
	SMA10  float64
	SMA20  float64
	SMA50  float64
	SMA200 float64

	PriceVsSMA5   float64
	PriceVsSMA10  float64
	PriceVsSMA20  float64
	PriceVsSMA50  float64
	PriceVsSMA200 float64
	SMAAlignment  float64

	BBUpper    float64
	BBMiddle   float64
	BBLower    float64
	BBPosition float64

	Volume20DAvg float64
	VolumeVsAvg  float64

	HV20D        float64
	IVATM        float64
	IVRank       float64
	IVPercentile float64
	HVIVRatio    float64

	ResistanceLevel      float64
	SupportLevel         float64
	DistanceToResistance float64
	DistanceToSupport    float64
	PositionInRange      float64

	IndexReturn1D  float64
	VolIndexLevel  float64
	VolIndexChange float64

	TrendRegime      float64
	VolatilityRegime float64
	VolumeRegime     float64

	PutCallVolumeRatio float64
	PutCallOIRatio     float64
	TotalOptionVolume  float64
	TotalOpenInterest  float64

	ATMDeltaCall float64
	ATMDeltaPut  float64
	ATMGamma     float64
	ATMTheta     float64
	ATMVega      float64

	MaxPainStrike     float64
	DistanceToMaxPain float64
	OBV               float64

	StochasticK float64
	StochasticD float64
	CCI         float64
	WilliamsR   float64
	MFI         float64

	IVSkew          float64
	IVTermStructure float64
	VolIndexVsMA20  float64
	VolatilityTrend float64

	ParkinsonVol   float64
	GarmanKlassVol float64
	VolOfVol       float64

	GammaExposure        float64
	DeltaExposure        float64
	UnusualActivity      float64
	OptionsFlowSentiment float64

	Resistance2         float64
	Support2            float64
	RangeWidth          float64
	DaysInRange         float64
	BreakoutProbability float64

	IndexCorrelation float64
	IndexReturn5D    float64
	ExcessVsIndex    float64

	CombinedState         float64
	DaysSinceRegimeChange float64
}

var featureNames = []string{
	"current_price", "return_1d", "return_3d", "return_5d", "return_10d",
	"return_20d", "return_50d", "rsi_14", "macd", "macd_signal",
	"macd_histogram", "adx_14", "atr_14", "sma_5", "sma_10", "sma_20",
	"sma_50", "sma_200", "price_vs_sma_5", "price_vs_sma_10",
	"price_vs_sma_20", "price_vs_sma_50", "price_vs_sma_200",
	"sma_alignment", "bb_upper", "bb_middle", "bb_lower", "bb_position",
	"volume_20d_avg", "volume_vs_avg", "hv_20d", "iv_atm", "iv_rank",
	"iv_percentile", "hv_iv_ratio", "resistance_level", "support_level",
	"distance_to_resistance", "distance_to_support", "position_in_range",
	"index_return_1d", "vol_index_level", "vol_index_change", "trend_regime",
	"volatility_regime", "volume_regime", "put_call_volume_ratio",
	"put_call_oi_ratio", "total_option_volume", "total_open_interest",
	"atm_delta_call", "atm_delta_put", "atm_gamma", "atm_theta",
	"atm_vega", "max_pain_strike", "distance_to_max_pain", "obv",
	"stochastic_k", "stochastic_d", "cci", "williams_r", "mfi",
	"iv_skew", "iv_term_structure", "vol_index_vs_ma20", "volatility_trend",
	"parkinson_vol", "garman_klass_vol", "vol_of_vol", "gamma_exposure",
	"delta_exposure", "unusual_activity", "options_flow_sentiment",
	"resistance_2", "support_2", "range_width", "days_in_range",
	"breakout_probability", "index_correlation", "index_return_5d",
	"excess_vs_index", "combined_state", "days_since_regime_change",
}

// Names returns the frozen feature column names. Callers must not modify
// the returned slice.
func Names() []string { return featureNames }

// Vector returns the feature values in frozen column order.
func (r *Record) Vector() []float64 {
	return []float64{
		r.CurrentPrice, r.Return1D, r.Return3D, r.Return5D, r.Return10D,
		r.Return20D, r.Return50D, r.RSI14, r.MACD, r.MACDSignal,
		r.MACDHistogram, r.ADX14, r.ATR14, r.SMA5, r.SMA10, r.SMA20,
		r.SMA50, r.SMA200, r.PriceVsSMA5, r.PriceVsSMA10,
		r.PriceVsSMA20, r.PriceVsSMA50, r.PriceVsSMA200,
		r.SMAAlignment, r.BBUpper, r.BBMiddle, r.BBLower, r.BBPosition,
		r.Volume20DAvg, r.VolumeVsAvg, r.HV20D, r.IVATM, r.IVRank,
		r.IVPercentile, r.HVIVRatio, r.ResistanceLevel, r.SupportLevel,
		r.DistanceToResistance, r.DistanceToSupport, r.PositionInRange,
		r.IndexReturn1D, r.VolIndexLevel, r.VolIndexChange, r.TrendRegime,
		r.VolatilityRegime, r.VolumeRegime, r.PutCallVolumeRatio,
		r.PutCallOIRatio, r.TotalOptionVolume, r.TotalOpenInterest,
		r.ATMDeltaCall, r.ATMDeltaPut, r.ATMGamma, r.ATMTheta,
		r.ATMVega, r.MaxPainStrike, r.DistanceToMaxPain, r.OBV,
		r.StochasticK, r.StochasticD, r.CCI, r.WilliamsR, r.MFI,
		r.IVSkew, r.IVTermStructure, r.VolIndexVsMA20, r.VolatilityTrend,
		r.ParkinsonVol, r.GarmanKlassVol, r.VolOfVol, r.GammaExposure,
		r.DeltaExposure, r.UnusualActivity, r.OptionsFlowSentiment,
		r.Resistance2, r.Support2, r.RangeWidth, r.DaysInRange,
		r.BreakoutProbability, r.IndexCorrelation, r.IndexReturn5D,
		r.ExcessVsIndex, r.CombinedState, r.DaysSinceRegimeChange,
	}
}

// Map returns name -> value in frozen order pairing.
func (r *Record) Map() map[string]float64 {
	v := r.Vector()
	m := make(map[string]float64, Count)
	for i, name := range featureNames {
		m[name] = v[i]
	}
	return m
}

// Validate rejects a record with any NaN or infinite value.
func (r *Record) Validate() error {
	v := r.Vector()
	if len(v) != Count {
		return fmt.Errorf("feature vector has %d values, want %d", len(v), Count)
	}
	var bad []string
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			bad = append(bad, featureNames[i])
		}
	}
	if len(bad) > 0 {
		return fmt.Errorf("features contain undefined values: %v", bad)
	}
	return nil
}
