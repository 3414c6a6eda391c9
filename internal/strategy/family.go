package strategy

import "fmt"

// Family is one of the ten strategy families a day can be labeled with.
type Family string

const (
	IronCondor     Family = "IRON_CONDOR"
	IronButterfly  Family = "IRON_BUTTERFLY"
	LongCall       Family = "LONG_CALL"
	LongPut        Family = "LONG_PUT"
	BullCallSpread Family = "BULL_CALL_SPREAD"
	BearPutSpread  Family = "BEAR_PUT_SPREAD"
	LongStraddle   Family = "LONG_STRADDLE"
	LongStrangle   Family = "LONG_STRANGLE"
	CalendarSpread Family = "CALENDAR_SPREAD"
	DiagonalSpread Family = "DIAGONAL_SPREAD"
)

// Families lists every family in a stable order.
var Families = []Family{
	IronCondor, IronButterfly, LongCall, LongPut,
	BullCallSpread, BearPutSpread, LongStraddle, LongStrangle,
	CalendarSpread, DiagonalSpread,
}

// ParseFamily converts a stored string back into a Family.
func ParseFamily(s string) (Family, error) {
	for _, f := range Families {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown strategy family %q", s)
}

// Info describes a family for operators and the families endpoint.
type Info struct {
	Family      Family `json:"family"`
	Description string `json:"description"`
	Conditions  string `json:"conditions"`
	TargetPct   string `json:"target_pct"`
	RiskProfile string `json:"risk_profile"`
	IdealMarket string `json:"ideal_market"`
}

var familyInfo = map[Family]Info{
	IronCondor: {
		Family:      IronCondor,
		Description: "Sell OTM call spread + OTM put spread",
		Conditions:  "High IV rank (52-75) + ranging (ADX <= 25) + neutral RSI (45-55)",
		TargetPct:   "20-30%",
		RiskProfile: "Defined risk, neutral",
		IdealMarket: "High volatility, sideways movement",
	},
	IronButterfly: {
		Family:      IronButterfly,
		Description: "Sell ATM call + ATM put, buy OTM wings",
		Conditions:  "Very high IV rank (>= 68) + very ranging (ADX <= 20)",
		TargetPct:   "10-15%",
		RiskProfile: "Defined risk, neutral, tighter profit zone",
		IdealMarket: "Very high volatility, very stable price",
	},
	LongCall: {
		Family:      LongCall,
		Description: "Buy OTM call option",
		Conditions:  "Low IV rank (<= 46) + strong uptrend (ADX >= 21, trend >= 3, RSI >= 54)",
		TargetPct:   "15-20%",
		RiskProfile: "Limited risk, unlimited upside",
		IdealMarket: "Low volatility, strong bullish trend",
	},
	LongPut: {
		Family:      LongPut,
		Description: "Buy OTM put option",
		Conditions:  "Low IV rank (<= 48) + bearish trend, bearish momentum, or deep oversold",
		TargetPct:   "15-20%",
		RiskProfile: "Limited risk, high downside profit",
		IdealMarket: "Low volatility, strong bearish trend",
	},
	BullCallSpread: {
		Family:      BullCallSpread,
		Description: "Buy call, sell higher strike call",
		Conditions:  "Medium-high IV rank (56-63) + strong bullish (trend >= 3, ADX >= 26, RSI >= 62)",
		TargetPct:   "10-15%",
		RiskProfile: "Defined risk, defined profit",
		IdealMarket: "Medium volatility, moderate uptrend",
	},
	BearPutSpread: {
		Family:      BearPutSpread,
		Description: "Buy put, sell lower strike put",
		Conditions:  "Medium-high IV rank (54-65) + strong bearish (trend <= 1, ADX >= 22, RSI <= 45)",
		TargetPct:   "10-15%",
		RiskProfile: "Defined risk, defined profit",
		IdealMarket: "Medium volatility, moderate downtrend",
	},
	LongStraddle: {
		Family:      LongStraddle,
		Description: "Buy ATM call + ATM put at the same strike",
		Conditions:  "Low IV rank (<= 35) + very neutral (RSI 45-58, ADX <= 17)",
		TargetPct:   "5-10%",
		RiskProfile: "Limited risk, profits from a large move either way",
		IdealMarket: "Low volatility expecting expansion, uncertain direction",
	},
	LongStrangle: {
		Family:      LongStrangle,
		Description: "Buy OTM call + OTM put at different strikes",
		Conditions:  "Low IV rank (<= 36) + neutral (RSI 44-59, ADX <= 25)",
		TargetPct:   "5-10%",
		RiskProfile: "Limited risk, cheaper than a straddle",
		IdealMarket: "Low volatility expecting expansion, uncertain direction",
	},
	CalendarSpread: {
		Family:      CalendarSpread,
		Description: "Sell near-term option, buy far-term option at the same strike",
		Conditions:  "Low IV rank (<= 42) + very neutral (ADX <= 20, RSI 42-58, stable price)",
		TargetPct:   "3-5%",
		RiskProfile: "Limited risk, profits from time decay",
		IdealMarket: "Low volatility, very stable price",
	},
	DiagonalSpread: {
		Family:      DiagonalSpread,
		Description: "Sell near-term option, buy far-term option at different strikes",
		Conditions:  "Medium IV rank (45-60) + slight bias (0.5-1.2% from SMA20, ADX <= 15)",
		TargetPct:   "3-5%",
		RiskProfile: "Limited risk, combines time decay with direction",
		IdealMarket: "Medium volatility, slight directional bias",
	},
}

// InfoFor returns the descriptive card for a family.
func InfoFor(f Family) (Info, bool) {
	info, ok := familyInfo[f]
	return info, ok
}
