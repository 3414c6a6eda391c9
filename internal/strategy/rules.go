package strategy

import (
	"fmt"
	"strings"

	"github.com/strategylab/optlabel/internal/features"
)

// Interval is a closed numeric band [Min, Max].
type Interval struct {
	Min float64
	Max float64
}

func (i Interval) Contains(x float64) bool {
	return x >= i.Min && x <= i.Max
}

func (i Interval) Overlaps(o Interval) bool {
	return i.Min <= o.Max && o.Min <= i.Max
}

func (i Interval) String() string {
	return fmt.Sprintf("[%g, %g]", i.Min, i.Max)
}

// Open-ended bands for axes a rule does not constrain.
var (
	anyPct   = Interval{0, 100}
	anyTrend = Interval{0, 4}
	anyBias  = Interval{0, 1}
)

// Rule maps a region of feature space to one family. All axes are closed
// intervals; AbsBias constrains |price vs SMA20|.
type Rule struct {
	Name    string
	Family  Family
	IVRank  Interval
	ADX     Interval
	RSI     Interval
	Trend   Interval
	AbsBias Interval
}

// Matches reports whether every axis of the rule admits the record.
func (r Rule) Matches(rec *features.Record) bool {
	bias := rec.PriceVsSMA20
	if bias < 0 {
		bias = -bias
	}
	return r.IVRank.Contains(rec.IVRank) &&
		r.ADX.Contains(rec.ADX14) &&
		r.RSI.Contains(rec.RSI14) &&
		r.Trend.Contains(rec.TrendRegime) &&
		r.AbsBias.Contains(bias)
}

// DefaultRules is the production rule table, evaluated top-down with first
// match winning. Ordering is most-specific-first; same-family rules keep
// disjoint IV-rank x ADX bands so selection never depends on table order
// within a family.
var DefaultRules = []Rule{
	{
		Name:    "diagonal_slight_bias",
		Family:  DiagonalSpread,
		IVRank:  Interval{45, 60},
		ADX:     Interval{0, 15},
		RSI:     anyPct,
		Trend:   Interval{2, 2},
		AbsBias: Interval{0.005, 0.012},
	},
	{
		Name:    "condor_high_iv_range",
		Family:  IronCondor,
		IVRank:  Interval{52, 75},
		ADX:     Interval{0, 25},
		RSI:     Interval{45, 55},
		Trend:   anyTrend,
		AbsBias: anyBias,
	},
	{
		Name:    "butterfly_extreme_iv",
		Family:  IronButterfly,
		IVRank:  Interval{68, 100},
		ADX:     Interval{0, 20},
		RSI:     anyPct,
		Trend:   anyTrend,
		AbsBias: anyBias,
	},
	{
		Name:    "long_call_uptrend",
		Family:  LongCall,
		IVRank:  Interval{0, 46},
		ADX:     Interval{21, 100},
		RSI:     Interval{54, 100},
		Trend:   Interval{3, 4},
		AbsBias: anyBias,
	},
	{
		Name:    "long_put_downtrend",
		Family:  LongPut,
		IVRank:  Interval{0, 48},
		ADX:     Interval{21, 100},
		RSI:     anyPct,
		Trend:   Interval{0, 1},
		AbsBias: anyBias,
	},
	{
		Name:    "long_put_bear_momentum",
		Family:  LongPut,
		IVRank:  Interval{0, 48},
		ADX:     Interval{15, 20},
		RSI:     Interval{0, 38},
		Trend:   anyTrend,
		AbsBias: anyBias,
	},
	{
		Name:    "long_put_oversold",
		Family:  LongPut,
		IVRank:  Interval{0, 48},
		ADX:     Interval{0, 14},
		RSI:     Interval{0, 33},
		Trend:   anyTrend,
		AbsBias: anyBias,
	},
	{
		Name:    "bull_spread_momentum",
		Family:  BullCallSpread,
		IVRank:  Interval{56, 63},
		ADX:     Interval{26, 100},
		RSI:     Interval{62, 100},
		Trend:   Interval{3, 4},
		AbsBias: anyBias,
	},
	{
		Name:    "bear_spread_momentum",
		Family:  BearPutSpread,
		IVRank:  Interval{54, 65},
		ADX:     Interval{22, 100},
		RSI:     Interval{0, 45},
		Trend:   Interval{0, 1},
		AbsBias: anyBias,
	},
	{
		Name:    "straddle_cheap_vol",
		Family:  LongStraddle,
		IVRank:  Interval{0, 35},
		ADX:     Interval{0, 17},
		RSI:     Interval{45, 58},
		Trend:   anyTrend,
		AbsBias: anyBias,
	},
	{
		Name:    "strangle_cheap_vol",
		Family:  LongStrangle,
		IVRank:  Interval{0, 36},
		ADX:     Interval{0, 25},
		RSI:     Interval{44, 59},
		Trend:   anyTrend,
		AbsBias: anyBias,
	},
	{
		Name:    "calendar_quiet_decay",
		Family:  CalendarSpread,
		IVRank:  Interval{0, 42},
		ADX:     Interval{0, 20},
		RSI:     Interval{42, 58},
		Trend:   anyTrend,
		AbsBias: Interval{0, 0.022},
	},
}

// Selector evaluates an ordered rule table over feature records.
type Selector struct {
	rules []Rule
}

// NewSelector validates the table and returns a selector over it.
func NewSelector(rules []Rule) (*Selector, error) {
	if err := ValidateRules(rules); err != nil {
		return nil, err
	}
	return &Selector{rules: rules}, nil
}

// NewDefaultSelector returns a selector over DefaultRules.
func NewDefaultSelector() *Selector {
	return &Selector{rules: DefaultRules}
}

// Rules returns the table in evaluation order.
func (s *Selector) Rules() []Rule { return s.rules }

// Select returns the family for a record and the name of the rule that
// decided it. There is always an answer: records matching no rule fall
// through to a deterministic default keyed on IV rank and momentum.
func (s *Selector) Select(rec *features.Record) (Family, string) {
	for _, r := range s.rules {
		if r.Matches(rec) {
			return r.Family, r.Name
		}
	}
	return fallback(rec), "fallback"
}

// fallback covers the feature-space gaps the table leaves open. High IV
// sells premium, low IV buys direction by momentum, the middle demands
// clear momentum before committing to a spread.
func fallback(rec *features.Record) Family {
	switch {
	case rec.IVRank > 55:
		return IronCondor
	case rec.IVRank < 35:
		if rec.RSI14 >= 50 {
			return LongCall
		}
		return LongPut
	case rec.RSI14 > 58 && rec.ADX14 > 18:
		return BullCallSpread
	case rec.RSI14 < 42 && rec.ADX14 > 18:
		return BearPutSpread
	default:
		return IronCondor
	}
}

// RuleOverlap is one offending pair of same-family rules.
type RuleOverlap struct {
	A, B Rule
}

// RuleOverlapError reports every pair of same-family rules whose IV-rank
// and ADX bands intersect. Raised at configuration load and in tests,
// never during selection.
type RuleOverlapError struct {
	Overlaps []RuleOverlap
}

func (e *RuleOverlapError) Error() string {
	var sb strings.Builder
	sb.WriteString("rule table has overlapping same-family bands:\n")
	for _, o := range e.Overlaps {
		sb.WriteString(fmt.Sprintf("  - %s and %s (%s): iv %s/%s adx %s/%s\n",
			o.A.Name, o.B.Name, o.A.Family,
			o.A.IVRank, o.B.IVRank, o.A.ADX, o.B.ADX))
	}
	return sb.String()
}

// ValidateRules rejects tables where two rules for the same family share
// any region of the IV-rank x ADX plane.
func ValidateRules(rules []Rule) error {
	var overlaps []RuleOverlap
	for i := 0; i < len(rules); i++ {
		for j := i + 1; j < len(rules); j++ {
			a, b := rules[i], rules[j]
			if a.Family != b.Family {
				continue
			}
			if a.IVRank.Overlaps(b.IVRank) && a.ADX.Overlaps(b.ADX) {
				overlaps = append(overlaps, RuleOverlap{A: a, B: b})
			}
		}
	}
	if len(overlaps) > 0 {
		return &RuleOverlapError{Overlaps: overlaps}
	}
	return nil
}
