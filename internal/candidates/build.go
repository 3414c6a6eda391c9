package candidates

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/strategylab/optlabel/internal/features"
	"github.com/strategylab/optlabel/internal/market"
	"github.com/strategylab/optlabel/internal/strategy"
)

// Multiplier converts per-share option prices to per-contract dollars.
const Multiplier = 100

// ErrUnresolvable means the chain has no contracts that can satisfy the
// requested legs.
var ErrUnresolvable = errors.New("no contracts satisfy the requested legs")

// TrendStrength buckets used by DTE selection.
const (
	TrendVeryStrong = "VERY_STRONG"
	TrendStrong     = "STRONG"
	TrendModerate   = "MODERATE"
	TrendWeak       = "WEAK"
)

// ResolvedLeg is a template leg bound to a real contract at entry fill
// prices: long legs pay the ask, short legs receive the bid.
type ResolvedLeg struct {
	Type       market.OptionType `json:"type"`
	Side       Side              `json:"-"`
	SideName   string            `json:"side"`
	Strike     float64           `json:"strike"`
	Expiration string            `json:"expiration"`
	DTE        int               `json:"dte"`
	Price      float64           `json:"price"`
	Delta      float64           `json:"delta"`
}

// Trade is a fully priced position, one contract per leg. MaxProfit is
// +Inf for positions with unlimited or path-dependent upside.
type Trade struct {
	Family        strategy.Family `json:"family"`
	Legs          []ResolvedLeg   `json:"legs"`
	NetDebit      float64         `json:"net_debit"`
	MaxLoss       float64         `json:"max_loss"`
	MaxProfit     float64         `json:"max_profit"`
	BreakevenUp   float64         `json:"breakeven_up,omitempty"`
	BreakevenDown float64         `json:"breakeven_down,omitempty"`
	TrendStrength string          `json:"trend_strength"`
}

// MarshalJSON emits max_profit as null for unbounded payoffs, since
// JSON cannot represent +Inf.
func (t Trade) MarshalJSON() ([]byte, error) {
	type alias Trade
	out := struct {
		alias
		MaxProfit *float64 `json:"max_profit"`
	}{alias: alias(t)}
	if !math.IsInf(t.MaxProfit, 1) {
		out.MaxProfit = &t.MaxProfit
	}
	return json.Marshal(out)
}

// classifyTrendStrength buckets the record's trend conviction for DTE
// selection.
func classifyTrendStrength(rec *features.Record) string {
	rsi, adx, trend := rec.RSI14, rec.ADX14, rec.TrendRegime
	switch {
	case adx > 30 && ((rsi > 65 && trend >= 4) || (rsi < 35 && trend <= 0)):
		return TrendVeryStrong
	case adx > 25 && ((rsi > 60 && trend >= 3) || (rsi < 40 && trend <= 1)):
		return TrendStrong
	case adx > 20:
		return TrendModerate
	default:
		return TrendWeak
	}
}

// selectDTE picks a target expiration for the family given market state,
// then snaps to the nearest available one. Premium sellers shorten DTE as
// IV rises; directional buyers extend it as conviction grows.
func selectDTE(chain []market.Option, family strategy.Family, ivRank float64, strength string) (int, bool) {
	var target int
	switch family {
	case strategy.IronCondor, strategy.IronButterfly:
		switch {
		case ivRank > 70:
			target = 7
		case ivRank > 50:
			target = 14
		default:
			target = 21
		}
	case strategy.LongCall, strategy.LongPut:
		switch {
		case ivRank < 30 && strength == TrendVeryStrong:
			target = 45
		case ivRank < 40:
			target = 30
		default:
			target = 21
		}
	case strategy.BullCallSpread, strategy.BearPutSpread:
		if strength == TrendVeryStrong {
			target = 30
		} else {
			target = 21
		}
	default:
		target = 30
	}
	return market.NearestDTE(chain, target)
}

// Build resolves one delta-targeted trade for the family against today's
// chain. It is the synchronous production path: the slate machinery is
// bypassed and the IV-adaptive targets pick a single parameter set.
func Build(family strategy.Family, rec *features.Record, snap *market.Snapshot) (*Trade, error) {
	if len(snap.Chain) == 0 {
		return nil, fmt.Errorf("%s: %w", snap.Date, ErrUnresolvable)
	}
	strength := classifyTrendStrength(rec)
	switch family {
	case strategy.LongCall:
		return buildLongOption(rec, snap, market.Call, strength)
	case strategy.LongPut:
		return buildLongOption(rec, snap, market.Put, strength)
	case strategy.BullCallSpread:
		return buildDebitSpread(rec, snap, market.Call, strength)
	case strategy.BearPutSpread:
		return buildDebitSpread(rec, snap, market.Put, strength)
	case strategy.LongStraddle:
		return buildStraddle(rec, snap)
	case strategy.LongStrangle:
		return buildStrangle(rec, snap)
	case strategy.IronCondor:
		return buildCondor(rec, snap)
	case strategy.IronButterfly:
		return buildButterfly(rec, snap)
	case strategy.CalendarSpread:
		return buildCalendar(rec, snap, false)
	case strategy.DiagonalSpread:
		return buildCalendar(rec, snap, true)
	default:
		return nil, fmt.Errorf("unknown family %q", family)
	}
}

func resolve(o market.Option, side Side) ResolvedLeg {
	price := o.Ask
	if side == Short {
		price = o.Bid
	}
	return ResolvedLeg{
		Type:       o.Type,
		Side:       side,
		SideName:   side.String(),
		Strike:     o.Strike,
		Expiration: o.Expiration,
		DTE:        o.DTE,
		Price:      price,
		Delta:      o.Delta,
	}
}

func buildLongOption(rec *features.Record, snap *market.Snapshot, typ market.OptionType, strength string) (*Trade, error) {
	family := strategy.LongCall
	if typ == market.Put {
		family = strategy.LongPut
	}
	dte, ok := selectDTE(snap.Chain, family, rec.IVRank, strength)
	if !ok {
		return nil, fmt.Errorf("%s: %w", family, ErrUnresolvable)
	}
	// Cheaper vol buys closer to the money.
	var delta float64
	switch {
	case rec.IVRank < 30:
		delta = 0.50
	case rec.IVRank < 40:
		delta = 0.40
	default:
		delta = 0.30
	}
	o, ok := market.ByDelta(snap.Chain, typ, dte, delta)
	if !ok {
		return nil, fmt.Errorf("%s: %w", family, ErrUnresolvable)
	}
	leg := resolve(o, Long)
	cost := leg.Price
	t := &Trade{
		Family:        family,
		Legs:          []ResolvedLeg{leg},
		NetDebit:      cost * Multiplier,
		MaxLoss:       cost * Multiplier,
		MaxProfit:     math.Inf(1),
		TrendStrength: strength,
	}
	if typ == market.Call {
		t.BreakevenUp = o.Strike + cost
	} else {
		t.BreakevenDown = o.Strike - cost
	}
	return t, nil
}

func buildDebitSpread(rec *features.Record, snap *market.Snapshot, typ market.OptionType, strength string) (*Trade, error) {
	family := strategy.BullCallSpread
	if typ == market.Put {
		family = strategy.BearPutSpread
	}
	dte, ok := selectDTE(snap.Chain, family, rec.IVRank, strength)
	if !ok {
		return nil, fmt.Errorf("%s: %w", family, ErrUnresolvable)
	}
	longDelta, shortDelta := 0.50, 0.30
	if rec.IVRank >= 50 {
		longDelta, shortDelta = 0.60, 0.25
	}
	longOpt, ok1 := market.ByDelta(snap.Chain, typ, dte, longDelta)
	shortOpt, ok2 := market.ByDelta(snap.Chain, typ, dte, shortDelta)
	if !ok1 || !ok2 || longOpt.Strike == shortOpt.Strike {
		return nil, fmt.Errorf("%s: %w", family, ErrUnresolvable)
	}
	longLeg := resolve(longOpt, Long)
	shortLeg := resolve(shortOpt, Short)
	netDebit := (longLeg.Price - shortLeg.Price) * Multiplier
	width := math.Abs(shortOpt.Strike-longOpt.Strike) * Multiplier
	t := &Trade{
		Family:        family,
		Legs:          []ResolvedLeg{longLeg, shortLeg},
		NetDebit:      netDebit,
		MaxLoss:       netDebit,
		MaxProfit:     width - netDebit,
		TrendStrength: strength,
	}
	if typ == market.Call {
		t.BreakevenUp = longOpt.Strike + netDebit/Multiplier
	} else {
		t.BreakevenDown = longOpt.Strike - netDebit/Multiplier
	}
	return t, nil
}

func buildStraddle(rec *features.Record, snap *market.Snapshot) (*Trade, error) {
	dte, ok := selectDTE(snap.Chain, strategy.LongStraddle, rec.IVRank, TrendModerate)
	if !ok {
		return nil, fmt.Errorf("straddle: %w", ErrUnresolvable)
	}
	callATM, ok1 := market.ByDelta(snap.Chain, market.Call, dte, 0.50)
	if !ok1 {
		return nil, fmt.Errorf("straddle: %w", ErrUnresolvable)
	}
	call, ok2 := market.NearestStrike(snap.Chain, market.Call, dte, callATM.Strike)
	put, ok3 := market.ByStrike(snap.Chain, market.Put, dte, call.Strike)
	if !ok2 || !ok3 {
		return nil, fmt.Errorf("straddle: %w", ErrUnresolvable)
	}
	callLeg := resolve(call, Long)
	putLeg := resolve(put, Long)
	cost := callLeg.Price + putLeg.Price
	return &Trade{
		Family:        strategy.LongStraddle,
		Legs:          []ResolvedLeg{callLeg, putLeg},
		NetDebit:      cost * Multiplier,
		MaxLoss:       cost * Multiplier,
		MaxProfit:     math.Inf(1),
		BreakevenUp:   call.Strike + cost,
		BreakevenDown: call.Strike - cost,
		TrendStrength: TrendModerate,
	}, nil
}

func buildStrangle(rec *features.Record, snap *market.Snapshot) (*Trade, error) {
	dte, ok := selectDTE(snap.Chain, strategy.LongStrangle, rec.IVRank, TrendModerate)
	if !ok {
		return nil, fmt.Errorf("strangle: %w", ErrUnresolvable)
	}
	delta := 0.25
	if rec.IVRank < 30 {
		delta = 0.35
	}
	call, ok1 := market.ByDelta(snap.Chain, market.Call, dte, delta)
	put, ok2 := market.ByDelta(snap.Chain, market.Put, dte, delta)
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("strangle: %w", ErrUnresolvable)
	}
	callLeg := resolve(call, Long)
	putLeg := resolve(put, Long)
	cost := callLeg.Price + putLeg.Price
	return &Trade{
		Family:        strategy.LongStrangle,
		Legs:          []ResolvedLeg{callLeg, putLeg},
		NetDebit:      cost * Multiplier,
		MaxLoss:       cost * Multiplier,
		MaxProfit:     math.Inf(1),
		BreakevenUp:   call.Strike + cost,
		BreakevenDown: put.Strike - cost,
		TrendStrength: TrendModerate,
	}, nil
}

func buildCondor(rec *features.Record, snap *market.Snapshot) (*Trade, error) {
	dte, ok := selectDTE(snap.Chain, strategy.IronCondor, rec.IVRank, TrendWeak)
	if !ok {
		return nil, fmt.Errorf("condor: %w", ErrUnresolvable)
	}
	shortDelta, longDelta := 0.25, 0.15
	if rec.IVRank > 70 {
		shortDelta, longDelta = 0.20, 0.10
	}
	putShort, ok1 := market.ByDelta(snap.Chain, market.Put, dte, shortDelta)
	putLong, ok2 := market.ByDelta(snap.Chain, market.Put, dte, longDelta)
	callShort, ok3 := market.ByDelta(snap.Chain, market.Call, dte, shortDelta)
	callLong, ok4 := market.ByDelta(snap.Chain, market.Call, dte, longDelta)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return nil, fmt.Errorf("condor: %w", ErrUnresolvable)
	}
	legs := []ResolvedLeg{
		resolve(putShort, Short),
		resolve(putLong, Long),
		resolve(callShort, Short),
		resolve(callLong, Long),
	}
	credit := legs[0].Price + legs[2].Price - legs[1].Price - legs[3].Price
	width := math.Max(putShort.Strike-putLong.Strike, callLong.Strike-callShort.Strike)
	netCredit := credit * Multiplier
	return &Trade{
		Family:        strategy.IronCondor,
		Legs:          legs,
		NetDebit:      -netCredit,
		MaxLoss:       width*Multiplier - netCredit,
		MaxProfit:     netCredit,
		BreakevenUp:   callShort.Strike + credit,
		BreakevenDown: putShort.Strike - credit,
		TrendStrength: TrendWeak,
	}, nil
}

func buildButterfly(rec *features.Record, snap *market.Snapshot) (*Trade, error) {
	dte, ok := selectDTE(snap.Chain, strategy.IronButterfly, rec.IVRank, TrendWeak)
	if !ok {
		return nil, fmt.Errorf("butterfly: %w", ErrUnresolvable)
	}
	atm, ok := market.ByDelta(snap.Chain, market.Call, dte, 0.50)
	if !ok {
		return nil, fmt.Errorf("butterfly: %w", ErrUnresolvable)
	}
	wingPct := 0.05
	if rec.IVRank > 75 {
		wingPct = 0.07
	}
	atmPut, ok1 := market.ByStrike(snap.Chain, market.Put, dte, atm.Strike)
	wingPut, ok2 := market.NearestStrike(snap.Chain, market.Put, dte, atm.Strike*(1-wingPct))
	wingCall, ok3 := market.NearestStrike(snap.Chain, market.Call, dte, atm.Strike*(1+wingPct))
	if !ok1 || !ok2 || !ok3 {
		return nil, fmt.Errorf("butterfly: %w", ErrUnresolvable)
	}
	legs := []ResolvedLeg{
		resolve(atm, Short),
		resolve(atmPut, Short),
		resolve(wingPut, Long),
		resolve(wingCall, Long),
	}
	credit := legs[0].Price + legs[1].Price - legs[2].Price - legs[3].Price
	width := math.Max(atm.Strike-wingPut.Strike, wingCall.Strike-atm.Strike)
	netCredit := credit * Multiplier
	return &Trade{
		Family:        strategy.IronButterfly,
		Legs:          legs,
		NetDebit:      -netCredit,
		MaxLoss:       width*Multiplier - netCredit,
		MaxProfit:     netCredit,
		BreakevenUp:   atm.Strike + credit,
		BreakevenDown: atm.Strike - credit,
		TrendStrength: TrendWeak,
	}, nil
}

// buildCalendar prices both time-spread families. The diagonal variant
// shorts an OTM strike instead of the long leg's strike.
func buildCalendar(rec *features.Record, snap *market.Snapshot, diagonal bool) (*Trade, error) {
	family := strategy.CalendarSpread
	if diagonal {
		family = strategy.DiagonalSpread
	}
	nearDTE, ok := market.NearestDTE(snap.Chain, 21)
	if !ok {
		return nil, fmt.Errorf("%s: %w", family, ErrUnresolvable)
	}
	farDTE, ok := market.NearestDTEAfter(snap.Chain, 45, nearDTE+14)
	if !ok {
		return nil, fmt.Errorf("%s: no far expiration beyond %d dte: %w", family, nearDTE+14, ErrUnresolvable)
	}

	typ := market.Put
	if (diagonal && rec.RSI14 > 55) || (!diagonal && rec.RSI14 > 50) {
		typ = market.Call
	}

	longTarget, shortTarget := 0.50, 0.50
	if diagonal {
		shortTarget = 0.30
	}
	longOpt, ok1 := market.ByDelta(snap.Chain, typ, farDTE, longTarget)
	if !ok1 {
		return nil, fmt.Errorf("%s: %w", family, ErrUnresolvable)
	}
	var shortOpt market.Option
	var ok2 bool
	if diagonal {
		shortOpt, ok2 = market.ByDelta(snap.Chain, typ, nearDTE, shortTarget)
	} else {
		shortOpt, ok2 = market.NearestStrike(snap.Chain, typ, nearDTE, longOpt.Strike)
	}
	if !ok2 {
		return nil, fmt.Errorf("%s: %w", family, ErrUnresolvable)
	}
	longLeg := resolve(longOpt, Long)
	shortLeg := resolve(shortOpt, Short)
	netDebit := (longLeg.Price - shortLeg.Price) * Multiplier
	return &Trade{
		Family:        family,
		Legs:          []ResolvedLeg{longLeg, shortLeg},
		NetDebit:      netDebit,
		MaxLoss:       netDebit,
		MaxProfit:     math.Inf(1),
		TrendStrength: classifyTrendStrength(rec),
	}, nil
}
