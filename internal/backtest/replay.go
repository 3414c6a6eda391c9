package backtest

import (
	"fmt"
	"math"

	"github.com/strategylab/optlabel/internal/candidates"
	"github.com/strategylab/optlabel/internal/config"
	"github.com/strategylab/optlabel/internal/market"
	"github.com/strategylab/optlabel/internal/strategy"
)

// ExitReason tags how a replayed position was closed.
type ExitReason string

const (
	ExitProfitTarget ExitReason = "profit_target"
	ExitStopLoss     ExitReason = "stop_loss"
	ExitDTEFloor     ExitReason = "dte_floor"
	ExitExpiration   ExitReason = "expiration"
	ExitEndOfData    ExitReason = "end_of_data"
)

// ExitRules are the deterministic exit thresholds applied on every
// replayed trading day, checked in the order profit target, stop loss,
// DTE floor, expiration.
type ExitRules struct {
	ProfitTargetPct float64
	StopLossPct     float64
	DTEFloor        int
}

// ExitRulesFrom maps the config section onto replay exit rules.
func ExitRulesFrom(cfg config.ExitsConfig) ExitRules {
	return ExitRules{
		ProfitTargetPct: cfg.ProfitTargetPct,
		StopLossPct:     cfg.StopLossPct,
		DTEFloor:        cfg.DTEFloor,
	}
}

// Outcome is the result of replaying one candidate from one entry date.
// MaxLoss is the position's theoretical risk at entry, in dollars.
type Outcome struct {
	Candidate string
	EntryDate string
	ExitDate  string
	PnL       float64
	MaxLoss   float64
	DaysHeld  int
	Reason    ExitReason
}

// Win reports whether the replay closed profitable.
func (o Outcome) Win() bool { return o.PnL > 0 }

// position is a candidate resolved against a real entry-day chain.
type position struct {
	legs       []positionLeg
	entryCost  float64 // per share, negative for credit structures
	maxProfit  float64 // per share, +Inf when unbounded or path dependent
	maxLoss    float64 // per share, always positive
	expiration string  // earliest leg expiration
}

type positionLeg struct {
	opt  market.Option
	side candidates.Side
}

// Replayer walks resolved positions forward through historical chains.
type Replayer struct {
	hist  *market.History
	exits ExitRules
}

func NewReplayer(hist *market.History, exits ExitRules) *Replayer {
	return &Replayer{hist: hist, exits: exits}
}

// Replay resolves the candidate against the entry date's chain, then
// marks it to market on each subsequent trading day until an exit rule
// fires. Days with a missing quote for any leg carry the prior mark.
// Running out of history closes the position at its last mark.
func (r *Replayer) Replay(c candidates.Candidate, entryDate string) (Outcome, error) {
	snap, err := r.hist.Snapshot(entryDate)
	if err != nil {
		return Outcome{}, err
	}
	pos, err := resolvePosition(c, snap)
	if err != nil {
		return Outcome{}, fmt.Errorf("resolve %s at %s: %w", c, entryDate, err)
	}

	// Bounds are per share; the pnl they gate is per contract.
	profitTarget := r.exits.ProfitTargetPct * pos.maxProfit * candidates.Multiplier
	if math.IsInf(pos.maxProfit, 1) {
		profitTarget = r.exits.ProfitTargetPct * math.Abs(pos.entryCost) * candidates.Multiplier
	}
	stopLoss := r.exits.StopLossPct * pos.maxLoss * candidates.Multiplier

	dates := r.hist.Dates()
	start, _ := r.hist.IndexOf(entryDate)

	lastMark := pos.entryCost
	lastDate := entryDate
	held := 0
	for i := start + 1; i < len(dates); i++ {
		date := dates[i]
		held = i - start
		if date >= pos.expiration {
			return r.settle(pos, c, entryDate, date, held)
		}
		day, err := r.hist.Snapshot(date)
		if err != nil {
			continue
		}
		mark, minDTE, ok := markPosition(pos, day.Chain)
		if !ok {
			continue
		}
		lastMark, lastDate = mark, date
		pnl := (mark - pos.entryCost) * candidates.Multiplier

		switch {
		case pnl >= profitTarget:
			return outcome(c, pos, entryDate, date, pnl, held, ExitProfitTarget), nil
		case pnl <= -stopLoss:
			return outcome(c, pos, entryDate, date, pnl, held, ExitStopLoss), nil
		case minDTE <= r.exits.DTEFloor:
			return outcome(c, pos, entryDate, date, pnl, held, ExitDTEFloor), nil
		}
	}
	pnl := (lastMark - pos.entryCost) * candidates.Multiplier
	return outcome(c, pos, entryDate, lastDate, pnl, held, ExitEndOfData), nil
}

func (r *Replayer) settle(pos position, c candidates.Candidate, entryDate, date string, held int) (Outcome, error) {
	bar, err := r.hist.Bar(date)
	if err != nil {
		return Outcome{}, err
	}
	value := 0.0
	for _, l := range pos.legs {
		iv := l.opt.Intrinsic(bar.Close)
		if l.side == candidates.Long {
			value += iv
		} else {
			value -= iv
		}
	}
	pnl := (value - pos.entryCost) * candidates.Multiplier
	return outcome(c, pos, entryDate, date, pnl, held, ExitExpiration), nil
}

func outcome(c candidates.Candidate, pos position, entry, exit string, pnl float64, held int, reason ExitReason) Outcome {
	return Outcome{
		Candidate: c.String(),
		EntryDate: entry,
		ExitDate:  exit,
		PnL:       pnl,
		MaxLoss:   pos.maxLoss * candidates.Multiplier,
		DaysHeld:  held,
		Reason:    reason,
	}
}

// markPosition values the position at liquidation: longs at bid, shorts
// bought back at ask. Returns false when any leg has no quote that day.
func markPosition(pos position, chain []market.Option) (mark float64, minDTE int, ok bool) {
	minDTE = math.MaxInt32
	for _, l := range pos.legs {
		o, found := market.ByContract(chain, l.opt.Type, l.opt.Expiration, l.opt.Strike)
		if !found {
			return 0, 0, false
		}
		if l.side == candidates.Long {
			mark += o.Bid
		} else {
			mark -= o.Ask
		}
		if o.DTE < minDTE {
			minDTE = o.DTE
		}
	}
	return mark, minDTE, true
}

// resolvePosition maps each templated leg to a real contract: nearest
// listed expiration to the leg's DTE target, then nearest strike to
// spot*(1+offset). Entry fills longs at ask and shorts at bid.
func resolvePosition(c candidates.Candidate, snap *market.Snapshot) (position, error) {
	pos := position{legs: make([]positionLeg, 0, len(c.Legs))}
	for _, leg := range c.Legs {
		dte, ok := market.NearestDTE(snap.Chain, leg.DTE)
		if !ok {
			return position{}, fmt.Errorf("no expirations in chain for %s", snap.Date)
		}
		opt, ok := market.NearestStrike(snap.Chain, leg.Type, dte, snap.Price*(1+leg.Offset))
		if !ok {
			return position{}, fmt.Errorf("no %s contracts at dte %d", leg.Type, dte)
		}
		if leg.Side == candidates.Long {
			pos.entryCost += opt.Ask
		} else {
			pos.entryCost -= opt.Bid
		}
		pos.legs = append(pos.legs, positionLeg{opt: opt, side: leg.Side})
		if pos.expiration == "" || opt.Expiration < pos.expiration {
			pos.expiration = opt.Expiration
		}
	}
	pos.maxProfit, pos.maxLoss = positionBounds(c.Family, pos)
	if pos.maxLoss <= 0 {
		return position{}, fmt.Errorf("degenerate fill for %s: no risk", c)
	}
	return pos, nil
}

// positionBounds derives per-share profit and loss bounds from the
// resolved strikes. Unbounded or path-dependent payoffs report +Inf
// profit; their replay profit target keys off the entry debit instead.
func positionBounds(family strategy.Family, pos position) (maxProfit, maxLoss float64) {
	switch family {
	case strategy.IronCondor, strategy.IronButterfly:
		credit := -pos.entryCost
		return credit, maxWingWidth(pos) - credit
	case strategy.BullCallSpread, strategy.BearPutSpread:
		return maxWingWidth(pos) - pos.entryCost, pos.entryCost
	default:
		// Long premium, straddles, strangles, and calendar-style
		// structures: risk is the debit paid, upside unbounded or
		// dependent on the vol path.
		return math.Inf(1), pos.entryCost
	}
}

// maxWingWidth is the widest long/short strike gap within a contract type.
func maxWingWidth(pos position) float64 {
	width := 0.0
	for _, a := range pos.legs {
		for _, b := range pos.legs {
			if a.opt.Type != b.opt.Type || a.side == b.side {
				continue
			}
			if w := math.Abs(a.opt.Strike - b.opt.Strike); w > width {
				width = w
			}
		}
	}
	return width
}
