package backtest

import (
	"math"
	"testing"

	"github.com/strategylab/optlabel/internal/candidates"
	"github.com/strategylab/optlabel/internal/market"
	"github.com/strategylab/optlabel/internal/strategy"
)

func callRow(strike float64, exp string, dte int, bid, ask float64) market.Option {
	return market.Option{Strike: strike, Type: market.Call, Expiration: exp, DTE: dte, Bid: bid, Ask: ask}
}

// replayHistory builds a week of bars around a single 100-strike call
// expiring 2024-03-08, quoted per-day by the quotes map. Days absent
// from the map carry a chain without the contract.
func replayHistory(t *testing.T, quotes map[string][2]float64, extra map[string][]market.Option) *market.History {
	t.Helper()
	dates := []string{"2024-03-01", "2024-03-04", "2024-03-05", "2024-03-06", "2024-03-07", "2024-03-08"}
	closes := map[string]float64{"2024-03-08": 104}
	dteByDate := map[string]int{
		"2024-03-01": 7, "2024-03-04": 4, "2024-03-05": 3,
		"2024-03-06": 2, "2024-03-07": 1, "2024-03-08": 0,
	}

	bars := make([]market.Bar, 0, len(dates))
	chains := make(map[string][]market.Option, len(dates))
	for _, d := range dates {
		px := 100.0
		if c, ok := closes[d]; ok {
			px = c
		}
		bars = append(bars, market.Bar{Date: d, Open: px, High: px, Low: px, Close: px, Volume: 1e6})
		var chain []market.Option
		if q, ok := quotes[d]; ok {
			chain = append(chain, callRow(100, "2024-03-08", dteByDate[d], q[0], q[1]))
		}
		chain = append(chain, extra[d]...)
		chains[d] = chain
	}
	h, err := market.NewHistory("TEST", bars, chains, nil, nil)
	if err != nil {
		t.Fatalf("NewHistory: %v", err)
	}
	return h
}

func longCallCandidate() candidates.Candidate {
	return candidates.Candidate{
		Family: strategy.LongCall,
		Name:   "dte7_atm",
		DTE:    7,
		Legs:   []candidates.Leg{{Type: market.Call, Side: candidates.Long, Offset: 0, DTE: 7}},
	}
}

func TestReplayProfitTarget(t *testing.T) {
	h := replayHistory(t, map[string][2]float64{
		"2024-03-01": {2.00, 2.10},
		"2024-03-04": {3.30, 3.40},
	}, nil)
	r := NewReplayer(h, ExitRules{ProfitTargetPct: 0.50, StopLossPct: 1.00, DTEFloor: 0})

	out, err := r.Replay(longCallCandidate(), "2024-03-01")
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if out.Reason != ExitProfitTarget {
		t.Fatalf("got reason %s, want %s", out.Reason, ExitProfitTarget)
	}
	// entry 2.10 at ask, marked 3.30 at bid: +$120 against a $105
	// target (half the debit, the payoff being unbounded).
	if math.Abs(out.PnL-120) > 1e-9 {
		t.Errorf("got pnl %.2f, want 120.00", out.PnL)
	}
	if out.ExitDate != "2024-03-04" || out.DaysHeld != 1 {
		t.Errorf("got exit %s after %d days, want 2024-03-04 after 1", out.ExitDate, out.DaysHeld)
	}
}

func TestReplayStopLoss(t *testing.T) {
	h := replayHistory(t, map[string][2]float64{
		"2024-03-01": {2.00, 2.10},
		"2024-03-04": {0.00, 0.05},
	}, nil)
	r := NewReplayer(h, ExitRules{ProfitTargetPct: 0.50, StopLossPct: 1.00, DTEFloor: 0})

	out, err := r.Replay(longCallCandidate(), "2024-03-01")
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if out.Reason != ExitStopLoss {
		t.Fatalf("got reason %s, want %s", out.Reason, ExitStopLoss)
	}
	if math.Abs(out.PnL-(-210)) > 1e-9 {
		t.Errorf("got pnl %.2f, want -210.00", out.PnL)
	}
}

func TestReplayDTEFloor(t *testing.T) {
	h := replayHistory(t, map[string][2]float64{
		"2024-03-01": {2.00, 2.10},
		"2024-03-04": {2.05, 2.15},
		"2024-03-05": {2.05, 2.15},
		"2024-03-06": {2.05, 2.15},
	}, nil)
	r := NewReplayer(h, ExitRules{ProfitTargetPct: 0.50, StopLossPct: 1.00, DTEFloor: 2})

	out, err := r.Replay(longCallCandidate(), "2024-03-01")
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if out.Reason != ExitDTEFloor {
		t.Fatalf("got reason %s, want %s", out.Reason, ExitDTEFloor)
	}
	if out.ExitDate != "2024-03-06" {
		t.Errorf("got exit %s, want 2024-03-06", out.ExitDate)
	}
	if math.Abs(out.PnL-(-5)) > 1e-9 {
		t.Errorf("got pnl %.2f, want -5.00", out.PnL)
	}
}

func TestReplayExpirationSettlesIntrinsic(t *testing.T) {
	flat := [2]float64{2.05, 2.15}
	h := replayHistory(t, map[string][2]float64{
		"2024-03-01": {2.00, 2.10},
		"2024-03-04": flat, "2024-03-05": flat, "2024-03-06": flat, "2024-03-07": flat,
	}, nil)
	r := NewReplayer(h, ExitRules{ProfitTargetPct: 0.50, StopLossPct: 1.00, DTEFloor: 0})

	out, err := r.Replay(longCallCandidate(), "2024-03-01")
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if out.Reason != ExitExpiration {
		t.Fatalf("got reason %s, want %s", out.Reason, ExitExpiration)
	}
	// Underlying closed at 104 on expiration day: intrinsic 4.00
	// against a 2.10 entry.
	if math.Abs(out.PnL-190) > 1e-9 {
		t.Errorf("got pnl %.2f, want 190.00", out.PnL)
	}
}

func TestReplayCarriesMissingQuotes(t *testing.T) {
	h := replayHistory(t, map[string][2]float64{
		"2024-03-01": {2.00, 2.10},
		// 2024-03-04 has no quote for the contract.
		"2024-03-05": {3.30, 3.40},
	}, nil)
	r := NewReplayer(h, ExitRules{ProfitTargetPct: 0.50, StopLossPct: 1.00, DTEFloor: 0})

	out, err := r.Replay(longCallCandidate(), "2024-03-01")
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if out.Reason != ExitProfitTarget {
		t.Fatalf("got reason %s, want %s", out.Reason, ExitProfitTarget)
	}
	if out.ExitDate != "2024-03-05" {
		t.Errorf("got exit %s, want 2024-03-05", out.ExitDate)
	}
}

func TestReplayEndOfDataClosesAtLastMark(t *testing.T) {
	dates := []string{"2024-03-01", "2024-03-04", "2024-03-05"}
	bars := make([]market.Bar, 0, len(dates))
	chains := make(map[string][]market.Option, len(dates))
	quotes := map[string][2]float64{
		"2024-03-01": {2.00, 2.10},
		"2024-03-04": {2.40, 2.50},
		"2024-03-05": {2.60, 2.70},
	}
	dte := map[string]int{"2024-03-01": 14, "2024-03-04": 11, "2024-03-05": 10}
	for _, d := range dates {
		bars = append(bars, market.Bar{Date: d, Open: 100, High: 100, Low: 100, Close: 100, Volume: 1e6})
		q := quotes[d]
		chains[d] = []market.Option{callRow(100, "2024-03-15", dte[d], q[0], q[1])}
	}
	h, err := market.NewHistory("TEST", bars, chains, nil, nil)
	if err != nil {
		t.Fatalf("NewHistory: %v", err)
	}
	r := NewReplayer(h, ExitRules{ProfitTargetPct: 0.50, StopLossPct: 1.00, DTEFloor: 2})

	c := longCallCandidate()
	c.Legs[0].DTE = 14
	out, err := r.Replay(c, "2024-03-01")
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if out.Reason != ExitEndOfData {
		t.Fatalf("got reason %s, want %s", out.Reason, ExitEndOfData)
	}
	// Last liquidation mark: 2.60 bid against 2.10 entry.
	if math.Abs(out.PnL-50) > 1e-9 {
		t.Errorf("got pnl %.2f, want 50.00", out.PnL)
	}
}

func TestReplaySpreadProfitTargetUsesWidth(t *testing.T) {
	extra := map[string][]market.Option{
		"2024-03-01": {callRow(105, "2024-03-08", 7, 0.90, 1.00)},
		"2024-03-04": {callRow(105, "2024-03-08", 4, 0.30, 0.40)},
	}
	h := replayHistory(t, map[string][2]float64{
		"2024-03-01": {2.00, 2.10},
		"2024-03-04": {3.50, 3.60},
	}, extra)
	r := NewReplayer(h, ExitRules{ProfitTargetPct: 0.50, StopLossPct: 1.00, DTEFloor: 0})

	c := candidates.Candidate{
		Family: strategy.BullCallSpread,
		Name:   "dte7_w5",
		DTE:    7,
		Legs: []candidates.Leg{
			{Type: market.Call, Side: candidates.Long, Offset: 0, DTE: 7},
			{Type: market.Call, Side: candidates.Short, Offset: 0.05, DTE: 7},
		},
	}
	out, err := r.Replay(c, "2024-03-01")
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	// Entry debit 2.10 - 0.90 = 1.20 against a 5.00 width, so max
	// profit is 3.80 and the 50% target is $190. The day-two mark of
	// 3.50 - 0.40 = 3.10 lands exactly on it.
	if out.Reason != ExitProfitTarget {
		t.Fatalf("got reason %s, want %s", out.Reason, ExitProfitTarget)
	}
	if math.Abs(out.PnL-190) > 1e-9 {
		t.Errorf("got pnl %.2f, want 190.00", out.PnL)
	}
}

func TestReplayUnresolvableChain(t *testing.T) {
	h := replayHistory(t, map[string][2]float64{}, nil)
	r := NewReplayer(h, ExitRules{ProfitTargetPct: 0.50, StopLossPct: 1.00, DTEFloor: 0})

	if _, err := r.Replay(longCallCandidate(), "2024-03-01"); err == nil {
		t.Fatal("expected resolution error on empty chain, got nil")
	}
}
