package candidates

import (
	"testing"

	"github.com/strategylab/optlabel/internal/features"
	"github.com/strategylab/optlabel/internal/market"
	"github.com/strategylab/optlabel/internal/strategy"
)

func TestGenerateSlateSizes(t *testing.T) {
	rec := &features.Record{RSI14: 50}
	tests := []struct {
		family   strategy.Family
		min, max int
		legs     int
	}{
		{strategy.IronCondor, 10, 20, 4},
		{strategy.IronButterfly, 9, 20, 4},
		{strategy.LongCall, 10, 10, 1},
		{strategy.LongPut, 10, 10, 1},
		{strategy.BullCallSpread, 15, 15, 2},
		{strategy.BearPutSpread, 15, 15, 2},
		{strategy.LongStraddle, 12, 20, 2},
		{strategy.LongStrangle, 9, 20, 2},
		{strategy.CalendarSpread, 12, 20, 2},
		{strategy.DiagonalSpread, 8, 20, 2},
	}
	for _, tt := range tests {
		t.Run(string(tt.family), func(t *testing.T) {
			slate := Generate(tt.family, rec)
			if len(slate) < tt.min || len(slate) > tt.max {
				t.Fatalf("slate size = %d, want %d..%d", len(slate), tt.min, tt.max)
			}
			for _, c := range slate {
				if c.Family != tt.family {
					t.Errorf("candidate %s has family %s", c.Name, c.Family)
				}
				if len(c.Legs) != tt.legs {
					t.Errorf("candidate %s has %d legs, want %d", c.Name, len(c.Legs), tt.legs)
				}
			}
		})
	}
}

func TestGenerateNamesAreUnique(t *testing.T) {
	rec := &features.Record{RSI14: 50}
	for _, f := range strategy.Families {
		seen := make(map[string]bool)
		for _, c := range Generate(f, rec) {
			if seen[c.Name] {
				t.Errorf("%s: duplicate candidate name %s", f, c.Name)
			}
			seen[c.Name] = true
		}
	}
}

func TestCondorSlateStructure(t *testing.T) {
	for _, c := range Generate(strategy.IronCondor, nil) {
		var shortPut, longPut, shortCall, longCall *Leg
		for i := range c.Legs {
			leg := &c.Legs[i]
			switch {
			case leg.Type == market.Put && leg.Side == Short:
				shortPut = leg
			case leg.Type == market.Put && leg.Side == Long:
				longPut = leg
			case leg.Type == market.Call && leg.Side == Short:
				shortCall = leg
			case leg.Type == market.Call && leg.Side == Long:
				longCall = leg
			}
		}
		if shortPut == nil || longPut == nil || shortCall == nil || longCall == nil {
			t.Fatalf("%s: condor missing a leg", c.Name)
		}
		if longPut.Offset >= shortPut.Offset {
			t.Errorf("%s: long put wing must sit below the short put", c.Name)
		}
		if longCall.Offset <= shortCall.Offset {
			t.Errorf("%s: long call wing must sit above the short call", c.Name)
		}
	}
}

func TestCalendarSlateDirection(t *testing.T) {
	bull := &features.Record{RSI14: 60}
	for _, c := range Generate(strategy.CalendarSpread, bull) {
		for _, leg := range c.Legs {
			if leg.Type != market.Call {
				t.Fatalf("%s: bullish calendar should use calls", c.Name)
			}
		}
		if c.FarDTE <= c.DTE {
			t.Errorf("%s: far leg must expire after near leg", c.Name)
		}
	}
	bear := &features.Record{RSI14: 40}
	for _, c := range Generate(strategy.CalendarSpread, bear) {
		for _, leg := range c.Legs {
			if leg.Type != market.Put {
				t.Fatalf("%s: bearish calendar should use puts", c.Name)
			}
		}
	}
}

func TestStraddleLegsShareStrike(t *testing.T) {
	for _, c := range Generate(strategy.LongStraddle, &features.Record{RSI14: 50}) {
		if c.Legs[0].Offset != c.Legs[1].Offset {
			t.Errorf("%s: straddle legs at different offsets", c.Name)
		}
		if c.Legs[0].Side != Long || c.Legs[1].Side != Long {
			t.Errorf("%s: straddle legs must both be long", c.Name)
		}
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	rec := &features.Record{RSI14: 57}
	a := Generate(strategy.DiagonalSpread, rec)
	b := Generate(strategy.DiagonalSpread, rec)
	if len(a) != len(b) {
		t.Fatalf("slate sizes differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Name != b[i].Name || len(a[i].Legs) != len(b[i].Legs) {
			t.Fatalf("slate differs at %d: %+v vs %+v", i, a[i], b[i])
		}
	}
}
