package strategy

import (
	"errors"
	"testing"
)

func TestCheckDistributionWithinBands(t *testing.T) {
	// 1000 days split so every family sits inside its target band.
	counts := map[Family]int{
		IronCondor:     200,
		LongCall:       160,
		LongPut:        160,
		IronButterfly:  100,
		BullCallSpread: 100,
		BearPutSpread:  100,
		LongStraddle:   60,
		LongStrangle:   60,
		CalendarSpread: 30,
		DiagonalSpread: 30,
	}
	if got := sum(counts); got != 1000 {
		t.Fatalf("test fixture totals %d, want 1000", got)
	}
	if err := CheckDistribution(counts); err != nil {
		t.Errorf("CheckDistribution: %v", err)
	}
}

func TestCheckDistributionFlagsViolations(t *testing.T) {
	counts := map[Family]int{
		IronCondor: 90, // > 40% hard cap
		LongCall:   10,
	}
	err := CheckDistribution(counts)
	var derr *DistributionError
	if !errors.As(err, &derr) {
		t.Fatalf("CheckDistribution = %v, want DistributionError", err)
	}
	flagged := make(map[Family]bool)
	for _, f := range derr.Failures {
		flagged[f.Family] = true
	}
	if !flagged[IronCondor] {
		t.Error("over-cap family not flagged")
	}
	for _, f := range []Family{LongPut, LongStraddle, DiagonalSpread} {
		if !flagged[f] {
			t.Errorf("absent family %s not flagged", f)
		}
	}
}

func TestCheckDistributionEmpty(t *testing.T) {
	if err := CheckDistribution(nil); err == nil {
		t.Error("empty counts should error")
	}
}

func sum(counts map[Family]int) int {
	total := 0
	for _, n := range counts {
		total += n
	}
	return total
}
