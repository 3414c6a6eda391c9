package strategy

import (
	"fmt"
	"strings"
)

// Band is a family's acceptable share of labeled days, in percent.
type Band struct {
	Min float64
	Max float64
}

// TargetBands is the acceptance range for each family's selection
// frequency over a full historical corpus.
var TargetBands = map[Family]Band{
	IronCondor:     {20, 30},
	LongCall:       {15, 20},
	LongPut:        {15, 20},
	IronButterfly:  {10, 15},
	BullCallSpread: {10, 15},
	BearPutSpread:  {10, 15},
	LongStraddle:   {5, 10},
	LongStrangle:   {5, 10},
	CalendarSpread: {3, 5},
	DiagonalSpread: {3, 5},
}

// hardCap is the share no family may ever exceed, regardless of band.
const hardCap = 40.0

// DistributionFailure is one family outside its band.
type DistributionFailure struct {
	Family   Family
	Expected Band
	Actual   float64
}

// DistributionError collects every band violation in one report.
type DistributionError struct {
	Failures []DistributionFailure
}

func (e *DistributionError) Error() string {
	var sb strings.Builder
	sb.WriteString("strategy distribution outside target bands:\n")
	for _, f := range e.Failures {
		sb.WriteString(fmt.Sprintf("  - %s: %.1f%% (want %.0f-%.0f%%)\n",
			f.Family, f.Actual, f.Expected.Min, f.Expected.Max))
	}
	return sb.String()
}

// CheckDistribution verifies each family's share of total selections
// against its target band and the hard cap, and that no family is absent.
func CheckDistribution(counts map[Family]int) error {
	total := 0
	for _, n := range counts {
		total += n
	}
	if total == 0 {
		return fmt.Errorf("no selections to check")
	}
	var failures []DistributionFailure
	for _, f := range Families {
		pct := 100 * float64(counts[f]) / float64(total)
		band := TargetBands[f]
		if pct < band.Min || pct > band.Max || pct == 0 || pct > hardCap {
			failures = append(failures, DistributionFailure{Family: f, Expected: band, Actual: pct})
		}
	}
	if len(failures) > 0 {
		return &DistributionError{Failures: failures}
	}
	return nil
}
