package market

import (
	"math"
	"sort"
)

// DTEs returns the distinct days-to-expiration present in a chain,
// ascending.
func DTEs(chain []Option) []int {
	seen := make(map[int]struct{})
	for _, o := range chain {
		seen[o.DTE] = struct{}{}
	}
	out := make([]int, 0, len(seen))
	for d := range seen {
		out = append(out, d)
	}
	sort.Ints(out)
	return out
}

// NearestDTE returns the available expiration closest to target.
func NearestDTE(chain []Option, target int) (int, bool) {
	dtes := DTEs(chain)
	if len(dtes) == 0 {
		return 0, false
	}
	best := dtes[0]
	for _, d := range dtes[1:] {
		if abs(d-target) < abs(best-target) {
			best = d
		}
	}
	return best, true
}

// NearestDTEAfter returns the expiration closest to target among those
// strictly beyond floor.
func NearestDTEAfter(chain []Option, target, floor int) (int, bool) {
	var best int
	found := false
	for _, d := range DTEs(chain) {
		if d <= floor {
			continue
		}
		if !found || abs(d-target) < abs(best-target) {
			best = d
			found = true
		}
	}
	return best, found
}

// ByDelta returns the contract of the given type and expiration whose
// absolute delta is closest to |targetDelta|. Falls back to any
// expiration when the requested one has no contracts of that type.
func ByDelta(chain []Option, typ OptionType, dte int, targetDelta float64) (Option, bool) {
	best, ok := byDeltaAtDTE(chain, typ, dte, targetDelta, true)
	if !ok {
		best, ok = byDeltaAtDTE(chain, typ, dte, targetDelta, false)
	}
	return best, ok
}

func byDeltaAtDTE(chain []Option, typ OptionType, dte int, targetDelta float64, exact bool) (Option, bool) {
	var best Option
	bestDiff := math.Inf(1)
	found := false
	want := math.Abs(targetDelta)
	for _, o := range chain {
		if o.Type != typ {
			continue
		}
		if exact && o.DTE != dte {
			continue
		}
		diff := math.Abs(math.Abs(o.Delta) - want)
		if diff < bestDiff {
			best, bestDiff, found = o, diff, true
		}
	}
	return best, found
}

// NearestStrike returns the contract of the given type and expiration
// whose strike is closest to target.
func NearestStrike(chain []Option, typ OptionType, dte int, target float64) (Option, bool) {
	var best Option
	bestDiff := math.Inf(1)
	found := false
	for _, o := range chain {
		if o.Type != typ || o.DTE != dte {
			continue
		}
		diff := math.Abs(o.Strike - target)
		if diff < bestDiff {
			best, bestDiff, found = o, diff, true
		}
	}
	return best, found
}

// ByStrike returns the exact contract for (strike, type, dte).
func ByStrike(chain []Option, typ OptionType, dte int, strike float64) (Option, bool) {
	for _, o := range chain {
		if o.Type == typ && o.DTE == dte && o.Strike == strike {
			return o, true
		}
	}
	return Option{}, false
}

// ByContract returns the row matching (strike, type, expiration) in a
// later snapshot, regardless of its remaining DTE.
func ByContract(chain []Option, typ OptionType, expiration string, strike float64) (Option, bool) {
	for _, o := range chain {
		if o.Type == typ && o.Expiration == expiration && o.Strike == strike {
			return o, true
		}
	}
	return Option{}, false
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
