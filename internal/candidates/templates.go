package candidates

import (
	"fmt"

	"github.com/strategylab/optlabel/internal/features"
	"github.com/strategylab/optlabel/internal/market"
	"github.com/strategylab/optlabel/internal/strategy"
)

// Template axes. Each family's slate is the cross product of its axes,
// capped at slateCap entries; adding a variant is a table edit.
var (
	condorDTEs      = []int{14, 21, 30}
	condorDistances = []float64{0.05, 0.07, 0.10}
	condorWings     = []float64{0.02, 0.03}

	spreadDTEs       = []int{14, 21, 30}
	spreadWidths     = []float64{0.02, 0.03, 0.05}
	spreadMoneyness  = []float64{0.98, 1.00, 1.02}
	spreadCap        = 15

	longDTEs      = []int{7, 14, 21}
	longMoneyness = []float64{0.95, 0.98, 1.00, 1.02, 1.05}
	longCap       = 10

	butterflyDTEs  = []int{21, 30, 45}
	butterflyWings = []float64{0.03, 0.05, 0.07}

	straddleDTEs      = []int{7, 14, 21, 30}
	straddleMoneyness = []float64{0.98, 1.00, 1.02}

	strangleDTEs      = []int{14, 21, 30}
	strangleDistances = []float64{0.03, 0.05, 0.07}

	calendarNearDTEs  = []int{14, 21}
	calendarFarDTEs   = []int{35, 45, 60}
	calendarMoneyness = []float64{0.98, 1.00, 1.02}

	diagonalNearDTEs  = []int{14, 21}
	diagonalFarDTEs   = []int{45, 60}
	diagonalDistances = []float64{0.03, 0.05}
)

const slateCap = 20

// Generate expands a family into its candidate slate. Directional
// families that depend on momentum (calendar, diagonal) read the record
// to pick the call or put side; everything else ignores it.
func Generate(family strategy.Family, rec *features.Record) []Candidate {
	switch family {
	case strategy.IronCondor:
		return condorSlate()
	case strategy.IronButterfly:
		return butterflySlate()
	case strategy.LongCall:
		return longOptionSlate(strategy.LongCall, market.Call)
	case strategy.LongPut:
		return longOptionSlate(strategy.LongPut, market.Put)
	case strategy.BullCallSpread:
		return bullSpreadSlate()
	case strategy.BearPutSpread:
		return bearSpreadSlate()
	case strategy.LongStraddle:
		return straddleSlate()
	case strategy.LongStrangle:
		return strangleSlate()
	case strategy.CalendarSpread:
		return calendarSlate(rec)
	case strategy.DiagonalSpread:
		return diagonalSlate(rec)
	default:
		return nil
	}
}

func truncate(cs []Candidate, n int) []Candidate {
	if len(cs) > n {
		return cs[:n]
	}
	return cs
}

func condorSlate() []Candidate {
	var out []Candidate
	for _, dte := range condorDTEs {
		for _, dist := range condorDistances {
			for _, wing := range condorWings {
				out = append(out, Candidate{
					Family:   strategy.IronCondor,
					Name:     fmt.Sprintf("dte%d_dist%02.0f_wing%02.0f", dte, dist*100, wing*100),
					DTE:      dte,
					Distance: dist,
					Wing:     wing,
					Legs: []Leg{
						{Type: market.Put, Side: Short, Offset: -dist, DTE: dte},
						{Type: market.Put, Side: Long, Offset: -(dist + wing), DTE: dte},
						{Type: market.Call, Side: Short, Offset: dist, DTE: dte},
						{Type: market.Call, Side: Long, Offset: dist + wing, DTE: dte},
					},
				})
			}
		}
	}
	return truncate(out, slateCap)
}

func butterflySlate() []Candidate {
	var out []Candidate
	for _, dte := range butterflyDTEs {
		for _, wing := range butterflyWings {
			out = append(out, Candidate{
				Family: strategy.IronButterfly,
				Name:   fmt.Sprintf("dte%d_wing%02.0f", dte, wing*100),
				DTE:    dte,
				Wing:   wing,
				Legs: []Leg{
					{Type: market.Call, Side: Short, Offset: 0, DTE: dte},
					{Type: market.Put, Side: Short, Offset: 0, DTE: dte},
					{Type: market.Put, Side: Long, Offset: -wing, DTE: dte},
					{Type: market.Call, Side: Long, Offset: wing, DTE: dte},
				},
			})
		}
	}
	return truncate(out, slateCap)
}

func longOptionSlate(family strategy.Family, typ market.OptionType) []Candidate {
	var out []Candidate
	for _, dte := range longDTEs {
		for _, m := range longMoneyness {
			out = append(out, Candidate{
				Family:    family,
				Name:      fmt.Sprintf("dte%d_m%03.0f", dte, m*100),
				DTE:       dte,
				Moneyness: m,
				Legs: []Leg{
					{Type: typ, Side: Long, Offset: m - 1, DTE: dte},
				},
			})
		}
	}
	return truncate(out, longCap)
}

func bullSpreadSlate() []Candidate {
	var out []Candidate
	for _, dte := range spreadDTEs {
		for _, width := range spreadWidths {
			for _, m := range spreadMoneyness {
				out = append(out, Candidate{
					Family:    strategy.BullCallSpread,
					Name:      fmt.Sprintf("dte%d_w%02.0f_m%03.0f", dte, width*100, m*100),
					DTE:       dte,
					Width:     width,
					Moneyness: m,
					Legs: []Leg{
						{Type: market.Call, Side: Long, Offset: m - 1, DTE: dte},
						{Type: market.Call, Side: Short, Offset: m - 1 + width, DTE: dte},
					},
				})
			}
		}
	}
	return truncate(out, spreadCap)
}

func bearSpreadSlate() []Candidate {
	var out []Candidate
	for _, dte := range spreadDTEs {
		for _, width := range spreadWidths {
			for _, m := range spreadMoneyness {
				out = append(out, Candidate{
					Family:    strategy.BearPutSpread,
					Name:      fmt.Sprintf("dte%d_w%02.0f_m%03.0f", dte, width*100, m*100),
					DTE:       dte,
					Width:     width,
					Moneyness: m,
					Legs: []Leg{
						{Type: market.Put, Side: Long, Offset: m - 1, DTE: dte},
						{Type: market.Put, Side: Short, Offset: m - 1 - width, DTE: dte},
					},
				})
			}
		}
	}
	return truncate(out, spreadCap)
}

func straddleSlate() []Candidate {
	var out []Candidate
	for _, dte := range straddleDTEs {
		for _, m := range straddleMoneyness {
			out = append(out, Candidate{
				Family:    strategy.LongStraddle,
				Name:      fmt.Sprintf("dte%d_m%03.0f", dte, m*100),
				DTE:       dte,
				Moneyness: m,
				Legs: []Leg{
					{Type: market.Call, Side: Long, Offset: m - 1, DTE: dte},
					{Type: market.Put, Side: Long, Offset: m - 1, DTE: dte},
				},
			})
		}
	}
	return truncate(out, slateCap)
}

func strangleSlate() []Candidate {
	var out []Candidate
	for _, dte := range strangleDTEs {
		for _, dist := range strangleDistances {
			out = append(out, Candidate{
				Family:   strategy.LongStrangle,
				Name:     fmt.Sprintf("dte%d_dist%02.0f", dte, dist*100),
				DTE:      dte,
				Distance: dist,
				Legs: []Leg{
					{Type: market.Call, Side: Long, Offset: dist, DTE: dte},
					{Type: market.Put, Side: Long, Offset: -dist, DTE: dte},
				},
			})
		}
	}
	return truncate(out, slateCap)
}

func calendarSlate(rec *features.Record) []Candidate {
	typ := market.Put
	if rec != nil && rec.RSI14 > 50 {
		typ = market.Call
	}
	var out []Candidate
	for _, near := range calendarNearDTEs {
		for _, far := range calendarFarDTEs {
			for _, m := range calendarMoneyness {
				out = append(out, Candidate{
					Family:    strategy.CalendarSpread,
					Name:      fmt.Sprintf("near%d_far%d_m%03.0f", near, far, m*100),
					DTE:       near,
					FarDTE:    far,
					Moneyness: m,
					Legs: []Leg{
						{Type: typ, Side: Short, Offset: m - 1, DTE: near},
						{Type: typ, Side: Long, Offset: m - 1, DTE: far},
					},
				})
			}
		}
	}
	return truncate(out, slateCap)
}

func diagonalSlate(rec *features.Record) []Candidate {
	typ := market.Put
	sign := -1.0
	if rec != nil && rec.RSI14 > 55 {
		typ = market.Call
		sign = 1.0
	}
	var out []Candidate
	for _, near := range diagonalNearDTEs {
		for _, far := range diagonalFarDTEs {
			for _, dist := range diagonalDistances {
				out = append(out, Candidate{
					Family:   strategy.DiagonalSpread,
					Name:     fmt.Sprintf("near%d_far%d_dist%02.0f", near, far, dist*100),
					DTE:      near,
					FarDTE:   far,
					Distance: dist,
					Legs: []Leg{
						{Type: typ, Side: Long, Offset: 0, DTE: far},
						{Type: typ, Side: Short, Offset: sign * dist, DTE: near},
					},
				})
			}
		}
	}
	return truncate(out, slateCap)
}
