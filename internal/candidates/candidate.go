// Package candidates turns a selected strategy family into concrete
// parameter sets: a slate of templated candidates for offline evaluation,
// and a single delta-targeted trade for the online path.
package candidates

import (
	"fmt"

	"github.com/strategylab/optlabel/internal/market"
	"github.com/strategylab/optlabel/internal/strategy"
)

// Side is the direction of one leg.
type Side int

const (
	Long Side = iota + 1
	Short
)

func (s Side) String() string {
	if s == Long {
		return "long"
	}
	return "short"
}

// Leg is one templated position leg. Offset places the target strike at
// spot*(1+Offset); DTE is the target expiration for that leg, which
// differs between legs only for calendar-style families.
type Leg struct {
	Type   market.OptionType
	Side   Side
	Offset float64
	DTE    int
}

// Candidate is one parameter set for a family, expressed as targets to be
// resolved against a real chain. The axis fields mirror the template that
// produced it and become the label's parameter columns.
type Candidate struct {
	Family    strategy.Family
	Name      string
	DTE       int
	FarDTE    int
	Moneyness float64
	Width     float64
	Wing      float64
	Distance  float64
	Legs      []Leg
}

func (c Candidate) String() string {
	return fmt.Sprintf("%s/%s", c.Family, c.Name)
}
