// Package labels persists one row per labeled trading day: the day's
// full feature vector plus the winning strategy family, its parameters,
// and the replay statistics backing the pick.
package labels

import (
	"context"
	"strconv"

	"github.com/strategylab/optlabel/internal/features"
	"github.com/strategylab/optlabel/internal/strategy"
)

// Label is one training row for the downstream classifier.
type Label struct {
	RunID       string          `json:"run_id"`
	Date        string          `json:"date"`
	Family      strategy.Family `json:"family"`
	Rule        string          `json:"rule"`
	Candidate   string          `json:"candidate"`
	DTE         int             `json:"dte"`
	FarDTE      int             `json:"far_dte"`
	Moneyness   float64         `json:"moneyness"`
	Width       float64         `json:"width"`
	Wing        float64         `json:"wing"`
	Distance    float64         `json:"distance"`
	WinProb     float64         `json:"win_prob"`
	EV          float64         `json:"ev"`
	MaxLoss     float64         `json:"max_loss"`
	Score       float64         `json:"score"`
	SimilarDays int             `json:"similar_days"`
	Features    features.Record `json:"features"`
}

// Store persists labeled rows. Implementations must tolerate repeated
// Save calls within one run.
type Store interface {
	Save(ctx context.Context, rows []Label) error
	Close() error
}

// Header is the CSV column order downstream training reads: date, the
// feature vector in its frozen order, the chosen family, its parameter
// columns, the replay statistics, then run metadata.
func Header() []string {
	cols := append([]string{"date"}, features.Names()...)
	return append(cols,
		"family",
		"dte", "far_dte", "moneyness", "width", "wing", "distance",
		"score", "win_prob", "ev", "max_loss",
		"run_id", "rule", "candidate", "similar_days",
	)
}

// Row renders the label in Header order. Parameter columns that do not
// apply to the family stay empty rather than reading as a real zero.
func (l Label) Row() []string {
	row := make([]string, 0, len(features.Names())+16)
	row = append(row, l.Date)
	for _, v := range l.Features.Vector() {
		row = append(row, formatFloat(v))
	}
	return append(row,
		string(l.Family),
		formatInt(l.DTE),
		formatInt(l.FarDTE),
		formatParam(l.Moneyness),
		formatParam(l.Width),
		formatParam(l.Wing),
		formatParam(l.Distance),
		formatFloat(l.Score),
		formatFloat(l.WinProb),
		formatFloat(l.EV),
		formatFloat(l.MaxLoss),
		l.RunID,
		l.Rule,
		l.Candidate,
		strconv.Itoa(l.SimilarDays),
	)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// formatParam leaves unset parameter axes empty. Template axes are all
// strictly positive, so zero only ever means "not used by this family".
func formatParam(v float64) string {
	if v == 0 {
		return ""
	}
	return formatFloat(v)
}

func formatInt(v int) string {
	if v == 0 {
		return ""
	}
	return strconv.Itoa(v)
}
