// Package backtest evaluates candidate parameter sets against history:
// it finds prior days that looked like today, replays each candidate
// through those days' real chains, and scores the aggregate outcomes.
package backtest

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/strategylab/optlabel/internal/config"
	"github.com/strategylab/optlabel/internal/features"
)

// Tolerances are the per-feature bands a prior day must fall inside to
// count as similar. Relaxed bands apply on the single widening pass.
type Tolerances struct {
	IVRank        float64
	ADX           float64
	RSI           float64
	MinDays       int
	RelaxedIVRank float64
	RelaxedADX    float64
}

// TolerancesFrom maps the config section onto search tolerances.
func TolerancesFrom(cfg config.SimilarityConfig) Tolerances {
	return Tolerances{
		IVRank:        cfg.IVRankTolerance,
		ADX:           cfg.ADXTolerance,
		RSI:           cfg.RSITolerance,
		MinDays:       cfg.MinDays,
		RelaxedIVRank: cfg.RelaxedIVRankTolerance,
		RelaxedADX:    cfg.RelaxedADXTolerance,
	}
}

// InsufficientSimilarDaysError reports that even the widened search found
// too few matching prior days to rate a candidate.
type InsufficientSimilarDaysError struct {
	Date  string
	Found int
	Want  int
}

func (e *InsufficientSimilarDaysError) Error() string {
	return fmt.Sprintf("%s: found %d similar days, want %d", e.Date, e.Found, e.Want)
}

// FindSimilar returns indices into records of prior days similar to
// records[idx]: same trend regime, IV rank, ADX, and RSI all inside the
// strict bands. If fewer than MinDays match, the search widens once to
// the relaxed bands, dropping the trend and RSI constraints, and logs
// that it did. Still short means the day is unratable.
func FindSimilar(records []features.Record, idx int, tol Tolerances, log *zap.Logger) ([]int, error) {
	if log == nil {
		log = zap.NewNop()
	}
	today := &records[idx]

	strict := make([]int, 0, tol.MinDays)
	for i := 0; i < idx; i++ {
		p := &records[i]
		if p.TrendRegime == today.TrendRegime &&
			math.Abs(p.IVRank-today.IVRank) <= tol.IVRank &&
			math.Abs(p.ADX14-today.ADX14) <= tol.ADX &&
			math.Abs(p.RSI14-today.RSI14) <= tol.RSI {
			strict = append(strict, i)
		}
	}
	if len(strict) >= tol.MinDays {
		return strict, nil
	}

	relaxed := make([]int, 0, tol.MinDays)
	for i := 0; i < idx; i++ {
		p := &records[i]
		if math.Abs(p.IVRank-today.IVRank) <= tol.RelaxedIVRank &&
			math.Abs(p.ADX14-today.ADX14) <= tol.RelaxedADX {
			relaxed = append(relaxed, i)
		}
	}
	log.Debug("similarity search widened",
		zap.String("date", today.Date),
		zap.Int("strict", len(strict)),
		zap.Int("relaxed", len(relaxed)))
	if len(relaxed) >= tol.MinDays {
		return relaxed, nil
	}
	return nil, &InsufficientSimilarDaysError{Date: today.Date, Found: len(relaxed), Want: tol.MinDays}
}
