package backtest

import (
	"math"
	"sort"

	"github.com/strategylab/optlabel/internal/candidates"
	"github.com/strategylab/optlabel/internal/config"
)

// ScoreParams tune the risk-adjusted score: a multiplicative bonus above
// the high-confidence win rate and a penalty below the low one.
type ScoreParams struct {
	HighConfidence float64
	Bonus          float64
	LowConfidence  float64
	Penalty        float64
	MinDays        int
}

// ScoreParamsFrom maps the config sections onto scoring parameters.
func ScoreParamsFrom(score config.ScoreConfig, sim config.SimilarityConfig) ScoreParams {
	return ScoreParams{
		HighConfidence: score.HighConfidence,
		Bonus:          score.HighConfidenceBonus,
		LowConfidence:  score.LowConfidence,
		Penalty:        score.LowConfidencePenalty,
		MinDays:        sim.MinDays,
	}
}

// Scored is one candidate's aggregate replay statistics.
type Scored struct {
	Candidate candidates.Candidate
	Trials    int
	Wins      int
	WinProb   float64
	MeanWin   float64 // mean profit across winning replays, dollars
	MeanLoss  float64 // mean loss across losing replays, negative dollars
	EV        float64 // expected value per trade, dollars
	MaxLoss   float64 // worst observed loss, positive dollars
	Score     float64
}

// Score aggregates replay outcomes into a risk-adjusted score:
// EV / max observed loss, scaled by the confidence bonus or penalty.
// The win probability is clamped away from 0 and 1 so a perfect or
// winless sample of n replays still prices in roughly half a miss.
// fallbackMaxLoss covers the all-wins case where no loss was observed.
func Score(c candidates.Candidate, outcomes []Outcome, fallbackMaxLoss float64, p ScoreParams) Scored {
	s := Scored{Candidate: c, Trials: len(outcomes)}
	if s.Trials == 0 {
		return s
	}

	var winSum, lossSum, worst float64
	var losses int
	for _, o := range outcomes {
		if o.Win() {
			s.Wins++
			winSum += o.PnL
		} else {
			losses++
			lossSum += o.PnL
		}
		if o.PnL < worst {
			worst = o.PnL
		}
	}
	if s.Wins > 0 {
		s.MeanWin = winSum / float64(s.Wins)
	}
	if losses > 0 {
		s.MeanLoss = lossSum / float64(losses)
	}

	s.WinProb = float64(s.Wins) / float64(s.Trials)
	if s.Trials >= p.MinDays {
		half := 1 / (2 * float64(s.Trials))
		s.WinProb = math.Min(math.Max(s.WinProb, half), 1-half)
	}

	s.EV = s.WinProb*s.MeanWin + (1-s.WinProb)*s.MeanLoss

	s.MaxLoss = -worst
	if s.MaxLoss == 0 {
		s.MaxLoss = fallbackMaxLoss
	}
	if s.MaxLoss <= 0 {
		return s
	}

	s.Score = s.EV / s.MaxLoss
	switch {
	case s.WinProb > p.HighConfidence:
		s.Score *= p.Bonus
	case s.WinProb < p.LowConfidence:
		s.Score *= p.Penalty
	}
	return s
}

// Best returns the highest-scoring candidate. Ties break toward the
// smaller observed max loss so equal edges prefer the cheaper risk.
func Best(scored []Scored) (Scored, bool) {
	if len(scored) == 0 {
		return Scored{}, false
	}
	ranked := make([]Scored, len(scored))
	copy(ranked, scored)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].MaxLoss < ranked[j].MaxLoss
	})
	return ranked[0], true
}
