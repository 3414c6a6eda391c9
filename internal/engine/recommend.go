package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/strategylab/optlabel/internal/candidates"
	"github.com/strategylab/optlabel/internal/classifier"
	"github.com/strategylab/optlabel/internal/features"
	"github.com/strategylab/optlabel/internal/market"
	"github.com/strategylab/optlabel/internal/risk"
)

// Recommendation is the online answer for one trading day: the picked
// family with its confidence, a concrete sized trade, and the risk
// verdict. A rejected trade still produces a recommendation so callers
// can see why it was not approved.
type Recommendation struct {
	Date         string                   `json:"date"`
	Family       string                   `json:"family"`
	Confidence   float64                  `json:"confidence"`
	Source       string                   `json:"source"`
	Alternatives []classifier.Alternative `json:"alternatives,omitempty"`
	Trade        *candidates.Trade        `json:"trade"`
	Risk         risk.Assessment          `json:"risk"`
}

// Recommender runs the online path: classify, build, size, validate.
type Recommender struct {
	clf    classifier.Classifier
	params risk.Params
	logger *zap.Logger
}

func NewRecommender(clf classifier.Classifier, params risk.Params, logger *zap.Logger) *Recommender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recommender{clf: clf, params: params, logger: logger}
}

// Recommend classifies the record and resolves a tradable position
// against the day's chain. Classification and resolution failures are
// errors; a risk rejection is not.
func (r *Recommender) Recommend(ctx context.Context, rec *features.Record, snap *market.Snapshot) (*Recommendation, error) {
	pred, err := r.clf.Classify(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("classifying %s: %w", rec.Date, err)
	}

	trade, err := candidates.Build(pred.Family, rec, snap)
	if err != nil {
		return nil, fmt.Errorf("building %s trade: %w", pred.Family, err)
	}

	assessment := r.params.ValidateTrade(trade.MaxLoss, trade.MaxProfit)
	if !assessment.Approved {
		r.logger.Info("trade rejected",
			zap.String("date", rec.Date),
			zap.String("family", string(pred.Family)),
			zap.String("reason", assessment.Reason))
	}

	return &Recommendation{
		Date:         rec.Date,
		Family:       string(pred.Family),
		Confidence:   pred.Confidence,
		Source:       pred.Source,
		Alternatives: pred.Alternatives,
		Trade:        trade,
		Risk:         assessment,
	}, nil
}
