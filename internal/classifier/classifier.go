// Package classifier calls the trained strategy model over HTTP and
// falls back to the rule engine when the model is unavailable or unsure.
package classifier

import (
	"context"
	"errors"

	"github.com/strategylab/optlabel/internal/features"
	"github.com/strategylab/optlabel/internal/strategy"
)

var (
	// ErrUnavailable is returned when the model endpoint cannot be reached
	// after retries.
	ErrUnavailable = errors.New("classifier unavailable")
	// ErrLowConfidence is returned when the top prediction falls below the
	// configured confidence floor.
	ErrLowConfidence = errors.New("prediction below confidence threshold")
)

// Alternative is one non-top prediction with its probability.
type Alternative struct {
	Family     strategy.Family `json:"family"`
	Confidence float64         `json:"confidence"`
}

// Prediction is the model's answer for one feature vector: the top
// family, its probability, and up to two runners-up.
type Prediction struct {
	Family       strategy.Family `json:"family"`
	Confidence   float64         `json:"confidence"`
	Alternatives []Alternative   `json:"alternatives"`
	Source       string          `json:"source"` // "model" or "rules"
}

// Classifier interface for testability.
type Classifier interface {
	Classify(ctx context.Context, rec *features.Record) (Prediction, error)
}

// RuleFallback wraps a classifier so that model failures and
// low-confidence answers fall through to the deterministic rule table.
type RuleFallback struct {
	model Classifier
	rules *strategy.Selector
}

func NewRuleFallback(model Classifier, rules *strategy.Selector) *RuleFallback {
	return &RuleFallback{model: model, rules: rules}
}

func (f *RuleFallback) Classify(ctx context.Context, rec *features.Record) (Prediction, error) {
	if f.model != nil {
		pred, err := f.model.Classify(ctx, rec)
		if err == nil {
			return pred, nil
		}
		if !errors.Is(err, ErrUnavailable) && !errors.Is(err, ErrLowConfidence) {
			return Prediction{}, err
		}
	}
	family, rule := f.rules.Select(rec)
	return Prediction{Family: family, Confidence: 1, Source: "rules:" + rule}, nil
}
