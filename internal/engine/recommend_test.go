package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/strategylab/optlabel/internal/classifier"
	"github.com/strategylab/optlabel/internal/features"
	"github.com/strategylab/optlabel/internal/market"
	"github.com/strategylab/optlabel/internal/risk"
	"github.com/strategylab/optlabel/internal/strategy"
)

type stubClassifier struct {
	pred classifier.Prediction
	err  error
}

func (s *stubClassifier) Classify(ctx context.Context, rec *features.Record) (classifier.Prediction, error) {
	return s.pred, s.err
}

func recommendFixture() (*features.Record, *market.Snapshot) {
	day := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	rec := &features.Record{Date: "2024-06-03", IVRank: 25, ADX14: 32, RSI14: 64, TrendRegime: 4}
	snap := &market.Snapshot{Date: "2024-06-03", Price: 100, Chain: syntheticChain(day, 100)}
	return rec, snap
}

func TestRecommendBuildsSizedTrade(t *testing.T) {
	rec, snap := recommendFixture()
	clf := &stubClassifier{pred: classifier.Prediction{
		Family:     strategy.LongCall,
		Confidence: 0.82,
		Source:     "model",
		Alternatives: []classifier.Alternative{
			{Family: strategy.BullCallSpread, Confidence: 0.12},
		},
	}}
	r := NewRecommender(clf, risk.Params{AccountEquity: 100000, Fraction: 0.02, MaxContracts: 10, MinRiskReward: 0.5}, nil)

	got, err := r.Recommend(context.Background(), rec, snap)
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if got.Family != "LONG_CALL" || got.Source != "model" {
		t.Errorf("got %s from %s, want LONG_CALL from model", got.Family, got.Source)
	}
	if got.Trade == nil || len(got.Trade.Legs) != 1 {
		t.Fatalf("expected a single-leg trade, got %+v", got.Trade)
	}
	if !got.Risk.Approved {
		t.Errorf("trade rejected: %s", got.Risk.Reason)
	}
	if got.Risk.Contracts < 1 {
		t.Errorf("got %d contracts, want at least 1", got.Risk.Contracts)
	}
	if len(got.Alternatives) != 1 {
		t.Errorf("got %d alternatives, want 1", len(got.Alternatives))
	}
}

func TestRecommendClassifierFailure(t *testing.T) {
	rec, snap := recommendFixture()
	r := NewRecommender(&stubClassifier{err: errors.New("model exploded")}, risk.Params{}, nil)

	if _, err := r.Recommend(context.Background(), rec, snap); err == nil {
		t.Fatal("expected classification error")
	}
}

func TestRecommendUnresolvableChain(t *testing.T) {
	rec, _ := recommendFixture()
	empty := &market.Snapshot{Date: "2024-06-03", Price: 100}
	clf := &stubClassifier{pred: classifier.Prediction{Family: strategy.LongCall, Confidence: 0.9, Source: "model"}}
	r := NewRecommender(clf, risk.Params{AccountEquity: 25000, Fraction: 0.02, MaxContracts: 10}, nil)

	if _, err := r.Recommend(context.Background(), rec, empty); err == nil {
		t.Fatal("expected resolution error on empty chain")
	}
}

func TestRecommendSurfacesRiskRejection(t *testing.T) {
	rec, snap := recommendFixture()
	clf := &stubClassifier{pred: classifier.Prediction{Family: strategy.LongCall, Confidence: 0.9, Source: "model"}}
	// A tiny account cannot absorb one contract of risk.
	r := NewRecommender(clf, risk.Params{AccountEquity: 1000, Fraction: 0.02, MaxContracts: 10, MinRiskReward: 0.5}, nil)

	got, err := r.Recommend(context.Background(), rec, snap)
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if got.Risk.Approved {
		t.Error("expected risk rejection for undersized account")
	}
	if got.Risk.Reason == "" {
		t.Error("rejection carries no reason")
	}
}
