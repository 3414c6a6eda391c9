package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/strategylab/optlabel/internal/config"
	"github.com/strategylab/optlabel/internal/features"
	"github.com/strategylab/optlabel/internal/strategy"
)

func clientFor(url string, retries int, minConfidence float64) *HTTPClient {
	logger, _ := zap.NewDevelopment()
	return NewHTTPClient(config.ClassifierConfig{
		URL:           url,
		TimeoutSec:    5,
		RetryCount:    retries,
		RatePerSecond: 100,
		MinConfidence: minConfidence,
	}, logger)
}

func condorRecord() *features.Record {
	return &features.Record{Date: "2024-06-03", IVRank: 62, ADX14: 18, RSI14: 51}
}

func TestClassifySuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/predict" {
			t.Errorf("expected path /predict, got %s", r.URL.Path)
		}
		var req predictRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if req.Date != "2024-06-03" {
			t.Errorf("expected date in payload, got %q", req.Date)
		}
		if len(req.Features) != features.Count {
			t.Errorf("expected %d features, got %d", features.Count, len(req.Features))
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"predictions": []map[string]any{
				{"family": "IRON_CONDOR", "confidence": 0.81},
				{"family": "IRON_BUTTERFLY", "confidence": 0.11},
				{"family": "LONG_STRANGLE", "confidence": 0.05},
				{"family": "LONG_CALL", "confidence": 0.03},
			},
		})
	}))
	defer server.Close()

	pred, err := clientFor(server.URL, 0, 0.40).Classify(context.Background(), condorRecord())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pred.Family != strategy.IronCondor {
		t.Errorf("got family %s, want IRON_CONDOR", pred.Family)
	}
	if pred.Confidence != 0.81 {
		t.Errorf("got confidence %.2f, want 0.81", pred.Confidence)
	}
	if pred.Source != "model" {
		t.Errorf("got source %q, want model", pred.Source)
	}
	if len(pred.Alternatives) != 2 {
		t.Fatalf("got %d alternatives, want 2", len(pred.Alternatives))
	}
	if pred.Alternatives[0].Family != strategy.IronButterfly {
		t.Errorf("got first alternative %s, want IRON_BUTTERFLY", pred.Alternatives[0].Family)
	}
}

func TestClassifyLowConfidence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"predictions": []map[string]any{{"family": "LONG_CALL", "confidence": 0.22}},
		})
	}))
	defer server.Close()

	_, err := clientFor(server.URL, 0, 0.40).Classify(context.Background(), condorRecord())
	if !errors.Is(err, ErrLowConfidence) {
		t.Errorf("expected ErrLowConfidence, got %v", err)
	}
}

func TestClassifyRetriesServerErrors(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"predictions": []map[string]any{{"family": "LONG_STRADDLE", "confidence": 0.64}},
		})
	}))
	defer server.Close()

	c := clientFor(server.URL, 3, 0.40)
	c.retryDelay = 1 // keep the test fast

	pred, err := c.Classify(context.Background(), condorRecord())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("got %d attempts, want 3", attempts)
	}
	if pred.Family != strategy.LongStraddle {
		t.Errorf("got family %s, want LONG_STRADDLE", pred.Family)
	}
}

func TestClassifyUnavailableAfterRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := clientFor(server.URL, 2, 0.40)
	c.retryDelay = 1

	_, err := c.Classify(context.Background(), condorRecord())
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestClassifyUnknownFamilyRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"predictions": []map[string]any{{"family": "NAKED_CALL", "confidence": 0.90}},
		})
	}))
	defer server.Close()

	if _, err := clientFor(server.URL, 0, 0.40).Classify(context.Background(), condorRecord()); err == nil {
		t.Error("expected error for unknown family")
	}
}

type stubClassifier struct {
	pred Prediction
	err  error
}

func (s *stubClassifier) Classify(ctx context.Context, rec *features.Record) (Prediction, error) {
	return s.pred, s.err
}

func TestRuleFallbackPrefersModel(t *testing.T) {
	model := &stubClassifier{pred: Prediction{Family: strategy.LongStrangle, Confidence: 0.7, Source: "model"}}
	f := NewRuleFallback(model, strategy.NewDefaultSelector())

	pred, err := f.Classify(context.Background(), condorRecord())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pred.Family != strategy.LongStrangle || pred.Source != "model" {
		t.Errorf("got %s from %s, want LONG_STRANGLE from model", pred.Family, pred.Source)
	}
}

func TestRuleFallbackOnUnavailable(t *testing.T) {
	model := &stubClassifier{err: ErrUnavailable}
	f := NewRuleFallback(model, strategy.NewDefaultSelector())

	// IV rank 62 with quiet ADX and neutral RSI matches the condor rule.
	pred, err := f.Classify(context.Background(), &features.Record{IVRank: 62, ADX14: 18, RSI14: 51})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pred.Family != strategy.IronCondor {
		t.Errorf("got %s, want IRON_CONDOR from rules", pred.Family)
	}
	if pred.Source != "rules:condor_high_iv_range" {
		t.Errorf("got source %q, want rules:condor_high_iv_range", pred.Source)
	}
}

func TestRuleFallbackWithoutModel(t *testing.T) {
	f := NewRuleFallback(nil, strategy.NewDefaultSelector())

	pred, err := f.Classify(context.Background(), &features.Record{IVRank: 62, ADX14: 18, RSI14: 51})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pred.Family != strategy.IronCondor {
		t.Errorf("got %s, want IRON_CONDOR", pred.Family)
	}
}
