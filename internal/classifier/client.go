package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/strategylab/optlabel/internal/config"
	"github.com/strategylab/optlabel/internal/features"
	"github.com/strategylab/optlabel/internal/strategy"
)

// HTTPClient calls a model serving endpoint that accepts the feature
// map as JSON and returns ranked family probabilities.
type HTTPClient struct {
	httpClient    *http.Client
	baseURL       string
	limiter       *rate.Limiter
	retryCount    int
	retryDelay    time.Duration
	minConfidence float64
	logger        *zap.Logger
}

type predictRequest struct {
	Date     string             `json:"date"`
	Features map[string]float64 `json:"features"`
}

type predictResponse struct {
	Predictions []struct {
		Family     string  `json:"family"`
		Confidence float64 `json:"confidence"`
	} `json:"predictions"`
}

func NewHTTPClient(cfg config.ClassifierConfig, logger *zap.Logger) *HTTPClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	transport := &http.Transport{
		MaxIdleConns:    100,
		MaxConnsPerHost: 10,
		IdleConnTimeout: 90 * time.Second,
	}
	return &HTTPClient{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout(),
		},
		baseURL:       cfg.URL,
		limiter:       rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RatePerSecond*2),
		retryCount:    cfg.RetryCount,
		retryDelay:    500 * time.Millisecond,
		minConfidence: cfg.MinConfidence,
		logger:        logger,
	}
}

func (c *HTTPClient) Classify(ctx context.Context, rec *features.Record) (Prediction, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Prediction{}, fmt.Errorf("rate limiter: %w", err)
	}

	payload, err := json.Marshal(predictRequest{Date: rec.Date, Features: rec.Map()})
	if err != nil {
		return Prediction{}, fmt.Errorf("encoding request: %w", err)
	}
	url := c.baseURL + "/predict"

	var lastErr error
	for attempt := 0; attempt <= c.retryCount; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(1<<(attempt-1)) // Exponential backoff
			c.logger.Debug("retrying prediction", zap.Int("attempt", attempt), zap.Duration("delay", delay))

			select {
			case <-ctx.Done():
				return Prediction{}, ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return Prediction{}, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return Prediction{}, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
		}

		return c.decode(body)
	}

	return Prediction{}, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

// decode converts the ranked response into a Prediction, keeping at most
// two alternatives behind the top pick.
func (c *HTTPClient) decode(body []byte) (Prediction, error) {
	var pr predictResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return Prediction{}, fmt.Errorf("decoding response: %w", err)
	}
	if len(pr.Predictions) == 0 {
		return Prediction{}, fmt.Errorf("empty prediction list")
	}

	top := pr.Predictions[0]
	family, err := strategy.ParseFamily(top.Family)
	if err != nil {
		return Prediction{}, fmt.Errorf("decoding response: %w", err)
	}
	if top.Confidence < c.minConfidence {
		return Prediction{}, fmt.Errorf("%w: %.2f < %.2f", ErrLowConfidence, top.Confidence, c.minConfidence)
	}

	pred := Prediction{Family: family, Confidence: top.Confidence, Source: "model"}
	for _, alt := range pr.Predictions[1:] {
		if len(pred.Alternatives) == 2 {
			break
		}
		af, err := strategy.ParseFamily(alt.Family)
		if err != nil {
			continue
		}
		pred.Alternatives = append(pred.Alternatives, Alternative{Family: af, Confidence: alt.Confidence})
	}
	return pred, nil
}
