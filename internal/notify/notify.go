// Package notify pushes labeling run summaries to an ntfy topic.
package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/strategylab/optlabel/internal/config"
	"github.com/strategylab/optlabel/internal/engine"
)

// Notifier is the interface for sending run notifications.
type Notifier interface {
	SendSuccess(ctx context.Context, result *engine.BatchResult) error
	SendFailure(ctx context.Context, result *engine.BatchResult, err error) error
}

// Client implements the ntfy notification client.
type Client struct {
	httpClient *http.Client
	server     string
	topic      string
	logger     *zap.Logger
}

func NewClient(cfg config.NotifyConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		server:     cfg.URL,
		topic:      cfg.Topic,
		logger:     logger,
	}
}

// SendSuccess sends a run-complete notification.
func (c *Client) SendSuccess(ctx context.Context, result *engine.BatchResult) error {
	title := fmt.Sprintf("Labeling Complete: %d days", result.Labeled)
	return c.send(ctx, title, FormatSuccessMessage(result), "chart_with_upwards_trend,white_check_mark", "default")
}

// SendFailure sends a run-failed notification at high priority.
func (c *Client) SendFailure(ctx context.Context, result *engine.BatchResult, err error) error {
	return c.send(ctx, "Labeling Run Failed", FormatFailureMessage(result, err), "chart_with_downwards_trend,x", "high")
}

func (c *Client) send(ctx context.Context, title, message, tags, priority string) error {
	url := fmt.Sprintf("%s/%s", strings.TrimSuffix(c.server, "/"), c.topic)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(message))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Title", title)
	req.Header.Set("Priority", priority)
	req.Header.Set("Tags", tags)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("failed to send notification", zap.Error(err))
		return fmt.Errorf("sending notification: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// Drain response body to allow connection reuse
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("notification failed",
			zap.Int("status", resp.StatusCode),
			zap.String("url", url))
		return fmt.Errorf("notification failed with status: %d", resp.StatusCode)
	}

	c.logger.Debug("notification sent", zap.String("title", title))
	return nil
}

// NoopNotifier is a no-op implementation for when notifications are disabled.
type NoopNotifier struct{}

func (n *NoopNotifier) SendSuccess(_ context.Context, _ *engine.BatchResult) error { return nil }

func (n *NoopNotifier) SendFailure(_ context.Context, _ *engine.BatchResult, _ error) error {
	return nil
}

// New creates the appropriate notifier based on config.
func New(cfg config.NotifyConfig, logger *zap.Logger) Notifier {
	if !cfg.Enabled {
		return &NoopNotifier{}
	}
	return NewClient(cfg, logger)
}
