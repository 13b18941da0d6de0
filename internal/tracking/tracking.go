// Package tracking posts an optional, anonymous usage event to a
// user-configured webhook after a run. Delivery is fire-and-forget: a slow
// or failing endpoint must never block or fail an analysis, so errors are
// logged at debug level and otherwise dropped.
package tracking

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Timeout bounds one delivery attempt.
const Timeout = 3 * time.Second

// Event is the payload posted to the webhook.
type Event struct {
	Command    string `json:"command"`
	Plugin     string `json:"plugin,omitempty"`
	Platform   string `json:"platform,omitempty"`
	Findings   int    `json:"findings"`
	Score      int    `json:"score"`
	DurationMS int64  `json:"duration_ms"`
	Timestamp  string `json:"timestamp"`
}

// Client delivers events.
type Client struct {
	URL        string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// New builds a client. A nil logger is replaced with a no-op one.
func New(url string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		URL:        url,
		HTTPClient: &http.Client{Timeout: Timeout},
		Logger:     logger,
	}
}

// Send delivers the event in a background goroutine and returns a channel
// that closes when the attempt finished, so callers that care (tests,
// process shutdown) can wait without coupling the run to delivery.
func (c *Client) Send(event Event) <-chan struct{} {
	done := make(chan struct{})
	if c == nil || c.URL == "" {
		close(done)
		return done
	}
	event.Timestamp = time.Now().UTC().Format(time.RFC3339)
	go func() {
		defer close(done)
		c.post(event)
	}()
	return done
}

func (c *Client) post(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		c.Logger.Debug("tracking: encode event", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(payload))
	if err != nil {
		c.Logger.Debug("tracking: build request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		c.Logger.Debug("tracking: deliver event", zap.Error(err))
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		c.Logger.Debug("tracking: webhook rejected event", zap.Int("status", resp.StatusCode))
	}
}
