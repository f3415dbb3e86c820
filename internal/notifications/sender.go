package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/albapepper/skyvibes/internal/httputil"
	"github.com/albapepper/skyvibes/internal/metrics"
)

// Ticket is the relay's per-message acknowledgement.
type Ticket struct {
	Status  string `json:"status"` // "ok" | "error"
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
	Details *struct {
		Error string `json:"error,omitempty"`
	} `json:"details,omitempty"`
}

// SendResult summarises one relay POST.
type SendResult struct {
	Tickets   []Ticket
	Delivered int // tickets with status "ok"
	Rejected  int // tickets with status "error"
}

// ExpoSender posts messages to the Expo push relay. No authentication header
// is sent.
type ExpoSender struct {
	httpClient *http.Client
	url        string
	logger     *slog.Logger
}

// NewExpoSender creates a sender for the relay endpoint.
func NewExpoSender(url string, timeout time.Duration, logger *slog.Logger) *ExpoSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExpoSender{
		httpClient: httputil.NewClient(timeout),
		url:        url,
		logger:     logger,
	}
}

// Send posts all messages as one JSON array. It fails only when the POST
// itself fails or the relay answers non-2xx; rejected tickets are logged and
// counted but do not fail the send.
func (s *ExpoSender) Send(ctx context.Context, msgs []Message) (_ *SendResult, err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveCall(metrics.ServicePushRelay, time.Since(start).Seconds(), err)
	}()

	payload, err := json.Marshal(msgs)
	if err != nil {
		return nil, fmt.Errorf("encode messages: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post to relay: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read relay response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("relay returned %d: %s", resp.StatusCode, httputil.Truncate(body, 200))
	}

	result := &SendResult{}
	var decoded struct {
		Data []Ticket `json:"data"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		s.logger.Warn("Push relay response not understood",
			"messages", len(msgs), "body", httputil.Truncate(body, 200), "error", err)
		return result, nil
	}

	result.Tickets = decoded.Data
	for i, t := range decoded.Data {
		switch t.Status {
		case "ok":
			result.Delivered++
		case "error":
			result.Rejected++
			attrs := []any{"message", t.Message}
			if i < len(msgs) {
				attrs = append(attrs, "token", redactToken(msgs[i].To))
			}
			if t.Details != nil && t.Details.Error != "" {
				attrs = append(attrs, "code", t.Details.Error)
			}
			s.logger.Warn("Push ticket rejected", attrs...)
		}
	}
	metrics.MessagesDispatched.WithLabelValues(metrics.StatusOK).Add(float64(result.Delivered))
	metrics.MessagesDispatched.WithLabelValues(metrics.StatusError).Add(float64(result.Rejected))

	s.logger.Info("Push relay accepted batch",
		"messages", len(msgs), "delivered", result.Delivered, "rejected", result.Rejected)
	return result, nil
}
