package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultWebhookTimeout bounds a webhook request when no timeout is given.
const DefaultWebhookTimeout = 10 * time.Second

// ackBodyLimit caps how much of a webhook response is read for an ack.
const ackBodyLimit = 64 << 10

// WebhookConfig configures the webhook notifier.
type WebhookConfig struct {
	// URL is the HTTP endpoint to POST to (required).
	URL string
	// Headers are added to each request.
	Headers map[string]string
	// Timeout is the request timeout (default 10s).
	Timeout time.Duration
	// Now is used for event timestamps; defaults to time.Now.
	Now func() time.Time
}

// Webhook refreshes a service by POSTing a refresh_requested event.
type Webhook struct {
	config WebhookConfig
	client *http.Client
}

var _ Notifier = (*Webhook)(nil)

// RefreshEvent is the JSON body sent by Webhook.
type RefreshEvent struct {
	EventType string `json:"event_type"`
	Service   string `json:"service"`
	Timestamp string `json:"timestamp"`
}

type webhookAck struct {
	ServiceARN   string `json:"service_arn"`
	DeploymentID string `json:"deployment_id"`
	Status       string `json:"status"`
}

// StatusError is returned for non-2xx webhook responses.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// NewWebhook creates a webhook notifier. It returns an error if the URL is
// empty.
func NewWebhook(cfg WebhookConfig) (*Webhook, error) {
	if cfg.URL == "" {
		return nil, errors.New("webhook notifier requires a URL")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultWebhookTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Webhook{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// TriggerRefresh sends a single POST. A 2xx response is success; its body,
// when it is a JSON ack, fills the returned Ack.
func (w *Webhook) TriggerRefresh(ctx context.Context, service string) (*Ack, error) {
	body, err := json.Marshal(RefreshEvent{
		EventType: "refresh_requested",
		Service:   service,
		Timestamp: w.config.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, Wrap(service, fmt.Errorf("marshal event: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.config.URL, bytes.NewReader(body))
	if err != nil {
		return nil, Wrap(service, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, Wrap(service, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, ackBodyLimit))
	// Drain body to allow connection reuse
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, Wrap(service, &StatusError{Code: resp.StatusCode})
	}

	ack := &Ack{Status: http.StatusText(resp.StatusCode)}
	var wa webhookAck
	if len(bytes.TrimSpace(raw)) > 0 && json.Unmarshal(raw, &wa) == nil {
		ack.ServiceARN = wa.ServiceARN
		ack.DeploymentID = wa.DeploymentID
		if wa.Status != "" {
			ack.Status = wa.Status
		}
	}
	return ack, nil
}

// Close releases idle connections.
func (w *Webhook) Close() error {
	w.client.CloseIdleConnections()
	return nil
}
