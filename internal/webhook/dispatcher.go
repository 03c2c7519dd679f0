package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"echoform.app/echoform/internal/model"
)

const signatureHeader = "X-Echoform-Signature"

// Event is the payload delivered to every enabled endpoint when a response
// finishes finalizing.
type Event struct {
	Type             string     `json:"type"`
	ResponseID       int64      `json:"response_id"`
	InstanceID       int64      `json:"instance_id"`
	Status           string     `json:"status"`
	CompletionStatus *string    `json:"completion_status,omitempty"`
	PMFCategory      *string    `json:"pmf_category,omitempty"`
	Persona          *string    `json:"persona,omitempty"`
	Summary          *string    `json:"summary,omitempty"`
	Link             string     `json:"link"`
	FinalizedAt      time.Time  `json:"finalized_at"`
	EndedAt          *time.Time `json:"ended_at,omitempty"`
}

const EventTypeResponseFinalized = "response.finalized"

type Dispatcher interface {
	Dispatch(ctx context.Context, endpoints []model.WebhookEndpoint, secret *string, event Event)
}

type httpDispatcher struct {
	client  *http.Client
	timeout time.Duration
}

func NewDispatcher(timeout time.Duration) Dispatcher {
	return &httpDispatcher{
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

// Dispatch posts the event to every endpoint. Each delivery is its own failure
// domain: one endpoint timing out or returning 500 never blocks the others,
// and failures surface only in logs.
func (d *httpDispatcher) Dispatch(ctx context.Context, endpoints []model.WebhookEndpoint, secret *string, event Event) {
	if len(endpoints) == 0 {
		return
	}

	body, err := json.Marshal(event)
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal webhook event", "error", err, "response_id", event.ResponseID)
		return
	}

	for i := range endpoints {
		endpoint := &endpoints[i]
		if err := d.deliver(ctx, endpoint, secret, body); err != nil {
			slog.WarnContext(ctx, "webhook delivery failed",
				"error", err,
				"endpoint_id", endpoint.ID,
				"url", endpoint.URL,
				"response_id", event.ResponseID)
			continue
		}
		slog.InfoContext(ctx, "webhook delivered",
			"endpoint_id", endpoint.ID,
			"response_id", event.ResponseID)
	}
}

func (d *httpDispatcher) deliver(ctx context.Context, endpoint *model.WebhookEndpoint, secret *string, body []byte) error {
	reqCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, endpoint.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if secret != nil && *secret != "" {
		req.Header.Set(signatureHeader, Sign(body, *secret))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("endpoint returned %d", resp.StatusCode)
	}
	return nil
}

// Sign computes the hex HMAC-SHA256 of the payload under the account secret.
// Receivers recompute it over the raw request body to authenticate deliveries.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
