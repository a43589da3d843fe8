package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/celerix-dev/viaticos/internal/logging"
)

// Actions sent to the webhook.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Change is one local mutation mirrored to the spreadsheet.
type Change struct {
	Entity string `json:"entity"`
	Action string `json:"action"`
	Data   any    `json:"data,omitempty"`
}

// Ack is the webhook's answer to a pushed change.
type Ack struct {
	Acknowledged bool `json:"acknowledged"`
	Status       int  `json:"status"`
}

// Webhook posts changes to an Apps Script web app bound to the spreadsheet.
type Webhook struct {
	url  string
	http *http.Client
	log  logging.Logger
}

// NewWebhook returns a Webhook posting to url. A nil client gets a default
// one with the given timeout.
func NewWebhook(url string, timeout time.Duration, client *http.Client, logger logging.Logger) *Webhook {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Webhook{url: url, http: client, log: logger.With("component", "webhook")}
}

// Push sends ch and reports whether the webhook accepted it. Transport
// failures are returned as errors; a non-2xx answer is an unacknowledged Ack.
func (w *Webhook) Push(ctx context.Context, ch Change) (Ack, error) {
	body, err := json.Marshal(ch)
	if err != nil {
		return Ack{}, fmt.Errorf("encode change: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return Ack{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := w.http.Do(req)
	if err != nil {
		w.log.Warn(ctx, "webhook unreachable", "entity", ch.Entity, "action", ch.Action, "error", err)
		return Ack{}, fmt.Errorf("webhook request: %w", err)
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)

	ack := Ack{Status: res.StatusCode, Acknowledged: res.StatusCode >= 200 && res.StatusCode < 300}
	if !ack.Acknowledged {
		w.log.Warn(ctx, "webhook rejected change", "entity", ch.Entity, "action", ch.Action, "status", res.StatusCode)
	}
	return ack, nil
}
