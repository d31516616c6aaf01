// Package trigger is the event-handler entry point: an opaque invocation
// event is dispatched to either the webhook path or the scheduled control run.
package trigger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/telhawk-systems/etl-central-square/internal/apperr"
)

// Event types.
const (
	TypeWebhook = "webhook"
	TypeControl = "control"
)

// ErrMissingWebhookID rejects a webhook event that names no webhook.
var ErrMissingWebhookID = errors.New("webhook event has no webhookid")

// Event is an invocation delivered by the host runtime. Body may be a JSON
// value or a JSON string holding the raw webhook body.
type Event struct {
	Type      string          `json:"type,omitempty"`
	WebhookID string          `json:"webhookid,omitempty"`
	Body      json.RawMessage `json:"body,omitempty"`
}

// Result mirrors the webhook reply so both entry points report the same way.
type Result struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// Connector is what the handler dispatches to.
type Connector interface {
	HandleWebhook(ctx context.Context, webhookID string, body []byte) error
	Control(ctx context.Context) error
}

type Handler struct {
	connector Connector
}

func NewHandler(connector Connector) *Handler {
	return &Handler{connector: connector}
}

// ParseEvent decodes an invocation event. An empty payload is a control event.
func ParseEvent(data []byte) (Event, error) {
	var evt Event
	if len(bytes.TrimSpace(data)) == 0 {
		return evt, nil
	}
	if err := json.Unmarshal(data, &evt); err != nil {
		return evt, apperr.Malformed("Invalid invocation event", err)
	}
	return evt, nil
}

// Handle runs one invocation. The returned Result is always set; err carries
// the typed failure for callers that need it.
func (h *Handler) Handle(ctx context.Context, evt Event) (*Result, error) {
	var err error
	if strings.EqualFold(evt.Type, TypeWebhook) {
		if evt.WebhookID == "" {
			return &Result{Status: http.StatusNotFound, Message: "Webhook not found"}, ErrMissingWebhookID
		}
		err = h.connector.HandleWebhook(ctx, evt.WebhookID, webhookBody(evt.Body))
	} else {
		err = h.connector.Control(ctx)
	}

	if err != nil {
		status := apperr.HTTPStatus(err)
		return &Result{Status: status, Message: apperr.Message(err)}, err
	}
	if strings.EqualFold(evt.Type, TypeWebhook) {
		return &Result{Status: http.StatusOK, Message: "Received"}, nil
	}
	return &Result{Status: http.StatusOK, Message: "Complete"}, nil
}

// webhookBody unwraps a body delivered as a JSON string.
func webhookBody(raw json.RawMessage) []byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return []byte(s)
		}
	}
	return trimmed
}
