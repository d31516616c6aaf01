package logging

import "log/slog"

// Common field names for consistent logging.
const (
	FieldService   = "service"
	FieldRequestID = "request_id"
	FieldWebhookID = "webhook_id"
	FieldEventID   = "event_id"
	FieldFeatures  = "features"
	FieldBytes     = "bytes"
	FieldStatus    = "status"
	FieldDuration  = "duration_ms"
	FieldError     = "error"
	FieldBackend   = "backend"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// WebhookID returns a slog attribute for the webhook route identifier.
func WebhookID(id string) slog.Attr {
	return slog.String(FieldWebhookID, id)
}

// EventID returns a slog attribute for a CAD event identifier.
func EventID(id string) slog.Attr {
	return slog.String(FieldEventID, id)
}

// Features returns a slog attribute for a feature count.
func Features(n int) slog.Attr {
	return slog.Int(FieldFeatures, n)
}

// Bytes returns a slog attribute for a payload size.
func Bytes(n int) slog.Attr {
	return slog.Int(FieldBytes, n)
}

// Status returns a slog attribute for the HTTP status code.
func Status(code int) slog.Attr {
	return slog.Int(FieldStatus, code)
}

// Duration returns a slog attribute for duration in milliseconds.
func Duration(ms int64) slog.Attr {
	return slog.Int64(FieldDuration, ms)
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	return slog.String(FieldError, err.Error())
}

// Backend returns a slog attribute naming a pluggable backend.
func Backend(name string) slog.Attr {
	return slog.String(FieldBackend, name)
}
