package models

import "time"

// Payload sources.
const (
	SourceWebhook = "webhook"
	SourceControl = "control"
)

// RawPayload is untyped CAD input as it arrived. Normalizers must treat Body
// as read-only.
type RawPayload struct {
	Source     string
	WebhookID  string
	Body       []byte
	ReceivedAt time.Time
}

// Configuration is the connector-tunable environment. It is read once per
// invocation and never persisted.
type Configuration struct {
	Debug bool `mapstructure:"DEBUG" json:"DEBUG"`
}

// IngestionStats summarises invocations since process start.
type IngestionStats struct {
	WebhookRequests   int64     `json:"webhook_requests"`
	WebhookFailures   int64     `json:"webhook_failures"`
	ControlRuns       int64     `json:"control_runs"`
	ControlFailures   int64     `json:"control_failures"`
	FeaturesSubmitted int64     `json:"features_submitted"`
	LastInvocation    time.Time `json:"last_invocation"`
}
