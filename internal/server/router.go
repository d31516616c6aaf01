package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/telhawk-systems/etl-central-square/internal/handlers"
	"github.com/telhawk-systems/etl-central-square/internal/middleware"
)

// NewRouter constructs a ServeMux with the connector routes registered.
func NewRouter(h *handlers.WebhookHandler) http.Handler {
	mux := http.NewServeMux()

	// Schema negotiation
	mux.HandleFunc("GET /schema", h.Schema)

	// Health endpoints
	mux.HandleFunc("GET /healthz", h.Health)
	mux.HandleFunc("GET /readyz", h.Ready)

	// Prometheus metrics
	mux.Handle("GET /metrics", promhttp.Handler())

	// Webhook receiver
	mux.HandleFunc("POST /{webhookid}", h.HandleWebhook)

	return middleware.RequestID(mux)
}
