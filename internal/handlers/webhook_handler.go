package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/telhawk-systems/etl-central-square/internal/apperr"
	"github.com/telhawk-systems/etl-central-square/internal/httputil"
	"github.com/telhawk-systems/etl-central-square/internal/logging"
	"github.com/telhawk-systems/etl-central-square/internal/messaging"
	"github.com/telhawk-systems/etl-central-square/internal/metrics"
	"github.com/telhawk-systems/etl-central-square/internal/models"
	"github.com/telhawk-systems/etl-central-square/internal/ratelimit"
	"github.com/telhawk-systems/etl-central-square/internal/schema"
)

const defaultMaxBodySize = 1 << 20

// Connector is the part of the connector task the HTTP layer drives.
type Connector interface {
	HandleWebhook(ctx context.Context, webhookID string, body []byte) error
	Schema(kind schema.Kind, flow schema.Flow) schema.Document
	Stats() models.IngestionStats
}

type WebhookHandler struct {
	connector   Connector
	limiter     ratelimit.RateLimiter
	maxBodySize int64
	logger      *logging.Logger
	broker      messaging.ConnectionChecker
}

func NewWebhookHandler(connector Connector, limiter ratelimit.RateLimiter, maxBodySize int64, logger *logging.Logger) *WebhookHandler {
	if limiter == nil {
		limiter = &ratelimit.NoOpRateLimiter{}
	}
	if maxBodySize <= 0 {
		maxBodySize = defaultMaxBodySize
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookHandler{
		connector:   connector,
		limiter:     limiter,
		maxBodySize: maxBodySize,
		logger:      logger,
	}
}

// SetBroker makes readiness depend on the broker connection used for
// submission or dead-lettering.
func (h *WebhookHandler) SetBroker(broker messaging.ConnectionChecker) {
	h.broker = broker
}

// HandleWebhook serves POST /{webhookid}. The reply means the payload was
// accepted for processing, not that downstream rendering has completed.
func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	webhookID := r.PathValue("webhookid")
	if webhookID == "" {
		h.respond(w, http.StatusNotFound, "Webhook not found")
		return
	}

	allowed, err := h.limiter.Allow(ctx, webhookID)
	if err != nil {
		h.logger.WarnContext(ctx, "Rate limiter unavailable, allowing request",
			logging.WebhookID(webhookID),
			logging.Error(err),
		)
	} else if !allowed {
		h.respond(w, http.StatusTooManyRequests, "Rate limit exceeded")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodySize))
	defer r.Body.Close()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respond(w, http.StatusRequestEntityTooLarge, "Payload too large")
			return
		}
		h.respond(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	if err := h.connector.HandleWebhook(ctx, webhookID, body); err != nil {
		h.respond(w, apperr.HTTPStatus(err), apperr.Message(err))
		return
	}

	h.respond(w, http.StatusOK, "Received")
}

// Schema serves GET /schema?type=input|output&flow=incoming|outgoing.
func (h *WebhookHandler) Schema(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	doc := h.connector.Schema(schema.ParseKind(q.Get("type")), schema.ParseFlow(q.Get("flow")))
	httputil.WriteJSON(w, http.StatusOK, doc)
}

func (h *WebhookHandler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

func (h *WebhookHandler) Ready(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{
		"status": "ready",
		"stats":  h.connector.Stats(),
	}
	status := http.StatusOK
	if h.broker != nil {
		health := messaging.CheckHealth(h.broker)
		body["broker"] = health
		if !health.Connected {
			body["status"] = "not ready"
			status = http.StatusServiceUnavailable
		}
	}
	httputil.WriteJSON(w, status, body)
}

func (h *WebhookHandler) respond(w http.ResponseWriter, status int, message string) {
	metrics.WebhookRequests.WithLabelValues(strconv.Itoa(status)).Inc()
	httputil.WriteStatus(w, status, message)
}
