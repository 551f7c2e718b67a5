// Package webhook receives messaging channel events. Events are acknowledged
// immediately and each message is handed to an Enqueuer for asynchronous
// processing.
package webhook

import (
	"context"
	"crypto/subtle"
	"net/http"

	"fleetdesk_backend/internal/conversation"
	"fleetdesk_backend/platform/logger"
	"fleetdesk_backend/platform/metrics"

	"github.com/gin-gonic/gin"
)

// Enqueuer schedules a message for processing.
type Enqueuer interface {
	Enqueue(ctx context.Context, msg conversation.Message) error
}

// Handler serves the channel verification handshake and event delivery.
type Handler struct {
	verifyToken string
	dedup       Deduplicator
	queue       Enqueuer
	log         *logger.Logger
	metrics     *metrics.Metrics
}

// NewHandler creates a webhook handler.
func NewHandler(verifyToken string, dedup Deduplicator, queue Enqueuer, log *logger.Logger, m *metrics.Metrics) *Handler {
	if dedup == nil {
		dedup = NewMemoryDeduplicator()
	}
	return &Handler{verifyToken: verifyToken, dedup: dedup, queue: queue, log: log, metrics: m}
}

// HandleVerify answers the subscription handshake.
// GET /api/v1/webhook/whatsapp
func (h *Handler) HandleVerify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode != "subscribe" || h.verifyToken == "" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(h.verifyToken)) != 1 {
		c.String(http.StatusForbidden, "forbidden")
		return
	}
	c.String(http.StatusOK, challenge)
}

// HandleEvent accepts an event. Any event from the channel is acknowledged
// with 200 even when processing later fails.
// POST /api/v1/webhook/whatsapp
func (h *Handler) HandleEvent(c *gin.Context) {
	var event Event
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event payload"})
		return
	}
	if event.Object != ObjectWhatsApp {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown event source"})
		return
	}

	ctx := c.Request.Context()
	log := h.log.WithContext(ctx)
	for _, msg := range event.Messages() {
		first, err := h.dedup.First(ctx, msg.ID)
		if err != nil {
			log.Warn("dedup check failed, processing anyway", "message_id", msg.ID, "error", err)
			first = true
		}
		if !first {
			h.metrics.DuplicateMessage()
			log.Debug("dropping redelivered message", "message_id", msg.ID)
			continue
		}
		if err := h.queue.Enqueue(ctx, msg); err != nil {
			log.Error("failed to enqueue message", "message_id", msg.ID, "error", err)
		}
	}
	c.Status(http.StatusOK)
}
