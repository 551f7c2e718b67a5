package webhook

import (
	apphttp "fleetdesk_backend/internal/http"

	"github.com/gin-gonic/gin"
)

// Module mounts the channel webhook.
type Module struct {
	handler   *Handler
	rateLimit gin.HandlerFunc
}

// NewModule wraps a handler. rateLimit may be nil.
func NewModule(handler *Handler, rateLimit gin.HandlerFunc) *Module {
	return &Module{handler: handler, rateLimit: rateLimit}
}

func (m *Module) Name() string {
	return "webhook"
}

// RegisterRoutes mounts GET and POST /webhook/whatsapp. Other methods get 405
// from the engine.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("/webhook")
	if m.rateLimit != nil {
		group.Use(m.rateLimit)
	}
	group.GET("/whatsapp", m.handler.HandleVerify)
	group.POST("/whatsapp", m.handler.HandleEvent)
}

var _ apphttp.Module = (*Module)(nil)
