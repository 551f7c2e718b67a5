// Package admin exposes operator endpoints for inspecting and resetting
// conversation state.
package admin

import (
	"errors"
	"net/http"
	"strings"
	"time"

	apphttp "fleetdesk_backend/internal/http"
	"fleetdesk_backend/internal/session"
	"fleetdesk_backend/internal/tenancy"
	"fleetdesk_backend/platform/httpkit"
	"fleetdesk_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

const redacted = "[redacted]"

// Handler serves the admin routes.
type Handler struct {
	sessions *session.Manager
	resolver *tenancy.Resolver
	log      *logger.Logger
}

func NewHandler(sessions *session.Manager, resolver *tenancy.Resolver, log *logger.Logger) *Handler {
	return &Handler{sessions: sessions, resolver: resolver, log: log}
}

// SessionResponse is a session with secret fields masked.
type SessionResponse struct {
	Address        string         `json:"phoneNumber"`
	TenantID       string         `json:"tenantId,omitempty"`
	UserID         string         `json:"userId,omitempty"`
	ActiveFlow     string         `json:"activeFlow,omitempty"`
	Phase          session.Phase  `json:"phase"`
	StepCursor     int            `json:"stepCursor"`
	Fields         map[string]any `json:"collectedFields"`
	Turns          int            `json:"turns"`
	HistorySummary string         `json:"historySummary,omitempty"`
	Language       string         `json:"language,omitempty"`
	LastActivityAt time.Time      `json:"lastActivityAt"`
	ExpiresAt      time.Time      `json:"expiresAt"`
}

func (h *Handler) address(c *gin.Context) (string, bool) {
	id := h.resolver.Canonicalize(c.Param("address"))
	if id.Canonical == "" {
		httpkit.Error(c, http.StatusBadRequest, "invalid address", nil)
		return "", false
	}
	return id.Canonical, true
}

// HandleGetSession returns the persisted session for an address.
// GET /api/v1/admin/sessions/:address
func (h *Handler) HandleGetSession(c *gin.Context) {
	address, ok := h.address(c)
	if !ok {
		return
	}
	s, err := h.sessions.Peek(c.Request.Context(), address)
	if errors.Is(err, session.ErrNotFound) {
		httpkit.Error(c, http.StatusNotFound, "no session for address", nil)
		return
	}
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toSessionResponse(s))
}

// HandleResetSession discards an address's session, returning it to idle.
// DELETE /api/v1/admin/sessions/:address
func (h *Handler) HandleResetSession(c *gin.Context) {
	address, ok := h.address(c)
	if !ok {
		return
	}
	if httpkit.HandleError(c, h.sessions.Reset(c.Request.Context(), address)) {
		return
	}
	h.log.WithContext(c.Request.Context()).WithAddress(address).Info("session reset by admin",
		"subject", httpkit.GetIdentity(c).Subject())
	c.Status(http.StatusNoContent)
}

// HandleGetBinding returns the tenant binding for an address.
// GET /api/v1/admin/bindings/:address
func (h *Handler) HandleGetBinding(c *gin.Context) {
	address, ok := h.address(c)
	if !ok {
		return
	}
	binding, err := h.resolver.Lookup(c.Request.Context(), address)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, binding)
}

func toSessionResponse(s *session.Session) SessionResponse {
	fields := make(map[string]any, len(s.Fields))
	for k, v := range s.Fields {
		if secretField(k) {
			v = redacted
		}
		fields[k] = v
	}
	return SessionResponse{
		Address:        s.Address,
		TenantID:       s.TenantID,
		UserID:         s.UserID,
		ActiveFlow:     s.ActiveFlow,
		Phase:          s.Phase,
		StepCursor:     s.StepCursor,
		Fields:         fields,
		Turns:          len(s.History),
		HistorySummary: s.Summary,
		Language:       s.Language,
		LastActivityAt: s.LastActivityAt,
		ExpiresAt:      s.ExpiresAt,
	}
}

func secretField(key string) bool {
	k := strings.ToLower(key)
	return strings.HasSuffix(k, "hash") || strings.Contains(k, "provisional")
}

// Module mounts the admin routes.
type Module struct {
	handler *Handler
}

func NewModule(handler *Handler) *Module {
	return &Module{handler: handler}
}

func (m *Module) Name() string {
	return "admin"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Admin.GET("/sessions/:address", m.handler.HandleGetSession)
	ctx.Admin.DELETE("/sessions/:address", m.handler.HandleResetSession)
	ctx.Admin.GET("/bindings/:address", m.handler.HandleGetBinding)
}

var _ apphttp.Module = (*Module)(nil)
