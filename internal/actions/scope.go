package actions

import (
	"strconv"
	"sync/atomic"
	"time"

	"fleetdesk_backend/platform/apperr"
)

// Scope is the server-side caller context for an operation. The tenant id
// comes only from the resolved binding, never from tool arguments.
type Scope struct {
	TenantID  string
	UserID    string
	Address   string
	MessageID string
	// At is the inbound message time, used for generated ids.
	At time.Time

	seq atomic.Uint32
}

// NewScope creates a scope for one inbound message.
func NewScope(tenantID, userID, address, messageID string, at time.Time) *Scope {
	return &Scope{TenantID: tenantID, UserID: userID, Address: address, MessageID: messageID, At: at}
}

func (s *Scope) check() error {
	if s == nil || s.TenantID == "" {
		return apperr.Forbidden("no tenant in scope")
	}
	return nil
}

// newID returns an id for a created entity. With a message id the id is
// derived from (address, message id, operation, ordinal) so a redelivered
// message recreates the same documents.
func (s *Scope) newID(prefix, op string, now time.Time) (string, bool) {
	n := s.seq.Add(1)
	if s.MessageID == "" {
		return NewID(prefix, now), false
	}
	at := s.At
	if at.IsZero() {
		at = now
	}
	return DeterministicID(prefix, at, s.Address, s.MessageID, op, strconv.FormatUint(uint64(n), 10)), true
}
