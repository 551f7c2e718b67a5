// Package session holds durable per-address conversation state and the rules
// for its lifecycle: expiry, bounded history and serialized updates.
package session

import (
	"encoding/json"
	"time"
)

// Phase is the macro state of a session.
type Phase string

const (
	PhaseIdle       Phase = "IDLE"
	PhaseCollecting Phase = "COLLECTING"
	PhaseConfirming Phase = "CONFIRMING"
	PhaseExecuting  Phase = "EXECUTING"
)

// Roles used in turn history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one entry of the conversation history.
type Turn struct {
	Role string    `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"timestamp"`
}

// Session is the persisted conversation state for one canonical address.
type Session struct {
	Address        string    `json:"phoneNumber"`
	TenantID       string    `json:"tenantId,omitempty"`
	UserID         string    `json:"userId,omitempty"`
	ActiveFlow     string    `json:"activeFlow,omitempty"`
	Phase          Phase     `json:"phase"`
	Fields         Fields    `json:"collectedFields"`
	StepCursor     int       `json:"stepCursor"`
	History        []Turn    `json:"turnHistory"`
	Summary        string    `json:"historySummary,omitempty"`
	Language       string    `json:"language,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	LastActivityAt time.Time `json:"lastActivityAt"`
	ExpiresAt      time.Time `json:"expiresAt"`

	// ExpiredFlow names a flow discarded by expiry on this load. Not persisted.
	ExpiredFlow string `json:"-"`
}

// New returns a fresh idle session.
func New(address string, now time.Time) *Session {
	return &Session{
		Address:        address,
		Phase:          PhaseIdle,
		Fields:         Fields{},
		CreatedAt:      now,
		LastActivityAt: now,
	}
}

// InFlow reports whether a wizard is active.
func (s *Session) InFlow() bool {
	return s.ActiveFlow != ""
}

// ResetFlow returns the session to IDLE with no flow and no collected fields.
func (s *Session) ResetFlow() {
	s.ActiveFlow = ""
	s.Phase = PhaseIdle
	s.Fields = Fields{}
	s.StepCursor = 0
}

// RecentTurns returns at most n of the newest turns.
func (s *Session) RecentTurns(n int) []Turn {
	if n <= 0 || len(s.History) <= n {
		return s.History
	}
	return s.History[len(s.History)-n:]
}

// Fields holds values collected by a wizard. Values survive a JSON round trip,
// so numbers read back as float64.
type Fields map[string]any

// Clone returns a shallow copy.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// String returns the field as a string, or "".
func (f Fields) String(key string) string {
	v, _ := f[key].(string)
	return v
}

// Float returns the field as a float64.
func (f Fields) Float(key string) (float64, bool) {
	switch v := f[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		n, err := v.Float64()
		return n, err == nil
	}
	return 0, false
}

// Int64 returns the field as an int64.
func (f Fields) Int64(key string) (int64, bool) {
	switch v := f[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	}
	n, ok := f.Float(key)
	return int64(n), ok
}

// Bool returns the field as a bool.
func (f Fields) Bool(key string) bool {
	v, _ := f[key].(bool)
	return v
}

// Has reports whether the field is set.
func (f Fields) Has(key string) bool {
	_, ok := f[key]
	return ok
}
