package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"fleetdesk_backend/platform/config"
	"fleetdesk_backend/platform/logger"
)

// Summarizer folds turns dropped from the bounded history into the running
// summary.
type Summarizer interface {
	Summarize(ctx context.Context, previous string, dropped []Turn) (string, error)
}

// Manager applies lifecycle rules on top of a Store.
type Manager struct {
	store      Store
	locker     Locker
	cfg        config.SessionConfig
	summarizer Summarizer
	fallback   Summarizer
	log        *logger.Logger
	now        func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithSummarizer sets the summarizer used when history overflows. The
// truncating summarizer remains the fallback when it fails.
func WithSummarizer(s Summarizer) Option {
	return func(m *Manager) { m.summarizer = s }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a session manager.
func NewManager(store Store, locker Locker, cfg config.SessionConfig, log *logger.Logger, opts ...Option) *Manager {
	fallback := TruncatingSummarizer{MaxRunes: 1500}
	m := &Manager{
		store:      store,
		locker:     locker,
		cfg:        cfg,
		summarizer: fallback,
		fallback:   fallback,
		log:        log,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Window returns the inactivity window for the session's current state.
func (m *Manager) Window(s *Session) time.Duration {
	if s.InFlow() {
		return m.cfg.GetSessionWizardTTL()
	}
	return m.cfg.GetSessionIdleTTL()
}

// Load returns the session for address, creating a fresh one when none exists
// and resetting one whose inactivity window has passed. A reset that discards
// an active flow is reported through ExpiredFlow.
func (m *Manager) Load(ctx context.Context, address string) (*Session, error) {
	now := m.now().UTC()
	s, err := m.store.Get(ctx, address)
	if errors.Is(err, ErrNotFound) {
		return New(address, now), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	if now.Sub(s.LastActivityAt) > m.Window(s) {
		expiredFlow := s.ActiveFlow
		s.ResetFlow()
		s.History = nil
		s.Summary = ""
		s.ExpiredFlow = expiredFlow
		if expiredFlow != "" {
			m.log.WithContext(ctx).WithAddress(address).Info("session expired", "flow", expiredFlow)
		}
	}
	if s.Phase == "" {
		s.Phase = PhaseIdle
	}
	return s, nil
}

// Save appends turns, bounds the history and persists the session.
func (m *Manager) Save(ctx context.Context, s *Session, turns ...Turn) error {
	now := m.now().UTC()
	s.History = append(s.History, turns...)
	m.compact(ctx, s)
	s.LastActivityAt = now
	s.ExpiresAt = now.Add(m.Window(s))
	if err := m.store.Put(ctx, s); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Update runs fn on the session for address while holding the per-address
// lock, then saves the session with the turns fn returns. The session is not
// saved when fn fails.
func (m *Manager) Update(ctx context.Context, address string, fn func(ctx context.Context, s *Session) ([]Turn, error)) error {
	release, err := m.locker.Lock(ctx, address)
	if err != nil {
		return err
	}
	defer release()

	s, err := m.Load(ctx, address)
	if err != nil {
		return err
	}
	turns, err := fn(ctx, s)
	if err != nil {
		return err
	}
	return m.Save(ctx, s, turns...)
}

// Reset discards an address's session.
func (m *Manager) Reset(ctx context.Context, address string) error {
	release, err := m.locker.Lock(ctx, address)
	if err != nil {
		return err
	}
	defer release()
	return m.store.Delete(ctx, address)
}

// Peek returns the persisted session without applying lifecycle rules.
func (m *Manager) Peek(ctx context.Context, address string) (*Session, error) {
	return m.store.Get(ctx, address)
}

func (m *Manager) compact(ctx context.Context, s *Session) {
	limit := m.cfg.GetSessionMaxHistory()
	if limit <= 0 || len(s.History) <= limit {
		return
	}
	overflow := len(s.History) - limit
	dropped := append([]Turn(nil), s.History[:overflow]...)
	s.History = append([]Turn(nil), s.History[overflow:]...)

	summary, err := m.summarizer.Summarize(ctx, s.Summary, dropped)
	if err != nil {
		m.log.WithContext(ctx).Warn("history summary failed, truncating", "error", err)
		summary, _ = m.fallback.Summarize(ctx, s.Summary, dropped)
	}
	s.Summary = summary
}

// TruncatingSummarizer appends dropped turns to the summary and keeps only
// the newest MaxRunes runes.
type TruncatingSummarizer struct {
	MaxRunes int
}

func (t TruncatingSummarizer) Summarize(_ context.Context, previous string, dropped []Turn) (string, error) {
	var b strings.Builder
	b.WriteString(previous)
	for _, turn := range dropped {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(turn.Role)
		b.WriteString(": ")
		b.WriteString(strings.TrimSpace(turn.Text))
	}
	out := b.String()
	if t.MaxRunes > 0 && utf8.RuneCountInString(out) > t.MaxRunes {
		runes := []rune(out)
		out = string(runes[len(runes)-t.MaxRunes:])
	}
	return out, nil
}
