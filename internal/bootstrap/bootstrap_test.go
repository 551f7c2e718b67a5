package bootstrap

import (
	"context"
	"errors"
	"testing"
	"time"

	"fleetdesk_backend/internal/conversation"
	"fleetdesk_backend/internal/docstore"
	"fleetdesk_backend/platform/config"
	"fleetdesk_backend/platform/logger"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Env:                  "development",
		ReasoningMaxRounds:   6,
		SessionIdleTTL:       5 * time.Minute,
		SessionWizardTTL:     60 * time.Minute,
		SessionMaxHistory:    20,
		SessionPromptTurns:   12,
		NotificationCooldown: 6 * time.Hour,
		PhoneDefaultRegion:   "NG",
		PhoneCountryCode:     "234",
	}
}

func TestBuildWithoutBackends(t *testing.T) {
	s, err := Build(context.Background(), memoryConfig(), logger.Discard())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer s.Close()

	if _, ok := s.Store.(*docstore.Memory); !ok {
		t.Fatalf("expected in-memory store, got %T", s.Store)
	}
	if s.Pool != nil || s.Redis != nil || s.WhatsApp != nil {
		t.Fatalf("expected no external connections")
	}

	err = s.Processor.Handle(context.Background(), conversation.Message{
		ID: "wamid.1", From: "2348012345678", Type: conversation.TypeText, Text: "hello",
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	sess, err := s.Sessions.Peek(context.Background(), "+2348012345678")
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	if sess.ActiveFlow != "onboarding" {
		t.Fatalf("expected unregistered sender in onboarding, got %q", sess.ActiveFlow)
	}

	if _, err := s.Notifier.Sweep(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
}

func TestWithRetry(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), logger.Discard(), "op", 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("expected success on third attempt, got %v after %d calls", err, calls)
	}

	calls = 0
	err = WithRetry(context.Background(), logger.Discard(), "op", 2, time.Millisecond, func() error {
		calls++
		return errors.New("down")
	})
	if err == nil || calls != 2 {
		t.Fatalf("expected failure after 2 attempts, got %v after %d calls", err, calls)
	}
}

func TestNewRedisClientRejectsBadURL(t *testing.T) {
	if _, err := NewRedisClient(&config.Config{RedisURL: "://not-a-url"}); err == nil {
		t.Fatalf("expected invalid redis url to be rejected")
	}
}
