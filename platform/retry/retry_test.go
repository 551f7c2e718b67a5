package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDoRetriesTransientErrors(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), Config{MaxRetries: 2, BaseDelay: time.Millisecond}, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", Transient(errors.New("connection reset"))
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" || calls != 3 {
		t.Fatalf("expected ok after 3 calls, got %q after %d", got, calls)
	}
}

func TestDoStopsAfterMaxRetries(t *testing.T) {
	calls := 0
	cause := errors.New("timeout")
	_, err := Do(context.Background(), Config{MaxRetries: 2, BaseDelay: time.Millisecond}, func(context.Context) (int, error) {
		calls++
		return 0, Transient(cause)
	})
	if !errors.Is(err, cause) {
		t.Fatalf("expected last failure to be returned, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 1 attempt plus 2 retries, got %d calls", calls)
	}
}

func TestDoDoesNotRetryPermanentErrors(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Config{MaxRetries: 2, BaseDelay: time.Millisecond}, func(context.Context) (int, error) {
		calls++
		return 0, errors.New("unsupported media")
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
}

func TestIsTransient(t *testing.T) {
	if IsTransient(context.Canceled) {
		t.Fatalf("expected cancellation to be permanent")
	}
	if !IsTransient(Transient(errors.New("x"))) {
		t.Fatalf("expected wrapped error to be transient")
	}
}
