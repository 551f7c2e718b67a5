// Package flow runs step-by-step data collection wizards. A wizard is a
// Definition: ordered steps with validators, a summary and a commit. The
// engine owns every phase transition; definitions hold no control flow.
package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fleetdesk_backend/internal/session"
)

var (
	// ErrUnknownFlow is returned when a session names a flow that is not registered.
	ErrUnknownFlow = errors.New("unknown flow")
	// ErrNoActiveFlow is returned by Handle when the session has no flow.
	ErrNoActiveFlow = errors.New("no active flow")
)

// Env carries the resolved caller for step callbacks and commits.
type Env struct {
	Address   string
	TenantID  string
	UserID    string
	MessageID string
	Lang      string
	Now       time.Time
}

// ValidationError rejects a step input. Its message is shown to the user.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Invalid builds a ValidationError.
func Invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// Option is a quick-reply choice rendered by the channel as a button.
type Option struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Reply is what the engine answers for one turn.
type Reply struct {
	Text    string
	Options []Option
}

// Outcome tells the engine what to do after a step accepted a value.
type Outcome struct {
	// Stay keeps the cursor on the current step, for steps that take more
	// than one entry.
	Stay bool
	// Notice is shown before the next prompt.
	Notice string
	// Abort ends the flow without committing. Notice becomes the reply.
	Abort bool
}

// Step is one wizard step.
type Step struct {
	Key string
	// Prompt renders the question for the current fields.
	Prompt func(f session.Fields, lang string) string
	// Options optionally offers quick replies for the step.
	Options func(f session.Fields) []Option
	// Skip reports that the step does not apply for the current fields.
	Skip func(f session.Fields) bool
	// Validate parses the raw input. Rejections return a *ValidationError.
	Validate func(ctx context.Context, env Env, f session.Fields, input string) (any, error)
	// Accept applies the value to a copy of the fields. When nil the value is
	// stored under Key. A *ValidationError discards the copy.
	Accept func(ctx context.Context, env Env, f session.Fields, value any) (Outcome, error)
}

// Definition is a named wizard.
type Definition struct {
	ID    string
	Title string
	Steps []Step
	// Summary renders the collected fields for confirmation.
	Summary func(f session.Fields, lang string) string
	// Commit performs the final action and returns the success message.
	Commit func(ctx context.Context, env Env, f session.Fields) (string, error)
}

func (d *Definition) validate() error {
	if d.ID == "" {
		return errors.New("flow definition requires an id")
	}
	if d.Commit == nil || d.Summary == nil {
		return fmt.Errorf("flow %s requires summary and commit", d.ID)
	}
	seen := make(map[string]bool, len(d.Steps))
	for i, step := range d.Steps {
		if step.Key == "" || step.Prompt == nil || step.Validate == nil {
			return fmt.Errorf("flow %s step %d requires key, prompt and validate", d.ID, i)
		}
		if seen[step.Key] {
			return fmt.Errorf("flow %s has duplicate step %s", d.ID, step.Key)
		}
		seen[step.Key] = true
	}
	return nil
}

// nextStep returns the first applicable step at or after from.
func (d *Definition) nextStep(from int, f session.Fields) int {
	for i := from; i < len(d.Steps); i++ {
		if skip := d.Steps[i].Skip; skip == nil || !skip(f) {
			return i
		}
	}
	return len(d.Steps)
}

// StepKey returns the key of the step at cursor, or "" past the end.
func (d *Definition) StepKey(cursor int) string {
	if cursor < 0 || cursor >= len(d.Steps) {
		return ""
	}
	return d.Steps[cursor].Key
}

var (
	affirmatives = map[string]bool{
		"yes": true, "y": true, "yeah": true, "yep": true, "ok": true, "okay": true,
		"confirm": true, "sure": true, "oui": true, "ehen": true, "yes o": true,
	}
	negatives = map[string]bool{
		"no": true, "n": true, "nope": true, "non": true, "discard": true, "no o": true,
	}
)

// ParseConfirmation reads a yes/no answer. ok is false when input is neither.
func ParseConfirmation(input string) (yes bool, ok bool) {
	normalized := strings.ToLower(strings.Trim(strings.TrimSpace(input), ".!"))
	switch {
	case affirmatives[normalized]:
		return true, true
	case negatives[normalized]:
		return false, true
	}
	return false, false
}

// IsCancel reports whether input asks to abandon the active flow.
func IsCancel(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "cancel", "stop", "quit", "exit", "annuler":
		return true
	}
	return false
}
