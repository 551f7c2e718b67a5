// Package wizards defines the guided data-collection flows. Every flow is a
// plain flow.Definition; commits go through the action executor or the
// tenant resolver.
package wizards

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"fleetdesk_backend/internal/actions"
	"fleetdesk_backend/internal/flow"
	"fleetdesk_backend/internal/session"
	"fleetdesk_backend/internal/tenancy"
	"fleetdesk_backend/platform/apperr"
	"fleetdesk_backend/platform/logger"
	"fleetdesk_backend/platform/sanitize"
	"fleetdesk_backend/platform/validator"
)

// Flow ids. Command routing starts flows by these ids.
const (
	Onboarding     = "onboarding"
	Link           = "link"
	Client         = "client"
	InvoiceProfile = "invoice_profile"
	Invoice        = "invoice"
	Driver         = "driver"
	Vehicle        = "vehicle"
)

// CodeSender delivers account-link codes.
type CodeSender interface {
	SendLinkCode(ctx context.Context, to, code string) error
}

// Deps are the collaborators the flows commit through.
type Deps struct {
	Exec     *actions.Executor
	Resolver *tenancy.Resolver
	Codes    CodeSender
	Val      *validator.Validator
	Log      *logger.Logger
	// PinCost is the bcrypt cost for PINs and link codes. Zero uses the
	// library default.
	PinCost int
}

// All returns every flow definition.
func All(d Deps) []*flow.Definition {
	return []*flow.Definition{
		onboardingFlow(d),
		linkFlow(d),
		clientFlow(d),
		invoiceProfileFlow(d),
		invoiceFlow(d),
		driverFlow(d),
		vehicleFlow(d),
	}
}

func scopeOf(env flow.Env) *actions.Scope {
	return actions.NewScope(env.TenantID, env.UserID, env.Address, env.MessageID, env.Now)
}

func prompt(text string) func(session.Fields, string) string {
	return func(session.Fields, string) string { return text }
}

var skipWords = map[string]bool{"skip": true, "none": true, "-": true, "no": true, "n/a": true}

func isSkip(input string) bool {
	return skipWords[strings.ToLower(strings.TrimSpace(input))]
}

// text checks a free-text value's length in runes.
func text(input, label string, min, max int) (string, error) {
	v := sanitize.Text(input)
	n := utf8.RuneCountInString(v)
	switch {
	case n == 0:
		return "", flow.Invalid("%s is required", label)
	case n < min:
		return "", flow.Invalid("%s must be at least %d characters", label, min)
	case max > 0 && n > max:
		return "", flow.Invalid("%s must be at most %d characters", label, max)
	}
	return v, nil
}

// pipeParts splits "a | b | c" input.
func pipeParts(input string) []string {
	raw := strings.Split(input, "|")
	parts := make([]string, 0, len(raw))
	for _, p := range raw {
		parts = append(parts, strings.Join(strings.Fields(p), " "))
	}
	return parts
}

func positiveNumber(input, label string) (float64, error) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(input), ",", ""), 64)
	if err != nil || v <= 0 {
		return 0, flow.Invalid("%s must be a number greater than zero", label)
	}
	return v, nil
}

func (d Deps) email(input string) (string, error) {
	v := strings.ToLower(strings.TrimSpace(input))
	if err := d.Val.Var(v, "required,email"); err != nil {
		return "", flow.Invalid("%q is not a valid email address", input)
	}
	return v, nil
}

// asValidation turns business-rule errors from the executor into step
// rejections so the user can correct the input in place.
func asValidation(err error) error {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		return err
	}
	switch appErr.Kind {
	case apperr.KindValidation, apperr.KindConflict:
		return flow.Invalid("%s", appErr.Message)
	case apperr.KindNotFound:
		if c, ok := appErr.Details.(apperr.Candidates); ok && len(c.Candidates) > 0 {
			return flow.Invalid("I couldn't find %q. Did you mean: %s", c.Query, strings.Join(c.Candidates, ", "))
		}
		return flow.Invalid("%s", appErr.Message)
	}
	return err
}

func summaryLines(title string, rows ...[2]string) string {
	var b strings.Builder
	b.WriteString(title)
	for _, r := range rows {
		if r[1] == "" {
			continue
		}
		fmt.Fprintf(&b, "\n• %s: %s", r[0], r[1])
	}
	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTimestamp(f session.Fields, key string) (time.Time, bool) {
	t, err := time.Parse(time.RFC3339, f.String(key))
	return t, err == nil
}
