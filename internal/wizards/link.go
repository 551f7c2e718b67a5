package wizards

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"time"

	"fleetdesk_backend/internal/flow"
	"fleetdesk_backend/internal/session"
	"fleetdesk_backend/platform/apperr"

	"golang.org/x/crypto/bcrypt"
)

const (
	linkCodeTTL      = 10 * time.Minute
	linkMaxAttempts  = 3
	fieldLinkUser    = "userId"
	fieldLinkTenant  = "tenantId"
	fieldLinkName    = "name"
	fieldCodeHash    = "codeHash"
	fieldCodeExpires = "codeExpiresAt"
	fieldAttempts    = "attempts"
)

var codePattern = regexp.MustCompile(`^[0-9]{6}$`)

// generateCode returns a random 6-digit code.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func linkFlow(d Deps) *flow.Definition {
	return &flow.Definition{
		ID:    Link,
		Title: "Let's link this number to your existing account.",
		Steps: []flow.Step{
			{
				Key:    "email",
				Prompt: prompt("What email address is on your account?"),
				Validate: func(_ context.Context, _ flow.Env, _ session.Fields, input string) (any, error) {
					return d.email(input)
				},
				Accept: d.acceptLinkEmail,
			},
			{
				Key: "code",
				Prompt: func(f session.Fields, _ string) string {
					return fmt.Sprintf("I've emailed a 6-digit code to %s. Please enter it here.", f.String(fieldEmail))
				},
				Validate: func(_ context.Context, _ flow.Env, _ session.Fields, input string) (any, error) {
					if !codePattern.MatchString(input) {
						return nil, flow.Invalid("the code is 6 digits")
					}
					return input, nil
				},
				Accept: d.acceptLinkCode,
			},
		},
		Summary: func(f session.Fields, _ string) string {
			return summaryLines("Your code is verified. Link this number to:",
				[2]string{"Account", f.String(fieldLinkName)},
				[2]string{"Email", f.String(fieldEmail)},
			)
		},
		Commit: func(ctx context.Context, env flow.Env, f session.Fields) (string, error) {
			tenantID, userID := f.String(fieldLinkTenant), f.String(fieldLinkUser)
			if err := d.Resolver.Bind(ctx, env.Address, tenantID, userID, "link"); err != nil {
				return "", err
			}
			d.Log.WithContext(ctx).WithTenant(tenantID).WithAddress(env.Address).Info("address linked")
			return "Done! This number is now linked to your account. Reply MENU to get started.", nil
		},
	}
}

func (d Deps) acceptLinkEmail(ctx context.Context, env flow.Env, f session.Fields, value any) (flow.Outcome, error) {
	email := value.(string)
	user, err := d.Resolver.FindUserByEmail(ctx, email)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) || apperr.Is(err, apperr.KindConflict) {
			return flow.Outcome{}, flow.Invalid("I couldn't find a single account for %s. Check the address or reply CANCEL", email)
		}
		return flow.Outcome{}, err
	}
	f[fieldEmail] = email
	f[fieldLinkUser] = user.ID
	f[fieldLinkTenant] = user.TenantID
	f[fieldLinkName] = user.FirstName + " " + user.LastName
	f[fieldAttempts] = 0
	if err := d.issueCode(ctx, env, f); err != nil {
		return flow.Outcome{}, err
	}
	return flow.Outcome{}, nil
}

func (d Deps) acceptLinkCode(ctx context.Context, env flow.Env, f session.Fields, value any) (flow.Outcome, error) {
	code := value.(string)
	if expires, ok := parseTimestamp(f, fieldCodeExpires); !ok || !env.Now.Before(expires) {
		if err := d.issueCode(ctx, env, f); err != nil {
			return flow.Outcome{}, err
		}
		return flow.Outcome{Stay: true, Notice: "That code has expired, so I've sent you a new one."}, nil
	}

	if bcrypt.CompareHashAndPassword([]byte(f.String(fieldCodeHash)), []byte(code)) != nil {
		attempts, _ := f.Int64(fieldAttempts)
		attempts++
		if attempts >= linkMaxAttempts {
			d.Log.WithContext(ctx).WithAddress(env.Address).Warn("link aborted after failed codes")
			return flow.Outcome{Abort: true, Notice: "That code was incorrect too many times, so I've stopped linking. Reply LINK to try again."}, nil
		}
		f[fieldAttempts] = attempts
		return flow.Outcome{Stay: true, Notice: fmt.Sprintf("That code is incorrect. You have %d attempt(s) left.", linkMaxAttempts-attempts)}, nil
	}

	delete(f, fieldCodeHash)
	delete(f, fieldCodeExpires)
	return flow.Outcome{}, nil
}

// issueCode creates a fresh code, stores its hash and sends it.
func (d Deps) issueCode(ctx context.Context, env flow.Env, f session.Fields) error {
	if d.Codes == nil {
		return flow.Invalid("account linking by email is not available right now")
	}
	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("generate link code: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), d.cost())
	if err != nil {
		return fmt.Errorf("hash link code: %w", err)
	}
	if err := d.Codes.SendLinkCode(ctx, f.String(fieldEmail), code); err != nil {
		d.Log.WithContext(ctx).ExternalError("email", err)
		return flow.Invalid("I couldn't send the code right now. Please try again shortly")
	}
	f[fieldCodeHash] = string(hash)
	f[fieldCodeExpires] = timestamp(env.Now.Add(linkCodeTTL))
	return nil
}
