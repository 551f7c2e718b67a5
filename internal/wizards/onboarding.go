package wizards

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"fleetdesk_backend/internal/actions"
	"fleetdesk_backend/internal/flow"
	"fleetdesk_backend/internal/session"
	"fleetdesk_backend/internal/tenancy"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var newUserID = uuid.NewString

var pinPattern = regexp.MustCompile(`^[0-9]{4}$`)

// Onboarding field keys.
const (
	fieldFirstName      = "firstName"
	fieldLastName       = "lastName"
	fieldEmail          = "email"
	fieldCompany        = "companyName"
	fieldIndustry       = "industry"
	fieldAddress        = "address"
	fieldCity           = "city"
	fieldState          = "state"
	fieldTermsAt        = "termsAcceptedAt"
	fieldPinProvisional = "pinProvisional"
	fieldPinHash        = "pinHash"
)

func onboardingFlow(d Deps) *flow.Definition {
	return &flow.Definition{
		ID:    Onboarding,
		Title: "Let's get your business set up. It takes about a minute.",
		Steps: []flow.Step{
			{
				Key:      "personal_info",
				Prompt:   prompt("What's your name? Reply as First name | Last name. You can add your email too: John | Doe | john@example.com"),
				Validate: d.validatePersonalInfo,
				Accept: func(_ context.Context, _ flow.Env, f session.Fields, value any) (flow.Outcome, error) {
					parts := value.([]string)
					f[fieldFirstName] = parts[0]
					f[fieldLastName] = parts[1]
					if len(parts) > 2 {
						f[fieldEmail] = parts[2]
					}
					return flow.Outcome{}, nil
				},
			},
			{
				Key:    "company_info",
				Prompt: prompt("What's your company called and what does it do? Reply as Company name | Industry, e.g. Swift Haulage | Logistics"),
				Validate: func(_ context.Context, _ flow.Env, _ session.Fields, input string) (any, error) {
					parts := pipeParts(input)
					name, err := text(parts[0], "company name", 2, 120)
					if err != nil {
						return nil, err
					}
					industry := ""
					if len(parts) > 1 {
						if industry, err = text(parts[1], "industry", 2, 60); err != nil {
							return nil, err
						}
					}
					return []string{name, industry}, nil
				},
				Accept: func(_ context.Context, _ flow.Env, f session.Fields, value any) (flow.Outcome, error) {
					parts := value.([]string)
					f[fieldCompany] = parts[0]
					f[fieldIndustry] = parts[1]
					return flow.Outcome{}, nil
				},
			},
			{
				Key:    "address",
				Prompt: prompt("What's the business address? Include the city and state, e.g. 12 Marina Road, Lagos Island, Lagos"),
				Validate: func(_ context.Context, _ flow.Env, _ session.Fields, input string) (any, error) {
					return text(input, "address", 5, 200)
				},
				Accept: func(_ context.Context, _ flow.Env, f session.Fields, value any) (flow.Outcome, error) {
					addr := value.(string)
					f[fieldAddress] = addr
					city, state := splitLocality(addr)
					f[fieldCity] = city
					f[fieldState] = state
					return flow.Outcome{}, nil
				},
			},
			{
				Key:    "terms",
				Prompt: prompt("Do you accept the terms of service and privacy policy? Reply YES to accept."),
				Options: func(session.Fields) []flow.Option {
					return []flow.Option{{ID: "yes", Title: "I accept"}, {ID: "no", Title: "No"}}
				},
				Validate: func(_ context.Context, env flow.Env, _ session.Fields, input string) (any, error) {
					yes, ok := flow.ParseConfirmation(input)
					if !ok || !yes {
						return nil, flow.Invalid("you need to accept the terms to continue. Reply CANCEL to stop")
					}
					return timestamp(env.Now), nil
				},
				Accept: func(_ context.Context, _ flow.Env, f session.Fields, value any) (flow.Outcome, error) {
					f[fieldTermsAt] = value
					return flow.Outcome{}, nil
				},
			},
			{
				Key: "pin",
				Prompt: func(f session.Fields, _ string) string {
					if f.Has(fieldPinProvisional) {
						return "Please enter the same 4-digit PIN again to confirm it."
					}
					return "Choose a 4-digit PIN. You'll use it to approve sensitive actions."
				},
				Validate: func(_ context.Context, _ flow.Env, _ session.Fields, input string) (any, error) {
					if !pinPattern.MatchString(input) {
						return nil, flow.Invalid("the PIN must be exactly 4 digits")
					}
					return input, nil
				},
				Accept: d.acceptPin,
			},
		},
		Summary: func(f session.Fields, _ string) string {
			return summaryLines("Here's your account:",
				[2]string{"Name", f.String(fieldFirstName) + " " + f.String(fieldLastName)},
				[2]string{"Email", f.String(fieldEmail)},
				[2]string{"Company", f.String(fieldCompany)},
				[2]string{"Industry", f.String(fieldIndustry)},
				[2]string{"Address", f.String(fieldAddress)},
				[2]string{"PIN", "set"},
			)
		},
		Commit: d.commitOnboarding,
	}
}

func (d Deps) validatePersonalInfo(_ context.Context, _ flow.Env, _ session.Fields, input string) (any, error) {
	parts := pipeParts(input)
	if len(parts) < 2 {
		// Allow "John Doe" without the separator.
		fields := strings.Fields(input)
		if len(fields) != 2 {
			return nil, flow.Invalid("reply with your first and last name separated by |")
		}
		parts = fields
	}
	first, err := text(parts[0], "first name", 2, 60)
	if err != nil {
		return nil, err
	}
	last, err := text(parts[1], "last name", 2, 60)
	if err != nil {
		return nil, err
	}
	out := []string{first, last}
	if len(parts) > 2 && parts[2] != "" {
		email, err := d.email(parts[2])
		if err != nil {
			return nil, err
		}
		out = append(out, email)
	}
	return out, nil
}

// acceptPin runs the set/confirm pair inside one step. The first entry is
// kept as a provisional hash; a mismatching second entry clears it and the
// pair starts over.
func (d Deps) acceptPin(_ context.Context, _ flow.Env, f session.Fields, value any) (flow.Outcome, error) {
	pin := value.(string)
	provisional := f.String(fieldPinProvisional)
	if provisional == "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(pin), d.cost())
		if err != nil {
			return flow.Outcome{}, fmt.Errorf("hash pin: %w", err)
		}
		f[fieldPinProvisional] = string(hash)
		return flow.Outcome{Stay: true}, nil
	}

	delete(f, fieldPinProvisional)
	if bcrypt.CompareHashAndPassword([]byte(provisional), []byte(pin)) != nil {
		return flow.Outcome{Stay: true, Notice: "Those PINs didn't match. Let's try again."}, nil
	}
	f[fieldPinHash] = provisional
	return flow.Outcome{}, nil
}

func (d Deps) cost() int {
	if d.PinCost == 0 {
		return bcrypt.DefaultCost
	}
	return d.PinCost
}

func (d Deps) commitOnboarding(ctx context.Context, env flow.Env, f session.Fields) (string, error) {
	tenantID := actions.NewID(actions.PrefixOrg, env.Now)
	if env.MessageID != "" {
		tenantID = actions.DeterministicID(actions.PrefixOrg, env.Now, env.Address, env.MessageID)
	}
	termsAt, ok := parseTimestamp(f, fieldTermsAt)
	if !ok {
		termsAt = env.Now
	}
	reg := tenancy.Registration{
		UserID:    newUserID(),
		Address:   env.Address,
		TenantID:  tenantID,
		FirstName: f.String(fieldFirstName),
		LastName:  f.String(fieldLastName),
		Email:     f.String(fieldEmail),
		PinHash:   f.String(fieldPinHash),
	}
	org, err := d.Exec.OrganizationWrite(tenantID, actions.NewOrganization{
		Name:         f.String(fieldCompany),
		Industry:     f.String(fieldIndustry),
		Address:      f.String(fieldAddress),
		City:         f.String(fieldCity),
		State:        f.String(fieldState),
		ContactPhone: env.Address,
		OwnerUserID:  reg.UserID,
	}, termsAt)
	if err != nil {
		return "", err
	}
	if _, err := d.Resolver.Register(ctx, reg, org); err != nil {
		return "", err
	}
	d.Log.WithContext(ctx).WithTenant(tenantID).Info("tenant registered", "company", f.String(fieldCompany))
	return fmt.Sprintf("Welcome aboard, %s! %s is set up. Reply MENU to see what I can do, or just ask.",
		f.String(fieldFirstName), f.String(fieldCompany)), nil
}

// splitLocality reads city and state from the last two comma-separated
// parts of an address.
func splitLocality(addr string) (city, state string) {
	parts := strings.Split(addr, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	switch {
	case len(parts) >= 3:
		return parts[len(parts)-2], parts[len(parts)-1]
	case len(parts) == 2:
		return parts[1], ""
	}
	return "", ""
}
