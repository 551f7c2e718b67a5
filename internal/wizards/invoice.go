package wizards

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"fleetdesk_backend/internal/actions"
	"fleetdesk_backend/internal/flow"
	"fleetdesk_backend/internal/session"
	"fleetdesk_backend/platform/apperr"
)

var (
	bankCodePattern      = regexp.MustCompile(`^[0-9]{3,6}$`)
	accountNumberPattern = regexp.MustCompile(`^[0-9]{10}$`)
)

const defaultPaymentDays = 14

func vatModeOptions(session.Fields) []flow.Option {
	return []flow.Option{
		{ID: string(actions.VATNone), Title: "No VAT"},
		{ID: string(actions.VATExclusive), Title: "Add VAT on top"},
		{ID: string(actions.VATInclusive), Title: "VAT included"},
	}
}

// parseVATMode accepts the option ids and a few plain answers.
func parseVATMode(input string) (actions.VATMode, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "none", "no", "no vat", "n":
		return actions.VATNone, nil
	case "exclusive", "add", "on top", "add vat on top", "yes", "y":
		return actions.VATExclusive, nil
	case "inclusive", "included", "vat included":
		return actions.VATInclusive, nil
	}
	return "", flow.Invalid("reply none, exclusive or inclusive")
}

func vatModeStep(key string) flow.Step {
	return flow.Step{
		Key:     key,
		Prompt:  prompt("Does VAT apply? Reply NONE, EXCLUSIVE (added on top) or INCLUSIVE (already in the price)."),
		Options: vatModeOptions,
		Validate: func(_ context.Context, _ flow.Env, _ session.Fields, input string) (any, error) {
			mode, err := parseVATMode(input)
			return string(mode), err
		},
	}
}

func vatRateStep(key, modeKey string) flow.Step {
	return flow.Step{
		Key:    key,
		Prompt: prompt("What's the VAT rate in percent? e.g. 7.5"),
		Skip: func(f session.Fields) bool {
			return f.String(modeKey) == string(actions.VATNone)
		},
		Validate: func(_ context.Context, _ flow.Env, _ session.Fields, input string) (any, error) {
			rate, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(input), "%"), 64)
			if err != nil || rate <= 0 || rate > 100 {
				return nil, flow.Invalid("enter a rate between 0 and 100")
			}
			return rate, nil
		},
	}
}

func invoiceProfileFlow(d Deps) *flow.Definition {
	return &flow.Definition{
		ID:    InvoiceProfile,
		Title: "Invoice profile. These details appear on every invoice you send.",
		Steps: []flow.Step{
			{
				Key:    "business_name",
				Prompt: prompt("What business name should appear on invoices?"),
				Validate: func(_ context.Context, _ flow.Env, _ session.Fields, input string) (any, error) {
					return text(input, "business name", 2, 120)
				},
			},
			{
				Key:    "bank_name",
				Prompt: prompt("Which bank should clients pay into? e.g. GTBank"),
				Validate: func(_ context.Context, _ flow.Env, _ session.Fields, input string) (any, error) {
					return text(input, "bank name", 2, 80)
				},
			},
			{
				Key:    "bank_code",
				Prompt: prompt("What's the bank code? e.g. 058 for GTBank"),
				Validate: func(_ context.Context, _ flow.Env, _ session.Fields, input string) (any, error) {
					if !bankCodePattern.MatchString(input) {
						return nil, flow.Invalid("the bank code is 3 to 6 digits")
					}
					return input, nil
				},
			},
			{
				Key:    "account_number",
				Prompt: prompt("What's the 10-digit account number?"),
				Validate: func(_ context.Context, _ flow.Env, _ session.Fields, input string) (any, error) {
					acct := strings.ReplaceAll(input, " ", "")
					if !accountNumberPattern.MatchString(acct) {
						return nil, flow.Invalid("the account number must be exactly 10 digits")
					}
					return acct, nil
				},
				Accept: d.acceptAccountNumber,
			},
			vatModeStep("vat_mode"),
			vatRateStep("vat_rate", "vat_mode"),
			{
				Key:    "payment_days",
				Prompt: prompt(fmt.Sprintf("How many days do clients have to pay? Reply SKIP for %d.", defaultPaymentDays)),
				Validate: func(_ context.Context, _ flow.Env, _ session.Fields, input string) (any, error) {
					if isSkip(input) {
						return defaultPaymentDays, nil
					}
					days, err := strconv.Atoi(strings.TrimSuffix(strings.ToLower(input), " days"))
					if err != nil || days < 0 || days > 365 {
						return nil, flow.Invalid("enter a number of days between 0 and 365")
					}
					return days, nil
				},
			},
		},
		Summary: func(f session.Fields, _ string) string {
			return summaryLines("Invoice profile:",
				[2]string{"Business", f.String("business_name")},
				[2]string{"Bank", f.String("bank_name") + " (" + f.String("bank_code") + ")"},
				[2]string{"Account", f.String("account_number")},
				[2]string{"Account name", orDash(f.String("account_name"))},
				[2]string{"VAT", vatLabel(f, "vat_mode", "vat_rate")},
				[2]string{"Payment terms", fmt.Sprintf("%d days", intField(f, "payment_days"))},
			)
		},
		Commit: func(ctx context.Context, env flow.Env, f session.Fields) (string, error) {
			rate, _ := f.Float("vat_rate")
			_, err := d.Exec.SaveInvoiceProfile(ctx, scopeOf(env), actions.ProfileInput{
				BusinessName:   f.String("business_name"),
				BankName:       f.String("bank_name"),
				BankCode:       f.String("bank_code"),
				AccountNumber:  f.String("account_number"),
				AccountName:    f.String("account_name"),
				DefaultVATMode: actions.VATMode(f.String("vat_mode")),
				DefaultVATRate: rate,
				PaymentDays:    intField(f, "payment_days"),
			})
			if err != nil {
				return "", err
			}
			return "Invoice profile saved. New invoices will use these details.", nil
		},
	}
}

// acceptAccountNumber looks up the account holder's name. Verification is
// best effort; the profile can be saved without it.
func (d Deps) acceptAccountNumber(ctx context.Context, env flow.Env, f session.Fields, value any) (flow.Outcome, error) {
	acct := value.(string)
	f["account_number"] = acct
	delete(f, "account_name")

	account, err := d.Exec.VerifyBankAccount(ctx, scopeOf(env), acct, f.String("bank_code"))
	switch {
	case err == nil:
		f["account_name"] = account.AccountName
		return flow.Outcome{Notice: "Account verified: " + account.AccountName}, nil
	case apperr.Is(err, apperr.KindValidation):
		return flow.Outcome{}, asValidation(err)
	default:
		return flow.Outcome{Notice: "I couldn't verify that account right now, so I'll save it as entered."}, nil
	}
}

func invoiceFlow(d Deps) *flow.Definition {
	return &flow.Definition{
		ID:    Invoice,
		Title: "New invoice",
		Steps: []flow.Step{
			{
				Key:    "client",
				Prompt: prompt("Which client is this invoice for?"),
				Validate: func(ctx context.Context, env flow.Env, _ session.Fields, input string) (any, error) {
					client, err := d.Exec.FindClient(ctx, scopeOf(env), input)
					if err != nil {
						return nil, asValidation(err)
					}
					return client.Name, nil
				},
			},
			{
				Key:    "item",
				Prompt: prompt("What is the invoice for? e.g. Haulage Lagos to Ibadan"),
				Validate: func(_ context.Context, _ flow.Env, _ session.Fields, input string) (any, error) {
					return text(input, "description", 2, 200)
				},
			},
			{
				Key:    "quantity",
				Prompt: prompt("How many? e.g. 1 trip or 10 tonnes, just the number."),
				Validate: func(_ context.Context, _ flow.Env, _ session.Fields, input string) (any, error) {
					return positiveNumber(input, "quantity")
				},
			},
			{
				Key:    "unit_price",
				Prompt: prompt("What's the price per unit in naira? e.g. 5000"),
				Validate: func(_ context.Context, _ flow.Env, _ session.Fields, input string) (any, error) {
					price, err := actions.ParseMoney(input)
					if err != nil || price <= 0 {
						return nil, flow.Invalid("enter the price as an amount, e.g. 5000 or 5k")
					}
					return int64(price), nil
				},
			},
			vatModeStep("vat"),
			vatRateStep("vat_rate", "vat"),
			optionalText("notes", "Any notes for the client?", "notes", 500),
		},
		Summary: func(f session.Fields, _ string) string {
			qty, _ := f.Float("quantity")
			price := moneyField(f, "unit_price")
			rate, _ := f.Float("vat_rate")
			mode := actions.VATMode(f.String("vat"))
			totals := actions.ComputeTotals([]actions.LineItem{{Quantity: qty, UnitPrice: price}}, mode, rate)
			return summaryLines("New invoice:",
				[2]string{"Client", f.String("client")},
				[2]string{"Item", fmt.Sprintf("%s × %s at %s", f.String("item"), strconv.FormatFloat(qty, 'f', -1, 64), price)},
				[2]string{"Subtotal", totals.Subtotal.String()},
				[2]string{"VAT", vatLabel(f, "vat", "vat_rate") + " " + totals.VATAmount.String()},
				[2]string{"Total", totals.Total.String()},
				[2]string{"Notes", f.String("notes")},
			)
		},
		Commit: func(ctx context.Context, env flow.Env, f session.Fields) (string, error) {
			qty, _ := f.Float("quantity")
			in := actions.NewInvoice{
				ClientName: f.String("client"),
				Items: []actions.NewLineItem{{
					Description: f.String("item"),
					Quantity:    qty,
					UnitPrice:   moneyField(f, "unit_price"),
				}},
				VATMode: actions.VATMode(f.String("vat")),
				Notes:   f.String("notes"),
			}
			if rate, ok := f.Float("vat_rate"); ok {
				in.VATRate = &rate
			}
			invoice, err := d.Exec.CreateInvoice(ctx, scopeOf(env), in)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Invoice %s created for %s. Total %s, due %s.",
				invoice.ID, invoice.ClientName, invoice.Total, invoice.DueDate.Format("2 Jan 2006")), nil
		},
	}
}

func moneyField(f session.Fields, key string) actions.Money {
	v, _ := f.Int64(key)
	return actions.Money(v)
}

func intField(f session.Fields, key string) int {
	v, _ := f.Int64(key)
	return int(v)
}

func vatLabel(f session.Fields, modeKey, rateKey string) string {
	mode := f.String(modeKey)
	if mode == string(actions.VATNone) || mode == "" {
		return "none"
	}
	rate, _ := f.Float(rateKey)
	return fmt.Sprintf("%s %s%%", mode, strconv.FormatFloat(rate, 'f', -1, 64))
}
