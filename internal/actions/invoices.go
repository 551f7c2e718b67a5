package actions

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"fleetdesk_backend/internal/docstore"
	"fleetdesk_backend/platform/apperr"
)

// Totals is the computed money breakdown of an invoice.
type Totals struct {
	Subtotal  Money `json:"subtotal"`
	VATAmount Money `json:"vatAmount"`
	Total     Money `json:"total"`
}

// LineAmount is quantity times unit price, rounded to the kobo.
func LineAmount(quantity float64, unitPrice Money) Money {
	return Money(math.Round(quantity * float64(unitPrice)))
}

// ComputeTotals applies the VAT mode to a set of line items. With exclusive
// VAT the tax is added on top of the line sum; with inclusive VAT the line sum
// is the total and the tax is carved out of it.
func ComputeTotals(items []LineItem, mode VATMode, rate float64) Totals {
	var sum Money
	for _, item := range items {
		sum += LineAmount(item.Quantity, item.UnitPrice)
	}
	switch mode {
	case VATExclusive:
		vat := Money(math.Round(float64(sum) * rate / 100))
		return Totals{Subtotal: sum, VATAmount: vat, Total: sum + vat}
	case VATInclusive:
		vat := Money(math.Round(float64(sum) * rate / (100 + rate)))
		return Totals{Subtotal: sum - vat, VATAmount: vat, Total: sum}
	default:
		return Totals{Subtotal: sum, Total: sum}
	}
}

// NewLineItem is one requested invoice line.
type NewLineItem struct {
	Description string  `json:"description" validate:"required,min=2,max=200"`
	Quantity    float64 `json:"quantity" validate:"gt=0,lte=1000000"`
	UnitPrice   Money   `json:"unitPrice" validate:"gt=0"`
}

// NewInvoice is the input for CreateInvoice. An empty VATMode takes the
// invoice profile default.
type NewInvoice struct {
	ClientName string        `json:"clientName" validate:"required"`
	Items      []NewLineItem `json:"items" validate:"required,min=1,max=50,dive"`
	VATMode    VATMode       `json:"vatMode" validate:"omitempty,oneof=none exclusive inclusive"`
	VATRate    *float64      `json:"vatRate" validate:"omitempty,gte=0,lte=100"`
	Notes      string        `json:"notes" validate:"max=500"`
}

// InvoiceFilter narrows ListInvoices.
type InvoiceFilter struct {
	Status     InvoiceStatus
	ClientName string
	Created    DateRange
	Limit      int
}

// ListInvoices returns the tenant's invoices, newest first.
func (e *Executor) ListInvoices(ctx context.Context, sc *Scope, f InvoiceFilter) ([]Invoice, error) {
	if err := sc.check(); err != nil {
		return nil, err
	}
	var filters []docstore.Filter
	if f.Status != "" {
		filters = append(filters, docstore.Eq("status", string(f.Status)))
	}
	client := normalizeName(f.ClientName)
	limit := clampLimit(f.Limit)
	out := make([]Invoice, 0, limit)
	err := scanScoped(ctx, e, sc, InvoicesCollection, filters, docstore.NewestFirst, func(inv Invoice) bool {
		if (client == "" || strings.Contains(normalizeName(inv.ClientName), client)) && f.Created.Contains(inv.CreatedAt) {
			out = append(out, inv)
		}
		return len(out) < limit
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetInvoice loads one invoice.
func (e *Executor) GetInvoice(ctx context.Context, sc *Scope, id string) (Invoice, error) {
	if err := sc.check(); err != nil {
		return Invoice{}, err
	}
	return getScoped[Invoice](ctx, e, sc, InvoicesCollection, strings.ToUpper(strings.TrimSpace(id)), "invoice")
}

// CreateInvoice issues an unpaid invoice to an existing client.
func (e *Executor) CreateInvoice(ctx context.Context, sc *Scope, in NewInvoice) (Invoice, error) {
	if err := sc.check(); err != nil {
		return Invoice{}, err
	}
	in.VATMode = VATMode(strings.ToLower(strings.TrimSpace(string(in.VATMode))))
	if err := e.validate(in); err != nil {
		return Invoice{}, err
	}
	client, err := e.FindClient(ctx, sc, in.ClientName)
	if err != nil {
		return Invoice{}, err
	}
	profile, err := e.GetInvoiceProfile(ctx, sc)
	if err != nil && !apperr.Is(err, apperr.KindNotFound) {
		return Invoice{}, err
	}

	mode := in.VATMode
	if mode == "" {
		mode = profile.DefaultVATMode
	}
	if mode == "" {
		mode = VATNone
	}
	rate := profile.DefaultVATRate
	if in.VATRate != nil {
		rate = *in.VATRate
	}
	if mode == VATNone {
		rate = 0
	} else if rate <= 0 {
		return Invoice{}, apperr.Validation("vatRate is required when VAT applies")
	}

	items := make([]LineItem, 0, len(in.Items))
	for _, it := range in.Items {
		items = append(items, LineItem{
			Description: strings.TrimSpace(it.Description),
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Amount:      LineAmount(it.Quantity, it.UnitPrice),
		})
	}
	totals := ComputeTotals(items, mode, rate)

	days := profile.PaymentDays
	if days <= 0 {
		days = defaultPaymentDays
	}
	now := e.now().UTC()
	id, deterministic := sc.newID(PrefixInvoice, "create_invoice", now)
	invoice := Invoice{
		ID:         id,
		TenantID:   sc.TenantID,
		ClientID:   client.ID,
		ClientName: client.Name,
		Items:      items,
		VATMode:    mode,
		VATRate:    rate,
		Subtotal:   totals.Subtotal,
		VATAmount:  totals.VATAmount,
		Total:      totals.Total,
		Status:     InvoiceUnpaid,
		Notes:      strings.TrimSpace(in.Notes),
		DueDate:    now.AddDate(0, 0, days),
		CreatedAt:  now,
	}
	if err := e.create(ctx, InvoicesCollection, id, deterministic, invoice); err != nil {
		return Invoice{}, err
	}
	return invoice, nil
}

// MarkInvoicePaid records payment. Marking a paid invoice again is a no-op.
func (e *Executor) MarkInvoicePaid(ctx context.Context, sc *Scope, id string) (Invoice, error) {
	invoice, err := e.GetInvoice(ctx, sc, id)
	if err != nil {
		return Invoice{}, err
	}
	if invoice.Status == InvoicePaid {
		return invoice, nil
	}
	now := e.now().UTC()
	err = e.store.Update(ctx, InvoicesCollection, invoice.ID, map[string]any{"status": InvoicePaid, "paidAt": now})
	if err != nil {
		return Invoice{}, e.storageError(ctx, "mark_invoice_paid", err)
	}
	invoice.Status = InvoicePaid
	invoice.PaidAt = &now
	return invoice, nil
}

// DeleteInvoice removes an unpaid invoice. Paid invoices are kept.
func (e *Executor) DeleteInvoice(ctx context.Context, sc *Scope, id string) (Invoice, error) {
	invoice, err := e.GetInvoice(ctx, sc, id)
	if err != nil {
		return Invoice{}, err
	}
	if invoice.Status == InvoicePaid {
		return Invoice{}, apperr.Conflict(fmt.Sprintf("invoice %s is paid and cannot be deleted", invoice.ID))
	}
	if err := e.store.Delete(ctx, InvoicesCollection, invoice.ID); err != nil && !errors.Is(err, docstore.ErrNotFound) {
		return Invoice{}, e.storageError(ctx, "delete_invoice", err)
	}
	return invoice, nil
}

// ProfileInput is the input for SaveInvoiceProfile.
type ProfileInput struct {
	BusinessName   string  `json:"businessName" validate:"required,min=2,max=120"`
	BankName       string  `json:"bankName" validate:"required,min=2,max=80"`
	BankCode       string  `json:"bankCode" validate:"required,numeric,min=3,max=6"`
	AccountNumber  string  `json:"accountNumber" validate:"required,account10"`
	AccountName    string  `json:"accountName" validate:"max=120"`
	DefaultVATMode VATMode `json:"defaultVatMode" validate:"required,oneof=none exclusive inclusive"`
	DefaultVATRate float64 `json:"defaultVatRate" validate:"gte=0,lte=100"`
	PaymentDays    int     `json:"paymentDays" validate:"gte=0,lte=365"`
}

// GetInvoiceProfile loads the tenant's invoice profile.
func (e *Executor) GetInvoiceProfile(ctx context.Context, sc *Scope) (InvoiceProfile, error) {
	if err := sc.check(); err != nil {
		return InvoiceProfile{}, err
	}
	return getScoped[InvoiceProfile](ctx, e, sc, InvoiceProfilesCollection, sc.TenantID, "invoice profile")
}

// SaveInvoiceProfile replaces the tenant's invoice profile. The profile is
// keyed by tenant id, so there is at most one.
func (e *Executor) SaveInvoiceProfile(ctx context.Context, sc *Scope, in ProfileInput) (InvoiceProfile, error) {
	if err := sc.check(); err != nil {
		return InvoiceProfile{}, err
	}
	in.DefaultVATMode = VATMode(strings.ToLower(string(in.DefaultVATMode)))
	if err := e.validate(in); err != nil {
		return InvoiceProfile{}, err
	}
	if in.DefaultVATMode == VATNone {
		in.DefaultVATRate = 0
	}
	profile := InvoiceProfile{
		TenantID:       sc.TenantID,
		BusinessName:   strings.TrimSpace(in.BusinessName),
		BankName:       strings.TrimSpace(in.BankName),
		BankCode:       in.BankCode,
		AccountNumber:  in.AccountNumber,
		AccountName:    strings.TrimSpace(in.AccountName),
		DefaultVATMode: in.DefaultVATMode,
		DefaultVATRate: in.DefaultVATRate,
		PaymentDays:    in.PaymentDays,
		UpdatedAt:      e.now().UTC(),
	}
	if err := e.store.Set(ctx, InvoiceProfilesCollection, sc.TenantID, profile); err != nil {
		return InvoiceProfile{}, e.storageError(ctx, "save_invoice_profile", err)
	}
	return profile, nil
}

// dueWithin is used by reports to flag invoices due soon.
func dueWithin(inv Invoice, now time.Time, d time.Duration) bool {
	return inv.Status == InvoiceUnpaid && !inv.DueDate.Before(now) && inv.DueDate.Sub(now) <= d
}
