package actions

import (
	"context"
	"math"
	"regexp"
	"strings"
	"time"

	"fleetdesk_backend/internal/docstore"
	"fleetdesk_backend/platform/apperr"
)

const (
	defaultIdleWindow = 72 * time.Hour
	dueSoonWindow     = 72 * time.Hour
)

var accountNumberPattern = regexp.MustCompile(`^[0-9]{10}$`)

// Wallet is the tenant's balance.
type Wallet struct {
	OrganizationID string `json:"organizationId"`
	Name           string `json:"name"`
	Balance        Money  `json:"balance"`
	Currency       string `json:"currency"`
	Display        string `json:"display"`
}

// WalletBalance returns the balance of the tenant's own organization.
func (e *Executor) WalletBalance(ctx context.Context, sc *Scope) (Wallet, error) {
	if err := sc.check(); err != nil {
		return Wallet{}, err
	}
	org, err := getScoped[Organization](ctx, e, sc, OrganizationsCollection, sc.TenantID, "organization")
	if err != nil {
		return Wallet{}, err
	}
	currency := org.Currency
	if currency == "" {
		currency = "NGN"
	}
	return Wallet{
		OrganizationID: org.ID,
		Name:           org.Name,
		Balance:        org.WalletBalance,
		Currency:       currency,
		Display:        org.WalletBalance.String(),
	}, nil
}

// RouteCounts counts routes by lifecycle state. Assigned includes routes in
// progress.
type RouteCounts struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Assigned  int `json:"assigned"`
	Completed int `json:"completed"`
	Cancelled int `json:"cancelled"`
}

// Summary aggregates the tenant's business over a date range.
type Summary struct {
	Routes           RouteCounts `json:"routes"`
	Revenue          Money       `json:"revenue"`
	Expenses         Money       `json:"expenses"`
	NetProfit        Money       `json:"netProfit"`
	InvoicedTotal    Money       `json:"invoicedTotal"`
	PaidTotal        Money       `json:"paidTotal"`
	OutstandingTotal Money       `json:"outstandingTotal"`
	OverdueCount     int         `json:"overdueCount"`
}

// BusinessSummary aggregates routes and invoices created inside r. Revenue,
// expenses and profit come from completed routes only.
func (e *Executor) BusinessSummary(ctx context.Context, sc *Scope, r DateRange) (Summary, error) {
	if err := sc.check(); err != nil {
		return Summary{}, err
	}
	routes, err := allScoped[Route](ctx, e, sc, RoutesCollection, nil)
	if err != nil {
		return Summary{}, err
	}
	invoices, err := allScoped[Invoice](ctx, e, sc, InvoicesCollection, nil)
	if err != nil {
		return Summary{}, err
	}

	var s Summary
	for _, route := range routes {
		if !r.Contains(route.CreatedAt) {
			continue
		}
		s.Routes.Total++
		switch route.Status {
		case RoutePending:
			s.Routes.Pending++
		case RouteAssigned, RouteInProgress:
			s.Routes.Assigned++
		case RouteCompleted:
			s.Routes.Completed++
		case RouteCancelled:
			s.Routes.Cancelled++
		}
		if profit, ok := route.NetProfit(); ok {
			s.Revenue += route.Rate
			s.Expenses += route.ExpenseTotal()
			s.NetProfit += profit
		}
	}

	now := e.now()
	for _, inv := range invoices {
		if !r.Contains(inv.CreatedAt) {
			continue
		}
		s.InvoicedTotal += inv.Total
		if inv.Status == InvoicePaid {
			s.PaidTotal += inv.Total
		} else {
			s.OutstandingTotal += inv.Total
		}
		if inv.Overdue(now) {
			s.OverdueCount++
		}
	}
	return s, nil
}

// OverdueInvoice is an unpaid invoice past its due date.
type OverdueInvoice struct {
	Invoice
	DaysOverdue int `json:"daysOverdue"`
}

// OverdueInvoices lists unpaid invoices past due, most overdue first.
func (e *Executor) OverdueInvoices(ctx context.Context, sc *Scope) ([]OverdueInvoice, error) {
	if err := sc.check(); err != nil {
		return nil, err
	}
	invoices, err := allScoped[Invoice](ctx, e, sc, InvoicesCollection, []docstore.Filter{docstore.Eq("status", string(InvoiceUnpaid))})
	if err != nil {
		return nil, err
	}
	now := e.now()
	var out []OverdueInvoice
	for _, inv := range invoices {
		if !inv.Overdue(now) {
			continue
		}
		out = append(out, OverdueInvoice{Invoice: inv, DaysOverdue: int(now.Sub(inv.DueDate).Hours() / 24)})
	}
	// Oldest due date first; the store returns creation order.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].DueDate.Before(out[j-1].DueDate); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out, nil
}

// DueSoonInvoices lists unpaid invoices due in the next three days.
func (e *Executor) DueSoonInvoices(ctx context.Context, sc *Scope) ([]Invoice, error) {
	if err := sc.check(); err != nil {
		return nil, err
	}
	invoices, err := allScoped[Invoice](ctx, e, sc, InvoicesCollection, []docstore.Filter{docstore.Eq("status", string(InvoiceUnpaid))})
	if err != nil {
		return nil, err
	}
	now := e.now()
	var out []Invoice
	for _, inv := range invoices {
		if dueWithin(inv, now, dueSoonWindow) {
			out = append(out, inv)
		}
	}
	return out, nil
}

// IdleDrivers lists available drivers with no route activity inside window.
// A zero window means three days.
func (e *Executor) IdleDrivers(ctx context.Context, sc *Scope, window time.Duration) ([]Driver, error) {
	if err := sc.check(); err != nil {
		return nil, err
	}
	if window <= 0 {
		window = defaultIdleWindow
	}
	drivers, err := allScoped[Driver](ctx, e, sc, DriversCollection, []docstore.Filter{docstore.Eq("status", string(DriverAvailable))})
	if err != nil {
		return nil, err
	}
	routes, err := allScoped[Route](ctx, e, sc, RoutesCollection, nil)
	if err != nil {
		return nil, err
	}

	cutoff := e.now().Add(-window)
	recent := make(map[string]bool)
	for _, r := range routes {
		if r.DriverID != "" && r.UpdatedAt.After(cutoff) {
			recent[r.DriverID] = true
		}
	}
	var out []Driver
	for _, d := range drivers {
		if !recent[d.ID] && d.CreatedAt.Before(cutoff) {
			out = append(out, d)
		}
	}
	return out, nil
}

// Utilization is a snapshot of fleet usage.
type Utilization struct {
	Vehicles           int     `json:"vehicles"`
	VehiclesInUse      int     `json:"vehiclesInUse"`
	VehiclesAvailable  int     `json:"vehiclesAvailable"`
	VehiclesInService  int     `json:"vehiclesInMaintenance"`
	Drivers            int     `json:"drivers"`
	DriversOnRoute     int     `json:"driversOnRoute"`
	DriversAvailable   int     `json:"driversAvailable"`
	UtilizationPercent float64 `json:"utilizationPercent"`
}

// FleetUtilization reports how much of the fleet is on routes. Vehicles in
// maintenance are excluded from the utilization denominator.
func (e *Executor) FleetUtilization(ctx context.Context, sc *Scope) (Utilization, error) {
	if err := sc.check(); err != nil {
		return Utilization{}, err
	}
	vehicles, err := allScoped[Vehicle](ctx, e, sc, VehiclesCollection, nil)
	if err != nil {
		return Utilization{}, err
	}
	drivers, err := allScoped[Driver](ctx, e, sc, DriversCollection, nil)
	if err != nil {
		return Utilization{}, err
	}

	var u Utilization
	for _, v := range vehicles {
		u.Vehicles++
		switch v.Status {
		case VehicleInUse:
			u.VehiclesInUse++
		case VehicleMaintenance:
			u.VehiclesInService++
		default:
			u.VehiclesAvailable++
		}
	}
	for _, d := range drivers {
		if d.Status == DriverInactive {
			continue
		}
		u.Drivers++
		if d.Status == DriverOnRoute {
			u.DriversOnRoute++
		} else {
			u.DriversAvailable++
		}
	}
	if usable := u.Vehicles - u.VehiclesInService; usable > 0 {
		u.UtilizationPercent = math.Round(float64(u.VehiclesInUse)/float64(usable)*1000) / 10
	}
	return u, nil
}

// VerifyBankAccount checks an account with the verification provider. Inputs
// that cannot be valid are rejected before any external call.
func (e *Executor) VerifyBankAccount(ctx context.Context, sc *Scope, accountNumber, bankCode string) (BankAccount, error) {
	if err := sc.check(); err != nil {
		return BankAccount{}, err
	}
	accountNumber = strings.TrimSpace(accountNumber)
	bankCode = strings.TrimSpace(bankCode)
	if !accountNumberPattern.MatchString(accountNumber) {
		return BankAccount{}, apperr.Validation("account number must be exactly 10 digits")
	}
	if bankCode == "" {
		return BankAccount{}, apperr.Validation("bank code is required")
	}
	if e.bank == nil {
		return BankAccount{}, apperr.External("bank verification is not configured", nil)
	}
	account, err := e.bank.Verify(ctx, accountNumber, bankCode)
	if err != nil {
		if apperr.GetKind(err) != apperr.KindUnknown {
			return BankAccount{}, err
		}
		e.log.WithContext(ctx).ExternalError("bank_verification", err)
		return BankAccount{}, apperr.External("could not verify the account right now", err)
	}
	return account, nil
}

// NewOrganization is collected by onboarding.
type NewOrganization struct {
	Name         string `json:"name" validate:"required,min=2,max=120"`
	Industry     string `json:"industry" validate:"max=60"`
	Address      string `json:"address" validate:"max=200"`
	City         string `json:"city" validate:"max=60"`
	State        string `json:"state" validate:"max=60"`
	ContactPhone string `json:"contactPhone" validate:"required"`
	OwnerUserID  string `json:"ownerUserId"`
}

// OrganizationWrite builds the create write for a new tenant. The
// organization id doubles as the tenant id. It is returned as a write so
// onboarding can batch it with the user and binding.
func (e *Executor) OrganizationWrite(tenantID string, in NewOrganization, termsAcceptedAt time.Time) (docstore.Write, error) {
	if err := e.validate(in); err != nil {
		return docstore.Write{}, err
	}
	now := e.now().UTC()
	org := Organization{
		ID:              tenantID,
		TenantID:        tenantID,
		Name:            strings.TrimSpace(in.Name),
		Industry:        strings.TrimSpace(in.Industry),
		Address:         strings.TrimSpace(in.Address),
		City:            strings.TrimSpace(in.City),
		State:           strings.TrimSpace(in.State),
		ContactPhone:    in.ContactPhone,
		OwnerUserID:     in.OwnerUserID,
		Currency:        "NGN",
		TermsAcceptedAt: termsAcceptedAt.UTC(),
		CreatedAt:       now,
	}
	return docstore.Write{Op: docstore.OpCreate, Collection: OrganizationsCollection, ID: tenantID, Doc: org}, nil
}

// EachOrganization visits every tenant for system sweeps, oldest first,
// until fn returns false. It is not tenant scoped and is never exposed as a
// tool.
func (e *Executor) EachOrganization(ctx context.Context, fn func(Organization) bool) error {
	if err := docstore.ScanAs(ctx, e.store, OrganizationsCollection, nil, docstore.OldestFirst, fn); err != nil {
		return e.storageError(ctx, "list_organizations", err)
	}
	return nil
}

// ListOrganizations returns every tenant.
func (e *Executor) ListOrganizations(ctx context.Context) ([]Organization, error) {
	var orgs []Organization
	err := e.EachOrganization(ctx, func(org Organization) bool {
		orgs = append(orgs, org)
		return true
	})
	return orgs, err
}

// MarkNotified stamps the last proactive notification time on a tenant.
func (e *Executor) MarkNotified(ctx context.Context, tenantID string, at time.Time) error {
	if err := e.store.Update(ctx, OrganizationsCollection, tenantID, map[string]any{"lastNotificationAt": at.UTC()}); err != nil {
		return e.storageError(ctx, "mark_notified", err)
	}
	return nil
}
