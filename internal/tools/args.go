package tools

import (
	"strings"
	"time"

	"fleetdesk_backend/internal/actions"
	"fleetdesk_backend/platform/apperr"
)

// Argument types, one per tool. Amounts arrive in major units (naira).

type noArgs struct{}

type dateRangeArgs struct {
	From string `json:"from" validate:"omitempty,datetime=2006-01-02"`
	To   string `json:"to" validate:"omitempty,datetime=2006-01-02"`
}

func (a dateRangeArgs) toRange() (actions.DateRange, error) {
	var r actions.DateRange
	if a.From != "" {
		from, err := time.Parse(time.DateOnly, a.From)
		if err != nil {
			return r, apperr.Validation("from must be a date like 2026-01-31")
		}
		r.From = &from
	}
	if a.To != "" {
		to, err := time.Parse(time.DateOnly, a.To)
		if err != nil {
			return r, apperr.Validation("to must be a date like 2026-01-31")
		}
		end := to.Add(24*time.Hour - time.Nanosecond)
		r.To = &end
	}
	if r.From != nil && r.To != nil && r.To.Before(*r.From) {
		return r, apperr.Validation("to must not be before from")
	}
	return r, nil
}

type getRoutesArgs struct {
	dateRangeArgs
	Status     string `json:"status" validate:"omitempty,oneof=pending assigned in_progress completed cancelled"`
	DriverName string `json:"driverName" validate:"max=120"`
	ClientName string `json:"clientName" validate:"max=120"`
	Limit      int    `json:"limit" validate:"gte=0,lte=200"`
}

type createRouteArgs struct {
	Origin       string  `json:"origin" validate:"required"`
	Destination  string  `json:"destination" validate:"required"`
	ClientName   string  `json:"clientName"`
	Rate         float64 `json:"rate" validate:"gte=0"`
	ScheduledFor string  `json:"scheduledFor" validate:"omitempty,datetime=2006-01-02"`
}

func (a createRouteArgs) toInput() (actions.NewRoute, error) {
	in := actions.NewRoute{
		Origin:      a.Origin,
		Destination: a.Destination,
		ClientName:  a.ClientName,
		Rate:        actions.FromMajor(a.Rate),
	}
	if a.ScheduledFor != "" {
		at, err := time.Parse(time.DateOnly, a.ScheduledFor)
		if err != nil {
			return in, apperr.Validation("scheduledFor must be a date like 2026-01-31")
		}
		in.ScheduledFor = &at
	}
	return in, nil
}

type updateRouteStatusArgs struct {
	RouteID string `json:"routeId" validate:"required"`
	Status  string `json:"status" validate:"required,oneof=pending in_progress completed cancelled"`
}

type assignRouteArgs struct {
	RouteID string `json:"routeId" validate:"required"`
	Driver  string `json:"driver" validate:"required"`
	Vehicle string `json:"vehicle" validate:"required"`
}

type addRouteExpenseArgs struct {
	RouteID  string  `json:"routeId" validate:"required"`
	Category string  `json:"category" validate:"required"`
	Amount   float64 `json:"amount" validate:"gt=0"`
	Note     string  `json:"note"`
}

type getDriversArgs struct {
	Status string `json:"status" validate:"omitempty,oneof=available on_route inactive"`
	Limit  int    `json:"limit" validate:"gte=0,lte=200"`
}

type getVehiclesArgs struct {
	Status string `json:"status" validate:"omitempty,oneof=available in_use maintenance"`
	Limit  int    `json:"limit" validate:"gte=0,lte=200"`
}

type createDriverArgs struct {
	FirstName     string `json:"firstName" validate:"required"`
	LastName      string `json:"lastName" validate:"required"`
	Phone         string `json:"phone" validate:"required"`
	LicenseNumber string `json:"licenseNumber"`
}

type updateDriverArgs struct {
	Driver        string  `json:"driver" validate:"required"`
	Phone         *string `json:"phone"`
	LicenseNumber *string `json:"licenseNumber"`
	Status        *string `json:"status" validate:"omitempty,oneof=available inactive"`
}

type createVehicleArgs struct {
	Plate      string `json:"plate" validate:"required"`
	Make       string `json:"make"`
	Model      string `json:"model"`
	Type       string `json:"type"`
	CapacityKg int    `json:"capacityKg" validate:"gte=0"`
}

type updateVehicleArgs struct {
	Vehicle    string  `json:"vehicle" validate:"required"`
	Status     *string `json:"status" validate:"omitempty,oneof=available maintenance"`
	CapacityKg *int    `json:"capacityKg" validate:"omitempty,gte=0"`
}

type limitArgs struct {
	Limit int `json:"limit" validate:"gte=0,lte=200"`
}

type createClientArgs struct {
	Name    string `json:"name" validate:"required"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

type getInvoicesArgs struct {
	dateRangeArgs
	Status     string `json:"status" validate:"omitempty,oneof=unpaid paid"`
	ClientName string `json:"clientName"`
	Limit      int    `json:"limit" validate:"gte=0,lte=200"`
}

type invoiceItemArgs struct {
	Description string  `json:"description" validate:"required"`
	Quantity    float64 `json:"quantity" validate:"gt=0"`
	UnitPrice   float64 `json:"unitPrice" validate:"gt=0"`
}

type createInvoiceArgs struct {
	ClientName string            `json:"clientName" validate:"required"`
	Items      []invoiceItemArgs `json:"items" validate:"required,min=1,dive"`
	VATMode    string            `json:"vatMode" validate:"omitempty,oneof=none exclusive inclusive"`
	VATRate    *float64          `json:"vatRate" validate:"omitempty,gte=0,lte=100"`
	Notes      string            `json:"notes"`
}

func (a createInvoiceArgs) toInput() actions.NewInvoice {
	in := actions.NewInvoice{
		ClientName: a.ClientName,
		VATMode:    actions.VATMode(a.VATMode),
		VATRate:    a.VATRate,
		Notes:      a.Notes,
	}
	for _, it := range a.Items {
		in.Items = append(in.Items, actions.NewLineItem{
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   actions.FromMajor(it.UnitPrice),
		})
	}
	return in
}

type invoiceIDArgs struct {
	InvoiceID string `json:"invoiceId" validate:"required"`
}

type verifyBankArgs struct {
	AccountNumber string `json:"accountNumber" validate:"required"`
	BankCode      string `json:"bankCode" validate:"required"`
}

// normalizeEnum lets the model say "In Progress" for in_progress.
func normalizeEnum(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
}

// normalizer is implemented by argument types whose enum fields are
// canonicalised before validation.
type normalizer interface {
	normalize()
}

func (a *getRoutesArgs) normalize()         { a.Status = normalizeEnum(a.Status) }
func (a *updateRouteStatusArgs) normalize() { a.Status = normalizeEnum(a.Status) }
func (a *getDriversArgs) normalize()        { a.Status = normalizeEnum(a.Status) }
func (a *getVehiclesArgs) normalize()       { a.Status = normalizeEnum(a.Status) }
func (a *getInvoicesArgs) normalize()       { a.Status = normalizeEnum(a.Status) }
func (a *createInvoiceArgs) normalize()     { a.VATMode = normalizeEnum(a.VATMode) }

func (a *updateDriverArgs) normalize() {
	if a.Status != nil {
		s := normalizeEnum(*a.Status)
		a.Status = &s
	}
}

func (a *updateVehicleArgs) normalize() {
	if a.Status != nil {
		s := normalizeEnum(*a.Status)
		a.Status = &s
	}
}
