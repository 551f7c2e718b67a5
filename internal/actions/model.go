package actions

import "time"

// Collections owned by the executor.
const (
	OrganizationsCollection   = "organizations"
	RoutesCollection          = "routes"
	DriversCollection         = "drivers"
	VehiclesCollection        = "vehicles"
	ClientsCollection         = "clients"
	InvoicesCollection        = "invoices"
	InvoiceProfilesCollection = "invoice_profiles"
)

// ID prefixes for generated identifiers.
const (
	PrefixRoute   = "RTE"
	PrefixDriver  = "DRV"
	PrefixVehicle = "VEH"
	PrefixClient  = "CLI"
	PrefixInvoice = "INV"
	PrefixExpense = "EXP"
	PrefixOrg     = "ORG"
)

// Organization is a tenant.
type Organization struct {
	ID                 string     `json:"id"`
	TenantID           string     `json:"tenantId"`
	Name               string     `json:"name"`
	Industry           string     `json:"industry,omitempty"`
	Address            string     `json:"address,omitempty"`
	City               string     `json:"city,omitempty"`
	State              string     `json:"state,omitempty"`
	ContactPhone       string     `json:"contactPhone"`
	OwnerUserID        string     `json:"ownerUserId,omitempty"`
	WalletBalance      Money      `json:"walletBalance"`
	Currency           string     `json:"currency"`
	TermsAcceptedAt    time.Time  `json:"termsAcceptedAt"`
	LastNotificationAt *time.Time `json:"lastNotificationAt,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
}

// RouteStatus is the lifecycle state of a route.
type RouteStatus string

const (
	RoutePending    RouteStatus = "pending"
	RouteAssigned   RouteStatus = "assigned"
	RouteInProgress RouteStatus = "in_progress"
	RouteCompleted  RouteStatus = "completed"
	RouteCancelled  RouteStatus = "cancelled"
)

// Active reports whether the route holds a driver and vehicle.
func (s RouteStatus) Active() bool {
	return s == RouteAssigned || s == RouteInProgress
}

// Terminal reports whether the route can no longer change.
func (s RouteStatus) Terminal() bool {
	return s == RouteCompleted || s == RouteCancelled
}

var routeTransitions = map[RouteStatus][]RouteStatus{
	RoutePending:    {RouteAssigned, RouteCancelled},
	RouteAssigned:   {RoutePending, RouteInProgress, RouteCancelled},
	RouteInProgress: {RouteCompleted, RouteCancelled},
}

// CanTransition reports whether a route may move from s to next.
func (s RouteStatus) CanTransition(next RouteStatus) bool {
	for _, allowed := range routeTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Expense is a cost recorded against a route.
type Expense struct {
	ID       string    `json:"id"`
	Category string    `json:"category"`
	Amount   Money     `json:"amount"`
	Note     string    `json:"note,omitempty"`
	At       time.Time `json:"at"`
}

// Route is a delivery job.
type Route struct {
	ID           string      `json:"id"`
	TenantID     string      `json:"tenantId"`
	Origin       string      `json:"origin"`
	Destination  string      `json:"destination"`
	ClientID     string      `json:"clientId,omitempty"`
	ClientName   string      `json:"clientName,omitempty"`
	Rate         Money       `json:"rate"`
	Status       RouteStatus `json:"status"`
	DriverID     string      `json:"driverId,omitempty"`
	DriverName   string      `json:"driverName,omitempty"`
	VehicleID    string      `json:"vehicleId,omitempty"`
	VehiclePlate string      `json:"vehiclePlate,omitempty"`
	Expenses     []Expense   `json:"expenses"`
	ScheduledFor *time.Time  `json:"scheduledFor,omitempty"`
	CompletedAt  *time.Time  `json:"completedAt,omitempty"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

// ExpenseTotal sums the route's expenses.
func (r Route) ExpenseTotal() Money {
	var total Money
	for _, e := range r.Expenses {
		total += e.Amount
	}
	return total
}

// NetProfit is rate minus expenses; only completed routes have one.
func (r Route) NetProfit() (Money, bool) {
	if r.Status != RouteCompleted {
		return 0, false
	}
	return r.Rate - r.ExpenseTotal(), true
}

// DriverStatus is the availability of a driver.
type DriverStatus string

const (
	DriverAvailable DriverStatus = "available"
	DriverOnRoute   DriverStatus = "on_route"
	DriverInactive  DriverStatus = "inactive"
)

// Driver is a registered driver.
type Driver struct {
	ID             string       `json:"id"`
	TenantID       string       `json:"tenantId"`
	FirstName      string       `json:"firstName"`
	LastName       string       `json:"lastName"`
	Name           string       `json:"name"`
	Phone          string       `json:"phone"`
	LicenseNumber  string       `json:"licenseNumber,omitempty"`
	Status         DriverStatus `json:"status"`
	CurrentRouteID string       `json:"currentRouteId,omitempty"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
}

// VehicleStatus is the availability of a vehicle.
type VehicleStatus string

const (
	VehicleAvailable   VehicleStatus = "available"
	VehicleInUse       VehicleStatus = "in_use"
	VehicleMaintenance VehicleStatus = "maintenance"
)

// Vehicle is a fleet vehicle.
type Vehicle struct {
	ID             string        `json:"id"`
	TenantID       string        `json:"tenantId"`
	Plate          string        `json:"plate"`
	Make           string        `json:"make,omitempty"`
	Model          string        `json:"model,omitempty"`
	Type           string        `json:"type,omitempty"`
	CapacityKg     int           `json:"capacityKg,omitempty"`
	Status         VehicleStatus `json:"status"`
	CurrentRouteID string        `json:"currentRouteId,omitempty"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}

// Client is a customer of the tenant.
type Client struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenantId"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// VATMode selects how VAT is applied to an invoice.
type VATMode string

const (
	VATNone      VATMode = "none"
	VATExclusive VATMode = "exclusive"
	VATInclusive VATMode = "inclusive"
)

// InvoiceStatus is the payment state of an invoice.
type InvoiceStatus string

const (
	InvoiceUnpaid InvoiceStatus = "unpaid"
	InvoicePaid   InvoiceStatus = "paid"
)

// LineItem is one invoice line.
type LineItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   Money   `json:"unitPrice"`
	Amount      Money   `json:"amount"`
}

// Invoice is a bill issued to a client.
type Invoice struct {
	ID         string        `json:"id"`
	TenantID   string        `json:"tenantId"`
	ClientID   string        `json:"clientId"`
	ClientName string        `json:"clientName"`
	Items      []LineItem    `json:"items"`
	VATMode    VATMode       `json:"vatMode"`
	VATRate    float64       `json:"vatRate"`
	Subtotal   Money         `json:"subtotal"`
	VATAmount  Money         `json:"vatAmount"`
	Total      Money         `json:"total"`
	Status     InvoiceStatus `json:"status"`
	Notes      string        `json:"notes,omitempty"`
	DueDate    time.Time     `json:"dueDate"`
	PaidAt     *time.Time    `json:"paidAt,omitempty"`
	CreatedAt  time.Time     `json:"createdAt"`
}

// Overdue reports whether the invoice is unpaid past its due date.
func (i Invoice) Overdue(now time.Time) bool {
	return i.Status == InvoiceUnpaid && !i.DueDate.IsZero() && now.After(i.DueDate)
}

// InvoiceProfile holds the tenant's billing identity and VAT defaults.
type InvoiceProfile struct {
	TenantID       string    `json:"tenantId"`
	BusinessName   string    `json:"businessName"`
	BankName       string    `json:"bankName"`
	BankCode       string    `json:"bankCode"`
	AccountNumber  string    `json:"accountNumber"`
	AccountName    string    `json:"accountName"`
	DefaultVATMode VATMode   `json:"defaultVatMode"`
	DefaultVATRate float64   `json:"defaultVatRate"`
	PaymentDays    int       `json:"paymentDays"`
	UpdatedAt      time.Time `json:"updatedAt"`
}
