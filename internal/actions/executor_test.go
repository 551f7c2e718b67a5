package actions

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"fleetdesk_backend/internal/docstore"
	"fleetdesk_backend/platform/apperr"
	"fleetdesk_backend/platform/logger"
	"fleetdesk_backend/platform/validator"
)

var testNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

type stubBank struct {
	calls   int
	account BankAccount
	err     error
}

func (b *stubBank) Verify(_ context.Context, accountNumber, bankCode string) (BankAccount, error) {
	b.calls++
	if b.err != nil {
		return BankAccount{}, b.err
	}
	acct := b.account
	acct.AccountNumber = accountNumber
	acct.BankCode = bankCode
	return acct, nil
}

func newTestExecutor(t *testing.T) (*Executor, *docstore.Memory, *stubBank) {
	t.Helper()
	store := docstore.NewMemory()
	bank := &stubBank{account: BankAccount{AccountName: "ADA LOGISTICS LTD"}}
	e := NewExecutor(store, bank, validator.New(), logger.Discard())
	e.SetClock(func() time.Time { return testNow })
	return e, store, bank
}

func seedOrg(t *testing.T, store docstore.Store, tenantID, name string, balance Money) {
	t.Helper()
	org := Organization{ID: tenantID, TenantID: tenantID, Name: name, WalletBalance: balance, Currency: "NGN", CreatedAt: testNow}
	if err := store.Set(context.Background(), OrganizationsCollection, tenantID, org); err != nil {
		t.Fatalf("seed org: %v", err)
	}
}

func scope(tenantID string) *Scope {
	return NewScope(tenantID, "user-1", "+2348012345678", "", testNow)
}

func TestComputeTotalsExclusive(t *testing.T) {
	items := []LineItem{{Description: "Haulage", Quantity: 10, UnitPrice: FromMajor(5000)}}
	got := ComputeTotals(items, VATExclusive, 7.5)

	if got.Subtotal != FromMajor(50000) {
		t.Fatalf("expected subtotal 50000, got %v", got.Subtotal.Major())
	}
	if got.VATAmount != FromMajor(3750) {
		t.Fatalf("expected vat 3750, got %v", got.VATAmount.Major())
	}
	if got.Total != FromMajor(53750) {
		t.Fatalf("expected total 53750, got %v", got.Total.Major())
	}
	if got.Subtotal+got.VATAmount != got.Total {
		t.Fatalf("expected subtotal + vat == total")
	}
}

func TestComputeTotalsInclusive(t *testing.T) {
	items := []LineItem{{Description: "Haulage", Quantity: 3, UnitPrice: FromMajor(1234.57)}}
	got := ComputeTotals(items, VATInclusive, 7.5)

	if got.Total != LineAmount(3, FromMajor(1234.57)) {
		t.Fatalf("expected total to equal the line sum, got %d", got.Total)
	}
	if got.Subtotal != got.Total-got.VATAmount {
		t.Fatalf("expected subtotal == total - vat, got %d != %d - %d", got.Subtotal, got.Total, got.VATAmount)
	}
	want := Money(float64(got.Total)*7.5/107.5 + 0.5)
	if got.VATAmount != want {
		t.Fatalf("expected vat %d, got %d", want, got.VATAmount)
	}
}

func TestComputeTotalsNone(t *testing.T) {
	items := []LineItem{{Quantity: 2, UnitPrice: 150}, {Quantity: 1.5, UnitPrice: 100}}
	got := ComputeTotals(items, VATNone, 7.5)
	if got.VATAmount != 0 || got.Total != 450 || got.Subtotal != 450 {
		t.Fatalf("expected 450 with no vat, got %+v", got)
	}
}

func TestCreateInvoiceScenario(t *testing.T) {
	e, _, _ := newTestExecutor(t)
	ctx := context.Background()
	sc := scope("tenant-a")

	if _, err := e.CreateClient(ctx, sc, NewClient{Name: "Dangote Cement"}); err != nil {
		t.Fatalf("create client: %v", err)
	}
	rate := 7.5
	inv, err := e.CreateInvoice(ctx, sc, NewInvoice{
		ClientName: "dangote",
		Items:      []NewLineItem{{Description: "Lagos to Abuja", Quantity: 10, UnitPrice: FromMajor(5000)}},
		VATMode:    VATExclusive,
		VATRate:    &rate,
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	if inv.Total != FromMajor(53750) || inv.VATAmount != FromMajor(3750) {
		t.Fatalf("expected total 53750 with vat 3750, got %+v", inv)
	}
	if inv.ClientName != "Dangote Cement" {
		t.Fatalf("expected resolved client name, got %q", inv.ClientName)
	}
	if !inv.DueDate.Equal(testNow.AddDate(0, 0, defaultPaymentDays)) {
		t.Fatalf("expected default due date, got %v", inv.DueDate)
	}
	if inv.Status != InvoiceUnpaid {
		t.Fatalf("expected unpaid, got %s", inv.Status)
	}
}

func TestCreateInvoiceUsesProfileDefaults(t *testing.T) {
	e, _, _ := newTestExecutor(t)
	ctx := context.Background()
	sc := scope("tenant-a")

	_, err := e.SaveInvoiceProfile(ctx, sc, ProfileInput{
		BusinessName:   "Ada Logistics",
		BankName:       "GTBank",
		BankCode:       "058",
		AccountNumber:  "0123456789",
		DefaultVATMode: VATInclusive,
		DefaultVATRate: 7.5,
		PaymentDays:    30,
	})
	if err != nil {
		t.Fatalf("save profile: %v", err)
	}
	if _, err := e.CreateClient(ctx, sc, NewClient{Name: "Acme"}); err != nil {
		t.Fatalf("create client: %v", err)
	}
	inv, err := e.CreateInvoice(ctx, sc, NewInvoice{
		ClientName: "Acme",
		Items:      []NewLineItem{{Description: "Delivery", Quantity: 1, UnitPrice: FromMajor(10750)}},
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	if inv.VATMode != VATInclusive || inv.Total != FromMajor(10750) || inv.VATAmount != FromMajor(750) {
		t.Fatalf("expected inclusive totals from profile, got %+v", inv)
	}
	if !inv.DueDate.Equal(testNow.AddDate(0, 0, 30)) {
		t.Fatalf("expected 30 payment days, got %v", inv.DueDate)
	}
}

func TestDeletePaidInvoiceIsRejected(t *testing.T) {
	e, _, _ := newTestExecutor(t)
	ctx := context.Background()
	sc := scope("tenant-a")

	if _, err := e.CreateClient(ctx, sc, NewClient{Name: "Acme"}); err != nil {
		t.Fatalf("create client: %v", err)
	}
	inv, err := e.CreateInvoice(ctx, sc, NewInvoice{
		ClientName: "Acme",
		Items:      []NewLineItem{{Description: "Delivery", Quantity: 1, UnitPrice: 100}},
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	if _, err := e.MarkInvoicePaid(ctx, sc, inv.ID); err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	_, err = e.DeleteInvoice(ctx, sc, inv.ID)
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict deleting a paid invoice, got %v", err)
	}
	if _, err := e.GetInvoice(ctx, sc, inv.ID); err != nil {
		t.Fatalf("expected invoice to survive, got %v", err)
	}
}

func TestWalletBalanceIsTenantScoped(t *testing.T) {
	e, store, _ := newTestExecutor(t)
	ctx := context.Background()
	seedOrg(t, store, "tenant-a", "Ada Logistics", FromMajor(125000))
	seedOrg(t, store, "tenant-b", "Bola Haulage", FromMajor(990000))

	w, err := e.WalletBalance(ctx, scope("tenant-a"))
	if err != nil {
		t.Fatalf("wallet: %v", err)
	}
	if w.OrganizationID != "tenant-a" || w.Balance != FromMajor(125000) {
		t.Fatalf("expected tenant-a balance, got %+v", w)
	}
	if w.Display != "₦125,000.00" {
		t.Fatalf("expected formatted balance, got %q", w.Display)
	}

	if _, err := e.WalletBalance(ctx, &Scope{}); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden without tenant, got %v", err)
	}
}

func TestQueriesNeverLeakAcrossTenants(t *testing.T) {
	e, _, _ := newTestExecutor(t)
	ctx := context.Background()
	a, b := scope("tenant-a"), scope("tenant-b")

	for _, name := range []string{"Acme", "Zenith"} {
		if _, err := e.CreateClient(ctx, a, NewClient{Name: name}); err != nil {
			t.Fatalf("create client: %v", err)
		}
	}
	other, err := e.CreateClient(ctx, b, NewClient{Name: "Acme"})
	if err != nil {
		t.Fatalf("expected same name allowed in another tenant, got %v", err)
	}

	clients, err := e.ListClients(ctx, a, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(clients) != 2 {
		t.Fatalf("expected 2 clients, got %d", len(clients))
	}
	for _, c := range clients {
		if c.TenantID != "tenant-a" {
			t.Fatalf("expected only tenant-a clients, got %+v", c)
		}
	}
	if _, err := e.FindClient(ctx, a, other.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected other tenant's client to be not found, got %v", err)
	}
}

func TestFindDriverReturnsCandidates(t *testing.T) {
	e, _, _ := newTestExecutor(t)
	ctx := context.Background()
	sc := scope("tenant-a")

	for _, d := range []NewDriver{
		{FirstName: "John", LastName: "Okafor", Phone: "08011111111"},
		{FirstName: "John", LastName: "Bello", Phone: "08022222222"},
		{FirstName: "Musa", LastName: "Ali", Phone: "08033333333"},
	} {
		if _, err := e.CreateDriver(ctx, sc, d); err != nil {
			t.Fatalf("create driver: %v", err)
		}
	}

	got, err := e.FindDriver(ctx, sc, "musa")
	if err != nil || got.Name != "Musa Ali" {
		t.Fatalf("expected unique partial match, got %+v, %v", got, err)
	}

	_, err = e.FindDriver(ctx, sc, "john")
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindNotFound {
		t.Fatalf("expected not found for ambiguous name, got %v", err)
	}
	details, ok := appErr.Details.(apperr.Candidates)
	if !ok || len(details.Candidates) != 2 {
		t.Fatalf("expected two candidates, got %+v", appErr.Details)
	}
	if details.Candidates[0] != "John Bello" || details.Candidates[1] != "John Okafor" {
		t.Fatalf("expected sorted candidates, got %v", details.Candidates)
	}
}

func TestCreateDriverRejectsDuplicatePhone(t *testing.T) {
	e, _, _ := newTestExecutor(t)
	ctx := context.Background()
	sc := scope("tenant-a")

	in := NewDriver{FirstName: "John", LastName: "Okafor", Phone: "08011111111"}
	if _, err := e.CreateDriver(ctx, sc, in); err != nil {
		t.Fatalf("create driver: %v", err)
	}
	if _, err := e.CreateDriver(ctx, sc, in); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestDeterministicIDsMakeReplaysIdempotent(t *testing.T) {
	e, store, _ := newTestExecutor(t)
	ctx := context.Background()

	first := NewScope("tenant-a", "user-1", "+2348012345678", "wamid.123", testNow)
	replay := NewScope("tenant-a", "user-1", "+2348012345678", "wamid.123", testNow)

	c1, err := e.CreateClient(ctx, first, NewClient{Name: "Acme"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	c2, err := e.CreateClient(ctx, replay, NewClient{Name: "Acme"})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if c1.ID != c2.ID {
		t.Fatalf("expected same id on replay, got %s and %s", c1.ID, c2.ID)
	}
	docs, err := store.Query(ctx, ClientsCollection, docstore.Query{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 stored client, got %d", len(docs))
	}
}

func seedFleet(t *testing.T, e *Executor, sc *Scope) (Route, Driver, Vehicle) {
	t.Helper()
	ctx := context.Background()
	route, err := e.CreateRoute(ctx, sc, NewRoute{Origin: "Lagos", Destination: "Ibadan", Rate: FromMajor(80000)})
	if err != nil {
		t.Fatalf("create route: %v", err)
	}
	driver, err := e.CreateDriver(ctx, sc, NewDriver{FirstName: "Musa", LastName: "Ali", Phone: "08033333333"})
	if err != nil {
		t.Fatalf("create driver: %v", err)
	}
	vehicle, err := e.CreateVehicle(ctx, sc, NewVehicle{Plate: "lsr 123 xy", Type: "truck"})
	if err != nil {
		t.Fatalf("create vehicle: %v", err)
	}
	return route, driver, vehicle
}

func TestAssignRouteUpdatesAllThree(t *testing.T) {
	e, _, _ := newTestExecutor(t)
	ctx := context.Background()
	sc := scope("tenant-a")
	route, _, _ := seedFleet(t, e, sc)

	got, err := e.AssignRoute(ctx, sc, route.ID, "Musa", "LSR-123-XY")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if got.Status != RouteAssigned || got.DriverName != "Musa Ali" || got.VehiclePlate != "LSR 123 XY" {
		t.Fatalf("unexpected route after assign: %+v", got)
	}

	driver, _ := e.FindDriver(ctx, sc, "Musa Ali")
	if driver.Status != DriverOnRoute || driver.CurrentRouteID != route.ID {
		t.Fatalf("expected driver on route, got %+v", driver)
	}
	vehicle, _ := e.FindVehicle(ctx, sc, "LSR123XY")
	if vehicle.Status != VehicleInUse || vehicle.CurrentRouteID != route.ID {
		t.Fatalf("expected vehicle in use, got %+v", vehicle)
	}

	second, err := e.CreateRoute(ctx, sc, NewRoute{Origin: "Lagos", Destination: "Abeokuta", Rate: 1})
	if err != nil {
		t.Fatalf("create route: %v", err)
	}
	if _, err := e.AssignRoute(ctx, sc, second.ID, "Musa", "LSR 123 XY"); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected busy driver conflict, got %v", err)
	}
}

func TestAssignRouteUnknownDriver(t *testing.T) {
	e, _, _ := newTestExecutor(t)
	sc := scope("tenant-a")
	route, _, _ := seedFleet(t, e, sc)

	_, err := e.AssignRoute(context.Background(), sc, route.ID, "Chidi Nwosu", "LSR 123 XY")
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	got, _ := e.GetRoute(context.Background(), sc, route.ID)
	if got.Status != RoutePending || got.DriverID != "" {
		t.Fatalf("expected route untouched, got %+v", got)
	}
}

func TestCompletingRouteReleasesFleetAndCountsProfit(t *testing.T) {
	e, _, _ := newTestExecutor(t)
	ctx := context.Background()
	sc := scope("tenant-a")
	route, _, _ := seedFleet(t, e, sc)

	if _, err := e.AssignRoute(ctx, sc, route.ID, "Musa Ali", "LSR 123 XY"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := e.AddRouteExpense(ctx, sc, route.ID, NewExpense{Category: "fuel", Amount: FromMajor(15000)}); err != nil {
		t.Fatalf("expense: %v", err)
	}
	if _, err := e.UpdateRouteStatus(ctx, sc, route.ID, RouteInProgress); err != nil {
		t.Fatalf("start: %v", err)
	}

	open, err := e.CreateRoute(ctx, sc, NewRoute{Origin: "Kano", Destination: "Kaduna", Rate: FromMajor(50000)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_ = open

	summary, err := e.BusinessSummary(ctx, sc, DateRange{})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.Routes.Assigned != 1 || summary.NetProfit != 0 {
		t.Fatalf("expected in-progress route counted as assigned without profit, got %+v", summary)
	}

	if _, err := e.UpdateRouteStatus(ctx, sc, route.ID, RouteCompleted); err != nil {
		t.Fatalf("complete: %v", err)
	}
	summary, err = e.BusinessSummary(ctx, sc, DateRange{})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.Routes.Completed != 1 || summary.Routes.Pending != 1 {
		t.Fatalf("unexpected counts: %+v", summary.Routes)
	}
	if summary.NetProfit != FromMajor(65000) || summary.Revenue != FromMajor(80000) {
		t.Fatalf("expected profit 65000 on revenue 80000, got %+v", summary)
	}

	driver, _ := e.FindDriver(ctx, sc, "Musa Ali")
	if driver.Status != DriverAvailable || driver.CurrentRouteID != "" {
		t.Fatalf("expected driver released, got %+v", driver)
	}
	util, err := e.FleetUtilization(ctx, sc)
	if err != nil {
		t.Fatalf("utilization: %v", err)
	}
	if util.VehiclesInUse != 0 || util.VehiclesAvailable != 1 {
		t.Fatalf("expected vehicle released, got %+v", util)
	}
}

func TestUpdateRouteStatusRejectsInvalidTransition(t *testing.T) {
	e, _, _ := newTestExecutor(t)
	sc := scope("tenant-a")
	route, _, _ := seedFleet(t, e, sc)

	_, err := e.UpdateRouteStatus(context.Background(), sc, route.ID, RouteCompleted)
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict for pending -> completed, got %v", err)
	}
}

func TestVerifyBankAccountRejectsLocally(t *testing.T) {
	e, _, bank := newTestExecutor(t)
	ctx := context.Background()
	sc := scope("tenant-a")

	cases := []struct {
		name, account, code string
	}{
		{"short", "12345", "058"},
		{"letters", "01234567ab", "058"},
		{"missing code", "0123456789", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := e.VerifyBankAccount(ctx, sc, tc.account, tc.code); !apperr.Is(err, apperr.KindValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
	if bank.calls != 0 {
		t.Fatalf("expected no provider calls, got %d", bank.calls)
	}

	acct, err := e.VerifyBankAccount(ctx, sc, "0123456789", "058")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if acct.AccountName != "ADA LOGISTICS LTD" || bank.calls != 1 {
		t.Fatalf("expected provider result, got %+v after %d calls", acct, bank.calls)
	}
}

func TestOverdueAndIdleReports(t *testing.T) {
	e, store, _ := newTestExecutor(t)
	ctx := context.Background()
	sc := scope("tenant-a")

	past := testNow.AddDate(0, 0, -20)
	e.SetClock(func() time.Time { return past })
	if _, err := e.CreateClient(ctx, sc, NewClient{Name: "Acme"}); err != nil {
		t.Fatalf("client: %v", err)
	}
	if _, err := e.CreateInvoice(ctx, sc, NewInvoice{ClientName: "Acme", Items: []NewLineItem{{Description: "Run", Quantity: 1, UnitPrice: 500}}}); err != nil {
		t.Fatalf("invoice: %v", err)
	}
	if _, err := e.CreateDriver(ctx, sc, NewDriver{FirstName: "Musa", LastName: "Ali", Phone: "08033333333"}); err != nil {
		t.Fatalf("driver: %v", err)
	}
	e.SetClock(func() time.Time { return testNow })

	overdue, err := e.OverdueInvoices(ctx, sc)
	if err != nil {
		t.Fatalf("overdue: %v", err)
	}
	if len(overdue) != 1 || overdue[0].DaysOverdue != 6 {
		t.Fatalf("expected one invoice 6 days overdue, got %+v", overdue)
	}
	idle, err := e.IdleDrivers(ctx, sc, 0)
	if err != nil {
		t.Fatalf("idle: %v", err)
	}
	if len(idle) != 1 {
		t.Fatalf("expected one idle driver, got %d", len(idle))
	}

	seedOrg(t, store, "tenant-a", "Ada", 0)
	if err := e.MarkNotified(ctx, "tenant-a", testNow); err != nil {
		t.Fatalf("mark notified: %v", err)
	}
	orgs, err := e.ListOrganizations(ctx)
	if err != nil {
		t.Fatalf("list orgs: %v", err)
	}
	if len(orgs) != 1 || orgs[0].LastNotificationAt == nil || !orgs[0].LastNotificationAt.Equal(testNow) {
		t.Fatalf("expected notification stamp, got %+v", orgs)
	}
}

func TestTenantReadsCoverEveryPage(t *testing.T) {
	e, store, _ := newTestExecutor(t)
	ctx := context.Background()
	sc := scope("tenant-a")

	total := docstore.ScanPageSize*2 + 5
	for i := 0; i < total; i++ {
		id := fmt.Sprintf("INV-%05d", i)
		inv := Invoice{
			ID: id, TenantID: "tenant-a", ClientName: "Acme", Total: FromMajor(100),
			Status: InvoiceUnpaid, DueDate: testNow.Add(-24 * time.Hour), CreatedAt: testNow.Add(-48 * time.Hour),
		}
		if err := store.Set(ctx, InvoicesCollection, id, inv); err != nil {
			t.Fatalf("seed invoice: %v", err)
		}
	}
	_ = store.Set(ctx, InvoicesCollection, "INV-OTHER", Invoice{ID: "INV-OTHER", TenantID: "tenant-b", Status: InvoiceUnpaid, Total: FromMajor(100)})

	newest, err := e.ListInvoices(ctx, sc, InvoiceFilter{Limit: 1})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if want := fmt.Sprintf("INV-%05d", total-1); len(newest) != 1 || newest[0].ID != want {
		t.Fatalf("expected newest invoice %s, got %+v", want, newest)
	}

	summary, err := e.BusinessSummary(ctx, sc, DateRange{})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.OverdueCount != total || summary.InvoicedTotal != FromMajor(float64(100*total)) {
		t.Fatalf("expected %d overdue invoices totalling %d, got %d and %v", total, 100*total, summary.OverdueCount, summary.InvoicedTotal.Major())
	}

	overdue, err := e.OverdueInvoices(ctx, sc)
	if err != nil {
		t.Fatalf("overdue: %v", err)
	}
	if len(overdue) != total {
		t.Fatalf("expected %d overdue invoices, got %d", total, len(overdue))
	}
}

func TestListRoutesNewestFirstAcrossPages(t *testing.T) {
	e, store, _ := newTestExecutor(t)
	ctx := context.Background()
	sc := scope("tenant-a")

	total := docstore.ScanPageSize + 3
	for i := 0; i < total; i++ {
		id := fmt.Sprintf("RTE-%05d", i)
		route := Route{ID: id, TenantID: "tenant-a", Origin: "Lagos", Destination: "Ibadan", Status: RoutePending, CreatedAt: testNow}
		if err := store.Set(ctx, RoutesCollection, id, route); err != nil {
			t.Fatalf("seed route: %v", err)
		}
	}

	routes, err := e.ListRoutes(ctx, sc, RouteFilter{Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(routes) != 2 || routes[0].ID != fmt.Sprintf("RTE-%05d", total-1) || routes[1].ID != fmt.Sprintf("RTE-%05d", total-2) {
		t.Fatalf("expected the two newest routes, got %+v", routes)
	}

	got, err := e.GetRoute(ctx, sc, " rte-00000 ")
	if err != nil {
		t.Fatalf("expected lower-case id to resolve, got %v", err)
	}
	if got.ID != "RTE-00000" {
		t.Fatalf("expected RTE-00000, got %s", got.ID)
	}
}
