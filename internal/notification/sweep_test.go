package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"fleetdesk_backend/internal/actions"
	"fleetdesk_backend/internal/docstore"
	"fleetdesk_backend/platform/logger"
	"fleetdesk_backend/platform/validator"
)

var testNow = time.Date(2026, 5, 12, 10, 0, 0, 0, time.UTC)

type cooldown time.Duration

func (c cooldown) GetNotificationCooldown() time.Duration { return time.Duration(c) }

type fakeSender struct {
	mu   sync.Mutex
	sent map[string]string
	err  error
}

func (f *fakeSender) SendText(_ context.Context, to, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.sent == nil {
		f.sent = map[string]string{}
	}
	f.sent[to] = body
	return nil
}

func seed(t *testing.T, store docstore.Store, collection, id string, doc any) {
	t.Helper()
	if err := store.Set(context.Background(), collection, id, doc); err != nil {
		t.Fatalf("seed %s/%s: %v", collection, id, err)
	}
}

func newNotifier(t *testing.T, sender Sender) (*Notifier, docstore.Store, *actions.Executor) {
	t.Helper()
	store := docstore.NewMemory()
	exec := actions.NewExecutor(store, nil, validator.New(), logger.Discard())
	exec.SetClock(func() time.Time { return testNow })
	n := New(exec, sender, cooldown(0), logger.Discard(), nil)
	n.now = func() time.Time { return testNow }
	return n, store, exec
}

func org(id, phone string, last *time.Time) actions.Organization {
	return actions.Organization{
		ID:                 id,
		TenantID:           id,
		Name:               "Org " + id,
		ContactPhone:       phone,
		Currency:           "NGN",
		LastNotificationAt: last,
		CreatedAt:          testNow.Add(-30 * 24 * time.Hour),
	}
}

func TestSweepSendsDigestAndStampsTenant(t *testing.T) {
	sender := &fakeSender{}
	n, store, exec := newNotifier(t, sender)

	seed(t, store, actions.OrganizationsCollection, "t1", org("t1", "+2348011111111", nil))
	seed(t, store, actions.InvoicesCollection, "inv1", actions.Invoice{
		ID: "inv1", TenantID: "t1", ClientName: "Acme Foods", Total: 5375000,
		Status: actions.InvoiceUnpaid, DueDate: testNow.Add(-4 * 24 * time.Hour), CreatedAt: testNow.Add(-20 * 24 * time.Hour),
	})
	seed(t, store, actions.DriversCollection, "drv1", actions.Driver{
		ID: "drv1", TenantID: "t1", Name: "Musa Bello", Status: actions.DriverAvailable,
		CreatedAt: testNow.Add(-10 * 24 * time.Hour), UpdatedAt: testNow.Add(-10 * 24 * time.Hour),
	})

	res, err := n.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if res.Sent != 1 {
		t.Fatalf("expected 1 digest sent, got %+v", res)
	}
	body := sender.sent["+2348011111111"]
	for _, want := range []string{"Org t1", "Overdue invoices: 1", "Acme Foods", "₦53,750.00", "4 day(s) overdue", "Musa Bello"} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected digest to contain %q, got:\n%s", want, body)
		}
	}

	orgs, err := exec.ListOrganizations(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if orgs[0].LastNotificationAt == nil || !orgs[0].LastNotificationAt.Equal(testNow) {
		t.Fatalf("expected notification time stamped, got %v", orgs[0].LastNotificationAt)
	}

	// A second sweep inside the cool-down sends nothing.
	sender.sent = nil
	res, err = n.Sweep(context.Background())
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if res.Skipped != 1 || len(sender.sent) != 0 {
		t.Fatalf("expected tenant skipped inside the cool-down, got %+v sent=%v", res, sender.sent)
	}
}

func TestSweepCooldownBoundary(t *testing.T) {
	sender := &fakeSender{}
	n, store, _ := newNotifier(t, sender)

	recent := testNow.Add(-5 * time.Hour)
	old := testNow.Add(-7 * time.Hour)
	seed(t, store, actions.OrganizationsCollection, "recent", org("recent", "+2348022222222", &recent))
	seed(t, store, actions.OrganizationsCollection, "old", org("old", "+2348033333333", &old))
	for _, tenant := range []string{"recent", "old"} {
		seed(t, store, actions.InvoicesCollection, "inv-"+tenant, actions.Invoice{
			ID: "inv-" + tenant, TenantID: tenant, ClientName: "Client", Total: 100000,
			Status: actions.InvoiceUnpaid, DueDate: testNow.Add(-48 * time.Hour), CreatedAt: testNow.Add(-72 * time.Hour),
		})
	}

	res, err := n.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if res.Sent != 1 || res.Skipped != 1 {
		t.Fatalf("expected one sent and one skipped, got %+v", res)
	}
	if _, ok := sender.sent["+2348033333333"]; !ok {
		t.Fatalf("expected tenant past the cool-down notified, got %v", sender.sent)
	}
}

func TestSweepQuietTenantGetsNothing(t *testing.T) {
	sender := &fakeSender{}
	n, store, _ := newNotifier(t, sender)
	seed(t, store, actions.OrganizationsCollection, "t1", org("t1", "+2348011111111", nil))

	res, err := n.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if res.Empty != 1 || len(sender.sent) != 0 {
		t.Fatalf("expected empty result without a message, got %+v", res)
	}
}

func TestSweepDeliveryFailureLeavesTenantDue(t *testing.T) {
	sender := &fakeSender{err: errors.New("channel down")}
	n, store, exec := newNotifier(t, sender)
	seed(t, store, actions.OrganizationsCollection, "t1", org("t1", "+2348011111111", nil))
	seed(t, store, actions.InvoicesCollection, "inv1", actions.Invoice{
		ID: "inv1", TenantID: "t1", ClientName: "Acme", Total: 100000,
		Status: actions.InvoiceUnpaid, DueDate: testNow.Add(-48 * time.Hour), CreatedAt: testNow.Add(-72 * time.Hour),
	})

	res, err := n.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if res.Failed != 1 {
		t.Fatalf("expected failed delivery counted, got %+v", res)
	}
	orgs, _ := exec.ListOrganizations(context.Background())
	if orgs[0].LastNotificationAt != nil {
		t.Fatalf("expected no stamp after failed delivery")
	}
}

func TestComposeTruncatesLongLists(t *testing.T) {
	d := digest{Organization: "Swift Haulage"}
	for i := 0; i < 7; i++ {
		d.IdleDrivers = append(d.IdleDrivers, actions.Driver{Name: "Driver"})
	}
	body, err := compose(d)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if strings.Count(body, "- Driver") != 5 || !strings.Contains(body, "and 2 more") {
		t.Fatalf("expected five drivers and a remainder line, got:\n%s", body)
	}
}

func TestSweepVisitsEveryTenant(t *testing.T) {
	sender := &fakeSender{}
	n, store, _ := newNotifier(t, sender)

	total := docstore.ScanPageSize*2 + 2
	for i := 0; i < total; i++ {
		id := fmt.Sprintf("t%05d", i)
		seed(t, store, actions.OrganizationsCollection, id, org(id, "", nil))
	}
	last := fmt.Sprintf("t%05d", total)
	seed(t, store, actions.OrganizationsCollection, last, org(last, "+2348011111111", nil))
	seed(t, store, actions.InvoicesCollection, "inv-last", actions.Invoice{
		ID: "inv-last", TenantID: last, ClientName: "Acme Foods", Total: 5375000,
		Status: actions.InvoiceUnpaid, DueDate: testNow.Add(-48 * time.Hour), CreatedAt: testNow.Add(-72 * time.Hour),
	})

	res, err := n.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if res.Empty != total || res.Sent != 1 {
		t.Fatalf("expected %d empty tenants and the last one notified, got %+v", total, res)
	}
	if _, ok := sender.sent["+2348011111111"]; !ok {
		t.Fatalf("expected digest for the last tenant")
	}
}
