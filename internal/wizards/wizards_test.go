package wizards

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"fleetdesk_backend/internal/actions"
	"fleetdesk_backend/internal/docstore"
	"fleetdesk_backend/internal/flow"
	"fleetdesk_backend/internal/session"
	"fleetdesk_backend/internal/tenancy"
	"fleetdesk_backend/platform/i18n"
	"fleetdesk_backend/platform/logger"
	"fleetdesk_backend/platform/phone"
	"fleetdesk_backend/platform/validator"

	"golang.org/x/crypto/bcrypt"
)

var testNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

const testAddress = "+2348012345678"

type capturedCodes struct {
	to    []string
	codes []string
	err   error
}

func (c *capturedCodes) SendLinkCode(_ context.Context, to, code string) error {
	if c.err != nil {
		return c.err
	}
	c.to = append(c.to, to)
	c.codes = append(c.codes, code)
	return nil
}

func (c *capturedCodes) last() string {
	if len(c.codes) == 0 {
		return ""
	}
	return c.codes[len(c.codes)-1]
}

type harness struct {
	engine   *flow.Engine
	exec     *actions.Executor
	resolver *tenancy.Resolver
	store    *docstore.Memory
	codes    *capturedCodes
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := docstore.NewMemory()
	log := logger.Discard()
	val := validator.New()
	exec := actions.NewExecutor(store, nil, val, log)
	exec.SetClock(func() time.Time { return testNow })
	resolver := tenancy.NewResolver(store, phone.NewCanonicalizer("NG", "234"), log)
	codes := &capturedCodes{}
	deps := Deps{Exec: exec, Resolver: resolver, Codes: codes, Val: val, Log: log, PinCost: bcrypt.MinCost}
	return &harness{
		engine:   flow.NewEngine(i18n.Load(), log, nil, All(deps)...),
		exec:     exec,
		resolver: resolver,
		store:    store,
		codes:    codes,
	}
}

func env(tenantID string) flow.Env {
	return flow.Env{
		Address:   testAddress,
		TenantID:  tenantID,
		UserID:    "user-1",
		MessageID: "wamid.test",
		Lang:      i18n.English,
		Now:       testNow,
	}
}

func (h *harness) start(t *testing.T, e flow.Env, id string) *session.Session {
	t.Helper()
	s := session.New(e.Address, testNow)
	if _, err := h.engine.Start(context.Background(), e, s, id); err != nil {
		t.Fatalf("start %s: %v", id, err)
	}
	return s
}

func (h *harness) feed(t *testing.T, e flow.Env, s *session.Session, inputs ...string) flow.Reply {
	t.Helper()
	var reply flow.Reply
	for _, in := range inputs {
		var err error
		reply, err = h.engine.Handle(context.Background(), e, s, in)
		if err != nil {
			t.Fatalf("handle %q: %v", in, err)
		}
	}
	return reply
}

func (h *harness) step(s *session.Session) string {
	def, _ := h.engine.Definition(s.ActiveFlow)
	return def.StepKey(s.StepCursor)
}

func TestAllFlowsRegister(t *testing.T) {
	h := newHarness(t)
	want := []string{Client, Driver, Invoice, InvoiceProfile, Link, Onboarding, Vehicle}
	got := h.engine.Flows()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("expected flows %v, got %v", want, got)
	}
}

func TestOnboardingPersonalInfoAdvances(t *testing.T) {
	h := newHarness(t)
	e := env("")
	s := h.start(t, e, Onboarding)

	reply := h.feed(t, e, s, "John | Doe")
	if got := h.step(s); got != "company_info" {
		t.Fatalf("expected company_info step, got %q", got)
	}
	if s.Fields.String(fieldFirstName) != "John" || s.Fields.String(fieldLastName) != "Doe" {
		t.Fatalf("expected John Doe collected, got %+v", s.Fields)
	}
	if !strings.Contains(reply.Text, "Company name | Industry") {
		t.Fatalf("expected company prompt, got %q", reply.Text)
	}
}

func TestOnboardingRejectsShortName(t *testing.T) {
	h := newHarness(t)
	e := env("")
	s := h.start(t, e, Onboarding)

	reply := h.feed(t, e, s, "Jo | D")
	if got := h.step(s); got != "personal_info" {
		t.Fatalf("expected to stay at personal_info, got %q", got)
	}
	if s.Fields.Has(fieldFirstName) {
		t.Fatalf("expected nothing collected, got %+v", s.Fields)
	}
	if !strings.Contains(reply.Text, "last name must be at least 2 characters") {
		t.Fatalf("expected length error, got %q", reply.Text)
	}
}

func TestOnboardingPinMismatchRestartsPair(t *testing.T) {
	h := newHarness(t)
	e := env("")
	s := h.start(t, e, Onboarding)
	h.feed(t, e, s, "John | Doe", "Swift Haulage | Logistics", "12 Marina Road, Lagos Island, Lagos", "yes")
	if got := h.step(s); got != "pin" {
		t.Fatalf("expected pin step, got %q", got)
	}

	reply := h.feed(t, e, s, "1234")
	if !s.Fields.Has(fieldPinProvisional) || h.step(s) != "pin" {
		t.Fatalf("expected provisional pin and same step, got %+v", s.Fields)
	}
	if !strings.Contains(reply.Text, "same 4-digit PIN") {
		t.Fatalf("expected confirm prompt, got %q", reply.Text)
	}
	if strings.Contains(s.Fields.String(fieldPinProvisional), "1234") {
		t.Fatalf("expected the provisional pin to be hashed")
	}

	reply = h.feed(t, e, s, "5678")
	if s.Fields.Has(fieldPinProvisional) || s.Fields.Has(fieldPinHash) {
		t.Fatalf("expected mismatch to clear the pair, got %+v", s.Fields)
	}
	if h.step(s) != "pin" || s.Phase != session.PhaseCollecting {
		t.Fatalf("expected to remain at pin, got %q in %s", h.step(s), s.Phase)
	}
	if !strings.Contains(reply.Text, "didn't match") || !strings.Contains(reply.Text, "Choose a 4-digit PIN") {
		t.Fatalf("expected mismatch notice and fresh prompt, got %q", reply.Text)
	}
	if s.Fields.String(fieldFirstName) != "John" {
		t.Fatalf("expected earlier steps kept, got %+v", s.Fields)
	}

	h.feed(t, e, s, "12a4")
	if s.Fields.Has(fieldPinProvisional) {
		t.Fatalf("expected malformed pin to be rejected")
	}
}

func TestOnboardingCommitRegistersTenant(t *testing.T) {
	h := newHarness(t)
	e := env("")
	s := h.start(t, e, Onboarding)
	reply := h.feed(t, e, s,
		"John | Doe | John@Example.com",
		"Swift Haulage | Logistics",
		"12 Marina Road, Lagos Island, Lagos",
		"yes", "1234", "1234",
	)
	if s.Phase != session.PhaseConfirming {
		t.Fatalf("expected confirming, got %s", s.Phase)
	}
	if strings.Contains(reply.Text, "1234") {
		t.Fatalf("expected summary not to reveal the pin, got %q", reply.Text)
	}

	reply = h.feed(t, e, s, "yes")
	if !strings.Contains(reply.Text, "Swift Haulage is set up") {
		t.Fatalf("expected welcome message, got %q", reply.Text)
	}

	res, err := h.resolver.Resolve(context.Background(), testAddress)
	if err != nil {
		t.Fatalf("expected binding after onboarding: %v", err)
	}
	if !strings.HasPrefix(res.TenantID, actions.PrefixOrg+"-") {
		t.Fatalf("expected org tenant id, got %q", res.TenantID)
	}

	org, err := docstore.GetAs[actions.Organization](context.Background(), h.store, actions.OrganizationsCollection, res.TenantID)
	if err != nil {
		t.Fatalf("load org: %v", err)
	}
	if org.Name != "Swift Haulage" || org.City != "Lagos Island" || org.State != "Lagos" || org.OwnerUserID != res.UserID {
		t.Fatalf("unexpected organization %+v", org)
	}

	user, err := h.resolver.FindUserByEmail(context.Background(), "john@example.com")
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PinHash), []byte("1234")) != nil {
		t.Fatalf("expected stored pin hash to match")
	}
}

func seedTenant(t *testing.T, h *harness, tenantID string, clients ...string) flow.Env {
	t.Helper()
	e := env(tenantID)
	sc := actions.NewScope(tenantID, "user-1", testAddress, "", testNow)
	for _, name := range clients {
		if _, err := h.exec.CreateClient(context.Background(), sc, actions.NewClient{Name: name}); err != nil {
			t.Fatalf("seed client %s: %v", name, err)
		}
	}
	return e
}

func TestInvoiceWizardComputesTotals(t *testing.T) {
	h := newHarness(t)
	e := seedTenant(t, h, "ORG-A", "Acme Haulage Ltd")
	s := h.start(t, e, Invoice)

	reply := h.feed(t, e, s, "Acme", "Haulage", "10", "5000", "exclusive", "7.5", "skip")
	if s.Phase != session.PhaseConfirming {
		t.Fatalf("expected confirming, got %s at %q", s.Phase, h.step(s))
	}
	for _, want := range []string{"₦50,000.00", "₦3,750.00", "₦53,750.00", "Acme Haulage Ltd"} {
		if !strings.Contains(reply.Text, want) {
			t.Fatalf("expected summary to contain %q, got %q", want, reply.Text)
		}
	}

	reply = h.feed(t, e, s, "yes")
	if !strings.Contains(reply.Text, "₦53,750.00") {
		t.Fatalf("expected total in success message, got %q", reply.Text)
	}

	sc := actions.NewScope("ORG-A", "user-1", testAddress, "", testNow)
	invoices, err := h.exec.ListInvoices(context.Background(), sc, actions.InvoiceFilter{})
	if err != nil {
		t.Fatalf("list invoices: %v", err)
	}
	if len(invoices) != 1 {
		t.Fatalf("expected one invoice, got %d", len(invoices))
	}
	inv := invoices[0]
	if inv.Subtotal != actions.FromMajor(50000) || inv.VATAmount != actions.FromMajor(3750) || inv.Total != actions.FromMajor(53750) {
		t.Fatalf("unexpected totals %v %v %v", inv.Subtotal, inv.VATAmount, inv.Total)
	}
}

func TestInvoiceWizardSkipsRateWithoutVAT(t *testing.T) {
	h := newHarness(t)
	e := seedTenant(t, h, "ORG-A", "Acme Haulage Ltd")
	s := h.start(t, e, Invoice)

	h.feed(t, e, s, "Acme", "Haulage", "2", "5k", "none")
	if got := h.step(s); got != "notes" {
		t.Fatalf("expected vat_rate to be skipped, got %q", got)
	}
}

func TestInvoiceWizardListsClientCandidates(t *testing.T) {
	h := newHarness(t)
	e := seedTenant(t, h, "ORG-A", "Acme Haulage", "Acme Foods")
	s := h.start(t, e, Invoice)

	reply := h.feed(t, e, s, "Acme")
	if got := h.step(s); got != "client" {
		t.Fatalf("expected to stay at client, got %q", got)
	}
	if !strings.Contains(reply.Text, "Acme Foods, Acme Haulage") {
		t.Fatalf("expected candidates in reply, got %q", reply.Text)
	}
}

func TestInvoiceWizardIsTenantScoped(t *testing.T) {
	h := newHarness(t)
	seedTenant(t, h, "ORG-B", "Acme Haulage")
	e := seedTenant(t, h, "ORG-A")
	s := h.start(t, e, Invoice)

	h.feed(t, e, s, "Acme Haulage")
	if got := h.step(s); got != "client" {
		t.Fatalf("expected another tenant's client to be invisible, got step %q", got)
	}
}

func TestDriverAndVehicleFlows(t *testing.T) {
	h := newHarness(t)
	e := seedTenant(t, h, "ORG-A")
	ctx := context.Background()
	sc := actions.NewScope("ORG-A", "user-1", testAddress, "", testNow)

	s := h.start(t, e, Driver)
	reply := h.feed(t, e, s, "John Bello", "0803 111 2222", "skip", "yes")
	if !strings.Contains(reply.Text, "Driver John Bello added") {
		t.Fatalf("expected driver added, got %q", reply.Text)
	}
	if _, err := h.exec.FindDriver(ctx, sc, "john bello"); err != nil {
		t.Fatalf("expected driver stored: %v", err)
	}

	s = h.start(t, e, Vehicle)
	reply = h.feed(t, e, s, "lag 123 xy", "plane")
	if !strings.Contains(reply.Text, "choose one of") {
		t.Fatalf("expected vehicle type rejection, got %q", reply.Text)
	}
	reply = h.feed(t, e, s, "truck", "Toyota Dyna", "5,000kg", "yes")
	if !strings.Contains(reply.Text, "Vehicle LAG 123 XY added") {
		t.Fatalf("expected vehicle added, got %q", reply.Text)
	}
	v, err := h.exec.FindVehicle(ctx, sc, "LAG123XY")
	if err != nil {
		t.Fatalf("expected vehicle stored: %v", err)
	}
	if v.Make != "Toyota" || v.Model != "Dyna" || v.CapacityKg != 5000 {
		t.Fatalf("unexpected vehicle %+v", v)
	}
}

func TestClientFlowSkipsOptionalSteps(t *testing.T) {
	h := newHarness(t)
	e := seedTenant(t, h, "ORG-A")
	s := h.start(t, e, Client)

	reply := h.feed(t, e, s, "Dangote Cement", "skip", "not-an-email")
	if got := h.step(s); got != "email" || !strings.Contains(reply.Text, "not a valid email") {
		t.Fatalf("expected email rejection, got step %q reply %q", got, reply.Text)
	}
	reply = h.feed(t, e, s, "skip", "skip", "yes")
	if !strings.Contains(reply.Text, "Client Dangote Cement added") {
		t.Fatalf("expected client added, got %q", reply.Text)
	}
}

func registerExisting(t *testing.T, h *harness) tenancy.Registration {
	t.Helper()
	reg := tenancy.Registration{
		Address:   "+2348099999999",
		TenantID:  "ORG-EXISTING",
		FirstName: "Ada",
		LastName:  "Obi",
		Email:     "ada@example.com",
	}
	id, err := h.resolver.Register(context.Background(), reg)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	reg.UserID = id
	return reg
}

func TestLinkFlowBindsVerifiedAddress(t *testing.T) {
	h := newHarness(t)
	reg := registerExisting(t, h)
	e := env("")
	s := h.start(t, e, Link)

	reply := h.feed(t, e, s, "nobody@example.com")
	if h.step(s) != "email" || !strings.Contains(reply.Text, "couldn't find") {
		t.Fatalf("expected unknown email rejection, got %q", reply.Text)
	}

	h.feed(t, e, s, "ADA@example.com")
	if len(h.codes.codes) != 1 || h.codes.to[0] != "ada@example.com" {
		t.Fatalf("expected one code sent to ada, got %+v", h.codes)
	}
	if strings.Contains(s.Fields.String(fieldCodeHash), h.codes.last()) {
		t.Fatalf("expected code to be stored hashed")
	}

	reply = h.feed(t, e, s, h.codes.last())
	if s.Phase != session.PhaseConfirming || !strings.Contains(reply.Text, "Ada Obi") {
		t.Fatalf("expected confirmation for Ada Obi, got %s %q", s.Phase, reply.Text)
	}
	h.feed(t, e, s, "yes")

	res, err := h.resolver.Resolve(context.Background(), testAddress)
	if err != nil {
		t.Fatalf("expected linked address to resolve: %v", err)
	}
	if res.TenantID != reg.TenantID || res.UserID != reg.UserID {
		t.Fatalf("expected binding to existing account, got %+v", res)
	}
}

func TestLinkFlowAbortsAfterThreeWrongCodes(t *testing.T) {
	h := newHarness(t)
	registerExisting(t, h)
	e := env("")
	s := h.start(t, e, Link)
	h.feed(t, e, s, "ada@example.com")

	wrong := "000000"
	if h.codes.last() == wrong {
		wrong = "111111"
	}
	reply := h.feed(t, e, s, wrong)
	if !strings.Contains(reply.Text, "2 attempt(s) left") {
		t.Fatalf("expected attempts left notice, got %q", reply.Text)
	}
	h.feed(t, e, s, wrong)
	reply = h.feed(t, e, s, wrong)
	if s.InFlow() {
		t.Fatalf("expected flow to end after three wrong codes")
	}
	if !strings.Contains(reply.Text, "too many times") {
		t.Fatalf("expected abort notice, got %q", reply.Text)
	}
	if _, err := h.resolver.Resolve(context.Background(), testAddress); !errors.Is(err, tenancy.ErrUnregistered) {
		t.Fatalf("expected address to stay unregistered, got %v", err)
	}
}

func TestLinkFlowResendsExpiredCode(t *testing.T) {
	h := newHarness(t)
	registerExisting(t, h)
	e := env("")
	s := h.start(t, e, Link)
	h.feed(t, e, s, "ada@example.com")
	first := h.codes.last()

	later := e
	later.Now = testNow.Add(linkCodeTTL + time.Minute)
	reply := h.feed(t, later, s, first)
	if len(h.codes.codes) != 2 || !strings.Contains(reply.Text, "expired") {
		t.Fatalf("expected a new code after expiry, got %d codes, %q", len(h.codes.codes), reply.Text)
	}
	if s.Phase != session.PhaseCollecting {
		t.Fatalf("expected to keep collecting, got %s", s.Phase)
	}
}

func TestLinkFlowSendFailureStaysOnEmail(t *testing.T) {
	h := newHarness(t)
	registerExisting(t, h)
	h.codes.err = errors.New("smtp down")
	e := env("")
	s := h.start(t, e, Link)

	reply := h.feed(t, e, s, "ada@example.com")
	if h.step(s) != "email" || !strings.Contains(reply.Text, "couldn't send the code") {
		t.Fatalf("expected send failure to re-prompt, got %q", reply.Text)
	}
}
