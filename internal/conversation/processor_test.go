package conversation

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"fleetdesk_backend/internal/actions"
	"fleetdesk_backend/internal/docstore"
	"fleetdesk_backend/internal/flow"
	"fleetdesk_backend/internal/orchestrator"
	"fleetdesk_backend/internal/session"
	"fleetdesk_backend/internal/tenancy"
	"fleetdesk_backend/internal/wizards"
	"fleetdesk_backend/platform/i18n"
	"fleetdesk_backend/platform/logger"
	"fleetdesk_backend/platform/phone"
	"fleetdesk_backend/platform/validator"

	"golang.org/x/crypto/bcrypt"
)

const (
	rawFrom   = "2348012345678"
	canonical = "+2348012345678"
)

type sessionConfig struct{}

func (sessionConfig) GetSessionIdleTTL() time.Duration   { return 5 * time.Minute }
func (sessionConfig) GetSessionWizardTTL() time.Duration { return 60 * time.Minute }
func (sessionConfig) GetSessionMaxHistory() int          { return 20 }
func (sessionConfig) GetSessionPromptTurns() int         { return 12 }

type sent struct {
	to      string
	body    string
	options []flow.Option
}

type fakeSender struct {
	messages []sent
	read     []string
	readErr  error
}

func (f *fakeSender) SendText(_ context.Context, to, body string) error {
	f.messages = append(f.messages, sent{to: to, body: body})
	return nil
}

func (f *fakeSender) SendButtons(_ context.Context, to, body string, options []flow.Option) error {
	f.messages = append(f.messages, sent{to: to, body: body, options: options})
	return nil
}

func (f *fakeSender) MarkRead(_ context.Context, id string) error {
	f.read = append(f.read, id)
	return f.readErr
}

func (f *fakeSender) last(t *testing.T) sent {
	t.Helper()
	if len(f.messages) == 0 {
		t.Fatalf("expected a reply to be sent")
	}
	return f.messages[len(f.messages)-1]
}

type fakeAssistant struct {
	calls  int
	scopes []*actions.Scope
	texts  []string
}

func (f *fakeAssistant) Converse(_ context.Context, _ *session.Session, sc *actions.Scope, text string) orchestrator.Reply {
	f.calls++
	f.scopes = append(f.scopes, sc)
	f.texts = append(f.texts, text)
	return orchestrator.Reply{Text: "assistant: " + text, Rounds: 1}
}

type fakeTranscriber struct {
	text string
	err  error
}

func (f fakeTranscriber) Transcribe(context.Context, string) (string, error) {
	return f.text, f.err
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

type harness struct {
	processor *Processor
	sender    *fakeSender
	assistant *fakeAssistant
	sessions  *session.Manager
	resolver  *tenancy.Resolver
	clock     *clock
}

func newHarness(t *testing.T, opts ...func(*Deps)) *harness {
	t.Helper()
	store := docstore.NewMemory()
	log := logger.Discard()
	val := validator.New()
	clk := &clock{now: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)}

	exec := actions.NewExecutor(store, nil, val, log)
	exec.SetClock(clk.Now)
	resolver := tenancy.NewResolver(store, phone.NewCanonicalizer("NG", "234"), log)
	sessions := session.NewManager(session.NewDocStore(store), session.NewLocalLocker(), sessionConfig{}, log, session.WithClock(clk.Now))
	catalog := i18n.Load()
	defs := wizards.All(wizards.Deps{Exec: exec, Resolver: resolver, Val: val, Log: log, PinCost: bcrypt.MinCost})

	h := &harness{sender: &fakeSender{}, assistant: &fakeAssistant{}, sessions: sessions, resolver: resolver, clock: clk}
	deps := Deps{
		Resolver:  resolver,
		Sessions:  sessions,
		Flows:     flow.NewEngine(catalog, log, nil, defs...),
		Assistant: h.assistant,
		Sender:    h.sender,
		Catalog:   catalog,
		Log:       log,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	h.processor = NewProcessor(deps)
	h.processor.now = clk.Now
	return h
}

func (h *harness) register(t *testing.T, tenantID string) {
	t.Helper()
	_, err := h.resolver.Register(context.Background(), tenancy.Registration{
		Address: canonical, TenantID: tenantID, FirstName: "Ada", LastName: "Obi",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
}

var seq int

func (h *harness) text(t *testing.T, body string) sent {
	t.Helper()
	seq++
	msg := Message{ID: "wamid." + strconv.Itoa(seq), From: rawFrom, Type: TypeText, Text: body, Timestamp: h.clock.now}
	if err := h.processor.Handle(context.Background(), msg); err != nil {
		t.Fatalf("handle %q: %v", body, err)
	}
	return h.sender.last(t)
}

func (h *harness) session(t *testing.T) *session.Session {
	t.Helper()
	s, err := h.sessions.Peek(context.Background(), canonical)
	if err != nil {
		t.Fatalf("peek session: %v", err)
	}
	return s
}

func TestUnregisteredSenderStartsOnboarding(t *testing.T) {
	h := newHarness(t)
	reply := h.text(t, "show my wallet")

	if !strings.Contains(reply.body, "isn't linked to an account") {
		t.Fatalf("expected welcome text, got %q", reply.body)
	}
	if reply.to != canonical {
		t.Fatalf("expected reply to canonical address, got %q", reply.to)
	}
	if h.assistant.calls != 0 {
		t.Fatalf("expected unregistered sender never to reach the assistant")
	}
	s := h.session(t)
	if s.ActiveFlow != wizards.Onboarding || s.TenantID != "" {
		t.Fatalf("expected onboarding without tenant, got flow %q tenant %q", s.ActiveFlow, s.TenantID)
	}

	h.text(t, "John | Doe")
	if s := h.session(t); s.Fields.String("firstName") != "John" {
		t.Fatalf("expected onboarding to collect the name, got %+v", s.Fields)
	}
}

func TestUnregisteredSenderCanLink(t *testing.T) {
	h := newHarness(t)
	reply := h.text(t, "LINK")
	if !strings.Contains(reply.body, "email address") {
		t.Fatalf("expected link flow prompt, got %q", reply.body)
	}
	if s := h.session(t); s.ActiveFlow != wizards.Link {
		t.Fatalf("expected link flow, got %q", s.ActiveFlow)
	}
}

func TestRegisteredFreeTextReachesAssistant(t *testing.T) {
	h := newHarness(t)
	h.register(t, "ORG-A")

	reply := h.text(t, "What's my wallet balance?")
	if reply.body != "assistant: What's my wallet balance?" {
		t.Fatalf("expected assistant reply, got %q", reply.body)
	}
	sc := h.assistant.scopes[0]
	if sc.TenantID != "ORG-A" || sc.Address != canonical || sc.MessageID == "" {
		t.Fatalf("expected scope from the binding, got %+v", sc)
	}

	s := h.session(t)
	if len(s.History) != 2 || s.History[0].Role != session.RoleUser || s.History[1].Role != session.RoleAssistant {
		t.Fatalf("expected user and assistant turns, got %+v", s.History)
	}
	if s.TenantID != "ORG-A" {
		t.Fatalf("expected session tenant ORG-A, got %q", s.TenantID)
	}
}

func TestCommandsStartFlowsAndMenu(t *testing.T) {
	h := newHarness(t)
	h.register(t, "ORG-A")

	if reply := h.text(t, "menu"); !strings.Contains(reply.body, "add client") {
		t.Fatalf("expected menu, got %q", reply.body)
	}
	if reply := h.text(t, "cancel"); !strings.Contains(reply.body, "nothing in progress") {
		t.Fatalf("expected nothing to cancel, got %q", reply.body)
	}

	reply := h.text(t, "Add Client")
	if !strings.Contains(reply.body, "client's name") {
		t.Fatalf("expected client flow prompt, got %q", reply.body)
	}
	h.text(t, "Dangote Cement")
	reply = h.text(t, "cancel")
	if !strings.Contains(reply.body, "cancelled") || h.session(t).InFlow() {
		t.Fatalf("expected cancelled flow, got %q", reply.body)
	}
	if h.assistant.calls != 0 {
		t.Fatalf("expected commands not to reach the assistant, got %d calls", h.assistant.calls)
	}
	if len(h.session(t).History) != 0 {
		t.Fatalf("expected wizard input to stay out of history")
	}
}

func TestLanguageSwitchLocalizesSystemMessages(t *testing.T) {
	h := newHarness(t)
	h.register(t, "ORG-A")

	if reply := h.text(t, "language fr"); !strings.Contains(reply.body, "français") {
		t.Fatalf("expected french confirmation, got %q", reply.body)
	}
	if reply := h.text(t, "menu"); !strings.HasPrefix(reply.body, "Voici") {
		t.Fatalf("expected french menu, got %q", reply.body)
	}
	if reply := h.text(t, "language klingon"); !strings.Contains(reply.body, "anglais") {
		t.Fatalf("expected unknown language notice in french, got %q", reply.body)
	}
}

func TestExpiredFlowIsAnnounced(t *testing.T) {
	h := newHarness(t)
	h.register(t, "ORG-A")

	h.text(t, "add driver")
	h.clock.now = h.clock.now.Add(61 * time.Minute)
	reply := h.text(t, "menu")
	if !strings.Contains(reply.body, "driver session expired") || !strings.Contains(reply.body, "add vehicle") {
		t.Fatalf("expected expiry notice followed by the menu, got %q", reply.body)
	}
	if h.session(t).InFlow() {
		t.Fatalf("expected expired flow to be cleared")
	}
}

func TestUnsupportedAndAudioMessages(t *testing.T) {
	h := newHarness(t, func(d *Deps) { d.Transcriber = fakeTranscriber{text: "show my routes"} })
	h.register(t, "ORG-A")
	ctx := context.Background()

	if err := h.processor.Handle(ctx, Message{ID: "img", From: rawFrom, Type: TypeImage}); err != nil {
		t.Fatalf("handle image: %v", err)
	}
	if got := h.sender.last(t).body; !strings.Contains(got, "text messages and voice notes") {
		t.Fatalf("expected unsupported notice, got %q", got)
	}

	if err := h.processor.Handle(ctx, Message{ID: "aud", From: rawFrom, Type: TypeAudio, MediaID: "media-1"}); err != nil {
		t.Fatalf("handle audio: %v", err)
	}
	if got := h.sender.last(t).body; got != "assistant: show my routes" {
		t.Fatalf("expected transcribed text to reach the assistant, got %q", got)
	}
}

func TestTranscriptionFailureAsksForText(t *testing.T) {
	h := newHarness(t, func(d *Deps) { d.Transcriber = fakeTranscriber{err: errors.New("timeout")} })
	h.register(t, "ORG-A")

	if err := h.processor.Handle(context.Background(), Message{ID: "aud", From: rawFrom, Type: TypeAudio, MediaID: "m"}); err != nil {
		t.Fatalf("handle audio: %v", err)
	}
	if got := h.sender.last(t).body; !strings.Contains(got, "type it instead") {
		t.Fatalf("expected transcription failure notice, got %q", got)
	}
}

func TestMarkReadFailureIsNotFatal(t *testing.T) {
	h := newHarness(t)
	h.register(t, "ORG-A")
	h.sender.readErr = errors.New("channel down")

	reply := h.text(t, "hello")
	if reply.body != "assistant: hello" {
		t.Fatalf("expected processing to continue, got %q", reply.body)
	}
	if len(h.sender.read) != 1 {
		t.Fatalf("expected one read receipt attempt, got %d", len(h.sender.read))
	}
}

func TestReasoningDisabledFallsBackToMenuHint(t *testing.T) {
	h := newHarness(t, func(d *Deps) { d.Assistant = nil })
	h.register(t, "ORG-A")

	if reply := h.text(t, "hello"); !strings.Contains(reply.body, "not available") {
		t.Fatalf("expected reasoning disabled notice, got %q", reply.body)
	}
}

func TestButtonReplyUsesOptionID(t *testing.T) {
	h := newHarness(t)
	h.register(t, "ORG-A")

	h.text(t, "add vehicle")
	h.text(t, "LAG 123 XY")
	if err := h.processor.Handle(context.Background(), Message{ID: "btn", From: rawFrom, Type: TypeInteractive, Text: "Truck", ReplyID: "truck"}); err != nil {
		t.Fatalf("handle button: %v", err)
	}
	if s := h.session(t); s.Fields.String("type") != "truck" {
		t.Fatalf("expected option id to be collected, got %+v", s.Fields)
	}
}

type busyLocker struct{}

func (busyLocker) Lock(context.Context, string) (func(), error) {
	return nil, session.ErrLockTimeout
}

type flakySessions struct {
	session.Store
	failPut bool
}

func (f *flakySessions) Put(ctx context.Context, s *session.Session) error {
	if f.failPut {
		return errors.New("write timeout")
	}
	return f.Store.Put(ctx, s)
}

func TestLockTimeoutDefersMessage(t *testing.T) {
	h := newHarness(t, func(d *Deps) {
		d.Sessions = session.NewManager(session.NewDocStore(docstore.NewMemory()), busyLocker{}, sessionConfig{}, logger.Discard())
	})

	err := h.processor.Handle(context.Background(), Message{ID: "wamid.busy", From: rawFrom, Type: TypeText, Text: "menu"})
	if !errors.Is(err, session.ErrLockTimeout) {
		t.Fatalf("expected lock timeout returned for retry, got %v", err)
	}
	if len(h.sender.messages) != 0 {
		t.Fatalf("expected no reply while the session is busy, got %+v", h.sender.messages)
	}
}

func TestFailureApologyUsesSessionLanguage(t *testing.T) {
	store := &flakySessions{Store: session.NewDocStore(docstore.NewMemory())}
	h := newHarness(t, func(d *Deps) {
		d.Sessions = session.NewManager(store, session.NewLocalLocker(), sessionConfig{}, logger.Discard())
	})
	h.text(t, "language fr")

	store.failPut = true
	if err := h.processor.Handle(context.Background(), Message{ID: "wamid.fr", From: rawFrom, Type: TypeText, Text: "menu"}); err != nil {
		t.Fatalf("expected apology delivered, got %v", err)
	}
	want := i18n.Load().T("fr", "apology")
	if got := h.sender.last(t).body; got != want {
		t.Fatalf("expected french apology %q, got %q", want, got)
	}
}
