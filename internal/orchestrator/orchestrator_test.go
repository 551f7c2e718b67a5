package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"testing"
	"time"

	"fleetdesk_backend/internal/actions"
	"fleetdesk_backend/internal/docstore"
	"fleetdesk_backend/internal/session"
	"fleetdesk_backend/internal/tools"
	"fleetdesk_backend/platform/i18n"
	"fleetdesk_backend/platform/logger"
	"fleetdesk_backend/platform/validator"

	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

// scriptedLLM answers each call with the next scripted step.
type scriptedLLM struct {
	steps    []func(req *model.LLMRequest) (*genai.Content, error)
	requests [][]*genai.Content
	systems  []string
}

func (s *scriptedLLM) Name() string { return "scripted" }

func (s *scriptedLLM) GenerateContent(_ context.Context, req *model.LLMRequest, _ bool) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		s.requests = append(s.requests, append([]*genai.Content(nil), req.Contents...))
		if req.Config != nil && req.Config.SystemInstruction != nil {
			s.systems = append(s.systems, req.Config.SystemInstruction.Parts[0].Text)
		}
		i := len(s.requests) - 1
		if i >= len(s.steps) {
			i = len(s.steps) - 1
		}
		content, err := s.steps[i](req)
		if err != nil {
			yield(nil, err)
			return
		}
		yield(&model.LLMResponse{Content: content, TurnComplete: true}, nil)
	}
}

func callTool(calls ...*genai.FunctionCall) func(*model.LLMRequest) (*genai.Content, error) {
	return func(*model.LLMRequest) (*genai.Content, error) {
		parts := make([]*genai.Part, 0, len(calls))
		for _, c := range calls {
			parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{ID: c.ID, Name: c.Name, Args: c.Args}})
		}
		return &genai.Content{Role: string(genai.RoleModel), Parts: parts}, nil
	}
}

func say(text string) func(*model.LLMRequest) (*genai.Content, error) {
	return func(*model.LLMRequest) (*genai.Content, error) {
		return &genai.Content{Role: string(genai.RoleModel), Parts: []*genai.Part{{Text: text}}}, nil
	}
}

type fixture struct {
	orch  *Orchestrator
	llm   *scriptedLLM
	exec  *actions.Executor
	msgs  *i18n.Catalog
	store docstore.Store
}

func newFixture(t *testing.T, opts Options, steps ...func(*model.LLMRequest) (*genai.Content, error)) *fixture {
	t.Helper()
	store := docstore.NewMemory()
	val := validator.New()
	exec := actions.NewExecutor(store, nil, val, logger.Discard())
	ctx := context.Background()
	for id, balance := range map[string]float64{"tenant-a": 125000, "tenant-b": 990000} {
		org := actions.Organization{ID: id, TenantID: id, Name: id, WalletBalance: actions.FromMajor(balance)}
		if err := store.Set(ctx, actions.OrganizationsCollection, id, org); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	llm := &scriptedLLM{steps: steps}
	msgs := i18n.Load()
	orch := New(llm, tools.NewCatalog(exec, val, logger.Discard()), msgs, logger.Discard(), nil, opts)
	orch.now = func() time.Time { return time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC) }
	return &fixture{orch: orch, llm: llm, exec: exec, msgs: msgs, store: store}
}

func newSession() *session.Session {
	s := session.New("+2348012345678", time.Now())
	s.TenantID = "tenant-a"
	s.Language = i18n.English
	return s
}

func scopeA() *actions.Scope {
	return actions.NewScope("tenant-a", "user-1", "+2348012345678", "", time.Time{})
}

func lastResponses(t *testing.T, contents []*genai.Content) []*genai.FunctionResponse {
	t.Helper()
	last := contents[len(contents)-1]
	var out []*genai.FunctionResponse
	for _, p := range last.Parts {
		if p.FunctionResponse != nil {
			out = append(out, p.FunctionResponse)
		}
	}
	if len(out) == 0 {
		t.Fatalf("expected function responses in the last content")
	}
	return out
}

func TestWalletBalanceRoundTrip(t *testing.T) {
	f := newFixture(t, Options{},
		callTool(&genai.FunctionCall{ID: "call-1", Name: "get_wallet_balance"}),
		say("Your balance is ₦125,000.00."),
	)

	reply := f.orch.Converse(context.Background(), newSession(), scopeA(), "what's my balance?")
	if reply.Degraded || reply.Text != "Your balance is ₦125,000.00." {
		t.Fatalf("unexpected reply: %+v", reply)
	}
	if reply.Rounds != 2 || reply.ToolCalls != 1 {
		t.Fatalf("expected 2 rounds and 1 tool call, got %+v", reply)
	}

	responses := lastResponses(t, f.llm.requests[1])
	if responses[0].ID != "call-1" || responses[0].Name != "get_wallet_balance" {
		t.Fatalf("expected response bound to call-1, got %+v", responses[0])
	}
	result := responses[0].Response["result"].(map[string]any)
	if result["organization"] != "tenant-a" {
		t.Fatalf("expected tenant-a only, got %v", result)
	}
	if strings.Contains(fmt.Sprint(responses[0].Response), "tenant-b") {
		t.Fatalf("sibling tenant leaked into tool result: %v", responses[0].Response)
	}
}

func TestToolCallsKeepRequestedOrder(t *testing.T) {
	f := newFixture(t, Options{},
		callTool(
			&genai.FunctionCall{ID: "z", Name: "get_vehicles"},
			&genai.FunctionCall{ID: "a", Name: "get_drivers"},
			&genai.FunctionCall{Name: "get_clients"},
		),
		say("done"),
	)

	f.orch.Converse(context.Background(), newSession(), scopeA(), "show me everything")

	responses := lastResponses(t, f.llm.requests[1])
	if len(responses) != 3 {
		t.Fatalf("expected 3 responses, got %d", len(responses))
	}
	want := []struct{ id, name string }{{"z", "get_vehicles"}, {"a", "get_drivers"}, {"call_1_3", "get_clients"}}
	for i, w := range want {
		if responses[i].ID != w.id || responses[i].Name != w.name {
			t.Fatalf("response %d: expected %s/%s, got %s/%s", i, w.id, w.name, responses[i].ID, responses[i].Name)
		}
	}

	// The model's own turn is echoed back with the generated id filled in.
	echoed := f.llm.requests[1][len(f.llm.requests[1])-2]
	if echoed.Parts[2].FunctionCall.ID != "call_1_3" {
		t.Fatalf("expected generated id on echoed call, got %q", echoed.Parts[2].FunctionCall.ID)
	}
}

func TestRoundLimit(t *testing.T) {
	f := newFixture(t, Options{MaxRounds: 3},
		callTool(&genai.FunctionCall{ID: "loop", Name: "get_routes"}),
	)

	reply := f.orch.Converse(context.Background(), newSession(), scopeA(), "loop forever")
	if !reply.Degraded || reply.Text != f.msgs.T(i18n.English, "round_limit") {
		t.Fatalf("expected round limit message, got %+v", reply)
	}
	if len(f.llm.requests) != 3 || reply.Rounds != 3 || reply.ToolCalls != 3 {
		t.Fatalf("expected exactly 3 model calls, got %d (%+v)", len(f.llm.requests), reply)
	}
}

func TestModelErrorDegradesToApology(t *testing.T) {
	f := newFixture(t, Options{}, func(*model.LLMRequest) (*genai.Content, error) {
		return nil, errors.New("upstream 503")
	})

	s := newSession()
	s.Language = i18n.French
	reply := f.orch.Converse(context.Background(), s, scopeA(), "bonjour")
	if !reply.Degraded || reply.Text != f.msgs.T(i18n.French, "apology") {
		t.Fatalf("expected french apology, got %+v", reply)
	}
}

func TestToolFailureGoesBackToModel(t *testing.T) {
	f := newFixture(t, Options{},
		callTool(&genai.FunctionCall{ID: "c1", Name: "delete_invoice", Args: map[string]any{"invoiceId": "INV-NOPE"}}),
		say("I couldn't find that invoice."),
	)

	reply := f.orch.Converse(context.Background(), newSession(), scopeA(), "delete INV-NOPE")
	if reply.Degraded || reply.Text != "I couldn't find that invoice." {
		t.Fatalf("expected the model's own wording, got %+v", reply)
	}
	resp := lastResponses(t, f.llm.requests[1])[0].Response
	if resp["ok"] != false {
		t.Fatalf("expected failure payload, got %v", resp)
	}
	if code := resp["error"].(map[string]any)["code"]; code != "not_found" {
		t.Fatalf("expected not_found, got %v", code)
	}
}

func TestPromptCarriesBoundedHistoryAndSummary(t *testing.T) {
	f := newFixture(t, Options{PromptTurns: 4}, say("ok"))

	s := newSession()
	s.Summary = "user: asked about route RTE-1"
	for i := 0; i < 30; i++ {
		role := session.RoleUser
		if i%2 == 1 {
			role = session.RoleAssistant
		}
		s.History = append(s.History, session.Turn{Role: role, Text: fmt.Sprintf("turn %d", i)})
	}

	f.orch.Converse(context.Background(), s, scopeA(), "and now?")

	contents := f.llm.requests[0]
	if len(contents) != 5 {
		t.Fatalf("expected 4 history turns plus input, got %d", len(contents))
	}
	if contents[0].Parts[0].Text != "turn 26" || contents[1].Role != string(genai.RoleModel) {
		t.Fatalf("unexpected history window: %q role %q", contents[0].Parts[0].Text, contents[1].Role)
	}
	if contents[4].Parts[0].Text != "and now?" {
		t.Fatalf("expected new input last, got %q", contents[4].Parts[0].Text)
	}
	if !strings.Contains(f.llm.systems[0], "RTE-1") {
		t.Fatalf("expected summary in system instruction")
	}
}

func TestSummarizer(t *testing.T) {
	llm := &scriptedLLM{steps: []func(*model.LLMRequest) (*genai.Content, error){say("Asked for route RTE-1 status.")}}
	s := NewSummarizer(llm)

	got, err := s.Summarize(context.Background(), "Earlier: onboarding done.", []session.Turn{{Role: "user", Text: "status of RTE-1?"}})
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if got != "Asked for route RTE-1 status." {
		t.Fatalf("unexpected summary %q", got)
	}
	if !strings.Contains(llm.requests[0][0].Parts[0].Text, "Earlier: onboarding done.") {
		t.Fatalf("expected previous summary in request")
	}

	failing := NewSummarizer(&scriptedLLM{steps: []func(*model.LLMRequest) (*genai.Content, error){
		func(*model.LLMRequest) (*genai.Content, error) { return nil, errors.New("down") },
	}})
	if _, err := failing.Summarize(context.Background(), "", nil); err == nil {
		t.Fatalf("expected error from failing model")
	}
}
