// Package orchestrator drives the bounded tool-calling loop with the
// reasoning model for free-form turns.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fleetdesk_backend/internal/actions"
	"fleetdesk_backend/internal/session"
	"fleetdesk_backend/internal/tools"
	"fleetdesk_backend/platform/i18n"
	"fleetdesk_backend/platform/logger"
	"fleetdesk_backend/platform/metrics"

	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

const (
	defaultMaxRounds   = 6
	defaultPromptTurns = 12
	temperature        = 0.2
)

var errEmptyResponse = errors.New("reasoning model returned no content")

// Options bounds the loop.
type Options struct {
	// MaxRounds caps model calls per user turn.
	MaxRounds int
	// PromptTurns is how many history turns are sent as contents.
	PromptTurns int
}

// Reply is the outcome of one conversational turn.
type Reply struct {
	Text      string
	Rounds    int
	ToolCalls int
	// Degraded is set when Text is a fallback message.
	Degraded bool
}

// Orchestrator sends a turn to the model, runs requested tools and repeats
// until the model answers in text or the round cap is reached.
type Orchestrator struct {
	llm     model.LLM
	tools   *tools.Catalog
	catalog *i18n.Catalog
	log     *logger.Logger
	metrics *metrics.Metrics
	opts    Options
	now     func() time.Time
}

// New creates an orchestrator.
func New(llm model.LLM, catalog *tools.Catalog, messages *i18n.Catalog, log *logger.Logger, m *metrics.Metrics, opts Options) *Orchestrator {
	if opts.MaxRounds <= 0 {
		opts.MaxRounds = defaultMaxRounds
	}
	if opts.PromptTurns <= 0 {
		opts.PromptTurns = defaultPromptTurns
	}
	return &Orchestrator{
		llm:     llm,
		tools:   catalog,
		catalog: messages,
		log:     log,
		metrics: m,
		opts:    opts,
		now:     time.Now,
	}
}

// Converse answers text given the session's history. The session is read,
// not modified; the caller persists the new turns. Model failures degrade to
// a fixed apology in the session language.
func (o *Orchestrator) Converse(ctx context.Context, s *session.Session, sc *actions.Scope, text string) Reply {
	lang := s.Language
	log := o.log.WithContext(ctx)

	req := &model.LLMRequest{
		Model:    o.llm.Name(),
		Contents: o.contents(s, text),
		Config: &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{
				Role:  string(genai.RoleUser),
				Parts: []*genai.Part{{Text: systemPrompt(lang, s.Summary, o.now())}},
			},
			Tools:       []*genai.Tool{{FunctionDeclarations: o.tools.Declarations()}},
			Temperature: float32Ptr(temperature),
		},
	}

	reply := Reply{}
	for round := 1; round <= o.opts.MaxRounds; round++ {
		reply.Rounds = round
		content, err := o.generate(ctx, req)
		if err != nil {
			log.ExternalError("reasoning", err)
			o.metrics.ReasoningFailure("error")
			o.metrics.ReasoningRounds(round)
			return o.degraded(reply, lang, "apology")
		}

		calls := functionCalls(content)
		if len(calls) == 0 {
			o.metrics.ReasoningRounds(round)
			answer := textOf(content)
			if answer == "" {
				log.ExternalError("reasoning", errEmptyResponse)
				o.metrics.ReasoningFailure("empty")
				return o.degraded(reply, lang, "apology")
			}
			reply.Text = answer
			return reply
		}

		req.Contents = append(req.Contents, content)
		responses := make([]*genai.Part, 0, len(calls))
		for i, call := range calls {
			if call.ID == "" {
				call.ID = fmt.Sprintf("call_%d_%d", round, i+1)
			}
			responses = append(responses, o.runTool(ctx, sc, call, round))
			reply.ToolCalls++
		}
		req.Contents = append(req.Contents, &genai.Content{Role: string(genai.RoleUser), Parts: responses})
	}

	log.Warn("reasoning round limit reached", "rounds", o.opts.MaxRounds, "tool_calls", reply.ToolCalls)
	o.metrics.ReasoningFailure("round_limit")
	o.metrics.ReasoningRounds(o.opts.MaxRounds)
	return o.degraded(reply, lang, "round_limit")
}

func (o *Orchestrator) degraded(r Reply, lang, key string) Reply {
	r.Text = o.catalog.T(lang, key)
	r.Degraded = true
	return r
}

// runTool executes one call. The response carries the originating call id.
func (o *Orchestrator) runTool(ctx context.Context, sc *actions.Scope, call *genai.FunctionCall, round int) *genai.Part {
	start := time.Now()
	payload, ok := o.tools.Execute(ctx, sc, call.Name, call.Args)
	o.log.WithContext(ctx).ToolCall(call.Name, round, ok, time.Since(start))
	o.metrics.ToolCall(call.Name, ok)
	return &genai.Part{FunctionResponse: &genai.FunctionResponse{
		ID:       call.ID,
		Name:     call.Name,
		Response: payload,
	}}
}

func (o *Orchestrator) generate(ctx context.Context, req *model.LLMRequest) (*genai.Content, error) {
	var last *genai.Content
	for resp, err := range o.llm.GenerateContent(ctx, req, false) {
		if err != nil {
			return nil, err
		}
		if resp != nil && resp.Content != nil {
			last = resp.Content
		}
	}
	if last == nil {
		return nil, errEmptyResponse
	}
	return last, nil
}

// contents maps recent history plus the new input to model contents.
func (o *Orchestrator) contents(s *session.Session, text string) []*genai.Content {
	turns := s.RecentTurns(o.opts.PromptTurns)
	out := make([]*genai.Content, 0, len(turns)+1)
	for _, t := range turns {
		role := string(genai.RoleUser)
		if t.Role == session.RoleAssistant {
			role = string(genai.RoleModel)
		}
		out = append(out, &genai.Content{Role: role, Parts: []*genai.Part{{Text: t.Text}}})
	}
	return append(out, &genai.Content{Role: string(genai.RoleUser), Parts: []*genai.Part{{Text: text}}})
}

func functionCalls(c *genai.Content) []*genai.FunctionCall {
	var calls []*genai.FunctionCall
	for _, p := range c.Parts {
		if p != nil && p.FunctionCall != nil {
			calls = append(calls, p.FunctionCall)
		}
	}
	return calls
}

func textOf(c *genai.Content) string {
	var parts []string
	for _, p := range c.Parts {
		if p != nil && !p.Thought && strings.TrimSpace(p.Text) != "" {
			parts = append(parts, strings.TrimSpace(p.Text))
		}
	}
	return strings.Join(parts, "\n")
}

func float32Ptr(v float32) *float32 { return &v }
