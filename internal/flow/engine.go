package flow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"fleetdesk_backend/internal/session"
	"fleetdesk_backend/platform/apperr"
	"fleetdesk_backend/platform/i18n"
	"fleetdesk_backend/platform/logger"
	"fleetdesk_backend/platform/metrics"
	"fleetdesk_backend/platform/validator"

	playground "github.com/go-playground/validator/v10"
)

// Engine drives registered flows against sessions.
type Engine struct {
	flows   map[string]*Definition
	catalog *i18n.Catalog
	log     *logger.Logger
	metrics *metrics.Metrics
}

// NewEngine creates an engine. It panics on an invalid definition.
func NewEngine(catalog *i18n.Catalog, log *logger.Logger, m *metrics.Metrics, defs ...*Definition) *Engine {
	e := &Engine{
		flows:   make(map[string]*Definition, len(defs)),
		catalog: catalog,
		log:     log,
		metrics: m,
	}
	for _, def := range defs {
		if err := e.Register(def); err != nil {
			panic(err)
		}
	}
	return e
}

// Register adds a flow definition.
func (e *Engine) Register(def *Definition) error {
	if err := def.validate(); err != nil {
		return err
	}
	if _, exists := e.flows[def.ID]; exists {
		return fmt.Errorf("flow %s already registered", def.ID)
	}
	e.flows[def.ID] = def
	return nil
}

// Flows returns the registered flow ids.
func (e *Engine) Flows() []string {
	ids := make([]string, 0, len(e.flows))
	for id := range e.flows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Definition returns a registered flow.
func (e *Engine) Definition(id string) (*Definition, bool) {
	def, ok := e.flows[id]
	return def, ok
}

// Start begins flowID on the session, discarding any previous flow.
func (e *Engine) Start(ctx context.Context, env Env, s *session.Session, flowID string) (Reply, error) {
	def, ok := e.flows[flowID]
	if !ok {
		return Reply{}, fmt.Errorf("%w: %s", ErrUnknownFlow, flowID)
	}

	s.ResetFlow()
	s.ActiveFlow = def.ID
	s.Phase = session.PhaseCollecting
	s.StepCursor = def.nextStep(0, s.Fields)
	e.transition(ctx, def, session.PhaseIdle, s)

	if s.StepCursor >= len(def.Steps) {
		return e.confirm(ctx, def, s, env.Lang, ""), nil
	}
	reply := e.prompt(def, s, env.Lang, "")
	if def.Title != "" {
		reply.Text = def.Title + "\n\n" + reply.Text
	}
	return reply, nil
}

// Handle consumes one user turn for the session's active flow.
func (e *Engine) Handle(ctx context.Context, env Env, s *session.Session, input string) (Reply, error) {
	if !s.InFlow() {
		return Reply{}, ErrNoActiveFlow
	}
	def, ok := e.flows[s.ActiveFlow]
	if !ok {
		unknown := s.ActiveFlow
		s.ResetFlow()
		return Reply{}, fmt.Errorf("%w: %s", ErrUnknownFlow, unknown)
	}

	if IsCancel(input) {
		e.log.WithContext(ctx).FlowTransition(def.ID, string(s.Phase), string(session.PhaseIdle), "cancel")
		s.ResetFlow()
		return Reply{Text: e.catalog.T(env.Lang, "flow_cancelled")}, nil
	}

	switch s.Phase {
	case session.PhaseCollecting:
		return e.collect(ctx, env, def, s, input)
	case session.PhaseConfirming:
		return e.decide(ctx, env, def, s, input)
	default:
		// EXECUTING is never persisted; anything else is a stale record.
		s.ResetFlow()
		return Reply{Text: e.catalog.T(env.Lang, "flow_cancelled")}, nil
	}
}

func (e *Engine) collect(ctx context.Context, env Env, def *Definition, s *session.Session, input string) (Reply, error) {
	if s.StepCursor < 0 || s.StepCursor >= len(def.Steps) {
		s.StepCursor = def.nextStep(0, s.Fields)
		if s.StepCursor >= len(def.Steps) {
			return e.confirm(ctx, def, s, env.Lang, ""), nil
		}
	}
	step := def.Steps[s.StepCursor]

	value, err := step.Validate(ctx, env, s.Fields, strings.TrimSpace(input))
	if err != nil {
		return e.reject(def, s, env.Lang, err)
	}

	next := s.Fields.Clone()
	outcome := Outcome{}
	if step.Accept != nil {
		outcome, err = step.Accept(ctx, env, next, value)
		if err != nil {
			return e.reject(def, s, env.Lang, err)
		}
	} else {
		next[step.Key] = value
	}
	if outcome.Abort {
		e.log.WithContext(ctx).FlowTransition(def.ID, string(session.PhaseCollecting), string(session.PhaseIdle), step.Key)
		s.ResetFlow()
		return Reply{Text: outcome.Notice}, nil
	}
	s.Fields = next

	if !outcome.Stay {
		s.StepCursor = def.nextStep(s.StepCursor+1, s.Fields)
	}
	e.log.WithContext(ctx).FlowTransition(def.ID, string(session.PhaseCollecting), string(s.Phase), step.Key)

	if s.StepCursor >= len(def.Steps) {
		return e.confirm(ctx, def, s, env.Lang, outcome.Notice), nil
	}
	return e.prompt(def, s, env.Lang, outcome.Notice), nil
}

// reject re-prompts the current step. Session state is left untouched.
func (e *Engine) reject(def *Definition, s *session.Session, lang string, err error) (Reply, error) {
	var verr *ValidationError
	if !errors.As(err, &verr) {
		return Reply{}, err
	}
	notice := e.catalog.T(lang, "invalid_input", "reason", strings.TrimSuffix(verr.Message, "."))
	return e.prompt(def, s, lang, notice), nil
}

func (e *Engine) decide(ctx context.Context, env Env, def *Definition, s *session.Session, input string) (Reply, error) {
	yes, ok := ParseConfirmation(input)
	if !ok {
		return Reply{
			Text:    e.catalog.T(env.Lang, "confirm_retry"),
			Options: confirmOptions(),
		}, nil
	}
	if !yes {
		e.log.WithContext(ctx).FlowTransition(def.ID, string(session.PhaseConfirming), string(session.PhaseIdle), "declined")
		s.ResetFlow()
		return Reply{Text: e.catalog.T(env.Lang, "flow_cancelled")}, nil
	}

	s.Phase = session.PhaseExecuting
	e.transition(ctx, def, session.PhaseConfirming, s)
	fields := s.Fields.Clone()

	message, err := def.Commit(ctx, env, fields)
	s.ResetFlow()
	e.metrics.FlowCommit(def.ID, err == nil)
	e.log.WithContext(ctx).FlowTransition(def.ID, string(session.PhaseExecuting), string(session.PhaseIdle), "commit")

	if err != nil {
		e.log.WithContext(ctx).Warn("flow commit failed", "flow", def.ID, "error", err)
		return Reply{Text: e.catalog.T(env.Lang, "flow_failed", "reason", UserMessage(err))}, nil
	}
	return Reply{Text: message}, nil
}

func (e *Engine) confirm(ctx context.Context, def *Definition, s *session.Session, lang, notice string) Reply {
	from := s.Phase
	s.Phase = session.PhaseConfirming
	e.transition(ctx, def, from, s)

	parts := make([]string, 0, 3)
	if notice != "" {
		parts = append(parts, notice)
	}
	parts = append(parts, def.Summary(s.Fields, lang), e.catalog.T(lang, "confirm_prompt"))
	return Reply{Text: strings.Join(parts, "\n\n"), Options: confirmOptions()}
}

func (e *Engine) prompt(def *Definition, s *session.Session, lang, notice string) Reply {
	step := def.Steps[s.StepCursor]
	text := step.Prompt(s.Fields, lang)
	if notice != "" {
		text = notice + "\n\n" + text
	}
	reply := Reply{Text: text}
	if step.Options != nil {
		reply.Options = step.Options(s.Fields)
	}
	return reply
}

func (e *Engine) transition(ctx context.Context, def *Definition, from session.Phase, s *session.Session) {
	e.log.WithContext(ctx).FlowTransition(def.ID, string(from), string(s.Phase), def.StepKey(s.StepCursor))
}

func confirmOptions() []Option {
	return []Option{{ID: "yes", Title: "Yes"}, {ID: "no", Title: "No"}}
}

// UserMessage turns a commit or action error into text safe to show a user.
func UserMessage(err error) string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Message
	}
	var fieldErrs playground.ValidationErrors
	if errors.As(err, &fieldErrs) {
		return validator.Describe(err)
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) && appErr.Kind != apperr.KindInternal && appErr.Kind != apperr.KindUnknown {
		return appErr.Message
	}
	return "something went wrong on our side"
}
