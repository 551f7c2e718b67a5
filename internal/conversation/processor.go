package conversation

import (
	"context"
	"errors"
	"strings"
	"time"

	"fleetdesk_backend/internal/actions"
	"fleetdesk_backend/internal/flow"
	"fleetdesk_backend/internal/orchestrator"
	"fleetdesk_backend/internal/session"
	"fleetdesk_backend/internal/tenancy"
	"fleetdesk_backend/internal/wizards"
	"fleetdesk_backend/platform/i18n"
	"fleetdesk_backend/platform/logger"
	"fleetdesk_backend/platform/metrics"
)

// Conversant runs a free-text turn through the reasoning loop.
type Conversant interface {
	Converse(ctx context.Context, s *session.Session, sc *actions.Scope, text string) orchestrator.Reply
}

// Processor handles inbound messages end to end.
type Processor struct {
	resolver    *tenancy.Resolver
	sessions    *session.Manager
	flows       *flow.Engine
	assistant   Conversant
	sender      Sender
	transcriber Transcriber
	catalog     *i18n.Catalog
	log         *logger.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
}

// Deps are the Processor collaborators. Assistant and Transcriber may be nil
// when the reasoning service or transcription is not configured.
type Deps struct {
	Resolver    *tenancy.Resolver
	Sessions    *session.Manager
	Flows       *flow.Engine
	Assistant   Conversant
	Sender      Sender
	Transcriber Transcriber
	Catalog     *i18n.Catalog
	Log         *logger.Logger
	Metrics     *metrics.Metrics
}

// NewProcessor creates a processor.
func NewProcessor(d Deps) *Processor {
	return &Processor{
		resolver:    d.Resolver,
		sessions:    d.Sessions,
		flows:       d.Flows,
		assistant:   d.Assistant,
		sender:      d.Sender,
		transcriber: d.Transcriber,
		catalog:     d.Catalog,
		log:         d.Log,
		metrics:     d.Metrics,
		now:         time.Now,
	}
}

// outbound is the reply computed under the session lock and sent after it
// is released.
type outbound struct {
	Text    string
	Options []flow.Option
}

// Handle processes one message. Errors are returned when nothing could be
// sent to the user or when the session lock timed out; the caller decides
// whether to retry.
func (p *Processor) Handle(ctx context.Context, msg Message) error {
	ctx = context.WithValue(ctx, logger.MessageIDKey, msg.ID)
	log := p.log.WithContext(ctx)
	p.metrics.InboundMessage(msg.Type)

	if msg.ID != "" {
		if err := p.sender.MarkRead(ctx, msg.ID); err != nil {
			log.ExternalError("mark_read", err)
		}
	}

	identity := p.resolver.Canonicalize(msg.From)
	if identity.Canonical == "" {
		log.Warn("inbound message without a usable sender address", "type", msg.Type)
		return nil
	}
	log = log.WithAddress(identity.Canonical)

	var reply outbound
	lang := i18n.Default
	err := p.sessions.Update(ctx, identity.Canonical, func(ctx context.Context, s *session.Session) ([]session.Turn, error) {
		if s.Language != "" {
			lang = s.Language
		}
		var turns []session.Turn
		var err error
		reply, turns, err = p.turn(ctx, s, msg)
		return turns, err
	})
	if errors.Is(err, session.ErrLockTimeout) {
		// Another turn for this address still holds the lock. Nothing was
		// read or written, so the caller retries the message later.
		log.Warn("session busy, message deferred", "error", err)
		return err
	}
	if err != nil {
		log.Error("message processing failed", "error", err)
		reply = outbound{Text: p.catalog.T(lang, "apology")}
	}
	if reply.Text == "" {
		return err
	}

	if sendErr := p.send(ctx, identity.Canonical, reply); sendErr != nil {
		log.ExternalError("whatsapp_send", sendErr)
		return errors.Join(err, sendErr)
	}
	return nil
}

// turn computes the reply for one message while the session lock is held.
func (p *Processor) turn(ctx context.Context, s *session.Session, msg Message) (outbound, []session.Turn, error) {
	lang := s.Language
	if lang == "" {
		lang = i18n.Default
	}

	var notice string
	if s.ExpiredFlow != "" {
		notice = p.catalog.T(lang, "session_expired", "flow", strings.ReplaceAll(s.ExpiredFlow, "_", " "))
	}

	text, ok := p.textOf(ctx, msg)
	if !ok {
		key := "unsupported_message"
		if msg.Type == TypeAudio {
			key = "transcription_failed"
		}
		return withNotice(notice, outbound{Text: p.catalog.T(lang, key)}), nil, nil
	}

	res, err := p.resolver.Resolve(ctx, msg.From)
	registered := err == nil
	s.TenantID, s.UserID = res.TenantID, res.UserID

	at := msg.Timestamp
	if at.IsZero() {
		at = p.now()
	}
	env := flow.Env{
		Address:   res.Canonical,
		TenantID:  res.TenantID,
		UserID:    res.UserID,
		MessageID: msg.ID,
		Lang:      lang,
		Now:       at.UTC(),
	}

	cmd := parseCommand(text)
	if cmd.kind == commandLanguage {
		return withNotice(notice, p.setLanguage(s, cmd.arg)), nil, nil
	}

	if s.InFlow() {
		r, err := p.flows.Handle(ctx, env, s, text)
		if err != nil {
			return outbound{}, nil, err
		}
		return withNotice(notice, outbound(r)), nil, nil
	}

	if !registered {
		return p.unregistered(ctx, env, s, cmd, notice)
	}

	switch cmd.kind {
	case commandMenu:
		return withNotice(notice, outbound{Text: p.catalog.T(lang, "menu")}), nil, nil
	case commandCancel:
		return withNotice(notice, outbound{Text: p.catalog.T(lang, "nothing_to_cancel")}), nil, nil
	case commandFlow:
		r, err := p.flows.Start(ctx, env, s, cmd.flow)
		if err != nil {
			return outbound{}, nil, err
		}
		return withNotice(notice, outbound(r)), nil, nil
	}

	if p.assistant == nil {
		return withNotice(notice, outbound{Text: p.catalog.T(lang, "reasoning_disabled")}), nil, nil
	}
	sc := actions.NewScope(res.TenantID, res.UserID, res.Canonical, msg.ID, env.Now)
	answer := p.assistant.Converse(ctx, s, sc, text)
	turns := []session.Turn{
		{Role: session.RoleUser, Text: text, At: env.Now},
		{Role: session.RoleAssistant, Text: answer.Text, At: p.now().UTC()},
	}
	return withNotice(notice, outbound{Text: answer.Text}), turns, nil
}

// unregistered routes a sender without a binding into onboarding or linking.
// No tenant is ever assumed.
func (p *Processor) unregistered(ctx context.Context, env flow.Env, s *session.Session, cmd command, notice string) (outbound, []session.Turn, error) {
	if cmd.kind == commandLink {
		r, err := p.flows.Start(ctx, env, s, wizards.Link)
		if err != nil {
			return outbound{}, nil, err
		}
		return withNotice(notice, outbound(r)), nil, nil
	}
	r, err := p.flows.Start(ctx, env, s, wizards.Onboarding)
	if err != nil {
		return outbound{}, nil, err
	}
	welcome := p.catalog.T(env.Lang, "welcome_unregistered")
	if notice != "" {
		welcome = notice + "\n\n" + welcome
	}
	return withNotice(welcome, outbound(r)), nil, nil
}

func (p *Processor) setLanguage(s *session.Session, arg string) outbound {
	code, ok := p.catalog.Normalize(arg)
	if !ok {
		lang := s.Language
		if lang == "" {
			lang = i18n.Default
		}
		return outbound{Text: p.catalog.T(lang, "language_unknown")}
	}
	s.Language = code
	return outbound{Text: p.catalog.T(code, "language_set")}
}

// textOf extracts the text to process. Voice notes are transcribed; false
// means the message carries nothing this system can act on.
func (p *Processor) textOf(ctx context.Context, msg Message) (string, bool) {
	switch msg.Type {
	case TypeText:
		text := strings.TrimSpace(msg.Text)
		return text, text != ""
	case TypeButton, TypeInteractive:
		if msg.ReplyID != "" {
			return msg.ReplyID, true
		}
		text := strings.TrimSpace(msg.Text)
		return text, text != ""
	case TypeAudio:
		if p.transcriber == nil || msg.MediaID == "" {
			return "", false
		}
		text, err := p.transcriber.Transcribe(ctx, msg.MediaID)
		if err != nil {
			p.log.WithContext(ctx).ExternalError("transcription", err)
			return "", false
		}
		text = strings.TrimSpace(text)
		return text, text != ""
	}
	return "", false
}

func (p *Processor) send(ctx context.Context, to string, r outbound) error {
	if len(r.Options) > 0 {
		return p.sender.SendButtons(ctx, to, r.Text, r.Options)
	}
	return p.sender.SendText(ctx, to, r.Text)
}

func withNotice(notice string, r outbound) outbound {
	if notice != "" {
		r.Text = notice + "\n\n" + r.Text
	}
	return r
}
