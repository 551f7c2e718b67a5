// Package bootstrap wires the services shared by the API and scheduler
// binaries. Optional collaborators are left out when their configuration is
// missing: no DATABASE_URL means an in-memory document store, no REDIS_URL
// means in-process locks and deduplication.
package bootstrap

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"fleetdesk_backend/internal/actions"
	"fleetdesk_backend/internal/bankverify"
	"fleetdesk_backend/internal/conversation"
	"fleetdesk_backend/internal/docstore"
	"fleetdesk_backend/internal/email"
	"fleetdesk_backend/internal/flow"
	"fleetdesk_backend/internal/notification"
	"fleetdesk_backend/internal/orchestrator"
	"fleetdesk_backend/internal/session"
	"fleetdesk_backend/internal/tenancy"
	"fleetdesk_backend/internal/tools"
	"fleetdesk_backend/internal/transcribe"
	"fleetdesk_backend/internal/whatsapp"
	"fleetdesk_backend/internal/wizards"
	"fleetdesk_backend/platform/ai/moonshot"
	"fleetdesk_backend/platform/config"
	"fleetdesk_backend/platform/db"
	"fleetdesk_backend/platform/i18n"
	"fleetdesk_backend/platform/logger"
	"fleetdesk_backend/platform/metrics"
	"fleetdesk_backend/platform/phone"
	"fleetdesk_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const (
	lockPrefix       = "fleetdesk:lock:session:"
	modelMaxRetries  = 2
	connectAttempts  = 5
	connectBaseDelay = 2 * time.Second
)

// Services are the wired application components.
type Services struct {
	Pool      *pgxpool.Pool
	Redis     *redis.Client
	Store     docstore.Store
	Metrics   *metrics.Metrics
	Resolver  *tenancy.Resolver
	Sessions  *session.Manager
	Executor  *actions.Executor
	Processor *conversation.Processor
	Notifier  *notification.Notifier
	WhatsApp  *whatsapp.Client

	closers []func()
}

// Close releases connections in reverse order of creation.
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// Build connects to the configured backends and wires the services.
func Build(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Services, error) {
	s := &Services{Metrics: metrics.New()}

	if err := s.openStore(ctx, cfg, log); err != nil {
		s.Close()
		return nil, err
	}
	locker, err := s.openLocker(ctx, cfg, log)
	if err != nil {
		s.Close()
		return nil, err
	}

	val := validator.New()
	messages := i18n.Load()

	var bank actions.BankVerifier
	if b := bankverify.New(cfg); b != nil {
		bank = b
	} else {
		log.Warn("BANK_VERIFY_URL not configured; bank account verification disabled")
	}
	s.Executor = actions.NewExecutor(s.Store, bank, val, log)
	s.Resolver = tenancy.NewResolver(s.Store, phone.NewCanonicalizer(cfg.GetPhoneDefaultRegion(), cfg.GetPhoneCountryCode()), log)

	s.WhatsApp = whatsapp.NewClient(cfg, log)
	if s.WhatsApp == nil {
		log.Warn("WhatsApp credentials not configured; outbound messages are dropped")
	}

	var (
		assistant conversation.Conversant
		opts      []session.Option
	)
	if cfg.IsReasoningEnabled() {
		llm := moonshot.New(moonshot.Config{
			APIKey:     cfg.GetMoonshotAPIKey(),
			Model:      cfg.GetMoonshotModel(),
			MaxRetries: modelMaxRetries,
		})
		catalog := tools.NewCatalog(s.Executor, val, log)
		assistant = orchestrator.New(llm, catalog, messages, log, s.Metrics, orchestrator.Options{
			MaxRounds:   cfg.GetReasoningMaxRounds(),
			PromptTurns: cfg.GetSessionPromptTurns(),
		})
		opts = append(opts, session.WithSummarizer(orchestrator.NewSummarizer(llm)))
	} else {
		log.Warn("MOONSHOT_API_KEY not configured; free-text requests are answered with a notice")
	}
	s.Sessions = session.NewManager(session.NewDocStore(s.Store), locker, cfg, log, opts...)

	var transcriber conversation.Transcriber
	if t := transcribe.New(cfg, s.WhatsApp); t != nil {
		transcriber = t
	}

	engine := flow.NewEngine(messages, log, s.Metrics, wizards.All(wizards.Deps{
		Exec:     s.Executor,
		Resolver: s.Resolver,
		Codes:    email.NewSender(cfg, log),
		Val:      val,
		Log:      log,
	})...)

	s.Processor = conversation.NewProcessor(conversation.Deps{
		Resolver:    s.Resolver,
		Sessions:    s.Sessions,
		Flows:       engine,
		Assistant:   assistant,
		Sender:      s.WhatsApp,
		Transcriber: transcriber,
		Catalog:     messages,
		Log:         log,
		Metrics:     s.Metrics,
	})
	s.Notifier = notification.New(s.Executor, s.WhatsApp, cfg, log, s.Metrics)
	return s, nil
}

func (s *Services) openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	if cfg.GetDatabaseURL() == "" {
		log.Warn("DATABASE_URL not configured; using the in-memory document store")
		s.Store = docstore.NewMemory()
		return nil
	}

	err := WithRetry(ctx, log, "database connection", connectAttempts, connectBaseDelay, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		s.Pool = p
		return nil
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	s.closers = append(s.closers, s.Pool.Close)

	applied, err := db.RunMigrations(ctx, s.Pool)
	if err != nil {
		return err
	}
	log.Info("database migrations applied", "count", applied)
	s.Store = docstore.NewPostgres(s.Pool)
	return nil
}

func (s *Services) openLocker(ctx context.Context, cfg *config.Config, log *logger.Logger) (session.Locker, error) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; session locks are local to this process")
		return session.NewLocalLocker(), nil
	}

	client, err := NewRedisClient(cfg)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, func() { _ = client.Close() })
	if err := WithRetry(ctx, log, "redis connection", connectAttempts, connectBaseDelay, func() error {
		return client.Ping(ctx).Err()
	}); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	s.Redis = client
	return session.NewRedisLocker(client, lockPrefix), nil
}

// NewRedisClient parses REDIS_URL into a client.
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.GetRedisTLSInsecure() {
		if opt.TLSConfig == nil {
			opt.TLSConfig = &tls.Config{}
		}
		opt.TLSConfig.InsecureSkipVerify = true
	}
	return redis.NewClient(opt), nil
}

// WithRetry runs fn up to attempts times with quadratic backoff.
func WithRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
