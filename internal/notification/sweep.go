// Package notification sends proactive business digests to tenants. A sweep
// walks every organization, skips those notified inside the cool-down window
// and messages the rest with overdue invoices, idle drivers and fleet usage.
package notification

import (
	"context"
	"time"

	"fleetdesk_backend/internal/actions"
	"fleetdesk_backend/platform/config"
	"fleetdesk_backend/platform/logger"
	"fleetdesk_backend/platform/metrics"

	"golang.org/x/sync/errgroup"
)

const defaultCooldown = 6 * time.Hour

// Sender delivers a digest on the messaging channel.
type Sender interface {
	SendText(ctx context.Context, to, body string) error
}

// Result counts what a sweep did per tenant.
type Result struct {
	Sent    int
	Skipped int
	Empty   int
	Failed  int
}

// Notifier runs notification sweeps.
type Notifier struct {
	exec     *actions.Executor
	sender   Sender
	cooldown time.Duration
	log      *logger.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// New creates a notifier.
func New(exec *actions.Executor, sender Sender, cfg config.NotificationConfig, log *logger.Logger, m *metrics.Metrics) *Notifier {
	cooldown := cfg.GetNotificationCooldown()
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}
	return &Notifier{exec: exec, sender: sender, cooldown: cooldown, log: log, metrics: m, now: time.Now}
}

// Sweep notifies every due tenant once. A failure for one tenant does not
// stop the sweep; the error is returned only when tenants cannot be listed.
func (n *Notifier) Sweep(ctx context.Context) (Result, error) {
	var (
		res     Result
		tenants int
	)
	now := n.now()
	err := n.exec.EachOrganization(ctx, func(org actions.Organization) bool {
		if ctx.Err() != nil {
			return false
		}
		tenants++
		outcome := n.notify(ctx, org, now)
		n.metrics.Notification(outcome)
		switch outcome {
		case "sent":
			res.Sent++
		case "skipped":
			res.Skipped++
		case "empty":
			res.Empty++
		default:
			res.Failed++
		}
		return true
	})
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return res, err
	}
	n.log.Info("notification sweep finished",
		"tenants", tenants, "sent", res.Sent, "skipped", res.Skipped, "empty", res.Empty, "failed", res.Failed)
	return res, nil
}

func (n *Notifier) notify(ctx context.Context, org actions.Organization, now time.Time) string {
	log := n.log.WithTenant(org.ID)
	if org.LastNotificationAt != nil && now.Sub(*org.LastNotificationAt) < n.cooldown {
		return "skipped"
	}
	if org.ContactPhone == "" {
		return "empty"
	}

	d, err := n.gather(ctx, org)
	if err != nil {
		log.Warn("notification analyses failed", "error", err)
		return "failed"
	}
	if d.isEmpty() {
		return "empty"
	}

	body, err := compose(d)
	if err != nil {
		log.Error("failed to compose digest", "error", err)
		return "failed"
	}
	if err := n.sender.SendText(ctx, org.ContactPhone, body); err != nil {
		log.ExternalError("whatsapp", err)
		return "failed"
	}
	if err := n.exec.MarkNotified(ctx, org.ID, now); err != nil {
		log.Warn("failed to stamp notification time", "error", err)
	}
	return "sent"
}

// gather runs the read-only analyses concurrently.
func (n *Notifier) gather(ctx context.Context, org actions.Organization) (digest, error) {
	sc := actions.NewScope(org.ID, org.OwnerUserID, org.ContactPhone, "", time.Time{})
	d := digest{Organization: org.Name}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		overdue, err := n.exec.OverdueInvoices(gctx, sc)
		d.Overdue = overdue
		return err
	})
	g.Go(func() error {
		idle, err := n.exec.IdleDrivers(gctx, sc, 0)
		d.IdleDrivers = idle
		return err
	})
	g.Go(func() error {
		u, err := n.exec.FleetUtilization(gctx, sc)
		d.Utilization = u
		return err
	})
	if err := g.Wait(); err != nil {
		return digest{}, err
	}
	return d, nil
}
