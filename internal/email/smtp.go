// Package email delivers transactional email. Account link codes are the
// only mail this system sends.
package email

import (
	"context"
	"fmt"
	"net"
	"time"

	"fleetdesk_backend/platform/config"
	"fleetdesk_backend/platform/logger"

	gomail "github.com/wneessen/go-mail"
)

const linkCodeExpiry = "10 minutes"

// Sender delivers link codes. It satisfies the wizards' code sender.
type Sender interface {
	SendLinkCode(ctx context.Context, toEmail, code string) error
}

// LogSender logs instead of sending. Used in development when SMTP is not
// configured.
type LogSender struct {
	Log *logger.Logger
}

func (s LogSender) SendLinkCode(_ context.Context, toEmail, code string) error {
	s.Log.Info("link code email suppressed", "to", toEmail, "code", code)
	return nil
}

// SMTPSender implements Sender over SMTP via go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

// NewSMTPSender creates an SMTPSender from the email settings.
func NewSMTPSender(cfg config.EmailConfig) *SMTPSender {
	return &SMTPSender{
		host:      cfg.GetSMTPHost(),
		port:      cfg.GetSMTPPort(),
		username:  cfg.GetSMTPUsername(),
		password:  cfg.GetSMTPPassword(),
		fromName:  cfg.GetEmailFromName(),
		fromEmail: cfg.GetEmailFromAddress(),
	}
}

// NewSender returns an SMTP sender when email is configured and a logging
// sender otherwise.
func NewSender(cfg config.EmailConfig, log *logger.Logger) Sender {
	if cfg.IsEmailEnabled() {
		return NewSMTPSender(cfg)
	}
	return LogSender{Log: log}
}

func (s *SMTPSender) message(toEmail, subject, htmlContent string) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return nil, fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return nil, fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)
	return msg, nil
}

func (s *SMTPSender) send(ctx context.Context, msg *gomail.Msg) error {
	opts := []gomail.Option{
		gomail.WithPort(s.port),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15 * time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	}
	if s.username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.username),
			gomail.WithPassword(s.password),
		)
	}

	client, err := gomail.NewClient(s.host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// SendLinkCode emails a one-time account link code.
func (s *SMTPSender) SendLinkCode(ctx context.Context, toEmail, code string) error {
	content, err := renderLinkCode(code)
	if err != nil {
		return err
	}
	msg, err := s.message(toEmail, subjectLinkCode, content)
	if err != nil {
		return err
	}
	return s.send(ctx, msg)
}
