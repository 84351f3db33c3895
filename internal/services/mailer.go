package services

import (
	"context"
	"fmt"
	"time"

	"github.com/skydrive/backend/internal/config"
	mail "github.com/wneessen/go-mail"
)

// Mailer delivers share notifications. Delivery failures are reported
// to the caller but never block the share itself.
type Mailer interface {
	SendShareNotification(ctx context.Context, recipient, linkURL string, expiresAt time.Time) error
}

type SMTPMailer struct {
	cfg     config.SMTPConfig
	timeout time.Duration
}

func NewSMTPMailer(cfg config.SMTPConfig, timeout time.Duration) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, timeout: timeout}
}

func (m *SMTPMailer) SendShareNotification(ctx context.Context, recipient, linkURL string, expiresAt time.Time) error {
	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(recipient); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject("Something was shared with you")
	msg.SetBodyString(mail.TypeTextPlain, fmt.Sprintf(
		"You have been given access to a shared folder or file:\n\n%s\n\nThe link expires on %s.\n",
		linkURL,
		expiresAt.Format(time.RFC1123),
	))

	opts := []mail.Option{mail.WithPort(m.cfg.Port)}
	if m.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.Username),
			mail.WithPassword(m.cfg.Password),
		)
	}

	client, err := mail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	return client.DialAndSendWithContext(ctx, msg)
}
