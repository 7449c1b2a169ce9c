// Package mailer delivers the transactional emails queued on the
// notifications channel. Delivery is best-effort by design: the
// operations that queue mail (registration, account deletion) have
// already succeeded by the time anything here runs.
package mailer

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/taskhub/apiserver/config"
	"go.uber.org/zap"
)

// Mailer sends a single plain-text email.
type Mailer interface {
	Send(ctx context.Context, toEmail, toName, subject, body string) error
}

// SendGridMailer delivers mail through the SendGrid API.
type SendGridMailer struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
}

// NewSendGridMailer constructs a SendGrid-backed mailer from config.
func NewSendGridMailer(cfg config.SendGridConfig) *SendGridMailer {
	return &SendGridMailer{
		client:    sendgrid.NewSendClient(cfg.APIKey),
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
	}
}

func (m *SendGridMailer) Send(ctx context.Context, toEmail, toName, subject, body string) error {
	from := mail.NewEmail(m.fromName, m.fromEmail)
	to := mail.NewEmail(toName, toEmail)
	message := mail.NewSingleEmail(from, subject, to, body, body)

	resp, err := m.client.SendWithContext(ctx, message)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

// LogMailer logs instead of sending. Used when no SendGrid API key is
// configured (local development).
type LogMailer struct {
	log *zap.Logger
}

func NewLogMailer(log *zap.Logger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) Send(ctx context.Context, toEmail, toName, subject, body string) error {
	m.log.Info("email delivery skipped (no mail provider configured)",
		zap.String("to", fmt.Sprintf("%s <%s>", toName, toEmail)),
		zap.String("subject", subject),
	)
	return nil
}
