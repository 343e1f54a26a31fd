package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/regiomarkt/regiomarkt/internal/jobs"
)

// MailSender delivers a rendered message.
type MailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPSender delivers mail over plain SMTP.
type SMTPSender struct {
	addr string
	from string
}

// NewSMTPSender constructs a sender for the given host:port.
func NewSMTPSender(addr, from string) *SMTPSender {
	return &SMTPSender{addr: addr, from: from}
}

// Send delivers a single message.
func (s *SMTPSender) Send(_ context.Context, to, subject, body string) error {
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", s.from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(body)
	return smtp.SendMail(s.addr, nil, s.from, []string{to}, []byte(msg.String()))
}

// NewSendEmailHandler returns the worker-side handler for mail tasks.
func NewSendEmailHandler(sender MailSender, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) (resultErr error) {
		tracker := metrics.Track(TaskTypeSendEmail)
		defer func() {
			resultErr = tracker.End(resultErr)
		}()

		var payload SendEmailPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if err := sender.Send(ctx, payload.To, payload.Subject, payload.Body); err != nil {
			return err
		}
		logger.Info("mail sent", slog.String("to", payload.To), slog.String("subject", payload.Subject))
		return nil
	}
}
