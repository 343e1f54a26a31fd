package notify

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"text/template"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/regiomarkt/regiomarkt/jobs"
)

// TaskEnqueuer is satisfied by *asynq.Client.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Service renders notification templates and hands delivery to the
// mail task on the background worker.
type Service struct {
	tasks     TaskEnqueuer
	templates *template.Template
	logger    *slog.Logger
}

// NewService parses the template set and constructs the service.
// currencyCode determines how amounts are rendered in mail bodies.
func NewService(tasks TaskEnqueuer, currencyCode string, logger *slog.Logger) (*Service, error) {
	unit, err := currency.ParseISO(currencyCode)
	if err != nil {
		return nil, fmt.Errorf("notify: unknown currency %q: %w", currencyCode, err)
	}
	printer := message.NewPrinter(language.German)

	root := template.New("notify").Funcs(template.FuncMap{
		"amount": func(v any) string {
			return printer.Sprintf("%v", currency.Symbol(unit.Amount(decimalToFloat(v))))
		},
	})
	for name, body := range templates {
		if _, err := root.New(name).Parse(body); err != nil {
			return nil, fmt.Errorf("notify: parse template %s: %w", name, err)
		}
	}
	return &Service{tasks: tasks, templates: root, logger: logger}, nil
}

func decimalToFloat(v any) float64 {
	switch x := v.(type) {
	case decimal.Decimal:
		f, _ := x.Float64()
		return f
	case float64:
		return x
	case int64:
		return float64(x)
	case int:
		return float64(x)
	default:
		return 0
	}
}

// Notify renders the named template and enqueues one mail per recipient.
func (s *Service) Notify(ctx context.Context, recipients []string, subject, name string, data map[string]any) error {
	tmpl := s.templates.Lookup(name)
	if tmpl == nil {
		return fmt.Errorf("notify: unknown template %q", name)
	}
	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return fmt.Errorf("notify: render %s: %w", name, err)
	}

	for _, to := range recipients {
		task, err := jobs.NewSendEmailTask(jobs.SendEmailPayload{
			To:      to,
			Subject: subject,
			Body:    body.String(),
		})
		if err != nil {
			return err
		}
		if _, err := s.tasks.EnqueueContext(ctx, task, asynq.Queue(jobs.QueueMail)); err != nil {
			return fmt.Errorf("notify: enqueue mail to %s: %w", to, err)
		}
		s.logger.Debug("notification queued",
			slog.String("template", name), slog.String("to", to))
	}
	return nil
}
