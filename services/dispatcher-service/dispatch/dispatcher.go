// Package dispatch turns report notification events into department and
// reporter deliveries.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"civic-reporting-system/pkg/directory"
	"civic-reporting-system/services/report-service/models"
)

type Dispatcher struct {
	directory directory.Directory
	email     EmailSender
	whatsapp  WhatsAppSender
	logger    *zap.Logger
}

func NewDispatcher(dir directory.Directory, email EmailSender, whatsapp WhatsAppSender, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{directory: dir, email: email, whatsapp: whatsapp, logger: logger}
}

// Handle decodes one event and delivers it. It matches queue.Handler; the
// returned error is for logging only, the delivery is acked regardless.
func (d *Dispatcher) Handle(ctx context.Context, routingKey string, body []byte) error {
	var e models.NotificationEvent
	if err := json.Unmarshal(body, &e); err != nil {
		return fmt.Errorf("decode %s: %w", routingKey, err)
	}
	return d.Deliver(ctx, e)
}

// Deliver sends e on every channel its kind uses. Each channel is attempted
// even if an earlier one failed.
func (d *Dispatcher) Deliver(ctx context.Context, e models.NotificationEvent) error {
	log := d.logger.With(
		zap.String("report_id", e.ReportID),
		zap.String("kind", string(e.Kind)),
		zap.String("department", string(e.Department)),
	)

	contacts, err := d.directory.Lookup(ctx, string(e.Department))
	if err != nil {
		log.Warn("directory lookup degraded", zap.Error(err))
	}

	v := newView(e, contacts)
	email, err := renderEmail(e.Kind, v)
	if err != nil {
		return err
	}

	var errs []error

	switch e.Kind {
	case models.NotifyCompletion:
		if e.ReporterEmail == "" {
			log.Info("no reporter email, skipping completion notice")
			return nil
		}
		email.To = []string{e.ReporterEmail}
	case models.NotifyEscalation:
		email.To = contacts.RecipientEmails(true)
		email.CC = contacts.RecipientEmails(false)
	default:
		email.To = contacts.RecipientEmails(false)
	}

	if len(email.To) == 0 {
		log.Warn("no email recipients configured")
	} else if err := d.email.SendEmail(ctx, email); err != nil {
		errs = append(errs, fmt.Errorf("email: %w", err))
	} else {
		log.Info("email sent", zap.Strings("to", email.To))
	}

	text, ok, err := renderWhatsApp(e.Kind, v)
	switch {
	case err != nil:
		errs = append(errs, err)
	case ok:
		to := contacts.RecipientWhatsApp(e.Kind == models.NotifyEscalation)
		if to == "" {
			log.Warn("no whatsapp number configured")
		} else if err := d.whatsapp.SendWhatsApp(ctx, to, text); err != nil {
			errs = append(errs, fmt.Errorf("whatsapp: %w", err))
		} else {
			log.Info("whatsapp sent", zap.String("to", to))
		}
	}

	return errors.Join(errs...)
}
