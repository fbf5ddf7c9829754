package notify

import (
	"context"
	"errors"
	"os"
	"time"

	"alert-service/internal/config"
	"alert-service/internal/logging"
	"alert-service/internal/models"
)

// SMSGateway delivers one text message.
type SMSGateway interface {
	Send(ctx context.Context, toNumber, body string) error
}

// EmailGateway delivers one mail message.
type EmailGateway interface {
	Send(ctx context.Context, to, subject, body string) error
}

// OpsGateway posts to the operations broadcast channel.
type OpsGateway interface {
	Broadcast(ctx context.Context, text string) error
}

// Broadcaster pushes the real-time dashboard event.
type Broadcaster interface {
	PublishNewAlert(alert models.Alert)
}

// Dispatcher fans an alert out to every configured channel concurrently
// and aggregates per channel-target outcomes. A failure on one channel
// never delays or fails the others. The dispatcher owns no storage; it
// only produces reports for the caller to attach to the alert.
type Dispatcher struct {
	sms    SMSGateway
	email  EmailGateway
	ops    OpsGateway
	hub    Broadcaster
	logger *logging.Logger

	attemptTimeout time.Duration
	settleTimeout  time.Duration
}

func New(sms SMSGateway, email EmailGateway, ops OpsGateway, hub Broadcaster, logger *logging.Logger, cfg config.Config) *Dispatcher {
	return &Dispatcher{
		sms:            sms,
		email:          email,
		ops:            ops,
		hub:            hub,
		logger:         logger,
		attemptTimeout: cfg.Notification.AttemptTimeout,
		settleTimeout:  cfg.Notification.SettleTimeout,
	}
}

type attempt struct {
	channel string
	target  string
	run     func(ctx context.Context) error
}

// Dispatch fans the freshly created alert out: one dashboard push, one SMS
// per contact with a phone, one email per contact with an address, and the
// ops channel for critical alerts when configured. The returned report has
// one entry per channel-target pair; attempts that have not settled by the
// bound are left pending.
func (d *Dispatcher) Dispatch(ctx context.Context, alert models.Alert) models.DeliveryReport {
	attempts := []attempt{{
		channel: models.ChannelDashboard,
		target:  "monitors",
		run: func(context.Context) error {
			d.hub.PublishNewAlert(alert)
			return nil
		},
	}}

	for _, contact := range alert.Contacts {
		contact := contact
		if contact.Phone != "" && d.sms != nil {
			attempts = append(attempts, attempt{
				channel: models.ChannelSMS,
				target:  contact.Phone,
				run: func(ctx context.Context) error {
					return d.sms.Send(ctx, contact.Phone, alertSMSBody(alert))
				},
			})
		}
		if contact.Email != "" && d.email != nil {
			attempts = append(attempts, attempt{
				channel: models.ChannelEmail,
				target:  contact.Email,
				run: func(ctx context.Context) error {
					return d.email.Send(ctx, contact.Email, alertEmailSubject(alert), alertEmailBody(alert))
				},
			})
		}
	}

	if d.ops != nil && alert.Priority == models.PriorityCritical {
		attempts = append(attempts, attempt{
			channel: models.ChannelTelegram,
			target:  "ops",
			run: func(ctx context.Context) error {
				return d.ops.Broadcast(ctx, opsBody(alert))
			},
		})
	}

	return d.fanOut(ctx, alert, attempts, models.DeliveryEventAlert)
}

// DispatchResolved notifies only the contacts that were successfully
// reached by the original fan-out, using the resolved template. The
// returned entries are appended to the alert's existing report.
func (d *Dispatcher) DispatchResolved(ctx context.Context, alert models.Alert) models.DeliveryReport {
	var attempts []attempt
	for _, entry := range alert.DeliveryReport {
		entry := entry
		if entry.Event != models.DeliveryEventAlert || entry.Status != models.DeliverySucceeded {
			continue
		}
		switch entry.Channel {
		case models.ChannelSMS:
			if d.sms != nil {
				attempts = append(attempts, attempt{
					channel: models.ChannelSMS,
					target:  entry.Target,
					run: func(ctx context.Context) error {
						return d.sms.Send(ctx, entry.Target, resolvedSMSBody(alert))
					},
				})
			}
		case models.ChannelEmail:
			if d.email != nil {
				attempts = append(attempts, attempt{
					channel: models.ChannelEmail,
					target:  entry.Target,
					run: func(ctx context.Context) error {
						return d.email.Send(ctx, entry.Target, resolvedEmailSubject(alert), resolvedEmailBody(alert))
					},
				})
			}
		}
	}
	if len(attempts) == 0 {
		return nil
	}
	return d.fanOut(ctx, alert, attempts, models.DeliveryEventResolved)
}

type settled struct {
	index int
	entry models.DeliveryEntry
}

// fanOut runs every attempt concurrently, each under its own timeout, and
// collects outcomes until all settle or the overall bound lapses.
func (d *Dispatcher) fanOut(ctx context.Context, alert models.Alert, attempts []attempt, event string) models.DeliveryReport {
	report := make(models.DeliveryReport, len(attempts))
	for i, a := range attempts {
		report[i] = models.DeliveryEntry{
			Channel: a.channel,
			Target:  a.target,
			Event:   event,
			Status:  models.DeliveryPending,
		}
	}

	results := make(chan settled, len(attempts))
	for i, a := range attempts {
		i, a := i, a
		go func() {
			attemptCtx, cancel := context.WithTimeout(ctx, d.attemptTimeout)
			defer cancel()

			entry := report[i]
			err := a.run(attemptCtx)
			now := time.Now()
			switch {
			case err == nil:
				entry.Status = models.DeliverySucceeded
				entry.SentAt = &now
			case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
				entry.Status = models.DeliveryFailed
				entry.Error = "timeout"
			default:
				entry.Status = models.DeliveryFailed
				entry.Error = err.Error()
			}
			results <- settled{index: i, entry: entry}
		}()
	}

	deadline := time.NewTimer(d.settleTimeout)
	defer deadline.Stop()

	for n := 0; n < len(attempts); n++ {
		select {
		case r := <-results:
			report[r.index] = r.entry
			if r.entry.Status == models.DeliveryFailed {
				d.logger.Errorf("Alert %s: %s to %s failed: %s", alert.ID, r.entry.Channel, r.entry.Target, r.entry.Error)
			}
		case <-deadline.C:
			d.logger.Warnf("Alert %s: %d attempts unsettled after %s", alert.ID, len(attempts)-n, d.settleTimeout)
			return report
		}
	}
	return report
}
