// Package notify delivers owner notifications. The core only schedules them; delivery and its
// failures belong here and to the task worker.
package notify

import (
	"context"

	"ledger_system/internal/domain"

	"github.com/sirupsen/logrus"
)

// Notifier sends one notification
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}

// LogNotifier writes notifications to the log instead of sending them. It is used only when no broker
// is configured at all; a configured but unreachable broker goes through AMQPNotifier, which fails
// the publish so the task is retried.
type LogNotifier struct {
	Log logrus.FieldLogger
}

// Notify logs n and always succeeds
func (l LogNotifier) Notify(_ context.Context, n domain.Notification) error {
	log := l.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	log.WithFields(logrus.Fields{
		"recipient_id": n.RecipientID,
		"address":      n.Address,
		"subject":      n.Subject,
		"mode":         "fallback",
	}).Warn("Notification publish skipped")
	return nil
}
