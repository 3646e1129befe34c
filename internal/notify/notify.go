// Package notify delivers notification requests emitted by the ledger core.
// Delivery is best-effort: a failed or skipped notification never fails the
// operation that produced it.
package notify

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"alice/internal/amqp"
	"alice/internal/core"
	"alice/internal/log"
)

// DefaultIcon is attached to notifications that carry no icon.
const DefaultIcon = "/vite.svg"

type Notifier interface {
	Notify(ctx context.Context, n core.Notification) error
}

// Func adapts a function to the Notifier interface.
type Func func(ctx context.Context, n core.Notification) error

func (f Func) Notify(ctx context.Context, n core.Notification) error { return f(ctx, n) }

// Publisher is the subset of the AMQP client used for notifications.
type Publisher interface {
	PublishNotification(ctx context.Context, msg *amqp.NotificationMessage) error
}

// Gate forwards notifications only while permission is granted. A denied
// notification is dropped silently.
type Gate struct {
	granted atomic.Bool
	next    Notifier
	logger  *log.Logger
}

func NewGate(next Notifier, granted bool, logger *log.Logger) *Gate {
	if logger == nil {
		logger = log.Nop()
	}
	g := &Gate{next: next, logger: logger.WithComponent(log.ComponentNotify)}
	g.granted.Store(granted)
	return g
}

func (g *Gate) SetGranted(granted bool) { g.granted.Store(granted) }
func (g *Gate) Granted() bool           { return g.granted.Load() }

func (g *Gate) Notify(ctx context.Context, n core.Notification) error {
	if !g.granted.Load() || g.next == nil {
		g.logger.DebugContext(ctx, "Notification permission not granted, skipping",
			log.FieldNotification, string(n.Kind),
			log.FieldEmail, n.Email)
		return nil
	}
	return g.next.Notify(ctx, n)
}

// LogNotifier writes notifications to the structured log.
type LogNotifier struct {
	logger *log.Logger
}

func NewLogNotifier(logger *log.Logger) *LogNotifier {
	if logger == nil {
		logger = log.Nop()
	}
	return &LogNotifier{logger: logger.WithComponent(log.ComponentNotify)}
}

func (l *LogNotifier) Notify(ctx context.Context, n core.Notification) error {
	l.logger.InfoContext(ctx, n.Title,
		log.FieldNotification, string(n.Kind),
		log.FieldEmail, n.Email,
		"body", n.Body)
	return nil
}

// AMQPNotifier publishes notifications to the broker. A nil publisher makes it
// a no-op.
type AMQPNotifier struct {
	pub    Publisher
	logger *log.Logger
}

func NewAMQPNotifier(pub Publisher, logger *log.Logger) *AMQPNotifier {
	if logger == nil {
		logger = log.Nop()
	}
	return &AMQPNotifier{pub: pub, logger: logger.WithComponent(log.ComponentNotify)}
}

func (a *AMQPNotifier) Notify(ctx context.Context, n core.Notification) error {
	if a.pub == nil {
		a.logger.WarnContext(ctx, "AMQP client not available, skipping notification",
			log.FieldNotification, string(n.Kind))
		return nil
	}
	return a.pub.PublishNotification(ctx, amqp.NewNotificationMessage(n))
}

// Multi fans a notification out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n core.Notification) error {
	var errs []error
	for _, next := range m {
		if next == nil {
			continue
		}
		if err := next.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Deliver sends each notification with its own timeout. Errors are logged and
// never returned. Missing icons and timestamps are filled in.
func Deliver(ctx context.Context, n Notifier, timeout time.Duration, logger *log.Logger, notes ...core.Notification) {
	if n == nil || len(notes) == 0 {
		return
	}
	if logger == nil {
		logger = log.Nop()
	}
	for _, note := range notes {
		if note.Icon == "" {
			note.Icon = DefaultIcon
		}
		if note.CreatedAt.IsZero() {
			note.CreatedAt = time.Now()
		}
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		err := n.Notify(dctx, note)
		cancel()
		if err != nil {
			logger.WarnContext(ctx, "Failed to deliver notification",
				log.FieldComponent, log.ComponentNotify,
				log.FieldNotification, string(note.Kind),
				log.FieldEmail, note.Email,
				log.FieldError, err)
		}
	}
}
