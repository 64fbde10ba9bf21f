package mail

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/cinema-ebooking/internal/metrics"
	"github.com/iliyamo/cinema-ebooking/internal/queue"
)

// Dispatcher hands a message off for delivery.  Handlers never wait on SMTP
// through a queued dispatcher.
type Dispatcher interface {
	Dispatch(ctx context.Context, m Message) error
}

// EventPublisher is the part of queue.Publisher used here.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.MailRequestedEvent) error
}

// DirectDispatcher sends inline with a bounded timeout.
type DirectDispatcher struct {
	Sender  Sender
	Timeout time.Duration
	Metrics *metrics.Metrics
	Log     *zap.Logger
}

// Dispatch implements Dispatcher.
func (d *DirectDispatcher) Dispatch(ctx context.Context, m Message) error {
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}
	if err := d.Sender.Send(ctx, m); err != nil {
		d.Metrics.Mail(m.Kind, "failed")
		d.Log.Error("email delivery failed", zap.String("id", m.ID), zap.String("kind", m.Kind), zap.Error(err))
		return err
	}
	d.Metrics.Mail(m.Kind, "sent")
	return nil
}

// QueueDispatcher publishes to RabbitMQ.  When publishing fails and Fallback
// is set, the message is sent inline instead.
type QueueDispatcher struct {
	Publisher EventPublisher
	Fallback  Dispatcher
	Metrics   *metrics.Metrics
	Log       *zap.Logger
	Now       func() time.Time
}

// Dispatch implements Dispatcher.
func (d *QueueDispatcher) Dispatch(ctx context.Context, m Message) error {
	now := time.Now().UTC()
	if d.Now != nil {
		now = d.Now()
	}
	err := d.Publisher.Publish(ctx, m.Event(now))
	if err == nil {
		d.Metrics.Mail(m.Kind, "queued")
		return nil
	}
	if d.Fallback == nil {
		d.Metrics.Mail(m.Kind, "failed")
		return err
	}
	d.Log.Warn("mail queue publish failed; sending inline", zap.String("id", m.ID), zap.Error(err))
	return d.Fallback.Dispatch(ctx, m)
}
