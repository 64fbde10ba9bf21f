package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// HandlerFunc delivers one event.  A non-nil error triggers a retry.
type HandlerFunc func(ctx context.Context, ev MailRequestedEvent) error

// Consumer reads the mail queue and hands each event to Handle, retrying with
// exponential backoff up to MaxAttempts before rejecting the message without
// requeue.
type Consumer struct {
	URL         string
	Queue       string
	MaxAttempts int
	Backoff     time.Duration
	Handle      HandlerFunc
	Log         *zap.Logger
	// OnResult, when set, observes each attempt outcome: sent, retry or failed.
	OnResult func(ev MailRequestedEvent, outcome string)
}

// Run consumes until ctx is cancelled, reconnecting with backoff when the
// broker is unreachable or the delivery channel closes.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			c.Log.Warn("mail consumer: dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.Log.Warn("mail consumer: loop ended, reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(10, 0, false); err != nil {
		c.Log.Warn("mail consumer: set QoS failed", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(c.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, c.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := c.process(ctx, d.Body); err != nil {
			c.Log.Error("mail consumer: dropping message", zap.String("id", d.MessageId), zap.Error(err))
			_ = d.Nack(false, false)
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

// process decodes body and runs the handler with bounded retries.
func (c *Consumer) process(ctx context.Context, body []byte) error {
	var ev MailRequestedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	attempts := c.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	wait := c.Backoff
	var err error
	for i := 1; i <= attempts; i++ {
		if err = c.Handle(ctx, ev); err == nil {
			c.observe(ev, "sent")
			return nil
		}
		if i == attempts {
			break
		}
		c.observe(ev, "retry")
		c.Log.Warn("mail consumer: delivery failed, retrying",
			zap.String("id", ev.ID), zap.Int("attempt", i), zap.Duration("retry_in", wait), zap.Error(err))
		if !sleep(ctx, wait) {
			return ctx.Err()
		}
		wait *= 2
	}
	c.observe(ev, "failed")
	return fmt.Errorf("deliver %s after %d attempts: %w", ev.ID, attempts, err)
}

func (c *Consumer) observe(ev MailRequestedEvent, outcome string) {
	if c.OnResult != nil {
		c.OnResult(ev, outcome)
	}
}

// sleep waits d or until ctx is done; it reports whether the full wait elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
