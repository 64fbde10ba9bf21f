package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testEvent() MailRequestedEvent {
	return MailRequestedEvent{
		ID: "m-1", Kind: "verification", To: "a@b.c", Subject: "Verify", Body: "code 123456",
		RequestedAt: time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC),
	}
}

func TestNewPublishingIsPersistentJSON(t *testing.T) {
	msg, err := newPublishing(testEvent())
	require.NoError(t, err)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, "m-1", msg.MessageId)
	assert.Equal(t, "verification", msg.Type)

	var back MailRequestedEvent
	require.NoError(t, json.Unmarshal(msg.Body, &back))
	assert.Equal(t, testEvent(), back)
}

func TestProcessRetriesThenSucceeds(t *testing.T) {
	calls := 0
	var outcomes []string
	c := &Consumer{
		MaxAttempts: 3,
		Backoff:     time.Millisecond,
		Log:         zap.NewNop(),
		Handle: func(ctx context.Context, ev MailRequestedEvent) error {
			calls++
			if calls < 3 {
				return errors.New("smtp busy")
			}
			return nil
		},
		OnResult: func(_ MailRequestedEvent, outcome string) { outcomes = append(outcomes, outcome) },
	}
	body, _ := json.Marshal(testEvent())

	require.NoError(t, c.process(context.Background(), body))
	assert.Equal(t, 3, calls)
	assert.Equal(t, []string{"retry", "retry", "sent"}, outcomes)
}

func TestProcessGivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	c := &Consumer{
		MaxAttempts: 2,
		Backoff:     time.Millisecond,
		Log:         zap.NewNop(),
		Handle: func(context.Context, MailRequestedEvent) error {
			calls++
			return errors.New("rejected")
		},
	}
	body, _ := json.Marshal(testEvent())

	err := c.process(context.Background(), body)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
	assert.Equal(t, 2, calls)
}

func TestProcessRejectsGarbage(t *testing.T) {
	c := &Consumer{MaxAttempts: 1, Log: zap.NewNop(), Handle: func(context.Context, MailRequestedEvent) error {
		t.Fatal("handler must not run")
		return nil
	}}
	assert.Error(t, c.process(context.Background(), []byte("{")))
}

func TestProcessStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Consumer{
		MaxAttempts: 5,
		Backoff:     time.Hour,
		Log:         zap.NewNop(),
		Handle: func(context.Context, MailRequestedEvent) error {
			cancel()
			return errors.New("down")
		},
	}
	body, _ := json.Marshal(testEvent())
	assert.ErrorIs(t, c.process(ctx, body), context.Canceled)
}
