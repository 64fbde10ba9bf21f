// Package mail renders and delivers the customer emails: verification, password
// reset, welcome and promotion.
package mail

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/cinema-ebooking/internal/queue"
)

// Kinds of message, used as metric labels and AMQP message types.
const (
	KindVerification = "verification"
	KindReset        = "reset"
	KindWelcome      = "welcome"
	KindPromotion    = "promotion"
)

// Message is one rendered plain-text email.
type Message struct {
	ID      string
	Kind    string
	To      string
	Subject string
	Body    string
}

func newMessage(kind, to, subject, body string) Message {
	return Message{ID: uuid.NewString(), Kind: kind, To: to, Subject: subject, Body: body}
}

// Sender delivers a message synchronously.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

// Event converts the message to its queue payload.
func (m Message) Event(now time.Time) queue.MailRequestedEvent {
	return queue.MailRequestedEvent{ID: m.ID, Kind: m.Kind, To: m.To, Subject: m.Subject, Body: m.Body, RequestedAt: now}
}

// FromEvent is the inverse of Message.Event.
func FromEvent(ev queue.MailRequestedEvent) Message {
	return Message{ID: ev.ID, Kind: ev.Kind, To: ev.To, Subject: ev.Subject, Body: ev.Body}
}
