// Package queue carries mail requests over RabbitMQ.
package queue

import "time"

// MailRequestedEvent asks the mail worker to deliver one rendered message.
// Rendering happens before publishing so the worker needs no database.
type MailRequestedEvent struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"` // verification | reset | welcome | promotion
	To          string    `json:"to"`
	Subject     string    `json:"subject"`
	Body        string    `json:"body"`
	RequestedAt time.Time `json:"requested_at"`
}
