package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"surveydraw/service"
)

// winnerEmail is the outbox payload consumed by the external mailer
type winnerEmail struct {
	service.WinnerNotification
	Template  string    `json:"template"`
	QueuedAt  time.Time `json:"queuedAt"`
	MessageID string    `json:"messageId"`
}

// NATSMailTransport hands winner e-mails to the mailer through a JetStream work queue.
// A JetStream ack counts as delivery.
type NATSMailTransport struct {
	publisher OutboxPublisher
	subject   string
	now       func() time.Time
}

// NewNATSMailTransport creates a new mail transport
func NewNATSMailTransport(publisher OutboxPublisher) *NATSMailTransport {
	return &NATSMailTransport{
		publisher: publisher,
		subject:   WinnerEmailSubject,
		now:       time.Now,
	}
}

// Send enqueues the winner e-mail
func (t *NATSMailTransport) Send(ctx context.Context, msg service.WinnerNotification) error {
	queuedAt := t.now().UTC()
	// One id per attempt so a resend is not swallowed by the duplicate window
	msgID := fmt.Sprintf("winner-%d-%d", msg.DrawID, queuedAt.UnixNano())

	data, err := json.Marshal(winnerEmail{
		WinnerNotification: msg,
		Template:           "lottery_winner",
		QueuedAt:           queuedAt,
		MessageID:          msgID,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal winner email: %w", err)
	}

	if err := t.publisher.PublishWithID(ctx, t.subject, msgID, data); err != nil {
		return fmt.Errorf("failed to enqueue winner email: %w", err)
	}

	return nil
}
