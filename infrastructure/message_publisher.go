package infrastructure

import (
	"context"
)

// MessagePublisher carries survey event envelopes onto the bus. The forwarder
// wraps each call in its own timeout.
type MessagePublisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// OutboxPublisher is the winner mail path. JetStream drops a repeated msgID
// inside its duplicate window, so the transport mints one per attempt.
type OutboxPublisher interface {
	PublishWithID(ctx context.Context, subject string, msgID string, data []byte) error
}

// Both are served by the JetStream client
var (
	_ MessagePublisher = (*NATSClient)(nil)
	_ OutboxPublisher  = (*NATSClient)(nil)
)
