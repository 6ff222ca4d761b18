package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"surveydraw/events"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const sourceService = "surveydraw"

// EventEnvelope wraps every domain event published to NATS
type EventEnvelope struct {
	EventID       string          `json:"eventId"`
	EventType     string          `json:"eventType"`
	Timestamp     time.Time       `json:"timestamp"`
	SourceService string          `json:"sourceService"`
	Payload       json.RawMessage `json:"payload"`
}

// NATSEventForwarder republishes committed domain events to NATS
type NATSEventForwarder struct {
	publisher     MessagePublisher
	subjectMapper *EventSubjectMapper
	timeout       time.Duration
}

// NewNATSEventForwarder creates a new forwarder
func NewNATSEventForwarder(publisher MessagePublisher, subjectMapper *EventSubjectMapper) *NATSEventForwarder {
	return &NATSEventForwarder{
		publisher:     publisher,
		subjectMapper: subjectMapper,
		timeout:       5 * time.Second,
	}
}

// Register subscribes the forwarder to every event on the bus
func (f *NATSEventForwarder) Register(bus *events.Bus) {
	bus.SubscribeAll(func(ctx context.Context, event events.Event) {
		if err := f.Forward(ctx, event); err != nil {
			log.WithFields(log.Fields{
				"event_type": event.Type(),
			}).WithError(err).Error("Failed to forward event to NATS")
		}
	})
}

// Forward wraps the event in an envelope and publishes it
func (f *NATSEventForwarder) Forward(ctx context.Context, event events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	envelope := EventEnvelope{
		EventID:       uuid.New().String(),
		EventType:     string(event.Type()),
		Timestamp:     time.Now().UTC(),
		SourceService: sourceService,
		Payload:       payload,
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal event envelope: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	subject := f.subjectMapper.MapEventToSubject(event)
	if err := f.publisher.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish event to NATS: %w", err)
	}

	log.WithFields(log.Fields{
		"event_type": event.Type(),
		"event_id":   envelope.EventID,
		"subject":    subject,
	}).Debug("Forwarded event to NATS")

	return nil
}
