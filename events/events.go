package events

import (
	"context"
	"sync"

	"surveydraw/models"

	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeResponseSubmitted          EventType = "response_submitted"
	EventTypeDuplicateRejected          EventType = "duplicate_rejected"
	EventTypeDrawCompleted              EventType = "draw_completed"
	EventTypeWinnerNotificationRecorded EventType = "winner_notification_recorded"
)

// AllEventTypes lists every event type published by the services
func AllEventTypes() []EventType {
	return []EventType{
		EventTypeResponseSubmitted,
		EventTypeDuplicateRejected,
		EventTypeDrawCompleted,
		EventTypeWinnerNotificationRecorded,
	}
}

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// ResponseSubmittedEvent is emitted once a response row is committed.
// It never carries identity material or answers.
type ResponseSubmittedEvent struct {
	SurveyInstanceID string `json:"surveyInstanceId"`
	ResponseID       string `json:"responseId"`
	HasLottery       bool   `json:"hasLottery"`
}

func (e ResponseSubmittedEvent) Type() EventType {
	return EventTypeResponseSubmitted
}

// DuplicateRejectedEvent is emitted when the store rejects a second entry for a participant
type DuplicateRejectedEvent struct {
	SurveyInstanceID string `json:"surveyInstanceId"`
}

func (e DuplicateRejectedEvent) Type() EventType {
	return EventTypeDuplicateRejected
}

// DrawCompletedEvent is emitted after the draw transition commits
type DrawCompletedEvent struct {
	DrawID           int64  `json:"drawId"`
	SurveyInstanceID string `json:"surveyInstanceId"`
	CandidateCount   int    `json:"candidateCount"`
}

func (e DrawCompletedEvent) Type() EventType {
	return EventTypeDrawCompleted
}

// WinnerNotificationRecordedEvent is emitted each time a notification outcome is stored
type WinnerNotificationRecordedEvent struct {
	DrawID           int64                     `json:"drawId"`
	SurveyInstanceID string                    `json:"surveyInstanceId"`
	Status           models.NotificationStatus `json:"status"`
	Attempts         int                       `json:"attempts"`
}

func (e WinnerNotificationRecordedEvent) Type() EventType {
	return EventTypeWinnerNotificationRecorded
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"event_type":    eventType,
		"handler_count": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// SubscribeAll adds a handler for every known event type
func (b *Bus) SubscribeAll(handler Handler) {
	for _, eventType := range AllEventTypes() {
		b.Subscribe(eventType, handler)
	}
}

// Emit publishes an event to all registered handlers
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	log.WithFields(log.Fields{
		"event_type":    event.Type(),
		"handler_count": len(handlers),
	}).Debug("Emitting event to handlers")

	// Handlers run asynchronously so a slow subscriber never blocks a request
	for i, handler := range handlers {
		go func(h Handler, handlerIndex int) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"event_type":    event.Type(),
						"handler_index": handlerIndex,
						"panic":         r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// TransactionalBus holds pending events coupled to a unit of work and
// flushes them to the underlying bus after commit.
type TransactionalBus struct {
	real    *Bus
	pending []Event
}

func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

// Publish stashes the event until Flush
func (b *TransactionalBus) Publish(e Event) {
	log.WithFields(log.Fields{
		"event_type":    e.Type(),
		"pending_count": len(b.pending),
	}).Debug("Adding event to transactional bus pending queue")
	b.pending = append(b.pending, e)
}

// Flush is called after a successful DB commit
func (b *TransactionalBus) Flush(ctx context.Context) error {
	// Handlers outlive the request, so they must not inherit its deadline
	eventCtx := context.Background()

	for _, ev := range b.pending {
		b.real.Emit(eventCtx, ev)
	}
	b.pending = nil
	return nil
}

// Discard is called after a rollback
func (b *TransactionalBus) Discard() {
	b.pending = nil
}

// Pending returns the number of events waiting for Flush
func (b *TransactionalBus) Pending() int {
	return len(b.pending)
}
