package infrastructure

import (
	"fmt"

	"surveydraw/events"
)

// EventSubjectMapper maps domain events to NATS subjects
type EventSubjectMapper struct{}

// NewEventSubjectMapper creates a new event subject mapper
func NewEventSubjectMapper() *EventSubjectMapper {
	return &EventSubjectMapper{}
}

// MapEventToSubject converts a domain event to its corresponding NATS subject
func (m *EventSubjectMapper) MapEventToSubject(event events.Event) string {
	switch event.Type() {
	case events.EventTypeResponseSubmitted:
		return "surveys.response.submitted"
	case events.EventTypeDuplicateRejected:
		return "surveys.response.duplicate_rejected"
	case events.EventTypeDrawCompleted:
		return "surveys.draw.completed"
	case events.EventTypeWinnerNotificationRecorded:
		return "surveys.draw.notification_recorded"
	default:
		return fmt.Sprintf("surveys.unknown.%s", event.Type())
	}
}

// GetAllSubjects returns all subjects that this service publishes events to
func (m *EventSubjectMapper) GetAllSubjects() []string {
	return []string{
		"surveys.response.submitted",
		"surveys.response.duplicate_rejected",
		"surveys.draw.completed",
		"surveys.draw.notification_recorded",
		"surveys.unknown.*",
	}
}
