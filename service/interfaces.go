package service

import (
	"context"
	"encoding/json"
	"time"

	"surveydraw/events"
	"surveydraw/models"
)

// SurveyInstanceRepository defines the interface for survey instance data access
type SurveyInstanceRepository interface {
	// GetByID retrieves a survey instance, returning nil when it does not exist
	GetByID(ctx context.Context, id string) (*models.SurveyInstance, error)

	// GetByIDForUpdate retrieves a survey instance and locks its row for the rest of the transaction
	GetByIDForUpdate(ctx context.Context, id string) (*models.SurveyInstance, error)

	// Create inserts a survey instance. Used by the survey-definition collaborator and tests.
	Create(ctx context.Context, survey *models.SurveyInstance) error

	// MarkDrawCompleted performs the conditional draw transition.
	// It reports false when another draw already completed or the prize was removed.
	MarkDrawCompleted(ctx context.Context, id string) (bool, error)

	// ListDueDraws returns lottery instances that stopped accepting responses and still await their draw
	ListDueDraws(ctx context.Context, now time.Time) ([]*models.SurveyInstance, error)
}

// ResponseRepository defines the interface for response data access
type ResponseRepository interface {
	// Create inserts a response. A second lottery entry for the same identity digest
	// on the same instance fails with ErrDuplicateParticipant.
	Create(ctx context.Context, response *models.Response) error

	// SetAnonymizedRef attaches the anonymized reference to a stored response
	SetAnonymizedRef(ctx context.Context, responseID string, ref string) error

	// ListDrawCandidates returns lottery entries of an instance in submission order
	ListDrawCandidates(ctx context.Context, surveyInstanceID string) ([]*models.DrawCandidate, error)

	// GetByDrawToken retrieves the response that holds a draw token within an instance
	GetByDrawToken(ctx context.Context, surveyInstanceID string, drawToken string) (*models.Response, error)
}

// NotificationPreferenceRepository defines the interface for winner contact preferences
type NotificationPreferenceRepository interface {
	// Create stores the opt-in contact for a response
	Create(ctx context.Context, pref *models.NotificationPreference) error

	// GetByResponseID retrieves the preference of a response, nil when none was given
	GetByResponseID(ctx context.Context, responseID string) (*models.NotificationPreference, error)
}

// DrawRecordRepository defines the interface for draw audit records
type DrawRecordRepository interface {
	// Create inserts the draw record. A second record for the same instance fails with ErrAlreadyDrawn.
	Create(ctx context.Context, record *models.DrawRecord) error

	// GetByID retrieves a draw record by its ID
	GetByID(ctx context.Context, id int64) (*models.DrawRecord, error)

	// GetBySurveyInstanceID retrieves the draw record of an instance
	GetBySurveyInstanceID(ctx context.Context, surveyInstanceID string) (*models.DrawRecord, error)

	// UpdateNotification persists the notification outcome fields
	UpdateNotification(ctx context.Context, record *models.DrawRecord) error
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event)
}

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction and flushes pending events
	Commit() error

	// Rollback rolls back the transaction and discards pending events
	Rollback() error

	// Repository getters
	SurveyInstanceRepository() SurveyInstanceRepository
	ResponseRepository() ResponseRepository
	NotificationPreferenceRepository() NotificationPreferenceRepository
	DrawRecordRepository() DrawRecordRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}

// IdentityHasher turns a participant identifier into a keyed one-way digest
type IdentityHasher interface {
	Hash(participantID string) (string, error)
}

// TokenGenerator produces the random values used by ingestion and the draw
type TokenGenerator interface {
	// NewDrawToken returns a token of the form EAP-XXXX-XXXX-XXXX
	NewDrawToken() (string, error)

	// NewSeed returns 32 random bytes hex encoded
	NewSeed() (string, error)

	// RandomIndex returns a uniform integer in [0, n)
	RandomIndex(n int) (int, error)

	// NewAnonymizedRef returns an opaque reference unrelated to any identity
	NewAnonymizedRef() (string, error)
}

// SubmitRequest carries one respondent's submission
type SubmitRequest struct {
	SurveyInstanceID string
	Answers          json.RawMessage
	ParticipantID    *string
	ContactAddress   *string
	ContactConsent   bool
}

// ResponseIngestionService defines the interface for accepting survey responses
type ResponseIngestionService interface {
	// Submit stores a response and, for lottery instances with a participant id, issues a draw token
	Submit(ctx context.Context, req SubmitRequest) (*models.SubmissionResult, error)
}

// DrawService defines the interface for running and inspecting prize draws
type DrawService interface {
	// RunDraw selects the winner of an instance and notifies them when they opted in
	RunDraw(ctx context.Context, surveyInstanceID string) (*models.DrawRecord, error)

	// GetDrawRecord returns the completed draw of an instance
	GetDrawRecord(ctx context.Context, surveyInstanceID string) (*models.DrawRecord, error)

	// ResendNotification makes one new delivery attempt for a failed or stuck notification
	ResendNotification(ctx context.Context, drawID int64) (*models.DrawRecord, error)

	// ListDueDraws returns instances whose draw should run now
	ListDueDraws(ctx context.Context) ([]*models.SurveyInstance, error)
}

// WinnerNotification is the message handed to a transport.
// It carries nothing that links the token to survey answers.
type WinnerNotification struct {
	DrawID           int64  `json:"drawId"`
	SurveyInstanceID string `json:"surveyInstanceId"`
	ContactAddress   string `json:"contactAddress"`
	WinnerToken      string `json:"winnerToken"`
	PrizeDescription string `json:"prizeDescription"`
}

// NotificationTransport delivers a winner notification over one channel
type NotificationTransport interface {
	Send(ctx context.Context, msg WinnerNotification) error
}

// NotificationDispatcher defines the interface for delivering the win notification
type NotificationDispatcher interface {
	// Notify makes one delivery attempt and records the outcome on the draw record
	Notify(ctx context.Context, record *models.DrawRecord, contactAddress string, prizeDescription string) models.NotificationStatus
}
