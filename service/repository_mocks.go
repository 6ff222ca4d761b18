package service

import (
	"context"
	"time"

	"surveydraw/events"
	"surveydraw/models"

	"github.com/stretchr/testify/mock"
)

// MockSurveyInstanceRepository is a mock implementation of SurveyInstanceRepository
type MockSurveyInstanceRepository struct {
	mock.Mock
}

func (m *MockSurveyInstanceRepository) GetByID(ctx context.Context, id string) (*models.SurveyInstance, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SurveyInstance), args.Error(1)
}

func (m *MockSurveyInstanceRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.SurveyInstance, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SurveyInstance), args.Error(1)
}

func (m *MockSurveyInstanceRepository) Create(ctx context.Context, survey *models.SurveyInstance) error {
	args := m.Called(ctx, survey)
	return args.Error(0)
}

func (m *MockSurveyInstanceRepository) MarkDrawCompleted(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockSurveyInstanceRepository) ListDueDraws(ctx context.Context, now time.Time) ([]*models.SurveyInstance, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.SurveyInstance), args.Error(1)
}

// MockResponseRepository is a mock implementation of ResponseRepository
type MockResponseRepository struct {
	mock.Mock
}

func (m *MockResponseRepository) Create(ctx context.Context, response *models.Response) error {
	args := m.Called(ctx, response)
	return args.Error(0)
}

func (m *MockResponseRepository) SetAnonymizedRef(ctx context.Context, responseID string, ref string) error {
	args := m.Called(ctx, responseID, ref)
	return args.Error(0)
}

func (m *MockResponseRepository) ListDrawCandidates(ctx context.Context, surveyInstanceID string) ([]*models.DrawCandidate, error) {
	args := m.Called(ctx, surveyInstanceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.DrawCandidate), args.Error(1)
}

func (m *MockResponseRepository) GetByDrawToken(ctx context.Context, surveyInstanceID string, drawToken string) (*models.Response, error) {
	args := m.Called(ctx, surveyInstanceID, drawToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Response), args.Error(1)
}

// MockNotificationPreferenceRepository is a mock implementation of NotificationPreferenceRepository
type MockNotificationPreferenceRepository struct {
	mock.Mock
}

func (m *MockNotificationPreferenceRepository) Create(ctx context.Context, pref *models.NotificationPreference) error {
	args := m.Called(ctx, pref)
	return args.Error(0)
}

func (m *MockNotificationPreferenceRepository) GetByResponseID(ctx context.Context, responseID string) (*models.NotificationPreference, error) {
	args := m.Called(ctx, responseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.NotificationPreference), args.Error(1)
}

// MockDrawRecordRepository is a mock implementation of DrawRecordRepository
type MockDrawRecordRepository struct {
	mock.Mock
}

func (m *MockDrawRecordRepository) Create(ctx context.Context, record *models.DrawRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockDrawRecordRepository) GetByID(ctx context.Context, id int64) (*models.DrawRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DrawRecord), args.Error(1)
}

func (m *MockDrawRecordRepository) GetBySurveyInstanceID(ctx context.Context, surveyInstanceID string) (*models.DrawRecord, error) {
	args := m.Called(ctx, surveyInstanceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DrawRecord), args.Error(1)
}

func (m *MockDrawRecordRepository) UpdateNotification(ctx context.Context, record *models.DrawRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

// MockEventPublisher is a mock implementation of EventPublisher for testing
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) {
	m.Called(event)
}

// MockUnitOfWork is a mock implementation of UnitOfWork
type MockUnitOfWork struct {
	mock.Mock
	surveyRepo     SurveyInstanceRepository
	responseRepo   ResponseRepository
	preferenceRepo NotificationPreferenceRepository
	drawRecordRepo DrawRecordRepository
	eventBus       EventPublisher
}

// SetRepositories wires the repositories returned by the getters
func (m *MockUnitOfWork) SetRepositories(surveys SurveyInstanceRepository, responses ResponseRepository, prefs NotificationPreferenceRepository, draws DrawRecordRepository, bus EventPublisher) {
	m.surveyRepo = surveys
	m.responseRepo = responses
	m.preferenceRepo = prefs
	m.drawRecordRepo = draws
	m.eventBus = bus
}

func (m *MockUnitOfWork) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) SurveyInstanceRepository() SurveyInstanceRepository {
	return m.surveyRepo
}

func (m *MockUnitOfWork) ResponseRepository() ResponseRepository {
	return m.responseRepo
}

func (m *MockUnitOfWork) NotificationPreferenceRepository() NotificationPreferenceRepository {
	return m.preferenceRepo
}

func (m *MockUnitOfWork) DrawRecordRepository() DrawRecordRepository {
	return m.drawRecordRepo
}

func (m *MockUnitOfWork) EventBus() EventPublisher {
	return m.eventBus
}

// MockUnitOfWorkFactory is a mock implementation of UnitOfWorkFactory
type MockUnitOfWorkFactory struct {
	mock.Mock
}

func (m *MockUnitOfWorkFactory) Create() UnitOfWork {
	args := m.Called()
	return args.Get(0).(UnitOfWork)
}

// MockIdentityHasher is a mock implementation of IdentityHasher
type MockIdentityHasher struct {
	mock.Mock
}

func (m *MockIdentityHasher) Hash(participantID string) (string, error) {
	args := m.Called(participantID)
	return args.String(0), args.Error(1)
}

// MockTokenGenerator is a mock implementation of TokenGenerator
type MockTokenGenerator struct {
	mock.Mock
}

func (m *MockTokenGenerator) NewDrawToken() (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}

func (m *MockTokenGenerator) NewSeed() (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}

func (m *MockTokenGenerator) RandomIndex(n int) (int, error) {
	args := m.Called(n)
	return args.Int(0), args.Error(1)
}

func (m *MockTokenGenerator) NewAnonymizedRef() (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}

// MockNotificationDispatcher is a mock implementation of NotificationDispatcher
type MockNotificationDispatcher struct {
	mock.Mock
}

func (m *MockNotificationDispatcher) Notify(ctx context.Context, record *models.DrawRecord, contactAddress string, prizeDescription string) models.NotificationStatus {
	args := m.Called(ctx, record, contactAddress, prizeDescription)
	return args.Get(0).(models.NotificationStatus)
}

// MockNotificationTransport is a mock implementation of NotificationTransport
type MockNotificationTransport struct {
	mock.Mock
}

func (m *MockNotificationTransport) Send(ctx context.Context, msg WinnerNotification) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// MockEventEmitter is a mock implementation of EventEmitter
type MockEventEmitter struct {
	mock.Mock
}

func (m *MockEventEmitter) Emit(ctx context.Context, event events.Event) {
	m.Called(ctx, event)
}

// MockResponseIngestionService is a mock implementation of ResponseIngestionService
type MockResponseIngestionService struct {
	mock.Mock
}

func (m *MockResponseIngestionService) Submit(ctx context.Context, req SubmitRequest) (*models.SubmissionResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SubmissionResult), args.Error(1)
}

// MockDrawService is a mock implementation of DrawService
type MockDrawService struct {
	mock.Mock
}

func (m *MockDrawService) RunDraw(ctx context.Context, surveyInstanceID string) (*models.DrawRecord, error) {
	args := m.Called(ctx, surveyInstanceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DrawRecord), args.Error(1)
}

func (m *MockDrawService) GetDrawRecord(ctx context.Context, surveyInstanceID string) (*models.DrawRecord, error) {
	args := m.Called(ctx, surveyInstanceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DrawRecord), args.Error(1)
}

func (m *MockDrawService) ResendNotification(ctx context.Context, drawID int64) (*models.DrawRecord, error) {
	args := m.Called(ctx, drawID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DrawRecord), args.Error(1)
}

func (m *MockDrawService) ListDueDraws(ctx context.Context) ([]*models.SurveyInstance, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.SurveyInstance), args.Error(1)
}
