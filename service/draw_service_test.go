package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"surveydraw/events"
	"surveydraw/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type drawMocks struct {
	factory    *MockUnitOfWorkFactory
	uow        *MockUnitOfWork
	surveys    *MockSurveyInstanceRepository
	responses  *MockResponseRepository
	prefs      *MockNotificationPreferenceRepository
	draws      *MockDrawRecordRepository
	bus        *MockEventPublisher
	tokens     *MockTokenGenerator
	dispatcher *MockNotificationDispatcher
}

func setupDraw(t *testing.T) (*drawService, *drawMocks) {
	t.Helper()

	m := &drawMocks{
		factory:    new(MockUnitOfWorkFactory),
		uow:        new(MockUnitOfWork),
		surveys:    new(MockSurveyInstanceRepository),
		responses:  new(MockResponseRepository),
		prefs:      new(MockNotificationPreferenceRepository),
		draws:      new(MockDrawRecordRepository),
		bus:        new(MockEventPublisher),
		tokens:     new(MockTokenGenerator),
		dispatcher: new(MockNotificationDispatcher),
	}
	m.uow.SetRepositories(m.surveys, m.responses, m.prefs, m.draws, m.bus)

	m.factory.On("Create").Return(m.uow).Maybe()
	m.uow.On("Begin", mock.Anything).Return(nil).Maybe()
	m.uow.On("Rollback").Return(nil).Maybe()

	svc := NewDrawService(m.factory, m.tokens, m.dispatcher, time.Second).(*drawService)
	svc.now = func() time.Time { return fixedNow }

	return svc, m
}

func threeCandidates() []*models.DrawCandidate {
	return []*models.DrawCandidate{
		{ResponseID: "r1", DrawToken: "EAP-AAAA-AAAA-AAAA"},
		{ResponseID: "r2", DrawToken: "EAP-BBBB-BBBB-BBBB"},
		{ResponseID: "r3", DrawToken: "EAP-CCCC-CCCC-CCCC"},
	}
}

// expectSuccessfulTransition wires everything up to and including the draw commit
func (m *drawMocks) expectSuccessfulTransition(surveyID string, winnerIdx int) {
	m.responses.On("ListDrawCandidates", mock.Anything, surveyID).Return(threeCandidates(), nil)
	m.tokens.On("NewSeed").Return("ab12", nil)
	m.tokens.On("RandomIndex", 3).Return(winnerIdx, nil)
	m.surveys.On("MarkDrawCompleted", mock.Anything, surveyID).Return(true, nil)
	m.draws.On("Create", mock.Anything, mock.AnythingOfType("*models.DrawRecord")).Return(nil).Run(func(args mock.Arguments) {
		record := args.Get(1).(*models.DrawRecord)
		record.ID = 99
		record.Timestamp = fixedNow
	})
	m.bus.On("Publish", mock.MatchedBy(func(e events.DrawCompletedEvent) bool {
		return e.DrawID == 99 && e.CandidateCount == 3
	})).Return()
	m.uow.On("Commit").Return(nil)
}

func TestDrawService_RunDraw_Preconditions(t *testing.T) {
	completed := lotterySurvey("S1")
	completed.DrawStatus = models.DrawStatusCompleted

	tests := []struct {
		name    string
		survey  *models.SurveyInstance
		wantErr error
	}{
		{name: "unknown survey", survey: nil, wantErr: ErrNotFound},
		{name: "already drawn", survey: completed, wantErr: ErrAlreadyDrawn},
		{name: "no prize", survey: plainSurvey("S1"), wantErr: ErrNoPrizeConfigured},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := setupDraw(t)

			if tt.survey == nil {
				m.surveys.On("GetByIDForUpdate", mock.Anything, "S1").Return(nil, nil)
			} else {
				m.surveys.On("GetByIDForUpdate", mock.Anything, "S1").Return(tt.survey, nil)
			}

			record, err := svc.RunDraw(context.Background(), "S1")

			assert.Nil(t, record)
			assert.ErrorIs(t, err, tt.wantErr)
			m.responses.AssertNotCalled(t, "ListDrawCandidates", mock.Anything, mock.Anything)
			m.surveys.AssertNotCalled(t, "MarkDrawCompleted", mock.Anything, mock.Anything)
		})
	}
}

func TestDrawService_RunDraw_NoEligibleCandidates(t *testing.T) {
	svc, m := setupDraw(t)

	m.surveys.On("GetByIDForUpdate", mock.Anything, "S1").Return(lotterySurvey("S1"), nil)
	m.responses.On("ListDrawCandidates", mock.Anything, "S1").Return([]*models.DrawCandidate{}, nil)

	_, err := svc.RunDraw(context.Background(), "S1")

	assert.ErrorIs(t, err, ErrNoEligibleCandidates)
	m.surveys.AssertNotCalled(t, "MarkDrawCompleted", mock.Anything, mock.Anything)
	m.uow.AssertNotCalled(t, "Commit")
}

func TestDrawService_RunDraw_WinnerWithoutPreference(t *testing.T) {
	svc, m := setupDraw(t)

	m.surveys.On("GetByIDForUpdate", mock.Anything, "S1").Return(lotterySurvey("S1"), nil)
	m.expectSuccessfulTransition("S1", 1)
	m.prefs.On("GetByResponseID", mock.Anything, "r2").Return(nil, nil)

	record, err := svc.RunDraw(context.Background(), "S1")

	require.NoError(t, err)
	assert.Equal(t, int64(99), record.ID)
	assert.Equal(t, "EAP-BBBB-BBBB-BBBB", record.WinnerToken)
	assert.Equal(t, 3, record.CandidateCount)
	assert.Equal(t, "ab12", record.Seed)
	assert.Equal(t, models.NotificationStatusNotApplicable, record.NotificationStatus)

	m.dispatcher.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	m.draws.AssertNotCalled(t, "UpdateNotification", mock.Anything, mock.Anything)
	m.bus.AssertExpectations(t)
}

func TestDrawService_RunDraw_NotifiesWinner(t *testing.T) {
	tests := []struct {
		name       string
		outcome    func(record *models.DrawRecord)
		wantStatus models.NotificationStatus
	}{
		{
			name:       "delivery succeeds",
			outcome:    func(record *models.DrawRecord) { record.MarkSent(fixedNow) },
			wantStatus: models.NotificationStatusSent,
		},
		{
			name:       "delivery fails but draw stands",
			outcome:    func(record *models.DrawRecord) { record.MarkFailed("mailbox unavailable") },
			wantStatus: models.NotificationStatusFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := setupDraw(t)

			m.surveys.On("GetByIDForUpdate", mock.Anything, "S1").Return(lotterySurvey("S1"), nil)
			m.expectSuccessfulTransition("S1", 0)
			m.prefs.On("GetByResponseID", mock.Anything, "r1").Return(&models.NotificationPreference{
				ResponseID:     "r1",
				ContactAddress: "winner@example.com",
			}, nil)
			m.dispatcher.On("Notify", mock.Anything, mock.MatchedBy(func(r *models.DrawRecord) bool {
				return r.NotificationStatus == models.NotificationStatusPending && r.ID == 99
			}), "winner@example.com", "Coffee voucher").
				Return(tt.wantStatus).
				Run(func(args mock.Arguments) {
					tt.outcome(args.Get(1).(*models.DrawRecord))
				})
			m.draws.On("UpdateNotification", mock.Anything, mock.MatchedBy(func(r *models.DrawRecord) bool {
				return r.NotificationStatus == tt.wantStatus && r.NotificationAttempts == 1
			})).Return(nil)
			m.bus.On("Publish", mock.MatchedBy(func(e events.WinnerNotificationRecordedEvent) bool {
				return e.Status == tt.wantStatus
			})).Return()

			record, err := svc.RunDraw(context.Background(), "S1")

			require.NoError(t, err)
			assert.Equal(t, "EAP-AAAA-AAAA-AAAA", record.WinnerToken)
			assert.Equal(t, tt.wantStatus, record.NotificationStatus)
			m.dispatcher.AssertExpectations(t)
			m.draws.AssertExpectations(t)
		})
	}
}

func TestDrawService_RunDraw_LostTransition(t *testing.T) {
	svc, m := setupDraw(t)

	m.surveys.On("GetByIDForUpdate", mock.Anything, "S1").Return(lotterySurvey("S1"), nil)
	m.responses.On("ListDrawCandidates", mock.Anything, "S1").Return(threeCandidates(), nil)
	m.tokens.On("NewSeed").Return("ab12", nil)
	m.tokens.On("RandomIndex", 3).Return(2, nil)
	m.surveys.On("MarkDrawCompleted", mock.Anything, "S1").Return(false, nil)

	record, err := svc.RunDraw(context.Background(), "S1")

	assert.Nil(t, record)
	assert.ErrorIs(t, err, ErrAlreadyDrawn)
	m.draws.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	m.uow.AssertNotCalled(t, "Commit")
	m.uow.AssertCalled(t, "Rollback")
}

func TestDrawService_RunDraw_DuplicateRecordMapsToAlreadyDrawn(t *testing.T) {
	svc, m := setupDraw(t)

	m.surveys.On("GetByIDForUpdate", mock.Anything, "S1").Return(lotterySurvey("S1"), nil)
	m.responses.On("ListDrawCandidates", mock.Anything, "S1").Return(threeCandidates(), nil)
	m.tokens.On("NewSeed").Return("ab12", nil)
	m.tokens.On("RandomIndex", 3).Return(0, nil)
	m.surveys.On("MarkDrawCompleted", mock.Anything, "S1").Return(true, nil)
	m.prefs.On("GetByResponseID", mock.Anything, "r1").Return(nil, nil)
	m.draws.On("Create", mock.Anything, mock.Anything).Return(ErrAlreadyDrawn)

	_, err := svc.RunDraw(context.Background(), "S1")

	assert.ErrorIs(t, err, ErrAlreadyDrawn)
	m.uow.AssertNotCalled(t, "Commit")
}

func TestDrawService_RunDraw_EntropyFailure(t *testing.T) {
	svc, m := setupDraw(t)

	m.surveys.On("GetByIDForUpdate", mock.Anything, "S1").Return(lotterySurvey("S1"), nil)
	m.responses.On("ListDrawCandidates", mock.Anything, "S1").Return(threeCandidates(), nil)
	m.tokens.On("NewSeed").Return("", errors.New("entropy source unavailable"))

	_, err := svc.RunDraw(context.Background(), "S1")

	require.Error(t, err)
	m.surveys.AssertNotCalled(t, "MarkDrawCompleted", mock.Anything, mock.Anything)
}

func TestDrawService_ResendNotification(t *testing.T) {
	failedRecord := func() *models.DrawRecord {
		reason := "timeout"
		return &models.DrawRecord{
			ID:                   5,
			SurveyInstanceID:     "S1",
			WinnerToken:          "EAP-AAAA-AAAA-AAAA",
			NotificationStatus:   models.NotificationStatusFailed,
			NotificationAttempts: 1,
			NotificationError:    &reason,
		}
	}

	t.Run("unknown draw", func(t *testing.T) {
		svc, m := setupDraw(t)
		m.draws.On("GetByID", mock.Anything, int64(5)).Return(nil, nil)

		_, err := svc.ResendNotification(context.Background(), 5)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("already sent", func(t *testing.T) {
		svc, m := setupDraw(t)
		record := failedRecord()
		record.MarkSent(fixedNow)
		m.draws.On("GetByID", mock.Anything, int64(5)).Return(record, nil)

		_, err := svc.ResendNotification(context.Background(), 5)
		assert.ErrorIs(t, err, ErrNotificationNotResendable)
		m.dispatcher.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("winner without preference", func(t *testing.T) {
		svc, m := setupDraw(t)
		m.draws.On("GetByID", mock.Anything, int64(5)).Return(failedRecord(), nil)
		m.surveys.On("GetByID", mock.Anything, "S1").Return(lotterySurvey("S1"), nil)
		m.responses.On("GetByDrawToken", mock.Anything, "S1", "EAP-AAAA-AAAA-AAAA").Return(&models.Response{ID: "r1"}, nil)
		m.prefs.On("GetByResponseID", mock.Anything, "r1").Return(nil, nil)

		_, err := svc.ResendNotification(context.Background(), 5)
		assert.ErrorIs(t, err, ErrNoContactPreference)
	})

	t.Run("new attempt recorded", func(t *testing.T) {
		svc, m := setupDraw(t)
		m.draws.On("GetByID", mock.Anything, int64(5)).Return(failedRecord(), nil)
		m.surveys.On("GetByID", mock.Anything, "S1").Return(lotterySurvey("S1"), nil)
		m.responses.On("GetByDrawToken", mock.Anything, "S1", "EAP-AAAA-AAAA-AAAA").Return(&models.Response{ID: "r1"}, nil)
		m.prefs.On("GetByResponseID", mock.Anything, "r1").Return(&models.NotificationPreference{
			ResponseID:     "r1",
			ContactAddress: "winner@example.com",
		}, nil)
		m.dispatcher.On("Notify", mock.Anything, mock.Anything, "winner@example.com", "Coffee voucher").
			Return(models.NotificationStatusSent).
			Run(func(args mock.Arguments) {
				args.Get(1).(*models.DrawRecord).MarkSent(fixedNow)
			})
		m.draws.On("UpdateNotification", mock.Anything, mock.Anything).Return(nil)
		m.bus.On("Publish", mock.Anything).Return()
		m.uow.On("Commit").Return(nil)

		record, err := svc.ResendNotification(context.Background(), 5)

		require.NoError(t, err)
		assert.Equal(t, models.NotificationStatusSent, record.NotificationStatus)
		assert.Equal(t, 2, record.NotificationAttempts)
		assert.Nil(t, record.NotificationError)
	})
}

func TestDrawService_GetDrawRecord(t *testing.T) {
	svc, m := setupDraw(t)

	m.draws.On("GetBySurveyInstanceID", mock.Anything, "S1").Return(&models.DrawRecord{ID: 1, SurveyInstanceID: "S1"}, nil)
	m.draws.On("GetBySurveyInstanceID", mock.Anything, "S2").Return(nil, nil)

	record, err := svc.GetDrawRecord(context.Background(), "S1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), record.ID)

	_, err = svc.GetDrawRecord(context.Background(), "S2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDrawService_ListDueDraws(t *testing.T) {
	svc, m := setupDraw(t)

	due := []*models.SurveyInstance{lotterySurvey("S1")}
	m.surveys.On("ListDueDraws", mock.Anything, fixedNow).Return(due, nil)

	surveys, err := svc.ListDueDraws(context.Background())
	require.NoError(t, err)
	assert.Equal(t, due, surveys)
}

func TestDrawService_RunDraw_WinnerSelectionIsUniform(t *testing.T) {
	if testing.Short() {
		t.Skip("statistical test")
	}

	svc, m := setupDraw(t)
	svc.tokens = NewTokenGenerator()

	candidates := []*models.DrawCandidate{
		{ResponseID: "r1", DrawToken: "EAP-AAAA-AAAA-AAAA"},
		{ResponseID: "r2", DrawToken: "EAP-BBBB-BBBB-BBBB"},
		{ResponseID: "r3", DrawToken: "EAP-CCCC-CCCC-CCCC"},
		{ResponseID: "r4", DrawToken: "EAP-DDDD-DDDD-DDDD"},
	}
	m.surveys.On("GetByIDForUpdate", mock.Anything, "S1").Return(lotterySurvey("S1"), nil)
	m.responses.On("ListDrawCandidates", mock.Anything, "S1").Return(candidates, nil)
	m.surveys.On("MarkDrawCompleted", mock.Anything, "S1").Return(true, nil)
	m.prefs.On("GetByResponseID", mock.Anything, mock.Anything).Return(nil, nil)
	m.draws.On("Create", mock.Anything, mock.AnythingOfType("*models.DrawRecord")).Return(nil)
	m.bus.On("Publish", mock.Anything).Return()
	m.uow.On("Commit").Return(nil)

	const runs = 10000
	wins := make(map[string]int)
	for i := 0; i < runs; i++ {
		record, err := svc.RunDraw(context.Background(), "S1")
		require.NoError(t, err)
		wins[record.WinnerToken]++
	}

	expected := float64(runs) / float64(len(candidates))
	for _, c := range candidates {
		assert.InDelta(t, expected, float64(wins[c.DrawToken]), expected*0.06,
			"winner frequency of %s", c.DrawToken)
	}
}
