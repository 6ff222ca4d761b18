package service

import (
	"context"
	"fmt"
	"time"

	"surveydraw/events"
	"surveydraw/models"

	log "github.com/sirupsen/logrus"
)

// drawService implements DrawService
type drawService struct {
	uowFactory   UnitOfWorkFactory
	tokens       TokenGenerator
	dispatcher   NotificationDispatcher
	storeTimeout time.Duration
	now          func() time.Time
}

// NewDrawService creates a new draw service
func NewDrawService(uowFactory UnitOfWorkFactory, tokens TokenGenerator, dispatcher NotificationDispatcher, storeTimeout time.Duration) DrawService {
	return &drawService{
		uowFactory:   uowFactory,
		tokens:       tokens,
		dispatcher:   dispatcher,
		storeTimeout: storeTimeout,
		now:          time.Now,
	}
}

// winnerContact is what the notification step needs once the draw has committed
type winnerContact struct {
	address          string
	prizeDescription string
}

// RunDraw selects one winner uniformly among the lottery entries of a survey instance.
// The completed draw is never undone by the notification outcome.
func (s *drawService) RunDraw(ctx context.Context, surveyInstanceID string) (*models.DrawRecord, error) {
	record, contact, err := s.conductDraw(ctx, surveyInstanceID)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"survey_id":       record.SurveyInstanceID,
		"draw_id":         record.ID,
		"candidate_count": record.CandidateCount,
		"winner_token":    record.WinnerToken,
		"seed":            record.Seed,
	}).Info("Draw completed")

	if contact != nil {
		s.notifyWinner(context.WithoutCancel(ctx), record, contact)
	}

	return record, nil
}

// conductDraw runs every precondition, the selection and the draw transition in one transaction
func (s *drawService) conductDraw(ctx context.Context, surveyInstanceID string) (*models.DrawRecord, *winnerContact, error) {
	storeCtx, cancel := s.withStoreTimeout(ctx)
	defer cancel()

	uow := s.uowFactory.Create()
	if err := uow.Begin(storeCtx); err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	survey, err := uow.SurveyInstanceRepository().GetByIDForUpdate(storeCtx, surveyInstanceID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get survey instance: %w", err)
	}
	if survey == nil {
		return nil, nil, fmt.Errorf("survey instance %s: %w", surveyInstanceID, ErrNotFound)
	}
	if survey.IsDrawCompleted() {
		return nil, nil, ErrAlreadyDrawn
	}
	if !survey.HasLottery() {
		return nil, nil, ErrNoPrizeConfigured
	}

	candidates, err := uow.ResponseRepository().ListDrawCandidates(storeCtx, survey.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list draw candidates: %w", err)
	}
	if len(candidates) == 0 {
		return nil, nil, ErrNoEligibleCandidates
	}

	seed, err := s.tokens.NewSeed()
	if err != nil {
		return nil, nil, err
	}
	idx, err := s.tokens.RandomIndex(len(candidates))
	if err != nil {
		return nil, nil, err
	}
	winner := candidates[idx]

	transitioned, err := uow.SurveyInstanceRepository().MarkDrawCompleted(storeCtx, survey.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to complete draw: %w", err)
	}
	if !transitioned {
		return nil, nil, ErrAlreadyDrawn
	}

	pref, err := uow.NotificationPreferenceRepository().GetByResponseID(storeCtx, winner.ResponseID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get winner notification preference: %w", err)
	}

	record := &models.DrawRecord{
		SurveyInstanceID:   survey.ID,
		Seed:               seed,
		CandidateCount:     len(candidates),
		WinnerToken:        winner.DrawToken,
		NotificationStatus: models.NotificationStatusNotApplicable,
	}
	var contact *winnerContact
	if pref != nil {
		record.NotificationStatus = models.NotificationStatusPending
		contact = &winnerContact{
			address:          pref.ContactAddress,
			prizeDescription: survey.PrizeDescription,
		}
	}

	if err := uow.DrawRecordRepository().Create(storeCtx, record); err != nil {
		return nil, nil, err
	}

	uow.EventBus().Publish(events.DrawCompletedEvent{
		DrawID:           record.ID,
		SurveyInstanceID: survey.ID,
		CandidateCount:   record.CandidateCount,
	})

	if err := uow.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit draw: %w", err)
	}

	return record, contact, nil
}

// notifyWinner makes one delivery attempt and persists its outcome. Errors are logged only.
func (s *drawService) notifyWinner(ctx context.Context, record *models.DrawRecord, contact *winnerContact) {
	s.dispatcher.Notify(ctx, record, contact.address, contact.prizeDescription)

	if err := s.recordNotification(ctx, record); err != nil {
		log.WithFields(log.Fields{
			"draw_id":             record.ID,
			"notification_status": record.NotificationStatus,
		}).WithError(err).Error("Failed to record notification outcome")
	}
}

func (s *drawService) recordNotification(ctx context.Context, record *models.DrawRecord) error {
	storeCtx, cancel := s.withStoreTimeout(ctx)
	defer cancel()

	uow := s.uowFactory.Create()
	if err := uow.Begin(storeCtx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.DrawRecordRepository().UpdateNotification(storeCtx, record); err != nil {
		return err
	}

	uow.EventBus().Publish(events.WinnerNotificationRecordedEvent{
		DrawID:           record.ID,
		SurveyInstanceID: record.SurveyInstanceID,
		Status:           record.NotificationStatus,
		Attempts:         record.NotificationAttempts,
	})

	return uow.Commit()
}

// GetDrawRecord returns the draw record of a survey instance
func (s *drawService) GetDrawRecord(ctx context.Context, surveyInstanceID string) (*models.DrawRecord, error) {
	storeCtx, cancel := s.withStoreTimeout(ctx)
	defer cancel()

	uow := s.uowFactory.Create()
	if err := uow.Begin(storeCtx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	record, err := uow.DrawRecordRepository().GetBySurveyInstanceID(storeCtx, surveyInstanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get draw record: %w", err)
	}
	if record == nil {
		return nil, fmt.Errorf("draw for survey instance %s: %w", surveyInstanceID, ErrNotFound)
	}

	return record, nil
}

// ResendNotification retries delivery for a draw whose notification failed or never finished
func (s *drawService) ResendNotification(ctx context.Context, drawID int64) (*models.DrawRecord, error) {
	record, contact, err := s.loadResendTarget(ctx, drawID)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"draw_id":  record.ID,
		"previous": record.NotificationStatus,
		"attempts": record.NotificationAttempts,
	}).Info("Resending winner notification")

	s.notifyWinner(context.WithoutCancel(ctx), record, contact)

	return record, nil
}

func (s *drawService) loadResendTarget(ctx context.Context, drawID int64) (*models.DrawRecord, *winnerContact, error) {
	storeCtx, cancel := s.withStoreTimeout(ctx)
	defer cancel()

	uow := s.uowFactory.Create()
	if err := uow.Begin(storeCtx); err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	record, err := uow.DrawRecordRepository().GetByID(storeCtx, drawID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get draw record: %w", err)
	}
	if record == nil {
		return nil, nil, fmt.Errorf("draw %d: %w", drawID, ErrNotFound)
	}
	if !record.CanResendNotification() {
		return nil, nil, ErrNotificationNotResendable
	}

	survey, err := uow.SurveyInstanceRepository().GetByID(storeCtx, record.SurveyInstanceID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get survey instance: %w", err)
	}
	if survey == nil {
		return nil, nil, fmt.Errorf("survey instance %s: %w", record.SurveyInstanceID, ErrNotFound)
	}

	winner, err := uow.ResponseRepository().GetByDrawToken(storeCtx, record.SurveyInstanceID, record.WinnerToken)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get winning response: %w", err)
	}
	if winner == nil {
		return nil, nil, ErrNoContactPreference
	}

	pref, err := uow.NotificationPreferenceRepository().GetByResponseID(storeCtx, winner.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get winner notification preference: %w", err)
	}
	if pref == nil {
		return nil, nil, ErrNoContactPreference
	}

	return record, &winnerContact{address: pref.ContactAddress, prizeDescription: survey.PrizeDescription}, nil
}

// ListDueDraws returns the lottery instances the scheduler should draw now
func (s *drawService) ListDueDraws(ctx context.Context) ([]*models.SurveyInstance, error) {
	storeCtx, cancel := s.withStoreTimeout(ctx)
	defer cancel()

	uow := s.uowFactory.Create()
	if err := uow.Begin(storeCtx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	surveys, err := uow.SurveyInstanceRepository().ListDueDraws(storeCtx, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to list due draws: %w", err)
	}

	return surveys, nil
}

func (s *drawService) withStoreTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.storeTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.storeTimeout)
}
