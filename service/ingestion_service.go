package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"surveydraw/events"
	"surveydraw/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// EventEmitter publishes an event outside any unit of work
type EventEmitter interface {
	Emit(ctx context.Context, event events.Event)
}

// IngestionConfig bounds the ingestion service
type IngestionConfig struct {
	MaxAnswersBytes int
	StoreTimeout    time.Duration
}

// ingestionService implements ResponseIngestionService
type ingestionService struct {
	uowFactory UnitOfWorkFactory
	hasher     IdentityHasher
	tokens     TokenGenerator
	emitter    EventEmitter
	cfg        IngestionConfig
	now        func() time.Time
}

// NewIngestionService creates a new response ingestion service
func NewIngestionService(uowFactory UnitOfWorkFactory, hasher IdentityHasher, tokens TokenGenerator, emitter EventEmitter, cfg IngestionConfig) ResponseIngestionService {
	return &ingestionService{
		uowFactory: uowFactory,
		hasher:     hasher,
		tokens:     tokens,
		emitter:    emitter,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Submit stores one response. Duplicate lottery entries are caught by the store's unique index,
// never by a pre-check, so concurrent submissions from one participant resolve to exactly one winner.
func (s *ingestionService) Submit(ctx context.Context, req SubmitRequest) (*models.SubmissionResult, error) {
	if strings.TrimSpace(req.SurveyInstanceID) == "" {
		return nil, newValidationError("surveyInstanceId", "must not be empty")
	}
	if err := s.validateAnswers(req.Answers); err != nil {
		return nil, err
	}

	storeCtx, cancel := s.withStoreTimeout(ctx)
	defer cancel()

	uow := s.uowFactory.Create()
	if err := uow.Begin(storeCtx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	survey, err := uow.SurveyInstanceRepository().GetByID(storeCtx, req.SurveyInstanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get survey instance: %w", err)
	}
	if survey == nil {
		return nil, fmt.Errorf("survey instance %s: %w", req.SurveyInstanceID, ErrNotFound)
	}

	now := s.now()
	if !survey.AcceptsResponses(now) {
		return nil, ErrSurveyClosed
	}

	response := &models.Response{
		ID:               uuid.NewString(),
		SurveyInstanceID: survey.ID,
		Answers:          req.Answers,
	}

	participantID := ""
	if req.ParticipantID != nil {
		participantID = strings.TrimSpace(*req.ParticipantID)
	}

	if survey.HasLottery() && participantID != "" {
		digest, err := s.hasher.Hash(participantID)
		if err != nil {
			return nil, fmt.Errorf("failed to hash participant identity: %w", err)
		}
		token, err := s.tokens.NewDrawToken()
		if err != nil {
			return nil, err
		}
		response.IdentityDigest = &digest
		response.DrawToken = &token
	}

	err = uow.ResponseRepository().Create(storeCtx, response)
	if errors.Is(err, ErrDrawTokenCollision) {
		// One fresh token; a second clash in a 36^12 space is treated as a store fault
		log.WithField("survey_id", survey.ID).Warn("Draw token collision, issuing a new token")
		token, tokenErr := s.tokens.NewDrawToken()
		if tokenErr != nil {
			return nil, tokenErr
		}
		response.DrawToken = &token
		err = uow.ResponseRepository().Create(storeCtx, response)
	}
	if err != nil {
		if errors.Is(err, ErrDuplicateParticipant) {
			uow.Rollback()
			s.emitDuplicate(ctx, survey.ID)
			log.WithField("survey_id", survey.ID).Info("Rejected duplicate lottery entry")
			return nil, ErrDuplicateParticipant
		}
		return nil, fmt.Errorf("failed to store response: %w", err)
	}

	if response.IsLotteryEntry() && req.ContactConsent && req.ContactAddress != nil {
		if err := s.storePreference(storeCtx, uow, response, *req.ContactAddress, now); err != nil {
			return nil, err
		}
	}

	uow.EventBus().Publish(events.ResponseSubmittedEvent{
		SurveyInstanceID: survey.ID,
		ResponseID:       response.ID,
		HasLottery:       survey.HasLottery(),
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit response: %w", err)
	}

	s.attachAnonymizedRef(ctx, response.ID)

	log.WithFields(log.Fields{
		"survey_id":     survey.ID,
		"response_id":   response.ID,
		"lottery_entry": response.IsLotteryEntry(),
	}).Info("Response submitted")

	return &models.SubmissionResult{
		ResponseID: response.ID,
		DrawToken:  response.DrawToken,
		HasLottery: survey.HasLottery(),
	}, nil
}

// storePreference saves the opt-in contact. A malformed address is dropped, never failing the submission.
func (s *ingestionService) storePreference(ctx context.Context, uow UnitOfWork, response *models.Response, address string, now time.Time) error {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil
	}
	if _, _, err := ParseContact(address); err != nil {
		log.WithFields(log.Fields{
			"survey_id":   response.SurveyInstanceID,
			"response_id": response.ID,
		}).WithError(err).Warn("Dropping unusable contact address")
		return nil
	}

	pref := &models.NotificationPreference{
		ResponseID:       response.ID,
		ContactAddress:   address,
		ConsentTimestamp: now.UTC(),
	}
	if err := uow.NotificationPreferenceRepository().Create(ctx, pref); err != nil {
		return fmt.Errorf("failed to store notification preference: %w", err)
	}
	return nil
}

// attachAnonymizedRef writes the audit reference in its own bounded write and waits for it.
// Failure leaves the response without a ref, which only costs traceability.
func (s *ingestionService) attachAnonymizedRef(ctx context.Context, responseID string) {
	done := make(chan error, 1)

	go func() {
		refCtx, cancel := s.withStoreTimeout(context.WithoutCancel(ctx))
		defer cancel()

		ref, err := s.tokens.NewAnonymizedRef()
		if err != nil {
			done <- err
			return
		}

		uow := s.uowFactory.Create()
		if err := uow.Begin(refCtx); err != nil {
			done <- err
			return
		}
		defer uow.Rollback()

		if err := uow.ResponseRepository().SetAnonymizedRef(refCtx, responseID, ref); err != nil {
			done <- err
			return
		}
		done <- uow.Commit()
	}()

	if err := <-done; err != nil {
		log.WithField("response_id", responseID).WithError(err).Warn("Failed to attach anonymized ref")
	}
}

func (s *ingestionService) emitDuplicate(ctx context.Context, surveyID string) {
	if s.emitter == nil {
		return
	}
	s.emitter.Emit(context.WithoutCancel(ctx), events.DuplicateRejectedEvent{SurveyInstanceID: surveyID})
}

func (s *ingestionService) withStoreTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.StoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.StoreTimeout)
}

// validateAnswers accepts a JSON object or array within the size limit. The content itself is opaque.
func (s *ingestionService) validateAnswers(answers json.RawMessage) error {
	trimmed := bytes.TrimSpace(answers)
	if len(trimmed) == 0 {
		return newValidationError("answers", "must not be empty")
	}
	if s.cfg.MaxAnswersBytes > 0 && len(answers) > s.cfg.MaxAnswersBytes {
		return newValidationError("answers", fmt.Sprintf("exceeds %d bytes", s.cfg.MaxAnswersBytes))
	}
	if !json.Valid(trimmed) {
		return newValidationError("answers", "must be valid JSON")
	}
	if trimmed[0] != '{' && trimmed[0] != '[' {
		return newValidationError("answers", "must be a JSON object or array")
	}
	return nil
}
