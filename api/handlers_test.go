package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"surveydraw/models"
	"surveydraw/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testAdminKey = "operator-key"

func init() {
	gin.SetMode(gin.TestMode)
}

type fakePinger struct {
	err error
}

func (p fakePinger) Ping(context.Context) error { return p.err }

type fakeLimiter struct {
	mu      sync.Mutex
	allowed int
	keys    []string
	err     error
}

func (l *fakeLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return false, l.err
	}
	l.keys = append(l.keys, key)
	if l.allowed <= 0 {
		return false, nil
	}
	l.allowed--
	return true, nil
}

type testServer struct {
	router    *gin.Engine
	ingestion *service.MockResponseIngestionService
	draws     *service.MockDrawService
}

func setupServer(t *testing.T, limiter RateLimiter, pingErr error) *testServer {
	t.Helper()

	ingestion := new(service.MockResponseIngestionService)
	draws := new(service.MockDrawService)
	t.Cleanup(func() {
		ingestion.AssertExpectations(t)
		draws.AssertExpectations(t)
	})

	router := NewRouter(RouterConfig{
		Handler:     NewHandler(ingestion, draws, 1024),
		Health:      NewHealthHandler(map[string]Pinger{"postgres": fakePinger{err: pingErr}}),
		AdminAPIKey: testAdminKey,
		Limiter:     limiter,
		RateSalt:    "salt",
	})

	return &testServer{router: router, ingestion: ingestion, draws: draws}
}

func (s *testServer) do(method, path, body string, admin bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if admin {
		req.Header.Set("Authorization", "Bearer "+testAdminKey)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorDetail {
	t.Helper()
	var body ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestSubmitResponse(t *testing.T) {
	t.Run("created with draw token", func(t *testing.T) {
		s := setupServer(t, nil, nil)
		token := "EAP-AAAA-BBBB-CCCC"
		s.ingestion.On("Submit", mock.Anything, mock.MatchedBy(func(req service.SubmitRequest) bool {
			return req.SurveyInstanceID == "S1" &&
				string(req.Answers) == `{"q1":"yes"}` &&
				req.ParticipantID != nil && *req.ParticipantID == "alice" &&
				req.ContactAddress != nil && *req.ContactAddress == "alice@example.com" &&
				req.ContactConsent
		})).Return(&models.SubmissionResult{ResponseID: "r1", DrawToken: &token, HasLottery: true}, nil)

		rec := s.do(http.MethodPost, "/api/v1/surveys/S1/responses",
			`{"answers":{"q1":"yes"},"participantId":"alice","contactAddress":"alice@example.com","contactConsent":true}`, false)

		require.Equal(t, http.StatusCreated, rec.Code)
		assert.JSONEq(t, `{"responseId":"r1","drawToken":"EAP-AAAA-BBBB-CCCC","hasLottery":true}`, rec.Body.String())
	})

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"survey closed", service.ErrSurveyClosed, http.StatusConflict, CodeSurveyClosed},
		{"duplicate participant", fmt.Errorf("failed to store response: %w", service.ErrDuplicateParticipant), http.StatusConflict, CodeDuplicateParticipant},
		{"unknown survey", fmt.Errorf("survey instance S1: %w", service.ErrNotFound), http.StatusNotFound, CodeNotFound},
		{"validation", &service.ValidationError{Field: "answers", Reason: "must not be empty"}, http.StatusBadRequest, CodeValidationError},
		{"store failure", errors.New("connection refused"), http.StatusInternalServerError, CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := setupServer(t, nil, nil)
			s.ingestion.On("Submit", mock.Anything, mock.Anything).Return(nil, tt.err)

			rec := s.do(http.MethodPost, "/api/v1/surveys/S1/responses", `{"answers":{"q1":"yes"}}`, false)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, rec).Code)
		})
	}

	t.Run("internal errors do not leak detail", func(t *testing.T) {
		s := setupServer(t, nil, nil)
		s.ingestion.On("Submit", mock.Anything, mock.Anything).Return(nil, errors.New("pq: password authentication failed"))

		rec := s.do(http.MethodPost, "/api/v1/surveys/S1/responses", `{"answers":{}}`, false)

		assert.NotContains(t, rec.Body.String(), "password")
	})

	t.Run("malformed body", func(t *testing.T) {
		s := setupServer(t, nil, nil)

		rec := s.do(http.MethodPost, "/api/v1/surveys/S1/responses", `{"answers":`, false)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, CodeValidationError, decodeError(t, rec).Code)
	})

	t.Run("no answers limit leaves the body unbounded", func(t *testing.T) {
		ingestion := new(service.MockResponseIngestionService)
		ingestion.On("Submit", mock.Anything, mock.Anything).Return(&models.SubmissionResult{ResponseID: "r1"}, nil)
		router := NewRouter(RouterConfig{
			Handler: NewHandler(ingestion, new(service.MockDrawService), 0),
			Health:  NewHealthHandler(nil),
		})
		body := fmt.Sprintf(`{"answers":{"q":"%s"}}`, strings.Repeat("x", 32*1024))
		req := httptest.NewRequest(http.MethodPost, "/api/v1/surveys/S1/responses", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
		ingestion.AssertExpectations(t)
	})

	t.Run("oversized body", func(t *testing.T) {
		s := setupServer(t, nil, nil)
		body := fmt.Sprintf(`{"answers":{"q":"%s"}}`, strings.Repeat("x", 32*1024))

		rec := s.do(http.MethodPost, "/api/v1/surveys/S1/responses", body, false)

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})
}

func TestSubmitResponse_RateLimit(t *testing.T) {
	t.Run("rejects once the limit is spent", func(t *testing.T) {
		limiter := &fakeLimiter{allowed: 1}
		s := setupServer(t, limiter, nil)
		s.ingestion.On("Submit", mock.Anything, mock.Anything).
			Return(&models.SubmissionResult{ResponseID: "r1"}, nil).Once()

		first := s.do(http.MethodPost, "/api/v1/surveys/S1/responses", `{"answers":{}}`, false)
		second := s.do(http.MethodPost, "/api/v1/surveys/S1/responses", `{"answers":{}}`, false)

		assert.Equal(t, http.StatusCreated, first.Code)
		assert.Equal(t, http.StatusTooManyRequests, second.Code)
		assert.Equal(t, CodeRateLimited, decodeError(t, second).Code)

		require.Len(t, limiter.keys, 2)
		assert.Equal(t, limiter.keys[0], limiter.keys[1])
		assert.NotContains(t, limiter.keys[0], "192.0.2.1")
	})

	t.Run("fails open when the limiter errors", func(t *testing.T) {
		s := setupServer(t, &fakeLimiter{err: errors.New("redis down")}, nil)
		s.ingestion.On("Submit", mock.Anything, mock.Anything).Return(&models.SubmissionResult{ResponseID: "r1"}, nil)

		rec := s.do(http.MethodPost, "/api/v1/surveys/S1/responses", `{"answers":{}}`, false)

		assert.Equal(t, http.StatusCreated, rec.Code)
	})
}

func TestRunDraw(t *testing.T) {
	t.Run("requires operator key", func(t *testing.T) {
		s := setupServer(t, nil, nil)

		rec := s.do(http.MethodPost, "/api/v1/surveys/S1/draw", "", false)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		s.draws.AssertNotCalled(t, "RunDraw", mock.Anything, mock.Anything)
	})

	t.Run("rejects wrong operator key", func(t *testing.T) {
		s := setupServer(t, nil, nil)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/surveys/S1/draw", nil)
		req.Header.Set("Authorization", "Bearer not-the-key")
		rec := httptest.NewRecorder()

		s.router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("returns the draw result", func(t *testing.T) {
		s := setupServer(t, nil, nil)
		s.draws.On("RunDraw", mock.Anything, "S1").Return(&models.DrawRecord{
			ID:                 7,
			SurveyInstanceID:   "S1",
			Seed:               strings.Repeat("ab", 32),
			CandidateCount:     3,
			WinnerToken:        "EAP-AAAA-BBBB-CCCC",
			NotificationStatus: models.NotificationStatusSent,
		}, nil)

		rec := s.do(http.MethodPost, "/api/v1/surveys/S1/draw", "", true)

		require.Equal(t, http.StatusCreated, rec.Code)
		assert.JSONEq(t, fmt.Sprintf(`{"drawId":7,"winnerToken":"EAP-AAAA-BBBB-CCCC","candidateCount":3,"seed":"%s"}`, strings.Repeat("ab", 32)), rec.Body.String())
	})

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", service.ErrNotFound, http.StatusNotFound, CodeNotFound},
		{"already drawn", service.ErrAlreadyDrawn, http.StatusConflict, CodeAlreadyDrawn},
		{"no prize", service.ErrNoPrizeConfigured, http.StatusUnprocessableEntity, CodeNoPrizeConfigured},
		{"no candidates", service.ErrNoEligibleCandidates, http.StatusUnprocessableEntity, CodeNoEligibleCandidates},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := setupServer(t, nil, nil)
			s.draws.On("RunDraw", mock.Anything, "S1").Return(nil, tt.err)

			rec := s.do(http.MethodPost, "/api/v1/surveys/S1/draw", "", true)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, rec).Code)
		})
	}
}

func TestGetDrawRecord(t *testing.T) {
	s := setupServer(t, nil, nil)
	s.draws.On("GetDrawRecord", mock.Anything, "S1").Return(&models.DrawRecord{
		ID:                   7,
		SurveyInstanceID:     "S1",
		CandidateCount:       3,
		WinnerToken:          "EAP-AAAA-BBBB-CCCC",
		NotificationStatus:   models.NotificationStatusNotApplicable,
		NotificationAttempts: 0,
	}, nil)
	s.draws.On("GetDrawRecord", mock.Anything, "S2").Return(nil, service.ErrNotFound)

	rec := s.do(http.MethodGet, "/api/v1/surveys/S1/draw", "", true)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not_applicable", body["notificationStatus"])
	assert.NotContains(t, body, "contactAddress")

	missing := s.do(http.MethodGet, "/api/v1/surveys/S2/draw", "", true)
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestResendNotification(t *testing.T) {
	t.Run("resent", func(t *testing.T) {
		s := setupServer(t, nil, nil)
		s.draws.On("ResendNotification", mock.Anything, int64(7)).Return(&models.DrawRecord{
			ID:                   7,
			NotificationStatus:   models.NotificationStatusSent,
			NotificationAttempts: 2,
		}, nil)

		rec := s.do(http.MethodPost, "/api/v1/draws/7/notification/resend", "", true)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"drawId":7,"notificationStatus":"sent","notificationAttempts":2}`, rec.Body.String())
	})

	t.Run("not resendable", func(t *testing.T) {
		s := setupServer(t, nil, nil)
		s.draws.On("ResendNotification", mock.Anything, int64(7)).Return(nil, service.ErrNotificationNotResendable)

		rec := s.do(http.MethodPost, "/api/v1/draws/7/notification/resend", "", true)

		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("invalid draw id", func(t *testing.T) {
		s := setupServer(t, nil, nil)

		rec := s.do(http.MethodPost, "/api/v1/draws/abc/notification/resend", "", true)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		s := setupServer(t, nil, nil)

		rec := s.do(http.MethodGet, "/healthz", "", false)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("database unreachable", func(t *testing.T) {
		s := setupServer(t, nil, errors.New("dial tcp: connection refused"))

		rec := s.do(http.MethodGet, "/healthz", "", false)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		var body Health
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "unhealthy", body.Status)
	})
}
