package api

import (
	"errors"
	"net/http"

	"surveydraw/service"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Error codes returned in the error body
const (
	CodeSurveyClosed           = "SURVEY_CLOSED"
	CodeDuplicateParticipant   = "DUPLICATE_PARTICIPANT"
	CodeValidationError        = "VALIDATION_ERROR"
	CodeNotFound               = "NOT_FOUND"
	CodeAlreadyDrawn           = "ALREADY_DRAWN"
	CodeNoPrizeConfigured      = "NO_PRIZE_CONFIGURED"
	CodeNoEligibleCandidates   = "NO_ELIGIBLE_CANDIDATES"
	CodeNotificationNotPending = "NOTIFICATION_NOT_RESENDABLE"
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeRateLimited            = "RATE_LIMITED"
	CodeInternal               = "INTERNAL"
)

// ErrorBody is the payload of every non-2xx response
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries a stable code and a human readable message
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

// Ordered: the first sentinel found in the chain wins
var errorMappings = []errorMapping{
	{service.ErrSurveyClosed, http.StatusConflict, CodeSurveyClosed, "survey is not accepting responses"},
	{service.ErrDuplicateParticipant, http.StatusConflict, CodeDuplicateParticipant, "participant has already entered this survey"},
	{service.ErrNotFound, http.StatusNotFound, CodeNotFound, "resource not found"},
	{service.ErrAlreadyDrawn, http.StatusConflict, CodeAlreadyDrawn, "draw has already been run for this survey"},
	{service.ErrNoPrizeConfigured, http.StatusUnprocessableEntity, CodeNoPrizeConfigured, "survey has no prize configured"},
	{service.ErrNoEligibleCandidates, http.StatusUnprocessableEntity, CodeNoEligibleCandidates, "survey has no eligible lottery entries"},
	{service.ErrNotificationNotResendable, http.StatusConflict, CodeNotificationNotPending, "notification is not in a resendable state"},
	{service.ErrNoContactPreference, http.StatusConflict, CodeNotificationNotPending, "winner has no contact preference"},
}

// respondError maps a service error onto its HTTP status and error body
func respondError(c *gin.Context, err error) {
	var validationErr *service.ValidationError
	if errors.As(err, &validationErr) {
		abortWithError(c, http.StatusBadRequest, CodeValidationError, validationErr.Error())
		return
	}
	if errors.Is(err, service.ErrValidation) {
		abortWithError(c, http.StatusBadRequest, CodeValidationError, err.Error())
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			abortWithError(c, m.status, m.code, m.message)
			return
		}
	}

	log.WithFields(log.Fields{
		"method": c.Request.Method,
		"path":   c.FullPath(),
	}).WithError(err).Error("Unhandled error serving request")
	abortWithError(c, http.StatusInternalServerError, CodeInternal, "internal server error")
}

func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorBody{
		Error: ErrorDetail{Code: code, Message: message},
	})
}
