package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"surveydraw/models"
	"surveydraw/service"

	"github.com/gin-gonic/gin"
)

// submitResponseRequest is the body of a response submission
type submitResponseRequest struct {
	Answers        json.RawMessage `json:"answers"`
	ParticipantID  *string         `json:"participantId"`
	ContactAddress *string         `json:"contactAddress"`
	ContactConsent bool            `json:"contactConsent"`
}

// resendResponse is returned after an operator-triggered notification retry
type resendResponse struct {
	DrawID               int64                     `json:"drawId"`
	NotificationStatus   models.NotificationStatus `json:"notificationStatus"`
	NotificationAttempts int                       `json:"notificationAttempts"`
}

// Handler serves the survey and draw endpoints
type Handler struct {
	ingestion    service.ResponseIngestionService
	draws        service.DrawService
	maxBodyBytes int64
}

// NewHandler creates a new handler. maxAnswersBytes bounds the request body; the
// ingestion service enforces the exact limit on the answers document. A non-positive
// limit leaves the body unbounded, as it leaves the answers unbounded.
func NewHandler(ingestion service.ResponseIngestionService, draws service.DrawService, maxAnswersBytes int) *Handler {
	h := &Handler{
		ingestion: ingestion,
		draws:     draws,
	}
	if maxAnswersBytes > 0 {
		h.maxBodyBytes = int64(maxAnswersBytes)*2 + 16*1024
	}
	return h
}

// SubmitResponse handles POST /api/v1/surveys/:id/responses
func (h *Handler) SubmitResponse(c *gin.Context) {
	if h.maxBodyBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes)
	}

	var req submitResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			abortWithError(c, http.StatusRequestEntityTooLarge, CodeValidationError, "request body too large")
			return
		}
		abortWithError(c, http.StatusBadRequest, CodeValidationError, "request body must be a JSON object")
		return
	}

	result, err := h.ingestion.Submit(c.Request.Context(), service.SubmitRequest{
		SurveyInstanceID: c.Param("id"),
		Answers:          req.Answers,
		ParticipantID:    req.ParticipantID,
		ContactAddress:   req.ContactAddress,
		ContactConsent:   req.ContactConsent,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// RunDraw handles POST /api/v1/surveys/:id/draw
func (h *Handler) RunDraw(c *gin.Context) {
	record, err := h.draws.RunDraw(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, record.Result())
}

// GetDrawRecord handles GET /api/v1/surveys/:id/draw
func (h *Handler) GetDrawRecord(c *gin.Context) {
	record, err := h.draws.GetDrawRecord(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

// ResendNotification handles POST /api/v1/draws/:drawId/notification/resend
func (h *Handler) ResendNotification(c *gin.Context) {
	drawID, err := strconv.ParseInt(c.Param("drawId"), 10, 64)
	if err != nil || drawID <= 0 {
		abortWithError(c, http.StatusBadRequest, CodeValidationError, "drawId must be a positive integer")
		return
	}

	record, err := h.draws.ResendNotification(c.Request.Context(), drawID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resendResponse{
		DrawID:               record.ID,
		NotificationStatus:   record.NotificationStatus,
		NotificationAttempts: record.NotificationAttempts,
	})
}
