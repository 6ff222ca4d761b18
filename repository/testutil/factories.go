package testutil

import (
	"encoding/json"
	"fmt"
	"time"

	"surveydraw/models"

	"github.com/google/uuid"
)

// CreateTestSurvey creates an open, active survey without a prize
func CreateTestSurvey(id string) *models.SurveyInstance {
	return &models.SurveyInstance{
		ID:       id,
		Status:   models.SurveyStatusOpen,
		IsActive: true,
	}
}

// CreateTestLotterySurvey creates an open, active survey with a prize attached
func CreateTestLotterySurvey(id string) *models.SurveyInstance {
	survey := CreateTestSurvey(id)
	prizeID := "prize-" + id
	survey.PrizeID = &prizeID
	survey.PrizeDescription = "Coffee voucher"
	return survey
}

// CreateTestClosedLotterySurvey creates a closed lottery survey ready for its draw
func CreateTestClosedLotterySurvey(id string) *models.SurveyInstance {
	survey := CreateTestLotterySurvey(id)
	survey.Status = models.SurveyStatusClosed
	return survey
}

// CreateTestExpiredLotterySurvey creates a lottery survey whose deadline has passed
func CreateTestExpiredLotterySurvey(id string) *models.SurveyInstance {
	survey := CreateTestLotterySurvey(id)
	expired := time.Now().Add(-time.Hour)
	survey.ExpiresAt = &expired
	return survey
}

// CreateTestResponse creates an anonymous response without a lottery entry
func CreateTestResponse(surveyID string) *models.Response {
	return &models.Response{
		ID:               uuid.NewString(),
		SurveyInstanceID: surveyID,
		Answers:          json.RawMessage(`{"q1":"yes","q2":4}`),
	}
}

// CreateTestLotteryResponse creates a response carrying a digest and draw token derived from n
func CreateTestLotteryResponse(surveyID string, n int) *models.Response {
	response := CreateTestResponse(surveyID)
	digest := fmt.Sprintf("v1:%064x", n)
	token := fmt.Sprintf("EAP-TEST-%04d-%04d", n/10000, n%10000)
	response.IdentityDigest = &digest
	response.DrawToken = &token
	return response
}

// CreateTestDrawRecord creates a draw record awaiting notification
func CreateTestDrawRecord(surveyID string, winnerToken string) *models.DrawRecord {
	return &models.DrawRecord{
		SurveyInstanceID:   surveyID,
		Seed:               fmt.Sprintf("%064x", 42),
		CandidateCount:     3,
		WinnerToken:        winnerToken,
		NotificationStatus: models.NotificationStatusPending,
	}
}
