package models

import (
	"time"
)

// SurveyStatus represents the lifecycle state of a deployed survey campaign
type SurveyStatus string

const (
	SurveyStatusDraft  SurveyStatus = "draft"
	SurveyStatusOpen   SurveyStatus = "open"
	SurveyStatusClosed SurveyStatus = "closed"
)

// DrawStatus represents the lottery state of a survey instance
type DrawStatus string

const (
	DrawStatusNone      DrawStatus = "none"
	DrawStatusPending   DrawStatus = "pending"
	DrawStatusCompleted DrawStatus = "completed"
)

// SurveyInstance represents one deployed survey campaign with an optional prize draw
type SurveyInstance struct {
	ID               string       `db:"id"`
	Status           SurveyStatus `db:"status"`
	IsActive         bool         `db:"is_active"`
	ExpiresAt        *time.Time   `db:"expires_at"`
	PrizeID          *string      `db:"prize_id"`
	PrizeDescription string       `db:"prize_description"`
	DrawStatus       DrawStatus   `db:"draw_status"`
	CreatedAt        time.Time    `db:"created_at"`
	ArchivedAt       *time.Time   `db:"archived_at"`
}

// HasLottery returns true if a prize is attached to the survey
func (s *SurveyInstance) HasLottery() bool {
	return s.PrizeID != nil && *s.PrizeID != ""
}

// IsDrawCompleted returns true once the single draw for this survey has run
func (s *SurveyInstance) IsDrawCompleted() bool {
	return s.DrawStatus == DrawStatusCompleted
}

// AcceptsResponses reports whether a submission arriving at now may be ingested.
// Only an active, unexpired survey that is not closed accepts responses.
func (s *SurveyInstance) AcceptsResponses(now time.Time) bool {
	if !s.IsActive || s.Status == SurveyStatusClosed {
		return false
	}
	return s.ExpiresAt == nil || now.Before(*s.ExpiresAt)
}

// IsDrawDue reports whether the draw window has opened: a lottery that has not been
// drawn yet, on a survey that no longer accepts responses.
func (s *SurveyInstance) IsDrawDue(now time.Time) bool {
	if !s.HasLottery() || s.IsDrawCompleted() || s.ArchivedAt != nil {
		return false
	}
	return s.Status == SurveyStatusClosed || (s.ExpiresAt != nil && !now.Before(*s.ExpiresAt))
}
