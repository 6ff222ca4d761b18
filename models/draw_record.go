package models

import (
	"time"
)

// NotificationStatus tracks delivery of the win notification for a draw
type NotificationStatus string

const (
	NotificationStatusNotApplicable NotificationStatus = "not_applicable"
	NotificationStatusPending       NotificationStatus = "pending"
	NotificationStatusSent          NotificationStatus = "sent"
	NotificationStatusFailed        NotificationStatus = "failed"
)

// DrawRecord is the permanent, auditable outcome of the single draw of a survey instance
type DrawRecord struct {
	ID                   int64              `db:"id" json:"drawId"`
	SurveyInstanceID     string             `db:"survey_instance_id" json:"surveyInstanceId"`
	Timestamp            time.Time          `db:"drawn_at" json:"timestamp"`
	Seed                 string             `db:"seed" json:"seed"`
	CandidateCount       int                `db:"candidate_count" json:"candidateCount"`
	WinnerToken          string             `db:"winner_token" json:"winnerToken"`
	NotificationStatus   NotificationStatus `db:"notification_status" json:"notificationStatus"`
	NotificationSentAt   *time.Time         `db:"notification_sent_at" json:"notificationSentAt,omitempty"`
	NotificationAttempts int                `db:"notification_attempts" json:"notificationAttempts"`
	NotificationError    *string            `db:"notification_error" json:"notificationError,omitempty"`
}

// MarkSent records a successful delivery
func (d *DrawRecord) MarkSent(at time.Time) {
	d.NotificationStatus = NotificationStatusSent
	d.NotificationSentAt = &at
	d.NotificationError = nil
	d.NotificationAttempts++
}

// MarkFailed records a failed delivery attempt
func (d *DrawRecord) MarkFailed(reason string) {
	d.NotificationStatus = NotificationStatusFailed
	d.NotificationError = &reason
	d.NotificationAttempts++
}

// CanResendNotification returns true if an operator may retry delivery.
// A record stuck in pending (process died mid-dispatch) is also resendable.
func (d *DrawRecord) CanResendNotification() bool {
	return d.NotificationStatus == NotificationStatusFailed || d.NotificationStatus == NotificationStatusPending
}

// DrawResult is the subset of a DrawRecord returned by RunDraw
type DrawResult struct {
	DrawID         int64  `json:"drawId"`
	WinnerToken    string `json:"winnerToken"`
	CandidateCount int    `json:"candidateCount"`
	Seed           string `json:"seed"`
}

// Result projects the record onto the RunDraw contract
func (d *DrawRecord) Result() DrawResult {
	return DrawResult{
		DrawID:         d.ID,
		WinnerToken:    d.WinnerToken,
		CandidateCount: d.CandidateCount,
		Seed:           d.Seed,
	}
}
