package models

import "time"

// NotificationPreference records a respondent's opt-in to be contacted if they win
type NotificationPreference struct {
	ResponseID       string    `db:"response_id"`
	ContactAddress   string    `db:"contact_address"`
	ConsentTimestamp time.Time `db:"consent_timestamp"`
}
