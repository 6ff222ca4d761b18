package repository

import (
	"context"
	"fmt"

	"surveydraw/database"
	"surveydraw/models"

	"github.com/jackc/pgx/v5"
)

// NotificationPreferenceRepository implements notification preference data access
type NotificationPreferenceRepository struct {
	q queryable
}

// NewNotificationPreferenceRepository creates a new notification preference repository
func NewNotificationPreferenceRepository(db *database.DB) *NotificationPreferenceRepository {
	return &NotificationPreferenceRepository{q: db.Pool}
}

func newNotificationPreferenceRepositoryWithTx(tx queryable) *NotificationPreferenceRepository {
	return &NotificationPreferenceRepository{q: tx}
}

// Create stores a preference for a response
func (r *NotificationPreferenceRepository) Create(ctx context.Context, pref *models.NotificationPreference) error {
	query := `
		INSERT INTO notification_preferences (response_id, contact_address, consent_timestamp)
		VALUES ($1, $2, $3)
	`

	_, err := r.q.Exec(ctx, query, pref.ResponseID, pref.ContactAddress, pref.ConsentTimestamp)
	if err != nil {
		return fmt.Errorf("failed to create notification preference: %w", err)
	}

	return nil
}

// GetByResponseID returns the preference of a response or nil
func (r *NotificationPreferenceRepository) GetByResponseID(ctx context.Context, responseID string) (*models.NotificationPreference, error) {
	query := `
		SELECT response_id, contact_address, consent_timestamp
		FROM notification_preferences
		WHERE response_id = $1
	`

	var pref models.NotificationPreference
	err := r.q.QueryRow(ctx, query, responseID).Scan(
		&pref.ResponseID,
		&pref.ContactAddress,
		&pref.ConsentTimestamp,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get notification preference: %w", err)
	}

	return &pref, nil
}
