package repository

import (
	"context"
	"fmt"

	"surveydraw/database"
	"surveydraw/models"
	"surveydraw/service"

	"github.com/jackc/pgx/v5"
)

const drawRecordSurveyConstraint = "uq_draw_records_survey_instance"

const drawRecordColumns = `id, survey_instance_id, drawn_at, seed, candidate_count, winner_token,
		notification_status, notification_sent_at, notification_attempts, notification_error`

// DrawRecordRepository implements draw record data access
type DrawRecordRepository struct {
	q queryable
}

// NewDrawRecordRepository creates a new draw record repository
func NewDrawRecordRepository(db *database.DB) *DrawRecordRepository {
	return &DrawRecordRepository{q: db.Pool}
}

// newDrawRecordRepositoryWithTx creates a new draw record repository with a transaction
func newDrawRecordRepositoryWithTx(tx queryable) *DrawRecordRepository {
	return &DrawRecordRepository{q: tx}
}

// Create inserts a draw record; the unique constraint on the instance backs the draw transition
func (r *DrawRecordRepository) Create(ctx context.Context, record *models.DrawRecord) error {
	query := `
		INSERT INTO draw_records (survey_instance_id, seed, candidate_count, winner_token,
			notification_status, notification_attempts)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, drawn_at
	`

	err := r.q.QueryRow(ctx, query,
		record.SurveyInstanceID,
		record.Seed,
		record.CandidateCount,
		record.WinnerToken,
		record.NotificationStatus,
		record.NotificationAttempts,
	).Scan(&record.ID, &record.Timestamp)
	if isUniqueViolation(err, drawRecordSurveyConstraint) {
		return service.ErrAlreadyDrawn
	}
	if err != nil {
		return fmt.Errorf("failed to create draw record: %w", err)
	}

	return nil
}

// GetByID retrieves a draw record by ID
func (r *DrawRecordRepository) GetByID(ctx context.Context, id int64) (*models.DrawRecord, error) {
	query := `SELECT ` + drawRecordColumns + ` FROM draw_records WHERE id = $1`

	record, err := scanDrawRecord(r.q.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get draw record %d: %w", id, err)
	}

	return record, nil
}

// GetBySurveyInstanceID retrieves the draw record of a survey instance
func (r *DrawRecordRepository) GetBySurveyInstanceID(ctx context.Context, surveyInstanceID string) (*models.DrawRecord, error) {
	query := `SELECT ` + drawRecordColumns + ` FROM draw_records WHERE survey_instance_id = $1`

	record, err := scanDrawRecord(r.q.QueryRow(ctx, query, surveyInstanceID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get draw record for survey %s: %w", surveyInstanceID, err)
	}

	return record, nil
}

// UpdateNotification persists the notification outcome of a draw
func (r *DrawRecordRepository) UpdateNotification(ctx context.Context, record *models.DrawRecord) error {
	query := `
		UPDATE draw_records
		SET notification_status = $2,
			notification_sent_at = $3,
			notification_attempts = $4,
			notification_error = $5
		WHERE id = $1
	`

	result, err := r.q.Exec(ctx, query,
		record.ID,
		record.NotificationStatus,
		record.NotificationSentAt,
		record.NotificationAttempts,
		record.NotificationError,
	)
	if err != nil {
		return fmt.Errorf("failed to update draw notification: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("draw record %d not found", record.ID)
	}

	return nil
}

func scanDrawRecord(row pgx.Row) (*models.DrawRecord, error) {
	var record models.DrawRecord
	err := row.Scan(
		&record.ID,
		&record.SurveyInstanceID,
		&record.Timestamp,
		&record.Seed,
		&record.CandidateCount,
		&record.WinnerToken,
		&record.NotificationStatus,
		&record.NotificationSentAt,
		&record.NotificationAttempts,
		&record.NotificationError,
	)
	if err != nil {
		return nil, err
	}
	return &record, nil
}
