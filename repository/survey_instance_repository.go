package repository

import (
	"context"
	"fmt"
	"time"

	"surveydraw/database"
	"surveydraw/models"

	"github.com/jackc/pgx/v5"
)

const surveyInstanceColumns = `id, status, is_active, expires_at, prize_id, prize_description, draw_status, created_at, archived_at`

// SurveyInstanceRepository implements survey instance data access
type SurveyInstanceRepository struct {
	q queryable
}

// NewSurveyInstanceRepository creates a new survey instance repository
func NewSurveyInstanceRepository(db *database.DB) *SurveyInstanceRepository {
	return &SurveyInstanceRepository{q: db.Pool}
}

// newSurveyInstanceRepositoryWithTx creates a new survey instance repository with a transaction
func newSurveyInstanceRepositoryWithTx(tx queryable) *SurveyInstanceRepository {
	return &SurveyInstanceRepository{q: tx}
}

// GetByID retrieves a survey instance by ID
func (r *SurveyInstanceRepository) GetByID(ctx context.Context, id string) (*models.SurveyInstance, error) {
	query := `SELECT ` + surveyInstanceColumns + ` FROM survey_instances WHERE id = $1`

	survey, err := scanSurveyInstance(r.q.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get survey instance %s: %w", id, err)
	}

	return survey, nil
}

// GetByIDForUpdate retrieves a survey instance by ID with a row lock
func (r *SurveyInstanceRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.SurveyInstance, error) {
	query := `SELECT ` + surveyInstanceColumns + ` FROM survey_instances WHERE id = $1 FOR UPDATE`

	survey, err := scanSurveyInstance(r.q.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get survey instance %s for update: %w", id, err)
	}

	return survey, nil
}

// Create inserts a survey instance. Draw status follows the prize: pending when set, none otherwise.
func (r *SurveyInstanceRepository) Create(ctx context.Context, survey *models.SurveyInstance) error {
	if survey.PrizeID != nil && *survey.PrizeID == "" {
		survey.PrizeID = nil
	}
	if survey.DrawStatus == "" {
		survey.DrawStatus = models.DrawStatusNone
		if survey.HasLottery() {
			survey.DrawStatus = models.DrawStatusPending
		}
	}
	if survey.Status == "" {
		survey.Status = models.SurveyStatusOpen
	}

	query := `
		INSERT INTO survey_instances (id, status, is_active, expires_at, prize_id, prize_description, draw_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`

	err := r.q.QueryRow(ctx, query,
		survey.ID,
		survey.Status,
		survey.IsActive,
		survey.ExpiresAt,
		survey.PrizeID,
		survey.PrizeDescription,
		survey.DrawStatus,
	).Scan(&survey.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create survey instance: %w", err)
	}

	return nil
}

// MarkDrawCompleted moves the instance to completed unless it already is, or lost its prize
func (r *SurveyInstanceRepository) MarkDrawCompleted(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE survey_instances
		SET draw_status = 'completed'
		WHERE id = $1
		  AND draw_status <> 'completed'
		  AND prize_id IS NOT NULL
	`

	result, err := r.q.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to mark draw completed for %s: %w", id, err)
	}

	return result.RowsAffected() == 1, nil
}

// ListDueDraws returns lottery instances that are closed or expired, not archived and not yet drawn.
// Instances without any lottery entry are left out; they stay undrawn until an entry exists.
func (r *SurveyInstanceRepository) ListDueDraws(ctx context.Context, now time.Time) ([]*models.SurveyInstance, error) {
	query := `
		SELECT ` + surveyInstanceColumns + `
		FROM survey_instances
		WHERE prize_id IS NOT NULL
		  AND draw_status <> 'completed'
		  AND archived_at IS NULL
		  AND (status = 'closed' OR (expires_at IS NOT NULL AND expires_at <= $1))
		  AND EXISTS (
		      SELECT 1 FROM responses r
		      WHERE r.survey_instance_id = survey_instances.id
		        AND r.identity_digest IS NOT NULL
		        AND r.draw_token IS NOT NULL
		  )
		ORDER BY created_at ASC
	`

	rows, err := r.q.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list due draws: %w", err)
	}
	defer rows.Close()

	var surveys []*models.SurveyInstance
	for rows.Next() {
		survey, err := scanSurveyInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan survey instance: %w", err)
		}
		surveys = append(surveys, survey)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate survey instances: %w", err)
	}

	return surveys, nil
}

func scanSurveyInstance(row pgx.Row) (*models.SurveyInstance, error) {
	var survey models.SurveyInstance
	err := row.Scan(
		&survey.ID,
		&survey.Status,
		&survey.IsActive,
		&survey.ExpiresAt,
		&survey.PrizeID,
		&survey.PrizeDescription,
		&survey.DrawStatus,
		&survey.CreatedAt,
		&survey.ArchivedAt,
	)
	if err != nil {
		return nil, err
	}
	return &survey, nil
}
