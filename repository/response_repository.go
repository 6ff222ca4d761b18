package repository

import (
	"context"
	"errors"
	"fmt"

	"surveydraw/database"
	"surveydraw/models"
	"surveydraw/service"

	"github.com/jackc/pgx/v5"
)

// identityIndex is the partial unique index enforcing one lottery entry per participant per instance
const identityIndex = "uq_responses_instance_identity"

// ResponseRepository implements response data access
type ResponseRepository struct {
	q queryable
}

// NewResponseRepository creates a new response repository
func NewResponseRepository(db *database.DB) *ResponseRepository {
	return &ResponseRepository{q: db.Pool}
}

// newResponseRepositoryWithTx creates a new response repository with a transaction
func newResponseRepositoryWithTx(tx queryable) *ResponseRepository {
	return &ResponseRepository{q: tx}
}

// Create inserts a response. Deduplication relies solely on the partial unique index.
// A draw token clash inserts nothing and returns ErrDrawTokenCollision without aborting
// the surrounding transaction, so the caller may retry with a fresh token.
func (r *ResponseRepository) Create(ctx context.Context, response *models.Response) error {
	query := `
		INSERT INTO responses (id, survey_instance_id, answers, identity_digest, draw_token)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (draw_token) DO NOTHING
		RETURNING submitted_at
	`

	err := r.q.QueryRow(ctx, query,
		response.ID,
		response.SurveyInstanceID,
		response.Answers,
		response.IdentityDigest,
		response.DrawToken,
	).Scan(&response.SubmittedAt)
	if isUniqueViolation(err, identityIndex) {
		return service.ErrDuplicateParticipant
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return service.ErrDrawTokenCollision
	}
	if err != nil {
		return fmt.Errorf("failed to create response: %w", err)
	}

	return nil
}

// SetAnonymizedRef attaches the anonymized reference to a response
func (r *ResponseRepository) SetAnonymizedRef(ctx context.Context, responseID string, ref string) error {
	query := `UPDATE responses SET anonymized_ref = $2 WHERE id = $1`

	result, err := r.q.Exec(ctx, query, responseID, ref)
	if err != nil {
		return fmt.Errorf("failed to set anonymized ref: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("response %s not found", responseID)
	}

	return nil
}

// ListDrawCandidates returns every lottery entry of an instance ordered by submission time
func (r *ResponseRepository) ListDrawCandidates(ctx context.Context, surveyInstanceID string) ([]*models.DrawCandidate, error) {
	query := `
		SELECT id, draw_token
		FROM responses
		WHERE survey_instance_id = $1
		  AND identity_digest IS NOT NULL
		  AND draw_token IS NOT NULL
		ORDER BY submitted_at ASC, id ASC
	`

	rows, err := r.q.Query(ctx, query, surveyInstanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list draw candidates: %w", err)
	}
	defer rows.Close()

	var candidates []*models.DrawCandidate
	for rows.Next() {
		var candidate models.DrawCandidate
		if err := rows.Scan(&candidate.ResponseID, &candidate.DrawToken); err != nil {
			return nil, fmt.Errorf("failed to scan draw candidate: %w", err)
		}
		candidates = append(candidates, &candidate)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate draw candidates: %w", err)
	}

	return candidates, nil
}

// GetByDrawToken retrieves the response holding a draw token
func (r *ResponseRepository) GetByDrawToken(ctx context.Context, surveyInstanceID string, drawToken string) (*models.Response, error) {
	query := `
		SELECT id, survey_instance_id, answers, identity_digest, draw_token, anonymized_ref, submitted_at
		FROM responses
		WHERE survey_instance_id = $1 AND draw_token = $2
	`

	var response models.Response
	err := r.q.QueryRow(ctx, query, surveyInstanceID, drawToken).Scan(
		&response.ID,
		&response.SurveyInstanceID,
		&response.Answers,
		&response.IdentityDigest,
		&response.DrawToken,
		&response.AnonymizedRef,
		&response.SubmittedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get response by draw token: %w", err)
	}

	return &response, nil
}
