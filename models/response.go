package models

import (
	"encoding/json"
	"time"
)

// Response represents one respondent's submitted answers.
// IdentityDigest and DrawToken are either both set (lottery entry) or both nil.
type Response struct {
	ID               string          `db:"id"`
	SurveyInstanceID string          `db:"survey_instance_id"`
	Answers          json.RawMessage `db:"answers"`
	IdentityDigest   *string         `db:"identity_digest"`
	DrawToken        *string         `db:"draw_token"`
	AnonymizedRef    *string         `db:"anonymized_ref"`
	SubmittedAt      time.Time       `db:"submitted_at"`
}

// IsLotteryEntry returns true if the response is an eligible draw candidate
func (r *Response) IsLotteryEntry() bool {
	return r.IdentityDigest != nil && r.DrawToken != nil
}

// DrawCandidate is the projection of a Response used by the draw engine.
// It deliberately carries neither the identity digest nor the answers.
type DrawCandidate struct {
	ResponseID string `db:"id"`
	DrawToken  string `db:"draw_token"`
}

// SubmissionResult is returned to the respondent after a successful submission
type SubmissionResult struct {
	ResponseID string  `json:"responseId"`
	DrawToken  *string `json:"drawToken,omitempty"`
	HasLottery bool    `json:"hasLottery"`
}
