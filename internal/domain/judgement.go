package domain

import (
	"fmt"
	"time"
)

// Inclusive bounds for a judge's rating.
const (
	MinScore = 1
	MaxScore = 10
)

// Judgement is one judge's rating of one submission on one criterion. The
// triple (SubmissionID, CriterionID, JudgeID) is its natural key.
type Judgement struct {
	ID           string    `json:"id"`
	SubmissionID string    `json:"submission_id"`
	CriterionID  string    `json:"criterion_id"`
	JudgeID      string    `json:"judge_id"`
	TotalScore   int       `json:"total_score"`
	Notes        string    `json:"notes,omitempty"`
	JudgedAt     time.Time `json:"judged_at"`
}

// JudgementKey is the natural key of a Judgement.
type JudgementKey struct {
	SubmissionID string
	CriterionID  string
	JudgeID      string
}

// Key returns the natural key of j.
func (j Judgement) Key() JudgementKey {
	return JudgementKey{SubmissionID: j.SubmissionID, CriterionID: j.CriterionID, JudgeID: j.JudgeID}
}

// String renders the key for logs and error messages.
func (k JudgementKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.SubmissionID, k.CriterionID, k.JudgeID)
}

// ValidateScore rejects ratings outside [MinScore, MaxScore].
func ValidateScore(score int) error {
	if score < MinScore || score > MaxScore {
		return NewValidationError("judgement",
			fmt.Sprintf("score %d outside %d-%d", score, MinScore, MaxScore))
	}
	return nil
}
