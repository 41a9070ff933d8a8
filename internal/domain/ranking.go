package domain

import (
	"fmt"
	"time"
)

// RankedEntry is one row of a ranking preview: an instance, the canonical
// submission that represents it and that submission's composite score.
type RankedEntry struct {
	Instance       Instance   `json:"instance"`
	Submission     Submission `json:"submission"`
	CompositeScore float64    `json:"composite_score"`

	// CriterionMeans holds the mean rating per scored criterion ID.
	CriterionMeans map[string]float64 `json:"criterion_means,omitempty"`
}

// Ranking is a persisted, immutable placement. Rank 1 is best.
type Ranking struct {
	ProjectID  string    `json:"project_id"`
	InstanceID string    `json:"instance_id"`
	Rank       int       `json:"rank"`
	CreatedAt  time.Time `json:"created_at"`
}

// AwardAssignment maps an award to at most one instance of a project. A nil
// InstanceID records an award deliberately left unassigned.
type AwardAssignment struct {
	ProjectID  string  `json:"project_id"`
	AwardID    string  `json:"award_id"`
	InstanceID *string `json:"instance_id"`
}

// RankingsFromOrder assigns 1-based ranks following order.
func RankingsFromOrder(projectID string, order []string, now time.Time) []Ranking {
	out := make([]Ranking, len(order))
	for i, id := range order {
		out[i] = Ranking{ProjectID: projectID, InstanceID: id, Rank: i + 1, CreatedAt: now}
	}
	return out
}

// CheckRankPermutation verifies that rankings form the contiguous permutation
// 1..N with one row per instance.
func CheckRankPermutation(rankings []Ranking) error {
	n := len(rankings)
	seenRank := make([]bool, n+1)
	seenInstance := make(map[string]struct{}, n)
	for _, r := range rankings {
		if r.Rank < 1 || r.Rank > n {
			return fmt.Errorf("%w: rank %d outside 1-%d", ErrValidation, r.Rank, n)
		}
		if seenRank[r.Rank] {
			return fmt.Errorf("%w: duplicate rank %d", ErrValidation, r.Rank)
		}
		seenRank[r.Rank] = true
		if _, dup := seenInstance[r.InstanceID]; dup {
			return fmt.Errorf("%w: instance %s ranked twice", ErrValidation, r.InstanceID)
		}
		seenInstance[r.InstanceID] = struct{}{}
	}
	return nil
}

// OrderOf returns the instance IDs of entries in their current order.
func OrderOf(entries []RankedEntry) []string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.Instance.ID
	}
	return ids
}
