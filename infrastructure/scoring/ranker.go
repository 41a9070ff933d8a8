package scoring

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/Webtech-MQP/webjam-sub000/internal/domain"
)

// Ranker orders scored entries by composite score, highest first, applying
// a configurable tie-breaking strategy.
type Ranker struct {
	config RankerConfig
}

// RankerConfig selects the tie-breaking strategy.
type RankerConfig struct {
	// TieBreaker defines the strategy for resolving equal composite scores.
	// "earliest_submission": earlier canonical submission first (default)
	// "input_order": keep enumeration order
	// "error": preview in input order, refuse automatic finalization
	TieBreaker TieBreaker `yaml:"tie_breaker" json:"tie_breaker" validate:"required,oneof=earliest_submission input_order error"`
}

// DefaultRankerConfig returns the deterministic earliest-submission strategy.
func DefaultRankerConfig() RankerConfig {
	return RankerConfig{TieBreaker: TieEarliestSubmission}
}

// NewRanker creates a Ranker with a validated config.
func NewRanker(config RankerConfig) (*Ranker, error) {
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &Ranker{config: config}, nil
}

// TieBreaker returns the configured strategy.
func (r *Ranker) TieBreaker() TieBreaker { return r.config.TieBreaker }

// Order returns a sorted copy of entries. The input slice is not modified.
func (r *Ranker) Order(entries []domain.RankedEntry) []domain.RankedEntry {
	out := slices.Clone(entries)
	slices.SortStableFunc(out, func(a, b domain.RankedEntry) int {
		if c := compareScores(a.CompositeScore, b.CompositeScore); c != 0 {
			return c
		}
		if r.config.TieBreaker != TieEarliestSubmission {
			return 0
		}
		if c := a.Submission.SubmittedOn.Compare(b.Submission.SubmittedOn); c != 0 {
			return c
		}
		if c := strings.Compare(a.Instance.TeamName, b.Instance.TeamName); c != 0 {
			return c
		}
		return strings.Compare(a.Instance.ID, b.Instance.ID)
	})
	return out
}

// FinalOrder returns the instance order an automatic finalization would
// persist. Under TieError it fails with ErrTie when any two adjacent entries
// share a composite score.
func (r *Ranker) FinalOrder(entries []domain.RankedEntry) ([]string, error) {
	ordered := r.Order(entries)
	if r.config.TieBreaker == TieError {
		for i := 1; i < len(ordered); i++ {
			if compareScores(ordered[i-1].CompositeScore, ordered[i].CompositeScore) == 0 {
				return nil, fmt.Errorf("%w: %s and %s at %.3f", ErrTie,
					ordered[i-1].Instance.TeamName, ordered[i].Instance.TeamName, ordered[i].CompositeScore)
			}
		}
	}
	return domain.OrderOf(ordered), nil
}

// compareScores orders higher scores first. Scores are quantized to
// scoreScale before comparing so equality stays transitive.
func compareScores(a, b float64) int {
	qa, qb := quantize(a), quantize(b)
	switch {
	case qa > qb:
		return -1
	case qa < qb:
		return 1
	}
	return 0
}

func quantize(score float64) int64 {
	return int64(math.Round(score * scoreScale))
}

// ValidateManualOrder checks that manualOrder names every rankable instance
// exactly once and nothing else.
func ValidateManualOrder(rankable []domain.RankedEntry, manualOrder []string) error {
	verr := domain.NewValidationError("manual order")

	expected := make(map[string]bool, len(rankable))
	for _, e := range rankable {
		expected[e.Instance.ID] = false
	}
	for _, id := range manualOrder {
		used, known := expected[id]
		switch {
		case !known:
			verr.AddErrorf("instance %s is not a ranked instance of this project", id)
		case used:
			verr.AddErrorf("instance %s listed more than once", id)
		default:
			expected[id] = true
		}
	}
	for _, e := range rankable {
		if !expected[e.Instance.ID] {
			verr.AddErrorf("instance %s missing", e.Instance.ID)
		}
	}

	if verr.HasErrors() {
		return fmt.Errorf("%w: %w", ErrManualOrder, verr)
	}
	return nil
}
