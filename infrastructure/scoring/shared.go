// Package scoring implements the aggregation, canonical-submission selection
// and ordering steps of the judging core.
package scoring

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// TieBreaker represents the strategy for ordering submissions whose
// composite scores are equal.
type TieBreaker string

// Supported tie-breaking strategies.
const (
	// TieEarliestSubmission ranks the earlier canonical submission first,
	// then falls back to team name and instance ID.
	TieEarliestSubmission TieBreaker = "earliest_submission"

	// TieInputOrder keeps the order in which instances were enumerated.
	TieInputOrder TieBreaker = "input_order"

	// TieError refuses to finalize an automatic ranking that contains ties;
	// an administrator must supply a manual order instead.
	TieError TieBreaker = "error"
)

// ZeroJudgementPolicy decides how a criterion nobody scored affects the
// composite score.
type ZeroJudgementPolicy string

// Supported zero-judgement policies.
const (
	// ZeroCounts treats an unscored criterion as a mean of 0 while its weight
	// still counts, pulling the composite down.
	ZeroCounts ZeroJudgementPolicy = "zero"

	// ZeroRenormalize drops unscored criteria and rescales the remaining
	// weights so they total 100.
	ZeroRenormalize ZeroJudgementPolicy = "renormalize"
)

// scoreScale is the fixed precision at which composite scores are compared:
// scores that round to the same millionth tie.
const scoreScale = 1e6

// Common errors returned by the scoring components.
var (
	// ErrTie is returned when composite scores tie and TieError is configured.
	ErrTie = errors.New("multiple submissions tied on composite score")

	// ErrManualOrder is returned when a manual order is not a permutation of
	// the rankable instances.
	ErrManualOrder = errors.New("manual order is not a permutation of ranked instances")
)

// Package-level validator instance for configuration validation.
// Uses go-playground/validator v10 for struct tag-based validation.
var validate = validator.New()
