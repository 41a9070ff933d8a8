package scoring

import (
	"fmt"

	"github.com/Webtech-MQP/webjam-sub000/internal/domain"
)

var _ domain.Aggregator = (*WeightedComposite)(nil)

// WeightedComposite reduces a submission's judgements to one composite score:
// the per-criterion arithmetic mean across judges, weighted by criterion.
//
// Algorithm:
//  1. Group judgements by criterion, ignoring unknown criteria.
//  2. Mean of TotalScore per criterion.
//  3. Composite = Σ(weight × mean) / 100 under ZeroCounts, or
//     Σ(weight × mean) / Σ(weight of scored criteria) under ZeroRenormalize.
//
// Weighted sums are accumulated in integer percentage points and divided once
// at the end, so 70/30 weights with means 7 and 10 give exactly 7.9.
//
// Concurrency: stateless after construction and safe for concurrent use.
type WeightedComposite struct {
	config CompositeConfig
}

// CompositeConfig controls how unscored criteria are treated.
type CompositeConfig struct {
	ZeroJudgementPolicy ZeroJudgementPolicy `yaml:"zero_judgement_policy" json:"zero_judgement_policy" validate:"required,oneof=zero renormalize"`
}

// DefaultCompositeConfig returns the observed production behavior: an
// unscored criterion contributes zero.
func DefaultCompositeConfig() CompositeConfig {
	return CompositeConfig{ZeroJudgementPolicy: ZeroCounts}
}

// NewWeightedComposite creates a WeightedComposite with a validated config.
func NewWeightedComposite(config CompositeConfig) (*WeightedComposite, error) {
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &WeightedComposite{config: config}, nil
}

// Policy returns the configured zero-judgement policy.
func (w *WeightedComposite) Policy() ZeroJudgementPolicy { return w.config.ZeroJudgementPolicy }

// Composite implements domain.Aggregator.
func (w *WeightedComposite) Composite(criteria []domain.Criterion, judgements []domain.Judgement) float64 {
	if len(criteria) == 0 || len(judgements) == 0 {
		return 0
	}

	type tally struct {
		sum   int
		count int
	}
	tallies := make(map[string]*tally, len(criteria))
	for _, c := range criteria {
		tallies[c.ID] = &tally{}
	}
	for _, j := range judgements {
		if t, ok := tallies[j.CriterionID]; ok {
			t.sum += j.TotalScore
			t.count++
		}
	}

	var weighted float64
	scoredWeight := 0
	for _, c := range criteria {
		t := tallies[c.ID]
		if t.count == 0 {
			continue
		}
		mean := float64(t.sum) / float64(t.count)
		weighted += float64(c.Weight) * mean
		scoredWeight += c.Weight
	}

	switch w.config.ZeroJudgementPolicy {
	case ZeroRenormalize:
		if scoredWeight == 0 {
			return 0
		}
		return weighted / float64(scoredWeight)
	default:
		return weighted / domain.TotalWeight
	}
}

// CriterionMeans returns the mean rating per criterion ID for the criteria
// that received at least one judgement. It is exposed for score breakdowns.
func CriterionMeans(judgements []domain.Judgement) map[string]float64 {
	sums := make(map[string]int)
	counts := make(map[string]int)
	for _, j := range judgements {
		sums[j.CriterionID] += j.TotalScore
		counts[j.CriterionID]++
	}
	means := make(map[string]float64, len(sums))
	for id, sum := range sums {
		means[id] = float64(sum) / float64(counts[id])
	}
	return means
}
