package domain

// Aggregator combines the judgements recorded against one submission into a
// single composite score using the project's criterion weights.
//
// Implementations must be pure: the same inputs always produce the same
// score and neither slice is modified. Judgements that reference a criterion
// absent from criteria are ignored.
//
// Example:
//
//	criteria := []Criterion{{ID: "A", Weight: 70}, {ID: "B", Weight: 30}}
//	judgements := []Judgement{
//		{CriterionID: "A", TotalScore: 8},
//		{CriterionID: "A", TotalScore: 6},
//		{CriterionID: "B", TotalScore: 10},
//	}
//	score := aggregator.Composite(criteria, judgements) // 7.9
type Aggregator interface {
	Composite(criteria []Criterion, judgements []Judgement) float64
}
