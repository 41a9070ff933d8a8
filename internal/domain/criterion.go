package domain

import (
	"strings"

	"golang.org/x/text/cases"
)

// TotalWeight is the sum a non-empty criterion list must reach.
const TotalWeight = 100

// Criterion is one weighted axis on which submissions are judged.
type Criterion struct {
	ID          string `json:"id"`
	ProjectID   string `json:"project_id"`
	Description string `json:"description"`
	// Weight is expressed in percentage points (0-100).
	Weight int `json:"weight"`
	// Position orders criteria for display.
	Position int `json:"position"`
}

// CriterionInput is the caller-supplied shape when defining criteria.
type CriterionInput struct {
	Description string `json:"description" validate:"required,max=255"`
	Weight      int    `json:"weight" validate:"min=0,max=100"`
}

// ValidateWeights reports whether criteria is empty or its weights sum to
// exactly TotalWeight.
func ValidateWeights(criteria []Criterion) bool {
	if len(criteria) == 0 {
		return true
	}
	sum := 0
	for _, c := range criteria {
		sum += c.Weight
	}
	return sum == TotalWeight
}

// ValidateCriterionInputs checks a proposed criterion list before it is
// saved: weights within range and totalling 100, non-blank descriptions, and
// no two descriptions equal under Unicode case folding.
func ValidateCriterionInputs(inputs []CriterionInput) error {
	verr := NewValidationError("criteria")

	folder := cases.Fold()
	seen := make(map[string]int, len(inputs))
	sum := 0
	for i, in := range inputs {
		desc := strings.TrimSpace(in.Description)
		if desc == "" {
			verr.AddErrorf("criterion %d: description is required", i)
		} else {
			key := folder.String(desc)
			if j, dup := seen[key]; dup {
				verr.AddErrorf("criterion %d: description %q duplicates criterion %d", i, desc, j)
			} else {
				seen[key] = i
			}
		}
		if in.Weight < 0 || in.Weight > TotalWeight {
			verr.AddErrorf("criterion %d: weight %d outside 0-%d", i, in.Weight, TotalWeight)
		}
		sum += in.Weight
	}
	if len(inputs) > 0 && sum != TotalWeight {
		verr.AddErrorf("weights must total %d%%, got %d%%", TotalWeight, sum)
	}

	return verr.OrNil()
}
