package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateWeights(t *testing.T) {
	tests := []struct {
		name     string
		criteria []Criterion
		want     bool
	}{
		{"empty list", nil, true},
		{"exactly 100", []Criterion{{Weight: 70}, {Weight: 30}}, true},
		{"zero weight allowed", []Criterion{{Weight: 100}, {Weight: 0}}, true},
		{"below 100", []Criterion{{Weight: 50}, {Weight: 30}}, false},
		{"above 100", []Criterion{{Weight: 80}, {Weight: 30}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateWeights(tt.criteria))
		})
	}
}

func TestValidateCriterionInputs(t *testing.T) {
	tests := []struct {
		name    string
		inputs  []CriterionInput
		wantMsg []string
	}{
		{name: "valid", inputs: []CriterionInput{{"Design", 60}, {"Code", 40}}},
		{name: "empty", inputs: nil},
		{
			name:    "case-folded duplicate",
			inputs:  []CriterionInput{{"Design", 50}, {"  DESIGN ", 50}},
			wantMsg: []string{`criterion 1: description "DESIGN" duplicates criterion 0`},
		},
		{
			name:    "blank and short",
			inputs:  []CriterionInput{{" ", 40}, {"Code", 40}},
			wantMsg: []string{"criterion 0: description is required", "weights must total 100%, got 80%"},
		},
		{
			name:    "negative weight",
			inputs:  []CriterionInput{{"Design", 110}, {"Code", -10}},
			wantMsg: []string{"criterion 0: weight 110 outside 0-100", "criterion 1: weight -10 outside 0-100"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCriterionInputs(tt.inputs)
			if len(tt.wantMsg) == 0 {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantMsg, verr.Errors)
		})
	}
}

func TestValidateScore(t *testing.T) {
	for _, s := range []int{MinScore, 5, MaxScore} {
		assert.NoError(t, ValidateScore(s))
	}
	for _, s := range []int{0, -1, 11} {
		assert.True(t, errors.Is(ValidateScore(s), ErrValidation), "score %d", s)
	}
}

func TestSubmissionSupersededBy(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	older := Submission{ID: "b", SubmittedOn: base}
	newer := Submission{ID: "a", SubmittedOn: base.Add(time.Minute)}
	sameTimeHigherID := Submission{ID: "c", SubmittedOn: base}

	assert.True(t, older.SupersededBy(newer))
	assert.False(t, newer.SupersededBy(older))
	assert.True(t, older.SupersededBy(sameTimeHigherID))
	assert.False(t, sameTimeHigherID.SupersededBy(older))
	assert.False(t, older.SupersededBy(older))
}

func TestJudgementKey(t *testing.T) {
	j := Judgement{SubmissionID: "s1", CriterionID: "c1", JudgeID: "j1", TotalScore: 7}
	assert.Equal(t, JudgementKey{"s1", "c1", "j1"}, j.Key())
	assert.Equal(t, "s1/c1/j1", j.Key().String())
}
