package application

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Webtech-MQP/webjam-sub000/internal/domain"
	"github.com/Webtech-MQP/webjam-sub000/internal/testutils"
)

// TestDefineCriteria covers replacement of a project's criteria and every
// input rejection.
func TestDefineCriteria(t *testing.T) {
	tests := []struct {
		name    string
		inputs  []domain.CriterionInput
		wantErr string
	}{
		{
			name:   "weights total 100",
			inputs: []domain.CriterionInput{{Description: "Design", Weight: 60}, {Description: "Code", Weight: 40}},
		},
		{
			name:   "empty list clears criteria",
			inputs: nil,
		},
		{
			name:    "weights short of 100",
			inputs:  []domain.CriterionInput{{Description: "Design", Weight: 60}, {Description: "Code", Weight: 30}},
			wantErr: "weights must total 100%, got 90%",
		},
		{
			name:    "duplicate descriptions under case folding",
			inputs:  []domain.CriterionInput{{Description: "Design", Weight: 50}, {Description: "DESIGN", Weight: 50}},
			wantErr: "duplicates criterion 0",
		},
		{
			name:    "blank description",
			inputs:  []domain.CriterionInput{{Description: "  ", Weight: 100}},
			wantErr: "description is required",
		},
		{
			name:    "weight above range",
			inputs:  []domain.CriterionInput{{Description: "Design", Weight: 120}, {Description: "Code", Weight: -20}},
			wantErr: "weight 120 outside 0-100",
		},
		{
			name:    "description too long",
			inputs:  []domain.CriterionInput{{Description: strings.Repeat("x", 256), Weight: 100}},
			wantErr: "max",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			jam := testutils.SeedJam(t, h.store, domain.StatusActive,
				[]testutils.CriterionSpec{{Description: "Overall", Weight: 100}}, nil)
			ctx := context.Background()

			saved, err := h.criteria.DefineCriteria(ctx, testutils.Admin, jam.Project.ID, tt.inputs)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.ErrorIs(t, err, domain.ErrValidation)
				assert.Contains(t, err.Error(), tt.wantErr)

				kept, err := h.criteria.ListCriteria(ctx, jam.Project.ID)
				require.NoError(t, err)
				assert.Equal(t, jam.Criteria, kept)
				return
			}
			require.NoError(t, err)
			assert.Len(t, saved, len(tt.inputs))
			assert.True(t, h.criteria.ValidateWeights(saved))

			listed, err := h.criteria.ListCriteria(ctx, jam.Project.ID)
			require.NoError(t, err)
			assert.ElementsMatch(t, saved, listed)
			for i, c := range listed {
				assert.Equal(t, i, c.Position)
				assert.Equal(t, tt.inputs[i].Description, c.Description)
			}
		})
	}
}

// TestDefineCriteria_FrozenOnceJudging rejects edits after submissions close.
func TestDefineCriteria_FrozenOnceJudging(t *testing.T) {
	h := newHarness(t)
	jam := testutils.TwoTeamJam(t, h.store)

	_, err := h.criteria.DefineCriteria(context.Background(), testutils.Admin, jam.Project.ID,
		[]domain.CriterionInput{{Description: "Overall", Weight: 100}})
	var stateErr *domain.StateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, domain.StatusJudging, stateErr.Status)

	_, err = h.criteria.DefineCriteria(context.Background(), testutils.JudgeAlice, jam.Project.ID, nil)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

// TestValidateWeights exercises the registry's weight check directly.
func TestValidateWeights(t *testing.T) {
	h := newHarness(t)
	tests := []struct {
		name     string
		criteria []domain.Criterion
		want     bool
	}{
		{"empty", nil, true},
		{"exact", []domain.Criterion{{Weight: 70}, {Weight: 30}}, true},
		{"single full weight", []domain.Criterion{{Weight: 100}}, true},
		{"under", []domain.Criterion{{Weight: 70}, {Weight: 20}}, false},
		{"over", []domain.Criterion{{Weight: 70}, {Weight: 40}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, h.criteria.ValidateWeights(tt.criteria))
		})
	}
}
