package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Webtech-MQP/webjam-sub000/internal/domain"
	"github.com/Webtech-MQP/webjam-sub000/internal/ports"
	"github.com/Webtech-MQP/webjam-sub000/internal/testutils"
)

// TestAdvanceProject_Lifecycle walks a project forward and checks that
// skipped or repeated events are rejected.
func TestAdvanceProject_Lifecycle(t *testing.T) {
	h := newHarness(t)
	jam := testutils.SeedJam(t, h.store, domain.StatusUpcoming,
		[]testutils.CriterionSpec{{Description: "Overall", Weight: 100}}, nil)
	ctx := context.Background()
	id := jam.Project.ID

	_, err := h.lifecycle.AdvanceProject(ctx, testutils.Admin, id, domain.EventCloseSubmissions)
	var stateErr *domain.StateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, domain.StatusUpcoming, stateErr.Status)

	p, err := h.lifecycle.AdvanceProject(ctx, testutils.Admin, id, domain.EventStart)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, p.Status)

	_, err = h.lifecycle.AdvanceProject(ctx, testutils.Admin, id, domain.EventStart)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	p, err = h.lifecycle.AdvanceProject(ctx, testutils.Admin, id, domain.EventCloseSubmissions)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusJudging, p.Status)

	assert.Equal(t, []string{ports.LiveProjectAdvanced, ports.LiveProjectAdvanced}, h.events.Types())
}

// TestAdvanceProject_Rejections covers authorization, the completion event
// and unknown projects.
func TestAdvanceProject_Rejections(t *testing.T) {
	h := newHarness(t)
	jam := testutils.TwoTeamJam(t, h.store)

	tests := []struct {
		name      string
		principal domain.Principal
		projectID string
		event     domain.ProjectEvent
		wantErr   error
	}{
		{"judge may not advance", testutils.JudgeAlice, jam.Project.ID, domain.EventStart, domain.ErrForbidden},
		{"complete needs the completion operation", testutils.Admin, jam.Project.ID, domain.EventComplete, domain.ErrValidation},
		{"unknown project", testutils.Admin, "missing", domain.EventStart, domain.ErrNotFound},
		{"no regression from judging", testutils.Admin, jam.Project.ID, domain.EventStart, domain.ErrInvalidState},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.lifecycle.AdvanceProject(context.Background(), tt.principal, tt.projectID, tt.event)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

// TestCompleteProject_AwardsAndNotifications completes a project with one
// assigned and one unassigned award and checks everything written with it.
func TestCompleteProject_AwardsAndNotifications(t *testing.T) {
	h := newHarness(t)
	jam := testutils.TwoTeamJam(t, h.store)
	h.scoreTwoTeams(t, jam)
	ctx := context.Background()

	teamA := jam.Teams["TeamA"].ID
	project, err := h.lifecycle.CompleteProject(ctx, testutils.Admin, jam.Project.ID, nil, map[string]*string{
		"best-design":  &teamA,
		"crowd-choice": nil,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, project.Status)

	awards, err := h.lifecycle.GetAwards(ctx, jam.Project.ID)
	require.NoError(t, err)
	require.Len(t, awards, 2)
	assert.Equal(t, "best-design", awards[0].AwardID)
	require.NotNil(t, awards[0].InstanceID)
	assert.Equal(t, teamA, *awards[0].InstanceID)
	assert.Equal(t, "crowd-choice", awards[1].AwardID)
	assert.Nil(t, awards[1].InstanceID)

	rankings, err := h.lifecycle.GetRanking(ctx, jam.Project.ID)
	require.NoError(t, err)
	assert.Len(t, rankings, 2)

	// Three members are told their rank and TeamA's two members their award.
	assert.Equal(t, 5, h.store.PendingNotifications())
	assert.Contains(t, h.events.Types(), ports.LiveProjectCompleted)
}

// TestCompleteProject_InvalidAward rejects awards for instances outside the
// ranking and leaves the project untouched.
func TestCompleteProject_InvalidAward(t *testing.T) {
	h := newHarness(t)
	jam := testutils.SeedJam(t, h.store, domain.StatusJudging,
		[]testutils.CriterionSpec{{Description: "Overall", Weight: 100}},
		[]testutils.TeamSpec{
			{Name: "Submitted", Members: []string{"sam"}, SubmittedAt: []time.Time{testutils.BaseTime}},
			{Name: "Ghost", Members: []string{"gus"}},
		},
	)
	ctx := context.Background()

	ghost := jam.Teams["Ghost"].ID
	foreign := "not-a-team"
	for name, target := range map[string]*string{"unranked team": &ghost, "foreign team": &foreign} {
		t.Run(name, func(t *testing.T) {
			_, err := h.lifecycle.CompleteProject(ctx, testutils.Admin, jam.Project.ID, nil,
				map[string]*string{"best-design": target})
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}

	project, err := h.lifecycle.GetProject(ctx, jam.Project.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusJudging, project.Status)
	assert.Zero(t, h.store.PendingNotifications())

	_, err = h.lifecycle.CompleteProject(ctx, testutils.JudgeAlice, jam.Project.ID, nil, nil)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

// TestGetRanking_BeforeCompletion returns an empty history.
func TestGetRanking_BeforeCompletion(t *testing.T) {
	h := newHarness(t)
	jam := testutils.TwoTeamJam(t, h.store)

	rankings, err := h.lifecycle.GetRanking(context.Background(), jam.Project.ID)
	require.NoError(t, err)
	assert.Empty(t, rankings)

	_, err = h.lifecycle.GetAwards(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
