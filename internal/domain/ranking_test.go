package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var rankTime = time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)

func TestRankingsFromOrder(t *testing.T) {
	rankings := RankingsFromOrder("p1", []string{"i2", "i1", "i3"}, rankTime)

	require.Len(t, rankings, 3)
	for i, r := range rankings {
		assert.Equal(t, i+1, r.Rank)
		assert.Equal(t, "p1", r.ProjectID)
		assert.Equal(t, rankTime, r.CreatedAt)
	}
	assert.Equal(t, "i2", rankings[0].InstanceID)
	assert.NoError(t, CheckRankPermutation(rankings))
}

func TestCheckRankPermutation(t *testing.T) {
	tests := []struct {
		name     string
		rankings []Ranking
		wantErr  bool
	}{
		{"empty", nil, false},
		{"valid", []Ranking{{InstanceID: "a", Rank: 2}, {InstanceID: "b", Rank: 1}}, false},
		{"gap", []Ranking{{InstanceID: "a", Rank: 1}, {InstanceID: "b", Rank: 3}}, true},
		{"duplicate rank", []Ranking{{InstanceID: "a", Rank: 1}, {InstanceID: "b", Rank: 1}}, true},
		{"duplicate instance", []Ranking{{InstanceID: "a", Rank: 1}, {InstanceID: "a", Rank: 2}}, true},
		{"zero rank", []Ranking{{InstanceID: "a", Rank: 0}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckRankPermutation(tt.rankings)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrValidation))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOrderOf(t *testing.T) {
	entries := []RankedEntry{{Instance: Instance{ID: "x"}}, {Instance: Instance{ID: "y"}}}
	assert.Equal(t, []string{"x", "y"}, OrderOf(entries))
	assert.Empty(t, OrderOf(nil))
}

func TestCompletionNotifications(t *testing.T) {
	project := Project{ID: "p1", Title: "Spring Jam"}
	instances := []Instance{
		{ID: "a", TeamName: "TeamA", Members: []string{"ana", "abe"}},
		{ID: "b", TeamName: "TeamB", Members: []string{"bea"}},
		{ID: "g", TeamName: "Ghost", Members: []string{"gus"}},
	}
	rankings := RankingsFromOrder("p1", []string{"a", "b"}, rankTime)
	a := "a"
	awards := []AwardAssignment{
		{ProjectID: "p1", AwardID: "best-design", InstanceID: &a},
		{ProjectID: "p1", AwardID: "crowd-choice"},
	}

	notes := CompletionNotifications(project, instances, rankings, awards, rankTime)

	var completed, granted []Notification
	for _, n := range notes {
		assert.Equal(t, "p1", n.ProjectID)
		assert.Equal(t, rankTime, n.CreatedAt)
		switch n.Kind {
		case NotificationProjectCompleted:
			completed = append(completed, n)
		case NotificationAwardGranted:
			granted = append(granted, n)
		}
	}
	require.Len(t, completed, 4, "every member of every team hears about completion")
	require.Len(t, granted, 2, "both TeamA members hear about the award")

	byRecipient := make(map[string]Notification)
	for _, n := range completed {
		byRecipient[n.RecipientID] = n
	}
	assert.Equal(t, 1, byRecipient["ana"].Payload["rank"])
	assert.Equal(t, 2, byRecipient["bea"].Payload["rank"])
	assert.Equal(t, 2, byRecipient["bea"].Payload["ranked_teams"])
	_, ranked := byRecipient["gus"].Payload["rank"]
	assert.False(t, ranked, "unranked teams carry no rank")

	for _, n := range granted {
		assert.Equal(t, "best-design", n.Payload["award_id"])
	}
}
