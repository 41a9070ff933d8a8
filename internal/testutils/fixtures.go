// Package testutils builds fixture projects and recording collaborators for
// tests across packages.
package testutils

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Webtech-MQP/webjam-sub000/infrastructure/storage/memory"
	"github.com/Webtech-MQP/webjam-sub000/internal/domain"
)

// Principals used throughout the tests.
var (
	Admin       = domain.Principal{ID: "admin-1", Role: domain.RoleAdmin}
	JudgeAlice  = domain.Principal{ID: "judge-alice", Role: domain.RoleJudge}
	JudgeBob    = domain.Principal{ID: "judge-bob", Role: domain.RoleJudge}
	Participant = domain.Principal{ID: "participant-1", Role: domain.RoleParticipant}
)

// BaseTime anchors fixture timestamps.
var BaseTime = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

// CriterionSpec describes a fixture criterion.
type CriterionSpec struct {
	Description string
	Weight      int
}

// TeamSpec describes a fixture team. One submission is created per entry in
// SubmittedAt; a team with none is enrolled but never submits.
type TeamSpec struct {
	Name        string
	Members     []string
	SubmittedAt []time.Time
}

// Jam is a seeded project.
type Jam struct {
	Store    *memory.Store
	Project  domain.Project
	Criteria []domain.Criterion
	// Teams maps team name to instance, submissions included.
	Teams map[string]domain.Instance
	// Latest maps team name to its most recent submission.
	Latest map[string]domain.Submission
}

// CriterionID returns the ID of the criterion with the given description.
func (j Jam) CriterionID(t testing.TB, description string) string {
	t.Helper()
	for _, c := range j.Criteria {
		if c.Description == description {
			return c.ID
		}
	}
	t.Fatalf("no criterion %q", description)
	return ""
}

// SeedJam creates a project in store with criteria and teams and advances it
// to status.
func SeedJam(
	t testing.TB,
	store *memory.Store,
	status domain.ProjectStatus,
	criteria []CriterionSpec,
	teams []TeamSpec,
) Jam {
	t.Helper()
	ctx := context.Background()

	project, err := store.CreateProject(ctx, domain.Project{Title: "Spring Jam", Status: domain.StatusUpcoming})
	require.NoError(t, err)

	crit := make([]domain.Criterion, len(criteria))
	for i, c := range criteria {
		crit[i] = domain.Criterion{ProjectID: project.ID, Description: c.Description, Weight: c.Weight}
	}
	saved, err := store.ReplaceCriteria(ctx, project.ID, crit)
	require.NoError(t, err)

	jam := Jam{
		Store:    store,
		Criteria: saved,
		Teams:    make(map[string]domain.Instance),
		Latest:   make(map[string]domain.Submission),
	}
	for _, ts := range teams {
		inst, err := store.CreateInstance(ctx, domain.Instance{ProjectID: project.ID, TeamName: ts.Name, Members: ts.Members})
		require.NoError(t, err)
		for _, at := range ts.SubmittedAt {
			sub, err := store.CreateSubmission(ctx, domain.Submission{
				InstanceID:    inst.ID,
				RepositoryURL: "https://github.com/example/" + ts.Name,
				SubmittedOn:   at,
			})
			require.NoError(t, err)
			if prev, ok := jam.Latest[ts.Name]; !ok || prev.SupersededBy(sub) {
				jam.Latest[ts.Name] = sub
			}
		}
		inst, err = store.GetInstance(ctx, inst.ID)
		require.NoError(t, err)
		jam.Teams[ts.Name] = inst
	}

	path := map[domain.ProjectStatus][]domain.ProjectStatus{
		domain.StatusUpcoming: nil,
		domain.StatusActive:   {domain.StatusActive},
		domain.StatusJudging:  {domain.StatusActive, domain.StatusJudging},
	}
	steps, ok := path[status]
	require.True(t, ok, "cannot seed a %s project", status)
	from := domain.StatusUpcoming
	for _, to := range steps {
		project, err = store.TransitionProject(ctx, project.ID, from, to)
		require.NoError(t, err)
		from = to
	}
	jam.Project = project
	return jam
}

// TwoTeamJam seeds a judging project with criteria Design (70) and Tech (30)
// and teams TeamA and TeamB, each with one submission.
func TwoTeamJam(t testing.TB, store *memory.Store) Jam {
	t.Helper()
	return SeedJam(t, store, domain.StatusJudging,
		[]CriterionSpec{{"Design", 70}, {"Tech", 30}},
		[]TeamSpec{
			{Name: "TeamA", Members: []string{"ana", "abe"}, SubmittedAt: []time.Time{BaseTime}},
			{Name: "TeamB", Members: []string{"bea"}, SubmittedAt: []time.Time{BaseTime.Add(time.Hour)}},
		},
	)
}
