package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Webtech-MQP/webjam-sub000/internal/domain"
	"github.com/Webtech-MQP/webjam-sub000/internal/ports"
)

var storeTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// newJudgingProject builds a project in judging with one instance holding one
// submission, returning the store and the IDs involved.
func newJudgingProject(t *testing.T) (*Store, string, string, string) {
	t.Helper()
	ctx := context.Background()
	s := New()
	s.now = func() time.Time { return storeTime }

	p, err := s.CreateProject(ctx, domain.Project{Title: "Spring Jam", Status: domain.StatusActive})
	require.NoError(t, err)
	_, err = s.ReplaceCriteria(ctx, p.ID, []domain.Criterion{{Description: "Design", Weight: 100}})
	require.NoError(t, err)
	inst, err := s.CreateInstance(ctx, domain.Instance{ProjectID: p.ID, TeamName: "Lambdas", Members: []string{"ana"}})
	require.NoError(t, err)
	sub, err := s.CreateSubmission(ctx, domain.Submission{InstanceID: inst.ID})
	require.NoError(t, err)
	_, err = s.TransitionProject(ctx, p.ID, domain.StatusActive, domain.StatusJudging)
	require.NoError(t, err)
	return s, p.ID, inst.ID, sub.ID
}

func TestStore_CreateDefaults(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.now = func() time.Time { return storeTime }

	p, err := s.CreateProject(ctx, domain.Project{Title: "Jam"})
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, domain.StatusUpcoming, p.Status)

	_, err = s.CreateProject(ctx, p)
	assert.True(t, errors.Is(err, domain.ErrConflict), "duplicate IDs conflict")

	_, err = s.CreateInstance(ctx, domain.Instance{ProjectID: "missing"})
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	inst, err := s.CreateInstance(ctx, domain.Instance{ProjectID: p.ID, TeamName: "A"})
	require.NoError(t, err)
	sub, err := s.CreateSubmission(ctx, domain.Submission{InstanceID: inst.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.SubmissionSubmitted, sub.Status)
	assert.Equal(t, storeTime, sub.SubmittedOn)

	_, err = s.CreateSubmission(ctx, domain.Submission{InstanceID: "missing"})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestStore_TransitionProject(t *testing.T) {
	ctx := context.Background()
	s := New()
	p, err := s.CreateProject(ctx, domain.Project{Title: "Jam"})
	require.NoError(t, err)

	got, err := s.TransitionProject(ctx, p.ID, domain.StatusUpcoming, domain.StatusActive)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, got.Status)

	_, err = s.TransitionProject(ctx, p.ID, domain.StatusUpcoming, domain.StatusActive)
	var stateErr *domain.StateError
	require.ErrorAs(t, err, &stateErr, "stale from-status is rejected")
	assert.Equal(t, domain.StatusActive, stateErr.Status)

	_, err = s.TransitionProject(ctx, "missing", domain.StatusUpcoming, domain.StatusActive)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestStore_ReplaceCriteria(t *testing.T) {
	ctx := context.Background()
	s := New()
	p, err := s.CreateProject(ctx, domain.Project{Title: "Jam"})
	require.NoError(t, err)

	none, err := s.ListCriteria(ctx, p.ID)
	require.NoError(t, err)
	assert.NotNil(t, none, "an empty list encodes as [] rather than null")
	assert.Empty(t, none)

	first, err := s.ReplaceCriteria(ctx, p.ID, []domain.Criterion{
		{Description: "Design", Weight: 60},
		{Description: "Code", Weight: 40},
	})
	require.NoError(t, err)
	require.Len(t, first, 2)

	second, err := s.ReplaceCriteria(ctx, p.ID, []domain.Criterion{{Description: "Impact", Weight: 100}})
	require.NoError(t, err)

	listed, err := s.ListCriteria(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, second, listed, "replacement drops earlier criteria")

	_, err = s.GetCriterion(ctx, first[0].ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	cleared, err := s.ReplaceCriteria(ctx, p.ID, nil)
	require.NoError(t, err)
	assert.NotNil(t, cleared)
	assert.Empty(t, cleared)
	listed, err = s.ListCriteria(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []domain.Criterion{}, listed)

	_, err = s.TransitionProject(ctx, p.ID, domain.StatusUpcoming, domain.StatusActive)
	require.NoError(t, err)
	_, err = s.TransitionProject(ctx, p.ID, domain.StatusActive, domain.StatusJudging)
	require.NoError(t, err)
	_, err = s.ReplaceCriteria(ctx, p.ID, []domain.Criterion{{Description: "Late", Weight: 100}})
	assert.True(t, errors.Is(err, domain.ErrInvalidState))
}

func TestStore_ListInstances_IncludesSortedSubmissions(t *testing.T) {
	ctx := context.Background()
	s := New()
	p, err := s.CreateProject(ctx, domain.Project{Title: "Jam"})
	require.NoError(t, err)

	a, err := s.CreateInstance(ctx, domain.Instance{ProjectID: p.ID, TeamName: "A"})
	require.NoError(t, err)
	b, err := s.CreateInstance(ctx, domain.Instance{ProjectID: p.ID, TeamName: "B"})
	require.NoError(t, err)
	_, err = s.CreateSubmission(ctx, domain.Submission{ID: "late", InstanceID: a.ID, SubmittedOn: storeTime.Add(time.Hour)})
	require.NoError(t, err)
	_, err = s.CreateSubmission(ctx, domain.Submission{ID: "early", InstanceID: a.ID, SubmittedOn: storeTime})
	require.NoError(t, err)

	instances, err := s.ListInstances(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, instances, 2)
	assert.Equal(t, a.ID, instances[0].ID)
	assert.Equal(t, b.ID, instances[1].ID)
	require.Len(t, instances[0].Submissions, 2)
	assert.Equal(t, "early", instances[0].Submissions[0].ID)
	assert.Empty(t, instances[1].Submissions)

	_, err = s.ListInstances(ctx, "missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestStore_UpsertJudgement(t *testing.T) {
	ctx := context.Background()
	s, projectID, _, subID := newJudgingProject(t)
	criteria, err := s.ListCriteria(ctx, projectID)
	require.NoError(t, err)
	critID := criteria[0].ID

	first, err := s.UpsertJudgement(ctx, projectID, domain.Judgement{
		SubmissionID: subID, CriterionID: critID, JudgeID: "judge-1", TotalScore: 6,
	})
	require.NoError(t, err)
	assert.Equal(t, storeTime, first.JudgedAt)

	second, err := s.UpsertJudgement(ctx, projectID, domain.Judgement{
		SubmissionID: subID, CriterionID: critID, JudgeID: "judge-1", TotalScore: 9,
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "upsert keeps the row identity")

	_, err = s.UpsertJudgement(ctx, projectID, domain.Judgement{
		SubmissionID: subID, CriterionID: critID, JudgeID: "judge-2", TotalScore: 3,
	})
	require.NoError(t, err)

	all, err := s.ListJudgements(ctx, subID, nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, 9, all[0].TotalScore)

	judge := "judge-2"
	mine, err := s.ListJudgements(ctx, subID, &judge)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, 3, mine[0].TotalScore)

	_, err = s.UpsertJudgement(ctx, "other", domain.Judgement{SubmissionID: subID})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestStore_UpsertJudgement_RejectsForeignSubmission(t *testing.T) {
	ctx := context.Background()
	s, projectID, _, _ := newJudgingProject(t)

	other, err := s.CreateProject(ctx, domain.Project{Title: "Other", Status: domain.StatusJudging})
	require.NoError(t, err)
	inst, err := s.CreateInstance(ctx, domain.Instance{ProjectID: other.ID})
	require.NoError(t, err)
	foreign, err := s.CreateSubmission(ctx, domain.Submission{InstanceID: inst.ID})
	require.NoError(t, err)

	_, err = s.UpsertJudgement(ctx, projectID, domain.Judgement{SubmissionID: foreign.ID, JudgeID: "j", TotalScore: 5})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestStore_ConcurrentUpsertsConverge(t *testing.T) {
	ctx := context.Background()
	s, projectID, _, subID := newJudgingProject(t)

	var wg sync.WaitGroup
	for i := 1; i <= 10; i++ {
		wg.Add(1)
		go func(score int) {
			defer wg.Done()
			_, err := s.UpsertJudgement(ctx, projectID, domain.Judgement{
				SubmissionID: subID, CriterionID: "c", JudgeID: "judge", TotalScore: score,
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	all, err := s.ListJudgements(ctx, subID, nil)
	require.NoError(t, err)
	assert.Len(t, all, 1, "one row per natural key")
}

func TestStore_CommitCompletion(t *testing.T) {
	ctx := context.Background()
	s, projectID, instID, _ := newJudgingProject(t)

	completion := ports.Completion{
		ProjectID:   projectID,
		CompletedAt: storeTime,
		Rankings:    domain.RankingsFromOrder(projectID, []string{instID}, storeTime),
		Awards:      []domain.AwardAssignment{{ProjectID: projectID, AwardID: "zeta"}, {ProjectID: projectID, AwardID: "alpha", InstanceID: &instID}},
		Notifications: []domain.Notification{
			{Kind: domain.NotificationProjectCompleted, ProjectID: projectID, RecipientID: "ana"},
		},
	}

	p, err := s.CommitCompletion(ctx, completion)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, p.Status)
	require.NotNil(t, p.CompletedAt)
	assert.Equal(t, storeTime, *p.CompletedAt)

	rankings, err := s.ListRankings(ctx, projectID)
	require.NoError(t, err)
	assert.Equal(t, completion.Rankings, rankings)

	awards, err := s.ListAwards(ctx, projectID)
	require.NoError(t, err)
	require.Len(t, awards, 2)
	assert.Equal(t, "alpha", awards[0].AwardID)
	assert.Equal(t, 1, s.PendingNotifications())

	_, err = s.CommitCompletion(ctx, completion)
	assert.True(t, errors.Is(err, domain.ErrInvalidState), "completion happens once")
	assert.Equal(t, 1, s.PendingNotifications(), "a rejected commit adds nothing")
}

func TestStore_CommitCompletion_RejectsBrokenPermutation(t *testing.T) {
	ctx := context.Background()
	s, projectID, instID, _ := newJudgingProject(t)

	_, err := s.CommitCompletion(ctx, ports.Completion{
		ProjectID: projectID,
		Rankings:  []domain.Ranking{{ProjectID: projectID, InstanceID: instID, Rank: 2}},
	})
	assert.True(t, errors.Is(err, domain.ErrValidation))

	p, err := s.GetProject(ctx, projectID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusJudging, p.Status)
}

func TestStore_Outbox(t *testing.T) {
	ctx := context.Background()
	s, projectID, instID, _ := newJudgingProject(t)

	notes := make([]domain.Notification, 3)
	for i := range notes {
		notes[i] = domain.Notification{Kind: domain.NotificationProjectCompleted, ProjectID: projectID, RecipientID: fmt.Sprintf("m%d", i)}
	}
	_, err := s.CommitCompletion(ctx, ports.Completion{
		ProjectID:     projectID,
		Rankings:      domain.RankingsFromOrder(projectID, []string{instID}, storeTime),
		Notifications: notes,
	})
	require.NoError(t, err)

	batch, err := s.ClaimNotifications(ctx, 2)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, int64(1), batch[0].ID)
	assert.Equal(t, 1, s.PendingNotifications())

	// First failure puts the row back; the second exhausts it.
	require.NoError(t, s.ReleaseNotification(ctx, batch[0].ID, "smtp down", 2))
	assert.Equal(t, 2, s.PendingNotifications())

	again, err := s.ClaimNotifications(ctx, 10)
	require.NoError(t, err)
	require.Len(t, again, 2)
	require.NoError(t, s.ReleaseNotification(ctx, batch[0].ID, "smtp down", 2))
	assert.Equal(t, 0, s.PendingNotifications())

	err = s.ReleaseNotification(ctx, 99, "", 2)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
