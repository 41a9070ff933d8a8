// Package memory provides an in-process implementation of every persistence
// port. It backs local runs and the service tests; each method takes the
// store mutex so the conditional updates behave like their SQL counterparts.
package memory

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Webtech-MQP/webjam-sub000/internal/domain"
	"github.com/Webtech-MQP/webjam-sub000/internal/ports"
)

var _ ports.Store = (*Store)(nil)

type outboxRow struct {
	n         domain.Notification
	claimed   bool
	attempts  int
	lastError string
}

// Store is a mutex-guarded in-memory ports.Store.
type Store struct {
	mu sync.RWMutex

	projects    map[string]domain.Project
	criteria    map[string]domain.Criterion
	instances   map[string]domain.Instance
	instanceSeq []string
	submissions map[string]domain.Submission
	judgements  map[domain.JudgementKey]domain.Judgement
	rankings    map[string][]domain.Ranking
	awards      map[string][]domain.AwardAssignment
	outbox      []*outboxRow
	nextOutbox  int64

	now func() time.Time
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		projects:    make(map[string]domain.Project),
		criteria:    make(map[string]domain.Criterion),
		instances:   make(map[string]domain.Instance),
		submissions: make(map[string]domain.Submission),
		judgements:  make(map[domain.JudgementKey]domain.Judgement),
		rankings:    make(map[string][]domain.Ranking),
		awards:      make(map[string][]domain.AwardAssignment),
		now:         time.Now,
	}
}

// CreateProject stores p, assigning an ID when it has none.
func (s *Store) CreateProject(_ context.Context, p domain.Project) (domain.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = domain.StatusUpcoming
	}
	if _, exists := s.projects[p.ID]; exists {
		return domain.Project{}, domain.NewConflictError("project", p.ID, errors.New("already exists"))
	}
	s.projects[p.ID] = p
	return p, nil
}

// CreateInstance stores a team record. Submissions on inst are ignored; use
// CreateSubmission.
func (s *Store) CreateInstance(_ context.Context, inst domain.Instance) (domain.Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[inst.ProjectID]; !ok {
		return domain.Instance{}, domain.NewNotFoundError("project", inst.ProjectID)
	}
	if inst.ID == "" {
		inst.ID = uuid.NewString()
	}
	inst.Members = slices.Clone(inst.Members)
	inst.Submissions = nil
	s.instances[inst.ID] = inst
	s.instanceSeq = append(s.instanceSeq, inst.ID)
	return inst, nil
}

// CreateSubmission stores a hand-in for an existing instance.
func (s *Store) CreateSubmission(_ context.Context, sub domain.Submission) (domain.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.instances[sub.InstanceID]; !ok {
		return domain.Submission{}, domain.NewNotFoundError("instance", sub.InstanceID)
	}
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.Status == "" {
		sub.Status = domain.SubmissionSubmitted
	}
	if sub.SubmittedOn.IsZero() {
		sub.SubmittedOn = s.now()
	}
	s.submissions[sub.ID] = sub
	return sub, nil
}

// GetProject implements ports.ProjectStore.
func (s *Store) GetProject(_ context.Context, id string) (domain.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return domain.Project{}, domain.NewNotFoundError("project", id)
	}
	return p, nil
}

// TransitionProject implements ports.ProjectStore.
func (s *Store) TransitionProject(_ context.Context, id string, from, to domain.ProjectStatus) (domain.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return domain.Project{}, domain.NewNotFoundError("project", id)
	}
	if p.Status != from {
		return domain.Project{}, domain.NewStateError(id, "transition to "+string(to), p.Status)
	}
	p.Status = to
	s.projects[id] = p
	return p, nil
}

// ListCriteria implements ports.CriterionStore.
func (s *Store) ListCriteria(_ context.Context, projectID string) ([]domain.Criterion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.projects[projectID]; !ok {
		return nil, domain.NewNotFoundError("project", projectID)
	}
	out := s.criteriaOf(projectID)
	if out == nil {
		out = []domain.Criterion{}
	}
	return out, nil
}

func (s *Store) criteriaOf(projectID string) []domain.Criterion {
	var out []domain.Criterion
	for _, c := range s.criteria {
		if c.ProjectID == projectID {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b domain.Criterion) int {
		if a.Position != b.Position {
			return a.Position - b.Position
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// GetCriterion implements ports.CriterionStore.
func (s *Store) GetCriterion(_ context.Context, id string) (domain.Criterion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.criteria[id]
	if !ok {
		return domain.Criterion{}, domain.NewNotFoundError("criterion", id)
	}
	return c, nil
}

// ReplaceCriteria implements ports.CriterionStore.
func (s *Store) ReplaceCriteria(_ context.Context, projectID string, criteria []domain.Criterion) ([]domain.Criterion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[projectID]
	if !ok {
		return nil, domain.NewNotFoundError("project", projectID)
	}
	if !p.Status.CriteriaEditable() {
		return nil, domain.NewStateError(projectID, "define criteria", p.Status)
	}
	for id, c := range s.criteria {
		if c.ProjectID == projectID {
			delete(s.criteria, id)
		}
	}
	out := make([]domain.Criterion, len(criteria))
	for i, c := range criteria {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		c.ProjectID = projectID
		c.Position = i
		s.criteria[c.ID] = c
		out[i] = c
	}
	return out, nil
}

// GetSubmission implements ports.SubmissionStore.
func (s *Store) GetSubmission(_ context.Context, id string) (domain.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.submissions[id]
	if !ok {
		return domain.Submission{}, domain.NewNotFoundError("submission", id)
	}
	return sub, nil
}

// GetInstance implements ports.SubmissionStore.
func (s *Store) GetInstance(_ context.Context, id string) (domain.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inst, ok := s.instances[id]
	if !ok {
		return domain.Instance{}, domain.NewNotFoundError("instance", id)
	}
	return s.withSubmissions(inst), nil
}

// ListInstances implements ports.SubmissionStore. Instances come back in
// creation order.
func (s *Store) ListInstances(_ context.Context, projectID string) ([]domain.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.projects[projectID]; !ok {
		return nil, domain.NewNotFoundError("project", projectID)
	}
	var out []domain.Instance
	for _, id := range s.instanceSeq {
		inst := s.instances[id]
		if inst.ProjectID == projectID {
			out = append(out, s.withSubmissions(inst))
		}
	}
	return out, nil
}

func (s *Store) withSubmissions(inst domain.Instance) domain.Instance {
	inst.Members = slices.Clone(inst.Members)
	inst.Submissions = nil
	for _, sub := range s.submissions {
		if sub.InstanceID == inst.ID {
			inst.Submissions = append(inst.Submissions, sub)
		}
	}
	slices.SortFunc(inst.Submissions, func(a, b domain.Submission) int {
		if c := a.SubmittedOn.Compare(b.SubmittedOn); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return inst
}

// projectOfSubmission resolves the owning project; callers hold the lock.
func (s *Store) projectOfSubmission(submissionID string) (domain.Project, bool) {
	sub, ok := s.submissions[submissionID]
	if !ok {
		return domain.Project{}, false
	}
	inst, ok := s.instances[sub.InstanceID]
	if !ok {
		return domain.Project{}, false
	}
	p, ok := s.projects[inst.ProjectID]
	return p, ok
}

// UpsertJudgement implements ports.ScoreStore.
func (s *Store) UpsertJudgement(_ context.Context, projectID string, j domain.Judgement) (domain.Judgement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[projectID]
	if !ok {
		return domain.Judgement{}, domain.NewNotFoundError("project", projectID)
	}
	if !p.Status.AcceptsJudgements() {
		return domain.Judgement{}, domain.NewStateError(projectID, "record judgement", p.Status)
	}
	if owner, ok := s.projectOfSubmission(j.SubmissionID); !ok || owner.ID != projectID {
		return domain.Judgement{}, domain.NewNotFoundError("submission", j.SubmissionID)
	}

	key := j.Key()
	if existing, ok := s.judgements[key]; ok {
		j.ID = existing.ID
	} else if j.ID == "" {
		j.ID = uuid.NewString()
	}
	if j.JudgedAt.IsZero() {
		j.JudgedAt = s.now()
	}
	s.judgements[key] = j
	return j, nil
}

// ListJudgements implements ports.ScoreStore.
func (s *Store) ListJudgements(_ context.Context, submissionID string, judgeID *string) ([]domain.Judgement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Judgement
	for k, j := range s.judgements {
		if k.SubmissionID != submissionID {
			continue
		}
		if judgeID != nil && k.JudgeID != *judgeID {
			continue
		}
		out = append(out, j)
	}
	slices.SortFunc(out, func(a, b domain.Judgement) int {
		if c := strings.Compare(a.CriterionID, b.CriterionID); c != 0 {
			return c
		}
		return strings.Compare(a.JudgeID, b.JudgeID)
	})
	return out, nil
}

// CommitCompletion implements ports.RankingStore.
func (s *Store) CommitCompletion(_ context.Context, c ports.Completion) (domain.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[c.ProjectID]
	if !ok {
		return domain.Project{}, domain.NewNotFoundError("project", c.ProjectID)
	}
	if p.Status != domain.StatusJudging {
		return domain.Project{}, domain.NewStateError(c.ProjectID, "complete project", p.Status)
	}
	if err := domain.CheckRankPermutation(c.Rankings); err != nil {
		return domain.Project{}, err
	}

	completedAt := c.CompletedAt
	p.Status = domain.StatusCompleted
	p.CompletedAt = &completedAt
	s.projects[p.ID] = p

	s.rankings[p.ID] = slices.Clone(c.Rankings)
	s.awards[p.ID] = slices.Clone(c.Awards)
	for _, n := range c.Notifications {
		s.nextOutbox++
		n.ID = s.nextOutbox
		s.outbox = append(s.outbox, &outboxRow{n: n})
	}
	return p, nil
}

// ListRankings implements ports.RankingStore.
func (s *Store) ListRankings(_ context.Context, projectID string) ([]domain.Ranking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.projects[projectID]; !ok {
		return nil, domain.NewNotFoundError("project", projectID)
	}
	out := slices.Clone(s.rankings[projectID])
	slices.SortFunc(out, func(a, b domain.Ranking) int { return a.Rank - b.Rank })
	return out, nil
}

// ListAwards implements ports.RankingStore.
func (s *Store) ListAwards(_ context.Context, projectID string) ([]domain.AwardAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.projects[projectID]; !ok {
		return nil, domain.NewNotFoundError("project", projectID)
	}
	out := slices.Clone(s.awards[projectID])
	slices.SortFunc(out, func(a, b domain.AwardAssignment) int { return strings.Compare(a.AwardID, b.AwardID) })
	return out, nil
}

// ClaimNotifications implements ports.OutboxStore.
func (s *Store) ClaimNotifications(_ context.Context, limit int) ([]domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Notification
	for _, row := range s.outbox {
		if len(out) >= limit {
			break
		}
		if row.claimed {
			continue
		}
		row.claimed = true
		out = append(out, row.n)
	}
	return out, nil
}

// ReleaseNotification implements ports.OutboxStore.
func (s *Store) ReleaseNotification(_ context.Context, id int64, deliveryErr string, maxAttempts int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.outbox {
		if row.n.ID != id {
			continue
		}
		row.attempts++
		row.lastError = deliveryErr
		row.claimed = maxAttempts > 0 && row.attempts >= maxAttempts
		return nil
	}
	return domain.NewNotFoundError("notification", strconv.FormatInt(id, 10))
}

// PendingNotifications reports how many notifications are waiting for
// delivery.
func (s *Store) PendingNotifications() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, row := range s.outbox {
		if !row.claimed {
			n++
		}
	}
	return n
}
