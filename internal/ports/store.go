// Package ports defines the core interfaces that form the contract between
// the domain/application layers and the infrastructure layer.
// These interfaces enable dependency inversion and make the system testable.
package ports

import (
	"context"
	"time"

	"github.com/Webtech-MQP/webjam-sub000/internal/domain"
)

// ProjectStore reads projects and persists status transitions.
type ProjectStore interface {
	// GetProject returns *domain.NotFoundError when id is unknown.
	GetProject(ctx context.Context, id string) (domain.Project, error)

	// TransitionProject moves a project from one status to another with a
	// single conditional update. When the stored status is not from, it
	// returns *domain.StateError carrying the observed status and writes
	// nothing. This conditional update is the per-project lock for all
	// lifecycle changes.
	TransitionProject(ctx context.Context, id string, from, to domain.ProjectStatus) (domain.Project, error)
}

// CriterionStore is the persistence side of the criterion registry.
type CriterionStore interface {
	// ListCriteria returns a project's criteria ordered by position.
	ListCriteria(ctx context.Context, projectID string) ([]domain.Criterion, error)

	// GetCriterion returns *domain.NotFoundError when id is unknown.
	GetCriterion(ctx context.Context, id string) (domain.Criterion, error)

	// ReplaceCriteria atomically swaps a project's criterion list. It
	// re-checks inside its transaction that the project still allows
	// edits and returns *domain.StateError otherwise.
	ReplaceCriteria(ctx context.Context, projectID string, criteria []domain.Criterion) ([]domain.Criterion, error)
}

// SubmissionStore reads teams and their submissions.
type SubmissionStore interface {
	// GetSubmission returns *domain.NotFoundError when id is unknown.
	GetSubmission(ctx context.Context, id string) (domain.Submission, error)

	// GetInstance returns *domain.NotFoundError when id is unknown.
	GetInstance(ctx context.Context, id string) (domain.Instance, error)

	// ListInstances returns a project's instances with members and every
	// submission, superseded ones included, in a stable order.
	ListInstances(ctx context.Context, projectID string) ([]domain.Instance, error)
}

// ScoreStore persists judgements keyed by (submission, criterion, judge).
type ScoreStore interface {
	// UpsertJudgement inserts or overwrites the judgement for j.Key() in one
	// atomic operation backed by a unique constraint. Within the same
	// transaction it confirms that projectID is in the judging status and
	// returns *domain.StateError otherwise.
	UpsertJudgement(ctx context.Context, projectID string, j domain.Judgement) (domain.Judgement, error)

	// ListJudgements returns the judgements for a submission, optionally
	// limited to one judge, ordered by criterion then judge.
	ListJudgements(ctx context.Context, submissionID string, judgeID *string) ([]domain.Judgement, error)
}

// Completion is everything written when a project is completed.
type Completion struct {
	ProjectID     string
	Rankings      []domain.Ranking
	Awards        []domain.AwardAssignment
	Notifications []domain.Notification
	CompletedAt   time.Time
}

// RankingStore persists the final ranking and award history.
type RankingStore interface {
	// CommitCompletion transitions the project from judging to completed and
	// writes rankings, awards and notifications in a single transaction.
	// If the conditional status update affects no row, nothing is written
	// and *domain.StateError is returned.
	CommitCompletion(ctx context.Context, c Completion) (domain.Project, error)

	// ListRankings returns persisted rankings ordered by rank.
	ListRankings(ctx context.Context, projectID string) ([]domain.Ranking, error)

	// ListAwards returns persisted award assignments ordered by award ID.
	ListAwards(ctx context.Context, projectID string) ([]domain.AwardAssignment, error)
}

// OutboxStore hands pending notifications to a dispatcher.
type OutboxStore interface {
	// ClaimNotifications marks up to limit pending notifications as taken
	// and returns them. Concurrent claimers never receive the same row.
	ClaimNotifications(ctx context.Context, limit int) ([]domain.Notification, error)

	// ReleaseNotification returns a claimed notification to the pending set
	// after a failed delivery, recording the error. Once attempts reach
	// maxAttempts the notification stays claimed as dead.
	ReleaseNotification(ctx context.Context, id int64, deliveryErr string, maxAttempts int) error
}

// Store groups every persistence port. Concrete backends implement all of
// them on one value.
type Store interface {
	ProjectStore
	CriterionStore
	SubmissionStore
	ScoreStore
	RankingStore
	OutboxStore
}

// FixtureStore creates the records the judging core reads but does not own:
// projects, teams and submissions. It serves seeding and tests.
type FixtureStore interface {
	CreateProject(ctx context.Context, p domain.Project) (domain.Project, error)
	CreateInstance(ctx context.Context, inst domain.Instance) (domain.Instance, error)
	CreateSubmission(ctx context.Context, sub domain.Submission) (domain.Submission, error)
}
