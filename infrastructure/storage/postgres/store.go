// Package postgres implements the persistence ports on PostgreSQL through
// gorm. Every multi-row write runs in one transaction and status changes use
// conditional updates, so the database serializes competing lifecycle calls.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Webtech-MQP/webjam-sub000/internal/domain"
	"github.com/Webtech-MQP/webjam-sub000/internal/ports"
)

var _ ports.Store = (*Store)(nil)

// Postgres SQLSTATE codes the store translates.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// Config holds connection settings.
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

// Store is a gorm-backed ports.Store.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open connects, sizes the pool, pings and optionally migrates.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if cfg.AutoMigrate {
		if err := s.Migrate(ctx); err != nil {
			return nil, err
		}
	}
	logger.Info("connected to database", "max_open_conns", cfg.MaxOpenConns, "auto_migrate", cfg.AutoMigrate)
	return s, nil
}

// NewStore wraps an existing gorm handle.
func NewStore(db *gorm.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// Migrate creates or updates every table.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Exec(`CREATE EXTENSION IF NOT EXISTS "pgcrypto"`).Error; err != nil {
		return ports.NewStoreError("schema", "migrate", err)
	}
	if err := s.db.WithContext(ctx).AutoMigrate(allModels...); err != nil {
		return ports.NewStoreError("schema", "migrate", err)
	}
	s.logger.Info("database migrated", "tables", len(allModels))
	return nil
}

// Ping checks connectivity for health checks.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// translate maps driver errors onto domain and port error types.
func translate(entity, operation, key string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidState) || errors.Is(err, domain.ErrValidation) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.NewNotFoundError(entity, key)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return domain.NewConflictError(entity, key, err)
		case codeForeignKeyViolation:
			return domain.NewNotFoundError(entity+" reference", key)
		}
	}
	return ports.NewStoreError(entity, operation, err)
}

// CreateProject inserts a project, used by fixture seeding.
func (s *Store) CreateProject(ctx context.Context, p domain.Project) (domain.Project, error) {
	rec := ProjectRecord{ID: p.ID, Title: p.Title, Status: string(p.Status), CompletedAt: p.CompletedAt}
	if rec.Status == "" {
		rec.Status = string(domain.StatusUpcoming)
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return domain.Project{}, translate("project", "create", p.ID, err)
	}
	return rec.toDomain(), nil
}

// CreateInstance inserts a team record, used by fixture seeding.
func (s *Store) CreateInstance(ctx context.Context, inst domain.Instance) (domain.Instance, error) {
	rec := InstanceRecord{ID: inst.ID, ProjectID: inst.ProjectID, TeamName: inst.TeamName, Members: inst.Members}
	if rec.Members == nil {
		rec.Members = []string{}
	}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(&rec).Error; err != nil {
		return domain.Instance{}, translate("instance", "create", inst.ProjectID, err)
	}
	return rec.toDomain(), nil
}

// CreateSubmission inserts a hand-in, used by fixture seeding.
func (s *Store) CreateSubmission(ctx context.Context, sub domain.Submission) (domain.Submission, error) {
	rec := SubmissionRecord{
		ID:            sub.ID,
		InstanceID:    sub.InstanceID,
		RepositoryURL: sub.RepositoryURL,
		DeploymentURL: sub.DeploymentURL,
		Notes:         sub.Notes,
		SubmittedOn:   sub.SubmittedOn,
		Status:        string(sub.Status),
	}
	if rec.SubmittedOn.IsZero() {
		rec.SubmittedOn = time.Now().UTC()
	}
	if rec.Status == "" {
		rec.Status = string(domain.SubmissionSubmitted)
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return domain.Submission{}, translate("submission", "create", sub.InstanceID, err)
	}
	return rec.toDomain(), nil
}

// GetProject implements ports.ProjectStore.
func (s *Store) GetProject(ctx context.Context, id string) (domain.Project, error) {
	var rec ProjectRecord
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return domain.Project{}, translate("project", "get", id, err)
	}
	return rec.toDomain(), nil
}

// TransitionProject implements ports.ProjectStore.
func (s *Store) TransitionProject(ctx context.Context, id string, from, to domain.ProjectStatus) (domain.Project, error) {
	var out domain.Project
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&ProjectRecord{}).
			Where("id = ? AND status = ?", id, string(from)).
			Update("status", string(to))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return s.rejectTransition(tx, id, "transition to "+string(to))
		}
		var rec ProjectRecord
		if err := tx.First(&rec, "id = ?", id).Error; err != nil {
			return err
		}
		out = rec.toDomain()
		return nil
	})
	if err != nil {
		return domain.Project{}, translate("project", "transition", id, err)
	}
	return out, nil
}

// rejectTransition explains a conditional update that matched no row.
func (s *Store) rejectTransition(tx *gorm.DB, id, operation string) error {
	var rec ProjectRecord
	if err := tx.Select("id", "status").First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.NewNotFoundError("project", id)
		}
		return err
	}
	return domain.NewStateError(id, operation, domain.ProjectStatus(rec.Status))
}

// lockProjectStatus reads a project's status under a share lock so that a
// concurrent status update waits for the surrounding transaction.
func lockProjectStatus(tx *gorm.DB, id string) (domain.ProjectStatus, error) {
	var rec ProjectRecord
	err := tx.Clauses(clause.Locking{Strength: "SHARE"}).
		Select("id", "status").
		First(&rec, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", domain.NewNotFoundError("project", id)
		}
		return "", err
	}
	return domain.ProjectStatus(rec.Status), nil
}

// ListCriteria implements ports.CriterionStore.
func (s *Store) ListCriteria(ctx context.Context, projectID string) ([]domain.Criterion, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	var recs []CriterionRecord
	if err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("position ASC, id ASC").
		Find(&recs).Error; err != nil {
		return nil, translate("criterion", "list", projectID, err)
	}
	out := make([]domain.Criterion, len(recs))
	for i, r := range recs {
		out[i] = r.toDomain()
	}
	return out, nil
}

// GetCriterion implements ports.CriterionStore.
func (s *Store) GetCriterion(ctx context.Context, id string) (domain.Criterion, error) {
	var rec CriterionRecord
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return domain.Criterion{}, translate("criterion", "get", id, err)
	}
	return rec.toDomain(), nil
}

// ReplaceCriteria implements ports.CriterionStore. Criteria of a project that
// already holds judgements cannot be replaced because the project is past
// the editable statuses by then.
func (s *Store) ReplaceCriteria(ctx context.Context, projectID string, criteria []domain.Criterion) ([]domain.Criterion, error) {
	out := []domain.Criterion{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		status, err := lockProjectStatus(tx, projectID)
		if err != nil {
			return err
		}
		if !status.CriteriaEditable() {
			return domain.NewStateError(projectID, "define criteria", status)
		}
		if err := tx.Where("project_id = ?", projectID).Delete(&CriterionRecord{}).Error; err != nil {
			return err
		}
		if len(criteria) == 0 {
			return nil
		}
		recs := make([]CriterionRecord, len(criteria))
		for i, c := range criteria {
			recs[i] = CriterionRecord{
				ID:          c.ID,
				ProjectID:   projectID,
				Description: c.Description,
				Weight:      c.Weight,
				Position:    i,
			}
		}
		if err := tx.Omit(clause.Associations).Create(&recs).Error; err != nil {
			return err
		}
		out = make([]domain.Criterion, len(recs))
		for i, r := range recs {
			out[i] = r.toDomain()
		}
		return nil
	})
	if err != nil {
		return nil, translate("criterion", "replace", projectID, err)
	}
	return out, nil
}

// GetSubmission implements ports.SubmissionStore.
func (s *Store) GetSubmission(ctx context.Context, id string) (domain.Submission, error) {
	var rec SubmissionRecord
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return domain.Submission{}, translate("submission", "get", id, err)
	}
	return rec.toDomain(), nil
}

// GetInstance implements ports.SubmissionStore.
func (s *Store) GetInstance(ctx context.Context, id string) (domain.Instance, error) {
	var rec InstanceRecord
	if err := s.db.WithContext(ctx).
		Preload("Submissions", func(db *gorm.DB) *gorm.DB { return db.Order("submitted_on ASC, id ASC") }).
		First(&rec, "id = ?", id).Error; err != nil {
		return domain.Instance{}, translate("instance", "get", id, err)
	}
	return rec.toDomain(), nil
}

// ListInstances implements ports.SubmissionStore.
func (s *Store) ListInstances(ctx context.Context, projectID string) ([]domain.Instance, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	var recs []InstanceRecord
	if err := s.db.WithContext(ctx).
		Preload("Submissions", func(db *gorm.DB) *gorm.DB { return db.Order("submitted_on ASC, id ASC") }).
		Where("project_id = ?", projectID).
		Order("created_at ASC, id ASC").
		Find(&recs).Error; err != nil {
		return nil, translate("instance", "list", projectID, err)
	}
	out := make([]domain.Instance, len(recs))
	for i, r := range recs {
		out[i] = r.toDomain()
	}
	return out, nil
}

// UpsertJudgement implements ports.ScoreStore with INSERT ... ON CONFLICT
// (submission_id, criterion_id, judge_id) DO UPDATE.
func (s *Store) UpsertJudgement(ctx context.Context, projectID string, j domain.Judgement) (domain.Judgement, error) {
	rec := JudgementRecord{
		SubmissionID: j.SubmissionID,
		CriterionID:  j.CriterionID,
		JudgeID:      j.JudgeID,
		TotalScore:   j.TotalScore,
		Notes:        j.Notes,
		JudgedAt:     j.JudgedAt,
	}
	if rec.JudgedAt.IsZero() {
		rec.JudgedAt = time.Now().UTC()
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		status, err := lockProjectStatus(tx, projectID)
		if err != nil {
			return err
		}
		if !status.AcceptsJudgements() {
			return domain.NewStateError(projectID, "record judgement", status)
		}

		var owner string
		if err := tx.Raw(`SELECT i.project_id FROM submissions s
			JOIN project_instances i ON i.id = s.instance_id
			WHERE s.id = ?`, j.SubmissionID).Scan(&owner).Error; err != nil {
			return err
		}
		if owner != projectID {
			return domain.NewNotFoundError("submission", j.SubmissionID)
		}

		return tx.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "submission_id"},
				{Name: "criterion_id"},
				{Name: "judge_id"},
			},
			DoUpdates: clause.AssignmentColumns([]string{"total_score", "notes", "judged_at"}),
		}).Create(&rec).Error
	})
	if err != nil {
		return domain.Judgement{}, translate("judgement", "upsert", j.Key().String(), err)
	}
	return rec.toDomain(), nil
}

// ListJudgements implements ports.ScoreStore.
func (s *Store) ListJudgements(ctx context.Context, submissionID string, judgeID *string) ([]domain.Judgement, error) {
	q := s.db.WithContext(ctx).Where("submission_id = ?", submissionID)
	if judgeID != nil {
		q = q.Where("judge_id = ?", *judgeID)
	}
	var recs []JudgementRecord
	if err := q.Order("criterion_id ASC, judge_id ASC").Find(&recs).Error; err != nil {
		return nil, translate("judgement", "list", submissionID, err)
	}
	out := make([]domain.Judgement, len(recs))
	for i, r := range recs {
		out[i] = r.toDomain()
	}
	return out, nil
}

// CommitCompletion implements ports.RankingStore.
func (s *Store) CommitCompletion(ctx context.Context, c ports.Completion) (domain.Project, error) {
	if err := domain.CheckRankPermutation(c.Rankings); err != nil {
		return domain.Project{}, err
	}

	var out domain.Project
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		completedAt := c.CompletedAt
		res := tx.Model(&ProjectRecord{}).
			Where("id = ? AND status = ?", c.ProjectID, string(domain.StatusJudging)).
			Updates(map[string]any{
				"status":       string(domain.StatusCompleted),
				"completed_at": completedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return s.rejectTransition(tx, c.ProjectID, "complete project")
		}

		if len(c.Rankings) > 0 {
			recs := make([]RankingRecord, len(c.Rankings))
			for i, r := range c.Rankings {
				recs[i] = RankingRecord{ProjectID: r.ProjectID, InstanceID: r.InstanceID, Rank: r.Rank, CreatedAt: r.CreatedAt}
			}
			if err := tx.Create(&recs).Error; err != nil {
				return err
			}
		}
		if len(c.Awards) > 0 {
			recs := make([]AwardRecord, len(c.Awards))
			for i, a := range c.Awards {
				recs[i] = AwardRecord{ProjectID: a.ProjectID, AwardID: a.AwardID, InstanceID: a.InstanceID, CreatedAt: completedAt}
			}
			if err := tx.Create(&recs).Error; err != nil {
				return err
			}
		}
		if len(c.Notifications) > 0 {
			recs := make([]OutboxRecord, len(c.Notifications))
			for i, n := range c.Notifications {
				recs[i] = OutboxRecord{
					Kind:        n.Kind,
					ProjectID:   n.ProjectID,
					RecipientID: n.RecipientID,
					Payload:     n.Payload,
					Status:      outboxPending,
					CreatedAt:   n.CreatedAt,
				}
			}
			if err := tx.CreateInBatches(&recs, 200).Error; err != nil {
				return err
			}
		}

		var rec ProjectRecord
		if err := tx.First(&rec, "id = ?", c.ProjectID).Error; err != nil {
			return err
		}
		out = rec.toDomain()
		return nil
	})
	if err != nil {
		return domain.Project{}, translate("ranking", "commit", c.ProjectID, err)
	}
	return out, nil
}

// ListRankings implements ports.RankingStore.
func (s *Store) ListRankings(ctx context.Context, projectID string) ([]domain.Ranking, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	var recs []RankingRecord
	if err := s.db.WithContext(ctx).Where("project_id = ?", projectID).Order("rank ASC").Find(&recs).Error; err != nil {
		return nil, translate("ranking", "list", projectID, err)
	}
	out := make([]domain.Ranking, len(recs))
	for i, r := range recs {
		out[i] = domain.Ranking{ProjectID: r.ProjectID, InstanceID: r.InstanceID, Rank: r.Rank, CreatedAt: r.CreatedAt}
	}
	return out, nil
}

// ListAwards implements ports.RankingStore.
func (s *Store) ListAwards(ctx context.Context, projectID string) ([]domain.AwardAssignment, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	var recs []AwardRecord
	if err := s.db.WithContext(ctx).Where("project_id = ?", projectID).Order("award_id ASC").Find(&recs).Error; err != nil {
		return nil, translate("award", "list", projectID, err)
	}
	out := make([]domain.AwardAssignment, len(recs))
	for i, r := range recs {
		out[i] = domain.AwardAssignment{ProjectID: r.ProjectID, AwardID: r.AwardID, InstanceID: r.InstanceID}
	}
	return out, nil
}

// ClaimNotifications implements ports.OutboxStore. FOR UPDATE SKIP LOCKED
// lets several dispatchers poll the same table.
func (s *Store) ClaimNotifications(ctx context.Context, limit int) ([]domain.Notification, error) {
	var recs []OutboxRecord
	err := s.db.WithContext(ctx).Raw(`
		WITH cte AS (
		  SELECT id FROM outbox_events
		  WHERE status = ?
		  ORDER BY id ASC
		  LIMIT ?
		  FOR UPDATE SKIP LOCKED
		)
		UPDATE outbox_events SET status = ?, claimed_at = now()
		FROM cte
		WHERE outbox_events.id = cte.id
		RETURNING outbox_events.*`, outboxPending, limit, outboxProcessed).Scan(&recs).Error
	if err != nil {
		return nil, translate("notification", "claim", "", err)
	}
	out := make([]domain.Notification, len(recs))
	for i, r := range recs {
		out[i] = r.toDomain()
	}
	return out, nil
}

// ReleaseNotification implements ports.OutboxStore.
func (s *Store) ReleaseNotification(ctx context.Context, id int64, deliveryErr string, maxAttempts int) error {
	res := s.db.WithContext(ctx).Exec(`
		UPDATE outbox_events
		SET attempts = attempts + 1,
		    last_error = ?,
		    status = CASE WHEN ? > 0 AND attempts + 1 >= ? THEN ? ELSE ? END
		WHERE id = ?`, deliveryErr, maxAttempts, maxAttempts, outboxDead, outboxPending, id)
	if res.Error != nil {
		return translate("notification", "release", strconv.FormatInt(id, 10), res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.NewNotFoundError("notification", strconv.FormatInt(id, 10))
	}
	return nil
}
