package postgres

import (
	"time"

	"gorm.io/datatypes"

	"github.com/Webtech-MQP/webjam-sub000/internal/domain"
)

// Outbox row states.
const (
	outboxPending   = "pending"
	outboxProcessed = "processed"
	outboxDead      = "dead"
)

// ProjectRecord is the projects table.
type ProjectRecord struct {
	ID          string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Title       string `gorm:"not null"`
	Status      string `gorm:"type:varchar(16);not null;default:upcoming;index"`
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName overrides gorm's pluralization.
func (ProjectRecord) TableName() string { return "projects" }

// CriterionRecord is the criteria table.
type CriterionRecord struct {
	ID          string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ProjectID   string `gorm:"type:uuid;not null;index"`
	Description string `gorm:"type:varchar(255);not null"`
	Weight      int    `gorm:"not null;check:weight BETWEEN 0 AND 100"`
	Position    int    `gorm:"not null"`

	Project ProjectRecord `gorm:"constraint:OnDelete:CASCADE"`
}

// TableName overrides gorm's pluralization.
func (CriterionRecord) TableName() string { return "criteria" }

// InstanceRecord is the project_instances table.
type InstanceRecord struct {
	ID        string                      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ProjectID string                      `gorm:"type:uuid;not null;index"`
	TeamName  string                      `gorm:"not null"`
	Members   datatypes.JSONSlice[string] `gorm:"type:jsonb;not null"`
	CreatedAt time.Time

	Project     ProjectRecord      `gorm:"constraint:OnDelete:CASCADE"`
	Submissions []SubmissionRecord `gorm:"foreignKey:InstanceID"`
}

// TableName overrides gorm's pluralization.
func (InstanceRecord) TableName() string { return "project_instances" }

// SubmissionRecord is the submissions table.
type SubmissionRecord struct {
	ID            string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	InstanceID    string    `gorm:"type:uuid;not null;index"`
	RepositoryURL string    `gorm:"not null"`
	DeploymentURL string    `gorm:"not null"`
	Notes         string    `gorm:"not null;default:''"`
	SubmittedOn   time.Time `gorm:"not null"`
	Status        string    `gorm:"type:varchar(16);not null;default:submitted"`
}

// TableName overrides gorm's pluralization.
func (SubmissionRecord) TableName() string { return "submissions" }

// JudgementRecord is the judgements table. The composite unique index is the
// conflict target of the score upsert.
type JudgementRecord struct {
	ID           string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SubmissionID string    `gorm:"type:uuid;not null;uniqueIndex:idx_judgement_key,priority:1"`
	CriterionID  string    `gorm:"type:uuid;not null;uniqueIndex:idx_judgement_key,priority:2"`
	JudgeID      string    `gorm:"not null;uniqueIndex:idx_judgement_key,priority:3"`
	TotalScore   int       `gorm:"not null;check:total_score BETWEEN 1 AND 10"`
	Notes        string    `gorm:"not null;default:''"`
	JudgedAt     time.Time `gorm:"not null"`

	Submission SubmissionRecord `gorm:"constraint:OnDelete:CASCADE"`
	Criterion  CriterionRecord  `gorm:"constraint:OnDelete:CASCADE"`
}

// TableName overrides gorm's pluralization.
func (JudgementRecord) TableName() string { return "judgements" }

// RankingRecord is the project_rankings table.
type RankingRecord struct {
	ProjectID  string `gorm:"type:uuid;primaryKey;uniqueIndex:idx_ranking_rank,priority:1"`
	InstanceID string `gorm:"type:uuid;primaryKey"`
	Rank       int    `gorm:"not null;uniqueIndex:idx_ranking_rank,priority:2;check:rank >= 1"`
	CreatedAt  time.Time
}

// TableName overrides gorm's pluralization.
func (RankingRecord) TableName() string { return "project_rankings" }

// AwardRecord is the project_awards table. A null InstanceID is an award
// left unassigned.
type AwardRecord struct {
	ProjectID  string  `gorm:"type:uuid;primaryKey"`
	AwardID    string  `gorm:"primaryKey"`
	InstanceID *string `gorm:"type:uuid"`
	CreatedAt  time.Time
}

// TableName overrides gorm's pluralization.
func (AwardRecord) TableName() string { return "project_awards" }

// OutboxRecord is the outbox_events table.
type OutboxRecord struct {
	ID          int64             `gorm:"primaryKey;autoIncrement"`
	Kind        string            `gorm:"type:varchar(64);not null"`
	ProjectID   string            `gorm:"type:uuid;not null;index"`
	RecipientID string            `gorm:"not null"`
	Payload     datatypes.JSONMap `gorm:"type:jsonb"`
	Status      string            `gorm:"type:varchar(16);not null;default:pending;index"`
	Attempts    int               `gorm:"not null;default:0"`
	LastError   string            `gorm:"not null;default:''"`
	CreatedAt   time.Time
	ClaimedAt   *time.Time
}

// TableName overrides gorm's pluralization.
func (OutboxRecord) TableName() string { return "outbox_events" }

// allModels lists every table in migration order.
var allModels = []any{
	&ProjectRecord{},
	&CriterionRecord{},
	&InstanceRecord{},
	&SubmissionRecord{},
	&JudgementRecord{},
	&RankingRecord{},
	&AwardRecord{},
	&OutboxRecord{},
}

func (r ProjectRecord) toDomain() domain.Project {
	return domain.Project{
		ID:          r.ID,
		Title:       r.Title,
		Status:      domain.ProjectStatus(r.Status),
		CompletedAt: r.CompletedAt,
	}
}

func (r CriterionRecord) toDomain() domain.Criterion {
	return domain.Criterion{
		ID:          r.ID,
		ProjectID:   r.ProjectID,
		Description: r.Description,
		Weight:      r.Weight,
		Position:    r.Position,
	}
}

func (r SubmissionRecord) toDomain() domain.Submission {
	return domain.Submission{
		ID:            r.ID,
		InstanceID:    r.InstanceID,
		RepositoryURL: r.RepositoryURL,
		DeploymentURL: r.DeploymentURL,
		Notes:         r.Notes,
		SubmittedOn:   r.SubmittedOn,
		Status:        domain.SubmissionStatus(r.Status),
	}
}

func (r InstanceRecord) toDomain() domain.Instance {
	inst := domain.Instance{
		ID:        r.ID,
		ProjectID: r.ProjectID,
		TeamName:  r.TeamName,
		Members:   []string(r.Members),
	}
	for _, s := range r.Submissions {
		inst.Submissions = append(inst.Submissions, s.toDomain())
	}
	return inst
}

func (r JudgementRecord) toDomain() domain.Judgement {
	return domain.Judgement{
		ID:           r.ID,
		SubmissionID: r.SubmissionID,
		CriterionID:  r.CriterionID,
		JudgeID:      r.JudgeID,
		TotalScore:   r.TotalScore,
		Notes:        r.Notes,
		JudgedAt:     r.JudgedAt,
	}
}

func (r OutboxRecord) toDomain() domain.Notification {
	return domain.Notification{
		ID:          r.ID,
		Kind:        r.Kind,
		ProjectID:   r.ProjectID,
		RecipientID: r.RecipientID,
		Payload:     map[string]any(r.Payload),
		CreatedAt:   r.CreatedAt,
	}
}
