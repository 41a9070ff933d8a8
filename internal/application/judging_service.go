package application

import (
	"context"
	"errors"

	"github.com/Webtech-MQP/webjam-sub000/internal/domain"
	"github.com/Webtech-MQP/webjam-sub000/internal/ports"
)

// JudgingService records and reads judges' per-criterion ratings.
type JudgingService struct {
	deps Dependencies
}

// NewJudgingService returns a JudgingService or ErrNoStore.
func NewJudgingService(deps Dependencies) (*JudgingService, error) {
	d, err := deps.withDefaults()
	if err != nil {
		return nil, err
	}
	return &JudgingService{deps: d}, nil
}

// JudgementRecorded is the live feed payload for a new or updated rating.
type JudgementRecorded struct {
	SubmissionID string `json:"submission_id"`
	CriterionID  string `json:"criterion_id"`
	JudgeID      string `json:"judge_id"`
	TotalScore   int    `json:"total_score"`
}

// RecordJudgement stores principal's rating of a submission on one criterion.
// Repeating the call for the same (submission, criterion, judge) overwrites
// the score and notes; it never creates a second row.
//
// Errors: ErrForbidden unless the principal is a judge or admin,
// *domain.ValidationError for a score outside 1-10, *domain.NotFoundError for
// an unknown submission or a criterion of another project, and
// *domain.StateError while the project is not judging.
func (s *JudgingService) RecordJudgement(
	ctx context.Context,
	principal domain.Principal,
	submissionID, criterionID string,
	score int,
	notes string,
) (j domain.Judgement, err error) {
	ctx, finish := s.deps.Observer.Start(ctx, "record_judgement", map[string]string{
		"submission_id": submissionID,
		"criterion_id":  criterionID,
	})
	defer func() { finish(err) }()

	if err := domain.RequireRole(principal, "record judgements", domain.RoleJudge, domain.RoleAdmin); err != nil {
		return domain.Judgement{}, err
	}
	if err := domain.ValidateScore(score); err != nil {
		return domain.Judgement{}, err
	}

	sub, err := s.deps.Store.GetSubmission(ctx, submissionID)
	if err != nil {
		return domain.Judgement{}, err
	}
	inst, err := s.deps.Store.GetInstance(ctx, sub.InstanceID)
	if err != nil {
		return domain.Judgement{}, err
	}
	criterion, err := s.deps.Store.GetCriterion(ctx, criterionID)
	if err != nil {
		return domain.Judgement{}, err
	}
	if criterion.ProjectID != inst.ProjectID {
		return domain.Judgement{}, domain.NewNotFoundError("criterion", criterionID)
	}

	saved, err := s.deps.Store.UpsertJudgement(ctx, inst.ProjectID, domain.Judgement{
		SubmissionID: submissionID,
		CriterionID:  criterionID,
		JudgeID:      principal.ID,
		TotalScore:   score,
		Notes:        notes,
		JudgedAt:     s.deps.Clock(),
	})
	if err != nil {
		var stateErr *domain.StateError
		if errors.As(err, &stateErr) {
			s.deps.Logger.Warn("judgement rejected",
				"project_id", inst.ProjectID,
				"submission_id", submissionID,
				"judge_id", principal.ID,
				"status", stateErr.Status,
			)
		}
		return domain.Judgement{}, err
	}

	s.deps.invalidatePreview(ctx, inst.ProjectID)
	s.deps.Metrics.RecordCounter(ports.MetricJudgementsRecorded, 1, map[string]string{"project_id": inst.ProjectID})
	s.deps.publish(inst.ProjectID, ports.LiveJudgementRecorded, JudgementRecorded{
		SubmissionID: saved.SubmissionID,
		CriterionID:  saved.CriterionID,
		JudgeID:      saved.JudgeID,
		TotalScore:   saved.TotalScore,
	})
	s.deps.Logger.Info("judgement recorded",
		"project_id", inst.ProjectID,
		"submission_id", submissionID,
		"criterion_id", criterionID,
		"judge_id", principal.ID,
		"score", score,
	)
	return saved, nil
}

// JudgementsForSubmission lists a submission's judgements, optionally only
// those of judgeID.
func (s *JudgingService) JudgementsForSubmission(
	ctx context.Context,
	principal domain.Principal,
	submissionID string,
	judgeID *string,
) ([]domain.Judgement, error) {
	if err := domain.RequireRole(principal, "read judgements", domain.RoleJudge, domain.RoleAdmin); err != nil {
		return nil, err
	}
	if _, err := s.deps.Store.GetSubmission(ctx, submissionID); err != nil {
		return nil, err
	}
	return s.deps.Store.ListJudgements(ctx, submissionID, judgeID)
}
