package application

import (
	"context"
	"fmt"

	"github.com/Webtech-MQP/webjam-sub000/internal/domain"
	"github.com/Webtech-MQP/webjam-sub000/internal/ports"
)

// LifecycleService drives projects through their status machine and exposes
// the frozen results.
type LifecycleService struct {
	deps    Dependencies
	ranking *RankingService
}

// NewLifecycleService returns a LifecycleService. ranking performs the final
// ranking step of CompleteProject.
func NewLifecycleService(deps Dependencies, ranking *RankingService) (*LifecycleService, error) {
	d, err := deps.withDefaults()
	if err != nil {
		return nil, err
	}
	if ranking == nil {
		return nil, fmt.Errorf("ranking service is required")
	}
	return &LifecycleService{deps: d, ranking: ranking}, nil
}

// ProjectAdvanced is the live feed payload for a status change.
type ProjectAdvanced struct {
	From domain.ProjectStatus `json:"from"`
	To   domain.ProjectStatus `json:"to"`
}

// AdvanceProject applies start or close_submissions. Completion goes through
// CompleteProject because it must freeze the ranking in the same step.
func (s *LifecycleService) AdvanceProject(
	ctx context.Context,
	principal domain.Principal,
	projectID string,
	event domain.ProjectEvent,
) (project domain.Project, err error) {
	ctx, finish := s.deps.Observer.Start(ctx, "advance_project", map[string]string{
		"project_id": projectID,
		"event":      string(event),
	})
	defer func() { finish(err) }()

	if err := domain.RequireRole(principal, "advance projects", domain.RoleAdmin); err != nil {
		return domain.Project{}, err
	}
	if event == domain.EventComplete {
		return domain.Project{}, domain.NewValidationError("project event",
			"complete a project through the completion operation")
	}

	current, err := s.deps.Store.GetProject(ctx, projectID)
	if err != nil {
		return domain.Project{}, err
	}
	next, err := current.Apply(event, "advance project: "+string(event))
	if err != nil {
		return domain.Project{}, err
	}
	project, err = s.deps.Store.TransitionProject(ctx, projectID, current.Status, next.Status)
	if err != nil {
		return domain.Project{}, err
	}

	s.deps.invalidatePreview(ctx, projectID)
	s.deps.publish(projectID, ports.LiveProjectAdvanced, ProjectAdvanced{From: current.Status, To: project.Status})
	s.deps.Logger.Info("project advanced",
		"project_id", projectID,
		"from", current.Status,
		"to", project.Status,
	)
	return project, nil
}

// CompleteProject freezes the ranking, binds awards and moves the project to
// completed in one transaction. awards maps award IDs to a ranked instance or
// to nil for an award deliberately left unassigned.
func (s *LifecycleService) CompleteProject(
	ctx context.Context,
	principal domain.Principal,
	projectID string,
	manualOrder []string,
	awards map[string]*string,
) (project domain.Project, err error) {
	ctx, finish := s.deps.Observer.Start(ctx, "complete_project", map[string]string{"project_id": projectID})
	defer func() { finish(err) }()

	if err := domain.RequireRole(principal, "complete projects", domain.RoleAdmin); err != nil {
		return domain.Project{}, err
	}
	project, _, err = s.ranking.complete(ctx, projectID, manualOrder, awards)
	return project, err
}

// GetRanking returns the persisted ranking, empty until completion.
func (s *LifecycleService) GetRanking(ctx context.Context, projectID string) ([]domain.Ranking, error) {
	return s.deps.Store.ListRankings(ctx, projectID)
}

// GetAwards returns the persisted award assignments.
func (s *LifecycleService) GetAwards(ctx context.Context, projectID string) ([]domain.AwardAssignment, error) {
	return s.deps.Store.ListAwards(ctx, projectID)
}

// GetProject returns a project.
func (s *LifecycleService) GetProject(ctx context.Context, projectID string) (domain.Project, error) {
	return s.deps.Store.GetProject(ctx, projectID)
}
