package application

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Webtech-MQP/webjam-sub000/internal/domain"
)

// CriteriaService is the criterion registry.
type CriteriaService struct {
	deps      Dependencies
	validator *validator.Validate
}

// NewCriteriaService returns a CriteriaService or ErrNoStore.
func NewCriteriaService(deps Dependencies) (*CriteriaService, error) {
	d, err := deps.withDefaults()
	if err != nil {
		return nil, err
	}
	return &CriteriaService{deps: d, validator: validator.New()}, nil
}

// ListCriteria returns a project's criteria ordered by position.
func (s *CriteriaService) ListCriteria(ctx context.Context, projectID string) ([]domain.Criterion, error) {
	return s.deps.Store.ListCriteria(ctx, projectID)
}

// ValidateWeights reports whether criteria is empty or sums to 100.
func (s *CriteriaService) ValidateWeights(criteria []domain.Criterion) bool {
	return domain.ValidateWeights(criteria)
}

// DefineCriteria replaces a project's criterion list. Criteria are frozen
// once the project reaches judging.
func (s *CriteriaService) DefineCriteria(
	ctx context.Context,
	principal domain.Principal,
	projectID string,
	inputs []domain.CriterionInput,
) (out []domain.Criterion, err error) {
	ctx, finish := s.deps.Observer.Start(ctx, "define_criteria", map[string]string{"project_id": projectID})
	defer func() { finish(err) }()

	if err := domain.RequireRole(principal, "define criteria", domain.RoleAdmin); err != nil {
		return nil, err
	}
	if err := s.validateInputs(inputs); err != nil {
		return nil, err
	}

	project, err := s.deps.Store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !project.Status.CriteriaEditable() {
		return nil, domain.NewStateError(projectID, "define criteria", project.Status)
	}

	criteria := make([]domain.Criterion, len(inputs))
	for i, in := range inputs {
		criteria[i] = domain.Criterion{
			ProjectID:   projectID,
			Description: strings.TrimSpace(in.Description),
			Weight:      in.Weight,
			Position:    i,
		}
	}
	saved, err := s.deps.Store.ReplaceCriteria(ctx, projectID, criteria)
	if err != nil {
		return nil, err
	}

	s.deps.invalidatePreview(ctx, projectID)
	s.deps.Logger.Info("criteria defined", "project_id", projectID, "count", len(saved))
	return saved, nil
}

func (s *CriteriaService) validateInputs(inputs []domain.CriterionInput) error {
	if err := domain.ValidateCriterionInputs(inputs); err != nil {
		return err
	}
	verr := domain.NewValidationError("criteria")
	for i, in := range inputs {
		if err := s.validator.Struct(in); err != nil {
			verr.AddErrorf("criterion %d: %v", i, err)
		}
	}
	return verr.OrNil()
}
