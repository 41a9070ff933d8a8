package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/Webtech-MQP/webjam-sub000/internal/domain"
	"github.com/Webtech-MQP/webjam-sub000/internal/ports"
)

// SeedStore is a store that can also create fixture records.
type SeedStore interface {
	ports.Store
	ports.FixtureStore
}

// Fixtures is the YAML document accepted by Seed.
type Fixtures struct {
	Projects []ProjectFixture `yaml:"projects" validate:"dive"`
}

// ProjectFixture describes one project with its criteria and teams.
type ProjectFixture struct {
	ID       string                  `yaml:"id" validate:"omitempty,uuid"`
	Title    string                  `yaml:"title" validate:"required"`
	Status   domain.ProjectStatus    `yaml:"status" validate:"omitempty,oneof=upcoming active judging completed"`
	Criteria []domain.CriterionInput `yaml:"criteria" validate:"dive"`
	Teams    []TeamFixture           `yaml:"teams" validate:"dive"`
}

// TeamFixture describes one instance and its submissions.
type TeamFixture struct {
	ID          string              `yaml:"id" validate:"omitempty,uuid"`
	Name        string              `yaml:"name" validate:"required"`
	Members     []string            `yaml:"members"`
	Submissions []SubmissionFixture `yaml:"submissions" validate:"dive"`
}

// SubmissionFixture describes one hand-in.
type SubmissionFixture struct {
	ID            string    `yaml:"id" validate:"omitempty,uuid"`
	RepositoryURL string    `yaml:"repository_url" validate:"omitempty,url"`
	DeploymentURL string    `yaml:"deployment_url" validate:"omitempty,url"`
	Notes         string    `yaml:"notes"`
	SubmittedOn   time.Time `yaml:"submitted_on"`
}

// SeedResult reports what Seed created.
type SeedResult struct {
	Projects    []domain.Project
	Instances   int
	Submissions int
}

// LoadFixtures reads a fixtures file.
func LoadFixtures(path string) (Fixtures, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return Fixtures{}, ports.NewConfigError(path, err)
	}
	defer f.Close()
	return ParseFixtures(f)
}

// ParseFixtures decodes and validates fixtures.
func ParseFixtures(r io.Reader) (Fixtures, error) {
	var fx Fixtures
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&fx); err != nil && !errors.Is(err, io.EOF) {
		return Fixtures{}, ports.NewConfigError("fixtures", fmt.Errorf("failed to decode YAML: %w", err))
	}
	if err := validator.New().Struct(fx); err != nil {
		return Fixtures{}, ports.NewConfigError("fixtures", err)
	}
	for _, p := range fx.Projects {
		if err := domain.ValidateCriterionInputs(p.Criteria); err != nil {
			return Fixtures{}, ports.NewConfigError("fixtures."+p.Title, err)
		}
	}
	return fx, nil
}

// Seed creates the fixture projects. Each project is created upcoming, given
// its criteria and then walked forward through the lifecycle to its target
// status, so seeded data always obeys the same transitions as live data.
// Completed is not a valid seed target because completion needs judgements.
func Seed(ctx context.Context, store SeedStore, fx Fixtures, logger *slog.Logger) (SeedResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var res SeedResult
	for _, pf := range fx.Projects {
		target := pf.Status
		if target == "" {
			target = domain.StatusUpcoming
		}
		if target == domain.StatusCompleted {
			return res, domain.NewValidationError("fixtures",
				fmt.Sprintf("project %q: completed projects cannot be seeded", pf.Title))
		}

		project, err := store.CreateProject(ctx, domain.Project{ID: pf.ID, Title: pf.Title, Status: domain.StatusUpcoming})
		if err != nil {
			return res, fmt.Errorf("seed project %q: %w", pf.Title, err)
		}

		criteria := make([]domain.Criterion, len(pf.Criteria))
		for i, c := range pf.Criteria {
			criteria[i] = domain.Criterion{ProjectID: project.ID, Description: c.Description, Weight: c.Weight}
		}
		if _, err := store.ReplaceCriteria(ctx, project.ID, criteria); err != nil {
			return res, fmt.Errorf("seed criteria of %q: %w", pf.Title, err)
		}

		for _, tf := range pf.Teams {
			inst, err := store.CreateInstance(ctx, domain.Instance{
				ID:        tf.ID,
				ProjectID: project.ID,
				TeamName:  tf.Name,
				Members:   tf.Members,
			})
			if err != nil {
				return res, fmt.Errorf("seed team %q: %w", tf.Name, err)
			}
			res.Instances++
			for _, sf := range tf.Submissions {
				if _, err := store.CreateSubmission(ctx, domain.Submission{
					ID:            sf.ID,
					InstanceID:    inst.ID,
					RepositoryURL: sf.RepositoryURL,
					DeploymentURL: sf.DeploymentURL,
					Notes:         sf.Notes,
					SubmittedOn:   sf.SubmittedOn,
				}); err != nil {
					return res, fmt.Errorf("seed submission of %q: %w", tf.Name, err)
				}
				res.Submissions++
			}
		}

		project, err = advanceTo(ctx, store, project, target)
		if err != nil {
			return res, fmt.Errorf("seed status of %q: %w", pf.Title, err)
		}
		res.Projects = append(res.Projects, project)
		logger.Info("seeded project", "project_id", project.ID, "title", project.Title, "status", project.Status)
	}
	return res, nil
}

// seedPath lists the events that lead from upcoming to each seedable status.
var seedPath = map[domain.ProjectStatus][]domain.ProjectEvent{
	domain.StatusUpcoming: nil,
	domain.StatusActive:   {domain.EventStart},
	domain.StatusJudging:  {domain.EventStart, domain.EventCloseSubmissions},
}

func advanceTo(ctx context.Context, store ports.ProjectStore, p domain.Project, target domain.ProjectStatus) (domain.Project, error) {
	for _, event := range seedPath[target] {
		next, err := p.Apply(event, "seed")
		if err != nil {
			return p, err
		}
		if p, err = store.TransitionProject(ctx, p.ID, p.Status, next.Status); err != nil {
			return p, err
		}
	}
	return p, nil
}
