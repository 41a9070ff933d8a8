package application

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/Webtech-MQP/webjam-sub000/infrastructure/scoring"
	"github.com/Webtech-MQP/webjam-sub000/internal/domain"
	"github.com/Webtech-MQP/webjam-sub000/internal/ports"
)

// previewTimeout bounds one shared preview computation.
const previewTimeout = 30 * time.Second

// RankingService computes ranking previews and freezes final rankings.
type RankingService struct {
	// deps carries the store and ambient collaborators.
	deps Dependencies
	// aggregator reduces judgements to composite scores.
	aggregator *scoring.WeightedComposite
	// ranker orders entries and applies the tie-breaking strategy.
	ranker *scoring.Ranker
	// concurrency bounds parallel judgement loads during a preview.
	concurrency int
	// previewTTL is how long a preview stays cached; zero disables caching.
	previewTTL time.Duration
	// sf coalesces concurrent previews of the same project.
	sf singleflight.Group
}

// NewRankingService builds a RankingService from scoring configuration.
func NewRankingService(deps Dependencies, cfg ScoringConfig, previewTTL time.Duration) (*RankingService, error) {
	d, err := deps.withDefaults()
	if err != nil {
		return nil, err
	}
	aggregator, err := scoring.NewWeightedComposite(scoring.CompositeConfig{ZeroJudgementPolicy: cfg.ZeroJudgementPolicy})
	if err != nil {
		return nil, fmt.Errorf("invalid scoring config: %w", err)
	}
	ranker, err := scoring.NewRanker(scoring.RankerConfig{TieBreaker: cfg.TieBreaker})
	if err != nil {
		return nil, fmt.Errorf("invalid scoring config: %w", err)
	}
	concurrency := cfg.PreviewConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &RankingService{
		deps:        d,
		aggregator:  aggregator,
		ranker:      ranker,
		concurrency: concurrency,
		previewTTL:  previewTTL,
	}, nil
}

// PreviewRanking returns every instance with a canonical submission, ordered
// by composite score. It writes nothing and may be called at any status;
// results can lag concurrent judging by up to the cache TTL.
func (s *RankingService) PreviewRanking(
	ctx context.Context,
	principal domain.Principal,
	projectID string,
) (entries []domain.RankedEntry, err error) {
	ctx, finish := s.deps.Observer.Start(ctx, "preview_ranking", map[string]string{"project_id": projectID})
	defer func() { finish(err) }()

	if err := domain.RequireRole(principal, "preview rankings", domain.RoleJudge, domain.RoleAdmin); err != nil {
		return nil, err
	}

	ch := s.sf.DoChan(projectID, func() (any, error) {
		// The flight is shared by every coalesced caller and outlives any
		// single caller's cancellation.
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), previewTimeout)
		defer cancel()

		gen := s.deps.Previews.current(projectID)
		if cached, ok := s.cachedPreview(fctx, projectID); ok {
			return cached, nil
		}
		_, ordered, err := s.scoreProject(fctx, projectID)
		if err != nil {
			return nil, err
		}
		s.storePreview(fctx, projectID, gen, ordered)
		return ordered, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return slices.Clone(res.Val.([]domain.RankedEntry)), nil
	}
}

func (s *RankingService) cachedPreview(ctx context.Context, projectID string) ([]domain.RankedEntry, bool) {
	if s.deps.Cache == nil || s.previewTTL <= 0 {
		return nil, false
	}
	var entries []domain.RankedEntry
	found, err := s.deps.Cache.Get(ctx, previewCacheKey(projectID), &entries)
	if err != nil {
		s.deps.Logger.Warn("ranking preview cache read failed", "project_id", projectID, "error", err)
		return nil, false
	}
	result := "miss"
	if found {
		result = "hit"
	}
	s.deps.Metrics.RecordCounter(ports.MetricPreviewCacheRequests, 1, map[string]string{"result": result})
	return entries, found
}

// storePreview caches entries unless the project's preview was invalidated
// after generation gen was read.
func (s *RankingService) storePreview(ctx context.Context, projectID string, gen uint64, entries []domain.RankedEntry) {
	if s.deps.Cache == nil || s.previewTTL <= 0 {
		return
	}
	stored := s.deps.Previews.storeIf(projectID, gen, func() {
		if err := s.deps.Cache.Set(ctx, previewCacheKey(projectID), entries, s.previewTTL); err != nil {
			s.deps.Logger.Warn("ranking preview cache write failed", "project_id", projectID, "error", err)
		}
	})
	if !stored {
		s.deps.Logger.Debug("ranking preview outdated before caching", "project_id", projectID)
	}
}

// scoreProject loads a project's criteria, teams and judgements and returns
// the rankable entries ordered by the configured ranker, along with every
// instance of the project.
func (s *RankingService) scoreProject(ctx context.Context, projectID string) ([]domain.Instance, []domain.RankedEntry, error) {
	if _, err := s.deps.Store.GetProject(ctx, projectID); err != nil {
		return nil, nil, err
	}
	criteria, err := s.deps.Store.ListCriteria(ctx, projectID)
	if err != nil {
		return nil, nil, err
	}
	instances, err := s.deps.Store.ListInstances(ctx, projectID)
	if err != nil {
		return nil, nil, err
	}

	canonical := scoring.SelectCanonicalSubmissions(instances)
	entries := make([]domain.RankedEntry, 0, len(canonical))
	for _, inst := range instances {
		sub, ok := canonical[inst.ID]
		if !ok {
			continue
		}
		entries = append(entries, domain.RankedEntry{Instance: inst, Submission: sub})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range entries {
		g.Go(func() error {
			judgements, err := s.deps.Store.ListJudgements(gctx, entries[i].Submission.ID, nil)
			if err != nil {
				return err
			}
			entries[i].CompositeScore = s.aggregator.Composite(criteria, judgements)
			entries[i].CriterionMeans = scoring.CriterionMeans(judgements)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	for _, e := range entries {
		s.deps.Metrics.RecordHistogram(ports.MetricCompositeScore, e.CompositeScore, map[string]string{"project_id": projectID})
	}
	return instances, s.ranker.Order(entries), nil
}

// FinalizeRanking freezes the ranking of a judging project and completes it.
// manualOrder, when non-empty, is used verbatim and must list every ranked
// instance exactly once. A second call fails with *domain.StateError and
// leaves the stored ranking untouched.
func (s *RankingService) FinalizeRanking(
	ctx context.Context,
	principal domain.Principal,
	projectID string,
	manualOrder []string,
) (rankings []domain.Ranking, err error) {
	ctx, finish := s.deps.Observer.Start(ctx, "finalize_ranking", map[string]string{"project_id": projectID})
	defer func() { finish(err) }()

	if err := domain.RequireRole(principal, "finalize rankings", domain.RoleAdmin); err != nil {
		return nil, err
	}
	_, rankings, err = s.complete(ctx, projectID, manualOrder, nil)
	return rankings, err
}

// complete computes the final order, validates awards and commits the
// completion. The caller has already authorized the principal.
func (s *RankingService) complete(
	ctx context.Context,
	projectID string,
	manualOrder []string,
	awards map[string]*string,
) (domain.Project, []domain.Ranking, error) {
	project, err := s.deps.Store.GetProject(ctx, projectID)
	if err != nil {
		return domain.Project{}, nil, err
	}
	if project.Status != domain.StatusJudging {
		return domain.Project{}, nil, domain.NewStateError(projectID, "complete project", project.Status)
	}

	instances, ordered, err := s.scoreProject(ctx, projectID)
	if err != nil {
		return domain.Project{}, nil, err
	}

	var order []string
	if len(manualOrder) > 0 {
		if err := scoring.ValidateManualOrder(ordered, manualOrder); err != nil {
			return domain.Project{}, nil, err
		}
		order = slices.Clone(manualOrder)
	} else {
		order, err = s.ranker.FinalOrder(ordered)
		if err != nil {
			if errors.Is(err, scoring.ErrTie) {
				return domain.Project{}, nil, fmt.Errorf("%w: %w", err,
					domain.NewValidationError("ranking", "tied composite scores require a manual order"))
			}
			return domain.Project{}, nil, err
		}
	}

	assignments, err := bindAwards(projectID, order, awards)
	if err != nil {
		return domain.Project{}, nil, err
	}

	now := s.deps.Clock()
	rankings := domain.RankingsFromOrder(projectID, order, now)
	if err := domain.CheckRankPermutation(rankings); err != nil {
		return domain.Project{}, nil, err
	}

	completed, err := s.deps.Store.CommitCompletion(ctx, ports.Completion{
		ProjectID:     projectID,
		Rankings:      rankings,
		Awards:        assignments,
		Notifications: domain.CompletionNotifications(project, instances, rankings, assignments, now),
		CompletedAt:   now,
	})
	if err != nil {
		var stateErr *domain.StateError
		if errors.As(err, &stateErr) {
			s.deps.Logger.Warn("completion lost to a concurrent status change",
				"project_id", projectID, "status", stateErr.Status)
		}
		return domain.Project{}, nil, err
	}

	s.deps.invalidatePreview(ctx, projectID)
	s.deps.publish(projectID, ports.LiveProjectCompleted, rankings)
	s.deps.Logger.Info("project completed",
		"project_id", projectID,
		"ranked", len(rankings),
		"awards", len(assignments),
		"manual_order", len(manualOrder) > 0,
	)
	return completed, rankings, nil
}

// bindAwards turns the award map into assignments sorted by award ID. Every
// assigned instance must be one of the ranked instances.
func bindAwards(projectID string, order []string, awards map[string]*string) ([]domain.AwardAssignment, error) {
	if len(awards) == 0 {
		return nil, nil
	}
	ranked := make(map[string]struct{}, len(order))
	for _, id := range order {
		ranked[id] = struct{}{}
	}

	verr := domain.NewValidationError("awards")
	out := make([]domain.AwardAssignment, 0, len(awards))
	for awardID, instanceID := range awards {
		if awardID == "" {
			verr.AddError("award id is required")
			continue
		}
		if instanceID != nil {
			if _, ok := ranked[*instanceID]; !ok {
				verr.AddErrorf("award %s: instance %s is not ranked in this project", awardID, *instanceID)
				continue
			}
			id := *instanceID
			instanceID = &id
		}
		out = append(out, domain.AwardAssignment{ProjectID: projectID, AwardID: awardID, InstanceID: instanceID})
	}
	if verr.HasErrors() {
		sort.Strings(verr.Errors)
		return nil, verr
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AwardID < out[j].AwardID })
	return out, nil
}
