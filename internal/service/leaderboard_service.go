// Package service holds the leaderboard domain logic between the HTTP layer
// and the store: input validation, permissive query defaults, and the
// aggregate composition for stats.
package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/meltcore/leaderboard-backend/internal/config"
	"github.com/meltcore/leaderboard-backend/internal/models"
	"github.com/meltcore/leaderboard-backend/internal/pkg/metrics"
	"github.com/meltcore/leaderboard-backend/internal/pkg/tracing"
	"github.com/meltcore/leaderboard-backend/internal/pkg/validate"
	"github.com/meltcore/leaderboard-backend/internal/repository"
)

// DefaultTopLimit is the number of records a top query returns when the
// caller does not ask for a specific limit.
const DefaultTopLimit = 10

const (
	defaultQueryTimeout = 5 * time.Second
	defaultTopLimitMax  = 100
)

// LeaderboardService is the application layer over the run store.
type LeaderboardService interface {
	// SaveRun validates and persists one run submission, merging into any
	// existing record for the same run_id. The returned record reflects the
	// post-merge row.
	SaveRun(ctx context.Context, params models.SaveRunParams) (*models.Run, error)
	// TopRuns returns the board ordered by sortBy descending. Unknown sort
	// fields silently fall back to power; absent or unusable limits fall
	// back to DefaultTopLimit, capped at the configured maximum.
	TopRuns(ctx context.Context, sortBy, limit string) ([]*models.Run, error)
	// Stats reports board-wide counts and maxima.
	Stats(ctx context.Context) (*models.LeaderboardStats, error)
}

type leaderboardService struct {
	repo         repository.RunRepository
	queryTimeout time.Duration
	topLimitMax  int
}

func NewLeaderboardService(repo repository.RunRepository, cfg *config.Config) LeaderboardService {
	queryTimeout := defaultQueryTimeout
	topLimitMax := defaultTopLimitMax
	if cfg != nil {
		if cfg.QueryTimeoutSec > 0 {
			queryTimeout = time.Duration(cfg.QueryTimeoutSec) * time.Second
		}
		if cfg.TopLimitMax > 0 {
			topLimitMax = cfg.TopLimitMax
		}
	}
	return &leaderboardService{
		repo:         repo,
		queryTimeout: queryTimeout,
		topLimitMax:  topLimitMax,
	}
}

func (s *leaderboardService) SaveRun(ctx context.Context, params models.SaveRunParams) (*models.Run, error) {
	ctx, span := tracing.StartSpanWithAttributes(ctx, "leaderboard.save_run",
		attribute.String("run_id", params.RunID))
	defer span.End()

	if !validate.ID(params.UserID) {
		metrics.SavesTotal.WithLabelValues("invalid").Inc()
		return nil, &repository.ValidationError{Field: "user_id"}
	}
	if !validate.ID(params.RunID) {
		metrics.SavesTotal.WithLabelValues("invalid").Inc()
		return nil, &repository.ValidationError{Field: "run_id"}
	}

	// The record's timestamp is the server's save clock, not client input.
	params.Timestamp = time.Now().UnixMilli()

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	run, err := s.repo.SaveRun(ctx, params)
	if err != nil {
		metrics.SavesTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.SavesTotal.WithLabelValues("saved").Inc()
	return run, nil
}

func (s *leaderboardService) TopRuns(ctx context.Context, sortBy, limit string) ([]*models.Run, error) {
	field := models.SortField(sortBy)
	if !field.IsValid() {
		field = models.SortPower
	}
	n := validate.Limit(limit, DefaultTopLimit, s.topLimitMax)

	ctx, span := tracing.StartSpanWithAttributes(ctx, "leaderboard.top_runs",
		attribute.String("sort_by", string(field)),
		attribute.Int("limit", n))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	return s.repo.TopRuns(ctx, field, n)
}

// Stats fans out the two aggregate queries and joins the halves.
func (s *leaderboardService) Stats(ctx context.Context) (*models.LeaderboardStats, error) {
	ctx, span := tracing.StartSpan(ctx, "leaderboard.stats")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	var (
		counts *models.RunCounts
		maxima *models.RunMaxima
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		counts, err = s.repo.RunCounts(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		maxima, err = s.repo.RunMaxima(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &models.LeaderboardStats{
		RunCounts: *counts,
		RunMaxima: *maxima,
	}, nil
}
