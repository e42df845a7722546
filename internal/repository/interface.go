package repository

import (
	"context"
	"time"

	"github.com/meltcore/leaderboard-backend/internal/models"
)

// RunRepository defines leaderboard data access. Both the PostgreSQL and the
// SQLite backends implement it; the merge-upsert atomicity guarantee comes
// from a single conditional-update statement in each.
type RunRepository interface {
	// SaveRun inserts a run or merges it into the existing row for the same
	// run_id, returning the post-merge record.
	SaveRun(ctx context.Context, params models.SaveRunParams) (*models.Run, error)
	// TopRuns returns up to limit records ordered by field descending.
	TopRuns(ctx context.Context, field models.SortField, limit int) ([]*models.Run, error)
	// RunCounts returns board volume aggregates.
	RunCounts(ctx context.Context) (*models.RunCounts, error)
	// RunMaxima returns the best stored value per progress field.
	RunMaxima(ctx context.Context) (*models.RunMaxima, error)
	// Ping round-trips the store and returns its current clock.
	Ping(ctx context.Context) (time.Time, error)
	// PoolStats snapshots the connection pool occupancy.
	PoolStats() models.PoolStats
	// RunMigrations applies schema migration SQL.
	RunMigrations(migrationSQL string) error
	Close() error
}

// sortColumn resolves a sort field to its column name. The switch is the
// allowlist: raw request input never reaches the SQL string.
func sortColumn(field models.SortField) string {
	switch field {
	case models.SortHeat:
		return "heat"
	case models.SortMoney:
		return "money"
	case models.SortTimestamp:
		return "timestamp"
	default:
		return "power"
	}
}
