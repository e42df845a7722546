package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/meltcore/leaderboard-backend/internal/models"
)

// PostgresRepository implements RunRepository using PostgreSQL.
type PostgresRepository struct {
	db *sqlx.DB
}

// PoolConfig bounds the shared connection pool. Callers queue (not reject)
// when the pool is saturated; acquisition is governed by the request context
// deadline. Zero values fall back to the defaults below.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 5 * time.Minute
	defaultConnMaxIdleTime = time.Minute
)

func (p PoolConfig) withDefaults() PoolConfig {
	if p.MaxOpenConns <= 0 {
		p.MaxOpenConns = defaultMaxOpenConns
	}
	if p.MaxIdleConns <= 0 {
		p.MaxIdleConns = defaultMaxIdleConns
	}
	if p.ConnMaxLifetime <= 0 {
		p.ConnMaxLifetime = defaultConnMaxLifetime
	}
	if p.ConnMaxIdleTime <= 0 {
		p.ConnMaxIdleTime = defaultConnMaxIdleTime
	}
	return p
}

// NewPostgresRepository connects to PostgreSQL and configures the pool.
func NewPostgresRepository(connectionString string, pool PoolConfig) (*PostgresRepository, error) {
	db, err := sqlx.Connect("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", classifyPostgres(err))
	}

	pool = pool.withDefaults()
	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	db.SetConnMaxIdleTime(pool.ConnMaxIdleTime)

	return &PostgresRepository{db: db}, nil
}

// Close closes the database connection.
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

// RunMigrations runs database migrations.
func (r *PostgresRepository) RunMigrations(migrationSQL string) error {
	_, err := r.db.Exec(migrationSQL)
	return classifyPostgres(err)
}

const pgRunColumns = `id, user_id, run_id, timestamp, heat, power, money, time_played, layout, created_at`

// pgSaveRunQuery is the whole merge in one conditional statement, so the
// outcome is deterministic under concurrent writers for the same run_id.
// Inside DO UPDATE, `runs.*` is the committed pre-update row and `excluded.*`
// the incoming values: numeric fields keep their maximum, timestamp is always
// overwritten, and layout is replaced only when the incoming power beats the
// pre-update stored power. user_id is written once at insert.
const pgSaveRunQuery = `
	INSERT INTO runs (user_id, run_id, timestamp, heat, power, money, time_played, layout)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (run_id) DO UPDATE SET
		timestamp   = excluded.timestamp,
		heat        = GREATEST(runs.heat, excluded.heat),
		power       = GREATEST(runs.power, excluded.power),
		money       = GREATEST(runs.money, excluded.money),
		time_played = GREATEST(runs.time_played, excluded.time_played),
		layout      = CASE WHEN excluded.power > runs.power THEN excluded.layout ELSE runs.layout END
	RETURNING ` + pgRunColumns

func (r *PostgresRepository) SaveRun(ctx context.Context, params models.SaveRunParams) (*models.Run, error) {
	var run models.Run
	err := instrumentQuery("save_run", func() error {
		return r.db.GetContext(ctx, &run, pgSaveRunQuery,
			params.UserID,
			params.RunID,
			params.Timestamp,
			params.Heat,
			params.Power,
			params.Money,
			params.TimePlayed,
			params.Layout,
		)
	})
	if err != nil {
		return nil, fmt.Errorf("save run %s: %w", params.RunID, classifyPostgres(err))
	}
	return &run, nil
}

func (r *PostgresRepository) TopRuns(ctx context.Context, field models.SortField, limit int) ([]*models.Run, error) {
	query := fmt.Sprintf(`SELECT %s FROM runs ORDER BY %s DESC LIMIT $1`, pgRunColumns, sortColumn(field))

	var runs []*models.Run
	err := instrumentQuery("top_runs", func() error {
		return r.db.SelectContext(ctx, &runs, query, limit)
	})
	if err != nil {
		return nil, fmt.Errorf("top runs by %s: %w", sortColumn(field), classifyPostgres(err))
	}
	return runs, nil
}

func (r *PostgresRepository) RunCounts(ctx context.Context) (*models.RunCounts, error) {
	var counts models.RunCounts
	query := `SELECT COUNT(*) AS total_runs, COUNT(DISTINCT user_id) AS distinct_users FROM runs`

	err := instrumentQuery("run_counts", func() error {
		return r.db.GetContext(ctx, &counts, query)
	})
	if err != nil {
		return nil, fmt.Errorf("run counts: %w", classifyPostgres(err))
	}
	return &counts, nil
}

func (r *PostgresRepository) RunMaxima(ctx context.Context) (*models.RunMaxima, error) {
	var maxima models.RunMaxima
	query := `
		SELECT
			COALESCE(MAX(heat), 0)        AS max_heat,
			COALESCE(MAX(power), 0)       AS max_power,
			COALESCE(MAX(money), 0)       AS max_money,
			COALESCE(MAX(time_played), 0) AS max_time_played
		FROM runs
	`

	err := instrumentQuery("run_maxima", func() error {
		return r.db.GetContext(ctx, &maxima, query)
	})
	if err != nil {
		return nil, fmt.Errorf("run maxima: %w", classifyPostgres(err))
	}
	return &maxima, nil
}

// Ping round-trips the store. The store's clock comes back for the health
// document's dbTime field.
func (r *PostgresRepository) Ping(ctx context.Context) (time.Time, error) {
	var now time.Time
	err := instrumentQuery("ping", func() error {
		return r.db.GetContext(ctx, &now, `SELECT now()`)
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("ping: %w", classifyPostgres(err))
	}
	return now, nil
}

func (r *PostgresRepository) PoolStats() models.PoolStats {
	s := r.db.Stats()
	return models.PoolStats{
		TotalCount:   s.OpenConnections,
		IdleCount:    s.Idle,
		WaitingCount: s.WaitCount,
	}
}
