package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/meltcore/leaderboard-backend/internal/models"
	_ "modernc.org/sqlite"
)

// SQLiteRepository implements RunRepository using SQLite. It is the embedded
// backend for local development and tests; the pooled PostgreSQL backend is
// the production path.
type SQLiteRepository struct {
	db *sqlx.DB
}

// NewSQLiteRepository opens (or creates) the database file. WAL and a busy
// timeout keep readers responsive while the single write connection holds
// the file; SQLite serializes writers anyway, so one connection avoids
// SQLITE_BUSY churn instead of retrying around it.
func NewSQLiteRepository(path string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := fmt.Sprintf(
		"file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)",
		path,
	)
	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", classifySQLite(err))
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return &SQLiteRepository{db: db}, nil
}

// Close closes the database connection.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// RunMigrations runs database migrations.
func (r *SQLiteRepository) RunMigrations(migrationSQL string) error {
	_, err := r.db.Exec(migrationSQL)
	return classifySQLite(err)
}

// sqliteRun mirrors models.Run with created_at held as epoch milliseconds.
// SQLite has no native timestamp type, so the column is an INTEGER written
// from Go and converted back on scan.
type sqliteRun struct {
	ID         int64   `db:"id"`
	UserID     string  `db:"user_id"`
	RunID      string  `db:"run_id"`
	Timestamp  int64   `db:"timestamp"`
	Heat       float64 `db:"heat"`
	Power      float64 `db:"power"`
	Money      float64 `db:"money"`
	TimePlayed int64   `db:"time_played"`
	Layout     *string `db:"layout"`
	CreatedAt  int64   `db:"created_at"`
}

func (sr sqliteRun) toRun() *models.Run {
	return &models.Run{
		ID:         sr.ID,
		UserID:     sr.UserID,
		RunID:      sr.RunID,
		Timestamp:  sr.Timestamp,
		Heat:       sr.Heat,
		Power:      sr.Power,
		Money:      sr.Money,
		TimePlayed: sr.TimePlayed,
		Layout:     sr.Layout,
		CreatedAt:  time.UnixMilli(sr.CreatedAt).UTC(),
	}
}

const sqliteRunColumns = `id, user_id, run_id, timestamp, heat, power, money, time_played, layout, created_at`

// sqliteSaveRunQuery matches the PostgreSQL merge. MAX() here is SQLite's
// two-argument scalar max, and created_at is supplied by the caller on first
// insert and never touched by the conflict branch.
const sqliteSaveRunQuery = `
	INSERT INTO runs (user_id, run_id, timestamp, heat, power, money, time_played, layout, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (run_id) DO UPDATE SET
		timestamp   = excluded.timestamp,
		heat        = MAX(runs.heat, excluded.heat),
		power       = MAX(runs.power, excluded.power),
		money       = MAX(runs.money, excluded.money),
		time_played = MAX(runs.time_played, excluded.time_played),
		layout      = CASE WHEN excluded.power > runs.power THEN excluded.layout ELSE runs.layout END
	RETURNING ` + sqliteRunColumns

func (r *SQLiteRepository) SaveRun(ctx context.Context, params models.SaveRunParams) (*models.Run, error) {
	var row sqliteRun
	err := instrumentQuery("save_run", func() error {
		return r.db.GetContext(ctx, &row, sqliteSaveRunQuery,
			params.UserID,
			params.RunID,
			params.Timestamp,
			params.Heat,
			params.Power,
			params.Money,
			params.TimePlayed,
			params.Layout,
			time.Now().UTC().UnixMilli(),
		)
	})
	if err != nil {
		return nil, fmt.Errorf("save run %s: %w", params.RunID, classifySQLite(err))
	}
	return row.toRun(), nil
}

func (r *SQLiteRepository) TopRuns(ctx context.Context, field models.SortField, limit int) ([]*models.Run, error) {
	query := fmt.Sprintf(`SELECT %s FROM runs ORDER BY %s DESC LIMIT ?`, sqliteRunColumns, sortColumn(field))

	var rows []sqliteRun
	err := instrumentQuery("top_runs", func() error {
		return r.db.SelectContext(ctx, &rows, query, limit)
	})
	if err != nil {
		return nil, fmt.Errorf("top runs by %s: %w", sortColumn(field), classifySQLite(err))
	}

	runs := make([]*models.Run, 0, len(rows))
	for _, row := range rows {
		runs = append(runs, row.toRun())
	}
	return runs, nil
}

func (r *SQLiteRepository) RunCounts(ctx context.Context) (*models.RunCounts, error) {
	var counts models.RunCounts
	query := `SELECT COUNT(*) AS total_runs, COUNT(DISTINCT user_id) AS distinct_users FROM runs`

	err := instrumentQuery("run_counts", func() error {
		return r.db.GetContext(ctx, &counts, query)
	})
	if err != nil {
		return nil, fmt.Errorf("run counts: %w", classifySQLite(err))
	}
	return &counts, nil
}

func (r *SQLiteRepository) RunMaxima(ctx context.Context) (*models.RunMaxima, error) {
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
		return nil, fmt.Errorf("run maxima: %w", classifySQLite(err))
	}
	return &maxima, nil
}

// Ping round-trips the store and reports its clock in whole seconds, which
// is as precise as strftime goes.
func (r *SQLiteRepository) Ping(ctx context.Context) (time.Time, error) {
	var epoch int64
	err := instrumentQuery("ping", func() error {
		return r.db.GetContext(ctx, &epoch, `SELECT CAST(strftime('%s','now') AS INTEGER)`)
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("ping: %w", classifySQLite(err))
	}
	return time.Unix(epoch, 0).UTC(), nil
}

func (r *SQLiteRepository) PoolStats() models.PoolStats {
	s := r.db.Stats()
	return models.PoolStats{
		TotalCount:   s.OpenConnections,
		IdleCount:    s.Idle,
		WaitingCount: s.WaitCount,
	}
}
