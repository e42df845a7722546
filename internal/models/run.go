// Package models defines the canonical leaderboard domain model.
// A Run is one player's recorded play session; repeated saves for the same
// run_id merge into a single row rather than creating new ones.
package models

import "time"

// Run represents one persisted game run. Numeric progress fields only ever
// grow: the store keeps the maximum seen across all saves for the same run.
type Run struct {
	ID         int64     `json:"id" db:"id"`
	UserID     string    `json:"user_id" db:"user_id"`
	RunID      string    `json:"run_id" db:"run_id"`
	Timestamp  int64     `json:"timestamp" db:"timestamp"` // epoch millis of the most recent save
	Heat       float64   `json:"heat" db:"heat"`
	Power      float64   `json:"power" db:"power"`
	Money      float64   `json:"money" db:"money"`
	TimePlayed int64     `json:"time_played" db:"time_played"`
	Layout     *string   `json:"layout" db:"layout"` // snapshot tied to the best power seen
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// SaveRunParams carries one save submission. UserID and RunID are required;
// numeric fields default to zero and Layout to null when absent.
type SaveRunParams struct {
	UserID     string
	RunID      string
	Timestamp  int64 // epoch millis; stamped by the service at save time
	Heat       float64
	Power      float64
	Money      float64
	TimePlayed int64
	Layout     *string
}

// SortField selects the leaderboard ordering column.
type SortField string

const (
	SortHeat      SortField = "heat"
	SortPower     SortField = "power"
	SortMoney     SortField = "money"
	SortTimestamp SortField = "timestamp"
)

// IsValid reports whether s names a sortable field. Unknown values fall back
// to SortPower at the service layer rather than erroring.
func (s SortField) IsValid() bool {
	switch s {
	case SortHeat, SortPower, SortMoney, SortTimestamp:
		return true
	}
	return false
}

// RunCounts is the volume half of the board aggregate.
type RunCounts struct {
	TotalRuns     int64 `json:"total_runs" db:"total_runs"`
	DistinctUsers int64 `json:"distinct_users" db:"distinct_users"`
}

// RunMaxima is the best-value half of the board aggregate.
type RunMaxima struct {
	MaxHeat       float64 `json:"max_heat" db:"max_heat"`
	MaxPower      float64 `json:"max_power" db:"max_power"`
	MaxMoney      float64 `json:"max_money" db:"max_money"`
	MaxTimePlayed int64   `json:"max_time_played" db:"max_time_played"`
}

// LeaderboardStats aggregates the whole board for the stats endpoint. The two
// halves come from independent queries and are gathered concurrently.
type LeaderboardStats struct {
	RunCounts
	RunMaxima
}
