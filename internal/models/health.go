package models

// PoolStats is a point-in-time snapshot of the store connection pool,
// mirroring database/sql.DBStats. Field names match the wire format the
// dashboard polls.
type PoolStats struct {
	TotalCount   int   `json:"totalCount"`   // open connections, in use + idle
	IdleCount    int   `json:"idleCount"`    // idle connections
	WaitingCount int64 `json:"waitingCount"` // cumulative waits for a connection
}

// HealthStatus is the /health response document.
type HealthStatus struct {
	Status         string    `json:"status"`   // ok, error
	Database       string    `json:"database"` // connected, disconnected
	ResponseTimeMs int64     `json:"responseTime"`
	PoolStats      PoolStats `json:"poolStats"`
	DBTime         string    `json:"dbTime,omitempty"` // store's clock, RFC3339
	Error          string    `json:"error,omitempty"`
}
