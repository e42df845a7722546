package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/meltcore/leaderboard-backend/internal/models"
	"github.com/meltcore/leaderboard-backend/internal/repository"
)

// healthPingTimeout bounds the store round-trip inside the health check so a
// hung store cannot hang the probe.
const healthPingTimeout = 2 * time.Second

// HealthzHandler reports process and store health.
type HealthzHandler struct {
	repo repository.RunRepository
}

// NewHealthzHandler creates a new healthz handler
func NewHealthzHandler(repo repository.RunRepository) *HealthzHandler {
	return &HealthzHandler{repo: repo}
}

// Health handles GET /health. The document always carries pool stats and the
// measured check latency; dbTime is present only when the store answered.
func (h *HealthzHandler) Health(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
	defer cancel()

	dbTime, err := h.repo.Ping(ctx)

	doc := models.HealthStatus{
		PoolStats: h.repo.PoolStats(),
	}
	doc.ResponseTimeMs = time.Since(start).Milliseconds()

	if err != nil {
		doc.Status = "error"
		doc.Database = "disconnected"
		doc.Error = err.Error()
		respondJSON(w, http.StatusInternalServerError, doc)
		return
	}

	doc.Status = "ok"
	doc.Database = "connected"
	doc.DBTime = dbTime.UTC().Format(time.RFC3339)
	respondJSON(w, http.StatusOK, doc)
}
