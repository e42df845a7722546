// Package rest exposes the leaderboard over HTTP: save submissions, top-N
// queries, board stats, and the health document.
package rest

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/meltcore/leaderboard-backend/internal/models"
	"github.com/meltcore/leaderboard-backend/internal/service"
)

// Handler manages HTTP request handlers
type Handler struct {
	leaderboard service.LeaderboardService
}

// NewHandler creates a new HTTP handler
func NewHandler(ls service.LeaderboardService) *Handler {
	return &Handler{leaderboard: ls}
}

// SetupRoutes configures the leaderboard API routes.
func SetupRoutes(router *mux.Router, h *Handler) {
	api := router.PathPrefix("/api/leaderboard").Subrouter()
	api.HandleFunc("/save", h.SaveRun).Methods("POST")
	api.HandleFunc("/top", h.TopRuns).Methods("GET")
	api.HandleFunc("/stats", h.Stats).Methods("GET")
}

// successResponse is the envelope for all non-error API payloads.
type successResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
}

// saveRunRequest is the save submission body. The game client sends played
// seconds as "time"; it is stored as time_played. A client-sent timestamp is
// deliberately not decoded; the server clock stamps every save.
type saveRunRequest struct {
	UserID     string  `json:"user_id"`
	RunID      string  `json:"run_id"`
	Heat       float64 `json:"heat"`
	Power      float64 `json:"power"`
	Money      float64 `json:"money"`
	TimePlayed int64   `json:"time"`
	Layout     *string `json:"layout"`
}

// SaveRun handles POST /api/leaderboard/save
func (h *Handler) SaveRun(w http.ResponseWriter, r *http.Request) {
	var req saveRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondErrorWithCode(w, http.StatusBadRequest, ErrCodeValidationFailed, "invalid request body", requestID(r))
		return
	}

	run, err := h.leaderboard.SaveRun(r.Context(), models.SaveRunParams{
		UserID:     req.UserID,
		RunID:      req.RunID,
		Heat:       req.Heat,
		Power:      req.Power,
		Money:      req.Money,
		TimePlayed: req.TimePlayed,
		Layout:     req.Layout,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, successResponse{Success: true, Data: run})
}

// TopRuns handles GET /api/leaderboard/top
func (h *Handler) TopRuns(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	runs, err := h.leaderboard.TopRuns(r.Context(), query.Get("sortBy"), query.Get("limit"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if runs == nil {
		runs = []*models.Run{}
	}

	respondJSON(w, http.StatusOK, successResponse{Success: true, Data: runs})
}

// Stats handles GET /api/leaderboard/stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.leaderboard.Stats(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, successResponse{Success: true, Data: stats})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
