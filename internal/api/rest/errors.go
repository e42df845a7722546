package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/meltcore/leaderboard-backend/internal/pkg/logger"
	"github.com/meltcore/leaderboard-backend/internal/repository"
)

// APIError represents a structured API error response
type APIError struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// Error codes for common scenarios
const (
	ErrCodeValidationFailed  = "VALIDATION_FAILED"
	ErrCodeStoreUnavailable  = "STORE_UNAVAILABLE"
	ErrCodeStoreIntegrity    = "STORE_INTEGRITY"
	ErrCodeInternalError     = "INTERNAL_ERROR"
	ErrCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
)

// respondErrorWithCode sends a structured error response.
func respondErrorWithCode(w http.ResponseWriter, status int, code, message, reqID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIError{
		Error:     message,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

// respondServiceError maps domain errors onto the HTTP error contract:
// client-fault validation becomes 400, everything from the store becomes a
// 500 with a code the caller can use to decide on retrying.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	reqID := requestID(r)

	var verr *repository.ValidationError
	if errors.As(err, &verr) {
		respondErrorWithCode(w, http.StatusBadRequest, ErrCodeValidationFailed, verr.Error(), reqID)
		return
	}

	if errors.Is(err, repository.ErrStoreUnavailable) {
		respondErrorWithCode(w, http.StatusInternalServerError, ErrCodeStoreUnavailable,
			"leaderboard store is unavailable, retry later", reqID)
		return
	}

	var ierr *repository.StoreIntegrityError
	if errors.As(err, &ierr) {
		respondErrorWithCode(w, http.StatusInternalServerError, ErrCodeStoreIntegrity,
			"leaderboard store rejected the write", reqID)
		return
	}

	respondErrorWithCode(w, http.StatusInternalServerError, ErrCodeInternalError,
		"internal server error", reqID)
}

func requestID(r *http.Request) string {
	return logger.FromContext(r.Context())
}
