package rest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func corsTestServer(allowedOrigins []string) http.Handler {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return NewCORS(allowedOrigins).Handler(inner)
}

func preflight(handler http.Handler, origin, method string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodOptions, "/api/leaderboard/save", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", method)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestCORSPreflightAllowsConfiguredOrigin(t *testing.T) {
	handler := corsTestServer([]string{"http://localhost:3000"})

	rr := preflight(handler, "http://localhost:3000", http.MethodPost)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("expected allowed origin echoed back, got %q", got)
	}
	methods := rr.Header().Get("Access-Control-Allow-Methods")
	if !strings.Contains(methods, http.MethodPost) {
		t.Errorf("expected POST in allowed methods, got %q", methods)
	}
}

func TestCORSPreflightRejectsUnknownOrigin(t *testing.T) {
	handler := corsTestServer([]string{"http://localhost:3000"})

	rr := preflight(handler, "http://evil.example", http.MethodPost)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unknown origin must not be allowed, got %q", got)
	}
}

func TestCORSWildcardOrigin(t *testing.T) {
	handler := corsTestServer([]string{"*"})

	rr := preflight(handler, "http://anywhere.example", http.MethodGet)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("expected wildcard origin, got %q", got)
	}
}

func TestCORSActualRequestCarriesOriginHeader(t *testing.T) {
	handler := corsTestServer([]string{"http://localhost:3000"})

	req := httptest.NewRequest(http.MethodGet, "/api/leaderboard/top", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("expected allowed origin on actual request, got %q", got)
	}
}
