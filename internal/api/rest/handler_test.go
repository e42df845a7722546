package rest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"github.com/meltcore/leaderboard-backend/internal/config"
	"github.com/meltcore/leaderboard-backend/internal/models"
	"github.com/meltcore/leaderboard-backend/internal/repository"
	"github.com/meltcore/leaderboard-backend/internal/service"
	dbmigrations "github.com/meltcore/leaderboard-backend/migrations"
)

type saveEnvelope struct {
	Success bool        `json:"success"`
	Data    *models.Run `json:"data"`
}

type listEnvelope struct {
	Success bool          `json:"success"`
	Data    []*models.Run `json:"data"`
}

type statsEnvelope struct {
	Success bool                     `json:"success"`
	Data    *models.LeaderboardStats `json:"data"`
}

func newTestRouter(t *testing.T) *mux.Router {
	t.Helper()

	repo, err := repository.NewSQLiteRepository(filepath.Join(t.TempDir(), "rest.db"))
	if err != nil {
		t.Fatalf("create sqlite repo: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	migrationSQL, err := dbmigrations.ForDriver("sqlite")
	if err != nil {
		t.Fatalf("load embedded migrations: %v", err)
	}
	if err := repo.RunMigrations(migrationSQL); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	router := mux.NewRouter()
	SetupRoutes(router, NewHandler(service.NewLeaderboardService(repo, &config.Config{
		QueryTimeoutSec: 5,
		TopLimitMax:     100,
	})))
	return router
}

func doJSON(t *testing.T, router *mux.Router, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func saveRun(t *testing.T, router *mux.Router, body string) *httptest.ResponseRecorder {
	t.Helper()
	return doJSON(t, router, http.MethodPost, "/api/leaderboard/save", body)
}

func TestSaveRunEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rr := saveRun(t, router, `{"user_id":"u-1","run_id":"r-1","heat":10,"power":20,"money":30,"time":40,"layout":"alpha"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json content type, got %q", ct)
	}

	var env saveEnvelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !env.Success {
		t.Error("expected success=true")
	}
	if env.Data == nil {
		t.Fatal("expected persisted run in data")
	}
	if env.Data.RunID != "r-1" || env.Data.UserID != "u-1" {
		t.Errorf("unexpected identifiers: user=%s run=%s", env.Data.UserID, env.Data.RunID)
	}
	if env.Data.Heat != 10 || env.Data.Power != 20 || env.Data.Money != 30 || env.Data.TimePlayed != 40 {
		t.Errorf("unexpected run values: %+v", env.Data)
	}
	if env.Data.Layout == nil || *env.Data.Layout != "alpha" {
		t.Errorf("expected layout alpha, got %v", env.Data.Layout)
	}
	if env.Data.Timestamp <= 0 {
		t.Errorf("expected server-stamped timestamp, got %d", env.Data.Timestamp)
	}
}

func TestSaveRunEndpointIgnoresClientTimestamp(t *testing.T) {
	router := newTestRouter(t)

	rr := saveRun(t, router, `{"user_id":"u-1","run_id":"r-1","power":1,"timestamp":12345}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var env saveEnvelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if env.Data.Timestamp == 12345 {
		t.Error("client-sent timestamp must not be persisted")
	}
}

func TestSaveRunEndpointValidation(t *testing.T) {
	router := newTestRouter(t)

	cases := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{"missing user_id", `{"run_id":"r-1","power":5}`, "user_id"},
		{"missing run_id", `{"user_id":"u-1","power":5}`, "run_id"},
		{"malformed json", `{"user_id":`, "invalid request body"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := saveRun(t, router, tc.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
			}

			var apiErr APIError
			if err := json.Unmarshal(rr.Body.Bytes(), &apiErr); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if apiErr.Code != ErrCodeValidationFailed {
				t.Errorf("expected code %s, got %s", ErrCodeValidationFailed, apiErr.Code)
			}
			if !strings.Contains(apiErr.Message, tc.wantMsg) {
				t.Errorf("expected message mentioning %q, got %q", tc.wantMsg, apiErr.Message)
			}
		})
	}

	// None of the rejected saves may have written a row.
	rr := doJSON(t, router, http.MethodGet, "/api/leaderboard/top", "")
	var env listEnvelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode top response: %v", err)
	}
	if len(env.Data) != 0 {
		t.Errorf("expected empty board after rejected saves, got %d rows", len(env.Data))
	}
}

func TestSaveRunEndpointMergesExisting(t *testing.T) {
	router := newTestRouter(t)

	saveRun(t, router, `{"user_id":"u-1","run_id":"r-1","heat":10,"power":20,"money":30,"time":40,"layout":"alpha"}`)
	rr := saveRun(t, router, `{"user_id":"u-1","run_id":"r-1","heat":5,"power":50,"money":1,"time":100,"layout":"bravo"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var env saveEnvelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	merged := env.Data
	if merged.Heat != 10 || merged.Power != 50 || merged.Money != 30 || merged.TimePlayed != 100 {
		t.Errorf("merge kept wrong values: %+v", merged)
	}
	if merged.Layout == nil || *merged.Layout != "bravo" {
		t.Errorf("expected layout replaced on power gain, got %v", merged.Layout)
	}

	list := doJSON(t, router, http.MethodGet, "/api/leaderboard/top", "")
	var listEnv listEnvelope
	if err := json.Unmarshal(list.Body.Bytes(), &listEnv); err != nil {
		t.Fatalf("decode top response: %v", err)
	}
	if len(listEnv.Data) != 1 {
		t.Fatalf("expected a single row for the merged run, got %d", len(listEnv.Data))
	}
}

func TestTopRunsEndpoint(t *testing.T) {
	router := newTestRouter(t)

	// Heat ascending, power descending, so the two orderings differ.
	for i := 0; i < 3; i++ {
		rr := saveRun(t, router, fmt.Sprintf(
			`{"user_id":"u-%d","run_id":"r-%d","heat":%d,"power":%d}`, i, i, i*10, 100-i))
		if rr.Code != http.StatusOK {
			t.Fatalf("seed save %d failed: %d %s", i, rr.Code, rr.Body.String())
		}
	}

	fetch := func(t *testing.T, target string) []*models.Run {
		t.Helper()
		rr := doJSON(t, router, http.MethodGet, target, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200 for %s, got %d: %s", target, rr.Code, rr.Body.String())
		}
		var env listEnvelope
		if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode top response: %v", err)
		}
		if !env.Success {
			t.Errorf("expected success=true for %s", target)
		}
		return env.Data
	}

	t.Run("sort by heat with limit", func(t *testing.T) {
		runs := fetch(t, "/api/leaderboard/top?sortBy=heat&limit=2")
		if len(runs) != 2 {
			t.Fatalf("expected 2 rows, got %d", len(runs))
		}
		if runs[0].RunID != "r-2" || runs[1].RunID != "r-1" {
			t.Errorf("unexpected heat order: %s, %s", runs[0].RunID, runs[1].RunID)
		}
	})

	t.Run("default sorts by power", func(t *testing.T) {
		runs := fetch(t, "/api/leaderboard/top")
		if len(runs) != 3 {
			t.Fatalf("expected 3 rows, got %d", len(runs))
		}
		if runs[0].RunID != "r-0" {
			t.Errorf("expected r-0 to lead on power, got %s", runs[0].RunID)
		}
	})

	t.Run("unknown sort falls back to power", func(t *testing.T) {
		bogus := fetch(t, "/api/leaderboard/top?sortBy=bogus")
		power := fetch(t, "/api/leaderboard/top?sortBy=power")
		if len(bogus) != len(power) {
			t.Fatalf("row count mismatch: %d vs %d", len(bogus), len(power))
		}
		for i := range bogus {
			if bogus[i].RunID != power[i].RunID {
				t.Errorf("row %d: bogus sort gave %s, power gave %s", i, bogus[i].RunID, power[i].RunID)
			}
		}
	})
}

func TestTopRunsEndpointEmptyBoard(t *testing.T) {
	router := newTestRouter(t)

	rr := doJSON(t, router, http.MethodGet, "/api/leaderboard/top", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"data":[]`) {
		t.Errorf("expected empty array, not null: %s", rr.Body.String())
	}
}

func TestStatsEndpoint(t *testing.T) {
	router := newTestRouter(t)

	saveRun(t, router, `{"user_id":"u-1","run_id":"r-1","heat":5,"power":40,"money":10,"time":60}`)
	saveRun(t, router, `{"user_id":"u-1","run_id":"r-2","heat":25,"power":15,"money":900,"time":30}`)
	saveRun(t, router, `{"user_id":"u-2","run_id":"r-3","heat":1,"power":2,"money":3,"time":4}`)

	rr := doJSON(t, router, http.MethodGet, "/api/leaderboard/stats", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var env statsEnvelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode stats response: %v", err)
	}
	stats := env.Data
	if stats.TotalRuns != 3 || stats.DistinctUsers != 2 {
		t.Errorf("unexpected counts: %+v", stats.RunCounts)
	}
	if stats.MaxHeat != 25 || stats.MaxPower != 40 || stats.MaxMoney != 900 || stats.MaxTimePlayed != 60 {
		t.Errorf("unexpected maxima: %+v", stats.RunMaxima)
	}
}

func TestRoutesRejectWrongMethod(t *testing.T) {
	router := newTestRouter(t)

	rr := doJSON(t, router, http.MethodPost, "/api/leaderboard/top", "{}")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 for POST /top, got %d", rr.Code)
	}

	rr = doJSON(t, router, http.MethodGet, "/api/leaderboard/save", "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 for GET /save, got %d", rr.Code)
	}
}
