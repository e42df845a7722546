package middleware

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/meltcore/leaderboard-backend/internal/config"
)

// CORSValidation logs a warning on the first request when the CORS allowlist
// contains a wildcard. The leaderboard ships with "*" so a local game client
// works out of the box, but a public deployment should pin its origins.
func CORSValidation(cfg *config.Config, log *slog.Logger) func(http.Handler) http.Handler {
	var once sync.Once
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			once.Do(func() {
				if cfg == nil || log == nil {
					return
				}
				for _, origin := range cfg.AllowedOrigins {
					if origin == "*" {
						log.Warn("CORS wildcard detected",
							"origin", origin,
							"risk", "Allows any origin to access API",
							"recommendation", "Use specific origins for production",
						)
					}
				}
			})
			next.ServeHTTP(w, r)
		})
	}
}
