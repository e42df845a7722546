package rest

import (
	"net/http"

	"github.com/rs/cors"
)

// NewCORS builds the CORS layer shared by every HTTP route. The leaderboard
// is an anonymous API, so credentialed requests are not allowed and the
// header surface stays small.
func NewCORS(allowedOrigins []string) *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
	})
}
