package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Per-IP rate limiting for the public leaderboard API.

const (
	// Write API (save submissions): 60 requests/minute per IP
	rateLimitWritePerMin = 60
	rateLimitWriteBurst  = 60
	// Read API (top, stats): 120 requests/minute per IP
	rateLimitReadPerMin = 120
	rateLimitReadBurst  = 120
)

type rateLimitTier int

const (
	tierRead rateLimitTier = iota
	tierWrite
)

type tierLimits struct {
	limit rate.Limit
	burst int
}

// perMin reports the tier budget as requests/minute for the X-RateLimit-Limit header.
func (t tierLimits) perMin() int {
	return int(float64(t.limit) * 60)
}

// apiRateLimiter holds per-IP limiters per tier.
type apiRateLimiter struct {
	mu    sync.Mutex
	read  map[string]*rate.Limiter
	write map[string]*rate.Limiter

	readTier  tierLimits
	writeTier tierLimits
}

// newAPIRateLimiter applies the configured write-tier rate; reads get twice
// the write budget. Non-positive values keep the built-in tiers.
func newAPIRateLimiter(perSec float64, burst int) *apiRateLimiter {
	writeTier := tierLimits{rate.Limit(float64(rateLimitWritePerMin) / 60.0), rateLimitWriteBurst}
	readTier := tierLimits{rate.Limit(float64(rateLimitReadPerMin) / 60.0), rateLimitReadBurst}
	if perSec > 0 && burst > 0 {
		writeTier = tierLimits{rate.Limit(perSec), burst}
		readTier = tierLimits{rate.Limit(perSec * 2), burst * 2}
	}
	return &apiRateLimiter{
		read:      make(map[string]*rate.Limiter),
		write:     make(map[string]*rate.Limiter),
		readTier:  readTier,
		writeTier: writeTier,
	}
}

func (l *apiRateLimiter) tier(t rateLimitTier) tierLimits {
	if t == tierRead {
		return l.readTier
	}
	return l.writeTier
}

func (l *apiRateLimiter) getLimiter(ip string, t rateLimitTier) *rate.Limiter {
	m := l.write
	if t == tierRead {
		m = l.read
	}
	cfg := l.tier(t)
	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok := m[ip]; ok {
		return lim
	}
	lim := rate.NewLimiter(cfg.limit, cfg.burst)
	m[ip] = lim
	return lim
}

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx > 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx >= 0 {
		addr = addr[:idx]
	}
	return addr
}

func tierForRequest(r *http.Request) rateLimitTier {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return tierRead
	}
	return tierWrite
}

// isLoopback returns true for localhost/loopback IPs (127.x.x.x and ::1).
// Liveness probes and the local dev loop come in over loopback; they are
// exempt so a polling probe never hits 429.
func isLoopback(ip string) bool {
	// Strip brackets from IPv6 (e.g. "[::1]" -> "::1")
	ip = strings.Trim(ip, "[]")
	if ip == "::1" || ip == "localhost" {
		return true
	}
	// 127.0.0.0/8
	return strings.HasPrefix(ip, "127.")
}

// RateLimit returns middleware that limits requests per IP with a token
// bucket per tier. perSec and burst configure the write tier (save
// submissions); the read tier gets twice that budget. Non-positive values
// fall back to 60/min writes and 120/min reads.
// Excludes /health, /metrics, /ws, and loopback traffic.
// Returns 429 with Retry-After and sets X-RateLimit-* headers.
func RateLimit(perSec float64, burst int) func(http.Handler) http.Handler {
	limiters := newAPIRateLimiter(perSec, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			if path == "/health" || path == "/metrics" || path == "/ws" {
				next.ServeHTTP(w, r)
				return
			}
			ip := getClientIP(r)
			if isLoopback(ip) {
				next.ServeHTTP(w, r)
				return
			}
			tier := tierForRequest(r)
			budget := limiters.tier(tier)
			limiter := limiters.getLimiter(ip, tier)
			reservation := limiter.Reserve()
			if !reservation.OK() {
				// Burst exhausted and no token available
				writeRateLimited(w, budget, 60*time.Second)
				return
			}
			delay := reservation.Delay()
			if delay > 0 {
				reservation.Cancel()
				writeRateLimited(w, budget, delay)
				return
			}
			// Request allowed: set rate limit headers (remaining tokens after this request)
			tokens := int(limiter.Tokens())
			if tokens < 0 {
				tokens = 0
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(budget.perMin()))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(tokens))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Minute).Unix(), 10))
			next.ServeHTTP(w, r)
		})
	}
}

func writeRateLimited(w http.ResponseWriter, budget tierLimits, wait time.Duration) {
	retryAfter := int(wait.Seconds()) + 1
	if retryAfter > 60 {
		retryAfter = 60
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(budget.perMin()))
	w.Header().Set("X-RateLimit-Remaining", "0")
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(wait).Unix(), 10))
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = w.Write([]byte(`{"error":"Too many requests. Please retry later.","code":"RATE_LIMIT_EXCEEDED"}`))
}
