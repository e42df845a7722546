package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/meltcore/leaderboard-backend/internal/api/middleware"
	"github.com/meltcore/leaderboard-backend/internal/api/rest"
	"github.com/meltcore/leaderboard-backend/internal/api/websocket"
	"github.com/meltcore/leaderboard-backend/internal/config"
	"github.com/meltcore/leaderboard-backend/internal/pkg/logger"
	"github.com/meltcore/leaderboard-backend/internal/pkg/redact"
	"github.com/meltcore/leaderboard-backend/internal/pkg/tracing"
	"github.com/meltcore/leaderboard-backend/internal/repository"
	"github.com/meltcore/leaderboard-backend/internal/service"
	dbmigrations "github.com/meltcore/leaderboard-backend/migrations"
)

const serviceName = "leaderboard-backend"

func main() {
	log.Println("🚀 Meltcore Leaderboard Backend starting...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}
	slogger := logger.StdLogger(cfg.LogLevel)

	storeTarget := cfg.DBPath
	if cfg.DBDriver == config.DriverPostgres {
		storeTarget = redact.ConnectionString(cfg.ConnectionString())
	}
	log.Printf("📋 Configuration loaded: port=%d, driver=%s, store=%s", cfg.Port, cfg.DBDriver, storeTarget)

	// Tracing is a no-op until an OTLP endpoint is configured
	shutdownTracing, err := tracing.Init(serviceName, cfg.OTelEndpoint, cfg.TraceSamplingRate)
	if err != nil {
		log.Printf("⚠️  Tracing disabled: %v", err)
	} else {
		defer shutdownTracing()
	}

	// Initialize the run store
	log.Println("💾 Initializing run store...")
	repo, err := newRepository(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to initialize run store: %v", err)
	}
	defer repo.Close()

	// Run migrations
	migrationSQL, err := dbmigrations.ForDriver(cfg.DBDriver)
	if err != nil {
		log.Fatalf("❌ Failed to load migrations: %v", err)
	}
	if err := repo.RunMigrations(migrationSQL); err != nil {
		log.Fatalf("❌ Failed to run migrations: %v", err)
	}
	log.Println("✅ Database migrations completed")

	// Initialize services
	leaderboardService := service.NewLeaderboardService(repo, cfg)
	log.Println("✅ Services initialized")

	// Initialize WebSocket hub
	wsHub := websocket.NewHub(ctx)
	go wsHub.Run()
	log.Println("🔌 WebSocket hub started")

	// Setup HTTP router
	router := mux.NewRouter()

	// Health check and metrics
	healthz := rest.NewHealthzHandler(repo)
	router.HandleFunc("/health", healthz.Health).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// API routes
	handler := rest.NewHandler(leaderboardService)
	rest.SetupRoutes(router, handler)

	// WebSocket presence
	wsHandler := websocket.NewHandler(wsHub, cfg.AllowedOrigins)
	router.HandleFunc("/ws", wsHandler.ServeWS).Methods("GET")

	// Middleware (outermost first)
	router.Use(middleware.RequestID)
	router.Use(middleware.SecureHeaders)
	router.Use(middleware.Tracing)
	router.Use(middleware.StructuredLog)
	router.Use(middleware.Recover)
	router.Use(middleware.MaxBodySize(int64(cfg.SaveMaxBodyBytes)))
	if cfg.RateLimitEnabled {
		router.Use(middleware.RateLimit(cfg.RateLimitPerSec, cfg.RateLimitBurst))
	}
	router.Use(middleware.CORSValidation(cfg, slogger))

	// Setup CORS
	handlerWithCORS := rest.NewCORS(cfg.AllowedOrigins).Handler(router)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handlerWithCORS,
		ReadTimeout:  time.Duration(cfg.RequestTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.RequestTimeoutSec) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("🌐 Server listening on port %d", cfg.Port)
		log.Printf("📡 API available at http://localhost:%d/api/leaderboard", cfg.Port)
		log.Printf("🔌 WebSocket presence at ws://localhost:%d/ws", cfg.Port)
		log.Printf("❤️  Health check at http://localhost:%d/health", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")

	// Stop WebSocket hub
	wsHub.Stop()
	log.Println("✅ WebSocket hub stopped")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.ShutdownTimeoutSec)*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️  Server forced to shutdown: %v", err)
	}

	log.Println("✅ Server exited gracefully")
}

// newRepository opens the store named by db_driver. Postgres is the
// production path; sqlite keeps local development free of external services.
func newRepository(cfg *config.Config) (repository.RunRepository, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		return repository.NewPostgresRepository(cfg.ConnectionString(), repository.PoolConfig{
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: time.Duration(cfg.DBConnMaxLifetimeSec) * time.Second,
			ConnMaxIdleTime: time.Duration(cfg.DBConnMaxIdleSec) * time.Second,
		})
	case config.DriverSQLite:
		return repository.NewSQLiteRepository(cfg.DBPath)
	default:
		return nil, fmt.Errorf("unsupported db_driver %q", cfg.DBDriver)
	}
}
