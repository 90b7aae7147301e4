package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/qawatch/qawatch-backend/internal/api/middleware"
	"github.com/qawatch/qawatch-backend/internal/api/rest"
	"github.com/qawatch/qawatch-backend/internal/api/websocket"
	"github.com/qawatch/qawatch-backend/internal/baseline"
	"github.com/qawatch/qawatch-backend/internal/config"
	"github.com/qawatch/qawatch-backend/internal/detector"
	"github.com/qawatch/qawatch-backend/internal/dispatch"
	"github.com/qawatch/qawatch-backend/internal/models"
	"github.com/qawatch/qawatch-backend/internal/pipeline"
	"github.com/qawatch/qawatch-backend/internal/pkg/logger"
	"github.com/qawatch/qawatch-backend/internal/pkg/tracing"
	"github.com/qawatch/qawatch-backend/internal/repository"
	"github.com/qawatch/qawatch-backend/internal/service"
	"github.com/qawatch/qawatch-backend/migrations"
)

func main() {
	log := logger.StdLogger()
	log.Info("qawatch backend starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	log.Info("configuration loaded", "port", cfg.Port, "driver", cfg.DatabaseDriver)

	// Initialize tracing (no-op when endpoint is empty)
	shutdownTracing, err := tracing.Init("qawatch-backend", cfg.OTLPEndpoint, cfg.TraceSampleRatio)
	if err != nil {
		log.Error("failed to initialize tracing", "err", err)
		os.Exit(1)
	}
	defer shutdownTracing()

	// Initialize database
	var repo *repository.Repository
	switch cfg.DatabaseDriver {
	case "postgres":
		repo, err = repository.NewPostgresRepository(cfg.DatabaseURL)
	default:
		repo, err = repository.NewSQLiteRepository(cfg.DatabasePath)
	}
	if err != nil {
		log.Error("failed to initialize database", "err", err)
		os.Exit(1)
	}
	defer repo.Close()

	// Run migrations from the embedded FS
	migrationSQL, err := migrations.FS.ReadFile("001_initial_schema.sql")
	if err != nil {
		log.Error("failed to read migration", "err", err)
		os.Exit(1)
	}
	if err := repo.RunMigrations(string(migrationSQL)); err != nil {
		log.Error("failed to run migrations", "err", err)
		os.Exit(1)
	}
	log.Info("database migrations completed")

	// WebSocket hub for the live anomaly feed
	wsHub := websocket.NewHub(ctx)
	go wsHub.Run()

	// Detection wiring: baselines, rules, dispatch, pipeline
	tracker := baseline.NewTracker(repo, cfg.BaselineWindowSize, log)

	channels := []dispatch.Channel{
		dispatch.NewInAppChannel(repo, wsHub, log),
	}
	if cfg.WebhookURL != "" {
		channels = append(channels, dispatch.NewWebhookChannel(cfg.WebhookURL))
	}
	if cfg.SlackWebhookURL != "" {
		channels = append(channels, dispatch.NewSlackChannel(cfg.SlackWebhookURL))
	}
	dispatcher := dispatch.NewDispatcher(log, channels,
		dispatch.WithMinSeverity(models.AnomalySeverity(cfg.MinAlertSeverity)),
		dispatch.WithRateLimit(cfg.RateLimitCount, time.Duration(cfg.RateLimitWindowS)*time.Second),
	)

	pipe := pipeline.New(log, tracker, detector.New(cfg.MinSamples), repo, dispatcher,
		pipeline.WithQueueSize(cfg.QueueSize),
	)
	pipe.Start(ctx)
	defer pipe.Stop()

	scheduler := pipeline.NewBatchScheduler(log, repo, repo, tracker,
		detector.NewBatch(cfg.MinSamples), dispatcher, cfg.BaselineWindowSize,
		pipeline.WithInterval(time.Duration(cfg.BatchIntervalSec)*time.Second),
	)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	// Services
	anomalyService := service.NewAnomalyService(repo, repo, tracker)
	executionService := service.NewExecutionService(repo, pipe)

	// HTTP router
	router := mux.NewRouter()

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","service":"qawatch-backend","version":"1.0.0"}`))
	}).Methods("GET")

	healthz := rest.NewHealthzHandler(repo)
	router.HandleFunc("/healthz/live", healthz.Live).Methods("GET")
	router.HandleFunc("/healthz/ready", healthz.Ready).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	handler := rest.NewHandler(anomalyService, executionService)
	rest.SetupRoutes(apiRouter, handler)

	wsHandler := websocket.NewHandler(ctx, wsHub)
	router.HandleFunc("/ws/anomalies", wsHandler.ServeWS).Methods("GET")

	// Middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.Tracing)
	router.Use(middleware.StructuredLog)
	router.Use(middleware.SecureHeaders)
	router.Use(middleware.RateLimit())
	router.Use(middleware.MaxBodySize(cfg.MaxBodyBytes))
	router.Use(recoveryMiddleware(log))

	// CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	timeout := time.Duration(cfg.RequestTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      c.Handler(router),
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server listening",
			"port", cfg.Port,
			"api", fmt.Sprintf("http://localhost:%d/api/v1", cfg.Port),
			"ws", fmt.Sprintf("ws://localhost:%d/ws/anomalies", cfg.Port),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	scheduler.Stop()
	pipe.Stop()
	wsHub.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.ShutdownTimeoutSec)*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("server forced to shutdown", "err", err)
	}

	log.Info("server exited gracefully")
}

func recoveryMiddleware(log *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.Error("panic recovered", "err", err, "path", r.URL.Path)
					http.Error(w, "Internal server error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
