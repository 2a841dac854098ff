// Package main is the entry point for the API server.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/onnwee/foryou/internal/api"
	"github.com/onnwee/foryou/internal/config"
	"github.com/onnwee/foryou/internal/feed"
	"github.com/onnwee/foryou/internal/health"
	"github.com/onnwee/foryou/internal/middleware"
	"github.com/onnwee/foryou/internal/seen"
	"github.com/onnwee/foryou/internal/store"
	"github.com/onnwee/foryou/internal/tracing"
	"github.com/onnwee/foryou/internal/trends"
)

func main() {
	help := flag.Bool("help", false, "display help message")
	configPath := flag.String("config", "", "path to optional YAML config file")
	flag.Parse()

	if *help {
		fmt.Println("For You Feed API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		}
		os.Exit(1)
	}

	// Initialize logger
	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "config", cfg.LogSummary())

	// Initialize tracing
	tracingProvider, err := tracing.NewProvider(tracing.Config{
		ServiceName:  "foryou-api",
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		ExporterType: cfg.TracingExporter,
		OTLPEndpoint: cfg.TracingOTLPEndpoint,
		SamplingRate: cfg.TracingSamplingRate,
		InsecureMode: cfg.TracingInsecure,
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracingProvider.Shutdown(ctx); err != nil {
			logger.Error("failed to shut down tracing", "error", err)
		}
	}()

	// Storage: Postgres when DATABASE_URL is set, in-memory otherwise
	var (
		st        store.Store
		prefs     store.PreferenceStore
		dbChecker api.HealthChecker
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		pgStore := store.NewPostgresStore(db, store.DefaultRetention)
		initCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := pgStore.InitSchema(initCtx); err != nil {
			cancel()
			logger.Error("failed to initialize schema", "error", err)
			os.Exit(1)
		}
		cancel()

		st = pgStore
		prefs = store.NewPostgresPreferenceStore(db)
		dbChecker = health.NewDBChecker(db)
		logger.Info("using postgres store")
	} else {
		st = store.NewMemoryStore()
		prefs = store.NewMemoryPreferenceStore()
		logger.Info("using in-memory store")
	}

	// Seen tracking: Redis when REDIS_ADDR is set, in-memory otherwise
	var (
		tracker      seen.Tracker
		redisChecker api.HealthChecker
	)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()

		tracker = seen.NewRedisTracker(redisClient, seen.DefaultTTL)
		redisChecker = health.NewRedisChecker(redisClient)
		logger.Info("using redis seen tracker", "addr", cfg.RedisAddr)
	} else {
		tracker = seen.NewMemoryTracker(seen.DefaultTTL)
		logger.Info("using in-memory seen tracker")
	}

	// Metrics registry with HTTP and pipeline collectors
	registry := prometheus.NewRegistry()
	httpMetrics := middleware.NewMetrics()
	if err := httpMetrics.Register(registry); err != nil {
		logger.Error("failed to register http metrics", "error", err)
		os.Exit(1)
	}
	feedMetrics := feed.NewMetrics()
	if err := feedMetrics.Register(registry); err != nil {
		logger.Error("failed to register feed metrics", "error", err)
		os.Exit(1)
	}

	// Ranking pipeline
	mixerOpts := []feed.MixerOption{feed.WithMetrics(feedMetrics)}
	if cfg.CalibrationPath != "" {
		weights, err := feed.LoadCalibration(cfg.CalibrationPath)
		if err != nil {
			logger.Warn("calibration load failed, using default action weights", "error", err)
		}
		mixerOpts = append(mixerOpts, feed.WithActionWeights(weights))
	}
	if cfg.NewsAPIKey != "" {
		mixerOpts = append(mixerOpts, feed.WithExternalSource(feed.NewNewsSource(feed.NewsConfig{
			APIKey:   cfg.NewsAPIKey,
			Category: cfg.NewsCategory,
			Country:  cfg.NewsCountry,
		})))
		logger.Info("external news source enabled", "category", cfg.NewsCategory)
	}
	mixer := feed.NewMixer(st, mixerOpts...)
	trendsService := trends.NewService(st, trends.DefaultWindow)

	// Handlers
	feedHandlers := api.NewFeedHandlers(mixer, st, prefs, tracker)
	userHandlers := api.NewUserHandlers(st, prefs)
	postHandlers := api.NewPostHandlers(st)
	engagementHandlers := api.NewEngagementHandlers(st)
	trendsHandlers := api.NewTrendsHandlers(trendsService)
	healthHandlers := api.NewHealthHandlers(api.HealthHandlersConfig{
		DBChecker:    dbChecker,
		RedisChecker: redisChecker,
	})

	// Routes
	mux := http.NewServeMux()
	mux.HandleFunc("/api/feed", feedHandlers.CreateFeed)
	mux.HandleFunc("/api/feed/", feedHandlers.GetFeed)
	mux.HandleFunc("/api/explain/feed/", feedHandlers.ExplainFeed)
	mux.HandleFunc("/api/users", userHandlers.ListUsers)
	mux.HandleFunc("/api/users/", userHandlers.UserRoutes)
	mux.HandleFunc("/api/posts/", postHandlers.GetPost)
	mux.HandleFunc("/api/engage", engagementHandlers.Engage)
	mux.HandleFunc("/api/trends", trendsHandlers.GetTrends)
	mux.HandleFunc("/health", healthHandlers.Health)
	mux.HandleFunc("/ready", healthHandlers.Ready)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	// Root endpoint: service banner on exact /, structured 404 otherwise
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
			api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "The requested resource was not found")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"service":"foryou-api","version":"0.1.0"}`)); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	// Apply middleware: RequestID -> Tracing -> HTTPMetrics -> Logging -> CORS
	var handler http.Handler = mux
	handler = middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		MaxAge:         600,
	})(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.HTTPMetrics(httpMetrics)(handler)
	if cfg.TracingEnabled {
		handler = middleware.Tracing("foryou-api")(handler)
	}
	handler = middleware.RequestID(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
