package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/inscribe-ai/inscribe/internal/chunker"
	"github.com/inscribe-ai/inscribe/internal/config"
	dbRedis "github.com/inscribe-ai/inscribe/internal/db/redis"
	"github.com/inscribe-ai/inscribe/internal/extract"
	logpkg "github.com/inscribe-ai/inscribe/internal/logger"
	"github.com/inscribe-ai/inscribe/internal/metrics"
	blobrepo "github.com/inscribe-ai/inscribe/internal/repository/blob"
	indexrepo "github.com/inscribe-ai/inscribe/internal/repository/index"
	chiTransport "github.com/inscribe-ai/inscribe/internal/transport/chi"
	openaiTransport "github.com/inscribe-ai/inscribe/internal/transport/openai"
	answeruc "github.com/inscribe-ai/inscribe/internal/usecase/answer"
	collectionuc "github.com/inscribe-ai/inscribe/internal/usecase/collection"
	ingestuc "github.com/inscribe-ai/inscribe/internal/usecase/ingest"
	retentionuc "github.com/inscribe-ai/inscribe/internal/usecase/retention"
	retrievaluc "github.com/inscribe-ai/inscribe/internal/usecase/retrieval"
	"github.com/inscribe-ai/inscribe/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting inscribe API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Wait for database to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register provider metrics explicitly (no init())
	metrics.RegisterProviderMetrics()

	blobs, err := blobrepo.New(cfg.Blobs.Dir, cfg.Blobs.Key, logger)
	if err != nil {
		logger.Fatal("Failed to open blob store", zap.Error(err))
	}

	embedder := openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Logger:     logger,
	})
	logger.Info("Embedder created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	completer := openaiTransport.NewCompleter(&openaiTransport.CompleterConfig{
		APIKey:    cfg.LLM.APIKey,
		BaseURL:   cfg.LLM.BaseURL,
		Model:     cfg.LLM.Model,
		MaxTokens: cfg.LLM.MaxTokens,
		Timeout:   time.Duration(cfg.LLM.TimeoutSec) * time.Second,
		Provider:  cfg.LLM.Provider,
		Logger:    logger,
	})
	logger.Info("Completer created",
		zap.String("provider", cfg.LLM.Provider),
		zap.String("model", cfg.LLM.Model),
	)

	indexRepo := indexrepo.New(store, cfg.Index.Collection, cfg.Embedding.Dimensions).
		WithHNSW(indexrepo.HNSWConfig{
			M:           cfg.Index.HNSWM,
			EFConstruct: cfg.Index.HNSWEFConstruct,
		})

	split, err := chunker.New(cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		logger.Fatal("Invalid chunking config", zap.Error(err))
	}

	// Create use case services
	ingestSvc := ingestuc.New(blobs, extract.New(logger), split, embedder, indexRepo)
	retrievalSvc := retrievaluc.New(
		embedder,
		completer.WithPurpose("retrieval"),
		indexRepo,
		cfg.Retrieval.TopK,
		cfg.Retrieval.Expansions,
	)
	answerSvc := answeruc.New(retrievalSvc, completer.WithPurpose("synthesis"))
	collSvc := collectionuc.New(indexRepo)
	retentionSvc := retentionuc.New(indexRepo, time.Duration(cfg.Retention.MaxAgeDays)*24*time.Hour)

	// Daily retention sweep
	sweepCtx := logpkg.ContextWithLogger(ctx, logger)
	scheduler := cron.New()
	spec, err := cronSpec(cfg.Retention.SweepAt)
	if err != nil {
		logger.Fatal("Invalid sweep_at", zap.Error(err))
	}
	if _, err := scheduler.AddFunc(spec, func() {
		if _, err := retentionSvc.Sweep(sweepCtx); err != nil {
			logger.Error("Retention sweep failed", zap.Error(err))
		}
	}); err != nil {
		logger.Fatal("Failed to schedule retention sweep", zap.Error(err))
	}
	scheduler.Start()
	defer scheduler.Stop()
	logger.Info("Retention sweep scheduled",
		zap.String("at", cfg.Retention.SweepAt),
		zap.Int("max_age_days", cfg.Retention.MaxAgeDays),
	)

	// Create chi server
	server := chiTransport.NewServer(
		ingestSvc, answerSvc, collSvc, store,
		int64(cfg.HTTP.MaxUploadMB)<<20, logger,
	)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	r.Handle("/metrics", promhttp.Handler())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// cronSpec converts an "HH:MM" time-of-day into a daily cron expression.
func cronSpec(at string) (string, error) {
	hh, mm, ok := strings.Cut(at, ":")
	if !ok {
		return "", fmt.Errorf("expected HH:MM, got %q", at)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("invalid hour in %q", at)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid minute in %q", at)
	}
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line, one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
