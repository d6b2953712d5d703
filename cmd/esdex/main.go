package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/esdex"
	"github.com/kailas-cloud/esdex/internal/config"
	lockredis "github.com/kailas-cloud/esdex/internal/lock/redis"
	logpkg "github.com/kailas-cloud/esdex/internal/logger"
	"github.com/kailas-cloud/esdex/internal/metrics"
	chiTransport "github.com/kailas-cloud/esdex/internal/transport/chi"
	healthuc "github.com/kailas-cloud/esdex/internal/usecase/health"
	indexuc "github.com/kailas-cloud/esdex/internal/usecase/index"
	"github.com/kailas-cloud/esdex/internal/version"
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

	logger.Info("Starting esdex API server",
		zap.String("version", version.String()),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("es_addresses", cfg.Elasticsearch.Addresses),
		zap.Int("models", len(cfg.Models)),
	)

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Fatal("Failed to register metrics", zap.Error(err))
	}

	opts := []esdex.Option{
		esdex.WithAddresses(cfg.Elasticsearch.Addresses...),
		esdex.WithMaxRetries(cfg.Elasticsearch.MaxRetries),
		esdex.WithReadinessTimeout(time.Duration(cfg.Elasticsearch.ReadinessTimeout) * time.Second),
		esdex.WithChunkSize(cfg.Index.ImportChunkSize),
		esdex.WithReindexChunkSize(cfg.Index.ReindexChunkSize),
		esdex.WithLogger(logger),
		esdex.WithPrometheus(prometheus.DefaultRegisterer),
	}
	if cfg.Elasticsearch.Username != "" {
		opts = append(opts, esdex.WithBasicAuth(cfg.Elasticsearch.Username, cfg.Elasticsearch.Password))
	}
	if cfg.Elasticsearch.APIKey != "" {
		opts = append(opts, esdex.WithAPIKey(cfg.Elasticsearch.APIKey))
	}

	// Reindex lock is optional; without redis concurrent reindexes are not guarded.
	var lockPinger healthuc.Pinger
	if len(cfg.Redis.Addrs) > 0 {
		locker, err := lockredis.NewLocker(lockredis.Config{
			Addrs:    cfg.Redis.Addrs,
			Password: cfg.Redis.Password,
		}, logger.Named("lock"))
		if err != nil {
			logger.Fatal("Failed to create lock store", zap.Error(err))
		}
		defer locker.Close()
		lockPinger = locker
		opts = append(opts, esdex.WithLocker(locker, time.Duration(cfg.Redis.LockTTLSec)*time.Second))
		logger.Info("Reindex lock enabled", zap.Strings("redis_addrs", cfg.Redis.Addrs))
	}

	client, err := esdex.New(opts...)
	if err != nil {
		logger.Fatal("Elasticsearch not ready", zap.Error(err))
	}
	defer client.Close()
	logger.Info("Connected to elasticsearch")

	catalog, err := indexuc.NewCatalog(modelSpecs(cfg.Models))
	if err != nil {
		logger.Fatal("Invalid model configuration", zap.Error(err))
	}
	logger.Info("Models loaded", zap.Strings("models", catalog.Names()))

	open := func(name string) indexuc.Adapter { return client.Index(name) }
	indexSvc := indexuc.New(open, client.Reindexer(), catalog)
	healthSvc := healthuc.New(client, lockPinger)

	server := chiTransport.NewServer(indexSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Mount(r)

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
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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

func modelSpecs(models []config.ModelConfig) []indexuc.ModelSpec {
	specs := make([]indexuc.ModelSpec, len(models))
	for i, m := range models {
		specs[i] = indexuc.ModelSpec{
			Name:         m.Name,
			DocumentType: m.DocumentType,
			Conversions:  m.Conversions,
			Suggest:      m.Suggest,
			Locations:    m.Locations,
			Parent:       m.Parent,
			Mappings:     m.Mappings,
			Settings:     m.Settings,
		}
	}
	return specs
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

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line, one per request
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.Int("response_bytes", ww.BytesWritten()),
			}
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				fields = append(fields,
					zap.String("route", rctx.RoutePattern()),
					zap.String("index", rctx.URLParam("index")),
					zap.String("alias", rctx.URLParam("alias")),
				)
			}
			reqLogger.Info("http_request", fields...)
		})
	}
}
