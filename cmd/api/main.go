// Package main implements the resume portal API server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/WessleyAI/resume-portal/engine/portal"
	"github.com/WessleyAI/resume-portal/internal/bootstrap"
	"github.com/WessleyAI/resume-portal/pkg/config"
	"github.com/WessleyAI/resume-portal/pkg/metrics"
	"github.com/WessleyAI/resume-portal/pkg/mid"
)

func main() {
	var level slog.LevelVar
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: &level}))
	slog.SetDefault(logger)

	if err := config.Load(config.String("ENV_FILE", ".env")); err != nil {
		logger.Warn("env file not loaded", "err", err)
	}
	level.Set(config.Level("LOG_LEVEL", slog.LevelInfo))
	cfg := bootstrap.LoadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg bootstrap.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.Build(ctx, cfg, "resume-portal-api", logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      newHandler(cfg, rt.Portal, rt.Embedder.Model(), rt.Metrics, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port, "embedding_model", rt.Embedder.Model(), "vector_backend", cfg.VectorBackend)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// newHandler registers the routes and wraps them in the middleware stack.
func newHandler(cfg bootstrap.Config, svc *portal.Service, model string, reg *metrics.Registry, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	registerRoutes(mux, svc, model, logger)
	mux.Handle("GET /metrics", reg.Handler())

	return mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.CORS(cfg.CORSOrigin),
		mid.Timeout(cfg.RequestTimeout),
		mid.MaxBytes(cfg.MaxBodyBytes),
		mid.OTel("resume-portal-api"),
	)
}
