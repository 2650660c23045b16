// Command ingest stores resume applications in the portal. By default it
// consumes queued submissions from NATS; with -dir it imports a directory
// of application JSON files once and exits.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/WessleyAI/resume-portal/engine/ingest"
	"github.com/WessleyAI/resume-portal/internal/bootstrap"
	"github.com/WessleyAI/resume-portal/pkg/config"
)

func main() {
	dir := flag.String("dir", "", "import every *.json application in this directory and exit")
	workers := flag.Int("workers", 4, "concurrent submissions for -dir")
	metricsAddr := flag.String("metrics-addr", ":9091", "address serving /metrics while consuming")
	flag.Parse()

	var level slog.LevelVar
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: &level}))
	slog.SetDefault(logger)

	if err := config.Load(config.String("ENV_FILE", ".env")); err != nil {
		logger.Warn("env file not loaded", "err", err)
	}
	level.Set(config.Level("LOG_LEVEL", slog.LevelInfo))
	cfg := bootstrap.LoadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	if *dir != "" {
		err = importDir(ctx, cfg, *dir, *workers, logger)
	} else {
		err = consume(ctx, cfg, *metricsAddr, logger)
	}
	if err != nil {
		logger.Error("ingest failed", "err", err)
		os.Exit(1)
	}
}

func importDir(ctx context.Context, cfg bootstrap.Config, dir string, workers int, logger *slog.Logger) error {
	apps, err := ingest.LoadDir(dir)
	if err != nil {
		return err
	}
	rt, err := bootstrap.Build(ctx, cfg, "resume-portal-ingest", logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	start := time.Now()
	failed := 0
	for _, r := range ingest.ImportAll(ctx, rt.Portal, apps, workers) {
		if r.Err != nil {
			failed++
			logger.Error("import failed", "id", r.ID, "err", r.Err)
		}
	}
	logger.Info("import done", "dir", dir, "total", len(apps), "failed", failed, "duration", time.Since(start))
	if failed > 0 {
		return fmt.Errorf("%d of %d applications failed", failed, len(apps))
	}
	return nil
}

func consume(ctx context.Context, cfg bootstrap.Config, metricsAddr string, logger *slog.Logger) error {
	if cfg.NATSURL == "" {
		return errors.New("NATS_URL is required to consume submissions")
	}
	rt, err := bootstrap.Build(ctx, cfg, "resume-portal-ingest", logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	consumer := ingest.NewConsumer(ingest.Deps{
		Submitter: rt.Portal,
		Publisher: rt.NATS,
		Logger:    logger,
		Metrics:   rt.Metrics,
	})
	sub, err := ingest.Start(rt.NATS, consumer)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", ingest.SubmitSubject, err)
	}
	defer sub.Unsubscribe()

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", rt.Metrics.Handler())
	srv := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "err", err)
		}
	}()

	logger.Info("ingest consumer started", "subject", ingest.SubmitSubject, "metrics", metricsAddr)
	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}
