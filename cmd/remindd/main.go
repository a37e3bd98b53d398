package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jmhodges/clock"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"remindd/internal/config"
	"remindd/internal/dispatch"
	"remindd/internal/httpapi"
	"remindd/internal/notify"
	"remindd/internal/oracle"
	"remindd/internal/parse"
	"remindd/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "remindd failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	repo, err := storage.OpenSQLite(cfg.DBPath, cfg.StaleClaimAfter)
	if err != nil {
		return err
	}
	defer repo.Close()
	if err := repo.Migrate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	clk := clock.New()

	var fallback parse.Fallback
	if cfg.OracleURL != "" {
		audit, err := auditLogger(cfg.AuditLogPath)
		if err != nil {
			return fmt.Errorf("init audit log: %w", err)
		}
		defer audit.Sync()
		fallback = oracle.NewClient(cfg.OracleURL, cfg.OracleTimeout, logger.Named("oracle"), audit)
	} else {
		logger.Warn("no oracle endpoint configured; unmatched input will be rejected")
	}

	parser := parse.NewParser(clk, loc, fallback, logger.Named("parse"))
	health := dispatch.NewHealth(cfg.UnhealthyAfter)
	notifier := notify.NewWebhook(cfg.WebhookURL, logger.Named("notify"), loc)
	dispatcher := dispatch.New(repo, notifier, clk, logger.Named("dispatch"), dispatch.Config{
		Interval:    cfg.PollInterval,
		Concurrency: int64(cfg.NotifyConcurrency),
		Location:    loc,
		Health:      health,
	})
	api := httpapi.New(parser, repo, clk, loc, logger.Named("http"), health)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: api.Handler()}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return dispatcher.Run(ctx)
	})
	g.Go(func() error {
		logger.Info("http server listening", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("remindd stopped")
	return nil
}

// auditLogger builds the append-only log of successful oracle resolutions,
// kept separate from the main log for later accuracy review.
func auditLogger(path string) (*zap.Logger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}
