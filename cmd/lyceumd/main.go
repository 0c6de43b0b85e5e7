package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Ignas/schooltool.lyceum/internal/app"
	"github.com/Ignas/schooltool.lyceum/internal/handler"
	"github.com/Ignas/schooltool.lyceum/pkg/config"
	"github.com/Ignas/schooltool.lyceum/pkg/jobs"
	"github.com/Ignas/schooltool.lyceum/pkg/logger"
	"github.com/Ignas/schooltool.lyceum/pkg/migrations"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if err := run(cfg, logr); err != nil {
		logr.Sugar().Errorw("lyceumd stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(cfg, logr)
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck

	if cfg.Database.AutoMigrate {
		if err := migrations.Up(a.DB.DB); err != nil {
			return err
		}
		logr.Info("database migrated")
	}

	queue := jobs.NewQueue("calendar-warm", a.Warmer.Handle, jobs.QueueConfig{
		Workers:    cfg.Warmer.Workers,
		MaxRetries: cfg.Warmer.Retries,
		RetryDelay: 5 * time.Second,
		JobTimeout: time.Minute,
		Logger:     logr.Named("warm"),
	})
	queue.Start(ctx)
	defer queue.Stop()
	a.Warmer.SetQueue(queue)

	if cfg.Warmer.Enabled {
		scheduler, err := a.Warmer.Start(ctx)
		if err != nil {
			return err
		}
		defer func() { <-scheduler.Stop().Done() }()
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	ops := handler.NewOpsHandler(a.Metrics, cfg.Env, map[string]handler.Check{
		"postgres": a.PingDB,
		"redis":    a.PingRedis,
	})
	router := handler.NewOpsRouter(handler.RouterConfig{AllowedOrigins: cfg.CORS.AllowedOrigins}, logr, a.Metrics, ops)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
