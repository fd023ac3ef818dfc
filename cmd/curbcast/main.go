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

	"github.com/joho/godotenv"

	"curbcast/internal/api"
	"curbcast/pkg/config"
	"curbcast/pkg/db"
	"curbcast/pkg/engine"
	"curbcast/pkg/logging"
	"curbcast/pkg/poller"
	"curbcast/pkg/request"
	"curbcast/pkg/store"
	"curbcast/pkg/version"
)

var configPath = flag.String("config", "configs/curbcast.yaml", "Path to configuration file")

func main() {
	flag.Parse()

	if err := run(context.Background(), *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// .env before config so ${VAR} expansion sees the credentials.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env", "error", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logging.Init(&cfg.Logging)
	slog.Info("curbcast starting", "version", version.Version)

	dbConn, err := db.Init(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to init database: %w", err)
	}
	st := store.NewSQLiteStore(dbConn)
	defer st.Close()

	eng, err := engine.New(cfg, st)
	if err != nil {
		return err
	}
	if err := eng.LoadIndexes(ctx); err != nil {
		return err
	}
	if err := eng.LoadModels(); err != nil {
		return err
	}

	// Pollers start only once models and indexes are in place.
	pollCtx, stopPollers := context.WithCancel(ctx)
	defer stopPollers()
	sched := poller.NewScheduler(poller.Deps{
		Cfg:     cfg,
		Client:  request.New(&cfg.Request),
		Signals: st,
		Garages: st,
		Cache:   eng.Cache,
	})
	sched.Start(pollCtx)

	srv := api.NewServer(cfg.Server.Address,
		api.NewPredictHandler(eng),
		api.NewBlockHandler(eng),
		api.NewReportHandler(eng),
		api.NewHealthHandler(eng))

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "address", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	// Shutdown: stop accepting traffic, then pollers, then storage (via
	// the deferred store close).
	slog.Info("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown failed", "error", err)
	}
	stopPollers()
	sched.Wait()
	return nil
}
