package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/smalyshev/TabulistBot/internal/api"
	"github.com/smalyshev/TabulistBot/pkg/core"
	"github.com/smalyshev/TabulistBot/pkg/probe"
	"github.com/smalyshev/TabulistBot/pkg/version"
)

func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:        "serve",
		Usage:       "Run the status API and the periodic refresh",
		Description: `Serves the status API on server.address and refreshes the page list and all data pages every scheduler.interval.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "dry-run", Usage: "print the new data pages instead of saving them"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cmd, appOptions{console: true, dryRun: cmd.Bool("dry-run")})
			if err != nil {
				return err
			}
			defer a.close()
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	slog.Info("Tabulist service started", "version", version.Version, "wiki", a.cfg.Wiki.Name)

	if err := probe.AnalyzeResults(probe.Run(ctx, a.probes())); err != nil {
		return fmt.Errorf("startup checks failed: %w", err)
	}
	if err := a.login(ctx); err != nil {
		return err
	}

	// sessions expire; log in again before every cycle
	refresh := core.NewRefreshJob(time.Duration(a.cfg.Scheduler.Interval), func(ctx context.Context) error {
		if err := a.repair(ctx); err != nil {
			return err
		}
		return a.login(ctx)
	}, a.discoverer, a.updater)

	sched := core.NewScheduler(time.Second)
	sched.AddJob(refresh)
	go sched.Start(ctx)

	router := api.NewRouter(
		api.NewPagesHandler(a.cfg.Wiki.Name, a.store, a.updater),
		api.NewStatsHandler(a.cfg.Wiki.Name, a.tracker, a.store, refresh),
		a.registry,
	)
	return runServerLifecycle(ctx, api.NewServer(a.cfg.Server.Address, router))
}

func runServerLifecycle(ctx context.Context, srv *http.Server) error {
	slog.Info("Starting server", "addr", srv.Addr)
	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()
	select {
	case <-ctx.Done():
		slog.Info("Shutting down server...")
	case err := <-serverErrors:
		return fmt.Errorf("server failed: %w", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	slog.Info("Server stopped")
	return nil
}
