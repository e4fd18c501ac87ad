package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"videosafety-worker/internal/scheduler"
	"videosafety-worker/internal/storage/sqlstore"
	"videosafety-worker/internal/web"
)

func newServeCmd(a *app) *cobra.Command {
	var skipMigrations bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run migrations, the cron poller and the HTTP API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context(), skipMigrations)
		},
	}
	cmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "do not apply database migrations on start")
	return cmd
}

func (a *app) serve(parent context.Context, skipMigrations bool) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	cfg, logger := a.cfg, a.logger

	if !skipMigrations {
		if err := sqlstore.Migrate(cfg.Database, true, logger); err != nil {
			return err
		}
	}

	rt, err := a.build(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.close(); err != nil {
			logger.WithError(err).Warn("[App] error while releasing resources")
		}
	}()

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched, err = scheduler.New(cfg.Scheduler.PollCronSpec, scheduler.NewPollJob(ctx, rt.analyze, logger), logger)
		if err != nil {
			return err
		}
		sched.Start()
	} else {
		logger.Info("[App] scheduler disabled, jobs run only when triggered")
	}

	server := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: web.SetupRouter(web.Deps{
			Ctx:      ctx,
			Reports:  rt.reports,
			Analyzer: rt.analyze,
			DB:       rt.store,
			Logger:   logger,
		}),
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.WithField("addr", server.Addr).Info("[App] HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("[App] shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			logger.WithError(err).Error("[App] HTTP server failed")
			stop()
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("[App] HTTP server did not shut down cleanly")
	}
	if sched != nil {
		sched.Stop(shutdownCtx)
	}
	logger.Info("[App] stopped")
	return nil
}
