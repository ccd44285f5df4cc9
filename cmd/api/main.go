package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	server "airbnb_kpi/internal/adapters/http_server"
	"airbnb_kpi/internal/adapters/observability"
	"airbnb_kpi/internal/runner"
	"airbnb_kpi/internal/shared"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r, err := runner.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("setup failed")
	}
	defer r.Close()

	// scheduled refresh; runs are serialized by the runner
	if cfg.RefreshCron != "" {
		c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
		if _, err := c.AddFunc(cfg.RefreshCron, func() {
			if _, err := r.RunOnce(ctx); err != nil {
				log.Error().Err(err).Msg("scheduled pipeline run failed")
			}
		}); err != nil {
			log.Fatal().Err(err).Str("schedule", cfg.RefreshCron).Msg("invalid KPI_REFRESH_CRON")
		}
		c.Start()
		defer c.Stop()
		log.Info().Str("schedule", cfg.RefreshCron).Msg("scheduled refresh enabled")
	}

	// http
	srv := server.New()
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Q: r.Query, Ready: r.Ready})

	if err := srv.ListenAndServe(ctx, cfg.HTTPAddr); err != nil {
		log.Error().Err(err).Msg("http server failed")
	}
}
