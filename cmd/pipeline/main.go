package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"airbnb_kpi/internal/adapters/observability"
	"airbnb_kpi/internal/runner"
	"airbnb_kpi/internal/shared"
)

func main() {
	out := flag.String("out", "", "also write the report as JSON to this file")
	flag.Parse()

	cfg := shared.Load()
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)
	observability.Serve(cfg.MetricsAddr, observability.InitRegistry())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("sources", cfg.SourcesFile).Int("workers", cfg.Workers).Msg("pipeline starting")

	r, err := runner.New(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("setup failed")
		os.Exit(1)
	}

	rep, err := r.RunOnce(ctx)
	if err == nil && *out != "" {
		err = writeJSON(*out, rep)
	}
	_ = r.Close()
	if err != nil {
		log.Error().Err(err).Msg("pipeline failed")
		os.Exit(1)
	}

	log.Info().
		Str("run_id", rep.RunID).
		Strs("sources", rep.Sources).
		Int("rows", rep.Rows).
		Int("series", len(rep.Series)).
		Int("amenity_rows", len(rep.Amenities)).
		Msg("pipeline completed")
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
