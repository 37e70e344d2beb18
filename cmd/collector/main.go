package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"mktdata/internal/infrastructure/config"
	"mktdata/internal/infrastructure/logger"
	"mktdata/internal/infrastructure/svc"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "configs/config.toml", "path to config.toml")
	migrateOnly := flag.Bool("migrate-only", false, "apply migrations and refresh views, then exit")
	flag.Parse()

	logger.Setup("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error().Err(err).Str("config", *configPath).Msg("load config failed")
		return 1
	}
	logger.Setup(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sc, err := svc.New(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("service context initialization failed")
		return 1
	}
	defer sc.Close()

	log.Info().
		Str("config", *configPath).
		Str("driver", cfg.DB.Driver).
		Int("concurrency", cfg.Ingest.Concurrency).
		Bool("migrate_only", *migrateOnly).
		Msg("collector started")

	res, err := sc.InitializeSchema(ctx)
	_ = sc.Console.WriteSchema(res.AppliedMigrations, res.RefreshedObjects)
	if err != nil {
		log.Error().Err(err).Msg("schema initialization failed")
		return 1
	}
	if *migrateOnly {
		return 0
	}

	if _, err := sc.CollectReferenceDataAndSeries(ctx); err != nil {
		log.Error().Err(err).Msg("collection failed")
		return 1
	}
	return 0
}
