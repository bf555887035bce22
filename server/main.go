package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/meikuraledutech/rbd"
	"github.com/meikuraledutech/rbd/config"
	"github.com/meikuraledutech/rbd/logging"
	"github.com/meikuraledutech/rbd/memory"
	"github.com/meikuraledutech/rbd/metrics"
	"github.com/meikuraledutech/rbd/postgres"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	registry := metrics.NewRegistry()

	ctx := context.Background()
	var store rbd.Store
	if cfg.DatabaseURL != "" {
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
		if err != nil {
			return err
		}
		defer pool.Close()
		store = postgres.New(pool)
		logger.Info("using postgres store", slog.Int("max_conns", int(cfg.DBMaxConns)))
	} else {
		store = memory.New()
		logger.Info("DATABASE_URL not set, using in-memory store")
	}

	if err := store.CreateSchema(ctx); err != nil {
		return err
	}

	opts := append(cfg.AnalyzerOptions(), rbd.WithLogger(logger), rbd.WithRecorder(registry))
	analyzer := rbd.NewAnalyzer(opts...)

	app := newApp(store, analyzer, registry, logger)

	logger.Info("listening",
		slog.String("addr", cfg.HTTPAddr),
		slog.String("mode", string(analyzer.Mode())),
		slog.Int("workers", cfg.Workers),
	)
	return app.Listen(cfg.HTTPAddr)
}
