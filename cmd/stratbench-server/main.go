package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"stratbench/internal/api"
	"stratbench/internal/app"
	"stratbench/internal/config"
	"stratbench/internal/util"
)

func main() {
	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	a, err := app.New(cfg, logger)
	if err != nil {
		log.Fatalf("failed to initialize: %v", err)
	}
	defer a.Close()

	svc := api.NewSelectorService(a.Analyzer, a.Selector, a.Registry, a.Capital, logger)
	srv := api.NewServer(cfg.Server.Addr(), svc, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("stratbench-server starting", "addr", cfg.Server.Addr(), "dataDir", cfg.Storage.DataDir)
	if err := srv.ListenAndServe(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
