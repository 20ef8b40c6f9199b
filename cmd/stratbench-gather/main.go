package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"stratbench/internal/config"
	"stratbench/internal/gather"
	"stratbench/internal/gather/us"
	"stratbench/internal/store"
	"stratbench/internal/util"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: stratbench-gather <alpaca|csv>\n\n")
		fmt.Fprintf(os.Stderr, "  alpaca   download adjusted daily bars from Alpaca\n")
		fmt.Fprintf(os.Stderr, "  csv      import <gather.csv_dir>/<name>.csv files\n\n")
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	pstore := store.NewParquetStore(cfg.Storage.DataDir)

	var g gather.Gatherer
	switch flag.Arg(0) {
	case "alpaca":
		start, _ := cfg.Gather.Start()
		opts := us.Options{
			Instruments:     cfg.Instruments,
			Start:           start,
			Feed:            cfg.Alpaca.Feed,
			MaxWorkers:      cfg.Gather.MaxWorkers,
			RateLimitPerMin: cfg.Gather.RateLimitPerMin,
			MaxAttempts:     cfg.Gather.MaxAttempts,
		}
		if cfg.Alpaca.BaseURL != "" {
			opts.EndDate = us.CalendarEndDate(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.BaseURL)
		}
		client := us.NewClient(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL)
		g = us.NewDailyBarGatherer(client, pstore, opts, logger)
	case "csv":
		if cfg.Gather.CSVDir == "" {
			log.Fatalf("gather.csv_dir is not set")
		}
		g = gather.NewCSVImporter(cfg.Gather.CSVDir, cfg.Instruments, pstore, logger)
	default:
		fmt.Fprintf(os.Stderr, "unknown source: %s\n\n", flag.Arg(0))
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting gatherer", "name", g.Name(), "dataDir", cfg.Storage.DataDir, "instruments", len(cfg.Instruments))
	if err := g.Run(ctx); err != nil {
		log.Fatalf("%s: %v", g.Name(), err)
	}
}
