package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/samber/lo"

	"stratbench/internal/app"
	"stratbench/internal/config"
	"stratbench/internal/domain"
	"stratbench/internal/report"
	"stratbench/internal/util"
)

func main() {
	symbols := flag.String("symbols", "", "comma-separated subset of configured symbols to analyze")
	reuse := flag.Bool("reuse", false, "replay saved windows instead of searching")
	noCharts := flag.Bool("no-charts", false, "skip chart export")
	flag.Parse()

	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *reuse {
		cfg.Simulation.ReuseSaved = true
	}
	if *noCharts {
		cfg.Storage.ChartDir = ""
	}

	// The report goes to stdout; logs go to stderr.
	logger := util.NewLoggerTo(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	instruments := cfg.Instruments
	if *symbols != "" {
		want := lo.Map(strings.Split(*symbols, ","), func(s string, _ int) string {
			return strings.ToUpper(strings.TrimSpace(s))
		})
		instruments = lo.Filter(instruments, func(in domain.Instrument, _ int) bool {
			return lo.Contains(want, strings.ToUpper(in.Symbol))
		})
	}
	if len(instruments) == 0 {
		log.Fatalf("no instruments to analyze")
	}

	a, err := app.New(cfg, logger)
	if err != nil {
		log.Fatalf("failed to initialize: %v", err)
	}
	defer a.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting analysis", "instruments", len(instruments), "reuseSaved", cfg.Simulation.ReuseSaved)
	reports, err := a.Analyzer.AnalyzeAll(ctx, instruments)
	if err != nil {
		logger.Error("analysis interrupted", "err", err)
	}
	if err := report.Render(os.Stdout, reports); err != nil {
		log.Fatalf("rendering report: %v", err)
	}
	if lo.SomeBy(reports, func(r report.Report) bool { return r.Err != nil }) {
		os.Exit(1)
	}
}
