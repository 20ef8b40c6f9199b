package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"stratbench/internal/app"
	"stratbench/internal/config"
	"stratbench/internal/domain"
	"stratbench/internal/util"
	"stratbench/pkg/stratbench"
)

const version = "0.1.0"

func main() {
	addr := flag.String("addr", "", "stratbench-server address (default from config)")
	timeout := flag.Duration("timeout", 2*time.Minute, "request timeout")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: stratbench-cli [options] <command> [args]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  version                              Print the CLI version\n")
		fmt.Fprintf(os.Stderr, "  health                               Check stratbench-server health\n")
		fmt.Fprintf(os.Stderr, "  best <symbol>                        Select the best strategy on the server\n")
		fmt.Fprintf(os.Stderr, "  optimize <symbol> <strategy>         Search one strategy on the server\n")
		fmt.Fprintf(os.Stderr, "  runs [symbol] [limit]                List recorded analysis runs\n")
		fmt.Fprintf(os.Stderr, "  backtest <strategy> <symbol> [from] [to]  Run one strategy locally\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		os.Exit(1)
	}
	if args[0] == "version" {
		fmt.Printf("stratbench-cli %s\n", version)
		return
	}

	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *addr == "" {
		*addr = cfg.Server.Addr()
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch args[0] {
	case "health", "best", "optimize":
		err = remote(ctx, *addr, args)
	case "runs", "backtest":
		err = local(ctx, cfg, args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		flag.Usage()
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("%s: %v", args[0], err)
	}
}

func remote(ctx context.Context, addr string, args []string) error {
	c, err := stratbench.NewClient(addr)
	if err != nil {
		return err
	}
	defer c.Close()

	switch args[0] {
	case "health":
		ok, err := c.Healthy(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%s is not serving", addr)
		}
		fmt.Printf("%s: serving\n", addr)

	case "best":
		if len(args) != 2 {
			return fmt.Errorf("usage: best <symbol>")
		}
		r, err := c.ChooseBest(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("%s  %s %s -> %s  (%d bars %s..%s)\n", r.Symbol, r.Strategy, windowString(r.Window), r.Return, r.Bars, r.Start, r.End)
		for _, s := range []stratbench.Score{r.Baseline, r.SMA, r.EMA} {
			fmt.Printf("  %-13s %-9s %s\n", s.Strategy, windowString(s.Window), s.Return)
		}
		fmt.Printf("  last signal: %s\n", r.LastSignal)

	case "optimize":
		if len(args) != 3 {
			return fmt.Errorf("usage: optimize <symbol> <strategy>")
		}
		r, err := c.Optimize(ctx, args[1], args[2])
		if err != nil {
			return err
		}
		fmt.Printf("%s  %s %s -> %s  (%d windows over %d bars)\n", r.Symbol, r.Strategy, windowString(r.Window), r.Return, r.Cells, r.Bars)
		for i := len(r.TopK) - 1; i >= 0; i-- {
			fmt.Printf("  %2d. %-9s %s\n", len(r.TopK)-i, windowString(r.TopK[i].Window), r.TopK[i].Return)
		}
	}
	return nil
}

func local(ctx context.Context, cfg *config.Config, args []string) error {
	logger := util.NewLoggerTo(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	a, err := app.New(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	switch args[0] {
	case "runs":
		if a.Runs == nil {
			return fmt.Errorf("run history needs storage.sqlite_path")
		}
		symbol, limit := "", 20
		if len(args) > 1 {
			symbol = args[1]
		}
		if len(args) > 2 {
			if limit, err = strconv.Atoi(args[2]); err != nil {
				return fmt.Errorf("limit: %w", err)
			}
		}
		runs, err := a.Runs.ListRuns(ctx, symbol, limit)
		if err != nil {
			return err
		}
		for _, r := range runs {
			fmt.Printf("%s  %-6s %-13s %-9s %12s  baseline %12s  %d bars  %s\n",
				r.CreatedAt.Format("2006-01-02 15:04"), r.Symbol, r.Kind, windowString(toWindow(r.Window)),
				r.Return.StringFixed(2), r.Baseline.StringFixed(2), r.Bars, r.ID)
		}

	case "backtest":
		if len(args) < 3 {
			return fmt.Errorf("usage: backtest <strategy> <symbol> [from] [to]")
		}
		from, _ := cfg.Gather.Start()
		to := time.Now()
		if len(args) > 3 {
			if from, err = time.Parse("2006-01-02", args[3]); err != nil {
				return fmt.Errorf("from: %w", err)
			}
		}
		if len(args) > 4 {
			if to, err = time.Parse("2006-01-02", args[4]); err != nil {
				return fmt.Errorf("to: %w", err)
			}
		}
		res, err := a.Backtester.Run(ctx, args[1], args[2], from, to, a.Capital)
		if err != nil {
			return err
		}
		w := windowString(nil)
		if res.Outcome.Window != nil {
			w = res.Outcome.Window.String()
		}
		fmt.Printf("%s  %s %s -> %s  (%d bars %s..%s, %d windows)\n",
			res.Symbol, res.Strategy, w, res.Outcome.Return.StringFixed(2), res.Bars,
			res.Start.Format("2006-01-02"), res.End.Format("2006-01-02"), res.Outcome.Cells)
	}
	return nil
}

func windowString(w *stratbench.Window) string {
	if w == nil {
		return "-"
	}
	return fmt.Sprintf("(%d,%d)", w.Short, w.Long)
}

func toWindow(w *domain.Window) *stratbench.Window {
	if w == nil {
		return nil
	}
	return &stratbench.Window{Short: w.Short, Long: w.Long}
}
