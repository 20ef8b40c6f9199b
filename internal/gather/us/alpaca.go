package us

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"stratbench/internal/domain"
	"stratbench/internal/gather"
	"stratbench/internal/store"
	"stratbench/internal/util"
)

// ---------------------------------------------------------------------------
// Compile-time interface checks
// ---------------------------------------------------------------------------

var _ gather.Gatherer = (*DailyBarGatherer)(nil)
var _ BarsClient = (*marketdata.Client)(nil)

// BarsClient is the subset of the Alpaca market data client the gatherer
// uses.
type BarsClient interface {
	GetMultiBars(symbols []string, req marketdata.GetBarsRequest) (map[string][]marketdata.Bar, error)
}

// Options configures a DailyBarGatherer.
type Options struct {
	Instruments     []domain.Instrument
	Start           time.Time
	Feed            string
	BatchSize       int // symbols per API call
	MaxWorkers      int // concurrent batches
	RateLimitPerMin int
	MaxAttempts     int
	// EndDate returns the last day to fetch. Nil uses yesterday in New York.
	EndDate func() (time.Time, error)
}

// DailyBarGatherer gathers split- and dividend-adjusted daily bars for the
// configured instruments via the Alpaca market-data API.
type DailyBarGatherer struct {
	client  BarsClient
	store   store.BarStore
	opts    Options
	limiter *util.RateLimiter
	log     *slog.Logger
}

// NewClient builds the Alpaca market data client.
func NewClient(apiKey, apiSecret, dataURL string) *marketdata.Client {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	return marketdata.NewClient(opts)
}

// NewDailyBarGatherer creates a DailyBarGatherer writing into s.
func NewDailyBarGatherer(client BarsClient, s store.BarStore, opts Options, log *slog.Logger) *DailyBarGatherer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = 1
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if opts.RateLimitPerMin <= 0 {
		opts.RateLimitPerMin = 200
	}
	if opts.Feed == "" {
		opts.Feed = "iex"
	}
	return &DailyBarGatherer{
		client:  client,
		store:   s,
		opts:    opts,
		limiter: util.NewRateLimiter(opts.RateLimitPerMin, opts.MaxWorkers),
		log:     log.With("gatherer", "us-daily"),
	}
}

// Name returns the gatherer identifier.
func (g *DailyBarGatherer) Name() string { return "us-daily" }

// Run fetches daily bars for every instrument from Start through the end date
// and merges them into the store. Rerunning is idempotent: the store
// replaces bars with equal timestamps.
func (g *DailyBarGatherer) Run(ctx context.Context) error {
	if len(g.opts.Instruments) == 0 {
		g.log.Info("no instruments configured")
		return nil
	}

	endDate, err := g.endDate()
	if err != nil {
		return fmt.Errorf("determining end date: %w", err)
	}
	if endDate.Before(g.opts.Start) {
		return fmt.Errorf("end date %s precedes start %s", endDate.Format("2006-01-02"), g.opts.Start.Format("2006-01-02"))
	}

	symbols := make([]string, 0, len(g.opts.Instruments))
	for _, in := range g.opts.Instruments {
		symbols = append(symbols, strings.ToUpper(in.Symbol))
	}
	var batches [][]string
	for i := 0; i < len(symbols); i += g.opts.BatchSize {
		batches = append(batches, symbols[i:min(i+g.opts.BatchSize, len(symbols))])
	}

	g.log.Info("starting us-daily",
		"start", g.opts.Start.Format("2006-01-02"),
		"end", endDate.Format("2006-01-02"),
		"symbols", len(symbols),
		"batches", len(batches),
	)

	batchCh := make(chan int, len(batches))
	for i := range batches {
		batchCh <- i
	}
	close(batchCh)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		errs     []error
		written  atomic.Int64
		runStart = time.Now()
	)

	workers := min(g.opts.MaxWorkers, len(batches))
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for batchIdx := range batchCh {
				if ctx.Err() != nil {
					return
				}

				n, err := g.gatherBatch(ctx, batches[batchIdx], endDate)
				if err != nil {
					g.log.Error("batch failed",
						"batch", fmt.Sprintf("%d/%d", batchIdx+1, len(batches)),
						"err", err,
					)
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
					continue
				}
				written.Add(int64(n))

				g.log.Info("batch done",
					"batch", fmt.Sprintf("%d/%d", batchIdx+1, len(batches)),
					"bars", n,
					"elapsed", time.Since(runStart).Round(time.Second),
				)
			}
		}()
	}

	wg.Wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if len(errs) > 0 {
		return fmt.Errorf("%d of %d batches failed, first: %w", len(errs), len(batches), errs[0])
	}

	g.log.Info("complete",
		"bars", written.Load(),
		"elapsed", time.Since(runStart).Round(time.Second),
	)
	return nil
}

func (g *DailyBarGatherer) gatherBatch(ctx context.Context, batch []string, end time.Time) (int, error) {
	var bars []domain.Bar
	err := util.Retry(ctx, g.opts.MaxAttempts, time.Second, func() error {
		if err := g.limiter.Wait(ctx); err != nil {
			return util.Permanent(err)
		}
		var err error
		bars, err = g.fetchMultiBars(ctx, batch, g.opts.Start, end)
		return err
	})
	if err != nil {
		return 0, err
	}
	if len(bars) == 0 {
		g.log.Warn("no bars returned", "symbols", strings.Join(batch, ","))
		return 0, nil
	}
	if err := g.store.WriteBars(ctx, bars); err != nil {
		return 0, fmt.Errorf("writing bars: %w", err)
	}
	return len(bars), nil
}

// fetchMultiBars fetches daily bars for multiple symbols in a single API call.
func (g *DailyBarGatherer) fetchMultiBars(ctx context.Context, symbols []string, start, end time.Time) ([]domain.Bar, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	multiBars, err := g.client.GetMultiBars(symbols, marketdata.GetBarsRequest{
		TimeFrame:  marketdata.OneDay,
		Adjustment: marketdata.All,
		Start:      start,
		// Daily bars are stamped at midnight New York time, after UTC midnight.
		End:  end.AddDate(0, 0, 1),
		Feed: marketdata.Feed(g.opts.Feed),
	})
	if err != nil {
		return nil, fmt.Errorf("GetMultiBars: %w", err)
	}

	var bars []domain.Bar
	for symbol, alpacaBars := range multiBars {
		for _, ab := range alpacaBars {
			bars = append(bars, domain.Bar{
				Symbol:     strings.ToUpper(symbol),
				Timestamp:  dayOf(ab.Timestamp),
				Open:       ab.Open,
				High:       ab.High,
				Low:        ab.Low,
				Close:      ab.Close,
				Volume:     int64(ab.Volume),
				TradeCount: int64(ab.TradeCount),
				VWAP:       ab.VWAP,
			})
		}
	}
	return bars, nil
}

func (g *DailyBarGatherer) endDate() (time.Time, error) {
	if g.opts.EndDate != nil {
		return g.opts.EndDate()
	}
	et, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.Time{}, fmt.Errorf("loading ET timezone: %w", err)
	}
	return dayOf(time.Now().In(et).AddDate(0, 0, -1)), nil
}

// dayOf truncates t to its calendar date in UTC, the key daily bars are
// stored under.
func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
