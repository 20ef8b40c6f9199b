package gather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"stratbench/internal/domain"
	"stratbench/internal/store"
)

var _ Gatherer = (*CSVImporter)(nil)

// CSVImporter loads <dir>/<name>.csv for every instrument, the layout of a
// Yahoo Finance export, into the bar store.
type CSVImporter struct {
	dir         string
	instruments []domain.Instrument
	store       store.BarStore
	log         *slog.Logger
}

// NewCSVImporter creates a CSVImporter reading from dir.
func NewCSVImporter(dir string, instruments []domain.Instrument, s store.BarStore, log *slog.Logger) *CSVImporter {
	return &CSVImporter{
		dir:         dir,
		instruments: instruments,
		store:       s,
		log:         log.With("gatherer", "csv"),
	}
}

// Name returns the gatherer identifier.
func (c *CSVImporter) Name() string { return "csv" }

// Run imports every instrument's file. A missing file is logged and skipped;
// a malformed one fails the run.
func (c *CSVImporter) Run(ctx context.Context) error {
	var imported int
	for _, in := range c.instruments {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := c.importOne(ctx, in)
		if errors.Is(err, os.ErrNotExist) {
			c.log.Warn("csv file missing", "symbol", in.Symbol, "path", c.path(in))
			continue
		}
		if err != nil {
			return err
		}
		imported++
		c.log.Info("imported", "symbol", in.Symbol, "bars", n)
	}
	c.log.Info("complete", "instruments", imported, "of", len(c.instruments))
	return nil
}

func (c *CSVImporter) path(in domain.Instrument) string {
	return filepath.Join(c.dir, in.Label()+".csv")
}

func (c *CSVImporter) importOne(ctx context.Context, in domain.Instrument) (int, error) {
	f, err := os.Open(c.path(in))
	if err != nil {
		return 0, err
	}
	defer f.Close()

	bars, err := store.ReadCSVBars(f, in.Symbol)
	if err != nil {
		return 0, fmt.Errorf("importing %s: %w", in.Symbol, err)
	}
	if err := c.store.WriteBars(ctx, bars); err != nil {
		return 0, fmt.Errorf("storing %s: %w", in.Symbol, err)
	}
	return len(bars), nil
}
