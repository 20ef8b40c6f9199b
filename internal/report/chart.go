package report

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"

	"stratbench/internal/domain"
	"stratbench/internal/selector"
)

// Chart is the exported plot of one instrument's selected strategy.
type Chart struct {
	Symbol   string              `json:"symbol"`
	Strategy domain.StrategyKind `json:"strategy"`
	Window   *domain.Window      `json:"window,omitempty"`
	Return   decimal.Decimal     `json:"return"`
	Rows     []ChartRow          `json:"rows"`
}

// ChartRow is one plotted bar. Short and Long are null during indicator
// warm-up and for the baseline.
type ChartRow struct {
	Date   string   `json:"date"`
	Open   float64  `json:"open"`
	Close  float64  `json:"close"`
	Short  *float64 `json:"short"`
	Long   *float64 `json:"long"`
	Signal string   `json:"signal"`
}

// NewChart builds the chart of c.
func NewChart(c *selector.Choice) Chart {
	ch := Chart{
		Symbol:   c.Symbol,
		Strategy: c.Kind,
		Window:   c.Window,
		Return:   c.Return,
		Rows:     make([]ChartRow, len(c.Plot.Bars)),
	}
	for i, b := range c.Plot.Bars {
		r := ChartRow{
			Date:   b.Timestamp.Format("2006-01-02"),
			Open:   b.Open,
			Close:  b.Close,
			Signal: domain.SignalHold.String(),
		}
		if i < len(c.Signals) {
			r.Signal = c.Signals[i].String()
		}
		r.Short = point(c.Short, i)
		r.Long = point(c.Long, i)
		ch.Rows[i] = r
	}
	return ch
}

func point(values []float64, i int) *float64 {
	if i >= len(values) || math.IsNaN(values[i]) {
		return nil
	}
	v := values[i]
	return &v
}

// WriteChart writes the chart of c to <dir>/<SYMBOL>.json and returns the
// path. The file is replaced atomically.
func WriteChart(dir string, c *selector.Choice) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating chart dir: %w", err)
	}
	data, err := json.MarshalIndent(NewChart(c), "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding chart: %w", err)
	}

	path := filepath.Join(dir, strings.ToUpper(c.Symbol)+".json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("writing chart: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("renaming chart: %w", err)
	}
	return path, nil
}
