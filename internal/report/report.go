// Package report renders analysis results for the terminal and exports the
// chart data of each instrument.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"stratbench/internal/domain"
	"stratbench/internal/selector"
	"stratbench/internal/strategy"
)

// Styles.
var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("4"))
	colHeaderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	symbolStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	gainStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	lossStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	priceStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	errStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
)

var kindStyles = map[domain.StrategyKind]lipgloss.Style{
	domain.StrategyBuyAndHold: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11")),
	domain.StrategySMA:        lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14")),
	domain.StrategyEMA:        lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13")),
}

// Report is the analysis result of one instrument. Exactly one of Choice and
// Err is set.
type Report struct {
	Instrument domain.Instrument
	Capital    decimal.Decimal
	Choice     *selector.Choice
	// RunID identifies the persisted run, empty when nothing was recorded.
	RunID string
	// ChartPath is the exported chart file, empty when none was written.
	ChartPath string
	Err       error
}

const (
	nameWidth   = 12
	symbolWidth = 8
	kindWidth   = 13
	windowWidth = 9
	cashWidth   = 12
	changeWidth = 8
	scoreWidth  = 8
)

// Render writes a table of reports to w, one row per instrument.
func Render(w io.Writer, reports []Report) error {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf(" stratbench: %d instruments ", len(reports))))
	b.WriteString("\n")

	header := padOrTrunc("Name", nameWidth) + " " +
		padOrTrunc("Symbol", symbolWidth) + " " +
		padOrTrunc("Strategy", kindWidth) + " " +
		padOrTrunc("Window", windowWidth) + " " +
		padLeft("Final", cashWidth) + " " +
		padLeft("Chg", changeWidth) + " " +
		padLeft("B&H", scoreWidth) + " " +
		padLeft("SMA", scoreWidth) + " " +
		padLeft("EMA", scoreWidth) + "  " +
		"Last signal"
	b.WriteString(colHeaderStyle.Render(header))
	b.WriteString("\n")

	for _, r := range reports {
		b.WriteString(row(r))
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func row(r Report) string {
	var b strings.Builder
	b.WriteString(padOrTrunc(r.Instrument.Label(), nameWidth))
	b.WriteString(" ")
	b.WriteString(symbolStyle.Render(padOrTrunc(r.Instrument.Symbol, symbolWidth)))
	b.WriteString(" ")

	if r.Err != nil {
		b.WriteString(errStyle.Render(padOrTrunc("failed", kindWidth)))
		b.WriteString(" ")
		b.WriteString(dimStyle.Render(r.Err.Error()))
		return b.String()
	}

	c := r.Choice
	style, ok := kindStyles[c.Kind]
	if !ok {
		style = lipgloss.NewStyle()
	}
	b.WriteString(style.Render(padOrTrunc(string(c.Kind), kindWidth)))
	b.WriteString(" ")

	window := "-"
	if c.Window != nil {
		window = c.Window.String()
	}
	b.WriteString(padOrTrunc(window, windowWidth))
	b.WriteString(" ")
	b.WriteString(priceStyle.Render(padLeft(FormatCash(c.Return), cashWidth)))
	b.WriteString(" ")
	b.WriteString(changeCell(Change(c.Return, r.Capital), changeWidth))
	for _, o := range []*strategy.Outcome{c.Baseline, c.SMA, c.EMA} {
		b.WriteString(" ")
		if o == nil {
			b.WriteString(dimStyle.Render(padLeft("-", scoreWidth)))
			continue
		}
		b.WriteString(changeCell(Change(o.Return, r.Capital), scoreWidth))
	}
	b.WriteString("  ")
	b.WriteString(LastSignal(c))
	return b.String()
}

func changeCell(c float64, width int) string {
	s := padLeft(FormatChange(c), width)
	switch {
	case c > 0:
		return gainStyle.Render(s)
	case c < 0:
		return lossStyle.Render(s)
	default:
		return dimStyle.Render(s)
	}
}

// LastSignal describes the latest buy or sell in the charted range, or "-"
// when there is none.
func LastSignal(c *selector.Choice) string {
	for i := len(c.Signals) - 1; i >= 0; i-- {
		if c.Signals[i] == domain.SignalHold {
			continue
		}
		return fmt.Sprintf("%s %s", c.Signals[i], c.Plot.Bars[i].Timestamp.Format("2006-01-02"))
	}
	return "-"
}
