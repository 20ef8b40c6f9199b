package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"stratbench/internal/domain"
)

// ReadCSVBars parses daily bars in the Yahoo Finance export layout
// (Date,Open,High,Low,Close,Adj Close,Volume). Columns are located by header
// name, so their order does not matter and extra columns are ignored. Rows
// with a missing or non-numeric Open or Close are skipped. The result is
// sorted by date with duplicate dates collapsed to the last row seen.
func ReadCSVBars(r io.Reader, symbol string) ([]domain.Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("csv for %s: missing header", symbol)
		}
		return nil, fmt.Errorf("csv header for %s: %w", symbol, err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, want := range []string{"date", "open", "close"} {
		if _, ok := cols[want]; !ok {
			return nil, fmt.Errorf("csv for %s: missing %q column", symbol, want)
		}
	}

	symbol = strings.ToUpper(symbol)
	byDate := make(map[time.Time]domain.Bar)
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv for %s line %d: %w", symbol, line, err)
		}

		ts, err := parseDate(field(row, cols, "date"))
		if err != nil {
			return nil, fmt.Errorf("csv for %s line %d: %w", symbol, line, err)
		}
		open, okOpen := parseFloat(field(row, cols, "open"))
		closePx, okClose := parseFloat(field(row, cols, "close"))
		if !okOpen || !okClose {
			continue
		}
		high, _ := parseFloat(field(row, cols, "high"))
		low, _ := parseFloat(field(row, cols, "low"))
		vol, _ := parseFloat(field(row, cols, "volume"))

		byDate[ts] = domain.Bar{
			Symbol:    symbol,
			Timestamp: ts,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePx,
			Volume:    int64(vol),
		}
	}

	bars := make([]domain.Bar, 0, len(byDate))
	for _, b := range byDate {
		bars = append(bars, b)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	return bars, nil
}

func field(row []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// parseDate accepts plain dates and the timestamped form newer exports use.
func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", "2006-01-02 15:04:05-07:00", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

func parseFloat(s string) (float64, bool) {
	if s == "" || strings.EqualFold(s, "null") {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}
