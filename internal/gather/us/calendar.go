package us

import (
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
)

// CalendarEndDate returns an Options.EndDate that asks the Alpaca trading
// calendar for the latest finished trading day.
func CalendarEndDate(apiKey, apiSecret, baseURL string) func() (time.Time, error) {
	return func() (time.Time, error) {
		return LatestFinishedTradingDay(apiKey, apiSecret, baseURL)
	}
}

// LatestFinishedTradingDay returns the most recent trading day whose market
// session has ended (i.e. after 20:05 ET to account for extended hours data
// settling). It uses the Alpaca trading calendar API.
func LatestFinishedTradingDay(apiKey, apiSecret, baseURL string) (time.Time, error) {
	client := alpaca.NewClient(alpaca.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
		BaseURL:   baseURL,
	})

	et, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.Time{}, fmt.Errorf("loading ET timezone: %w", err)
	}

	now := time.Now().In(et)
	calendar, err := client.GetCalendar(alpaca.GetCalendarRequest{
		Start: now.AddDate(0, 0, -7),
		End:   now,
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("GetCalendar: %w", err)
	}
	return latestFinished(calendar, now)
}

// latestFinished picks the last calendar day that is over at now. Today
// counts only after the 20:05 cutoff in now's location.
func latestFinished(calendar []alpaca.CalendarDay, now time.Time) (time.Time, error) {
	if len(calendar) == 0 {
		return time.Time{}, fmt.Errorf("no trading days returned from calendar")
	}

	today := now.Format("2006-01-02")
	cutoff := time.Date(now.Year(), now.Month(), now.Day(), 20, 5, 0, 0, now.Location())

	for i := len(calendar) - 1; i >= 0; i-- {
		day := calendar[i]
		dayDate, err := time.Parse("2006-01-02", day.Date)
		if err != nil {
			continue
		}
		if day.Date == today {
			if now.After(cutoff) {
				return dayDate, nil
			}
			continue
		}
		if day.Date < today {
			return dayDate, nil
		}
	}

	return time.Time{}, fmt.Errorf("could not determine latest finished trading day")
}
