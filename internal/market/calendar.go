package market

import (
	"fmt"
	"time"

	"github.com/scmhub/calendar"
)

const dateLayout = "2006-01-02"

// Calendar answers trading-day questions against the NYSE schedule.
// Optional years bound the holiday table like calendar.XNYS: none means
// now±5, one means a decade from that year, two mean [start, end].
type Calendar struct {
	nyse      *calendar.Calendar
	startYear int
	endYear   int
}

func NewCalendar(years ...int) *Calendar {
	c := &Calendar{nyse: calendar.XNYS(years...)}
	// Mirror the library's year-range defaulting; it panics on lookups
	// outside the range instead of exposing it.
	switch len(years) {
	case 1:
		c.startYear = years[0]
		c.endYear = years[0] + calendar.YearsPast + calendar.YearsAhead
	case 2:
		c.startYear = years[0]
		if years[1] < 100 {
			c.endYear = years[0] + years[1]
		} else {
			c.endYear = years[1]
		}
	default:
		c.startYear = time.Now().Year() - calendar.YearsPast
		c.endYear = time.Now().Year() + calendar.YearsAhead
	}
	return c
}

// noon parses a date as 12:00 New York time. Holidays are keyed by
// NYSE-local days, so parsing in UTC would miss every one of them.
func noon(date string) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, date, calendar.NewYork)
	if err != nil {
		return time.Time{}, err
	}
	return t.Add(12 * time.Hour), nil
}

// IsTradingDay reports whether the date is a NYSE business day. Dates
// outside the calendar's year range report false.
func (c *Calendar) IsTradingDay(date string) bool {
	t, err := noon(date)
	if err != nil || t.Year() < c.startYear || t.Year() > c.endYear {
		return false
	}
	return c.nyse.IsBusinessDay(t)
}

// NextTradingDay returns the first NYSE business day strictly after date.
func (c *Calendar) NextTradingDay(date string) (string, error) {
	t, err := noon(date)
	if err != nil {
		return "", err
	}
	for {
		t = t.AddDate(0, 0, 1)
		if t.Year() > c.endYear {
			return "", fmt.Errorf("no session after %s within calendar range %d-%d", date, c.startYear, c.endYear)
		}
		if t.Year() >= c.startYear && c.nyse.IsBusinessDay(t) {
			return t.Format(dateLayout), nil
		}
	}
}

// DaysBetween returns whole calendar days from a to b.
func DaysBetween(a, b string) (int, error) {
	ta, err := time.Parse(dateLayout, a)
	if err != nil {
		return 0, err
	}
	tb, err := time.Parse(dateLayout, b)
	if err != nil {
		return 0, err
	}
	return int(tb.Sub(ta).Hours() / 24), nil
}
