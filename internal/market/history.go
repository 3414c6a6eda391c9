package market

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSnapshot is returned when a date has no chain snapshot.
	ErrNoSnapshot = errors.New("no chain snapshot for date")
	// ErrUnknownDate is returned when a date has no price bar.
	ErrUnknownDate = errors.New("date not present in price history")
)

// History is the shared, read-only arena for a full historical dataset:
// the underlying's daily bars, every daily chain snapshot, and optional
// auxiliary series. It is loaded once and never mutated, so concurrent
// readers need no locking.
type History struct {
	Ticker string

	dates []string
	bars  []Bar
	idx   map[string]int

	chains map[string][]Option

	index    map[string]Bar // broad-market index, optional
	volIndex map[string]Bar // volatility index, optional
}

// Len returns the number of daily bars.
func (h *History) Len() int { return len(h.bars) }

// Dates returns the ascending trading dates with price bars.
// Callers must not modify the returned slice.
func (h *History) Dates() []string { return h.dates }

// Bars returns the full bar series, ascending by date.
func (h *History) Bars() []Bar { return h.bars }

// IndexOf returns the bar index for a date.
func (h *History) IndexOf(date string) (int, bool) {
	i, ok := h.idx[date]
	return i, ok
}

// Bar returns the price bar for a date.
func (h *History) Bar(date string) (Bar, error) {
	i, ok := h.idx[date]
	if !ok {
		return Bar{}, fmt.Errorf("%w: %s", ErrUnknownDate, date)
	}
	return h.bars[i], nil
}

// HasChain reports whether a chain snapshot exists for the date.
func (h *History) HasChain(date string) bool {
	_, ok := h.chains[date]
	return ok
}

// Snapshot returns the full market snapshot for a date.
func (h *History) Snapshot(date string) (*Snapshot, error) {
	bar, err := h.Bar(date)
	if err != nil {
		return nil, err
	}
	chain, ok := h.chains[date]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSnapshot, date)
	}
	return &Snapshot{Date: date, Price: bar.Close, Chain: chain}, nil
}

// IndexBar returns the broad-market index bar for a date, if loaded.
func (h *History) IndexBar(date string) (Bar, bool) {
	b, ok := h.index[date]
	return b, ok
}

// VolIndexBar returns the volatility index bar for a date, if loaded.
func (h *History) VolIndexBar(date string) (Bar, bool) {
	b, ok := h.volIndex[date]
	return b, ok
}

// HasIndex reports whether a broad-market index series is attached.
func (h *History) HasIndex() bool { return len(h.index) > 0 }

// HasVolIndex reports whether a volatility index series is attached.
func (h *History) HasVolIndex() bool { return len(h.volIndex) > 0 }
