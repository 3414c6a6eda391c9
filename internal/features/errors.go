package features

import (
	"errors"
	"fmt"
)

// ErrIncompleteChain reports an option chain with no contracts near the
// money, which makes ATM implied volatility (and everything downstream of
// it) undefined for that day.
var ErrIncompleteChain = errors.New("option chain has no near-the-money contracts")

// MissingHistoryError reports that the lookback window behind a date is
// shorter than the minimum needed for full-window features. The record it
// accompanies is still valid; long-window features were computed over all
// available history.
type MissingHistoryError struct {
	Date string
	Have int
	Want int
}

func (e *MissingHistoryError) Error() string {
	return fmt.Sprintf("only %d bars of history before %s, want %d", e.Have, e.Date, e.Want)
}
