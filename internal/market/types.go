package market

// OptionType is the contract side, "call" or "put".
type OptionType string

const (
	Call OptionType = "call"
	Put  OptionType = "put"
)

// Bar is one daily OHLCV entry for an underlying or index series.
type Bar struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Option is one row of a daily options chain snapshot.
type Option struct {
	Strike       float64    `json:"strike"`
	Type         OptionType `json:"type"`
	Expiration   string     `json:"expiration"`
	DTE          int        `json:"dte"`
	Bid          float64    `json:"bid"`
	Ask          float64    `json:"ask"`
	Volume       float64    `json:"volume"`
	OpenInterest float64    `json:"open_interest"`
	IV           float64    `json:"iv"`
	Delta        float64    `json:"delta"`
	Gamma        float64    `json:"gamma"`
	Theta        float64    `json:"theta"`
	Vega         float64    `json:"vega"`
}

// Snapshot is one trading day's view of the market: the underlying close
// and the full option chain for that date. Immutable once loaded.
type Snapshot struct {
	Date  string
	Price float64
	Chain []Option
}

// Mid returns the bid/ask midpoint.
func (o Option) Mid() float64 {
	return (o.Bid + o.Ask) / 2
}

// Intrinsic returns the option's intrinsic value at the given underlying price.
func (o Option) Intrinsic(spot float64) float64 {
	if o.Type == Call {
		if spot > o.Strike {
			return spot - o.Strike
		}
		return 0
	}
	if o.Strike > spot {
		return o.Strike - spot
	}
	return 0
}
