package features

import (
	"math"
	"testing"

	"github.com/strategylab/optlabel/internal/market"
)

func barsFromCloses(closes []float64) []market.Bar {
	bars := make([]market.Bar, len(closes))
	for i, c := range closes {
		bars[i] = market.Bar{
			Open:   c,
			High:   c * 1.01,
			Low:    c * 0.99,
			Close:  c,
			Volume: 1000,
		}
	}
	return bars
}

func almost(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestRSI(t *testing.T) {
	up := make([]float64, 30)
	for i := range up {
		up[i] = 100 + float64(i)
	}
	if got := rsi(barsFromCloses(up), 14); got != 100 {
		t.Errorf("rsi of monotonic rise = %v, want 100", got)
	}

	down := make([]float64, 30)
	for i := range down {
		down[i] = 200 - float64(i)
	}
	if got := rsi(barsFromCloses(down), 14); got != 0 {
		t.Errorf("rsi of monotonic fall = %v, want 0", got)
	}

	if got := rsi(barsFromCloses([]float64{1, 2, 3}), 14); got != 50 {
		t.Errorf("rsi with short history = %v, want neutral 50", got)
	}
}

func TestSMA(t *testing.T) {
	bars := barsFromCloses([]float64{1, 2, 3, 4, 5})
	if got := sma(bars, 5); !almost(got, 3) {
		t.Errorf("sma(5) = %v, want 3", got)
	}
	if got := sma(bars, 10); !almost(got, 5) {
		t.Errorf("sma over short history = %v, want last close 5", got)
	}
}

func TestEMASeedsFromFirstValue(t *testing.T) {
	out := ema([]float64{10, 10, 10, 10}, 3)
	for i, v := range out {
		if !almost(v, 10) {
			t.Fatalf("ema[%d] of constant series = %v, want 10", i, v)
		}
	}
}

func TestPctReturn(t *testing.T) {
	bars := barsFromCloses([]float64{100, 110, 121})
	if got := pctReturn(bars, 1); !almost(got, 0.10) {
		t.Errorf("1 day return = %v, want 0.10", got)
	}
	if got := pctReturn(bars, 2); !almost(got, 0.21) {
		t.Errorf("2 day return = %v, want 0.21", got)
	}
	if got := pctReturn(bars, 5); got != 0 {
		t.Errorf("return beyond history = %v, want 0", got)
	}
}

func TestBollingerFlatSeries(t *testing.T) {
	bars := barsFromCloses(make([]float64, 25))
	for i := range bars {
		bars[i].Close = 50
	}
	_, middle, _, position := bollinger(bars)
	if !almost(middle, 50) {
		t.Errorf("middle band = %v, want 50", middle)
	}
	if !almost(position, 0.5) {
		t.Errorf("position in collapsed band = %v, want 0.5", position)
	}
}

func TestWilliamsR(t *testing.T) {
	closes := make([]float64, 14)
	for i := range closes {
		closes[i] = 100
	}
	bars := barsFromCloses(closes)
	bars[13].Close = bars[13].High
	got := williamsR(bars, 14)
	if got != 0 {
		t.Errorf("williamsR at period high = %v, want 0", got)
	}
}

func TestHistoricalVolOfConstantSeries(t *testing.T) {
	closes := make([]float64, 25)
	for i := range closes {
		closes[i] = 100
	}
	if got := historicalVol(barsFromCloses(closes), 20); got != 0 {
		t.Errorf("historicalVol of flat series = %v, want 0", got)
	}
}

func TestCorrelation(t *testing.T) {
	a := []float64{1, 2, 3, 4, 5}
	b := []float64{2, 4, 6, 8, 10}
	if got := correlation(a, b); !almost(got, 1) {
		t.Errorf("correlation of scaled series = %v, want 1", got)
	}
	c := []float64{5, 4, 3, 2, 1}
	if got := correlation(a, c); !almost(got, -1) {
		t.Errorf("correlation of inverted series = %v, want -1", got)
	}
}

func TestTrueRange(t *testing.T) {
	prev := market.Bar{Close: 100}
	cur := market.Bar{High: 103, Low: 101}
	if got := trueRange(cur, prev); !almost(got, 3) {
		t.Errorf("trueRange with gap up = %v, want 3", got)
	}
}
