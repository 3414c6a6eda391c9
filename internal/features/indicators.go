package features

import (
	"math"

	"github.com/strategylab/optlabel/internal/market"
)

const annualization = 252

func closes(bars []market.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// sampleStd is the n-1 denominator standard deviation.
func sampleStd(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

func populationStd(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)))
}

// ema is an exponentially weighted average with alpha = 2/(span+1),
// seeded from the first value.
func ema(xs []float64, span int) []float64 {
	out := make([]float64, len(xs))
	if len(xs) == 0 {
		return out
	}
	alpha := 2.0 / float64(span+1)
	out[0] = xs[0]
	for i := 1; i < len(xs); i++ {
		out[i] = alpha*xs[i] + (1-alpha)*out[i-1]
	}
	return out
}

func sma(bars []market.Bar, period int) float64 {
	if len(bars) == 0 {
		return 0
	}
	if len(bars) < period {
		return bars[len(bars)-1].Close
	}
	return mean(closes(bars[len(bars)-period:]))
}

func pctReturn(bars []market.Bar, days int) float64 {
	n := len(bars)
	if n <= days {
		return 0
	}
	prev := bars[n-1-days].Close
	if prev == 0 {
		return 0
	}
	return (bars[n-1].Close - prev) / prev
}

func rsi(bars []market.Bar, period int) float64 {
	n := len(bars)
	if n < period+1 {
		return 50
	}
	window := closes(bars[n-period-1:])
	var gains, losses float64
	for i := 1; i < len(window); i++ {
		d := window[i] - window[i-1]
		if d > 0 {
			gains += d
		} else {
			losses -= d
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// macd returns the MACD line, signal line, and histogram for the last bar.
func macd(bars []market.Bar) (line, signal, hist float64) {
	if len(bars) < 27 {
		return 0, 0, 0
	}
	cs := closes(bars)
	fast := ema(cs, 12)
	slow := ema(cs, 26)
	macdLine := make([]float64, len(cs))
	for i := range cs {
		macdLine[i] = fast[i] - slow[i]
	}
	sig := ema(macdLine, 9)
	last := len(cs) - 1
	return macdLine[last], sig[last], macdLine[last] - sig[last]
}

func adx(bars []market.Bar, period int) float64 {
	n := len(bars)
	if n < period+1 {
		return 20
	}
	window := bars[n-period-1:]
	plusDM := make([]float64, period)
	minusDM := make([]float64, period)
	tr := make([]float64, period)
	for i := 1; i <= period; i++ {
		up := window[i].High - window[i-1].High
		down := window[i-1].Low - window[i].Low
		if up > down && up > 0 {
			plusDM[i-1] = up
		}
		if down > up && down > 0 {
			minusDM[i-1] = down
		}
		tr[i-1] = trueRange(window[i], window[i-1])
	}
	avgTR := mean(tr)
	if avgTR == 0 {
		return 20
	}
	plusDI := 100 * mean(plusDM) / avgTR
	minusDI := 100 * mean(minusDM) / avgTR
	if plusDI+minusDI == 0 {
		return 20
	}
	return 100 * math.Abs(plusDI-minusDI) / (plusDI + minusDI)
}

func trueRange(cur, prev market.Bar) float64 {
	hl := cur.High - cur.Low
	hc := math.Abs(cur.High - prev.Close)
	lc := math.Abs(cur.Low - prev.Close)
	return math.Max(hl, math.Max(hc, lc))
}

func atr(bars []market.Bar, period int) float64 {
	n := len(bars)
	if n < period+1 {
		if n == 0 {
			return 0
		}
		return bars[n-1].Close * 0.02
	}
	trs := make([]float64, period)
	for i := 0; i < period; i++ {
		trs[i] = trueRange(bars[n-period+i], bars[n-period+i-1])
	}
	return mean(trs)
}

// bollinger returns upper, middle, lower bands and the position of the
// last close inside the band, using a 20 day window and 2 sigma.
func bollinger(bars []market.Bar) (upper, middle, lower, position float64) {
	n := len(bars)
	price := bars[n-1].Close
	if n < 20 {
		return price * 1.02, price, price * 0.98, 0.5
	}
	window := closes(bars[n-20:])
	middle = mean(window)
	sd := sampleStd(window)
	upper = middle + 2*sd
	lower = middle - 2*sd
	if upper == lower {
		return upper, middle, lower, 0.5
	}
	position = (price - lower) / (upper - lower)
	return upper, middle, lower, position
}

func obv(bars []market.Bar) float64 {
	var total float64
	for i := 1; i < len(bars); i++ {
		switch {
		case bars[i].Close > bars[i-1].Close:
			total += bars[i].Volume
		case bars[i].Close < bars[i-1].Close:
			total -= bars[i].Volume
		}
	}
	return total
}

// stochastic returns %K over 14 bars and %D as a 3 day mean of %K.
func stochastic(bars []market.Bar) (k, d float64) {
	n := len(bars)
	if n < 17 {
		return 50, 50
	}
	kAt := func(end int) float64 {
		window := bars[end-13 : end+1]
		lo, hi := window[0].Low, window[0].High
		for _, b := range window[1:] {
			lo = math.Min(lo, b.Low)
			hi = math.Max(hi, b.High)
		}
		if hi == lo {
			return 50
		}
		return 100 * (bars[end].Close - lo) / (hi - lo)
	}
	k = kAt(n - 1)
	d = (kAt(n-1) + kAt(n-2) + kAt(n-3)) / 3
	return k, d
}

func cci(bars []market.Bar, period int) float64 {
	n := len(bars)
	if n < period {
		return 0
	}
	tps := make([]float64, period)
	for i := 0; i < period; i++ {
		b := bars[n-period+i]
		tps[i] = (b.High + b.Low + b.Close) / 3
	}
	m := mean(tps)
	var mad float64
	for _, tp := range tps {
		mad += math.Abs(tp - m)
	}
	mad /= float64(period)
	if mad == 0 {
		return 0
	}
	return (tps[period-1] - m) / (0.015 * mad)
}

func williamsR(bars []market.Bar, period int) float64 {
	n := len(bars)
	if n < period {
		return -50
	}
	window := bars[n-period:]
	lo, hi := window[0].Low, window[0].High
	for _, b := range window[1:] {
		lo = math.Min(lo, b.Low)
		hi = math.Max(hi, b.High)
	}
	if hi == lo {
		return -50
	}
	return -100 * (hi - bars[n-1].Close) / (hi - lo)
}

func mfi(bars []market.Bar, period int) float64 {
	n := len(bars)
	if n < period+1 {
		return 50
	}
	window := bars[n-period-1:]
	var pos, neg float64
	prevTP := (window[0].High + window[0].Low + window[0].Close) / 3
	for _, b := range window[1:] {
		tp := (b.High + b.Low + b.Close) / 3
		flow := tp * b.Volume
		if tp > prevTP {
			pos += flow
		} else if tp < prevTP {
			neg += flow
		}
		prevTP = tp
	}
	if neg == 0 {
		return 100
	}
	ratio := pos / neg
	return 100 - 100/(1+ratio)
}

// historicalVol is the annualized sample standard deviation of daily
// close-to-close returns over the trailing window.
func historicalVol(bars []market.Bar, period int) float64 {
	n := len(bars)
	if n < period {
		return 0.20
	}
	window := closes(bars[n-period:])
	rets := make([]float64, 0, period-1)
	for i := 1; i < len(window); i++ {
		if window[i-1] != 0 {
			rets = append(rets, (window[i]-window[i-1])/window[i-1])
		}
	}
	return sampleStd(rets) * math.Sqrt(annualization)
}

func parkinsonVol(bars []market.Bar, period int) float64 {
	n := len(bars)
	if n < period {
		return 0.20
	}
	var sum float64
	for _, b := range bars[n-period:] {
		if b.Low <= 0 {
			continue
		}
		lr := math.Log(b.High / b.Low)
		sum += lr * lr
	}
	return math.Sqrt(sum/(4*math.Ln2*float64(period))) * math.Sqrt(annualization)
}

func garmanKlassVol(bars []market.Bar, period int) float64 {
	n := len(bars)
	if n < period {
		return 0.20
	}
	var sum float64
	for _, b := range bars[n-period:] {
		if b.Low <= 0 || b.Open <= 0 {
			continue
		}
		hl := math.Log(b.High / b.Low)
		co := math.Log(b.Close / b.Open)
		sum += 0.5*hl*hl - (2*math.Ln2-1)*co*co
	}
	v := sum / float64(period)
	if v < 0 {
		v = 0
	}
	return math.Sqrt(v) * math.Sqrt(annualization)
}

// volOfVol is the dispersion of the trailing 20 rolling 20 day
// historical volatilities.
func volOfVol(bars []market.Bar) float64 {
	n := len(bars)
	if n < 40 {
		return 0.05
	}
	hvs := make([]float64, 0, 20)
	for end := n - 20; end < n; end++ {
		hvs = append(hvs, historicalVol(bars[:end+1], 20))
	}
	return populationStd(hvs)
}

// correlation is the Pearson correlation of two equal length series.
func correlation(a, b []float64) float64 {
	if len(a) != len(b) || len(a) < 2 {
		return 0
	}
	ma, mb := mean(a), mean(b)
	var cov, va, vb float64
	for i := range a {
		da := a[i] - ma
		db := b[i] - mb
		cov += da * db
		va += da * da
		vb += db * db
	}
	if va == 0 || vb == 0 {
		return 0
	}
	return cov / math.Sqrt(va*vb)
}
