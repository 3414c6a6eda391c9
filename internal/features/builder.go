package features

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/strategylab/optlabel/internal/market"
)

// MinLookback is the bar count needed for every long-window feature to use
// its full window. Shorter histories still produce a record, degraded.
const MinLookback = 200

const atmBand = 0.02

// Builder computes feature records against a fixed history.
type Builder struct {
	hist *market.History
	log  *zap.Logger
}

func NewBuilder(h *market.History, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{hist: h, log: logger}
}

// Build computes the feature record for date. prior must hold the records
// of earlier chain dates in ascending order; it feeds IV rank, regime age,
// and the unusual-activity baseline.
//
// When the lookback behind date is shorter than MinLookback the record is
// still returned together with a *MissingHistoryError so the caller can
// decide whether degraded features are acceptable. Any other error means
// no usable record.
func (b *Builder) Build(date string, prior []Record) (*Record, error) {
	idx, ok := b.hist.IndexOf(date)
	if !ok {
		return nil, fmt.Errorf("%s: %w", date, market.ErrUnknownDate)
	}
	snap, err := b.hist.Snapshot(date)
	if err != nil {
		return nil, err
	}
	bars := b.hist.Bars()[:idx+1]
	price := bars[idx].Close

	r := &Record{Date: date, CurrentPrice: price}
	b.priceFeatures(r, bars)
	b.technicalFeatures(r, bars)
	if err := b.volatilityFeatures(r, bars, snap, prior); err != nil {
		return nil, err
	}
	b.optionFeatures(r, snap, prior)
	b.rangeFeatures(r, bars)
	b.contextFeatures(r, bars, idx)
	b.regimeFeatures(r, prior)

	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", date, err)
	}
	if idx+1 < MinLookback {
		b.log.Warn("short lookback, long-window features degraded",
			zap.String("date", date),
			zap.Int("bars", idx+1),
			zap.Int("want", MinLookback))
		return r, &MissingHistoryError{Date: date, Have: idx + 1, Want: MinLookback}
	}
	return r, nil
}

func (b *Builder) priceFeatures(r *Record, bars []market.Bar) {
	r.Return1D = pctReturn(bars, 1)
	r.Return3D = pctReturn(bars, 3)
	r.Return5D = pctReturn(bars, 5)
	r.Return10D = pctReturn(bars, 10)
	r.Return20D = pctReturn(bars, 20)
	r.Return50D = pctReturn(bars, 50)

	r.SMA5 = sma(bars, 5)
	r.SMA10 = sma(bars, 10)
	r.SMA20 = sma(bars, 20)
	r.SMA50 = sma(bars, 50)
	r.SMA200 = sma(bars, 200)

	r.PriceVsSMA5 = ratioToSMA(r.CurrentPrice, r.SMA5)
	r.PriceVsSMA10 = ratioToSMA(r.CurrentPrice, r.SMA10)
	r.PriceVsSMA20 = ratioToSMA(r.CurrentPrice, r.SMA20)
	r.PriceVsSMA50 = ratioToSMA(r.CurrentPrice, r.SMA50)
	r.PriceVsSMA200 = ratioToSMA(r.CurrentPrice, r.SMA200)

	if r.SMA5 > r.SMA10 && r.SMA10 > r.SMA20 && r.SMA20 > r.SMA50 {
		r.SMAAlignment = 1
	}
}

func ratioToSMA(price, sma float64) float64 {
	if sma == 0 {
		return 0
	}
	return (price - sma) / sma
}

func (b *Builder) technicalFeatures(r *Record, bars []market.Bar) {
	r.RSI14 = rsi(bars, 14)
	r.MACD, r.MACDSignal, r.MACDHistogram = macd(bars)
	r.ADX14 = adx(bars, 14)
	r.ATR14 = atr(bars, 14)
	r.BBUpper, r.BBMiddle, r.BBLower, r.BBPosition = bollinger(bars)
	r.OBV = obv(bars)
	r.StochasticK, r.StochasticD = stochastic(bars)
	r.CCI = cci(bars, 20)
	r.WilliamsR = williamsR(bars, 14)
	r.MFI = mfi(bars, 14)

	n := len(bars)
	if n >= 20 {
		var sum float64
		for _, bar := range bars[n-20:] {
			sum += bar.Volume
		}
		r.Volume20DAvg = sum / 20
	} else {
		r.Volume20DAvg = bars[n-1].Volume
	}
	if r.Volume20DAvg > 0 {
		r.VolumeVsAvg = bars[n-1].Volume / r.Volume20DAvg
	} else {
		r.VolumeVsAvg = 1
	}
}

func (b *Builder) volatilityFeatures(r *Record, bars []market.Bar, snap *market.Snapshot, prior []Record) error {
	r.HV20D = historicalVol(bars, 20)
	r.ParkinsonVol = parkinsonVol(bars, 20)
	r.GarmanKlassVol = garmanKlassVol(bars, 20)
	r.VolOfVol = volOfVol(bars)

	iv, ok := atmIV(snap)
	if !ok {
		return fmt.Errorf("%s: %w", snap.Date, ErrIncompleteChain)
	}
	r.IVATM = iv
	r.IVRank, r.IVPercentile = ivRank(iv, prior)
	if iv > 0 {
		r.HVIVRatio = r.HV20D / iv
	} else {
		r.HVIVRatio = 1
	}
	if r.HV20D > iv {
		r.VolatilityTrend = 1
	}
	r.IVSkew = ivSkew(snap)
	r.IVTermStructure = ivTermStructure(snap)
	return nil
}

// atmIV averages implied vol over contracts struck within the ATM band of
// spot. ok is false when no contract qualifies.
func atmIV(snap *market.Snapshot) (iv float64, ok bool) {
	var sum float64
	var n int
	lo := snap.Price * (1 - atmBand)
	hi := snap.Price * (1 + atmBand)
	for _, o := range snap.Chain {
		if o.Strike >= lo && o.Strike <= hi && o.IV > 0 {
			sum += o.IV
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// ivRank places today's ATM IV inside its trailing 52 week range, and
// ivPercentile counts how much of that range sits below today.
func ivRank(iv float64, prior []Record) (rank, percentile float64) {
	window := make([]float64, 0, annualization)
	start := 0
	if len(prior) > annualization-1 {
		start = len(prior) - (annualization - 1)
	}
	for _, p := range prior[start:] {
		window = append(window, p.IVATM)
	}
	window = append(window, iv)
	if len(window) < 2 {
		return 50, 50
	}
	lo, hi := window[0], window[0]
	below := 0
	for _, v := range window {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
		if v < iv {
			below++
		}
	}
	if hi == lo {
		return 50, 50
	}
	rank = 100 * (iv - lo) / (hi - lo)
	rank = math.Max(0, math.Min(100, rank))
	percentile = 100 * float64(below) / float64(len(window))
	return rank, percentile
}

// ivSkew is mean OTM put IV minus mean OTM call IV, both taken 5 to 15
// percent out of the money.
func ivSkew(snap *market.Snapshot) float64 {
	var putSum, callSum float64
	var puts, calls int
	for _, o := range snap.Chain {
		if o.IV <= 0 {
			continue
		}
		m := o.Strike / snap.Price
		switch {
		case o.Type == market.Put && m > 0.85 && m < 0.95:
			putSum += o.IV
			puts++
		case o.Type == market.Call && m > 1.05 && m < 1.15:
			callSum += o.IV
			calls++
		}
	}
	if puts == 0 || calls == 0 {
		return 0
	}
	return putSum/float64(puts) - callSum/float64(calls)
}

// ivTermStructure is mean far-dated IV minus mean near-dated IV.
func ivTermStructure(snap *market.Snapshot) float64 {
	var nearSum, farSum float64
	var near, far int
	for _, o := range snap.Chain {
		if o.IV <= 0 {
			continue
		}
		switch {
		case o.DTE >= 7 && o.DTE <= 21:
			nearSum += o.IV
			near++
		case o.DTE >= 45 && o.DTE <= 90:
			farSum += o.IV
			far++
		}
	}
	if near == 0 || far == 0 {
		return 0
	}
	return farSum/float64(far) - nearSum/float64(near)
}

func (b *Builder) optionFeatures(r *Record, snap *market.Snapshot, prior []Record) {
	var callVol, putVol, callOI, putOI float64
	var gammaExp, deltaExp float64
	for _, o := range snap.Chain {
		vol := o.Volume
		oi := o.OpenInterest
		if o.Type == market.Call {
			callVol += vol
			callOI += oi
		} else {
			putVol += vol
			putOI += oi
		}
		gammaExp += o.Gamma * oi
		deltaExp += o.Delta * oi
	}
	r.TotalOptionVolume = callVol + putVol
	r.TotalOpenInterest = callOI + putOI
	r.PutCallVolumeRatio = safeRatio(putVol, callVol)
	r.PutCallOIRatio = safeRatio(putOI, callOI)
	r.GammaExposure = gammaExp / 1000
	r.DeltaExposure = deltaExp / 1000

	b.atmGreeks(r, snap)
	r.MaxPainStrike = maxPain(snap)
	if snap.Price > 0 {
		r.DistanceToMaxPain = (r.MaxPainStrike - snap.Price) / snap.Price
	}

	// Unusual activity benchmarks today's total contract volume against
	// the trailing 20 chain days.
	if base := trailingOptionVolume(prior, 20); base > 0 && r.TotalOptionVolume > 2*base {
		r.UnusualActivity = 1
	}
	if r.PutCallVolumeRatio > 1.2 {
		r.OptionsFlowSentiment = -1
	} else if r.PutCallVolumeRatio < 0.8 {
		r.OptionsFlowSentiment = 1
	}
}

func safeRatio(num, den float64) float64 {
	if den == 0 {
		return 1
	}
	return num / den
}

func trailingOptionVolume(prior []Record, window int) float64 {
	if len(prior) == 0 {
		return 0
	}
	start := 0
	if len(prior) > window {
		start = len(prior) - window
	}
	var sum float64
	for _, p := range prior[start:] {
		sum += p.TotalOptionVolume
	}
	return sum / float64(len(prior)-start)
}

func (b *Builder) atmGreeks(r *Record, snap *market.Snapshot) {
	r.ATMDeltaCall, r.ATMDeltaPut = 0.5, -0.5
	r.ATMGamma, r.ATMTheta, r.ATMVega = 0.05, -0.05, 0.10

	lo := snap.Price * (1 - atmBand)
	hi := snap.Price * (1 + atmBand)
	var dc, dp, g, t, v float64
	var calls, puts, all int
	for _, o := range snap.Chain {
		if o.Strike < lo || o.Strike > hi {
			continue
		}
		all++
		g += o.Gamma
		t += o.Theta
		v += o.Vega
		if o.Type == market.Call {
			dc += o.Delta
			calls++
		} else {
			dp += o.Delta
			puts++
		}
	}
	if calls > 0 {
		r.ATMDeltaCall = dc / float64(calls)
	}
	if puts > 0 {
		r.ATMDeltaPut = dp / float64(puts)
	}
	if all > 0 {
		r.ATMGamma = g / float64(all)
		r.ATMTheta = t / float64(all)
		r.ATMVega = v / float64(all)
	}
}

// maxPain finds the strike where total intrinsic value paid to option
// holders, weighted by open interest, is smallest.
func maxPain(snap *market.Snapshot) float64 {
	strikes := make(map[float64]struct{})
	for _, o := range snap.Chain {
		strikes[o.Strike] = struct{}{}
	}
	if len(strikes) == 0 {
		return snap.Price
	}
	best := snap.Price
	bestPain := math.Inf(1)
	for settle := range strikes {
		var pain float64
		for _, o := range snap.Chain {
			oi := o.OpenInterest
			if o.Type == market.Call && settle > o.Strike {
				pain += (settle - o.Strike) * oi
			} else if o.Type == market.Put && settle < o.Strike {
				pain += (o.Strike - settle) * oi
			}
		}
		if pain < bestPain {
			bestPain = pain
			best = settle
		}
	}
	return best
}

func (b *Builder) rangeFeatures(r *Record, bars []market.Bar) {
	n := len(bars)
	window := bars
	if n > 60 {
		window = bars[n-60:]
	}
	price := r.CurrentPrice
	highs := make([]float64, len(window))
	lows := make([]float64, len(window))
	for i, bar := range window {
		highs[i] = bar.High
		lows[i] = bar.Low
	}
	r.ResistanceLevel, r.Resistance2 = topTwo(highs, true)
	r.SupportLevel, r.Support2 = topTwo(lows, false)

	if price > 0 {
		r.DistanceToResistance = (r.ResistanceLevel - price) / price
		r.DistanceToSupport = (price - r.SupportLevel) / price
	}
	span := r.ResistanceLevel - r.SupportLevel
	if span > 0 {
		r.PositionInRange = (price - r.SupportLevel) / span
		r.RangeWidth = span / price
	} else {
		r.PositionInRange = 0.5
	}

	days := 0
	for i := len(window) - 1; i >= 0; i-- {
		if window[i].Close < r.SupportLevel || window[i].Close > r.ResistanceLevel {
			break
		}
		days++
	}
	r.DaysInRange = float64(days)

	edge := math.Min(math.Abs(r.DistanceToResistance), math.Abs(r.DistanceToSupport))
	r.BreakoutProbability = math.Min(1, (1-edge*10)*0.5)
	if r.BreakoutProbability < 0 {
		r.BreakoutProbability = 0
	}
}

// topTwo returns the two most extreme values: the max pair when high is
// true, the min pair otherwise.
func topTwo(xs []float64, high bool) (first, second float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	first, second = xs[0], xs[0]
	for _, x := range xs[1:] {
		if high {
			if x > first {
				second, first = first, x
			} else if x > second {
				second = x
			}
		} else {
			if x < first {
				second, first = first, x
			} else if x < second {
				second = x
			}
		}
	}
	return first, second
}

func (b *Builder) contextFeatures(r *Record, bars []market.Bar, idx int) {
	dates := b.hist.Dates()
	r.IndexCorrelation = 0.80
	r.VolIndexLevel = 16
	r.VolIndexVsMA20 = 1

	if cur, ok := b.hist.IndexBar(dates[idx]); ok {
		if idx >= 1 {
			if prev, ok := b.hist.IndexBar(dates[idx-1]); ok && prev.Close != 0 {
				r.IndexReturn1D = (cur.Close - prev.Close) / prev.Close
			}
		}
		if idx >= 5 {
			if prev, ok := b.hist.IndexBar(dates[idx-5]); ok && prev.Close != 0 {
				r.IndexReturn5D = (cur.Close - prev.Close) / prev.Close
			}
		}
	}
	r.ExcessVsIndex = r.Return1D - r.IndexReturn1D

	// 30 day rolling correlation of daily returns against the index,
	// over the dates where both series have a bar.
	var own, ref []float64
	start := idx - 30
	if start < 1 {
		start = 1
	}
	for i := start; i <= idx; i++ {
		cur, ok1 := b.hist.IndexBar(dates[i])
		prev, ok2 := b.hist.IndexBar(dates[i-1])
		if !ok1 || !ok2 || prev.Close == 0 || bars[i-1].Close == 0 {
			continue
		}
		own = append(own, (bars[i].Close-bars[i-1].Close)/bars[i-1].Close)
		ref = append(ref, (cur.Close-prev.Close)/prev.Close)
	}
	if len(own) >= 10 {
		r.IndexCorrelation = correlation(own, ref)
	}

	if cur, ok := b.hist.VolIndexBar(dates[idx]); ok {
		r.VolIndexLevel = cur.Close
		if idx >= 1 {
			if prev, ok := b.hist.VolIndexBar(dates[idx-1]); ok {
				r.VolIndexChange = cur.Close - prev.Close
			}
		}
		var sum float64
		var n int
		for i := idx; i >= 0 && n < 20; i-- {
			if vb, ok := b.hist.VolIndexBar(dates[i]); ok {
				sum += vb.Close
				n++
			}
		}
		if n > 0 && sum != 0 {
			r.VolIndexVsMA20 = cur.Close / (sum / float64(n))
		}
	}
}

func (b *Builder) regimeFeatures(r *Record, prior []Record) {
	r.TrendRegime = float64(TrendRegime(r.ADX14, r.MACDHistogram, r.PriceVsSMA50))
	r.VolatilityRegime = float64(VolatilityRegime(r.IVRank))
	r.VolumeRegime = float64(VolumeRegime(r.VolumeVsAvg))
	r.CombinedState = float64(CombinedState(int(r.TrendRegime), int(r.VolatilityRegime), int(r.VolumeRegime)))

	states := make([]int, 0, len(prior)+1)
	for _, p := range prior {
		states = append(states, int(p.CombinedState))
	}
	states = append(states, int(r.CombinedState))
	r.DaysSinceRegimeChange = float64(RegimeAge(states))
}
