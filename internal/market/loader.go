package market

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
)

// Expected layout under the data directory:
//
//	{dir}/{ticker}/bars.jsonl                 daily OHLCV, one Bar per line
//	{dir}/{ticker}/chains/{date}.jsonl        option chain for one date
//	{dir}/{ticker}/chains/{date}.jsonl.zst    same, zstd-compressed
//	{dir}/{symbol}/bars.jsonl                 auxiliary index series
const (
	barsFile  = "bars.jsonl"
	chainsDir = "chains"
)

// NewHistory builds a History from already-decoded series, enforcing the
// inbound data contract: bars strictly ascending by date, chain rows unique
// per (strike, type, expiration).
func NewHistory(ticker string, bars []Bar, chains map[string][]Option, index, volIndex map[string]Bar) (*History, error) {
	if len(bars) == 0 {
		return nil, fmt.Errorf("no price bars for %s", ticker)
	}
	h := &History{
		Ticker:   ticker,
		dates:    make([]string, len(bars)),
		bars:     bars,
		idx:      make(map[string]int, len(bars)),
		chains:   chains,
		index:    index,
		volIndex: volIndex,
	}
	if h.chains == nil {
		h.chains = make(map[string][]Option)
	}
	for i, b := range bars {
		if i > 0 && b.Date <= bars[i-1].Date {
			return nil, fmt.Errorf("bars out of order at %s (prev %s)", b.Date, bars[i-1].Date)
		}
		h.dates[i] = b.Date
		h.idx[b.Date] = i
	}
	for date, chain := range h.chains {
		seen := make(map[string]struct{}, len(chain))
		for _, o := range chain {
			key := fmt.Sprintf("%v/%s/%s", o.Strike, o.Type, o.Expiration)
			if _, dup := seen[key]; dup {
				return nil, fmt.Errorf("duplicate chain row %s on %s", key, date)
			}
			seen[key] = struct{}{}
		}
	}
	return h, nil
}

// Load reads a full historical dataset into memory. indexSymbol and
// volSymbol are optional; empty string skips the series.
func Load(dir, ticker, indexSymbol, volSymbol string, logger *zap.Logger) (*History, error) {
	bars, err := loadBars(filepath.Join(dir, ticker, barsFile))
	if err != nil {
		return nil, fmt.Errorf("loading %s bars: %w", ticker, err)
	}

	chains, err := loadChains(filepath.Join(dir, ticker, chainsDir), logger)
	if err != nil {
		return nil, fmt.Errorf("loading %s chains: %w", ticker, err)
	}

	var index, volIndex map[string]Bar
	if indexSymbol != "" {
		index, err = loadBarMap(filepath.Join(dir, indexSymbol, barsFile))
		if err != nil {
			logger.Warn("index series unavailable, using defaults",
				zap.String("symbol", indexSymbol), zap.Error(err))
		}
	}
	if volSymbol != "" {
		volIndex, err = loadBarMap(filepath.Join(dir, volSymbol, barsFile))
		if err != nil {
			logger.Warn("volatility index unavailable, using defaults",
				zap.String("symbol", volSymbol), zap.Error(err))
		}
	}

	h, err := NewHistory(ticker, bars, chains, index, volIndex)
	if err != nil {
		return nil, err
	}
	logger.Info("dataset loaded",
		zap.String("ticker", ticker),
		zap.Int("bars", len(bars)),
		zap.Int("chains", len(chains)),
		zap.Bool("index", h.HasIndex()),
		zap.Bool("volIndex", h.HasVolIndex()),
	)
	return h, nil
}

func loadBars(path string) ([]Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var bars []Bar
	if err := scanJSONL(f, func(line []byte) error {
		var b Bar
		if err := json.Unmarshal(line, &b); err != nil {
			return err
		}
		bars = append(bars, b)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return bars, nil
}

func loadBarMap(path string) (map[string]Bar, error) {
	bars, err := loadBars(path)
	if err != nil {
		return nil, err
	}
	m := make(map[string]Bar, len(bars))
	for _, b := range bars {
		m[b.Date] = b
	}
	return m, nil
}

func loadChains(dir string, logger *zap.Logger) (map[string][]Option, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	chains := make(map[string][]Option, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		compressed := strings.HasSuffix(name, ".jsonl.zst")
		if !compressed && !strings.HasSuffix(name, ".jsonl") {
			continue
		}
		date := strings.TrimSuffix(strings.TrimSuffix(name, ".zst"), ".jsonl")

		chain, err := loadChain(filepath.Join(dir, name), compressed)
		if err != nil {
			logger.Warn("skipping unreadable chain file",
				zap.String("file", name), zap.Error(err))
			continue
		}
		chains[date] = chain
	}
	if len(chains) == 0 {
		return nil, fmt.Errorf("no chain files found in %s", dir)
	}
	return chains, nil
}

func loadChain(path string, compressed bool) ([]Option, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if compressed {
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		defer zr.Close()
		r = zr
	}

	var chain []Option
	if err := scanJSONL(r, func(line []byte) error {
		var o Option
		if err := json.Unmarshal(line, &o); err != nil {
			return err
		}
		chain = append(chain, o)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return chain, nil
}

func scanJSONL(r io.Reader, fn func(line []byte) error) error {
	scanner := bufio.NewScanner(r)

	// Chain files can have wide rows
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 4*1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			return fmt.Errorf("line %d: %w", lineNum, err)
		}
	}
	return scanner.Err()
}
