// Package engine orchestrates the labeling pipeline: feature extraction,
// regime-driven strategy selection, candidate generation, historical
// replay, scoring, and persistence, one label per trading day.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/strategylab/optlabel/internal/backtest"
	"github.com/strategylab/optlabel/internal/candidates"
	"github.com/strategylab/optlabel/internal/features"
	"github.com/strategylab/optlabel/internal/labels"
	"github.com/strategylab/optlabel/internal/market"
	"github.com/strategylab/optlabel/internal/metrics"
	"github.com/strategylab/optlabel/internal/strategy"
)

// Publisher streams one payload per labeled day. Optional.
type Publisher interface {
	Publish(ctx context.Context, date string, payload any) error
}

// Params wire an Engine. History, Selector, Replayer, and Store are
// required; Publisher and Metrics may be nil.
type Params struct {
	History    *market.History
	Selector   *strategy.Selector
	Replayer   *backtest.Replayer
	Store      labels.Store
	Publisher  Publisher
	Metrics    *metrics.Recorder
	Tolerances backtest.Tolerances
	Score      backtest.ScoreParams
	Workers    int
	MinHistory int
	Logger     *zap.Logger
}

type Engine struct {
	hist       *market.History
	builder    *features.Builder
	selector   *strategy.Selector
	replayer   *backtest.Replayer
	store      labels.Store
	publisher  Publisher
	rec        *metrics.Recorder
	tol        backtest.Tolerances
	score      backtest.ScoreParams
	workers    int
	minHistory int
	logger     *zap.Logger
}

// BatchResult summarizes one labeling run.
type BatchResult struct {
	RunID   string
	Total   int
	Labeled int
	Skipped int
	Failed  int
	Errors  []string
	Elapsed time.Duration
}

func New(p Params) *Engine {
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	if p.Workers < 1 {
		p.Workers = 1
	}
	return &Engine{
		hist:       p.History,
		builder:    features.NewBuilder(p.History, p.Logger),
		selector:   p.Selector,
		replayer:   p.Replayer,
		store:      p.Store,
		publisher:  p.Publisher,
		rec:        p.Metrics,
		tol:        p.Tolerances,
		score:      p.Score,
		workers:    p.Workers,
		minHistory: p.MinHistory,
		logger:     p.Logger,
	}
}

type job struct {
	idx int
}

type jobResult struct {
	date    string
	label   labels.Label
	labeled bool
	skip    string
	err     error
}

// Run labels every chain-bearing trading day in [start, end]. The
// feature pass is sequential because each day's record depends on all
// prior records; the replay and scoring pass fans out across workers.
func (e *Engine) Run(ctx context.Context, start, end string) (*BatchResult, error) {
	began := time.Now()
	result := &BatchResult{RunID: uuid.NewString()}

	records, skips := e.buildRecords(ctx)
	result.Skipped += skips

	var jobs []job
	for i := range records {
		if records[i].Date < start || (end != "" && records[i].Date > end) {
			continue
		}
		if i < e.minHistory {
			result.Skipped++
			if e.rec != nil {
				e.rec.DaySkipped("short_history")
			}
			continue
		}
		jobs = append(jobs, job{idx: i})
	}
	result.Total = len(jobs) + result.Skipped
	if len(jobs) == 0 {
		result.Elapsed = time.Since(began)
		return result, nil
	}

	results := e.fanOut(ctx, records, jobs, result.RunID)

	rows := make([]labels.Label, 0, len(results))
	for _, r := range results {
		switch {
		case r.err != nil:
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", r.date, r.err))
			if e.rec != nil {
				e.rec.Error("label")
			}
		case !r.labeled:
			result.Skipped++
			if e.rec != nil {
				e.rec.DaySkipped(r.skip)
			}
		default:
			result.Labeled++
			rows = append(rows, r.label)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Date < rows[j].Date })

	if len(rows) > 0 {
		if err := e.store.Save(ctx, rows); err != nil {
			return result, fmt.Errorf("saving labels: %w", err)
		}
	}
	if e.publisher != nil {
		for _, l := range rows {
			if err := e.publisher.Publish(ctx, l.Date, l); err != nil {
				e.logger.Warn("publish failed", zap.String("date", l.Date), zap.Error(err))
				if e.rec != nil {
					e.rec.Error("publish")
				}
			}
		}
	}

	result.Elapsed = time.Since(began)
	e.logger.Info("labeling run complete",
		zap.String("run_id", result.RunID),
		zap.Int("total", result.Total),
		zap.Int("labeled", result.Labeled),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
		zap.Duration("elapsed", result.Elapsed))
	return result, nil
}

// Records builds the full feature series without labeling. The server
// uses it to answer feature queries.
func (e *Engine) Records(ctx context.Context) []features.Record {
	records, _ := e.buildRecords(ctx)
	return records
}

func (e *Engine) buildRecords(ctx context.Context) ([]features.Record, int) {
	dates := e.hist.Dates()
	records := make([]features.Record, 0, len(dates))
	skipped := 0
	for _, date := range dates {
		if ctx.Err() != nil {
			break
		}
		if !e.hist.HasChain(date) {
			continue
		}
		rec, err := e.builder.Build(date, records)
		var missing *features.MissingHistoryError
		if err != nil && !errors.As(err, &missing) {
			e.logger.Warn("feature extraction failed", zap.String("date", date), zap.Error(err))
			if e.rec != nil {
				e.rec.Error("features")
			}
			skipped++
			continue
		}
		records = append(records, *rec)
	}
	return records, skipped
}

func (e *Engine) fanOut(ctx context.Context, records []features.Record, todo []job, runID string) []jobResult {
	jobs := make(chan job, len(todo))
	out := make(chan jobResult, len(todo))

	var wg sync.WaitGroup
	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.worker(ctx, records, jobs, out, runID)
		}()
	}

	go func() {
		defer close(jobs)
		for _, j := range todo {
			select {
			case <-ctx.Done():
				return
			case jobs <- j:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(out)
	}()

	results := make([]jobResult, 0, len(todo))
	for r := range out {
		results = append(results, r)
	}
	return results
}

func (e *Engine) worker(ctx context.Context, records []features.Record, jobs <-chan job, out chan<- jobResult, runID string) {
	for j := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		r := e.labelDay(ctx, records, j.idx, runID)

		select {
		case <-ctx.Done():
			return
		case out <- r:
		}
	}
}

func (e *Engine) labelDay(ctx context.Context, records []features.Record, idx int, runID string) jobResult {
	began := time.Now()
	rec := &records[idx]
	res := jobResult{date: rec.Date}

	family, rule := e.selector.Select(rec)

	similar, err := backtest.FindSimilar(records, idx, e.tol, e.logger)
	if err != nil {
		var insufficient *backtest.InsufficientSimilarDaysError
		if errors.As(err, &insufficient) {
			e.logger.Debug("day skipped", zap.String("date", rec.Date), zap.Error(err))
			res.skip = "insufficient_similar_days"
			return res
		}
		res.err = err
		return res
	}

	slate := candidates.Generate(family, rec)
	scored := make([]backtest.Scored, 0, len(slate))
	for _, c := range slate {
		outcomes := make([]backtest.Outcome, 0, len(similar))
		theoretical := 0.0
		for _, si := range similar {
			o, err := e.replayer.Replay(c, records[si].Date)
			if err != nil {
				continue // unresolvable on that day's chain
			}
			if e.rec != nil {
				e.rec.ReplayDone()
			}
			outcomes = append(outcomes, o)
			if o.MaxLoss > theoretical {
				theoretical = o.MaxLoss
			}
		}
		if len(outcomes) == 0 {
			continue
		}
		scored = append(scored, backtest.Score(c, outcomes, theoretical, e.score))
	}

	best, ok := backtest.Best(scored)
	if !ok {
		res.skip = "no_replayable_candidates"
		return res
	}

	res.label = labels.Label{
		RunID:       runID,
		Date:        rec.Date,
		Family:      family,
		Rule:        rule,
		Candidate:   best.Candidate.String(),
		DTE:         best.Candidate.DTE,
		FarDTE:      best.Candidate.FarDTE,
		Moneyness:   best.Candidate.Moneyness,
		Width:       best.Candidate.Width,
		Wing:        best.Candidate.Wing,
		Distance:    best.Candidate.Distance,
		WinProb:     best.WinProb,
		EV:          best.EV,
		MaxLoss:     best.MaxLoss,
		Score:       best.Score,
		SimilarDays: len(similar),
		Features:    *rec,
	}
	res.labeled = true

	if e.rec != nil {
		e.rec.DayLabeled(e.hist.Ticker, time.Since(began).Seconds(), best.Score, string(family))
	}
	return res
}
