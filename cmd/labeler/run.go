package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/strategylab/optlabel/internal/backtest"
	"github.com/strategylab/optlabel/internal/config"
	"github.com/strategylab/optlabel/internal/engine"
	"github.com/strategylab/optlabel/internal/labels"
	"github.com/strategylab/optlabel/internal/market"
	"github.com/strategylab/optlabel/internal/metrics"
	"github.com/strategylab/optlabel/internal/notify"
	"github.com/strategylab/optlabel/internal/publish"
	"github.com/strategylab/optlabel/internal/strategy"
)

func runCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "run [START_DATE] [END_DATE]",
		Short: "Label trading days in the configured dataset",
		Long: `Run the labeling pipeline over the historical dataset. With no
arguments every chain-bearing day is labeled; one argument labels from
that date to the end; two arguments bound both sides.

Date format: YYYY-MM-DD

Examples:
  # Label the full dataset
  labeler run

  # Label 2024 only
  labeler run 2024-01-01 2024-12-31

  # See which days would be labeled
  labeler run --dry-run 2024-01-01`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			start, end := "", ""
			if len(args) > 0 {
				start = args[0]
			}
			if len(args) > 1 {
				end = args[1]
			}

			hist, err := market.Load(cfg.Data.Dir, cfg.Data.Ticker, cfg.Data.IndexSymbol, cfg.Data.VolSymbol, logger)
			if err != nil {
				return err
			}

			cal := datasetCalendar(hist)
			if start != "" && !cal.IsTradingDay(start) {
				next, err := cal.NextTradingDay(start)
				if err != nil {
					return fmt.Errorf("invalid start date %q: %w", start, err)
				}
				logger.Info("start date is not a trading session, moving forward",
					zap.String("requested", start), zap.String("start", next))
				start = next
			}
			if end != "" && end < start {
				return fmt.Errorf("end date %s precedes start date %s", end, start)
			}

			if dryRun {
				count := 0
				for _, date := range hist.Dates() {
					if !hist.HasChain(date) || date < start || (end != "" && date > end) {
						continue
					}
					fmt.Printf("Would label: %s\n", date)
					count++
				}
				fmt.Printf("%d days in range\n", count)
				return nil
			}

			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			var publisher engine.Publisher
			if cfg.Kafka.Enabled {
				p, err := publish.New(cfg.Kafka, logger)
				if err != nil {
					return err
				}
				defer p.Close()
				publisher = p
			}

			eng := engine.New(engine.Params{
				History:    hist,
				Selector:   strategy.NewDefaultSelector(),
				Replayer:   backtest.NewReplayer(hist, backtest.ExitRulesFrom(cfg.Exits)),
				Store:      store,
				Publisher:  publisher,
				Metrics:    metrics.New(),
				Tolerances: backtest.TolerancesFrom(cfg.Similarity),
				Score:      backtest.ScoreParamsFrom(cfg.Score, cfg.Similarity),
				Workers:    cfg.Batch.Workers,
				MinHistory: cfg.Batch.MinHistory,
				Logger:     logger,
			})

			notifier := notify.New(cfg.Notify, logger)
			began := time.Now()

			result, err := eng.Run(ctx, start, end)
			if err != nil {
				if result != nil {
					_ = notifier.SendFailure(ctx, result, err)
				}
				return err
			}

			if result.Failed > 0 {
				for _, e := range result.Errors {
					logger.Error("labeling error", zap.String("error", e))
				}
				_ = notifier.SendFailure(ctx, result, nil)
				return fmt.Errorf("%d days failed", result.Failed)
			}

			_ = notifier.SendSuccess(ctx, result)
			logger.Info("run finished",
				zap.String("run_id", result.RunID),
				zap.Int("labeled", result.Labeled),
				zap.Duration("elapsed", time.Since(began)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show which days would be labeled")
	return cmd
}

// datasetCalendar builds an NYSE calendar spanning the loaded history,
// so historical start dates stay inside the holiday table.
func datasetCalendar(hist *market.History) *market.Calendar {
	dates := hist.Dates()
	first, _ := time.Parse("2006-01-02", dates[0])
	last, _ := time.Parse("2006-01-02", dates[len(dates)-1])
	if first.IsZero() || last.IsZero() {
		return market.NewCalendar()
	}
	return market.NewCalendar(first.Year(), last.Year()+1)
}

// openStore picks ClickHouse when enabled, CSV otherwise.
func openStore(cfg *config.Config) (labels.Store, error) {
	if cfg.Store.ClickHouse.Enabled {
		return labels.NewClickHouseStore(cfg.Store.ClickHouse, logger)
	}
	return labels.NewCSVStore(cfg.Store.CSVPath), nil
}
