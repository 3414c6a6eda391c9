package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/strategylab/optlabel/internal/features"
	"github.com/strategylab/optlabel/internal/market"
	"github.com/strategylab/optlabel/internal/strategy"
)

func validateRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-rules",
		Short: "Check the selection rule table for same-family overlaps",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := strategy.ValidateRules(strategy.DefaultRules); err != nil {
				return err
			}
			fmt.Printf("%d rules, no overlaps\n", len(strategy.DefaultRules))
			return nil
		},
	}
}

func distributionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "distribution [START_DATE] [END_DATE]",
		Short: "Report how selections distribute across strategy families",
		Long: `Select a strategy for every chain-bearing day in range and check the
family distribution against its target bands. A skewed distribution
usually means a rule's thresholds drifted away from the data.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			builder := features.NewBuilder(hist, logger)
			selector := strategy.NewDefaultSelector()

			counts := make(map[strategy.Family]int)
			var records []features.Record
			for _, date := range hist.Dates() {
				if !hist.HasChain(date) {
					continue
				}
				rec, err := builder.Build(date, records)
				if rec == nil {
					logger.Warn("skipping day", zap.String("date", date), zap.Error(err))
					continue
				}
				records = append(records, *rec)
				if date < start || (end != "" && date > end) {
					continue
				}
				family, _ := selector.Select(rec)
				counts[family]++
			}

			total := 0
			for _, n := range counts {
				total += n
			}
			if total == 0 {
				return fmt.Errorf("no days selected in range")
			}

			families := make([]strategy.Family, 0, len(counts))
			for f := range counts {
				families = append(families, f)
			}
			sort.Slice(families, func(i, j int) bool { return counts[families[i]] > counts[families[j]] })
			for _, f := range families {
				fmt.Printf("%-18s %5d  %5.1f%%\n", f, counts[f], 100*float64(counts[f])/float64(total))
			}

			if err := strategy.CheckDistribution(counts); err != nil {
				return err
			}
			fmt.Printf("distribution within target bands (%d days)\n", total)
			return nil
		},
	}
}
