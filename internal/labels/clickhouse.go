package labels

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"
	"go.uber.org/zap"

	"github.com/strategylab/optlabel/internal/config"
	"github.com/strategylab/optlabel/internal/features"
)

// ClickHouseStore batch-inserts labels into a ClickHouse table, one
// column per label field plus one per feature.
type ClickHouseStore struct {
	db    *sql.DB
	table string
	log   *zap.Logger
}

func NewClickHouseStore(cfg config.ClickHouseConfig, log *zap.Logger) (*ClickHouseStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	dsn := fmt.Sprintf("clickhouse://%s:%s@%s/%s?dial_timeout=5s",
		cfg.Username, cfg.Password, cfg.Addr, cfg.Database)
	db, err := sql.Open("clickhouse", dsn)
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}

	s := &ClickHouseStore{db: db, table: cfg.Table, log: log}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *ClickHouseStore) initSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Same column order as the CSV header: date, features, family,
	// params, stats, run metadata. Inapplicable params are NULL.
	cols := []string{"date Date"}
	for _, name := range features.Names() {
		cols = append(cols, name+" Float64")
	}
	cols = append(cols,
		"family LowCardinality(String)",
		"dte Int32",
		"far_dte Nullable(Int32)",
		"moneyness Nullable(Float64)",
		"width Nullable(Float64)",
		"wing Nullable(Float64)",
		"distance Nullable(Float64)",
		"score Float64",
		"win_prob Float64",
		"ev Float64",
		"max_loss Float64",
		"run_id String",
		"rule LowCardinality(String)",
		"candidate String",
		"similar_days Int32",
	)
	stmt := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (%s) ENGINE = ReplacingMergeTree ORDER BY (date, run_id)",
		s.table, strings.Join(cols, ", "))
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

func (s *ClickHouseStore) Save(ctx context.Context, rows []Label) error {
	if len(rows) == 0 {
		return nil
	}
	start := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", 16+features.Count), ",")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s VALUES (%s)", s.table, placeholders))
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, l := range rows {
		args := make([]any, 0, 16+features.Count)
		args = append(args, l.Date)
		for _, v := range l.Features.Vector() {
			args = append(args, v)
		}
		args = append(args,
			string(l.Family),
			int32(l.DTE), nullableInt(l.FarDTE),
			nullableFloat(l.Moneyness), nullableFloat(l.Width),
			nullableFloat(l.Wing), nullableFloat(l.Distance),
			l.Score, l.WinProb, l.EV, l.MaxLoss,
			l.RunID, l.Rule, l.Candidate, int32(l.SimilarDays))
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("append row %s: %w", l.Date, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}

	s.log.Info("labels written to clickhouse",
		zap.String("table", s.table),
		zap.Int("rows", len(rows)),
		zap.Duration("duration", time.Since(start)))
	return nil
}

func (s *ClickHouseStore) Close() error {
	return s.db.Close()
}

// Template axes are strictly positive; zero marks a parameter the family
// does not use and is stored as NULL.
func nullableFloat(v float64) any {
	if v == 0 {
		return nil
	}
	return v
}

func nullableInt(v int) any {
	if v == 0 {
		return nil
	}
	return int32(v)
}
