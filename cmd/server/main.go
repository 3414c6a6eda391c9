package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/strategylab/optlabel/internal/backtest"
	"github.com/strategylab/optlabel/internal/classifier"
	"github.com/strategylab/optlabel/internal/config"
	"github.com/strategylab/optlabel/internal/engine"
	"github.com/strategylab/optlabel/internal/market"
	"github.com/strategylab/optlabel/internal/metrics"
	"github.com/strategylab/optlabel/internal/risk"
	"github.com/strategylab/optlabel/internal/server"
	"github.com/strategylab/optlabel/internal/strategy"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfgFile := flag.String("config", os.Getenv("OPTLABEL_CONFIG"), "config file path")
	flag.Parse()

	cfg, err := config.Load(*cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}

	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("dataDir", cfg.Data.Dir),
		zap.String("ticker", cfg.Data.Ticker),
		zap.String("classifier", cfg.Classifier.URL),
		zap.Bool("fallbackToRules", cfg.Classifier.FallbackToRules))

	logger.Info("loading dataset...")
	start := time.Now()
	hist, err := market.Load(cfg.Data.Dir, cfg.Data.Ticker, cfg.Data.IndexSymbol, cfg.Data.VolSymbol, logger)
	if err != nil {
		logger.Error("failed to load dataset", zap.Error(err))
		return 1
	}

	// Feature records are rebuilt once at startup; the history never
	// changes while the server runs.
	eng := engine.New(engine.Params{
		History:    hist,
		Selector:   strategy.NewDefaultSelector(),
		Replayer:   backtest.NewReplayer(hist, backtest.ExitRulesFrom(cfg.Exits)),
		Tolerances: backtest.TolerancesFrom(cfg.Similarity),
		Score:      backtest.ScoreParamsFrom(cfg.Score, cfg.Similarity),
		Workers:    cfg.Batch.Workers,
		MinHistory: cfg.Batch.MinHistory,
		Logger:     logger,
	})
	records := eng.Records(context.Background())
	logger.Info("dataset ready",
		zap.Int("records", len(records)),
		zap.Duration("duration", time.Since(start)))

	var clf classifier.Classifier = classifier.NewHTTPClient(cfg.Classifier, logger)
	if cfg.Classifier.FallbackToRules {
		clf = classifier.NewRuleFallback(clf, strategy.NewDefaultSelector())
	}
	recommender := engine.NewRecommender(clf, risk.ParamsFrom(cfg.Risk), logger)

	srv := server.NewServer(hist, records, recommender, metrics.New(), logger)
	router := server.NewRouter(srv)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.TimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.TimeoutSec) * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
		return 1
	}

	logger.Info("server stopped")
	return 0
}

func buildLogger(logCfg config.LoggingConfig) (*zap.Logger, error) {
	if logCfg.Console {
		return zap.NewDevelopment()
	}
	zapConfig := zap.NewProductionConfig()
	zapConfig.DisableStacktrace = true
	if logCfg.Level != "" {
		var level zapcore.Level
		if err := level.UnmarshalText([]byte(logCfg.Level)); err == nil {
			zapConfig.Level = zap.NewAtomicLevelAt(level)
		}
	}
	return zapConfig.Build()
}
