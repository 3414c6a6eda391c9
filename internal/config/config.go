package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Data       DataConfig       `mapstructure:"data"`
	Risk       RiskConfig       `mapstructure:"risk"`
	Similarity SimilarityConfig `mapstructure:"similarity"`
	Exits      ExitsConfig      `mapstructure:"exits"`
	Score      ScoreConfig      `mapstructure:"score"`
	Batch      BatchConfig      `mapstructure:"batch"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Store      StoreConfig      `mapstructure:"store"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Notify     NotifyConfig     `mapstructure:"notify"`
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

type DataConfig struct {
	Dir         string `mapstructure:"dir"`
	Ticker      string `mapstructure:"ticker"`
	IndexSymbol string `mapstructure:"index_symbol"`
	VolSymbol   string `mapstructure:"vol_symbol"`
}

type RiskConfig struct {
	AccountEquity float64 `mapstructure:"account_equity"`
	Fraction      float64 `mapstructure:"fraction"`
	MaxContracts  int     `mapstructure:"max_contracts"`
	MinRiskReward float64 `mapstructure:"min_risk_reward"`
}

type SimilarityConfig struct {
	IVRankTolerance        float64 `mapstructure:"iv_rank_tolerance"`
	ADXTolerance           float64 `mapstructure:"adx_tolerance"`
	RSITolerance           float64 `mapstructure:"rsi_tolerance"`
	MinDays                int     `mapstructure:"min_days"`
	RelaxedIVRankTolerance float64 `mapstructure:"relaxed_iv_rank_tolerance"`
	RelaxedADXTolerance    float64 `mapstructure:"relaxed_adx_tolerance"`
}

type ExitsConfig struct {
	ProfitTargetPct float64 `mapstructure:"profit_target_pct"`
	StopLossPct     float64 `mapstructure:"stop_loss_pct"`
	DTEFloor        int     `mapstructure:"dte_floor"`
}

type ScoreConfig struct {
	HighConfidence       float64 `mapstructure:"high_confidence"`
	HighConfidenceBonus  float64 `mapstructure:"high_confidence_bonus"`
	LowConfidence        float64 `mapstructure:"low_confidence"`
	LowConfidencePenalty float64 `mapstructure:"low_confidence_penalty"`
}

type BatchConfig struct {
	Workers    int `mapstructure:"workers"`
	MinHistory int `mapstructure:"min_history"`
}

type ClassifierConfig struct {
	URL             string  `mapstructure:"url"`
	TimeoutSec      int     `mapstructure:"timeout_sec"`
	RetryCount      int     `mapstructure:"retry_count"`
	RatePerSecond   int     `mapstructure:"rate_per_second"`
	MinConfidence   float64 `mapstructure:"min_confidence"`
	FallbackToRules bool    `mapstructure:"fallback_to_rules"`
}

func (c ClassifierConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

type StoreConfig struct {
	CSVPath    string           `mapstructure:"csv_path"`
	ClickHouse ClickHouseConfig `mapstructure:"clickhouse"`
}

type ClickHouseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Database string `mapstructure:"database"`
	Table    string `mapstructure:"table"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type NotifyConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Topic   string `mapstructure:"topic"`
}

type ServerConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	TimeoutSec int    `mapstructure:"timeout_sec"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("data.dir", "data")
	v.SetDefault("data.ticker", "SPY")
	v.SetDefault("data.index_symbol", "SPY")
	v.SetDefault("data.vol_symbol", "VIX")
	v.SetDefault("risk.account_equity", 25000.0)
	v.SetDefault("risk.fraction", 0.02)
	v.SetDefault("risk.max_contracts", 10)
	v.SetDefault("risk.min_risk_reward", 0.5)
	v.SetDefault("similarity.iv_rank_tolerance", 10.0)
	v.SetDefault("similarity.adx_tolerance", 5.0)
	v.SetDefault("similarity.rsi_tolerance", 10.0)
	v.SetDefault("similarity.min_days", 30)
	v.SetDefault("similarity.relaxed_iv_rank_tolerance", 15.0)
	v.SetDefault("similarity.relaxed_adx_tolerance", 10.0)
	v.SetDefault("exits.profit_target_pct", 0.50)
	v.SetDefault("exits.stop_loss_pct", 1.00)
	v.SetDefault("exits.dte_floor", 2)
	v.SetDefault("score.high_confidence", 0.70)
	v.SetDefault("score.high_confidence_bonus", 1.2)
	v.SetDefault("score.low_confidence", 0.55)
	v.SetDefault("score.low_confidence_penalty", 0.8)
	v.SetDefault("batch.workers", 4)
	v.SetDefault("batch.min_history", 30)
	v.SetDefault("classifier.timeout_sec", 10)
	v.SetDefault("classifier.retry_count", 3)
	v.SetDefault("classifier.rate_per_second", 5)
	v.SetDefault("classifier.min_confidence", 0.40)
	v.SetDefault("classifier.fallback_to_rules", true)
	v.SetDefault("store.csv_path", "labels/labels.csv")
	v.SetDefault("store.clickhouse.enabled", false)
	v.SetDefault("store.clickhouse.addr", "localhost:9000")
	v.SetDefault("store.clickhouse.database", "optlabel")
	v.SetDefault("store.clickhouse.table", "labels")
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "recommendations")
	v.SetDefault("notify.enabled", false)
	v.SetDefault("notify.url", "https://ntfy.sh")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.timeout_sec", 30)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", true)

	// Environment variable support
	v.SetEnvPrefix("OPTLABEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Explicitly bind nested keys to env vars
	_ = v.BindEnv("store.clickhouse.password", "OPTLABEL_CLICKHOUSE_PASSWORD")

	// Load config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("default")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Data.Ticker == "" {
		return fmt.Errorf("data.ticker is required")
	}
	if c.Risk.AccountEquity <= 0 {
		return fmt.Errorf("risk.account_equity must be positive")
	}
	if c.Risk.Fraction <= 0 || c.Risk.Fraction > 1 {
		return fmt.Errorf("risk.fraction must be in (0, 1]")
	}
	if c.Risk.MaxContracts < 1 {
		return fmt.Errorf("risk.max_contracts must be >= 1")
	}
	if c.Similarity.MinDays < 1 {
		return fmt.Errorf("similarity.min_days must be >= 1")
	}
	if c.Similarity.RelaxedIVRankTolerance < c.Similarity.IVRankTolerance {
		return fmt.Errorf("similarity.relaxed_iv_rank_tolerance must be >= iv_rank_tolerance")
	}
	if c.Exits.ProfitTargetPct <= 0 {
		return fmt.Errorf("exits.profit_target_pct must be positive")
	}
	if c.Exits.DTEFloor < 0 {
		return fmt.Errorf("exits.dte_floor must be >= 0")
	}
	if c.Score.HighConfidence <= c.Score.LowConfidence {
		return fmt.Errorf("score.high_confidence must exceed score.low_confidence")
	}
	if c.Batch.Workers < 1 {
		return fmt.Errorf("batch.workers must be >= 1")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when kafka is enabled")
	}
	if c.Store.ClickHouse.Enabled && c.Store.ClickHouse.Addr == "" {
		return fmt.Errorf("store.clickhouse.addr is required when clickhouse is enabled")
	}
	return nil
}
