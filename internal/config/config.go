package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Log      LoggingConfig  `yaml:"log"`
	Ostium   OstiumConfig   `yaml:"ostium"`
	Lighter  LighterConfig  `yaml:"lighter"`
	Hedge    HedgeConfig    `yaml:"hedge"`
	Scan     ScanConfig     `yaml:"scan"`
	State    StateConfig    `yaml:"state"`
	Journal  JournalConfig  `yaml:"journal"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Telegram TelegramConfig `yaml:"telegram"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type OstiumConfig struct {
	BaseURL     string        `yaml:"base_url"`
	SubgraphURL string        `yaml:"subgraph_url"`
	Timeout     time.Duration `yaml:"timeout"`
	Leverage    float64       `yaml:"leverage"`
	OffsetBps   float64       `yaml:"offset_bps"`
}

type LighterConfig struct {
	BaseURL        string        `yaml:"base_url"`
	WSURL          string        `yaml:"ws_url"`
	Timeout        time.Duration `yaml:"timeout"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	AccountIndex   int           `yaml:"account_index"`
	APIKeyIndex    int           `yaml:"api_key_index"`
}

type HedgeConfig struct {
	Ticker           string        `yaml:"ticker"`
	OrderQty         string        `yaml:"order_qty"`
	MaxPosition      string        `yaml:"max_position"`
	Iterations       int           `yaml:"iterations"`
	FillAttempts     int           `yaml:"fill_attempts"`
	PollInterval     time.Duration `yaml:"poll_interval"`
	PhasePause       time.Duration `yaml:"phase_pause"`
	ReconcileTimeout time.Duration `yaml:"reconcile_timeout"`
	ReconcilePoll    time.Duration `yaml:"reconcile_poll"`
}

type ScanConfig struct {
	Interval          time.Duration `yaml:"interval"`
	NotionalUSD       float64       `yaml:"notional_usd"`
	MinNotionalUSD    float64       `yaml:"min_notional_usd"`
	MaxNotionalUSD    float64       `yaml:"max_notional_usd"`
	DepthQuoteUSD     float64       `yaml:"depth_quote_usd"`
	MinDepthQuoteUSD  float64       `yaml:"min_depth_quote_usd"`
	MinNetBps         float64       `yaml:"min_net_bps"`
	OracleFeeUSD      float64       `yaml:"oracle_fee_usd"`
	AlertNetBps       float64       `yaml:"alert_net_bps"`
	BufferBps         float64       `yaml:"buffer_bps"`
	MaxSpreadBps      float64       `yaml:"max_spread_bps"`
	SpreadWeight      float64       `yaml:"spread_weight"`
	MaxDislocationBps float64       `yaml:"max_dislocation_bps"`
	FundingHours      int           `yaml:"funding_hours"`
	FundingCacheTTL   time.Duration `yaml:"funding_cache_ttl"`
	ExcludeSymbols    []string      `yaml:"exclude_symbols"`
	TopN              int           `yaml:"top_n"`
}

type StateConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

type JournalConfig struct {
	Enabled   bool   `yaml:"enabled"`
	DSN       string `yaml:"dsn"`
	Schema    string `yaml:"schema"`
	QueueSize int    `yaml:"queue_size"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

type TelegramConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Token    string        `yaml:"token"`
	ChatID   string        `yaml:"chat_id"`
	Cooldown time.Duration `yaml:"cooldown"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, validate(&cfg)
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Ostium.BaseURL == "" {
		cfg.Ostium.BaseURL = "https://metadata-backend.ostium.io"
	}
	if cfg.Ostium.SubgraphURL == "" {
		cfg.Ostium.SubgraphURL = "https://subgraph.ostium.io/mainnet"
	}
	if cfg.Ostium.Timeout == 0 {
		cfg.Ostium.Timeout = 10 * time.Second
	}
	if cfg.Ostium.Leverage == 0 {
		cfg.Ostium.Leverage = 5
	}
	if cfg.Ostium.OffsetBps == 0 {
		cfg.Ostium.OffsetBps = 5
	}
	if cfg.Lighter.BaseURL == "" {
		cfg.Lighter.BaseURL = "https://mainnet.zklighter.elliot.ai"
	}
	if cfg.Lighter.WSURL == "" {
		cfg.Lighter.WSURL = deriveWSURL(cfg.Lighter.BaseURL)
	}
	if cfg.Lighter.Timeout == 0 {
		cfg.Lighter.Timeout = 10 * time.Second
	}
	if cfg.Lighter.ReconnectDelay == 0 {
		cfg.Lighter.ReconnectDelay = 3 * time.Second
	}
	if cfg.Lighter.PingInterval == 0 {
		cfg.Lighter.PingInterval = 30 * time.Second
	}
	if cfg.Hedge.Iterations == 0 {
		cfg.Hedge.Iterations = 20
	}
	if cfg.Hedge.FillAttempts == 0 {
		cfg.Hedge.FillAttempts = 10
	}
	if cfg.Hedge.PollInterval == 0 {
		cfg.Hedge.PollInterval = time.Second
	}
	if cfg.Hedge.ReconcileTimeout == 0 {
		cfg.Hedge.ReconcileTimeout = 30 * time.Second
	}
	if cfg.Hedge.ReconcilePoll == 0 {
		cfg.Hedge.ReconcilePoll = 200 * time.Millisecond
	}
	if cfg.Scan.Interval == 0 {
		cfg.Scan.Interval = time.Minute
	}
	if cfg.Scan.NotionalUSD == 0 {
		cfg.Scan.NotionalUSD = 10000
	}
	if cfg.Scan.DepthQuoteUSD == 0 {
		cfg.Scan.DepthQuoteUSD = 10000
	}
	if cfg.Scan.MinDepthQuoteUSD == 0 {
		cfg.Scan.MinDepthQuoteUSD = 10000
	}
	if cfg.Scan.MinNetBps == 0 {
		cfg.Scan.MinNetBps = 0.01
	}
	if cfg.Scan.OracleFeeUSD == 0 {
		cfg.Scan.OracleFeeUSD = 0.1
	}
	if cfg.Scan.MaxSpreadBps == 0 {
		cfg.Scan.MaxSpreadBps = 50
	}
	if cfg.Scan.SpreadWeight == 0 {
		cfg.Scan.SpreadWeight = 0.2
	}
	if cfg.Scan.MaxDislocationBps == 0 {
		cfg.Scan.MaxDislocationBps = 500
	}
	if cfg.Scan.FundingHours == 0 {
		cfg.Scan.FundingHours = 24
	}
	if cfg.Scan.FundingCacheTTL == 0 {
		cfg.Scan.FundingCacheTTL = 5 * time.Minute
	}
	if cfg.Scan.ExcludeSymbols == nil {
		cfg.Scan.ExcludeSymbols = []string{"SPX"}
	}
	if cfg.Scan.TopN == 0 {
		cfg.Scan.TopN = 10
	}
	if cfg.State.SQLitePath == "" {
		cfg.State.SQLitePath = "data/ol-hedge-bot.db"
	}
	if cfg.Journal.Schema == "" {
		cfg.Journal.Schema = "public"
	}
	if cfg.Metrics.Listen == "" {
		cfg.Metrics.Listen = ":9090"
	}
	if cfg.Telegram.Cooldown == 0 {
		cfg.Telegram.Cooldown = 5 * time.Minute
	}
}

func validate(cfg *Config) error {
	if cfg.Hedge.Ticker != "" {
		qty, err := cfg.Hedge.OrderQuantity()
		if err != nil {
			return err
		}
		if qty.Sign() <= 0 {
			return errors.New("hedge.order_qty must be > 0")
		}
		maxPos, err := cfg.Hedge.MaxPositionQty()
		if err != nil {
			return err
		}
		if maxPos.Sign() < 0 {
			return errors.New("hedge.max_position must be >= 0")
		}
	}
	if cfg.Ostium.Leverage <= 0 {
		return errors.New("ostium.leverage must be > 0")
	}
	if cfg.Scan.MinDepthQuoteUSD > cfg.Scan.DepthQuoteUSD {
		return errors.New("scan.min_depth_quote_usd exceeds scan.depth_quote_usd")
	}
	if cfg.Journal.Enabled && strings.TrimSpace(cfg.Journal.DSN) == "" {
		return errors.New("journal.dsn is required when journal is enabled")
	}
	return nil
}

// OrderQuantity parses the per-cycle order size. Quantities stay strings in
// YAML so precision is not lost to float parsing.
func (h HedgeConfig) OrderQuantity() (decimal.Decimal, error) {
	if strings.TrimSpace(h.OrderQty) == "" {
		return decimal.Zero, errors.New("hedge.order_qty is required")
	}
	qty, err := decimal.NewFromString(strings.TrimSpace(h.OrderQty))
	if err != nil {
		return decimal.Zero, fmt.Errorf("hedge.order_qty: %w", err)
	}
	return qty, nil
}

// MaxPositionQty parses the position cap. Empty or zero falls back to the
// order quantity, matching the single-cycle default.
func (h HedgeConfig) MaxPositionQty() (decimal.Decimal, error) {
	if strings.TrimSpace(h.MaxPosition) == "" {
		return h.OrderQuantity()
	}
	maxPos, err := decimal.NewFromString(strings.TrimSpace(h.MaxPosition))
	if err != nil {
		return decimal.Zero, fmt.Errorf("hedge.max_position: %w", err)
	}
	if maxPos.IsZero() {
		return h.OrderQuantity()
	}
	return maxPos, nil
}

func deriveWSURL(baseURL string) string {
	switch {
	case strings.HasPrefix(baseURL, "https://"):
		return "wss://" + strings.TrimRight(strings.TrimPrefix(baseURL, "https://"), "/") + "/stream"
	case strings.HasPrefix(baseURL, "http://"):
		return "ws://" + strings.TrimRight(strings.TrimPrefix(baseURL, "http://"), "/") + "/stream"
	default:
		return strings.TrimRight(baseURL, "/") + "/stream"
	}
}
