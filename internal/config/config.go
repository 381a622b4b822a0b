// Package config defines the riskgate configuration and its validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/alanyoungcy/riskgate/internal/domain"
	"github.com/alanyoungcy/riskgate/internal/liquidity"
	"github.com/alanyoungcy/riskgate/internal/risk"
)

// Config is the root configuration. Fields are populated from a TOML file
// and then optionally overridden by RISKGATE_* environment variables.
type Config struct {
	Liquidity LiquidityConfig `toml:"liquidity"`
	Risk      RiskConfig      `toml:"risk"`
	Redis     RedisConfig     `toml:"redis"`
	Postgres  PostgresConfig  `toml:"postgres"`
	S3        S3Config        `toml:"s3"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
	Feed      FeedConfig      `toml:"feed"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// duration lets the TOML decoder read strings like "5s" or "24h".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// LiquidityConfig mirrors liquidity.Config in TOML form.
type LiquidityConfig struct {
	HistoryLength        int      `toml:"history_length"`
	DepthLevels          int      `toml:"depth_levels"`
	CacheTTL             duration `toml:"cache_ttl"`
	TradeWindow          duration `toml:"trade_window"`
	SlippageSafetyMargin float64  `toml:"slippage_safety_margin"`
	SlippageWarning      float64  `toml:"slippage_warning"`
	SlippageCritical     float64  `toml:"slippage_critical"`
	ImpactAlpha          float64  `toml:"impact_alpha"`
	ImpactBeta           float64  `toml:"impact_beta"`
	ImpactSplitThreshold float64  `toml:"impact_split_threshold"`
	ImpactTestNotional   float64  `toml:"impact_test_notional"`
	LargeOrderThreshold  float64  `toml:"large_order_threshold"`
	MaxExecutionRatio    float64  `toml:"max_execution_ratio"`
	MinSplitCount        int      `toml:"min_split_count"`
	MaxSplitCount        int      `toml:"max_split_count"`
	SplitInterval        duration `toml:"split_interval"`
	TWAPParticipation    float64  `toml:"twap_participation"`
	IcebergDepthRatio    float64  `toml:"iceberg_depth_ratio"`
	VWAPSplitCount       int      `toml:"vwap_split_count"`
	WeightSpread         float64  `toml:"weight_spread"`
	WeightImbalance      float64  `toml:"weight_imbalance"`
	WeightDepth          float64  `toml:"weight_depth"`
	WeightImpact         float64  `toml:"weight_impact"`
}

// EngineConfig converts to the engine's native config.
func (c LiquidityConfig) EngineConfig() liquidity.Config {
	return liquidity.Config{
		HistoryLength:        c.HistoryLength,
		DepthLevels:          c.DepthLevels,
		CacheTTL:             c.CacheTTL.Duration,
		TradeWindow:          c.TradeWindow.Duration,
		SafetyMargin:         c.SlippageSafetyMargin,
		SlippageWarning:      c.SlippageWarning,
		SlippageCritical:     c.SlippageCritical,
		ImpactAlpha:          c.ImpactAlpha,
		ImpactBeta:           c.ImpactBeta,
		ImpactSplitThreshold: c.ImpactSplitThreshold,
		TestNotional:         c.ImpactTestNotional,
		LargeOrderThreshold:  c.LargeOrderThreshold,
		MaxExecutionRatio:    c.MaxExecutionRatio,
		MinSplitCount:        c.MinSplitCount,
		MaxSplitCount:        c.MaxSplitCount,
		SplitInterval:        c.SplitInterval.Duration,
		TWAPParticipation:    c.TWAPParticipation,
		IcebergDepthRatio:    c.IcebergDepthRatio,
		VWAPSplitCount:       c.VWAPSplitCount,
		Weights: liquidity.ScoreWeights{
			Spread:    c.WeightSpread,
			Imbalance: c.WeightImbalance,
			Depth:     c.WeightDepth,
			Impact:    c.WeightImpact,
		},
	}
}

// RiskConfig mirrors risk.Config in TOML form.
type RiskConfig struct {
	CollaboratorTimeout duration             `toml:"collaborator_timeout"`
	FailClosed          bool                 `toml:"fail_closed"`
	EventHistory        int                  `toml:"event_history"`
	ReportEvents        int                  `toml:"report_events"`
	SinkBuffer          int                  `toml:"sink_buffer"`
	SinkTimeout         duration             `toml:"sink_timeout"`
	DefaultAccount      AccountLimitsConfig  `toml:"default_account"`
	Accounts            []AccountEntryConfig `toml:"accounts"`
}

// AccountLimitsConfig are the built-in single-account limits.
type AccountLimitsConfig struct {
	MaxPositions     int     `toml:"max_positions"`
	MaxOrderNotional float64 `toml:"max_order_notional"`
	MaxPositionPct   float64 `toml:"max_position_pct"`
}

func (c AccountLimitsConfig) limits() domain.AccountConfig {
	return domain.AccountConfig{
		MaxPositions:     c.MaxPositions,
		MaxOrderNotional: c.MaxOrderNotional,
		MaxPositionPct:   c.MaxPositionPct,
	}
}

// AccountEntryConfig pre-registers an account at startup.
type AccountEntryConfig struct {
	ID string `toml:"id"`
	AccountLimitsConfig
}

// Account returns the entry's limits; zero limits fall back to the
// aggregator default.
func (c AccountEntryConfig) Account() domain.AccountConfig {
	return c.AccountLimitsConfig.limits()
}

// AggregatorConfig converts to the aggregator's native config.
func (c RiskConfig) AggregatorConfig() risk.Config {
	return risk.Config{
		CollaboratorTimeout: c.CollaboratorTimeout.Duration,
		FailClosed:          c.FailClosed,
		EventHistory:        c.EventHistory,
		ReportEvents:        c.ReportEvents,
		DefaultAccount:      c.DefaultAccount.limits(),
	}
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool     `toml:"enabled"`
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	KeyPrefix  string   `toml:"key_prefix"`
	BookTTL    duration `toml:"book_ttl"`
	// ReadBreaker reads circuit-breaker status from Redis.
	ReadBreaker bool `toml:"read_breaker"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled         bool     `toml:"enabled"`
	DSN             string   `toml:"dsn"`
	Host            string   `toml:"host"`
	Port            int      `toml:"port"`
	Database        string   `toml:"database"`
	User            string   `toml:"user"`
	Password        string   `toml:"password"`
	SSLMode         string   `toml:"ssl_mode"`
	PoolMaxConns    int      `toml:"pool_max_conns"`
	PoolMinConns    int      `toml:"pool_min_conns"`
	MaxConnLifetime duration `toml:"max_conn_lifetime"`
	RunMigrations   bool     `toml:"run_migrations"`
}

// S3Config holds object storage parameters for the event archive.
type S3Config struct {
	Enabled        bool     `toml:"enabled"`
	Endpoint       string   `toml:"endpoint"`
	Region         string   `toml:"region"`
	Bucket         string   `toml:"bucket"`
	AccessKey      string   `toml:"access_key"`
	SecretKey      string   `toml:"secret_key"`
	UseSSL         bool     `toml:"use_ssl"`
	ForcePathStyle bool     `toml:"force_path_style"`
	ArchivePrefix  string   `toml:"archive_prefix"`
	ArchiveBatch   int      `toml:"archive_batch"`
	ArchiveFlush   duration `toml:"archive_flush"`
	// ArchiveMaxBuffered caps events held while uploads fail; the oldest
	// are dropped beyond it.
	ArchiveMaxBuffered int `toml:"archive_max_buffered"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port           int      `toml:"port"`
	APIKey         string   `toml:"api_key"`
	CORSOrigins    []string `toml:"cors_origins"`
	RateLimitRPS   float64  `toml:"rate_limit_rps"`
	RateLimitBurst int      `toml:"rate_limit_burst"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
	MinInterval       duration `toml:"min_interval"`
	Burst             int      `toml:"burst"`
}

// Enabled reports whether any notification channel is configured.
func (c NotifyConfig) Enabled() bool {
	return (c.TelegramToken != "" && c.TelegramChatID != "") || c.DiscordWebhookURL != ""
}

// FeedConfig selects where market data comes from.
type FeedConfig struct {
	// Source is "redis" (SignalBus channel) or "websocket".
	Source  string   `toml:"source"`
	Channel string   `toml:"channel"`
	WSURL   string   `toml:"ws_url"`
	Symbols []string `toml:"symbols"`
}

// Defaults returns a Config populated with the documented defaults.
func Defaults() Config {
	eng := liquidity.DefaultConfig()
	rsk := risk.DefaultConfig()
	return Config{
		Liquidity: LiquidityConfig{
			HistoryLength:        eng.HistoryLength,
			DepthLevels:          eng.DepthLevels,
			CacheTTL:             duration{eng.CacheTTL},
			TradeWindow:          duration{eng.TradeWindow},
			SlippageSafetyMargin: eng.SafetyMargin,
			SlippageWarning:      eng.SlippageWarning,
			SlippageCritical:     eng.SlippageCritical,
			ImpactAlpha:          eng.ImpactAlpha,
			ImpactBeta:           eng.ImpactBeta,
			ImpactSplitThreshold: eng.ImpactSplitThreshold,
			ImpactTestNotional:   eng.TestNotional,
			LargeOrderThreshold:  eng.LargeOrderThreshold,
			MaxExecutionRatio:    eng.MaxExecutionRatio,
			MinSplitCount:        eng.MinSplitCount,
			MaxSplitCount:        eng.MaxSplitCount,
			SplitInterval:        duration{eng.SplitInterval},
			TWAPParticipation:    eng.TWAPParticipation,
			IcebergDepthRatio:    eng.IcebergDepthRatio,
			VWAPSplitCount:       eng.VWAPSplitCount,
			WeightSpread:         eng.Weights.Spread,
			WeightImbalance:      eng.Weights.Imbalance,
			WeightDepth:          eng.Weights.Depth,
			WeightImpact:         eng.Weights.Impact,
		},
		Risk: RiskConfig{
			CollaboratorTimeout: duration{rsk.CollaboratorTimeout},
			FailClosed:          rsk.FailClosed,
			EventHistory:        rsk.EventHistory,
			ReportEvents:        rsk.ReportEvents,
			SinkBuffer:          1024,
			SinkTimeout:         duration{5 * time.Second},
			DefaultAccount: AccountLimitsConfig{
				MaxPositions:     rsk.DefaultAccount.MaxPositions,
				MaxOrderNotional: rsk.DefaultAccount.MaxOrderNotional,
				MaxPositionPct:   rsk.DefaultAccount.MaxPositionPct,
			},
		},
		Redis: RedisConfig{
			Enabled:     true,
			Addr:        "localhost:6379",
			PoolSize:    20,
			MaxRetries:  3,
			KeyPrefix:   "riskgate",
			BookTTL:     duration{10 * time.Minute},
			ReadBreaker: true,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "riskgate",
			User:            "postgres",
			SSLMode:         "disable",
			PoolMaxConns:    10,
			PoolMinConns:    2,
			MaxConnLifetime: duration{time.Hour},
			RunMigrations:   true,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "riskgate-events",
			ForcePathStyle: true,
			ArchivePrefix:  "risk-events",
			ArchiveBatch:   500,
			ArchiveFlush:   duration{time.Minute},

			ArchiveMaxBuffered: 5000,
		},
		Server: ServerConfig{
			Port:           8000,
			CORSOrigins:    []string{"http://localhost:3000"},
			RateLimitRPS:   50,
			RateLimitBurst: 100,
		},
		Notify: NotifyConfig{
			Events:      []string{domain.EventOrderBlocked, domain.EventTradingPaused, domain.EventTradingResumed, domain.EventCollaboratorFailed},
			MinInterval: duration{30 * time.Second},
			Burst:       3,
		},
		Feed: FeedConfig{
			Source:  "redis",
			Channel: "market_data",
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

var validModes = map[string]bool{
	"full":   true,
	"server": true,
	"feed":   true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// NeedsFeed reports whether the mode ingests market data.
func (c *Config) NeedsFeed() bool { return c.Mode == "full" || c.Mode == "feed" }

// NeedsServer reports whether the mode serves the HTTP API.
func (c *Config) NeedsServer() bool { return c.Mode == "full" || c.Mode == "server" }

// Validate checks Config and returns one error listing every problem.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: full, server, feed)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if err := c.Liquidity.EngineConfig().Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.Risk.AggregatorConfig().Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Risk.SinkBuffer < 1 {
		errs = append(errs, "risk: sink_buffer must be >= 1")
	}
	if c.Risk.SinkTimeout.Duration <= 0 {
		errs = append(errs, "risk: sink_timeout must be > 0")
	}
	seen := make(map[string]bool, len(c.Risk.Accounts))
	for i, a := range c.Risk.Accounts {
		switch {
		case strings.TrimSpace(a.ID) == "":
			errs = append(errs, fmt.Sprintf("risk: accounts[%d]: id must not be empty", i))
		case seen[a.ID]:
			errs = append(errs, fmt.Sprintf("risk: accounts[%d]: duplicate id %q", i, a.ID))
		}
		seen[a.ID] = true
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must be between 0 and pool_max_conns")
		}
	}

	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
		if c.S3.ArchiveBatch < 1 {
			errs = append(errs, "s3: archive_batch must be >= 1")
		}
		if c.S3.ArchiveFlush.Duration <= 0 {
			errs = append(errs, "s3: archive_flush must be > 0")
		}
		if c.S3.ArchiveMaxBuffered < c.S3.ArchiveBatch {
			errs = append(errs, "s3: archive_max_buffered must be >= archive_batch")
		}
	}

	if c.NeedsServer() {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimitRPS < 0 {
			errs = append(errs, "server: rate_limit_rps must be >= 0")
		}
	}

	if c.Notify.TelegramToken != "" && c.Notify.TelegramChatID == "" {
		errs = append(errs, "notify: telegram_chat_id is required with telegram_token")
	}

	if c.NeedsFeed() {
		switch c.Feed.Source {
		case "redis":
			if !c.Redis.Enabled {
				errs = append(errs, "feed: source \"redis\" requires redis.enabled")
			}
		case "websocket":
			if c.Feed.WSURL == "" {
				errs = append(errs, "feed: ws_url is required for source \"websocket\"")
			}
		default:
			errs = append(errs, fmt.Sprintf("feed: unknown source %q (valid: redis, websocket)", c.Feed.Source))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
