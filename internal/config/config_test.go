package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/riskgate/internal/liquidity"
	"github.com/alanyoungcy/riskgate/internal/risk"
)

func writeTOML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "riskgate.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaults_MatchPackageDefaults(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, liquidity.DefaultConfig(), cfg.Liquidity.EngineConfig())
	assert.Equal(t, risk.DefaultConfig(), cfg.Risk.AggregatorConfig())
}

func TestLoad_MergesFileOverDefaults(t *testing.T) {
	path := writeTOML(t, `
mode = "server"

[liquidity]
slippage_warning = 0.003
cache_ttl = "2s"

[risk]
fail_closed = false

[risk.default_account]
max_positions = 5
max_order_notional = 50000
max_position_pct = 0.1

[[risk.accounts]]
id = "desk-1"
max_positions = 3

[server]
port = 9090
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "server", cfg.Mode)
	assert.Equal(t, 0.003, cfg.Liquidity.SlippageWarning)
	assert.Equal(t, 0.005, cfg.Liquidity.SlippageCritical)
	assert.Equal(t, 2*time.Second, cfg.Liquidity.EngineConfig().CacheTTL)
	assert.False(t, cfg.Risk.AggregatorConfig().FailClosed)
	assert.Equal(t, 5, cfg.Risk.DefaultAccount.MaxPositions)
	require.Len(t, cfg.Risk.Accounts, 1)
	assert.Equal(t, "desk-1", cfg.Risk.Accounts[0].ID)
	assert.Equal(t, 3, cfg.Risk.Accounts[0].Account().MaxPositions)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	path := writeTOML(t, `
[liquidity]
slipage_warning = 0.003
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "liquidity.slipage_warning")
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("RISKGATE_MODE", "feed")
	t.Setenv("RISKGATE_REDIS_ADDR", "redis:6380")
	t.Setenv("RISKGATE_RISK_FAIL_CLOSED", "false")
	t.Setenv("RISKGATE_RISK_COLLABORATOR_TIMEOUT", "1s")
	t.Setenv("RISKGATE_FEED_SYMBOLS", "BTC-USD, ETH-USD,")
	t.Setenv("RISKGATE_SERVER_PORT", "not-a-number")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "feed", cfg.Mode)
	assert.Equal(t, "redis:6380", cfg.Redis.Addr)
	assert.False(t, cfg.Risk.FailClosed)
	assert.Equal(t, time.Second, cfg.Risk.CollaboratorTimeout.Duration)
	assert.Equal(t, []string{"BTC-USD", "ETH-USD"}, cfg.Feed.Symbols)
	assert.Equal(t, 8000, cfg.Server.Port)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad mode", func(c *Config) { c.Mode = "trade" }, `unknown mode "trade"`},
		{"bad log level", func(c *Config) { c.LogLevel = "trace" }, `unknown log_level "trace"`},
		{"liquidity thresholds", func(c *Config) { c.Liquidity.SlippageCritical = 0.001 }, "liquidity:"},
		{"risk timeout", func(c *Config) { c.Risk.CollaboratorTimeout = duration{} }, "collaborator_timeout"},
		{"duplicate account", func(c *Config) {
			c.Risk.Accounts = []AccountEntryConfig{{ID: "a"}, {ID: "a"}}
		}, `duplicate id "a"`},
		{"redis addr", func(c *Config) { c.Redis.Addr = "" }, "redis: addr"},
		{"postgres pool", func(c *Config) {
			c.Postgres.Enabled = true
			c.Postgres.PoolMinConns = 20
		}, "pool_min_conns"},
		{"s3 bucket", func(c *Config) {
			c.S3.Enabled = true
			c.S3.Bucket = ""
		}, "s3: bucket"},
		{"s3 archive buffer", func(c *Config) {
			c.S3.Enabled = true
			c.S3.ArchiveMaxBuffered = 10
		}, "archive_max_buffered"},
		{"server port", func(c *Config) { c.Server.Port = 0 }, "server: port"},
		{"telegram chat", func(c *Config) { c.Notify.TelegramToken = "t" }, "telegram_chat_id"},
		{"feed needs redis", func(c *Config) { c.Redis.Enabled = false }, `requires redis.enabled`},
		{"feed ws url", func(c *Config) { c.Feed.Source = "websocket" }, "ws_url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_ServerModeSkipsFeed(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "server"
	cfg.Redis.Enabled = false
	assert.NoError(t, cfg.Validate())
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Redis.Password = "pw"
	cfg.Postgres.DSN = "postgres://u:p@h/db"
	cfg.S3.SecretKey = "sk"
	cfg.Server.APIKey = "key"
	cfg.Notify.DiscordWebhookURL = "https://discord/hook"

	out := RedactedConfig(&cfg)
	assert.Equal(t, "***", out.Redis.Password)
	assert.Equal(t, "***", out.Postgres.DSN)
	assert.Equal(t, "***", out.S3.SecretKey)
	assert.Equal(t, "***", out.Server.APIKey)
	assert.Equal(t, "***", out.Notify.DiscordWebhookURL)
	assert.Empty(t, out.S3.AccessKey)

	out.Notify.Events[0] = "changed"
	assert.NotEqual(t, "changed", cfg.Notify.Events[0])
	assert.Equal(t, "pw", cfg.Redis.Password)
}
