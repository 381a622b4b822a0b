package liquidity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/riskgate/internal/domain"
)

func TestConfig_DefaultsAreValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"weights do not sum to one", func(c *Config) { c.Weights.Depth = 0.5 }},
		{"warning above critical", func(c *Config) { c.SlippageWarning = 0.01 }},
		{"split bounds inverted", func(c *Config) { c.MaxSplitCount = 1 }},
		{"zero history", func(c *Config) { c.HistoryLength = 0 }},
		{"zero safety margin", func(c *Config) { c.SafetyMargin = 0 }},
		{"zero cache ttl", func(c *Config) { c.CacheTTL = 0 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidConfig)
		})
	}
}

func TestNewEngine_RejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DepthLevels = 0
	_, err := NewEngine(cfg, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}
