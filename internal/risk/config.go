// Package risk implements the order admission pipeline. An Aggregator runs
// every candidate order past the circuit breaker, the liquidity engine and
// the account and portfolio modules, keeps running statistics and publishes
// risk events to any number of sinks.
package risk

import (
	"fmt"
	"strings"
	"time"

	"github.com/alanyoungcy/riskgate/internal/domain"
)

// Config tunes the Aggregator.
type Config struct {
	// CollaboratorTimeout bounds every call into an external risk module.
	// Default 250ms.
	CollaboratorTimeout time.Duration
	// FailClosed blocks the order when a module errors, panics or times out.
	// When false the failure becomes a warning and the pipeline continues.
	// Default true.
	FailClosed bool
	// EventHistory is the capacity of the in-memory event ring. Default 1000.
	EventHistory int
	// ReportEvents is how many recent events a RiskReport carries. Default 50.
	ReportEvents int
	// DefaultAccount is applied to accounts registered with a zero config.
	DefaultAccount domain.AccountConfig
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		CollaboratorTimeout: 250 * time.Millisecond,
		FailClosed:          true,
		EventHistory:        1000,
		ReportEvents:        50,
		DefaultAccount: domain.AccountConfig{
			MaxPositions:     20,
			MaxOrderNotional: 1_000_000,
			MaxPositionPct:   0.25,
		},
	}
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []string
	if c.CollaboratorTimeout <= 0 {
		errs = append(errs, "collaborator_timeout must be > 0")
	}
	if c.EventHistory < 1 {
		errs = append(errs, "event_history must be >= 1")
	}
	if c.ReportEvents < 0 || c.ReportEvents > c.EventHistory {
		errs = append(errs, "report_events must be between 0 and event_history")
	}
	if err := validateAccountConfig(c.DefaultAccount); err != nil {
		errs = append(errs, "default_account: "+err.Error())
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: risk: %s", domain.ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return nil
}

func validateAccountConfig(cfg domain.AccountConfig) error {
	switch {
	case cfg.MaxPositions < 0:
		return fmt.Errorf("max_positions must be >= 0, got %d", cfg.MaxPositions)
	case cfg.MaxOrderNotional < 0:
		return fmt.Errorf("max_order_notional must be >= 0, got %v", cfg.MaxOrderNotional)
	case cfg.MaxPositionPct < 0 || cfg.MaxPositionPct > 1:
		return fmt.Errorf("max_position_pct must be within [0,1], got %v", cfg.MaxPositionPct)
	}
	return nil
}
