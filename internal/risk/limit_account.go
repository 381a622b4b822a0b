package risk

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/alanyoungcy/riskgate/internal/domain"
)

var _ domain.AccountRisk = (*LimitAccountRisk)(nil)

// LimitAccountRisk is the built-in single-account module. It checks, in
// order, the open position count, the order notional and the resulting
// position size as a share of account equity. A zero limit disables its
// check.
type LimitAccountRisk struct {
	accountID string
	cfg       domain.AccountConfig

	mu   sync.RWMutex
	data domain.AccountData
}

// NewLimitAccountRisk satisfies domain.AccountRiskFactory.
func NewLimitAccountRisk(accountID string, cfg domain.AccountConfig) (domain.AccountRisk, error) {
	if err := validateAccountConfig(cfg); err != nil {
		return nil, fmt.Errorf("risk: account %s: %w: %v", accountID, domain.ErrInvalidConfig, err)
	}
	return &LimitAccountRisk{accountID: accountID, cfg: cfg}, nil
}

// UpdateAccount replaces the equity and position state.
func (l *LimitAccountRisk) UpdateAccount(_ context.Context, data domain.AccountData) error {
	positions := make(map[string]domain.AccountPosition, len(data.Positions))
	for sym, p := range data.Positions {
		positions[sym] = p
	}
	data.Positions = positions

	l.mu.Lock()
	l.data = data
	l.mu.Unlock()
	return nil
}

// CheckOpenPosition implements domain.AccountRisk.
func (l *LimitAccountRisk) CheckOpenPosition(_ context.Context, req domain.PositionRequest) (domain.CheckResult, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	res := domain.CheckResult{Allowed: true}
	existing, holding := l.data.Positions[req.Symbol]
	holding = holding && existing.Quantity != 0

	// Max open positions only applies when the order opens a new symbol.
	if l.cfg.MaxPositions > 0 && !holding {
		open := 0
		for _, p := range l.data.Positions {
			if p.Quantity != 0 {
				open++
			}
		}
		if open >= l.cfg.MaxPositions {
			res.Allowed = false
			res.Reasons = append(res.Reasons,
				fmt.Sprintf("max positions reached (%d/%d)", open, l.cfg.MaxPositions))
			return res, nil
		}
	}

	notional := req.Amount * req.Price
	if l.cfg.MaxOrderNotional > 0 && notional > l.cfg.MaxOrderNotional {
		res.Allowed = false
		res.Reasons = append(res.Reasons,
			fmt.Sprintf("order notional %.2f exceeds max %.2f", notional, l.cfg.MaxOrderNotional))
		return res, nil
	}

	if l.cfg.MaxPositionPct > 0 {
		if l.data.Equity <= 0 {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("no equity known for account %s; position size not checked", l.accountID))
			return res, nil
		}
		qty := existing.Quantity
		if req.Side == domain.OrderSideBuy {
			qty += req.Amount
		} else {
			qty -= req.Amount
		}
		price := req.Price
		if price == 0 {
			price = existing.AvgPrice
		}
		pct := math.Abs(qty) * price / l.data.Equity
		if pct > l.cfg.MaxPositionPct {
			res.Allowed = false
			res.Reasons = append(res.Reasons,
				fmt.Sprintf("position would be %.1f%% of equity, max %.1f%%", pct*100, l.cfg.MaxPositionPct*100))
		}
	}
	return res, nil
}
