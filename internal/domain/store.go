package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// RiskEventStore persists an append-only log of risk events.
type RiskEventStore interface {
	Insert(ctx context.Context, evt RiskEvent) error
	List(ctx context.Context, opts ListOpts) ([]RiskEvent, error)
}
