package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/riskgate/internal/domain"
)

var _ domain.RiskEventStore = (*RiskEventStore)(nil)

// RiskEventStore implements domain.RiskEventStore. Events are append-only;
// re-inserting an ID is a no-op.
type RiskEventStore struct {
	pool *pgxpool.Pool
}

// NewRiskEventStore creates a RiskEventStore backed by pool.
func NewRiskEventStore(pool *pgxpool.Pool) *RiskEventStore {
	return &RiskEventStore{pool: pool}
}

// Insert appends evt. The payload is stored as JSONB.
func (s *RiskEventStore) Insert(ctx context.Context, evt domain.RiskEvent) error {
	payload := evt.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("postgres: marshal risk event payload: %w", err)
	}

	const query = `
		INSERT INTO risk_events (id, module, event_type, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING`
	if _, err := s.pool.Exec(ctx, query, evt.ID, evt.Module, evt.Type, data, evt.Timestamp); err != nil {
		return fmt.Errorf("postgres: insert risk event %s: %w", evt.ID, err)
	}
	return nil
}

// List returns events newest first with optional time bounds and paging.
func (s *RiskEventStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.RiskEvent, error) {
	query, args := listQuery(opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list risk events: %w", err)
	}
	defer rows.Close()

	var out []domain.RiskEvent
	for rows.Next() {
		var (
			evt  domain.RiskEvent
			data []byte
		)
		if err := rows.Scan(&evt.ID, &evt.Module, &evt.Type, &data, &evt.Timestamp); err != nil {
			return nil, fmt.Errorf("postgres: scan risk event: %w", err)
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &evt.Payload); err != nil {
				return nil, fmt.Errorf("postgres: unmarshal risk event %s: %w", evt.ID, err)
			}
		}
		out = append(out, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list risk events rows: %w", err)
	}
	return out, nil
}

func listQuery(opts domain.ListOpts) (string, []any) {
	query := `SELECT id::text, module, event_type, payload, occurred_at FROM risk_events WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if opts.Since != nil {
		query += " AND occurred_at >= " + arg(*opts.Since)
	}
	if opts.Until != nil {
		query += " AND occurred_at <= " + arg(*opts.Until)
	}
	query += " ORDER BY occurred_at DESC"
	if opts.Limit > 0 {
		query += " LIMIT " + arg(opts.Limit)
	}
	if opts.Offset > 0 {
		query += " OFFSET " + arg(opts.Offset)
	}
	return query, args
}
