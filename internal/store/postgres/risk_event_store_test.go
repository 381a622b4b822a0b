package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/riskgate/internal/domain"
)

func TestListQuery(t *testing.T) {
	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	query, args := listQuery(domain.ListOpts{Since: &since, Limit: 20, Offset: 40})
	assert.Equal(t,
		"SELECT id::text, module, event_type, payload, occurred_at FROM risk_events WHERE 1=1"+
			" AND occurred_at >= $1 ORDER BY occurred_at DESC LIMIT $2 OFFSET $3",
		query)
	assert.Equal(t, []any{since, 20, 40}, args)

	query, args = listQuery(domain.ListOpts{})
	assert.NotContains(t, query, "LIMIT")
	assert.Empty(t, args)
}

func TestDSN(t *testing.T) {
	assert.Equal(t, "postgres://u:p@db:5432/risk?sslmode=disable",
		DSN(ClientConfig{Host: "db", Database: "risk", User: "u", Password: "p"}))
	assert.Equal(t, "postgres://explicit", DSN(ClientConfig{DSN: " postgres://explicit "}))
}

func TestMigrationNames(t *testing.T) {
	names, err := migrationNames()
	assert.NoError(t, err)
	assert.Equal(t, []string{"001_risk_events.sql"}, names)
}
