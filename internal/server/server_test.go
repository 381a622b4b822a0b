package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/riskgate/internal/domain"
	"github.com/alanyoungcy/riskgate/internal/liquidity"
	"github.com/alanyoungcy/riskgate/internal/risk"
	"github.com/alanyoungcy/riskgate/internal/server/handler"
)

const testKey = "secret"

const deepBookJSON = `{"order_book":{
	"bids":[{"price":50000,"quantity":200},{"price":49999,"quantity":200}],
	"asks":[{"price":50001,"quantity":200},{"price":50002,"quantity":200}]}}`

func newTestServer(t *testing.T) (*Server, *risk.Aggregator) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	engine, err := liquidity.NewEngine(liquidity.DefaultConfig(), logger)
	require.NoError(t, err)
	agg, err := risk.NewAggregator(engine, risk.Collaborators{}, risk.DefaultConfig(), logger)
	require.NoError(t, err)

	h := Handlers{
		Health:    handler.NewHealthHandler(nil),
		Status:    handler.NewStatusHandler("server", time.Now(), engine.Symbols),
		Orders:    handler.NewOrderHandler(agg, logger),
		Market:    handler.NewMarketHandler(agg),
		Liquidity: handler.NewLiquidityHandler(agg),
		Accounts:  handler.NewAccountHandler(agg, logger),
		Risk:      handler.NewRiskHandler(agg, agg.Events(), nil, logger),
	}
	srv := NewServer(Config{APIKey: testKey}, h, nil, logger)
	return srv, agg
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("X-API-Key", testKey)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth_IsPublic(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/risk/report", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCheckOrder_Flow(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/api/market/BTC-USD", deepBookJSON)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	score := decode[domain.LiquidityScore](t, rec)
	assert.True(t, score.Success)
	assert.Equal(t, "BTC-USD", score.Symbol)

	rec = do(t, srv, http.MethodPost, "/api/orders/check",
		`{"account_id":"acct-1","symbol":"BTC-USD","side":"buy","amount":1,"price":50001}`)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[domain.OrderCheckResult](t, rec)
	assert.True(t, res.Allowed)
	assert.NotEmpty(t, res.CheckID)
	assert.Contains(t, res.Warnings, `account "acct-1" is not registered; single-account check skipped`)

	rec = do(t, srv, http.MethodPost, "/api/orders/check",
		`{"account_id":"acct-1","symbol":"BTC-USD","side":"hold","amount":1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[domain.OrderCheckResult](t, rec).Allowed)

	rec = do(t, srv, http.MethodPost, "/api/orders/check", `{"symbol":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLiquidityEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	require.Equal(t, http.StatusAccepted, do(t, srv, http.MethodPost, "/api/market/BTC-USD", deepBookJSON).Code)

	rec := do(t, srv, http.MethodGet, "/api/liquidity/BTC-USD/slippage?side=buy&amount=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	est := decode[domain.SlippageEstimate](t, rec)
	assert.Equal(t, 50001.0, est.AvgExecutionPrice)

	rec = do(t, srv, http.MethodGet, "/api/liquidity/BTC-USD/split?side=sell&amount=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[domain.SplitPlan](t, rec).NeedsSplit)

	rec = do(t, srv, http.MethodGet, "/api/liquidity/BTC-USD/impact?amount=1", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/api/liquidity/DOGE-USD", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodGet, "/api/liquidity/BTC-USD/slippage?amount=-1", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodGet, "/api/liquidity/BTC-USD/split?side=up&amount=1", "").Code)

	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPost, "/api/market/BTC-USD", `{}`).Code)
}

func TestMarketUpdate_CleansPushedBook(t *testing.T) {
	srv, _ := newTestServer(t)

	t.Run("empty top level", func(t *testing.T) {
		rec := do(t, srv, http.MethodPost, "/api/market/X", `{"order_book":{
			"bids":[{"price":99,"quantity":5}],
			"asks":[{"price":100,"quantity":0},{"price":100,"quantity":5}]}}`)
		require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

		rec = do(t, srv, http.MethodGet, "/api/liquidity/X/split?side=buy&amount=1", "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		plan := decode[domain.SplitPlan](t, rec)
		assert.True(t, plan.Success)
		assert.InDelta(t, 0.2, plan.OrderRatio, 1e-12)

		rec = do(t, srv, http.MethodPost, "/api/orders/check",
			`{"account_id":"acct-1","symbol":"X","side":"buy","amount":1}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		res := decode[domain.OrderCheckResult](t, rec)
		assert.NotEmpty(t, res.CheckID)
	})

	t.Run("unsorted levels", func(t *testing.T) {
		rec := do(t, srv, http.MethodPost, "/api/market/Y", `{"order_book":{
			"bids":[{"price":98,"quantity":5},{"price":99,"quantity":5}],
			"asks":[{"price":105,"quantity":5},{"price":100,"quantity":5}]}}`)
		require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

		rec = do(t, srv, http.MethodGet, "/api/liquidity/Y/slippage?side=buy&amount=1", "")
		require.Equal(t, http.StatusOK, rec.Code)
		est := decode[domain.SlippageEstimate](t, rec)
		assert.Equal(t, 100.0, est.BestPrice)
		assert.Zero(t, est.EstimatedSlippage)
	})
}

func TestAccounts(t *testing.T) {
	srv, agg := newTestServer(t)

	assert.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, "/api/accounts/acct-1", "").Code)
	assert.Equal(t, http.StatusConflict, do(t, srv, http.MethodPost, "/api/accounts/acct-1", "").Code)
	assert.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, "/api/accounts/acct-2",
		`{"max_positions":5,"max_order_notional":1000,"max_position_pct":0.1}`).Code)
	assert.Equal(t, []string{"acct-1", "acct-2"}, agg.Accounts())

	rec := do(t, srv, http.MethodPut, "/api/accounts/acct-1", `{"equity":100000,"positions":{}}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodPut, "/api/accounts/ghost", `{"equity":1}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/accounts", "")
	assert.JSONEq(t, `{"accounts":["acct-1","acct-2"]}`, rec.Body.String())
}

func TestPauseResume(t *testing.T) {
	srv, agg := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/api/trading/pause", `{"reason":"exchange outage"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, agg.TradingEnabled())

	rec = do(t, srv, http.MethodPost, "/api/orders/check", `{"account_id":"a","symbol":"BTC-USD","side":"buy","amount":1}`)
	res := decode[domain.OrderCheckResult](t, rec)
	assert.False(t, res.Allowed)
	assert.Equal(t, []string{"trading paused: exchange outage"}, res.BlockReasons)

	rec = do(t, srv, http.MethodGet, "/api/risk/report", "")
	report := decode[domain.RiskReport](t, rec)
	assert.False(t, report.TradingEnabled)
	assert.Equal(t, "exchange outage", report.PauseReason)

	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/api/trading/resume", "").Code)
	assert.True(t, agg.TradingEnabled())

	rec = do(t, srv, http.MethodGet, "/api/risk/events?limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Events []domain.RiskEvent `json:"events"`
		Source string             `json:"source"`
	}](t, rec)
	assert.Equal(t, "memory", body.Source)
	var types []string
	for _, e := range body.Events {
		types = append(types, e.Type)
	}
	assert.Equal(t, []string{domain.EventTradingPaused, domain.EventOrderBlocked, domain.EventTradingResumed}, types)

	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodGet, "/api/risk/events?since=yesterday", "").Code)
}

func TestStatus(t *testing.T) {
	srv, _ := newTestServer(t)
	do(t, srv, http.MethodPost, "/api/market/ETH-USD", deepBookJSON)

	rec := do(t, srv, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "server", body["mode"])
	assert.Equal(t, []any{"ETH-USD"}, body["symbols"])
}
