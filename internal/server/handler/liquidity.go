package handler

import (
	"net/http"

	"github.com/alanyoungcy/riskgate/internal/domain"
)

// LiquidityQuerier exposes the liquidity engine's read side.
type LiquidityQuerier interface {
	LiquidityScore(symbol string) domain.LiquidityScore
	EstimateSlippage(symbol string, side domain.OrderSide, amount float64) domain.SlippageEstimate
	SplitRecommendation(symbol string, side domain.OrderSide, amount float64) domain.SplitPlan
	CalculateMarketImpact(symbol string, side domain.OrderSide, amount float64) domain.MarketImpactEstimate
}

// LiquidityHandler serves liquidity queries. Results with Success=false are
// returned as 404 because the symbol has no usable book.
type LiquidityHandler struct {
	q LiquidityQuerier
}

// NewLiquidityHandler creates a LiquidityHandler.
func NewLiquidityHandler(q LiquidityQuerier) *LiquidityHandler {
	return &LiquidityHandler{q: q}
}

// GET /api/liquidity/{symbol}
func (h *LiquidityHandler) Score(w http.ResponseWriter, r *http.Request) {
	s := h.q.LiquidityScore(r.PathValue("symbol"))
	writeJSON(w, successStatus(s.Success), s)
}

// GET /api/liquidity/{symbol}/slippage?side=&amount=
func (h *LiquidityHandler) Slippage(w http.ResponseWriter, r *http.Request) {
	side, amount, err := orderQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	est := h.q.EstimateSlippage(r.PathValue("symbol"), side, amount)
	writeJSON(w, successStatus(est.Success), est)
}

// GET /api/liquidity/{symbol}/split?side=&amount=
func (h *LiquidityHandler) Split(w http.ResponseWriter, r *http.Request) {
	side, amount, err := orderQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	plan := h.q.SplitRecommendation(r.PathValue("symbol"), side, amount)
	writeJSON(w, successStatus(plan.Success), plan)
}

// GET /api/liquidity/{symbol}/impact?side=&amount=
func (h *LiquidityHandler) Impact(w http.ResponseWriter, r *http.Request) {
	side, amount, err := orderQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	est := h.q.CalculateMarketImpact(r.PathValue("symbol"), side, amount)
	writeJSON(w, successStatus(est.Success), est)
}

func successStatus(ok bool) int {
	if ok {
		return http.StatusOK
	}
	return http.StatusNotFound
}
