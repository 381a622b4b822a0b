package handler

import (
	"net/http"
	"strings"

	"github.com/alanyoungcy/riskgate/internal/domain"
)

// MarketUpdater accepts market data for a symbol.
type MarketUpdater interface {
	UpdateMarketData(symbol string, data domain.MarketData)
	LiquidityScore(symbol string) domain.LiquidityScore
}

// MarketHandler accepts pushed market data.
type MarketHandler struct {
	updater MarketUpdater
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(updater MarketUpdater) *MarketHandler {
	return &MarketHandler{updater: updater}
}

// UpdateMarketData stores a book and/or trade and answers with the
// refreshed liquidity score.
// POST /api/market/{symbol}
func (h *MarketHandler) UpdateMarketData(w http.ResponseWriter, r *http.Request) {
	symbol := strings.TrimSpace(r.PathValue("symbol"))
	var data domain.MarketData
	if err := decodeJSON(r, &data, false); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if data.OrderBook == nil && data.Trade == nil && data.Price == 0 {
		writeError(w, http.StatusBadRequest, "order_book, trade or price is required")
		return
	}
	if data.OrderBook != nil {
		book := data.OrderBook.Normalized()
		book.Symbol = symbol
		data.OrderBook = &book
	}
	h.updater.UpdateMarketData(symbol, data)
	writeJSON(w, http.StatusAccepted, h.updater.LiquidityScore(symbol))
}
