package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/riskgate/internal/domain"
)

// OrderChecker admits or rejects candidate orders.
type OrderChecker interface {
	CheckOrder(ctx context.Context, order domain.OrderRequest) domain.OrderCheckResult
}

// OrderHandler serves pre-trade checks.
type OrderHandler struct {
	checker OrderChecker
	logger  *slog.Logger
}

// NewOrderHandler creates an OrderHandler.
func NewOrderHandler(checker OrderChecker, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{checker: checker, logger: logger.With(slog.String("handler", "orders"))}
}

// CheckOrder runs the full risk pipeline. A blocked order is still a 200;
// the verdict is in the body.
// POST /api/orders/check
func (h *OrderHandler) CheckOrder(w http.ResponseWriter, r *http.Request) {
	var order domain.OrderRequest
	if err := decodeJSON(r, &order, false); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res := h.checker.CheckOrder(r.Context(), order)
	h.logger.DebugContext(r.Context(), "order checked",
		slog.String("check_id", res.CheckID),
		slog.Bool("allowed", res.Allowed),
	)
	writeJSON(w, http.StatusOK, res)
}
