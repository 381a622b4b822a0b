package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alanyoungcy/riskgate/internal/domain"
)

// TradingController pauses and resumes all trading.
type TradingController interface {
	PauseAllTrading(ctx context.Context, reason string)
	ResumeAllTrading(ctx context.Context)
	TradingEnabled() bool
	RiskReport(ctx context.Context) domain.RiskReport
}

// EventSource returns recent in-memory events, oldest first.
type EventSource interface {
	Recent(n int) []domain.RiskEvent
}

// RiskHandler serves the trading switch, the risk report and the event
// log.
type RiskHandler struct {
	ctl    TradingController
	recent EventSource
	store  domain.RiskEventStore
	logger *slog.Logger
}

// NewRiskHandler creates a RiskHandler. store may be nil, in which case
// events are served from memory.
func NewRiskHandler(ctl TradingController, recent EventSource, store domain.RiskEventStore, logger *slog.Logger) *RiskHandler {
	return &RiskHandler{ctl: ctl, recent: recent, store: store, logger: logger.With(slog.String("handler", "risk"))}
}

type pauseRequest struct {
	Reason string `json:"reason"`
}

// POST /api/trading/pause
func (h *RiskHandler) Pause(w http.ResponseWriter, r *http.Request) {
	var req pauseRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "paused by operator"
	}
	h.ctl.PauseAllTrading(r.Context(), reason)
	writeJSON(w, http.StatusOK, map[string]any{"trading_enabled": h.ctl.TradingEnabled(), "reason": reason})
}

// POST /api/trading/resume
func (h *RiskHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.ctl.ResumeAllTrading(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"trading_enabled": h.ctl.TradingEnabled()})
}

// GET /api/risk/report
func (h *RiskHandler) Report(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctl.RiskReport(r.Context()))
}

// Events lists risk events, newest first from the store when one is
// configured, otherwise the in-memory tail oldest first.
// GET /api/risk/events?limit=&offset=&since=&until=
func (h *RiskHandler) Events(w http.ResponseWriter, r *http.Request) {
	opts, err := parseListOpts(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if h.store == nil {
		writeJSON(w, http.StatusOK, map[string]any{"events": h.recent.Recent(opts.Limit), "source": "memory"})
		return
	}
	events, err := h.store.List(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list risk events", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	if events == nil {
		events = []domain.RiskEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events, "source": "store"})
}
