package handler

import (
	"net/http"
	"time"
)

// StatusHandler reports how this process was started.
type StatusHandler struct {
	mode      string
	startedAt time.Time
	symbols   func() []string
}

// NewStatusHandler creates a StatusHandler. symbols lists the tracked books.
func NewStatusHandler(mode string, startedAt time.Time, symbols func() []string) *StatusHandler {
	return &StatusHandler{mode: mode, startedAt: startedAt, symbols: symbols}
}

// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, _ *http.Request) {
	syms := h.symbols()
	if syms == nil {
		syms = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":           h.mode,
		"started_at":     h.startedAt.UTC().Format(time.RFC3339),
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"symbols":        syms,
	})
}
