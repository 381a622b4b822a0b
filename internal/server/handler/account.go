package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/riskgate/internal/domain"
)

// AccountManager registers accounts and receives their state.
type AccountManager interface {
	RegisterAccount(ctx context.Context, accountID string, cfg domain.AccountConfig) error
	UpdateAccountData(ctx context.Context, accountID string, data domain.AccountData) error
	Accounts() []string
}

// AccountHandler serves account registration and updates.
type AccountHandler struct {
	accounts AccountManager
	logger   *slog.Logger
}

// NewAccountHandler creates an AccountHandler.
func NewAccountHandler(accounts AccountManager, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{accounts: accounts, logger: logger.With(slog.String("handler", "accounts"))}
}

// GET /api/accounts
func (h *AccountHandler) List(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"accounts": h.accounts.Accounts()})
}

// Register adds an account. An empty body uses the default limits.
// POST /api/accounts/{id}
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var cfg domain.AccountConfig
	if err := decodeJSON(r, &cfg, true); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.accounts.RegisterAccount(r.Context(), id, cfg); err != nil {
		h.logger.WarnContext(r.Context(), "register account failed",
			slog.String("account_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"account_id": id})
}

// Update replaces the account's equity and positions.
// PUT /api/accounts/{id}
func (h *AccountHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var data domain.AccountData
	if err := decodeJSON(r, &data, false); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.accounts.UpdateAccountData(r.Context(), id, data); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"account_id": id})
}
