package handlers

import (
	"net/http"
	"time"

	"thumbforge/internal/domain"
)

const creditHistoryLimit = 20

type creditEntryView struct {
	ID           string                 `json:"id"`
	GenerationID string                 `json:"generation_id,omitempty"`
	EntryType    domain.LedgerEntryType `json:"entry_type"`
	Amount       int                    `json:"amount"`
	BalanceAfter int                    `json:"balance_after"`
	Description  string                 `json:"description,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}

// CreditsGet returns the caller's balance, the per-generation cost and
// the most recent ledger entries.
func (a *App) CreditsGet(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}

	balance, err := a.Credits.Balance(r.Context(), userID)
	if err != nil {
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("handlers: load balance failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load balance")
		return
	}
	entries, err := a.Credits.History(r.Context(), userID, creditHistoryLimit)
	if err != nil {
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("handlers: load ledger failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load ledger")
		return
	}

	views := make([]creditEntryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, creditEntryView{
			ID:           e.ID,
			GenerationID: e.GenerationID,
			EntryType:    e.EntryType,
			Amount:       e.Amount,
			BalanceAfter: e.BalanceAfter,
			Description:  e.Description,
			CreatedAt:    e.CreatedAt,
		})
	}
	a.json(w, http.StatusOK, map[string]any{
		"balance":             balance,
		"cost_per_generation": a.Ledger.Cost(),
		"entries":             views,
	})
}
