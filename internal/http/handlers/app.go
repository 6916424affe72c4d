package handlers

import (
	"encoding/json"
	"net/http"

	"thumbforge/internal/catalog"
	"thumbforge/internal/domain"
	"thumbforge/internal/infra"
	"thumbforge/internal/ledger"
	"thumbforge/internal/middleware"
	"thumbforge/internal/pipeline"
)

// App carries the handler dependencies. Handlers stay thin: request
// decoding, identity checks and response shaping live here, everything
// else is delegated.
type App struct {
	Config      *infra.Config
	Logger      infra.Logger
	Pipeline    *pipeline.Pipeline
	Generations domain.GenerationRepository
	Credits     domain.CreditRepository
	Ledger      *ledger.Ledger
	Catalog     *catalog.Catalog
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]errorBody{"error": {Code: errCode, Message: message}})
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}
