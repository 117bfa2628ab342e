package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"branch-supply/internal/ai"
	"branch-supply/internal/app"
)

// schemaTypes are the request bodies whose JSON Schema is published for clients.
var schemaTypes = map[string]any{
	"create-order":         &app.CreateOrderRequest{},
	"ship-order":           &app.ShipOrderRequest{},
	"confirm-order":        &app.ConfirmOrderRequest{},
	"suggest-receive-note": &app.SuggestNoteRequest{},
	"receive-note":         &ai.ReceiveNoteSuggestion{},
}

// schema handles GET /api/schema/{name}.
func (h *Handler) schema(w http.ResponseWriter, r *http.Request) {
	v, ok := schemaTypes[chi.URLParam(r, "name")]
	if !ok {
		writeError(w, r, "unknown schema", "NOT_FOUND", http.StatusNotFound)
		return
	}
	writeJSON(w, ai.Schema(v))
}
