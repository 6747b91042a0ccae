package handlers

import (
	"net/http"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "ok"}
	if a.Catalog != nil {
		body["default_provider"] = a.Catalog.Default()
	}
	a.json(w, http.StatusOK, body)
}
