package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hakim/brandwatch/internal/models"
)

type statusRequest struct {
	Status string `json:"status"`
}

func (a *App) setThreatStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return
	}
	to, ok := models.ParseThreatStatus(req.Status)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unknown status " + req.Status})
		return
	}
	t, err := a.threats.SetStatus(r.Context(), chi.URLParam(r, "id"), to)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (a *App) reopenThreat(w http.ResponseWriter, r *http.Request) {
	t, err := a.threats.Reopen(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}
