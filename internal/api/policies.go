package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hakim/brandwatch/internal/alert"
	"github.com/hakim/brandwatch/internal/models"
	"github.com/hakim/brandwatch/internal/storage"
)

// PolicyRequest is the body of PUT /api/v1/users/{id}/alert-policy. When
// LegacySeverities is set it replaces Threshold after migration.
type PolicyRequest struct {
	Threshold        string   `json:"threshold,omitempty"`
	LegacySeverities []string `json:"legacy_severities,omitempty"`
	EmailEnabled     bool     `json:"email_enabled"`
	WebhookEnabled   bool     `json:"webhook_enabled"`
}

func (a *App) getAlertPolicy(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	p, err := a.store.GetAlertPolicy(r.Context(), userID)
	if errors.Is(err, storage.ErrNotFound) {
		def := models.DefaultAlertPolicy(userID)
		p, err = &def, nil
	}
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *App) putAlertPolicy(w http.ResponseWriter, r *http.Request) {
	var req PolicyRequest
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return
	}

	var (
		threshold models.AlertThreshold
		err       error
	)
	if req.LegacySeverities != nil {
		threshold, err = alert.MigrateLegacy(req.LegacySeverities)
	} else {
		threshold, err = alert.ParseThreshold(req.Threshold)
	}
	if err != nil {
		a.writeError(w, err)
		return
	}

	p := &models.AlertPolicy{
		UserID:         chi.URLParam(r, "id"),
		Threshold:      threshold,
		EmailEnabled:   req.EmailEnabled,
		WebhookEnabled: req.WebhookEnabled,
	}
	if err := a.store.SaveAlertPolicy(r.Context(), p); err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
