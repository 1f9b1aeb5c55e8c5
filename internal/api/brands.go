package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hakim/brandwatch/internal/models"
	"github.com/hakim/brandwatch/internal/permute"
	"github.com/hakim/brandwatch/internal/scan"
)

// CreateBrandRequest is the body of POST /api/v1/brands.
type CreateBrandRequest struct {
	OwnerID       string   `json:"owner_id"`
	Name          string   `json:"name"`
	Domain        string   `json:"domain"`
	Keywords      []string `json:"keywords,omitempty"`
	SocialHandles []string `json:"social_handles,omitempty"`
	OwnedDomains  []string `json:"owned_domains,omitempty"`
	CountryCode   string   `json:"country_code,omitempty"`
	// SkipScan suppresses the onboarding scan.
	SkipScan bool `json:"skip_scan,omitempty"`
}

// CreateBrandResponse carries the brand and its onboarding scan, if one started.
type CreateBrandResponse struct {
	Brand  *models.Brand `json:"brand"`
	ScanID string        `json:"scan_id,omitempty"`
}

func (a *App) createBrand(w http.ResponseWriter, r *http.Request) {
	var req CreateBrandRequest
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.OwnerID) == "" || strings.TrimSpace(req.Name) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "owner_id and name are required"})
		return
	}
	if _, err := permute.ParseSeed(req.Domain); err != nil {
		a.writeError(w, err)
		return
	}

	b := models.NewBrand(req.OwnerID, req.Name, req.Domain)
	b.Keywords = req.Keywords
	b.SocialHandles = req.SocialHandles
	b.OwnedDomains = req.OwnedDomains
	b.CountryCode = strings.ToLower(req.CountryCode)
	if err := a.store.CreateBrand(r.Context(), b); err != nil {
		a.writeError(w, err)
		return
	}

	resp := CreateBrandResponse{Brand: b}
	if !req.SkipScan {
		s, err := a.engine.Trigger(r.Context(), scan.TriggerRequest{
			BrandID: b.ID,
			Type:    models.ScanFull,
			Trigger: models.TriggerOnboarding,
		})
		if err != nil {
			a.log.WithError(err).WithField("brand_id", b.ID).Warn("onboarding scan not started")
		} else {
			resp.ScanID = s.ID
		}
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (a *App) listBrands(w http.ResponseWriter, r *http.Request) {
	brands, err := a.store.ListBrands(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}
	if brands == nil {
		brands = []*models.Brand{}
	}
	writeJSON(w, http.StatusOK, brands)
}

func (a *App) getBrand(w http.ResponseWriter, r *http.Request) {
	b, err := a.store.GetBrand(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (a *App) updateBrand(w http.ResponseWriter, r *http.Request) {
	var upd models.BrandUpdate
	if err := decode(r, &upd); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return
	}
	b, err := a.store.GetBrand(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	upd.Apply(b)
	if err := a.store.UpdateBrand(r.Context(), b); err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (a *App) brandScans(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := a.store.GetBrand(r.Context(), id); err != nil {
		a.writeError(w, err)
		return
	}
	scans, err := a.store.ListScans(r.Context(), id)
	if err != nil {
		a.writeError(w, err)
		return
	}
	if scans == nil {
		scans = []*models.Scan{}
	}
	writeJSON(w, http.StatusOK, scans)
}

func (a *App) brandThreats(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := a.store.GetBrand(r.Context(), id); err != nil {
		a.writeError(w, err)
		return
	}

	filter := models.ThreatFilter{BrandID: id}
	q := r.URL.Query()
	if v := q.Get("severity"); v != "" {
		sev, ok := models.ParseSeverity(v)
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unknown severity " + v})
			return
		}
		filter.Severity = sev
	}
	if v := q.Get("status"); v != "" {
		st, ok := models.ParseThreatStatus(v)
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unknown status " + v})
			return
		}
		filter.Status = st
	}

	threats, err := a.store.ListThreats(r.Context(), filter)
	if err != nil {
		a.writeError(w, err)
		return
	}
	if threats == nil {
		threats = []*models.Threat{}
	}
	writeJSON(w, http.StatusOK, threats)
}
