package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hakim/brandwatch/internal/models"
	"github.com/hakim/brandwatch/internal/scan"
)

// CreateScanRequest is the body of POST /api/v1/scans.
type CreateScanRequest struct {
	BrandID    string   `json:"brand_id"`
	Type       string   `json:"type,omitempty"`
	Preset     string   `json:"preset,omitempty"`
	Strategies []string `json:"strategies,omitempty"`
}

// CreateScanResponse is returned with 202 Accepted.
type CreateScanResponse struct {
	ScanID string            `json:"scan_id"`
	Status models.ScanStatus `json:"status"`
}

func (a *App) createScan(w http.ResponseWriter, r *http.Request) {
	var req CreateScanRequest
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return
	}
	if req.BrandID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "brand_id is required"})
		return
	}
	if req.Type == "" {
		req.Type = string(models.ScanFull)
	}

	s, err := a.engine.Trigger(r.Context(), scan.TriggerRequest{
		BrandID:    req.BrandID,
		Type:       models.ScanType(req.Type),
		Trigger:    models.TriggerManual,
		Preset:     req.Preset,
		Strategies: req.Strategies,
	})
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, CreateScanResponse{ScanID: s.ID, Status: s.Status})
}

func (a *App) getScan(w http.ResponseWriter, r *http.Request) {
	v, err := a.engine.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (a *App) cancelScan(w http.ResponseWriter, r *http.Request) {
	v, err := a.engine.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (a *App) scanFindings(w http.ResponseWriter, r *http.Request) {
	findings, err := a.store.ListFindings(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	if findings == nil {
		findings = []models.Finding{}
	}
	writeJSON(w, http.StatusOK, findings)
}

// streamScan sends a progress event whenever the scan's view changes and a
// final done event once it is terminal.
func (a *App) streamScan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	view, err := a.engine.Status(r.Context(), id)
	if err != nil {
		a.writeError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "stream unsupported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	send := func(event string, v models.ScanStatusView) bool {
		data, err := json.Marshal(v)
		if err != nil {
			return false
		}
		if _, err := w.Write([]byte("event: " + event + "\ndata: " + string(data) + "\n\n")); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	ticker := time.NewTicker(a.StreamInterval)
	defer ticker.Stop()

	last := view
	if !send("progress", view) {
		return
	}
	for !last.Status.Terminal() {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
		v, err := a.engine.Status(r.Context(), id)
		if err != nil {
			return
		}
		if progressed(last, v) && !send("progress", v) {
			return
		}
		last = v
	}
	send("done", last)
}

func progressed(prev, cur models.ScanStatusView) bool {
	return prev.Status != cur.Status ||
		prev.DomainsChecked != cur.DomainsChecked ||
		prev.PagesScanned != cur.PagesScanned ||
		prev.ThreatsFound != cur.ThreatsFound ||
		prev.Candidates != cur.Candidates
}
