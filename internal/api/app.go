// Package api exposes brands, scans, threats and alert policies over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/hakim/brandwatch/internal/alert"
	"github.com/hakim/brandwatch/internal/models"
	"github.com/hakim/brandwatch/internal/permute"
	"github.com/hakim/brandwatch/internal/scan"
	"github.com/hakim/brandwatch/internal/storage"
	"github.com/hakim/brandwatch/internal/threat"
)

// Store is the persistence the API reads and writes directly.
type Store interface {
	CreateBrand(ctx context.Context, b *models.Brand) error
	UpdateBrand(ctx context.Context, b *models.Brand) error
	GetBrand(ctx context.Context, id string) (*models.Brand, error)
	ListBrands(ctx context.Context) ([]*models.Brand, error)
	ListScans(ctx context.Context, brandID string) ([]*models.Scan, error)
	ListThreats(ctx context.Context, filter models.ThreatFilter) ([]*models.Threat, error)
	ListFindings(ctx context.Context, scanID string) ([]models.Finding, error)
	GetAlertPolicy(ctx context.Context, userID string) (*models.AlertPolicy, error)
	SaveAlertPolicy(ctx context.Context, p *models.AlertPolicy) error
}

// Engine starts, inspects and cancels scans.
type Engine interface {
	Trigger(ctx context.Context, req scan.TriggerRequest) (*models.Scan, error)
	Status(ctx context.Context, id string) (models.ScanStatusView, error)
	Cancel(ctx context.Context, id string) (models.ScanStatusView, error)
}

// Workflow applies analyst threat status changes.
type Workflow interface {
	SetStatus(ctx context.Context, id string, to models.ThreatStatus) (*models.Threat, error)
	Reopen(ctx context.Context, id string) (*models.Threat, error)
}

type App struct {
	store   Store
	engine  Engine
	threats Workflow
	log     logrus.FieldLogger

	// StreamInterval is how often the events stream samples scan progress.
	StreamInterval time.Duration
}

func NewApp(store Store, engine Engine, threats Workflow, logger logrus.FieldLogger) *App {
	return &App{store: store, engine: engine, threats: threats, log: logger, StreamInterval: time.Second}
}

func (a *App) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { writeText(w, http.StatusOK, "ok\n") })

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/brands", a.createBrand)
		r.Get("/brands", a.listBrands)
		r.Get("/brands/{id}", a.getBrand)
		r.Put("/brands/{id}", a.updateBrand)
		r.Get("/brands/{id}/scans", a.brandScans)
		r.Get("/brands/{id}/threats", a.brandThreats)

		r.Post("/scans", a.createScan)
		r.Get("/scans/{id}", a.getScan)
		r.Post("/scans/{id}/cancel", a.cancelScan)
		r.Get("/scans/{id}/events", a.streamScan)
		r.Get("/scans/{id}/findings", a.scanFindings)

		r.Patch("/threats/{id}", a.setThreatStatus)
		r.Post("/threats/{id}/reopen", a.reopenThreat)

		r.Get("/users/{id}/alert-policy", a.getAlertPolicy)
		r.Put("/users/{id}/alert-policy", a.putAlertPolicy)
	})
	return r
}

// writeError maps engine errors onto status codes.
func (a *App) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, scan.ErrUnknownScanType),
		errors.Is(err, permute.ErrUnknownStrategy),
		errors.Is(err, permute.ErrInvalidSeed),
		errors.Is(err, alert.ErrUnknownThreshold):
		status = http.StatusBadRequest
	case errors.Is(err, threat.ErrInvalidTransition), errors.Is(err, threat.ErrTerminal):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		a.log.WithError(err).Error("request failed")
	}
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, status int, s string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(s))
}
