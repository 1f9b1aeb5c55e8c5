package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hakim/brandwatch/internal/alert"
	"github.com/hakim/brandwatch/internal/api"
	"github.com/hakim/brandwatch/internal/client"
	"github.com/hakim/brandwatch/internal/config"
	"github.com/hakim/brandwatch/internal/logging"
	"github.com/hakim/brandwatch/internal/models"
	"github.com/hakim/brandwatch/internal/permute"
	"github.com/hakim/brandwatch/internal/scan"
	"github.com/hakim/brandwatch/internal/storage"
)

// backend is what the commands talk to. The remote backend is the HTTP
// client; the local backend runs the same operations in-process.
type backend interface {
	CreateBrand(ctx context.Context, req api.CreateBrandRequest) (api.CreateBrandResponse, error)
	ListBrands(ctx context.Context) ([]*models.Brand, error)
	GetBrand(ctx context.Context, id string) (*models.Brand, error)
	UpdateBrand(ctx context.Context, id string, upd models.BrandUpdate) (*models.Brand, error)
	TriggerScan(ctx context.Context, req api.CreateScanRequest) (api.CreateScanResponse, error)
	ScanStatus(ctx context.Context, id string) (models.ScanStatusView, error)
	CancelScan(ctx context.Context, id string) (models.ScanStatusView, error)
	WaitForScan(ctx context.Context, id string, onUpdate func(models.ScanStatusView)) (models.ScanStatusView, error)
	ListScans(ctx context.Context, brandID string) ([]*models.Scan, error)
	ListFindings(ctx context.Context, scanID string) ([]models.Finding, error)
	ListThreats(ctx context.Context, filter models.ThreatFilter) ([]*models.Threat, error)
	SetThreatStatus(ctx context.Context, id string, to models.ThreatStatus) (*models.Threat, error)
	ReopenThreat(ctx context.Context, id string) (*models.Threat, error)
	GetAlertPolicy(ctx context.Context, userID string) (*models.AlertPolicy, error)
	PutAlertPolicy(ctx context.Context, userID string, req api.PolicyRequest) (*models.AlertPolicy, error)
	Close() error
}

type remoteBackend struct {
	*client.Client
}

func (remoteBackend) Close() error { return nil }

// openBackend returns the remote backend when --server is set and a local
// one otherwise.
func openBackend(ctx context.Context) (backend, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config not loaded. Run 'brandwatch init' first to create config")
	}
	if serverURL != "" {
		c := client.New(serverURL)
		c.PollInterval = cfg.Poll.Interval
		c.PollAttempts = cfg.Poll.MaxAttempts
		return remoteBackend{c}, nil
	}

	log, closer, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		closer.Close()
		return nil, err
	}
	return newLocalBackend(store, cfg, log, closer)
}

// localBackend drives the store and an in-process engine directly. Scans it
// starts live only as long as the command does.
type localBackend struct {
	store  recordStore
	engine *engine
	poll   config.PollConfig
	log    logrus.FieldLogger
	closer io.Closer
}

func newLocalBackend(store recordStore, c *config.Config, log logrus.FieldLogger, closer io.Closer) (*localBackend, error) {
	eng, err := newEngine(store, c, log)
	if err != nil {
		store.Close()
		return nil, err
	}
	return &localBackend{store: store, engine: eng, poll: c.Poll, log: log, closer: closer}, nil
}

func (l *localBackend) CreateBrand(ctx context.Context, req api.CreateBrandRequest) (api.CreateBrandResponse, error) {
	if strings.TrimSpace(req.OwnerID) == "" || strings.TrimSpace(req.Name) == "" {
		return api.CreateBrandResponse{}, errors.New("owner and name are required")
	}
	if _, err := permute.ParseSeed(req.Domain); err != nil {
		return api.CreateBrandResponse{}, err
	}

	b := models.NewBrand(req.OwnerID, req.Name, req.Domain)
	b.Keywords = req.Keywords
	b.SocialHandles = req.SocialHandles
	b.OwnedDomains = req.OwnedDomains
	b.CountryCode = strings.ToLower(req.CountryCode)
	if err := l.store.CreateBrand(ctx, b); err != nil {
		return api.CreateBrandResponse{}, err
	}

	resp := api.CreateBrandResponse{Brand: b}
	if !req.SkipScan {
		s, err := l.engine.manager.Trigger(ctx, scan.TriggerRequest{
			BrandID: b.ID,
			Type:    models.ScanFull,
			Trigger: models.TriggerOnboarding,
		})
		if err != nil {
			return resp, fmt.Errorf("onboarding scan: %w", err)
		}
		resp.ScanID = s.ID
	}
	return resp, nil
}

func (l *localBackend) ListBrands(ctx context.Context) ([]*models.Brand, error) {
	return l.store.ListBrands(ctx)
}

func (l *localBackend) GetBrand(ctx context.Context, id string) (*models.Brand, error) {
	return l.store.GetBrand(ctx, id)
}

func (l *localBackend) UpdateBrand(ctx context.Context, id string, upd models.BrandUpdate) (*models.Brand, error) {
	b, err := l.store.GetBrand(ctx, id)
	if err != nil {
		return nil, err
	}
	upd.Apply(b)
	if err := l.store.UpdateBrand(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (l *localBackend) TriggerScan(ctx context.Context, req api.CreateScanRequest) (api.CreateScanResponse, error) {
	s, err := l.engine.manager.Trigger(ctx, scan.TriggerRequest{
		BrandID:    req.BrandID,
		Type:       models.ScanType(req.Type),
		Trigger:    models.TriggerManual,
		Preset:     req.Preset,
		Strategies: req.Strategies,
	})
	if err != nil {
		return api.CreateScanResponse{}, err
	}
	return api.CreateScanResponse{ScanID: s.ID, Status: s.Status}, nil
}

func (l *localBackend) ScanStatus(ctx context.Context, id string) (models.ScanStatusView, error) {
	return l.engine.manager.Status(ctx, id)
}

// CancelScan only reaches scans this process runs. A scan stored as pending
// or running but unknown to the local engine belongs to another process.
func (l *localBackend) CancelScan(ctx context.Context, id string) (models.ScanStatusView, error) {
	if !l.engine.manager.Active(id) {
		v, err := l.engine.manager.Status(ctx, id)
		if err != nil {
			return v, err
		}
		if !v.Status.Terminal() {
			return v, fmt.Errorf("scan %s is %s in another process; use --server to cancel it", id, v.Status)
		}
		return v, nil
	}
	return l.engine.manager.Cancel(ctx, id)
}

func (l *localBackend) WaitForScan(ctx context.Context, id string, onUpdate func(models.ScanStatusView)) (models.ScanStatusView, error) {
	return scan.Poll(ctx, l.poll.Interval, l.poll.MaxAttempts, func(ctx context.Context) (models.ScanStatusView, error) {
		return l.engine.manager.Status(ctx, id)
	}, onUpdate)
}

func (l *localBackend) ListScans(ctx context.Context, brandID string) ([]*models.Scan, error) {
	if _, err := l.store.GetBrand(ctx, brandID); err != nil {
		return nil, err
	}
	return l.store.ListScans(ctx, brandID)
}

func (l *localBackend) ListFindings(ctx context.Context, scanID string) ([]models.Finding, error) {
	return l.store.ListFindings(ctx, scanID)
}

func (l *localBackend) ListThreats(ctx context.Context, filter models.ThreatFilter) ([]*models.Threat, error) {
	return l.store.ListThreats(ctx, filter)
}

func (l *localBackend) SetThreatStatus(ctx context.Context, id string, to models.ThreatStatus) (*models.Threat, error) {
	return l.engine.threats.SetStatus(ctx, id, to)
}

func (l *localBackend) ReopenThreat(ctx context.Context, id string) (*models.Threat, error) {
	return l.engine.threats.Reopen(ctx, id)
}

func (l *localBackend) GetAlertPolicy(ctx context.Context, userID string) (*models.AlertPolicy, error) {
	p, err := l.store.GetAlertPolicy(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		def := models.DefaultAlertPolicy(userID)
		return &def, nil
	}
	return p, err
}

func (l *localBackend) PutAlertPolicy(ctx context.Context, userID string, req api.PolicyRequest) (*models.AlertPolicy, error) {
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
		return nil, err
	}

	p := &models.AlertPolicy{
		UserID:         userID,
		Threshold:      threshold,
		EmailEnabled:   req.EmailEnabled,
		WebhookEnabled: req.WebhookEnabled,
	}
	if err := l.store.SaveAlertPolicy(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Close stops any scan still running in this process, then releases the
// store and the log file.
func (l *localBackend) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := l.engine.manager.Shutdown(ctx); err != nil {
		l.log.WithError(err).Warn("scan shutdown incomplete")
	}
	return errors.Join(l.store.Close(), l.closer.Close())
}
