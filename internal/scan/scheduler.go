package scan

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hakim/brandwatch/internal/models"
)

// BrandLister lists every brand the scheduler should cover and the scan
// history it uses to pick the scan type.
type BrandLister interface {
	ListBrands(ctx context.Context) ([]*models.Brand, error)
	ListScans(ctx context.Context, brandID string) ([]*models.Scan, error)
}

// Scheduler triggers scans for every brand on a fixed interval. A brand
// gets a full scan when it has no completed full scan newer than
// FullInterval, and an incremental scan otherwise; a zero FullInterval
// schedules incremental scans only. Brands that already have
// a scan in progress are skipped for that tick.
type Scheduler struct {
	Manager      *Manager
	Brands       BrandLister
	Interval     time.Duration
	FullInterval time.Duration
	Logger       logrus.FieldLogger

	// Now is stubbed in tests.
	Now func() time.Time
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	if s.Interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one scheduling round and returns the number of scans started.
func (s *Scheduler) Tick(ctx context.Context) int {
	brands, err := s.Brands.ListBrands(ctx)
	if err != nil {
		s.Logger.WithError(err).Warn("scheduler: list brands failed")
		return 0
	}
	started := 0
	for _, b := range brands {
		if s.Manager.ActiveForBrand(b.ID) {
			continue
		}
		if _, err := s.Manager.Trigger(ctx, TriggerRequest{
			BrandID: b.ID,
			Type:    s.scanType(ctx, b.ID),
			Trigger: models.TriggerScheduled,
		}); err != nil {
			s.Logger.WithError(err).WithField("brand_id", b.ID).Warn("scheduler: trigger failed")
			continue
		}
		started++
	}
	return started
}

func (s *Scheduler) scanType(ctx context.Context, brandID string) models.ScanType {
	if s.FullInterval <= 0 {
		return models.ScanIncremental
	}
	scans, err := s.Brands.ListScans(ctx, brandID)
	if err != nil {
		s.Logger.WithError(err).WithField("brand_id", brandID).Warn("scheduler: list scans failed")
		return models.ScanIncremental
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	cutoff := now().Add(-s.FullInterval)
	for _, sc := range scans {
		if sc.Type != models.ScanFull || sc.Status != models.StatusCompleted || sc.CompletedAt == nil {
			continue
		}
		if sc.CompletedAt.After(cutoff) {
			return models.ScanIncremental
		}
	}
	return models.ScanFull
}
