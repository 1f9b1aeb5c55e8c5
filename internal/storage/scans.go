package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"go.etcd.io/bbolt"

	"github.com/hakim/brandwatch/internal/models"
)

// SaveScan persists a scan record and indexes it under its brand
func (s *Store) SaveScan(_ context.Context, scan *models.Scan) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := putJSON(tx.Bucket([]byte(bucketScans)), scan.ID, scan); err != nil {
			return err
		}
		return appendIndex(tx.Bucket([]byte(bucketScanIndex)), scan.BrandID, scan.ID)
	})
}

// GetScan retrieves a scan record by ID
func (s *Store) GetScan(_ context.Context, id string) (*models.Scan, error) {
	var scan models.Scan
	err := s.db.View(func(tx *bbolt.Tx) error {
		return getJSON(tx.Bucket([]byte(bucketScans)), id, &scan)
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", id, err)
	}
	return &scan, nil
}

// ListScans retrieves all scans for a brand, newest first
func (s *Store) ListScans(_ context.Context, brandID string) ([]*models.Scan, error) {
	var scans []*models.Scan

	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucketScanIndex)).Get([]byte(brandID))
		if data == nil {
			return nil
		}

		var scanIDs []string
		if err := json.Unmarshal(data, &scanIDs); err != nil {
			return err
		}

		scansBucket := tx.Bucket([]byte(bucketScans))
		for _, id := range scanIDs {
			var scan models.Scan
			if err := getJSON(scansBucket, id, &scan); err != nil {
				continue
			}
			scans = append(scans, &scan)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(scans, func(i, j int) bool {
		return scans[i].CreatedAt.After(scans[j].CreatedAt)
	})
	return scans, nil
}

// ListScansByStatus returns every scan in one of the given states. Used at
// startup to find scans interrupted by a restart.
func (s *Store) ListScansByStatus(_ context.Context, statuses ...models.ScanStatus) ([]*models.Scan, error) {
	want := make(map[models.ScanStatus]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}

	var out []*models.Scan
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketScans)).ForEach(func(_, v []byte) error {
			var scan models.Scan
			if err := json.Unmarshal(v, &scan); err != nil {
				return err
			}
			if want[scan.Status] {
				out = append(out, &scan)
			}
			return nil
		})
	})
	return out, err
}
