package storage

import (
	"context"
	"encoding/json"

	"go.etcd.io/bbolt"

	"github.com/hakim/brandwatch/internal/models"
)

// SaveFinding records a finding against a scan, keyed by domain within a
// per-scan nested bucket.
func (s *Store) SaveFinding(_ context.Context, scanID string, f models.Finding) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.Bucket([]byte(bucketFindings)).CreateBucketIfNotExists([]byte(scanID))
		if err != nil {
			return err
		}
		return putJSON(b, f.Domain, f)
	})
}

// ListFindings returns a scan's findings ordered by domain.
func (s *Store) ListFindings(_ context.Context, scanID string) ([]models.Finding, error) {
	var out []models.Finding
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketFindings)).Bucket([]byte(scanID))
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			var f models.Finding
			if err := json.Unmarshal(v, &f); err != nil {
				return err
			}
			out = append(out, f)
			return nil
		})
	})
	return out, err
}
