package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"go.etcd.io/bbolt"

	"github.com/hakim/brandwatch/internal/models"
)

// CreateBrand stores a new brand.
func (s *Store) CreateBrand(_ context.Context, b *models.Brand) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		brands := tx.Bucket([]byte(bucketBrands))
		if brands.Get([]byte(b.ID)) != nil {
			return fmt.Errorf("brand %s already exists", b.ID)
		}
		return putJSON(brands, b.ID, b)
	})
}

// UpdateBrand overwrites an existing brand.
func (s *Store) UpdateBrand(_ context.Context, b *models.Brand) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		brands := tx.Bucket([]byte(bucketBrands))
		if brands.Get([]byte(b.ID)) == nil {
			return fmt.Errorf("brand %s: %w", b.ID, ErrNotFound)
		}
		return putJSON(brands, b.ID, b)
	})
}

// GetBrand retrieves a brand by ID
func (s *Store) GetBrand(_ context.Context, id string) (*models.Brand, error) {
	var b models.Brand
	err := s.db.View(func(tx *bbolt.Tx) error {
		return getJSON(tx.Bucket([]byte(bucketBrands)), id, &b)
	})
	if err != nil {
		return nil, fmt.Errorf("brand %s: %w", id, err)
	}
	return &b, nil
}

// ListBrands returns every brand ordered by name.
func (s *Store) ListBrands(_ context.Context) ([]*models.Brand, error) {
	var out []*models.Brand
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketBrands)).ForEach(func(_, v []byte) error {
			var b models.Brand
			if err := json.Unmarshal(v, &b); err != nil {
				return err
			}
			out = append(out, &b)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
