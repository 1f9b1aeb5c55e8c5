package storage

import (
	"context"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/hakim/brandwatch/internal/models"
)

// GetAlertPolicy returns the saved policy for a user, or ErrNotFound.
func (s *Store) GetAlertPolicy(_ context.Context, userID string) (*models.AlertPolicy, error) {
	var p models.AlertPolicy
	err := s.db.View(func(tx *bbolt.Tx) error {
		return getJSON(tx.Bucket([]byte(bucketPolicies)), userID, &p)
	})
	if err != nil {
		return nil, fmt.Errorf("alert policy %s: %w", userID, err)
	}
	return &p, nil
}

// SaveAlertPolicy stores a user's policy.
func (s *Store) SaveAlertPolicy(_ context.Context, p *models.AlertPolicy) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return putJSON(tx.Bucket([]byte(bucketPolicies)), p.UserID, p)
	})
}
