package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"go.etcd.io/bbolt"

	"github.com/hakim/brandwatch/internal/models"
)

func threatKey(brandID, domain string) string {
	return brandID + "\x00" + domain
}

// GetThreat retrieves a threat by ID
func (s *Store) GetThreat(_ context.Context, id string) (*models.Threat, error) {
	var t models.Threat
	err := s.db.View(func(tx *bbolt.Tx) error {
		return getJSON(tx.Bucket([]byte(bucketThreats)), id, &t)
	})
	if err != nil {
		return nil, fmt.Errorf("threat %s: %w", id, err)
	}
	return &t, nil
}

// UpdateThreatByKey runs fn against the threat stored for (brandID, domain),
// or nil if there is none, inside one write transaction. A nil return from
// fn leaves the store untouched; otherwise the returned threat is written.
// The key index guarantees one threat per pair.
func (s *Store) UpdateThreatByKey(_ context.Context, brandID, domain string, fn func(cur *models.Threat) (*models.Threat, error)) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		threats := tx.Bucket([]byte(bucketThreats))
		keys := tx.Bucket([]byte(bucketThreatKeys))
		key := []byte(threatKey(brandID, domain))

		var cur *models.Threat
		if id := keys.Get(key); id != nil {
			var t models.Threat
			if err := getJSON(threats, string(id), &t); err != nil {
				return err
			}
			cur = &t
		}

		next, err := fn(cur)
		if err != nil || next == nil {
			return err
		}
		if cur != nil && next.ID != cur.ID {
			return fmt.Errorf("threat %s/%s: id changed from %s to %s", brandID, domain, cur.ID, next.ID)
		}
		if err := putJSON(threats, next.ID, next); err != nil {
			return err
		}
		return keys.Put(key, []byte(next.ID))
	})
}

// ListThreats returns threats matching the filter, highest score first.
func (s *Store) ListThreats(_ context.Context, filter models.ThreatFilter) ([]*models.Threat, error) {
	var out []*models.Threat
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketThreats)).ForEach(func(_, v []byte) error {
			var t models.Threat
			if err := json.Unmarshal(v, &t); err != nil {
				return err
			}
			if filter.Match(&t) {
				out = append(out, &t)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sortThreats(out)
	return out, nil
}

func sortThreats(ts []*models.Threat) {
	sort.Slice(ts, func(i, j int) bool {
		if ts[i].Score != ts[j].Score {
			return ts[i].Score > ts[j].Score
		}
		return ts[i].Domain < ts[j].Domain
	})
}
