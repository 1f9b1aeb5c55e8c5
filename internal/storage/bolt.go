package storage

import (
	"encoding/json"
	"errors"
	"time"

	"go.etcd.io/bbolt"
)

// ErrNotFound is returned when a record does not exist. Every store
// implementation returns it so callers can use errors.Is.
var ErrNotFound = errors.New("not found")

const (
	bucketBrands     = "brands"
	bucketScans      = "scans"
	bucketScanIndex  = "scan_index"
	bucketThreats    = "threats"
	bucketThreatKeys = "threat_keys"
	bucketPolicies   = "alert_policies"
	bucketFindings   = "findings"
)

var allBuckets = []string{
	bucketBrands,
	bucketScans,
	bucketScanIndex,
	bucketThreats,
	bucketThreatKeys,
	bucketPolicies,
	bucketFindings,
}

// Store wraps a bbolt database holding brands, scans, threats, alert
// policies and per-scan findings. Values are JSON.
type Store struct {
	db *bbolt.DB
}

// NewStore opens a bbolt database at the given path and initializes required buckets
func NewStore(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the bbolt database
func (s *Store) Close() error {
	return s.db.Close()
}

func putJSON(b *bbolt.Bucket, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put([]byte(key), data)
}

func getJSON(b *bbolt.Bucket, key string, v any) error {
	data := b.Get([]byte(key))
	if data == nil {
		return ErrNotFound
	}
	return json.Unmarshal(data, v)
}

// appendIndex adds id to the JSON string list stored under key.
func appendIndex(b *bbolt.Bucket, key, id string) error {
	var ids []string
	if existing := b.Get([]byte(key)); existing != nil {
		if err := json.Unmarshal(existing, &ids); err != nil {
			return err
		}
	}
	for _, existing := range ids {
		if existing == id {
			return nil
		}
	}
	ids = append(ids, id)
	return putJSON(b, key, ids)
}
