// Package futurestore implements the local durable index of outstanding
// futures: a single-file embedded database keyed by request id, plus a
// secondary cache-fingerprint index used by opt-in idempotent sends.
package futurestore

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	bucketFutures = "futures"
	bucketCache   = "cache"
)

// Record is the persisted shape of a future: everything the in-memory
// Future handle needs to be reconstructed after a process restart.
type Record struct {
	ID               string    `json:"id"`
	URL              string    `json:"url"`
	ResponsePath     string    `json:"response_path"`
	RejectionPath    string    `json:"rejection_path"`
	CacheKey         string    `json:"cache_key,omitempty"`
	Created          time.Time `json:"created"`
	Expires          time.Time `json:"expires"`
	Resolved         bool      `json:"resolved"`
}

// Store wraps a bbolt database file holding the future index.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if necessary) the future store at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("futurestore: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(bucketFutures)); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists([]byte(bucketCache))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("futurestore: init buckets: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Register inserts a new future record, and indexes it under its cache
// key if one is set.
func (s *Store) Register(r Record) error {
	enc, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("futurestore: encode record: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket([]byte(bucketFutures)).Put([]byte(r.ID), enc); err != nil {
			return err
		}
		if r.CacheKey != "" {
			if err := tx.Bucket([]byte(bucketCache)).Put([]byte(r.CacheKey), []byte(r.ID)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Lookup returns the record for id, and whether it was found.
func (s *Store) Lookup(id string) (Record, bool, error) {
	var rec Record
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucketFutures)).Get([]byte(id))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &rec)
	})
	if err != nil {
		return Record{}, false, fmt.Errorf("futurestore: lookup %s: %w", id, err)
	}
	return rec, found, nil
}

// LookupByCacheKey resolves a caching-mode fingerprint to its future
// record, used by send to decide whether to reuse an existing in-flight
// request instead of minting a new one.
func (s *Store) LookupByCacheKey(key string) (Record, bool, error) {
	var id string
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucketCache)).Get([]byte(key))
		if v != nil {
			id = string(v)
		}
		return nil
	})
	if err != nil {
		return Record{}, false, fmt.Errorf("futurestore: cache lookup %s: %w", key, err)
	}
	if id == "" {
		return Record{}, false, nil
	}
	return s.Lookup(id)
}

// ListPending returns every record that is neither resolved nor expired
// as of now.
func (s *Store) ListPending(now time.Time) ([]Record, error) {
	var pending []Record
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(bucketFutures)).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			if !rec.Resolved && now.Before(rec.Expires) {
				pending = append(pending, rec)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("futurestore: list pending: %w", err)
	}
	return pending, nil
}

// MarkResolved flips a record's resolved flag.
func (s *Store) MarkResolved(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketFutures))
		v := bucket.Get([]byte(id))
		if v == nil {
			return fmt.Errorf("futurestore: no such future %s", id)
		}
		var rec Record
		if err := json.Unmarshal(v, &rec); err != nil {
			return err
		}
		rec.Resolved = true
		enc, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(id), enc)
	})
}

// Drop removes a future record and its cache index entry, if any.
func (s *Store) Drop(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketFutures))
		v := bucket.Get([]byte(id))
		if v != nil {
			var rec Record
			if err := json.Unmarshal(v, &rec); err == nil && rec.CacheKey != "" {
				_ = tx.Bucket([]byte(bucketCache)).Delete([]byte(rec.CacheKey))
			}
		}
		return bucket.Delete([]byte(id))
	})
}
