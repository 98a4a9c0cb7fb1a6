package syncqueue

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const defaultBucket = "profile_sync"

// ErrMissingUser is returned when a pending entry has no user id to key it by.
var ErrMissingUser = errors.New("syncqueue: pending entry without user id")

// Store persists pending profile upserts in a BoltDB file so they survive
// restarts while Postgres is unreachable.
type Store struct {
	db     *bolt.DB
	bucket []byte
}

// Open initializes the BoltDB file and ensures the bucket exists.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	bucket := []byte(defaultBucket)
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, bucket: bucket}, nil
}

// Put stores p, replacing any pending entry for the same user.
func (s *Store) Put(p Pending) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	if p.UserID == "" {
		return ErrMissingUser
	}
	p.normalize()

	payload, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(p.UserID), payload)
	})
}

// Batch returns up to limit entries without removing them.
func (s *Store) Batch(limit int) ([]Pending, error) {
	if s == nil || s.db == nil {
		return nil, bolt.ErrDatabaseNotOpen
	}
	if limit <= 0 {
		limit = 50
	}

	var items []Pending
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(s.bucket).Cursor()
		for k, v := c.First(); k != nil && len(items) < limit; k, v = c.Next() {
			var p Pending
			if err := json.Unmarshal(v, &p); err != nil {
				continue
			}
			items = append(items, p)
		}
		return nil
	})
	return items, err
}

// Settle resolves an entry previously read with Batch. If the stored entry
// for p.UserID still has p's QueuedAt, it is replaced by next, or deleted
// when next is nil. Otherwise a newer profile was queued meanwhile and
// nothing changes; the result reports whether the entry was settled.
func (s *Store) Settle(p Pending, next *Pending) (bool, error) {
	if s == nil || s.db == nil {
		return false, bolt.ErrDatabaseNotOpen
	}
	var payload []byte
	if next != nil {
		if next.UserID != p.UserID {
			return false, ErrMissingUser
		}
		next.normalize()
		var err error
		if payload, err = json.Marshal(next); err != nil {
			return false, err
		}
	}

	var settled bool
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		key := []byte(p.UserID)
		v := b.Get(key)
		if v == nil {
			return nil
		}
		var current Pending
		if err := json.Unmarshal(v, &current); err != nil {
			return err
		}
		if !current.QueuedAt.Equal(p.QueuedAt) {
			return nil
		}
		settled = true
		if payload == nil {
			return b.Delete(key)
		}
		return b.Put(key, payload)
	})
	return settled && err == nil, err
}

// Len returns the number of pending entries.
func (s *Store) Len() (int, error) {
	if s == nil || s.db == nil {
		return 0, bolt.ErrDatabaseNotOpen
	}
	var count int
	err := s.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(s.bucket).Stats().KeyN
		return nil
	})
	return count, err
}

// Prune removes entries queued before olderThan and reports how many went.
func (s *Store) Prune(olderThan time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, bolt.ErrDatabaseNotOpen
	}
	var removed int
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		var stale [][]byte
		// Deleting through the cursor mid-iteration can skip keys.
		if err := b.ForEach(func(k, v []byte) error {
			var p Pending
			if err := json.Unmarshal(v, &p); err != nil || p.QueuedAt.Before(olderThan) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		}); err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})
	return removed, err
}

// Close closes the Bolt database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
