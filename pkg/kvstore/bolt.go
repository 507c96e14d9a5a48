package kvstore

import (
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

var bucketEntries = []byte("entries")

// BoltStore is the default backing store engine, a single-bucket bbolt
// database keyed by binary blobs. The file lives for one run only, so
// NoSync is enabled; durability across crashes is explicitly not a goal.
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt creates a bbolt-backed store inside dir.
func OpenBolt(dir string) (Store, error) {
	db, err := bolt.Open(filepath.Join(dir, "spill.db"), 0o644, &bolt.Options{NoSync: true})
	if err != nil {
		return nil, fmt.Errorf("open bolt store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketEntries)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create entries bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Get(key []byte) ([]byte, bool, error) {
	var value []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketEntries).Get(key)
		if v != nil {
			// v is only valid inside the transaction
			value = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("bolt get: %w", err)
	}
	return value, value != nil, nil
}

func (s *BoltStore) Put(key, value []byte) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEntries).Put(key, value)
	})
	if err != nil {
		return fmt.Errorf("bolt put: %w", err)
	}
	return nil
}

func (s *BoltStore) Contains(key []byte) (bool, error) {
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(bucketEntries).Get(key) != nil
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("bolt contains: %w", err)
	}
	return found, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

var _ Store = (*BoltStore)(nil)
