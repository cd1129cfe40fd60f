package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cuemby/tabwarden/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketState = []byte("state")
)

// BoltStore implements Store interface using BoltDB
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates a new BoltDB-backed store
func NewBoltStore(dataDir string) (*BoltStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "tabwarden.db")

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Create buckets
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketState); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketState, err)
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) SaveTimer(rec *types.TimerRecord) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketState)
		if err := b.Put([]byte(rec.TabID.RecordKey()), data); err != nil {
			return err
		}

		ids, err := decodeList(b.Get([]byte(types.ActiveTimersKey)))
		if err != nil {
			return err
		}
		ids, changed := addID(ids, rec.TabID)
		if !changed {
			return nil
		}
		return putList(b, ids)
	})
}

func (s *BoltStore) UpdateTimer(rec *types.TimerRecord) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketState)
		return b.Put([]byte(rec.TabID.RecordKey()), data)
	})
}

func (s *BoltStore) GetTimer(id types.TabID) (*types.TimerRecord, error) {
	var rec *types.TimerRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketState)
		data := b.Get([]byte(id.RecordKey()))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		var err error
		rec, err = decodeRecord(data)
		return err
	})
	return rec, err
}

func (s *BoltStore) DeleteTimer(id types.TabID) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketState)
		if err := b.Delete([]byte(id.RecordKey())); err != nil {
			return err
		}
		return removeFromList(b, id)
	})
}

func (s *BoltStore) ListActive() ([]types.TabID, error) {
	var ids []types.TabID
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketState)
		var err error
		ids, err = decodeList(b.Get([]byte(types.ActiveTimersKey)))
		return err
	})
	return ids, err
}

func removeFromList(b *bolt.Bucket, id types.TabID) error {
	ids, err := decodeList(b.Get([]byte(types.ActiveTimersKey)))
	if err != nil {
		return err
	}
	ids, changed := removeID(ids, id)
	if !changed {
		return nil
	}
	return putList(b, ids)
}

func putList(b *bolt.Bucket, ids []types.TabID) error {
	data, err := encodeList(ids)
	if err != nil {
		return err
	}
	return b.Put([]byte(types.ActiveTimersKey), data)
}
