package storage

import (
	"fmt"
	"sync"

	"github.com/cuemby/tabwarden/pkg/types"
)

// MemoryStore is a process-local Store. State does not survive a restart;
// it backs tests and the "memory" driver.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) SaveTimer(rec *types.TimerRecord) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := decodeList(s.data[types.ActiveTimersKey])
	if err != nil {
		return err
	}
	s.data[rec.TabID.RecordKey()] = data
	if ids, changed := addID(ids, rec.TabID); changed {
		return s.putListLocked(ids)
	}
	return nil
}

func (s *MemoryStore) UpdateTimer(rec *types.TimerRecord) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[rec.TabID.RecordKey()] = data
	return nil
}

func (s *MemoryStore) GetTimer(id types.TabID) (*types.TimerRecord, error) {
	s.mu.Lock()
	data, ok := s.data[id.RecordKey()]
	s.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return decodeRecord(data)
}

func (s *MemoryStore) DeleteTimer(id types.TabID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, id.RecordKey())
	return s.removeLocked(id)
}

func (s *MemoryStore) ListActive() ([]types.TabID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return decodeList(s.data[types.ActiveTimersKey])
}

// PutRaw writes a raw value under key. Tests use it to seed records that
// the typed API would never produce.
func (s *MemoryStore) PutRaw(key string, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

func (s *MemoryStore) removeLocked(id types.TabID) error {
	ids, err := decodeList(s.data[types.ActiveTimersKey])
	if err != nil {
		return err
	}
	if ids, changed := removeID(ids, id); changed {
		return s.putListLocked(ids)
	}
	return nil
}

func (s *MemoryStore) putListLocked(ids []types.TabID) error {
	data, err := encodeList(ids)
	if err != nil {
		return err
	}
	s.data[types.ActiveTimersKey] = data
	return nil
}
