package storage

import (
	"errors"
	"fmt"

	"github.com/cuemby/tabwarden/pkg/types"
)

// ErrNotFound is returned when a tab has no stored TimerRecord
var ErrNotFound = errors.New("timer record not found")

// Supported backend drivers
const (
	DriverBolt   = "bolt"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Store defines the interface for persisted timer state. It models a flat
// key-value store holding one record per tab plus the activeTimers list.
type Store interface {
	// SaveTimer writes the record and adds its tab to the active list
	// in a single batch
	SaveTimer(rec *types.TimerRecord) error
	// UpdateTimer rewrites the record only
	UpdateTimer(rec *types.TimerRecord) error
	GetTimer(id types.TabID) (*types.TimerRecord, error)
	// DeleteTimer removes the record and the tab's active list entry
	// in a single batch
	DeleteTimer(id types.TabID) error

	// ListActive returns the activeTimers list in insertion order
	ListActive() ([]types.TabID, error)

	// Utility
	Close() error
}

// Open creates the store selected by driver. dataDir is ignored by the
// memory driver.
func Open(driver, dataDir string) (Store, error) {
	switch driver {
	case DriverBolt, "":
		return NewBoltStore(dataDir)
	case DriverSQLite:
		return NewSQLiteStore(dataDir)
	case DriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", driver)
	}
}
