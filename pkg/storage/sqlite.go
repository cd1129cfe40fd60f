package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Register the sqlite database/sql driver.

	"github.com/cuemby/tabwarden/pkg/types"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS kv (
	key TEXT PRIMARY KEY,
	value BLOB NOT NULL
);`

// SQLiteStore implements Store on a single key/value table
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) tabwarden.sqlite in dataDir
func NewSQLiteStore(dataDir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	dsn := filepath.Join(dataDir, "tabwarden.sqlite") + "?_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite behaves best with a single connection for this workload.
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveTimer(rec *types.TimerRecord) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	return s.withTx(func(tx *sql.Tx) error {
		if err := putKey(tx, rec.TabID.RecordKey(), data); err != nil {
			return err
		}
		ids, err := getList(tx)
		if err != nil {
			return err
		}
		ids, changed := addID(ids, rec.TabID)
		if !changed {
			return nil
		}
		return setList(tx, ids)
	})
}

func (s *SQLiteStore) UpdateTimer(rec *types.TimerRecord) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	return s.withTx(func(tx *sql.Tx) error {
		return putKey(tx, rec.TabID.RecordKey(), data)
	})
}

func (s *SQLiteStore) GetTimer(id types.TabID) (*types.TimerRecord, error) {
	var data []byte
	err := s.db.QueryRowContext(context.Background(),
		"SELECT value FROM kv WHERE key = ?", id.RecordKey()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load timer record: %w", err)
	}
	return decodeRecord(data)
}

func (s *SQLiteStore) DeleteTimer(id types.TabID) error {
	return s.withTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM kv WHERE key = ?", id.RecordKey()); err != nil {
			return fmt.Errorf("delete timer record: %w", err)
		}
		return dropFromList(tx, id)
	})
}

func (s *SQLiteStore) ListActive() ([]types.TabID, error) {
	var ids []types.TabID
	err := s.withTx(func(tx *sql.Tx) error {
		var err error
		ids, err = getList(tx)
		return err
	})
	return ids, err
}

func (s *SQLiteStore) withTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func putKey(tx *sql.Tx, key string, value []byte) error {
	_, err := tx.Exec(`INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func getList(tx *sql.Tx) ([]types.TabID, error) {
	var data []byte
	err := tx.QueryRow("SELECT value FROM kv WHERE key = ?", types.ActiveTimersKey).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", types.ActiveTimersKey, err)
	}
	return decodeList(data)
}

func setList(tx *sql.Tx, ids []types.TabID) error {
	data, err := encodeList(ids)
	if err != nil {
		return err
	}
	return putKey(tx, types.ActiveTimersKey, data)
}

func dropFromList(tx *sql.Tx, id types.TabID) error {
	ids, err := getList(tx)
	if err != nil {
		return err
	}
	ids, changed := removeID(ids, id)
	if !changed {
		return nil
	}
	return setList(tx, ids)
}
