package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/cuemby/tabwarden/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 10, 13, 10, 30, 0, 0, time.UTC)

// backends returns one fresh store per driver
func backends(t *testing.T) map[string]Store {
	t.Helper()

	bolt, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { bolt.Close() })

	sqlite, err := NewSQLiteStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	return map[string]Store{
		DriverBolt:   bolt,
		DriverSQLite: sqlite,
		DriverMemory: NewMemoryStore(),
	}
}

func TestSaveAndGetTimer(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			rec := types.NewTimerRecord("7", 5*time.Second, epoch)
			require.NoError(t, store.SaveTimer(rec))

			got, err := store.GetTimer("7")
			require.NoError(t, err)
			assert.Equal(t, rec, got)

			ids, err := store.ListActive()
			require.NoError(t, err)
			assert.Equal(t, []types.TabID{"7"}, ids)
		})
	}
}

func TestSaveTimerDeduplicatesActiveList(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.SaveTimer(types.NewTimerRecord("1", time.Second, epoch)))
			require.NoError(t, store.SaveTimer(types.NewTimerRecord("2", time.Second, epoch)))
			require.NoError(t, store.SaveTimer(types.NewTimerRecord("1", 10*time.Second, epoch)))

			ids, err := store.ListActive()
			require.NoError(t, err)
			assert.Equal(t, []types.TabID{"1", "2"}, ids)

			got, err := store.GetTimer("1")
			require.NoError(t, err)
			assert.Equal(t, int64(10000), got.Interval)
		})
	}
}

func TestUpdateTimerLeavesActiveList(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			rec := types.NewTimerRecord("3", 30*time.Second, epoch)
			require.NoError(t, store.SaveTimer(rec))

			rec.StartTime = epoch.Add(30 * time.Second).UnixMilli()
			rec.LastReload = rec.StartTime
			require.NoError(t, store.UpdateTimer(rec))

			got, err := store.GetTimer("3")
			require.NoError(t, err)
			assert.Equal(t, rec.StartTime, got.StartTime)
			assert.Equal(t, rec.LastReload, got.LastReload)

			ids, err := store.ListActive()
			require.NoError(t, err)
			assert.Equal(t, []types.TabID{"3"}, ids)
		})
	}
}

func TestDeleteTimer(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.SaveTimer(types.NewTimerRecord("1", time.Second, epoch)))
			require.NoError(t, store.SaveTimer(types.NewTimerRecord("2", time.Second, epoch)))

			require.NoError(t, store.DeleteTimer("1"))

			_, err := store.GetTimer("1")
			assert.ErrorIs(t, err, ErrNotFound)

			ids, err := store.ListActive()
			require.NoError(t, err)
			assert.Equal(t, []types.TabID{"2"}, ids)

			// Deleting an unknown tab is a no-op
			assert.NoError(t, store.DeleteTimer("1"))
			assert.NoError(t, store.DeleteTimer("99"))
		})
	}
}

func TestDeleteTimerKeepsListOrder(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for _, id := range []types.TabID{"1", "2", "3"} {
				require.NoError(t, store.SaveTimer(types.NewTimerRecord(id, time.Second, epoch)))
			}

			require.NoError(t, store.DeleteTimer("2"))

			ids, err := store.ListActive()
			require.NoError(t, err)
			assert.Equal(t, []types.TabID{"1", "3"}, ids)

			_, err = store.GetTimer("3")
			assert.NoError(t, err)
		})
	}
}

func TestGetTimerNotFound(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.GetTimer("missing")
			assert.ErrorIs(t, err, ErrNotFound)

			ids, err := store.ListActive()
			require.NoError(t, err)
			assert.Empty(t, ids)
		})
	}
}

func TestSaveTimerRejectsEmptyTabID(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, store.SaveTimer(&types.TimerRecord{Active: true, Interval: 1000}))
			assert.Error(t, store.SaveTimer(nil))
		})
	}
}

func TestBoltStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := NewBoltStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.SaveTimer(types.NewTimerRecord("7", 10*time.Second, epoch)))
	require.NoError(t, store.Close())

	reopened, err := NewBoltStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetTimer("7")
	require.NoError(t, err)
	assert.Equal(t, epoch.UnixMilli(), got.StartTime)
	assert.FileExists(t, filepath.Join(dir, "tabwarden.db"))
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := NewSQLiteStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.SaveTimer(types.NewTimerRecord("7", 10*time.Second, epoch)))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	ids, err := reopened.ListActive()
	require.NoError(t, err)
	assert.Equal(t, []types.TabID{"7"}, ids)
}

func TestOpen(t *testing.T) {
	tests := []struct {
		driver  string
		wantErr bool
	}{
		{driver: DriverBolt},
		{driver: ""},
		{driver: DriverSQLite},
		{driver: DriverMemory},
		{driver: "redis", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			store, err := Open(tt.driver, t.TempDir())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NoError(t, store.Close())
		})
	}
}

func TestMemoryStoreCorruptList(t *testing.T) {
	store := NewMemoryStore()
	store.PutRaw(types.ActiveTimersKey, []byte("not json"))

	_, err := store.ListActive()
	assert.Error(t, err)
}
