/*
Package storage provides persistence for tabwarden timer state.

The rest of the system treats storage as an abstract key-value store that
survives process restarts. Three backends implement the Store interface with
identical semantics:

  - BoltStore: embedded bbolt file (tabwarden.db), the default
  - SQLiteStore: single kv table in tabwarden.sqlite (modernc.org/sqlite)
  - MemoryStore: process-local map, for tests and throwaway sessions

# Data Model

All backends share one flat key space:

	tab_<tabId>   -> TimerRecord JSON
	activeTimers  -> JSON array of tab IDs

The activeTimers list is kept redundantly so recovery can enumerate timers
without scanning every key.

# Consistency

SaveTimer and DeleteTimer update the record and the activeTimers list in a
single transaction (bbolt Update, SQL transaction, or the memory mutex), so
the two can only diverge through external edits or older data. Recovery
tolerates a list entry whose record is missing and purges it with
DeleteTimer, which is a no-op for the absent record.

UpdateTimer is used on every reload and only rewrites the record.

# Usage

	store, err := storage.Open(cfg.Storage.Driver, cfg.DataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	rec := types.NewTimerRecord("1732", 30*time.Second, time.Now())
	if err := store.SaveTimer(rec); err != nil {
		return err
	}

	rec, err = store.GetTimer("1732")
	if errors.Is(err, storage.ErrNotFound) {
		// no timer for this tab
	}
*/
package storage
