/*
Package types defines the data shared by every tabwarden package.

A TimerRecord is the persisted half of a reload timer. The live half (the
scheduled repeating action) exists only inside the registry and is always
rebuilt from a TimerRecord plus the current clock after a restart.

# Store Layout

Every storage backend uses the same flat key space:

	tab_<tabId>   -> TimerRecord (JSON)
	activeTimers  -> ["<tabId>", ...] (JSON, ordered, de-duplicated)

The activeTimers list mirrors the record key set so that all timers can be
enumerated without scanning the store.

# Intervals

Intervals are stored in milliseconds. A zero interval means DefaultInterval
(30s); anything below MinInterval (1s) is raised to the floor:

	types.NormalizeInterval(0)                      // 30s
	types.NormalizeInterval(250 * time.Millisecond) // 1s
	types.NormalizeInterval(5 * time.Second)        // 5s
*/
package types
