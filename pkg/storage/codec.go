package storage

import (
	"encoding/json"
	"fmt"

	"github.com/cuemby/tabwarden/pkg/types"
)

func encodeRecord(rec *types.TimerRecord) ([]byte, error) {
	if rec == nil || rec.TabID == "" {
		return nil, fmt.Errorf("timer record has no tab id")
	}
	return json.Marshal(rec)
}

func decodeRecord(data []byte) (*types.TimerRecord, error) {
	var rec types.TimerRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode timer record: %w", err)
	}
	return &rec, nil
}

func decodeList(data []byte) ([]types.TabID, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var ids []types.TabID
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", types.ActiveTimersKey, err)
	}
	return ids, nil
}

func encodeList(ids []types.TabID) ([]byte, error) {
	if ids == nil {
		ids = []types.TabID{}
	}
	return json.Marshal(ids)
}

// addID appends id unless present. The bool reports whether the list changed.
func addID(ids []types.TabID, id types.TabID) ([]types.TabID, bool) {
	for _, existing := range ids {
		if existing == id {
			return ids, false
		}
	}
	return append(ids, id), true
}

// removeID drops every occurrence of id. The bool reports whether the list changed.
func removeID(ids []types.TabID, id types.TabID) ([]types.TabID, bool) {
	out := ids[:0:0]
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out, len(out) != len(ids)
}
