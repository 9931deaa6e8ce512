package localstore

import (
	"context"
	"encoding/json"

	"github.com/tildaslashalef/farmboard/internal/progress"
)

// PendingKey is the kv key holding the pending sync queue
const PendingKey = "farmboard_pending_sync"

// Queue is the ordered list of remote writes waiting to be confirmed. It
// holds at most one entry per (user, mission) pair.
type Queue struct {
	store *Store
}

// NewQueue creates a queue backed by store
func NewQueue(store *Store) *Queue {
	return &Queue{store: store}
}

// List returns the pending entries in insertion order
func (q *Queue) List(ctx context.Context) ([]progress.PendingSyncEntry, error) {
	raw, found, err := q.store.Get(ctx, PendingKey)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return decodeQueue(raw)
}

// Len returns the number of pending entries
func (q *Queue) Len(ctx context.Context) (int, error) {
	entries, err := q.List(ctx)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Enqueue replaces any entry for the same user and mission with entry,
// which moves to the back of the queue
func (q *Queue) Enqueue(ctx context.Context, entry progress.PendingSyncEntry) error {
	return q.modify(ctx, func(entries []progress.PendingSyncEntry) []progress.PendingSyncEntry {
		entries = without(entries, entry.UserID, entry.MissionID)
		return append(entries, entry)
	})
}

// Remove drops the entry for userID and missionID, if any
func (q *Queue) Remove(ctx context.Context, userID, missionID string) error {
	return q.modify(ctx, func(entries []progress.PendingSyncEntry) []progress.PendingSyncEntry {
		return without(entries, userID, missionID)
	})
}

func (q *Queue) modify(ctx context.Context, fn func([]progress.PendingSyncEntry) []progress.PendingSyncEntry) error {
	return q.store.Update(ctx, PendingKey, func(current string, found bool) (string, bool, error) {
		var entries []progress.PendingSyncEntry
		if found {
			decoded, err := decodeQueue(current)
			if err != nil {
				return "", false, err
			}
			entries = decoded
		}

		next := fn(entries)
		if next == nil {
			next = []progress.PendingSyncEntry{}
		}
		data, err := json.Marshal(next)
		if err != nil {
			return "", false, storageErr("encoding", PendingKey, err)
		}
		return string(data), true, nil
	})
}

func decodeQueue(raw string) ([]progress.PendingSyncEntry, error) {
	var entries []progress.PendingSyncEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, storageErr("decoding", PendingKey, err)
	}
	return entries, nil
}

func without(entries []progress.PendingSyncEntry, userID, missionID string) []progress.PendingSyncEntry {
	out := entries[:0]
	for _, e := range entries {
		if e.UserID == userID && e.MissionID == missionID {
			continue
		}
		out = append(out, e)
	}
	return out
}
