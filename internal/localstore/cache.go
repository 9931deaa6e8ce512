package localstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tildaslashalef/farmboard/internal/progress"
)

const progressKeyPrefix = "farmboard_progress_"

// ProgressKey returns the kv key holding the progress of userID
func ProgressKey(userID string) string {
	return progressKeyPrefix + userID
}

// Cache is the local copy of each user's progress. It is always written
// before any remote attempt.
type Cache struct {
	store *Store
}

// NewCache creates a cache backed by store
func NewCache(store *Store) *Cache {
	return &Cache{store: store}
}

// Get returns the cached progress of userID, or an empty record stamped with
// the current time when nothing is stored
func (c *Cache) Get(ctx context.Context, userID string) (*progress.UserProgress, error) {
	raw, found, err := c.store.Get(ctx, ProgressKey(userID))
	if err != nil {
		return nil, err
	}
	return c.decode(userID, raw, found)
}

// Modify applies fn to the cached progress of userID inside one transaction.
// fn reports whether it changed the record; an unchanged record is not
// written back.
func (c *Cache) Modify(ctx context.Context, userID string, fn func(p *progress.UserProgress) bool) (*progress.UserProgress, error) {
	key := ProgressKey(userID)
	var result *progress.UserProgress
	err := c.store.Update(ctx, key, func(current string, found bool) (string, bool, error) {
		p, err := c.decode(userID, current, found)
		if err != nil {
			return "", false, err
		}
		result = p
		if !fn(p) {
			return "", false, nil
		}
		data, err := json.Marshal(p)
		if err != nil {
			return "", false, storageErr("encoding", key, err)
		}
		return string(data), true, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Cache) decode(userID, raw string, found bool) (*progress.UserProgress, error) {
	if !found {
		return progress.Empty(userID, c.store.now()), nil
	}

	var p progress.UserProgress
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, storageErr("decoding", ProgressKey(userID), err)
	}
	if p.UserID == "" {
		p.UserID = userID
	}
	p.Normalize()
	return &p, nil
}

// Put overwrites the cached progress of p.UserID
func (c *Cache) Put(ctx context.Context, p *progress.UserProgress) error {
	if p == nil || p.UserID == "" {
		return fmt.Errorf("%w: progress without user id", ErrLocalStorage)
	}
	data, err := json.Marshal(p)
	if err != nil {
		return storageErr("encoding", ProgressKey(p.UserID), err)
	}
	return c.store.Put(ctx, ProgressKey(p.UserID), string(data))
}
