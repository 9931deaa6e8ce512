package sync

import (
	"context"
	"fmt"
	stdsync "sync"
	"time"

	"github.com/tildaslashalef/farmboard/internal/config"
	"github.com/tildaslashalef/farmboard/internal/localstore"
	"github.com/tildaslashalef/farmboard/internal/loggy"
	"github.com/tildaslashalef/farmboard/internal/progress"
	"github.com/tildaslashalef/farmboard/internal/remote"
)

// Engine owns the write, delete, drain and reconciliation paths. It is the
// only component that mutates the local cache and the pending queue or that
// talks to the remote store.
type Engine struct {
	cache        *localstore.Cache
	queue        *localstore.Queue
	gateway      remote.Gateway
	logs         Repository
	writeTimeout time.Duration
	logger       *loggy.Logger
	now          func() time.Time

	// remoteMu serializes remote writes and drains so a drain never races a
	// newer write for the same mission
	remoteMu stdsync.Mutex
}

// NewEngine creates a sync engine. logs may be nil to disable the sync log.
func NewEngine(cache *localstore.Cache, queue *localstore.Queue, gateway remote.Gateway, logs Repository, cfg config.RemoteConfig, logger *loggy.Logger) *Engine {
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = loggy.GetGlobalLogger()
	}
	return &Engine{
		cache:        cache,
		queue:        queue,
		gateway:      gateway,
		logs:         logs,
		writeTimeout: writeTimeout,
		logger:       logger,
		now:          time.Now,
	}
}

// Local returns the cached progress of userID
func (e *Engine) Local(ctx context.Context, userID string) (*progress.UserProgress, error) {
	return e.cache.Get(ctx, userID)
}

// Pending returns the queued writes in drain order
func (e *Engine) Pending(ctx context.Context) ([]progress.PendingSyncEntry, error) {
	return e.queue.List(ctx)
}

// PendingCount returns the number of queued writes
func (e *Engine) PendingCount(ctx context.Context) (int, error) {
	return e.queue.Len(ctx)
}

// UpdateMission commits mp locally, then tries the remote store. A remote
// failure queues the write for a later drain and is not returned as an error.
// Cancelling ctx only aborts the remote attempt; the local commit and the
// queue bookkeeping always run to completion.
func (e *Engine) UpdateMission(ctx context.Context, userID, missionID string, mp progress.MissionProgress) (Result, error) {
	lctx := context.WithoutCancel(ctx)
	mp = mp.Clone()
	mp.MissionID = missionID

	_, err := e.cache.Modify(lctx, userID, func(local *progress.UserProgress) bool {
		local.Missions[missionID] = mp
		local.LastUpdated = e.now().UTC()
		return true
	})
	if err != nil {
		return Result{}, fmt.Errorf("saving local progress: %w", err)
	}

	result := Result{Committed: true}

	e.remoteMu.Lock()
	defer e.remoteMu.Unlock()

	if err := e.upsert(ctx, userID, missionID, mp); err != nil {
		entry := progress.PendingSyncEntry{
			UserID:    userID,
			MissionID: missionID,
			Progress:  mp,
			Timestamp: e.now().UTC(),
		}
		if qerr := e.queue.Enqueue(lctx, entry); qerr != nil {
			return result, fmt.Errorf("queueing pending sync: %w", qerr)
		}
		return result, nil
	}

	if err := e.queue.Remove(lctx, userID, missionID); err != nil {
		return result, fmt.Errorf("clearing pending sync: %w", err)
	}
	result.Synced = true
	return result, nil
}

// DeleteMission removes missionID locally and asks the remote store to do the
// same. Deletes are never queued; a failed remote delete is only logged.
func (e *Engine) DeleteMission(ctx context.Context, userID, missionID string) (Result, error) {
	lctx := context.WithoutCancel(ctx)

	_, err := e.cache.Modify(lctx, userID, func(local *progress.UserProgress) bool {
		if _, ok := local.Missions[missionID]; !ok {
			return false
		}
		delete(local.Missions, missionID)
		local.LastUpdated = e.now().UTC()
		return true
	})
	if err != nil {
		return Result{}, fmt.Errorf("saving local progress: %w", err)
	}

	e.remoteMu.Lock()
	defer e.remoteMu.Unlock()

	log := NewSyncLog(OperationDelete, userID, missionID)
	rctx, cancel := context.WithTimeout(ctx, e.writeTimeout)
	err = e.gateway.DeleteMission(rctx, userID, missionID)
	cancel()
	e.finish(lctx, log, err, 1)

	return Result{Committed: true, Synced: err == nil}, nil
}

// Initialize reconciles userID at startup. Remote data replaces the local
// copy; a missing or unreachable remote record keeps it. The pending queue
// is drained afterwards and the resulting local record returned.
func (e *Engine) Initialize(ctx context.Context, userID string) (*progress.UserProgress, error) {
	lctx := context.WithoutCancel(ctx)
	remoteProgress, err := e.Fetch(ctx, userID)
	switch {
	case err != nil:
		e.logger.Warn("Remote store unavailable, using local progress", "user_id", userID, "error", err)
	case remoteProgress == nil:
		e.logger.Info("No remote progress found, using local progress", "user_id", userID)
	default:
		remoteProgress.UserID = userID
		if err := e.cache.Put(lctx, remoteProgress); err != nil {
			return nil, fmt.Errorf("saving remote progress locally: %w", err)
		}
		e.logger.Info("Progress loaded from remote store", "user_id", userID, "missions", len(remoteProgress.Missions))
	}

	if _, err := e.Drain(ctx); err != nil {
		return nil, err
	}

	return e.cache.Get(lctx, userID)
}

// Fetch downloads the remote progress of userID. It returns nil, nil when the
// remote store has no record.
func (e *Engine) Fetch(ctx context.Context, userID string) (*progress.UserProgress, error) {
	log := NewSyncLog(OperationFetch, userID, "")
	rctx, cancel := context.WithTimeout(ctx, e.writeTimeout)
	defer cancel()

	p, err := e.gateway.FetchProgress(rctx, userID)
	items := 0
	if p != nil {
		items = len(p.Missions)
	}
	e.finish(context.WithoutCancel(ctx), log, err, items)
	return p, err
}

// Drain pushes queued writes in order and stops at the first failure, leaving
// that entry and everything behind it in the queue. Only local storage
// failures are returned as errors. A cancelled ctx stops the pass like any
// other remote failure.
func (e *Engine) Drain(ctx context.Context) (DrainResult, error) {
	lctx := context.WithoutCancel(ctx)

	e.remoteMu.Lock()
	defer e.remoteMu.Unlock()

	entries, err := e.queue.List(lctx)
	if err != nil {
		return DrainResult{}, fmt.Errorf("listing pending syncs: %w", err)
	}

	result := DrainResult{Remaining: len(entries)}
	if len(entries) == 0 {
		return result, nil
	}

	e.logger.Info("Processing pending syncs", "count", len(entries))
	log := NewSyncLog(OperationDrain, "", "")

	for _, entry := range entries {
		result.Attempted++
		if err := e.upsert(ctx, entry.UserID, entry.MissionID, entry.Progress); err != nil {
			result.Stopped = true
			result.ErrorType = remote.Classify(err)
			e.logger.Warn("Pending sync failed, will retry later", "mission_id", entry.MissionID, "remaining", result.Remaining)
			e.finish(lctx, log, err, result.Synced)
			return result, nil
		}
		if err := e.queue.Remove(lctx, entry.UserID, entry.MissionID); err != nil {
			return result, fmt.Errorf("clearing pending sync: %w", err)
		}
		result.Synced++
		result.Remaining--
	}

	e.finish(lctx, log, nil, result.Synced)
	return result, nil
}

// Probe reports whether the remote store is reachable
func (e *Engine) Probe(ctx context.Context) bool {
	return e.gateway.Probe(ctx)
}

// Reconcile is one background tick: drain when the remote store is live
func (e *Engine) Reconcile(ctx context.Context) {
	if !e.Probe(ctx) {
		e.logger.Debug("Remote store offline, skipping pending sync")
		return
	}
	if _, err := e.Drain(ctx); err != nil {
		e.logger.Error("Background sync failed", "error", err)
	}
}

// ManualSync probes the remote store and drains when it is live. It reports
// whether the store was reachable.
func (e *Engine) ManualSync(ctx context.Context) (bool, error) {
	if !e.Probe(ctx) {
		return false, nil
	}
	if _, err := e.Drain(ctx); err != nil {
		return true, err
	}
	return true, nil
}

// RecentLogs returns the newest sync log entries
func (e *Engine) RecentLogs(ctx context.Context, limit int) ([]*SyncLog, error) {
	if e.logs == nil {
		return nil, nil
	}
	return e.logs.GetSyncLogs(ctx, "", limit, 0)
}

// upsert performs one remote write and records it in the sync log
func (e *Engine) upsert(ctx context.Context, userID, missionID string, mp progress.MissionProgress) error {
	log := NewSyncLog(OperationUpsert, userID, missionID)
	rctx, cancel := context.WithTimeout(ctx, e.writeTimeout)
	defer cancel()

	err := e.gateway.UpsertMission(rctx, userID, missionID, mp)
	e.finish(context.WithoutCancel(ctx), log, err, 1)
	return err
}

// finish completes log with the outcome of err and stores it. Sync log
// failures are logged and otherwise ignored.
func (e *Engine) finish(ctx context.Context, log *SyncLog, err error, items int) {
	if err != nil {
		class := remote.Classify(err)
		log.MarkFailed(class, err.Error())
		logger := e.logger.WithError(err).With("operation", log.Operation, "mission_id", log.MissionID, "error_class", class)
		if remote.IsRetryable(err) {
			logger.Debug("Remote request failed")
		} else {
			// rejected writes stay queued and are retried every interval
			logger.Warn("Remote store rejected request")
		}
	} else {
		log.MarkSuccessful(items)
	}

	if e.logs == nil {
		return
	}
	if err := e.logs.CreateSyncLog(ctx, log); err != nil {
		e.logger.Error("Failed to create sync log", "error", err)
	}
}
