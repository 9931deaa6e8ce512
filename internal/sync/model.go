// Package sync keeps the local progress cache and the remote progress store
// in step: local-first writes, a deduplicated retry queue and remote-wins
// reconciliation at startup
package sync

import (
	"time"

	"github.com/tildaslashalef/farmboard/internal/remote"
	"github.com/tildaslashalef/farmboard/internal/ulid"
)

// Operation is the kind of remote attempt recorded in the sync log
type Operation string

const (
	// OperationUpsert is a mission write
	OperationUpsert Operation = "upsert"
	// OperationDelete is a mission removal
	OperationDelete Operation = "delete"
	// OperationFetch is a full progress download
	OperationFetch Operation = "fetch"
	// OperationDrain is one pass over the pending queue
	OperationDrain Operation = "drain"
)

// SyncLog represents a log entry for a remote attempt
type SyncLog struct {
	ID           ulid.ULID         `json:"id"`
	Operation    Operation         `json:"operation"`
	UserID       string            `json:"user_id,omitempty"`
	MissionID    string            `json:"mission_id,omitempty"`
	Success      bool              `json:"success"`
	ErrorType    remote.ErrorClass `json:"error_type,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
	ItemsSynced  int               `json:"items_synced"`
	StartedAt    time.Time         `json:"started_at"`
	CompletedAt  time.Time         `json:"completed_at"`
}

// NewSyncLog creates a new sync log entry
func NewSyncLog(op Operation, userID, missionID string) *SyncLog {
	now := time.Now().UTC()
	return &SyncLog{
		Operation:   op,
		UserID:      userID,
		MissionID:   missionID,
		StartedAt:   now,
		CompletedAt: now,
	}
}

// MarkSuccessful marks the sync log as successful
func (l *SyncLog) MarkSuccessful(itemsSynced int) {
	l.Success = true
	l.ItemsSynced = itemsSynced
	l.CompletedAt = time.Now().UTC()
}

// MarkFailed marks the sync log as failed
func (l *SyncLog) MarkFailed(errorType remote.ErrorClass, errorMessage string) {
	l.Success = false
	l.ErrorType = errorType
	l.ErrorMessage = errorMessage
	l.CompletedAt = time.Now().UTC()
}

// Duration returns how long the attempt took
func (l *SyncLog) Duration() time.Duration {
	return l.CompletedAt.Sub(l.StartedAt)
}

// Result is the outcome of a local-first write. Committed is always true
// when no error is returned; Synced reports whether the remote store
// confirmed the write.
type Result struct {
	Committed bool
	Synced    bool
}

// DrainResult summarizes one pass over the pending queue
type DrainResult struct {
	Attempted int
	Synced    int
	Remaining int
	// Stopped is set when an entry failed and the pass ended early
	Stopped   bool
	ErrorType remote.ErrorClass
}
