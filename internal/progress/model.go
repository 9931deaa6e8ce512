// Package progress defines the per-user mission progress records shared by
// the local cache, the sync engine and the remote store
package progress

import (
	"time"
)

// Status represents how far a user got with a mission
type Status string

const (
	// StatusNotStarted is implied when no record exists for a mission
	StatusNotStarted Status = "not_started"
	// StatusInProgress marks a mission the user has begun
	StatusInProgress Status = "in_progress"
	// StatusCompleted marks a mission with at least one logged completion
	StatusCompleted Status = "completed"
)

// Valid reports whether s is one of the known statuses
func (s Status) Valid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// MissionSubmission is one logged completion attempt. Submissions are never
// edited once created.
type MissionSubmission struct {
	MissionID   string    `json:"missionId"`
	TxHash      string    `json:"txHash"`
	ExplorerURL string    `json:"explorerUrl"`
	Notes       string    `json:"notes,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// MissionProgress is the completion record of a single mission
type MissionProgress struct {
	MissionID   string              `json:"missionId"`
	Status      Status              `json:"status"`
	TxHash      string              `json:"txHash,omitempty"`
	ExplorerURL string              `json:"explorerUrl,omitempty"`
	Notes       string              `json:"notes,omitempty"`
	StartedAt   *time.Time          `json:"startedAt,omitempty"`
	CompletedAt *time.Time          `json:"completedAt,omitempty"`
	Submissions []MissionSubmission `json:"submissions,omitempty"`

	// Extensions holds JSON members this version does not know about
	Extensions Extensions `json:"-"`
}

// UserProgress is everything one user has recorded, keyed by mission ID
type UserProgress struct {
	UserID      string                     `json:"userId"`
	Missions    map[string]MissionProgress `json:"missions"`
	LastUpdated time.Time                  `json:"lastUpdated"`

	Extensions Extensions `json:"-"`
}

// PendingSyncEntry is a remote write that has not been confirmed yet
type PendingSyncEntry struct {
	UserID    string          `json:"userId"`
	MissionID string          `json:"missionId"`
	Progress  MissionProgress `json:"progress"`
	Timestamp time.Time       `json:"timestamp"`
}

// Empty returns a progress record with no missions
func Empty(userID string, now time.Time) *UserProgress {
	return &UserProgress{
		UserID:      userID,
		Missions:    make(map[string]MissionProgress),
		LastUpdated: now.UTC(),
	}
}

// Normalize makes the mission map non-nil and forces every value's
// MissionID to match its key
func (p *UserProgress) Normalize() {
	if p.Missions == nil {
		p.Missions = make(map[string]MissionProgress)
		return
	}
	for id, mp := range p.Missions {
		if mp.MissionID != id {
			mp.MissionID = id
			p.Missions[id] = mp
		}
	}
}

// Status returns the status of a mission, defaulting to not started
func (p *UserProgress) Status(missionID string) Status {
	if p == nil {
		return StatusNotStarted
	}
	mp, ok := p.Missions[missionID]
	if !ok || mp.Status == "" {
		return StatusNotStarted
	}
	return mp.Status
}

// SubmissionCount returns how many completions were logged for a mission
func (p *UserProgress) SubmissionCount(missionID string) int {
	if p == nil {
		return 0
	}
	return len(p.Missions[missionID].Submissions)
}

// Clone returns a deep copy so callers can hold a snapshot safely
func (p *UserProgress) Clone() *UserProgress {
	if p == nil {
		return nil
	}
	out := &UserProgress{
		UserID:      p.UserID,
		LastUpdated: p.LastUpdated,
		Missions:    make(map[string]MissionProgress, len(p.Missions)),
		Extensions:  p.Extensions.clone(),
	}
	for id, mp := range p.Missions {
		out.Missions[id] = mp.Clone()
	}
	return out
}

// Clone returns a deep copy of the mission record
func (m MissionProgress) Clone() MissionProgress {
	out := m
	if m.StartedAt != nil {
		t := *m.StartedAt
		out.StartedAt = &t
	}
	if m.CompletedAt != nil {
		t := *m.CompletedAt
		out.CompletedAt = &t
	}
	if m.Submissions != nil {
		out.Submissions = append([]MissionSubmission(nil), m.Submissions...)
	}
	out.Extensions = m.Extensions.clone()
	return out
}

// Start returns the record for a mission the user just began. Submissions
// and the original start time are carried over from prev.
func Start(prev *MissionProgress, missionID string, now time.Time) MissionProgress {
	now = now.UTC()
	next := MissionProgress{MissionID: missionID, Status: StatusInProgress, StartedAt: &now}
	if prev != nil {
		next = prev.Clone()
		next.MissionID = missionID
		if next.Status != StatusCompleted {
			next.Status = StatusInProgress
		}
		if next.StartedAt == nil {
			next.StartedAt = &now
		}
	}
	return next
}

// Complete returns the record after logging sub against prev. The evidence
// fields mirror the latest submission and the submission log grows by one.
func Complete(prev *MissionProgress, sub MissionSubmission, now time.Time) MissionProgress {
	now = now.UTC()
	if sub.Timestamp.IsZero() {
		sub.Timestamp = now
	}

	var next MissionProgress
	if prev != nil {
		next = prev.Clone()
	}
	next.MissionID = sub.MissionID
	next.Status = StatusCompleted
	next.TxHash = sub.TxHash
	next.ExplorerURL = sub.ExplorerURL
	next.Notes = sub.Notes
	next.CompletedAt = &now
	if next.StartedAt == nil {
		started := now
		next.StartedAt = &started
	}
	next.Submissions = append(next.Submissions, sub)
	return next
}
