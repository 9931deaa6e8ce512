// Package board is the progress facade used by the CLI. A Service owns the
// user id, an in-memory snapshot of the user's progress and the periodic
// status poll and background reconcile tasks.
package board

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tildaslashalef/farmboard/internal/config"
	"github.com/tildaslashalef/farmboard/internal/loggy"
	"github.com/tildaslashalef/farmboard/internal/progress"
	farmsync "github.com/tildaslashalef/farmboard/internal/sync"
)

// ErrNotStarted is returned by mutating calls made before Start
var ErrNotStarted = errors.New("progress service not started")

// Engine is the part of the sync engine the facade drives
type Engine interface {
	Local(ctx context.Context, userID string) (*progress.UserProgress, error)
	Initialize(ctx context.Context, userID string) (*progress.UserProgress, error)
	UpdateMission(ctx context.Context, userID, missionID string, mp progress.MissionProgress) (farmsync.Result, error)
	DeleteMission(ctx context.Context, userID, missionID string) (farmsync.Result, error)
	ManualSync(ctx context.Context) (bool, error)
	Reconcile(ctx context.Context)
	PendingCount(ctx context.Context) (int, error)
}

// Identity resolves the user id of this installation
type Identity interface {
	UserID(ctx context.Context) (string, error)
}

// Service is the progress facade
type Service struct {
	engine   Engine
	identity Identity
	cfg      config.SyncConfig
	logger   *loggy.Logger
	now      func() time.Time

	// mu serializes mutating calls
	mu sync.Mutex

	state    sync.RWMutex
	userID   string
	snapshot *progress.UserProgress
	pending  int
	syncing  bool
	loading  bool
	started  bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a facade. Nothing is loaded until Start.
func New(engine Engine, identity Identity, cfg config.SyncConfig, logger *loggy.Logger) *Service {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.DrainInterval <= 0 {
		cfg.DrainInterval = 30 * time.Second
	}
	if logger == nil {
		logger = loggy.GetGlobalLogger()
	}
	return &Service{
		engine:   engine,
		identity: identity,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		loading:  true,
	}
}

// Start resolves the user id, shows the local copy right away, reconciles
// with the remote store and launches the periodic tasks. ctx bounds the
// startup work only; the tasks keep running until Close.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return errors.New("progress service already started")
	}

	userID, err := s.identity.UserID(ctx)
	if err != nil {
		return fmt.Errorf("resolving user id: %w", err)
	}

	local, err := s.engine.Local(ctx, userID)
	if err != nil {
		return fmt.Errorf("loading local progress: %w", err)
	}
	s.state.Lock()
	s.userID = userID
	s.snapshot = local
	s.loading = true
	s.state.Unlock()

	initial, err := s.engine.Initialize(ctx, userID)
	if err != nil {
		return fmt.Errorf("initializing sync: %w", err)
	}

	s.state.Lock()
	s.snapshot = initial
	s.loading = false
	s.started = true
	s.state.Unlock()
	s.refreshPending(ctx)

	taskCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.wg.Add(2)
	go s.every(taskCtx, s.cfg.PollInterval, s.refreshPending)
	go s.every(taskCtx, s.cfg.DrainInterval, s.reconcile)

	s.logger.Info("Progress service started", "user_id", userID, "missions", len(initial.Missions))
	return nil
}

// Close stops the periodic tasks and waits for them to exit
func (s *Service) Close() error {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	return nil
}

func (s *Service) every(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

func (s *Service) reconcile(ctx context.Context) {
	s.engine.Reconcile(ctx)
	s.refreshPending(ctx)
}

func (s *Service) refreshPending(ctx context.Context) {
	n, err := s.engine.PendingCount(ctx)
	if err != nil {
		s.logger.Warn("Failed to read pending sync count", "error", err)
		return
	}
	s.state.Lock()
	s.pending = n
	s.state.Unlock()
}

// reload replaces the snapshot with the cached record and refreshes the
// pending count
func (s *Service) reload(ctx context.Context) error {
	p, err := s.engine.Local(ctx, s.UserID())
	if err != nil {
		return fmt.Errorf("reloading local progress: %w", err)
	}
	s.state.Lock()
	s.snapshot = p
	s.state.Unlock()
	s.refreshPending(ctx)
	return nil
}

// beginMutation takes the facade lock and raises the syncing flag. The
// returned func undoes both.
func (s *Service) beginMutation() (string, func(), error) {
	s.mu.Lock()
	s.state.Lock()
	if !s.started {
		s.state.Unlock()
		s.mu.Unlock()
		return "", nil, ErrNotStarted
	}
	s.syncing = true
	userID := s.userID
	s.state.Unlock()

	return userID, func() {
		s.state.Lock()
		s.syncing = false
		s.state.Unlock()
		s.mu.Unlock()
	}, nil
}

// Snapshot returns a copy of the current progress
func (s *Service) Snapshot() progress.UserProgress {
	s.state.RLock()
	defer s.state.RUnlock()
	if s.snapshot == nil {
		return *progress.Empty(s.userID, s.now())
	}
	return *s.snapshot.Clone()
}

// UserID returns the resolved user id, empty before Start
func (s *Service) UserID() string {
	s.state.RLock()
	defer s.state.RUnlock()
	return s.userID
}

// Syncing reports whether a mutating call is in flight
func (s *Service) Syncing() bool {
	s.state.RLock()
	defer s.state.RUnlock()
	return s.syncing
}

// PendingCount returns the last observed pending queue length
func (s *Service) PendingCount() int {
	s.state.RLock()
	defer s.state.RUnlock()
	return s.pending
}

// Loading is true until startup reconciliation finished
func (s *Service) Loading() bool {
	s.state.RLock()
	defer s.state.RUnlock()
	return s.loading
}

// MissionStatus returns the status of missionID, not_started when unknown
func (s *Service) MissionStatus(missionID string) progress.Status {
	s.state.RLock()
	defer s.state.RUnlock()
	return s.snapshot.Status(missionID)
}

// SubmissionCount returns how many completions were logged for missionID
func (s *Service) SubmissionCount(missionID string) int {
	s.state.RLock()
	defer s.state.RUnlock()
	return s.snapshot.SubmissionCount(missionID)
}

// UpdateProgress writes mp as the record of missionID. Remote failures are
// reported through Result.Synced, never as errors.
func (s *Service) UpdateProgress(ctx context.Context, missionID string, mp progress.MissionProgress) (farmsync.Result, error) {
	userID, done, err := s.beginMutation()
	if err != nil {
		return farmsync.Result{}, err
	}
	defer done()

	return s.update(ctx, userID, missionID, mp)
}

func (s *Service) update(ctx context.Context, userID, missionID string, mp progress.MissionProgress) (farmsync.Result, error) {
	res, err := s.engine.UpdateMission(ctx, userID, missionID, mp)
	if rerr := s.reload(ctx); rerr != nil && err == nil {
		err = rerr
	}
	if err == nil && !res.Synced {
		s.logger.Warn("Progress saved locally, will sync when online", "mission_id", missionID)
	}
	return res, err
}

// DeleteProgress resets missionID
func (s *Service) DeleteProgress(ctx context.Context, missionID string) (farmsync.Result, error) {
	userID, done, err := s.beginMutation()
	if err != nil {
		return farmsync.Result{}, err
	}
	defer done()

	res, err := s.engine.DeleteMission(ctx, userID, missionID)
	if rerr := s.reload(ctx); rerr != nil && err == nil {
		err = rerr
	}
	return res, err
}

// ManualSync drains the pending queue now. It reports whether the remote
// store was reachable.
func (s *Service) ManualSync(ctx context.Context) (bool, error) {
	_, done, err := s.beginMutation()
	if err != nil {
		return false, err
	}
	defer done()

	online, err := s.engine.ManualSync(ctx)
	if rerr := s.reload(ctx); rerr != nil && err == nil {
		err = rerr
	}
	return online, err
}

// LogCompletion records a completed attempt of missionID. The submission
// log of the mission grows by one.
func (s *Service) LogCompletion(ctx context.Context, missionID, txHash, explorerURL, notes string) (farmsync.Result, error) {
	if missionID == "" {
		return farmsync.Result{}, errors.New("mission id is required")
	}

	userID, done, err := s.beginMutation()
	if err != nil {
		return farmsync.Result{}, err
	}
	defer done()

	now := s.now()
	prev := s.missionRecord(missionID)
	mp := progress.Complete(prev, progress.MissionSubmission{
		MissionID:   missionID,
		TxHash:      txHash,
		ExplorerURL: explorerURL,
		Notes:       notes,
		Timestamp:   now.UTC(),
	}, now)

	return s.update(ctx, userID, missionID, mp)
}

// StartMission marks missionID as in progress. Completed missions keep
// their status.
func (s *Service) StartMission(ctx context.Context, missionID string) (farmsync.Result, error) {
	if missionID == "" {
		return farmsync.Result{}, errors.New("mission id is required")
	}

	userID, done, err := s.beginMutation()
	if err != nil {
		return farmsync.Result{}, err
	}
	defer done()

	mp := progress.Start(s.missionRecord(missionID), missionID, s.now())
	return s.update(ctx, userID, missionID, mp)
}

func (s *Service) missionRecord(missionID string) *progress.MissionProgress {
	s.state.RLock()
	defer s.state.RUnlock()
	if s.snapshot == nil {
		return nil
	}
	mp, ok := s.snapshot.Missions[missionID]
	if !ok {
		return nil
	}
	clone := mp.Clone()
	return &clone
}
