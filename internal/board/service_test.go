package board

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tildaslashalef/farmboard/internal/config"
	"github.com/tildaslashalef/farmboard/internal/database"
	"github.com/tildaslashalef/farmboard/internal/localstore"
	"github.com/tildaslashalef/farmboard/internal/loggy"
	"github.com/tildaslashalef/farmboard/internal/migrations"
	"github.com/tildaslashalef/farmboard/internal/progress"
	"github.com/tildaslashalef/farmboard/internal/remote"
	"github.com/tildaslashalef/farmboard/internal/server"
	farmsync "github.com/tildaslashalef/farmboard/internal/sync"
)

type fixedIdentity string

func (f fixedIdentity) UserID(context.Context) (string, error) { return string(f), nil }

type stack struct {
	service *Service
	engine  *farmsync.Engine
	remote  *server.SQLRepository
	offline *atomic.Bool
}

// newStack wires a facade to a real progress server over HTTP. The server
// answers 503 while offline is set.
func newStack(t *testing.T, userID string, syncCfg config.SyncConfig) *stack {
	t.Helper()
	logger := loggy.NewNoopLogger()
	dbCfg := config.DatabaseConfig{Path: ":memory:", BusyTimeout: 1000, ConnMaxLife: time.Minute}

	serverDB, err := database.Open(dbCfg)
	require.NoError(t, err)
	t.Cleanup(func() { serverDB.Close() })
	require.NoError(t, database.RunMigrations(serverDB, migrations.Server))
	serverRepo := server.NewSQLRepository(serverDB, logger)

	offline := &atomic.Bool{}
	router := server.New(serverRepo, "test", logger).Router()
	httpServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if offline.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		router.ServeHTTP(w, r)
	}))
	t.Cleanup(httpServer.Close)

	clientDB, err := database.Open(dbCfg)
	require.NoError(t, err)
	t.Cleanup(func() { clientDB.Close() })
	require.NoError(t, database.RunMigrations(clientDB, migrations.Client))

	remoteCfg := config.RemoteConfig{URL: httpServer.URL, ProbeTimeout: time.Second, WriteTimeout: time.Second}
	store := localstore.NewStore(clientDB)
	engine := farmsync.NewEngine(
		localstore.NewCache(store),
		localstore.NewQueue(store),
		remote.NewClient(remoteCfg, logger),
		farmsync.NewSQLRepository(clientDB, 0, logger),
		remoteCfg,
		logger,
	)

	svc := New(engine, fixedIdentity(userID), syncCfg, logger)
	t.Cleanup(func() { svc.Close() })
	return &stack{service: svc, engine: engine, remote: serverRepo, offline: offline}
}

func TestEndToEndScenario(t *testing.T) {
	ctx := context.Background()
	st := newStack(t, "user_abc", config.SyncConfig{PollInterval: time.Hour, DrainInterval: time.Hour})
	require.NoError(t, st.service.Start(ctx))
	assert.False(t, st.service.Loading())
	assert.Equal(t, "user_abc", st.service.UserID())

	t1 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	record := progress.MissionProgress{
		MissionID: "mission_1",
		Status:    progress.StatusCompleted,
		TxHash:    "0xdead",
		Submissions: []progress.MissionSubmission{
			{MissionID: "mission_1", TxHash: "0xdead", ExplorerURL: "https://x", Timestamp: t1},
		},
	}

	res, err := st.service.UpdateProgress(ctx, "mission_1", record)
	require.NoError(t, err)
	assert.Equal(t, farmsync.Result{Committed: true, Synced: true}, res)

	fetched, err := st.engine.Fetch(ctx, "user_abc")
	require.NoError(t, err)
	require.NotNil(t, fetched)
	assert.Equal(t, record, fetched.Missions["mission_1"])

	assert.Zero(t, st.service.PendingCount())
	assert.Equal(t, progress.StatusCompleted, st.service.MissionStatus("mission_1"))
	assert.Equal(t, 1, st.service.SubmissionCount("mission_1"))
}

func TestStatusDefaults(t *testing.T) {
	st := newStack(t, "user_abc", config.SyncConfig{PollInterval: time.Hour, DrainInterval: time.Hour})
	require.NoError(t, st.service.Start(context.Background()))

	assert.Equal(t, progress.StatusNotStarted, st.service.MissionStatus("unknown-mission"))
	assert.Zero(t, st.service.SubmissionCount("unknown-mission"))
}

func TestMutationsRequireStart(t *testing.T) {
	st := newStack(t, "user_abc", config.SyncConfig{})
	_, err := st.service.UpdateProgress(context.Background(), "m1", progress.MissionProgress{})
	assert.ErrorIs(t, err, ErrNotStarted)
	assert.Equal(t, progress.StatusNotStarted, st.service.MissionStatus("m1"))
}

func TestOfflineWriteIsRecoveredInBackground(t *testing.T) {
	ctx := context.Background()
	st := newStack(t, "user_abc", config.SyncConfig{PollInterval: 20 * time.Millisecond, DrainInterval: 50 * time.Millisecond})
	st.offline.Store(true)
	require.NoError(t, st.service.Start(ctx))

	res, err := st.service.LogCompletion(ctx, "base_swap", "0xabc", "https://basescan.org/tx/0xabc", "")
	require.NoError(t, err)
	assert.True(t, res.Committed)
	assert.False(t, res.Synced)
	assert.Equal(t, 1, st.service.PendingCount())
	assert.Equal(t, progress.StatusCompleted, st.service.MissionStatus("base_swap"))

	st.offline.Store(false)
	assert.Eventually(t, func() bool {
		return st.service.PendingCount() == 0
	}, 5*time.Second, 20*time.Millisecond)

	p, err := st.remote.GetProgress(ctx, "user_abc")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "0xabc", p.Missions["base_swap"].TxHash)
}

func TestBackgroundTasksOutliveStartContext(t *testing.T) {
	st := newStack(t, "user_abc", config.SyncConfig{PollInterval: 20 * time.Millisecond, DrainInterval: 50 * time.Millisecond})
	st.offline.Store(true)

	startCtx, cancel := context.WithCancel(context.Background())
	require.NoError(t, st.service.Start(startCtx))
	cancel()

	ctx := context.Background()
	_, err := st.service.StartMission(ctx, "base_swap")
	require.NoError(t, err)
	assert.Equal(t, 1, st.service.PendingCount())

	st.offline.Store(false)
	assert.Eventually(t, func() bool {
		return st.service.PendingCount() == 0
	}, 5*time.Second, 20*time.Millisecond, "the drain task keeps running after the start context is cancelled")
}

func TestLogCompletionAppendsSubmissions(t *testing.T) {
	ctx := context.Background()
	st := newStack(t, "user_abc", config.SyncConfig{PollInterval: time.Hour, DrainInterval: time.Hour})
	require.NoError(t, st.service.Start(ctx))

	_, err := st.service.StartMission(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, progress.StatusInProgress, st.service.MissionStatus("m1"))

	_, err = st.service.LogCompletion(ctx, "m1", "0x1", "https://x/1", "first")
	require.NoError(t, err)
	_, err = st.service.LogCompletion(ctx, "m1", "0x2", "https://x/2", "")
	require.NoError(t, err)

	snap := st.service.Snapshot()
	mp := snap.Missions["m1"]
	assert.Equal(t, progress.StatusCompleted, mp.Status)
	assert.Equal(t, "0x2", mp.TxHash)
	require.Len(t, mp.Submissions, 2)
	assert.Equal(t, "first", mp.Submissions[0].Notes)

	// the snapshot is a copy
	mp.Submissions[0].TxHash = "changed"
	assert.Equal(t, "0x1", st.service.Snapshot().Missions["m1"].Submissions[0].TxHash)
}

func TestDeleteProgress(t *testing.T) {
	ctx := context.Background()
	st := newStack(t, "user_abc", config.SyncConfig{PollInterval: time.Hour, DrainInterval: time.Hour})
	require.NoError(t, st.service.Start(ctx))

	_, err := st.service.LogCompletion(ctx, "m1", "0x1", "https://x/1", "")
	require.NoError(t, err)

	before := st.service.Snapshot()
	_, err = st.service.DeleteProgress(ctx, "absent")
	require.NoError(t, err)
	assert.Equal(t, before, st.service.Snapshot(), "deleting an absent mission changes nothing")

	res, err := st.service.DeleteProgress(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, res.Synced)
	assert.Equal(t, progress.StatusNotStarted, st.service.MissionStatus("m1"))

	p, err := st.remote.GetProgress(ctx, "user_abc")
	require.NoError(t, err)
	assert.NotContains(t, p.Missions, "m1")
}

func TestManualSync(t *testing.T) {
	ctx := context.Background()
	st := newStack(t, "user_abc", config.SyncConfig{PollInterval: time.Hour, DrainInterval: time.Hour})
	st.offline.Store(true)
	require.NoError(t, st.service.Start(ctx))

	_, err := st.service.LogCompletion(ctx, "m1", "0x1", "https://x/1", "")
	require.NoError(t, err)

	online, err := st.service.ManualSync(ctx)
	require.NoError(t, err)
	assert.False(t, online)
	assert.Equal(t, 1, st.service.PendingCount())

	st.offline.Store(false)
	online, err = st.service.ManualSync(ctx)
	require.NoError(t, err)
	assert.True(t, online)
	assert.Zero(t, st.service.PendingCount())
}
