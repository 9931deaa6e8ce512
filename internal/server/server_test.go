package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tildaslashalef/farmboard/internal/config"
	"github.com/tildaslashalef/farmboard/internal/database"
	"github.com/tildaslashalef/farmboard/internal/loggy"
	"github.com/tildaslashalef/farmboard/internal/migrations"
	"github.com/tildaslashalef/farmboard/internal/progress"
)

func newTestServer(t *testing.T) (*Server, *SQLRepository) {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{Path: ":memory:", BusyTimeout: 1000, ConnMaxLife: time.Minute})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.RunMigrations(db, migrations.Server))

	logger := loggy.NewNoopLogger()
	repo := NewSQLRepository(db, logger)
	return New(repo, "test", logger), repo
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGetProgressValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Router()

	rec := do(t, h, http.MethodGet, "/api/progress", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "userId is required")

	rec = do(t, h, http.MethodGet, "/api/progress?userId=nobody", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestUpsertAndFetch(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Router()

	body := `{"userId":"user_abc","missionId":"mission_1","progress":{"missionId":"other","status":"completed","txHash":"0xdead","tier":"gold"}}`
	rec := do(t, h, http.MethodPost, "/api/progress", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/progress?userId=user_abc", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var p progress.UserProgress
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, "user_abc", p.UserID)
	mp := p.Missions["mission_1"]
	assert.Equal(t, "mission_1", mp.MissionID)
	assert.Equal(t, "0xdead", mp.TxHash)
	assert.JSONEq(t, `"gold"`, string(mp.Extensions["tier"]))
}

func TestUpsertValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Router()

	tests := []struct {
		name string
		body string
	}{
		{name: "missing user", body: `{"missionId":"m1","progress":{"status":"completed"}}`},
		{name: "missing mission", body: `{"userId":"u1","progress":{"status":"completed"}}`},
		{name: "missing progress", body: `{"userId":"u1","missionId":"m1"}`},
		{name: "not json", body: `userId=u1`},
		{name: "unknown status", body: `{"userId":"u1","missionId":"m1","progress":{"status":"finished"}}`},
		{name: "empty status", body: `{"userId":"u1","missionId":"m1","progress":{"txHash":"0x1"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/progress", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestDeleteProgress(t *testing.T) {
	srv, repo := newTestServer(t)
	h := srv.Router()
	ctx := context.Background()

	require.NoError(t, repo.UpdateMission(ctx, "u1", "m1", progress.MissionProgress{Status: progress.StatusCompleted}))
	require.NoError(t, repo.UpdateMission(ctx, "u1", "m2", progress.MissionProgress{Status: progress.StatusInProgress}))

	rec := do(t, h, http.MethodDelete, "/api/progress?userId=u1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodDelete, "/api/progress?userId=u1&missionId=m1", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	p, err := repo.GetProgress(ctx, "u1")
	require.NoError(t, err)
	assert.NotContains(t, p.Missions, "m1")
	assert.Contains(t, p.Missions, "m2")

	// unknown users are ignored
	rec = do(t, h, http.MethodDelete, "/api/progress?userId=ghost&missionId=m1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	p, err = repo.GetProgress(ctx, "ghost")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestPreflightAndMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Router()

	rec := do(t, h, http.MethodOptions, "/api/progress", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "GET, POST, DELETE, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))

	rec = do(t, h, http.MethodPut, "/api/progress", `{}`)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRequestID(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Router()

	rec := do(t, h, http.MethodGet, "/api/progress?userId=x", "")
	assert.True(t, strings.HasPrefix(rec.Header().Get("X-Request-ID"), "req-"))

	req := httptest.NewRequest(http.MethodGet, "/api/env-check", nil)
	req.Header.Set("X-Request-ID", "req-fixed")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "req-fixed", rec.Header().Get("X-Request-ID"))
}

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) GetProgress(ctx context.Context, userID string) (*progress.UserProgress, error) {
	args := m.Called(ctx, userID)
	p, _ := args.Get(0).(*progress.UserProgress)
	return p, args.Error(1)
}

func (m *mockRepository) UpdateMission(ctx context.Context, userID, missionID string, mp progress.MissionProgress) error {
	return m.Called(ctx, userID, missionID, mp).Error(0)
}

func (m *mockRepository) DeleteMission(ctx context.Context, userID, missionID string) error {
	return m.Called(ctx, userID, missionID).Error(0)
}

func (m *mockRepository) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func TestStorageFailuresReturn500(t *testing.T) {
	repo := new(mockRepository)
	repo.On("GetProgress", mock.Anything, "u1").Return(nil, errors.New("disk I/O error"))
	repo.On("UpdateMission", mock.Anything, "u1", "m1", mock.Anything).Return(errors.New("disk I/O error"))
	repo.On("DeleteMission", mock.Anything, "u1", "m1").Return(errors.New("disk I/O error"))

	h := New(repo, "test", loggy.NewNoopLogger()).Router()

	rec := do(t, h, http.MethodGet, "/api/progress?userId=u1", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "disk I/O error", body.Message)
	assert.Equal(t, rec.Header().Get("X-Request-ID"), body.RequestID)
	assert.True(t, strings.HasPrefix(body.RequestID, "req-"))

	rec = do(t, h, http.MethodPost, "/api/progress", `{"userId":"u1","missionId":"m1","progress":{"status":"completed"}}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = do(t, h, http.MethodDelete, "/api/progress?userId=u1&missionId=m1", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	repo.AssertExpectations(t)
}

func TestEnvCheck(t *testing.T) {
	repo := new(mockRepository)
	repo.On("Ping", mock.Anything).Return(nil).Once()
	repo.On("Ping", mock.Anything).Return(errors.New("closed")).Once()

	srv := New(repo, "staging", loggy.NewNoopLogger())
	fixed := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	srv.now = func() time.Time { return fixed }
	h := srv.Router()

	var resp EnvCheckResponse
	rec := do(t, h, http.MethodGet, "/api/env-check", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "staging", resp.Environment)
	assert.True(t, resp.Ready)
	assert.Equal(t, fixed, resp.Timestamp)

	rec = do(t, h, http.MethodGet, "/api/env-check", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Ready)
	assert.False(t, resp.Database)
}
