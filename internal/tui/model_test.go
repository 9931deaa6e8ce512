package tui

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tildaslashalef/farmboard/internal/catalog"
	"github.com/tildaslashalef/farmboard/internal/progress"
)

type fakeBoard struct {
	statuses map[string]progress.Status
	counts   map[string]int
	pending  int
	online   bool
	syncErr  error
	synced   int
}

func (f *fakeBoard) UserID() string { return "user_abc" }

func (f *fakeBoard) MissionStatus(id string) progress.Status {
	if s, ok := f.statuses[id]; ok {
		return s
	}
	return progress.StatusNotStarted
}

func (f *fakeBoard) SubmissionCount(id string) int { return f.counts[id] }
func (f *fakeBoard) PendingCount() int { return f.pending }
func (f *fakeBoard) Syncing() bool { return false }

func (f *fakeBoard) ManualSync(context.Context) (bool, error) {
	f.synced++
	if f.online && f.syncErr == nil {
		f.pending = 0
	}
	return f.online, f.syncErr
}

const doc = `
networks:
  - key: base
    label: Base
    priority: 1
    missions:
      - id: base_swap
        label: Swap on a DEX
      - id: base_lp
        label: Provide liquidity
`

func newTestModel(t *testing.T, board *fakeBoard) Model {
	t.Helper()
	cat, err := catalog.Parse([]byte(doc))
	require.NoError(t, err)
	return NewModel(context.Background(), board, cat, nil, time.Second)
}

func keyPress(r string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(r)}
}

func TestViewShowsMissionsAndCompletion(t *testing.T) {
	board := &fakeBoard{
		statuses: map[string]progress.Status{"base_swap": progress.StatusCompleted},
		counts:   map[string]int{"base_swap": 2},
		pending:  1,
	}
	m := newTestModel(t, board)

	view := m.View()
	assert.Contains(t, view, "Base")
	assert.Contains(t, view, "base_swap")
	assert.Contains(t, view, "Provide liquidity")
	assert.Contains(t, view, "(2)")
	assert.Contains(t, view, "1/2 completed")
	assert.Contains(t, view, "1 pending")
	assert.Contains(t, view, "user_abc")
}

func TestQuitKey(t *testing.T) {
	m := newTestModel(t, &fakeBoard{})
	_, cmd := m.Update(keyPress("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}

func TestHelpToggle(t *testing.T) {
	m := newTestModel(t, &fakeBoard{})
	next, _ := m.Update(keyPress("?"))
	assert.True(t, next.(Model).showHelp)
}

func TestManualSyncFlow(t *testing.T) {
	board := &fakeBoard{pending: 2, online: true}
	m := newTestModel(t, board)

	next, cmd := m.Update(keyPress("s"))
	require.NotNil(t, cmd)
	m = next.(Model)
	assert.True(t, m.syncing)

	// a second press while syncing is ignored
	_, again := m.Update(keyPress("s"))
	assert.Nil(t, again)

	done := m.manualSync()()
	assert.Equal(t, syncDoneMsg{online: true}, done)
	assert.Equal(t, 1, board.synced)

	next, _ = m.Update(done)
	m = next.(Model)
	assert.False(t, m.syncing)
	assert.Equal(t, "Everything is synced", m.message)
}

func TestManualSyncOfflineAndError(t *testing.T) {
	board := &fakeBoard{pending: 1}
	m := newTestModel(t, board)

	next, _ := m.Update(syncDoneMsg{online: false})
	assert.Contains(t, next.(Model).message, "offline")

	next, _ = m.Update(syncDoneMsg{online: true, err: errors.New("disk full")})
	assert.Equal(t, "disk full", next.(Model).errorMsg)
	assert.Contains(t, next.(Model).View(), "disk full")
}

func TestCatalogReload(t *testing.T) {
	updates := make(chan *catalog.Catalog, 1)
	cat, err := catalog.Parse([]byte(doc))
	require.NoError(t, err)
	m := NewModel(context.Background(), &fakeBoard{}, cat, updates, time.Second)

	reloaded, err := catalog.Parse([]byte("networks:\n  - key: linea\n    label: Linea\n    missions:\n      - id: linea_bridge\n        label: Bridge\n"))
	require.NoError(t, err)
	updates <- reloaded

	msg := m.waitForCatalog()()
	next, cmd := m.Update(msg)
	assert.NotNil(t, cmd, "keeps listening for further updates")

	view := next.(Model).View()
	assert.Contains(t, view, "linea_bridge")
	assert.NotContains(t, view, "base_swap")
	assert.Contains(t, next.(Model).message, "Catalog reloaded")
}

func TestNoCatalogListenerWithoutUpdates(t *testing.T) {
	m := newTestModel(t, &fakeBoard{})
	assert.Nil(t, m.waitForCatalog())
}
