package progress

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserProgressStatusDefaults(t *testing.T) {
	p := Empty("user_1", time.Now())

	assert.Equal(t, StatusNotStarted, p.Status("unknown-mission"))
	assert.Equal(t, 0, p.SubmissionCount("unknown-mission"))

	var nilProgress *UserProgress
	assert.Equal(t, StatusNotStarted, nilProgress.Status("m1"))
	assert.Equal(t, 0, nilProgress.SubmissionCount("m1"))
}

func TestNormalizeForcesMissionKeys(t *testing.T) {
	p := &UserProgress{
		UserID: "user_1",
		Missions: map[string]MissionProgress{
			"m1": {MissionID: "wrong", Status: StatusCompleted},
		},
	}
	p.Normalize()
	assert.Equal(t, "m1", p.Missions["m1"].MissionID)

	empty := &UserProgress{UserID: "user_2"}
	empty.Normalize()
	assert.NotNil(t, empty.Missions)
}

func TestExtensionsRoundTrip(t *testing.T) {
	input := `{
		"userId": "user_1",
		"lastUpdated": "2025-01-02T03:04:05Z",
		"theme": "dark",
		"missions": {
			"m1": {"missionId": "m1", "status": "completed", "txHash": "0xabc", "reward": {"points": 10}}
		}
	}`

	var p UserProgress
	require.NoError(t, json.Unmarshal([]byte(input), &p))

	assert.Equal(t, StatusCompleted, p.Missions["m1"].Status)
	assert.JSONEq(t, `"dark"`, string(p.Extensions["theme"]))
	assert.JSONEq(t, `{"points": 10}`, string(p.Missions["m1"].Extensions["reward"]))

	out, err := json.Marshal(p)
	require.NoError(t, err)

	var back map[string]any
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, "dark", back["theme"])
	mission := back["missions"].(map[string]any)["m1"].(map[string]any)
	assert.Equal(t, map[string]any{"points": float64(10)}, mission["reward"])
}

func TestExtensionsCannotShadowKnownFields(t *testing.T) {
	m := MissionProgress{MissionID: "m1", Status: StatusInProgress}
	require.NoError(t, m.Extensions.Set("status", "completed"))
	require.NoError(t, m.Extensions.Set("difficulty", "hard"))

	out, err := json.Marshal(m)
	require.NoError(t, err)

	var back MissionProgress
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, StatusInProgress, back.Status)

	var difficulty string
	found, err := back.Extensions.Get("difficulty", &difficulty)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "hard", difficulty)
}

func TestCompleteAppendsSubmission(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	first := Complete(nil, MissionSubmission{MissionID: "m1", TxHash: "0x1", ExplorerURL: "https://x/1"}, t0)
	assert.Equal(t, StatusCompleted, first.Status)
	assert.Len(t, first.Submissions, 1)
	require.NotNil(t, first.StartedAt)
	assert.Equal(t, t0, *first.StartedAt)

	second := Complete(&first, MissionSubmission{MissionID: "m1", TxHash: "0x2", ExplorerURL: "https://x/2", Notes: "again"}, t1)
	assert.Len(t, second.Submissions, 2)
	assert.Equal(t, "0x2", second.TxHash)
	assert.Equal(t, "again", second.Notes)
	assert.Equal(t, t0, *second.StartedAt, "start time is carried forward")
	assert.Equal(t, t1, *second.CompletedAt)

	// the previous record is untouched
	assert.Len(t, first.Submissions, 1)
}

func TestStartKeepsCompletedStatus(t *testing.T) {
	now := time.Now()
	started := Start(nil, "m1", now)
	assert.Equal(t, StatusInProgress, started.Status)

	done := Complete(&started, MissionSubmission{MissionID: "m1", TxHash: "0x1"}, now)
	again := Start(&done, "m1", now)
	assert.Equal(t, StatusCompleted, again.Status)
	assert.Len(t, again.Submissions, 1)
}

func TestCloneIsDeep(t *testing.T) {
	now := time.Now()
	p := Empty("user_1", now)
	p.Missions["m1"] = Complete(nil, MissionSubmission{MissionID: "m1", TxHash: "0x1"}, now)

	c := p.Clone()
	mp := c.Missions["m1"]
	mp.Submissions[0].TxHash = "changed"
	c.Missions["m1"] = mp

	assert.Equal(t, "0x1", p.Missions["m1"].Submissions[0].TxHash)
}
