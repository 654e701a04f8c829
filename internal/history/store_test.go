package history

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/fuzzrun/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleRun(id string, startedAt time.Time) *Run {
	return &Run{
		ID:           id,
		StartedAt:    startedAt,
		Duration:     42 * time.Second,
		TotalTargets: 3,
		Completed:    3,
		Failed:       1,
	}
}

func TestNewStoreCreatesParentDirectories(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "history.db")
	store, err := NewStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.RecordRun(context.Background(), sampleRun(NewRunID(), time.Now()), nil))
}

func TestRecordAndGetRun(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	runID := NewRunID()
	started := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	run := sampleRun(runID, started)
	run.Interrupted = true
	run.ContinueOnFailure = true

	outcomes := []models.FuzzOutcome{
		{
			Target:   models.FuzzTarget{Directory: "pkg/parser", Function: "FuzzParse", FilePath: "pkg/parser/parse_test.go"},
			Success:  true,
			Duration: 10 * time.Second,
		},
		{
			Target:   models.FuzzTarget{Directory: "pkg/codec", Function: "FuzzDecode", FilePath: "pkg/codec/codec_test.go"},
			Duration: 8 * time.Second,
			Errors:   "panic: index out of range",
		},
	}
	require.NoError(t, store.RecordRun(ctx, run, outcomes))

	got, err := store.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, runID, got.ID)
	assert.True(t, got.StartedAt.Equal(started))
	assert.Equal(t, 42*time.Second, got.Duration)
	assert.Equal(t, 3, got.TotalTargets)
	assert.Equal(t, 1, got.Failed)
	assert.True(t, got.Interrupted)
	assert.True(t, got.ContinueOnFailure)

	records, err := store.GetOutcomes(ctx, runID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	// Failures sort first.
	assert.Equal(t, "FuzzDecode", records[0].Target.Function)
	assert.False(t, records[0].Success)
	assert.Equal(t, "panic: index out of range", records[0].Errors)
	assert.Equal(t, "FuzzParse", records[1].Target.Function)
	assert.True(t, records[1].Success)
	assert.Equal(t, 10*time.Second, records[1].Duration)
}

func TestGetRunNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetRun(context.Background(), "no-such-run")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestListRunsNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("run-%d", i)
		ids = append(ids, id)
		require.NoError(t, store.RecordRun(ctx, sampleRun(id, base.Add(time.Duration(i)*time.Hour)), nil))
	}

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 5)
	assert.Equal(t, "run-4", runs[0].ID)
	assert.Equal(t, "run-0", runs[4].ID)

	limited, err := store.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "run-4", limited[0].ID)
	assert.Equal(t, "run-3", limited[1].ID)
}

func TestPruneKeepsMostRecent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 6; i++ {
		run := sampleRun(fmt.Sprintf("run-%d", i), base.Add(time.Duration(i)*time.Hour))
		outcomes := []models.FuzzOutcome{
			{Target: models.FuzzTarget{Directory: ".", Function: "FuzzA", FilePath: "a_test.go"}, Success: true},
		}
		require.NoError(t, store.RecordRun(ctx, run, outcomes))
	}

	require.NoError(t, store.Prune(ctx, 2))

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-5", runs[0].ID)
	assert.Equal(t, "run-4", runs[1].ID)

	// Outcomes of pruned runs cascade away.
	records, err := store.GetOutcomes(ctx, "run-0")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestPruneDisabledBelowOne(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, store.RecordRun(ctx, sampleRun(NewRunID(), time.Now().Add(time.Duration(i)*time.Minute)), nil))
	}

	require.NoError(t, store.Prune(ctx, 0))

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}

func TestNewRunIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewRunID()
		assert.NotEmpty(t, id)
		assert.False(t, seen[id], "duplicate run ID %s", id)
		seen[id] = true
	}
}
