package history_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/md-to-pdf-service/internal/history"
	"github.com/book-expert/md-to-pdf-service/internal/mdrender"
)

// newTestStore opens a store under a nested path to exercise directory creation.
func newTestStore(t *testing.T) *history.Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "state", "history.db")

	store, err := history.New(path)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, store.Close()) })

	return store
}

func sampleResults() []mdrender.Result {
	return []mdrender.Result{
		{
			Job:         mdrender.Job{Source: "guide.md", Output: "guide.pdf"},
			Status:      mdrender.StatusSucceeded,
			Reason:      "",
			OutputBytes: 2048,
		},
		{
			Job:         mdrender.Job{Source: "missing.md", Output: "missing.pdf"},
			Status:      mdrender.StatusSourceMissing,
			Reason:      "source file not found: missing.md",
			OutputBytes: 0,
		},
	}
}

func TestRecordRunAndRecentRuns(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestStore(t)

	startedAt := time.Now().Add(-time.Minute)
	finishedAt := time.Now()

	runID, recordErr := store.RecordRun(ctx, startedAt, finishedAt, sampleResults())
	require.NoError(t, recordErr)
	assert.Positive(t, runID)

	runs, listErr := store.RecentRuns(ctx, 10)
	require.NoError(t, listErr)
	require.Len(t, runs, 1)

	run := runs[0]
	assert.Equal(t, runID, run.ID)
	assert.Equal(t, 1, run.Succeeded)
	assert.Equal(t, 1, run.Failed)
	assert.WithinDuration(t, startedAt, run.StartedAt, time.Second)
	assert.WithinDuration(t, finishedAt, run.FinishedAt, time.Second)

	require.Len(t, run.Jobs, 2)
	assert.Equal(t, "guide.md", run.Jobs[0].Source)
	assert.Equal(t, "guide.pdf", run.Jobs[0].Output)
	assert.Equal(t, string(mdrender.StatusSucceeded), run.Jobs[0].Status)
	assert.Equal(t, int64(2048), run.Jobs[0].OutputBytes)
	assert.Equal(t, string(mdrender.StatusSourceMissing), run.Jobs[1].Status)
	assert.Equal(t, "source file not found: missing.md", run.Jobs[1].Detail)
}

func TestRecentRuns_NewestFirstAndLimited(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestStore(t)

	firstID, firstErr := store.RecordRun(
		ctx,
		time.Now().Add(-2*time.Minute),
		time.Now().Add(-time.Minute),
		sampleResults(),
	)
	require.NoError(t, firstErr)

	secondID, secondErr := store.RecordRun(ctx, time.Now(), time.Now(), nil)
	require.NoError(t, secondErr)

	runs, listErr := store.RecentRuns(ctx, 10)
	require.NoError(t, listErr)
	require.Len(t, runs, 2)
	assert.Equal(t, secondID, runs[0].ID)
	assert.Equal(t, firstID, runs[1].ID)
	assert.Empty(t, runs[0].Jobs)

	limited, limitErr := store.RecentRuns(ctx, 1)
	require.NoError(t, limitErr)
	require.Len(t, limited, 1)
	assert.Equal(t, secondID, limited[0].ID)
}

func TestRecentRuns_EmptyDatabase(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	// A non-positive limit falls back to the default.
	runs, listErr := store.RecentRuns(context.Background(), 0)
	require.NoError(t, listErr)
	assert.Empty(t, runs)
}
