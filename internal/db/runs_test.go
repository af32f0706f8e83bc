package db

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := Open(filepath.Join(t.TempDir(), DefaultFileName))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func TestOpen_MigratesToLatest(t *testing.T) {
	t.Parallel()

	d := openTestDB(t)
	version, dirty, err := d.MigrateVersion()
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(2), version)

	// Re-running is a no-op.
	assert.NoError(t, d.MigrateUp())
}

func TestOpen_Reopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), DefaultFileName)
	d, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, d.InsertRun(&TraceRun{VideoKey: "a", VideoPath: "a/a.mp4", RunDir: "a", Localizer: "segmentation", ScaleMMPerPixel: 1, FrameRate: 480}))
	require.NoError(t, d.Close())

	d, err = Open(path)
	require.NoError(t, err)
	defer d.Close()
	runs, err := d.ListRuns()
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestRunLifecycle(t *testing.T) {
	t.Parallel()

	d := openTestDB(t)
	start := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

	run := &TraceRun{
		VideoKey:        "pendulum",
		VideoPath:       "/data/pendulum/pendulum.mp4",
		RunDir:          "/data/pendulum",
		Localizer:       "segmentation",
		ScaleMMPerPixel: 0.5,
		ReferenceX:      100,
		FrameRate:       480,
		AppVersion:      "test",
		StartedAt:       start,
	}
	require.NoError(t, d.InsertRun(run))
	require.NotEmpty(t, run.RunID)

	got, err := d.GetRun(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, got.Status)
	assert.True(t, got.FinishedAt.IsZero())
	assert.True(t, start.Equal(got.StartedAt))

	stats := RunStats{FramesProcessed: 3, DetectionsValid: 3, DetectionsRejected: 0, RecordsWritten: 3}
	require.NoError(t, d.FinishRun(run.RunID, StatusCompleted, stats, "", start.Add(2*time.Second)))

	got, err = d.GetRun(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, 3, got.RecordsWritten)
	assert.Equal(t, 3, got.DetectionsValid)
	assert.Equal(t, "", got.ErrorMessage)
	assert.Equal(t, 2*time.Second, got.FinishedAt.Sub(got.StartedAt))
}

func TestFinishRun_Failed(t *testing.T) {
	t.Parallel()

	d := openTestDB(t)
	run := &TraceRun{VideoKey: "k", VideoPath: "k.mp4", RunDir: "k", Localizer: "region-track", ScaleMMPerPixel: 1, FrameRate: 480}
	require.NoError(t, d.InsertRun(run))
	require.NoError(t, d.FinishRun(run.RunID, StatusFailed, RunStats{}, "disk full", time.Now()))

	got, err := d.GetRun(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "disk full", got.ErrorMessage)
}

func TestRunNotFound(t *testing.T) {
	t.Parallel()

	d := openTestDB(t)
	_, err := d.GetRun("nope")
	assert.True(t, errors.Is(err, ErrRunNotFound))
	assert.ErrorIs(t, d.FinishRun("nope", StatusCompleted, RunStats{}, "", time.Now()), ErrRunNotFound)
	_, err = d.LatestRunForKey("nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestListRuns_NewestFirst(t *testing.T) {
	t.Parallel()

	d := openTestDB(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, key := range []string{"a", "b", "a"} {
		require.NoError(t, d.InsertRun(&TraceRun{
			VideoKey: key, VideoPath: key + ".mp4", RunDir: key, Localizer: "segmentation",
			ScaleMMPerPixel: 1, FrameRate: 480, StartedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	runs, err := d.ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, []string{"a", "b", "a"}, []string{runs[0].VideoKey, runs[1].VideoKey, runs[2].VideoKey})
	assert.True(t, runs[0].StartedAt.After(runs[1].StartedAt))

	latest, err := d.LatestRunForKey("a")
	require.NoError(t, err)
	assert.Equal(t, runs[0].RunID, latest.RunID)
}
