package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/banshee-data/pose.report/internal/estimator"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "pose_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleRecords(n int) []estimator.Record {
	recs := make([]estimator.Record, 0, n)
	for i := 0; i < n; i++ {
		f := float64(i)
		recs = append(recs, estimator.Record{
			T:     f * 0.1,
			Truth: []float64{f, f * 2, f * 3, f * 4, f * 5},
			Input: []float64{1, -1},
			Meas:  []float64{f * 0.5, f * 0.25},
		})
	}
	return recs
}

// TestRunRoundTrip creates a run, stores its records and reads everything
// back unchanged.
func TestRunRoundTrip(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)

	recs := sampleRecords(7)
	runID, err := store.CreateRun("diffdrive", "range_bearing", true)
	require.NoError(t, err)
	require.NoError(t, store.InsertRecords(runID, recs))

	run, err := store.GetRun(runID)
	require.NoError(t, err)
	assert.Equal(t, "diffdrive", run.Vehicle)
	assert.Equal(t, "range_bearing", run.Sensing)
	assert.True(t, run.Noisy)
	assert.Equal(t, 7, run.SampleCount)

	got, err := store.LoadRecords(runID)
	require.NoError(t, err)
	if diff := cmp.Diff(recs, got); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
}

// TestGetRunMissing reports absent runs as errors.
func TestGetRunMissing(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)

	_, err := store.GetRun("no-such-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

// TestLatestRun returns the newest run matching vehicle, sensing and noise
// mode, with an empty sensing matching any mode.
func TestLatestRun(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)

	first, err := store.CreateRun("diffdrive", "position", false)
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, err := store.CreateRun("diffdrive", "range_bearing", false)
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	_, err = store.CreateRun("quadrotor", "range_bearing", true)
	require.NoError(t, err)

	run, err := store.LatestRun("diffdrive", "position", false)
	require.NoError(t, err)
	assert.Equal(t, first, run.RunID)

	run, err = store.LatestRun("diffdrive", "", false)
	require.NoError(t, err)
	assert.Equal(t, second, run.RunID)

	_, err = store.LatestRun("diffdrive", "range_bearing", true)
	require.Error(t, err)

	run, err = store.LatestRun("quadrotor", "range_bearing", true)
	require.NoError(t, err)
	assert.Equal(t, "quadrotor", run.Vehicle)
}

// TestListRuns returns every run, newest first.
func TestListRuns(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)

	_, err := store.CreateRun("diffdrive", "position", false)
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	newest, err := store.CreateRun("quadrotor", "range_bearing", false)
	require.NoError(t, err)

	runs, err := store.ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, newest, runs[0].RunID)
}

// TestEstimatesRoundTrip saves and reloads an estimate trace, and checks
// re-saving replaces the previous trace for the same variant only.
func TestEstimatesRoundTrip(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)

	runID, err := store.CreateRun("quadrotor", "range_bearing", false)
	require.NoError(t, err)

	ests := []estimator.Estimate{
		{T: 0, X: []float64{0, 1, 0, 0, 0, 0}},
		{T: 0.1, X: []float64{0.01, 1.02, 0, 0.1, 0.2, 0}},
	}
	require.NoError(t, store.SaveEstimates(runID, estimator.VariantExtended, ests))
	require.NoError(t, store.SaveEstimates(runID, estimator.VariantDeadReckoning, ests[:1]))

	got, err := store.LoadEstimates(runID, estimator.VariantExtended)
	require.NoError(t, err)
	if diff := cmp.Diff(ests, got); diff != "" {
		t.Errorf("estimates mismatch (-want +got):\n%s", diff)
	}

	// Replacing one variant's trace leaves the other untouched.
	replacement := []estimator.Estimate{{T: 0, X: []float64{9, 9, 9, 9, 9, 9}}}
	require.NoError(t, store.SaveEstimates(runID, estimator.VariantExtended, replacement))

	got, err = store.LoadEstimates(runID, estimator.VariantExtended)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 9.0, got[0].X[0])

	other, err := store.LoadEstimates(runID, estimator.VariantDeadReckoning)
	require.NoError(t, err)
	assert.Len(t, other, 1)
	assert.Equal(t, 0.0, other[0].X[0])
}
