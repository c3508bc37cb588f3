package estimator

import (
	"math"
	"testing"

	"github.com/banshee-data/pose.report/internal/dynamics"
	"github.com/banshee-data/pose.report/internal/observe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeDiffDriveRun simulates a clean differential-drive run: truth by
// forward Euler, range/bearing measurements straight off the truth, each
// record carrying the input applied after its truth state and timestamps
// counting from dt.
func makeDiffDriveRun(t *testing.T, steps int, dt float64, input func(i int) []float64) []Record {
	t.Helper()
	v := dynamics.NewDiffDrive()
	rb := observe.NewDiffDriveRangeBearing()

	x := make([]float64, dynamics.DDStateDim)
	recs := make([]Record, 0, steps)
	for i := 0; i < steps; i++ {
		u := input(i)
		recs = append(recs, Record{
			T:     float64(i+1) * dt,
			Truth: append([]float64(nil), x...),
			Input: append([]float64(nil), u...),
			Meas:  rb.Predict(x),
		})
		x = dynamics.Step(v, x, u, dt)
	}
	return recs
}

func turningInput(i int) []float64 {
	return []float64{1 + 0.2*math.Sin(0.3*float64(i)), 1 - 0.2*math.Sin(0.3*float64(i))}
}

// TestOraclePassthrough checks that the oracle re-emits the truth and never
// aliases the record's slice.
func TestOraclePassthrough(t *testing.T) {
	t.Parallel()

	truth := []float64{1, 2, 3, 4, 5}
	x, err := Oracle{}.Step([]float64{0, 0, 0, 0, 0}, Record{Truth: truth})
	require.NoError(t, err)
	assert.Equal(t, truth, x)

	x[0] = 99
	assert.Equal(t, 1.0, truth[0])
}

// TestDeadReckoningExact verifies that dead reckoning reproduces a clean
// Euler-generated run to floating-point precision.
func TestDeadReckoningExact(t *testing.T) {
	t.Parallel()

	const dt = 0.1
	recs := makeDiffDriveRun(t, 50, dt, turningInput)
	dr := NewDeadReckoning(dynamics.NewDiffDrive(), dt)

	ests, err := NewDriver(dr, nil).Run(recs)
	require.NoError(t, err)
	require.Len(t, ests, len(recs))

	for i, est := range ests {
		for j := range est.X {
			assert.InDeltaf(t, recs[i].Truth[j], est.X[j], 1e-9, "record %d component %d", i, j)
		}
	}
}

// TestDeadReckoningDimensionCheck rejects a state of the wrong size.
func TestDeadReckoningDimensionCheck(t *testing.T) {
	t.Parallel()

	dr := NewDeadReckoning(dynamics.NewDiffDrive(), 0.1)
	_, err := dr.Step([]float64{1, 2}, Record{Input: []float64{1, 1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "state dimension")
}

// TestDriver covers the bootstrap, history and sink behavior of the replay
// driver.
func TestDriver(t *testing.T) {
	t.Parallel()

	t.Run("bootstraps from the first truth", func(t *testing.T) {
		t.Parallel()
		recs := makeDiffDriveRun(t, 5, 0.1, turningInput)
		recs[0].Truth[dynamics.DDPosX] = 0.42

		ests, err := NewDriver(Oracle{}, nil).Run(recs)
		require.NoError(t, err)
		assert.Equal(t, 0.42, ests[0].X[dynamics.DDPosX])
	})

	t.Run("history grows by one entry per record", func(t *testing.T) {
		t.Parallel()
		recs := makeDiffDriveRun(t, 17, 0.1, turningInput)
		d := NewDriver(Oracle{}, nil)

		ests, err := d.Run(recs)
		require.NoError(t, err)
		assert.Len(t, ests, 17)
		assert.Len(t, d.History(), 17)
	})

	t.Run("sink sees every estimate in order", func(t *testing.T) {
		t.Parallel()
		recs := makeDiffDriveRun(t, 8, 0.1, turningInput)

		var seen []float64
		sink := func(est Estimate) { seen = append(seen, est.T) }
		_, err := NewDriver(Oracle{}, sink).Run(recs)
		require.NoError(t, err)

		require.Len(t, seen, 8)
		for i := 1; i < len(seen); i++ {
			assert.Greater(t, seen[i], seen[i-1])
		}
	})

	t.Run("empty run is an error", func(t *testing.T) {
		t.Parallel()
		_, err := NewDriver(Oracle{}, nil).Run(nil)
		require.Error(t, err)
	})
}

// inputTrace records the input every step receives.
type inputTrace struct {
	inputs [][]float64
}

func (f *inputTrace) Name() string { return "input_trace" }

func (f *inputTrace) Step(prev []float64, rec Record) ([]float64, error) {
	f.inputs = append(f.inputs, append([]float64(nil), rec.Input...))
	return append([]float64(nil), rec.Truth...), nil
}

// TestDriverFeedsPrecedingInput checks that the step to record i consumes
// record i-1's input, the one applied over the interval ending at i.
func TestDriverFeedsPrecedingInput(t *testing.T) {
	t.Parallel()

	recs := make([]Record, 5)
	for i := range recs {
		f := float64(i)
		recs[i] = Record{
			T:     (f + 1) * 0.1,
			Truth: []float64{f},
			Input: []float64{f * 10, -f * 10},
			Meas:  []float64{0},
		}
	}

	trace := &inputTrace{}
	_, err := NewDriver(trace, nil).Run(recs)
	require.NoError(t, err)

	require.Len(t, trace.inputs, len(recs)-1)
	for k, got := range trace.inputs {
		assert.Equalf(t, recs[k].Input, got, "step to record %d", k+1)
	}
}

// TestSampleInterval derives dt from the run's span and length.
func TestSampleInterval(t *testing.T) {
	t.Parallel()

	// Timestamps count from dt, so t_last/N recovers the cadence exactly.
	recs := makeDiffDriveRun(t, 10, 0.1, turningInput)
	dt, err := SampleInterval(recs)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, dt, 1e-12)

	_, err = SampleInterval(nil)
	require.Error(t, err)

	_, err = SampleInterval([]Record{{T: 0}})
	require.Error(t, err)
}

// TestValidateRun rejects dimension mismatches and timestamp regressions.
func TestValidateRun(t *testing.T) {
	t.Parallel()
	v := dynamics.NewDiffDrive()

	t.Run("accepts a well-formed run", func(t *testing.T) {
		t.Parallel()
		recs := makeDiffDriveRun(t, 5, 0.1, turningInput)
		require.NoError(t, ValidateRun(v, recs))
	})

	t.Run("rejects a short state", func(t *testing.T) {
		t.Parallel()
		recs := makeDiffDriveRun(t, 5, 0.1, turningInput)
		recs[3].Truth = recs[3].Truth[:3]
		err := ValidateRun(v, recs)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "state dimension")
	})

	t.Run("rejects a short input", func(t *testing.T) {
		t.Parallel()
		recs := makeDiffDriveRun(t, 5, 0.1, turningInput)
		recs[2].Input = recs[2].Input[:1]
		err := ValidateRun(v, recs)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "input dimension")
	})

	t.Run("rejects a timestamp regression", func(t *testing.T) {
		t.Parallel()
		recs := makeDiffDriveRun(t, 5, 0.1, turningInput)
		recs[4].T = recs[2].T
		err := ValidateRun(v, recs)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "precedes")
	})

	t.Run("rejects an empty run", func(t *testing.T) {
		t.Parallel()
		require.Error(t, ValidateRun(v, nil))
	})
}
