package estimator

import (
	"fmt"

	"github.com/banshee-data/pose.report/internal/dynamics"
)

// Sink receives each new estimate as it is produced. It decouples
// estimation from rendering and persistence; a nil sink is ignored.
type Sink func(est Estimate)

// Driver replays a recorded run through a filter one record at a time.
// The first record bootstraps the estimate from the true initial state;
// every subsequent record advances the filter once. A record's input is
// the control applied after its truth state, so the step to record i
// consumes record i-1's input. The history grows by exactly one entry per
// record and is never truncated or reordered.
type Driver struct {
	filter  Filter
	sink    Sink
	history []Estimate
}

// NewDriver returns a Driver for the filter. sink may be nil.
func NewDriver(f Filter, sink Sink) *Driver {
	return &Driver{filter: f, sink: sink}
}

// SampleInterval derives the fixed sample interval of a recorded run from
// its total logged duration and sample count.
func SampleInterval(recs []Record) (float64, error) {
	if len(recs) == 0 {
		return 0, fmt.Errorf("derive sample interval: empty run")
	}
	dt := recs[len(recs)-1].T / float64(len(recs))
	if dt <= 0 {
		return 0, fmt.Errorf("derive sample interval: non-positive interval %g", dt)
	}
	return dt, nil
}

// ValidateRun checks every record against the vehicle's dimensions before
// any estimation begins. A mismatch is a configuration error.
func ValidateRun(v dynamics.Vehicle, recs []Record) error {
	if len(recs) == 0 {
		return fmt.Errorf("validate run: no records")
	}
	lastT := recs[0].T
	for i, rec := range recs {
		if len(rec.Truth) != v.StateDim() {
			return fmt.Errorf("validate run: record %d state dimension %d, vehicle %q wants %d", i, len(rec.Truth), v.Name(), v.StateDim())
		}
		if len(rec.Input) != v.InputDim() {
			return fmt.Errorf("validate run: record %d input dimension %d, vehicle %q wants %d", i, len(rec.Input), v.Name(), v.InputDim())
		}
		if rec.T < lastT {
			return fmt.Errorf("validate run: record %d timestamp %g precedes %g", i, rec.T, lastT)
		}
		lastT = rec.T
	}
	return nil
}

// Run processes the records in order and returns the estimation history.
// The history length equals the number of records processed. Any step
// error aborts the run immediately with the failing index.
func (d *Driver) Run(recs []Record) ([]Estimate, error) {
	if len(recs) == 0 {
		return nil, fmt.Errorf("replay: no records")
	}

	for i, rec := range recs {
		var est Estimate
		if i == 0 {
			// Bootstrap from the true initial condition.
			x := make([]float64, len(rec.Truth))
			copy(x, rec.Truth)
			est = Estimate{T: rec.T, X: x}
		} else {
			// The interval ending at this record was driven by the
			// preceding record's input.
			step := rec
			step.Input = recs[i-1].Input
			x, err := d.filter.Step(d.history[len(d.history)-1].X, step)
			if err != nil {
				return nil, fmt.Errorf("replay: record %d: %w", i, err)
			}
			est = Estimate{T: rec.T, X: x}
		}
		d.history = append(d.history, est)
		if d.sink != nil {
			d.sink(est)
		}
	}
	return d.History(), nil
}

// History returns the estimates produced so far.
func (d *Driver) History() []Estimate {
	out := make([]Estimate, len(d.history))
	copy(out, d.history)
	return out
}
