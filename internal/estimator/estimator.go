// Package estimator implements the recursive state estimators: an oracle
// passthrough baseline, open-loop dead reckoning, a linear Kalman filter
// over the frozen-bearing reduced model, and an extended Kalman filter
// that relinearizes the nonlinear motion and observation models at every
// step.
package estimator

import (
	"fmt"

	"github.com/banshee-data/pose.report/internal/dynamics"
)

// Variant names accepted by the selection surface.
const (
	VariantOracle        = "oracle_observer"
	VariantDeadReckoning = "dead_reckoning"
	VariantKalman        = "kalman_filter"
	VariantExtended      = "extended_kalman_filter"
)

// Record is one timestamped replay sample: the ground-truth state, the
// sensor measurement taken at it, and the control input applied from this
// timestamp onward (the input that drives the run toward the next record).
type Record struct {
	T     float64   // timestamp (s), monotonically non-decreasing
	Truth []float64 // true state, layout per vehicle model
	Input []float64 // control input applied after Truth
	Meas  []float64 // observed measurement
}

// Estimate is one entry of the estimation history.
type Estimate struct {
	T float64
	X []float64
}

// Filter advances the state estimate by one step. prev is the previous
// estimate (never mutated); the returned slice is freshly allocated.
// Filters carrying covariance state mutate it once per call, so a Filter
// instance serves exactly one run at a time.
type Filter interface {
	Name() string
	Step(prev []float64, rec Record) ([]float64, error)
}

// Oracle re-emits the true state. It is a correctness baseline for the
// surrounding plumbing, not a real estimator.
type Oracle struct{}

func (Oracle) Name() string { return VariantOracle }

func (Oracle) Step(prev []float64, rec Record) ([]float64, error) {
	x := make([]float64, len(rec.Truth))
	copy(x, rec.Truth)
	return x, nil
}

// DeadReckoning integrates control inputs through the vehicle model with
// no measurement correction. On noise-free logs it reproduces the truth
// to floating-point precision; under noise its error grows without bound,
// which is the documented behavior of the variant.
type DeadReckoning struct {
	Vehicle dynamics.Vehicle
	DT      float64
}

// NewDeadReckoning returns a dead-reckoning estimator over the vehicle
// with the replay sample interval dt.
func NewDeadReckoning(v dynamics.Vehicle, dt float64) *DeadReckoning {
	return &DeadReckoning{Vehicle: v, DT: dt}
}

func (d *DeadReckoning) Name() string { return VariantDeadReckoning }

func (d *DeadReckoning) Step(prev []float64, rec Record) ([]float64, error) {
	if len(prev) != d.Vehicle.StateDim() {
		return nil, fmt.Errorf("dead reckoning: state dimension %d, vehicle wants %d", len(prev), d.Vehicle.StateDim())
	}
	return dynamics.Step(d.Vehicle, prev, rec.Input, d.DT), nil
}
