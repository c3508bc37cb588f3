package estimator

import (
	"fmt"

	"github.com/banshee-data/pose.report/internal/dynamics"
	"github.com/banshee-data/pose.report/internal/observe"
	"gonum.org/v1/gonum/mat"
)

// ExtendedKalmanFilter runs the same four-step recursion as KalmanFilter
// but propagates through the nonlinear vehicle model, relinearizes A and C
// at the current operating point on every step, and forms the innovation
// against the nonlinear observation model.
type ExtendedKalmanFilter struct {
	vehicle dynamics.Vehicle
	obs     observe.Model
	dt      float64

	q, r *mat.Dense
	p    *mat.Dense
}

// DefaultEKFNoise returns the tuned noise covariances for the vehicle's
// full nonlinear range/bearing model.
func DefaultEKFNoise(v dynamics.Vehicle) NoiseConfig {
	switch v.(type) {
	case *dynamics.DiffDrive:
		return NoiseConfig{
			ProcessDiag:     []float64{0.01, 0.25, 0.25, 0.01, 0.01},
			MeasurementDiag: ConstDiag(2, 100),
			InitialDiag:     []float64{1, 0.25, 0.25, 100, 100},
		}
	default:
		return NoiseConfig{
			ProcessDiag:     ConstDiag(dynamics.QRStateDim, 0.01),
			MeasurementDiag: ConstDiag(2, 10),
			InitialDiag:     ConstDiag(dynamics.QRStateDim, 0.1),
		}
	}
}

// NewExtendedKalmanFilter builds the EKF over the given vehicle and
// observation models with the replay sample interval dt.
func NewExtendedKalmanFilter(v dynamics.Vehicle, obs observe.Model, dt float64, noise NoiseConfig) (*ExtendedKalmanFilter, error) {
	if err := noise.validate(); err != nil {
		return nil, fmt.Errorf("extended kalman filter: %w", err)
	}
	if obs.StateDim() != v.StateDim() {
		return nil, fmt.Errorf("extended kalman filter: observation model state dimension %d, vehicle wants %d", obs.StateDim(), v.StateDim())
	}
	n := v.StateDim()
	if len(noise.ProcessDiag) != n || len(noise.InitialDiag) != n {
		return nil, fmt.Errorf("extended kalman filter: Q/P0 diagonals must be %d long", n)
	}
	if len(noise.MeasurementDiag) != obs.MeasurementDim() {
		return nil, fmt.Errorf("extended kalman filter: R diagonal must be %d long", obs.MeasurementDim())
	}

	return &ExtendedKalmanFilter{
		vehicle: v,
		obs:     obs,
		dt:      dt,
		q:       diag(noise.ProcessDiag),
		r:       diag(noise.MeasurementDiag),
		p:       diag(noise.InitialDiag),
	}, nil
}

func (e *ExtendedKalmanFilter) Name() string { return VariantExtended }

// Covariance returns a copy of the current estimate covariance.
func (e *ExtendedKalmanFilter) Covariance() *mat.Dense {
	var p mat.Dense
	p.CloneFrom(e.p)
	return &p
}

func (e *ExtendedKalmanFilter) Step(prev []float64, rec Record) ([]float64, error) {
	if len(prev) != e.vehicle.StateDim() {
		return nil, fmt.Errorf("extended kalman filter: state dimension %d, vehicle wants %d", len(prev), e.vehicle.StateDim())
	}
	if len(rec.Meas) != e.obs.MeasurementDim() {
		return nil, fmt.Errorf("extended kalman filter: measurement dimension %d, want %d", len(rec.Meas), e.obs.MeasurementDim())
	}

	// Predict through the nonlinear model; linearize the transition at
	// the previous operating point.
	xPredVals := dynamics.Step(e.vehicle, prev, rec.Input, e.dt)
	a := e.vehicle.TransitionJacobian(prev, rec.Input, e.dt)
	pPred := propagateCovariance(a, e.p, e.q)

	// Correct: linearize the observation at the predicted state; the
	// innovation uses the nonlinear h, not C·x⁻.
	c := e.obs.Jacobian(xPredVals)
	innov := innovation(rec.Meas, e.obs.Predict(xPredVals))

	xPred := mat.NewVecDense(len(xPredVals), xPredVals)
	xNew, pNew, err := correct(xPred, pPred, c, e.r, innov)
	if err != nil {
		return nil, fmt.Errorf("extended kalman filter: %w", err)
	}
	e.p = pNew

	out := make([]float64, xNew.Len())
	copy(out, xNew.RawVector().Data)
	return out, nil
}
