// Package dynamics provides continuous-time vehicle motion models, their
// forward-Euler discretization, and the analytic state-transition
// Jacobians used by the Kalman-family estimators.
package dynamics

import "gonum.org/v1/gonum/mat"

// Vehicle models the continuous-time dynamics of one platform. Implementations
// are pure: Derivative and TransitionJacobian never mutate their arguments and
// have no side effects.
type Vehicle interface {
	// Name identifies the platform in logs, run metadata and artifacts.
	Name() string

	// StateDim returns the length of the state vector.
	StateDim() int

	// InputDim returns the length of the control input vector.
	InputDim() int

	// StateLabels returns one short label per state component, in order.
	StateLabels() []string

	// PositionIndices returns the indices of the two planar position
	// components within the state vector.
	PositionIndices() (x, y int)

	// Derivative returns dx/dt = f(x, u). The result is freshly allocated.
	Derivative(x, u []float64) []float64

	// TransitionJacobian returns A = I + (df/dx)·dt evaluated at (x, u).
	TransitionJacobian(x, u []float64, dt float64) *mat.Dense
}

// Step advances a state one interval by forward Euler: x' = x + f(x,u)·dt.
// A new state vector is returned; the input state is left untouched.
func Step(v Vehicle, x, u []float64, dt float64) []float64 {
	dx := v.Derivative(x, u)
	next := make([]float64, len(x))
	for i := range x {
		next[i] = x[i] + dx[i]*dt
	}
	return next
}

// eye returns a freshly allocated n×n identity matrix.
func eye(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}
