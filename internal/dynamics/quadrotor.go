package dynamics

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// State component indices for the planar quadrotor model.
const (
	QRPosX    = 0 // x (m)
	QRPosZ    = 1 // z (m)
	QRBearing = 2 // phi (rad)
	QRVelX    = 3 // vx (m/s)
	QRVelZ    = 4 // vz (m/s)
	QROmega   = 5 // angular velocity (rad/s)

	// QRStateDim is the state dimension of the planar quadrotor model.
	QRStateDim = 6
	// QRInputDim is the input dimension: [thrust, torque].
	QRInputDim = 2
)

// Quadrotor is a quadrotor constrained to a vertical plane. Thrust acts
// along the body axis, resolved by the bearing against gravity; torque
// drives the angular rate directly through the moment of inertia.
type Quadrotor struct {
	Mass    float64 // m (kg)
	Inertia float64 // moment of inertia J (kg·m²)
	Gravity float64 // g (m/s²)
}

// NewQuadrotor returns a Quadrotor with the bench-measured parameters.
func NewQuadrotor() *Quadrotor {
	return &Quadrotor{
		Mass:    0.92,
		Inertia: 0.0023,
		Gravity: 9.81,
	}
}

func (q *Quadrotor) Name() string           { return "quadrotor" }
func (q *Quadrotor) StateDim() int          { return QRStateDim }
func (q *Quadrotor) InputDim() int          { return QRInputDim }
func (q *Quadrotor) PositionIndices() (int, int) { return QRPosX, QRPosZ }

func (q *Quadrotor) StateLabels() []string {
	return []string{"x", "z", "phi", "vx", "vz", "omega"}
}

// Derivative returns f(x, u) for the planar quadrotor.
func (q *Quadrotor) Derivative(x, u []float64) []float64 {
	phi := x[QRBearing]
	thrust, torque := u[0], u[1]

	dx := make([]float64, QRStateDim)
	dx[QRPosX] = x[QRVelX]
	dx[QRPosZ] = x[QRVelZ]
	dx[QRBearing] = x[QROmega]
	dx[QRVelX] = -(thrust / q.Mass) * math.Sin(phi)
	dx[QRVelZ] = (thrust/q.Mass)*math.Cos(phi) - q.Gravity
	dx[QROmega] = torque / q.Inertia
	return dx
}

// TransitionJacobian returns A = I + (df/dx)·dt at the operating point.
// The position and bearing rows select velocities; only the velocity rows
// depend on the bearing.
func (q *Quadrotor) TransitionJacobian(x, u []float64, dt float64) *mat.Dense {
	phi := x[QRBearing]
	thrust := u[0]

	a := eye(QRStateDim)
	a.Set(QRPosX, QRVelX, dt)
	a.Set(QRPosZ, QRVelZ, dt)
	a.Set(QRBearing, QROmega, dt)
	a.Set(QRVelX, QRBearing, -(thrust/q.Mass)*math.Cos(phi)*dt)
	a.Set(QRVelZ, QRBearing, -(thrust/q.Mass)*math.Sin(phi)*dt)
	return a
}
