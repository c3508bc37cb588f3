package dynamics

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// State component indices for the differential-drive model.
const (
	DDBearing = 0 // phi (rad)
	DDPosX    = 1 // x (m)
	DDPosY    = 2 // y (m)
	DDWheelL  = 3 // left wheel angle (rad)
	DDWheelR  = 4 // right wheel angle (rad)

	// DDStateDim is the state dimension of the differential-drive model.
	DDStateDim = 5
	// DDInputDim is the input dimension: [uL, uR] wheel speeds (rad/s).
	DDInputDim = 2
)

// DiffDrive is a differential-drive ground robot rolling on two driven
// wheels. Bearing rate is proportional to the wheel speed difference over
// the track; translation is the wheel speed sum times half the wheel
// radius, resolved along the current bearing.
type DiffDrive struct {
	HalfTrack   float64 // half of the track width d (m)
	WheelRadius float64 // wheel radius r (m)
}

// NewDiffDrive returns a DiffDrive with the measured platform geometry.
func NewDiffDrive() *DiffDrive {
	return &DiffDrive{
		HalfTrack:   0.08,
		WheelRadius: 0.033,
	}
}

func (d *DiffDrive) Name() string           { return "diffdrive" }
func (d *DiffDrive) StateDim() int          { return DDStateDim }
func (d *DiffDrive) InputDim() int          { return DDInputDim }
func (d *DiffDrive) PositionIndices() (int, int) { return DDPosX, DDPosY }

func (d *DiffDrive) StateLabels() []string {
	return []string{"phi", "x", "y", "theta_l", "theta_r"}
}

// Derivative returns f(x, u) for the differential-drive kinematics.
func (d *DiffDrive) Derivative(x, u []float64) []float64 {
	phi := x[DDBearing]
	uL, uR := u[0], u[1]

	dx := make([]float64, DDStateDim)
	dx[DDBearing] = (uR - uL) * d.WheelRadius / (2 * d.HalfTrack)
	dx[DDPosX] = (uR + uL) * (d.WheelRadius / 2) * math.Cos(phi)
	dx[DDPosY] = (uR + uL) * (d.WheelRadius / 2) * math.Sin(phi)
	dx[DDWheelL] = uL
	dx[DDWheelR] = uR
	return dx
}

// TransitionJacobian returns A = I + (df/dx)·dt at the operating point.
// Only the position rows depend on the state (through the bearing); every
// other partial is zero.
func (d *DiffDrive) TransitionJacobian(x, u []float64, dt float64) *mat.Dense {
	phi := x[DDBearing]
	uL, uR := u[0], u[1]
	halfSum := (uR + uL) * (d.WheelRadius / 2)

	a := eye(DDStateDim)
	a.Set(DDPosX, DDBearing, -halfSum*math.Sin(phi)*dt)
	a.Set(DDPosY, DDBearing, halfSum*math.Cos(phi)*dt)
	return a
}
