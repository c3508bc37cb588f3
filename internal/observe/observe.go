// Package observe provides sensing models mapping a vehicle state to the
// measurement the sensor is expected to report, together with the
// observation Jacobians the Kalman-family estimators linearize against.
package observe

import (
	"math"

	"github.com/banshee-data/pose.report/internal/dynamics"
	"gonum.org/v1/gonum/mat"
)

// Model maps a state vector to an expected measurement. Implementations
// are pure functions of the state.
type Model interface {
	// Name identifies the sensing mode.
	Name() string

	// MeasurementDim returns the length of the measurement vector.
	MeasurementDim() int

	// StateDim returns the state dimension the model operates on.
	StateDim() int

	// Predict returns h(x), the expected measurement at state x.
	Predict(x []float64) []float64

	// Jacobian returns C = dh/dx evaluated at x.
	Jacobian(x []float64) *mat.Dense
}

// Position observes the two planar position components of a reduced-order
// state directly. It is the sensing mode used when the bearing is held
// fixed externally, so the observation is already linear and the Jacobian
// is a constant selection matrix.
type Position struct {
	XIdx, YIdx int // position component indices within the state
	Dim        int // state dimension
}

// NewReducedPosition returns the position observer over the reduced
// frozen-bearing differential-drive state [x y theta_l theta_r].
func NewReducedPosition() *Position {
	return &Position{XIdx: 0, YIdx: 1, Dim: 4}
}

func (p *Position) Name() string        { return "position" }
func (p *Position) MeasurementDim() int { return 2 }
func (p *Position) StateDim() int       { return p.Dim }

func (p *Position) Predict(x []float64) []float64 {
	return []float64{x[p.XIdx], x[p.YIdx]}
}

func (p *Position) Jacobian(x []float64) *mat.Dense {
	c := mat.NewDense(2, p.Dim, nil)
	c.Set(0, p.XIdx, 1)
	c.Set(1, p.YIdx, 1)
	return c
}

// RangeBearing observes the Euclidean distance from the vehicle's planar
// position to a fixed landmark, and the bearing state component directly.
// The landmark may sit a fixed distance off the motion plane; that offset
// enters the range but contributes no state partial.
type RangeBearing struct {
	LandmarkX float64 // landmark coordinate along the first planar axis
	LandmarkY float64 // landmark coordinate along the second planar axis
	Offset    float64 // fixed out-of-plane landmark offset

	XIdx, YIdx int // planar position indices within the state
	BearingIdx int // bearing index within the state
	Dim        int // state dimension
}

// NewDiffDriveRangeBearing returns the range/bearing observer for the
// differential-drive platform with the course landmark at (0.5, 0.5).
func NewDiffDriveRangeBearing() *RangeBearing {
	return &RangeBearing{
		LandmarkX:  0.5,
		LandmarkY:  0.5,
		XIdx:       dynamics.DDPosX,
		YIdx:       dynamics.DDPosY,
		BearingIdx: dynamics.DDBearing,
		Dim:        dynamics.DDStateDim,
	}
}

// NewQuadrotorRangeBearing returns the range/bearing observer for the
// planar quadrotor with the landmark at (0, 5, 5); the quadrotor flies in
// the y=0 plane so the middle coordinate is a constant range offset.
func NewQuadrotorRangeBearing() *RangeBearing {
	return &RangeBearing{
		LandmarkX:  0,
		LandmarkY:  5,
		Offset:     5,
		XIdx:       dynamics.QRPosX,
		YIdx:       dynamics.QRPosZ,
		BearingIdx: dynamics.QRBearing,
		Dim:        dynamics.QRStateDim,
	}
}

func (rb *RangeBearing) Name() string        { return "range_bearing" }
func (rb *RangeBearing) MeasurementDim() int { return 2 }
func (rb *RangeBearing) StateDim() int       { return rb.Dim }

// Range returns the distance from the state's planar position to the
// landmark, including the fixed out-of-plane offset.
func (rb *RangeBearing) Range(x []float64) float64 {
	dx := x[rb.XIdx] - rb.LandmarkX
	dy := x[rb.YIdx] - rb.LandmarkY
	return math.Sqrt(dx*dx + dy*dy + rb.Offset*rb.Offset)
}

func (rb *RangeBearing) Predict(x []float64) []float64 {
	return []float64{rb.Range(x), x[rb.BearingIdx]}
}

// Jacobian returns dh/dx: distance-normalized partials on the range row
// for the position components, a unit partial on the bearing row for the
// bearing component, zero elsewhere.
func (rb *RangeBearing) Jacobian(x []float64) *mat.Dense {
	dist := rb.Range(x)
	c := mat.NewDense(2, rb.Dim, nil)
	c.Set(0, rb.XIdx, (x[rb.XIdx]-rb.LandmarkX)/dist)
	c.Set(0, rb.YIdx, (x[rb.YIdx]-rb.LandmarkY)/dist)
	c.Set(1, rb.BearingIdx, 1)
	return c
}
