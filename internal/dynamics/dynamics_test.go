package dynamics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

// finiteDifferenceJacobian approximates I + df/dx·dt by central differences
// of the Euler step, for checking the analytic transition Jacobians.
func finiteDifferenceJacobian(v Vehicle, x, u []float64, dt float64) [][]float64 {
	const h = 1e-6
	n := v.StateDim()
	jac := make([][]float64, n)
	for i := range jac {
		jac[i] = make([]float64, n)
	}
	for j := 0; j < n; j++ {
		xPlus := append([]float64(nil), x...)
		xMinus := append([]float64(nil), x...)
		xPlus[j] += h
		xMinus[j] -= h
		fPlus := Step(v, xPlus, u, dt)
		fMinus := Step(v, xMinus, u, dt)
		for i := 0; i < n; i++ {
			jac[i][j] = (fPlus[i] - fMinus[i]) / (2 * h)
		}
	}
	return jac
}

func randomState(rng *rand.Rand, n int) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = rng.Float64()*4 - 2
	}
	return x
}

// TestDiffDriveDerivative checks the kinematics at hand-computed points.
func TestDiffDriveDerivative(t *testing.T) {
	t.Parallel()
	v := NewDiffDrive()

	t.Run("straight line along the heading", func(t *testing.T) {
		t.Parallel()
		x := make([]float64, DDStateDim)
		dx := v.Derivative(x, []float64{1, 1})

		assert.InDelta(t, 0, dx[DDBearing], 1e-12)
		assert.InDelta(t, v.WheelRadius, dx[DDPosX], 1e-12)
		assert.InDelta(t, 0, dx[DDPosY], 1e-12)
		assert.InDelta(t, 1, dx[DDWheelL], 1e-12)
		assert.InDelta(t, 1, dx[DDWheelR], 1e-12)
	})

	t.Run("spin in place", func(t *testing.T) {
		t.Parallel()
		x := make([]float64, DDStateDim)
		dx := v.Derivative(x, []float64{-1, 1})

		assert.InDelta(t, 2*v.WheelRadius/(2*v.HalfTrack), dx[DDBearing], 1e-12)
		assert.InDelta(t, 0, dx[DDPosX], 1e-12)
		assert.InDelta(t, 0, dx[DDPosY], 1e-12)
	})

	t.Run("heading rotates the velocity", func(t *testing.T) {
		t.Parallel()
		x := make([]float64, DDStateDim)
		x[DDBearing] = math.Pi / 2
		dx := v.Derivative(x, []float64{1, 1})

		assert.InDelta(t, 0, dx[DDPosX], 1e-12)
		assert.InDelta(t, v.WheelRadius, dx[DDPosY], 1e-12)
	})
}

// TestQuadrotorDerivative checks the planar quadrotor dynamics at hover
// and under a pure torque.
func TestQuadrotorDerivative(t *testing.T) {
	t.Parallel()
	v := NewQuadrotor()

	t.Run("level hover is an equilibrium", func(t *testing.T) {
		t.Parallel()
		x := make([]float64, QRStateDim)
		dx := v.Derivative(x, []float64{v.Mass * v.Gravity, 0})

		for i, d := range dx {
			assert.InDeltaf(t, 0, d, 1e-12, "component %d", i)
		}
	})

	t.Run("torque drives angular acceleration", func(t *testing.T) {
		t.Parallel()
		x := make([]float64, QRStateDim)
		dx := v.Derivative(x, []float64{v.Mass * v.Gravity, 0.001})

		assert.InDelta(t, 0.001/v.Inertia, dx[QROmega], 1e-9)
	})

	t.Run("tilt redirects thrust", func(t *testing.T) {
		t.Parallel()
		x := make([]float64, QRStateDim)
		x[QRBearing] = math.Pi / 6
		u := []float64{2, 0}
		dx := v.Derivative(x, u)

		assert.InDelta(t, -(u[0]/v.Mass)*math.Sin(math.Pi/6), dx[QRVelX], 1e-12)
		assert.InDelta(t, (u[0]/v.Mass)*math.Cos(math.Pi/6)-v.Gravity, dx[QRVelZ], 1e-12)
	})
}

// TestTransitionJacobians compares the analytic transition Jacobians with
// finite differences of the Euler step at random operating points.
func TestTransitionJacobians(t *testing.T) {
	t.Parallel()

	vehicles := []Vehicle{NewDiffDrive(), NewQuadrotor()}
	for _, v := range vehicles {
		v := v
		t.Run(v.Name(), func(t *testing.T) {
			t.Parallel()
			rng := rand.New(rand.NewSource(7))
			const dt = 0.1

			for trial := 0; trial < 25; trial++ {
				x := randomState(rng, v.StateDim())
				u := randomState(rng, v.InputDim())

				a := v.TransitionJacobian(x, u, dt)
				fd := finiteDifferenceJacobian(v, x, u, dt)

				for i := 0; i < v.StateDim(); i++ {
					for j := 0; j < v.StateDim(); j++ {
						assert.InDeltaf(t, fd[i][j], a.At(i, j), 1e-4,
							"trial %d entry (%d,%d)", trial, i, j)
					}
				}
			}
		})
	}
}

// TestStep checks the forward Euler update and that inputs are not mutated.
func TestStep(t *testing.T) {
	t.Parallel()
	v := NewDiffDrive()

	x := make([]float64, DDStateDim)
	u := []float64{1, 1}
	next := Step(v, x, u, 0.1)

	require.Len(t, next, DDStateDim)
	assert.InDelta(t, 0.1*v.WheelRadius, next[DDPosX], 1e-12)
	assert.InDelta(t, 0.1, next[DDWheelL], 1e-12)
	assert.InDelta(t, 0.1, next[DDWheelR], 1e-12)

	// The input state must be untouched.
	for i, val := range x {
		assert.Zerof(t, val, "state component %d mutated", i)
	}
}
