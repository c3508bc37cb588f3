package estimator

import (
	"fmt"
	"math"

	"github.com/banshee-data/pose.report/internal/dynamics"
	"github.com/banshee-data/pose.report/internal/observe"
	"gonum.org/v1/gonum/mat"
)

// NoiseConfig holds the diagonal noise covariances for a Kalman-family
// filter. All three are fixed at construction and never mutated. A zero
// or negative measurement noise entry makes the innovation covariance
// singular and is rejected up front.
type NoiseConfig struct {
	ProcessDiag     []float64 // Q diagonal
	MeasurementDiag []float64 // R diagonal
	InitialDiag     []float64 // P0 diagonal
}

func (n NoiseConfig) validate() error {
	for i, v := range n.MeasurementDiag {
		if v <= 0 {
			return fmt.Errorf("measurement noise diagonal entry %d must be positive, got %g", i, v)
		}
	}
	for i, v := range n.ProcessDiag {
		if v < 0 {
			return fmt.Errorf("process noise diagonal entry %d must be non-negative, got %g", i, v)
		}
	}
	return nil
}

// diag builds a square matrix with the given diagonal.
func diag(vals []float64) *mat.Dense {
	n := len(vals)
	m := mat.NewDense(n, n, nil)
	for i, v := range vals {
		m.Set(i, i, v)
	}
	return m
}

// ConstDiag returns an n-length diagonal of a single value.
func ConstDiag(n int, v float64) []float64 {
	d := make([]float64, n)
	for i := range d {
		d[i] = v
	}
	return d
}

// kfReducedDim is the reduced frozen-bearing state [x y theta_l theta_r].
const kfReducedDim = 4

// DefaultKalmanNoise returns the tuned noise covariances for the linear
// filter over the reduced differential-drive model.
func DefaultKalmanNoise() NoiseConfig {
	return NoiseConfig{
		ProcessDiag:     ConstDiag(kfReducedDim, 100),
		MeasurementDiag: ConstDiag(2, 1),
		InitialDiag:     ConstDiag(kfReducedDim, 1),
	}
}

// KalmanFilter is the classic discrete linear Kalman recursion over the
// reduced differential-drive model with the bearing frozen externally.
// Because the reduced model is linear, A, B and C are precomputed once at
// construction rather than relinearized per step. Emitted estimates are
// full five-component states carrying the frozen bearing.
type KalmanFilter struct {
	vehicle       *dynamics.DiffDrive
	obs           *observe.Position
	frozenBearing float64
	dt            float64

	a, b, c *mat.Dense
	q, r    *mat.Dense
	p       *mat.Dense
}

// NewKalmanFilter builds the linear filter. dt is the replay sample
// interval; bearing is the externally frozen heading.
func NewKalmanFilter(v *dynamics.DiffDrive, bearing, dt float64, noise NoiseConfig) (*KalmanFilter, error) {
	if err := noise.validate(); err != nil {
		return nil, fmt.Errorf("kalman filter: %w", err)
	}
	if len(noise.ProcessDiag) != kfReducedDim || len(noise.InitialDiag) != kfReducedDim || len(noise.MeasurementDiag) != 2 {
		return nil, fmt.Errorf("kalman filter: noise diagonals must be %d/%d/2 long", kfReducedDim, kfReducedDim)
	}

	// With the bearing frozen the reduced dynamics are exactly linear:
	// x' = x + B·u with B the input matrix scaled by dt.
	half := v.WheelRadius / 2
	b := mat.NewDense(kfReducedDim, dynamics.DDInputDim, []float64{
		half * math.Cos(bearing), half * math.Cos(bearing),
		half * math.Sin(bearing), half * math.Sin(bearing),
		1, 0,
		0, 1,
	})
	b.Scale(dt, b)

	obs := observe.NewReducedPosition()

	a := mat.NewDense(kfReducedDim, kfReducedDim, nil)
	for i := 0; i < kfReducedDim; i++ {
		a.Set(i, i, 1)
	}

	return &KalmanFilter{
		vehicle:       v,
		obs:           obs,
		frozenBearing: bearing,
		dt:            dt,
		a:             a,
		b:             b,
		c:             obs.Jacobian(nil),
		q:             diag(noise.ProcessDiag),
		r:             diag(noise.MeasurementDiag),
		p:             diag(noise.InitialDiag),
	}, nil
}

func (k *KalmanFilter) Name() string { return VariantKalman }

// Covariance returns a copy of the current estimate covariance.
func (k *KalmanFilter) Covariance() *mat.Dense {
	var p mat.Dense
	p.CloneFrom(k.p)
	return &p
}

func (k *KalmanFilter) Step(prev []float64, rec Record) ([]float64, error) {
	if len(prev) != dynamics.DDStateDim {
		return nil, fmt.Errorf("kalman filter: state dimension %d, want %d", len(prev), dynamics.DDStateDim)
	}
	if len(rec.Meas) != k.obs.MeasurementDim() {
		return nil, fmt.Errorf("kalman filter: measurement dimension %d, want %d", len(rec.Meas), k.obs.MeasurementDim())
	}

	// Reduce: drop the frozen bearing component.
	xr := mat.NewVecDense(kfReducedDim, []float64{
		prev[dynamics.DDPosX], prev[dynamics.DDPosY], prev[dynamics.DDWheelL], prev[dynamics.DDWheelR],
	})
	u := mat.NewVecDense(len(rec.Input), rec.Input)

	// Predict: x⁻ = A·x + B·u, P⁻ = A·P·Aᵀ + Q.
	var xPred mat.VecDense
	xPred.MulVec(k.a, xr)
	var bu mat.VecDense
	bu.MulVec(k.b, u)
	xPred.AddVec(&xPred, &bu)

	pPred := propagateCovariance(k.a, k.p, k.q)

	// Correct against the direct position measurement.
	innov := innovation(rec.Meas, k.obs.Predict(xPred.RawVector().Data))
	xNew, pNew, err := correct(&xPred, pPred, k.c, k.r, innov)
	if err != nil {
		return nil, fmt.Errorf("kalman filter: %w", err)
	}
	k.p = pNew

	return []float64{
		k.frozenBearing,
		xNew.AtVec(0), xNew.AtVec(1), xNew.AtVec(2), xNew.AtVec(3),
	}, nil
}

// propagateCovariance computes P⁻ = A·P·Aᵀ + Q.
func propagateCovariance(a, p, q *mat.Dense) *mat.Dense {
	var ap, pPred mat.Dense
	ap.Mul(a, p)
	pPred.Mul(&ap, a.T())
	pPred.Add(&pPred, q)
	return &pPred
}

// innovation returns y − h(x⁻) as a vector.
func innovation(meas, expected []float64) *mat.VecDense {
	inn := mat.NewVecDense(len(meas), nil)
	for i := range meas {
		inn.SetVec(i, meas[i]-expected[i])
	}
	return inn
}

// correct runs the gain and correction steps shared by the linear and
// extended filters:
//
//	K = P⁻·Cᵀ·(C·P⁻·Cᵀ + R)⁻¹
//	x = x⁻ + K·innov
//	P = (I − K·C)·P⁻
//
// A singular innovation covariance is a fatal configuration error; it is
// reported, never retried.
func correct(xPred *mat.VecDense, pPred, c, r *mat.Dense, innov *mat.VecDense) (*mat.VecDense, *mat.Dense, error) {
	var cp, s mat.Dense
	cp.Mul(c, pPred)
	s.Mul(&cp, c.T())
	s.Add(&s, r)

	var sInv mat.Dense
	if err := sInv.Inverse(&s); err != nil {
		return nil, nil, fmt.Errorf("innovation covariance inversion: %w", err)
	}

	var pct, gain mat.Dense
	pct.Mul(pPred, c.T())
	gain.Mul(&pct, &sInv)

	var dx mat.VecDense
	dx.MulVec(&gain, innov)
	xNew := mat.NewVecDense(xPred.Len(), nil)
	xNew.AddVec(xPred, &dx)

	n, _ := pPred.Dims()
	var kc mat.Dense
	kc.Mul(&gain, c)
	iMinus := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		iMinus.Set(i, i, 1)
	}
	iMinus.Sub(iMinus, &kc)

	var pNew mat.Dense
	pNew.Mul(iMinus, pPred)
	symmetrize(&pNew)

	return xNew, &pNew, nil
}

// symmetrize replaces p with (p + pᵀ)/2, keeping the covariance exactly
// symmetric under floating-point roundoff.
func symmetrize(p *mat.Dense) {
	n, _ := p.Dims()
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			v := (p.At(i, j) + p.At(j, i)) / 2
			p.Set(i, j, v)
			p.Set(j, i, v)
		}
	}
}
