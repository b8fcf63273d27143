package adcs

import (
	"math"

	"github.com/gonum/matrix/mat64"
)

// Linearization holds the LTI state-space matrices of the attitude dynamics
// and the star-bearing sensor, evaluated at an equilibrium operating point.
// It is a derived artifact: recompute it whenever the equilibrium changes.
type Linearization struct {
	A *mat64.Dense // ∂f/∂x, 6x6
	B *mat64.Dense // ∂f/∂u, 6x4
	C *mat64.Dense // ∂g/∂x, 2k x 6
	D *mat64.Dense // ∂g/∂u, 2k x 4, identically zero for a bearing sensor
	// Operating point
	State AttitudeState
	Input []float64
	Stars StarCatalog
	Scope Scope
}

// Yeq returns the noise-free measurement vector at the equilibrium attitude.
func (lin Linearization) Yeq() []float64 {
	v := make([]float64, 2*len(lin.Stars))
	for i, star := range lin.Stars {
		m := lin.Scope.Project(lin.State, star)
		v[2*i] = m.TrueY
		v[2*i+1] = m.TrueZ
	}
	return v
}

// Linearize evaluates the closed-form Jacobians of the dynamics and of the
// sensor model at the given equilibrium state and input. All included stars
// must be visible from the equilibrium attitude. The evaluation is
// deterministic: identical inputs yield bit-identical matrices.
func Linearize(sc Spacecraft, scope Scope, catalog StarCatalog, x0 AttitudeState, u0 []float64) (Linearization, error) {
	cθ := math.Cos(x0.Pitch)
	if math.Abs(cθ) < singularityTol {
		return Linearization{}, KinematicSingularityError{x0.Pitch}
	}
	sφ, cφ := math.Sincos(x0.Roll)
	tθ := math.Tan(x0.Pitch)
	sθ := math.Sin(x0.Pitch)
	J1, J2, J3 := sc.EffectiveInertia()
	p, q, r := x0.Wx, x0.Wy, x0.Wz

	A := mat64.NewDense(6, 6, nil)
	// ψDot = (q sφ + r cφ)/cθ
	A.Set(0, 1, (q*sφ+r*cφ)*sθ/(cθ*cθ))
	A.Set(0, 2, (q*cφ-r*sφ)/cθ)
	A.Set(0, 4, sφ/cθ)
	A.Set(0, 5, cφ/cθ)
	// θDot = q cφ - r sφ
	A.Set(1, 2, -q*sφ-r*cφ)
	A.Set(1, 4, cφ)
	A.Set(1, 5, -sφ)
	// φDot = p + (q sφ + r cφ) tθ
	A.Set(2, 1, (q*sφ+r*cφ)/(cθ*cθ))
	A.Set(2, 2, (q*cφ-r*sφ)*tθ)
	A.Set(2, 3, 1)
	A.Set(2, 4, sφ*tθ)
	A.Set(2, 5, cφ*tθ)
	// J1 pDot = (J2-J3) q r + T1
	A.Set(3, 4, (J2-J3)*r/J1)
	A.Set(3, 5, (J2-J3)*q/J1)
	// J2 qDot = (J3-J1) r p + T2
	A.Set(4, 3, (J3-J1)*r/J2)
	A.Set(4, 5, (J3-J1)*p/J2)
	// J3 rDot = (J1-J2) p q + T3
	A.Set(5, 3, (J1-J2)*q/J3)
	A.Set(5, 4, (J1-J2)*p/J3)

	// The torque mapping is linear, so B rows are the mapping over inertia.
	W := sc.Wheels.Mapping()
	B := mat64.NewDense(6, 4, nil)
	for j := 0; j < 4; j++ {
		B.Set(3, j, W.At(0, j)/J1)
		B.Set(4, j, W.At(1, j)/J2)
		B.Set(5, j, W.At(2, j)/J3)
	}

	k := len(catalog)
	C := mat64.NewDense(2*k, 6, nil)
	D := mat64.NewDense(2*k, 4, nil)
	// Body rotation and its partials with respect to each Euler angle.
	Rψ := R3(x0.Yaw)
	Rθ := R2(x0.Pitch)
	Rφ := R1(x0.Roll)
	var RφRθ, R, dRψm, dRθm, dRφm, tmp mat64.Dense
	RφRθ.Mul(Rφ, Rθ)
	R.Mul(&RφRθ, Rψ)
	dRψm.Mul(&RφRθ, dR3(x0.Yaw))
	tmp.Mul(Rφ, dR2(x0.Pitch))
	dRθm.Mul(&tmp, Rψ)
	tmp.Reset()
	tmp.Mul(dR1(x0.Roll), Rθ)
	dRφm.Mul(&tmp, Rψ)

	for i, star := range catalog {
		u := star.Unit()
		ub := MxV33(&R, u)
		if ub[0] <= 0 {
			return Linearization{}, OutOfViewError{Star: i}
		}
		y := scope.Radius * ub[1] / ub[0]
		z := scope.Radius * ub[2] / ub[0]
		if math.Hypot(y, z) > scope.Radius {
			return Linearization{}, OutOfViewError{Star: i}
		}
		// Columns are ordered (ψ, θ, φ); the bearing does not depend on
		// the body rates, so columns 3..5 stay zero.
		for col, dR := range []*mat64.Dense{&dRψm, &dRθm, &dRφm} {
			du := MxV33(dR, u)
			C.Set(2*i, col, scope.Radius*(du[1]*ub[0]-ub[1]*du[0])/(ub[0]*ub[0]))
			C.Set(2*i+1, col, scope.Radius*(du[2]*ub[0]-ub[2]*du[0])/(ub[0]*ub[0]))
		}
	}

	u0c := make([]float64, len(u0))
	copy(u0c, u0)
	stars := make(StarCatalog, len(catalog))
	copy(stars, catalog)
	return Linearization{A: A, B: B, C: C, D: D, State: x0, Input: u0c, Stars: stars, Scope: scope}, nil
}
