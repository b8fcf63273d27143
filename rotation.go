package adcs

import (
	"math"

	"github.com/gonum/matrix/mat64"
)

// R1 rotation about the 1st axis.
func R1(x float64) *mat64.Dense {
	s, c := math.Sincos(x)
	return mat64.NewDense(3, 3, []float64{1, 0, 0, 0, c, s, 0, -s, c})
}

// R2 rotation about the 2nd axis.
func R2(x float64) *mat64.Dense {
	s, c := math.Sincos(x)
	return mat64.NewDense(3, 3, []float64{c, 0, -s, 0, 1, 0, s, 0, c})
}

// R3 rotation about the 3rd axis.
func R3(x float64) *mat64.Dense {
	s, c := math.Sincos(x)
	return mat64.NewDense(3, 3, []float64{c, s, 0, -s, c, 0, 0, 0, 1})
}

// dR1 is the derivative of R1 with respect to its angle.
func dR1(x float64) *mat64.Dense {
	s, c := math.Sincos(x)
	return mat64.NewDense(3, 3, []float64{0, 0, 0, 0, -s, c, 0, -c, -s})
}

// dR2 is the derivative of R2 with respect to its angle.
func dR2(x float64) *mat64.Dense {
	s, c := math.Sincos(x)
	return mat64.NewDense(3, 3, []float64{-s, 0, -c, 0, 0, 0, c, 0, -s})
}

// dR3 is the derivative of R3 with respect to its angle.
func dR3(x float64) *mat64.Dense {
	s, c := math.Sincos(x)
	return mat64.NewDense(3, 3, []float64{-s, c, 0, -c, -s, 0, 0, 0, 0})
}

// R1R2R3 performs a 1-2-3 rotation composition R1(θ1)*R2(θ2)*R3(θ3).
// For a yaw-pitch-roll (3-2-1) attitude sequence with θ1=roll, θ2=pitch and
// θ3=yaw, this maps a space-frame vector into the body frame.
func R1R2R3(θ1, θ2, θ3 float64) *mat64.Dense {
	var R1R2, R mat64.Dense
	R1R2.Mul(R1(θ1), R2(θ2))
	R.Mul(&R1R2, R3(θ3))
	return &R
}

// Space2Body rotates a space-frame vector into the body frame for the given
// yaw ψ, pitch θ and roll φ.
func Space2Body(ψ, θ, φ float64, v []float64) []float64 {
	return MxV33(R1R2R3(φ, θ, ψ), v)
}

// Body2Space rotates a body-frame vector back into the space frame.
func Body2Space(ψ, θ, φ float64, v []float64) []float64 {
	var Rt mat64.Dense
	Rt.Clone(R1R2R3(φ, θ, ψ).T())
	return MxV33(&Rt, v)
}

// MxV33 multiplies a matrix with a vector. Note that there is no dimension check!
func MxV33(m *mat64.Dense, v []float64) (o []float64) {
	vVec := mat64.NewVector(len(v), v)
	var rVec mat64.Vector
	rVec.MulVec(m, vVec)
	return []float64{rVec.At(0, 0), rVec.At(1, 0), rVec.At(2, 0)}
}
