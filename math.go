package adcs

import (
	"math"

	"github.com/gonum/matrix"
	"github.com/gonum/matrix/mat64"
)

const (
	deg2rad = math.Pi / 180
)

// norm returns the norm of a given vector which is supposed to be 3x1.
func norm(v []float64) float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

// Deg2rad converts degrees to radians, and enforced only positive numbers.
func Deg2rad(a float64) float64 {
	if a < 0 {
		a += 360
	}
	return math.Mod(a*deg2rad, 2*math.Pi)
}

// Rad2deg converts radians to degrees, and enforced only positive numbers.
func Rad2deg(a float64) float64 {
	if a < 0 {
		a += 2 * math.Pi
	}
	return math.Mod(a/deg2rad, 360)
}

// rank returns the numerical rank of m from its singular values.
func rank(m *mat64.Dense) int {
	var svd mat64.SVD
	if ok := svd.Factorize(m, matrix.SVDNone); !ok {
		panic("SVD factorization failed")
	}
	σ := svd.Values(nil)
	r, c := m.Dims()
	tol := float64(max(r, c)) * σ[0] * 1e-14
	rk := 0
	for _, v := range σ {
		if v > tol {
			rk++
		}
	}
	return rk
}

// eigenvalues returns the eigenvalues of the square matrix m.
func eigenvalues(m *mat64.Dense) []complex128 {
	var eig mat64.Eigen
	if ok := eig.Factorize(m, false, false); !ok {
		panic("eigenvalue factorization failed")
	}
	return eig.Values(nil)
}

// spectraMatch returns whether the two sets of eigenvalues are pairwise equal
// within the given absolute tolerance, in any order.
func spectraMatch(want, got []complex128, tol float64) bool {
	if len(want) != len(got) {
		return false
	}
	used := make([]bool, len(got))
	for _, w := range want {
		found := false
		for j, g := range got {
			if used[j] {
				continue
			}
			if math.Hypot(real(w)-real(g), imag(w)-imag(g)) <= tol {
				used[j] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
