package adcs

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/gonum/floats"
	"github.com/gonum/matrix/mat64"
)

// placeTol is the absolute tolerance used to verify that an achieved
// closed-loop spectrum matches the requested one.
const placeTol = 1e-6

// Controllability returns the controllability matrix [B AB ... A^(n-1)B].
func Controllability(A, B *mat64.Dense) *mat64.Dense {
	n, m := B.Dims()
	ctrb := mat64.NewDense(n, n*m, nil)
	blk := mat64.DenseCopyOf(B)
	for i := 0; i < n; i++ {
		for r := 0; r < n; r++ {
			for c := 0; c < m; c++ {
				ctrb.Set(r, i*m+c, blk.At(r, c))
			}
		}
		var next mat64.Dense
		next.Mul(A, blk)
		blk = &next
	}
	return ctrb
}

// Observability returns the observability matrix built by stacking C·A^i.
func Observability(A, C *mat64.Dense) *mat64.Dense {
	p, n := C.Dims()
	obsv := mat64.NewDense(n*p, n, nil)
	blk := mat64.DenseCopyOf(C)
	for i := 0; i < n; i++ {
		for r := 0; r < p; r++ {
			for c := 0; c < n; c++ {
				obsv.Set(i*p+r, c, blk.At(r, c))
			}
		}
		var next mat64.Dense
		next.Mul(blk, A)
		blk = &next
	}
	return obsv
}

// Place computes a state feedback gain K such that A-BK has the requested
// eigenvalues. All requested eigenvalues must have strictly negative real
// part and complex ones must come in conjugate pairs. Fails with
// UnreachableDesignError when (A,B) is not controllable.
//
// The gain comes from the Sylvester equation method: build a real block
// matrix Λ carrying the requested spectrum, pick a parameter matrix G, solve
// AX - XΛ = BG and return K = G X⁻¹. The columns of X are the closed-loop
// eigenvectors, so the candidate G matrices steer them to stay well spread:
// the structured candidates cycle the preimages of an orthonormal basis of
// the column space of B, and a few deterministic random draws serve as
// fallback. Every candidate whose closed-loop spectrum verifies is scored by
// the Frobenius norm of its gain, and the smallest one wins.
func Place(A, B *mat64.Dense, poles []complex128) (*mat64.Dense, error) {
	n, _ := B.Dims()
	if len(poles) != n {
		return nil, fmt.Errorf("expected %d poles, got %d", n, len(poles))
	}
	if rk := rank(Controllability(A, B)); rk < n {
		return nil, UnreachableDesignError{Rank: rk}
	}
	Λ, err := spectrumBlocks(poles)
	if err != nil {
		return nil, err
	}
	tol := placeVerifyTol(poles)
	var best *mat64.Dense
	bestNorm := math.Inf(1)
	for _, G := range placeCandidates(B) {
		K, err := solveSylvesterGain(A, B, Λ, G)
		if err != nil {
			continue
		}
		var BK, Acl mat64.Dense
		BK.Mul(B, K)
		Acl.Sub(A, &BK)
		if !spectraMatch(poles, eigenvalues(&Acl), tol) {
			continue
		}
		if nrm := mat64.Norm(K, 2); nrm < bestNorm {
			best, bestNorm = K, nrm
		}
	}
	if best == nil {
		return nil, PlacementError{Poles: poles}
	}
	return best, nil
}

// placeCandidates returns the ordered parameter matrices Place will try. The
// structured candidates assign the range-space preimages cyclically (and in
// reverse) over the columns, which pairs each input direction with spread-out
// eigenvalues; the random draws cover whatever geometry that misses.
func placeCandidates(B *mat64.Dense) []*mat64.Dense {
	n, m := B.Dims()
	var cands []*mat64.Dense
	if pre := rangePreimages(B); len(pre) > 0 {
		r := len(pre)
		fwd := mat64.NewDense(m, n, nil)
		rev := mat64.NewDense(m, n, nil)
		for j := 0; j < n; j++ {
			for i := 0; i < m; i++ {
				fwd.Set(i, j, pre[j%r][i])
				rev.Set(i, j, pre[r-1-j%r][i])
			}
		}
		cands = append(cands, fwd, rev)
	}
	for seed := int64(1); seed <= 8; seed++ {
		rng := rand.New(rand.NewSource(seed))
		G := mat64.NewDense(m, n, nil)
		for i := 0; i < m; i++ {
			for j := 0; j < n; j++ {
				G.Set(i, j, rng.NormFloat64())
			}
		}
		cands = append(cands, G)
	}
	return cands
}

// rangePreimages runs modified Gram-Schmidt over the columns of B and returns
// preimages p satisfying B·p = u for each orthonormal basis vector u of the
// column space.
func rangePreimages(B *mat64.Dense) [][]float64 {
	n, m := B.Dims()
	col := func(j int) []float64 {
		u := make([]float64, n)
		for i := range u {
			u[i] = B.At(i, j)
		}
		return u
	}
	var basis, pre [][]float64
	scale := 0.0
	for j := 0; j < m; j++ {
		scale = math.Max(scale, floats.Norm(col(j), 2))
	}
	for j := 0; j < m; j++ {
		u := col(j)
		p := make([]float64, m)
		p[j] = 1
		for k := range basis {
			h := floats.Dot(basis[k], u)
			floats.AddScaled(u, -h, basis[k])
			floats.AddScaled(p, -h, pre[k])
		}
		nrm := floats.Norm(u, 2)
		if nrm <= 1e-12*scale {
			continue
		}
		floats.Scale(1/nrm, u)
		floats.Scale(1/nrm, p)
		basis = append(basis, u)
		pre = append(pre, p)
	}
	return pre
}

// PlaceObserver computes the estimator gain L such that A-LC has the
// requested eigenvalues, via placement on the dual pair (Aᵀ, Cᵀ). Fails with
// UnobservableDesignError when (A,C) is not observable.
func PlaceObserver(A, C *mat64.Dense, poles []complex128) (*mat64.Dense, error) {
	p, n := C.Dims()
	stars := p / 2
	if rk := rank(Observability(A, C)); rk < n {
		return nil, UnobservableDesignError{Rank: rk, Stars: stars}
	}
	var At, Ct mat64.Dense
	At.Clone(A.T())
	Ct.Clone(C.T())
	Kt, err := Place(&At, &Ct, poles)
	if err != nil {
		var unreachable UnreachableDesignError
		if errors.As(err, &unreachable) {
			return nil, UnobservableDesignError{Rank: unreachable.Rank, Stars: stars}
		}
		return nil, err
	}
	var L mat64.Dense
	L.Clone(Kt.T())
	return &L, nil
}

// solveSylvesterGain solves AX - XΛ = BG for X by vectorization and returns
// G X⁻¹. An error is returned when X is singular or badly conditioned.
func solveSylvesterGain(A, B, Λ, G *mat64.Dense) (*mat64.Dense, error) {
	n, _ := A.Dims()
	var BG mat64.Dense
	BG.Mul(B, G)
	// Row-major vec: unknown X[i][j] lives at index i*n+j.
	M := mat64.NewDense(n*n, n*n, nil)
	rhs := mat64.NewDense(n*n, 1, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			row := i*n + j
			rhs.Set(row, 0, BG.At(i, j))
			for k := 0; k < n; k++ {
				M.Set(row, k*n+j, M.At(row, k*n+j)+A.At(i, k))
				M.Set(row, i*n+k, M.At(row, i*n+k)-Λ.At(k, j))
			}
		}
	}
	var vecX mat64.Dense
	if err := vecX.Solve(M, rhs); err != nil {
		return nil, err
	}
	X := mat64.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			X.Set(i, j, vecX.At(i*n+j, 0))
		}
	}
	var Xinv mat64.Dense
	if err := Xinv.Inverse(X); err != nil {
		return nil, err
	}
	var K mat64.Dense
	K.Mul(G, &Xinv)
	return &K, nil
}

// spectrumBlocks builds the real block matrix Λ carrying the requested
// spectrum. Complex conjugate pairs become 2x2 rotation blocks. Identical
// poles are separated by a deterministic offset well inside the verification
// tolerance: a simple spectrum keeps the eigenvector matrix X invertible,
// where an exactly defective one would force its columns into a subspace no
// larger than the rank of B.
func spectrumBlocks(poles []complex128) (*mat64.Dense, error) {
	n := len(poles)
	Λ := mat64.NewDense(n, n, nil)
	reals := []float64{}
	pairs := []complex128{}
	remaining := append([]complex128{}, poles...)
	for len(remaining) > 0 {
		λ := remaining[0]
		remaining = remaining[1:]
		if real(λ) >= 0 {
			return nil, fmt.Errorf("pole %v does not have a strictly negative real part", λ)
		}
		if imag(λ) == 0 {
			reals = append(reals, real(λ))
			continue
		}
		// Find and consume the conjugate.
		found := -1
		for i, μ := range remaining {
			if μ == cmplxConj(λ) {
				found = i
				break
			}
		}
		if found == -1 {
			return nil, fmt.Errorf("complex pole %v is missing its conjugate", λ)
		}
		remaining = append(remaining[:found], remaining[found+1:]...)
		if imag(λ) < 0 {
			λ = cmplxConj(λ)
		}
		pairs = append(pairs, λ)
	}
	sort.Float64s(reals)
	sort.Slice(pairs, func(i, j int) bool {
		if real(pairs[i]) != real(pairs[j]) {
			return real(pairs[i]) < real(pairs[j])
		}
		return imag(pairs[i]) < imag(pairs[j])
	})

	idx := 0
	for start := 0; start < len(reals); {
		end := start
		for end < len(reals) && reals[end] == reals[start] {
			end++
		}
		mult := end - start
		sep := 0.0
		if mult > 1 {
			// Worst offset is (mult-1)·sep, half the verification tolerance.
			sep = placeVerifyTol(poles) / float64(2*mult)
		}
		for j := 0; j < mult; j++ {
			Λ.Set(idx, idx, reals[start]-float64(j)*sep)
			idx++
		}
		start = end
	}
	for start := 0; start < len(pairs); {
		end := start
		for end < len(pairs) && pairs[end] == pairs[start] {
			end++
		}
		mult := end - start
		sep := 0.0
		if mult > 1 {
			sep = placeVerifyTol(poles) / float64(2*mult)
		}
		for j := 0; j < mult; j++ {
			σ, ω := real(pairs[start])-float64(j)*sep, imag(pairs[start])
			Λ.Set(idx, idx, σ)
			Λ.Set(idx, idx+1, ω)
			Λ.Set(idx+1, idx, -ω)
			Λ.Set(idx+1, idx+1, σ)
			idx += 2
		}
		start = end
	}
	return Λ, nil
}

// placeVerifyTol loosens the spectrum verification tolerance when the request
// carries repeated poles, since a defective closed-loop spectrum is more
// sensitive to rounding than a simple one.
func placeVerifyTol(poles []complex128) float64 {
	maxMult := 1
	for i, λ := range poles {
		mult := 1
		for j, μ := range poles {
			if i != j && λ == μ {
				mult++
			}
		}
		if mult > maxMult {
			maxMult = mult
		}
	}
	if maxMult > 4 {
		return 1e-2
	}
	if maxMult > 1 {
		return 1e-4
	}
	return placeTol
}

func cmplxConj(c complex128) complex128 {
	return complex(real(c), -imag(c))
}
