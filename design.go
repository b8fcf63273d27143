package adcs

import (
	"time"

	"github.com/gonum/matrix/mat64"
)

// Design is the immutable artifact of one design session: the linearization,
// the feedback and observer gains, and the bounds under which they were
// accepted. Redesigning means building a new Design, never mutating one.
type Design struct {
	Lin       Linearization
	K         *mat64.Dense // 4x6 state feedback gain
	L         *mat64.Dense // 6x2k observer gain
	CtrlPoles []complex128
	ObsPoles  []complex128
	Step      time.Duration // control step
	MaxTorque float64
}

// Augmented returns the combined controller+estimator-error closed-loop
// matrix F = [[A-BK, -BK], [0, A-LC]].
func (d Design) Augmented() *mat64.Dense {
	n, _ := d.Lin.A.Dims()
	var BK, LC, Acl, Ecl mat64.Dense
	BK.Mul(d.Lin.B, d.K)
	LC.Mul(d.L, d.Lin.C)
	Acl.Sub(d.Lin.A, &BK)
	Ecl.Sub(d.Lin.A, &LC)
	F := mat64.NewDense(2*n, 2*n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			F.Set(i, j, Acl.At(i, j))
			F.Set(i, j+n, -BK.At(i, j))
			F.Set(i+n, j+n, Ecl.At(i, j))
		}
	}
	return F
}

// NewDesign synthesizes a full design: a feedback gain placing the controller
// poles, an observer gain placing the estimation-error poles, and the
// mandatory verification that the augmented closed loop is stable. Any
// failure here is fatal to the design session; nothing should be simulated
// with a design that did not pass.
func NewDesign(lin Linearization, ctrlPoles, obsPoles []complex128, wheels WheelAssembly, step time.Duration) (Design, error) {
	// Fewer than three stars cannot pin down the attitude; fail closed
	// before even forming the observability matrix.
	if stars := len(lin.Stars); stars < 3 {
		return Design{}, UnobservableDesignError{Rank: 0, Stars: stars}
	}
	K, err := Place(lin.A, lin.B, ctrlPoles)
	if err != nil {
		return Design{}, err
	}
	L, err := PlaceObserver(lin.A, lin.C, obsPoles)
	if err != nil {
		return Design{}, err
	}
	d := Design{
		Lin:       lin,
		K:         K,
		L:         L,
		CtrlPoles: append([]complex128{}, ctrlPoles...),
		ObsPoles:  append([]complex128{}, obsPoles...),
		Step:      step,
		MaxTorque: wheels.MaxTorque,
	}
	eigs := eigenvalues(d.Augmented())
	for _, λ := range eigs {
		if real(λ) >= 0 {
			return Design{}, UnstableDesignError{Eigenvalues: eigs}
		}
	}
	return d, nil
}
