package adcs

import "fmt"

// KinematicSingularityError is returned when the pitch angle is too close to
// ±π/2, where the Euler-rate transform divides by cos θ.
type KinematicSingularityError struct {
	Pitch float64
}

func (e KinematicSingularityError) Error() string {
	return fmt.Sprintf("kinematic singularity: pitch %f rad too close to ±π/2", e.Pitch)
}

// UnreachableDesignError is returned when the pair (A,B) is not controllable
// and hence arbitrary pole placement cannot be achieved.
type UnreachableDesignError struct {
	Rank int
}

func (e UnreachableDesignError) Error() string {
	return fmt.Sprintf("unreachable design: controllability matrix rank %d < 6", e.Rank)
}

// UnobservableDesignError is returned when the pair (A,C) is not observable,
// including the degenerate case of fewer than three stars in view.
type UnobservableDesignError struct {
	Rank  int
	Stars int
}

func (e UnobservableDesignError) Error() string {
	if e.Stars < 3 {
		return fmt.Sprintf("unobservable design: only %d star(s) in view, need at least 3", e.Stars)
	}
	return fmt.Sprintf("unobservable design: observability matrix rank %d < 6", e.Rank)
}

// PlacementError is returned when the Sylvester iteration cannot realize
// the requested spectrum with any of its candidate parameter matrices.
type PlacementError struct {
	Poles []complex128
}

func (e PlacementError) Error() string {
	return fmt.Sprintf("pole placement did not converge to the requested spectrum %v", e.Poles)
}

// UnstableDesignError is returned when the augmented controller+estimator
// closed-loop matrix has an eigenvalue with non-negative real part.
type UnstableDesignError struct {
	Eigenvalues []complex128
}

func (e UnstableDesignError) Error() string {
	return fmt.Sprintf("unstable design: closed-loop eigenvalues %v not all in the left half plane", e.Eigenvalues)
}

// OutOfViewError is returned when a star falls behind the boresight or
// outside the scope field of view. It ends the episode, cleanly.
type OutOfViewError struct {
	Star int
}

func (e OutOfViewError) Error() string {
	return fmt.Sprintf("star %d is out of the scope field of view", e.Star)
}
