package adcs

import (
	"math"
	"testing"

	"github.com/gonum/floats"
	"github.com/gonum/matrix/mat64"
)

func TestR1R2R3(t *testing.T) {
	x := math.Pi / 3.0
	s, c := math.Sincos(x)
	r1 := R1(x)
	r2 := R2(x)
	r3 := R3(x)
	// Test items equal to 1.
	if r1.At(0, 0) != r2.At(1, 1) || r1.At(0, 0) != r3.At(2, 2) || r3.At(2, 2) != 1 {
		t.Fatal("expected R1.At(0, 0) = R2.At(1, 1) = R3.At(2, 2) = 1\n")
	}
	// Test R1.
	if r1.At(1, 1) != r1.At(2, 2) || r1.At(2, 2) != c {
		t.Fatal("expected R1 cosines misplaced\n")
	}
	if r1.At(2, 1) != -r1.At(1, 2) || r1.At(1, 2) != s {
		t.Fatal("expected R1 sines misplaced\n")
	}
	// Test R2.
	if r2.At(0, 0) != r2.At(2, 2) || r2.At(2, 2) != c {
		t.Fatal("expected R2 cosines misplaced\n")
	}
	if r2.At(2, 0) != -r2.At(0, 2) || r2.At(2, 0) != s {
		t.Fatal("expected R2 sines misplaced\n")
	}
	// Test R3.
	if r3.At(1, 1) != r3.At(0, 0) || r3.At(0, 0) != c {
		t.Fatal("expected R3 cosines misplaced\n")
	}
	if r3.At(0, 1) != -r3.At(1, 0) || r3.At(0, 1) != s {
		t.Fatal("expected R3 sines misplaced\n")
	}
}

func TestR1R2R3Composition(t *testing.T) {
	θ1 := math.Pi / 17
	θ2 := math.Pi / 16
	θ3 := math.Pi / 15
	var R1R2m, expected mat64.Dense
	R1R2m.Mul(R1(θ1), R2(θ2))
	expected.Mul(&R1R2m, R3(θ3))
	got := R1R2R3(θ1, θ2, θ3)
	if !mat64.EqualApprox(&expected, got, 1e-14) {
		t.Logf("\n%+v", mat64.Formatted(got))
		t.Fatal("R1R2R3 composition failed")
	}
}

func TestRotationDerivatives(t *testing.T) {
	const ε = 1e-7
	x := 0.381
	for name, pair := range map[string][2]*mat64.Dense{
		"dR1": {dR1(x), fdDiff(R1, x, ε)},
		"dR2": {dR2(x), fdDiff(R2, x, ε)},
		"dR3": {dR3(x), fdDiff(R3, x, ε)},
	} {
		if !mat64.EqualApprox(pair[0], pair[1], 1e-6) {
			t.Fatalf("%s does not match its finite difference", name)
		}
	}
}

func fdDiff(R func(float64) *mat64.Dense, x, ε float64) *mat64.Dense {
	var d mat64.Dense
	d.Sub(R(x+ε), R(x-ε))
	d.Scale(1/(2*ε), &d)
	return &d
}

func TestSpace2BodyRoundTrip(t *testing.T) {
	ψ, θ, φ := 0.3, -0.2, 0.5
	v := []float64{0.267, -0.653, 0.706}
	b := Space2Body(ψ, θ, φ, v)
	back := Body2Space(ψ, θ, φ, b)
	for i := 0; i < 3; i++ {
		if !floats.EqualWithinAbs(v[i], back[i], 1e-12) {
			t.Fatalf("round trip failed on component %d: %f != %f", i, v[i], back[i])
		}
	}
	// Rotations preserve the norm.
	if !floats.EqualWithinAbs(norm(v), norm(b), 1e-12) {
		t.Fatal("rotation does not preserve the norm")
	}
}

func TestSpace2BodyYaw(t *testing.T) {
	// A quarter turn of yaw maps the space +y axis onto the body +x axis.
	b := Space2Body(math.Pi/2, 0, 0, []float64{0, 1, 0})
	expected := []float64{1, 0, 0}
	for i := 0; i < 3; i++ {
		if !floats.EqualWithinAbs(b[i], expected[i], 1e-12) {
			t.Fatalf("yaw rotation: component %d is %f, expected %f", i, b[i], expected[i])
		}
	}
}
