package adcs

import (
	"fmt"
	"math"
	"os"

	kitlog "github.com/go-kit/kit/log"
	"github.com/gonum/matrix/mat64"
)

const (
	// NumWheels is the number of reaction wheels on the vehicle.
	NumWheels = 4
	// singularityTol is how close cos(pitch) may get to zero before the
	// Euler-rate transform is considered singular.
	singularityTol = 1e-3
)

// AttitudeState holds the six dimensional attitude state: the 3-2-1 Euler
// angles yaw ψ, pitch θ, roll φ, and the body-frame angular velocity.
type AttitudeState struct {
	Yaw, Pitch, Roll float64
	Wx, Wy, Wz       float64
}

// Vector returns the state as an ordered slice (ψ, θ, φ, ωx, ωy, ωz).
func (s AttitudeState) Vector() []float64 {
	return []float64{s.Yaw, s.Pitch, s.Roll, s.Wx, s.Wy, s.Wz}
}

// StateFromVector rebuilds an AttitudeState from an ordered slice.
func StateFromVector(v []float64) AttitudeState {
	return AttitudeState{v[0], v[1], v[2], v[3], v[4], v[5]}
}

func (s AttitudeState) String() string {
	return fmt.Sprintf("ψ=%f θ=%f φ=%f ω=(%f,%f,%f)", s.Yaw, s.Pitch, s.Roll, s.Wx, s.Wy, s.Wz)
}

// WheelAssembly defines the four reaction wheels: front, back, left and right,
// each canted by the same angle from the body z axis.
type WheelAssembly struct {
	Inertia   float64 // spin-axis moment of inertia of one wheel
	Offset    float64 // contribution of one wheel to each principal moment
	Cant      float64 // cant angle from the body z axis, radians
	MaxTorque float64 // torque command bound, N⋅m
	MaxSpeed  float64 // wheel angular velocity bound, rad/s
}

// Mapping returns the constant 3x4 matrix mapping wheel torques to net
// body-frame torque. Columns are the front, back, left and right wheel axes.
func (w WheelAssembly) Mapping() *mat64.Dense {
	s, c := math.Sincos(w.Cant)
	return mat64.NewDense(3, 4, []float64{
		s, -s, 0, 0,
		0, 0, s, -s,
		c, c, c, c})
}

// Spacecraft defines a rigid body actuated by a reaction wheel assembly.
type Spacecraft struct {
	Name   string
	J      [3]float64 // base body principal moments of inertia
	Wheels WheelAssembly
	logger kitlog.Logger
}

// EffectiveInertia returns the principal moments of inertia combining the
// base body with the four mounted wheels.
func (sc Spacecraft) EffectiveInertia() (J1, J2, J3 float64) {
	off := NumWheels * sc.Wheels.Offset
	return sc.J[0] + off, sc.J[1] + off, sc.J[2] + off
}

// Logger returns the spacecraft logger.
func (sc Spacecraft) Logger() kitlog.Logger {
	return sc.logger
}

// Dynamics returns the state derivative for the given state and the four
// wheel torques. The Euler-angle rates come from the inverse 3-2-1 kinematic
// transform, and the angular accelerations from Euler's rigid-body equations
// with the effective inertia. Fails near the θ=±π/2 kinematic singularity.
func (sc Spacecraft) Dynamics(x AttitudeState, τ []float64) ([]float64, error) {
	cθ := math.Cos(x.Pitch)
	if math.Abs(cθ) < singularityTol {
		return nil, KinematicSingularityError{x.Pitch}
	}
	sφ, cφ := math.Sincos(x.Roll)
	tθ := math.Tan(x.Pitch)
	J1, J2, J3 := sc.EffectiveInertia()
	T := MxV33(sc.Wheels.Mapping(), τ)

	xDot := make([]float64, 6)
	// Euler-angle kinematics.
	xDot[0] = (x.Wy*sφ + x.Wz*cφ) / cθ
	xDot[1] = x.Wy*cφ - x.Wz*sφ
	xDot[2] = x.Wx + (x.Wy*sφ+x.Wz*cφ)*tθ
	// Euler's equations.
	xDot[3] = ((J2-J3)*x.Wy*x.Wz + T[0]) / J1
	xDot[4] = ((J3-J1)*x.Wz*x.Wx + T[1]) / J2
	xDot[5] = ((J1-J2)*x.Wx*x.Wy + T[2]) / J3
	return xDot, nil
}

// NewSpacecraft returns a spacecraft with its own logger.
func NewSpacecraft(name string, J [3]float64, wheels WheelAssembly) *Spacecraft {
	klog := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stdout))
	klog = kitlog.With(klog, "vehicle", name)
	return &Spacecraft{Name: name, J: J, Wheels: wheels, logger: klog}
}

// StandardVehicle returns the reference vehicle used throughout the tests and
// scenarios: a telescope body with four 45° canted wheels.
func StandardVehicle() *Spacecraft {
	wheels := WheelAssembly{
		Inertia:   0.075,
		Offset:    0.25,
		Cant:      math.Pi / 4,
		MaxTorque: 1.0,
		MaxSpeed:  50.0,
	}
	return NewSpacecraft("scope", [3]float64{9.0, 10.0, 11.0}, wheels)
}
