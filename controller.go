package adcs

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/ChristopherRabotin/gokalman"
	kitlog "github.com/go-kit/kit/log"
	"github.com/gonum/matrix/mat64"
)

// AttitudeController is what the simulation engine drives: Reset once at the
// start of an episode, then Step once per control tick with the raw star
// measurement vector, getting the four wheel torques back.
type AttitudeController interface {
	Reset() error
	Step(t float64, measurement []float64) ([]float64, error)
}

// CoastController is the do-nothing default: zero torque regardless of the
// measurements. Useful as a baseline and for exercising the simulator alone.
type CoastController struct{}

// Reset implements the AttitudeController interface.
func (c CoastController) Reset() error { return nil }

// Step implements the AttitudeController interface.
func (c CoastController) Step(t float64, measurement []float64) ([]float64, error) {
	return make([]float64, NumWheels), nil
}

// EstimatorController composes the state-feedback law with a Luenberger
// observer built from a Design. It owns the running state estimate, expressed
// as a deviation from the design equilibrium, and mutates nothing else.
type EstimatorController struct {
	design  Design
	xHat    *mat64.Vector // deviation estimate
	u       *mat64.Vector // last commanded torques
	yEq     []float64     // equilibrium measurement vector
	lastT   float64
	running bool
	clamped int
	last    *ControlEstimate
	logger  kitlog.Logger
}

// NewEstimatorController returns an UNINITIALIZED controller for the given
// accepted design. Call Reset before the first Step.
func NewEstimatorController(d Design) *EstimatorController {
	klog := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stdout))
	klog = kitlog.With(klog, "subsys", "ctrl")
	return &EstimatorController{design: d, yEq: d.Lin.Yeq(), logger: klog}
}

// Reset initializes the state estimate at the design equilibrium and starts
// the RUNNING state. Resetting an already running controller is permitted
// and starts the estimate over.
func (c *EstimatorController) Reset() error {
	c.xHat = mat64.NewVector(6, nil)
	c.u = mat64.NewVector(NumWheels, nil)
	c.lastT = math.NaN()
	c.running = true
	c.clamped = 0
	c.last = nil
	return nil
}

// ResetTo is Reset with a designer-chosen initial state guess.
func (c *EstimatorController) ResetTo(guess AttitudeState) error {
	if err := c.Reset(); err != nil {
		return err
	}
	eq := c.design.Lin.State.Vector()
	for i, v := range guess.Vector() {
		c.xHat.SetVec(i, v-eq[i])
	}
	return nil
}

// Saturations returns how many individual torque commands were clamped so
// far this episode.
func (c *EstimatorController) Saturations() int {
	return c.clamped
}

// LastEstimate returns the estimate snapshot of the latest Step, or nil
// before the first one.
func (c *EstimatorController) LastEstimate() *ControlEstimate {
	return c.last
}

// Estimate returns the current absolute state estimate.
func (c *EstimatorController) Estimate() AttitudeState {
	eq := c.design.Lin.State.Vector()
	v := make([]float64, 6)
	for i := range v {
		v[i] = eq[i] + c.xHat.At(i, 0)
	}
	return StateFromVector(v)
}

// Step consumes the raw noisy measurement vector at time t (seconds) and
// returns the four torque commands. Out-of-view stars must be encoded as NaN
// pairs in the measurement vector; they are masked out of the innovation.
// The estimate moves forward by the predicted linear dynamics plus the
// innovation correction. Torque commands are clamped to the wheel bound;
// clamping is counted and logged, never an error.
func (c *EstimatorController) Step(t float64, measurement []float64) ([]float64, error) {
	if !c.running {
		return nil, errors.New("controller stepped before reset")
	}
	k := len(c.design.Lin.Stars)
	if len(measurement) != 2*k {
		return nil, fmt.Errorf("expected a measurement vector of length %d, got %d", 2*k, len(measurement))
	}
	h := c.design.Step.Seconds()
	if !math.IsNaN(c.lastT) && t > c.lastT {
		h = t - c.lastT
	}
	c.lastT = t

	// Predicted measurement deviation: C xHat + D u.
	var yHat, Du mat64.Vector
	yHat.MulVec(c.design.Lin.C, c.xHat)
	Du.MulVec(c.design.Lin.D, c.u)
	yHat.AddVec(&yHat, &Du)

	// View-masked innovation.
	ν := mat64.NewVector(2*k, nil)
	for i := 0; i < 2*k; i++ {
		if math.IsNaN(measurement[i]) {
			continue
		}
		ν.SetVec(i, measurement[i]-c.yEq[i]-yHat.At(i, 0))
	}

	// Feedback law with saturation.
	var cmd mat64.Vector
	cmd.MulVec(c.design.K, c.xHat)
	cmd.ScaleVec(-1, &cmd)
	τ := make([]float64, NumWheels)
	for i := 0; i < NumWheels; i++ {
		clamped := false
		τ[i], clamped = clampTorque(cmd.At(i, 0), c.design.MaxTorque)
		if clamped {
			c.clamped++
			c.logger.Log("level", "warning", "t", t, "wheel", i, "requested", cmd.At(i, 0), "clamped", τ[i])
		}
		c.u.SetVec(i, τ[i])
	}

	// Estimate update: xHat += h (A xHat + B u + L ν).
	var AxHat, Bu, Lν mat64.Vector
	AxHat.MulVec(c.design.Lin.A, c.xHat)
	Bu.MulVec(c.design.Lin.B, c.u)
	Lν.MulVec(c.design.L, ν)
	AxHat.AddVec(&AxHat, &Bu)
	AxHat.AddVec(&AxHat, &Lν)
	AxHat.ScaleVec(h, &AxHat)
	c.xHat.AddVec(c.xHat, &AxHat)

	eq := c.design.Lin.State.Vector()
	abs := mat64.NewVector(6, nil)
	for i := 0; i < 6; i++ {
		abs.SetVec(i, eq[i]+c.xHat.At(i, 0))
	}
	c.last = &ControlEstimate{state: abs, meas: &yHat, innovation: ν, command: τ}
	return τ, nil
}

func clampTorque(τ, bound float64) (float64, bool) {
	if τ > bound {
		return bound, true
	}
	if τ < -bound {
		return -bound, true
	}
	return τ, false
}

// ControlEstimate is the per-step snapshot of the estimator. It implements
// gokalman.Estimate so that episodes can stream estimates through the
// gokalman CSV exporter.
type ControlEstimate struct {
	state      *mat64.Vector
	meas       *mat64.Vector
	innovation *mat64.Vector
	command    []float64
}

// IsWithinNσ implements the gokalman.Estimate interface. A Luenberger
// observer carries no covariance, so this is always true.
func (e ControlEstimate) IsWithinNσ(N float64) bool { return true }

// State implements the gokalman.Estimate interface.
func (e ControlEstimate) State() *mat64.Vector { return e.state }

// Measurement implements the gokalman.Estimate interface.
func (e ControlEstimate) Measurement() *mat64.Vector { return e.meas }

// Innovation implements the gokalman.Estimate interface.
func (e ControlEstimate) Innovation() *mat64.Vector { return e.innovation }

// Covariance implements the gokalman.Estimate interface.
func (e ControlEstimate) Covariance() mat64.Symmetric { return mat64.NewSymDense(6, nil) }

// PredCovariance implements the gokalman.Estimate interface.
func (e ControlEstimate) PredCovariance() mat64.Symmetric { return mat64.NewSymDense(6, nil) }

// Command returns the clamped torque commands of this step.
func (e ControlEstimate) Command() []float64 { return e.command }

func (e ControlEstimate) String() string {
	return fmt.Sprintf("estimate %v cmd %v", mat64.Formatted(e.state.T()), e.command)
}

// Interface guard: estimates must stay exportable via gokalman.
var _ gokalman.Estimate = ControlEstimate{}
