package adcs

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/ChristopherRabotin/ode"
)

// EpisodeStatus tells how a simulation episode ended.
type EpisodeStatus uint8

const (
	// StatusRunning means the episode has not terminated yet.
	StatusRunning EpisodeStatus = iota
	// StatusCompleted means max time elapsed without a termination condition.
	StatusCompleted
	// StatusStarLost means a star left the scope field of view.
	StatusStarLost
	// StatusWheelOverspeed means a wheel exceeded its angular velocity bound.
	StatusWheelOverspeed
)

func (s EpisodeStatus) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusStarLost:
		return "star lost"
	case StatusWheelOverspeed:
		return "wheel overspeed"
	}
	panic("cannot stringify unknown episode status")
}

// SimState is one sample of the true simulation state.
type SimState struct {
	T        float64
	State    AttitudeState
	WheelW   [NumWheels]float64
	Torques  [NumWheels]float64
	Estimate AttitudeState
}

// InitialConditions configures an episode reset. Nil orientation or rates
// mean "sample randomly" from a small region around the equilibrium.
type InitialConditions struct {
	Orientation *[3]float64 // yaw, pitch, roll
	Rates       *[3]float64
	Seed        int64
}

// sample returns concrete initial orientation and rates.
func (ic InitialConditions) sample() (orientation, rates [3]float64) {
	rng := rand.New(rand.NewSource(ic.Seed))
	if ic.Orientation != nil {
		orientation = *ic.Orientation
	} else {
		for i := range orientation {
			orientation[i] = (rng.Float64()*2 - 1) * 0.02
		}
	}
	if ic.Rates != nil {
		rates = *ic.Rates
	} else {
		for i := range rates {
			rates[i] = (rng.Float64()*2 - 1) * 0.005
		}
	}
	return
}

// EpisodeResult summarizes one finished episode.
type EpisodeResult struct {
	Status      EpisodeStatus
	Duration    float64 // seconds of simulated time
	LostStar    int     // index of the star that left the view, if any
	Saturations int
	Final       AttitudeState
}

// Simulation steps the true nonlinear dynamics with RK4, takes noisy star
// measurements once per tick, and drives an AttitudeController. It fills the
// role smd's Mission fills for orbit propagation.
type Simulation struct {
	SC       *Spacecraft
	Scope    Scope
	Catalog  StarCatalog
	Ctrl     AttitudeController
	MaxTime  float64
	X        AttitudeState
	WheelW   [NumWheels]float64
	τ        []float64 // zero-order-held commands for the current interval
	current  float64
	step     time.Duration
	status   EpisodeStatus
	lostStar int
	histChan chan<- SimState
	wg       sync.WaitGroup
}

// NewSimulation builds an episode. The scope noise and initial conditions
// follow the reset semantics: explicit values or random sampling. A non
// useless ExportConfig streams every true state to CSV in the background.
func NewSimulation(sc *Spacecraft, scope Scope, catalog StarCatalog, ctrl AttitudeController, ic InitialConditions, maxTime float64, step time.Duration, conf ExportConfig) *Simulation {
	orientation, rates := ic.sample()
	s := &Simulation{
		SC:      sc,
		Scope:   scope,
		Catalog: catalog,
		Ctrl:    ctrl,
		MaxTime: maxTime,
		X: AttitudeState{
			Yaw: orientation[0], Pitch: orientation[1], Roll: orientation[2],
			Wx: rates[0], Wy: rates[1], Wz: rates[2],
		},
		τ:      make([]float64, NumWheels),
		step:   step,
		status: StatusRunning,
	}
	if !conf.IsUseless() {
		histChan := make(chan SimState, 1000)
		s.histChan = histChan
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			StreamSimStates(conf, histChan)
		}()
	}
	return s
}

// Run resets the controller and propagates until termination. Blocking.
func (s *Simulation) Run() EpisodeResult {
	logger := s.SC.Logger()
	if err := s.Ctrl.Reset(); err != nil {
		panic(err)
	}
	logger.Log("level", "info", "subsys", "sim", "status", "starting", "maxTime(s)", s.MaxTime, "state", s.X)
	ode.NewRK4(0, s.step.Seconds(), s).Solve() // Blocking.
	if s.histChan != nil {
		close(s.histChan)
	}
	s.wg.Wait()
	result := EpisodeResult{
		Status:   s.status,
		Duration: s.current,
		LostStar: s.lostStar,
		Final:    s.X,
	}
	if ec, ok := s.Ctrl.(*EstimatorController); ok {
		result.Saturations = ec.Saturations()
	}
	logger.Log("level", "notice", "subsys", "sim", "status", result.Status, "duration(s)", result.Duration, "saturations", result.Saturations)
	return result
}

// GetState returns the combined body and wheel state for the integrator.
func (s *Simulation) GetState() []float64 {
	out := make([]float64, 6+NumWheels)
	copy(out, s.X.Vector())
	for i := 0; i < NumWheels; i++ {
		out[6+i] = s.WheelW[i]
	}
	return out
}

// SetState stores the integrated state, takes the measurements and runs one
// controller step, holding the returned torques for the next interval.
func (s *Simulation) SetState(t float64, state []float64) {
	s.X = StateFromVector(state[:6])
	for i := 0; i < NumWheels; i++ {
		s.WheelW[i] = state[6+i]
	}
	s.current += s.step.Seconds()

	for i := 0; i < NumWheels; i++ {
		if math.Abs(s.WheelW[i]) > s.SC.Wheels.MaxSpeed {
			s.status = StatusWheelOverspeed
			s.SC.Logger().Log("level", "warning", "subsys", "sim", "wheel", i, "speed(rad/s)", s.WheelW[i], "bound", s.SC.Wheels.MaxSpeed)
			return
		}
	}

	measurement := s.Scope.MeasurementVector(s.X, s.Catalog)
	for i := range s.Catalog {
		if math.IsNaN(measurement[2*i]) {
			s.status = StatusStarLost
			s.lostStar = i
			s.SC.Logger().Log("level", "warning", "subsys", "sim", "lostStar", i, "t(s)", s.current, "err", OutOfViewError{Star: i})
			return
		}
	}

	τ, err := s.Ctrl.Step(s.current, measurement)
	if err != nil {
		panic(err)
	}
	copy(s.τ, τ)

	if s.histChan != nil {
		sample := SimState{T: s.current, State: s.X, WheelW: s.WheelW}
		copy(sample.Torques[:], s.τ)
		if ec, ok := s.Ctrl.(*EstimatorController); ok {
			sample.Estimate = ec.Estimate()
		}
		s.histChan <- sample
	}
}

// Stop implements the integrator stop condition.
func (s *Simulation) Stop(t float64) bool {
	if s.status != StatusRunning {
		return true
	}
	if s.current >= s.MaxTime {
		s.status = StatusCompleted
		return true
	}
	return false
}

// Func is the true nonlinear derivative of the body state and wheel speeds
// under the currently held torques.
func (s *Simulation) Func(t float64, f []float64) []float64 {
	fDot := make([]float64, 6+NumWheels)
	xDot, err := s.SC.Dynamics(StateFromVector(f[:6]), s.τ)
	if err != nil {
		// Hitting the kinematic singularity mid-step: freeze the state,
		// the episode terminates on the next visibility check.
		return fDot
	}
	copy(fDot, xDot)
	for i := 0; i < NumWheels; i++ {
		fDot[6+i] = s.τ[i] / s.SC.Wheels.Inertia
	}
	return fDot
}
