package main

import (
	"flag"
	"log"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ChristopherRabotin/adcs"
	"github.com/ChristopherRabotin/gokalman"
	"github.com/soniakeys/meeus/julian"
	"github.com/spf13/viper"
)

const defaultScenario = "~~unset~~"

var (
	scenario string
	wg       sync.WaitGroup
)

func init() {
	flag.StringVar(&scenario, "scenario", defaultScenario, "attitude scenario TOML file")
}

func main() {
	flag.Parse()
	if scenario == defaultScenario {
		log.Fatal("no scenario provided")
	}
	scenario = strings.Replace(scenario, ".toml", "", 1)
	viper.AddConfigPath(".")
	viper.SetConfigName(scenario)
	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("./%s.toml: Error %s", scenario, err)
	}

	epoch := confReadJDEorTime("mission.epoch")
	maxTime := viper.GetFloat64("mission.max_time")
	step := viper.GetDuration("mission.step")
	if step == 0 {
		step = 100 * time.Millisecond
	}

	// Vehicle.
	name := viper.GetString("vehicle.name")
	if name == "" {
		name = "scope"
	}
	var J [3]float64
	for i := 0; i < 3; i++ {
		J[i] = viper.GetFloat64("vehicle.J" + strconv.Itoa(i+1))
	}
	wheels := adcs.WheelAssembly{
		Inertia:   viper.GetFloat64("wheels.inertia"),
		Offset:    viper.GetFloat64("wheels.offset"),
		Cant:      adcs.Deg2rad(viper.GetFloat64("wheels.cant_deg")),
		MaxTorque: viper.GetFloat64("wheels.max_torque"),
		MaxSpeed:  viper.GetFloat64("wheels.max_speed"),
	}
	sc := adcs.NewSpacecraft(name, J, wheels)

	// Scope and catalog.
	σ := viper.GetFloat64("scope.noise_sigma")
	scope := adcs.NewScope(viper.GetFloat64("scope.radius"), σ)
	var catalog adcs.StarCatalog
	if viper.GetBool("scope.builtin_catalog") {
		catalog = adcs.DefaultCatalog()
	} else {
		ras := viper.GetStringSlice("scope.star_ra")
		decs := viper.GetStringSlice("scope.star_dec")
		if len(ras) != len(decs) {
			log.Fatalf("star_ra and star_dec must have the same length (%d != %d)", len(ras), len(decs))
		}
		for i := range ras {
			α, err := strconv.ParseFloat(ras[i], 64)
			if err != nil {
				log.Fatalf("could not parse star_ra[%d]: %s", i, err)
			}
			δ, err := strconv.ParseFloat(decs[i], 64)
			if err != nil {
				log.Fatalf("could not parse star_dec[%d]: %s", i, err)
			}
			catalog = append(catalog, adcs.Star{RA: α, Dec: δ})
		}
	}

	// Design at the zero equilibrium.
	lin, err := adcs.Linearize(*sc, scope, catalog, adcs.AttitudeState{}, make([]float64, adcs.NumWheels))
	if err != nil {
		log.Fatalf("linearization failed: %s", err)
	}
	ctrlPoles := confReadPoles("design.controller_poles")
	obsPoles := confReadPoles("design.observer_poles")
	design, err := adcs.NewDesign(lin, ctrlPoles, obsPoles, wheels, step)
	if err != nil {
		log.Fatalf("design rejected: %s", err)
	}
	ctrl := adcs.NewEstimatorController(design)

	// Record the estimate history via the gokalman CSV exporter.
	estChan := make(chan gokalman.Estimate, 1)
	go processEst(scenario+"-est", estChan)
	rec := &recordingController{ctrl: ctrl, estChan: estChan}

	ic := adcs.InitialConditions{Seed: viper.GetInt64("mission.seed")}
	if viper.IsSet("mission.yaw") {
		orientation := [3]float64{
			viper.GetFloat64("mission.yaw"),
			viper.GetFloat64("mission.pitch"),
			viper.GetFloat64("mission.roll"),
		}
		ic.Orientation = &orientation
	}
	if viper.IsSet("mission.wx") {
		rates := [3]float64{
			viper.GetFloat64("mission.wx"),
			viper.GetFloat64("mission.wy"),
			viper.GetFloat64("mission.wz"),
		}
		ic.Rates = &rates
	}

	conf := adcs.ExportConfig{Filename: scenario, AsCSV: true, Timestamp: viper.GetBool("mission.timestamp")}
	sim := adcs.NewSimulation(sc, scope, catalog, rec, ic, maxTime, step, conf)
	log.Printf("[info] starting %s at %s", scenario, epoch.UTC())
	result := sim.Run()
	close(estChan)
	wg.Wait()
	log.Printf("[info] episode %s after %.1f s (saturations: %d)", result.Status, result.Duration, result.Saturations)
	if result.Status == adcs.StatusStarLost {
		log.Printf("[warning] lost star %d", result.LostStar)
	}
}

// recordingController forwards every step to the wrapped controller and
// streams its estimate.
type recordingController struct {
	ctrl    *adcs.EstimatorController
	estChan chan<- gokalman.Estimate
}

func (r *recordingController) Reset() error {
	return r.ctrl.Reset()
}

func (r *recordingController) Step(t float64, measurement []float64) ([]float64, error) {
	τ, err := r.ctrl.Step(t, measurement)
	if err != nil {
		return nil, err
	}
	if est := r.ctrl.LastEstimate(); est != nil {
		r.estChan <- *est
	}
	return τ, nil
}

func processEst(fn string, estChan chan gokalman.Estimate) {
	wg.Add(1)
	ce, _ := gokalman.NewCSVExporter([]string{"yaw", "pitch", "roll", "wx", "wy", "wz"}, ".", fn+".csv")
	for {
		est, more := <-estChan
		if !more {
			ce.Close()
			wg.Done()
			break
		}
		ce.Write(est)
	}
}

// confReadJDEorTime reads a time either as a Julian date or as a timestamp.
func confReadJDEorTime(key string) (dt time.Time) {
	jde := viper.GetFloat64(key)
	if jde == 0 {
		dt = viper.GetTime(key)
	} else {
		dt = julian.JDToTime(jde)
	}
	return
}

// confReadPoles parses a list of strictly stable poles, e.g. ["-1", "-2+1i"].
func confReadPoles(key string) []complex128 {
	raw := viper.GetStringSlice(key)
	poles := make([]complex128, len(raw))
	for i, s := range raw {
		c, err := strconv.ParseComplex(strings.ReplaceAll(s, " ", ""), 128)
		if err != nil {
			log.Fatalf("could not parse pole `%s`: %s", s, err)
		}
		if real(c) >= 0 || math.IsNaN(real(c)) {
			log.Fatalf("pole `%s` is not strictly stable", s)
		}
		poles[i] = c
	}
	return poles
}
