package adcs

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/gonum/matrix/mat64"
	"github.com/gonum/stat/distmv"
)

// Star defines a catalog entry by its right ascension and declination, both
// in radians.
type Star struct {
	RA, Dec float64
}

// Unit returns the star direction as a unit vector in the space frame.
func (s Star) Unit() []float64 {
	sδ, cδ := math.Sincos(s.Dec)
	sα, cα := math.Sincos(s.RA)
	return []float64{cδ * cα, cδ * sα, sδ}
}

func (s Star) String() string {
	return fmt.Sprintf("star(α=%f, δ=%f)", s.RA, s.Dec)
}

// StarCatalog is an ordered, immutable sequence of stars. The measurement
// vector follows the catalog order.
type StarCatalog []Star

// DefaultCatalog returns the seven guide stars clustered around the boresight
// of the zero attitude.
func DefaultCatalog() StarCatalog {
	return StarCatalog{
		{0, 0},
		{0.10, 0.04},
		{-0.08, 0.07},
		{0.06, -0.09},
		{-0.05, -0.07},
		{0.12, 0.11},
		{-0.11, 0.09},
	}
}

// StarMeasurement is the projection of one star on the scope image plane.
type StarMeasurement struct {
	Visible      bool    // whether the star is within the field of view
	Y, Z         float64 // noisy image-plane coordinates
	TrueY, TrueZ float64 // noise-free image-plane coordinates
	Star         Star
}

// Scope defines the star tracker: its image-plane radius (which both scales
// the projection and bounds the field of view) and its measurement noise.
type Scope struct {
	Radius float64
	σ      float64
	noise  *distmv.Normal
}

// NewScope returns a scope with the given radius and per-component Gaussian
// measurement noise standard deviation. A zero σ scope is deterministic.
func NewScope(radius, σ float64) Scope {
	var noise *distmv.Normal
	if σ > 0 {
		seed := rand.New(rand.NewSource(time.Now().UnixNano()))
		var ok bool
		noise, ok = distmv.NewNormal([]float64{0, 0}, mat64.NewSymDense(2, []float64{σ * σ, 0, 0, σ * σ}), seed)
		if !ok {
			panic("NOK in Gaussian")
		}
	}
	return Scope{Radius: radius, σ: σ, noise: noise}
}

// NewSeededScope is NewScope with a deterministic noise source.
func NewSeededScope(radius, σ float64, seed int64) Scope {
	sc := NewScope(radius, 0)
	if σ > 0 {
		src := rand.New(rand.NewSource(seed))
		noise, ok := distmv.NewNormal([]float64{0, 0}, mat64.NewSymDense(2, []float64{σ * σ, 0, 0, σ * σ}), src)
		if !ok {
			panic("NOK in Gaussian")
		}
		sc.σ = σ
		sc.noise = noise
	}
	return sc
}

// Noise returns the per-component measurement noise standard deviation.
func (sc Scope) Noise() float64 {
	return sc.σ
}

// Project returns the image-plane measurement of one star for the given
// attitude. The star direction is rotated into the body frame and perspective
// projected onto the plane normal to the boresight (body +x), scaled by the
// scope radius. The measurement is flagged invisible when the star is behind
// the boresight or its projected magnitude exceeds the scope radius.
func (sc Scope) Project(x AttitudeState, star Star) StarMeasurement {
	u := Space2Body(x.Yaw, x.Pitch, x.Roll, star.Unit())
	if u[0] <= 0 {
		return StarMeasurement{Visible: false, Star: star}
	}
	y := sc.Radius * u[1] / u[0]
	z := sc.Radius * u[2] / u[0]
	if math.Hypot(y, z) > sc.Radius {
		return StarMeasurement{Visible: false, TrueY: y, TrueZ: z, Star: star}
	}
	m := StarMeasurement{Visible: true, Y: y, Z: z, TrueY: y, TrueZ: z, Star: star}
	if sc.noise != nil {
		η := sc.noise.Rand(nil)
		m.Y += η[0]
		m.Z += η[1]
	}
	return m
}

// MeasurementVector projects the full catalog and returns the flat length
// 2k measurement vector ordered (y_i, z_i) by star index. Out-of-view stars
// are encoded as NaN pairs.
func (sc Scope) MeasurementVector(x AttitudeState, catalog StarCatalog) []float64 {
	v := make([]float64, 2*len(catalog))
	for i, star := range catalog {
		m := sc.Project(x, star)
		if !m.Visible {
			v[2*i] = math.NaN()
			v[2*i+1] = math.NaN()
			continue
		}
		v[2*i] = m.Y
		v[2*i+1] = m.Z
	}
	return v
}
