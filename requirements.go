package spl

import (
	"fmt"
	"math"
)

// Requirements are the sizing figures of a vertical descent from rest.
type Requirements struct {
	DeltaV         float64 // velocity accumulated by a free fall from the initial altitude (m/s)
	PropellantMass float64 // kg
	DryMass        float64 // mass left after the burn (kg)
	Volume         float64 // propellant volume (m^3)
	AlphaMin       float64 // mass flow rate balancing gravity at the initial mass (kg/s)
	AlphaMax       float64 // mass flow rate consuming the propellant in the shortest burn (kg/s)
	ThrustMin      float64 // N
	ThrustMax      float64 // N
}

// NewRequirements sizes the propulsion of a lander of mass m0 falling from altitude h on body b.
func NewRequirements(b Body, prop PropellantSpec, h, m0, tBurnMin float64) (Requirements, error) {
	if h <= 0 {
		return Requirements{}, newConfigurationError("altitude", h, "must be positive")
	}
	if m0 <= 0 {
		return Requirements{}, newConfigurationError("mass", m0, "must be positive")
	}
	if tBurnMin <= 0 {
		return Requirements{}, newConfigurationError("t_burn_min", tBurnMin, "must be positive")
	}
	if prop.Isp <= 0 {
		return Requirements{}, newConfigurationError("isp", prop.Isp, "must be positive")
	}
	c := prop.CharacteristicVelocity()
	r := Requirements{DeltaV: math.Sqrt(2 * h * math.Abs(b.Gravity))}
	r.PropellantMass, r.DryMass = RocketMass(r.DeltaV, c, m0)
	if prop.Density > 0 {
		r.Volume = r.PropellantMass / prop.Density
	}
	r.AlphaMin = math.Abs(b.Gravity) * m0 / c
	r.AlphaMax = r.PropellantMass / tBurnMin
	r.ThrustMin = r.AlphaMin * c
	r.ThrustMax = r.AlphaMax * c
	return r, nil
}

// EnginesRequired returns the number of engines needed to burn the propellant at alpha for tBurn,
// with a 5% propellant margin.
func (r Requirements) EnginesRequired(alpha, tBurn float64) float64 {
	return 1.05 * r.PropellantMass / alpha / tBurn
}

func (r Requirements) String() string {
	return fmt.Sprintf("Δv=%.3f m/s  mp=%.3f kg  m1=%.3f kg  α=[%.4f, %.4f] kg/s  T=[%.2f, %.2f] N", r.DeltaV, r.PropellantMass, r.DryMass, r.AlphaMin, r.AlphaMax, r.ThrustMin, r.ThrustMax)
}

// RocketMass returns the propellant mass and the final mass needed for a velocity change dv
// at exhaust velocity c from an initial mass m0.
func RocketMass(dv, c, m0 float64) (mp, m1 float64) {
	m1 = m0 * math.Exp(-dv/c)
	mp = m0 - m1
	return
}

// VisViva returns the orbital speed at radius r of an orbit of semi major axis a around b.
func (b Body) VisViva(r, a float64) float64 {
	return math.Sqrt(b.μ * (2/r - 1/a))
}

// Period returns the period of an orbit of semi major axis a around b (s).
func (b Body) Period(a float64) float64 {
	return 2 * math.Pi * math.Sqrt(math.Pow(a, 3)/b.μ)
}
