package spl

import (
	"fmt"
	"sort"
	"strings"
)

const (
	// StandardGravity is the gravity used to convert a specific impulse to an exhaust velocity (m/s^2).
	StandardGravity = 9.807
)

// BurnShape defines the thrust envelope family of a grain.
type BurnShape uint8

const (
	// Neutral burns at a constant thrust.
	Neutral BurnShape = iota + 1
	// Progressive burns with an increasing thrust.
	Progressive
	// Regressive burns with a decreasing thrust.
	Regressive
)

func (s BurnShape) String() string {
	switch s {
	case Neutral:
		return "neutral"
	case Progressive:
		return "progressive"
	case Regressive:
		return "regressive"
	}
	panic("cannot stringify unknown burn shape")
}

// BurnShapeFromString returns the burn shape from its name.
func BurnShapeFromString(name string) (BurnShape, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "neutral", "":
		return Neutral, nil
	case "progressive":
		return Progressive, nil
	case "regressive":
		return Regressive, nil
	}
	return 0, fmt.Errorf("unknown burn shape `%s`", name)
}

// PropellantSpec stores the bulk properties of a propellant.
type PropellantSpec struct {
	Name    string
	Isp     float64 // s
	Density float64 // kg/m^3
}

// CharacteristicVelocity returns Isp * g0.
func (p PropellantSpec) CharacteristicVelocity() float64 {
	return p.Isp * StandardGravity
}

// Catalog is an immutable table of propellants.
type Catalog struct {
	propellants map[string]PropellantSpec
}

// NewCatalog builds a catalog from the provided specs. Later duplicates win.
func NewCatalog(specs ...PropellantSpec) Catalog {
	c := Catalog{make(map[string]PropellantSpec, len(specs))}
	for _, s := range specs {
		c.propellants[s.Name] = s
	}
	return c
}

// DefaultCatalog returns the nominal propellants considered for the descent stage.
func DefaultCatalog() Catalog {
	return NewCatalog(
		PropellantSpec{"JPL_540A", 280, 1660},
		PropellantSpec{"ANP-2639AF", 249, 1720},
		PropellantSpec{"CDT(80)", 235, 1740},
		PropellantSpec{"TRX-H609", 250, 1760},
		PropellantSpec{"KNSU", 164, 1889},
	)
}

// With returns a copy of the catalog with the provided specs added or replaced.
func (c Catalog) With(specs ...PropellantSpec) Catalog {
	all := make([]PropellantSpec, 0, len(c.propellants)+len(specs))
	for _, s := range c.propellants {
		all = append(all, s)
	}
	return NewCatalog(append(all, specs...)...)
}

// Lookup returns the propellant of that name.
func (c Catalog) Lookup(name string) (PropellantSpec, error) {
	p, ok := c.propellants[name]
	if !ok {
		return PropellantSpec{}, fmt.Errorf("propellant `%s` not in catalog (have %s)", name, strings.Join(c.Names(), ", "))
	}
	return p, nil
}

// Names returns the sorted propellant names.
func (c Catalog) Names() []string {
	names := make([]string, 0, len(c.propellants))
	for n := range c.propellants {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
