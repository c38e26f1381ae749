package spl

import (
	"math"
	"math/rand"

	"github.com/gonum/matrix/mat64"
	"github.com/gonum/stat/distmv"
)

// PropellantConfig defines the dispersions of a grain. Nil fields are disabled.
type PropellantConfig struct {
	IspNoiseStd *float64 // per step Isp noise (s)
	IspBiasStd  *float64 // per ignition Isp bias (s)
	DeadTimeMax *float64 // minimum time before an ignition command is honored (s)
}

// PropellantGrain provides the exhaust velocity of a thruster and gates its ignition.
type PropellantGrain struct {
	Spec          PropellantSpec
	conf          PropellantConfig
	step          float64
	noise, bias   *distmv.Normal
	curNoise      float64 // s
	curBias       float64 // s
	deadTimeSteps int
	deadTimeCount int
}

// NewPropellantGrain returns a new grain drawing its dispersions from src.
func NewPropellantGrain(spec PropellantSpec, conf PropellantConfig, step float64, src *rand.Rand) (*PropellantGrain, error) {
	if spec.Isp <= 0 {
		return nil, newConfigurationError("isp", spec.Isp, "must be positive")
	}
	if step <= 0 {
		return nil, newConfigurationError("step", step, "must be positive")
	}
	g := &PropellantGrain{Spec: spec, conf: conf, step: step}
	if conf.DeadTimeMax != nil {
		if *conf.DeadTimeMax < 0 {
			return nil, newConfigurationError("dead_time_max", *conf.DeadTimeMax, "must not be negative")
		}
		g.deadTimeSteps = int(math.Ceil(*conf.DeadTimeMax/step - 1e-9))
	}
	if err := g.seed(src); err != nil {
		return nil, err
	}
	return g, nil
}

// seed (re)builds the distributions on top of the provided source.
func (g *PropellantGrain) seed(src *rand.Rand) error {
	var err error
	if g.noise, err = newIspNormal("isp_noise_std", g.conf.IspNoiseStd, src); err != nil {
		return err
	}
	g.bias, err = newIspNormal("isp_bias_std", g.conf.IspBiasStd, src)
	return err
}

func newIspNormal(field string, σ *float64, src *rand.Rand) (*distmv.Normal, error) {
	if σ == nil || *σ == 0 {
		return nil, nil
	}
	if *σ < 0 || math.IsNaN(*σ) {
		return nil, newConfigurationError(field, *σ, "must not be negative")
	}
	n, ok := distmv.NewNormal([]float64{0}, mat64.NewSymDense(1, []float64{*σ * *σ}), src)
	if !ok {
		return nil, newConfigurationError(field, *σ, "covariance is not positive definite")
	}
	return n, nil
}

// CharacteristicVelocity returns the current exhaust velocity including bias and noise.
func (g *PropellantGrain) CharacteristicVelocity() float64 {
	return (g.Spec.Isp + g.curBias + g.curNoise) * StandardGravity
}

// CharacteristicVelocityWithNoise draws a new noise sample and returns the exhaust velocity.
func (g *PropellantGrain) CharacteristicVelocityWithNoise() float64 {
	g.AdvanceNoise()
	return g.CharacteristicVelocity()
}

// AdvanceBias draws the bias of this ignition.
func (g *PropellantGrain) AdvanceBias() {
	if g.bias != nil {
		g.curBias = g.bias.Rand(nil)[0]
	}
}

// AdvanceNoise draws the noise of this step.
func (g *PropellantGrain) AdvanceNoise() {
	if g.noise != nil {
		g.curNoise = g.noise.Rand(nil)[0]
	}
}

// StepDeadTime advances the dead time counter by one step.
func (g *PropellantGrain) StepDeadTime() {
	if g.deadTimeCount < g.deadTimeSteps {
		g.deadTimeCount++
	}
}

// DeadTimeElapsed returns whether an ignition command may be honored.
func (g *PropellantGrain) DeadTimeElapsed() bool {
	return g.deadTimeCount >= g.deadTimeSteps
}

// DeadTimeSteps returns the number of steps an ignition is deferred by after a reset.
func (g *PropellantGrain) DeadTimeSteps() int {
	return g.deadTimeSteps
}

// Reset clears the dispersions and restarts the dead time counter.
func (g *PropellantGrain) Reset() {
	g.curBias = 0
	g.curNoise = 0
	g.deadTimeCount = 0
}

func (g *PropellantGrain) clone(src *rand.Rand) *PropellantGrain {
	c := *g
	if err := c.seed(src); err != nil {
		// The configuration was already validated by NewPropellantGrain.
		panic(err)
	}
	c.Reset()
	return &c
}
