package spl

import (
	"fmt"

	"github.com/gonum/matrix/mat64"
	"github.com/gonum/stat"
	"github.com/gonum/stat/distmv"
)

// Dispersion is the standard deviation of each component of the initial state.
type Dispersion struct {
	Position, Velocity, Mass float64
}

func (d Dispersion) sigmas() []float64 {
	return []float64{d.Position, d.Velocity, d.Mass}
}

// MonteCarloConfig defines a Monte Carlo evaluation.
type MonteCarloConfig struct {
	Cases      int
	Dispersion Dispersion
}

// MonteCarloResult stores the runs of a Monte Carlo evaluation and their landing statistics.
type MonteCarloResult struct {
	Initial []State
	Runs    []*SimulationRun
	// Landing position and velocity of each case, taken at the landing marker.
	Positions, Velocities []float64
	PosMean, PosStd       float64
	VelMean, VelStd       float64
	Landed                int
}

func (r *MonteCarloResult) String() string {
	return fmt.Sprintf("%d cases (%d landed): h=%.3f±%.3f m  v=%.3f±%.3f m/s", len(r.Runs), r.Landed, r.PosMean, r.PosStd, r.VelMean, r.VelStd)
}

// dispersedStates draws n initial states around x0. Components with a zero deviation are not dispersed.
func (s *Scenario) dispersedStates(x0 State, d Dispersion, n int) ([]State, error) {
	var dims []int
	var mean, variances []float64
	for i, σ := range d.sigmas() {
		if σ < 0 {
			return nil, newConfigurationError("dispersion", σ, "must not be negative")
		}
		if σ > 0 {
			dims = append(dims, i)
			mean = append(mean, x0[i])
			variances = append(variances, σ*σ)
		}
	}
	states := make([]State, n)
	if len(dims) == 0 {
		for k := range states {
			states[k] = x0.Clone()
		}
		return states, nil
	}
	cov := mat64.NewSymDense(len(dims), nil)
	for i, v := range variances {
		cov.SetSym(i, i, v)
	}
	dist, ok := distmv.NewNormal(mean, cov, s.rng)
	if !ok {
		return nil, fmt.Errorf("dispersion covariance is not positive definite")
	}
	for k := range states {
		states[k] = x0.Clone()
		draw := dist.Rand(nil)
		for j, i := range dims {
			states[k][i] = draw[j]
		}
	}
	return states, nil
}

// MonteCarlo runs the current parameters over dispersed initial states, resetting the thrusters between cases.
func (s *Scenario) MonteCarlo(x0, xf State, opts TimeOptions, conf MonteCarloConfig) (*MonteCarloResult, error) {
	if conf.Cases <= 0 {
		return nil, newConfigurationError("cases", float64(conf.Cases), "must be positive")
	}
	initial, err := s.dispersedStates(x0, conf.Dispersion, conf.Cases)
	if err != nil {
		return nil, err
	}
	res := &MonteCarloResult{Initial: initial}
	for k, x0k := range initial {
		s.Reset()
		run, err := s.Run(x0k, xf, opts)
		if err != nil {
			s.Reset()
			return nil, fmt.Errorf("case %d: %w", k, err)
		}
		res.Runs = append(res.Runs, run)
		land := run.States[run.Landing.Index]
		res.Positions = append(res.Positions, land.Position())
		res.Velocities = append(res.Velocities, land.Velocity())
		if run.Reason == Landed {
			res.Landed++
		}
	}
	s.Reset()
	res.PosMean, res.PosStd = stat.MeanStdDev(res.Positions, nil)
	res.VelMean, res.VelStd = stat.MeanStdDev(res.Velocities, nil)
	s.logger.Log("level", "notice", "status", "monte carlo", "summary", res)
	return res, nil
}
