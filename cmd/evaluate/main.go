package main

import (
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"strconv"
	"strings"

	spl "github.com/spel-uchile/SolidPropellantforLanding"
)

// This code evaluates a fixed set of descent parameters over dispersed initial states.

var (
	scenario string
	alpha    float64
	tBurn    float64
	params   string
	cases    int
)

func init() {
	// Read flags
	flag.StringVar(&scenario, "scenario", "", "scenario TOML file (defaults to $SPL_CONFIG/conf.toml)")
	flag.Float64Var(&alpha, "alpha", 0, "overrides the mass flow rate of every thruster (kg/s)")
	flag.Float64Var(&tBurn, "tburn", 0, "overrides the burn duration of every thruster (s)")
	flag.StringVar(&params, "params", "", "overrides the controller parameters, comma separated")
	flag.IntVar(&cases, "cases", 0, "overrides the number of Monte Carlo cases")
}

func parseParams(s string) ([]float64, error) {
	var out []float64
	for _, p := range strings.Split(s, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("controller parameter `%s`: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func main() {
	flag.Parse()
	path, err := spl.ResolveConfigPath(scenario)
	if err != nil {
		log.Fatal(err)
	}
	conf, err := spl.LoadScenarioConfig(path)
	if err != nil {
		log.Fatal(err)
	}
	logger := spl.NewLogger(strings.TrimSuffix(filepath.Base(path), ".toml"))
	if alpha > 0 {
		conf.Thruster.Alpha = alpha
	}
	if tBurn > 0 {
		conf.Thruster.TBurn = tBurn
	}
	if params != "" {
		if conf.Controller.Params, err = parseParams(params); err != nil {
			log.Fatal(err)
		}
	}
	if cases > 0 {
		conf.MonteCarlo.Cases = cases
	}
	scn, err := conf.BuildScenario(logger)
	if err != nil {
		log.Fatal(err)
	}
	for _, thr := range scn.Thrusters() {
		logger.Log("level", "info", "subsys", "prop", "thruster", thr)
	}

	x0, xf, opts := conf.InitialState(), conf.TargetState(), conf.TimeOptions()
	export := spl.ExportConfig{Directory: conf.Output.Directory, Filename: conf.Output.Prefix}
	nominal, err := scn.Run(x0, xf, opts)
	if err != nil {
		log.Fatal(err)
	}
	scn.Reset()
	cost := spl.LandingCost(xf)(nominal.States, nominal.Thrust, conf.GA.Ah, conf.GA.Bh)
	fname, err := spl.ExportRun(export, "-nominal", nominal)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("nominal: %s (%s), cost %.6g, impulse %.3f N.s, saved to %s\n", nominal.Final(), nominal.Reason, cost, nominal.Impulse(), fname)

	mc, err := scn.MonteCarlo(x0, xf, opts, conf.MonteCarloConfig())
	if err != nil {
		log.Fatal(err)
	}
	ignition := make([]float64, len(mc.Runs))
	exhaustion := make([]float64, len(mc.Runs))
	for i, run := range mc.Runs {
		ignition[i] = run.Time[run.Ignition.Index]
		exhaustion[i] = run.Time[run.Exhaustion.Index]
	}
	summary, err := spl.ExportColumns(export, "-montecarlo", []string{"Pos[m]", "V[m/s]", "Ignition[s]", "Exhaustion[s]"}, mc.Positions, mc.Velocities, ignition, exhaustion)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("monte carlo: %s, saved to %s\n", mc, summary)
}
