package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	spl "github.com/spel-uchile/SolidPropellantforLanding"
	"github.com/spel-uchile/SolidPropellantforLanding/ga"
)

// This code reads a scenario, searches the best descent parameters and exports the best run.

var (
	scenario    string
	generations int
	population  int
	workers     int
	metricsAddr string
	verbose     bool
)

func init() {
	// Read flags
	flag.StringVar(&scenario, "scenario", "", "scenario TOML file (defaults to $SPL_CONFIG/conf.toml)")
	flag.IntVar(&generations, "generations", 0, "overrides the number of generations")
	flag.IntVar(&population, "population", 0, "overrides the population size")
	flag.IntVar(&workers, "workers", 0, "overrides the number of parallel evaluations")
	flag.StringVar(&metricsAddr, "metrics", "", "serves the search metrics on this address (e.g. :9090)")
	flag.BoolVar(&verbose, "verbose", false, "logs every simulation")
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
	name := strings.TrimSuffix(filepath.Base(path), ".toml")
	logger := spl.NewLogger(name)

	if generations > 0 {
		conf.GA.Generations = generations
	}
	if population > 0 {
		conf.GA.Population = population
	}
	if workers > 0 {
		conf.GA.Workers = workers
	}
	if metricsAddr == "" {
		metricsAddr = conf.Output.Metrics
	}

	// The scenario logger is quiet while searching.
	var simLogger = logger
	if !verbose {
		simLogger = nil
	}
	base, err := conf.BuildScenario(simLogger)
	if err != nil {
		log.Fatal(err)
	}
	req, err := conf.Requirements()
	if err != nil {
		log.Fatal(err)
	}
	logger.Log("level", "info", "subsys", "sizing", "requirements", req)

	gaConf, err := ga.ConfigFromScenario(conf.GA)
	if err != nil {
		log.Fatal(err)
	}
	bounds, err := ga.BoundsFromScenario(conf.GA)
	if err != nil {
		log.Fatal(err)
	}
	xf := conf.TargetState()
	problem, err := ga.NewLanderProblem(base, conf.InitialState(), xf, conf.TimeOptions(), bounds, spl.LandingCost(xf))
	if err != nil {
		log.Fatal(err)
	}
	if conf.GA.Cases > 1 {
		problem.SetDispersion(conf.GA.Cases, conf.MonteCarloConfig().Dispersion)
	}
	optimizer, err := ga.NewOptimizer(problem, gaConf)
	if err != nil {
		log.Fatal(err)
	}
	optimizer.SetLogger(logger)

	if metricsAddr != "" {
		reg := prometheus.NewRegistry()
		optimizer.SetMetrics(ga.NewMetrics(reg))
		mux := http.NewServeMux()
		mux.Handle("/metrics", ga.Handler(reg))
		go func() {
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				logger.Log("level", "critical", "subsys", "metrics", "err", err)
			}
		}()
		logger.Log("level", "info", "subsys", "metrics", "address", metricsAddr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	res, err := optimizer.Run(ctx)
	if err != nil {
		log.Fatal(err)
	}

	export := spl.ExportConfig{Directory: conf.Output.Directory, Filename: conf.Output.Prefix}
	fname, err := spl.ExportRun(export, "-best", res.BestRun)
	if err != nil {
		log.Fatal(err)
	}
	hist, err := spl.ExportColumns(export, "-history", []string{"Generation", "Min", "Best"}, generationNumbers(res), res.MinCosts(), res.BestCosts())
	if err != nil {
		log.Fatal(err)
	}
	final := res.BestRun.Final()
	fmt.Printf("best individual: %s\n", res.Best)
	fmt.Printf("final state: %s (%s)\n", final, res.BestRun.Reason)
	fmt.Printf("saved %s and %s\n", fname, hist)
}

func generationNumbers(res *ga.Result) []float64 {
	out := make([]float64, len(res.History))
	for i, g := range res.History {
		out[i] = float64(g.Number)
	}
	return out
}
