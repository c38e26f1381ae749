package ga

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http/httptest"
	"testing"

	"github.com/gonum/floats"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	spl "github.com/spel-uchile/SolidPropellantforLanding"
)

// sphere is minimal at the origin and fails for x above failAbove.
type sphere struct {
	failAbove float64
}

func (sphere) Schema() Schema {
	return Schema{
		{Name: "x", Kind: Scalar, Min: -5, Max: 5},
		{Name: "v", Kind: Vector, Min: -5, Max: 5, Size: 2},
	}
}

func (p sphere) Evaluate(ctx context.Context, ind Individual, seed int64, wa, wb float64) (Evaluation, error) {
	if ind.Scalar(0) > p.failAbove {
		return Evaluation{}, errors.New("diverged")
	}
	x := ind.Scalar(0)
	return Evaluation{Cost: wa*x*x + wb*floats.Dot(ind.Vector(1), ind.Vector(1))}, nil
}

func testConfig() Config {
	conf := DefaultConfig()
	conf.Population = 20
	conf.Generations = 10
	conf.Ah, conf.Bh = 1, 1
	return conf
}

func TestOptimizerConverges(t *testing.T) {
	opt, err := NewOptimizer(sphere{failAbove: 3}, testConfig())
	require.NoError(t, err)
	res, err := opt.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, res.History, 10)
	require.Len(t, res.Population, 20)
	best := res.BestCosts()
	for i := 1; i < len(best); i++ {
		assert.True(t, best[i] <= best[i-1], "best cost increased at generation %d", i+1)
	}
	assert.True(t, best[len(best)-1] <= res.MinCosts()[0])
	assert.True(t, res.Best.Evaluated())
	assert.True(t, res.Best.Scalar(0) <= 3, "failed individuals are never the best")
	assert.Equal(t, best[len(best)-1], res.Best.Cost)
}

func TestOptimizerIsDeterministic(t *testing.T) {
	run := func(workers int) *Result {
		conf := testConfig()
		conf.Workers = workers
		opt, err := NewOptimizer(sphere{failAbove: 3}, conf)
		require.NoError(t, err)
		res, err := opt.Run(context.Background())
		require.NoError(t, err)
		return res
	}
	a, b := run(1), run(8)
	assert.Equal(t, a.Best, b.Best, "scheduling must not change the outcome")
	assert.Equal(t, a.History, b.History)
}

func TestOptimizerScoresFailuresAsInf(t *testing.T) {
	opt, err := NewOptimizer(sphere{failAbove: 0}, testConfig())
	require.NoError(t, err)
	res, err := opt.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, res.History[0].Failed > 0, "about half of the first generation fails")
	for _, ind := range res.Population {
		if ind.Scalar(0) > 0 {
			assert.True(t, math.IsInf(ind.Cost, 1))
		}
	}

	opt, err = NewOptimizer(sphere{failAbove: -10}, testConfig())
	require.NoError(t, err)
	res, err = opt.Run(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 20, res.History[0].Failed)
}

// fragile panics for positive x.
type fragile struct {
	sphere
}

func (p fragile) Evaluate(ctx context.Context, ind Individual, seed int64, wa, wb float64) (Evaluation, error) {
	if ind.Scalar(0) > 0 {
		var scores map[int64]float64
		scores[seed] = 0
	}
	return p.sphere.Evaluate(ctx, ind, seed, wa, wb)
}

func TestOptimizerRecoversPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	opt, err := NewOptimizer(fragile{sphere{failAbove: 10}}, testConfig())
	require.NoError(t, err)
	opt.SetMetrics(NewMetrics(reg))
	res, err := opt.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.History, 10)
	assert.True(t, res.History[0].Failed > 0, "about half of the first generation panics")
	for _, ind := range res.Population {
		if ind.Scalar(0) > 0 {
			assert.True(t, math.IsInf(ind.Cost, 1))
		}
	}
	assert.True(t, res.Best.Scalar(0) <= 0)
}

func TestOptimizerCancellation(t *testing.T) {
	opt, err := NewOptimizer(sphere{failAbove: 3}, testConfig())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = opt.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConfigValidation(t *testing.T) {
	for _, mod := range []func(*Config){
		func(c *Config) { c.Generations = 0 },
		func(c *Config) { c.Population = 1 },
		func(c *Config) { c.Mutation = 1.5 },
		func(c *Config) { c.Elite = 1 },
		func(c *Config) { c.CrossoverWeight = -0.1 },
	} {
		conf := DefaultConfig()
		mod(&conf)
		assert.Error(t, conf.Validate())
	}
	conf := DefaultConfig()
	assert.Equal(t, 40, conf.offspring())
	conf.Population = 7
	assert.Equal(t, 6, conf.offspring(), "offspring are bred in pairs")

	fromFile, err := ConfigFromScenario(spl.DefaultScenarioConfig().GA)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), fromFile)
}

func TestDeriveSeed(t *testing.T) {
	assert.Equal(t, deriveSeed(1, 2, 3), deriveSeed(1, 2, 3))
	seen := make(map[int64]bool)
	for gen := 1; gen <= 10; gen++ {
		for i := 0; i < 50; i++ {
			s := deriveSeed(1, gen, i)
			assert.False(t, seen[s], "seed collision at generation %d, individual %d", gen, i)
			seen[s] = true
			assert.True(t, s >= 0)
		}
	}
	assert.NotEqual(t, deriveSeed(1, 1, 0), deriveSeed(2, 1, 0))
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	opt, err := NewOptimizer(sphere{failAbove: 0}, testConfig())
	require.NoError(t, err)
	opt.SetMetrics(NewMetrics(reg))
	res, err := opt.Run(context.Background())
	require.NoError(t, err)

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "spl_ga_evaluations_total 200")
	assert.Contains(t, string(body), "spl_ga_generation 10")
	failed := 0
	for _, g := range res.History {
		failed += g.Failed
	}
	assert.Contains(t, string(body), fmt.Sprintf("spl_ga_evaluation_failures_total %d", failed))
}
