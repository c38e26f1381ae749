package spl

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	kitlog "github.com/go-kit/kit/log"
	"github.com/spf13/viper"
)

// ConfigEnv names the directory holding the default `conf.toml`.
const ConfigEnv = "SPL_CONFIG"

// BodyConfig is the `[body]` section.
type BodyConfig struct {
	Name    string  `mapstructure:"name"`
	Gravity float64 `mapstructure:"gravity"`
	Radius  float64 `mapstructure:"radius"`
	Mu      float64 `mapstructure:"mu"`
}

// StateConfig is the `[lander]` and `[target]` sections.
type StateConfig struct {
	Altitude float64 `mapstructure:"altitude"`
	Velocity float64 `mapstructure:"velocity"`
	Mass     float64 `mapstructure:"mass"`
	MinMass  float64 `mapstructure:"min_mass"`
}

// SimulationConfig is the `[simulation]` section.
type SimulationConfig struct {
	T0         float64 `mapstructure:"t0"`
	Tf         float64 `mapstructure:"tf"`
	Dt         float64 `mapstructure:"dt"`
	Integrator string  `mapstructure:"integrator"`
	Seed       int64   `mapstructure:"seed"`
}

// CatalogEntryConfig is one `[[propellant.catalog]]` entry.
type CatalogEntryConfig struct {
	Name    string  `mapstructure:"name"`
	Isp     float64 `mapstructure:"isp"`
	Density float64 `mapstructure:"density"`
}

// PropellantSection is the `[propellant]` section.
type PropellantSection struct {
	Name        string               `mapstructure:"name"`
	IspNoiseStd *float64             `mapstructure:"isp_noise_std"`
	IspBiasStd  *float64             `mapstructure:"isp_bias_std"`
	DeadTimeMax *float64             `mapstructure:"dead_time_max"`
	Catalog     []CatalogEntryConfig `mapstructure:"catalog"`
}

// ThrusterSection is the `[thruster]` section: every thruster of the scenario shares it.
type ThrusterSection struct {
	Count    int      `mapstructure:"count"`
	Alpha    float64  `mapstructure:"alpha"`
	TBurn    float64  `mapstructure:"t_burn"`
	DeadTime *float64 `mapstructure:"dead_time"`
	LagTime  *float64 `mapstructure:"lag_time"`
	Shape    string   `mapstructure:"shape"`
	Profile  string   `mapstructure:"profile"` // path to a Time(s),Thrust(N) CSV
}

// ControllerSection is the `[controller]` section.
type ControllerSection struct {
	Law    string    `mapstructure:"law"`
	Params []float64 `mapstructure:"params"`
}

// OptimizerSection is the `[ga]` section.
type OptimizerSection struct {
	Generations     int       `mapstructure:"generations"`
	Population      int       `mapstructure:"population"`
	Mutation        float64   `mapstructure:"mutation_probability"`
	Elite           float64   `mapstructure:"elite_fraction"`
	CrossoverWeight float64   `mapstructure:"crossover_weight"`
	Selection       string    `mapstructure:"selection"`
	Ah              float64   `mapstructure:"ah"`
	Bh              float64   `mapstructure:"bh"`
	Workers         int       `mapstructure:"workers"`
	Seed            int64     `mapstructure:"seed"`
	AlphaMin        float64   `mapstructure:"alpha_min"`
	AlphaMax        float64   `mapstructure:"alpha_max"`
	TBurnMin        float64   `mapstructure:"t_burn_min"`
	TBurnMax        float64   `mapstructure:"t_burn_max"`
	Laws            []string  `mapstructure:"laws"`
	ParamMin        []float64 `mapstructure:"param_min"`
	ParamMax        []float64 `mapstructure:"param_max"`
	Cases           int       `mapstructure:"cases"` // dispersed runs per individual, 1 is nominal only
}

// MonteCarloSection is the `[montecarlo]` section.
type MonteCarloSection struct {
	Cases    int     `mapstructure:"cases"`
	Position float64 `mapstructure:"sd_position"`
	Velocity float64 `mapstructure:"sd_velocity"`
	Mass     float64 `mapstructure:"sd_mass"`
}

// OutputSection is the `[output]` section.
type OutputSection struct {
	Directory string `mapstructure:"directory"`
	Prefix    string `mapstructure:"prefix"`
	Metrics   string `mapstructure:"metrics"` // listen address of the metrics endpoint, empty disables it
}

// ScenarioConfig is a full scenario file.
type ScenarioConfig struct {
	Body       BodyConfig        `mapstructure:"body"`
	Lander     StateConfig       `mapstructure:"lander"`
	Target     StateConfig       `mapstructure:"target"`
	Simulation SimulationConfig  `mapstructure:"simulation"`
	Propellant PropellantSection `mapstructure:"propellant"`
	Thruster   ThrusterSection   `mapstructure:"thruster"`
	Controller ControllerSection `mapstructure:"controller"`
	GA         OptimizerSection  `mapstructure:"ga"`
	MonteCarlo MonteCarloSection `mapstructure:"montecarlo"`
	Output     OutputSection     `mapstructure:"output"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("body.name", Moon.Name)
	v.SetDefault("body.gravity", Moon.Gravity)
	v.SetDefault("body.radius", Moon.Radius)
	v.SetDefault("body.mu", Moon.μ)
	v.SetDefault("lander.altitude", 2000.0)
	v.SetDefault("lander.mass", 24.0)
	v.SetDefault("simulation.tf", 100.0)
	v.SetDefault("simulation.dt", 0.1)
	v.SetDefault("simulation.integrator", "rk4")
	v.SetDefault("simulation.seed", 1)
	v.SetDefault("propellant.name", "CDT(80)")
	v.SetDefault("thruster.count", 1)
	v.SetDefault("thruster.alpha", 0.0502)
	v.SetDefault("thruster.t_burn", 13.53715)
	v.SetDefault("thruster.shape", Neutral.String())
	v.SetDefault("controller.law", Linear.String())
	v.SetDefault("controller.params", []float64{1.0, 6.91036})
	v.SetDefault("ga.generations", 200)
	v.SetDefault("ga.population", 50)
	v.SetDefault("ga.mutation_probability", 0.2)
	v.SetDefault("ga.elite_fraction", 0.2)
	v.SetDefault("ga.crossover_weight", 0.3)
	v.SetDefault("ga.selection", "rank")
	v.SetDefault("ga.ah", 0.1)
	v.SetDefault("ga.bh", 1.0)
	v.SetDefault("ga.workers", 4)
	v.SetDefault("ga.seed", 1)
	v.SetDefault("ga.alpha_min", 0.01)
	v.SetDefault("ga.alpha_max", 0.2)
	v.SetDefault("ga.t_burn_min", 2.0)
	v.SetDefault("ga.t_burn_max", 60.0)
	v.SetDefault("ga.laws", []string{Linear.String()})
	v.SetDefault("ga.param_min", []float64{0, 0})
	v.SetDefault("ga.param_max", []float64{1, 20})
	v.SetDefault("ga.cases", 1)
	v.SetDefault("montecarlo.cases", 60)
	v.SetDefault("montecarlo.sd_position", 50.0)
	v.SetDefault("montecarlo.sd_velocity", 5.0)
	v.SetDefault("output.directory", ".")
	v.SetDefault("output.prefix", "spl")
}

// DefaultScenarioConfig returns the reference 24 kg lunar descent.
func DefaultScenarioConfig() *ScenarioConfig {
	v := viper.New()
	setDefaults(v)
	cfg := &ScenarioConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		panic(fmt.Errorf("default configuration: %s", err))
	}
	return cfg
}

// LoadScenarioConfig reads a scenario file. Missing keys take the reference values.
func LoadScenarioConfig(path string) (*ScenarioConfig, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	cfg := &ScenarioConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return cfg, nil
}

// DefaultConfigPath returns the `conf.toml` in the directory named by SPL_CONFIG.
func DefaultConfigPath() (string, error) {
	dir := os.Getenv(ConfigEnv)
	if dir == "" {
		return "", fmt.Errorf("environment variable `%s` is missing or empty", ConfigEnv)
	}
	return filepath.Join(dir, "conf.toml"), nil
}

// BodyDefinition returns the central body.
func (c *ScenarioConfig) BodyDefinition() Body {
	return NewBody(c.Body.Name, c.Body.Gravity, c.Body.Radius, c.Body.Mu)
}

// Catalog returns the default catalog with the configured entries added.
func (c *ScenarioConfig) Catalog() Catalog {
	specs := make([]PropellantSpec, len(c.Propellant.Catalog))
	for i, e := range c.Propellant.Catalog {
		specs[i] = PropellantSpec{e.Name, e.Isp, e.Density}
	}
	return DefaultCatalog().With(specs...)
}

// PropellantSpec returns the selected propellant.
func (c *ScenarioConfig) PropellantSpec() (PropellantSpec, error) {
	return c.Catalog().Lookup(c.Propellant.Name)
}

// ThrusterConfig returns the configuration shared by every thruster.
func (c *ScenarioConfig) ThrusterConfig() (ThrusterConfig, error) {
	shape, err := BurnShapeFromString(c.Thruster.Shape)
	if err != nil {
		return ThrusterConfig{}, err
	}
	conf := ThrusterConfig{
		Alpha:        c.Thruster.Alpha,
		BurnDuration: c.Thruster.TBurn,
		DeadTime:     c.Thruster.DeadTime,
		LagTime:      c.Thruster.LagTime,
		Shape:        shape,
		Propellant: PropellantConfig{
			IspNoiseStd: c.Propellant.IspNoiseStd,
			IspBiasStd:  c.Propellant.IspBiasStd,
			DeadTimeMax: c.Propellant.DeadTimeMax,
		},
	}
	if c.Thruster.Profile != "" {
		if conf.Table, err = LoadThrustTableFile(c.Thruster.Profile); err != nil {
			return ThrusterConfig{}, err
		}
	}
	return conf, nil
}

// Requirements returns the sizing of the descent from the lander altitude and mass.
func (c *ScenarioConfig) Requirements() (Requirements, error) {
	prop, err := c.PropellantSpec()
	if err != nil {
		return Requirements{}, err
	}
	return NewRequirements(c.BodyDefinition(), prop, c.Lander.Altitude, c.Lander.Mass, c.GA.TBurnMin)
}

// InitialState returns x0.
func (c *ScenarioConfig) InitialState() State {
	return NewState(c.Lander.Altitude, c.Lander.Velocity, c.Lander.Mass)
}

// TargetState returns xf.
func (c *ScenarioConfig) TargetState() State {
	return NewState(c.Target.Altitude, c.Target.Velocity, c.Target.Mass)
}

// TimeOptions returns the time span of a run.
func (c *ScenarioConfig) TimeOptions() TimeOptions {
	return TimeOptions{c.Simulation.T0, c.Simulation.Tf, c.Simulation.Dt}
}

// MonteCarloConfig returns the Monte Carlo settings.
func (c *ScenarioConfig) MonteCarloConfig() MonteCarloConfig {
	return MonteCarloConfig{
		Cases:      c.MonteCarlo.Cases,
		Dispersion: Dispersion{c.MonteCarlo.Position, c.MonteCarlo.Velocity, c.MonteCarlo.Mass},
	}
}

// BuildScenario builds the scenario described by the configuration.
func (c *ScenarioConfig) BuildScenario(logger kitlog.Logger) (*Scenario, error) {
	if c.Thruster.Count <= 0 {
		return nil, newConfigurationError("thruster.count", float64(c.Thruster.Count), "must be positive")
	}
	if c.Lander.Mass <= 0 {
		return nil, newConfigurationError("lander.mass", c.Lander.Mass, "must be positive")
	}
	prop, err := c.PropellantSpec()
	if err != nil {
		return nil, err
	}
	law, err := ControlLawFromString(c.Controller.Law)
	if err != nil {
		return nil, err
	}
	ctrl, err := NewController(law)
	if err != nil {
		return nil, err
	}
	integrator, err := IntegratorFromString(c.Simulation.Integrator)
	if err != nil {
		return nil, err
	}
	thrConf, err := c.ThrusterConfig()
	if err != nil {
		return nil, err
	}
	scn, err := NewScenario(c.BodyDefinition(), prop, ctrl, c.Simulation.Dt, c.Simulation.Seed)
	if err != nil {
		return nil, err
	}
	scn.Integrator = integrator
	scn.MinMass = c.Lander.MinMass
	if logger != nil {
		scn.SetLogger(logger)
	}
	if _, err := scn.AddThrusters(c.Thruster.Count, thrConf); err != nil {
		return nil, err
	}
	if len(c.Controller.Params) > 0 {
		if err := scn.SetControllerParameters(c.Controller.Params); err != nil {
			return nil, err
		}
	}
	return scn, nil
}

// ErrNoConfig is returned when no scenario file is provided and SPL_CONFIG is unset.
var ErrNoConfig = errors.New("no scenario file provided")

// ResolveConfigPath returns path if set, else the default configuration path.
func ResolveConfigPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	if def, err := DefaultConfigPath(); err == nil {
		return def, nil
	}
	return "", ErrNoConfig
}
