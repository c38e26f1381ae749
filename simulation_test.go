package spl

import (
	"errors"
	"math"
	"testing"

	"github.com/gonum/floats"
)

// never fires before the lander reaches the ground.
var never = []float64{-1}

// always fires.
var always = []float64{1e12}

func newTestScenario(t *testing.T, n int, conf ThrusterConfig, law ControlLaw, params []float64, step float64, seed int64) *Scenario {
	ctrl, err := NewController(law)
	if err != nil {
		t.Fatal(err)
	}
	scn, err := NewScenario(Moon, cdt80, ctrl, step, seed)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := scn.AddThrusters(n, conf); err != nil {
		t.Fatal(err)
	}
	if err := scn.SetControllerParameters(params); err != nil {
		t.Fatal(err)
	}
	return scn
}

func assertMarkerInvariant(t *testing.T, run *SimulationRun) {
	last := len(run.States) - 1
	if run.Ignition.Index > run.Exhaustion.Index || run.Exhaustion.Index > last {
		t.Fatalf("invalid markers: ignition %d, exhaustion %d, last %d", run.Ignition.Index, run.Exhaustion.Index, last)
	}
	if len(run.Thrust) != len(run.States) || len(run.Time) != len(run.States) {
		t.Fatalf("history lengths differ: %d states, %d thrusts, %d times", len(run.States), len(run.Thrust), len(run.Time))
	}
}

func TestTotalImpulse(t *testing.T) {
	alpha, burn := 0.05, 13.5
	exp := alpha * cdt80.CharacteristicVelocity() * burn
	for _, dt := range []float64{0.1, 0.05, 0.01} {
		scn := newTestScenario(t, 1, ThrusterConfig{Alpha: alpha, BurnDuration: burn}, Altitude, always, dt, 1)
		run, err := scn.Run(NewState(1e6, 0, 24), NewState(0, 0, 0), TimeOptions{0, 20, dt})
		if err != nil {
			t.Fatal(err)
		}
		if run.Reason != TimeElapsed {
			t.Fatalf("dt=%f: unexpected termination %s", dt, run.Reason)
		}
		if math.Abs(run.Impulse()-exp)/exp > 0.01 {
			t.Fatalf("dt=%f: impulse %f too far from %f", dt, run.Impulse(), exp)
		}
		if !run.Ignition.Observed || run.Ignition.Index != 0 || !run.Exhaustion.Observed {
			t.Fatalf("dt=%f: markers %+v %+v", dt, run.Ignition, run.Exhaustion)
		}
		if !floats.EqualWithinAbs(run.Time[len(run.Time)-1], 20, 1e-9) {
			t.Fatalf("dt=%f: final time %f", dt, run.Time[len(run.Time)-1])
		}
		assertMarkerInvariant(t, run)
		// Rocket equation: the mass flow of a neutral grain is alpha.
		dm := run.Initial().Mass() - run.Final().Mass()
		if !floats.EqualWithinAbs(dm, alpha*float64(run.Exhaustion.Index)*dt, 1e-6) {
			t.Fatalf("dt=%f: consumed %f kg", dt, dm)
		}
	}
}

func TestResetRoundTrip(t *testing.T) {
	conf := ThrusterConfig{
		Alpha:        0.0502,
		BurnDuration: 13.53715,
		DeadTime:     ptr(0.2),
		LagTime:      ptr(0.5),
		Propellant:   PropellantConfig{IspNoiseStd: ptr(0.5), IspBiasStd: ptr(2.6), DeadTimeMax: ptr(0.2)},
	}
	scn := newTestScenario(t, 3, conf, Linear, []float64{1, 6.91036}, 0.1, 42)
	x0, xf, opts := NewState(2000, 0, 24), NewState(0, 0, 0), TimeOptions{0, 100, 0.1}
	run1, err := scn.Run(x0, xf, opts)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := scn.Run(x0, xf, opts); !errors.Is(err, ErrNotReset) {
		t.Fatalf("expected ErrNotReset, got %v", err)
	}
	scn.Reset()
	scn.Reseed(42)
	run2, err := scn.Run(x0, xf, opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(run1.States) != len(run2.States) {
		t.Fatalf("runs differ in length: %d vs %d", len(run1.States), len(run2.States))
	}
	for i := range run1.States {
		if !floats.Equal(run1.States[i], run2.States[i]) || run1.Thrust[i] != run2.Thrust[i] {
			t.Fatalf("step %d differs: %s/%f vs %s/%f", i, run1.States[i], run1.Thrust[i], run2.States[i], run2.Thrust[i])
		}
	}
	if run1.Ignition != run2.Ignition || run1.Exhaustion != run2.Exhaustion || run1.Reason != run2.Reason {
		t.Fatal("markers differ")
	}

	// A different seed changes the dispersions.
	scn.Reset()
	scn.Reseed(43)
	run3, err := scn.Run(x0, xf, opts)
	if err != nil {
		t.Fatal(err)
	}
	if floats.Equal(run1.Thrust, run3.Thrust) {
		t.Fatal("thrust history does not depend on the seed")
	}
}

func TestExhaustionMonotonicity(t *testing.T) {
	conf := ThrusterConfig{Alpha: 0.02, BurnDuration: 5, DeadTime: ptr(0.1), LagTime: ptr(0.3), Propellant: PropellantConfig{IspNoiseStd: ptr(1), DeadTimeMax: ptr(0.5)}}
	scn := newTestScenario(t, 2, conf, Altitude, always, 0.1, 3)
	run, err := scn.Run(NewState(1e6, 0, 24), NewState(0, 0, 0), TimeOptions{0, 30, 0.1})
	if err != nil {
		t.Fatal(err)
	}
	assertMarkerInvariant(t, run)
	if !run.Exhaustion.Observed {
		t.Fatal("exhaustion not observed")
	}
	for i := run.Exhaustion.Index; i < len(run.Thrust); i++ {
		if run.Thrust[i] != 0 {
			t.Fatalf("step %d: thrust %f after exhaustion at %d", i, run.Thrust[i], run.Exhaustion.Index)
		}
	}
	for _, thr := range scn.Thrusters() {
		for i := 0; i < 5; i++ {
			thr.SetCommand(true)
			if err := thr.PropagateStep(); err != nil {
				t.Fatal(err)
			}
			if !thr.Exhausted() || thr.Thrust() != 0 {
				t.Fatalf("%s revived", thr)
			}
		}
	}
	// Ignition is deferred by the dead time of the grain.
	if run.Ignition.Index != 5 {
		t.Fatalf("expected ignition at step 5, got %d", run.Ignition.Index)
	}
}

func TestRunLands(t *testing.T) {
	scn := newTestScenario(t, 1, ThrusterConfig{Alpha: 0.0502, BurnDuration: 13.53715}, Linear, []float64{1, 6.91036}, 0.1, 1)
	run, err := scn.Run(NewState(2000, 0, 24), NewState(0, 0, 0), TimeOptions{0, 100, 0.1})
	if err != nil {
		t.Fatal(err)
	}
	if run.Reason != Landed || !run.Landing.Observed || run.Landing.Index != len(run.States)-1 {
		t.Fatalf("expected a landing, got %s at %+v", run.Reason, run.Landing)
	}
	if run.Final().Position() > 0 {
		t.Fatalf("landed above ground: %s", run.Final())
	}
	// The switching line is crossed on the way down, well before landing.
	ign := run.States[run.Ignition.Index]
	if !run.Ignition.Observed || ign.Position()+6.91036*ign.Velocity() > 0 {
		t.Fatalf("ignition at %s does not satisfy the switching line", ign)
	}
	if run.Thrusters["thr-0"].Ignition != run.Ignition {
		t.Fatal("single thruster markers should match the aggregate ones")
	}
	assertMarkerInvariant(t, run)
}

func TestMarkersDefaultToLastIndex(t *testing.T) {
	scn := newTestScenario(t, 2, ThrusterConfig{Alpha: 0.05, BurnDuration: 5}, Altitude, never, 0.1, 1)
	run, err := scn.Run(NewState(100, 0, 24), NewState(0, 0, 0), TimeOptions{0, 100, 0.1})
	if err != nil {
		t.Fatal(err)
	}
	last := len(run.States) - 1
	for _, m := range []Marker{run.Ignition, run.Exhaustion, run.Thrusters["thr-1"].Ignition} {
		if m.Observed || m.Index != last {
			t.Fatalf("marker should default to %d: %+v", last, m)
		}
	}
	if run.MaxThrust() != 0 {
		t.Fatal("thrust without any command")
	}
	assertMarkerInvariant(t, run)
}

func TestFreeFallIntegrators(t *testing.T) {
	x0 := NewState(100, 0, 24)
	for _, integrator := range []Integrator{RK4{}, Euler{}} {
		scn := newTestScenario(t, 1, ThrusterConfig{Alpha: 0.05, BurnDuration: 5}, Altitude, never, 0.1, 1)
		scn.Integrator = integrator
		run, err := scn.Run(x0, NewState(0, 0, 0), TimeOptions{0, 100, 0.1})
		if err != nil {
			t.Fatal(err)
		}
		for i, s := range run.States {
			tm := run.Time[i]
			if !floats.EqualWithinAbs(s.Velocity(), Moon.Gravity*tm, 1e-9) {
				t.Fatalf("%s t=%f: velocity %f", integrator, tm, s.Velocity())
			}
			if s.Mass() != 24 {
				t.Fatalf("%s: mass changed without thrust", integrator)
			}
			if _, ok := integrator.(RK4); ok && !floats.EqualWithinAbs(s.Position(), 100+0.5*Moon.Gravity*tm*tm, 1e-9) {
				t.Fatalf("rk4 t=%f: position %f", tm, s.Position())
			}
		}
		if run.Reason != Landed {
			t.Fatalf("%s: %s", integrator, run.Reason)
		}
	}
}

func TestMassDepleted(t *testing.T) {
	scn := newTestScenario(t, 1, ThrusterConfig{Alpha: 0.05, BurnDuration: 100}, Altitude, always, 0.1, 1)
	scn.MinMass = 23.9
	run, err := scn.Run(NewState(1e6, 0, 24), NewState(0, 0, 0), TimeOptions{0, 100, 0.1})
	if err != nil {
		t.Fatal(err)
	}
	if run.Reason != MassDepleted {
		t.Fatalf("expected mass depletion, got %s", run.Reason)
	}
	if run.Final().Mass() > 23.9 || run.Final().Mass() < 23.89 {
		t.Fatalf("final mass %f", run.Final().Mass())
	}
}

func TestPerThrusterOverrides(t *testing.T) {
	scn := newTestScenario(t, 2, ThrusterConfig{Alpha: 0.02, BurnDuration: 2}, Altitude, always, 0.1, 1)
	if err := scn.SetOverride("thr-1", never); err != nil {
		t.Fatal(err)
	}
	if err := scn.SetOverride("thr-1", []float64{1, 2}); err == nil {
		t.Fatal("wrong arity accepted")
	}
	if err := scn.SetOverride("thr-9", never); err == nil {
		t.Fatal("unknown thruster accepted")
	}
	run, err := scn.Run(NewState(1e6, 0, 24), NewState(0, 0, 0), TimeOptions{0, 10, 0.1})
	if err != nil {
		t.Fatal(err)
	}
	if !run.Thrusters["thr-0"].Ignition.Observed || run.Thrusters["thr-1"].Ignition.Observed {
		t.Fatalf("overrides not honored: %+v", run.Thrusters)
	}
	// Only commanded thrusters take part in the aggregate exhaustion.
	if !run.Exhaustion.Observed || run.Exhaustion != run.Thrusters["thr-0"].Exhaustion {
		t.Fatalf("aggregate exhaustion %+v", run.Exhaustion)
	}
	assertMarkerInvariant(t, run)
}

func TestCascadeExhaustion(t *testing.T) {
	scn := newTestScenario(t, 2, ThrusterConfig{Alpha: 0.01, BurnDuration: 3}, Altitude, always, 0.1, 1)
	if err := scn.SetOverride("thr-1", []float64{900}); err != nil {
		t.Fatal(err)
	}
	run, err := scn.Run(NewState(1000, 0, 24), NewState(0, 0, 0), TimeOptions{0, 100, 0.1})
	if err != nil {
		t.Fatal(err)
	}
	first, second := run.Thrusters["thr-0"], run.Thrusters["thr-1"]
	if !first.Exhaustion.Observed || !second.Ignition.Observed || second.Ignition.Index <= first.Exhaustion.Index {
		t.Fatalf("thrusters did not fire one after the other: %+v %+v", first, second)
	}
	if run.Exhaustion != second.Exhaustion {
		t.Fatalf("exhaustion %+v should be the one of the last thruster %+v", run.Exhaustion, second.Exhaustion)
	}
	for i := run.Exhaustion.Index; i < len(run.Thrust); i++ {
		if run.Thrust[i] != 0 {
			t.Fatalf("step %d: thrust %f after exhaustion at %d", i, run.Thrust[i], run.Exhaustion.Index)
		}
	}
	if run.Thrust[second.Ignition.Index] == 0 {
		t.Fatal("second thruster did not thrust")
	}
	assertMarkerInvariant(t, run)
}

func TestExhaustionUnobservedWhileBurning(t *testing.T) {
	scn := newTestScenario(t, 1, ThrusterConfig{Alpha: 0.01, BurnDuration: 50}, Altitude, always, 0.1, 1)
	run, err := scn.Run(NewState(100, 0, 24), NewState(0, 0, 0), TimeOptions{0, 100, 0.1})
	if err != nil {
		t.Fatal(err)
	}
	if run.Reason != Landed || run.Exhaustion.Observed || run.Exhaustion.Index != len(run.States)-1 {
		t.Fatalf("landed while burning: %s, exhaustion %+v", run.Reason, run.Exhaustion)
	}
	assertMarkerInvariant(t, run)
}

func TestRunErrors(t *testing.T) {
	scn := newTestScenario(t, 1, ThrusterConfig{Alpha: 0.05, BurnDuration: 5}, Altitude, always, 0.1, 1)
	var cerr *ConfigurationError
	if _, err := scn.Run(NewState(100, 0, 24), NewState(0, 0, 0), TimeOptions{0, 100, 0.05}); !errors.As(err, &cerr) {
		t.Fatalf("step mismatch: %v", err)
	}
	if _, err := scn.Run(NewState(100, 0, 24), NewState(0, 0, 0), TimeOptions{10, 5, 0.1}); !errors.As(err, &cerr) {
		t.Fatalf("reversed time span: %v", err)
	}
	ctrl, _ := NewController(Linear)
	scn.SetController(ctrl)
	if _, err := scn.Run(NewState(100, 0, 24), NewState(0, 0, 0), TimeOptions{0, 100, 0.1}); err == nil {
		t.Fatal("run without controller parameters")
	}
	if err := scn.SetControllerParameters([]float64{1}); err == nil {
		t.Fatal("wrong arity accepted")
	}
}

func TestScenarioThrusters(t *testing.T) {
	scn := newTestScenario(t, 3, ThrusterConfig{Alpha: 0.05, BurnDuration: 5}, Altitude, always, 0.1, 1)
	ids := scn.IDs()
	if len(ids) != 3 || ids[0] != "thr-0" || ids[2] != "thr-2" {
		t.Fatalf("ids %v", ids)
	}
	if err := scn.AddThruster("thr-1", ThrusterConfig{Alpha: 0.05, BurnDuration: 5}); err == nil {
		t.Fatal("duplicate id accepted")
	}
	if err := scn.ModifyThruster("thr-1", FieldAlpha, 0.07); err != nil {
		t.Fatal(err)
	}
	if err := scn.ModifyThruster("thr-1", FieldBurnDuration, 7); err != nil {
		t.Fatal(err)
	}
	thr, _ := scn.Thruster("thr-1")
	if thr.Alpha() != 0.07 || thr.BurnDuration() != 7 {
		t.Fatalf("modification not applied: %s", thr)
	}
	var cerr *ConfigurationError
	if err := scn.ModifyThruster("thr-1", FieldBurnDuration, -7); !errors.As(err, &cerr) {
		t.Fatalf("expected a configuration error, got %v", err)
	}
	if err := scn.ModifyThruster("nope", FieldAlpha, 1); err == nil {
		t.Fatal("unknown thruster modified")
	}

	clone := scn.Clone(9)
	if err := clone.ModifyThruster("thr-1", FieldAlpha, 0.01); err != nil {
		t.Fatal(err)
	}
	if thr.Alpha() != 0.07 {
		t.Fatal("clone shares its thrusters")
	}
	if _, err := clone.Run(NewState(100, 0, 24), NewState(0, 0, 0), TimeOptions{0, 100, 0.1}); err != nil {
		t.Fatal(err)
	}
	if thr.WallElapsed() != 0 {
		t.Fatal("running the clone propagated the original")
	}
}

func TestMonteCarlo(t *testing.T) {
	conf := ThrusterConfig{Alpha: 0.0502, BurnDuration: 13.53715}
	scn := newTestScenario(t, 1, conf, Linear, []float64{1, 6.91036}, 0.1, 5)
	x0, xf, opts := NewState(2000, 0, 24), NewState(0, 0, 0), TimeOptions{0, 100, 0.1}

	res, err := scn.MonteCarlo(x0, xf, opts, MonteCarloConfig{Cases: 4})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Runs) != 4 || res.Landed != 4 {
		t.Fatalf("%s", res)
	}
	if res.PosStd != 0 || res.VelStd != 0 {
		t.Fatalf("undispersed cases differ: %s", res)
	}

	res, err = scn.MonteCarlo(x0, xf, opts, MonteCarloConfig{Cases: 10, Dispersion: Dispersion{Position: 50, Velocity: 5}})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Initial) != 10 || len(res.Positions) != 10 {
		t.Fatalf("%s", res)
	}
	if res.Initial[0].Position() == res.Initial[1].Position() || res.Initial[0].Mass() != 24 {
		t.Fatal("dispersion not applied per component")
	}
	if res.VelStd == 0 {
		t.Fatal("dispersed landing velocities should differ")
	}
	for _, thr := range scn.Thrusters() {
		if thr.WallElapsed() != 0 {
			t.Fatal("thrusters not reset after the evaluation")
		}
	}
	if _, err := scn.MonteCarlo(x0, xf, opts, MonteCarloConfig{Cases: 0}); err == nil {
		t.Fatal("no cases accepted")
	}
}
