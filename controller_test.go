package spl

import "testing"

func TestSwitchingSurface(t *testing.T) {
	ctrl, err := NewController(Linear)
	if err != nil {
		t.Fatal(err)
	}
	if ctrl.Type() != Linear || ctrl.Arity() != 2 {
		t.Fatalf("unexpected controller %s/%d", ctrl.Type(), ctrl.Arity())
	}
	params := []float64{1, 6.91036}
	for _, tc := range []struct {
		s   State
		exp bool
	}{
		{NewState(2000, 0, 24), false},
		{NewState(480, -70, 24), true},
		{NewState(500, -70, 24), false},
		{NewState(0, 0, 24), true},
		{NewState(10, 5, 24), false},
	} {
		if got := ctrl.Command(params, tc.s); got != tc.exp {
			t.Errorf("%s: expected %t", tc.s, tc.exp)
		}
	}
}

func TestAltitudeThreshold(t *testing.T) {
	ctrl, err := NewController(Altitude)
	if err != nil {
		t.Fatal(err)
	}
	if ctrl.Arity() != 1 {
		t.Fatal("altitude law has a single parameter")
	}
	if !ctrl.Command([]float64{300}, NewState(300, -10, 24)) {
		t.Fatal("should fire on the threshold")
	}
	if ctrl.Command([]float64{300}, NewState(300.1, -10, 24)) {
		t.Fatal("should not fire above the threshold")
	}
}

func TestControlLawFromString(t *testing.T) {
	for name, exp := range map[string]ControlLaw{"linear": Linear, "Affine_Function": Linear, " altitude ": Altitude, "ga_wo_hamilton": Altitude} {
		law, err := ControlLawFromString(name)
		if err != nil || law != exp {
			t.Errorf("%s: got %v (%v)", name, law, err)
		}
	}
	if _, err := ControlLawFromString("bang-bang"); err == nil {
		t.Fatal("unknown law accepted")
	}
	if _, err := NewController(ControlLaw(9)); err == nil {
		t.Fatal("unknown law accepted")
	}
	assertPanic(t, func() {
		_ = ControlLaw(9).String()
	})
}

func TestIntegratorFromString(t *testing.T) {
	for name, exp := range map[string]string{"": "rk4", "rk4": "rk4", "euler": "euler"} {
		integrator, err := IntegratorFromString(name)
		if err != nil || integrator.String() != exp {
			t.Errorf("%s: got %v (%v)", name, integrator, err)
		}
	}
	if _, err := IntegratorFromString("dopri"); err == nil {
		t.Fatal("unknown integrator accepted")
	}
}
