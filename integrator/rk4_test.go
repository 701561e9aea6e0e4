package integrator

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
)

// Decay1D is dy/dt = -λy, whose solution is y0·exp(-λt).
type Decay1D struct {
	λ     float64
	tEnd  float64
	step  float64
	state []float64 // Note that we don't have a state history here.
	calls int
}

func NewDecay1D(λ, y0, tEnd, step float64) *Decay1D {
	return &Decay1D{λ: λ, tEnd: tEnd, step: step, state: []float64{y0}}
}

func (d *Decay1D) GetState() []float64 {
	return d.state
}

func (d *Decay1D) SetState(t float64, s []float64) {
	d.state = s
	d.calls++
}

func (d *Decay1D) Stop(t float64) bool {
	return t+d.step/2 > d.tEnd
}

func (d *Decay1D) Func(t float64, s []float64) []float64 {
	return []float64{-d.λ * s[0]}
}

func TestRK4Decay(t *testing.T) {
	d := NewDecay1D(1, 1, 1, 0.01)
	iterNum, xi, err := NewRK4(0, 0.01, d).Solve()
	if err != nil {
		t.Fatalf("err: %+v\n", err)
	}
	if iterNum != 100 || d.calls != 100 {
		t.Fatalf("expected 100 iterations, got %d (%d calls to SetState)", iterNum, d.calls)
	}
	if !scalar.EqualWithinAbs(xi, 1, 1e-12) {
		t.Fatalf("last x_i = %f instead of 1", xi)
	}
	if exp := math.Exp(-1); !scalar.EqualWithinAbs(d.GetState()[0], exp, 1e-9) {
		t.Fatalf("y(1) = %.12f instead of %.12f", d.GetState()[0], exp)
	}
}

func TestRK4Order(t *testing.T) {
	// Halving the step must divide the error by ~16.
	errAt := func(step float64) float64 {
		d := NewDecay1D(2, 1, 2, step)
		NewRK4(0, step, d).Solve()
		return math.Abs(d.GetState()[0] - math.Exp(-4))
	}
	ratio := errAt(0.1) / errAt(0.05)
	if ratio < 14 || ratio > 18 {
		t.Fatalf("error ratio = %f, expected ~16 for a fourth order method", ratio)
	}
}

func TestRK4Unstable(t *testing.T) {
	// λh = 5 is outside the stability region: the solution grows instead of decaying.
	d := NewDecay1D(50, 1, 1, 0.1)
	NewRK4(0, 0.1, d).Solve()
	if math.Abs(d.GetState()[0]) < 1 {
		t.Fatalf("expected an unstable propagation, got y = %f", d.GetState()[0])
	}
}

func TestRK4Panics(t *testing.T) {
	for _, f := range []func(){
		func() { NewRK4(0, 0, NewDecay1D(1, 1, 1, 0.1)) },
		func() { NewRK4(0, -1, NewDecay1D(1, 1, 1, 0.1)) },
		func() { NewRK4(0, 0.1, nil) },
	} {
		func() {
			defer func() {
				if r := recover(); r == nil {
					t.Fatal("code did not panic")
				}
			}()
			f()
		}()
	}
}
