package integrator

import (
	"errors"
	"math"
	"sync"
	"testing"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"
)

// stiffCosine is y' = -λ(y - cos t) - sin t, whose solution from y(0) = 1 is cos t.
type stiffCosine struct {
	λ float64
}

func (s stiffCosine) Dim() int { return 1 }

func (s stiffCosine) Func(t float64, y []float64) []float64 {
	return []float64{-s.λ*(y[0]-math.Cos(t)) - math.Sin(t)}
}

// decay2D has two uncoupled modes with very different time constants.
type decay2D struct{}

func (decay2D) Dim() int { return 2 }

func (decay2D) Func(t float64, y []float64) []float64 {
	return []float64{-y[0], -100 * y[1]}
}

// window integrates a unit forcing applied on [on, off).
type window struct {
	on, off float64
}

func (window) Dim() int { return 1 }

func (w window) Func(t float64, y []float64) []float64 {
	if t >= w.on && t < w.off {
		return []float64{1}
	}
	return []float64{0}
}

type nanSystem struct{}

func (nanSystem) Dim() int { return 1 }

func (nanSystem) Func(t float64, y []float64) []float64 {
	return []float64{math.NaN()}
}

func TestBDFStiffCosine(t *testing.T) {
	samples := floats.Span(make([]float64, 21), 0, 2)
	samples[20] = 2
	sol, err := NewBDF(stiffCosine{λ: 1000}, Options{AbsTol: 1e-9, RelTol: 1e-6}).Solve(0, []float64{1}, 2, samples)
	if err != nil {
		t.Fatalf("err: %s", err)
	}
	if len(sol.T) != len(samples) {
		t.Fatalf("got %d samples instead of %d", len(sol.T), len(samples))
	}
	for i, ti := range sol.T {
		if ti != samples[i] {
			t.Fatalf("sample #%d at %f instead of %f", i, ti, samples[i])
		}
		if !scalar.EqualWithinAbs(sol.Y[i][0], math.Cos(ti), 1e-4) {
			t.Fatalf("y(%f) = %f instead of %f", ti, sol.Y[i][0], math.Cos(ti))
		}
	}
	// An explicit method would need ~1000 steps per unit time here.
	if sol.Steps > 500 {
		t.Fatalf("too many steps for a stiff solver: %d", sol.Steps)
	}
	if sol.Jacobians == 0 || sol.LUs == 0 || sol.Evals == 0 {
		t.Fatalf("statistics not updated: %+v", sol)
	}
}

func TestBDFDecay2D(t *testing.T) {
	samples := []float64{0.01, 0.1, 0.5, 1, 3}
	sol, err := NewBDF(decay2D{}, Options{AbsTol: 1e-10, RelTol: 1e-8}).Solve(0, []float64{1, 1}, 3, samples)
	if err != nil {
		t.Fatalf("err: %s", err)
	}
	for i, ti := range sol.T {
		exp := []float64{math.Exp(-ti), math.Exp(-100 * ti)}
		if !floats.EqualApprox(sol.Y[i], exp, 1e-5) {
			t.Fatalf("y(%f) = %v instead of %v", ti, sol.Y[i], exp)
		}
	}
}

func TestBDFSamplesAtBounds(t *testing.T) {
	y0 := []float64{1, 2}
	sol, err := NewBDF(decay2D{}, Options{}).Solve(0, y0, 1, []float64{0, 0, 1})
	if err != nil {
		t.Fatalf("err: %s", err)
	}
	if len(sol.T) != 3 {
		t.Fatalf("got %d samples instead of 3", len(sol.T))
	}
	if !floats.Equal(sol.Y[0], y0) || !floats.Equal(sol.Y[1], y0) {
		t.Fatal("samples at t0 must be the initial state")
	}
	sol.Y[0][0] = 42
	if y0[0] != 1 || sol.Y[1][0] != 1 {
		t.Fatal("the initial state is shared with the samples")
	}
	if !scalar.EqualWithinAbs(sol.Y[2][0], math.Exp(-1), 1e-2) {
		t.Fatalf("y(1) = %f", sol.Y[2][0])
	}
	// No samples is fine, nothing is recorded.
	sol, err = NewBDF(decay2D{}, Options{}).Solve(0, y0, 1, nil)
	if err != nil || len(sol.T) != 0 {
		t.Fatalf("unexpected solution without samples: %v (%v)", sol, err)
	}
}

func TestBDFStops(t *testing.T) {
	w := window{on: 0.5, off: 0.7}
	samples := []float64{0.25, 0.6, 1}
	sol, err := NewBDF(w, Options{AbsTol: 1e-10, RelTol: 1e-8, Stops: []float64{0.7, 0.5, 5, -1}}).Solve(0, []float64{0}, 1, samples)
	if err != nil {
		t.Fatalf("err: %s", err)
	}
	if sol.Restarts != 2 {
		t.Fatalf("expected 2 restarts, got %d", sol.Restarts)
	}
	for i, exp := range []float64{0, 0.1, 0.2} {
		// The forcing switches within a step of the edges, which error control bounds.
		if !scalar.EqualWithinAbs(sol.Y[i][0], exp, 1e-7) {
			t.Fatalf("y(%f) = %.10f instead of %f", sol.T[i], sol.Y[i][0], exp)
		}
	}
}

func TestBDFMaxSteps(t *testing.T) {
	_, err := NewBDF(stiffCosine{λ: 1000}, Options{AbsTol: 1e-12, RelTol: 1e-10, MaxSteps: 5}).Solve(0, []float64{1}, 10, []float64{10})
	if !errors.Is(err, ErrMaxSteps) {
		t.Fatalf("expected ErrMaxSteps, got %v", err)
	}
	var stepErr *StepError
	if !errors.As(err, &stepErr) {
		t.Fatalf("expected a StepError, got %T", err)
	}
	if stepErr.T <= 0 || stepErr.T >= 10 || stepErr.H <= 0 {
		t.Fatalf("unexpected failure location: %s", stepErr)
	}
}

func TestBDFInvalid(t *testing.T) {
	good := []float64{1, 1}
	for _, tc := range []struct {
		name    string
		opts    Options
		t0, t1  float64
		y0      []float64
		samples []float64
		exp     error
	}{
		{"backward", Options{}, 1, 0, good, nil, ErrInterval},
		{"empty", Options{}, 1, 1, good, nil, ErrInterval},
		{"NaN", Options{}, 0, math.NaN(), good, nil, ErrInterval},
		{"unsorted", Options{}, 0, 1, good, []float64{0.5, 0.1}, ErrSamples},
		{"after end", Options{}, 0, 1, good, []float64{0.5, 2}, ErrSamples},
		{"before start", Options{}, 0, 1, good, []float64{-1, 0.5}, ErrSamples},
		{"dimension", Options{}, 0, 1, []float64{1}, nil, ErrDimension},
		{"atol", Options{AbsTol: -1}, 0, 1, good, nil, ErrTolerance},
		{"rtol", Options{RelTol: math.Inf(1)}, 0, 1, good, nil, ErrTolerance},
	} {
		_, err := NewBDF(decay2D{}, tc.opts).Solve(tc.t0, tc.y0, tc.t1, tc.samples)
		if !errors.Is(err, tc.exp) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.exp, err)
		}
	}
	if _, err := NewBDF(nanSystem{}, Options{}).Solve(0, []float64{0}, 1, nil); !errors.Is(err, ErrNonFiniteRHS) {
		t.Fatalf("expected ErrNonFiniteRHS, got %v", err)
	}
}

func TestBDFConcurrent(t *testing.T) {
	solver := NewBDF(stiffCosine{λ: 100}, Options{AbsTol: 1e-9, RelTol: 1e-6})
	samples := floats.Span(make([]float64, 11), 0, 1)
	samples[10] = 1
	ref, err := solver.Solve(0, []float64{1}, 1, samples)
	if err != nil {
		t.Fatalf("err: %s", err)
	}
	var wg sync.WaitGroup
	sols := make([]*Solution, 8)
	for i := range sols {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sols[i], _ = solver.Solve(0, []float64{1}, 1, samples)
		}(i)
	}
	wg.Wait()
	for i, sol := range sols {
		if sol == nil {
			t.Fatalf("run #%d failed", i)
		}
		for k := range sol.Y {
			if sol.Y[k][0] != ref.Y[k][0] {
				t.Fatalf("run #%d differs at t=%f", i, sol.T[k])
			}
		}
	}
}

func TestComputeRIdentity(t *testing.T) {
	// R(1)·R(1) is the identity, so changing D by a factor 1 is a no-op.
	for order := 1; order <= maxOrder; order++ {
		u := computeR(order, 1)
		var uu mat.Dense
		uu.Mul(u, u)
		if !mat.EqualApprox(&uu, eye(order+1), 1e-12) {
			t.Fatalf("order %d: R(1)·R(1) = %v", order, mat.Formatted(&uu))
		}
	}
}

func eye(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}
