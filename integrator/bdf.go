package integrator

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

/* Variable order, quasi constant step size backward differentiation (NDF variant),
 * following Shampine & Reichelt, "The MATLAB ODE suite" (1997). The solution
 * history is stored as backward differences, which makes changing the step size
 * a matter of a small matrix product. */

const (
	maxOrder      = 5
	newtonMaxIter = 4
	minFactor     = 0.2
	maxFactor     = 10
	eps           = 2.220446049250313e-16

	// DefaultAbsTol is the absolute tolerance used when none is provided.
	DefaultAbsTol = 1e-6
	// DefaultRelTol is the relative tolerance used when none is provided.
	DefaultRelTol = 1e-3
	// DefaultMaxSteps bounds the number of accepted steps of a single Solve.
	DefaultMaxSteps = 500000
)

var (
	// NDF correction coefficients.
	bdfKappa    = [maxOrder + 1]float64{0, -0.1850, -1.0 / 9, -0.0823, -0.0415, 0}
	bdfGamma    [maxOrder + 1]float64
	bdfAlpha    [maxOrder + 1]float64
	bdfErrConst [maxOrder + 1]float64
)

func init() {
	for k := 1; k <= maxOrder; k++ {
		bdfGamma[k] = bdfGamma[k-1] + 1/float64(k)
	}
	for k := 0; k <= maxOrder; k++ {
		bdfAlpha[k] = (1 - bdfKappa[k]) * bdfGamma[k]
		bdfErrConst[k] = bdfKappa[k]*bdfGamma[k] + 1/float64(k+1)
	}
}

// Options configures the error control of a solver.
// The zero value uses the default tolerances and an unbounded step.
type Options struct {
	AbsTol    float64   // absolute tolerance
	RelTol    float64   // relative tolerance
	MaxStep   float64   // upper bound on the step size, unbounded if zero
	FirstStep float64   // initial step size, automatic if zero
	MaxSteps  int       // accepted step budget per Solve, DefaultMaxSteps if zero
	Stops     []float64 // times the solver must land on exactly and restart from
}

func (o Options) withDefaults() (Options, error) {
	for _, v := range []float64{o.AbsTol, o.RelTol, o.MaxStep, o.FirstStep} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return o, ErrTolerance
		}
	}
	if o.AbsTol == 0 {
		o.AbsTol = DefaultAbsTol
	}
	if o.RelTol == 0 {
		o.RelTol = DefaultRelTol
	}
	// Below this the error estimate is dominated by round off.
	o.RelTol = math.Max(o.RelTol, 100*eps)
	if o.MaxStep == 0 {
		o.MaxStep = math.Inf(1)
	}
	if o.MaxSteps <= 0 {
		o.MaxSteps = DefaultMaxSteps
	}
	return o, nil
}

// Solution stores the sampled trajectory and the solver statistics.
type Solution struct {
	T []float64   // sample times
	Y [][]float64 // state at each sample time

	Steps     int // accepted steps
	Rejected  int // rejected step attempts
	Evals     int // right hand side evaluations
	Jacobians int // Jacobian evaluations
	LUs       int // LU factorizations
	Restarts  int // restarts on stop times
}

// BDF is a stiff solver. A BDF holds no workspace: every call to Solve
// allocates its own, so one BDF may be shared by concurrent Solve calls.
type BDF struct {
	sys  System
	opts Options
}

// NewBDF returns a new BDF solver of the provided system.
func NewBDF(sys System, opts Options) *BDF {
	if sys == nil {
		panic("config System may not be nil")
	}
	return &BDF{sys: sys, opts: opts}
}

// Solve integrates the system from (t0, y0) to t1 and returns the state at each
// of the provided sample times, which must be sorted and within [t0, t1].
// No partial solution is returned on failure.
func (b *BDF) Solve(t0 float64, y0 []float64, t1 float64, samples []float64) (*Solution, error) {
	opts, err := b.opts.withDefaults()
	if err != nil {
		return nil, err
	}
	n := b.sys.Dim()
	if len(y0) != n || n == 0 {
		return nil, ErrDimension
	}
	if math.IsNaN(t0) || math.IsNaN(t1) || math.IsInf(t0, 0) || math.IsInf(t1, 0) || t1 <= t0 {
		return nil, ErrInterval
	}
	if !sort.Float64sAreSorted(samples) || (len(samples) > 0 && (samples[0] < t0 || samples[len(samples)-1] > t1)) {
		return nil, ErrSamples
	}

	sol := &Solution{T: make([]float64, 0, len(samples)), Y: make([][]float64, 0, len(samples))}
	next := 0
	for next < len(samples) && samples[next] <= t0 {
		sol.T = append(sol.T, samples[next])
		sol.Y = append(sol.Y, append([]float64(nil), y0...))
		next++
	}

	// Split the interval on the stop times.
	bounds := []float64{t0}
	stops := append([]float64(nil), opts.Stops...)
	sort.Float64s(stops)
	for _, s := range stops {
		if s > bounds[len(bounds)-1] && s < t1 {
			bounds = append(bounds, s)
		}
	}
	bounds = append(bounds, t1)

	y := append([]float64(nil), y0...)
	for i := 0; i+1 < len(bounds); i++ {
		if i > 0 {
			sol.Restarts++
		}
		run, err := newBDFRun(b.sys, opts, bounds[i], y, bounds[i+1], sol)
		if err != nil {
			return nil, err
		}
		if next, err = run.integrate(samples, next); err != nil {
			return nil, err
		}
		y = run.y
	}
	return sol, nil
}

// bdfRun is the workspace of a single integration segment.
type bdfRun struct {
	sys       System
	n         int
	atol      float64
	rtol      float64
	maxStep   float64
	maxSteps  int
	newtonTol float64
	sol       *Solution

	t, t1   float64
	y       []float64
	hAbs    float64
	order   int
	nEqual  int
	d       *mat.Dense // scaled backward differences, (maxOrder+3) x n
	jac     *mat.Dense
	iter    *mat.Dense // I - c*J
	lu      mat.LU
	luValid bool
}

func newBDFRun(sys System, opts Options, t0 float64, y0 []float64, t1 float64, sol *Solution) (*bdfRun, error) {
	n := len(y0)
	r := &bdfRun{
		sys:       sys,
		n:         n,
		atol:      opts.AbsTol,
		rtol:      opts.RelTol,
		maxStep:   opts.MaxStep,
		maxSteps:  opts.MaxSteps,
		newtonTol: math.Max(10*eps/opts.RelTol, math.Min(0.03, math.Sqrt(opts.RelTol))),
		sol:       sol,
		t:         t0,
		t1:        t1,
		y:         append([]float64(nil), y0...),
		order:     1,
		d:         mat.NewDense(maxOrder+3, n, nil),
		jac:       mat.NewDense(n, n, nil),
		iter:      mat.NewDense(n, n, nil),
	}
	f0 := r.eval(t0, r.y)
	if !allFinite(f0) {
		return nil, &StepError{T: t0, Err: ErrNonFiniteRHS}
	}
	if opts.FirstStep > 0 {
		r.hAbs = math.Min(opts.FirstStep, t1-t0)
	} else {
		r.hAbs = r.initialStep(f0)
	}
	r.d.SetRow(0, r.y)
	row1 := r.d.RawRowView(1)
	floats.ScaleTo(row1, r.hAbs, f0)
	r.jacobian(t0, r.y, f0)
	return r, nil
}

func (r *bdfRun) eval(t float64, y []float64) []float64 {
	r.sol.Evals++
	return r.sys.Func(t, y)
}

// initialStep estimates a first order step from the local derivatives,
// per Hairer, Norsett & Wanner, "Solving ODEs I", II.4.
func (r *bdfRun) initialStep(f0 []float64) float64 {
	interval := r.t1 - r.t
	scale := make([]float64, r.n)
	for i, v := range r.y {
		scale[i] = r.atol + math.Abs(v)*r.rtol
	}
	d0 := scaledRMS(r.y, scale)
	d1 := scaledRMS(f0, scale)
	h0 := 1e-6
	if d0 >= 1e-5 && d1 >= 1e-5 {
		h0 = 0.01 * d0 / d1
	}
	h0 = math.Min(h0, interval)
	y1 := make([]float64, r.n)
	floats.AddScaledTo(y1, r.y, h0, f0)
	f1 := r.eval(r.t+h0, y1)
	diff := make([]float64, r.n)
	floats.SubTo(diff, f1, f0)
	d2 := scaledRMS(diff, scale) / h0
	var h1 float64
	if d1 <= 1e-15 && d2 <= 1e-15 {
		h1 = math.Max(1e-6, h0*1e-3)
	} else {
		h1 = math.Sqrt(0.01 / math.Max(d1, d2))
	}
	return math.Min(math.Min(100*h0, h1), math.Min(interval, r.maxStep))
}

// jacobian updates the Jacobian by forward differences around (t, y).
func (r *bdfRun) jacobian(t float64, y, f []float64) {
	r.sol.Jacobians++
	probe := append([]float64(nil), y...)
	for j := 0; j < r.n; j++ {
		probe[j] = y[j] + math.Sqrt(eps)*math.Max(math.Abs(y[j]), 1)
		δ := probe[j] - y[j]
		fj := r.eval(t, probe)
		for i := 0; i < r.n; i++ {
			r.jac.Set(i, j, (fj[i]-f[i])/δ)
		}
		probe[j] = y[j]
	}
}

// factorize computes the LU decomposition of I - c*J.
func (r *bdfRun) factorize(c float64) {
	r.sol.LUs++
	r.iter.Scale(-c, r.jac)
	for i := 0; i < r.n; i++ {
		r.iter.Set(i, i, r.iter.At(i, i)+1)
	}
	r.lu.Factorize(r.iter)
	r.luValid = true
}

// changeD rescales the differences for a step size multiplied by factor.
func (r *bdfRun) changeD(factor float64) {
	k := r.order + 1
	var ru, next mat.Dense
	ru.Mul(computeR(r.order, factor), computeR(r.order, 1))
	view := r.d.Slice(0, k, 0, r.n).(*mat.Dense)
	next.Mul(ru.T(), view)
	view.Copy(&next)
}

func computeR(order int, factor float64) *mat.Dense {
	m := mat.NewDense(order+1, order+1, nil)
	for j := 0; j <= order; j++ {
		m.Set(0, j, 1)
	}
	for i := 1; i <= order; i++ {
		for j := 1; j <= order; j++ {
			m.Set(i, j, (float64(i-1)-factor*float64(j))/float64(i))
		}
	}
	// Cumulative product down each column.
	for i := 1; i <= order; i++ {
		for j := 0; j <= order; j++ {
			m.Set(i, j, m.At(i, j)*m.At(i-1, j))
		}
	}
	return m
}

// newton solves the implicit corrector with a simplified Newton iteration.
// Returns whether it converged, the number of iterations, the corrected state
// and the correction d applied to the prediction.
func (r *bdfRun) newton(t float64, yPredict []float64, c float64, psi, scale []float64) (bool, int, []float64, []float64) {
	y := append([]float64(nil), yPredict...)
	d := make([]float64, r.n)
	rhs := mat.NewVecDense(r.n, nil)
	var dy mat.VecDense
	var dyNormOld, rate float64
	for k := 0; k < newtonMaxIter; k++ {
		f := r.eval(t, y)
		if !allFinite(f) {
			return false, k + 1, y, d
		}
		for i := range f {
			rhs.SetVec(i, c*f[i]-psi[i]-d[i])
		}
		if err := r.lu.SolveVecTo(&dy, false, rhs); err != nil {
			var cond mat.Condition
			if !errors.As(err, &cond) {
				return false, k + 1, y, d
			}
		}
		δ := dy.RawVector().Data
		if !allFinite(δ) {
			return false, k + 1, y, d
		}
		dyNorm := scaledRMS(δ, scale)
		if k > 0 {
			rate = dyNorm / dyNormOld
			if rate >= 1 || math.Pow(rate, float64(newtonMaxIter-k))/(1-rate)*dyNorm > r.newtonTol {
				return false, k + 1, y, d
			}
		}
		floats.Add(y, δ)
		floats.Add(d, δ)
		if dyNorm == 0 || (k > 0 && rate/(1-rate)*dyNorm < r.newtonTol) {
			return true, k + 1, y, d
		}
		dyNormOld = dyNorm
	}
	return false, newtonMaxIter, y, d
}

// integrate steps until t1, recording the samples from index next onward.
// Returns the index of the first sample which is not yet recorded.
func (r *bdfRun) integrate(samples []float64, next int) (int, error) {
	for r.t < r.t1 {
		if r.sol.Steps >= r.maxSteps {
			return next, &StepError{T: r.t, H: r.hAbs, Err: ErrMaxSteps}
		}
		if err := r.step(); err != nil {
			return next, err
		}
		for next < len(samples) && samples[next] <= r.t {
			y := make([]float64, r.n)
			if samples[next] == r.t {
				copy(y, r.y)
			} else {
				r.interpolate(samples[next], y)
			}
			r.sol.T = append(r.sol.T, samples[next])
			r.sol.Y = append(r.sol.Y, y)
			next++
		}
	}
	return next, nil
}

// interpolate evaluates the interpolating polynomial of the last step at t.
func (r *bdfRun) interpolate(t float64, dst []float64) {
	copy(dst, r.d.RawRowView(0))
	p := 1.0
	for j := 0; j < r.order; j++ {
		p *= (t - (r.t - r.hAbs*float64(j))) / (r.hAbs * float64(j+1))
		floats.AddScaled(dst, p, r.d.RawRowView(j+1))
	}
}

// step performs one accepted step, including the step size and order update.
func (r *bdfRun) step() error {
	t := r.t
	minStep := 10 * math.Abs(math.Nextafter(t, math.Inf(1))-t)
	hAbs := r.hAbs
	if hAbs > r.maxStep {
		r.changeD(r.maxStep / hAbs)
		hAbs = r.maxStep
		r.nEqual = 0
	} else if hAbs < minStep {
		r.changeD(minStep / hAbs)
		hAbs = minStep
		r.nEqual = 0
	}

	order := r.order
	yPredict := make([]float64, r.n)
	psi := make([]float64, r.n)
	scale := make([]float64, r.n)
	currentJac := false
	var (
		tNew    float64
		yNew, d []float64
		nIter   int
		errNorm float64
	)
	for {
		if hAbs < minStep {
			return &StepError{T: t, H: hAbs, Err: ErrStepTooSmall}
		}
		tNew = t + hAbs
		if tNew > r.t1 {
			tNew = r.t1
			r.changeD((tNew - t) / hAbs)
			r.nEqual = 0
			r.luValid = false
		}
		h := tNew - t
		hAbs = h

		for i := range yPredict {
			yPredict[i] = 0
			psi[i] = 0
		}
		for k := 0; k <= order; k++ {
			row := r.d.RawRowView(k)
			floats.Add(yPredict, row)
			if k > 0 {
				floats.AddScaled(psi, bdfGamma[k]/bdfAlpha[order], row)
			}
		}
		for i, v := range yPredict {
			scale[i] = r.atol + r.rtol*math.Abs(v)
		}

		c := h / bdfAlpha[order]
		converged := false
		for !converged {
			if !r.luValid {
				r.factorize(c)
			}
			converged, nIter, yNew, d = r.newton(tNew, yPredict, c, psi, scale)
			if !converged {
				if currentJac {
					break
				}
				r.jacobian(tNew, yPredict, r.eval(tNew, yPredict))
				r.luValid = false
				currentJac = true
			}
		}
		if !converged {
			hAbs *= 0.5
			r.changeD(0.5)
			r.nEqual = 0
			r.luValid = false
			r.sol.Rejected++
			continue
		}

		for i, v := range yNew {
			scale[i] = r.atol + r.rtol*math.Abs(v)
		}
		errNorm = bdfErrConst[order] * scaledRMS(d, scale)
		if errNorm > 1 {
			safety := 0.9 * (2*newtonMaxIter + 1) / (2*newtonMaxIter + float64(nIter))
			factor := math.Max(minFactor, safety*math.Pow(errNorm, -1/float64(order+1)))
			hAbs *= factor
			r.changeD(factor)
			r.nEqual = 0
			// The Newton iteration converged, so the LU is kept.
			r.sol.Rejected++
			continue
		}
		break
	}

	r.sol.Steps++
	r.nEqual++
	r.t = tNew
	r.y = yNew
	r.hAbs = hAbs

	// D^{j+1} y_n = D^j y_n - D^j y_{n-1}
	rowP2 := r.d.RawRowView(order + 2)
	rowP1 := r.d.RawRowView(order + 1)
	floats.SubTo(rowP2, d, rowP1)
	copy(rowP1, d)
	for i := order; i >= 0; i-- {
		floats.Add(r.d.RawRowView(i), r.d.RawRowView(i+1))
	}

	if r.nEqual < order+1 {
		return nil
	}

	// Pick the order (order-1, order, order+1) allowing the largest step.
	errM, errP := math.Inf(1), math.Inf(1)
	if order > 1 {
		errM = bdfErrConst[order-1] * scaledRMS(r.d.RawRowView(order), scale)
	}
	if order < maxOrder {
		errP = bdfErrConst[order+1] * scaledRMS(r.d.RawRowView(order+2), scale)
	}
	best, bestFactor := 0, -1.0
	for i, e := range [3]float64{errM, errNorm, errP} {
		if f := math.Pow(e, -1/float64(order+i)); f > bestFactor {
			best, bestFactor = i, f
		}
	}
	safety := 0.9 * (2*newtonMaxIter + 1) / (2*newtonMaxIter + float64(nIter))
	factor := math.Min(maxFactor, safety*bestFactor)
	r.order = order + best - 1
	r.hAbs *= factor
	r.changeD(factor)
	r.nEqual = 0
	r.luValid = false
	return nil
}

// scaledRMS returns the root mean square of x/scale.
func scaledRMS(x, scale []float64) float64 {
	tmp := make([]float64, len(x))
	floats.DivTo(tmp, x, scale)
	return floats.Norm(tmp, 2) / math.Sqrt(float64(len(x)))
}

func allFinite(x []float64) bool {
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
