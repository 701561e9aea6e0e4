package hh

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ChristopherRabotin/hh/integrator"
	kitlog "github.com/go-kit/log"
	"gonum.org/v1/gonum/floats"
)

// Method defines the integration method of a run.
type Method uint8

// Status is the state of a run: Running, then either Succeeded or Failed.
type Status uint8

const (
	// BDF is the implicit, variable order backward differentiation solver.
	BDF Method = iota
	// RK4 is the explicit fixed step Runge-Kutta, only kept as a reference.
	RK4
)

const (
	// Running is the status of a run which has not returned yet.
	Running Status = iota
	// Succeeded means the solver reached the end of the interval. The trajectory
	// must still be checked with Result.Valid before being used.
	Succeeded
	// Failed means the solver gave up, or the run was misconfigured.
	Failed
)

var (
	// ErrIntegration is returned when the solver cannot meet its tolerances.
	ErrIntegration = errors.New("integration failed")
	// ErrNonFinite is returned when a successful run produced NaN or Inf values.
	ErrNonFinite = errors.New("trajectory contains non-finite values")
	// ErrInvalidConfig is returned when the run configuration is unusable.
	ErrInvalidConfig = errors.New("invalid run configuration")
)

func (m Method) String() string {
	switch m {
	case BDF:
		return "BDF"
	case RK4:
		return "RK4"
	}
	panic("cannot stringify unknown method")
}

// MethodFromString returns the method from its name.
func MethodFromString(name string) (Method, error) {
	switch strings.ToUpper(name) {
	case "", "BDF":
		return BDF, nil
	case "RK4":
		return RK4, nil
	}
	return BDF, fmt.Errorf("unknown integration method `%s`", name)
}

func (s Status) String() string {
	switch s {
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	}
	panic("cannot stringify unknown status")
}

// RunConfig defines the time span, sampling and error control of a run.
type RunConfig struct {
	T0, T1      float64   // integration interval (ms)
	SampleTimes []float64 // when empty, Samples points evenly spaced on [T0, T1]
	Samples     int
	AbsTol      float64
	RelTol      float64
	Holding     float64 // holding voltage (mV) defining the initial steady state
	Method      Method
	MaxStep     float64 // upper bound on the BDF step (unbounded if zero), or the RK4 step
	MaxSteps    int     // BDF step budget, integrator.DefaultMaxSteps if zero
}

// DefaultRunConfig returns a 50 ms BDF run from rest, with 1e-6 tolerances.
func DefaultRunConfig() RunConfig {
	return RunConfig{T0: 0, T1: 50, Samples: 5000, AbsTol: 1e-6, RelTol: 1e-6, Holding: -65, Method: BDF}
}

// Validate returns an error if the run cannot be performed.
func (c RunConfig) Validate() error {
	for _, v := range []float64{c.T0, c.T1, c.AbsTol, c.RelTol, c.Holding, c.MaxStep} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non finite value", ErrInvalidConfig)
		}
	}
	if c.T1 <= c.T0 {
		return fmt.Errorf("%w: end time %f not after start time %f", ErrInvalidConfig, c.T1, c.T0)
	}
	if c.AbsTol < 0 || c.RelTol < 0 {
		return fmt.Errorf("%w: tolerances may not be negative", ErrInvalidConfig)
	}
	if c.MaxStep < 0 {
		return fmt.Errorf("%w: max step may not be negative", ErrInvalidConfig)
	}
	if len(c.SampleTimes) == 0 && c.Samples < 2 && c.Method == BDF {
		return fmt.Errorf("%w: need at least two samples", ErrInvalidConfig)
	}
	for i, t := range c.SampleTimes {
		if t < c.T0 || t > c.T1 || (i > 0 && t < c.SampleTimes[i-1]) {
			return fmt.Errorf("%w: sample times must be sorted and within [%f, %f]", ErrInvalidConfig, c.T0, c.T1)
		}
	}
	if c.Method != BDF && c.Method != RK4 {
		return fmt.Errorf("%w: unknown method %d", ErrInvalidConfig, c.Method)
	}
	if c.Method == RK4 {
		if c.MaxStep <= 0 {
			return fmt.Errorf("%w: RK4 requires a positive step", ErrInvalidConfig)
		}
		// RK4 samples every step and must land on T1.
		span := c.T1 - c.T0
		if steps := math.Round(span / c.MaxStep); steps < 1 || math.Abs(steps*c.MaxStep-span) > 1e-9*span {
			return fmt.Errorf("%w: RK4 step %f does not divide [%f, %f]", ErrInvalidConfig, c.MaxStep, c.T0, c.T1)
		}
		if len(c.SampleTimes) > 0 {
			return fmt.Errorf("%w: RK4 samples every step, sample times are not supported", ErrInvalidConfig)
		}
	}
	return nil
}

// Times returns the sample times of the run.
func (c RunConfig) Times() []float64 {
	if len(c.SampleTimes) > 0 {
		return c.SampleTimes
	}
	times := floats.Span(make([]float64, c.Samples), c.T0, c.T1)
	times[len(times)-1] = c.T1 // round off may not step past the end
	return times
}

// Result is the outcome of a run. It must be checked with Valid (or Err)
// before the trajectory is used.
type Result struct {
	Name       string
	Status     Status
	Message    string
	Method     Method
	Params     Parameters
	Initial    State
	Trajectory Trajectory
	Steps      int           // accepted steps
	Evals      int           // right hand side evaluations
	Duration   time.Duration // wall clock
	err        error
}

// Valid returns whether the run succeeded and its trajectory is finite.
func (r *Result) Valid() bool {
	return r.Status == Succeeded && r.Trajectory.IsFinite()
}

// Err returns why the result may not be used, or nil if it is valid.
func (r *Result) Err() error {
	switch r.Status {
	case Running:
		return errors.New("run has not completed")
	case Failed:
		return r.err
	}
	if !r.Trajectory.IsFinite() {
		return ErrNonFinite
	}
	return nil
}

// H0 returns the initial inactivation.
func (r *Result) H0() float64 {
	return r.Initial.H()
}

// Summary returns the scalar outputs of the run.
func (r *Result) Summary() Summary {
	return r.Trajectory.Summarize(r.Initial)
}

func (r *Result) fail(err error) {
	r.Status = Failed
	r.Message = err.Error()
	r.err = err
}

// Simulation defines a single run of a neuron from its resting state at the holding voltage.
type Simulation struct {
	Name   string
	Neuron Neuron
	Config RunConfig
	logger kitlog.Logger
}

// NewSimulation returns a new Simulation which logs to stdout.
func NewSimulation(name string, n Neuron, conf RunConfig) *Simulation {
	klog := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stdout))
	klog = kitlog.With(klog, "sim", name)
	return &Simulation{Name: name, Neuron: n, Config: conf, logger: klog}
}

// SetLogger sets the logger of this simulation.
func (s *Simulation) SetLogger(logger kitlog.Logger) {
	s.logger = kitlog.With(logger, "sim", s.Name)
}

// Run performs the integration. It blocks until the end of the run.
// Failures are reported in the Result, never retried.
func (s *Simulation) Run() *Result {
	res := &Result{Name: s.Name, Status: Running, Method: s.Config.Method, Params: s.Neuron.Params}
	if err := s.Neuron.Params.Validate(); err != nil {
		res.fail(err)
		s.logger.Log("level", "critical", "subsys", "hh", "status", res.Status, "err", err)
		return res
	}
	if err := s.Config.Validate(); err != nil {
		res.fail(err)
		s.logger.Log("level", "critical", "subsys", "hh", "status", res.Status, "err", err)
		return res
	}

	res.Initial = RestingState(s.Neuron.Kinetics, s.Config.Holding)
	s.logger.Log("level", "info", "subsys", "hh", "method", s.Config.Method, "holding(mV)", s.Config.Holding, "h0", res.Initial.H(), "kinetics", s.Neuron.Kinetics)
	start := time.Now()
	var err error
	switch s.Config.Method {
	case BDF:
		err = s.runBDF(res)
	case RK4:
		err = s.runRK4(res)
	}
	res.Duration = time.Since(start)
	if err != nil {
		res.fail(err)
		s.logger.Log("level", "critical", "subsys", "hh", "status", res.Status, "err", err)
		return res
	}

	res.Status = Succeeded
	if !res.Trajectory.IsFinite() {
		s.logger.Log("level", "critical", "subsys", "hh", "status", res.Status, "valid", false, "err", ErrNonFinite)
		return res
	}
	tPeak, vPeak := res.Trajectory.Peak()
	s.logger.Log("level", "notice", "subsys", "hh", "status", res.Status, "duration", res.Duration, "steps", res.Steps, "evals", res.Evals, "peak(mV)", vPeak, "peak(ms)", tPeak)
	return res
}

func (s *Simulation) runBDF(res *Result) error {
	conf := s.Config
	var stops []float64
	if s.Neuron.Stim != nil {
		stops = s.Neuron.Stim.Edges()
	}
	opts := integrator.Options{AbsTol: conf.AbsTol, RelTol: conf.RelTol, MaxStep: conf.MaxStep, MaxSteps: conf.MaxSteps, Stops: stops}
	sol, err := integrator.NewBDF(s.Neuron, opts).Solve(conf.T0, res.Initial[:], conf.T1, conf.Times())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIntegration, err)
	}
	res.Trajectory = Trajectory{T: sol.T, Y: make([]State, len(sol.Y))}
	for i, y := range sol.Y {
		res.Trajectory.Y[i] = StateFrom(y)
	}
	res.Steps = sol.Steps
	res.Evals = sol.Evals
	s.logger.Log("level", "debug", "subsys", "bdf", "steps", sol.Steps, "rejected", sol.Rejected, "jacobians", sol.Jacobians, "LUs", sol.LUs, "restarts", sol.Restarts)
	return nil
}

func (s *Simulation) runRK4(res *Result) error {
	prop := &rk4Propagation{neuron: s.Neuron, state: res.Initial, t1: s.Config.T1, step: s.Config.MaxStep}
	prop.traj.T = append(prop.traj.T, s.Config.T0)
	prop.traj.Y = append(prop.traj.Y, res.Initial)
	steps, _, err := integrator.NewRK4(s.Config.T0, s.Config.MaxStep, prop).Solve() // Blocking.
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIntegration, err)
	}
	// The step divides the interval, so the last step is at T1 up to round off.
	prop.traj.T[len(prop.traj.T)-1] = s.Config.T1
	res.Trajectory = prop.traj
	res.Steps = int(steps)
	res.Evals = 4 * int(steps)
	return nil
}

// rk4Propagation is the integrator.Integrable of a fixed step run. Every step is a sample.
type rk4Propagation struct {
	neuron Neuron
	state  State
	t1     float64
	step   float64
	traj   Trajectory
}

func (p *rk4Propagation) GetState() []float64 {
	s := p.state
	return s[:]
}

func (p *rk4Propagation) SetState(t float64, s []float64) {
	p.state = StateFrom(s)
	p.traj.T = append(p.traj.T, t)
	p.traj.Y = append(p.traj.Y, p.state)
}

func (p *rk4Propagation) Stop(t float64) bool {
	return t+p.step/2 > p.t1
}

func (p *rk4Propagation) Func(t float64, s []float64) []float64 {
	return p.neuron.Func(t, s)
}

// RunAll runs independent simulations concurrently and returns the results in
// the same order. Each simulation owns its solver workspace.
func RunAll(sims ...*Simulation) []*Result {
	var wg sync.WaitGroup
	results := make([]*Result, len(sims))
	for i, sim := range sims {
		wg.Add(1)
		go func(i int, sim *Simulation) {
			defer wg.Done()
			results[i] = sim.Run()
		}(i, sim)
	}
	wg.Wait()
	return results
}
