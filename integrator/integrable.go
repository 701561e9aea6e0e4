// Package integrator provides the propagators used to integrate a neuron
// state: an implicit BDF solver for stiff systems, and a fixed step RK4.
package integrator

// Integrable defines something which can be integrated, i.e. has a state vector.
// WARNING: Implementation must manage its own state based on the time.
type Integrable interface {
	GetState() []float64                   // Get the latest state of this integrable.
	SetState(t float64, s []float64)       // Set the state s reached at time t.
	Stop(t float64) bool                   // Return whether to stop the integration from time t.
	Func(t float64, s []float64) []float64 // ODE function from time t and state s, must return a new state.
}

// System is a right hand side without any state of its own. Func must be
// free of side effects since the solvers evaluate it at trial points.
type System interface {
	Dim() int
	Func(t float64, s []float64) []float64
}
