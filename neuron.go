package hh

import "math"

// Neuron is a single compartment Hodgkin-Huxley membrane under a current stimulus.
// It implements integrator.System: its right hand side only reads its fields.
type Neuron struct {
	Params   Parameters
	Kinetics Kinetics
	Stim     Stimulus
}

// NewNeuron returns a new Neuron whose kinetics use the temperature factor of the parameters.
func NewNeuron(p Parameters, conv GateConvention, shift float64, stim Stimulus) Neuron {
	if stim == nil {
		stim = NoStimulus{}
	}
	return Neuron{Params: p, Kinetics: p.Kinetics(conv, shift), Stim: stim}
}

// NewStandardNeuron returns a Neuron with the standard parameters and the 1952 voltage convention.
func NewStandardNeuron(stim Stimulus) Neuron {
	return NewNeuron(StandardParameters(), StandardGates, RestShift, stim)
}

// Currents returns the sodium, potassium and leak currents (µA/cm²), positive outward.
func (n Neuron) Currents(y State) (iNa, iK, iL float64) {
	p := n.Params
	v := y.V()
	iNa = p.GNa * math.Pow(y.M(), 3) * y.H() * (v - p.ENa)
	iK = p.GK * math.Pow(y.N(), 4) * (v - p.EK)
	iL = p.GL * (v - p.EL)
	return
}

// Injected returns the stimulus current at time t.
func (n Neuron) Injected(t float64) float64 {
	if n.Stim == nil {
		return 0
	}
	return n.Stim.Current(t)
}

// Derivative returns dY/dt at (t, y).
func (n Neuron) Derivative(t float64, y State) (dy State) {
	r := n.Kinetics.Rates(y.V())
	iNa, iK, iL := n.Currents(y)
	dy[0] = (n.Injected(t) - iNa - iK - iL) / n.Params.Cm
	dy[1] = r.Am*(1-y.M()) - r.Bm*y.M()
	dy[2] = r.Ah*(1-y.H()) - r.Bh*y.H()
	dy[3] = r.An*(1-y.N()) - r.Bn*y.N()
	return
}

// Dim implements integrator.System.
func (n Neuron) Dim() int {
	return len(State{})
}

// Func implements integrator.System.
func (n Neuron) Func(t float64, s []float64) []float64 {
	dy := n.Derivative(t, StateFrom(s))
	return dy[:]
}
