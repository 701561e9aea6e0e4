package hh

// SteadyState returns the equilibrium of each gate at the holding voltage v,
// i.e. X∞ = αX/(αX+βX) where dX/dt = 0.
func SteadyState(k Kinetics, v float64) (m, h, n float64) {
	r := k.Rates(v)
	m = r.Am / (r.Am + r.Bm)
	h = r.Ah / (r.Ah + r.Bh)
	n = r.An / (r.An + r.Bn)
	return
}

// RestingState returns the state of a cell held at v for an infinitely long time.
func RestingState(k Kinetics, v float64) State {
	m, h, n := SteadyState(k, v)
	return State{v, m, h, n}
}

// TimeConstants returns the relaxation time constant (ms) of each gate at v.
func TimeConstants(k Kinetics, v float64) (τm, τh, τn float64) {
	r := k.Rates(v)
	return 1 / (r.Am + r.Bm), 1 / (r.Ah + r.Bh), 1 / (r.An + r.Bn)
}
