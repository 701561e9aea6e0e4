package hh

import (
	"fmt"
	"math"
	"strings"
)

// GateConvention selects which formulas drive the inactivation gate h.
type GateConvention uint8

const (
	// StandardGates is the Hodgkin-Huxley (1952) formulation.
	StandardGates GateConvention = iota
	// SwappedInactivation exchanges the αh and βh formulas. This is an alternate
	// model which closes h on depolarization when evaluated on raw biological voltages.
	SwappedInactivation
)

const (
	// RestShift is the offset from biological voltage to the 1952 convention where rest is 0 mV.
	RestShift = 65.0
	// singularityTol is the half width of the band around a removable singularity
	// in which the analytic limit is returned.
	singularityTol = 1e-6
)

func (c GateConvention) String() string {
	switch c {
	case StandardGates:
		return "standard"
	case SwappedInactivation:
		return "swapped"
	}
	panic("cannot stringify unknown gate convention")
}

// GateConventionFromString returns the gate convention from its name.
func GateConventionFromString(name string) (GateConvention, error) {
	switch strings.ToLower(name) {
	case "", "standard":
		return StandardGates, nil
	case "swapped", "swapped-inactivation":
		return SwappedInactivation, nil
	}
	return StandardGates, fmt.Errorf("unknown gate convention `%s`", name)
}

// Kinetics evaluates the voltage dependent rate constants (1/ms).
// All voltages given to its methods are biological (mV); Shift is added to them
// before evaluating the formulas, so the same Shift applies to all six rates.
type Kinetics struct {
	Phi        float64 // temperature factor
	Shift      float64 // RestShift for the 1952 convention, 0 for raw voltage
	Convention GateConvention
}

// NewKinetics returns the standard kinetics in the 1952 voltage convention.
func NewKinetics(phi float64) Kinetics {
	return Kinetics{Phi: phi, Shift: RestShift, Convention: StandardGates}
}

// Rates stores the six rate constants at a given voltage.
type Rates struct {
	Am, Bm float64
	Ah, Bh float64
	An, Bn float64
}

// Rates returns all the rate constants at the biological voltage v.
func (k Kinetics) Rates(v float64) Rates {
	return Rates{
		Am: k.AlphaM(v), Bm: k.BetaM(v),
		Ah: k.AlphaH(v), Bh: k.BetaH(v),
		An: k.AlphaN(v), Bn: k.BetaN(v),
	}
}

// AlphaM is the opening rate of the sodium activation gate.
func (k Kinetics) AlphaM(v float64) float64 {
	u := v + k.Shift
	if math.Abs(u-25) < singularityTol {
		// 0.1·x/(exp(x/10)-1) → 0.1·10 as x = 25-u → 0
		return k.Phi * 1.0
	}
	return k.Phi * 0.1 * (25 - u) / math.Expm1((25-u)/10)
}

// BetaM is the closing rate of the sodium activation gate.
func (k Kinetics) BetaM(v float64) float64 {
	return k.Phi * 4.0 * math.Exp(-(v+k.Shift)/18)
}

// AlphaH is the recovery rate of the sodium inactivation gate.
func (k Kinetics) AlphaH(v float64) float64 {
	if k.Convention == SwappedInactivation {
		return k.Phi * hClosing(v+k.Shift)
	}
	return k.Phi * hOpening(v+k.Shift)
}

// BetaH is the inactivation rate of the sodium inactivation gate.
func (k Kinetics) BetaH(v float64) float64 {
	if k.Convention == SwappedInactivation {
		return k.Phi * hOpening(v+k.Shift)
	}
	return k.Phi * hClosing(v+k.Shift)
}

// AlphaN is the opening rate of the potassium activation gate.
func (k Kinetics) AlphaN(v float64) float64 {
	u := v + k.Shift
	if math.Abs(u-10) < singularityTol {
		// 0.01·x/(exp(x/10)-1) → 0.01·10 as x = 10-u → 0
		return k.Phi * 0.1
	}
	return k.Phi * 0.01 * (10 - u) / math.Expm1((10-u)/10)
}

// BetaN is the closing rate of the potassium activation gate.
func (k Kinetics) BetaN(v float64) float64 {
	return k.Phi * 0.125 * math.Exp(-(v+k.Shift)/80)
}

func hOpening(u float64) float64 {
	return 0.07 * math.Exp(-u/20)
}

func hClosing(u float64) float64 {
	return 1.0 / (math.Exp((30-u)/10) + 1)
}

func (k Kinetics) String() string {
	return fmt.Sprintf("kinetics{phi=%.3f shift=%.1f mV %s}", k.Phi, k.Shift, k.Convention)
}
