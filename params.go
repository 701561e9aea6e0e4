package hh

import (
	"errors"
	"fmt"
	"math"
)

const (
	// RefTemperature is the temperature (°C) of the squid axon recordings of Hodgkin & Huxley (1952).
	RefTemperature = 6.3
	// Q10 is the usual temperature coefficient of the gating kinetics.
	Q10 = 3.0
)

// ErrInvalidParameter is returned when a membrane parameter is out of bounds.
var ErrInvalidParameter = errors.New("invalid parameter")

// Parameters defines the membrane patch. Capacitance in µF/cm², potentials in mV,
// conductances in mS/cm². The struct is a value: copy it, don't share pointers to it.
type Parameters struct {
	Cm  float64 // membrane capacitance
	ENa float64 // sodium reversal potential
	EK  float64 // potassium reversal potential
	EL  float64 // leak reversal potential
	GNa float64 // maximal sodium conductance
	GK  float64 // maximal potassium conductance
	GL  float64 // leak conductance
	Phi float64 // temperature factor applied to every rate constant
}

// StandardParameters returns the textbook Hodgkin-Huxley parameters (rest at -65 mV).
func StandardParameters() Parameters {
	return Parameters{Cm: 1.0, ENa: 50.0, EK: -77.0, EL: -54.4, GNa: 120.0, GK: 36.0, GL: 0.3, Phi: 1.0}
}

// ColdParameters returns the 6.3°C set with a slowed down kinetics.
func ColdParameters() Parameters {
	p := StandardParameters()
	p.GK = 35.0
	p.Phi = 0.325
	return p
}

// TemperatureFactor returns the Q10 scaling of the rate constants at the provided temperature.
func TemperatureFactor(q10, celsius, refCelsius float64) float64 {
	return math.Pow(q10, (celsius-refCelsius)/10)
}

// Kinetics returns the kinetics matching these parameters.
func (p Parameters) Kinetics(conv GateConvention, shift float64) Kinetics {
	return Kinetics{Phi: p.Phi, Shift: shift, Convention: conv}
}

// Validate returns an error if any parameter makes the model meaningless.
func (p Parameters) Validate() error {
	named := []struct {
		name string
		val  float64
	}{{"Cm", p.Cm}, {"ENa", p.ENa}, {"EK", p.EK}, {"EL", p.EL}, {"gNa", p.GNa}, {"gK", p.GK}, {"gL", p.GL}, {"phi", p.Phi}}
	for _, v := range named {
		if math.IsNaN(v.val) || math.IsInf(v.val, 0) {
			return fmt.Errorf("%w: %s is not finite", ErrInvalidParameter, v.name)
		}
	}
	if p.Cm <= 0 {
		return fmt.Errorf("%w: Cm must be positive (got %f)", ErrInvalidParameter, p.Cm)
	}
	if p.Phi <= 0 {
		return fmt.Errorf("%w: phi must be positive (got %f)", ErrInvalidParameter, p.Phi)
	}
	if p.GNa < 0 || p.GK < 0 || p.GL < 0 {
		return fmt.Errorf("%w: conductances must be non negative", ErrInvalidParameter)
	}
	return nil
}

func (p Parameters) String() string {
	return fmt.Sprintf("Cm=%.2f ENa=%.1f EK=%.1f EL=%.2f gNa=%.1f gK=%.1f gL=%.2f phi=%.3f", p.Cm, p.ENa, p.EK, p.EL, p.GNa, p.GK, p.GL, p.Phi)
}
