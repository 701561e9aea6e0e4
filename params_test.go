package hh

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
)

func TestParametersValidate(t *testing.T) {
	if err := StandardParameters().Validate(); err != nil {
		t.Fatalf("standard parameters are invalid: %s", err)
	}
	if err := ColdParameters().Validate(); err != nil {
		t.Fatalf("cold parameters are invalid: %s", err)
	}
	for name, mod := range map[string]func(p *Parameters){
		"Cm zero":     func(p *Parameters) { p.Cm = 0 },
		"phi zero":    func(p *Parameters) { p.Phi = 0 },
		"gNa neg":     func(p *Parameters) { p.GNa = -1 },
		"gL neg":      func(p *Parameters) { p.GL = -0.3 },
		"ENa NaN":     func(p *Parameters) { p.ENa = math.NaN() },
		"EK infinite": func(p *Parameters) { p.EK = math.Inf(-1) },
	} {
		p := StandardParameters()
		mod(&p)
		if err := p.Validate(); !errors.Is(err, ErrInvalidParameter) {
			t.Fatalf("%s: expected ErrInvalidParameter, got %v", name, err)
		}
	}
}

func TestTemperatureFactor(t *testing.T) {
	if f := TemperatureFactor(Q10, RefTemperature, RefTemperature); f != 1 {
		t.Fatalf("factor at the reference temperature = %f", f)
	}
	if f := TemperatureFactor(Q10, RefTemperature+10, RefTemperature); !scalar.EqualWithinAbs(f, 3, 1e-12) {
		t.Fatalf("factor 10°C above the reference = %f", f)
	}
	if f := TemperatureFactor(Q10, RefTemperature-10, RefTemperature); !scalar.EqualWithinAbs(f, 1/3., 1e-12) {
		t.Fatalf("factor 10°C below the reference = %f", f)
	}
}

func TestParametersKinetics(t *testing.T) {
	k := ColdParameters().Kinetics(SwappedInactivation, 0)
	if k.Phi != 0.325 || k.Shift != 0 || k.Convention != SwappedInactivation {
		t.Fatalf("unexpected kinetics %s", k)
	}
}
