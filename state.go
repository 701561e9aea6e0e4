package hh

import (
	"fmt"
	"math"
)

// State is the (V, m, h, n) state vector of the membrane.
type State [4]float64

// StateFrom returns a State from a slice of at least four elements.
func StateFrom(s []float64) (st State) {
	copy(st[:], s)
	return
}

// V returns the membrane potential in mV.
func (s State) V() float64 { return s[0] }

// M returns the sodium activation.
func (s State) M() float64 { return s[1] }

// H returns the sodium inactivation (1 when not inactivated).
func (s State) H() float64 { return s[2] }

// N returns the potassium activation.
func (s State) N() float64 { return s[3] }

// IsFinite returns whether none of the components is NaN or infinite.
func (s State) IsFinite() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) String() string {
	return fmt.Sprintf("V=%.3f mV m=%.5f h=%.5f n=%.5f", s[0], s[1], s[2], s[3])
}
