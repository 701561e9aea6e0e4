package hh

import (
	"fmt"
	"sort"
)

// Stimulus defines an injected current protocol.
type Stimulus interface {
	// Returns the injected current (µA/cm²) at time t (ms).
	Current(t float64) float64
	// Returns the times at which the current is discontinuous.
	Edges() []float64
}

/* Available stimuli */

// NoStimulus injects no current at all.
type NoStimulus struct{}

// Current implements the Stimulus interface.
func (s NoStimulus) Current(t float64) float64 {
	return 0
}

// Edges implements the Stimulus interface.
func (s NoStimulus) Edges() []float64 {
	return nil
}

// Pulse is a rectangular current step, on during [Onset, Offset).
type Pulse struct {
	Amplitude float64 // µA/cm²
	Onset     float64 // ms
	Offset    float64 // ms
}

// NewPulse returns a pulse of the given amplitude starting at onset and lasting duration.
func NewPulse(amplitude, onset, duration float64) Pulse {
	if duration < 0 {
		panic("pulse duration may not be negative")
	}
	return Pulse{amplitude, onset, onset + duration}
}

// Current implements the Stimulus interface.
func (p Pulse) Current(t float64) float64 {
	if t >= p.Onset && t < p.Offset {
		return p.Amplitude
	}
	return 0
}

// Edges implements the Stimulus interface.
func (p Pulse) Edges() []float64 {
	return []float64{p.Onset, p.Offset}
}

func (p Pulse) String() string {
	return fmt.Sprintf("%.2f µA/cm² on [%.3f, %.3f) ms", p.Amplitude, p.Onset, p.Offset)
}

// PulseTrain is the sum of several pulses. Overlapping pulses add up.
type PulseTrain []Pulse

// Current implements the Stimulus interface.
func (pt PulseTrain) Current(t float64) (i float64) {
	for _, p := range pt {
		i += p.Current(t)
	}
	return
}

// Edges implements the Stimulus interface. The edges are sorted and unique.
func (pt PulseTrain) Edges() []float64 {
	edges := make([]float64, 0, 2*len(pt))
	for _, p := range pt {
		edges = append(edges, p.Onset, p.Offset)
	}
	sort.Float64s(edges)
	uniq := edges[:0]
	for i, e := range edges {
		if i == 0 || e != edges[i-1] {
			uniq = append(uniq, e)
		}
	}
	return uniq
}
