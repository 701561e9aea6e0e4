package hh

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// SpikeThreshold is the voltage (mV) an upstroke must cross to count as an action potential.
const SpikeThreshold = 0.0

// Trajectory is the sampled solution of a single run.
type Trajectory struct {
	T []float64 // ms
	Y []State
}

// Len returns the number of samples.
func (tr Trajectory) Len() int {
	return len(tr.T)
}

// IsFinite returns whether every sample is finite. A solver may report success
// and still return a trajectory which diverged, so this must be checked.
func (tr Trajectory) IsFinite() bool {
	for _, t := range tr.T {
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return false
		}
	}
	for _, y := range tr.Y {
		if !y.IsFinite() {
			return false
		}
	}
	return true
}

// Column returns the i-th component of the state over time.
func (tr Trajectory) Column(i int) []float64 {
	col := make([]float64, len(tr.Y))
	for k, y := range tr.Y {
		col[k] = y[i]
	}
	return col
}

// Voltage returns the membrane potential over time.
func (tr Trajectory) Voltage() []float64 {
	return tr.Column(0)
}

// Peak returns the time and value of the maximum membrane potential.
func (tr Trajectory) Peak() (t, v float64) {
	return tr.PeakWithin(math.Inf(-1), math.Inf(1))
}

// PeakWithin returns the maximum membrane potential over the samples in [from, to].
// Returns NaNs if no sample falls in the window.
func (tr Trajectory) PeakWithin(from, to float64) (t, v float64) {
	t, v = math.NaN(), math.NaN()
	for k, tk := range tr.T {
		if tk < from || tk > to {
			continue
		}
		if vk := tr.Y[k].V(); math.IsNaN(v) || vk > v {
			t, v = tk, vk
		}
	}
	return
}

// Spikes returns the number of upward crossings of threshold.
func (tr Trajectory) Spikes(threshold float64) (count int) {
	for k := 1; k < len(tr.Y); k++ {
		if tr.Y[k-1].V() < threshold && tr.Y[k].V() >= threshold {
			count++
		}
	}
	return
}

// Summary stores the scalar outputs of a run.
type Summary struct {
	H0       float64 // initial inactivation
	Peak     float64 // mV
	PeakTime float64 // ms
	Trough   float64 // mV
	MeanV    float64 // mV
	StdV     float64 // mV
	Spikes   int
}

// Summarize computes the summary of the trajectory from the initial state y0.
func (tr Trajectory) Summarize(y0 State) Summary {
	s := Summary{H0: y0.H()}
	if tr.Len() == 0 {
		s.Peak, s.PeakTime, s.Trough, s.MeanV, s.StdV = math.NaN(), math.NaN(), math.NaN(), math.NaN(), math.NaN()
		return s
	}
	v := tr.Voltage()
	s.PeakTime, s.Peak = tr.Peak()
	s.Trough = floats.Min(v)
	s.MeanV, s.StdV = stat.MeanStdDev(v, nil)
	s.Spikes = tr.Spikes(SpikeThreshold)
	return s
}

func (s Summary) String() string {
	return fmt.Sprintf("h0=%.5f peak=%+6.2f mV @ %.2f ms spikes=%d", s.H0, s.Peak, s.PeakTime, s.Spikes)
}
