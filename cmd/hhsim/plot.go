package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ChristopherRabotin/hh"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// plotResult renders the voltage trace with the stimulus windows shaded, and the
// inactivation trace scaled to the same axis.
func plotResult(res *hh.Result, stim hh.PulseTrain, fname string) error {
	if err := os.MkdirAll(filepath.Dir(fname), 0755); err != nil {
		return err
	}
	const vMin, vMax = -90.0, 60.0
	tr := res.Trajectory
	sum := res.Summary()

	// h ∈ [0, 1] drawn over the voltage range.
	h := tr.Column(2)
	for i := range h {
		h[i] = vMin + h[i]*(vMax-vMin)
	}

	series := []chart.Series{}
	for _, p := range stim {
		series = append(series, chart.ContinuousSeries{
			Name:    fmt.Sprintf("Stimulus %.1f µA/cm²", p.Amplitude),
			XValues: []float64{p.Onset, p.Onset, p.Offset, p.Offset},
			YValues: []float64{vMin, vMax, vMax, vMin},
			Style: chart.Style{
				StrokeWidth: 0,
				FillColor:   drawing.Color{R: 128, G: 128, B: 128, A: 50},
			},
		})
	}
	series = append(series,
		chart.ContinuousSeries{
			Name:    "V (mV)",
			XValues: tr.T,
			YValues: tr.Voltage(),
			Style: chart.Style{
				StrokeColor: drawing.Color{R: 0, G: 0, B: 128, A: 255}, // Navy
				StrokeWidth: 2.5,
			},
		},
		chart.ContinuousSeries{
			Name:    "h (Na inactivation, scaled)",
			XValues: tr.T,
			YValues: h,
			Style: chart.Style{
				StrokeColor:     drawing.Color{R: 255, G: 165, B: 0, A: 255}, // Orange
				StrokeWidth:     1.5,
				StrokeDashArray: []float64{5, 3},
			},
		},
	)

	graph := chart.Chart{
		Title:  fmt.Sprintf("%s │ h₀ = %.5f → Peak = %+.2f mV", res.Name, sum.H0, sum.Peak),
		Width:  1200,
		Height: 600,
		XAxis: chart.XAxis{
			Name:  "Time (ms)",
			Range: &chart.ContinuousRange{Min: tr.T[0], Max: tr.T[len(tr.T)-1]},
		},
		YAxis: chart.YAxis{
			Name:  "Membrane Potential (mV)",
			Range: &chart.ContinuousRange{Min: vMin, Max: vMax},
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	f, err := os.Create(fname)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := graph.Render(chart.PNG, f); err != nil {
		return err
	}
	return f.Close()
}
