package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/ChristopherRabotin/hh"
	kitlog "github.com/go-kit/log"
)

// This code reads a scenario file, runs one simulation per holding voltage, and reports them.

const defaultScenario = "~~unset~~"

var (
	scenario string
	asCSV    bool
	plot     bool
	stride   int
	verbose  bool
)

func init() {
	// Read flags
	flag.StringVar(&scenario, "scenario", defaultScenario, "scenario TOML file")
	flag.BoolVar(&asCSV, "csv", true, "export the trajectories as CSV")
	flag.BoolVar(&plot, "plot", true, "plot the voltage and inactivation traces as PNG")
	flag.IntVar(&stride, "stride", 1, "export one sample every stride")
	flag.BoolVar(&verbose, "verbose", false, "log the solver statistics")
}

func main() {
	flag.Parse()
	if scenario == defaultScenario {
		log.Fatal("no scenario provided")
	}
	sc, err := hh.LoadScenario(scenario)
	if err != nil {
		log.Fatalf("could not load scenario: %s", err)
	}

	klog := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stdout))
	if !verbose {
		klog = kitlog.NewNopLogger()
	}
	sims := sc.Simulations()
	for _, sim := range sims {
		sim.SetLogger(klog)
	}
	log.Printf("[conf] %s: %s | %s | stimulus %v", sc.Name, sc.Params, sc.Neuron().Kinetics, sc.Stimulus)

	// Runs are independent, each one owns its solver.
	results := hh.RunAll(sims...)

	failed := 0
	for _, res := range results {
		if err := res.Err(); err != nil {
			failed++
			log.Printf("%s → FAILED (%s): %s", res.Name, res.Status, err)
			continue
		}
		sum := res.Summary()
		fmt.Printf("%s → h₀ = %.5f | Peak V = %+6.2f mV | %d spike(s) | %d steps in %s\n", res.Name, sum.H0, sum.Peak, sum.Spikes, res.Steps, res.Duration)
		if asCSV {
			fname, err := hh.ExportCSV(res, hh.ExportConfig{AsCSV: true, Stride: stride})
			if err != nil {
				log.Printf("%s: could not export: %s", res.Name, err)
			} else {
				log.Printf("saved %s", fname)
			}
		}
		if plot {
			fname := filepath.Join(hh.OutputDir(), fmt.Sprintf("trace-%s.png", res.Name))
			if err := plotResult(res, sc.Stimulus, fname); err != nil {
				log.Printf("%s: could not plot: %s", res.Name, err)
			} else {
				log.Printf("saved %s", fname)
			}
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}
