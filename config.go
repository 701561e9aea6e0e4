package hh

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

const defaultOutputDir = "results"

var (
	cfgOnce sync.Once
	config  = _hhconfig{outputDir: defaultOutputDir}
)

// _hhconfig is a "hidden" struct, just use `hhConfig`
type _hhconfig struct {
	outputDir string
	timestamp bool
}

// hhConfig returns the hh configuration, read once from $HH_CONFIG/conf.toml.
// Without HH_CONFIG, outputs go to ./results.
func hhConfig() _hhconfig {
	cfgOnce.Do(func() {
		confPath := os.Getenv("HH_CONFIG")
		if confPath == "" {
			return
		}
		v := viper.New()
		v.SetConfigName("conf")
		v.SetConfigType("toml")
		v.AddConfigPath(confPath)
		v.SetDefault("general.output_path", defaultOutputDir)
		v.SetDefault("general.timestamp", false)
		if err := v.ReadInConfig(); err != nil {
			panic(fmt.Errorf("%s/conf.toml not found", confPath))
		}
		config = _hhconfig{outputDir: v.GetString("general.output_path"), timestamp: v.GetBool("general.timestamp")}
	})
	return config
}

// OutputDir returns the directory where the exports are written.
func OutputDir() string {
	return hhConfig().outputDir
}

// Scenario is a full experiment: one membrane, one stimulus protocol, and one
// run per holding voltage.
type Scenario struct {
	Name       string
	Params     Parameters
	Convention GateConvention
	Shift      float64
	Stimulus   PulseTrain
	Run        RunConfig
	Holdings   []float64 // mV
}

// LoadScenario reads a scenario TOML file. Missing membrane and run keys
// default to StandardParameters and DefaultRunConfig.
func LoadScenario(path string) (*Scenario, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")

	std := StandardParameters()
	run := DefaultRunConfig()
	v.SetDefault("scenario.name", strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	v.SetDefault("membrane.Cm", std.Cm)
	v.SetDefault("membrane.ENa", std.ENa)
	v.SetDefault("membrane.EK", std.EK)
	v.SetDefault("membrane.EL", std.EL)
	v.SetDefault("membrane.gNa", std.GNa)
	v.SetDefault("membrane.gK", std.GK)
	v.SetDefault("membrane.gL", std.GL)
	v.SetDefault("membrane.phi", std.Phi)
	v.SetDefault("kinetics.convention", StandardGates.String())
	v.SetDefault("kinetics.shift", RestShift)
	v.SetDefault("run.t0", run.T0)
	v.SetDefault("run.t1", run.T1)
	v.SetDefault("run.samples", run.Samples)
	v.SetDefault("run.atol", run.AbsTol)
	v.SetDefault("run.rtol", run.RelTol)
	v.SetDefault("run.method", run.Method.String())
	v.SetDefault("run.max_step", 0.0)
	v.SetDefault("run.max_steps", 0)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	sc := &Scenario{Name: v.GetString("scenario.name")}
	sc.Params = Parameters{
		Cm:  v.GetFloat64("membrane.Cm"),
		ENa: v.GetFloat64("membrane.ENa"),
		EK:  v.GetFloat64("membrane.EK"),
		EL:  v.GetFloat64("membrane.EL"),
		GNa: v.GetFloat64("membrane.gNa"),
		GK:  v.GetFloat64("membrane.gK"),
		GL:  v.GetFloat64("membrane.gL"),
		Phi: v.GetFloat64("membrane.phi"),
	}
	if v.IsSet("membrane.temperature") {
		sc.Params.Phi = TemperatureFactor(Q10, v.GetFloat64("membrane.temperature"), RefTemperature)
	}
	if err := sc.Params.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	conv, err := GateConventionFromString(v.GetString("kinetics.convention"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	sc.Convention = conv
	sc.Shift = v.GetFloat64("kinetics.shift")

	// Pulses are numbered tables: [stimulus.0], [stimulus.1], ...
	for pulseNo := 0; v.IsSet(fmt.Sprintf("stimulus.%d", pulseNo)); pulseNo++ {
		key := fmt.Sprintf("stimulus.%d", pulseNo)
		onset := v.GetFloat64(key + ".onset")
		var offset float64
		switch {
		case v.IsSet(key + ".offset"):
			offset = v.GetFloat64(key + ".offset")
		case v.IsSet(key + ".duration"):
			offset = onset + v.GetFloat64(key+".duration")
		default:
			return nil, fmt.Errorf("%s: %s needs an offset or a duration", path, key)
		}
		if offset < onset {
			return nil, fmt.Errorf("%s: %s ends before it starts", path, key)
		}
		sc.Stimulus = append(sc.Stimulus, Pulse{Amplitude: v.GetFloat64(key + ".amplitude"), Onset: onset, Offset: offset})
	}

	method, err := MethodFromString(v.GetString("run.method"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	sc.Run = RunConfig{
		T0:       v.GetFloat64("run.t0"),
		T1:       v.GetFloat64("run.t1"),
		Samples:  v.GetInt("run.samples"),
		AbsTol:   v.GetFloat64("run.atol"),
		RelTol:   v.GetFloat64("run.rtol"),
		Method:   method,
		MaxStep:  v.GetFloat64("run.max_step"),
		MaxSteps: v.GetInt("run.max_steps"),
	}
	if v.IsSet("run.holding") {
		if err := v.UnmarshalKey("run.holding", &sc.Holdings); err != nil {
			return nil, fmt.Errorf("%s: run.holding: %w", path, err)
		}
	}
	if len(sc.Holdings) == 0 {
		sc.Holdings = []float64{run.Holding}
	}
	sc.Run.Holding = sc.Holdings[0]
	if err := sc.Run.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// Neuron returns the neuron of this scenario.
func (sc *Scenario) Neuron() Neuron {
	var stim Stimulus = NoStimulus{}
	if len(sc.Stimulus) > 0 {
		stim = sc.Stimulus
	}
	return NewNeuron(sc.Params, sc.Convention, sc.Shift, stim)
}

// Simulations returns one simulation per holding voltage, sharing nothing but read only values.
func (sc *Scenario) Simulations() []*Simulation {
	sims := make([]*Simulation, len(sc.Holdings))
	for i, hold := range sc.Holdings {
		conf := sc.Run
		conf.Holding = hold
		sims[i] = NewSimulation(fmt.Sprintf("%s@%.0fmV", sc.Name, hold), sc.Neuron(), conf)
	}
	return sims
}
