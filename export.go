package hh

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// ExportConfig configures the exporting of a run.
type ExportConfig struct {
	Filename     string
	AsCSV        bool
	Timestamp    bool
	Stride       int                   // write one sample every Stride, all of them if zero
	CSVAppend    func(st State) string // Custom export (do not include leading comma)
	CSVAppendHdr func() string         // Header for the custom export
}

// IsUseless returns whether this config doesn't actually do anything.
func (c ExportConfig) IsUseless() bool {
	return !c.AsCSV
}

// WriteCSV writes the trajectory of a result as CSV, preceded by a commented header.
func WriteCSV(w io.Writer, res *Result, conf ExportConfig) error {
	sum := res.Summary()
	hdr := fmt.Sprintf(`# Creation date (UTC): %s
# Run: %s (%s, %s)
# Initial state: %s
# Summary: %s
# Records are t (ms), V (mV), m, h, n, I_Na, I_K, I_L (µA/cm²)
t,V,m,h,n,INa,IK,IL`, time.Now().UTC(), res.Name, res.Method, res.Status, res.Initial, sum)
	if conf.CSVAppendHdr != nil {
		hdr += "," + conf.CSVAppendHdr()
	}
	if _, err := io.WriteString(w, hdr); err != nil {
		return err
	}
	stride := conf.Stride
	if stride <= 0 {
		stride = 1
	}
	n := Neuron{Params: res.Params}
	for i := 0; i < res.Trajectory.Len(); i += stride {
		y := res.Trajectory.Y[i]
		iNa, iK, iL := n.Currents(y)
		asTxt := fmt.Sprintf("\n%.6f,%.6f,%.8f,%.8f,%.8f,%.6f,%.6f,%.6f", res.Trajectory.T[i], y.V(), y.M(), y.H(), y.N(), iNa, iK, iL)
		if conf.CSVAppend != nil {
			asTxt += "," + conf.CSVAppend(y)
		}
		if _, err := io.WriteString(w, asTxt); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// ExportCSV writes the result in the configured output directory and returns the file name.
func ExportCSV(res *Result, conf ExportConfig) (string, error) {
	if conf.IsUseless() {
		return "", nil
	}
	config := hhConfig()
	if err := os.MkdirAll(config.outputDir, 0755); err != nil {
		return "", err
	}
	filename := conf.Filename
	if filename == "" {
		filename = res.Name
	}
	if conf.Timestamp || config.timestamp {
		t := time.Now()
		filename = fmt.Sprintf("%s-%d-%02d-%02dT%02d.%02d.%02d", filename, t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second())
	}
	path := filepath.Join(config.outputDir, fmt.Sprintf("trajectory-%s.csv", filename))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := WriteCSV(f, res, conf); err != nil {
		return "", err
	}
	return path, f.Close()
}
