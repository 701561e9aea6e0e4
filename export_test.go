package hh

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"testing"
)

func shortResult(t *testing.T) *Result {
	conf := DefaultRunConfig()
	conf.T1 = 5
	conf.Samples = 11
	res := quietSim("export", NewStandardNeuron(NewPulse(10, 1, 1)), conf).Run()
	if !res.Valid() {
		t.Fatalf("run failed: %s", res.Err())
	}
	return res
}

func TestWriteCSV(t *testing.T) {
	res := shortResult(t)
	var buf bytes.Buffer
	if err := WriteCSV(&buf, res, ExportConfig{AsCSV: true}); err != nil {
		t.Fatalf("err: %s", err)
	}
	var comments, rows []string
	header := ""
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		switch {
		case strings.HasPrefix(line, "#"):
			comments = append(comments, line)
		case header == "":
			header = line
		default:
			rows = append(rows, line)
		}
	}
	if header != "t,V,m,h,n,INa,IK,IL" {
		t.Fatalf("header = %s", header)
	}
	if len(comments) == 0 || !strings.Contains(comments[1], "export") {
		t.Fatalf("comments = %v", comments)
	}
	if len(rows) != 11 {
		t.Fatalf("%d rows instead of 11", len(rows))
	}
	for _, row := range rows {
		if n := len(strings.Split(row, ",")); n != 8 {
			t.Fatalf("row with %d columns: %s", n, row)
		}
	}
	if !strings.HasPrefix(rows[0], "0.000000,-65.000000,") || !strings.HasPrefix(rows[10], "5.000000,") {
		t.Fatalf("unexpected rows: %s ... %s", rows[0], rows[10])
	}
}

func TestWriteCSVStrideAppend(t *testing.T) {
	res := shortResult(t)
	var buf bytes.Buffer
	conf := ExportConfig{
		AsCSV:        true,
		Stride:       3,
		CSVAppend:    func(st State) string { return fmt.Sprintf("%.3f", st.M()*st.M()*st.M()*st.H()) },
		CSVAppendHdr: func() string { return "gNaFrac" },
	}
	if err := WriteCSV(&buf, res, conf); err != nil {
		t.Fatalf("err: %s", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var data []string
	for _, line := range lines {
		if !strings.HasPrefix(line, "#") {
			data = append(data, line)
		}
	}
	// Header, then samples 0, 3, 6 and 9.
	if len(data) != 5 {
		t.Fatalf("%d lines instead of 5", len(data))
	}
	if !strings.HasSuffix(data[0], ",gNaFrac") {
		t.Fatalf("header = %s", data[0])
	}
	if n := len(strings.Split(data[1], ",")); n != 9 {
		t.Fatalf("%d columns instead of 9", n)
	}
}

func TestExportCSV(t *testing.T) {
	if !(ExportConfig{}).IsUseless() || (ExportConfig{AsCSV: true}).IsUseless() {
		t.Fatal("IsUseless is wrong")
	}
	res := shortResult(t)
	if fname, err := ExportCSV(res, ExportConfig{}); fname != "" || err != nil {
		t.Fatalf("useless export wrote %s (%v)", fname, err)
	}
	dir := t.TempDir()
	config = _hhconfig{outputDir: dir}
	cfgOnce.Do(func() {})
	defer func() { config = _hhconfig{outputDir: defaultOutputDir} }()
	fname, err := ExportCSV(res, ExportConfig{AsCSV: true, Filename: "unit"})
	if err != nil {
		t.Fatalf("err: %s", err)
	}
	if !strings.HasSuffix(fname, "trajectory-unit.csv") || !strings.HasPrefix(fname, dir) {
		t.Fatalf("exported to %s", fname)
	}
	data, err := os.ReadFile(fname)
	if err != nil || !bytes.Contains(data, []byte("t,V,m,h,n,INa,IK,IL")) {
		t.Fatalf("unexpected file content (%v)", err)
	}
}
