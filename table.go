package spl

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

const (
	tableTimeHdr   = "Time(s)"
	tableThrustHdr = "Thrust(N)"
)

// ThrustTable is a sampled thrust curve, uniformly spaced in time from ignition.
type ThrustTable struct {
	Time   []float64 // s
	Thrust []float64 // N
	step   float64
}

// NewThrustTable validates the samples and returns a table.
func NewThrustTable(time, thrust []float64) (*ThrustTable, error) {
	if len(time) != len(thrust) {
		return nil, fmt.Errorf("thrust table has %d times and %d thrusts", len(time), len(thrust))
	}
	if len(time) < 2 {
		return nil, errors.New("thrust table needs at least two samples")
	}
	step := time[1] - time[0]
	if step <= 0 {
		return nil, newConfigurationError("table_dt", step, "sample times must increase")
	}
	return &ThrustTable{Time: time, Thrust: thrust, step: step}, nil
}

// LoadThrustTable reads a `Time(s),Thrust(N)` CSV.
func LoadThrustTable(r io.Reader) (*ThrustTable, error) {
	reader := csv.NewReader(r)
	reader.Comment = '#'
	reader.TrimLeadingSpace = true
	hdr, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("thrust table header: %w", err)
	}
	timeCol, thrustCol := -1, -1
	for i, col := range hdr {
		switch strings.TrimSpace(col) {
		case tableTimeHdr:
			timeCol = i
		case tableThrustHdr:
			thrustCol = i
		}
	}
	if timeCol < 0 || thrustCol < 0 {
		return nil, fmt.Errorf("thrust table header must contain `%s` and `%s`", tableTimeHdr, tableThrustHdr)
	}
	var times, thrusts []float64
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		t, err := strconv.ParseFloat(record[timeCol], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		f, err := strconv.ParseFloat(record[thrustCol], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		times = append(times, t)
		thrusts = append(thrusts, f)
	}
	return NewThrustTable(times, thrusts)
}

// LoadThrustTableFile reads a thrust table from a file.
func LoadThrustTableFile(path string) (*ThrustTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tbl, err := LoadThrustTable(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tbl, nil
}

// Extent returns the last sample time.
func (t *ThrustTable) Extent() float64 {
	return t.Time[len(t.Time)-1]
}

// At returns the thrust sample at the provided burn time, holding the last value past the table.
func (t *ThrustTable) At(burnTime float64) float64 {
	idx := int(math.Floor(burnTime/t.step + 1e-9))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(t.Thrust) {
		idx = len(t.Thrust) - 1
	}
	return t.Thrust[idx]
}
