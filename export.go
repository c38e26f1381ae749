package spl

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// RunHeaders are the columns written by WriteCSV.
var RunHeaders = []string{"Time[s]", "Pos[m]", "V[m/s]", "mass[kg]", "T[N]"}

// ExportConfig configures the files written by the drivers.
type ExportConfig struct {
	Directory string
	Filename  string
	Timestamp bool // appends the creation time to the file name
}

// IsUseless returns whether this config would not write anything.
func (c ExportConfig) IsUseless() bool {
	return c.Filename == ""
}

// WriteColumns writes equally long columns as CSV.
func WriteColumns(w io.Writer, hdr []string, cols ...[]float64) error {
	if len(hdr) != len(cols) {
		return fmt.Errorf("%d headers for %d columns", len(hdr), len(cols))
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(hdr); err != nil {
		return err
	}
	rows := 0
	if len(cols) > 0 {
		rows = len(cols[0])
	}
	record := make([]string, len(cols))
	for i := 0; i < rows; i++ {
		for j, col := range cols {
			if len(col) != rows {
				return fmt.Errorf("column %s has %d rows, expected %d", hdr[j], len(col), rows)
			}
			record[j] = strconv.FormatFloat(col[i], 'f', -1, 64)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSV writes the time, state and thrust histories of a run.
func WriteCSV(w io.Writer, run *SimulationRun) error {
	return WriteColumns(w, RunHeaders, run.Time, run.Positions(), run.Velocities(), run.Masses(), run.Thrust)
}

// createExportFile returns a file which requires a defer close statement!
func createExportFile(conf ExportConfig, suffix string) (*os.File, error) {
	name := conf.Filename + suffix
	if conf.Timestamp {
		t := time.Now()
		name = fmt.Sprintf("%s-%d-%02d-%02dT%02d.%02d.%02d", name, t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second())
	}
	f, err := os.Create(filepath.Join(conf.Directory, name+".csv"))
	if err != nil {
		return nil, err
	}
	// Header
	if _, err := fmt.Fprintf(f, "# Creation date (UTC): %s\n", time.Now().UTC()); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// ExportRun writes a run to a CSV file and returns its path.
func ExportRun(conf ExportConfig, suffix string, run *SimulationRun) (string, error) {
	f, err := createExportFile(conf, suffix)
	if err != nil {
		return "", err
	}
	if _, err := fmt.Fprintf(f, "# Termination: %s\n", run.Reason); err != nil {
		f.Close()
		return "", err
	}
	if err := WriteCSV(f, run); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return f.Name(), nil
}

// ExportColumns writes arbitrary columns to a CSV file and returns its path.
func ExportColumns(conf ExportConfig, suffix string, hdr []string, cols ...[]float64) (string, error) {
	f, err := createExportFile(conf, suffix)
	if err != nil {
		return "", err
	}
	if err := WriteColumns(f, hdr, cols...); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return f.Name(), nil
}
