package telemetry

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/gocarina/gocsv"
)

// CSVWriter appends TickStats rows to a writer, emitting the header once.
// A nil *CSVWriter discards everything.
type CSVWriter struct {
	mu            sync.Mutex
	w             io.Writer
	closer        io.Closer
	headerWritten bool
	rows          int
}

// NewCSVWriter writes rows to w.
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{w: w}
}

// CreateCSVFile creates path and its directory. Returns nil when path is empty
// (output disabled).
func CreateCSVFile(path string) (*CSVWriter, error) {
	if path == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", filepath.Base(path), err)
	}
	return &CSVWriter{w: f, closer: f}, nil
}

// Write appends one row.
func (cw *CSVWriter) Write(stats TickStats) error {
	if cw == nil {
		return nil
	}
	cw.mu.Lock()
	defer cw.mu.Unlock()

	records := []TickStats{stats}
	if !cw.headerWritten {
		if err := gocsv.Marshal(records, cw.w); err != nil {
			return fmt.Errorf("writing telemetry: %w", err)
		}
		cw.headerWritten = true
	} else {
		if err := gocsv.MarshalWithoutHeaders(records, cw.w); err != nil {
			return fmt.Errorf("writing telemetry: %w", err)
		}
	}
	cw.rows++
	return nil
}

// Rows returns the number of rows written.
func (cw *CSVWriter) Rows() int {
	if cw == nil {
		return 0
	}
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return cw.rows
}

// Close closes the underlying file, if CreateCSVFile opened one.
func (cw *CSVWriter) Close() error {
	if cw == nil || cw.closer == nil {
		return nil
	}
	return cw.closer.Close()
}

// ReadCSV parses rows written by a CSVWriter.
func ReadCSV(r io.Reader) ([]TickStats, error) {
	var rows []TickStats
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("reading telemetry: %w", err)
	}
	return rows, nil
}
