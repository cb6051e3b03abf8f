package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/guttosm/tradestory/internal/domain/dto"
)

// OutputWriter persists the final tables to the output directory. Each
// file is written to a temp file and renamed into place so a failed
// stage never leaves a partial output behind.
type OutputWriter struct {
	dir string
}

func NewOutputWriter(dir string) (*OutputWriter, error) {
	if dir == "" {
		return nil, fmt.Errorf("output: dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("output: create dir: %w", err)
	}
	return &OutputWriter{dir: dir}, nil
}

// Write renders one table as CSV, fully overwriting any previous file of
// the same name. Row widths are validated against the header before
// anything touches the filesystem.
func (w *OutputWriter) Write(t dto.Table) error {
	for i, row := range t.Rows {
		if len(row) != len(t.Header) {
			return fmt.Errorf("%s: row %d has %d columns, header has %d", t.Name, i+1, len(row), len(t.Header))
		}
	}

	tmp, err := os.CreateTemp(w.dir, "."+t.Name+".tmp-*")
	if err != nil {
		return fmt.Errorf("%s: create temp: %w", t.Name, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	cw := csv.NewWriter(tmp)
	if err := cw.Write(t.Header); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%s: write header: %w", t.Name, err)
	}
	for _, row := range t.Rows {
		if err := cw.Write(row); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("%s: write row: %w", t.Name, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%s: flush: %w", t.Name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%s: close temp: %w", t.Name, err)
	}

	if err := os.Rename(tmp.Name(), filepath.Join(w.dir, t.Name)); err != nil {
		return fmt.Errorf("%s: rename into place: %w", t.Name, err)
	}
	return nil
}

// WriteAll writes every table, stopping at the first failure.
func (w *OutputWriter) WriteAll(tables []dto.Table) error {
	for _, t := range tables {
		if err := w.Write(t); err != nil {
			return err
		}
	}
	return nil
}
