package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/guttosm/tradestory/internal/domain/dto"
)

func TestOutputWriter_Write(t *testing.T) {
	dir := t.TempDir()
	w, err := NewOutputWriter(dir)
	if err != nil {
		t.Fatalf("NewOutputWriter: %v", err)
	}

	table := dto.Table{
		Name:   "wheat.csv",
		Header: []string{"year", "source", "value"},
	}
	table.Append("2018", "Russia", "10.5m")
	table.Append("2018", "Ukraine", "4.2m")

	if err := w.Write(table); err != nil {
		t.Fatalf("Write: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "wheat.csv"))
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	want := "year,source,value\n2018,Russia,10.5m\n2018,Ukraine,4.2m\n"
	if string(data) != want {
		t.Fatalf("output = %q, want %q", data, want)
	}
}

func TestOutputWriter_Overwrites(t *testing.T) {
	dir := t.TempDir()
	w, err := NewOutputWriter(dir)
	if err != nil {
		t.Fatalf("NewOutputWriter: %v", err)
	}

	first := dto.Table{Name: "wheat.csv", Header: []string{"a"}}
	first.Append("1")
	first.Append("2")
	if err := w.Write(first); err != nil {
		t.Fatalf("first Write: %v", err)
	}

	second := dto.Table{Name: "wheat.csv", Header: []string{"a"}}
	second.Append("3")
	if err := w.Write(second); err != nil {
		t.Fatalf("second Write: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "wheat.csv"))
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "a\n3\n" {
		t.Fatalf("stale content survived overwrite: %q", data)
	}
}

func TestOutputWriter_RowWidthMismatch(t *testing.T) {
	dir := t.TempDir()
	w, err := NewOutputWriter(dir)
	if err != nil {
		t.Fatalf("NewOutputWriter: %v", err)
	}

	table := dto.Table{Name: "bad.csv", Header: []string{"a", "b"}}
	table.Append("1")

	err = w.Write(table)
	if err == nil || !strings.Contains(err.Error(), "columns") {
		t.Fatalf("want width mismatch error, got %v", err)
	}

	// Validation failed before anything touched the filesystem.
	if _, statErr := os.Stat(filepath.Join(dir, "bad.csv")); !os.IsNotExist(statErr) {
		t.Fatalf("partial output left behind: %v", statErr)
	}
	leftovers, _ := filepath.Glob(filepath.Join(dir, ".bad.csv.tmp-*"))
	if len(leftovers) != 0 {
		t.Fatalf("temp files left behind: %v", leftovers)
	}
}

func TestOutputWriter_WriteAll(t *testing.T) {
	dir := t.TempDir()
	w, err := NewOutputWriter(dir)
	if err != nil {
		t.Fatalf("NewOutputWriter: %v", err)
	}

	a := dto.Table{Name: dto.FileWheat, Header: []string{"x"}}
	a.Append("1")
	b := dto.Table{Name: dto.FileBarley, Header: []string{"x"}}
	b.Append("2")

	if err := w.WriteAll([]dto.Table{a, b}); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	for _, name := range []string{dto.FileWheat, dto.FileBarley} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
}
