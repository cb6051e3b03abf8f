// Package codes holds the static reference tables the pipeline joins
// against: country codes → ISO3/name/continent and HS6 product codes →
// commodity group and BEC sector. The tables are loaded once per run and
// are read-only afterwards.
package codes

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	countryCodesFile = "country_codes.csv"
	productCodesFile = "product_codes.csv"
)

// Tables bundles both reference tables. It is passed explicitly to the
// components that need lookups; there is no package-level state.
type Tables struct {
	Countries *CountryTable
	Products  *ProductTable
}

// Load reads both code tables from rawDataDir. A missing file or a
// missing required column is fatal for the run.
func Load(rawDataDir string) (*Tables, error) {
	countries, err := LoadCountries(filepath.Join(rawDataDir, countryCodesFile))
	if err != nil {
		return nil, fmt.Errorf("load country codes: %w", err)
	}
	products, err := LoadProducts(filepath.Join(rawDataDir, productCodesFile))
	if err != nil {
		return nil, fmt.Errorf("load product codes: %w", err)
	}
	return &Tables{Countries: countries, Products: products}, nil
}

// readTable opens a CSV, validates that every column in required is
// present in the header, and returns the header index plus data rows.
// Extra columns are ignored.
func readTable(path string, required []string) (map[string]int, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open: %w", err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	rows, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("%s: empty file", filepath.Base(path))
	}

	idx := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		idx[strings.TrimSpace(h)] = i
	}
	for _, col := range required {
		if _, ok := idx[col]; !ok {
			return nil, nil, fmt.Errorf("%s: missing required column %q", filepath.Base(path), col)
		}
	}
	return idx, rows[1:], nil
}
