package ingestion

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/guttosm/tradestory/internal/codes"
	"github.com/guttosm/tradestory/internal/domain/models"
)

// requiredColumns are the BACI column names the trade reader needs.
// They are located by header name; extra columns are ignored. A missing
// required column fails the whole run.
var requiredColumns = []string{"t", "i", "j", "k", "v", "q"}

// Fatal file-level error classes.
var (
	ErrMissingColumn        = errors.New("missing required column")
	ErrConflictingDuplicate = errors.New("duplicate trade key with conflicting values")
)

// missing markers used by BACI for absent quantities.
func isMissing(s string) bool {
	return s == "" || s == "NA"
}

// parseTradeFile reads one raw hs17_{year}.csv and returns the filtered
// table. It fails on:
//   - a missing required column
//   - unrecoverable I/O errors
//   - duplicate (year, exporter, importer, product) keys with
//     conflicting value or quantity
//
// It tolerates, dropping and counting the row:
//   - negative or non-numeric value/quantity fields
//   - exporter/importer codes absent from the country table
//   - rows excluded by the caller's filter
func parseTradeFile(ctx context.Context, path string, countries *codes.CountryTable, filter Filter) (*models.TradeTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // extra columns are allowed

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(h)] = i
	}
	width := 0
	for _, name := range requiredColumns {
		i, ok := col[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingColumn, name)
		}
		if i+1 > width {
			width = i + 1
		}
	}

	table := &models.TradeTable{}
	seen := make(map[models.TradeKey]int) // key → index into table.Records
	lineNumber := 1                       // header already read

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		rec, err := r.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("read line after %d: %w", lineNumber, err)
		}
		lineNumber++

		if len(rec) < width {
			table.Stats.RejectedValues++
			continue
		}

		tr, ok := recordToTrade(rec, col, countries, &table.Stats)
		if !ok {
			continue
		}

		if !filter.keep(tr, countries) {
			table.Stats.FilteredOut++
			continue
		}

		key := tr.Key()
		if prev, dup := seen[key]; dup {
			if table.Records[prev].Value != tr.Value || table.Records[prev].Quantity != tr.Quantity {
				return nil, fmt.Errorf("line %d: %w: %s", lineNumber, ErrConflictingDuplicate, key)
			}
			table.Stats.DuplicatesMerged++
			continue
		}
		seen[key] = len(table.Records)
		table.Records = append(table.Records, tr)
	}

	return table, nil
}

// recordToTrade converts one CSV record into a TradeRecord, resolving
// the numeric country codes to ISO3. A false return means the row was
// dropped; the reason has already been counted in stats.
func recordToTrade(rec []string, col map[string]int, countries *codes.CountryTable, stats *models.ReadStats) (models.TradeRecord, bool) {
	var t models.TradeRecord

	year, err := strconv.Atoi(strings.TrimSpace(rec[col["t"]]))
	if err != nil || year <= 0 {
		stats.RejectedValues++
		return t, false
	}
	t.Year = year

	exp, ok := countries.ByCode(strings.TrimSpace(rec[col["i"]]))
	if !ok {
		stats.UnmappedCountry++
		return t, false
	}
	imp, ok := countries.ByCode(strings.TrimSpace(rec[col["j"]]))
	if !ok {
		stats.UnmappedCountry++
		return t, false
	}
	t.Exporter = exp.ISO3
	t.Importer = imp.ISO3

	t.ProductCode = strings.TrimSpace(rec[col["k"]])
	if t.ProductCode == "" {
		stats.RejectedValues++
		return t, false
	}

	// Value: must be a non-negative number.
	v, err := strconv.ParseFloat(strings.TrimSpace(rec[col["v"]]), 64)
	if err != nil || v < 0 {
		stats.RejectedValues++
		return t, false
	}
	t.Value = v

	// Quantity: BACI marks missing quantities with "NA"; those become 0.
	// Anything else must be a non-negative number.
	if s := strings.TrimSpace(rec[col["q"]]); !isMissing(s) {
		q, err := strconv.ParseFloat(s, 64)
		if err != nil || q < 0 {
			stats.RejectedValues++
			return t, false
		}
		t.Quantity = q
	}

	return t, true
}
