package ingestion

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/guttosm/tradestory/internal/domain/models"
	"github.com/guttosm/tradestory/internal/logger"
)

// ErrDuplicateSeries is returned when two observations share the same
// (date, commodity), which the long-format series cannot represent.
var ErrDuplicateSeries = errors.New("duplicate (date, commodity) observation")

// periodRe matches the pink sheet's monthly period labels, e.g. 2020M01.
var periodRe = regexp.MustCompile(`^\d{4}M(0[1-9]|1[0-2])$`)

// unitRe matches unit cells such as ($/mt) or (cents/kg).
var unitRe = regexp.MustCompile(`^\(.+\)$`)

// CommodityOptions restricts and renames the series kept from the raw
// file. Empty Commodities keeps every column.
type CommodityOptions struct {
	Commodities []string          // source column names to keep
	Renames     map[string]string // source name → output name, e.g. "Wheat, US HRW" → "Wheat"
}

// ReadCommodityPrices loads a World Bank pink sheet monthly CSV into a
// long-format series sorted by date, then commodity.
//
// The file mixes metadata with data: some leading rows of titles and
// sources, a commodity-name header row, usually a units row like
// "($/mt)", then data rows whose first cell is a YYYYMmm period. Only
// rows with a parseable period are treated as data. Missing prices
// (".." or empty) stay in the output as nil so "no data" is
// distinguishable from zero.
func ReadCommodityPrices(path string, opts CommodityOptions) (*models.CommoditySeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}

	dataStart := -1
	for i, row := range rows {
		if len(row) > 0 && periodRe.MatchString(strings.TrimSpace(row[0])) {
			dataStart = i
			break
		}
	}
	if dataStart <= 0 {
		return nil, fmt.Errorf("no data rows found (first cell never matched YYYYMmm)")
	}

	header, units := locateHeader(rows[:dataStart])
	if header == nil {
		return nil, fmt.Errorf("no commodity header row found above first data row")
	}

	// Column selection: every named column, or only the requested ones.
	type column struct {
		idx  int
		name string
		unit string
	}
	var cols []column
	for i := 1; i < len(header); i++ {
		name := strings.TrimSpace(header[i])
		if name == "" {
			continue
		}
		if len(opts.Commodities) > 0 && !contains(opts.Commodities, name) {
			continue
		}
		if out, ok := opts.Renames[name]; ok {
			name = out
		}
		unit := ""
		if units != nil && i < len(units) {
			unit = strings.Trim(strings.TrimSpace(units[i]), "()")
		}
		cols = append(cols, column{idx: i, name: name, unit: unit})
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("no commodity columns selected")
	}

	series := &models.CommoditySeries{}
	cleaned := 0
	for _, row := range rows[dataStart:] {
		if len(row) == 0 || !periodRe.MatchString(strings.TrimSpace(row[0])) {
			continue // trailing metadata, footnotes
		}
		date, err := time.Parse("2006M01", strings.TrimSpace(row[0]))
		if err != nil {
			continue
		}
		for _, c := range cols {
			p := models.CommodityPrice{Date: date, Commodity: c.name, Unit: c.unit}
			if c.idx < len(row) {
				v, malformed := parsePrice(row[c.idx])
				p.Price = v
				if malformed {
					cleaned++
				}
			}
			series.Prices = append(series.Prices, p)
		}
	}
	if cleaned > 0 {
		logger.L().Warn().Int("cells", cleaned).Msg("malformed price cells treated as missing")
	}

	sort.SliceStable(series.Prices, func(i, j int) bool {
		a, b := series.Prices[i], series.Prices[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.Commodity < b.Commodity
	})

	for i := 1; i < len(series.Prices); i++ {
		a, b := series.Prices[i-1], series.Prices[i]
		if a.Date.Equal(b.Date) && a.Commodity == b.Commodity {
			return nil, fmt.Errorf("%w: %s %s", ErrDuplicateSeries, b.Date.Format("2006-01"), b.Commodity)
		}
	}

	return series, nil
}

// locateHeader finds the commodity-name header row and the optional
// units row in the preamble above the first data row. The units row, if
// present, is the last preamble row with parenthesized cells; the header
// is the nearest row above it with at least two named columns.
func locateHeader(preamble [][]string) (header, units []string) {
	isUnits := func(row []string) bool {
		for _, cell := range row[1:] {
			if unitRe.MatchString(strings.TrimSpace(cell)) {
				return true
			}
		}
		return false
	}
	named := func(row []string) int {
		n := 0
		for _, cell := range row[1:] {
			if strings.TrimSpace(cell) != "" {
				n++
			}
		}
		return n
	}

	for i := len(preamble) - 1; i >= 0; i-- {
		row := preamble[i]
		if len(row) < 2 {
			continue
		}
		if isUnits(row) {
			units = row
			continue
		}
		if named(row) >= 1 {
			return row, units
		}
	}
	return nil, nil
}

// parsePrice interprets one price cell. ".." and empty cells are the
// pink sheet's missing markers; anything else unparseable is also
// treated as missing rather than failing the run, and reported as
// malformed so the reader can log how many cells were cleaned.
func parsePrice(cell string) (price *float64, malformed bool) {
	s := strings.TrimSpace(cell)
	if s == "" || s == ".." {
		return nil, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return nil, true
	}
	return &v, false
}
