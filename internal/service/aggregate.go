package service

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/guttosm/tradestory/internal/codes"
	"github.com/guttosm/tradestory/internal/domain/models"
)

// Dimension names a grouping axis the aggregator can resolve from a
// trade record through the code tables.
type Dimension string

const (
	DimYear              Dimension = "year"
	DimExporter          Dimension = "exporter"
	DimExporterName      Dimension = "exporter_name"
	DimExporterContinent Dimension = "exporter_continent"
	DimImporter          Dimension = "importer"
	DimImporterName      Dimension = "importer_name"
	DimImporterContinent Dimension = "importer_continent"
	DimProductGroup      Dimension = "product_group"  // detailed commodity group
	DimProductSector     Dimension = "product_sector" // broad BEC sector
)

// RestOfWorld is the label exporters outside the detailed list are
// folded into.
const RestOfWorld = "Rest of the World"

// GroupSpec describes one aggregation request.
//
// Dimensions are resolved in order and form the output key tuple.
// ShareWithin selects the subset of Dimensions that defines the share
// denominator; it defaults to {year} when nil, matching "share of the
// year total".
type GroupSpec struct {
	Dimensions  []Dimension
	ShareWithin []Dimension

	// DetailedExporters, when non-empty, keeps these exporters visible
	// and folds every other exporter's ISO3/name dimensions into
	// RestOfWorld before grouping. Continent stays real.
	DetailedExporters []string

	// ExcludeIntraContinent drops records where exporter and importer
	// share this continent (e.g. "Europe" to remove intra-EU trade).
	ExcludeIntraContinent string

	// AverageYears divides the grouped sums by the number of distinct
	// years in the input and renders the year dimension as "2018-2020".
	AverageYears bool
}

// Aggregator groups trade records along code-table dimensions.
type Aggregator struct {
	tables *codes.Tables
}

func NewAggregator(tables *codes.Tables) *Aggregator {
	return &Aggregator{tables: tables}
}

// Aggregate groups the table per spec and returns summary rows sorted by
// key tuple. Records whose codes cannot be resolved for a requested
// dimension are excluded and counted, never silently included.
func (a *Aggregator) Aggregate(table *models.TradeTable, spec GroupSpec) (*models.AggregateResult, error) {
	if len(spec.Dimensions) == 0 {
		return nil, fmt.Errorf("aggregate: at least one dimension is required")
	}
	shareWithin := spec.ShareWithin
	if shareWithin == nil {
		shareWithin = []Dimension{DimYear}
	}
	for _, d := range shareWithin {
		if !dimIn(spec.Dimensions, d) {
			return nil, fmt.Errorf("aggregate: share dimension %q not among grouping dimensions", d)
		}
	}

	yearLabel := ""
	numYears := 1
	if spec.AverageYears {
		yearLabel, numYears = yearSpan(table.Records)
	}

	type bucket struct {
		key      []string
		value    float64
		quantity float64
	}
	buckets := make(map[string]*bucket)
	result := &models.AggregateResult{}

	for _, rec := range table.Records {
		if spec.ExcludeIntraContinent != "" {
			expC, ok1 := a.continent(rec.Exporter)
			impC, ok2 := a.continent(rec.Importer)
			if !ok1 || !ok2 {
				result.Unmapped++
				continue
			}
			if expC == spec.ExcludeIntraContinent && impC == spec.ExcludeIntraContinent {
				continue
			}
		}

		key := make([]string, len(spec.Dimensions))
		ok := true
		for i, d := range spec.Dimensions {
			v, resolved := a.resolve(rec, d, spec, yearLabel)
			if !resolved {
				ok = false
				break
			}
			key[i] = v
		}
		if !ok {
			result.Unmapped++
			continue
		}

		id := joinKey(key)
		b, exists := buckets[id]
		if !exists {
			b = &bucket{key: key}
			buckets[id] = b
		}
		b.value += rec.Value
		b.quantity += rec.Quantity
	}

	// Share denominators: totals over the ShareWithin sub-key.
	shareIdx := make([]int, 0, len(shareWithin))
	for i, d := range spec.Dimensions {
		if dimIn(shareWithin, d) {
			shareIdx = append(shareIdx, i)
		}
	}
	totals := make(map[string]float64)
	for _, b := range buckets {
		totals[subKey(b.key, shareIdx)] += b.value
	}

	for _, b := range buckets {
		value := b.value
		quantity := b.quantity
		if spec.AverageYears && numYears > 1 {
			value = round4(value / float64(numYears))
			quantity = round4(quantity / float64(numYears))
		}

		share := math.NaN()
		if total := totals[subKey(b.key, shareIdx)]; total != 0 {
			share = b.value / total
		}

		result.Rows = append(result.Rows, models.AggregateRow{
			Key:      b.key,
			Value:    value,
			Quantity: quantity,
			Share:    share,
		})
	}

	sort.Slice(result.Rows, func(i, j int) bool {
		return lessKey(result.Rows[i].Key, result.Rows[j].Key)
	})
	return result, nil
}

// resolve maps one record onto one dimension value through the code
// tables. A false return means the record must be excluded and counted.
func (a *Aggregator) resolve(rec models.TradeRecord, d Dimension, spec GroupSpec, yearLabel string) (string, bool) {
	folded := len(spec.DetailedExporters) > 0 && !in(spec.DetailedExporters, rec.Exporter)

	switch d {
	case DimYear:
		if spec.AverageYears {
			return yearLabel, true
		}
		return strconv.Itoa(rec.Year), true
	case DimExporter:
		if folded {
			return RestOfWorld, true
		}
		return rec.Exporter, true
	case DimExporterName:
		if folded {
			return RestOfWorld, true
		}
		c, ok := a.tables.Countries.ByISO3(rec.Exporter)
		return c.Name, ok
	case DimExporterContinent:
		return a.continent(rec.Exporter)
	case DimImporter:
		return rec.Importer, true
	case DimImporterName:
		c, ok := a.tables.Countries.ByISO3(rec.Importer)
		return c.Name, ok
	case DimImporterContinent:
		return a.continent(rec.Importer)
	case DimProductGroup:
		return a.tables.Products.Group(rec.ProductCode)
	case DimProductSector:
		return a.tables.Products.Sector(rec.ProductCode)
	default:
		return "", false
	}
}

func (a *Aggregator) continent(iso3 string) (string, bool) {
	c, ok := a.tables.Countries.ByISO3(iso3)
	if !ok || c.Continent == "" {
		return "", false
	}
	return c.Continent, true
}

// yearSpan renders the distinct-year range of the input, e.g.
// "2018-2020", or a single year as "2018".
func yearSpan(records []models.TradeRecord) (string, int) {
	years := make(map[int]struct{})
	minY, maxY := 0, 0
	for _, r := range records {
		years[r.Year] = struct{}{}
		if minY == 0 || r.Year < minY {
			minY = r.Year
		}
		if r.Year > maxY {
			maxY = r.Year
		}
	}
	if len(years) <= 1 {
		return strconv.Itoa(minY), 1
	}
	return fmt.Sprintf("%d-%d", minY, maxY), len(years)
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

func dimIn(set []Dimension, d Dimension) bool {
	for _, v := range set {
		if v == d {
			return true
		}
	}
	return false
}

func in(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

// joinKey renders a key tuple with an unprintable separator so values
// containing commas cannot collide.
func joinKey(key []string) string {
	out := ""
	for i, k := range key {
		if i > 0 {
			out += "\x1f"
		}
		out += k
	}
	return out
}

func subKey(key []string, idx []int) string {
	parts := make([]string, len(idx))
	for i, j := range idx {
		parts[i] = key[j]
	}
	return joinKey(parts)
}

func lessKey(a, b []string) bool {
	for i := range a {
		if i >= len(b) {
			return false
		}
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}
