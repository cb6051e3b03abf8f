package ingestion

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/guttosm/tradestory/internal/codes"
	"github.com/guttosm/tradestory/internal/domain/models"
	"github.com/guttosm/tradestory/internal/logger"
	"github.com/guttosm/tradestory/internal/storage"
)

// YearFile pairs a trade year with its raw CSV path, following the
// hs17_{year}.csv naming convention.
type YearFile struct {
	Year int
	Path string
}

// Filter restricts which trade records are kept while reading. Empty
// sets mean "keep all".
type Filter struct {
	ProductCodes       []string // keep only these HS6 codes
	Countries          []string // both exporter and importer ISO3 must be listed
	ImporterContinents []string // importer's continent must be listed
}

func (f Filter) keep(r models.TradeRecord, countries *codes.CountryTable) bool {
	if len(f.ProductCodes) > 0 && !contains(f.ProductCodes, r.ProductCode) {
		return false
	}
	if len(f.Countries) > 0 && (!contains(f.Countries, r.Exporter) || !contains(f.Countries, r.Importer)) {
		return false
	}
	if len(f.ImporterContinents) > 0 {
		c, ok := countries.ByISO3(r.Importer)
		if !ok || !contains(f.ImporterContinents, c.Continent) {
			return false
		}
	}
	return true
}

// Fingerprint is a canonical rendering of the filter, stored with each
// cache file so a cache built under a different filter never serves.
func (f Filter) Fingerprint() string {
	products := append([]string(nil), f.ProductCodes...)
	countries := append([]string(nil), f.Countries...)
	continents := append([]string(nil), f.ImporterContinents...)
	sort.Strings(products)
	sort.Strings(countries)
	sort.Strings(continents)
	return fmt.Sprintf("v1|products=%s|countries=%s|importer_continents=%s",
		strings.Join(products, ","), strings.Join(countries, ","), strings.Join(continents, ","))
}

func contains(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

// TradeReader loads yearly raw trade files into a single filtered table,
// serving repeated years from the intermediate cache when possible.
type TradeReader struct {
	countries *codes.CountryTable
	cache     storage.TradeCache
	runID     string
}

// NewTradeReader wires the reader. Pass storage.NopCache{} to bypass
// caching entirely.
func NewTradeReader(countries *codes.CountryTable, cache storage.TradeCache, runID string) *TradeReader {
	return &TradeReader{countries: countries, cache: cache, runID: runID}
}

// Read loads the given (year, path) pairs, restricted by the filter, and
// returns one merged table. Each file must exist before any is read so a
// failed run leaves nothing half-processed.
//
// Cache behavior: a year whose cache file matches the filter fingerprint
// is served from the cache without touching the raw file. Cache read or
// write failures degrade to the raw path with a warning; they never fail
// the run.
func (r *TradeReader) Read(ctx context.Context, files []YearFile, filter Filter) (*models.TradeTable, error) {
	var missing []string
	for _, yf := range files {
		if _, err := os.Stat(yf.Path); err != nil {
			if os.IsNotExist(err) {
				missing = append(missing, filepath.Base(yf.Path))
				continue
			}
			return nil, fmt.Errorf("stat %s: %w", yf.Path, err)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required files: %s", strings.Join(missing, ", "))
	}

	fingerprint := filter.Fingerprint()
	merged := &models.TradeTable{}
	seen := make(map[models.TradeKey]int)

	for _, yf := range files {
		start := time.Now()
		base := filepath.Base(yf.Path)

		table, fromCache, err := r.readYear(ctx, yf, fingerprint, filter)
		if err != nil {
			return nil, fmt.Errorf("file %s: %w", base, err)
		}

		for _, rec := range table.Records {
			key := rec.Key()
			if prev, dup := seen[key]; dup {
				if merged.Records[prev].Value != rec.Value || merged.Records[prev].Quantity != rec.Quantity {
					return nil, fmt.Errorf("file %s: %w: %s", base, ErrConflictingDuplicate, key)
				}
				merged.Stats.DuplicatesMerged++
				continue
			}
			seen[key] = len(merged.Records)
			merged.Records = append(merged.Records, rec)
		}
		merged.Stats.Add(table.Stats)

		logger.L().Info().
			Str("file", base).
			Int("year", yf.Year).
			Int("rows", len(table.Records)).
			Bool("from_cache", fromCache).
			Dur("elapsed", time.Since(start)).
			Msg("trade file done")
	}

	return merged, nil
}

func (r *TradeReader) readYear(ctx context.Context, yf YearFile, fingerprint string, filter Filter) (*models.TradeTable, bool, error) {
	cached, hit, err := r.cache.Load(ctx, yf.Year, fingerprint)
	if err != nil {
		logger.L().Warn().Int("year", yf.Year).Err(err).Msg("cache read failed, falling back to raw file")
	} else if hit {
		return cached, true, nil
	}

	table, err := parseTradeFile(ctx, yf.Path, r.countries, filter)
	if err != nil {
		return nil, false, err
	}

	if err := r.cache.Store(ctx, yf.Year, fingerprint, filepath.Base(yf.Path), r.runID, table); err != nil {
		logger.L().Warn().Int("year", yf.Year).Err(err).Msg("cache write failed")
	}
	return table, false, nil
}
