// Package storage implements the intermediate trade cache: one SQLite
// file per processed year holding the filtered trade rows. The cache is
// an optimization only; its absence or loss never changes computed
// results, only run time.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/guttosm/tradestory/internal/domain/models"
)

// TradeCache defines the contract for the per-year intermediate cache.
type TradeCache interface {
	// Load returns the cached filtered table for a year if one exists
	// and was produced under the same filter fingerprint. The second
	// return is false on a miss.
	Load(ctx context.Context, year int, fingerprint string) (*models.TradeTable, bool, error)

	// Store atomically replaces the cached table for a year.
	Store(ctx context.Context, year int, fingerprint, sourceFile, runID string, table *models.TradeTable) error
}

// SQLiteCache stores each year's filtered table in dir/trade_{year}.sqlite.
type SQLiteCache struct {
	dir string
}

// NewSQLiteCache creates the cache directory if needed.
func NewSQLiteCache(dir string) (*SQLiteCache, error) {
	if dir == "" {
		return nil, fmt.Errorf("cache: dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: create dir: %w", err)
	}
	return &SQLiteCache{dir: dir}, nil
}

func (c *SQLiteCache) path(year int) string {
	return filepath.Join(c.dir, fmt.Sprintf("trade_%d.sqlite", year))
}

func (c *SQLiteCache) open(year int) (*sql.DB, error) {
	db, err := sql.Open("sqlite", c.path(year))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Load reads the cached table back. A fingerprint mismatch (the cache
// was built under a different filter) reports a miss so the caller
// re-reads the raw file.
func (c *SQLiteCache) Load(ctx context.Context, year int, fingerprint string) (*models.TradeTable, bool, error) {
	if _, err := os.Stat(c.path(year)); err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	db, err := c.open(year)
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = db.Close() }()

	var stored string
	var stats models.ReadStats
	err = db.QueryRowContext(ctx, `
		SELECT fingerprint, rejected_values, unmapped_country, filtered_out, duplicates_merged
		FROM cache_meta WHERE id = 1
	`).Scan(&stored, &stats.RejectedValues, &stats.UnmappedCountry, &stats.FilteredOut, &stats.DuplicatesMerged)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}
	if stored != fingerprint {
		return nil, false, nil
	}

	// seq preserves insertion order so a cache hit returns the exact
	// table a raw read would, not just the same row set.
	rows, err := db.QueryContext(ctx, `
		SELECT year, exporter, importer, product_code, value, quantity
		FROM trade_records
		ORDER BY seq
	`)
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = rows.Close() }()

	table := &models.TradeTable{Stats: stats}
	for rows.Next() {
		var r models.TradeRecord
		if err := rows.Scan(&r.Year, &r.Exporter, &r.Importer, &r.ProductCode, &r.Value, &r.Quantity); err != nil {
			return nil, false, err
		}
		table.Records = append(table.Records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	return table, true, nil
}

// Store rewrites the year's cache file in one transaction: existing rows
// and metadata are replaced, never merged.
func (c *SQLiteCache) Store(ctx context.Context, year int, fingerprint, sourceFile, runID string, table *models.TradeTable) error {
	db, err := c.open(year)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM trade_records`); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM cache_meta`); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trade_records (seq, year, exporter, importer, product_code, value, quantity)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	for i, r := range table.Records {
		if _, err = stmt.ExecContext(ctx, i, r.Year, r.Exporter, r.Importer, r.ProductCode, r.Value, r.Quantity); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO cache_meta (
			id, fingerprint, source_file, row_count, run_id, created_at,
			rejected_values, unmapped_country, filtered_out, duplicates_merged
		) VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		fingerprint, sourceFile, len(table.Records), runID, time.Now().UTC().Format(time.RFC3339),
		table.Stats.RejectedValues, table.Stats.UnmappedCountry, table.Stats.FilteredOut, table.Stats.DuplicatesMerged,
	)
	if err != nil {
		return err
	}

	err = tx.Commit()
	return err
}

func migrate(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS trade_records (
			seq INTEGER NOT NULL,
			year INTEGER NOT NULL,
			exporter TEXT NOT NULL,
			importer TEXT NOT NULL,
			product_code TEXT NOT NULL,
			value REAL NOT NULL,
			quantity REAL NOT NULL,
			PRIMARY KEY (year, exporter, importer, product_code)
		);`,
		`CREATE TABLE IF NOT EXISTS cache_meta (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			fingerprint TEXT NOT NULL,
			source_file TEXT NOT NULL,
			row_count INTEGER NOT NULL,
			run_id TEXT NOT NULL,
			created_at TEXT NOT NULL,
			rejected_values INTEGER NOT NULL DEFAULT 0,
			unmapped_country INTEGER NOT NULL DEFAULT 0,
			filtered_out INTEGER NOT NULL DEFAULT 0,
			duplicates_merged INTEGER NOT NULL DEFAULT 0
		);`,
	}
	for _, statement := range statements {
		if _, err := db.Exec(statement); err != nil {
			return err
		}
	}
	return nil
}

// NopCache is a TradeCache that never hits and never stores. Used when
// the cache directory is unavailable and in tests.
type NopCache struct{}

func (NopCache) Load(context.Context, int, string) (*models.TradeTable, bool, error) {
	return nil, false, nil
}

func (NopCache) Store(context.Context, int, string, string, string, *models.TradeTable) error {
	return nil
}
