// Package app wires the pipeline components together and runs the
// requested stage. Control flow is strictly linear: code tables →
// readers → aggregator → story builder → output files. Nothing runs
// concurrently and no component mutates another's inputs.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/guttosm/tradestory/config"
	"github.com/guttosm/tradestory/internal/codes"
	"github.com/guttosm/tradestory/internal/domain/models"
	"github.com/guttosm/tradestory/internal/ingestion"
	"github.com/guttosm/tradestory/internal/logger"
	"github.com/guttosm/tradestory/internal/service"
	"github.com/guttosm/tradestory/internal/storage"
)

// commodityOptions selects and renames the pink sheet series the story
// uses. The source file names wheat by market ("Wheat, US HRW"); the
// charts just say "Wheat".
var commodityOptions = ingestion.CommodityOptions{
	Commodities: []string{"Sunflower oil", "Maize", "Wheat, US HRW", "Palm oil"},
	Renames:     map[string]string{"Wheat, US HRW": "Wheat"},
}

// Pipeline holds everything one run needs. Build it with New; every
// dependency comes in through the config, nothing is process-global.
type Pipeline struct {
	cfg    config.Config
	runID  string
	tables *codes.Tables
	reader *ingestion.TradeReader
	writer *storage.OutputWriter
}

// New loads the code tables and wires the reader, cache, and writer.
// A cache directory that cannot be created degrades to no caching.
func New(cfg config.Config, runID string) (*Pipeline, error) {
	tables, err := codes.Load(cfg.Paths.RawDataDir)
	if err != nil {
		return nil, err
	}

	var cache storage.TradeCache
	if c, err := storage.NewSQLiteCache(cfg.Paths.CacheDir); err != nil {
		logger.L().Warn().Err(err).Msg("cache unavailable, running without it")
		cache = storage.NopCache{}
	} else {
		cache = c
	}

	writer, err := storage.NewOutputWriter(cfg.Paths.OutputDir)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		cfg:    cfg,
		runID:  runID,
		tables: tables,
		reader: ingestion.NewTradeReader(tables.Countries, cache, runID),
		writer: writer,
	}, nil
}

// yearFiles lists the configured (year, path) pairs.
func (p *Pipeline) yearFiles() []ingestion.YearFile {
	var files []ingestion.YearFile
	for _, y := range p.cfg.Years() {
		files = append(files, ingestion.YearFile{Year: y, Path: p.cfg.TradeFile(y)})
	}
	return files
}

// IngestTrade reads every configured year (building the per-year caches
// as a side effect) and reports the combined rejection counters.
func (p *Pipeline) IngestTrade(ctx context.Context) error {
	table, err := p.reader.Read(ctx, p.yearFiles(), ingestion.Filter{})
	if err != nil {
		return fmt.Errorf("trade ingestion: %w", err)
	}
	logReadStats("trade ingestion done", len(table.Records), table.Stats)
	return nil
}

// BuildCommodities writes the commodity price chart on its own.
func (p *Pipeline) BuildCommodities() error {
	series, start, err := p.readCommodities()
	if err != nil {
		return err
	}
	t := service.CommodityPricesTable(series, start)
	if err := p.writer.Write(t); err != nil {
		return fmt.Errorf("write %s: %w", t.Name, err)
	}
	logger.L().Info().Str("table", t.Name).Int("rows", len(t.Rows)).Msg("commodity chart written")
	return nil
}

// BuildStory runs the full pipeline and writes every output table.
func (p *Pipeline) BuildStory(ctx context.Context) error {
	world, err := p.reader.Read(ctx, p.yearFiles(), ingestion.Filter{})
	if err != nil {
		return fmt.Errorf("world trade: %w", err)
	}
	logReadStats("world trade read", len(world.Records), world.Stats)

	africa, err := p.reader.Read(ctx, p.yearFiles(), ingestion.Filter{ImporterContinents: []string{"Africa"}})
	if err != nil {
		return fmt.Errorf("africa trade: %w", err)
	}
	logReadStats("africa trade read", len(africa.Records), africa.Stats)

	series, start, err := p.readCommodities()
	if err != nil {
		return err
	}

	builder := service.NewStoryBuilder(p.tables)
	tables, stats, err := builder.Build(world, africa, series, start)
	if err != nil {
		return fmt.Errorf("story build: %w", err)
	}

	if err := p.writer.WriteAll(tables); err != nil {
		return fmt.Errorf("write outputs: %w", err)
	}

	event := logger.L().Info()
	if stats.Unmapped > 0 || stats.Omitted > 0 {
		event = logger.L().Warn()
	}
	event.
		Int("tables", len(tables)).
		Int("unmapped", stats.Unmapped).
		Int("omitted", stats.Omitted).
		Msg("story build done")
	return nil
}

func (p *Pipeline) readCommodities() (*models.CommoditySeries, time.Time, error) {
	path := fmt.Sprintf("%s/%s", p.cfg.Paths.RawDataDir, p.cfg.Commodity.PricesFile)
	series, err := ingestion.ReadCommodityPrices(path, commodityOptions)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("commodity prices: %w", err)
	}
	start, err := time.Parse("2006-01", p.cfg.Commodity.Start)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("COMMODITY_START %q: %w", p.cfg.Commodity.Start, err)
	}
	return series, start, nil
}

func logReadStats(msg string, rows int, s models.ReadStats) {
	event := logger.L().Info()
	if s.RejectedValues > 0 || s.UnmappedCountry > 0 {
		event = logger.L().Warn()
	}
	event.
		Int("rows", rows).
		Int("rejected_values", s.RejectedValues).
		Int("unmapped_country", s.UnmappedCountry).
		Int("filtered_out", s.FilteredOut).
		Int("duplicates_merged", s.DuplicatesMerged).
		Msg(msg)
}
