package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds the full pipeline configuration loaded from environment
// variables or a .env file.
//
// It is returned by Load() and passed explicitly into each component so
// the components stay independently testable; there is no process-wide
// config state.
//
// Example YAML/ENV equivalent:
//
//	RAW_DATA_DIR=./data/raw
//	CACHE_DIR=./data/cache
//	OUTPUT_DIR=./data/output
//	TRADE_START_YEAR=2018
//	TRADE_END_YEAR=2020
//	TRADE_FILE_PREFIX=hs17_
//	COMMODITY_PRICES_FILE=cmo_monthly_prices.csv
//	COMMODITY_START=2018-01
type Config struct {
	Paths     PathsConfig     // where raw, cached, and output files live
	Trade     TradeConfig     // yearly trade file settings
	Commodity CommodityConfig // commodity price series settings
}

// PathsConfig holds the three folder paths the pipeline works with.
type PathsConfig struct {
	RawDataDir string // manually downloaded input files
	CacheDir   string // per-year intermediate cache files
	OutputDir  string // final CSV tables for the chart service
}

// TradeConfig selects the yearly BACI files to process.
//
// Fields:
//   - StartYear, EndYear: inclusive year range; one raw file per year.
//   - FilePrefix: raw file naming convention, "hs17_" + year + ".csv".
type TradeConfig struct {
	StartYear  int
	EndYear    int
	FilePrefix string
}

// CommodityConfig selects the commodity price input.
//
// Fields:
//   - PricesFile: CSV export of the World Bank monthly pink sheet,
//     relative to RawDataDir.
//   - Start: first period (YYYY-MM) kept in the price chart output.
type CommodityConfig struct {
	PricesFile string
	Start      string
}

// Load reads configuration from a .env file (if present) and the
// environment, applying defaults first.
//
// Precedence (from lowest to highest):
//  1. Defaults set in this function.
//  2. Values from .env file (if present).
//  3. Environment variables.
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("RAW_DATA_DIR", "./data/raw")
	v.SetDefault("CACHE_DIR", "./data/cache")
	v.SetDefault("OUTPUT_DIR", "./data/output")
	v.SetDefault("TRADE_START_YEAR", 2018)
	v.SetDefault("TRADE_END_YEAR", 2020)
	v.SetDefault("TRADE_FILE_PREFIX", "hs17_")
	v.SetDefault("COMMODITY_PRICES_FILE", "cmo_monthly_prices.csv")
	v.SetDefault("COMMODITY_START", "2018-01")

	// Optionally read from .env if present (common in local dev)
	v.SetConfigFile(".env")
	_ = v.ReadInConfig() // ignore error if no .env

	v.AutomaticEnv()

	cfg := Config{
		Paths: PathsConfig{
			RawDataDir: v.GetString("RAW_DATA_DIR"),
			CacheDir:   v.GetString("CACHE_DIR"),
			OutputDir:  v.GetString("OUTPUT_DIR"),
		},
		Trade: TradeConfig{
			StartYear:  v.GetInt("TRADE_START_YEAR"),
			EndYear:    v.GetInt("TRADE_END_YEAR"),
			FilePrefix: v.GetString("TRADE_FILE_PREFIX"),
		},
		Commodity: CommodityConfig{
			PricesFile: v.GetString("COMMODITY_PRICES_FILE"),
			Start:      v.GetString("COMMODITY_START"),
		},
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// validate ensures required fields are present and consistent so the run
// fails at startup instead of partway through a stage.
func (c Config) validate() error {
	var missing []string

	if c.Paths.RawDataDir == "" {
		missing = append(missing, "RAW_DATA_DIR")
	}
	if c.Paths.CacheDir == "" {
		missing = append(missing, "CACHE_DIR")
	}
	if c.Paths.OutputDir == "" {
		missing = append(missing, "OUTPUT_DIR")
	}
	if c.Trade.FilePrefix == "" {
		missing = append(missing, "TRADE_FILE_PREFIX")
	}
	if c.Commodity.PricesFile == "" {
		missing = append(missing, "COMMODITY_PRICES_FILE")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %v", missing)
	}

	if c.Trade.StartYear <= 0 || c.Trade.EndYear <= 0 {
		return fmt.Errorf("trade year range must be positive: %d-%d", c.Trade.StartYear, c.Trade.EndYear)
	}
	if c.Trade.StartYear > c.Trade.EndYear {
		return fmt.Errorf("TRADE_START_YEAR %d after TRADE_END_YEAR %d", c.Trade.StartYear, c.Trade.EndYear)
	}
	return nil
}

// Years lists the configured trade years in ascending order.
func (c Config) Years() []int {
	out := make([]int, 0, c.Trade.EndYear-c.Trade.StartYear+1)
	for y := c.Trade.StartYear; y <= c.Trade.EndYear; y++ {
		out = append(out, y)
	}
	return out
}

// TradeFile returns the raw trade file path for a year, following the
// hs17_{year}.csv naming convention.
func (c Config) TradeFile(year int) string {
	return fmt.Sprintf("%s/%s%d.csv", c.Paths.RawDataDir, c.Trade.FilePrefix, year)
}
