package config

import (
	"strings"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Paths.RawDataDir != "./data/raw" {
		t.Errorf("RawDataDir = %q", cfg.Paths.RawDataDir)
	}
	if cfg.Paths.OutputDir != "./data/output" {
		t.Errorf("OutputDir = %q", cfg.Paths.OutputDir)
	}
	if cfg.Trade.StartYear != 2018 || cfg.Trade.EndYear != 2020 {
		t.Errorf("year range = %d-%d", cfg.Trade.StartYear, cfg.Trade.EndYear)
	}
	if cfg.Trade.FilePrefix != "hs17_" {
		t.Errorf("FilePrefix = %q", cfg.Trade.FilePrefix)
	}
	if cfg.Commodity.Start != "2018-01" {
		t.Errorf("Commodity.Start = %q", cfg.Commodity.Start)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("RAW_DATA_DIR", "/srv/raw")
	t.Setenv("TRADE_START_YEAR", "2015")
	t.Setenv("TRADE_END_YEAR", "2016")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Paths.RawDataDir != "/srv/raw" {
		t.Errorf("RawDataDir = %q", cfg.Paths.RawDataDir)
	}
	if cfg.Trade.StartYear != 2015 || cfg.Trade.EndYear != 2016 {
		t.Errorf("year range = %d-%d", cfg.Trade.StartYear, cfg.Trade.EndYear)
	}
}

func TestLoad_InvalidYearRange(t *testing.T) {
	t.Setenv("TRADE_START_YEAR", "2021")
	t.Setenv("TRADE_END_YEAR", "2018")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for inverted year range")
	}
}

func TestValidate_MissingRequired(t *testing.T) {
	cfg := Config{
		Paths:     PathsConfig{RawDataDir: "./data/raw", CacheDir: "./data/cache"},
		Trade:     TradeConfig{StartYear: 2018, EndYear: 2020, FilePrefix: "hs17_"},
		Commodity: CommodityConfig{PricesFile: "cmo_monthly_prices.csv"},
	}

	err := cfg.validate()
	if err == nil || !strings.Contains(err.Error(), "OUTPUT_DIR") {
		t.Fatalf("want missing OUTPUT_DIR error, got %v", err)
	}
}

func TestYears(t *testing.T) {
	cfg := Config{Trade: TradeConfig{StartYear: 2018, EndYear: 2020}}

	got := cfg.Years()
	want := []int{2018, 2019, 2020}
	if len(got) != len(want) {
		t.Fatalf("Years() = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Years() = %v, want %v", got, want)
		}
	}
}

func TestTradeFile(t *testing.T) {
	cfg := Config{
		Paths: PathsConfig{RawDataDir: "/data/raw"},
		Trade: TradeConfig{FilePrefix: "hs17_"},
	}
	if got := cfg.TradeFile(2019); got != "/data/raw/hs17_2019.csv" {
		t.Fatalf("TradeFile = %q", got)
	}
}
