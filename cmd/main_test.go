package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/guttosm/tradestory/config"
	"github.com/guttosm/tradestory/internal/domain/dto"
)

func writeFixture(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

// testConfig lays out a complete raw data directory for one trade year
// and returns a config pointing at it.
func testConfig(t *testing.T) config.Config {
	t.Helper()
	raw := t.TempDir()

	writeFixture(t, raw, "country_codes.csv", `country_code,iso_3digit_alpha,country_name,continent
643,RUS,Russia,Europe
804,UKR,Ukraine,Europe
818,EGY,Egypt,Africa
566,NGA,Nigeria,Africa
251,FRA,France,Europe
`)
	writeFixture(t, raw, "product_codes.csv", `code,bec
100111,111
100310,111
270900,31
`)
	writeFixture(t, raw, "hs17_2018.csv", `t,i,j,k,v,q
2018,643,818,100111,100,50
2018,804,818,100111,50,25
2018,251,818,100111,50,10
2018,643,566,100310,40,20
2018,643,251,270900,300,60
`)
	writeFixture(t, raw, "cmo_monthly_prices.csv", `World Bank Commodity Price Data (The Pink Sheet),,,
,,,
,"Wheat, US HRW",Maize,Sunflower oil
,($/mt),($/mt),($/mt)
2018M01,210.1,155.2,..
2018M02,215,158,803
`)

	return config.Config{
		Paths: config.PathsConfig{
			RawDataDir: raw,
			CacheDir:   t.TempDir(),
			OutputDir:  t.TempDir(),
		},
		Trade:     config.TradeConfig{StartYear: 2018, EndYear: 2018, FilePrefix: "hs17_"},
		Commodity: config.CommodityConfig{PricesFile: "cmo_monthly_prices.csv", Start: "2018-01"},
	}
}

func TestRun_All(t *testing.T) {
	cfg := testConfig(t)

	if err := run(context.Background(), cfg, "all", "test-run"); err != nil {
		t.Fatalf("run: %v", err)
	}

	wantFiles := []string{
		dto.FileCommodityExportsShare,
		dto.FileExportsToAfrica,
		dto.FileExportsAfricaZoom,
		dto.FileToAfricanCountries,
		dto.FileCategories,
		dto.FileCategoriesCountry,
		dto.FileCommodityExploreBar,
		dto.FileWheat,
		dto.FileBarley,
		dto.FileCommodityPrices,
		dto.FileImportCost,
	}
	for _, name := range wantFiles {
		if _, err := os.Stat(filepath.Join(cfg.Paths.OutputDir, name)); err != nil {
			t.Errorf("missing output %s: %v", name, err)
		}
	}

	data, err := os.ReadFile(filepath.Join(cfg.Paths.OutputDir, dto.FileExportsToAfrica))
	if err != nil {
		t.Fatalf("read exports table: %v", err)
	}
	if !strings.Contains(string(data), "Russia") {
		t.Fatalf("exports table misses Russia rows:\n%s", data)
	}
}

func TestRun_TradeBuildsCache(t *testing.T) {
	cfg := testConfig(t)

	if err := run(context.Background(), cfg, "trade", "test-run"); err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.CacheDir, "trade_2018.sqlite")); err != nil {
		t.Fatalf("cache file not written: %v", err)
	}
}

func TestRun_MissingTradeFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.Trade.EndYear = 2019 // hs17_2019.csv does not exist

	err := run(context.Background(), cfg, "story", "test-run")
	if err == nil || !strings.Contains(err.Error(), "hs17_2019.csv") {
		t.Fatalf("want missing file error, got %v", err)
	}
}

func TestRun_UnknownMode(t *testing.T) {
	cfg := testConfig(t)

	err := run(context.Background(), cfg, "bogus", "test-run")
	if err == nil || !strings.Contains(err.Error(), "unknown mode") {
		t.Fatalf("want unknown mode error, got %v", err)
	}
}
