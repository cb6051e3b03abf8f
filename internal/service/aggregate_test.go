package service

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guttosm/tradestory/internal/codes"
	"github.com/guttosm/tradestory/internal/domain/models"
)

const countryFixture = `country_code,iso_3digit_alpha,country_name,continent
643,RUS,Russia,Europe
804,UKR,Ukraine,Europe
818,EGY,Egypt,Africa
566,NGA,Nigeria,Africa
251,FRA,France,Europe
156,CHN,China,Asia
`

const productFixture = `code,bec
100111,111
100310,111
270900,31
`

func testTables(t *testing.T) *codes.Tables {
	t.Helper()
	dir := t.TempDir()
	for name, content := range map[string]string{
		"country_codes.csv": countryFixture,
		"product_codes.csv": productFixture,
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}
	tables, err := codes.Load(dir)
	require.NoError(t, err)
	return tables
}

func rec(year int, exp, imp, product string, value, quantity float64) models.TradeRecord {
	return models.TradeRecord{Year: year, Exporter: exp, Importer: imp, ProductCode: product, Value: value, Quantity: quantity}
}

func TestAggregate_SumsAndSort(t *testing.T) {
	agg := NewAggregator(testTables(t))
	table := &models.TradeTable{Records: []models.TradeRecord{
		rec(2018, "RUS", "EGY", "100111", 100, 50),
		rec(2018, "RUS", "NGA", "100310", 50, 20),
		rec(2018, "UKR", "EGY", "100111", 50, 25),
		rec(2019, "RUS", "EGY", "100111", 200, 100),
	}}

	res, err := agg.Aggregate(table, GroupSpec{Dimensions: []Dimension{DimYear, DimExporter}})
	require.NoError(t, err)
	require.Len(t, res.Rows, 3)
	assert.Zero(t, res.Unmapped)

	assert.Equal(t, []string{"2018", "RUS"}, res.Rows[0].Key)
	assert.Equal(t, 150.0, res.Rows[0].Value)
	assert.Equal(t, 70.0, res.Rows[0].Quantity)

	assert.Equal(t, []string{"2018", "UKR"}, res.Rows[1].Key)
	assert.Equal(t, 50.0, res.Rows[1].Value)

	assert.Equal(t, []string{"2019", "RUS"}, res.Rows[2].Key)
	assert.Equal(t, 200.0, res.Rows[2].Value)
}

func TestAggregate_SharesSumToOne(t *testing.T) {
	agg := NewAggregator(testTables(t))
	table := &models.TradeTable{Records: []models.TradeRecord{
		rec(2018, "RUS", "EGY", "100111", 100, 50),
		rec(2018, "UKR", "EGY", "100111", 50, 25),
		rec(2018, "FRA", "EGY", "100310", 25, 5),
		rec(2019, "RUS", "EGY", "100111", 200, 100),
		rec(2019, "CHN", "NGA", "270900", 300, 60),
	}}

	res, err := agg.Aggregate(table, GroupSpec{Dimensions: []Dimension{DimYear, DimExporter}})
	require.NoError(t, err)

	sums := make(map[string]float64)
	for _, row := range res.Rows {
		sums[row.Key[0]] += row.Share
	}
	for year, sum := range sums {
		assert.InDelta(t, 1.0, sum, 1e-9, "shares for year %s", year)
	}
}

func TestAggregate_ZeroDenominatorShareIsNaN(t *testing.T) {
	agg := NewAggregator(testTables(t))
	table := &models.TradeTable{Records: []models.TradeRecord{
		rec(2018, "RUS", "EGY", "100111", 0, 10),
		rec(2018, "UKR", "EGY", "100111", 0, 5),
	}}

	res, err := agg.Aggregate(table, GroupSpec{Dimensions: []Dimension{DimYear, DimExporter}})
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	for _, row := range res.Rows {
		assert.True(t, math.IsNaN(row.Share), "key %v", row.Key)
	}
}

func TestAggregate_UnresolvedCodesCounted(t *testing.T) {
	agg := NewAggregator(testTables(t))
	table := &models.TradeTable{Records: []models.TradeRecord{
		rec(2018, "RUS", "EGY", "100111", 100, 50),
		rec(2018, "RUS", "EGY", "999999", 40, 10), // no commodity group
	}}

	res, err := agg.Aggregate(table, GroupSpec{Dimensions: []Dimension{DimYear, DimProductGroup}})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, 1, res.Unmapped)
	assert.Equal(t, 100.0, res.Rows[0].Value, "excluded record must not contribute")
}

func TestAggregate_DetailedExportersFold(t *testing.T) {
	agg := NewAggregator(testTables(t))
	table := &models.TradeTable{Records: []models.TradeRecord{
		rec(2018, "RUS", "EGY", "100111", 100, 50),
		rec(2018, "FRA", "EGY", "100111", 30, 10),
		rec(2018, "CHN", "EGY", "100111", 20, 5),
	}}

	res, err := agg.Aggregate(table, GroupSpec{
		Dimensions:        []Dimension{DimYear, DimExporterName},
		DetailedExporters: []string{"RUS", "UKR"},
	})
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)

	byName := make(map[string]models.AggregateRow)
	for _, row := range res.Rows {
		byName[row.Key[1]] = row
	}
	assert.Equal(t, 50.0, byName[RestOfWorld].Value)
	assert.Equal(t, 100.0, byName["Russia"].Value)
}

func TestAggregate_ExcludeIntraContinent(t *testing.T) {
	agg := NewAggregator(testTables(t))
	table := &models.TradeTable{Records: []models.TradeRecord{
		rec(2018, "RUS", "FRA", "100111", 999, 99), // intra-Europe, dropped
		rec(2018, "RUS", "EGY", "100111", 100, 50),
		rec(2018, "CHN", "FRA", "100111", 40, 10), // Asia to Europe, kept
	}}

	res, err := agg.Aggregate(table, GroupSpec{
		Dimensions:            []Dimension{DimYear, DimExporter},
		ExcludeIntraContinent: "Europe",
	})
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Zero(t, res.Unmapped, "intra-continent drops are not unmapped")

	total := 0.0
	for _, row := range res.Rows {
		total += row.Value
	}
	assert.Equal(t, 140.0, total)
}

func TestAggregate_AverageYears(t *testing.T) {
	agg := NewAggregator(testTables(t))
	table := &models.TradeTable{Records: []models.TradeRecord{
		rec(2018, "RUS", "EGY", "100111", 100, 50),
		rec(2019, "RUS", "EGY", "100111", 200, 70),
		rec(2020, "RUS", "EGY", "100111", 300, 90),
	}}

	res, err := agg.Aggregate(table, GroupSpec{
		Dimensions:   []Dimension{DimYear, DimExporter},
		AverageYears: true,
	})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)

	row := res.Rows[0]
	assert.Equal(t, []string{"2018-2020", "RUS"}, row.Key)
	assert.Equal(t, 200.0, row.Value)
	assert.Equal(t, 70.0, row.Quantity)
	assert.InDelta(t, 1.0, row.Share, 1e-9)
}

func TestAggregate_AverageYearsSingleYearLabel(t *testing.T) {
	agg := NewAggregator(testTables(t))
	table := &models.TradeTable{Records: []models.TradeRecord{
		rec(2018, "RUS", "EGY", "100111", 100, 50),
	}}

	res, err := agg.Aggregate(table, GroupSpec{
		Dimensions:   []Dimension{DimYear, DimExporter},
		AverageYears: true,
	})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "2018", res.Rows[0].Key[0])
	assert.Equal(t, 100.0, res.Rows[0].Value)
}

func TestAggregate_ShareWithinSubKey(t *testing.T) {
	agg := NewAggregator(testTables(t))
	table := &models.TradeTable{Records: []models.TradeRecord{
		rec(2018, "RUS", "EGY", "100111", 75, 10), // Wheat
		rec(2018, "UKR", "EGY", "100111", 25, 10),
		rec(2018, "RUS", "EGY", "100310", 40, 10), // Barley
	}}

	res, err := agg.Aggregate(table, GroupSpec{
		Dimensions:  []Dimension{DimYear, DimExporter, DimProductGroup},
		ShareWithin: []Dimension{DimYear, DimProductGroup},
	})
	require.NoError(t, err)

	shares := make(map[string]float64) // exporter|group
	for _, row := range res.Rows {
		shares[row.Key[1]+"|"+row.Key[2]] = row.Share
	}
	assert.InDelta(t, 0.75, shares["RUS|"+codes.GroupWheat], 1e-9)
	assert.InDelta(t, 0.25, shares["UKR|"+codes.GroupWheat], 1e-9)
	assert.InDelta(t, 1.0, shares["RUS|"+codes.GroupBarley], 1e-9)
}

func TestAggregate_SpecValidation(t *testing.T) {
	agg := NewAggregator(testTables(t))
	table := &models.TradeTable{}

	_, err := agg.Aggregate(table, GroupSpec{})
	assert.Error(t, err)

	_, err = agg.Aggregate(table, GroupSpec{
		Dimensions:  []Dimension{DimYear},
		ShareWithin: []Dimension{DimExporter},
	})
	assert.Error(t, err)
}
