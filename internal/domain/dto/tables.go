// Package dto defines the output tables handed to the chart-rendering
// service. Column names and file names are fixed by the visualization
// schema (an external collaborator requirement) and may differ from the
// internal domain models.
package dto

// Output file names under the configured output directory.
const (
	FileCommodityExportsShare = "commodity_exports_share.csv"
	FileExportsToAfrica       = "exports_to_africa.csv"
	FileExportsAfricaZoom     = "exports_africa_zoom.csv"
	FileToAfricanCountries    = "ukr_rus_to_african_countries.csv"
	FileCategories            = "rus_ukr_categories.csv"
	FileCategoriesCountry     = "rus_ukr_categories_country.csv"
	FileCommodityExploreBar   = "commodity_explore_bar.csv"
	FileWheat                 = "wheat.csv"
	FileBarley                = "barley.csv"
	FileCommodityPrices       = "commodity_prices.csv"
	FileImportCost            = "import_cost.csv"
)

// Table is one fully rendered output table: a file name, the exact
// column header the chart service expects, and string-rendered rows.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string
}

// Append adds one row. The row length must match the header; a mismatch
// there is an inter-stage schema error the story builder checks before
// writing.
func (t *Table) Append(row ...string) {
	t.Rows = append(t.Rows, row)
}
