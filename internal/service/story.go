package service

import (
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/guttosm/tradestory/internal/codes"
	"github.com/guttosm/tradestory/internal/domain/dto"
	"github.com/guttosm/tradestory/internal/domain/models"
)

// detailedExporters are the exporters the story keeps visible; everyone
// else folds into RestOfWorld.
var detailedExporters = []string{"RUS", "UKR"}

// keyCommodityGroups are the commodity groups shown on the export-share
// slide.
var keyCommodityGroups = []string{
	codes.GroupBarley,
	codes.GroupMaize,
	codes.GroupPetroleum,
	codes.GroupSunflowerOil,
	codes.GroupWheat,
	codes.GroupCoal,
	codes.GroupSteel,
	codes.GroupPotash,
}

// sourceOrder fixes the row ordering of the flow charts.
var sourceOrder = map[string]int{
	"Ukraine": 1,
	"Russia":  2,
	"Europe":  3,
	"America": 4,
	"Asia":    5,
	"Oceania": 6,
}

// categoryOrder fixes the commodity ordering of the category charts.
var categoryOrder = map[string]int{
	codes.GroupWheat:        1,
	codes.GroupSunflowerOil: 2,
	codes.GroupCoal:         3,
	codes.GroupBarley:       4,
	codes.GroupMaize:        5,
	codes.GroupSteel:        6,
	codes.GroupPetroleum:    7,
}

// StoryStats counts rows dropped while assembling the final tables.
type StoryStats struct {
	Unmapped int // records excluded by the aggregator for unresolved codes
	Omitted  int // join keys present on only one side of a story join
}

// StoryBuilder combines aggregator outputs and the commodity series into
// the final tables the chart service consumes. Pure transformation: the
// only rows it drops are join keys absent from one side, and those are
// counted.
type StoryBuilder struct {
	agg    *Aggregator
	tables *codes.Tables
}

func NewStoryBuilder(tables *codes.Tables) *StoryBuilder {
	return &StoryBuilder{agg: NewAggregator(tables), tables: tables}
}

// Build produces every output table from the world trade table (all
// importers), the Africa trade table (African importers only), and the
// monthly commodity series. start bounds the price chart.
func (b *StoryBuilder) Build(world, africa *models.TradeTable, prices *models.CommoditySeries, start time.Time) ([]dto.Table, StoryStats, error) {
	var stats StoryStats
	var tables []dto.Table

	sharesTable, err := b.commodityExportsShare(world, &stats)
	if err != nil {
		return nil, stats, err
	}
	tables = append(tables, sharesTable)

	exports, zoom, err := b.exportsToAfrica(africa, &stats)
	if err != nil {
		return nil, stats, err
	}
	tables = append(tables, exports, zoom)

	toCountries, err := b.toAfricanCountries(africa, &stats)
	if err != nil {
		return nil, stats, err
	}
	tables = append(tables, toCountries)

	categories, err := b.categories(africa, &stats)
	if err != nil {
		return nil, stats, err
	}
	tables = append(tables, categories)

	countryRows, categoriesCountry, err := b.categoriesByCountry(africa, &stats)
	if err != nil {
		return nil, stats, err
	}
	tables = append(tables,
		categoriesCountry,
		commodityExploreBar(countryRows),
		filterCategory(countryRows, codes.GroupWheat, dto.FileWheat),
		filterCategory(countryRows, codes.GroupBarley, dto.FileBarley),
	)

	tables = append(tables, CommodityPricesTable(prices, start))

	cost, err := b.importCost(africa, prices, &stats)
	if err != nil {
		return nil, stats, err
	}
	tables = append(tables, cost)

	return tables, stats, nil
}

// commodityExportsShare builds the export-share slide: Russia's and
// Ukraine's share of world exports per key commodity group, intra-Europe
// trade excluded, averaged over the year range.
func (b *StoryBuilder) commodityExportsShare(world *models.TradeTable, stats *StoryStats) (dto.Table, error) {
	res, err := b.agg.Aggregate(world, GroupSpec{
		Dimensions:            []Dimension{DimYear, DimExporterName, DimProductGroup},
		ShareWithin:           []Dimension{DimYear, DimProductGroup},
		DetailedExporters:     detailedExporters,
		ExcludeIntraContinent: "Europe",
		AverageYears:          true,
	})
	if err != nil {
		return dto.Table{}, err
	}
	stats.Unmapped += res.Unmapped

	russia := b.countryName("RUS")
	ukraine := b.countryName("UKR")

	shares := make(map[string]map[string]float64) // group → exporter name → share
	for _, row := range res.Rows {
		name, group := row.Key[1], row.Key[2]
		if name != russia && name != ukraine {
			continue
		}
		if !in(keyCommodityGroups, group) {
			continue
		}
		if shares[group] == nil {
			shares[group] = make(map[string]float64)
		}
		shares[group][name] = row.Share
	}

	t := dto.Table{
		Name:   dto.FileCommodityExportsShare,
		Header: []string{"commodity", russia, ukraine},
	}
	groups := make([]string, 0, len(shares))
	for g := range shares {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	for _, g := range groups {
		t.Append(g, fmtPercent(shares[g][russia], 1), fmtPercent(shares[g][ukraine], 1))
	}
	return t, nil
}

// flowRow is an intermediate source→target chart row.
type flowRow struct {
	year   string
	source string
	target string
	value  float64
	pct    float64
}

// exportsToAfrica builds the exports-to-Africa flow slide and its
// Russia/Ukraine zoom. Sources outside the detailed exporter list show
// as their continent; the African continent itself is excluded as a
// source so the chart shows external supply only.
func (b *StoryBuilder) exportsToAfrica(africa *models.TradeTable, stats *StoryStats) (dto.Table, dto.Table, error) {
	rows, err := b.flowRows(africa, DimImporterContinent, stats)
	if err != nil {
		return dto.Table{}, dto.Table{}, err
	}

	kept := rows[:0]
	yearTotals := make(map[string]float64)
	for _, r := range rows {
		if r.source == "Africa" {
			continue
		}
		kept = append(kept, r)
		yearTotals[r.year] += r.value
	}
	for i := range kept {
		if total := yearTotals[kept[i].year]; total != 0 {
			kept[i].pct = round2(100 * kept[i].value / total)
		} else {
			kept[i].pct = math.NaN()
		}
	}
	sortFlows(kept)

	exports := dto.Table{
		Name:   dto.FileExportsToAfrica,
		Header: []string{"year", "source", "target", "value", "step_from", "step_to", "pct", "exporter_name"},
	}
	zoom := dto.Table{Name: dto.FileExportsAfricaZoom, Header: exports.Header}

	russia := b.countryName("RUS")
	ukraine := b.countryName("UKR")
	for _, r := range kept {
		row := []string{r.year, r.source, r.target, fmtFloat(r.value), "0", "1", fmtFloat(r.pct), r.source}
		exports.Rows = append(exports.Rows, row)
		if r.source == russia || r.source == ukraine {
			zoom.Rows = append(zoom.Rows, row)
		}
	}
	return exports, zoom, nil
}

// toAfricanCountries builds the per-importing-country flow slide,
// restricted to the detailed exporters.
func (b *StoryBuilder) toAfricanCountries(africa *models.TradeTable, stats *StoryStats) (dto.Table, error) {
	rows, err := b.flowRows(africa, DimImporterName, stats)
	if err != nil {
		return dto.Table{}, err
	}
	sortFlows(rows)

	t := dto.Table{
		Name:   dto.FileToAfricanCountries,
		Header: []string{"year", "source", "target", "value", "step_from", "step_to", "importer_name"},
	}
	russia := b.countryName("RUS")
	ukraine := b.countryName("UKR")
	for _, r := range rows {
		if r.source != russia && r.source != ukraine {
			continue
		}
		t.Append(r.year, r.source, r.target, fmtFloat(r.value), "0", "4", r.target)
	}
	return t, nil
}

// flowRows aggregates the Africa table into source→target rows where the
// target is the given dimension and folded exporters show as their
// continent.
func (b *StoryBuilder) flowRows(africa *models.TradeTable, target Dimension, stats *StoryStats) ([]flowRow, error) {
	res, err := b.agg.Aggregate(africa, GroupSpec{
		Dimensions:        []Dimension{DimYear, DimExporterName, DimExporterContinent, target},
		DetailedExporters: detailedExporters,
		AverageYears:      true,
	})
	if err != nil {
		return nil, err
	}
	stats.Unmapped += res.Unmapped

	merged := make(map[string]*flowRow)
	var order []string
	for _, row := range res.Rows {
		year, name, continent, tgt := row.Key[0], row.Key[1], row.Key[2], row.Key[3]
		source := name
		if source == RestOfWorld {
			source = continent
		}
		id := year + "\x1f" + source + "\x1f" + tgt
		r, ok := merged[id]
		if !ok {
			r = &flowRow{year: year, source: source, target: tgt}
			merged[id] = r
			order = append(order, id)
		}
		r.value += row.Value
	}

	out := make([]flowRow, 0, len(order))
	for _, id := range order {
		out = append(out, *merged[id])
	}
	return out, nil
}

// categories builds the exporter → commodity-category slide. Shares are
// of the whole category, so the Rest of the World rows participate in
// the denominator even though only Russia and Ukraine are shown.
func (b *StoryBuilder) categories(africa *models.TradeTable, stats *StoryStats) (dto.Table, error) {
	res, err := b.agg.Aggregate(africa, GroupSpec{
		Dimensions:        []Dimension{DimYear, DimExporter, DimProductGroup},
		ShareWithin:       []Dimension{DimYear, DimProductGroup},
		DetailedExporters: detailedExporters,
		AverageYears:      true,
	})
	if err != nil {
		return dto.Table{}, err
	}
	stats.Unmapped += res.Unmapped

	type catRow struct {
		year, source, target string
		value, share         float64
	}
	var rows []catRow
	for _, row := range res.Rows {
		iso, group := row.Key[1], row.Key[2]
		if iso == RestOfWorld {
			continue
		}
		rows = append(rows, catRow{
			year:   row.Key[0],
			source: b.countryName(iso),
			target: group,
			value:  row.Value,
			share:  round2(100 * row.Share),
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, c := rows[i], rows[j]
		if a.year != c.year {
			return a.year < c.year
		}
		if a.source != c.source {
			return a.source > c.source // Ukraine before Russia, as charted
		}
		ao, co := catOrder(a.target), catOrder(c.target)
		if ao != co {
			return ao < co
		}
		return a.value > c.value
	})

	t := dto.Table{
		Name:   dto.FileCategories,
		Header: []string{"year", "source", "target", "value", "step_from", "step_to", "share"},
	}
	for _, r := range rows {
		t.Append(r.year, r.source, r.target, fmtFloat(r.value), "0", "2", fmtFloat(r.share))
	}
	return t, nil
}

// categoryCountryRow is one (year, importer, category) row with Russia
// and Ukraine combined.
type categoryCountryRow struct {
	year, importer, target string
	value, share           float64
}

// categoriesByCountry builds the per-importing-country category table
// and returns its rows for the single-commodity slides.
func (b *StoryBuilder) categoriesByCountry(africa *models.TradeTable, stats *StoryStats) ([]categoryCountryRow, dto.Table, error) {
	res, err := b.agg.Aggregate(africa, GroupSpec{
		Dimensions:        []Dimension{DimYear, DimExporterName, DimImporterName, DimProductGroup},
		ShareWithin:       []Dimension{DimYear, DimImporterName, DimProductGroup},
		DetailedExporters: detailedExporters,
		AverageYears:      true,
	})
	if err != nil {
		return nil, dto.Table{}, err
	}
	stats.Unmapped += res.Unmapped

	russia := b.countryName("RUS")
	ukraine := b.countryName("UKR")

	merged := make(map[string]*categoryCountryRow)
	for _, row := range res.Rows {
		name := row.Key[1]
		if name != russia && name != ukraine {
			continue
		}
		id := joinKey([]string{row.Key[0], row.Key[2], row.Key[3]})
		r, ok := merged[id]
		if !ok {
			r = &categoryCountryRow{year: row.Key[0], importer: row.Key[2], target: row.Key[3]}
			merged[id] = r
		}
		r.value += row.Value
		if !math.IsNaN(row.Share) {
			r.share += row.Share
		}
	}

	rows := make([]categoryCountryRow, 0, len(merged))
	for _, r := range merged {
		r.share = round2(100 * r.share)
		rows = append(rows, *r)
	}
	sort.Slice(rows, func(i, j int) bool {
		a, c := rows[i], rows[j]
		if a.year != c.year {
			return a.year < c.year
		}
		if a.importer != c.importer {
			return a.importer < c.importer
		}
		return a.target < c.target
	})

	t := dto.Table{
		Name:   dto.FileCategoriesCountry,
		Header: []string{"year", "importer_name", "target", "value", "share"},
	}
	for _, r := range rows {
		t.Append(r.year, r.importer, r.target, fmtFloat(r.value), fmtFloat(r.share))
	}
	return rows, t, nil
}

// commodityExploreBar pivots the per-country category rows for the
// interactive explorer chart: one "Share" and one "USD (million)" row
// per (year, importer), with a column per category. A country that never
// imported a category gets empty cells there, not zeros.
func commodityExploreBar(rows []categoryCountryRow) dto.Table {
	targetSet := make(map[string]struct{})
	for _, r := range rows {
		targetSet[r.target] = struct{}{}
	}
	targets := make([]string, 0, len(targetSet))
	for g := range targetSet {
		targets = append(targets, g)
	}
	sort.Strings(targets)

	type pivotGroup struct {
		year, importer string
		byTarget       map[string]categoryCountryRow
	}
	groups := make(map[string]*pivotGroup)
	var order []string
	for _, r := range rows {
		id := joinKey([]string{r.year, r.importer})
		g, ok := groups[id]
		if !ok {
			g = &pivotGroup{year: r.year, importer: r.importer, byTarget: make(map[string]categoryCountryRow)}
			groups[id] = g
			order = append(order, id)
		}
		g.byTarget[r.target] = r
	}

	t := dto.Table{
		Name:   dto.FileCommodityExploreBar,
		Header: append([]string{"year", "importer_name", "indicator"}, targets...),
	}
	for _, id := range order {
		g := groups[id]
		shareRow := []string{g.year, g.importer, "Share"}
		usdRow := []string{g.year, g.importer, "USD (million)"}
		for _, target := range targets {
			r, ok := g.byTarget[target]
			if !ok {
				shareRow = append(shareRow, "")
				usdRow = append(usdRow, "")
				continue
			}
			shareRow = append(shareRow, fmtFloat(r.share))
			usdRow = append(usdRow, fmtFloat(r.value/1e3))
		}
		t.Rows = append(t.Rows, shareRow, usdRow)
	}
	return t
}

// filterCategory renders the single-commodity slide for one category,
// with values re-scaled from thousand USD to a "12.3m" million label.
func filterCategory(rows []categoryCountryRow, category, name string) dto.Table {
	t := dto.Table{
		Name:   name,
		Header: []string{"year", "importer_name", "target", "value", "share"},
	}
	for _, r := range rows {
		if r.target != category {
			continue
		}
		millions := math.Round(r.value/1e3*10) / 10
		t.Append(r.year, r.importer, r.target, fmtFloat(millions)+"m", fmtFloat(r.share))
	}
	return t
}

// CommodityPricesTable renders the wide monthly price table from the
// start period onward. Missing prices stay empty, never zero.
func CommodityPricesTable(prices *models.CommoditySeries, start time.Time) dto.Table {
	names := prices.Commodities()
	t := dto.Table{
		Name:   dto.FileCommodityPrices,
		Header: append([]string{"period"}, names...),
	}

	byDate := make(map[time.Time]map[string]*float64)
	var dates []time.Time
	for _, p := range prices.Prices {
		if p.Date.Before(start) {
			continue
		}
		if byDate[p.Date] == nil {
			byDate[p.Date] = make(map[string]*float64)
			dates = append(dates, p.Date)
		}
		byDate[p.Date][p.Commodity] = p.Price
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	for _, d := range dates {
		row := make([]string, 0, len(names)+1)
		row = append(row, d.Format("2006-01-02"))
		for _, n := range names {
			if v := byDate[d][n]; v != nil {
				row = append(row, fmtFloat(*v))
			} else {
				row = append(row, "")
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// importCost joins yearly import quantities per commodity group with
// yearly average prices: price per ton × tons. Keys present on only one
// side are omitted and counted; a group with no priced commodity simply
// never reaches the chart.
func (b *StoryBuilder) importCost(africa *models.TradeTable, prices *models.CommoditySeries, stats *StoryStats) (dto.Table, error) {
	res, err := b.agg.Aggregate(africa, GroupSpec{
		Dimensions: []Dimension{DimYear, DimProductGroup},
	})
	if err != nil {
		return dto.Table{}, err
	}
	stats.Unmapped += res.Unmapped

	// Yearly mean price per commodity over the months with data.
	type acc struct {
		sum float64
		n   int
	}
	avg := make(map[string]*acc) // year␟commodity
	for _, p := range prices.Prices {
		if p.Price == nil {
			continue
		}
		id := joinKey([]string{strconv.Itoa(p.Date.Year()), p.Commodity})
		a, ok := avg[id]
		if !ok {
			a = &acc{}
			avg[id] = a
		}
		a.sum += *p.Price
		a.n++
	}

	t := dto.Table{
		Name:   dto.FileImportCost,
		Header: []string{"year", "commodity", "quantity_mt", "avg_price_usd", "cost_usd"},
	}
	matched := make(map[string]bool)
	for _, row := range res.Rows {
		year, group := row.Key[0], row.Key[1]
		id := joinKey([]string{year, group})
		a, ok := avg[id]
		if !ok {
			stats.Omitted++
			continue
		}
		matched[id] = true
		price := a.sum / float64(a.n)
		t.Append(year, group, fmtFloat(row.Quantity), fmtFloat(round2(price)), fmtFloat(math.Round(price*row.Quantity)))
	}
	for id := range avg {
		if !matched[id] {
			stats.Omitted++
		}
	}
	return t, nil
}

func (b *StoryBuilder) countryName(iso3 string) string {
	if c, ok := b.tables.Countries.ByISO3(iso3); ok && c.Name != "" {
		return c.Name
	}
	return iso3
}

func sortFlows(rows []flowRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, c := rows[i], rows[j]
		ao, co := srcOrder(a.source), srcOrder(c.source)
		if ao != co {
			return ao < co
		}
		if a.year != c.year {
			return a.year > c.year
		}
		return a.value > c.value
	})
}

func srcOrder(source string) int {
	if o, ok := sourceOrder[source]; ok {
		return o
	}
	return 99
}

func catOrder(category string) int {
	if o, ok := categoryOrder[category]; ok {
		return o
	}
	return 99
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// fmtFloat renders a float with minimal digits; NaN becomes an empty
// cell so "undefined" is distinguishable from zero downstream.
func fmtFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// fmtPercent renders a share as a percentage with fixed precision.
func fmtPercent(share float64, prec int) string {
	if math.IsNaN(share) {
		return ""
	}
	return strconv.FormatFloat(math.Round(100*share*math.Pow10(prec))/math.Pow10(prec), 'f', -1, 64)
}
