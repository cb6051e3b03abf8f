package models

import "fmt"

// TradeRecord is one bilateral trade flow from a BACI yearly file.
// Values are in thousand USD, quantities in metric tons. Product codes
// are HS6 strings so leading zeros survive.
//
// Column mapping from the raw hs17_{year}.csv files:
//
//	t → Year
//	i → Exporter (numeric code, resolved to ISO3 by the reader)
//	j → Importer (numeric code, resolved to ISO3 by the reader)
//	k → ProductCode
//	v → Value
//	q → Quantity
type TradeRecord struct {
	Year        int
	Exporter    string
	Importer    string
	ProductCode string
	Value       float64
	Quantity    float64
}

// Key identifies a record within a source year. Duplicates with
// conflicting values are a data-integrity error.
func (r TradeRecord) Key() TradeKey {
	return TradeKey{Year: r.Year, Exporter: r.Exporter, Importer: r.Importer, ProductCode: r.ProductCode}
}

// TradeKey is the unique identity of a trade record: (year, exporter,
// importer, product).
type TradeKey struct {
	Year        int
	Exporter    string
	Importer    string
	ProductCode string
}

func (k TradeKey) String() string {
	return fmt.Sprintf("%d/%s/%s/%s", k.Year, k.Exporter, k.Importer, k.ProductCode)
}

// TradeTable is the trade reader's output: the filtered records plus the
// row-level rejection counters accumulated while reading. Components never
// mutate a table they received; transformations return a new one.
type TradeTable struct {
	Records []TradeRecord
	Stats   ReadStats
}

// ReadStats counts rows dropped while reading raw trade files. Row-level
// problems are recovered locally; only the counts surface.
type ReadStats struct {
	RejectedValues   int // negative or non-numeric value/quantity fields
	UnmappedCountry  int // exporter/importer code missing from the country table
	FilteredOut      int // rows excluded by the caller's product/country filter
	DuplicatesMerged int // identical duplicate keys collapsed to one row
}

// Add merges per-file counters into the run total.
func (s *ReadStats) Add(o ReadStats) {
	s.RejectedValues += o.RejectedValues
	s.UnmappedCountry += o.UnmappedCountry
	s.FilteredOut += o.FilteredOut
	s.DuplicatesMerged += o.DuplicatesMerged
}
