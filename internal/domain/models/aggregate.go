package models

// AggregateRow is one grouped summary row produced by the trade
// aggregator and consumed only by the story builder.
//
// Key holds the values of the requested grouping dimensions in request
// order (year rendered as a 4-digit string, or a "2018-2020" range after
// yearly averaging). Share is the subgroup's fraction of the same-year
// total; it is NaN, not zero, when the year total is zero.
type AggregateRow struct {
	Key      []string
	Value    float64
	Quantity float64
	Share    float64
}

// AggregateResult is the aggregator's full output for one grouping
// request: the rows sorted by key tuple, plus the count of records that
// were excluded because a code had no mapping for a requested dimension.
type AggregateResult struct {
	Rows     []AggregateRow
	Unmapped int
}
