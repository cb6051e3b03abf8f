package models

import "time"

// CommodityPrice is one monthly observation from the World Bank pink
// sheet, in long format. Price is nil when the source reports no data
// ("..") so consumers can tell "no data" from an actual zero.
type CommodityPrice struct {
	Date      time.Time
	Commodity string
	Price     *float64
	Unit      string
}

// CommoditySeries is the commodity reader's output: observations sorted
// by date ascending, then commodity. One observation per (date,
// commodity); ties are rejected at read time.
type CommoditySeries struct {
	Prices []CommodityPrice
}

// Commodities returns the distinct commodity names in first-seen order.
func (s *CommoditySeries) Commodities() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, p := range s.Prices {
		if _, ok := seen[p.Commodity]; ok {
			continue
		}
		seen[p.Commodity] = struct{}{}
		out = append(out, p.Commodity)
	}
	return out
}
