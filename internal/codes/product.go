package codes

import (
	"fmt"
	"strconv"
	"strings"
)

// Commodity group labels used by the story charts.
const (
	GroupWheat        = "Wheat"
	GroupBarley       = "Barley"
	GroupMaize        = "Maize"
	GroupOtherCereals = "Other cereals"
	GroupCoal         = "Coal"
	GroupPetroleum    = "Petroleum oils"
	GroupGas          = "Gas"
	GroupOtherFuels   = "Other fuels"
	GroupSunflowerOil = "Sunflower oil"
	GroupOtherOils    = "Other oils and fats"
	GroupSteel        = "Steel and Iron"
	GroupWeapons      = "Weapons, Firearms, Ammunition"
	GroupPotash       = "Potash"
)

// detailedGroups pins specific HS6 codes to a named commodity group.
// Codes not listed here fall through to the range rules, then to the
// broad BEC sector.
var detailedGroups = map[string]string{
	"100111": GroupWheat,
	"100119": GroupWheat,
	"100191": GroupWheat,
	"100199": GroupWheat,
	"100310": GroupBarley,
	"100390": GroupBarley,
	"100510": GroupMaize,
	"100590": GroupMaize,

	"270111": GroupCoal,
	"270112": GroupCoal,
	"270119": GroupCoal,
	"270900": GroupPetroleum,
	"271000": GroupPetroleum,
	"271111": GroupGas,
	"271112": GroupGas,
	"271113": GroupGas,
	"271114": GroupGas,
	"271119": GroupGas,
	"271121": GroupGas,
	"271129": GroupGas,

	"151211": GroupSunflowerOil,
	"151219": GroupSunflowerOil,

	"310420": GroupPotash,
	"310430": GroupPotash,
	"310490": GroupPotash,
	"281520": GroupPotash,
	"310520": GroupPotash,
	"252910": GroupPotash,
}

// becNames maps BEC classification codes (and their sub-codes) to the
// sector names used for the broad "cat1" grouping.
var becNames = map[string]string{
	"1": "Food and beverages", "11": "Food and beverages", "111": "Food and beverages",
	"112": "Food and beverages", "12": "Food and beverages", "121": "Food and beverages",
	"122": "Food and beverages",
	"2":   "Industrial Supplies", "21": "Industrial Supplies", "22": "Industrial Supplies",
	"3": "Fuels and Lubricants", "31": "Fuels and Lubricants", "32": "Fuels and Lubricants",
	"321": "Fuels and Lubricants", "322": "Fuels and Lubricants",
	"4":   "Capital goods", "41": "Capital goods", "42": "Capital goods",
	"5": "Transport equipment", "51": "Transport equipment", "52": "Transport equipment",
	"521": "Transport equipment", "522": "Transport equipment", "53": "Transport equipment",
	"6": "Consumption goods n.e.s", "61": "Consumption goods n.e.s",
	"62": "Consumption goods n.e.s", "63": "Consumption goods n.e.s",
	"7": "Goods not specified",
}

// ProductTable resolves HS6 codes to a detailed commodity group and a
// broad BEC sector.
type ProductTable struct {
	sector map[string]string // HS6 → BEC sector name
}

// LoadProducts reads the HS6 → BEC mapping. Required columns: code, bec.
func LoadProducts(path string) (*ProductTable, error) {
	idx, rows, err := readTable(path, []string{"code", "bec"})
	if err != nil {
		return nil, err
	}

	t := &ProductTable{sector: make(map[string]string, len(rows))}
	for i, row := range rows {
		code := strings.TrimSpace(row[idx["code"]])
		bec := strings.TrimSpace(row[idx["bec"]])
		if code == "" {
			return nil, fmt.Errorf("product_codes row %d: empty code", i+2)
		}
		name, ok := becNames[bec]
		if !ok {
			// Unknown BEC code: the HS6 code stays in the table but has
			// no sector, so records carrying it count as unmapped.
			continue
		}
		t.sector[code] = name
	}
	return t, nil
}

// Group returns the detailed commodity group ("cat2") for an HS6 code.
// Pinned codes win, then HS chapter ranges, then the BEC sector as the
// catch-all. The second return is false when nothing resolves.
func (t *ProductTable) Group(code string) (string, bool) {
	if g, ok := detailedGroups[code]; ok {
		return g, true
	}
	if n, err := strconv.Atoi(code); err == nil {
		switch {
		case n >= 100111 && n < 100900:
			return GroupOtherCereals, true
		case n >= 270000 && n < 280000:
			return GroupOtherFuels, true
		case n >= 150000 && n < 160000:
			return GroupOtherOils, true
		case n >= 720000 && n < 730000:
			return GroupSteel, true
		case n >= 930000 && n < 940000:
			return GroupWeapons, true
		}
	}
	return t.Sector(code)
}

// Sector returns the broad BEC sector ("cat1") for an HS6 code.
func (t *ProductTable) Sector(code string) (string, bool) {
	s, ok := t.sector[code]
	return s, ok
}

// Len reports the number of HS6 codes with a known sector.
func (t *ProductTable) Len() int { return len(t.sector) }
