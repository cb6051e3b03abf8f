package codes

import (
	"fmt"
	"strings"
)

// Country is one entry of the country code table.
type Country struct {
	Code      string // numeric BACI/COMTRADE country code, e.g. "643"
	ISO3      string // e.g. "RUS"
	Name      string // short name, e.g. "Russia"
	Continent string // e.g. "Europe"
}

// CountryTable maps numeric trade-file country codes and ISO3 codes to
// country entries.
type CountryTable struct {
	byCode map[string]Country
	byISO3 map[string]Country
}

// LoadCountries reads the country code table. Required columns:
// country_code, iso_3digit_alpha, country_name, continent.
func LoadCountries(path string) (*CountryTable, error) {
	idx, rows, err := readTable(path, []string{"country_code", "iso_3digit_alpha", "country_name", "continent"})
	if err != nil {
		return nil, err
	}

	t := &CountryTable{
		byCode: make(map[string]Country, len(rows)),
		byISO3: make(map[string]Country, len(rows)),
	}
	for i, row := range rows {
		c := Country{
			Code:      strings.TrimSpace(row[idx["country_code"]]),
			ISO3:      strings.TrimSpace(row[idx["iso_3digit_alpha"]]),
			Name:      strings.TrimSpace(row[idx["country_name"]]),
			Continent: strings.TrimSpace(row[idx["continent"]]),
		}
		if c.Code == "" || c.ISO3 == "" {
			return nil, fmt.Errorf("country_codes row %d: empty code or iso3", i+2)
		}
		t.byCode[c.Code] = c
		t.byISO3[c.ISO3] = c
	}
	return t, nil
}

// ByCode resolves a numeric trade-file country code.
func (t *CountryTable) ByCode(code string) (Country, bool) {
	c, ok := t.byCode[code]
	return c, ok
}

// ByISO3 resolves an ISO3 code.
func (t *CountryTable) ByISO3(iso3 string) (Country, bool) {
	c, ok := t.byISO3[iso3]
	return c, ok
}

// Len reports the number of entries.
func (t *CountryTable) Len() int { return len(t.byCode) }
