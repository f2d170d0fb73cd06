// Package view projects the result set for display and export: type-aware
// single-key sorting, column projection, and JSON/CSV serialization.
package view

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"househunters/models"
	"househunters/mortgage"
)

// crimeOrdinal orders letter grades so better grades sort first ascending.
var crimeOrdinal = map[string]int{
	"A+": 0, "A": 1, "A-": 2,
	"B+": 3, "B": 4, "B-": 5,
	"C+": 6, "C": 7, "C-": 8,
	"D+": 9, "D": 10, "D-": 11,
	"F": 12,
}

const crimeUnknown = 99

// Sort orders properties by the given column. Unknown values sort last in
// ascending order for the typed columns; the sort is stable.
func Sort(props []*models.Property, column string, desc bool, settings models.MortgageSettings) {
	sort.SliceStable(props, func(i, j int) bool {
		c := compare(props[i], props[j], column, settings)
		if desc {
			return c > 0
		}
		return c < 0
	})
}

func compare(a, b *models.Property, column string, settings models.MortgageSettings) int {
	if na, ok := numericKey(a, column, settings); ok {
		nb, _ := numericKey(b, column, settings)
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		}
		return 0
	}

	sa, sb := stringKey(a, column), stringKey(b, column)
	if fa, errA := parseLoose(sa); errA == nil {
		if fb, errB := parseLoose(sb); errB == nil {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		}
	}
	return strings.Compare(strings.ToLower(sa), strings.ToLower(sb))
}

// numericKey returns the comparison value for columns with an override;
// ok=false falls through to the generic comparison.
func numericKey(p *models.Property, column string, settings models.MortgageSettings) (float64, bool) {
	switch column {
	case "price":
		return intOrInf(p.Price), true
	case "mortgage":
		if p.Price == nil {
			return math.Inf(1), true
		}
		return mortgage.MonthlyPayment(float64(*p.Price), settings).Total, true
	case "rent_delta":
		if d := mortgage.RentDelta(p.Price, p.RentZestimate); d != nil {
			return float64(*d), true
		}
		return math.Inf(1), true
	case "schools":
		if p.Schools == nil || p.Schools.Total < 0 {
			return math.Inf(1), true
		}
		return p.Schools.Total, true
	case "crime":
		if p.Crime == nil {
			return crimeUnknown, true
		}
		if ord, ok := crimeOrdinal[p.Crime.Overall]; ok {
			return float64(ord), true
		}
		return crimeUnknown, true
	case "days_on_market":
		return intOrInf(p.DaysOnMarket), true
	case "beds":
		return floatOrInf(p.Beds), true
	case "baths":
		return floatOrInf(p.Baths), true
	case "sqft":
		return intOrInf(p.LivingArea), true
	case "lot_area":
		return floatOrInf(p.LotArea), true
	case "year_built":
		return intOrInf(p.YearBuilt), true
	case "tax_assessed_value":
		return intOrInf(p.TaxAssessedValue), true
	case "zestimate":
		return intOrInf(p.Zestimate), true
	case "rent_zestimate":
		return intOrInf(p.RentZestimate), true
	}
	return 0, false
}

func stringKey(p *models.Property, column string) string {
	switch column {
	case "address":
		return p.Address
	case "city":
		return p.City
	case "state":
		return p.State
	case "zip":
		return p.Zip
	case "home_type":
		return p.HomeType
	case "detail_url":
		return p.DetailURL
	}
	return ""
}

var looseNumRe = regexp.MustCompile(`[^0-9.\-]`)

func parseLoose(s string) (float64, error) {
	return strconv.ParseFloat(looseNumRe.ReplaceAllString(s, ""), 64)
}

func intOrInf(v *int) float64 {
	if v == nil {
		return math.Inf(1)
	}
	return float64(*v)
}

func floatOrInf(v *float64) float64 {
	if v == nil {
		return math.Inf(1)
	}
	return *v
}
