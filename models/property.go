package models

import (
	"fmt"
	"strings"
)

// Property is one listing as returned by the search. Fields that the upstream
// response may omit (or report as garbage) are pointers; nil means unknown.
// Schools and Crime start nil and are filled in by the enrichment sweeps.
type Property struct {
	ZPID      string `json:"zpid"`
	Address   string `json:"address"`
	City      string `json:"city"`
	State     string `json:"state"`
	Zip       string `json:"zip"`
	HomeType  string `json:"home_type"`
	DetailURL string `json:"detail_url"`

	Price            *int     `json:"price"`
	Beds             *float64 `json:"beds"`
	Baths            *float64 `json:"baths"`
	LivingArea       *int     `json:"sqft"`
	LotArea          *float64 `json:"lot_area"`
	YearBuilt        *int     `json:"year_built"`
	DaysOnMarket     *int     `json:"days_on_market"`
	TaxAssessedValue *int     `json:"tax_assessed_value"`
	Zestimate        *int     `json:"zestimate"`
	RentZestimate    *int     `json:"rent_zestimate"`
	Lat              *float64 `json:"lat"`
	Lng              *float64 `json:"lng"`

	Schools *SchoolRatings `json:"schools,omitempty"`
	Crime   *CrimeGrade    `json:"crime,omitempty"`
}

// SchoolRatings summarizes the schools serving a property, one score per
// level. Display is precomputed for rendering; Total is the sum of known
// scores and -1 when none are known, so unknowns sort last ascending.
type SchoolRatings struct {
	Elementary *float64 `json:"elementary"`
	Middle     *float64 `json:"middle"`
	High       *float64 `json:"high"`
	Display    string   `json:"display"`
	Total      float64  `json:"total"`
}

// SentinelSchoolRatings is stored when a school fetch fails so the sweep does
// not retry the property. Distinct from nil, which means "not fetched yet".
func SentinelSchoolRatings() *SchoolRatings {
	return &SchoolRatings{Display: "---", Total: -1}
}

// FormatSchoolDisplay renders per-level scores as "7/5/-" style.
func FormatSchoolDisplay(elementary, middle, high *float64) string {
	part := func(v *float64) string {
		if v == nil {
			return "-"
		}
		return trimFloat(*v)
	}
	return fmt.Sprintf("%s/%s/%s", part(elementary), part(middle), part(high))
}

func trimFloat(v float64) string {
	s := fmt.Sprintf("%.1f", v)
	return strings.TrimSuffix(s, ".0")
}

// CrimeGrade is the letter-grade summary for a postal code. One instance is
// shared by pointer across every property with the same zip.
type CrimeGrade struct {
	Overall  string `json:"overall"`
	Violent  string `json:"violent"`
	Property string `json:"property"`
	Other    string `json:"other"`
}
