package models

// SearchKind distinguishes sale and rental searches.
type SearchKind string

const (
	SearchForSale SearchKind = "for-sale"
	SearchForRent SearchKind = "for-rent"
)

// Range is an inclusive numeric bound; either side may be open.
// Min > Max is allowed and simply matches nothing.
type Range struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// IsSet reports whether at least one bound is configured.
func (r Range) IsSet() bool { return r.Min != nil || r.Max != nil }

// Contains applies the bound to a known value.
func (r Range) Contains(v float64) bool {
	if r.Min != nil && v < *r.Min {
		return false
	}
	if r.Max != nil && v > *r.Max {
		return false
	}
	return true
}

// SchoolMinimums holds per-level minimum rating thresholds.
type SchoolMinimums struct {
	Elementary *float64 `json:"elementary,omitempty"`
	Middle     *float64 `json:"middle,omitempty"`
	High       *float64 `json:"high,omitempty"`
}

// Any reports whether at least one minimum is configured.
func (m SchoolMinimums) Any() bool {
	return m.Elementary != nil || m.Middle != nil || m.High != nil
}

// SearchCriteria is the transient input for one search. HomeTypes maps the
// upstream category keys (sf, tow, mf, con, land, apa, manu, apco) to
// include/exclude flags; an absent key means no opinion.
type SearchCriteria struct {
	Kind      SearchKind      `json:"kind"`
	Beds      Range           `json:"beds"`
	Baths     Range           `json:"baths"`
	Price     Range           `json:"price"`
	Sqft      Range           `json:"sqft"`
	Year      Range           `json:"year"`
	HomeTypes map[string]bool `json:"home_types,omitempty"`
	MinSchool SchoolMinimums  `json:"min_school"`
}

// MortgageSettings is a persisted user preference, not part of a search.
type MortgageSettings struct {
	DownPaymentPct  float64 `json:"down_payment_pct"`
	APR             float64 `json:"apr"`
	TermYears       int     `json:"term_years"`
	AnnualTax       float64 `json:"annual_tax"`
	AnnualInsurance float64 `json:"annual_insurance"`
}

// DefaultMortgageSettings matches a conventional 30-year loan.
func DefaultMortgageSettings() MortgageSettings {
	return MortgageSettings{DownPaymentPct: 20, APR: 7.0, TermYears: 30}
}
