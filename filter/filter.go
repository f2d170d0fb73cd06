// Package filter holds the keep/reject predicates applied to search results.
package filter

import "househunters/models"

// homeTypeKeys maps the upstream homeType enum to the category flag keys used
// in SearchCriteria.HomeTypes.
var homeTypeKeys = map[string]string{
	"SINGLE_FAMILY": "sf",
	"TOWNHOUSE":     "tow",
	"MULTI_FAMILY":  "mf",
	"CONDO":         "con",
	"LOT":           "land",
	"LAND":          "land",
	"APARTMENT":     "apa",
	"MANUFACTURED":  "manu",
	"HOME_TYPE_UNKNOWN": "",
}

// Matches applies the numeric ranges and home-type flags.
//
// Policy for missing values: a bound configured on a field the property does
// not report rejects the property. The user asked for a constraint; a listing
// that cannot prove it meets it is excluded rather than silently included.
func Matches(p *models.Property, c models.SearchCriteria) bool {
	if !rangeOK(p.Beds, c.Beds) {
		return false
	}
	if !rangeOK(p.Baths, c.Baths) {
		return false
	}
	if !rangeOK(intAsFloat(p.Price), c.Price) {
		return false
	}
	if !rangeOK(intAsFloat(p.LivingArea), c.Sqft) {
		return false
	}
	if !rangeOK(intAsFloat(p.YearBuilt), c.Year) {
		return false
	}
	return homeTypeOK(p.HomeType, c.HomeTypes)
}

// MatchesSchools applies the minimum-rating thresholds. A property whose
// ratings have not arrived yet passes provisionally and is re-evaluated when
// the sweep delivers them.
func MatchesSchools(p *models.Property, c models.SearchCriteria) bool {
	if !c.MinSchool.Any() {
		return true
	}
	if p.Schools == nil {
		return true
	}

	check := func(min, rating *float64) bool {
		if min == nil {
			return true
		}
		return rating != nil && *rating >= *min
	}
	return check(c.MinSchool.Elementary, p.Schools.Elementary) &&
		check(c.MinSchool.Middle, p.Schools.Middle) &&
		check(c.MinSchool.High, p.Schools.High)
}

func rangeOK(v *float64, r models.Range) bool {
	if !r.IsSet() {
		return true
	}
	if v == nil {
		return false
	}
	return r.Contains(*v)
}

func homeTypeOK(homeType string, flags map[string]bool) bool {
	if len(flags) == 0 {
		return true
	}
	key := homeTypeKeys[homeType]
	if key == "" {
		// Unknown categories are not filterable; let them through.
		return true
	}
	include, configured := flags[key]
	if !configured {
		return true
	}
	return include
}

func intAsFloat(v *int) *float64 {
	if v == nil {
		return nil
	}
	f := float64(*v)
	return &f
}
