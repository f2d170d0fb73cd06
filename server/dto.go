package server

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"househunters/models"
)

// SearchRequest mirrors the search form: a Zillow URL plus optional bounds
// and flags. Pointer fields distinguish "unset" from zero.
type SearchRequest struct {
	ZillowURL  string `json:"zillow_url"`
	SearchType string `json:"search_type,omitempty"` // "sale" | "rent"; detected from the URL when empty

	MinBeds  *float64 `json:"min_beds,omitempty"`
	MaxBeds  *float64 `json:"max_beds,omitempty"`
	MinBaths *float64 `json:"min_baths,omitempty"`
	MaxBaths *float64 `json:"max_baths,omitempty"`
	MinPrice *float64 `json:"min_price,omitempty"`
	MaxPrice *float64 `json:"max_price,omitempty"`
	MinSqft  *float64 `json:"min_sqft,omitempty"`
	MaxSqft  *float64 `json:"max_sqft,omitempty"`
	MinYear  *float64 `json:"min_year,omitempty"`
	MaxYear  *float64 `json:"max_year,omitempty"`

	PropertyTypes map[string]bool       `json:"property_types,omitempty"`
	MinSchool     models.SchoolMinimums `json:"min_school"`
}

func (r SearchRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ZillowURL, validation.Required, is.URL),
		validation.Field(&r.SearchType, validation.In("", "sale", "rent", "for-sale", "for-rent")),
	)
}

// Criteria converts the request into search criteria for the given kind.
func (r SearchRequest) Criteria(kind models.SearchKind) models.SearchCriteria {
	return models.SearchCriteria{
		Kind:      kind,
		Beds:      models.Range{Min: r.MinBeds, Max: r.MaxBeds},
		Baths:     models.Range{Min: r.MinBaths, Max: r.MaxBaths},
		Price:     models.Range{Min: r.MinPrice, Max: r.MaxPrice},
		Sqft:      models.Range{Min: r.MinSqft, Max: r.MaxSqft},
		Year:      models.Range{Min: r.MinYear, Max: r.MaxYear},
		HomeTypes: r.PropertyTypes,
		MinSchool: r.MinSchool,
	}
}

// Kind resolves the explicit search type, falling back to kindFromURL.
func (r SearchRequest) Kind(kindFromURL models.SearchKind) (models.SearchKind, error) {
	switch r.SearchType {
	case "":
		return kindFromURL, nil
	case "sale", string(models.SearchForSale):
		return models.SearchForSale, nil
	case "rent", string(models.SearchForRent):
		return models.SearchForRent, nil
	}
	return "", fmt.Errorf("unknown search type %q", r.SearchType)
}

type SelectRequest struct {
	ZPIDs []string `json:"zpids"`
}

type SortRequest struct {
	Column string `json:"column"`
}

func (r SortRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Column, validation.Required),
	)
}

type ExportRequest struct {
	Format  string   `json:"format"`
	Columns []string `json:"columns,omitempty"`
}

func (r ExportRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Format, validation.Required, validation.In("json", "csv")),
	)
}

// Preferences is the persisted UI state: visible columns, mortgage settings,
// and the last-used filter values.
type Preferences struct {
	Columns     []string                 `json:"columns,omitempty"`
	Mortgage    *models.MortgageSettings `json:"mortgage,omitempty"`
	LastFilters *SearchRequest           `json:"last_filters,omitempty"`
}
