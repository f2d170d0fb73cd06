package view

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"

	"househunters/models"
	"househunters/mortgage"
)

// placeholder stands in for values the upstream did not report.
const placeholder = "-"

// DefaultColumns is the full visible-column set in display order.
var DefaultColumns = []string{
	"address", "city", "state", "zip", "price", "beds", "baths", "sqft",
	"lot_area", "year_built", "home_type", "days_on_market",
	"tax_assessed_value", "zestimate", "rent_zestimate",
	"mortgage", "rent_delta", "schools", "crime",
}

// Record is one exported row, keyed by column.
type Record map[string]any

// Project flattens properties into records for the given column set, using
// the same value derivation as display. detail_url is always included.
func Project(props []*models.Property, columns []string, settings models.MortgageSettings) []Record {
	cols := withDetailURL(columns)
	rows := make([]Record, 0, len(props))
	for _, p := range props {
		row := make(Record, len(cols))
		for _, col := range cols {
			row[col] = Value(p, col, settings)
		}
		rows = append(rows, row)
	}
	return rows
}

// Value derives the display value for one column.
func Value(p *models.Property, column string, settings models.MortgageSettings) any {
	switch column {
	case "address":
		return orPlaceholder(p.Address)
	case "city":
		return orPlaceholder(p.City)
	case "state":
		return orPlaceholder(p.State)
	case "zip":
		return orPlaceholder(p.Zip)
	case "home_type":
		return orPlaceholder(p.HomeType)
	case "detail_url":
		return p.DetailURL
	case "price":
		return intValue(p.Price)
	case "beds":
		return floatValue(p.Beds)
	case "baths":
		return floatValue(p.Baths)
	case "sqft":
		return intValue(p.LivingArea)
	case "lot_area":
		return floatValue(p.LotArea)
	case "year_built":
		return intValue(p.YearBuilt)
	case "days_on_market":
		return intValue(p.DaysOnMarket)
	case "tax_assessed_value":
		return intValue(p.TaxAssessedValue)
	case "zestimate":
		return intValue(p.Zestimate)
	case "rent_zestimate":
		return intValue(p.RentZestimate)
	case "mortgage":
		if p.Price == nil {
			return placeholder
		}
		total := mortgage.MonthlyPayment(float64(*p.Price), settings).Total
		return math.Round(total*100) / 100
	case "rent_delta":
		if d := mortgage.RentDelta(p.Price, p.RentZestimate); d != nil {
			return *d
		}
		return placeholder
	case "schools":
		if p.Schools == nil {
			return placeholder
		}
		return p.Schools.Display
	case "crime":
		if p.Crime == nil || p.Crime.Overall == "" {
			return placeholder
		}
		return p.Crime.Overall
	}
	return placeholder
}

// WriteJSON streams rows as a JSON array.
func WriteJSON(w io.Writer, rows []Record) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

// WriteCSV streams rows with the header in column order.
func WriteCSV(w io.Writer, rows []Record, columns []string) error {
	cols := withDetailURL(columns)

	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return err
	}
	for _, row := range rows {
		fields := make([]string, len(cols))
		for i, col := range cols {
			fields[i] = stringify(row[col])
		}
		if err := cw.Write(fields); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func withDetailURL(columns []string) []string {
	if len(columns) == 0 {
		columns = DefaultColumns
	}
	for _, c := range columns {
		if c == "detail_url" {
			return columns
		}
	}
	out := make([]string, 0, len(columns)+1)
	out = append(out, columns...)
	return append(out, "detail_url")
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == math.Trunc(t) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%.2f", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func orPlaceholder(s string) string {
	if s == "" {
		return placeholder
	}
	return s
}

func intValue(v *int) any {
	if v == nil {
		return placeholder
	}
	return *v
}

func floatValue(v *float64) any {
	if v == nil {
		return placeholder
	}
	return *v
}
