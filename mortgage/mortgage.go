// Package mortgage computes a monthly payment estimate from the listing
// price and the user's loan settings.
package mortgage

import (
	"math"

	"househunters/models"
)

// Payment breaks a monthly estimate into its components.
type Payment struct {
	PrincipalAndInterest float64 `json:"principal_and_interest"`
	Tax                  float64 `json:"tax"`
	Insurance            float64 `json:"insurance"`
	PMI                  float64 `json:"pmi"`
	Total                float64 `json:"total"`
}

// MonthlyPayment applies the closed-form amortization formula. PMI of 0.5%
// of the loan per year applies under 20% down.
func MonthlyPayment(price float64, s models.MortgageSettings) Payment {
	downAmt := price * s.DownPaymentPct / 100
	loan := price - downAmt
	monthlyRate := s.APR / 100 / 12
	n := float64(s.TermYears * 12)

	var pi float64
	if monthlyRate == 0 {
		pi = loan / n
	} else {
		factor := math.Pow(1+monthlyRate, n)
		pi = loan * monthlyRate * factor / (factor - 1)
	}

	p := Payment{
		PrincipalAndInterest: pi,
		Tax:                  s.AnnualTax / 12,
		Insurance:            s.AnnualInsurance / 12,
	}
	if s.DownPaymentPct < 20 {
		p.PMI = loan * 0.005 / 12
	}
	p.Total = p.PrincipalAndInterest + p.Tax + p.Insurance + p.PMI
	return p
}

// RentDelta is listing price minus rent estimate, defined only when both are
// present and non-zero.
func RentDelta(price, rentEstimate *int) *int {
	if price == nil || rentEstimate == nil || *price == 0 || *rentEstimate == 0 {
		return nil
	}
	d := *price - *rentEstimate
	return &d
}
