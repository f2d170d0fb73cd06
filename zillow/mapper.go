package zillow

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"househunters/models"
)

type searchPageResponse struct {
	Cat1 struct {
		SearchResults struct {
			ListResults []listResult `json:"listResults"`
		} `json:"searchResults"`
		SearchList struct {
			TotalPages int `json:"totalPages"`
		} `json:"searchList"`
	} `json:"cat1"`
}

// flexID accepts either a JSON string or number; upstream is inconsistent
// about id fields.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" {
		s = ""
	}
	*f = flexID(s)
	return nil
}

// flexNumber tolerates numbers, numeric strings, and junk; junk decodes to
// nil rather than failing the whole response.
type flexNumber struct {
	Value *float64
}

func (f *flexNumber) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		f.Value = &v
	}
	return nil
}

type listResult struct {
	ZPID             flexID     `json:"zpid"`
	ID               flexID     `json:"id"`
	DetailURL        string     `json:"detailUrl"`
	StatusType       string     `json:"statusType"`
	Price            string     `json:"price"`
	UnformattedPrice flexNumber `json:"unformattedPrice"`
	Address          string     `json:"address"`
	AddressStreet    string     `json:"addressStreet"`
	AddressCity      string     `json:"addressCity"`
	AddressState     string     `json:"addressState"`
	AddressZipcode   string     `json:"addressZipcode"`
	Beds             flexNumber `json:"beds"`
	Baths            flexNumber `json:"baths"`
	Area             flexNumber `json:"area"`
	LatLong          struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	} `json:"latLong"`
	HDPData struct {
		HomeInfo struct {
			ZPID             flexID     `json:"zpid"`
			LivingArea       flexNumber `json:"livingArea"`
			LotAreaValue     flexNumber `json:"lotAreaValue"`
			YearBuilt        flexNumber `json:"yearBuilt"`
			HomeType         string     `json:"homeType"`
			DaysOnZillow     flexNumber `json:"daysOnZillow"`
			TaxAssessedValue flexNumber `json:"taxAssessedValue"`
			Zestimate        flexNumber `json:"zestimate"`
			RentZestimate    flexNumber `json:"rentZestimate"`
		} `json:"homeInfo"`
	} `json:"hdpData"`
}

var (
	zpidFromURLRe = regexp.MustCompile(`/(\d+)_zpid`)
	zipFromAddrRe = regexp.MustCompile(`(\d{5})(?:-\d{4})?\s*$`)
	nonDigitRe    = regexp.MustCompile(`[^0-9]`)
)

func mapListResult(lr listResult) *models.Property {
	info := lr.HDPData.HomeInfo

	p := &models.Property{
		ZPID:             resolveZPID(lr),
		Address:          lr.Address,
		City:             lr.AddressCity,
		State:            lr.AddressState,
		Zip:              resolveZip(lr),
		HomeType:         info.HomeType,
		DetailURL:        absoluteDetailURL(lr.DetailURL),
		Price:            resolvePrice(lr),
		Beds:             lr.Beds.Value,
		Baths:            lr.Baths.Value,
		LivingArea:       toIntPtr(firstNumber(lr.Area, info.LivingArea)),
		LotArea:          info.LotAreaValue.Value,
		YearBuilt:        toIntPtr(info.YearBuilt.Value),
		DaysOnMarket:     normalizeDaysOnMarket(info.DaysOnZillow.Value),
		TaxAssessedValue: toIntPtr(info.TaxAssessedValue.Value),
		Zestimate:        toIntPtr(info.Zestimate.Value),
		RentZestimate:    toIntPtr(info.RentZestimate.Value),
		Lat:              lr.LatLong.Latitude,
		Lng:              lr.LatLong.Longitude,
	}
	return p
}

func resolveZPID(lr listResult) string {
	if lr.ZPID != "" {
		return string(lr.ZPID)
	}
	if lr.HDPData.HomeInfo.ZPID != "" {
		return string(lr.HDPData.HomeInfo.ZPID)
	}
	if m := zpidFromURLRe.FindStringSubmatch(lr.DetailURL); m != nil {
		return m[1]
	}
	return string(lr.ID)
}

func resolveZip(lr listResult) string {
	if lr.AddressZipcode != "" {
		return lr.AddressZipcode
	}
	if m := zipFromAddrRe.FindStringSubmatch(lr.Address); m != nil {
		return m[1]
	}
	return ""
}

// resolvePrice prefers the numeric field and falls back to stripping the
// formatted display string ("$550,000" -> 550000).
func resolvePrice(lr listResult) *int {
	if lr.UnformattedPrice.Value != nil && *lr.UnformattedPrice.Value > 0 {
		v := int(*lr.UnformattedPrice.Value)
		return &v
	}
	digits := nonDigitRe.ReplaceAllString(lr.Price, "")
	if digits == "" {
		return nil
	}
	v, err := strconv.Atoi(digits)
	if err != nil || v == 0 {
		return nil
	}
	return &v
}

func absoluteDetailURL(u string) string {
	if u == "" {
		return ""
	}
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	return "https://www.zillow.com" + u
}

// Negative days-on-market is the upstream's "unknown" sentinel.
func normalizeDaysOnMarket(v *float64) *int {
	if v == nil || *v < 0 {
		return nil
	}
	d := int(*v)
	return &d
}

func firstNumber(candidates ...flexNumber) *float64 {
	for _, c := range candidates {
		if c.Value != nil && *c.Value > 0 {
			return c.Value
		}
	}
	return nil
}

func toIntPtr(v *float64) *int {
	if v == nil {
		return nil
	}
	i := int(*v)
	return &i
}

// MapSearchPayload decodes a raw search response body into properties;
// exposed for fixtures and the one-shot CLI path.
func MapSearchPayload(raw []byte) ([]*models.Property, error) {
	var parsed searchPageResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, err
	}
	props := make([]*models.Property, 0, len(parsed.Cat1.SearchResults.ListResults))
	for _, lr := range parsed.Cat1.SearchResults.ListResults {
		props = append(props, mapListResult(lr))
	}
	return props, nil
}
