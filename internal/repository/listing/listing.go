// Package listing persists recovered sale records. Postgres is the system
// of record; a CSV sink mirrors saves for ad-hoc analysis.
package listing

import (
	"math"

	"github.com/yycdata/mlxsweep/internal/domain"
)

// Listing is one sold property, flattened from the endpoint's payload.
type Listing struct {
	ListID       string  `db:"list_id"`
	MLSNumber    string  `db:"mls_number"`
	AreaCode     string  `db:"area_code"`
	BuiltYear    int     `db:"built_year"`
	StreetNumber string  `db:"street_number"`
	StreetName   string  `db:"street_name"`
	StreetDir    string  `db:"street_direction"`
	StreetType   string  `db:"street_type"`
	City         string  `db:"city"`
	PostalCode   string  `db:"postal_code"`
	Latitude     float64 `db:"latitude"`
	Longitude    float64 `db:"longitude"`
	SquareFeet   float64 `db:"square_feet"`
	AvgFtPrice   float64 `db:"avg_ft_price"`
	ListPrice    float64 `db:"list_price"`
	SoldPrice    float64 `db:"sold_price"`
	PriceDiff    float64 `db:"price_difference"`
	PercentDiff  float64 `db:"percent_difference"`
	ListDate     string  `db:"list_date"`
	SoldDate     string  `db:"sold_date"`
	Bedrooms     int     `db:"bedrooms"`
	Bathrooms    int     `db:"bathrooms"`
	Agent        string  `db:"agent"`
	Office       string  `db:"office"`
	Neighborhood string  `db:"neighborhood"`
	DetailURL    string  `db:"detail_url"`
}

// FromRecord maps a raw search record into a Listing. The sweep's slice
// year stands in for the built year when the payload omits it.
func FromRecord(area string, year int, rec domain.Record) Listing {
	l := Listing{
		ListID:       rec.ID(),
		MLSNumber:    rec.Str("MLS_NUM"),
		AreaCode:     area,
		BuiltYear:    year,
		StreetNumber: rec.Str("STREET_NUMBER"),
		StreetName:   rec.Str("STREET_NAME"),
		StreetDir:    rec.Str("STREET_DIR"),
		StreetType:   rec.Str("STREET_TYPE"),
		City:         rec.Str("CITY"),
		PostalCode:   rec.Str("POSTAL_CODE"),
		Latitude:     num(rec, "LATITUDE"),
		Longitude:    num(rec, "LONGITUDE"),
		SquareFeet:   num(rec, "AREA_SQ_FEET"),
		ListPrice:    num(rec, "PRICE_RAW"),
		SoldPrice:    num(rec, "SOLD_PRICE_RAW"),
		ListDate:     rec.Str("LISTED_DATE"),
		SoldDate:     rec.Str("SOLD_DATE"),
		Bedrooms:     int(num(rec, "TOTAL_BEDROOMS")),
		Bathrooms:    int(num(rec, "TOTAL_BATHS")),
		Agent:        rec.Str("AGENT_NAME"),
		Office:       rec.Str("OFFICE_NAME"),
		Neighborhood: rec.Str("LIST_SUBAREA"),
		DetailURL:    rec.Str("DETAIL_URL"),
	}

	if y := num(rec, "YEAR_BUILT"); y > 0 {
		l.BuiltYear = int(y)
	}
	if l.SquareFeet > 0 && l.ListPrice > 0 {
		l.AvgFtPrice = round2(l.ListPrice / l.SquareFeet)
	}
	if l.ListPrice != 0 {
		l.PriceDiff = l.SoldPrice - l.ListPrice
		l.PercentDiff = round2((l.SoldPrice - l.ListPrice) / l.ListPrice * 100)
	}
	return l
}

func num(rec domain.Record, field string) float64 {
	f, _ := rec.Num(field)
	return f
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
