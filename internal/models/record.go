package models

import "time"

// Field identifies a canonical semantic column of an ad report export.
type Field string

const (
	FieldDate                  Field = "date"
	FieldWebsite               Field = "website"
	FieldCountry               Field = "country"
	FieldAdFormat              Field = "adFormat"
	FieldAdUnit                Field = "adUnit"
	FieldAdvertiser            Field = "advertiser"
	FieldDomain                Field = "domain"
	FieldDevice                Field = "device"
	FieldBrowser               Field = "browser"
	FieldRequests              Field = "requests"
	FieldImpressions           Field = "impressions"
	FieldClicks                Field = "clicks"
	FieldCTR                   Field = "ctr"
	FieldECPM                  Field = "ecpm"
	FieldRevenue               Field = "revenue"
	FieldViewableImpressions   Field = "viewableImpressions"
	FieldViewabilityRate       Field = "viewabilityRate"
	FieldMeasurableImpressions Field = "measurableImpressions"
)

// ColumnMap resolves a canonical field to the column index it occupies in one
// uploaded file. Built once from the header row and immutable afterwards.
// Fields the header does not carry are simply absent; consumers treat them as
// unknown rather than erroring.
type ColumnMap map[Field]int

// UnknownValue is the default for optional dimension values that are missing
// or blank in the source row.
const UnknownValue = "Unknown"

// Record is one normalized ad-report row. Counter and ratio fields are
// pointers so that "absent from the file" stays distinguishable from zero.
// Website and Date are required; a row lacking either is never materialized
// as a Record.
type Record struct {
	Date       time.Time
	Website    string
	Country    string
	Device     string
	Browser    string
	AdFormat   string
	AdUnit     string
	Advertiser string
	Domain     string

	Requests              *int64
	Impressions           *int64
	Clicks                *int64
	ViewableImpressions   *int64
	MeasurableImpressions *int64

	CTR             *float64
	ECPM            *float64
	Revenue         *float64
	ViewabilityRate *float64

	// Derived at normalization time, only when both operands are present
	// and requests > 0.
	FillRate *float64
	ARPU     *float64
}

// Int64 returns a pointer to v. Convenience for building records.
func Int64(v int64) *int64 { return &v }

// Float64 returns a pointer to v. Convenience for building records.
func Float64(v float64) *float64 { return &v }
