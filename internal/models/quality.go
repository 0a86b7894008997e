package models

// QualityIssueKind classifies a data-quality observation made while
// normalizing rows. Issues are flagged for visibility only; the offending
// value is always preserved as-is in the record.
type QualityIssueKind string

const (
	IssueCountryPlaceholder QualityIssueKind = "country_placeholder"
	IssueCountryNumericCode QualityIssueKind = "country_numeric_code"
	IssueCountryAdFormat    QualityIssueKind = "country_contains_ad_format"
	IssueWebsiteCountryLike QualityIssueKind = "website_looks_like_country"
	IssueAdFormatCountry    QualityIssueKind = "ad_format_looks_like_country"
	IssueDateFormat         QualityIssueKind = "unexpected_date_format"
)

// QualityIssue is one flagged value with enough context to locate it.
type QualityIssue struct {
	Line  int64            `json:"line"`
	Field Field            `json:"field"`
	Value string           `json:"value"`
	Kind  QualityIssueKind `json:"kind"`
}

// qualitySampleLimit bounds the per-report issue sample; counts keep
// accumulating past the limit.
const qualitySampleLimit = 50

// QualityReport accumulates detected data-quality issues for one file.
type QualityReport struct {
	Counts  map[QualityIssueKind]int64 `json:"counts"`
	Samples []QualityIssue             `json:"samples"`
}

// NewQualityReport returns an empty report with non-nil containers so the
// serialized form is stable even when no issues were seen.
func NewQualityReport() *QualityReport {
	return &QualityReport{
		Counts:  make(map[QualityIssueKind]int64),
		Samples: []QualityIssue{},
	}
}

// Add records one issue, keeping at most qualitySampleLimit samples.
func (r *QualityReport) Add(kind QualityIssueKind, line int64, field Field, value string) {
	r.Counts[kind]++
	if len(r.Samples) < qualitySampleLimit {
		r.Samples = append(r.Samples, QualityIssue{Line: line, Field: field, Value: value, Kind: kind})
	}
}

// Total returns the number of issues recorded across all kinds.
func (r *QualityReport) Total() int64 {
	var n int64
	for _, c := range r.Counts {
		n += c
	}
	return n
}
