package csvio

import (
	"strconv"
	"strings"
	"time"

	"github.com/reportstream/reportstream/internal/models"
)

// RejectReason explains why a raw row was dropped by the normalizer.
type RejectReason string

const (
	RejectNone           RejectReason = ""
	RejectFieldCount     RejectReason = "field_count_mismatch"
	RejectMissingWebsite RejectReason = "missing_website"
	RejectMissingDate    RejectReason = "missing_date"
	RejectBadDate        RejectReason = "unparsable_date"
)

// dateLayouts are tried in order when parsing the date column. The first
// layout is the canonical export format; anything past it is flagged as an
// unexpected format in the quality report.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006.01.02",
	"01/02/2006",
	"Jan 2, 2006",
}

// countryPlaceholders are values that mark an unknown country without
// carrying one. They are flagged, never rewritten.
var countryPlaceholders = map[string]struct{}{
	"unknown":   {},
	"(unknown)": {},
	"n/a":       {},
	"-":         {},
	"--":        {},
}

// adFormatKeywords catch ad-format names leaking into the country column
// (a known exporter misalignment). Lowercased substring match.
var adFormatKeywords = []string{
	"广告", "插页", "横幅", "视频", "原生", "激励",
	"banner", "interstitial", "rewarded", "native ad", "video ad",
}

// countryNames are display names (not codes) that sometimes leak into the
// ad-format column.
var countryNames = map[string]struct{}{
	"中国": {}, "美国": {}, "日本": {}, "韩国": {}, "英国": {}, "德国": {}, "法国": {},
	"意大利": {}, "西班牙": {}, "巴西": {}, "印度": {}, "俄罗斯": {}, "加拿大": {}, "澳大利亚": {},
}

// Normalizer converts raw rows into typed records using one file's column
// map. It also accumulates a data-quality report: suspicious values are
// flagged for visibility but the record keeps the raw value. Guessing a
// replacement for business data risks wrong conclusions downstream, so the
// normalizer never fabricates one.
type Normalizer struct {
	cols    models.ColumnMap
	width   int
	quality *models.QualityReport
}

// NewNormalizer builds a Normalizer for one file. width is the header's
// field count; rows with a different count are dropped. quality may be
// shared with other consumers of the same file.
func NewNormalizer(cols models.ColumnMap, width int, quality *models.QualityReport) *Normalizer {
	if quality == nil {
		quality = models.NewQualityReport()
	}
	return &Normalizer{cols: cols, width: width, quality: quality}
}

// Quality returns the report accumulated so far.
func (n *Normalizer) Quality() *models.QualityReport { return n.quality }

// Normalize converts one raw row into a Record. A nil record with a non-empty
// reason means the row was rejected: wrong field count, or a missing or
// unparsable required field (website, date). Optional fields degrade to
// "Unknown" (strings) or nil (numbers) instead of failing the row.
func (n *Normalizer) Normalize(row []string, line int64) (*models.Record, RejectReason) {
	if len(row) != n.width {
		return nil, RejectFieldCount
	}

	get := func(f models.Field) string {
		idx, ok := n.cols[f]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}
	getOr := func(f models.Field, def string) string {
		if v := get(f); v != "" {
			return v
		}
		return def
	}

	website := get(models.FieldWebsite)
	if website == "" {
		return nil, RejectMissingWebsite
	}

	rawDate := get(models.FieldDate)
	if rawDate == "" {
		return nil, RejectMissingDate
	}
	date, layoutIdx := parseDate(rawDate)
	if layoutIdx < 0 {
		n.quality.Add(models.IssueDateFormat, line, models.FieldDate, rawDate)
		return nil, RejectBadDate
	}
	if layoutIdx > 0 {
		n.quality.Add(models.IssueDateFormat, line, models.FieldDate, rawDate)
	}

	rec := &models.Record{
		Date:       date,
		Website:    website,
		Country:    getOr(models.FieldCountry, models.UnknownValue),
		Device:     getOr(models.FieldDevice, models.UnknownValue),
		Browser:    getOr(models.FieldBrowser, models.UnknownValue),
		AdFormat:   getOr(models.FieldAdFormat, models.UnknownValue),
		AdUnit:     getOr(models.FieldAdUnit, models.UnknownValue),
		Advertiser: getOr(models.FieldAdvertiser, models.UnknownValue),
		// The exporter often omits the domain column; the website is the
		// closest stand-in.
		Domain: getOr(models.FieldDomain, website),

		Requests:              parseCounter(get(models.FieldRequests)),
		Impressions:           parseCounter(get(models.FieldImpressions)),
		Clicks:                parseCounter(get(models.FieldClicks)),
		ViewableImpressions:   parseCounter(get(models.FieldViewableImpressions)),
		MeasurableImpressions: parseCounter(get(models.FieldMeasurableImpressions)),

		CTR:             parseRatio(get(models.FieldCTR)),
		ECPM:            parseRatio(get(models.FieldECPM)),
		Revenue:         parseRatio(get(models.FieldRevenue)),
		ViewabilityRate: parseRatio(get(models.FieldViewabilityRate)),
	}

	if rec.Requests != nil && *rec.Requests > 0 {
		if rec.Impressions != nil {
			rec.FillRate = models.Float64(float64(*rec.Impressions) / float64(*rec.Requests) * 100)
		}
		if rec.Revenue != nil {
			rec.ARPU = models.Float64(*rec.Revenue / float64(*rec.Requests) * 1000)
		}
	}

	n.inspect(rec, line)
	return rec, RejectNone
}

// inspect runs the detect-only data-quality checks.
func (n *Normalizer) inspect(rec *models.Record, line int64) {
	country := rec.Country
	if country != models.UnknownValue {
		lc := strings.ToLower(country)
		if _, ok := countryPlaceholders[lc]; ok {
			n.quality.Add(models.IssueCountryPlaceholder, line, models.FieldCountry, country)
		} else if isAllDigits(country) {
			n.quality.Add(models.IssueCountryNumericCode, line, models.FieldCountry, country)
		} else {
			for _, kw := range adFormatKeywords {
				if strings.Contains(lc, kw) {
					n.quality.Add(models.IssueCountryAdFormat, line, models.FieldCountry, country)
					break
				}
			}
		}
	}

	// A two-letter website is almost certainly a country code in the wrong
	// column.
	if len(rec.Website) == 2 && isAllLetters(rec.Website) {
		n.quality.Add(models.IssueWebsiteCountryLike, line, models.FieldWebsite, rec.Website)
	}

	if _, ok := countryNames[rec.AdFormat]; ok {
		n.quality.Add(models.IssueAdFormatCountry, line, models.FieldAdFormat, rec.AdFormat)
	}
}

// parseDate returns the parsed date and the index of the layout that
// matched, or -1 when none did.
func parseDate(s string) (time.Time, int) {
	for i, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, i
		}
	}
	return time.Time{}, -1
}

// cleanNumber strips grouping separators, currency symbols and percent signs
// so that "1,234", "$5.60" and "12.5%" parse. Exports localize numerics
// just like headers.
func cleanNumber(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ',', '$', '¥', '€', '£', '%', ' ', ' ':
			return -1
		}
		return r
	}, s)
}

// parseCounter parses a non-negative integer counter. Missing, unparsable
// or negative values degrade to nil rather than failing the row.
func parseCounter(s string) *int64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(cleanNumber(s), 10, 64)
	if err != nil {
		// Some exports write counters as floats ("1234.0").
		f, ferr := strconv.ParseFloat(cleanNumber(s), 64)
		if ferr != nil || f < 0 {
			return nil
		}
		return models.Int64(int64(f))
	}
	if v < 0 {
		return nil
	}
	return models.Int64(v)
}

// parseRatio parses a non-negative float. Missing, unparsable or negative
// values degrade to nil.
func parseRatio(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(cleanNumber(s), 64)
	if err != nil || v < 0 {
		return nil
	}
	return models.Float64(v)
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isAllLetters(s string) bool {
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') {
			return false
		}
	}
	return s != ""
}
