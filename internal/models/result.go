package models

import "time"

// Summary holds the file-level totals. avgEcpm and avgCtr are derived from
// the totals when the summary is built and are 0 when impressions is 0.
type Summary struct {
	TotalRows        int64   `json:"totalRows"`
	TotalRevenue     float64 `json:"totalRevenue"`
	TotalImpressions int64   `json:"totalImpressions"`
	TotalClicks      int64   `json:"totalClicks"`
	TotalRequests    int64   `json:"totalRequests"`
	AvgEcpm          float64 `json:"avgEcpm"`
	AvgCtr           float64 `json:"avgCtr"`
}

// NamedMetrics is one entry of a top-N list: the group name plus the
// additive sums for the group and the ratios derived from them at read time.
type NamedMetrics struct {
	Name        string  `json:"name"`
	Revenue     float64 `json:"revenue"`
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
	Requests    int64   `json:"requests"`
	AvgEcpm     float64 `json:"avgEcpm"`
	CTR         float64 `json:"ctr"`
}

// TrendPoint is one day of the daily trend, ordered ascending by date.
type TrendPoint struct {
	Date        string  `json:"date"`
	Revenue     float64 `json:"revenue"`
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
	Requests    int64   `json:"requests"`
	AvgEcpm     float64 `json:"avgEcpm"`
	CTR         float64 `json:"ctr"`
}

// FillRateDistribution is a fixed five-bucket histogram of per-row fill
// rates in percent. Buckets are half-open: a boundary value belongs to the
// upper bucket, so exactly 20.0 counts toward "20-40%".
type FillRateDistribution struct {
	From0To20   int64 `json:"0-20%"`
	From20To40  int64 `json:"20-40%"`
	From40To60  int64 `json:"40-60%"`
	From60To80  int64 `json:"60-80%"`
	From80To100 int64 `json:"80-100%"`
}

// Observe increments the bucket the given fill rate falls into.
func (d *FillRateDistribution) Observe(rate float64) {
	switch {
	case rate < 20:
		d.From0To20++
	case rate < 40:
		d.From20To40++
	case rate < 60:
		d.From40To60++
	case rate < 80:
		d.From60To80++
	default:
		d.From80To100++
	}
}

// Total returns the number of observations across all buckets.
func (d FillRateDistribution) Total() int64 {
	return d.From0To20 + d.From20To40 + d.From40To60 + d.From60To80 + d.From80To100
}

// RecordPreview is the condensed row shape kept for UI sample previews.
type RecordPreview struct {
	Date        string  `json:"date"`
	Website     string  `json:"website"`
	Country     string  `json:"country"`
	AdFormat    string  `json:"adFormat"`
	Device      string  `json:"device"`
	Revenue     float64 `json:"revenue"`
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
	Requests    int64   `json:"requests"`
	Ecpm        float64 `json:"ecpm"`
	CTR         float64 `json:"ctr"`
}

// DetailedAnalytics carries the five dimension-pair breakdowns the dashboard
// cross-tabulates. Only these pairs are tracked; the full cross-product is
// intentionally never materialized.
type DetailedAnalytics struct {
	CountryDevice   []NamedMetrics `json:"countryDeviceCombination"`
	CountryAdFormat []NamedMetrics `json:"countryAdFormatCombination"`
	DeviceAdFormat  []NamedMetrics `json:"deviceAdFormatCombination"`
	WebsiteCountry  []NamedMetrics `json:"websiteCountryCombination"`
	AdUnitAdFormat  []NamedMetrics `json:"adUnitAdFormatCombination"`
}

// AnalysisResult is the durable analytical output for one uploaded file.
// It is assembled once at end of stream, immutable afterwards, and keyed by
// the opaque file identifier. A later upload under a new identifier
// supersedes it rather than merging. Every list field is present (possibly
// empty) in the serialized form.
type AnalysisResult struct {
	FileID   string  `json:"fileId"`
	FileName string  `json:"fileName"`
	Summary  Summary `json:"summary"`

	TopWebsites  []NamedMetrics `json:"topWebsites"`
	TopCountries []NamedMetrics `json:"topCountries"`
	Devices      []NamedMetrics `json:"devices"`
	AdFormats    []NamedMetrics `json:"adFormats"`
	Advertisers  []NamedMetrics `json:"advertisers"`
	AdUnits      []NamedMetrics `json:"adUnits"`
	Domains      []NamedMetrics `json:"domains"`
	Browsers     []NamedMetrics `json:"browsers"`

	DailyTrend           []TrendPoint         `json:"dailyTrend"`
	FillRateDistribution FillRateDistribution `json:"fillRateDistribution"`
	SamplePreview        []RecordPreview      `json:"samplePreview"`
	DetailedAnalytics    DetailedAnalytics    `json:"detailedAnalytics"`
	Quality              *QualityReport       `json:"qualityReport"`

	ProcessedAt time.Time `json:"processedAt"`
}
