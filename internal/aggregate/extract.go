package aggregate

import (
	"sort"
	"time"

	"github.com/reportstream/reportstream/internal/models"
)

// TopLimits sets the list sizes of the extracted result. Zero or negative
// means unlimited for that list.
type TopLimits struct {
	Websites    int
	Countries   int
	Devices     int
	AdFormats   int
	Advertisers int
	AdUnits     int
	Domains     int
	Browsers    int
}

// DefaultTopLimits mirrors what the dashboard renders.
func DefaultTopLimits() TopLimits {
	return TopLimits{
		Websites:    10,
		Countries:   10,
		Devices:     5,
		AdFormats:   5,
		Advertisers: 10,
		AdUnits:     10,
		Domains:     10,
		Browsers:    10,
	}
}

type entry struct {
	name   string
	bucket *Bucket
}

// sortedEntries returns a dimension's buckets ordered by revenue descending,
// ties broken by first-seen order.
func (s *State) sortedEntries(dim Dimension) []entry {
	m := s.buckets[dim]
	entries := make([]entry, 0, len(m))
	for name, b := range m {
		entries = append(entries, entry{name: name, bucket: b})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].bucket.Revenue != entries[j].bucket.Revenue {
			return entries[i].bucket.Revenue > entries[j].bucket.Revenue
		}
		return entries[i].bucket.seq < entries[j].bucket.seq
	})
	return entries
}

// TopItems returns the k highest-revenue entries of a dimension with derived
// avgEcpm and ctr computed at read time (0 when impressions is 0, never
// NaN or Inf). k <= 0 returns every entry.
func (s *State) TopItems(dim Dimension, k int) []models.NamedMetrics {
	entries := s.sortedEntries(dim)
	if k > 0 && len(entries) > k {
		entries = entries[:k]
	}
	items := make([]models.NamedMetrics, 0, len(entries))
	for _, e := range entries {
		b := e.bucket
		items = append(items, models.NamedMetrics{
			Name:        e.name,
			Revenue:     b.Revenue,
			Impressions: b.Impressions,
			Clicks:      b.Clicks,
			Requests:    b.Requests,
			AvgEcpm:     ecpmOf(b.Revenue, b.Impressions),
			CTR:         ctrOf(b.Clicks, b.Impressions),
		})
	}
	return items
}

// Summary maps the running totals into the result summary, guarding the
// derived averages against division by zero.
func (s *State) Summary() models.Summary {
	return models.Summary{
		TotalRows:        s.rows,
		TotalRevenue:     s.totalRevenue,
		TotalImpressions: s.totalImpressions,
		TotalClicks:      s.totalClicks,
		TotalRequests:    s.totalRequests,
		AvgEcpm:          ecpmOf(s.totalRevenue, s.totalImpressions),
		AvgCtr:           ctrOf(s.totalClicks, s.totalImpressions),
	}
}

// DailyTrend emits one point per observed date, ascending by date.
func (s *State) DailyTrend() []models.TrendPoint {
	m := s.buckets[DimDate]
	points := make([]models.TrendPoint, 0, len(m))
	for key, b := range m {
		points = append(points, models.TrendPoint{
			Date:        key,
			Revenue:     b.Revenue,
			Impressions: b.Impressions,
			Clicks:      b.Clicks,
			Requests:    b.Requests,
			AvgEcpm:     ecpmOf(b.Revenue, b.Impressions),
			CTR:         ctrOf(b.Clicks, b.Impressions),
		})
	}
	sort.Slice(points, func(i, j int) bool {
		return dateKeyToTime(points[i].Date).Before(dateKeyToTime(points[j].Date))
	})
	return points
}

// Distribution returns the fill-rate histogram.
func (s *State) Distribution() models.FillRateDistribution { return s.dist }

// Result assembles the immutable AnalysisResult for one file. Every list is
// non-nil so the serialized artifact keeps a stable shape even for
// dimensions with no observed entities.
func (s *State) Result(fileID, fileName string, quality *models.QualityReport, limits TopLimits) *models.AnalysisResult {
	if quality == nil {
		quality = models.NewQualityReport()
	}
	return &models.AnalysisResult{
		FileID:   fileID,
		FileName: fileName,
		Summary:  s.Summary(),

		TopWebsites:  s.TopItems(DimWebsite, limits.Websites),
		TopCountries: s.TopItems(DimCountry, limits.Countries),
		Devices:      s.TopItems(DimDevice, limits.Devices),
		AdFormats:    s.TopItems(DimAdFormat, limits.AdFormats),
		Advertisers:  s.TopItems(DimAdvertiser, limits.Advertisers),
		AdUnits:      s.TopItems(DimAdUnit, limits.AdUnits),
		Domains:      s.TopItems(DimDomain, limits.Domains),
		Browsers:     s.TopItems(DimBrowser, limits.Browsers),

		DailyTrend:           s.DailyTrend(),
		FillRateDistribution: s.dist,
		SamplePreview:        s.sample,
		DetailedAnalytics: models.DetailedAnalytics{
			CountryDevice:   s.TopItems(DimCountryDevice, 0),
			CountryAdFormat: s.TopItems(DimCountryAdFormat, 0),
			DeviceAdFormat:  s.TopItems(DimDeviceAdFormat, 0),
			WebsiteCountry:  s.TopItems(DimWebsiteCountry, 0),
			AdUnitAdFormat:  s.TopItems(DimAdUnitAdFormat, 0),
		},
		Quality:     quality,
		ProcessedAt: time.Now().UTC(),
	}
}
