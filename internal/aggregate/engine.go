// Package aggregate maintains the bounded running aggregates for one file's
// record stream and extracts the analytical result at end of stream.
package aggregate

import (
	"time"

	"github.com/reportstream/reportstream/internal/models"
)

// Dimension identifies one group-by axis. Pair dimensions use a composite
// "a|b" key; only the five pairs the dashboard cross-tabulates are tracked,
// never the full cross-product, so memory stays bounded by observed
// cardinality rather than file size.
type Dimension string

const (
	DimWebsite    Dimension = "website"
	DimCountry    Dimension = "country"
	DimDevice     Dimension = "device"
	DimAdFormat   Dimension = "adFormat"
	DimAdvertiser Dimension = "advertiser"
	DimDomain     Dimension = "domain"
	DimBrowser    Dimension = "browser"
	DimAdUnit     Dimension = "adUnit"
	DimDate       Dimension = "date"

	DimCountryDevice   Dimension = "country|device"
	DimCountryAdFormat Dimension = "country|adFormat"
	DimDeviceAdFormat  Dimension = "device|adFormat"
	DimWebsiteCountry  Dimension = "website|country"
	DimAdUnitAdFormat  Dimension = "adUnit|adFormat"
)

// allDimensions fixes iteration order for deterministic extraction.
var allDimensions = []Dimension{
	DimWebsite, DimCountry, DimDevice, DimAdFormat, DimAdvertiser,
	DimDomain, DimBrowser, DimAdUnit, DimDate,
	DimCountryDevice, DimCountryAdFormat, DimDeviceAdFormat,
	DimWebsiteCountry, DimAdUnitAdFormat,
}

// Bucket is the additive accumulator for one group key. It holds running
// sums only; derived ratios are computed when a bucket is read, never stored,
// so rounding error cannot compound across folds. seq records when the key
// was first seen, which keeps top-N ordering stable across ties.
type Bucket struct {
	Revenue     float64
	Impressions int64
	Clicks      int64
	Requests    int64

	seq int64
}

func (b *Bucket) add(revenue float64, impressions, clicks, requests int64) {
	b.Revenue += revenue
	b.Impressions += impressions
	b.Clicks += clicks
	b.Requests += requests
}

// State holds every aggregate for one file: one bucket map per dimension,
// the summary totals, the fill-rate histogram and a bounded sample preview.
// It is owned by a single ingestion; it is not safe for concurrent use and
// is discarded once the result is serialized.
type State struct {
	buckets map[Dimension]map[string]*Bucket
	seq     int64

	rows             int64
	totalRevenue     float64
	totalImpressions int64
	totalClicks      int64
	totalRequests    int64

	dist        models.FillRateDistribution
	sample      []models.RecordPreview
	sampleLimit int
}

// NewState allocates an empty aggregation state keeping at most sampleLimit
// preview rows.
func NewState(sampleLimit int) *State {
	buckets := make(map[Dimension]map[string]*Bucket, len(allDimensions))
	for _, d := range allDimensions {
		buckets[d] = make(map[string]*Bucket)
	}
	return &State{
		buckets:     buckets,
		sample:      []models.RecordPreview{},
		sampleLimit: sampleLimit,
	}
}

// Rows returns the number of records folded so far.
func (s *State) Rows() int64 { return s.rows }

// Fold adds one normalized record into every tracked dimension. Amortized
// O(1) per dimension: a single lookup-or-insert plus four additions.
// Folding is commutative and associative over records, so record order never
// changes the resulting sums.
func (s *State) Fold(rec *models.Record) {
	revenue := deref(rec.Revenue)
	impressions := derefInt(rec.Impressions)
	clicks := derefInt(rec.Clicks)
	requests := derefInt(rec.Requests)

	s.rows++
	s.totalRevenue += revenue
	s.totalImpressions += impressions
	s.totalClicks += clicks
	s.totalRequests += requests

	date := rec.Date.Format("2006-01-02")

	s.fold(DimWebsite, rec.Website, revenue, impressions, clicks, requests)
	s.fold(DimCountry, rec.Country, revenue, impressions, clicks, requests)
	s.fold(DimDevice, rec.Device, revenue, impressions, clicks, requests)
	s.fold(DimAdFormat, rec.AdFormat, revenue, impressions, clicks, requests)
	s.fold(DimAdvertiser, rec.Advertiser, revenue, impressions, clicks, requests)
	s.fold(DimDomain, rec.Domain, revenue, impressions, clicks, requests)
	s.fold(DimBrowser, rec.Browser, revenue, impressions, clicks, requests)
	s.fold(DimDate, date, revenue, impressions, clicks, requests)
	if rec.AdUnit != models.UnknownValue {
		s.fold(DimAdUnit, rec.AdUnit, revenue, impressions, clicks, requests)
	}

	s.fold(DimCountryDevice, rec.Country+"|"+rec.Device, revenue, impressions, clicks, requests)
	s.fold(DimCountryAdFormat, rec.Country+"|"+rec.AdFormat, revenue, impressions, clicks, requests)
	s.fold(DimDeviceAdFormat, rec.Device+"|"+rec.AdFormat, revenue, impressions, clicks, requests)
	s.fold(DimWebsiteCountry, rec.Website+"|"+rec.Country, revenue, impressions, clicks, requests)
	if rec.AdUnit != models.UnknownValue && rec.AdFormat != models.UnknownValue {
		s.fold(DimAdUnitAdFormat, rec.AdUnit+"|"+rec.AdFormat, revenue, impressions, clicks, requests)
	}

	if rec.FillRate != nil {
		s.dist.Observe(*rec.FillRate)
	}

	if len(s.sample) < s.sampleLimit {
		s.sample = append(s.sample, models.RecordPreview{
			Date:        date,
			Website:     rec.Website,
			Country:     rec.Country,
			AdFormat:    rec.AdFormat,
			Device:      rec.Device,
			Revenue:     revenue,
			Impressions: impressions,
			Clicks:      clicks,
			Requests:    requests,
			Ecpm:        ecpmOf(revenue, impressions),
			CTR:         ctrOf(clicks, impressions),
		})
	}
}

func (s *State) fold(dim Dimension, key string, revenue float64, impressions, clicks, requests int64) {
	m := s.buckets[dim]
	b, ok := m[key]
	if !ok {
		s.seq++
		b = &Bucket{seq: s.seq}
		m[key] = b
	}
	b.add(revenue, impressions, clicks, requests)
}

// Cardinality returns the number of distinct keys observed for a dimension.
func (s *State) Cardinality(dim Dimension) int { return len(s.buckets[dim]) }

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func derefInt(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}

// ecpmOf computes revenue per thousand impressions, 0 when impressions is 0.
func ecpmOf(revenue float64, impressions int64) float64 {
	if impressions <= 0 {
		return 0
	}
	return revenue / float64(impressions) * 1000
}

// ctrOf computes the click-through percentage, 0 when impressions is 0.
func ctrOf(clicks, impressions int64) float64 {
	if impressions <= 0 {
		return 0
	}
	return float64(clicks) / float64(impressions) * 100
}

// dateKeyToTime is used by extraction to order trend points. The key was
// produced by Format above, so parse errors cannot occur for state-built keys.
func dateKeyToTime(key string) time.Time {
	t, _ := time.Parse("2006-01-02", key)
	return t
}
