package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reportstream/reportstream/internal/models"
)

func TestTopItemsOrderAndLimit(t *testing.T) {
	s := NewState(0)
	s.Fold(rec("2024-01-15", "low.com", "US", "Mobile", "Banner", 10, 10, 0, 1))
	s.Fold(rec("2024-01-15", "high.com", "US", "Mobile", "Banner", 10, 10, 0, 30))
	s.Fold(rec("2024-01-15", "mid.com", "US", "Mobile", "Banner", 10, 10, 0, 5))

	top := s.TopItems(DimWebsite, 2)
	require.Len(t, top, 2)
	assert.Equal(t, "high.com", top[0].Name)
	assert.Equal(t, "mid.com", top[1].Name)

	all := s.TopItems(DimWebsite, 0)
	assert.Len(t, all, 3)
}

func TestTopItemsTieBreaksByFirstSeen(t *testing.T) {
	s := NewState(0)
	s.Fold(rec("2024-01-15", "first.com", "US", "Mobile", "Banner", 10, 10, 0, 5))
	s.Fold(rec("2024-01-15", "second.com", "US", "Mobile", "Banner", 10, 10, 0, 5))
	s.Fold(rec("2024-01-15", "third.com", "US", "Mobile", "Banner", 10, 10, 0, 5))

	top := s.TopItems(DimWebsite, 0)
	require.Len(t, top, 3)
	assert.Equal(t, []string{"first.com", "second.com", "third.com"},
		[]string{top[0].Name, top[1].Name, top[2].Name})
}

func TestTopItemsZeroImpressionsNeverNaN(t *testing.T) {
	s := NewState(0)
	s.Fold(rec("2024-01-15", "a.com", "US", "Mobile", "Banner", 10, 0, 0, 5))

	top := s.TopItems(DimWebsite, 0)
	require.Len(t, top, 1)
	assert.Zero(t, top[0].AvgEcpm)
	assert.Zero(t, top[0].CTR)
}

func TestTopItemsKeepsZeroRevenueEntries(t *testing.T) {
	s := NewState(0)
	s.Fold(rec("2024-01-15", "paid.com", "US", "Mobile", "Banner", 10, 10, 1, 5))
	s.Fold(rec("2024-01-15", "free.com", "US", "Mobile", "Banner", 10, 10, 1, 0))

	top := s.TopItems(DimWebsite, 10)
	require.Len(t, top, 2)
	assert.Equal(t, "free.com", top[1].Name)
}

func TestDailyTrendAscending(t *testing.T) {
	s := NewState(0)
	s.Fold(rec("2024-01-17", "a.com", "US", "Mobile", "Banner", 10, 10, 0, 3))
	s.Fold(rec("2024-01-15", "a.com", "US", "Mobile", "Banner", 10, 10, 0, 1))
	s.Fold(rec("2024-01-16", "a.com", "US", "Mobile", "Banner", 10, 10, 0, 2))
	s.Fold(rec("2024-01-15", "b.com", "US", "Mobile", "Banner", 10, 10, 0, 4))

	trend := s.DailyTrend()
	require.Len(t, trend, 3)
	assert.Equal(t, "2024-01-15", trend[0].Date)
	assert.Equal(t, 5.0, trend[0].Revenue)
	assert.Equal(t, "2024-01-16", trend[1].Date)
	assert.Equal(t, "2024-01-17", trend[2].Date)
}

func TestResultShapeStable(t *testing.T) {
	s := NewState(20)
	res := s.Result("file-1", "empty.csv", nil, DefaultTopLimits())

	assert.Equal(t, "file-1", res.FileID)
	assert.Equal(t, "empty.csv", res.FileName)
	assert.NotNil(t, res.TopWebsites)
	assert.NotNil(t, res.TopCountries)
	assert.NotNil(t, res.Devices)
	assert.NotNil(t, res.AdFormats)
	assert.NotNil(t, res.Advertisers)
	assert.NotNil(t, res.AdUnits)
	assert.NotNil(t, res.Domains)
	assert.NotNil(t, res.Browsers)
	assert.NotNil(t, res.DailyTrend)
	assert.NotNil(t, res.SamplePreview)
	assert.NotNil(t, res.Quality)
	assert.False(t, res.ProcessedAt.IsZero())
}

func TestResultDetailedAnalyticsUnsliced(t *testing.T) {
	s := NewState(20)
	for i := 0; i < 15; i++ {
		s.Fold(rec("2024-01-15", "a.com", country(i), "Mobile", "Banner", 10, 10, 0, 1))
	}
	res := s.Result("file-1", "wide.csv", models.NewQualityReport(), TopLimits{Countries: 3})

	assert.Len(t, res.TopCountries, 3)
	assert.Len(t, res.DetailedAnalytics.CountryDevice, 15)
}

func country(i int) string {
	return string(rune('A'+i)) + "X"
}
