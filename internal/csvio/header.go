package csvio

import (
	"strings"
	"unicode"

	"github.com/reportstream/reportstream/internal/models"
)

// fieldAliases maps each canonical field to the header spellings observed
// across exporters. Ad Manager exports the same report with English or
// Chinese headers, in arbitrary column order, and with verbose variants.
var fieldAliases = map[models.Field][]string{
	models.FieldDate:                  {"日期", "Date"},
	models.FieldWebsite:               {"网站", "Website"},
	models.FieldCountry:               {"国家/地区", "国家", "Country"},
	models.FieldAdFormat:              {"广告资源格式", "广告格式", "Ad Format"},
	models.FieldAdUnit:                {"广告单元（所有级别）", "广告单元", "Ad Unit"},
	models.FieldAdvertiser:            {"广告客户（已分类）", "广告客户", "Advertiser"},
	models.FieldDomain:                {"广告客户网域", "域名", "Domain"},
	models.FieldDevice:                {"设备", "Device"},
	models.FieldBrowser:               {"浏览器", "Browser"},
	models.FieldRequests:              {"Ad Exchange 请求总数", "请求数", "Requests"},
	models.FieldImpressions:           {"Ad Exchange 展示次数", "展示数", "Impressions"},
	models.FieldClicks:                {"Ad Exchange 点击次数", "点击数", "Clicks"},
	models.FieldCTR:                   {"Ad Exchange 点击率", "点击率", "CTR"},
	models.FieldECPM:                  {"Ad Exchange 平均 eCPM", "eCPM", "CPM"},
	models.FieldRevenue:               {"Ad Exchange 收入", "收入", "Revenue"},
	models.FieldViewableImpressions:   {"Ad Exchange Active View可见展示次数", "可见展示", "Viewable Impressions"},
	models.FieldViewabilityRate:       {"Ad Exchange Active View可见展示次数百分比", "可见率", "Viewability Rate"},
	models.FieldMeasurableImpressions: {"Ad Exchange Active View可衡量展示次数", "可衡量展示", "Measurable Impressions"},
}

// fieldOrder fixes the field iteration order so that matching is
// deterministic when a header cell could satisfy more than one field.
var fieldOrder = []models.Field{
	models.FieldDate,
	models.FieldWebsite,
	models.FieldCountry,
	models.FieldAdFormat,
	models.FieldAdUnit,
	models.FieldAdvertiser,
	models.FieldDomain,
	models.FieldDevice,
	models.FieldBrowser,
	models.FieldRequests,
	models.FieldImpressions,
	models.FieldClicks,
	models.FieldCTR,
	models.FieldECPM,
	models.FieldRevenue,
	models.FieldViewableImpressions,
	models.FieldViewabilityRate,
	models.FieldMeasurableImpressions,
}

// normalizedAliases holds fieldAliases with every alias passed through
// normalizeHeader, computed once.
var normalizedAliases = func() map[models.Field][]string {
	m := make(map[models.Field][]string, len(fieldAliases))
	for f, aliases := range fieldAliases {
		for _, a := range aliases {
			m[f] = append(m[f], normalizeHeader(a))
		}
	}
	return m
}()

// normalizeHeader lowercases a header cell and strips everything that is not
// a letter or digit, so "国家/地区", " Country " and "country" all compare equal.
func normalizeHeader(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// BuildColumnMap resolves each header cell to a canonical field using three
// matching tiers tried in order: exact normalized match, header contains an
// alias, alias contains the header. The first tier that hits wins for a
// column, and the leftmost column wins for a field, so duplicate headers
// keep their first index. Unmatched cells are ignored; a field with no match
// is simply absent from the map.
func BuildColumnMap(header []string) models.ColumnMap {
	cols := make(models.ColumnMap)

	for idx, cell := range header {
		norm := normalizeHeader(cell)
		if norm == "" {
			continue
		}
		if f, ok := matchField(norm); ok {
			if _, taken := cols[f]; !taken {
				cols[f] = idx
			}
		}
	}
	return cols
}

func matchField(norm string) (models.Field, bool) {
	// Tier 1: exact match.
	for _, f := range fieldOrder {
		for _, alias := range normalizedAliases[f] {
			if norm == alias {
				return f, true
			}
		}
	}
	// Tier 2: the header contains an alias (verbose exporter variants).
	for _, f := range fieldOrder {
		for _, alias := range normalizedAliases[f] {
			if strings.Contains(norm, alias) {
				return f, true
			}
		}
	}
	// Tier 3: an alias contains the header (abbreviated headers).
	for _, f := range fieldOrder {
		for _, alias := range normalizedAliases[f] {
			if strings.Contains(alias, norm) {
				return f, true
			}
		}
	}
	return "", false
}
