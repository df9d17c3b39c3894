package analytics

import (
	"sort"
	"strings"
	"sync"

	"github.com/pariz/gountries"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"gallerystats/internal/pkg/geoip"
	"gallerystats/internal/pkg/referrers"
)

// Top-N sizes for each breakdown.
const (
	TopCountries = 30
	TopSources   = 20
	TopReferrers = 30
	DailyWindow  = 30
)

// Entry is one row of a breakdown.
type Entry struct {
	Key   string `json:"key"`
	Value int64  `json:"value"`
	Label string `json:"label,omitempty"`
}

// DailyEntry is one row of the daily series.
type DailyEntry struct {
	Date           string `json:"date"`
	Visits         int64  `json:"visits"`
	UniqueVisitors int64  `json:"uniqueVisitors"`
}

// Report is the admin analytics view of the aggregate.
type Report struct {
	Totals         Totals       `json:"totals"`
	ByCountry      []Entry      `json:"byCountry"`
	BySource       []Entry      `json:"bySource"`
	ByReferrerHost []Entry      `json:"byReferrerHost"`
	DailyLast30    []DailyEntry `json:"dailyLast30"`
	Degraded       bool         `json:"degraded,omitempty"`
}

// EmptyReport is served when the aggregate cannot be read.
func EmptyReport() Report {
	return Report{
		ByCountry:      []Entry{},
		BySource:       []Entry{},
		ByReferrerHost: []Entry{},
		DailyLast30:    []DailyEntry{},
	}
}

var countries = sync.OnceValue(func() *gountries.Query {
	return gountries.New()
})

// BuildReport renders agg as a report.
func BuildReport(agg *Aggregate) Report {
	if agg == nil {
		return EmptyReport()
	}

	report := Report{
		Totals:         agg.Totals(),
		ByCountry:      topN(agg.ByCountry, TopCountries),
		BySource:       topN(agg.BySource, TopSources),
		ByReferrerHost: topN(agg.ByReferrerHost, TopReferrers),
		DailyLast30:    lastDays(agg.Daily, DailyWindow),
	}

	for i := range report.ByCountry {
		report.ByCountry[i].Label = CountryLabel(report.ByCountry[i].Key)
	}
	for i := range report.ByReferrerHost {
		report.ByReferrerHost[i].Label = referrers.FriendlyName(report.ByReferrerHost[i].Key)
	}
	return report
}

// CountryLabel returns the common English name for an ISO alpha-2 code.
func CountryLabel(code string) string {
	if code == "" || strings.EqualFold(code, geoip.UnknownCountry) {
		return cases.Title(language.English).String(strings.ToLower(geoip.UnknownCountry))
	}
	country, err := countries().FindCountryByAlpha(strings.ToUpper(code))
	if err != nil {
		return cases.Upper(language.AmericanEnglish).String(code)
	}
	return country.Name.Common
}

// topN sorts by value descending, then key ascending, and keeps n entries.
func topN(m map[string]int64, n int) []Entry {
	entries := make([]Entry, 0, len(m))
	for k, v := range m {
		entries = append(entries, Entry{Key: k, Value: v})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Value != entries[j].Value {
			return entries[i].Value > entries[j].Value
		}
		return entries[i].Key < entries[j].Key
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}

// lastDays returns the latest n recorded days in ascending date order.
func lastDays(daily map[string]DayStats, n int) []DailyEntry {
	out := make([]DailyEntry, 0, len(daily))
	for date, row := range daily {
		out = append(out, DailyEntry{Date: date, Visits: row.Visits, UniqueVisitors: row.UniqueVisitors})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	if len(out) > n {
		out = out[len(out)-n:]
	}
	return out
}
