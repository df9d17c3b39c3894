// Package analytics maintains the visit counter aggregate and builds reports
// from it.
package analytics

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// DayStats is the per-day bucket of the aggregate.
type DayStats struct {
	Visits         int64 `json:"visits"`
	UniqueVisitors int64 `json:"uniqueVisitors"`
}

// Aggregate is the all-time counter document.
type Aggregate struct {
	TotalVisits    int64               `json:"totalVisits"`
	UniqueVisitors int64               `json:"uniqueVisitors"`
	ByCountry      map[string]int64    `json:"byCountry"`
	BySource       map[string]int64    `json:"bySource"`
	ByReferrerHost map[string]int64    `json:"byReferrerHost"`
	Daily          map[string]DayStats `json:"daily"`
}

// Totals is the headline pair returned to clients.
type Totals struct {
	TotalVisits    int64 `json:"totalVisits"`
	UniqueVisitors int64 `json:"uniqueVisitors"`
}

// Event is one tracked visit. ReferrerHost must be empty for direct or
// internal traffic.
type Event struct {
	Country       string
	Source        string
	ReferrerHost  string
	Day           string
	CountedGlobal bool
	CountedDaily  bool
}

// NewAggregate returns an empty aggregate with all maps allocated.
func NewAggregate() *Aggregate {
	return &Aggregate{
		ByCountry:      map[string]int64{},
		BySource:       map[string]int64{},
		ByReferrerHost: map[string]int64{},
		Daily:          map[string]DayStats{},
	}
}

// Totals returns the aggregate's headline counts.
func (a *Aggregate) Totals() Totals {
	return Totals{TotalVisits: a.TotalVisits, UniqueVisitors: a.UniqueVisitors}
}

// Apply folds one event into the aggregate.
func (a *Aggregate) Apply(e Event) {
	a.TotalVisits++
	if e.CountedGlobal {
		a.UniqueVisitors++
	}

	increment(a.ByCountry, e.Country)
	increment(a.BySource, e.Source)
	if strings.TrimSpace(e.ReferrerHost) != "" {
		increment(a.ByReferrerHost, e.ReferrerHost)
	}

	if e.Day != "" {
		day := a.Daily[e.Day]
		day.Visits++
		if e.CountedDaily {
			day.UniqueVisitors++
		}
		a.Daily[e.Day] = day
	}
}

// TrimDaily removes day buckets strictly before cutoff (YYYY-MM-DD) and
// returns how many were removed.
func (a *Aggregate) TrimDaily(cutoff string) int {
	removed := 0
	for day := range a.Daily {
		if day < cutoff {
			delete(a.Daily, day)
			removed++
		}
	}
	return removed
}

func increment(m map[string]int64, key string) {
	k := strings.ToLower(strings.TrimSpace(key))
	if k == "" {
		k = "unknown"
	}
	m[k]++
}

// Decode parses a stored aggregate document. Anything malformed is replaced
// with zero values: negative, fractional-overflow or non-numeric counts
// become 0 and non-object maps become empty. Decode never fails.
func Decode(raw []byte) *Aggregate {
	agg := NewAggregate()

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil || doc == nil {
		return agg
	}

	agg.TotalVisits = toCount(doc["totalVisits"])
	agg.UniqueVisitors = toCount(doc["uniqueVisitors"])
	agg.ByCountry = toCountMap(doc["byCountry"])
	agg.BySource = toCountMap(doc["bySource"])
	agg.ByReferrerHost = toCountMap(doc["byReferrerHost"])

	for day, row := range toObject(doc["daily"]) {
		obj := toObject(row)
		agg.Daily[day] = DayStats{
			Visits:         toCount(obj["visits"]),
			UniqueVisitors: toCount(obj["uniqueVisitors"]),
		}
	}
	return agg
}

func toObject(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

func toCountMap(v any) map[string]int64 {
	out := map[string]int64{}
	for k, raw := range toObject(v) {
		out[k] = toCount(raw)
	}
	return out
}

// toCount coerces a JSON value to a non-negative integer, flooring
// fractions. Numeric strings are accepted.
func toCount(v any) int64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f > math.MaxInt64/2 {
		return 0
	}
	return int64(math.Floor(f))
}
