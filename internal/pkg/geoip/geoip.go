// Package geoip resolves a visitor's country from provider headers, with an
// optional GeoLite2 fallback on the client IP.
package geoip

import (
	"encoding/json"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/oschwald/geoip2-golang"
)

// UnknownCountry is reported when no source yields a country.
const UnknownCountry = "UNKNOWN"

// Plain country headers, checked in order after X-Nf-Geo.
var countryHeaders = []string{
	"X-Country",
	"CF-IPCountry",
	"X-Vercel-IP-Country",
}

// Resolver looks up countries. A Resolver with no database only reads headers.
type Resolver struct {
	mu     sync.RWMutex
	path   string
	reader *geoip2.Reader
	logger *slog.Logger
}

// NewResolver opens the GeoLite2 database at path. GeoIP is optional: an
// empty path or a missing file yields a header-only resolver.
func NewResolver(path string, logger *slog.Logger) *Resolver {
	r := &Resolver{path: path, logger: logger}
	r.reader = r.open()
	return r
}

func (r *Resolver) open() *geoip2.Reader {
	if r.path == "" {
		r.logger.Debug("GeoIP database path not configured - GeoIP lookups disabled")
		return nil
	}

	if _, err := os.Stat(r.path); os.IsNotExist(err) {
		r.logger.Info("GeoLite2 database not found - GeoIP lookups disabled",
			slog.String("path", r.path),
			slog.String("hint", "Download from https://www.maxmind.com/en/geolite2/signup"))
		return nil
	} else if err != nil {
		r.logger.Warn("Error checking GeoLite2 database file",
			slog.String("path", r.path),
			slog.Any("error", err))
		return nil
	}

	db, err := geoip2.Open(r.path)
	if err != nil {
		r.logger.Error("Failed to open GeoLite2 database",
			slog.String("path", r.path),
			slog.Any("error", err))
		return nil
	}

	r.logger.Info("GeoLite2 database initialized", slog.String("path", r.path))
	return db
}

// Reload reopens the database from disk, e.g. after a new file was downloaded.
func (r *Resolver) Reload() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.reader != nil {
		r.reader.Close()
	}
	r.reader = r.open()
}

// Enabled reports whether a GeoLite2 database is loaded.
func (r *Resolver) Enabled() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.reader != nil
}

// Close releases the database.
func (r *Resolver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.reader == nil {
		return nil
	}
	err := r.reader.Close()
	r.reader = nil
	return err
}

// Country returns the upper-cased ISO country code for a request. Headers are
// consulted first, then the database on ip, then UnknownCountry.
func (r *Resolver) Country(header func(string) string, ip string) string {
	if code := CountryFromHeaders(header); code != "" {
		return code
	}
	if code := r.lookup(ip); code != "" {
		return code
	}
	return UnknownCountry
}

func (r *Resolver) lookup(ip string) string {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return ""
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.reader == nil {
		return ""
	}

	record, err := r.reader.Country(parsed)
	if err != nil {
		r.logger.Debug("GeoIP lookup failed", slog.Any("error", err))
		return ""
	}
	return strings.ToUpper(record.Country.IsoCode)
}

// CountryFromHeaders reads the provider geolocation headers. The X-Nf-Geo
// JSON document may carry the code as country.code, country_code or a
// plain country string.
func CountryFromHeaders(header func(string) string) string {
	if raw := header("X-Nf-Geo"); raw != "" {
		if code := countryFromGeoJSON(raw); code != "" {
			return code
		}
	}

	for _, name := range countryHeaders {
		if v := strings.TrimSpace(header(name)); v != "" {
			return strings.ToUpper(v)
		}
	}
	return ""
}

func countryFromGeoJSON(raw string) string {
	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return ""
	}

	if country, ok := doc["country"].(map[string]any); ok {
		if code, ok := country["code"].(string); ok && code != "" {
			return strings.ToUpper(code)
		}
	}
	if code, ok := doc["country_code"].(string); ok && code != "" {
		return strings.ToUpper(code)
	}
	if code, ok := doc["country"].(string); ok && code != "" {
		return strings.ToUpper(code)
	}
	return ""
}
