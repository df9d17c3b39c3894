package jobs

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Reloader reopens a database from disk.
type Reloader interface {
	Reload()
}

// GeoReloadJob reopens the GeoLite2 database when the file on disk changes,
// so an externally refreshed database is picked up without a restart.
type GeoReloadJob struct {
	resolver Reloader
	path     string
	logger   *slog.Logger
	lastMod  time.Time
}

// NewGeoReloadJob watches path for changes.
func NewGeoReloadJob(resolver Reloader, path string, logger *slog.Logger) *GeoReloadJob {
	j := &GeoReloadJob{resolver: resolver, path: path, logger: logger}
	if info, err := os.Stat(path); err == nil {
		j.lastMod = info.ModTime()
	}
	return j
}

func (j *GeoReloadJob) Name() string { return "geoip_reload" }

// Run reloads the database if its modification time moved forward.
func (j *GeoReloadJob) Run(ctx context.Context) error {
	info, err := os.Stat(j.path)
	if err != nil {
		j.logger.Debug("GeoLite2 database not present", slog.String("path", j.path))
		return nil
	}
	if !info.ModTime().After(j.lastMod) {
		return nil
	}

	j.logger.Info("GeoLite2 database changed, reloading",
		slog.String("path", j.path),
		slog.Time("modified", info.ModTime()))
	j.resolver.Reload()
	j.lastMod = info.ModTime()
	return nil
}
