// Package paths resolves the well-known directories of the bot (data, cache,
// images, logs, config) from the process environment so no absolute paths
// leak into other components.
package paths

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Registry holds the resolved directory layout. Construct it once at startup
// with New and thread it explicitly; components never read path environment
// variables themselves.
type Registry struct {
	Root       string
	DataDir    string
	CacheDir   string
	ImageCache string
	LogsDir    string
	ConfigDir  string
}

// New resolves all directories relative to root, honouring the BOT_*_PATH
// overrides, and creates the data, cache, image and log directories when
// missing. The config directory is only resolved, never created.
func New(root string, logger *slog.Logger) (*Registry, error) {
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("paths: resolve working directory: %w", err)
		}
		root = wd
	}

	r := &Registry{Root: root}
	r.DataDir = envOr("BOT_DATA_PATH", filepath.Join(root, "data"))
	r.CacheDir = envOr("BOT_CACHE_PATH", filepath.Join(r.DataDir, "cache"))
	r.ImageCache = envOr("IMAGE_CACHE_PATH", filepath.Join(r.CacheDir, "images"))
	r.LogsDir = envOr("BOT_LOG_PATH", filepath.Join(root, "logs"))
	r.ConfigDir = envOr("BOT_CONFIG_PATH", filepath.Join(root, "config"))

	for _, dir := range []string{r.DataDir, r.CacheDir, r.ImageCache, r.LogsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("paths: create %s: %w", dir, err)
		}
	}

	logger.Info("path registry initialized",
		slog.String("data", r.DataDir),
		slog.String("cache", r.CacheDir),
		slog.String("config", r.ConfigDir),
	)
	return r, nil
}

// VenueDataFile returns the on-disk snapshot path for a venue, e.g.
// data/waxpeer_data.json.
func (r *Registry) VenueDataFile(venue string) string {
	return filepath.Join(r.DataDir, venue+"_data.json")
}

// ProfitabilityFile returns the path of the opportunity archive artifact.
func (r *Registry) ProfitabilityFile() string {
	return filepath.Join(r.DataDir, "profitability_data.json")
}

// NameIDFile returns the path of the Steam item_nameid index.
func (r *Registry) NameIDFile() string {
	return filepath.Join(r.DataDir, "item_nameids.json")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
