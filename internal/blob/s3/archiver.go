package s3blob

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/mfigueredo/skinarb/internal/domain"
	"github.com/mfigueredo/skinarb/internal/paths"
)

// Archiver copies the bot's data artifacts (venue snapshots and the
// opportunity archive) into object storage under
// archive/<kind>/YYYY-MM/<name>-<timestamp>.json. Local files are never
// deleted; retention in the bucket is the provider's concern.
type Archiver struct {
	client *Client
	paths  *paths.Registry
	logger *slog.Logger
}

// NewArchiver creates an Archiver over the object-store client.
func NewArchiver(client *Client, p *paths.Registry, logger *slog.Logger) *Archiver {
	return &Archiver{
		client: client,
		paths:  p,
		logger: logger.With(slog.String("component", "archiver")),
	}
}

// ArchiveSnapshots uploads every venue data file currently on disk.
// Missing files are skipped; individual upload failures are logged and the
// first one is returned after the sweep completes.
func (a *Archiver) ArchiveSnapshots(ctx context.Context) (int, error) {
	var firstErr error
	uploaded := 0
	now := time.Now().UTC()

	for _, venue := range domain.AllVenues {
		if err := ctx.Err(); err != nil {
			return uploaded, err
		}
		path := a.paths.VenueDataFile(string(venue))
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		key := archiveKey("snapshots", string(venue), now)
		if err := a.client.Put(ctx, key, data, "application/json"); err != nil {
			a.logger.Warn("snapshot upload failed",
				slog.String("venue", string(venue)),
				slog.String("error", err.Error()),
			)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		uploaded++
	}

	a.logger.Info("snapshot archive sweep complete", slog.Int("uploaded", uploaded))
	return uploaded, firstErr
}

// ArchiveProfitability uploads the current opportunity archive artifact.
func (a *Archiver) ArchiveProfitability(ctx context.Context) error {
	path := a.paths.ProfitabilityFile()
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("s3blob: read %s: %w", filepath.Base(path), err)
	}
	key := archiveKey("profitability", "profitability_data", time.Now().UTC())
	if err := a.client.Put(ctx, key, data, "application/json"); err != nil {
		return err
	}
	a.logger.Info("profitability archive uploaded", slog.String("key", key))
	return nil
}

func archiveKey(kind, name string, now time.Time) string {
	return fmt.Sprintf("archive/%s/%s/%s-%s.json",
		kind, now.Format("2006-01"), name, now.Format("20060102T150405Z"))
}
