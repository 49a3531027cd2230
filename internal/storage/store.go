// Package storage persists venue catalogs and the opportunity archive as
// typed JSON artifacts in the data directory. Every write is atomic: data
// goes to a temporary file in the target directory and is renamed into
// place, so cancellation can never leave a half-written artifact.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/mfigueredo/skinarb/internal/domain"
	"github.com/mfigueredo/skinarb/internal/paths"
)

// Store reads and writes the on-disk artifacts. The archive file is guarded
// by a single critical section; snapshot files are written by at most one
// adapter each, so they need no extra locking.
type Store struct {
	paths     *paths.Registry
	logger    *slog.Logger
	archiveMu sync.Mutex
}

// New creates a Store over the given path registry.
func New(p *paths.Registry, logger *slog.Logger) *Store {
	return &Store{paths: p, logger: logger.With(slog.String("component", "storage"))}
}

// WriteSnapshot persists a venue snapshot as a JSON array of normalized
// listing records.
func (s *Store) WriteSnapshot(snap domain.VenueSnapshot) error {
	path := s.paths.VenueDataFile(string(snap.Venue))
	if err := writeJSONAtomic(path, snap.Listings); err != nil {
		return &domain.PersistenceError{Path: path, Err: err}
	}
	s.logger.Info("snapshot persisted",
		slog.String("venue", string(snap.Venue)),
		slog.Int("items", len(snap.Listings)),
	)
	return nil
}

// ReadSnapshot loads a venue's persisted listings. A missing file returns an
// empty slice, not an error.
func (s *Store) ReadSnapshot(venue domain.Venue) ([]domain.Listing, error) {
	path := s.paths.VenueDataFile(string(venue))
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	var listings []domain.Listing
	if err := json.Unmarshal(raw, &listings); err != nil {
		return nil, fmt.Errorf("storage: decode %s: %w", path, err)
	}
	return listings, nil
}

// ReadArchive loads the opportunity archive, returning an empty archive when
// the file does not exist yet.
func (s *Store) ReadArchive() (domain.OpportunityArchive, error) {
	var archive domain.OpportunityArchive
	raw, err := os.ReadFile(s.paths.ProfitabilityFile())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return archive, nil
		}
		return archive, fmt.Errorf("storage: read archive: %w", err)
	}
	if err := json.Unmarshal(raw, &archive); err != nil {
		return archive, fmt.Errorf("storage: decode archive: %w", err)
	}
	return archive, nil
}

// PushArchive appends a new current entry to the opportunity archive under
// the archive lock, rotating the previous current onto history.
func (s *Store) PushArchive(entry domain.ArchiveEntry) (domain.OpportunityArchive, error) {
	s.archiveMu.Lock()
	defer s.archiveMu.Unlock()

	archive, err := s.ReadArchive()
	if err != nil {
		s.logger.Warn("archive unreadable, starting fresh", slog.String("error", err.Error()))
		archive = domain.OpportunityArchive{}
	}
	archive.Push(entry)

	path := s.paths.ProfitabilityFile()
	if err := writeJSONAtomic(path, archive); err != nil {
		return archive, &domain.PersistenceError{Path: path, Err: err}
	}
	return archive, nil
}

// ReadNameIDs loads the Steam item_nameid index used by the steam_market
// adapter.
func (s *Store) ReadNameIDs() ([]NameID, error) {
	raw, err := os.ReadFile(s.paths.NameIDFile())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("storage: read nameids: %w", err)
	}
	var ids []NameID
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("storage: decode nameids: %w", err)
	}
	return ids, nil
}

// WriteNameIDs persists the Steam item_nameid index.
func (s *Store) WriteNameIDs(ids []NameID) error {
	path := s.paths.NameIDFile()
	if err := writeJSONAtomic(path, ids); err != nil {
		return &domain.PersistenceError{Path: path, Err: err}
	}
	return nil
}

// NameID maps a Steam market hash name to its internal numeric listing ID.
type NameID struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// writeJSONAtomic marshals v with indentation and renames it into place.
func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
