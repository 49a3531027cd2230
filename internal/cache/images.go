package cache

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Images is the content-addressed on-disk image cache. File paths derive
// deterministically from the source URL (MD5, hash-segmented directories);
// file existence is the cache check.
type Images struct {
	root   string
	logger *slog.Logger
}

// NewImages creates an image cache rooted at dir.
func NewImages(dir string, logger *slog.Logger) *Images {
	return &Images{root: dir, logger: logger.With(slog.String("component", "image_cache"))}
}

// PathFor returns the deterministic cache path for a source image URL.
func (c *Images) PathFor(url string) string {
	sum := md5.Sum([]byte(url))
	name := hex.EncodeToString(sum[:])
	return filepath.Join(c.root, name[:2], name+".jpg")
}

// Has reports whether the image for url is already cached.
func (c *Images) Has(url string) bool {
	_, err := os.Stat(c.PathFor(url))
	return err == nil
}

// Store writes fetched image bytes to the cache, creating the hash segment
// directory as needed. Writes are atomic (temp file + rename).
func (c *Images) Store(url string, data []byte) (string, error) {
	path := c.PathFor(url)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("cache: create image dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".img-*")
	if err != nil {
		return "", fmt.Errorf("cache: create temp image: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("cache: write image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("cache: close temp image: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("cache: rename image: %w", err)
	}
	return path, nil
}

// ImportTree adopts a pre-existing image tree by symlinking it into the
// cache root. Contents are never copied or duplicated. A broken or already
// present link is left alone.
func (c *Images) ImportTree(external string) error {
	if external == "" {
		return nil
	}
	info, err := os.Stat(external)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("cache: import tree %s: not a directory", external)
	}
	link := filepath.Join(c.root, "external")
	if _, err := os.Lstat(link); err == nil {
		return nil
	}
	if err := os.Symlink(external, link); err != nil {
		return fmt.Errorf("cache: symlink image tree: %w", err)
	}
	c.logger.Info("external image tree imported",
		slog.String("source", external),
		slog.String("link", link),
	)
	return nil
}

// LocalURL returns the cache-relative URL for a cached image, used when
// upgrading remote asset URLs in merged snapshots. Returns "" when the
// image is not cached.
func (c *Images) LocalURL(url string) string {
	if !c.Has(url) {
		return ""
	}
	rel, err := filepath.Rel(c.root, c.PathFor(url))
	if err != nil {
		return ""
	}
	return "/cache/images/" + filepath.ToSlash(rel)
}
