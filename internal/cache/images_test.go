package cache

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImages(t *testing.T) (*Images, string) {
	t.Helper()
	dir := t.TempDir()
	return NewImages(dir, slog.New(slog.DiscardHandler)), dir
}

func TestImagePathDeterministic(t *testing.T) {
	c, dir := testImages(t)
	const url = "https://community.fastly.steamstatic.com/economy/image/abc123"

	p1 := c.PathFor(url)
	p2 := c.PathFor(url)
	assert.Equal(t, p1, p2)
	assert.True(t, strings.HasPrefix(p1, dir))
	assert.True(t, strings.HasSuffix(p1, ".jpg"))

	// Hash-segmented layout: <root>/<first two hex chars>/<hash>.jpg
	rel, err := filepath.Rel(dir, p1)
	require.NoError(t, err)
	parts := strings.Split(rel, string(filepath.Separator))
	require.Len(t, parts, 2)
	assert.Len(t, parts[0], 2)

	assert.NotEqual(t, p1, c.PathFor(url+"x"))
}

func TestImageStoreAndHas(t *testing.T) {
	c, _ := testImages(t)
	const url = "https://example.com/img.png"

	assert.False(t, c.Has(url))
	assert.Empty(t, c.LocalURL(url))

	path, err := c.Store(url, []byte("fake-jpeg-bytes"))
	require.NoError(t, err)
	assert.True(t, c.Has(url))
	assert.Equal(t, c.PathFor(url), path)

	local := c.LocalURL(url)
	assert.True(t, strings.HasPrefix(local, "/cache/images/"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "fake-jpeg-bytes", string(data))
}

func TestImportTreeSymlinks(t *testing.T) {
	c, dir := testImages(t)

	external := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(external, "x.jpg"), []byte("x"), 0o644))

	require.NoError(t, c.ImportTree(external))

	link := filepath.Join(dir, "external")
	info, err := os.Lstat(link)
	require.NoError(t, err)
	assert.True(t, info.Mode()&os.ModeSymlink != 0, "import must symlink, never copy")

	// Idempotent.
	require.NoError(t, c.ImportTree(external))

	// Not a directory: rejected.
	assert.Error(t, c.ImportTree(filepath.Join(external, "x.jpg")))
}
