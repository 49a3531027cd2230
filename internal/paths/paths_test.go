package paths

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCreatesLayout(t *testing.T) {
	root := t.TempDir()
	r, err := New(root, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	for _, dir := range []string{r.DataDir, r.CacheDir, r.ImageCache, r.LogsDir} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}

	assert.Equal(t, filepath.Join(root, "data", "waxpeer_data.json"), r.VenueDataFile("waxpeer"))
	assert.Equal(t, filepath.Join(root, "data", "profitability_data.json"), r.ProfitabilityFile())
	assert.Equal(t, filepath.Join(root, "data", "item_nameids.json"), r.NameIDFile())
}

func TestEnvOverridesWin(t *testing.T) {
	data := t.TempDir()
	t.Setenv("BOT_DATA_PATH", data)

	r, err := New(t.TempDir(), slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	assert.Equal(t, data, r.DataDir)
	assert.Equal(t, filepath.Join(data, "cache"), r.CacheDir)
}
