package scraper

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/semaphore"

	"github.com/mfigueredo/skinarb/internal/cache"
	"github.com/mfigueredo/skinarb/internal/config"
	"github.com/mfigueredo/skinarb/internal/domain"
	"github.com/mfigueredo/skinarb/internal/paths"
	"github.com/mfigueredo/skinarb/internal/storage"
	"github.com/mfigueredo/skinarb/internal/telemetry"
)

func testDeps(t *testing.T) Deps {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	reg, err := paths.New(t.TempDir(), logger)
	require.NoError(t, err)
	_, secrets, err := config.Load(t.TempDir())
	require.NoError(t, err)
	return Deps{
		Secrets:  secrets,
		Store:    storage.New(reg, logger),
		Images:   cache.NewImages(reg.ImageCache, logger),
		Recorder: telemetry.NewRecorder(nil),
		SteamSem: semaphore.NewWeighted(5),
		Logger:   logger,
	}
}

func scraperCfg(venue domain.Venue) config.ScraperConfig {
	return config.Defaults().Scrapers[string(venue)]
}

func TestWaxpeerParse(t *testing.T) {
	a := newWaxpeer(testDeps(t), scraperCfg(domain.VenueWaxpeer))

	payload := `{"success":true,"count":2,"items":[
		{"name":"AK-47 | Redline (Field-Tested)","price":3783,"count":5,"steam_price":4550,"img":"https://img/x.png"},
		{"name":"","price":100},
		{"name":"Negative","price":0}
	]}`
	listings, err := a.Parse([]byte(payload))
	require.NoError(t, err)
	require.Len(t, listings, 1)

	l := listings[0]
	assert.Equal(t, "AK-47 | Redline (Field-Tested)", l.Item)
	assert.InDelta(t, 37.83, l.Price, 1e-9)
	assert.Equal(t, domain.VenueWaxpeer, l.Platform)
	require.NotNil(t, l.Quantity)
	assert.Equal(t, 5, *l.Quantity)
	assert.InDelta(t, 45.50, l.Extra["steam_price"].(float64), 1e-9)
}

func TestCSTradeParseStripsBonus(t *testing.T) {
	a := newCSTrade(testDeps(t), scraperCfg(domain.VenueCSTrade))

	payload := `{"AWP | Asiimov (Field-Tested)":{"price":60.00,"stock":3,"tradable":1}}`
	listings, err := a.Parse([]byte(payload))
	require.NoError(t, err)
	require.Len(t, listings, 1)

	l := listings[0]
	// 60.00 listed with a 50% bonus is 40.00 effective.
	assert.InDelta(t, 40.00, l.Price, 1e-9)
	assert.InDelta(t, 60.00, l.Extra["original_price"].(float64), 1e-9)
	assert.InDelta(t, 0.50, l.Extra["bonus_rate"].(float64), 1e-9)
}

func TestBitskinsParseMillis(t *testing.T) {
	a := newBitskins(testDeps(t), scraperCfg(domain.VenueBitskins))

	payload := `{"list":[{"name":"Glock-18 | Fade (Factory New)","price_min":254990,"quantity":2}]}`
	listings, err := a.Parse([]byte(payload))
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.InDelta(t, 254.99, listings[0].Price, 1e-9)
	assert.Equal(t, int64(254990), listings[0].Extra["original_price_millis"].(int64))
}

func TestManncoPriceTransform(t *testing.T) {
	cases := []struct {
		raw  int64
		want float64
	}{
		{1250, 12.50},
		{99, 0.99},
		{5, 0.05},
		{100000, 1000.00},
	}
	for _, tc := range cases {
		assert.InDelta(t, tc.want, manncoPrice(tc.raw), 1e-9, "raw %d", tc.raw)
	}
}

func TestSkinportParseSkipsNilPrice(t *testing.T) {
	a := newSkinport(testDeps(t), scraperCfg(domain.VenueSkinport))

	payload := `[
		{"market_hash_name":"P250 | Sand Dune","min_price":null,"quantity":10},
		{"market_hash_name":"M4A1-S | Printstream (Minimal Wear)","min_price":123.456,"quantity":4,"item_page":"https://skinport.com/item/x"}
	]`
	listings, err := a.Parse([]byte(payload))
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.InDelta(t, 123.46, listings[0].Price, 1e-9)
	assert.Equal(t, "https://skinport.com/item/x", listings[0].URL)
}

func TestEmpireParseCoinConversion(t *testing.T) {
	a := newEmpire(testDeps(t), scraperCfg(domain.VenueEmpire))

	payload := `{"data":[{"market_name":"USP-S | Kill Confirmed (Minimal Wear)","market_value":10000}]}`
	listings, err := a.Parse([]byte(payload))
	require.NoError(t, err)
	require.Len(t, listings, 1)
	// 10000 -> 100 coins -> 100 × 0.6154 USD.
	assert.InDelta(t, 61.54, listings[0].Price, 1e-9)
	assert.InDelta(t, 100.0, listings[0].Extra["price_coins"].(float64), 1e-9)
}

func TestSteamMarketParseBatchItem(t *testing.T) {
	a := newSteamMarket(testDeps(t), scraperCfg(domain.VenueSteamMarket)).(*steamMarketAdapter)
	item := storage.NameID{ID: 176321160, Name: "AK-47 | Redline (Field-Tested)"}

	// Steam serializes the cent amount as a string.
	l, err := a.ParseBatchItem([]byte(`{"success":1,"highest_buy_order":"4550"}`), item)
	require.NoError(t, err)
	require.NotNil(t, l)
	assert.InDelta(t, 45.50, l.Price, 1e-9)
	assert.Equal(t, domain.VenueSteamMarket, l.Platform)

	// No buy orders: skipped, not zero-priced.
	l, err = a.ParseBatchItem([]byte(`{"success":1}`), item)
	require.NoError(t, err)
	assert.Nil(t, l)

	_, err = a.ParseBatchItem([]byte(`{"success":0}`), item)
	assert.Error(t, err)
}

func TestSteamIDParseBatchItem(t *testing.T) {
	a := newSteamID(testDeps(t), scraperCfg(domain.VenueSteamID)).(*steamidAdapter)
	item := storage.NameID{Name: "AK-47 | Redline (Field-Tested)"}

	html := []byte(`<script>Market_LoadOrderSpread( 176321160 );</script>`)
	l, err := a.ParseBatchItem(html, item)
	require.NoError(t, err)
	assert.Nil(t, l, "nameid harvesting produces no listings")

	require.NoError(t, a.Finalize(t.Context()))
	ids, err := a.deps.Store.ReadNameIDs()
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Equal(t, int64(176321160), ids[0].ID)
	assert.Equal(t, item.Name, ids[0].Name)

	_, err = a.ParseBatchItem([]byte("<html>no spread here</html>"), item)
	assert.Error(t, err)
}

func TestParseErrorsOnGarbage(t *testing.T) {
	deps := testDeps(t)
	adapters := []Adapter{
		newWaxpeer(deps, scraperCfg(domain.VenueWaxpeer)),
		newSkinport(deps, scraperCfg(domain.VenueSkinport)),
		newBitskins(deps, scraperCfg(domain.VenueBitskins)),
		newMarketCSGO(deps, scraperCfg(domain.VenueMarketCSGO)),
	}
	for _, a := range adapters {
		_, err := a.Parse([]byte("<!DOCTYPE html><html>not json</html>"))
		var parseErr *domain.ParseError
		assert.ErrorAs(t, err, &parseErr, "venue %s", a.Venue())
	}
}
