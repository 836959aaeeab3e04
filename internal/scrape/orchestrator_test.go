package scrape

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/nkhandelwal/ingres-resolver/internal/fetch"
	"github.com/nkhandelwal/ingres-resolver/internal/kv"
	"github.com/nkhandelwal/ingres-resolver/internal/store"
)

const semiURL = "https://ingres.iith.ac.in/gecdataonline/gis/INDIA;locname=karnataka;loctype=STATE;view=ADMIN"

type scrapeCall struct {
	transport fetch.Transport
	url       string
}

// fakeScraper answers per transport and records every call in order.
type fakeScraper struct {
	calls  []scrapeCall
	rest   func(url string) (fetch.Result, error)
	sdk    func(url string) (fetch.Result, error)
	legacy func(url string) (fetch.Result, error)
	direct func(url string) (fetch.Result, error)
}

func failing(string) (fetch.Result, error) { return fetch.Result{}, errors.New("unavailable") }

func newFakeScraper() *fakeScraper {
	return &fakeScraper{rest: failing, sdk: failing, legacy: failing, direct: failing}
}

func (f *fakeScraper) ScrapeREST(_ context.Context, url string, _ fetch.Options) (fetch.Result, error) {
	f.calls = append(f.calls, scrapeCall{fetch.TransportREST, url})
	return f.rest(url)
}

func (f *fakeScraper) ScrapeSDK(_ context.Context, url string, _ fetch.Options) (fetch.Result, error) {
	f.calls = append(f.calls, scrapeCall{fetch.TransportSDK, url})
	return f.sdk(url)
}

func (f *fakeScraper) ScrapeLegacy(_ context.Context, url string, _ fetch.Options) (fetch.Result, error) {
	f.calls = append(f.calls, scrapeCall{fetch.TransportLegacy, url})
	return f.legacy(url)
}

func (f *fakeScraper) Direct(_ context.Context, url string) (fetch.Result, error) {
	f.calls = append(f.calls, scrapeCall{fetch.TransportDirect, url})
	return f.direct(url)
}

func newTestKV(t *testing.T) (*kv.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := kv.New(context.Background(), mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	s, err := store.New(db)
	require.NoError(t, err)
	return s
}

func newOrchestrator(t *testing.T, k kv.Store, s *store.Store, f fetch.Scraper, clock clockwork.Clock) *Orchestrator {
	t.Helper()
	if clock == nil {
		clock = clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	}
	return New(Config{KV: k, Store: s, Scraper: f, Clock: clock, Logger: zerolog.Nop()})
}

func seedKV(t *testing.T, k kv.Store, url string, e kvEntry) {
	t.Helper()
	raw, err := json.Marshal(e)
	require.NoError(t, err)
	require.NoError(t, k.Set(context.Background(), kvKeyPrefix+url, raw, time.Hour))
}

func TestFetchOnceThenServeFromCache(t *testing.T) {
	k, _ := newTestKV(t)
	s := newTestStore(t)
	f := newFakeScraper()
	f.sdk = func(string) (fetch.Result, error) {
		return fetch.Result{HTML: "<h1>ok</h1>", Markdown: "# ok"}, nil
	}
	o := newOrchestrator(t, k, s, f, nil)
	ctx := context.Background()
	url := "https://ingres.iith.ac.in/gecdataonline/page"

	c, err := o.FetchWithCache(ctx, url, Options{})
	require.NoError(t, err)
	assert.Equal(t, "<h1>ok</h1>", c.HTML)
	assert.Equal(t, "# ok", c.Markdown)
	assert.Equal(t, url, c.EffectiveURL)
	fetched := len(f.calls)

	again, err := o.FetchWithCache(ctx, url, Options{})
	require.NoError(t, err)
	assert.Equal(t, c, again)
	assert.Len(t, f.calls, fetched, "second call must be served from cache")
}

func TestForceRefreshBypassesBothTiers(t *testing.T) {
	k, _ := newTestKV(t)
	s := newTestStore(t)
	f := newFakeScraper()
	f.sdk = func(string) (fetch.Result, error) {
		return fetch.Result{HTML: "fresh"}, nil
	}
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	o := newOrchestrator(t, k, s, f, clock)
	ctx := context.Background()
	url := "https://example.org/page"

	seedKV(t, k, url, kvEntry{HTML: "stale copy", FetchedAt: clock.Now().Unix(), TTLSeconds: 21600})
	require.NoError(t, s.UpsertScrape(ctx, url, "stale copy", "", 21600, clock.Now()))

	c, err := o.FetchWithCache(ctx, url, Options{ForceRefresh: true})
	require.NoError(t, err)
	assert.Equal(t, "fresh", c.HTML)
	assert.NotEmpty(t, f.calls)
}

func TestKVFreshnessWindow(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	t.Run("recent entry is a hit", func(t *testing.T) {
		k, _ := newTestKV(t)
		f := newFakeScraper()
		o := newOrchestrator(t, k, nil, f, clock)
		seedKV(t, k, "u1", kvEntry{HTML: "cached", FetchedAt: clock.Now().Unix() - 5, TTLSeconds: 21600})

		c, err := o.FetchWithCache(ctx, "u1", Options{})
		require.NoError(t, err)
		assert.Equal(t, "cached", c.HTML)
		assert.Empty(t, f.calls)
	})

	t.Run("entry past its window refetches", func(t *testing.T) {
		k, _ := newTestKV(t)
		f := newFakeScraper()
		f.sdk = func(string) (fetch.Result, error) { return fetch.Result{HTML: "refetched"}, nil }
		o := newOrchestrator(t, k, nil, f, clock)
		seedKV(t, k, "u2", kvEntry{HTML: "cached", FetchedAt: clock.Now().Unix() - 30000, TTLSeconds: 21600})

		c, err := o.FetchWithCache(ctx, "u2", Options{})
		require.NoError(t, err)
		assert.Equal(t, "refetched", c.HTML)
		assert.NotEmpty(t, f.calls)
	})

	t.Run("larger requested ttl revives a short-lived entry", func(t *testing.T) {
		k, _ := newTestKV(t)
		f := newFakeScraper()
		o := newOrchestrator(t, k, nil, f, clock)
		seedKV(t, k, "u3", kvEntry{HTML: "cached", FetchedAt: clock.Now().Unix() - 120, TTLSeconds: 60})

		c, err := o.FetchWithCache(ctx, "u3", Options{TTL: time.Hour})
		require.NoError(t, err)
		assert.Equal(t, "cached", c.HTML)
		assert.Empty(t, f.calls)
	})
}

func TestStoreTierServesOnKVMiss(t *testing.T) {
	k, _ := newTestKV(t)
	s := newTestStore(t)
	f := newFakeScraper()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	o := newOrchestrator(t, k, s, f, clock)
	ctx := context.Background()
	url := "https://example.org/page"

	require.NoError(t, s.UpsertScrape(ctx, url, "from store", "md", 21600, clock.Now().Add(-time.Minute)))

	c, err := o.FetchWithCache(ctx, url, Options{})
	require.NoError(t, err)
	assert.Equal(t, "from store", c.HTML)
	assert.Equal(t, url, c.EffectiveURL)
	assert.Empty(t, f.calls)
}

func TestStoreRowPastOwnTTLRefetches(t *testing.T) {
	s := newTestStore(t)
	f := newFakeScraper()
	f.sdk = func(string) (fetch.Result, error) { return fetch.Result{HTML: "refetched"}, nil }
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	o := newOrchestrator(t, nil, s, f, clock)
	ctx := context.Background()
	url := "https://example.org/page"

	require.NoError(t, s.UpsertScrape(ctx, url, "old", "", 60, clock.Now().Add(-2*time.Minute)))

	c, err := o.FetchWithCache(ctx, url, Options{})
	require.NoError(t, err)
	assert.Equal(t, "refetched", c.HTML)
}

func TestTransportOrderFollowsURLShape(t *testing.T) {
	t.Run("semicolon URLs try the REST surface first", func(t *testing.T) {
		f := newFakeScraper()
		f.rest = func(string) (fetch.Result, error) { return fetch.Result{HTML: "x"}, nil }
		o := newOrchestrator(t, nil, nil, f, nil)

		_, err := o.FetchWithCache(context.Background(), semiURL, Options{})
		require.NoError(t, err)
		require.NotEmpty(t, f.calls)
		assert.Equal(t, fetch.TransportREST, f.calls[0].transport)
	})

	t.Run("plain URLs try the SDK surface first", func(t *testing.T) {
		f := newFakeScraper()
		f.sdk = func(string) (fetch.Result, error) { return fetch.Result{HTML: "x"}, nil }
		o := newOrchestrator(t, nil, nil, f, nil)

		_, err := o.FetchWithCache(context.Background(), "https://example.org/page", Options{})
		require.NoError(t, err)
		require.NotEmpty(t, f.calls)
		assert.Equal(t, fetch.TransportSDK, f.calls[0].transport)
	})
}

func TestQueryStringFormFallback(t *testing.T) {
	// every transport rejects the semicolon form but the SDK surface accepts
	// the converted query-string form; the effective URL must reflect that.
	f := newFakeScraper()
	f.sdk = func(url string) (fetch.Result, error) {
		if strings.Contains(url, ";") {
			return fetch.Result{}, errors.New("400 bad url")
		}
		return fetch.Result{HTML: "converted"}, nil
	}
	o := newOrchestrator(t, nil, nil, f, nil)

	c, err := o.FetchWithCache(context.Background(), semiURL, Options{})
	require.NoError(t, err)
	assert.Equal(t, "converted", c.HTML)
	assert.NotContains(t, c.EffectiveURL, ";")
	assert.Contains(t, c.EffectiveURL, "locname=karnataka")
}

func TestDirectGetLastResort(t *testing.T) {
	f := newFakeScraper()
	f.direct = func(url string) (fetch.Result, error) {
		if strings.Contains(url, ";") {
			return fetch.Result{}, errors.New("404")
		}
		return fetch.Result{HTML: "<html>raw</html>"}, nil
	}
	o := newOrchestrator(t, nil, nil, f, nil)

	c, err := o.FetchWithCache(context.Background(), semiURL, Options{})
	require.NoError(t, err)
	assert.Equal(t, "<html>raw</html>", c.HTML)
	assert.NotContains(t, c.EffectiveURL, ";")
}

func TestAggregateErrorEnumeratesEveryAttempt(t *testing.T) {
	f := newFakeScraper()
	o := newOrchestrator(t, nil, nil, f, nil)

	_, err := o.FetchWithCache(context.Background(), semiURL, Options{})
	require.Error(t, err)

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, semiURL, fe.URL)
	// three transports on each URL form, then a direct GET on each form
	assert.Len(t, fe.Attempts, 8)

	seen := map[fetch.Transport]int{}
	semis, plains := 0, 0
	for _, a := range fe.Attempts {
		seen[a.Transport]++
		assert.NotEmpty(t, a.Reason)
		if strings.Contains(a.URL, ";") {
			semis++
		} else {
			plains++
		}
	}
	assert.Equal(t, 2, seen[fetch.TransportREST])
	assert.Equal(t, 2, seen[fetch.TransportSDK])
	assert.Equal(t, 2, seen[fetch.TransportLegacy])
	assert.Equal(t, 2, seen[fetch.TransportDirect])
	assert.Equal(t, 4, semis)
	assert.Equal(t, 4, plains)

	assert.Contains(t, err.Error(), "after 8 attempts")
}

func TestEmptyContentCountsAsFailure(t *testing.T) {
	f := newFakeScraper()
	f.sdk = func(string) (fetch.Result, error) { return fetch.Result{}, nil }
	f.legacy = func(string) (fetch.Result, error) { return fetch.Result{HTML: "rescued"}, nil }
	o := newOrchestrator(t, nil, nil, f, nil)

	c, err := o.FetchWithCache(context.Background(), "https://example.org/page", Options{})
	require.NoError(t, err)
	assert.Equal(t, "rescued", c.HTML)
}

func TestWriteBackKeyedByOriginalURL(t *testing.T) {
	// a query-string-form success is cached under the caller's URL so the
	// next lookup with the same input hits.
	k, mr := newTestKV(t)
	s := newTestStore(t)
	f := newFakeScraper()
	f.sdk = func(url string) (fetch.Result, error) {
		if strings.Contains(url, ";") {
			return fetch.Result{}, errors.New("400")
		}
		return fetch.Result{HTML: "converted", Markdown: "md"}, nil
	}
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	o := newOrchestrator(t, k, s, f, clock)
	ctx := context.Background()

	c, err := o.FetchWithCache(ctx, semiURL, Options{})
	require.NoError(t, err)
	assert.NotEqual(t, semiURL, c.EffectiveURL)

	assert.True(t, mr.Exists(kvKeyPrefix+semiURL))
	row, err := s.GetScrape(ctx, semiURL)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "converted", row.ContentHTML)
	assert.Equal(t, "md", row.ContentMD)

	fetched := len(f.calls)
	again, err := o.FetchWithCache(ctx, semiURL, Options{})
	require.NoError(t, err)
	assert.Equal(t, c.HTML, again.HTML)
	assert.Len(t, f.calls, fetched)
}

type brokenKV struct{}

func (brokenKV) Get(context.Context, string) ([]byte, error) { return nil, errors.New("kv down") }
func (brokenKV) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("kv down")
}
func (brokenKV) Expire(context.Context, string, time.Duration) error { return errors.New("kv down") }
func (brokenKV) Incr(context.Context, string) (int64, error)         { return 0, errors.New("kv down") }
func (brokenKV) Del(context.Context, ...string) error                { return errors.New("kv down") }

func TestCacheFailuresDoNotFailTheFetch(t *testing.T) {
	f := newFakeScraper()
	f.sdk = func(string) (fetch.Result, error) { return fetch.Result{HTML: "ok"}, nil }
	o := newOrchestrator(t, brokenKV{}, nil, f, nil)

	c, err := o.FetchWithCache(context.Background(), "https://example.org/page", Options{})
	require.NoError(t, err)
	assert.Equal(t, "ok", c.HTML)
}
