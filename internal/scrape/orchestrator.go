// Package scrape wraps the content fetcher with a two-tier cache and a
// layered retry strategy across transports and URL encodings.
package scrape

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/nkhandelwal/ingres-resolver/internal/fetch"
	"github.com/nkhandelwal/ingres-resolver/internal/kv"
	"github.com/nkhandelwal/ingres-resolver/internal/observability"
	"github.com/nkhandelwal/ingres-resolver/internal/portal"
	"github.com/nkhandelwal/ingres-resolver/internal/store"
)

// DefaultTTL is the freshness window of a cached scrape.
const DefaultTTL = 6 * time.Hour

const kvKeyPrefix = "scrape:"

// Options tune one FetchWithCache call.
type Options struct {
	Formats []string
	// TTL overrides DefaultTTL for this entry.
	TTL time.Duration
	// ForceRefresh bypasses both cache tiers.
	ForceRefresh bool
}

// Content is a fetched or cached page. EffectiveURL is the URL that actually
// produced the content; it differs from the requested URL when a fallback
// transport or encoding succeeded, and is what callers must show as the
// source link.
type Content struct {
	HTML         string `json:"html"`
	Markdown     string `json:"markdown"`
	EffectiveURL string `json:"effectiveUrl"`
}

// Attempt records one failed avenue for the terminal error.
type Attempt struct {
	URL       string
	Transport fetch.Transport
	Reason    string
}

// FetchError is returned only after every transport and URL form failed. It
// enumerates each attempt: the upstream portal accepts and rejects URL
// syntaxes inconsistently, and a generic message makes that undebuggable.
type FetchError struct {
	URL      string
	Attempts []Attempt
}

func (e *FetchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "scrape failed for %s after %d attempts:", e.URL, len(e.Attempts))
	for _, a := range e.Attempts {
		fmt.Fprintf(&b, " [%s %s: %s]", a.Transport, a.URL, a.Reason)
	}
	return b.String()
}

type Orchestrator struct {
	kv      kv.Store
	store   *store.Store
	scraper fetch.Scraper
	clock   clockwork.Clock
	log     zerolog.Logger
	ttl     time.Duration
}

type Config struct {
	KV      kv.Store
	Store   *store.Store
	Scraper fetch.Scraper
	Clock   clockwork.Clock
	Logger  zerolog.Logger
	// TTL is the default freshness window; zero means DefaultTTL.
	TTL time.Duration
}

func New(cfg Config) *Orchestrator {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	return &Orchestrator{
		kv:      cfg.KV,
		store:   cfg.Store,
		scraper: cfg.Scraper,
		clock:   cfg.Clock,
		log:     cfg.Logger,
		ttl:     cfg.TTL,
	}
}

// kvEntry is the KV tier's value format.
type kvEntry struct {
	HTML       string `json:"html"`
	Markdown   string `json:"markdown"`
	FetchedAt  int64  `json:"ts"`
	TTLSeconds int    `json:"ttl"`
}

// FetchWithCache returns the page at url, from cache when fresh. Cache reads
// and writes are best-effort: a broken cache tier degrades to fetching, and
// a successful fetch is returned even when neither tier could be written.
func (o *Orchestrator) FetchWithCache(ctx context.Context, url string, opts Options) (Content, error) {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = o.ttl
	}

	if !opts.ForceRefresh {
		if c, ok := o.readKV(ctx, url, ttl); ok {
			observability.IncCacheResult("kv", "hit")
			return c, nil
		}
		observability.IncCacheResult("kv", "miss")

		if c, ok := o.readStore(ctx, url); ok {
			observability.IncCacheResult("store", "hit")
			return c, nil
		}
		observability.IncCacheResult("store", "miss")
	}

	res, effectiveURL, err := o.fetchCascade(ctx, url, opts, ttl)
	if err != nil {
		return Content{}, err
	}

	o.writeBack(ctx, url, res, ttl)
	return Content{HTML: res.HTML, Markdown: res.Markdown, EffectiveURL: effectiveURL}, nil
}

func (o *Orchestrator) readKV(ctx context.Context, url string, reqTTL time.Duration) (Content, bool) {
	if o.kv == nil {
		return Content{}, false
	}
	raw, err := o.kv.Get(ctx, kvKeyPrefix+url)
	if err != nil {
		if !errors.Is(err, kv.ErrMiss) {
			o.log.Debug().Str("url", url).Err(err).Msg("kv read failed")
		}
		return Content{}, false
	}
	var e kvEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		o.log.Debug().Str("url", url).Err(err).Msg("kv entry malformed")
		return Content{}, false
	}

	age := o.clock.Now().Unix() - e.FetchedAt
	allowed := int64(reqTTL / time.Second)
	if stored := int64(e.TTLSeconds); stored > allowed {
		allowed = stored
	}
	if age >= allowed {
		return Content{}, false
	}
	return Content{HTML: e.HTML, Markdown: e.Markdown, EffectiveURL: url}, true
}

func (o *Orchestrator) readStore(ctx context.Context, url string) (Content, bool) {
	if o.store == nil {
		return Content{}, false
	}
	row, err := o.store.GetScrape(ctx, url)
	if err != nil {
		o.log.Debug().Str("url", url).Err(err).Msg("store cache read failed")
		return Content{}, false
	}
	if row == nil {
		return Content{}, false
	}
	if o.clock.Now().Sub(row.LastFetched) >= time.Duration(row.TTLSeconds)*time.Second {
		// stale rows trigger a refetch, never an error
		return Content{}, false
	}
	return Content{HTML: row.ContentHTML, Markdown: row.ContentMD, EffectiveURL: url}, true
}

// fetchCascade works through every avenue in order: the transport cascade on
// the original URL, the same cascade on the query-string form, then raw GETs
// on the query-string form and finally the original.
func (o *Orchestrator) fetchCascade(ctx context.Context, url string, opts Options, ttl time.Duration) (fetch.Result, string, error) {
	var attempts []Attempt

	if res, ok := o.tryTransports(ctx, url, opts, ttl, &attempts); ok {
		return res, url, nil
	}

	alt := portal.ToQueryStringForm(url)
	if alt != url {
		if res, ok := o.tryTransports(ctx, alt, opts, ttl, &attempts); ok {
			return res, alt, nil
		}
		if res, ok := o.tryDirect(ctx, alt, &attempts); ok {
			return res, alt, nil
		}
	}
	if res, ok := o.tryDirect(ctx, url, &attempts); ok {
		return res, url, nil
	}

	return fetch.Result{}, "", &FetchError{URL: url, Attempts: attempts}
}

// tryTransports runs the scrape-service cascade against one URL form. The
// REST surface is preferred for semicolon URLs and the SDK surface
// otherwise; the two historically disagree on semicolon syntax. The legacy
// surface is always the last resort.
func (o *Orchestrator) tryTransports(ctx context.Context, target string, opts Options, ttl time.Duration, attempts *[]Attempt) (fetch.Result, bool) {
	fopts := fetch.Options{
		Formats:         opts.Formats,
		OnlyMainContent: true,
		MaxAge:          ttl,
		Wait:            10 * time.Second,
	}
	if len(fopts.Formats) == 0 {
		fopts.Formats = []string{"html", "markdown"}
	}

	type transport struct {
		name fetch.Transport
		call func(context.Context, string, fetch.Options) (fetch.Result, error)
	}
	rest := transport{fetch.TransportREST, o.scraper.ScrapeREST}
	sdk := transport{fetch.TransportSDK, o.scraper.ScrapeSDK}

	order := []transport{sdk, rest}
	if strings.Contains(target, ";") {
		order = []transport{rest, sdk}
	}
	order = append(order, transport{fetch.TransportLegacy, o.scraper.ScrapeLegacy})

	for _, tr := range order {
		start := o.clock.Now()
		res, err := tr.call(ctx, target, fopts)
		elapsed := o.clock.Since(start)
		if err != nil {
			observability.IncFetchAttempt(string(tr.name), "error")
			*attempts = append(*attempts, Attempt{URL: target, Transport: tr.name, Reason: err.Error()})
			o.log.Debug().Str("url", target).Str("transport", string(tr.name)).Dur("elapsed", elapsed).Err(err).Msg("scrape attempt failed")
			continue
		}
		if res.Empty() {
			observability.IncFetchAttempt(string(tr.name), "empty")
			*attempts = append(*attempts, Attempt{URL: target, Transport: tr.name, Reason: "no content returned"})
			continue
		}
		observability.IncFetchAttempt(string(tr.name), "ok")
		return res, true
	}
	return fetch.Result{}, false
}

func (o *Orchestrator) tryDirect(ctx context.Context, target string, attempts *[]Attempt) (fetch.Result, bool) {
	res, err := o.scraper.Direct(ctx, target)
	if err != nil {
		observability.IncFetchAttempt(string(fetch.TransportDirect), "error")
		*attempts = append(*attempts, Attempt{URL: target, Transport: fetch.TransportDirect, Reason: err.Error()})
		return fetch.Result{}, false
	}
	if res.Empty() {
		observability.IncFetchAttempt(string(fetch.TransportDirect), "empty")
		*attempts = append(*attempts, Attempt{URL: target, Transport: fetch.TransportDirect, Reason: "no content returned"})
		return fetch.Result{}, false
	}
	observability.IncFetchAttempt(string(fetch.TransportDirect), "ok")
	return res, true
}

// writeBack stores the result in both tiers under the caller's original URL.
// Failures are logged and swallowed: a cache that cannot be written must not
// fail a fetch that succeeded.
func (o *Orchestrator) writeBack(ctx context.Context, url string, res fetch.Result, ttl time.Duration) {
	now := o.clock.Now()
	ttlSeconds := int(ttl / time.Second)

	if o.kv != nil {
		entry := kvEntry{HTML: res.HTML, Markdown: res.Markdown, FetchedAt: now.Unix(), TTLSeconds: ttlSeconds}
		if raw, err := json.Marshal(entry); err == nil {
			key := kvKeyPrefix + url
			if err := o.kv.Set(ctx, key, raw, ttl); err != nil {
				o.log.Warn().Str("url", url).Err(err).Msg("kv write-back failed")
			} else if err := o.kv.Expire(ctx, key, ttl); err != nil {
				o.log.Warn().Str("url", url).Err(err).Msg("kv expire failed")
			}
		}
	}

	if o.store != nil {
		if err := o.store.UpsertScrape(ctx, url, res.HTML, res.Markdown, ttlSeconds, now); err != nil {
			o.log.Warn().Str("url", url).Err(err).Msg("store write-back failed")
		}
	}
}
