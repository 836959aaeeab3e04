// Package location resolves free-text place names into the stable identifier
// pairs the upstream GIS portal addresses administrative units by.
package location

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/nkhandelwal/ingres-resolver/internal/model"
	"github.com/nkhandelwal/ingres-resolver/internal/observability"
	"github.com/nkhandelwal/ingres-resolver/internal/portal"
	"github.com/nkhandelwal/ingres-resolver/internal/store"
)

// ErrNotFound means every resolution strategy was exhausted without a match.
// It is a sentinel, not an infrastructure failure: store errors propagate
// separately so callers can tell "no record" from "could not check".
var ErrNotFound = errors.New("location not found")

// HTMLFetcher retrieves a page's HTML for identifier extraction.
type HTMLFetcher interface {
	FetchHTML(ctx context.Context, url string) (string, error)
}

type Resolver struct {
	store     *store.Store
	fetcher   HTMLFetcher
	overrides *Overrides
	urls      *portal.Builder
	sink      observability.Sink
	log       zerolog.Logger
	threshold float64
}

type ResolverConfig struct {
	Store     *store.Store
	Fetcher   HTMLFetcher
	Overrides *Overrides
	URLs      *portal.Builder
	Sink      observability.Sink
	Logger    zerolog.Logger
	// FuzzyThreshold is the normalized edit-distance cutoff for the fuzzy
	// fallback; zero means DefaultFuzzyThreshold.
	FuzzyThreshold float64
}

func NewResolver(cfg ResolverConfig) *Resolver {
	if cfg.Overrides == nil {
		cfg.Overrides = LoadOverrides()
	}
	if cfg.URLs == nil {
		cfg.URLs = portal.NewBuilder("")
	}
	if cfg.Sink == nil {
		cfg.Sink = observability.NopSink{}
	}
	if cfg.FuzzyThreshold <= 0 {
		cfg.FuzzyThreshold = DefaultFuzzyThreshold
	}
	return &Resolver{
		store:     cfg.Store,
		fetcher:   cfg.Fetcher,
		overrides: cfg.Overrides,
		urls:      cfg.URLs,
		sink:      cfg.Sink,
		log:       cfg.Logger,
		threshold: cfg.FuzzyThreshold,
	}
}

// Resolve tries, in strict order: manual overrides, the persistent store,
// live scrape extraction, fuzzy match against previously seen records. The
// first strategy that produces a pair wins; ErrNotFound only after all four
// fail.
func (r *Resolver) Resolve(ctx context.Context, name string, level model.Level) (model.IdentifierPair, error) {
	trimmed := Normalize(name)
	if trimmed == "" {
		return model.IdentifierPair{}, ErrNotFound
	}
	log := r.log.With().Str("name", trimmed).Str("level", string(level)).Logger()

	if pair, ok := r.overrides.Lookup(trimmed, level); ok {
		r.sink.Increment(ctx, "uuid.override.hit")
		observability.IncResolverResult("override")
		if err := r.persistPair(ctx, name, level, pair); err != nil {
			log.Warn().Err(err).Msg("persisting override pair failed")
		}
		return pair, nil
	}

	pair, found, err := r.findFromStore(ctx, trimmed, level)
	if err != nil {
		return model.IdentifierPair{}, err
	}
	if found {
		r.sink.Increment(ctx, "uuid.cache.hit")
		observability.IncResolverResult("store")
		return pair, nil
	}

	if pair, ok := r.scrapeIdentifiers(ctx, name, level, log); ok {
		r.sink.Increment(ctx, "uuid.scrape.success")
		observability.IncResolverResult("scrape")
		if err := r.persistPair(ctx, name, level, pair); err != nil {
			log.Warn().Err(err).Msg("persisting scraped pair failed")
		}
		return pair, nil
	}

	pair, found, err = r.fuzzyMatch(ctx, trimmed, level)
	if err != nil {
		return model.IdentifierPair{}, err
	}
	if found {
		r.sink.Increment(ctx, "uuid.fuzzy.hit")
		observability.IncResolverResult("fuzzy")
		return pair, nil
	}

	observability.IncResolverResult("miss")
	return model.IdentifierPair{}, ErrNotFound
}

// findFromStore resolves from persisted rows. A DISTRICT with a missing
// parent yields an empty state identifier, which downstream URL generation
// treats as a resolution failure; a BLOCK with a broken parent chain falls
// through to the next strategy.
func (r *Resolver) findFromStore(ctx context.Context, name string, level model.Level) (model.IdentifierPair, bool, error) {
	loc, err := r.store.FindLocation(ctx, name, level)
	if err != nil {
		return model.IdentifierPair{}, false, err
	}
	if loc == nil {
		return model.IdentifierPair{}, false, nil
	}

	switch level {
	case model.LevelState:
		return model.IdentifierPair{LocationUUID: loc.UUID, StateUUID: loc.UUID}, true, nil
	case model.LevelDistrict:
		stateUUID := ""
		if loc.Parent != nil {
			stateUUID = loc.Parent.UUID
		}
		return model.IdentifierPair{LocationUUID: loc.UUID, StateUUID: stateUUID}, true, nil
	case model.LevelBlock:
		if loc.ParentID == nil {
			return model.IdentifierPair{}, false, nil
		}
		district, err := r.store.FindLocationByID(ctx, *loc.ParentID)
		if err != nil {
			return model.IdentifierPair{}, false, err
		}
		if district == nil || district.Parent == nil {
			return model.IdentifierPair{}, false, nil
		}
		return model.IdentifierPair{LocationUUID: loc.UUID, StateUUID: district.Parent.UUID}, true, nil
	}
	return model.IdentifierPair{}, false, nil
}

var (
	locUUIDRe   = regexp.MustCompile(`(?i)locuuid[=:]([a-f0-9-]{36})`)
	stateUUIDRe = regexp.MustCompile(`(?i)stateuuid[=:]([a-f0-9-]{36})`)
)

// scrapeIdentifiers tries each candidate search URL in order; a fetch error
// skips to the next candidate rather than aborting the step.
func (r *Resolver) scrapeIdentifiers(ctx context.Context, name string, level model.Level, log zerolog.Logger) (model.IdentifierPair, bool) {
	if r.fetcher == nil {
		return model.IdentifierPair{}, false
	}
	for _, candidate := range r.urls.SearchURLs(Normalize(name), level) {
		html, err := r.fetcher.FetchHTML(ctx, candidate)
		if err != nil {
			log.Debug().Str("url", candidate).Err(err).Msg("search scrape failed")
			continue
		}
		pair, ok := extractIdentifiers(html)
		if ok {
			return pair, true
		}
	}
	return model.IdentifierPair{}, false
}

func extractIdentifiers(html string) (model.IdentifierPair, bool) {
	var pair model.IdentifierPair
	if m := locUUIDRe.FindStringSubmatch(html); m != nil && model.IsUUID(m[1]) {
		pair.LocationUUID = m[1]
	}
	if m := stateUUIDRe.FindStringSubmatch(html); m != nil && model.IsUUID(m[1]) {
		pair.StateUUID = m[1]
	}
	return pair, pair.LocationUUID != "" && pair.StateUUID != ""
}

// fuzzyMatch runs an approximate name match over persisted rows of the same
// level. STATE pairs are self-referential; DISTRICT resolves its parent by
// row id. BLOCK is not fuzzy-matched: block names repeat across districts
// far too often for edit distance to disambiguate.
func (r *Resolver) fuzzyMatch(ctx context.Context, name string, level model.Level) (model.IdentifierPair, bool, error) {
	if level == model.LevelBlock {
		return model.IdentifierPair{}, false, nil
	}

	candidates, err := r.store.ListLocations(ctx, level)
	if err != nil {
		return model.IdentifierPair{}, false, err
	}
	if len(candidates) == 0 {
		return model.IdentifierPair{}, false, nil
	}

	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = c.Name
	}
	idx, ok := bestFuzzyMatch(name, names, r.threshold)
	if !ok {
		return model.IdentifierPair{}, false, nil
	}
	match := candidates[idx]

	if level == model.LevelState {
		return model.IdentifierPair{LocationUUID: match.UUID, StateUUID: match.UUID}, true, nil
	}
	if match.ParentID == nil {
		return model.IdentifierPair{}, false, nil
	}
	state, err := r.store.FindLocationByID(ctx, *match.ParentID)
	if err != nil {
		return model.IdentifierPair{}, false, err
	}
	if state == nil {
		return model.IdentifierPair{}, false, nil
	}
	return model.IdentifierPair{LocationUUID: match.UUID, StateUUID: state.UUID}, true, nil
}

// persistPair writes the resolved pair through the idempotent upserts,
// keeping the caller's casing; lookups match case-insensitively. BLOCK
// pairs are not persisted: the portal search never exposes the intermediate
// district identifier needed to anchor the parent chain.
func (r *Resolver) persistPair(ctx context.Context, name string, level model.Level, pair model.IdentifierPair) error {
	display := strings.TrimSpace(name)
	switch level {
	case model.LevelState:
		_, err := r.store.UpsertState(ctx, display, pair.LocationUUID)
		return err
	case model.LevelDistrict:
		_, err := r.store.UpsertDistrict(ctx, display, pair.LocationUUID, pair.StateUUID)
		return err
	}
	return nil
}
