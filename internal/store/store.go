// Package store is the persistent tier: resolved locations and the durable
// scrape cache, backed by a relational database through GORM.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/nkhandelwal/ingres-resolver/internal/model"
)

type Store struct {
	db *gorm.DB
}

// New migrates the schema and returns a ready store.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&Location{}, &ScrapeCache{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Ping reports whether the underlying database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("store ping: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("store ping: %w", err)
	}
	return nil
}

// FindLocation looks a location up by exact name and level, matching the
// name case-insensitively. Returns (nil, nil) when no row exists; an error
// means the store could not be queried, which callers must not conflate
// with absence.
func (s *Store) FindLocation(ctx context.Context, name string, level model.Level) (*Location, error) {
	var loc Location
	err := s.db.WithContext(ctx).
		Preload("Parent").
		Where("LOWER(name) = LOWER(?) AND type = ?", name, level).
		First(&loc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find location %q/%s: %w", name, level, err)
	}
	return &loc, nil
}

// FindLocationByUUID returns (nil, nil) when absent.
func (s *Store) FindLocationByUUID(ctx context.Context, id string) (*Location, error) {
	var loc Location
	err := s.db.WithContext(ctx).Where("uuid = ?", id).First(&loc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find location uuid %q: %w", id, err)
	}
	return &loc, nil
}

// FindLocationByID loads a row with its parent preloaded; (nil, nil) when absent.
func (s *Store) FindLocationByID(ctx context.Context, id uint) (*Location, error) {
	var loc Location
	err := s.db.WithContext(ctx).Preload("Parent").First(&loc, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find location id %d: %w", id, err)
	}
	return &loc, nil
}

// ListLocations returns every persisted location of the given level.
func (s *Store) ListLocations(ctx context.Context, level model.Level) ([]Location, error) {
	var locs []Location
	if err := s.db.WithContext(ctx).Where("type = ?", level).Find(&locs).Error; err != nil {
		return nil, fmt.Errorf("list locations %s: %w", level, err)
	}
	return locs, nil
}

// UpsertState writes a STATE row keyed by its UUID. An existing row keeps
// its identity and gets the new name; upserts are idempotent so concurrent
// writers of the same UUID converge on one row.
func (s *Store) UpsertState(ctx context.Context, name, uuid string) (*Location, error) {
	return s.upsertByUUID(ctx, name, model.LevelState, uuid, nil, name != "")
}

// UpsertDistrict first ensures the parent STATE exists (creating a stub with
// an empty name when only the identifier is known), then writes the DISTRICT
// row pointing at it.
func (s *Store) UpsertDistrict(ctx context.Context, name, uuid, stateUUID string) (*Location, error) {
	state, err := s.upsertByUUID(ctx, "", model.LevelState, stateUUID, nil, false)
	if err != nil {
		return nil, err
	}
	return s.upsertByUUID(ctx, name, model.LevelDistrict, uuid, &state.ID, true)
}

func (s *Store) upsertByUUID(ctx context.Context, name string, level model.Level, uuid string, parentID *uint, updateName bool) (*Location, error) {
	db := s.db.WithContext(ctx)

	var loc Location
	err := db.Where("uuid = ?", uuid).First(&loc).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		loc = Location{Name: name, Type: level, UUID: uuid, ParentID: parentID}
		if cerr := db.Create(&loc).Error; cerr != nil {
			// A concurrent writer may have created the row between the
			// lookup and the insert; the unique uuid index makes that safe.
			if ferr := db.Where("uuid = ?", uuid).First(&loc).Error; ferr != nil {
				return nil, fmt.Errorf("upsert location uuid %q: %w", uuid, cerr)
			}
		}
	case err != nil:
		return nil, fmt.Errorf("upsert location uuid %q: %w", uuid, err)
	default:
		updates := map[string]any{}
		if updateName && name != "" && loc.Name != name {
			updates["name"] = name
		}
		if parentID != nil && (loc.ParentID == nil || *loc.ParentID != *parentID) {
			updates["parent_id"] = *parentID
		}
		if len(updates) > 0 {
			if uerr := db.Model(&loc).Updates(updates).Error; uerr != nil {
				return nil, fmt.Errorf("upsert location uuid %q: %w", uuid, uerr)
			}
		}
	}
	return &loc, nil
}

// GetScrape returns (nil, nil) when the URL has never been fetched.
func (s *Store) GetScrape(ctx context.Context, url string) (*ScrapeCache, error) {
	var row ScrapeCache
	err := s.db.WithContext(ctx).Where("url = ?", url).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get scrape cache %q: %w", url, err)
	}
	return &row, nil
}

// UpsertScrape overwrites the cached content of url, keyed by the caller's
// original URL even when a fallback URL form produced the content.
func (s *Store) UpsertScrape(ctx context.Context, url, html, markdown string, ttlSeconds int, fetchedAt time.Time) error {
	db := s.db.WithContext(ctx)

	var row ScrapeCache
	err := db.Where("url = ?", url).First(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		row = ScrapeCache{URL: url, ContentHTML: html, ContentMD: markdown, LastFetched: fetchedAt, TTLSeconds: ttlSeconds}
		if cerr := db.Create(&row).Error; cerr != nil {
			return fmt.Errorf("upsert scrape cache %q: %w", url, cerr)
		}
		return nil
	case err != nil:
		return fmt.Errorf("upsert scrape cache %q: %w", url, err)
	}

	updates := map[string]any{
		"content_html": html,
		"content_md":   markdown,
		"last_fetched": fetchedAt,
		"ttl_seconds":  ttlSeconds,
	}
	if uerr := db.Model(&row).Updates(updates).Error; uerr != nil {
		return fmt.Errorf("upsert scrape cache %q: %w", url, uerr)
	}
	return nil
}

// ExpireScrape forces the row for url stale so the next read refetches.
// Missing rows are not an error.
func (s *Store) ExpireScrape(ctx context.Context, url string) error {
	err := s.db.WithContext(ctx).
		Model(&ScrapeCache{}).
		Where("url = ?", url).
		Update("last_fetched", time.Unix(0, 0)).Error
	if err != nil {
		return fmt.Errorf("expire scrape cache %q: %w", url, err)
	}
	return nil
}

// PurgeScrapes deletes rows whose age exceeds after times their own TTL.
// Row count is modest enough to decide in process rather than in SQL, which
// keeps the age arithmetic portable across sqlite and postgres.
func (s *Store) PurgeScrapes(ctx context.Context, after float64, now time.Time) (int, error) {
	var rows []ScrapeCache
	if err := s.db.WithContext(ctx).Select("id", "last_fetched", "ttl_seconds").Find(&rows).Error; err != nil {
		return 0, fmt.Errorf("purge scrape cache: %w", err)
	}

	var ids []uint
	for _, r := range rows {
		limit := time.Duration(after * float64(r.TTLSeconds) * float64(time.Second))
		if now.Sub(r.LastFetched) > limit {
			ids = append(ids, r.ID)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := s.db.WithContext(ctx).Delete(&ScrapeCache{}, ids).Error; err != nil {
		return 0, fmt.Errorf("purge scrape cache: %w", err)
	}
	return len(ids), nil
}
