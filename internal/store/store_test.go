package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nkhandelwal/ingres-resolver/internal/model"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	s, err := New(db)
	require.NoError(t, err)
	return s
}

const (
	stateUUID    = "eaec6bbb-a219-415f-bdba-991c42586352"
	districtUUID = "fc194628-dfa2-4026-b410-5535a5ceea8c"
)

func TestUpsertStateIdempotent(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	first, err := s.UpsertState(ctx, "Karnataka", stateUUID)
	require.NoError(t, err)

	second, err := s.UpsertState(ctx, "Karnataka", stateUUID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	locs, err := s.ListLocations(ctx, model.LevelState)
	require.NoError(t, err)
	assert.Len(t, locs, 1)
}

func TestUpsertStateRenames(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.UpsertState(ctx, "", stateUUID)
	require.NoError(t, err)

	_, err = s.UpsertState(ctx, "Karnataka", stateUUID)
	require.NoError(t, err)

	loc, err := s.FindLocationByUUID(ctx, stateUUID)
	require.NoError(t, err)
	require.NotNil(t, loc)
	assert.Equal(t, "Karnataka", loc.Name)
}

func TestUpsertDistrictCreatesStateStub(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	d, err := s.UpsertDistrict(ctx, "Bengaluru (Urban)", districtUUID, stateUUID)
	require.NoError(t, err)
	require.NotNil(t, d.ParentID)

	state, err := s.FindLocationByUUID(ctx, stateUUID)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, model.LevelState, state.Type)
	assert.Empty(t, state.Name, "stub state carries no name until resolved")
	assert.Equal(t, state.ID, *d.ParentID)
}

func TestFindLocationCaseInsensitive(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.UpsertState(ctx, "Karnataka", stateUUID)
	require.NoError(t, err)

	loc, err := s.FindLocation(ctx, "karnataka", model.LevelState)
	require.NoError(t, err)
	require.NotNil(t, loc)
	assert.Equal(t, stateUUID, loc.UUID)

	missing, err := s.FindLocation(ctx, "karnataka", model.LevelDistrict)
	require.NoError(t, err)
	assert.Nil(t, missing, "absence is nil, not an error")
}

func TestFindLocationPreloadsParent(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.UpsertDistrict(ctx, "Bengaluru (Urban)", districtUUID, stateUUID)
	require.NoError(t, err)

	d, err := s.FindLocation(ctx, "Bengaluru (Urban)", model.LevelDistrict)
	require.NoError(t, err)
	require.NotNil(t, d)
	require.NotNil(t, d.Parent)
	assert.Equal(t, stateUUID, d.Parent.UUID)
}

func TestScrapeUpsertAndGet(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, s.UpsertScrape(ctx, "https://example.test/a", "<p>one</p>", "one", 21600, now))
	require.NoError(t, s.UpsertScrape(ctx, "https://example.test/a", "<p>two</p>", "two", 300, now.Add(time.Minute)))

	row, err := s.GetScrape(ctx, "https://example.test/a")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "<p>two</p>", row.ContentHTML)
	assert.Equal(t, 300, row.TTLSeconds)

	none, err := s.GetScrape(ctx, "https://example.test/missing")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestExpireScrape(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertScrape(ctx, "https://example.test/a", "h", "m", 21600, time.Now()))
	require.NoError(t, s.ExpireScrape(ctx, "https://example.test/a"))

	row, err := s.GetScrape(ctx, "https://example.test/a")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.True(t, time.Since(row.LastFetched) > time.Duration(row.TTLSeconds)*time.Second)

	// expiring a URL that was never cached is a no-op
	require.NoError(t, s.ExpireScrape(ctx, "https://example.test/missing"))
}

func TestPurgeScrapes(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.UpsertScrape(ctx, "https://example.test/fresh", "h", "m", 21600, now.Add(-time.Hour)))
	require.NoError(t, s.UpsertScrape(ctx, "https://example.test/old", "h", "m", 300, now.Add(-24*time.Hour)))

	n, err := s.PurgeScrapes(ctx, 4.0, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	fresh, err := s.GetScrape(ctx, "https://example.test/fresh")
	require.NoError(t, err)
	assert.NotNil(t, fresh)

	old, err := s.GetScrape(ctx, "https://example.test/old")
	require.NoError(t, err)
	assert.Nil(t, old)
}
