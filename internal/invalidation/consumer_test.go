package invalidation

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/nkhandelwal/ingres-resolver/internal/config"
	"github.com/nkhandelwal/ingres-resolver/internal/kv"
	"github.com/nkhandelwal/ingres-resolver/internal/store"
)

func TestEventValidate(t *testing.T) {
	now := time.Now()
	valid := Event{Version: 1, Op: "refresh", URL: "https://example.org/p", TS: now}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name string
		mut  func(*Event)
	}{
		{"wrong version", func(e *Event) { e.Version = 2 }},
		{"unknown op", func(e *Event) { e.Op = "drop" }},
		{"empty url", func(e *Event) { e.URL = "  " }},
		{"zero ts", func(e *Event) { e.TS = time.Time{} }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := valid
			tc.mut(&e)
			assert.Error(t, e.Validate())
		})
	}
}

func newTestDeps(t *testing.T) (*kv.Client, *miniredis.Miniredis, *store.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := kv.New(context.Background(), mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	s, err := store.New(db)
	require.NoError(t, err)
	return c, mr, s
}

func message(t *testing.T, v any) *sarama.ConsumerMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return &sarama.ConsumerMessage{Topic: "scrape-invalidation", Value: raw}
}

func TestProcessOneEvictsBothTiers(t *testing.T) {
	k, mr, s := newTestDeps(t)
	ctx := context.Background()
	url := "https://ingres.iith.ac.in/gecdataonline/page"

	require.NoError(t, k.Set(ctx, kvKeyPrefix+url, []byte(`{"html":"x"}`), time.Hour))
	require.NoError(t, s.UpsertScrape(ctx, url, "x", "", 21600, time.Now()))

	c := NewConsumer(config.InvalidationCfg{}, k, s, zerolog.Nop())
	err := c.ProcessOne(ctx, message(t, Event{Version: 1, Op: "refresh", URL: url, TS: time.Now()}))
	require.NoError(t, err)

	assert.False(t, mr.Exists(kvKeyPrefix+url))
	row, err := s.GetScrape(ctx, url)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.True(t, time.Since(row.LastFetched) > time.Hour, "store row must be marked stale")
}

func TestProcessOneSkipsGarbage(t *testing.T) {
	k, _, s := newTestDeps(t)
	c := NewConsumer(config.InvalidationCfg{}, k, s, zerolog.Nop())
	ctx := context.Background()

	// malformed JSON and invalid events are acknowledged, not retried
	assert.NoError(t, c.ProcessOne(ctx, &sarama.ConsumerMessage{Value: []byte("not json")}))
	assert.NoError(t, c.ProcessOne(ctx, message(t, Event{Version: 1, Op: "nope", URL: "u", TS: time.Now()})))
}

func TestProcessOneUnknownURLIsANoop(t *testing.T) {
	k, _, s := newTestDeps(t)
	c := NewConsumer(config.InvalidationCfg{}, k, s, zerolog.Nop())

	err := c.ProcessOne(context.Background(),
		message(t, Event{Version: 1, Op: "delete", URL: "https://example.org/never-cached", TS: time.Now()}))
	assert.NoError(t, err)
}
