package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/nkhandelwal/ingres-resolver/internal/assess"
	"github.com/nkhandelwal/ingres-resolver/internal/config"
	"github.com/nkhandelwal/ingres-resolver/internal/fetch"
	"github.com/nkhandelwal/ingres-resolver/internal/httpclient"
	"github.com/nkhandelwal/ingres-resolver/internal/invalidation"
	"github.com/nkhandelwal/ingres-resolver/internal/kv"
	"github.com/nkhandelwal/ingres-resolver/internal/location"
	"github.com/nkhandelwal/ingres-resolver/internal/logger"
	"github.com/nkhandelwal/ingres-resolver/internal/observability"
	"github.com/nkhandelwal/ingres-resolver/internal/portal"
	"github.com/nkhandelwal/ingres-resolver/internal/scrape"
	"github.com/nkhandelwal/ingres-resolver/internal/server"
	"github.com/nkhandelwal/ingres-resolver/internal/store"
)

var Version = "dev"

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	log := logger.Build(logger.Config{Level: cfg.LogLevel, Component: "ingresd"}, nil)
	observability.ExposeBuildInfo(Version)
	log.Info().Str("addr", cfg.Addr).Str("version", Version).Msg("starting ingresd")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The KV tier is optional: without Redis the service still works off the
	// relational cache, just slower.
	var kvClient *kv.Client
	if c, err := kv.New(ctx, cfg.RedisAddr); err != nil {
		log.Warn().Str("addr", cfg.RedisAddr).Err(err).Msg("redis unavailable, fast cache tier disabled")
	} else {
		kvClient = c
		defer func() { _ = kvClient.Close() }()
	}

	db, err := openDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	st, err := store.New(db)
	if err != nil {
		log.Fatal().Err(err).Msg("migrate schema")
	}

	urls := portal.NewBuilder(cfg.PortalBaseURL)
	fetchClient := fetch.NewClient(cfg.ScrapeBaseURL, cfg.ScrapeAPIKey, httpclient.NewScraping(),
		logger.Build(logger.Config{Level: cfg.LogLevel, Component: "fetch"}, nil))

	var sink observability.Sink = observability.NopSink{}
	if kvClient != nil {
		sink = observability.NewKVSink(kvClient)
	}

	resolver := location.NewResolver(location.ResolverConfig{
		Store:          st,
		Fetcher:        fetchClient,
		URLs:           urls,
		Sink:           sink,
		Logger:         logger.Build(logger.Config{Level: cfg.LogLevel, Component: "resolver"}, nil),
		FuzzyThreshold: cfg.FuzzyThreshold,
	})

	var kvStore kv.Store
	if kvClient != nil {
		kvStore = kvClient
	}
	orchestrator := scrape.New(scrape.Config{
		KV:      kvStore,
		Store:   st,
		Scraper: fetchClient,
		Logger:  logger.Build(logger.Config{Level: cfg.LogLevel, Component: "scrape"}, nil),
		TTL:     cfg.ScrapeTTL,
	})

	assessClient := assess.NewClient(assess.ClientConfig{
		BaseURL:    cfg.AssessBaseURL,
		APIKey:     cfg.AssessAPIKey,
		HTTPClient: httpclient.NewOutbound(),
		CacheTTL:   cfg.AssessTTL,
		MaxRetries: cfg.MaxRetries,
		Logger:     logger.Build(logger.Config{Level: cfg.LogLevel, Component: "assess"}, nil),
	})

	if cfg.Invalidation.Enabled {
		consumer := invalidation.NewConsumer(cfg.Invalidation, kvStore, st,
			logger.Build(logger.Config{Level: cfg.LogLevel, Component: "invalidation"}, nil))
		go func() {
			if err := consumer.Start(ctx); err != nil {
				log.Error().Err(err).Msg("invalidation consumer stopped")
			}
		}()
	}

	go purgeLoop(ctx, st, cfg.PurgeInterval, cfg.PurgeAfter, log)

	checks := []server.ReadinessCheck{
		{Name: "db", Probe: st.Ping},
	}
	if kvClient != nil {
		checks = append(checks, server.ReadinessCheck{Name: "redis", Probe: kvClient.Ping})
	}

	handlers := server.NewHandlers(resolver, orchestrator, assessClient, urls, log)
	router := server.Router(handlers, log, checks...)
	if err := server.Run(ctx, cfg.Addr, router, log); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
	log.Info().Msg("server stopped")
}

func openDatabase(dsn string) (*gorm.DB, error) {
	gcfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)}
	if dsn == "" {
		path := os.Getenv("SQLITE_PATH")
		if path == "" {
			path = "ingres.db"
		}
		return gorm.Open(sqlite.Open(path), gcfg)
	}
	return gorm.Open(postgres.Open(dsn), gcfg)
}

// purgeLoop deletes scrape rows that have outlived several TTL multiples;
// they would never be served again but still bloat the table.
func purgeLoop(ctx context.Context, st *store.Store, interval time.Duration, after float64, log zerolog.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := st.PurgeScrapes(ctx, after, time.Now())
			if err != nil {
				log.Warn().Err(err).Msg("scrape purge failed")
				continue
			}
			if n > 0 {
				log.Info().Int("rows", n).Msg("purged expired scrapes")
			}
		}
	}
}
