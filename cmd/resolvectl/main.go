// resolvectl resolves a single place name against a local database and
// prints the identifier pair with its portal URL. Useful for seeding and for
// checking what the service would answer without running it.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/nkhandelwal/ingres-resolver/internal/config"
	"github.com/nkhandelwal/ingres-resolver/internal/fetch"
	"github.com/nkhandelwal/ingres-resolver/internal/httpclient"
	"github.com/nkhandelwal/ingres-resolver/internal/location"
	"github.com/nkhandelwal/ingres-resolver/internal/logger"
	"github.com/nkhandelwal/ingres-resolver/internal/model"
	"github.com/nkhandelwal/ingres-resolver/internal/portal"
	"github.com/nkhandelwal/ingres-resolver/internal/store"
)

func main() {
	var (
		name    = flag.String("name", "", "place name to resolve")
		level   = flag.String("type", "STATE", "administrative level: STATE, DISTRICT or BLOCK")
		dbPath  = flag.String("db", "ingres.db", "sqlite database path")
		offline = flag.Bool("offline", false, "skip the live scrape step")
		timeout = flag.Duration("timeout", 30*time.Second, "overall timeout")
	)
	flag.Parse()

	if *name == "" {
		fmt.Fprintln(os.Stderr, "usage: resolvectl -name <place> [-type STATE|DISTRICT|BLOCK]")
		os.Exit(2)
	}

	lvl, err := model.ParseLevel(*level)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	_ = godotenv.Load()
	cfg := config.FromEnv()
	log := logger.Build(logger.Config{Level: "warn", Console: true, Component: "resolvectl"}, os.Stderr)

	db, err := gorm.Open(sqlite.Open(*dbPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "open database:", err)
		os.Exit(1)
	}
	st, err := store.New(db)
	if err != nil {
		fmt.Fprintln(os.Stderr, "migrate schema:", err)
		os.Exit(1)
	}

	urls := portal.NewBuilder(cfg.PortalBaseURL)
	var fetcher location.HTMLFetcher
	if !*offline {
		fetcher = fetch.NewClient(cfg.ScrapeBaseURL, cfg.ScrapeAPIKey, httpclient.NewScraping(), log)
	}

	resolver := location.NewResolver(location.ResolverConfig{
		Store:          st,
		Fetcher:        fetcher,
		URLs:           urls,
		Logger:         log,
		FuzzyThreshold: cfg.FuzzyThreshold,
	})

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pair, err := resolver.Resolve(ctx, *name, lvl)
	if errors.Is(err, location.ErrNotFound) {
		fmt.Fprintf(os.Stderr, "no identifiers found for %q (%s)\n", *name, lvl)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "resolve:", err)
		os.Exit(1)
	}

	out := struct {
		Name      string `json:"name"`
		Type      string `json:"type"`
		LocUUID   string `json:"locuuid"`
		StateUUID string `json:"stateuuid"`
		PortalURL string `json:"portalUrl"`
	}{
		Name:      *name,
		Type:      string(lvl),
		LocUUID:   pair.LocationUUID,
		StateUUID: pair.StateUUID,
		PortalURL: urls.Build(pair, portal.Params{Name: strings.TrimSpace(*name), Level: lvl}),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(out)
}
