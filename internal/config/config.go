package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type InvalidationCfg struct {
	Enabled bool
	Brokers []string
	Topic   string
	GroupID string
}

type Config struct {
	Addr     string
	LogLevel string

	RedisAddr   string
	DatabaseURL string

	ScrapeBaseURL string
	ScrapeAPIKey  string
	PortalBaseURL string

	AssessBaseURL string
	AssessAPIKey  string
	AssessTTL     time.Duration
	MaxRetries    int

	ScrapeTTL      time.Duration
	FuzzyThreshold float64

	PurgeInterval time.Duration
	PurgeAfter    float64

	Invalidation InvalidationCfg
}

func FromEnv() Config {
	return Config{
		Addr:     getenv("ADDR", ":8090"),
		LogLevel: getenv("LOG_LEVEL", "info"),

		RedisAddr:   getenv("REDIS_ADDR", "localhost:6379"),
		DatabaseURL: getenv("DATABASE_URL", ""),

		ScrapeBaseURL: getenv("SCRAPE_API_URL", "https://api.firecrawl.dev"),
		ScrapeAPIKey:  getenv("SCRAPE_API_KEY", ""),
		PortalBaseURL: getenv("INGRES_PORTAL_URL", "https://ingres.iith.ac.in/gecdataonline/gis/INDIA"),

		AssessBaseURL: getenv("INGRES_BASE_URL", "https://ingres.iith.ac.in/api"),
		AssessAPIKey:  getenv("INGRES_API_KEY", ""),
		AssessTTL:     getduration("ASSESS_CACHE_TTL", 5*time.Minute),
		MaxRetries:    getint("MAX_RETRIES", 2),

		ScrapeTTL:      getduration("SCRAPE_CACHE_TTL", 6*time.Hour),
		FuzzyThreshold: getfloat("FUZZY_THRESHOLD", 0.3),

		PurgeInterval: getduration("SCRAPE_PURGE_INTERVAL", time.Hour),
		PurgeAfter:    getfloat("SCRAPE_PURGE_AFTER", 4.0),

		Invalidation: InvalidationCfg{
			Enabled: getbool("INVALIDATION_ENABLED", false),
			Brokers: splitList(getenv("KAFKA_BROKERS", "localhost:9092")),
			Topic:   getenv("KAFKA_TOPIC", "scrape-invalidation"),
			GroupID: getenv("KAFKA_GROUP_ID", "scrape-invalidator"),
		},
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
