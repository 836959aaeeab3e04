// Package server exposes the resolution and scrape-cache pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/nkhandelwal/ingres-resolver/internal/assess"
	"github.com/nkhandelwal/ingres-resolver/internal/location"
	"github.com/nkhandelwal/ingres-resolver/internal/logger"
	"github.com/nkhandelwal/ingres-resolver/internal/model"
	"github.com/nkhandelwal/ingres-resolver/internal/portal"
	"github.com/nkhandelwal/ingres-resolver/internal/scrape"
)

// LocationResolver is the resolution pipeline the resolve endpoint fronts.
type LocationResolver interface {
	Resolve(ctx context.Context, name string, level model.Level) (model.IdentifierPair, error)
}

// PageFetcher is the cached scrape pipeline.
type PageFetcher interface {
	FetchWithCache(ctx context.Context, url string, opts scrape.Options) (scrape.Content, error)
}

// AssessmentProvider serves groundwater assessment figures.
type AssessmentProvider interface {
	GetAssessment(ctx context.Context, location string, year int) (assess.Assessment, error)
	GetTrend(ctx context.Context, location string, fromYear, toYear int) ([]assess.TrendPoint, error)
	CompareRegions(ctx context.Context, locations []string, year int) map[string]assess.Assessment
}

type Handlers struct {
	resolver LocationResolver
	fetcher  PageFetcher
	assess   AssessmentProvider
	urls     *portal.Builder
	log      zerolog.Logger
}

func NewHandlers(resolver LocationResolver, fetcher PageFetcher, a AssessmentProvider, urls *portal.Builder, log zerolog.Logger) *Handlers {
	if urls == nil {
		urls = portal.NewBuilder("")
	}
	return &Handlers{resolver: resolver, fetcher: fetcher, assess: a, urls: urls, log: log}
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	writeJSON(w, status, map[string]errorBody{"error": {Code: code, Message: message, Details: details}})
}

type resolveRequest struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type resolveResponse struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	LocationUUID string `json:"locuuid"`
	StateUUID    string `json:"stateuuid"`
	PortalURL    string `json:"portalUrl"`
}

// HandleResolve resolves a place name to its identifier pair and the portal
// URL built from it. Exhausted strategies are 404; infrastructure failures
// are 502 so clients can tell the two apart.
func (h *Handlers) HandleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be JSON", nil)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "name is required", nil)
		return
	}
	level, err := model.ParseLevel(req.Type)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}

	pair, err := h.resolver.Resolve(r.Context(), req.Name, level)
	if errors.Is(err, location.ErrNotFound) {
		writeError(w, http.StatusNotFound, "location_not_found",
			"no identifiers found for "+req.Name, nil)
		return
	}
	if err != nil {
		logger.FromContext(r.Context(), &h.log).Error().Err(err).Str("name", req.Name).Msg("resolve failed")
		writeError(w, http.StatusBadGateway, "resolver_unavailable", "resolution backend failed", nil)
		return
	}

	url := h.urls.Build(pair, portal.Params{
		Name:  strings.TrimSpace(req.Name),
		Level: level,
	})
	writeJSON(w, http.StatusOK, resolveResponse{
		Name:         req.Name,
		Type:         string(level),
		LocationUUID: pair.LocationUUID,
		StateUUID:    pair.StateUUID,
		PortalURL:    url,
	})
}

// HandleScrape returns cached or freshly fetched page content.
func (h *Handlers) HandleScrape(w http.ResponseWriter, r *http.Request) {
	target := strings.TrimSpace(r.URL.Query().Get("url"))
	if target == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "url is required", nil)
		return
	}

	opts := scrape.Options{}
	if v := r.URL.Query().Get("force"); v == "1" || strings.EqualFold(v, "true") {
		opts.ForceRefresh = true
	}
	if v := r.URL.Query().Get("ttl"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "ttl must be a positive duration", nil)
			return
		}
		opts.TTL = d
	}

	content, err := h.fetcher.FetchWithCache(r.Context(), target, opts)
	if err != nil {
		var fe *scrape.FetchError
		if errors.As(err, &fe) {
			details := make([]map[string]string, 0, len(fe.Attempts))
			for _, a := range fe.Attempts {
				details = append(details, map[string]string{
					"url":       a.URL,
					"transport": string(a.Transport),
					"reason":    a.Reason,
				})
			}
			writeError(w, http.StatusBadGateway, "fetch_failed", "all fetch attempts failed", details)
			return
		}
		logger.FromContext(r.Context(), &h.log).Error().Err(err).Str("url", target).Msg("scrape failed")
		writeError(w, http.StatusBadGateway, "fetch_failed", err.Error(), nil)
		return
	}
	writeJSON(w, http.StatusOK, content)
}

// HandleAssessment serves a single unit-year assessment.
func (h *Handlers) HandleAssessment(w http.ResponseWriter, r *http.Request) {
	loc := strings.TrimSpace(r.URL.Query().Get("location"))
	if loc == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "location is required", nil)
		return
	}
	year, ok := parseYear(w, r.URL.Query().Get("year"))
	if !ok {
		return
	}

	a, err := h.assess.GetAssessment(r.Context(), loc, year)
	if err != nil {
		writeError(w, http.StatusBadGateway, "assessment_unavailable", err.Error(), nil)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// HandleTrend serves the stage series over an inclusive year range.
func (h *Handlers) HandleTrend(w http.ResponseWriter, r *http.Request) {
	loc := strings.TrimSpace(r.URL.Query().Get("location"))
	if loc == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "location is required", nil)
		return
	}
	from, ok := parseYear(w, r.URL.Query().Get("from"))
	if !ok {
		return
	}
	to, ok := parseYear(w, r.URL.Query().Get("to"))
	if !ok {
		return
	}

	points, err := h.assess.GetTrend(r.Context(), loc, from, to)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"location": loc, "points": points})
}

// HandleCompare serves the same year for several units.
func (h *Handlers) HandleCompare(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("locations"))
	if raw == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "locations is required", nil)
		return
	}
	var locations []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			locations = append(locations, p)
		}
	}
	year, ok := parseYear(w, r.URL.Query().Get("year"))
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, h.assess.CompareRegions(r.Context(), locations, year))
}

func parseYear(w http.ResponseWriter, raw string) (int, bool) {
	y, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || y < 1900 || y > 2100 {
		writeError(w, http.StatusBadRequest, "invalid_request", "year must be a four-digit year", nil)
		return 0, false
	}
	return y, true
}
