// Package fetch talks to the rendering/scraping service and, as a last
// resort, fetches pages directly over HTTP. The service exposes three call
// surfaces that historically disagree on accepting semicolon-delimited URLs;
// the cache orchestrator decides in which order to try them.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/nkhandelwal/ingres-resolver/internal/observability"
)

// Transport names one way of retrieving a page.
type Transport string

const (
	TransportREST   Transport = "rest-v2"
	TransportSDK    Transport = "sdk-v1"
	TransportLegacy Transport = "legacy-v0"
	TransportDirect Transport = "direct-get"
)

// Result is a page rendering. Either field may be empty depending on the
// requested formats and what the upstream returned.
type Result struct {
	HTML     string
	Markdown string
}

// Empty reports whether the fetch yielded no usable content at all.
func (r Result) Empty() bool { return r.HTML == "" && r.Markdown == "" }

// Options tune a single scrape attempt.
type Options struct {
	Formats         []string
	OnlyMainContent bool
	MaxAge          time.Duration
	Wait            time.Duration
}

// Scraper is the contract the orchestrator and resolver consume.
type Scraper interface {
	ScrapeREST(ctx context.Context, target string, opts Options) (Result, error)
	ScrapeSDK(ctx context.Context, target string, opts Options) (Result, error)
	ScrapeLegacy(ctx context.Context, target string, opts Options) (Result, error)
	Direct(ctx context.Context, target string) (Result, error)
}

const browserUA = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     zerolog.Logger
}

func NewClient(baseURL, apiKey string, httpClient *http.Client, log zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	return &Client{baseURL: baseURL, apiKey: apiKey, http: httpClient, log: log}
}

type scrapeRequest struct {
	URL             string   `json:"url"`
	Formats         []string `json:"formats,omitempty"`
	OnlyMainContent bool     `json:"onlyMainContent,omitempty"`
	MaxAgeMs        int64    `json:"maxAge,omitempty"`
	WaitForMs       int64    `json:"waitFor,omitempty"`
}

// The v2 surface nests content under data.
type v2Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Data    struct {
		HTML     string `json:"html"`
		Markdown string `json:"markdown"`
	} `json:"data"`
}

// The v1 and legacy surfaces return content at the top level.
type v1Response struct {
	Success  bool   `json:"success"`
	Error    string `json:"error"`
	HTML     string `json:"html"`
	Markdown string `json:"markdown"`
}

// ScrapeREST calls the structured /v2/scrape endpoint.
func (c *Client) ScrapeREST(ctx context.Context, target string, opts Options) (Result, error) {
	var resp v2Response
	if err := c.post(ctx, "/v2/scrape", target, opts, &resp); err != nil {
		return Result{}, err
	}
	if !resp.Success {
		return Result{}, fmt.Errorf("scrape v2 %q: %s", target, nonEmpty(resp.Error, "upstream reported failure"))
	}
	return Result{HTML: resp.Data.HTML, Markdown: resp.Data.Markdown}, nil
}

// ScrapeSDK calls the older /v1/scrape endpoint, the shape the vendor SDK
// speaks.
func (c *Client) ScrapeSDK(ctx context.Context, target string, opts Options) (Result, error) {
	var resp v1Response
	if err := c.post(ctx, "/v1/scrape", target, opts, &resp); err != nil {
		return Result{}, err
	}
	if !resp.Success {
		return Result{}, fmt.Errorf("scrape v1 %q: %s", target, nonEmpty(resp.Error, "upstream reported failure"))
	}
	return Result{HTML: resp.HTML, Markdown: resp.Markdown}, nil
}

// ScrapeLegacy calls the deprecated /v0/scrape endpoint, kept because it
// accepts URLs the newer surfaces reject.
func (c *Client) ScrapeLegacy(ctx context.Context, target string, opts Options) (Result, error) {
	var resp v1Response
	if err := c.post(ctx, "/v0/scrape", target, opts, &resp); err != nil {
		return Result{}, err
	}
	if !resp.Success {
		return Result{}, fmt.Errorf("scrape v0 %q: %s", target, nonEmpty(resp.Error, "upstream reported failure"))
	}
	return Result{HTML: resp.HTML, Markdown: resp.Markdown}, nil
}

func (c *Client) post(ctx context.Context, path, target string, opts Options, out any) error {
	if c.baseURL == "" {
		return errors.New("scrape service base URL is not configured")
	}

	body := scrapeRequest{
		URL:             target,
		Formats:         opts.Formats,
		OnlyMainContent: opts.OnlyMainContent,
		MaxAgeMs:        opts.MaxAge.Milliseconds(),
		WaitForMs:       opts.Wait.Milliseconds(),
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode scrape request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create scrape request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	observability.ObserveUpstreamLatency("scrape-service", time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("scrape %s %q: %w", path, target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("scrape %s %q: status %d: %s", path, target, resp.StatusCode, bytes.TrimSpace(msg))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("scrape %s %q: decode response: %w", path, target, err)
	}
	return nil
}

// Direct fetches the page itself with a realistic browser User-Agent; the
// portal serves HTML only on this path.
func (c *Client) Direct(ctx context.Context, target string) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Result{}, fmt.Errorf("create direct request: %w", err)
	}
	req.Header.Set("User-Agent", browserUA)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	start := time.Now()
	resp, err := c.http.Do(req)
	observability.ObserveUpstreamLatency("direct-get", time.Since(start).Seconds())
	if err != nil {
		return Result{}, fmt.Errorf("direct fetch %q: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{}, fmt.Errorf("direct fetch %q: status %d", target, resp.StatusCode)
	}
	html, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("direct fetch %q: read body: %w", target, err)
	}
	return Result{HTML: string(html)}, nil
}

// FetchHTML retrieves a page's HTML for identifier extraction: the rendering
// service first (the portal draws its content with scripts), direct GET when
// the service is unavailable.
func (c *Client) FetchHTML(ctx context.Context, target string) (string, error) {
	res, err := c.ScrapeREST(ctx, target, Options{Formats: []string{"html"}, OnlyMainContent: true, Wait: 2 * time.Second})
	if err == nil && res.HTML != "" {
		return res.HTML, nil
	}
	if err != nil {
		c.log.Debug().Str("url", target).Err(err).Msg("rendered fetch failed, trying direct")
	}
	direct, derr := c.Direct(ctx, target)
	if derr != nil {
		if err != nil {
			return "", fmt.Errorf("%w (direct: %v)", err, derr)
		}
		return "", derr
	}
	return direct.HTML, nil
}

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}
