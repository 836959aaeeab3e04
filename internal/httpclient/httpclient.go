// Package httpclient configures the HTTP clients used to call upstream
// services.
package httpclient

import (
	"net"
	"net/http"
	"time"
)

// NewOutbound builds the shared client for API calls to the scrape service
// and the assessment API.
func NewOutbound() *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          256,
		MaxIdleConnsPerHost:   128,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   30 * time.Second,
	}
}

// NewScraping builds the client for page rendering, which regularly takes
// tens of seconds on the portal's script-heavy pages.
func NewScraping() *http.Client {
	c := NewOutbound()
	c.Timeout = 90 * time.Second
	return c
}
