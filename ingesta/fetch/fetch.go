// Package fetch acquires raw source artifacts. Three interchangeable
// drivers cover the source landscape: plain HTTP, a headless-browser
// download session, and paginated JSON APIs. Every driver writes into the
// raw cache under the descriptor's canonical filename and has no side
// effects anywhere else.
package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/macrodatos/ingesta/ingesta/rawcache"
)

// Descriptor tells a driver where a source lives and how to fetch it.
type Descriptor struct {
	Kind      string // http | browser | api
	URL       string
	Canonical string // filename under data_raw/

	// InsecureTLS permits one retry with certificate verification disabled
	// when the first attempt fails TLS verification. Opt-in per source so
	// every use is visible in the job catalog.
	InsecureTLS bool

	// MonthlyProbe treats URL as a template with {YYYY} and {MM}
	// placeholders and walks back up to 24 months for the most recent
	// existing artifact.
	MonthlyProbe bool

	// Selector is the CSS selector of the download link the browser driver
	// must click. Empty means navigation alone triggers the download.
	Selector string

	// API windowing
	WindowYears int       // chunk size in years, default 20
	APIKeyParam string    // registration-key query parameter name
	APIKey      string    //
	StartDate   time.Time // lower bound of the request windows

	// CleanPatterns are vendor-name globs removed from data_raw/ before the
	// download so "newest matching" stays well-defined.
	CleanPatterns []string

	Timeout time.Duration
}

// Driver fetches one descriptor and returns the local path of the
// canonical artifact.
type Driver interface {
	Fetch(ctx context.Context, d Descriptor) (string, error)
}

// ForKind selects a driver from the descriptor kind.
func ForKind(kind string, cache *rawcache.Cache, browserCfg BrowserConfig) (Driver, error) {
	switch kind {
	case "http":
		return NewHTTPDriver(cache), nil
	case "browser":
		return NewBrowserDriver(cache, browserCfg), nil
	case "api":
		return NewAPIDriver(cache), nil
	default:
		return nil, fmt.Errorf("unknown fetch driver %q", kind)
	}
}

// NetworkError wraps a transport-level failure.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error fetching %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// SelectorTimeout means the browser driver never saw the element it was
// told to click.
type SelectorTimeout struct {
	URL      string
	Selector string
}

func (e *SelectorTimeout) Error() string {
	return fmt.Sprintf("timed out waiting for selector %q on %s", e.Selector, e.URL)
}

// APIError carries the status and body of a failed API call.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("api returned status %d: %s", e.Status, body)
}
