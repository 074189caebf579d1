package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/macrodatos/ingesta/ingesta/parse"
	"github.com/macrodatos/ingesta/ingesta/rawcache"
)

const defaultWindowYears = 20

// APIDriver pulls central-bank JSON APIs in chunked date windows. The
// descriptor URL is a template with {FROM} and {TO} placeholders
// (YYYY-MM-DD); rate-limited vendors cap how much history one call may
// span, so the driver walks the full range in windows and merges the
// chunks, keeping the last value per period on collision.
type APIDriver struct {
	cache  *rawcache.Cache
	client *http.Client
	logger *slog.Logger
}

func NewAPIDriver(cache *rawcache.Cache) *APIDriver {
	return &APIDriver{
		cache:  cache,
		client: &http.Client{Timeout: defaultHTTPTimeout},
		logger: slog.With(slog.String("service", "fetch_api")),
	}
}

func (d *APIDriver) Fetch(ctx context.Context, desc Descriptor) (string, error) {
	windowYears := desc.WindowYears
	if windowYears <= 0 {
		windowYears = defaultWindowYears
	}
	start := desc.StartDate
	if start.IsZero() {
		start = time.Date(1990, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	end := time.Now().UTC()

	merged := make(map[string]parse.APIPeriod)
	var order []string

	for from := start; from.Before(end); from = from.AddDate(windowYears, 0, 0) {
		to := from.AddDate(windowYears, 0, -1)
		if to.After(end) {
			to = end
		}

		doc, err := d.fetchWindow(ctx, desc, from, to)
		if err != nil {
			return "", err
		}
		for _, period := range doc.Periods {
			if _, seen := merged[period.Name]; !seen {
				order = append(order, period.Name)
			}
			// last window wins on duplicate periods
			merged[period.Name] = period
		}
	}

	out := parse.APIDocument{Periods: make([]parse.APIPeriod, 0, len(order))}
	for _, name := range order {
		out.Periods = append(out.Periods, merged[name])
	}

	d.logger.Info("API windows merged",
		slog.String("type", "fetch"),
		slog.Int("periods", len(out.Periods)),
		slog.String("url", desc.URL))

	tmp, err := os.CreateTemp("", "ingesta-api-*.json")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	enc := json.NewEncoder(tmp)
	if err := enc.Encode(out); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write merged response: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write merged response: %w", err)
	}

	return d.cache.Place(tmp.Name(), desc.Canonical)
}

func (d *APIDriver) fetchWindow(ctx context.Context, desc Descriptor, from, to time.Time) (parse.APIDocument, error) {
	endpoint := strings.NewReplacer(
		"{FROM}", from.Format("2006-01-02"),
		"{TO}", to.Format("2006-01-02"),
	).Replace(desc.URL)

	if desc.APIKeyParam != "" && desc.APIKey != "" {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		endpoint += sep + desc.APIKeyParam + "=" + url.QueryEscape(desc.APIKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return parse.APIDocument{}, &NetworkError{URL: endpoint, Err: err}
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return parse.APIDocument{}, &NetworkError{URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return parse.APIDocument{}, &NetworkError{URL: endpoint, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return parse.APIDocument{}, &APIError{Status: resp.StatusCode, Body: string(body)}
	}

	var doc parse.APIDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return parse.APIDocument{}, &APIError{Status: resp.StatusCode, Body: "invalid JSON: " + err.Error()}
	}
	return doc, nil
}
