package fetch

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/macrodatos/ingesta/ingesta/rawcache"
)

const (
	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

	defaultHTTPTimeout = 60 * time.Second
	monthlyProbeLimit  = 24
)

// HTTPDriver issues a plain GET for direct spreadsheet and CSV URLs.
type HTTPDriver struct {
	cache  *rawcache.Cache
	client *http.Client
	logger *slog.Logger
}

func NewHTTPDriver(cache *rawcache.Cache) *HTTPDriver {
	return &HTTPDriver{
		cache:  cache,
		client: &http.Client{Timeout: defaultHTTPTimeout},
		logger: slog.With(slog.String("service", "fetch_http")),
	}
}

func (d *HTTPDriver) Fetch(ctx context.Context, desc Descriptor) (string, error) {
	if err := d.cache.CleanVendor(desc.CleanPatterns); err != nil {
		return "", err
	}

	if desc.MonthlyProbe {
		return d.fetchMonthlyProbe(ctx, desc)
	}
	return d.fetchURL(ctx, desc, desc.URL)
}

func (d *HTTPDriver) fetchURL(ctx context.Context, desc Descriptor, url string) (string, error) {
	body, err := d.get(ctx, url, false)
	if err != nil {
		if desc.InsecureTLS && isTLSVerifyError(err) {
			d.logger.Warn("TLS verification failed, retrying without verification",
				slog.String("type", "fetch"),
				slog.String("url", url))
			body, err = d.get(ctx, url, true)
		}
		if err != nil {
			return "", err
		}
	}
	defer body.Close()

	tmp, err := os.CreateTemp("", "ingesta-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", &NetworkError{URL: url, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to finish download: %w", err)
	}

	return d.cache.Place(tmp.Name(), desc.Canonical)
}

func (d *HTTPDriver) get(ctx context.Context, url string, insecure bool) (io.ReadCloser, error) {
	timeout := defaultHTTPTimeout
	ctx, cancel := context.WithTimeout(ctx, timeout)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, &NetworkError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", browserUserAgent)

	client := d.client
	if insecure {
		client = &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		cancel()
		return nil, &NetworkError{URL: url, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, &NetworkError{URL: url, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	return &cancelReadCloser{ReadCloser: resp.Body, cancel: cancel}, nil
}

// fetchMonthlyProbe walks a {YYYY}/{MM} templated URL backward from the
// current month until an artifact exists.
func (d *HTTPDriver) fetchMonthlyProbe(ctx context.Context, desc Descriptor) (string, error) {
	now := time.Now().UTC()
	var lastErr error
	for i := 0; i < monthlyProbeLimit; i++ {
		month := now.AddDate(0, -i, 0)
		url := strings.NewReplacer(
			"{YYYY}", fmt.Sprintf("%04d", month.Year()),
			"{MM}", fmt.Sprintf("%02d", int(month.Month())),
		).Replace(desc.URL)

		path, err := d.fetchURL(ctx, desc, url)
		if err == nil {
			d.logger.Info("Monthly artifact found",
				slog.String("type", "fetch"),
				slog.String("url", url))
			return path, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", lastErr
		}
	}
	return "", fmt.Errorf("no artifact found in the last %d months: %w", monthlyProbeLimit, lastErr)
}

func isTLSVerifyError(err error) bool {
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return true
	}
	var unknownAuth x509.UnknownAuthorityError
	if errors.As(err, &unknownAuth) {
		return true
	}
	var hostErr x509.HostnameError
	return errors.As(err, &hostErr)
}

type cancelReadCloser struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelReadCloser) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
