package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"

	"github.com/macrodatos/ingesta/ingesta/rawcache"
)

// Well-known chromium locations inside the deploy containers.
var chromiumSearchPaths = []string{
	"/usr/bin/chromium",
	"/usr/bin/chromium-browser",
	"/usr/bin/google-chrome",
	"/usr/bin/google-chrome-stable",
	"/usr/lib/chromium/chromium",
	"/opt/chrome/chrome",
}

// Suffixes of downloads still in progress.
var inProgressSuffixes = []string{".crdownload", ".tmp", ".part"}

const (
	defaultDownloadTimeout = 30 * time.Second
	downloadPollInterval   = time.Second
)

type BrowserConfig struct {
	Binary          string
	SearchPaths     []string
	DownloadTimeout time.Duration
}

// BrowserDriver downloads artifacts from pages whose export buttons emit a
// real filesystem download. It diffs the download directory before and
// after navigation and polls until the new file is complete.
type BrowserDriver struct {
	cache  *rawcache.Cache
	cfg    BrowserConfig
	logger *slog.Logger
}

func NewBrowserDriver(cache *rawcache.Cache, cfg BrowserConfig) *BrowserDriver {
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = defaultDownloadTimeout
	}
	return &BrowserDriver{
		cache:  cache,
		cfg:    cfg,
		logger: slog.With(slog.String("service", "fetch_browser")),
	}
}

func (d *BrowserDriver) Fetch(ctx context.Context, desc Descriptor) (string, error) {
	if err := d.cache.CleanVendor(desc.CleanPatterns); err != nil {
		return "", err
	}

	binary, err := d.resolveBinary()
	if err != nil {
		return "", err
	}

	downloadDir, err := os.MkdirTemp("", "ingesta-dl-*")
	if err != nil {
		return "", fmt.Errorf("failed to create download dir: %w", err)
	}
	defer os.RemoveAll(downloadDir)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(binary),
		chromedp.Flag("headless", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelBrowser()

	before, err := snapshotDir(downloadDir)
	if err != nil {
		return "", err
	}

	actions := []chromedp.Action{
		browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllow).
			WithDownloadPath(downloadDir).
			WithEventsEnabled(true),
		chromedp.Navigate(desc.URL),
	}
	if desc.Selector != "" {
		actions = append(actions,
			chromedp.WaitVisible(desc.Selector, chromedp.ByQuery),
			chromedp.Click(desc.Selector, chromedp.ByQuery),
		)
	}

	navCtx, cancelNav := context.WithTimeout(browserCtx, d.cfg.DownloadTimeout)
	defer cancelNav()

	if err := chromedp.Run(navCtx, actions...); err != nil {
		if desc.Selector != "" && navCtx.Err() != nil {
			return "", &SelectorTimeout{URL: desc.URL, Selector: desc.Selector}
		}
		return "", &NetworkError{URL: desc.URL, Err: err}
	}

	downloaded, err := d.waitForDownload(ctx, downloadDir, before)
	if err != nil {
		return "", err
	}

	d.logger.Info("Download complete",
		slog.String("type", "fetch"),
		slog.String("file", filepath.Base(downloaded)),
		slog.String("url", desc.URL))
	return d.cache.Place(downloaded, desc.Canonical)
}

func (d *BrowserDriver) resolveBinary() (string, error) {
	if d.cfg.Binary != "" {
		return d.cfg.Binary, nil
	}
	paths := d.cfg.SearchPaths
	if len(paths) == 0 {
		paths = chromiumSearchPaths
	}
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", fmt.Errorf("no chromium-compatible binary found in %v", paths)
}

// waitForDownload polls the download directory at 1 s intervals until a
// new, complete file appears or the deadline passes.
func (d *BrowserDriver) waitForDownload(ctx context.Context, dir string, before map[string]bool) (string, error) {
	deadline := time.Now().Add(d.cfg.DownloadTimeout)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(downloadPollInterval):
		}

		after, err := snapshotDir(dir)
		if err != nil {
			return "", err
		}
		for name := range after {
			if before[name] || inProgress(name) {
				continue
			}
			return filepath.Join(dir, name), nil
		}
	}
	return "", fmt.Errorf("download did not complete within %s", d.cfg.DownloadTimeout)
}

func snapshotDir(dir string) (map[string]bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read download dir: %w", err)
	}
	names := make(map[string]bool, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names[e.Name()] = true
		}
	}
	return names, nil
}

func inProgress(name string) bool {
	for _, suffix := range inProgressSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}
