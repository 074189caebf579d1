// Package rawcache manages the on-disk cache of downloaded source
// artifacts. Fetch drivers place every artifact under a canonical filename
// in data_raw/; full-history snapshots used by initial loads and derived
// series live under historicos/.
package rawcache

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
)

type Cache struct {
	dataRawDir    string
	historicosDir string
	logger        *slog.Logger
}

func New(dataRawDir, historicosDir string) (*Cache, error) {
	for _, dir := range []string{dataRawDir, historicosDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache dir %s: %w", dir, err)
		}
	}
	return &Cache{
		dataRawDir:    dataRawDir,
		historicosDir: historicosDir,
		logger:        slog.With(slog.String("service", "rawcache")),
	}, nil
}

// Path returns the canonical working-copy path for a source filename.
func (c *Cache) Path(canonical string) string {
	return filepath.Join(c.dataRawDir, filepath.Base(canonical))
}

// HistoricoPath returns the snapshot path for a source filename.
func (c *Cache) HistoricoPath(canonical string) string {
	return filepath.Join(c.historicosDir, filepath.Base(canonical))
}

// Place moves src to the canonical name, overwriting any prior copy. Vendor
// names like "file (1).xlsx" end up under the stable name the parsers
// expect. If the canonical file is locked by another process the rename
// fails; the newest artifact is then used in place.
func (c *Cache) Place(src, canonical string) (string, error) {
	dst := c.Path(canonical)

	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		c.logger.Warn("Canonical file busy, using artifact in place",
			slog.String("path", dst),
			slog.String("error", err.Error()))
		return src, nil
	}

	if err := os.Rename(src, dst); err == nil {
		return dst, nil
	}

	// Rename across filesystems fails; fall back to copy
	if err := copyFile(src, dst); err != nil {
		return "", fmt.Errorf("failed to place %s as %s: %w", src, dst, err)
	}
	_ = os.Remove(src)
	return dst, nil
}

// CleanVendor removes artifacts matching the vendor-name patterns so that
// "pick newest matching file" stays well-defined across reruns.
func (c *Cache) CleanVendor(patterns []string) error {
	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(c.dataRawDir, pattern))
		if err != nil {
			return fmt.Errorf("bad vendor pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			if err := os.Remove(m); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("failed to remove stale artifact %s: %w", m, err)
			}
			c.logger.Debug("Removed stale artifact", slog.String("path", m))
		}
	}
	return nil
}

// NewestMatching returns the most recently modified file matching pattern
// under data_raw/, or an error when nothing matches.
func (c *Cache) NewestMatching(pattern string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(c.dataRawDir, pattern))
	if err != nil {
		return "", fmt.Errorf("bad pattern %q: %w", pattern, err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no artifact matching %q under %s", pattern, c.dataRawDir)
	}

	sort.Slice(matches, func(i, j int) bool {
		fi, errI := os.Stat(matches[i])
		fj, errJ := os.Stat(matches[j])
		if errI != nil || errJ != nil {
			return matches[i] < matches[j]
		}
		return fi.ModTime().After(fj.ModTime())
	})
	return matches[0], nil
}

// Snapshot copies the canonical working copy into historicos/. Snapshots
// are write-once per successful job run; data_raw/ stays authoritative for
// re-runs.
func (c *Cache) Snapshot(canonical string) (string, error) {
	src := c.Path(canonical)
	dst := c.HistoricoPath(canonical)
	if err := copyFile(src, dst); err != nil {
		return "", fmt.Errorf("failed to snapshot %s: %w", canonical, err)
	}
	c.logger.Info("Snapshot stored", slog.String("path", dst))
	return dst, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.CreateTemp(filepath.Dir(dst), ".tmp-*")
	if err != nil {
		return err
	}
	tmp := out.Name()

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}
