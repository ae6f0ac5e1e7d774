// Package scanner discovers candidate files for ingestion.
//
// Given a set of root paths (files or directories) it produces a
// deduplicated, order-stable list of files whose extension is supported.
// Missing roots, unreadable entries and symlinks are skipped without
// failing the scan: scan roots are operator-configured and may be
// legitimately absent in some deployments.
package scanner

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// DefaultMaxFileSize is the default maximum file size (100MB).
// Larger files are skipped to prevent memory exhaustion.
const DefaultMaxFileSize = 100 * 1024 * 1024

// supportedExtensions is the set of file types the extractor can handle.
var supportedExtensions = map[string]struct{}{
	".txt":  {},
	".md":   {},
	".pdf":  {},
	".docx": {},
	".xlsx": {},
	".png":  {},
	".jpg":  {},
	".jpeg": {},
}

// FileInfo describes one discovered candidate file.
type FileInfo struct {
	// Path is the absolute file path.
	Path string

	// Size is the file size in bytes.
	Size int64

	// ModTime is the last modification time.
	ModTime time.Time
}

// Options configures a scan.
type Options struct {
	// MaxFileSize is the largest file to yield (0 = DefaultMaxFileSize).
	MaxFileSize int64
}

// Supported reports whether the file extension is in the supported set.
func Supported(path string) bool {
	_, ok := supportedExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Scan walks roots and returns the deduplicated candidate files sorted by
// absolute path. Roots may be files or directories; non-existent roots are
// treated as nothing to scan. The only error returned is context
// cancellation.
func Scan(ctx context.Context, roots []string, opts Options) ([]FileInfo, error) {
	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	seen := make(map[string]FileInfo)

	for _, root := range roots {
		if root == "" {
			continue
		}

		absRoot, err := filepath.Abs(root)
		if err != nil {
			slog.Warn("skipping unresolvable scan root",
				slog.String("root", root),
				slog.String("error", err.Error()))
			continue
		}

		info, err := os.Lstat(absRoot)
		if err != nil {
			// Missing roots are not an error: nothing to scan there.
			slog.Debug("scan root not found", slog.String("root", absRoot))
			continue
		}

		if !info.IsDir() {
			if info.Mode()&os.ModeSymlink != 0 {
				continue
			}
			if Supported(absRoot) && info.Size() <= maxSize {
				seen[absRoot] = FileInfo{Path: absRoot, Size: info.Size(), ModTime: info.ModTime()}
			}
			continue
		}

		if err := walkRoot(ctx, absRoot, maxSize, seen); err != nil {
			return nil, err
		}
	}

	out := make([]FileInfo, 0, len(seen))
	for _, fi := range seen {
		out = append(out, fi)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// walkRoot traverses one directory root, collecting supported files into
// seen. Unreadable entries are skipped; only context cancellation aborts.
func walkRoot(ctx context.Context, absRoot string, maxSize int64, seen map[string]FileInfo) error {
	return filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			return nil // skip entries we cannot access
		}

		if d.IsDir() {
			return nil
		}

		// Symlinks are not followed: a link loop must not wedge the scan.
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}

		if !Supported(path) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}

		if info.Size() > maxSize {
			slog.Debug("skipping oversized file",
				slog.String("path", path),
				slog.Int64("size", info.Size()))
			return nil
		}

		seen[path] = FileInfo{Path: path, Size: info.Size(), ModTime: info.ModTime()}
		return nil
	})
}
