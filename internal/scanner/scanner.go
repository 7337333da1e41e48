package scanner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/roach88/corpusgraph/internal/store"
)

// Scanner recursively walks a configured root and upserts discovered
// files into the store.
type Scanner struct {
	store  *store.Store
	root   string
	logger *slog.Logger
	fold   cases.Caser
}

// New constructs a Scanner rooted at root.
func New(s *store.Store, root string, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{
		store:  s,
		root:   root,
		logger: logger,
		fold:   cases.Fold(),
	}
}

// Result summarizes one Scan invocation.
type Result struct {
	Discovered int // new untracked rows inserted
	Unchanged  int // existing rows whose content hash matched
	Superseded int // existing rows superseded by a content change
	Errored    int // files that could not be hashed
}

// Scan walks the root directory once. For every regular file it
// computes a SHA-256 content hash, derives metadata from the path
// convention `<course>/<series>/<episode>.<ext>` relative to root, and
// upserts the row. Scanning a directory twice with no content changes
// produces no new rows and no state changes.
func (sc *Scanner) Scan(ctx context.Context) (Result, error) {
	var res Result

	err := filepath.WalkDir(sc.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		hash, mtime, err := hashFile(path)
		if err != nil {
			sc.logger.Error("failed to hash file", "path", path, "error", err)
			res.Errored++
			return nil
		}

		metadataJSON, err := sc.pathMetadata(path)
		if err != nil {
			sc.logger.Warn("failed to derive metadata", "path", path, "error", err)
			metadataJSON = "{}"
		}

		existing, err := sc.store.ReadFile(ctx, path)
		switch {
		case err != nil:
			// No existing row: fresh discovery.
			if dErr := sc.store.DiscoverOrUpdate(ctx, path, hash, mtime, metadataJSON); dErr != nil {
				return fmt.Errorf("discover %s: %w", path, dErr)
			}
			res.Discovered++
		case existing.ContentHash == hash:
			res.Unchanged++
		default:
			if sErr := sc.store.MarkStaleAndSupersede(ctx, path, hash, mtime, metadataJSON); sErr != nil {
				return fmt.Errorf("supersede %s: %w", path, sErr)
			}
			res.Superseded++
		}

		return nil
	})
	if err != nil {
		return res, fmt.Errorf("scan %s: %w", sc.root, err)
	}

	return res, nil
}

// hashFile computes the SHA-256 content hash of path and returns its
// modification time.
func hashFile(path string) (hash string, mtime time.Time, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", time.Time{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", time.Time{}, err
	}

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", time.Time{}, err
	}

	return hex.EncodeToString(h.Sum(nil)), info.ModTime(), nil
}

// pathMetadata derives directory-hierarchy metadata from path relative
// to the scanner's root, following the convention
// `<course>/<series>/<episode-file>`. Components are case-folded with
// golang.org/x/text so directory naming inconsistencies (Capitalized
// vs lowercase) don't fragment metadata values.
func (sc *Scanner) pathMetadata(path string) (string, error) {
	rel, err := filepath.Rel(sc.root, path)
	if err != nil {
		return "{}", err
	}

	parts := strings.Split(filepath.ToSlash(rel), "/")
	meta := map[string]string{}

	if len(parts) >= 1 {
		base := strings.TrimSuffix(filepath.Base(parts[len(parts)-1]), filepath.Ext(parts[len(parts)-1]))
		meta["episode"] = sc.fold.String(base)
	}
	if len(parts) >= 2 {
		meta["series"] = sc.fold.String(parts[len(parts)-2])
	}
	if len(parts) >= 3 {
		meta["course"] = sc.fold.String(parts[0])
	}

	out, err := json.Marshal(meta)
	if err != nil {
		return "{}", err
	}
	return string(out), nil
}
