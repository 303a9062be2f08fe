package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/knsan189/imageLabeler/internal/database"
	"github.com/knsan189/imageLabeler/internal/filesystem"
	"github.com/knsan189/imageLabeler/internal/logging"
	"github.com/knsan189/imageLabeler/internal/mediatypes"
)

// Scan walks root and returns the paths of all supported images, sorted.
// Hidden files and directories are skipped. Unreadable entries are logged
// and skipped; only a missing root or a cancelled ctx is an error.
func Scan(ctx context.Context, root string) ([]string, error) {
	info, err := filesystem.StatWithRetry(root, filesystem.DefaultRetryConfig())
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan %s: not a directory", root)
	}

	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			logging.Warn("Error accessing path %s: %v", path, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if path != root && isHidden(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && d.Type().IsRegular() && mediatypes.IsSupportedImage(d.Name()) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil && !errors.Is(err, fs.SkipAll) {
		return nil, err
	}

	sort.Strings(paths)
	logging.Debug("Scan of %s found %d images", root, len(paths))
	return paths, nil
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// SeenStore persists which paths were handled at which fingerprint.
type SeenStore interface {
	IsSeen(ctx context.Context, path, fingerprint string) (bool, error)
	MarkSeen(ctx context.Context, path, fingerprint string) error
}

// Gate drops paths that were already handled and have not changed since.
// A nil store lets everything through.
type Gate struct {
	store SeenStore
}

// NewGate creates a Gate backed by store.
func NewGate(store SeenStore) *Gate {
	return &Gate{store: store}
}

// Fresh reports whether path is new or changed since it was last marked.
func (g *Gate) Fresh(ctx context.Context, path string) bool {
	if g == nil || g.store == nil {
		return true
	}
	fp, err := fingerprint(path)
	if err != nil {
		return true
	}
	seen, err := g.store.IsSeen(ctx, path, fp)
	if err != nil {
		logging.WarnContext(ctx, "Seen lookup failed for %s: %v", path, err)
		return true
	}
	return !seen
}

// Mark records path at its current fingerprint.
func (g *Gate) Mark(ctx context.Context, path string) {
	if g == nil || g.store == nil {
		return
	}
	fp, err := fingerprint(path)
	if err != nil {
		return
	}
	if err := g.store.MarkSeen(ctx, path, fp); err != nil {
		logging.WarnContext(ctx, "Failed to mark %s as seen: %v", path, err)
	}
}

func fingerprint(path string) (string, error) {
	info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		return "", err
	}
	return database.Fingerprint(path, info.Size(), info.ModTime()), nil
}
