package filesystem

import (
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
)

// UnknownVolume labels paths outside every configured volume.
const UnknownVolume = "unknown"

type volume struct {
	name string
	root string // absolute and cleaned
}

// Volumes maps paths to the short names used as metric labels, so series
// read "originals" instead of a mount path. The deepest matching root wins.
type Volumes []volume

// NewVolumes builds a table from name → root. Empty roots are dropped.
func NewVolumes(roots map[string]string) Volumes {
	v := make(Volumes, 0, len(roots))
	for name, root := range roots {
		if root == "" {
			continue
		}
		if abs, err := filepath.Abs(root); err == nil {
			root = abs
		}
		v = append(v, volume{name: name, root: filepath.Clean(root)})
	}
	slices.SortFunc(v, func(a, b volume) int { return len(b.root) - len(a.root) })
	return v
}

// Label returns the name of the volume holding path, or UnknownVolume.
func (v Volumes) Label(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return UnknownVolume
	}
	for _, vol := range v {
		rel, err := filepath.Rel(vol.root, abs)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, "../") {
			return vol.name
		}
	}
	return UnknownVolume
}

// Names returns the volume names, sorted.
func (v Volumes) Names() []string {
	if len(v) == 0 {
		return nil
	}
	names := make([]string, len(v))
	for i, vol := range v {
		names[i] = vol.name
	}
	slices.Sort(names)
	return names
}

var currentVolumes atomic.Pointer[Volumes]

// SetVolumes installs v as the table used when a RetryConfig has none.
func SetVolumes(v Volumes) {
	currentVolumes.Store(&v)
}

func volumes() Volumes {
	if p := currentVolumes.Load(); p != nil {
		return *p
	}
	return nil
}
