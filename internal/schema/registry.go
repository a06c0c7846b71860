package schema

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"
)

// Registry loads shapes from a directory of YAML files, one file per
// event type (<event_type>.yaml). Results, including "no shape declared",
// are cached for the process lifetime; singleflight collapses concurrent
// first loads of the same type.
type Registry struct {
	dir string

	mu    sync.RWMutex
	cache map[string]*cacheEntry
	group singleflight.Group
}

type cacheEntry struct {
	shape *Shape // nil when the event type has no shape file
}

// NewRegistry creates a registry over the given shape directory.
func NewRegistry(dir string) *Registry {
	return &Registry{
		dir:   dir,
		cache: make(map[string]*cacheEntry),
	}
}

// Get returns the shape for an event type, or ErrShapeNotFound when none
// is declared.
func (r *Registry) Get(ctx context.Context, eventType string) (*Shape, error) {
	r.mu.RLock()
	entry, ok := r.cache[eventType]
	r.mu.RUnlock()

	if !ok {
		loaded, err, _ := r.group.Do(eventType, func() (interface{}, error) {
			e, err := r.load(eventType)
			if err != nil {
				return nil, err
			}
			r.mu.Lock()
			r.cache[eventType] = e
			r.mu.Unlock()
			return e, nil
		})
		if err != nil {
			return nil, err
		}
		entry = loaded.(*cacheEntry)
	}

	if entry.shape == nil {
		return nil, ErrShapeNotFound
	}
	return entry.shape, nil
}

func (r *Registry) load(eventType string) (*cacheEntry, error) {
	if !safeEventType(eventType) {
		// Never touch the filesystem with a suspicious name; treat it as
		// an undeclared type.
		return &cacheEntry{}, nil
	}

	path := filepath.Join(r.dir, eventType+".yaml")
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &cacheEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read shape file %s: %w", path, err)
	}

	var shape Shape
	if err := yaml.Unmarshal(raw, &shape); err != nil {
		return nil, fmt.Errorf("failed to parse shape file %s: %w", path, err)
	}
	if shape.EventType == "" {
		shape.EventType = eventType
	}
	if shape.EventType != eventType {
		return nil, fmt.Errorf("shape file %s declares event_type %q", path, shape.EventType)
	}
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape file %s: %w", path, err)
	}

	return &cacheEntry{shape: &shape}, nil
}

// safeEventType restricts shape lookups to names that cannot escape the
// shape directory.
func safeEventType(name string) bool {
	if name == "" || len(name) > 128 {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '-' || r == '.':
		default:
			return false
		}
	}
	return !strings.Contains(name, "..")
}
