// Package sources defines the adapter contract for launch data sources and a
// thread-safe registry of adapters. Adapters are responsible only for turning
// one source into raw records; parsing and normalization beyond that belong
// to the validator.
package sources

import (
	"context"
	"sync"
	"time"

	"github.com/therealsahil19/webspace/pkg/launches"
)

// Config describes one configured source: where to fetch it from, how
// trustworthy it is, and its rank in the reconciliation priority order.
type Config struct {
	Name string `yaml:"name" json:"name"`
	URL  string `yaml:"url,omitempty" json:"url,omitempty"`

	// Priority ranks the source for conflict resolution. Higher wins.
	Priority int `yaml:"priority" json:"priority"`

	// Quality is the default quality score stamped onto raw records the
	// adapter does not score itself, in [0, 1].
	Quality float64 `yaml:"quality,omitempty" json:"quality,omitempty"`

	// Adapter selects the adapter implementation ("http", "static", ...).
	// Empty means the adapter registered under the source name.
	Adapter string `yaml:"adapter,omitempty" json:"adapter,omitempty"`

	// Timeout bounds a single fetch call. Zero means the pipeline default.
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`

	Disabled bool `yaml:"disabled,omitempty" json:"disabled,omitempty"`
}

// Adapter fetches raw launch records from one source.
type Adapter interface {
	// Name returns the adapter's registry name.
	Name() string

	// Fetch retrieves the source's current records. Implementations must
	// honor context cancellation; they return the raw records as scraped,
	// without normalization.
	Fetch(ctx context.Context, cfg Config) ([]launches.RawRecord, error)
}

// Registry is a thread-safe container of adapters keyed by name.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds or replaces an adapter under its name.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Name()] = a
}

// Get returns an adapter by name.
func (r *Registry) Get(name string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, found := r.adapters[name]
	return a, found
}

// Resolve returns the adapter for a source config: the configured adapter
// name when set, otherwise the adapter registered under the source name.
func (r *Registry) Resolve(cfg Config) (Adapter, bool) {
	name := cfg.Adapter
	if name == "" {
		name = cfg.Name
	}
	return r.Get(name)
}

// Names returns the registered adapter names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	return names
}

// Len returns the number of registered adapters.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.adapters)
}
