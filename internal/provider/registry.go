package provider

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/shineum/anymail-lite/internal/mailerr"
)

// Options are provider-specific settings such as region or endpoint
// overrides.
type Options map[string]string

// Get returns the option or def when unset.
func (o Options) Get(key, def string) string {
	if v, ok := o[key]; ok && v != "" {
		return v
	}
	return def
}

// Factory creates a backend from its options.
type Factory func(opts Options) (Backend, error)

// Registry maps provider identifiers to backend factories. It is safe for
// concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	aliases   map[string]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		aliases:   make(map[string]string),
	}
}

// Register adds a factory under name and any aliases. Registering the same
// name twice panics, since it can only happen at startup.
func (r *Registry) Register(name string, f Factory, aliases ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name = normalizeName(name)
	if _, ok := r.factories[name]; ok {
		panic(fmt.Sprintf("provider: %s registered twice", name))
	}
	r.factories[name] = f
	for _, a := range aliases {
		r.aliases[normalizeName(a)] = name
	}
}

// Lookup returns the factory for name or one of its aliases.
func (r *Registry) Lookup(name string) (string, Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key := normalizeName(name)
	if canonical, ok := r.aliases[key]; ok {
		key = canonical
	}
	f, ok := r.factories[key]
	if !ok {
		return "", nil, &mailerr.ConfigError{
			Reason: fmt.Sprintf("unknown provider %q (available: %s)", name, strings.Join(r.namesLocked(), ", ")),
		}
	}
	return key, f, nil
}

// New resolves name and builds its backend.
func (r *Registry) New(name string, opts Options) (Backend, error) {
	canonical, f, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	b, err := f(opts)
	if err != nil {
		return nil, fmt.Errorf("create %s backend: %w", canonical, err)
	}
	return b, nil
}

// Names returns the canonical provider names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := lo.Keys(r.factories)
	slices.Sort(names)
	return names
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
