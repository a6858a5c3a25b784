package activity

import (
	"sort"
	"sync"

	"github.com/teranos/tempo/errors"
	"github.com/teranos/tempo/pulse/params"
)

type entry struct {
	factory    Factory
	recurrence string
}

// Registry maps type names to factories and declared recurrences.
// Build it once at process start and hand it to the reconciler and runner.
// Safe for concurrent lookup.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register instantiates the activity once to read its type and recurrence,
// then records the factory under that type. Registering the same type again
// replaces the earlier entry.
func (r *Registry) Register(f Factory) (string, error) {
	probe, err := f(nil, nil)
	if err != nil {
		return "", errors.Wrap(err, "instantiate activity for registration")
	}
	if probe == nil {
		return "", errors.New("activity factory returned nil")
	}
	typ := TypeName(probe)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[typ] = entry{factory: f, recurrence: probe.Recurrence()}
	return typ, nil
}

// MustRegister is Register for static composition; it panics on error.
func (r *Registry) MustRegister(f Factory) string {
	typ, err := r.Register(f)
	if err != nil {
		panic(err)
	}
	return typ
}

// Unregister removes typ. Its pending recurring row is dropped by the next
// reconciliation.
func (r *Registry) Unregister(typ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, typ)
}

// FactoryFor returns the factory for typ.
func (r *Registry) FactoryFor(typ string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[typ]
	return e.factory, ok
}

// RecurrenceFor returns the declared cron expression for typ. The bool is
// false for unknown types; an empty expression means ad-hoc only.
func (r *Registry) RecurrenceFor(typ string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[typ]
	return e.recurrence, ok
}

// Types returns every registered type name, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.entries))
	for t := range r.entries {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Has reports whether typ is registered.
func (r *Registry) Has(typ string) bool {
	_, ok := r.FactoryFor(typ)
	return ok
}

// New constructs an activity of type typ with the given parameters. Keys
// outside the activity's schema fail with ErrUnknownField, whether or not
// the factory itself applied them.
func (r *Registry) New(h Handle, typ string, p params.Params) (Activity, error) {
	f, ok := r.FactoryFor(typ)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownType, "%q", typ)
	}
	a, err := f(h, p)
	if err != nil {
		return nil, errors.Wrapf(err, "construct %s", typ)
	}
	if a == nil {
		return nil, errors.Newf("factory for %s returned nil", typ)
	}
	if err := checkKeys(a, p); err != nil {
		return nil, err
	}
	return a, nil
}
