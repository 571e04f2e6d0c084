package partial

import (
	"fmt"
	"sort"

	"github.com/zjrosen/jsonpartial/internal/lexer"
	"github.com/zjrosen/jsonpartial/internal/log"
)

// Entry is a single name -> fragment pair in a Registry snapshot.
type Entry struct {
	Name     string
	Fragment *Fragment
}

// Registry maps partial names to fragments. One fragment may be stored
// under several names. A Registry is not safe for concurrent use.
type Registry struct {
	entries    map[string]*Fragment
	strict     bool
	transitive bool
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// Strict sets the lookup policy. In strict mode an unknown name is an
// error; otherwise it resolves to null. Registries are strict by default.
func Strict(strict bool) RegistryOption {
	return func(r *Registry) {
		r.strict = strict
	}
}

// TransitiveInvalidation makes source changes invalidate dependents of
// dependents as well, instead of direct dependents only.
func TransitiveInvalidation() RegistryOption {
	return func(r *Registry) {
		r.transitive = true
	}
}

// NewRegistry creates an empty, strict registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		entries: make(map[string]*Fragment),
		strict:  true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Strict reports whether unknown names fail lookups.
func (r *Registry) Strict() bool {
	return r.strict
}

// SetStrict changes the lookup policy. It applies to the next lookup.
func (r *Registry) SetStrict(strict bool) {
	r.strict = strict
}

// Transitive reports whether invalidation follows dependents of dependents.
func (r *Registry) Transitive() bool {
	return r.transitive
}

// Set stores f under name, binding f to this registry if it is not bound
// yet. Fragments that referenced a different fragment under name lose their
// rendered cache. Set does not dispose a replaced fragment.
func (r *Registry) Set(name string, f *Fragment) error {
	if err := validate(name, f); err != nil {
		return err
	}

	previous, replaced := r.entries[name]
	f.bind(r)
	r.entries[name] = f
	log.Debug(log.CatRegistry, "set partial", "name", name, "id", f.id, "replaced", replaced)

	if replaced && previous != f {
		invalidateNames(r, map[string]struct{}{name: {}}, f)
	}
	return nil
}

// Lookup returns the fragment stored under name. When the name is absent,
// strict registries return an *Error wrapping ErrUnknownPartial and lenient
// ones return ok == false.
func (r *Registry) Lookup(name string) (*Fragment, bool, error) {
	f, ok := r.entries[name]
	if ok {
		return f, true, nil
	}
	if r.strict {
		log.Debug(log.CatRegistry, "unknown partial", "name", name)
		return nil, false, &Error{Msg: "unknown partial", Name: name, Err: ErrUnknownPartial}
	}
	return nil, false, nil
}

// Get returns the fragment stored under name, or an error wrapping
// ErrUnknownPartial regardless of the lookup policy.
func (r *Registry) Get(name string) (*Fragment, error) {
	f, ok := r.entries[name]
	if !ok {
		return nil, &Error{Msg: "unknown partial", Name: name, Err: ErrUnknownPartial}
	}
	return f, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.entries[name]
	return ok
}

// Delete removes name without disposing its fragment. Fragments that
// referenced name lose their rendered cache. It reports whether name was
// present.
func (r *Registry) Delete(name string) bool {
	f, ok := r.entries[name]
	if !ok {
		return false
	}
	delete(r.entries, name)
	log.Debug(log.CatRegistry, "deleted partial", "name", name, "id", f.id)
	invalidateNames(r, map[string]struct{}{name: {}}, f)
	return true
}

// Clear removes every entry without disposing any fragment. Like Delete,
// it drops the rendered cache of every fragment that references a name, so
// fragments still held by callers re-resolve on their next render.
func (r *Registry) Clear() {
	log.Debug(log.CatRegistry, "cleared registry", "count", len(r.entries))
	for _, f := range r.entries {
		if len(f.names) > 0 {
			f.Invalidate()
		}
	}
	clear(r.entries)
}

// Len returns the number of registered names.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Names returns every registered name, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Entries returns a snapshot of the registry sorted by name. Mutating the
// registry while iterating the snapshot is safe.
func (r *Registry) Entries() []Entry {
	entries := make([]Entry, 0, len(r.entries))
	for name, f := range r.entries {
		entries = append(entries, Entry{Name: name, Fragment: f})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})
	return entries
}

// Aliases returns every name f is registered under, sorted.
func (r *Registry) Aliases(f *Fragment) []string {
	var names []string
	for _, entry := range r.Entries() {
		if entry.Fragment.id == f.id {
			names = append(names, entry.Name)
		}
	}
	return names
}

// validate checks a registration without touching any state.
func validate(name string, f *Fragment) error {
	if !lexer.ValidName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if f == nil {
		return ErrNilFragment
	}
	if f.Disposed() {
		return ErrDisposed
	}
	return nil
}
