// Package partial resolves JSON documents that embed references to other
// JSON fragments.
//
// A reference is written <name> wherever a JSON value is expected. Names are
// dot-separated identifiers, so a flat registry can hold namespaced partials
// such as <layout.header>. Before decoding, each reference is replaced by the
// rendered text of the fragment registered under that name:
//
//	e := partial.New()
//	_ = e.AddPartials(map[string]string{
//		"a": `{"a": true}`,
//		"b": `{"b": <a>}`,
//	})
//	v, _ := e.Parse(`{"c": <b>, "d": <a>}`, nil)
//	// v == map[c:map[b:map[a:true]] d:map[a:true]]
//
// Fragments render lazily and cache their output. Changing a fragment's
// source with SetSource invalidates the cached output of fragments that
// reference it directly; see TransitiveInvalidation for the alternative.
package partial

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"

	"github.com/zjrosen/jsonpartial/internal/lexer"
	"github.com/zjrosen/jsonpartial/internal/log"
)

// Engine is the entry point for registering partials and parsing documents.
type Engine struct {
	partials *Registry
}

// New creates an engine with its own registry configured by opts.
func New(opts ...RegistryOption) *Engine {
	return &Engine{partials: NewRegistry(opts...)}
}

// NewWithRegistry creates an engine over an existing registry.
func NewWithRegistry(r *Registry) *Engine {
	return &Engine{partials: r}
}

// Partials returns the engine's registry.
func (e *Engine) Partials() *Registry {
	return e.partials
}

// StrictMode reports whether unknown references are errors.
func (e *Engine) StrictMode() bool {
	return e.partials.Strict()
}

// SetStrictMode changes the lookup policy for subsequent renders.
func (e *Engine) SetStrictMode(strict bool) {
	e.partials.SetStrict(strict)
}

// Has reports whether name is registered.
func (e *Engine) Has(name string) bool {
	return e.partials.Has(name)
}

// Get looks name up with the registry's current policy.
func (e *Engine) Get(name string) (*Fragment, bool, error) {
	return e.partials.Lookup(name)
}

// Set stores f under name without disposing any previous occupant.
func (e *Engine) Set(name string, f *Fragment) error {
	return e.partials.Set(name, f)
}

// Remove deletes a single partial. It reports whether name was present.
func (e *Engine) Remove(name string) bool {
	return e.partials.Delete(name)
}

// Clear removes every partial.
func (e *Engine) Clear() {
	e.partials.Clear()
}

// AddPartial registers source under name, disposing any fragment that
// previously occupied the name.
func (e *Engine) AddPartial(name, source string) error {
	return e.AddFragment(name, NewFragment(source))
}

// AddFragment registers a ready-made fragment under name as-is, so one
// fragment can be shared by several names. A different fragment previously
// stored under name is disposed first.
func (e *Engine) AddFragment(name string, f *Fragment) error {
	if err := validate(name, f); err != nil {
		return err
	}
	if old, ok := e.partials.entries[name]; ok && old != f {
		old.Dispose()
	}
	return e.partials.Set(name, f)
}

// AddPartials registers every entry of partials in name order. It stops at
// the first failure; entries registered before it stay registered.
func (e *Engine) AddPartials(partials map[string]string) error {
	names := make([]string, 0, len(partials))
	for name := range partials {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := e.AddPartial(name, partials[name]); err != nil {
			return err
		}
	}
	return nil
}

// Parse decodes text, resolving any references against the registry first.
// If reviver is non-nil it is applied to the result bottom-up.
//
// Text without references is decoded directly and syntax errors are returned
// unwrapped. Text with references is rendered through a temporary fragment,
// and failures are returned as *Error.
func (e *Engine) Parse(text string, reviver Reviver) (any, error) {
	var value any
	if lexer.Contains(text) {
		f := NewFragment(text, WithResolver(e.partials))
		v, err := f.Value()
		if err != nil {
			return nil, err
		}
		value = v
	} else {
		if err := json.Unmarshal([]byte(text), &value); err != nil {
			return nil, err
		}
	}

	if reviver == nil {
		return value, nil
	}
	revived, keep := revive("", value, reviver)
	if !keep {
		log.Debug(log.CatRender, "reviver removed the document root")
		return nil, nil
	}
	return revived, nil
}

// FormatOption configures Stringify.
type FormatOption func(*format)

type format struct {
	prefix string
	indent string
}

// WithIndent formats the output like json.MarshalIndent.
func WithIndent(prefix, indent string) FormatOption {
	return func(f *format) {
		f.prefix = prefix
		f.indent = indent
	}
}

// Stringify encodes v as JSON. A *Fragment is encoded as its resolved value.
// HTML characters are not escaped and no trailing newline is written.
func (e *Engine) Stringify(v any, opts ...FormatOption) (string, error) {
	if f, ok := v.(*Fragment); ok {
		value, err := f.Value()
		if err != nil {
			return "", err
		}
		v = value
	}

	var cfg format
	for _, opt := range opts {
		opt(&cfg)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if cfg.prefix != "" || cfg.indent != "" {
		enc.SetIndent(cfg.prefix, cfg.indent)
	}
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
