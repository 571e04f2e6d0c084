package partial

import (
	"encoding/json"
	"errors"
	"sort"

	"github.com/google/uuid"

	"github.com/zjrosen/jsonpartial/internal/lexer"
	"github.com/zjrosen/jsonpartial/internal/log"
)

// Resolver supplies the fragments a Fragment's references point at.
// *Registry is the production implementation.
type Resolver interface {
	// Lookup returns the fragment stored under name. ok is false when the
	// name is absent and absence is tolerated; err is set when it is not.
	Lookup(name string) (f *Fragment, ok bool, err error)
	// Entries returns a snapshot of every name -> fragment pair.
	Entries() []Entry
}

// state is the position of a Fragment in its build pipeline.
type state int

const (
	stateUnparsed state = iota // references not yet extracted
	stateParsed                // references known, nothing rendered
	stateRendered              // text and value cached
	stateDisposed              // terminal
)

// Fragment is a unit of JSON source that may reference other fragments.
// References are extracted and rendered lazily; the rendered text and the
// decoded value are cached until the source, or a direct dependency, changes.
//
// A Fragment is not safe for concurrent use.
type Fragment struct {
	id       uuid.UUID
	origin   string
	source   string
	state    state
	refs     []lexer.Reference
	names    map[string]struct{}
	text     string
	value    any
	resolver Resolver

	rendering bool
}

// FragmentOption configures a Fragment.
type FragmentOption func(*Fragment)

// WithOrigin records where the fragment's source came from, e.g. a file
// path. It is reported in errors.
func WithOrigin(origin string) FragmentOption {
	return func(f *Fragment) {
		f.origin = origin
	}
}

// WithResolver binds the fragment to a resolver up front. Fragments that are
// registered are bound to their registry automatically.
func WithResolver(r Resolver) FragmentOption {
	return func(f *Fragment) {
		f.resolver = r
	}
}

// NewFragment creates an unparsed fragment over source.
func NewFragment(source string, opts ...FragmentOption) *Fragment {
	f := &Fragment{
		id:     uuid.New(),
		source: source,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ID returns the fragment's identity. Two fragments with equal sources still
// have different IDs.
func (f *Fragment) ID() uuid.UUID {
	return f.id
}

// Origin returns the origin label given at construction.
func (f *Fragment) Origin() string {
	return f.origin
}

// Source returns the raw, unresolved text. It is empty once disposed.
func (f *Fragment) Source() string {
	return f.source
}

// Parsed reports whether references have been extracted from the source.
func (f *Fragment) Parsed() bool {
	return f.state == stateParsed || f.state == stateRendered
}

// Rendered reports whether the text and value caches are current.
func (f *Fragment) Rendered() bool {
	return f.state == stateRendered
}

// Disposed reports whether Dispose has been called.
func (f *Fragment) Disposed() bool {
	return f.state == stateDisposed
}

// References returns the reference tokens in the source, in source order.
func (f *Fragment) References() []lexer.Reference {
	if f.state == stateDisposed {
		return nil
	}
	f.parse()
	refs := make([]lexer.Reference, len(f.refs))
	copy(refs, f.refs)
	return refs
}

// ReferencedNames returns the distinct names referenced by the source, sorted.
func (f *Fragment) ReferencedNames() []string {
	if f.state == stateDisposed {
		return nil
	}
	f.parse()
	names := make([]string, 0, len(f.names))
	for name := range f.names {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// dependsOn reports whether the fragment references any of names.
func (f *Fragment) dependsOn(names map[string]struct{}) bool {
	for name := range f.names {
		if _, ok := names[name]; ok {
			return true
		}
	}
	return false
}

// Value returns the decoded JSON value, building it on first use.
// The returned value is shared with the cache and must not be modified.
func (f *Fragment) Value() (any, error) {
	if err := f.build(); err != nil {
		return nil, err
	}
	return f.value, nil
}

// Text returns the source with every reference replaced by the referenced
// fragment's rendered text.
func (f *Fragment) Text() (string, error) {
	if err := f.build(); err != nil {
		return "", err
	}
	return f.text, nil
}

// MarshalJSON renders the fragment, so a *Fragment can be embedded in values
// passed to encoding/json.
func (f *Fragment) MarshalJSON() ([]byte, error) {
	text, err := f.Text()
	if err != nil {
		return nil, err
	}
	return []byte(text), nil
}

// SetSource replaces the raw source. Replacing with identical text does
// nothing. Otherwise fragments that directly reference any name this
// fragment is registered under lose their rendered cache, and this fragment
// goes back to unparsed.
func (f *Fragment) SetSource(source string) error {
	if f.state == stateDisposed {
		return ErrDisposed
	}
	if source == f.source {
		return nil
	}

	if f.resolver != nil {
		invalidateFragment(f.resolver, f)
	}
	f.source = source
	f.state = stateUnparsed
	f.refs = nil
	f.names = nil
	f.clearRender()
	return nil
}

// Invalidate drops the rendered cache. References stay parsed.
func (f *Fragment) Invalidate() {
	if f.state == stateRendered {
		f.state = stateParsed
		f.clearRender()
	}
}

// Dispose clears every cached field. A disposed fragment returns
// ErrDisposed from all further queries and cannot be revived.
func (f *Fragment) Dispose() {
	if f.state == stateDisposed {
		return
	}
	f.source = ""
	f.refs = nil
	f.names = nil
	f.clearRender()
	f.state = stateDisposed
	log.Debug(log.CatRender, "disposed fragment", "id", f.id, "origin", f.origin)
}

// bind attaches the fragment to r unless it is already bound.
func (f *Fragment) bind(r Resolver) {
	if f.resolver == nil {
		f.resolver = r
	}
}

func (f *Fragment) clearRender() {
	f.text = ""
	f.value = nil
}

func (f *Fragment) build() error {
	switch f.state {
	case stateDisposed:
		return ErrDisposed
	case stateRendered:
		return nil
	}
	f.parse()
	return f.render()
}

// parse records reference spans and names. It runs once per source.
func (f *Fragment) parse() {
	if f.state != stateUnparsed {
		return
	}
	f.refs = lexer.Scan(f.source)
	f.names = make(map[string]struct{}, len(f.refs))
	for _, ref := range f.refs {
		f.names[ref.Name] = struct{}{}
	}
	f.state = stateParsed
	log.Debug(log.CatLexer, "parsed fragment", "id", f.id, "origin", f.origin, "references", len(f.refs))
}

func (f *Fragment) render() error {
	f.rendering = true
	defer func() { f.rendering = false }()

	// Splice from the last reference backwards so earlier offsets stay valid.
	text := f.source
	for i := len(f.refs) - 1; i >= 0; i-- {
		ref := f.refs[i]
		replacement, err := f.resolve(ref.Name)
		if err != nil {
			return err
		}
		text = text[:ref.Start] + replacement + text[ref.End:]
	}

	var value any
	if err := json.Unmarshal([]byte(text), &value); err != nil {
		log.Debug(log.CatRender, "rendered text is not valid JSON", "id", f.id, "origin", f.origin, "error", err)
		return newDecodeError(f.origin, text, err)
	}

	f.text = text
	f.value = value
	f.state = stateRendered
	log.Debug(log.CatRender, "rendered fragment", "id", f.id, "origin", f.origin, "bytes", len(text))
	return nil
}

// resolve returns the rendered text to splice in place of a reference.
func (f *Fragment) resolve(name string) (string, error) {
	if f.resolver == nil {
		return "", f.annotate(&Error{Msg: "unknown partial", Name: name, Err: ErrUnknownPartial})
	}

	dep, ok, err := f.resolver.Lookup(name)
	if err != nil {
		return "", f.annotate(err)
	}
	if !ok {
		log.Debug(log.CatRender, "substituting null for absent partial", "name", name)
		return "null", nil
	}
	if dep.rendering {
		return "", f.annotate(&Error{Msg: "reference cycle through partial", Name: name, Err: ErrCycle})
	}

	if dep.Disposed() {
		return "", f.annotate(&Error{Msg: "disposed partial", Name: name, Err: ErrDisposed})
	}
	return dep.Text()
}

// annotate fills in the source and origin of a partial error that was
// raised on this fragment's behalf.
func (f *Fragment) annotate(err error) error {
	var pe *Error
	if errors.As(err, &pe) && pe.Source == "" {
		pe.Source = f.source
		if pe.Origin == "" {
			pe.Origin = f.origin
		}
	}
	return err
}
