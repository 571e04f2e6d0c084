// Package loader registers partials from files on disk and keeps them in
// sync as the files change.
//
// A directory of *.json files maps to dotted names by relative path, so
// layout/header.json becomes the partial <layout.header>. A YAML manifest
// maps names to JSON text directly.
package loader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"gopkg.in/yaml.v3"

	"github.com/zjrosen/jsonpartial/internal/cachemanager"
	"github.com/zjrosen/jsonpartial/internal/lexer"
	"github.com/zjrosen/jsonpartial/internal/log"
	"github.com/zjrosen/jsonpartial/internal/partial"
	"github.com/zjrosen/jsonpartial/internal/pubsub"
	"github.com/zjrosen/jsonpartial/internal/tracing"
)

// ErrDuplicateName is returned when two sources define the same partial.
var ErrDuplicateName = errors.New("partial defined more than once")

// fileKey identifies one version of a file: path, mtime and size.
type fileKey string

// source is a partial definition read from disk.
type source struct {
	from   string // directory or manifest that defined it
	origin string // reported in partial errors
	text   string
}

// SyncResult lists the partial names changed by Sync, each sorted.
type SyncResult struct {
	Added   []string
	Updated []string
	Removed []string
}

// Change is the payload of the events a Loader publishes.
type Change struct {
	Name   string
	Origin string
}

// Changed reports whether anything was added, updated or removed.
func (r SyncResult) Changed() bool {
	return len(r.Added)+len(r.Updated)+len(r.Removed) > 0
}

// Loader owns the partials it registers into an engine. It is not safe
// for concurrent use.
type Loader struct {
	engine    *partial.Engine
	cache     *cachemanager.InMemoryCacheManager[fileKey, string]
	files     *cachemanager.ReadThroughCache[fileKey, string, string]
	tracer    trace.Tracer
	events    pubsub.Publisher[Change]
	cacheTTL  time.Duration
	dirs      []string
	manifests []string
	owned     map[string]string // partial name -> from
}

// Option configures a Loader.
type Option func(*Loader)

// WithTracer records load and sync spans on t.
func WithTracer(t trace.Tracer) Option {
	return func(l *Loader) {
		l.tracer = t
	}
}

// WithEvents publishes an event for every partial the loader adds,
// updates or removes.
func WithEvents(p pubsub.Publisher[Change]) Option {
	return func(l *Loader) {
		l.events = p
	}
}

// WithCacheTTL sets how long file contents stay cached. Zero keeps them
// until the process exits.
func WithCacheTTL(ttl time.Duration) Option {
	return func(l *Loader) {
		l.cacheTTL = ttl
	}
}

// New creates a loader that registers into engine.
func New(engine *partial.Engine, opts ...Option) *Loader {
	l := &Loader{
		engine:   engine,
		tracer:   noop.NewTracerProvider().Tracer(tracing.ServiceName),
		cacheTTL: cachemanager.DefaultExpiration,
		owned:    make(map[string]string),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.cache = cachemanager.NewInMemoryCacheManager[fileKey, string]("partial-files", l.cacheTTL, cachemanager.DefaultCleanupInterval)
	l.files = cachemanager.NewReadThroughCache[fileKey, string, string](l.cache, readFile, l.cacheTTL, false)
	return l
}

func readFile(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- paths come from the configured partial sources
	if err != nil {
		return "", err
	}
	log.Debug(log.CatLoader, "read partial file", "path", path, "bytes", len(data))
	return string(data), nil
}

// Sources returns the directories and manifests loaded so far.
func (l *Loader) Sources() (dirs, manifests []string) {
	return append([]string(nil), l.dirs...), append([]string(nil), l.manifests...)
}

// Load registers every *.json file under dir and remembers dir for Sync.
// Files whose derived name is not a valid partial name are skipped. It
// returns the number of partials found.
func (l *Loader) Load(ctx context.Context, dir string) (int, error) {
	ctx, span := l.tracer.Start(ctx, tracing.SpanLoadDir, trace.WithAttributes(attribute.String(tracing.AttrPath, dir)))
	defer span.End()

	sources, err := l.scanDir(ctx, dir)
	if err == nil {
		err = l.register(sources)
	}
	if err != nil {
		tracing.Fail(span, err)
		return 0, err
	}

	l.dirs = appendUnique(l.dirs, dir)
	span.SetAttributes(attribute.Int(tracing.AttrCount, len(sources)))
	log.Info(log.CatLoader, "loaded partial directory", "dir", dir, "count", len(sources))
	return len(sources), nil
}

// LoadManifest registers every entry of the YAML manifest at path and
// remembers it for Sync. Values are either JSON text or YAML structures,
// which are converted to JSON.
func (l *Loader) LoadManifest(ctx context.Context, path string) (int, error) {
	ctx, span := l.tracer.Start(ctx, tracing.SpanLoadManifest, trace.WithAttributes(attribute.String(tracing.AttrPath, path)))
	defer span.End()

	sources, err := l.scanManifest(ctx, path)
	if err == nil {
		err = l.register(sources)
	}
	if err != nil {
		tracing.Fail(span, err)
		return 0, err
	}

	l.manifests = appendUnique(l.manifests, path)
	span.SetAttributes(attribute.Int(tracing.AttrCount, len(sources)))
	log.Info(log.CatLoader, "loaded partial manifest", "path", path, "count", len(sources))
	return len(sources), nil
}

// Sync re-reads every loaded directory and manifest. Changed partials get
// their new source through Fragment.SetSource so dependents re-render,
// new ones are registered, and partials whose file or entry is gone are
// removed and disposed. Nothing is changed when any source fails to read.
func (l *Loader) Sync(ctx context.Context) (SyncResult, error) {
	ctx, span := l.tracer.Start(ctx, tracing.SpanSync)
	defer span.End()

	var result SyncResult
	desired, err := l.collect(ctx)
	if err != nil {
		tracing.Fail(span, err)
		return result, err
	}

	for _, name := range sortedKeys(desired) {
		added, updated, err := l.apply(name, desired[name])
		if err != nil {
			tracing.Fail(span, err)
			return result, err
		}
		switch {
		case added:
			result.Added = append(result.Added, name)
		case updated:
			result.Updated = append(result.Updated, name)
		}
	}

	for _, name := range sortedKeys(l.owned) {
		if _, ok := desired[name]; ok {
			continue
		}
		l.remove(name)
		result.Removed = append(result.Removed, name)
	}

	span.SetAttributes(
		attribute.Int(tracing.AttrAdded, len(result.Added)),
		attribute.Int(tracing.AttrUpdated, len(result.Updated)),
		attribute.Int(tracing.AttrRemoved, len(result.Removed)),
	)
	if result.Changed() {
		log.Info(log.CatLoader, "synced partials",
			"added", len(result.Added), "updated", len(result.Updated), "removed", len(result.Removed))
	}
	return result, nil
}

// collect reads every known source and merges them by name.
func (l *Loader) collect(ctx context.Context) (map[string]source, error) {
	desired := make(map[string]source)
	merge := func(sources map[string]source) error {
		for name, src := range sources {
			if prev, ok := desired[name]; ok {
				return fmt.Errorf("%w: %s in %s and %s", ErrDuplicateName, name, prev.from, src.from)
			}
			desired[name] = src
		}
		return nil
	}

	for _, dir := range l.dirs {
		sources, err := l.scanDir(ctx, dir)
		if err != nil {
			return nil, err
		}
		if err := merge(sources); err != nil {
			return nil, err
		}
	}
	for _, path := range l.manifests {
		sources, err := l.scanManifest(ctx, path)
		if err != nil {
			return nil, err
		}
		if err := merge(sources); err != nil {
			return nil, err
		}
	}
	return desired, nil
}

// register adds or updates sources after checking none of them collides
// with a partial another source already owns.
func (l *Loader) register(sources map[string]source) error {
	names := sortedKeys(sources)
	for _, name := range names {
		if from, ok := l.owned[name]; ok && from != sources[name].from {
			return fmt.Errorf("%w: %s in %s and %s", ErrDuplicateName, name, from, sources[name].from)
		}
	}
	for _, name := range names {
		if _, _, err := l.apply(name, sources[name]); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader) apply(name string, src source) (added, updated bool, err error) {
	if _, ok := l.owned[name]; ok {
		if f, err := l.engine.Partials().Get(name); err == nil && !f.Disposed() {
			if f.Source() == src.text {
				return false, false, nil
			}
			if err := f.SetSource(src.text); err != nil {
				return false, false, fmt.Errorf("update partial %s: %w", name, err)
			}
			log.Debug(log.CatLoader, "updated partial", "name", name, "origin", src.origin)
			l.publish(pubsub.UpdatedEvent, name, src.origin)
			return false, true, nil
		}
	}

	f := partial.NewFragment(src.text, partial.WithOrigin(src.origin))
	if err := l.engine.AddFragment(name, f); err != nil {
		return false, false, fmt.Errorf("register partial %s: %w", name, err)
	}
	l.owned[name] = src.from
	log.Debug(log.CatLoader, "registered partial", "name", name, "origin", src.origin)
	l.publish(pubsub.AddedEvent, name, src.origin)
	return true, false, nil
}

func (l *Loader) remove(name string) {
	var origin string
	f, err := l.engine.Partials().Get(name)
	l.engine.Remove(name)
	if err == nil {
		origin = f.Origin()
		f.Dispose()
	}
	delete(l.owned, name)
	log.Debug(log.CatLoader, "removed partial", "name", name)
	l.publish(pubsub.RemovedEvent, name, origin)
}

func (l *Loader) publish(eventType pubsub.EventType, name, origin string) {
	if l.events != nil {
		l.events.Publish(eventType, Change{Name: name, Origin: origin})
	}
}

// scanDir reads every *.json file under dir.
func (l *Loader) scanDir(ctx context.Context, dir string) (map[string]source, error) {
	sources := make(map[string]source)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		name := NameForPath(rel)
		if !lexer.ValidName(name) {
			log.Warn(log.CatLoader, "skipping file with invalid partial name", "path", path, "name", name)
			return nil
		}

		text, err := l.read(ctx, path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		sources[name] = source{from: dir, origin: path, text: text}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan partial directory %s: %w", dir, err)
	}
	return sources, nil
}

// scanManifest reads a YAML mapping of partial name -> JSON.
func (l *Loader) scanManifest(ctx context.Context, path string) (map[string]source, error) {
	text, err := l.read(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}

	var entries map[string]yaml.Node
	if err := yaml.Unmarshal([]byte(text), &entries); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}

	sources := make(map[string]source, len(entries))
	for name, node := range entries {
		if !lexer.ValidName(name) {
			return nil, fmt.Errorf("manifest %s: %w: %q", path, partial.ErrInvalidName, name)
		}
		value, err := manifestValue(&node)
		if err != nil {
			return nil, fmt.Errorf("manifest %s entry %s: %w", path, name, err)
		}
		sources[name] = source{from: path, origin: path + "#" + name, text: value}
	}
	return sources, nil
}

// manifestValue returns a string scalar as-is, taken to be JSON text, and
// encodes any other node as JSON.
func manifestValue(node *yaml.Node) (string, error) {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!str" {
		return node.Value, nil
	}
	var v any
	if err := node.Decode(&v); err != nil {
		return "", err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// read returns the contents of path, served from cache while the file's
// mtime and size are unchanged.
func (l *Loader) read(ctx context.Context, path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	key := fileKey(fmt.Sprintf("%s|%d|%d", path, info.ModTime().UnixNano(), info.Size()))
	return l.files.Get(ctx, key, path)
}

// NameForPath derives a partial name from a slash or OS separated path
// relative to a partial directory: layout/header.json -> layout.header.
func NameForPath(rel string) string {
	rel = filepath.ToSlash(rel)
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))
	return strings.ReplaceAll(rel, "/", ".")
}

func appendUnique(list []string, s string) []string {
	for _, existing := range list {
		if existing == s {
			return list
		}
	}
	return append(list, s)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
