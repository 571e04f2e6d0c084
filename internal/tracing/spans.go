package tracing

import (
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span names.
const (
	SpanLoadDir      = "loader.load_dir"
	SpanLoadManifest = "loader.load_manifest"
	SpanSync         = "loader.sync"
	SpanRender       = "render.document"
)

// Span attribute keys.
const (
	AttrPath     = "partial.path"
	AttrCount    = "partial.count"
	AttrAdded    = "sync.added"
	AttrUpdated  = "sync.updated"
	AttrRemoved  = "sync.removed"
	AttrBytes    = "render.bytes"
	AttrStrict   = "render.strict"
)

// Fail marks span as failed with err. A nil err leaves the span untouched.
func Fail(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
