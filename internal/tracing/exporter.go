package tracing

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// FileExporter appends spans to a JSONL file, one record per line.
type FileExporter struct {
	file *os.File
	mu   sync.Mutex
}

// NewFileExporter opens path for appending, creating parent directories.
func NewFileExporter(path string) (*FileExporter, error) {
	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0750); err != nil {
		return nil, fmt.Errorf("create trace directory: %w", err)
	}

	file, err := os.OpenFile(cleanPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600) // #nosec G304 -- path is cleaned above
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	return &FileExporter{file: file}, nil
}

// ExportSpans implements sdktrace.SpanExporter.
func (e *FileExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	if len(spans) == 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.file == nil {
		return fmt.Errorf("trace file closed")
	}
	encoder := json.NewEncoder(e.file)
	for _, span := range spans {
		if err := encoder.Encode(newSpanRecord(span)); err != nil {
			return fmt.Errorf("encode span: %w", err)
		}
	}
	return nil
}

// Shutdown closes the file. It is safe to call more than once.
func (e *FileExporter) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.file == nil {
		return nil
	}
	err := e.file.Close()
	e.file = nil
	return err
}

// SpanRecord is one line of the trace file.
type SpanRecord struct {
	TraceID      string         `json:"trace_id"`
	SpanID       string         `json:"span_id"`
	ParentSpanID string         `json:"parent_span_id,omitempty"`
	Name         string         `json:"name"`
	StartTime    string         `json:"start_time"`
	DurationMs   float64        `json:"duration_ms"`
	Status       string         `json:"status"`
	StatusMsg    string         `json:"status_message,omitempty"`
	Attributes   map[string]any `json:"attributes,omitempty"`
	Events       []string       `json:"events,omitempty"`
}

func newSpanRecord(span sdktrace.ReadOnlySpan) SpanRecord {
	record := SpanRecord{
		TraceID:    span.SpanContext().TraceID().String(),
		SpanID:     span.SpanContext().SpanID().String(),
		Name:       span.Name(),
		StartTime:  span.StartTime().Format(time.RFC3339Nano),
		DurationMs: float64(span.EndTime().Sub(span.StartTime()).Microseconds()) / 1000.0,
		Status:     "UNSET",
		StatusMsg:  span.Status().Description,
	}
	if span.Parent().IsValid() {
		record.ParentSpanID = span.Parent().SpanID().String()
	}
	switch span.Status().Code {
	case codes.Ok:
		record.Status = "OK"
	case codes.Error:
		record.Status = "ERROR"
	}
	if attrs := span.Attributes(); len(attrs) > 0 {
		record.Attributes = make(map[string]any, len(attrs))
		for _, kv := range attrs {
			record.Attributes[string(kv.Key)] = kv.Value.AsInterface()
		}
	}
	for _, evt := range span.Events() {
		record.Events = append(record.Events, evt.Name)
	}
	return record
}
