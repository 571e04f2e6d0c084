// Package tracing wires OpenTelemetry spans around partial loading,
// reloading and rendering.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zjrosen/jsonpartial/internal/log"
)

// ServiceName identifies jsonpartial in exported traces.
const ServiceName = "jsonpartial"

// Exporter names accepted in Config.Exporter.
const (
	ExporterNone   = "none"
	ExporterFile   = "file"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// Config configures the tracing subsystem.
type Config struct {
	// Enabled controls whether spans are recorded. When false a no-op
	// tracer is used.
	Enabled bool `mapstructure:"enabled"`

	// Exporter is one of "none", "file", "stdout" or "otlp".
	Exporter string `mapstructure:"exporter"`

	// FilePath is the JSONL output for the file exporter.
	FilePath string `mapstructure:"file_path"`

	// OTLPEndpoint is the collector address for the otlp exporter.
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`

	// SampleRate is the fraction of root spans sampled, in (0, 1].
	SampleRate float64 `mapstructure:"sample_rate"`
}

// DefaultConfig returns tracing disabled, with file export ready to switch on.
func DefaultConfig() Config {
	return Config{
		Enabled:      false,
		Exporter:     ExporterFile,
		OTLPEndpoint: "localhost:4317",
		SampleRate:   1.0,
	}
}

// Provider owns the tracer provider for the process.
type Provider struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
	enabled  bool
}

// NewProvider builds a provider from cfg. A disabled config yields a no-op
// tracer.
func NewProvider(cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{tracer: noop.NewTracerProvider().Tracer(ServiceName)}, nil
	}

	exporter, err := newExporter(cfg)
	if err != nil {
		return nil, err
	}

	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = 1.0
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", ServiceName))),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRate))),
	}
	if exporter != nil {
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	provider := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(provider)
	log.Debug(log.CatTrace, "tracing enabled", "exporter", cfg.Exporter, "sample_rate", sampleRate)

	return &Provider{
		provider: provider,
		tracer:   provider.Tracer(ServiceName),
		enabled:  true,
	}, nil
}

func newExporter(cfg Config) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case ExporterFile:
		if cfg.FilePath == "" {
			return nil, fmt.Errorf("file_path required for file exporter")
		}
		exporter, err := NewFileExporter(cfg.FilePath)
		if err != nil {
			return nil, fmt.Errorf("create file exporter: %w", err)
		}
		return exporter, nil
	case ExporterStdout:
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("create stdout exporter: %w", err)
		}
		return exporter, nil
	case ExporterOTLP:
		endpoint := cfg.OTLPEndpoint
		if endpoint == "" {
			endpoint = "localhost:4317"
		}
		exporter, err := otlptracegrpc.New(
			context.Background(),
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("create otlp exporter: %w", err)
		}
		return exporter, nil
	case ExporterNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported exporter type: %s", cfg.Exporter)
	}
}

// Tracer returns the tracer for creating spans. It is never nil.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// Enabled reports whether spans are recorded.
func (p *Provider) Enabled() bool {
	return p.enabled
}

// Shutdown flushes pending spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.provider == nil {
		return nil
	}
	return p.provider.Shutdown(ctx)
}
