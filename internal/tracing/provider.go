// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tracing

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/tombee/xunlei/internal/config"
	"github.com/tombee/xunlei/internal/tracing/export"
)

// Provider owns the SDK tracer provider. A disabled Provider is valid and
// its Shutdown does nothing; the global no-op provider stays installed.
type Provider struct {
	tp *sdktrace.TracerProvider
}

// Options tune Setup beyond what the config file carries.
type Options struct {
	// Version is reported as service.version.
	Version string

	// Console receives spans for the stdout exporter; nil means stderr.
	Console io.Writer
}

// Setup builds the exporter named by cfg.Exporter and installs a tracer
// provider as the global one.
func Setup(ctx context.Context, cfg config.TracingConfig, opts Options) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{}, nil
	}

	exporter, err := newExporter(ctx, cfg, opts)
	if err != nil {
		return nil, err
	}

	// Empty schema URL so the merge with the default resource cannot conflict.
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(opts.Version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(NewSampler(cfg.SampleRate)),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(W3CPropagator())

	return &Provider{tp: tp}, nil
}

func newExporter(ctx context.Context, cfg config.TracingConfig, opts Options) (sdktrace.SpanExporter, error) {
	otlp := export.OTLPConfig{
		Endpoint: cfg.Endpoint,
		Insecure: cfg.Insecure,
		Headers:  cfg.Headers,
	}

	switch cfg.Exporter {
	case "", "stdout":
		return export.NewConsoleExporter(export.ConsoleConfig{Writer: opts.Console})
	case "otlp":
		return export.NewOTLPExporter(ctx, otlp)
	case "otlp-http":
		return export.NewOTLPHTTPExporter(ctx, otlp)
	default:
		return nil, fmt.Errorf("unknown trace exporter %q", cfg.Exporter)
	}
}

// Enabled reports whether spans are being exported.
func (p *Provider) Enabled() bool {
	return p.tp != nil
}

// ForceFlush exports all pending spans.
func (p *Provider) ForceFlush(ctx context.Context) error {
	if p.tp == nil {
		return nil
	}
	return p.tp.ForceFlush(ctx)
}

// Shutdown flushes pending spans and stops the exporter.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}
