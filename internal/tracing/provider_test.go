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
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/tombee/xunlei/internal/config"
)

func restoreGlobalProvider(t *testing.T) {
	t.Helper()
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
}

func TestSetup_Disabled(t *testing.T) {
	p, err := Setup(context.Background(), config.TracingConfig{Enabled: false}, Options{})
	require.NoError(t, err)

	assert.False(t, p.Enabled())
	assert.NoError(t, p.ForceFlush(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestSetup_ConsoleExporter(t *testing.T) {
	restoreGlobalProvider(t)

	var buf bytes.Buffer
	p, err := Setup(context.Background(), config.TracingConfig{
		Enabled:     true,
		ServiceName: "xunlei-test",
		Exporter:    "stdout",
		SampleRate:  1,
	}, Options{Version: "1.2.3", Console: &buf})
	require.NoError(t, err)
	require.True(t, p.Enabled())

	_, span := otel.Tracer("test").Start(context.Background(), "cgi.dispatch")
	span.End()

	require.NoError(t, p.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), `"Name":"cgi.dispatch"`)
	assert.Contains(t, buf.String(), "xunlei-test")
}

func TestSetup_UnknownExporter(t *testing.T) {
	_, err := Setup(context.Background(), config.TracingConfig{
		Enabled:  true,
		Exporter: "zipkin",
	}, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zipkin")
}

func TestSetup_OTLPExportersConstructLazily(t *testing.T) {
	for _, exporter := range []string{"otlp", "otlp-http"} {
		t.Run(exporter, func(t *testing.T) {
			restoreGlobalProvider(t)

			// Exporters connect on first export, so construction succeeds
			// without a collector.
			p, err := Setup(context.Background(), config.TracingConfig{
				Enabled:     true,
				ServiceName: "xunlei",
				Exporter:    exporter,
				Endpoint:    "127.0.0.1:4317",
				Insecure:    true,
				SampleRate:  0.5,
			}, Options{})
			require.NoError(t, err)
			assert.True(t, p.Enabled())

			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_ = p.Shutdown(ctx)
		})
	}
}

func TestNewSampler(t *testing.T) {
	assert.Contains(t, NewSampler(1).Description(), "AlwaysOnSampler")
	assert.Contains(t, NewSampler(0).Description(), "AlwaysOffSampler")
	assert.Contains(t, NewSampler(0.25).Description(), "TraceIDRatioBased{0.25}")
}
