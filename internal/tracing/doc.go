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

/*
Package tracing installs the OpenTelemetry tracer provider used by the CGI
gateway and the engine supervisor.

Setup reads the tracing section of the configuration file:

	tracing:
	  enabled: true
	  exporter: otlp        # stdout, otlp (gRPC) or otlp-http
	  endpoint: collector:4317
	  sample_rate: 0.25

When tracing is disabled the global no-op provider stays in place and the
spans started by the gateway and supervisor cost nothing.

Sampling is deterministic per trace: NewSampler hashes the trace ID, so every
span in a trace shares one decision.

HTTPMiddleware extracts W3C trace context from incoming requests, letting a
reverse proxy in front of the gateway stitch CGI spans into its own traces.
*/
package tracing
