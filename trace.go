// Copyright 2025 The calltrace Authors
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

package calltrace

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for OpenTelemetry trace correlation. Emitted alongside
// call-site attributes when WithTraceCorrelation is enabled, so log
// records can be joined with distributed traces.
const (
	// TraceIDKey carries the 32-char lowercase hex trace ID.
	TraceIDKey = "otel.trace_id"
	// SpanIDKey carries the 16-char lowercase hex span ID.
	SpanIDKey = "otel.span_id"
	// TraceSampledKey carries the sampling decision.
	TraceSampledKey = "otel.trace_sampled"
)

// TraceAttributes extracts OpenTelemetry span context from ctx as slog
// attributes. It is intentionally light-weight: it creates no spans,
// parses no headers, and never mutates the context. Upstream middleware
// is expected to have populated the span context via its propagators.
//
// The second return is false when ctx carries no valid span context.
func TraceAttributes(ctx context.Context) ([]slog.Attr, bool) {
	if ctx == nil {
		return nil, false
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return nil, false
	}

	attrs := make([]slog.Attr, 0, 3)
	attrs = append(attrs, slog.String(TraceIDKey, sc.TraceID().String()))
	if sc.HasSpanID() {
		attrs = append(attrs, slog.String(SpanIDKey, sc.SpanID().String()))
	}
	attrs = append(attrs, slog.Bool(TraceSampledKey, sc.IsSampled()))
	return attrs, true
}
