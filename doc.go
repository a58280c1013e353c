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

// Package calltrace enriches [log/slog] records with call-site metadata.
// At the moment a record is handled it captures the goroutine call stack,
// discards infrastructure frames (runtime internals, slog itself, test
// harnesses, and any namespaces or types the application configures away),
// resolves compiler-generated wrapper functions back to the method the
// developer wrote, and attaches the result as record attributes.
//
// Two output shapes are supported:
//   - Chained: a single "CallStack" attribute whose value joins the
//     relevant frames with " --> ", similar to an exception trace.
//   - Legacy: discrete "MethodName", "TypeName", "FileName", "LineNumber",
//     and "Package" attributes describing one selected frame.
//
// The primary entry point is [NewHandler], which wraps any [slog.Handler]:
//
//	inner := slog.NewJSONHandler(os.Stdout, nil)
//	handler, err := calltrace.NewHandler(inner)
//	if err != nil {
//	    log.Fatalf("create calltrace handler: %v", err)
//	}
//	logger := slog.New(handler)
//	logger.Info("payment accepted") // carries a CallStack attribute
//
// Applications that manage their own pipeline can instead construct an
// [Enricher] and call [Enricher.Enrich] against a record, or
// [Enricher.EnrichSink] against any [PropertySink].
//
// Enrichment never blocks, performs no I/O, and by default never fails the
// log call: any internal error is swallowed (optionally reported through
// [WithErrorCallback]) so the record itself is still emitted. Disable
// suppression with [WithSuppressErrors] to surface failures during
// development.
//
// Behaviour is adjusted with functional options such as [WithLegacyFormat],
// [WithMaxFrames], [WithFrameOffset], [WithSkipPrefixes], [WithSkipTypes],
// and [WithTraceCorrelation]. A handful of environment variables (for
// example CALLTRACE_MODE and CALLTRACE_MAX_FRAMES) provide deploy-time
// overrides so the same binary can run locally and in production without
// code changes.
package calltrace
