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
	"fmt"
	"log/slog"
)

// PropertySink receives enrichment output. Implementations must treat
// writes as "add if absent": a key already present on the target keeps its
// existing value. A sink is allowed to panic; the enricher contains such
// panics under its failure policy.
type PropertySink interface {
	AddIfAbsent(key string, value slog.Value)
}

// recordSink adapts a slog.Record to the PropertySink contract.
type recordSink struct {
	record *slog.Record
}

// AddIfAbsent appends the attribute unless the record already carries one
// with the same key.
func (s recordSink) AddIfAbsent(key string, value slog.Value) {
	absent := true
	s.record.Attrs(func(a slog.Attr) bool {
		if a.Key == key {
			absent = false
			return false
		}
		return true
	})
	if absent {
		s.record.AddAttrs(slog.Attr{Key: key, Value: value})
	}
}

// Enricher is the synchronous enrichment entry point: capture the stack,
// select relevant frames, format them, and write the result to a sink.
// An Enricher is immutable after construction and safe for concurrent use.
type Enricher struct {
	cfg   Config
	cache *InfoCache
	pool  *BufferPool
}

// NewEnricher resolves options (over environment fallbacks) into an
// Enricher. Construction-time misuse, such as an explicitly nil error
// callback, is reported here rather than deferred to enrichment time.
func NewEnricher(opts ...Option) (*Enricher, error) {
	cfg, cache, pool, err := resolveConfig(opts)
	if err != nil {
		return nil, err
	}
	return &Enricher{cfg: cfg, cache: cache, pool: pool}, nil
}

// Config returns a copy of the resolved configuration.
func (e *Enricher) Config() Config { return e.cfg }

// Cache returns the resolution cache this enricher consults, for
// descriptor registration and lifecycle control.
func (e *Enricher) Cache() *InfoCache { return e.cache }

// Enrich attaches call-site attributes to the record. Under the default
// suppression policy it never returns a non-nil error for runtime
// failures; the record is simply left without (or with partial) call-site
// data. With suppression disabled the failure is returned to the caller.
func (e *Enricher) Enrich(ctx context.Context, record *slog.Record) error {
	if record == nil {
		return ErrNilRecord
	}
	return e.enrich(ctx, recordSink{record: record})
}

// EnrichSink is Enrich for arbitrary property sinks.
func (e *Enricher) EnrichSink(ctx context.Context, sink PropertySink) error {
	if sink == nil {
		return ErrNilSink
	}
	return e.enrich(ctx, sink)
}

// enrich runs the capture -> select -> format -> write pipeline inside
// the single failure boundary. Capture starts at this function; the
// name-based filter removes the enricher's own frames, which is robust
// against inlining in a way that skip counting is not.
func (e *Enricher) enrich(ctx context.Context, sink PropertySink) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = e.fail(panicError(r))
		}
	}()

	frames := captureFrames(0, e.cfg.CaptureDepth)
	if len(frames) == 0 {
		return nil
	}

	if e.cfg.ChainedFormat {
		chain := formatChain(selectFrames(frames, &e.cfg, e.cache), &e.cfg, e.cache, e.pool)
		if chain != "" {
			sink.AddIfAbsent(e.cfg.ChainKey, slog.StringValue(chain))
		}
	} else if frame, ok := selectSingleFrame(frames, &e.cfg, e.cache); ok {
		for _, attr := range formatLegacyFields(frame, &e.cfg, e.cache) {
			sink.AddIfAbsent(attr.Key, attr.Value)
		}
	}

	if e.cfg.TraceCorrelation {
		if attrs, ok := TraceAttributes(ctx); ok {
			for _, attr := range attrs {
				sink.AddIfAbsent(attr.Key, attr.Value)
			}
		}
	}
	return nil
}

// fail applies the configured failure policy to one runtime error.
func (e *Enricher) fail(cause error) error {
	notifyErrorCallback(e.cfg.OnError, cause)
	if e.cfg.SuppressErrors {
		return nil
	}
	return cause
}

// notifyErrorCallback invokes the user callback outside any internal
// lock. A panicking callback is contained unconditionally so a faulty
// diagnostic hook cannot destabilize the logging pipeline.
func notifyErrorCallback(fn func(error), cause error) {
	if fn == nil {
		return
	}
	defer func() {
		_ = recover()
	}()
	fn(cause)
}

// panicError converts a recovered value into an error, preserving error
// causes for errors.Is/As inspection.
func panicError(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("calltrace: enrichment failed: %w", err)
	}
	return fmt.Errorf("calltrace: enrichment failed: %v", r)
}
