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
)

// Handler wraps another slog.Handler and enriches each record with
// call-site attributes before delegating. Level gating, formatting, and
// output remain entirely the inner handler's concern.
type Handler struct {
	inner    slog.Handler
	enricher *Enricher
}

var _ slog.Handler = (*Handler)(nil)

// NewHandler wraps inner with call-site enrichment. A nil inner handler
// is a wiring mistake and fails immediately.
func NewHandler(inner slog.Handler, opts ...Option) (*Handler, error) {
	if inner == nil {
		return nil, ErrNilInner
	}
	enricher, err := NewEnricher(opts...)
	if err != nil {
		return nil, err
	}
	return &Handler{inner: inner, enricher: enricher}, nil
}

// Enricher returns the underlying enricher, for descriptor registration
// and cache lifecycle control.
func (h *Handler) Enricher() *Enricher { return h.enricher }

// Enabled delegates to the wrapped handler.
func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle enriches the record when it meets the configured minimum level,
// then delegates. With error suppression disabled an enrichment failure
// is returned without invoking the inner handler; in the default
// configuration the record always reaches the inner handler.
func (h *Handler) Handle(ctx context.Context, record slog.Record) error {
	if record.Level >= h.enricher.cfg.MinLevel {
		if err := h.enricher.Enrich(ctx, &record); err != nil {
			return err
		}
	}
	return h.inner.Handle(ctx, record)
}

// WithAttrs re-wraps the inner handler's derived handler, sharing the
// enricher.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{inner: h.inner.WithAttrs(attrs), enricher: h.enricher}
}

// WithGroup re-wraps the inner handler's derived handler, sharing the
// enricher.
func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{inner: h.inner.WithGroup(name), enricher: h.enricher}
}
