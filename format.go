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
	"bytes"
	"log/slog"
	"path/filepath"
	"runtime"
	"strconv"
)

// formatChain renders the selected frames as one exception-trace-like
// string, joining non-empty segments with " --> ". Generated thunk frames
// that mark no async boundary are dropped so only meaningful frames
// remain. Returns "" when nothing renders.
func formatChain(frames []runtime.Frame, cfg *Config, cache *InfoCache, pool *BufferPool) string {
	if len(frames) == 0 {
		return ""
	}

	sb := pool.Get()
	defer pool.Put(sb)
	sb.Grow(len(frames) * 48)

	wrote := false
	for _, frame := range frames {
		info := cache.Get(frame)
		if !info.Valid {
			continue
		}
		sm := resolveAsyncMethodInfo(info)
		if sm.IsStateMachine && !sm.IsAsync {
			continue
		}
		if wrote {
			sb.WriteString(chainSeparator)
		}
		writeSegment(sb, frame, info, sm, cfg, cache)
		wrote = true
	}

	return sb.String()
}

// writeSegment appends one "[Type.]Method[(params)][:line]" rendering.
func writeSegment(sb *bytes.Buffer, frame runtime.Frame, info MethodInfo, sm AsyncMethodInfo, cfg *Config, cache *InfoCache) {
	if cfg.IncludeTypeName && sm.TypeName != "" {
		sb.WriteString(displayTypeName(sm.TypeName, cfg, cache))
		sb.WriteByte('.')
	}
	sb.WriteString(sm.Method)
	if cfg.IncludeParameters {
		writeParams(sb, info.Params, cfg)
	}
	if cfg.IncludeLineNumber && frame.Line > 0 {
		sb.WriteByte(':')
		var intBuf [20]byte
		sb.Write(strconv.AppendInt(intBuf[:0], int64(frame.Line), 10))
	}
}

// writeParams appends a parenthesized, comma-joined parameter type list.
// Methods with no registered descriptor render "()".
func writeParams(sb *bytes.Buffer, params []string, cfg *Config) {
	sb.WriteByte('(')
	for i, p := range params {
		if i > 0 {
			sb.WriteString(", ")
		}
		if cfg.UseFullTypeNames {
			sb.WriteString(p)
		} else {
			sb.WriteString(shortName(p))
		}
	}
	sb.WriteByte(')')
}

// formatLegacyFields maps one selected frame to discrete attributes under
// the configured key names. Each field appears only when its toggle is on
// and the underlying value resolved; column numbers never resolve on the
// Go runtime.
func formatLegacyFields(frame runtime.Frame, cfg *Config, cache *InfoCache) []slog.Attr {
	info := cache.Get(frame)
	if !info.Valid {
		return nil
	}
	sm := resolveAsyncMethodInfo(info)

	attrs := make([]slog.Attr, 0, 5)
	if cfg.IncludeMethodName && sm.Method != "" {
		attrs = append(attrs, slog.String(cfg.MethodNameKey, legacyMethodValue(sm.Method, info.Params, cfg)))
	}
	if cfg.IncludeTypeName && sm.TypeName != "" {
		attrs = append(attrs, slog.String(cfg.TypeNameKey, displayTypeName(sm.TypeName, cfg, cache)))
	}
	if cfg.IncludeFileName && frame.File != "" {
		file := frame.File
		if !cfg.UseFullFilePaths {
			file = filepath.Base(file)
		}
		attrs = append(attrs, slog.String(cfg.FileNameKey, file))
	}
	if cfg.IncludeLineNumber && frame.Line > 0 {
		attrs = append(attrs, slog.Int(cfg.LineNumberKey, frame.Line))
	}
	if cfg.IncludePackage && info.Package != "" {
		attrs = append(attrs, slog.String(cfg.PackageKey, info.Package))
	}
	return attrs
}

// legacyMethodValue renders the method field, appending a parameter list
// when parameter inclusion is on.
func legacyMethodValue(method string, params []string, cfg *Config) string {
	if !cfg.IncludeParameters {
		return method
	}
	var sb bytes.Buffer
	sb.WriteString(method)
	writeParams(&sb, params, cfg)
	return sb.String()
}

// displayTypeName renders a fully qualified declaring name per the
// short/full preference.
func displayTypeName(full string, cfg *Config, cache *InfoCache) string {
	if cfg.UseFullTypeNames {
		return full
	}
	return cache.ShortTypeName(full)
}
