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
	"runtime"
	"strings"
)

// Namespace prefixes owned by the logging pipeline itself. Frames matching
// these are machinery between the application and the sink, never the call
// site a reader wants.
const (
	slogPrefix       = "log/slog."
	modulePrefixDot  = "github.com/calltrace/calltrace."
	modulePrefixPath = "github.com/calltrace/calltrace/"
)

// builtinSkipPrefixes lists function-name prefixes of well-known
// infrastructure: the runtime, reflection trampolines, the test harness,
// and synchronization internals.
var builtinSkipPrefixes = []string{
	"runtime.",
	"runtime/",
	"reflect.",
	"testing.",
	"sync.",
	"sync/",
	"internal/",
}

// builtinSkipMethods lists bare method names that are pure scheduling or
// invocation trampolines regardless of package.
var builtinSkipMethods = map[string]bool{
	"goexit":    true,
	"gopanic":   true,
	"morestack": true,
	"tRunner":   true,
}

// SkipInfrastructureFrame reports whether a fully qualified function name
// belongs to logging or runtime machinery and should be hidden from
// call-site output. It applies only the built-in rules; user-configured
// skip lists are handled by the selector.
func SkipInfrastructureFrame(funcName string) bool {
	if funcName == "" {
		return false
	}
	if strings.HasPrefix(funcName, slogPrefix) ||
		strings.HasPrefix(funcName, modulePrefixDot) ||
		strings.HasPrefix(funcName, modulePrefixPath) {
		return true
	}
	for _, p := range builtinSkipPrefixes {
		if strings.HasPrefix(funcName, p) {
			return true
		}
	}
	return false
}

// skipFrame applies the full skip policy to one resolved frame, in fixed
// rule order: unresolvable, framework, this module, built-in
// infrastructure, infrastructure method names, generated thunks, user
// prefixes, user exact types. All prefix matching is byte-wise.
func skipFrame(frame runtime.Frame, info MethodInfo, cfg *Config) bool {
	if !info.Valid {
		return true
	}
	if SkipInfrastructureFrame(frame.Function) {
		return true
	}
	if builtinSkipMethods[info.Method] {
		return true
	}
	if sm := resolveAsyncMethodInfo(info); sm.IsStateMachine && !sm.IsAsync {
		// Method-value thunks carry no user code and mark no async
		// boundary.
		return true
	}
	for _, p := range cfg.SkipPrefixes {
		if strings.HasPrefix(info.FullTypeName, p) {
			return true
		}
	}
	for _, t := range cfg.SkipTypes {
		if info.FullTypeName == t {
			return true
		}
	}
	return false
}

// skipFrameworkOnly is the narrow fallback filter: it removes only frames
// that are unresolvable or belong to the logging pipeline itself, so an
// aggressive user configuration can never empty the candidate set while a
// non-framework frame exists.
func skipFrameworkOnly(frame runtime.Frame, info MethodInfo) bool {
	if !info.Valid {
		return true
	}
	return strings.HasPrefix(frame.Function, slogPrefix) ||
		strings.HasPrefix(frame.Function, modulePrefixDot) ||
		strings.HasPrefix(frame.Function, modulePrefixPath)
}

// selectFrames returns the ordered relevant subset of frames for chained
// formatting: skip policy, fallback, clamped offset drop, then the
// max-frames truncation. Input order (innermost first) is preserved.
func selectFrames(frames []runtime.Frame, cfg *Config, cache *InfoCache) []runtime.Frame {
	relevant := filterFrames(frames, cfg, cache)
	if len(relevant) == 0 {
		return nil
	}

	offset := clampOffset(cfg.FrameOffset, len(relevant))
	relevant = relevant[offset:]

	if cfg.MaxFrames > 0 && len(relevant) > cfg.MaxFrames {
		relevant = relevant[:cfg.MaxFrames]
	}
	return relevant
}

// selectSingleFrame returns the one relevant frame for legacy formatting,
// indexed by the clamped frame offset.
func selectSingleFrame(frames []runtime.Frame, cfg *Config, cache *InfoCache) (runtime.Frame, bool) {
	relevant := filterFrames(frames, cfg, cache)
	if len(relevant) == 0 {
		return runtime.Frame{}, false
	}
	return relevant[clampOffset(cfg.FrameOffset, len(relevant))], true
}

// filterFrames applies the skip policy and, when it removes everything,
// retries with the framework-only filter.
func filterFrames(frames []runtime.Frame, cfg *Config, cache *InfoCache) []runtime.Frame {
	if len(frames) == 0 {
		return nil
	}

	relevant := make([]runtime.Frame, 0, len(frames))
	for _, frame := range frames {
		if !skipFrame(frame, cache.Get(frame), cfg) {
			relevant = append(relevant, frame)
		}
	}
	if len(relevant) > 0 {
		return relevant
	}

	for _, frame := range frames {
		if !skipFrameworkOnly(frame, cache.Get(frame)) {
			relevant = append(relevant, frame)
		}
	}
	return relevant
}

// clampOffset bounds a configured frame offset to the valid index range.
func clampOffset(offset, count int) int {
	if offset < 0 {
		return 0
	}
	if offset >= count {
		return count - 1
	}
	return offset
}
