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

import "strings"

// AsyncMethodInfo describes how a frame relates to compiler-generated
// function lowering. The Go compiler rewrites goroutine launches, deferred
// calls, method values, and closures into synthetic named functions
// ("Charge.gowrap1", "Charge.func1", "Charge-fm"); this view maps such a
// frame back to the method the developer wrote.
type AsyncMethodInfo struct {
	// IsStateMachine is true when the frame is a generated thunk holding
	// no user code (goroutine wrappers, defer wrappers, method-value
	// thunks).
	IsStateMachine bool

	// IsAsync is true when the frame marks an asynchronous boundary: the
	// body or wrapper of a goroutine launch or a deferred call.
	IsAsync bool

	// Method is the recovered logical method name. When the generated
	// name does not match any known pattern this falls back to the raw
	// method name.
	Method string

	// TypeName is the logical declaring type's fully qualified name: the
	// enclosing type when one exists, otherwise the declaring package.
	TypeName string
}

// Suffix markers the compiler appends to lowered functions.
const (
	closureMarker   = "func"
	gowrapMarker    = "gowrap"
	deferwrapMarker = "deferwrap"
	methodValueFm   = "-fm"
)

// resolveAsyncMethodInfo interprets the synthetic suffix chain of a
// resolved frame. Plain frames come back unchanged with both flags false.
func resolveAsyncMethodInfo(info MethodInfo) AsyncMethodInfo {
	out := AsyncMethodInfo{Method: info.Method, TypeName: info.FullTypeName}
	if !info.Valid || info.Method == "" {
		return out
	}

	segs := strings.Split(info.Method, ".")

	// A method-value thunk attaches "-fm" to the final segment.
	last := len(segs) - 1
	if strings.HasSuffix(segs[last], methodValueFm) {
		segs[last] = strings.TrimSuffix(segs[last], methodValueFm)
		out.IsStateMachine = true
	}

	// Strip trailing generated segments innermost-out, remembering which
	// kind of lowering produced them.
	for len(segs) > 1 {
		seg := segs[len(segs)-1]
		if !isSyntheticSegment(seg) {
			break
		}
		switch {
		case strings.HasPrefix(seg, gowrapMarker):
			out.IsStateMachine = true
			out.IsAsync = true
		case strings.HasPrefix(seg, deferwrapMarker):
			out.IsStateMachine = true
			out.IsAsync = true
		}
		segs = segs[:len(segs)-1]
	}

	recovered := strings.Join(segs, ".")
	if recovered == "" {
		// Pattern mismatch; keep the raw name.
		recovered = info.Method
	}
	out.Method = recovered
	return out
}

// isAsyncFrame reports whether the frame marks a goroutine or defer
// boundary.
func isAsyncFrame(info MethodInfo) bool {
	return resolveAsyncMethodInfo(info).IsAsync
}

// isSyntheticSegment reports whether one dot-separated name segment was
// generated by the compiler rather than written by the developer.
func isSyntheticSegment(seg string) bool {
	if seg == "" {
		return false
	}
	if allDigits(seg) {
		// Nested closure discriminators ("func1.2") and init ordinals.
		return true
	}
	for _, marker := range []string{closureMarker, gowrapMarker, deferwrapMarker} {
		if rest, ok := strings.CutPrefix(seg, marker); ok && allDigits(rest) && rest != "" {
			return true
		}
	}
	return false
}

// allDigits reports whether s is a non-empty run of ASCII digits.
func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
