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
	"reflect"
	"runtime"
	"strings"
	"sync"
)

// MethodInfo is the cached, resolved view of one stack frame's function.
// Valid is false when the runtime offered nothing usable; callers must
// treat invalid entries as "no frame info available" and move on.
type MethodInfo struct {
	Valid bool

	// Method is the short method or function name, without its declaring
	// type or package qualifier.
	Method string

	// TypeName is the short declaring type name, empty for plain functions.
	TypeName string

	// FullTypeName qualifies the declaring type with its package import
	// path ("github.com/acme/billing.Invoicer"). For plain functions it is
	// the package path alone, which keeps namespace prefix matching
	// uniform.
	FullTypeName string

	// Package is the declaring package's import path.
	Package string

	// Params holds parameter type names recorded by RegisterDescriptor.
	// Nil when no descriptor is registered for the method.
	Params []string
}

// CacheStats reports cache occupancy for diagnostics.
type CacheStats struct {
	MethodEntries int
	TypeEntries   int
}

// InfoCache memoizes function-name resolution per distinct function ever
// observed. Entries accumulate for the cache's lifetime; Clear is the only
// way memory is reclaimed. Safe for concurrent use: racing first writers
// may compute the same entry twice, and all readers converge on an
// equivalent result.
type InfoCache struct {
	mu          sync.RWMutex
	methods     map[string]MethodInfo
	types       map[string]string
	descriptors map[string][]string
}

// NewInfoCache constructs an empty resolution cache.
func NewInfoCache() *InfoCache {
	return &InfoCache{
		methods:     make(map[string]MethodInfo),
		types:       make(map[string]string),
		descriptors: make(map[string][]string),
	}
}

// sharedInfoCache serves enrichers that are not given an isolated cache.
var sharedInfoCache = NewInfoCache()

// Get resolves the frame's function into a MethodInfo, memoizing by the
// fully qualified function name. A frame with no function name yields the
// invalid sentinel.
func (c *InfoCache) Get(frame runtime.Frame) MethodInfo {
	if frame.Function == "" {
		return MethodInfo{}
	}

	c.mu.RLock()
	info, ok := c.methods[frame.Function]
	c.mu.RUnlock()
	if ok {
		// A descriptor registered after the first lookup applies on the
		// next one; the refreshed entry is memoized like any other.
		if info.Valid && info.Params == nil {
			if params, found := c.descriptorParams(info); found {
				info.Params = params
				c.mu.Lock()
				c.methods[frame.Function] = info
				c.mu.Unlock()
			}
		}
		return info
	}

	info = resolveFunctionName(frame.Function)
	if info.Valid {
		if params, ok := c.descriptorParams(info); ok {
			info.Params = params
		}
	}

	c.mu.Lock()
	if existing, ok := c.methods[frame.Function]; ok {
		info = existing
	} else {
		c.methods[frame.Function] = info
	}
	c.mu.Unlock()
	return info
}

// ShortTypeName derives and memoizes the short form of a fully qualified
// type name: the substring after the last '.' or '/'. Names without a
// separator are returned unchanged.
func (c *InfoCache) ShortTypeName(full string) string {
	if full == "" {
		return ""
	}

	c.mu.RLock()
	short, ok := c.types[full]
	c.mu.RUnlock()
	if ok {
		return short
	}

	short = shortName(full)

	c.mu.Lock()
	c.types[full] = short
	c.mu.Unlock()
	return short
}

// RegisterDescriptor records parameter type names for every exported
// method of v's type, keyed by the method's fully qualified name. The
// formatter consults these when parameter rendering is enabled; methods
// without a descriptor render an empty parameter list. Registering after
// a method has already been looked up is fine: the parameters appear on
// the next lookup. Registration is the reflection capability of this
// package: the Go runtime exposes no signature data for a raw program
// counter.
func (c *InfoCache) RegisterDescriptor(v any) {
	if v == nil {
		return
	}
	rt := reflect.TypeOf(v)
	base := rt
	for base.Kind() == reflect.Pointer {
		base = base.Elem()
	}
	if base.Name() == "" || base.PkgPath() == "" {
		return
	}
	prefix := base.PkgPath() + "." + base.Name() + "."

	entries := make(map[string][]string, rt.NumMethod())
	for i := 0; i < rt.NumMethod(); i++ {
		m := rt.Method(i)
		params := make([]string, 0, m.Type.NumIn()-1)
		for in := 1; in < m.Type.NumIn(); in++ { // skip the receiver
			params = append(params, typeDisplayName(m.Type.In(in)))
		}
		entries[prefix+m.Name] = params
	}

	c.mu.Lock()
	for k, v := range entries {
		c.descriptors[k] = v
	}
	c.mu.Unlock()
}

// Clear discards every memoized entry and registered descriptor.
func (c *InfoCache) Clear() {
	c.mu.Lock()
	c.methods = make(map[string]MethodInfo)
	c.types = make(map[string]string)
	c.descriptors = make(map[string][]string)
	c.mu.Unlock()
}

// Stats returns current cache occupancy.
func (c *InfoCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CacheStats{MethodEntries: len(c.methods), TypeEntries: len(c.types)}
}

// descriptorParams looks up registered parameter types for info.
func (c *InfoCache) descriptorParams(info MethodInfo) ([]string, bool) {
	key := info.FullTypeName + "." + info.Method
	c.mu.RLock()
	params, ok := c.descriptors[key]
	c.mu.RUnlock()
	return params, ok
}

// resolveFunctionName parses a runtime function name such as
// "github.com/acme/billing.(*Invoicer).Charge.func1" into its package
// path, declaring type, and method name. Synthetic wrapper suffixes stay
// attached to the method name here; the async resolver interprets them.
func resolveFunctionName(full string) MethodInfo {
	pkgPath, qualified := splitPackage(full)
	if qualified == "" {
		return MethodInfo{}
	}

	segs := splitQualified(qualified)
	if len(segs) == 0 {
		return MethodInfo{}
	}

	info := MethodInfo{Valid: true, Package: pkgPath, FullTypeName: pkgPath}

	first := segs[0]
	if stripped, ok := stripReceiver(first); ok {
		info.TypeName = stripped
		info.FullTypeName = pkgPath + "." + stripped
		segs = segs[1:]
	} else if len(segs) > 1 && !isSyntheticSegment(segs[1]) {
		// Value-receiver method: "Type.Method". A synthetic second segment
		// means the first is a plain function with a closure suffix.
		info.TypeName = first
		info.FullTypeName = pkgPath + "." + first
		segs = segs[1:]
	}

	if len(segs) == 0 {
		// Receiver with no method segment; nothing usable.
		return MethodInfo{}
	}
	info.Method = strings.Join(segs, ".")
	return info
}

// splitPackage separates the package import path from the qualified
// type/method remainder. Generic instantiation markers are dropped first
// so their dots do not confuse the split.
func splitPackage(full string) (pkgPath, qualified string) {
	name := stripGenericMarkers(full)
	slash := strings.LastIndexByte(name, '/')
	dot := strings.IndexByte(name[slash+1:], '.')
	if dot < 0 {
		return "", ""
	}
	dot += slash + 1
	return name[:dot], name[dot+1:]
}

// splitQualified splits the post-package remainder on dots, keeping a
// "(*Type)" receiver as a single segment and discarding empty segments
// (which appear in global initializer closures like "glob..func1").
func splitQualified(qualified string) []string {
	var segs []string
	for len(qualified) > 0 {
		var seg string
		if strings.HasPrefix(qualified, "(*") {
			if end := strings.Index(qualified, ")"); end >= 0 {
				seg, qualified = qualified[:end+1], qualified[end+1:]
				qualified = strings.TrimPrefix(qualified, ".")
			} else {
				seg, qualified = qualified, ""
			}
		} else if dot := strings.IndexByte(qualified, '.'); dot >= 0 {
			seg, qualified = qualified[:dot], qualified[dot+1:]
		} else {
			seg, qualified = qualified, ""
		}
		if seg != "" {
			segs = append(segs, seg)
		}
	}
	return segs
}

// stripReceiver unwraps a "(*Type)" pointer-receiver segment.
func stripReceiver(seg string) (string, bool) {
	if strings.HasPrefix(seg, "(*") && strings.HasSuffix(seg, ")") {
		return seg[2 : len(seg)-1], true
	}
	return seg, false
}

// stripGenericMarkers removes "[...]" instantiation markers emitted for
// generic functions and methods.
func stripGenericMarkers(name string) string {
	for {
		open := strings.Index(name, "[")
		if open < 0 {
			return name
		}
		close := strings.Index(name[open:], "]")
		if close < 0 {
			return name
		}
		name = name[:open] + name[open+close+1:]
	}
}

// shortName returns the substring after the last namespace separator.
func shortName(full string) string {
	if idx := strings.LastIndexAny(full, "./"); idx >= 0 && idx+1 < len(full) {
		return full[idx+1:]
	}
	return full
}

// typeDisplayName renders a reflect.Type with its full package path when
// the type is named, falling back to the reflect string form otherwise.
func typeDisplayName(t reflect.Type) string {
	if t.PkgPath() != "" && t.Name() != "" {
		return t.PkgPath() + "." + t.Name()
	}
	return t.String()
}
