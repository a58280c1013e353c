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
	"errors"
	"log/slog"
	"testing"
)

// TestResolveConfigDefaults pins the documented defaults.
func TestResolveConfigDefaults(t *testing.T) {
	cfg, cache, pool, err := resolveConfig(nil)
	if err != nil {
		t.Fatalf("resolveConfig() returned %v", err)
	}
	if !cfg.ChainedFormat {
		t.Error("default mode should be chained")
	}
	if cfg.ChainKey != DefaultChainKey {
		t.Errorf("ChainKey = %q, want %q", cfg.ChainKey, DefaultChainKey)
	}
	if !cfg.IncludeMethodName || !cfg.IncludeTypeName || !cfg.IncludeFileName || !cfg.IncludeLineNumber {
		t.Error("core field toggles should default on")
	}
	if cfg.IncludePackage || cfg.IncludeParameters || cfg.UseFullTypeNames || cfg.UseFullFilePaths {
		t.Error("optional renderings should default off")
	}
	if !cfg.SuppressErrors {
		t.Error("error suppression should default on")
	}
	if cfg.MaxFrames != 0 || cfg.FrameOffset != 0 {
		t.Errorf("MaxFrames/FrameOffset = %d/%d, want 0/0", cfg.MaxFrames, cfg.FrameOffset)
	}
	if cfg.CaptureDepth != defaultCaptureDepth {
		t.Errorf("CaptureDepth = %d, want %d", cfg.CaptureDepth, defaultCaptureDepth)
	}
	if cfg.MinLevel != slog.LevelDebug {
		t.Errorf("MinLevel = %v, want debug", cfg.MinLevel)
	}
	if cache != sharedInfoCache {
		t.Error("default cache should be the shared instance")
	}
	if pool != sharedBufferPool {
		t.Error("default pool should be the shared instance")
	}
}

// TestResolveConfigIsolatedBufferPool routes formatting through a
// caller-owned pool.
func TestResolveConfigIsolatedBufferPool(t *testing.T) {
	t.Parallel()

	isolated := NewBufferPool(1, 64)
	_, _, pool, err := resolveConfig([]Option{WithBufferPool(isolated)})
	if err != nil {
		t.Fatalf("resolveConfig() returned %v", err)
	}
	if pool != isolated {
		t.Error("WithBufferPool ignored")
	}
}

// TestResolveConfigOptionsOverride verifies options beat defaults and the
// environment.
func TestResolveConfigOptionsOverride(t *testing.T) {
	t.Setenv(envMode, "legacy")
	t.Setenv(envMaxFrames, "9")

	isolated := NewInfoCache()
	cfg, cache, _, err := resolveConfig([]Option{
		WithChainedFormat(true),
		WithMaxFrames(3),
		WithChainKey("Where"),
		WithSkipPrefixes("github.com/acme"),
		WithSkipTypes("github.com/acme/billing.Invoicer"),
		WithFrameOffset(2),
		WithMinLevel(slog.LevelWarn),
		WithInfoCache(isolated),
		WithTraceCorrelation(true),
	})
	if err != nil {
		t.Fatalf("resolveConfig() returned %v", err)
	}
	if !cfg.ChainedFormat {
		t.Error("explicit chained option should beat CALLTRACE_MODE")
	}
	if cfg.MaxFrames != 3 {
		t.Errorf("MaxFrames = %d, want explicit 3 over env 9", cfg.MaxFrames)
	}
	if cfg.ChainKey != "Where" {
		t.Errorf("ChainKey = %q, want Where", cfg.ChainKey)
	}
	if len(cfg.SkipPrefixes) != 1 || cfg.SkipPrefixes[0] != "github.com/acme" {
		t.Errorf("SkipPrefixes = %v", cfg.SkipPrefixes)
	}
	if len(cfg.SkipTypes) != 1 {
		t.Errorf("SkipTypes = %v", cfg.SkipTypes)
	}
	if cfg.FrameOffset != 2 || cfg.MinLevel != slog.LevelWarn || !cfg.TraceCorrelation {
		t.Errorf("resolved cfg wrong: %+v", cfg)
	}
	if cache != isolated {
		t.Error("WithInfoCache ignored")
	}
}

// TestResolveConfigEnvFallbacks exercises each recognized variable.
func TestResolveConfigEnvFallbacks(t *testing.T) {
	t.Setenv(envMode, "legacy")
	t.Setenv(envMaxFrames, "5")
	t.Setenv(envFrameOffset, "1")
	t.Setenv(envSkipPrefixes, "github.com/acme, github.com/other ,")
	t.Setenv(envSuppressErrors, "false")

	cfg, _, _, err := resolveConfig(nil)
	if err != nil {
		t.Fatalf("resolveConfig() returned %v", err)
	}
	if cfg.ChainedFormat {
		t.Error("CALLTRACE_MODE=legacy should disable chained format")
	}
	if cfg.MaxFrames != 5 || cfg.FrameOffset != 1 {
		t.Errorf("env ints not applied: max=%d offset=%d", cfg.MaxFrames, cfg.FrameOffset)
	}
	if len(cfg.SkipPrefixes) != 2 || cfg.SkipPrefixes[1] != "github.com/other" {
		t.Errorf("env skip prefixes = %v", cfg.SkipPrefixes)
	}
	if cfg.SuppressErrors {
		t.Error("CALLTRACE_SUPPRESS_ERRORS=false ignored")
	}
}

// TestResolveConfigBadEnvValuesFallBack: unparsable variables keep
// defaults instead of failing construction.
func TestResolveConfigBadEnvValuesFallBack(t *testing.T) {
	t.Setenv(envMaxFrames, "many")
	t.Setenv(envSuppressErrors, "sometimes")

	cfg, _, _, err := resolveConfig(nil)
	if err != nil {
		t.Fatalf("resolveConfig() returned %v", err)
	}
	if cfg.MaxFrames != 0 {
		t.Errorf("MaxFrames = %d, want default 0", cfg.MaxFrames)
	}
	if !cfg.SuppressErrors {
		t.Error("SuppressErrors should keep its default on parse failure")
	}
}

// TestResolveConfigNilCallbackIsFatal reports explicit nil callbacks at
// construction time.
func TestResolveConfigNilCallbackIsFatal(t *testing.T) {
	t.Parallel()

	_, _, _, err := resolveConfig([]Option{WithErrorCallback(nil)})
	if !errors.Is(err, ErrNilCallback) {
		t.Fatalf("err = %v, want ErrNilCallback", err)
	}

	if _, err := NewEnricher(WithErrorCallback(nil)); !errors.Is(err, ErrNilCallback) {
		t.Fatalf("NewEnricher err = %v, want ErrNilCallback", err)
	}
}

// TestResolveConfigNilOptionsIgnored tolerates nil Option values.
func TestResolveConfigNilOptionsIgnored(t *testing.T) {
	t.Parallel()

	if _, _, _, err := resolveConfig([]Option{nil, WithMaxFrames(1)}); err != nil {
		t.Fatalf("resolveConfig() returned %v", err)
	}
}

// TestWithPropertyNamesKeepsDefaultsOnEmpty leaves blank keys alone.
func TestWithPropertyNamesKeepsDefaultsOnEmpty(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, WithPropertyNames("", "CustomType"))
	if cfg.MethodNameKey != DefaultMethodNameKey {
		t.Errorf("MethodNameKey = %q, want default", cfg.MethodNameKey)
	}
	if cfg.TypeNameKey != "CustomType" {
		t.Errorf("TypeNameKey = %q, want CustomType", cfg.TypeNameKey)
	}
}
