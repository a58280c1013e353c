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
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Default attribute keys written by the enricher.
const (
	DefaultChainKey        = "CallStack"
	DefaultMethodNameKey   = "MethodName"
	DefaultTypeNameKey     = "TypeName"
	DefaultFileNameKey     = "FileName"
	DefaultLineNumberKey   = "LineNumber"
	DefaultColumnNumberKey = "ColumnNumber"
	DefaultPackageKey      = "Package"
)

// chainSeparator joins formatted frames in chained output.
const chainSeparator = " --> "

// Environment variables providing deploy-time overrides. Programmatic
// options always win over the environment.
const (
	envMode           = "CALLTRACE_MODE" // "chained" or "legacy"
	envMaxFrames      = "CALLTRACE_MAX_FRAMES"
	envFrameOffset    = "CALLTRACE_FRAME_OFFSET"
	envSkipPrefixes   = "CALLTRACE_SKIP_PREFIXES" // comma-separated
	envSuppressErrors = "CALLTRACE_SUPPRESS_ERRORS"
)

// Config is the resolved, immutable configuration an Enricher operates
// under. Construct it through NewEnricher or NewHandler options; the core
// never mutates it during enrichment.
type Config struct {
	// ChainedFormat selects the single joined CallStack attribute (true,
	// the default) or discrete legacy attributes (false).
	ChainedFormat bool

	// ChainKey names the chained attribute.
	ChainKey string

	// Field toggles for legacy output, and parameter/type rendering for
	// both modes. Column numbers are accepted for interface parity but the
	// Go runtime never resolves them, so the field is always omitted.
	IncludeMethodName   bool
	IncludeTypeName     bool
	IncludeFileName     bool
	IncludeLineNumber   bool
	IncludeColumnNumber bool
	IncludePackage      bool
	IncludeParameters   bool

	// UseFullTypeNames renders package-qualified type and parameter names
	// instead of short names.
	UseFullTypeNames bool

	// UseFullFilePaths renders the complete source path instead of the
	// base filename.
	UseFullFilePaths bool

	// Legacy attribute key names.
	MethodNameKey   string
	TypeNameKey     string
	FileNameKey     string
	LineNumberKey   string
	ColumnNumberKey string
	PackageKey      string

	// SkipPrefixes removes frames whose fully qualified declaring name
	// starts with any entry; SkipTypes removes exact matches. Comparison
	// is ordinal, never locale-aware.
	SkipPrefixes []string
	SkipTypes    []string

	// FrameOffset indexes into the filtered frame sequence; it is clamped
	// to the valid range. MaxFrames truncates chained output; zero or
	// negative means unlimited. CaptureDepth bounds the raw snapshot.
	FrameOffset  int
	MaxFrames    int
	CaptureDepth int

	// SuppressErrors (default true) swallows any enrichment failure after
	// notifying OnError, so the log record is still emitted. When false,
	// failures propagate to the caller of Enrich or Handle.
	SuppressErrors bool
	OnError        func(error)

	// TraceCorrelation attaches OpenTelemetry trace identifiers from the
	// record context alongside call-site attributes.
	TraceCorrelation bool

	// MinLevel gates handler-driven enrichment; records below it pass
	// through untouched.
	MinLevel slog.Level
}

// Option adjusts enricher construction. Options are applied in order;
// later options override earlier ones and the environment.
type Option func(*options)

// options mirrors Config with pointer fields so an explicitly set zero
// value can be told apart from an unset one (which falls back to the
// environment or a default).
type options struct {
	chained          *bool
	chainKey         *string
	includeMethod    *bool
	includeType      *bool
	includeFile      *bool
	includeLine      *bool
	includeColumn    *bool
	includePackage   *bool
	includeParams    *bool
	fullTypeNames    *bool
	fullFilePaths    *bool
	methodKey        *string
	typeKey          *string
	fileKey          *string
	lineKey          *string
	columnKey        *string
	packageKey       *string
	skipPrefixes     []string
	skipTypes        []string
	frameOffset      *int
	maxFrames        *int
	captureDepth     *int
	suppressErrors   *bool
	onError          func(error)
	onErrorSet       bool
	traceCorrelation *bool
	minLevel         *slog.Level
	cache            *InfoCache
	pool             *BufferPool
}

// WithChainedFormat enables or disables the single chained CallStack
// attribute. Disabling it switches to legacy discrete attributes.
func WithChainedFormat(enabled bool) Option {
	return func(o *options) {
		v := enabled
		o.chained = &v
	}
}

// WithLegacyFormat switches to discrete per-field attributes. Shorthand
// for WithChainedFormat(false).
func WithLegacyFormat() Option {
	return WithChainedFormat(false)
}

// WithChainKey sets the attribute name used in chained mode.
func WithChainKey(key string) Option {
	return func(o *options) {
		k := key
		o.chainKey = &k
	}
}

// WithMethodName toggles the method-name field in legacy output.
func WithMethodName(enabled bool) Option {
	return func(o *options) {
		v := enabled
		o.includeMethod = &v
	}
}

// WithTypeName toggles the declaring-type field in legacy output and the
// type segment of chained output.
func WithTypeName(enabled bool) Option {
	return func(o *options) {
		v := enabled
		o.includeType = &v
	}
}

// WithFileName toggles the source-file field in legacy output.
func WithFileName(enabled bool) Option {
	return func(o *options) {
		v := enabled
		o.includeFile = &v
	}
}

// WithLineNumber toggles line numbers in both output modes.
func WithLineNumber(enabled bool) Option {
	return func(o *options) {
		v := enabled
		o.includeLine = &v
	}
}

// WithColumnNumber toggles the column-number field. The Go runtime never
// reports columns, so enabling this is harmless but has no visible effect.
func WithColumnNumber(enabled bool) Option {
	return func(o *options) {
		v := enabled
		o.includeColumn = &v
	}
}

// WithPackageName toggles the declaring-package field in legacy output.
func WithPackageName(enabled bool) Option {
	return func(o *options) {
		v := enabled
		o.includePackage = &v
	}
}

// WithMethodParameters toggles parenthesized parameter-type lists after
// method names. Parameter types come from descriptors registered through
// InfoCache.RegisterDescriptor; methods without one render an empty list.
func WithMethodParameters(enabled bool) Option {
	return func(o *options) {
		v := enabled
		o.includeParams = &v
	}
}

// WithFullTypeNames renders package-qualified type and parameter names.
func WithFullTypeNames(enabled bool) Option {
	return func(o *options) {
		v := enabled
		o.fullTypeNames = &v
	}
}

// WithFullFilePaths renders complete source paths instead of base names.
func WithFullFilePaths(enabled bool) Option {
	return func(o *options) {
		v := enabled
		o.fullFilePaths = &v
	}
}

// WithPropertyNames overrides the legacy attribute keys for method and
// type, the two most commonly renamed fields. Empty strings keep the
// defaults.
func WithPropertyNames(methodKey, typeKey string) Option {
	return func(o *options) {
		if methodKey != "" {
			k := methodKey
			o.methodKey = &k
		}
		if typeKey != "" {
			k := typeKey
			o.typeKey = &k
		}
	}
}

// WithFileNameKey overrides the legacy source-file attribute key.
func WithFileNameKey(key string) Option {
	return func(o *options) {
		k := key
		o.fileKey = &k
	}
}

// WithLineNumberKey overrides the legacy line-number attribute key.
func WithLineNumberKey(key string) Option {
	return func(o *options) {
		k := key
		o.lineKey = &k
	}
}

// WithColumnNumberKey overrides the legacy column-number attribute key.
func WithColumnNumberKey(key string) Option {
	return func(o *options) {
		k := key
		o.columnKey = &k
	}
}

// WithPackageKey overrides the legacy package attribute key.
func WithPackageKey(key string) Option {
	return func(o *options) {
		k := key
		o.packageKey = &k
	}
}

// WithSkipPrefixes adds namespace prefixes whose frames are excluded from
// selection. Multiple uses are cumulative; the slice is copied.
func WithSkipPrefixes(prefixes ...string) Option {
	return func(o *options) {
		o.skipPrefixes = append(o.skipPrefixes, prefixes...)
	}
}

// WithSkipTypes adds fully qualified declaring names whose frames are
// excluded by exact match. Multiple uses are cumulative.
func WithSkipTypes(types ...string) Option {
	return func(o *options) {
		o.skipTypes = append(o.skipTypes, types...)
	}
}

// WithFrameOffset selects which relevant frame is "the" call site.
// Offsets beyond the filtered sequence clamp to its last frame.
func WithFrameOffset(offset int) Option {
	return func(o *options) {
		v := offset
		o.frameOffset = &v
	}
}

// WithMaxFrames caps how many frames chained output renders. Zero or a
// negative value means unlimited.
func WithMaxFrames(n int) Option {
	return func(o *options) {
		v := n
		o.maxFrames = &v
	}
}

// WithCaptureDepth bounds the raw stack snapshot. Values above the
// internal ceiling are reduced to it.
func WithCaptureDepth(depth int) Option {
	return func(o *options) {
		v := depth
		o.captureDepth = &v
	}
}

// WithSuppressErrors controls the failure policy. When true (the
// default), enrichment failures are swallowed after notifying the error
// callback; when false they propagate out of Enrich and Handler.Handle.
func WithSuppressErrors(enabled bool) Option {
	return func(o *options) {
		v := enabled
		o.suppressErrors = &v
	}
}

// WithErrorCallback installs a callback notified of suppressed (and
// surfaced) enrichment failures. The callback runs outside all internal
// locks and a panicking callback is always contained.
func WithErrorCallback(fn func(error)) Option {
	return func(o *options) {
		o.onError = fn
		o.onErrorSet = true
	}
}

// WithTraceCorrelation attaches OpenTelemetry trace identifiers from the
// record context alongside call-site attributes.
func WithTraceCorrelation(enabled bool) Option {
	return func(o *options) {
		v := enabled
		o.traceCorrelation = &v
	}
}

// WithMinLevel sets the minimum record level at which the handler
// enriches. Records below the level pass through untouched.
func WithMinLevel(level slog.Level) Option {
	return func(o *options) {
		lvl := level
		o.minLevel = &lvl
	}
}

// WithInfoCache supplies an isolated resolution cache instead of the
// process-wide shared one. Intended for tests and hosts that want
// explicit lifecycle control.
func WithInfoCache(cache *InfoCache) Option {
	return func(o *options) {
		o.cache = cache
	}
}

// WithBufferPool supplies an isolated formatting buffer pool instead of
// the process-wide shared one.
func WithBufferPool(pool *BufferPool) Option {
	return func(o *options) {
		o.pool = pool
	}
}

// resolveConfig folds options over environment fallbacks and defaults
// into an immutable Config. It reports construction-time misuse.
func resolveConfig(opts []Option) (Config, *InfoCache, *BufferPool, error) {
	var o options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	if o.onErrorSet && o.onError == nil {
		return Config{}, nil, nil, ErrNilCallback
	}

	cfg := Config{
		ChainedFormat:       boolOr(o.chained, envModeChained()),
		ChainKey:            stringOr(o.chainKey, DefaultChainKey),
		IncludeMethodName:   boolOr(o.includeMethod, true),
		IncludeTypeName:     boolOr(o.includeType, true),
		IncludeFileName:     boolOr(o.includeFile, true),
		IncludeLineNumber:   boolOr(o.includeLine, true),
		IncludeColumnNumber: boolOr(o.includeColumn, false),
		IncludePackage:      boolOr(o.includePackage, false),
		IncludeParameters:   boolOr(o.includeParams, false),
		UseFullTypeNames:    boolOr(o.fullTypeNames, false),
		UseFullFilePaths:    boolOr(o.fullFilePaths, false),
		MethodNameKey:       stringOr(o.methodKey, DefaultMethodNameKey),
		TypeNameKey:         stringOr(o.typeKey, DefaultTypeNameKey),
		FileNameKey:         stringOr(o.fileKey, DefaultFileNameKey),
		LineNumberKey:       stringOr(o.lineKey, DefaultLineNumberKey),
		ColumnNumberKey:     stringOr(o.columnKey, DefaultColumnNumberKey),
		PackageKey:          stringOr(o.packageKey, DefaultPackageKey),
		SkipPrefixes:        append(envSkipPrefixList(), o.skipPrefixes...),
		SkipTypes:           append([]string(nil), o.skipTypes...),
		FrameOffset:         intOr(o.frameOffset, envInt(envFrameOffset, 0)),
		MaxFrames:           intOr(o.maxFrames, envInt(envMaxFrames, 0)),
		CaptureDepth:        intOr(o.captureDepth, defaultCaptureDepth),
		SuppressErrors:      boolOr(o.suppressErrors, envBool(envSuppressErrors, true)),
		OnError:             o.onError,
		TraceCorrelation:    boolOr(o.traceCorrelation, false),
		MinLevel:            levelOr(o.minLevel, slog.LevelDebug),
	}

	cache := o.cache
	if cache == nil {
		cache = sharedInfoCache
	}
	pool := o.pool
	if pool == nil {
		pool = sharedBufferPool
	}
	return cfg, cache, pool, nil
}

// envModeChained reads CALLTRACE_MODE; anything but "legacy" keeps the
// chained default.
func envModeChained() bool {
	mode := strings.ToLower(strings.TrimSpace(os.Getenv(envMode)))
	return mode != "legacy"
}

// envSkipPrefixList parses the comma-separated CALLTRACE_SKIP_PREFIXES.
func envSkipPrefixList() []string {
	raw := strings.TrimSpace(os.Getenv(envSkipPrefixes))
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// envInt reads an integer environment variable, falling back on absence
// or parse failure.
func envInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// envBool reads a boolean environment variable, falling back on absence
// or parse failure.
func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return v
}

func boolOr(p *bool, fallback bool) bool {
	if p != nil {
		return *p
	}
	return fallback
}

func stringOr(p *string, fallback string) string {
	if p != nil && *p != "" {
		return *p
	}
	return fallback
}

func intOr(p *int, fallback int) int {
	if p != nil {
		return *p
	}
	return fallback
}

func levelOr(p *slog.Level, fallback slog.Level) slog.Level {
	if p != nil {
		return *p
	}
	return fallback
}
