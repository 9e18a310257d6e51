package oxyfbx

import (
	"github.com/oxyfbx/oxyfbx/internal/asciifbx"
	"github.com/oxyfbx/oxyfbx/internal/binfbx"
	"github.com/oxyfbx/oxyfbx/internal/connections"
	"github.com/oxyfbx/oxyfbx/internal/elements"
	"github.com/oxyfbx/oxyfbx/internal/finalize"
	"github.com/oxyfbx/oxyfbx/internal/strpool"
)

// FileFormat names an explicit input format, overriding magic/extension
// sniffing.
type FileFormat int

const (
	FormatUnknown FileFormat = iota
	FormatFBX
	FormatOBJ
	FormatMTL
)

// IndexErrorHandling controls out-of-range index repair in the OBJ face
// reader. FBX layer-element tables are always expanded with clamping,
// whatever this is set to.
type IndexErrorHandling int

const (
	IndexClamp IndexErrorHandling = iota
	IndexNoIndex
	IndexAbort
)

// UnicodeErrorHandling controls invalid-UTF-8 repair in the string pool.
type UnicodeErrorHandling int

const (
	UnicodeReplace UnicodeErrorHandling = iota
	UnicodeUnderscore
	UnicodeRaw
	UnicodeAbort
)

// GeometryTransformHandling selects how a mesh's FBX-specific local
// geometry-transform offset is exposed.
type GeometryTransformHandling int

const (
	GeometryPreserve GeometryTransformHandling = iota
	GeometryHelperNodes
	GeometryModify
)

// ProgressResult is returned from a ProgressFunc to continue or cancel a
// load in progress.
type ProgressResult int

const (
	ProgressContinue ProgressResult = iota
	ProgressCancel
)

// ProgressFunc is invoked periodically as bytes are consumed from the
// input stream.
type ProgressFunc func(bytesRead, bytesTotal int64) ProgressResult

// LoadOpts is the fully resolved option set a Load call runs with. Use
// Option functions with Load/LoadFile/LoadReader to build one; the zero
// value is never used directly by callers.
type LoadOpts struct {
	FileFormat FileFormat

	IgnoreGeometry             bool
	IgnoreAnimation            bool
	IgnoreEmbedded             bool
	LoadExternalFiles          bool
	IgnoreMissingExternalFiles bool

	AllowMissingVertexPosition bool
	AllowNodesOutOfRoot        bool
	ConnectBrokenElements      bool
	GenerateMissingNormals     bool

	Strict       bool
	DisableQuirks bool

	IndexErrorHandling   IndexErrorHandling
	UnicodeErrorHandling UnicodeErrorHandling
	GeometryTransform    GeometryTransformHandling

	ReadBufferSize int
	RetainDOM      bool
	ProgressFn     ProgressFunc
	ProgressIntervalBytes int64

	ArenaLimits Limits

	// ArenaBaseDir is the source file's directory, used to resolve
	// relative mtllib/texture paths. Set automatically by LoadFile;
	// callers of Load/LoadReader may set it via WithBaseDir.
	ArenaBaseDir string
}

// Limits mirrors internal/arena.Limits for the public option surface,
// letting callers cap a load's arena budget without importing an
// internal package.
type Limits struct {
	AllocationLimit int
	MemoryLimit     int64
	HugeThreshold   int
}

// DefaultOpts returns the documented defaults (spec.md §6).
func DefaultOpts() LoadOpts {
	return LoadOpts{
		FileFormat:           FormatUnknown,
		IndexErrorHandling:   IndexClamp,
		UnicodeErrorHandling: UnicodeReplace,
		GeometryTransform:    GeometryPreserve,
		ReadBufferSize:       64 * 1024,
	}
}

// Option configures a LoadOpts. Applied in the order passed to Load.
type Option func(*LoadOpts)

func WithFileFormat(f FileFormat) Option { return func(o *LoadOpts) { o.FileFormat = f } }

func WithIgnoreGeometry(v bool) Option { return func(o *LoadOpts) { o.IgnoreGeometry = v } }

func WithIgnoreAnimation(v bool) Option { return func(o *LoadOpts) { o.IgnoreAnimation = v } }

func WithIgnoreEmbedded(v bool) Option { return func(o *LoadOpts) { o.IgnoreEmbedded = v } }

func WithLoadExternalFiles(v bool) Option { return func(o *LoadOpts) { o.LoadExternalFiles = v } }

func WithIgnoreMissingExternalFiles(v bool) Option {
	return func(o *LoadOpts) { o.IgnoreMissingExternalFiles = v }
}

func WithAllowMissingVertexPosition(v bool) Option {
	return func(o *LoadOpts) { o.AllowMissingVertexPosition = v }
}

func WithAllowNodesOutOfRoot(v bool) Option {
	return func(o *LoadOpts) { o.AllowNodesOutOfRoot = v }
}

func WithConnectBrokenElements(v bool) Option {
	return func(o *LoadOpts) { o.ConnectBrokenElements = v }
}

func WithGenerateMissingNormals(v bool) Option {
	return func(o *LoadOpts) { o.GenerateMissingNormals = v }
}

func WithStrict(v bool) Option { return func(o *LoadOpts) { o.Strict = v } }

func WithDisableQuirks(v bool) Option { return func(o *LoadOpts) { o.DisableQuirks = v } }

func WithIndexErrorHandling(v IndexErrorHandling) Option {
	return func(o *LoadOpts) { o.IndexErrorHandling = v }
}

func WithUnicodeErrorHandling(v UnicodeErrorHandling) Option {
	return func(o *LoadOpts) { o.UnicodeErrorHandling = v }
}

func WithGeometryTransformHandling(v GeometryTransformHandling) Option {
	return func(o *LoadOpts) { o.GeometryTransform = v }
}

func WithReadBufferSize(n int) Option { return func(o *LoadOpts) { o.ReadBufferSize = n } }

func WithRetainDOM(v bool) Option { return func(o *LoadOpts) { o.RetainDOM = v } }

func WithProgress(fn ProgressFunc, intervalBytes int64) Option {
	return func(o *LoadOpts) {
		o.ProgressFn = fn
		o.ProgressIntervalBytes = intervalBytes
	}
}

func WithArenaLimits(l Limits) Option { return func(o *LoadOpts) { o.ArenaLimits = l } }

// WithBaseDir sets the directory relative mtllib/texture paths resolve
// against, for Load/LoadReader callers that don't have a filesystem path
// of their own (LoadFile sets this automatically from its argument).
func WithBaseDir(dir string) Option { return func(o *LoadOpts) { o.ArenaBaseDir = dir } }

func toStrpoolPolicy(u UnicodeErrorHandling) strpool.UnicodeErrorHandling {
	switch u {
	case UnicodeUnderscore:
		return strpool.Underscore
	case UnicodeRaw:
		return strpool.Raw
	case UnicodeAbort:
		return strpool.Abort
	default:
		return strpool.Replace
	}
}

func toElementsPolicy(i IndexErrorHandling) elements.IndexPolicy {
	switch i {
	case IndexNoIndex:
		return elements.IndexNoIndex
	case IndexAbort:
		return elements.IndexAbort
	default:
		return elements.IndexClamp
	}
}

func toConnectionsPolicy(o LoadOpts) connections.Policy {
	if o.ConnectBrokenElements {
		return connections.PolicyConnectToRoot
	}
	return connections.PolicyDrop
}

func toFinalizeHandling(g GeometryTransformHandling) finalize.GeometryTransformHandling {
	switch g {
	case GeometryHelperNodes:
		return finalize.GeometryTransformHelperNodes
	case GeometryModify:
		return finalize.GeometryTransformModify
	default:
		return finalize.GeometryTransformPreserve
	}
}

func toBinfbxOptions(o LoadOpts) binfbx.Options {
	return binfbx.Options{}
}

func toAsciifbxOptions(o LoadOpts) asciifbx.Options {
	return asciifbx.Options{AllowNanInf: !o.DisableQuirks}
}
