package wgpu

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/progc/blobcache"
)

// DefaultMaxSharedContexts is the default limit on live shared contexts.
const DefaultMaxSharedContexts = 16

// Option configures a Platform during creation.
type Option func(*platformOptions)

type platformOptions struct {
	surfaceFormat   gputypes.TextureFormat
	attributeFormat gputypes.VertexFormat
	sampleCount     uint32
	cache           blobcache.Store
	sharedContexts  bool
	maxShared       int
	debug           bool
}

func defaultOptions() platformOptions {
	return platformOptions{
		surfaceFormat:   gputypes.TextureFormatBGRA8Unorm,
		attributeFormat: gputypes.VertexFormatFloat32x4,
		sampleCount:     1,
		sharedContexts:  true,
		maxShared:       DefaultMaxSharedContexts,
	}
}

// WithSurfaceFormat sets the color target format of render pipelines.
func WithSurfaceFormat(f gputypes.TextureFormat) Option {
	return func(o *platformOptions) {
		o.surfaceFormat = f
	}
}

// WithAttributeFormat sets the vertex format used for every bound attribute.
// Each attribute is fed from its own vertex buffer with a tightly packed
// stride of the format's size.
func WithAttributeFormat(f gputypes.VertexFormat) Option {
	return func(o *platformOptions) {
		o.attributeFormat = f
	}
}

// WithSampleCount sets the multisample count of render pipelines.
func WithSampleCount(n uint32) Option {
	return func(o *platformOptions) {
		o.sampleCount = max(n, 1)
	}
}

// WithBlobCache caches SPIR-V produced for stage sources.
//
// Example:
//
//	disk, _ := blobcache.OpenBadger(blobcache.BadgerOptions{Dir: cacheDir})
//	cache := blobcache.NewTiered(blobcache.NewMemory(0), disk)
//	platform, err := wgpu.NewNoopPlatform(wgpu.WithBlobCache(cache))
func WithBlobCache(s blobcache.Store) Option {
	return func(o *platformOptions) {
		o.cache = s
	}
}

// WithSharedContexts enables or disables shared contexts. Without them the
// platform reports no shared-context support and progc compiles
// synchronously.
func WithSharedContexts(enabled bool) Option {
	return func(o *platformOptions) {
		o.sharedContexts = enabled
	}
}

// WithMaxSharedContexts limits the number of live shared contexts.
func WithMaxSharedContexts(n int) Option {
	return func(o *platformOptions) {
		o.maxShared = max(n, 0)
	}
}

// WithShaderDebug emits debug names and line information into generated
// SPIR-V.
func WithShaderDebug(enabled bool) Option {
	return func(o *platformOptions) {
		o.debug = enabled
	}
}
