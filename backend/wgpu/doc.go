// Package wgpu implements the progc driver interfaces over gogpu/wgpu HAL
// devices.
//
// Stage sources are WGSL. Each stage is translated to SPIR-V by the pure Go
// naga compiler and loaded as a HAL shader module; linking creates a render
// or compute pipeline. Translation is CPU work and runs concurrently on every
// context, so a progc.Service over this platform compiles in parallel.
//
// # Creating a Platform
//
//	// Headless, no GPU required.
//	p, err := wgpu.NewNoopPlatform()
//
//	// First Vulkan adapter, discrete GPUs preferred.
//	p, err := wgpu.NewVulkanPlatform(wgpu.WithSurfaceFormat(gputypes.TextureFormatRGBA8Unorm))
//
//	// Device of a host application (HalDevice/HalQueue provider).
//	p, err := wgpu.NewPlatformFromProvider(app)
//
// # Specialization Constants
//
// Platform implements driver.Preprocessor. Override declarations such as
//
//	@id(0) override samples: i32 = 4;
//
// are rewritten to const declarations holding the program's values before
// translation. See Specialize.
//
// # Vertex Attributes
//
// Every bound attribute is fed from its own vertex buffer, ordered by
// location, using the format set by WithAttributeFormat (Float32x4 by
// default).
//
// # SPIR-V Cache
//
// WithBlobCache stores translated SPIR-V keyed by source text, so repeated
// programs skip naga entirely. Any blobcache.Store works, including a tiered
// memory and badger cache.
package wgpu
