package wgpu

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gogpu/naga"

	"github.com/gogpu/progc/blobcache"
)

// spirvMagic is the first word of every SPIR-V module.
const spirvMagic = 0x07230203

// spirvCacheTag versions cache keys of compiled stages.
const spirvCacheTag = "naga/spirv/v1"

// compileSPIRV translates WGSL to SPIR-V words, consulting the platform's
// blob cache first.
func (p *Platform) compileSPIRV(source string) ([]uint32, error) {
	cache := p.opts.cache
	key := spirvKey(source, p.opts.debug)
	if cache != nil {
		b, err := cache.Get(key)
		switch {
		case err == nil:
			if words, werr := spirvWords(b); werr == nil {
				p.cacheHits.Add(1)
				return words, nil
			}
			slogger().Warn("wgpu: discarding corrupt cached SPIR-V", "key", key.String())
		case !errors.Is(err, blobcache.ErrNotFound):
			slogger().Warn("wgpu: blob cache read failed", "error", err)
		}
		p.cacheMisses.Add(1)
	}

	nagaOpts := naga.DefaultOptions()
	nagaOpts.Debug = p.opts.debug
	b, err := naga.CompileWithOptions(source, nagaOpts)
	if err != nil {
		return nil, err
	}
	words, err := spirvWords(b)
	if err != nil {
		return nil, err
	}
	if cache != nil {
		if err := cache.Put(key, b); err != nil {
			slogger().Warn("wgpu: blob cache write failed", "error", err)
		}
	}
	return words, nil
}

func spirvKey(source string, debug bool) blobcache.Key {
	if debug {
		return blobcache.KeyOf(spirvCacheTag, "debug", source)
	}
	return blobcache.KeyOf(spirvCacheTag, source)
}

// spirvWords converts a little-endian SPIR-V byte stream to words.
func spirvWords(b []byte) ([]uint32, error) {
	if len(b) < 4 || len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid SPIR-V size %d", len(b))
	}
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	if words[0] != spirvMagic {
		return nil, fmt.Errorf("invalid SPIR-V magic %#08x", words[0])
	}
	return words, nil
}
