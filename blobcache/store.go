package blobcache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
)

// ErrNotFound is returned by Get when the key is not cached.
var ErrNotFound = errors.New("blobcache: not found")

// Store is a blob cache. Implementations are safe for concurrent use.
//
// Get returns ErrNotFound for a missing key. Values returned by Get and
// passed to Put must not be modified afterwards.
type Store interface {
	Get(key Key) ([]byte, error)
	Put(key Key, value []byte) error
}

// Key identifies a cached blob.
type Key [sha256.Size]byte

// KeyOf hashes the parts into a Key. Each part is length-prefixed, so
// KeyOf("ab", "c") and KeyOf("a", "bc") differ.
func KeyOf(parts ...string) Key {
	h := sha256.New()
	var n [8]byte
	for _, p := range parts {
		binary.LittleEndian.PutUint64(n[:], uint64(len(p)))
		_, _ = h.Write(n[:])      // hash.Hash.Write never returns an error
		_, _ = h.Write([]byte(p)) // hash.Hash.Write never returns an error
	}
	var k Key
	h.Sum(k[:0])
	return k
}

// String returns the key as lowercase hex.
func (k Key) String() string {
	return hex.EncodeToString(k[:])
}

// Stats holds cache statistics.
type Stats struct {
	Len       int
	Hits      uint64
	Misses    uint64
	Evictions uint64
	HitRate   float64
}

func hitRate(hits, misses uint64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
