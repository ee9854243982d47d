// Package blobcache stores compiled shader binaries keyed by the content
// that produced them.
//
// Three Store implementations are provided:
//   - Memory: sharded in-process LRU, 16 shards for reduced lock contention
//   - Badger: persistent store on BadgerDB, survives process restarts
//   - Tiered: a fast store in front of a slow one, promoting hits
//
// Keys are SHA-256 digests built with KeyOf, so a cached binary is only
// reused for exactly the same inputs.
package blobcache
