package blobcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	badger "github.com/dgraph-io/badger/v4"
)

// keyPrefix namespaces blob keys inside the database.
var keyPrefix = []byte("blob/")

// Badger is a persistent Store backed by BadgerDB v4.
type Badger struct {
	db *badger.DB

	hits   atomic.Uint64
	misses atomic.Uint64
}

// BadgerOptions configures the BadgerDB store.
type BadgerOptions struct {
	// Dir is the directory for BadgerDB data files.
	// Required unless InMemory is set.
	Dir string

	// InMemory runs BadgerDB without disk persistence.
	InMemory bool

	// Logger receives badger's warnings and errors. If nil, they are dropped.
	Logger *slog.Logger
}

// OpenBadger opens or creates a BadgerDB-backed Store.
func OpenBadger(opts BadgerOptions) (*Badger, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("blobcache: BadgerOptions.Dir is required for on-disk mode")
	}
	dir := opts.Dir
	if opts.InMemory {
		// Disk-less mode rejects a directory.
		dir = ""
	}
	db, err := badger.Open(badger.DefaultOptions(dir).
		WithInMemory(opts.InMemory).
		WithLogger(badgerLogger{opts.Logger}))
	if err != nil {
		return nil, fmt.Errorf("blobcache: open badger: %w", err)
	}
	return &Badger{db: db}, nil
}

func dbKey(key Key) []byte {
	return append(append(make([]byte, 0, len(keyPrefix)+len(key)), keyPrefix...), key[:]...)
}

// Get reads a blob.
func (b *Badger) Get(key Key) ([]byte, error) {
	var val []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(dbKey(key))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		b.misses.Add(1)
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("blobcache: get %s: %w", key, err)
	}
	b.hits.Add(1)
	return val, nil
}

// Put writes a blob.
func (b *Badger) Put(key Key, value []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(dbKey(key), value)
	})
	if err != nil {
		return fmt.Errorf("blobcache: put %s: %w", key, err)
	}
	return nil
}

// Delete removes a blob. Deleting a missing key is not an error.
func (b *Badger) Delete(key Key) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(dbKey(key))
	})
	if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("blobcache: delete %s: %w", key, err)
	}
	return nil
}

// Len counts stored blobs.
func (b *Badger) Len() (int, error) {
	n := 0
	err := b.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.PrefetchValues = false
		iterOpts.Prefix = keyPrefix
		it := txn.NewIterator(iterOpts)
		defer it.Close()
		for it.Seek(keyPrefix); it.ValidForPrefix(keyPrefix); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Stats returns hit and miss counts of this process. Len is the number of
// stored blobs, or -1 if it could not be counted.
func (b *Badger) Stats() Stats {
	n, err := b.Len()
	if err != nil {
		n = -1
	}
	hits, misses := b.hits.Load(), b.misses.Load()
	return Stats{Len: n, Hits: hits, Misses: misses, HitRate: hitRate(hits, misses)}
}

// Close flushes and closes the database.
func (b *Badger) Close() error {
	return b.db.Close()
}

// badgerLogger routes badger's log output to slog, suppressing debug and
// info messages.
type badgerLogger struct {
	l *slog.Logger
}

func (b badgerLogger) log(level slog.Level, f string, v ...any) {
	if b.l == nil || !b.l.Enabled(context.Background(), level) {
		return
	}
	b.l.Log(context.Background(), level, "badger: "+fmt.Sprintf(f, v...))
}

func (b badgerLogger) Errorf(f string, v ...any)   { b.log(slog.LevelError, f, v...) }
func (b badgerLogger) Warningf(f string, v ...any) { b.log(slog.LevelWarn, f, v...) }
func (badgerLogger) Infof(string, ...any)          {}
func (badgerLogger) Debugf(string, ...any)         {}
