package blobcache

import "errors"

// Tiered layers a fast store over a slow one. Reads try Fast first and copy
// Slow hits into Fast; writes go to both.
type Tiered struct {
	Fast Store
	Slow Store
}

// NewTiered returns a Tiered store.
func NewTiered(fast, slow Store) *Tiered {
	return &Tiered{Fast: fast, Slow: slow}
}

// Get reads from Fast, then Slow.
func (t *Tiered) Get(key Key) ([]byte, error) {
	v, err := t.Fast.Get(key)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	v, err = t.Slow.Get(key)
	if err != nil {
		return nil, err
	}
	if err := t.Fast.Put(key, v); err != nil {
		return nil, err
	}
	return v, nil
}

// Put writes to both tiers. Both writes are attempted; errors are joined.
func (t *Tiered) Put(key Key, value []byte) error {
	return errors.Join(t.Fast.Put(key, value), t.Slow.Put(key, value))
}
