package blobcache

import (
	"errors"
	"testing"
)

func TestKeyOf(t *testing.T) {
	if KeyOf("ab", "c") == KeyOf("a", "bc") {
		t.Error("KeyOf does not separate parts")
	}
	if KeyOf("x") != KeyOf("x") {
		t.Error("KeyOf is not deterministic")
	}
	if len(KeyOf().String()) != 64 {
		t.Errorf("String() = %q, want 64 hex digits", KeyOf().String())
	}
}

func TestLRUList(t *testing.T) {
	var l lruList[int]
	a := l.PushFront(1)
	l.PushFront(2)
	c := l.PushFront(3)

	l.MoveToFront(a) // order: 1 3 2
	if k, _ := l.RemoveOldest(); k != 2 {
		t.Errorf("oldest = %d, want 2", k)
	}
	l.Remove(c)
	if l.Len() != 1 {
		t.Fatalf("Len = %d, want 1", l.Len())
	}
	if k, _ := l.RemoveOldest(); k != 1 {
		t.Errorf("oldest = %d, want 1", k)
	}
	if _, ok := l.RemoveOldest(); ok {
		t.Error("RemoveOldest on empty list succeeded")
	}
}

// =============================================================================
// Memory
// =============================================================================

func TestMemory_GetPut(t *testing.T) {
	m := NewMemory(0)
	k := KeyOf("spirv", "fn main() {}")

	if _, err := m.Get(k); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get on empty = %v, want ErrNotFound", err)
	}
	if err := m.Put(k, []byte{1, 2, 3}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	v, err := m.Get(k)
	if err != nil || len(v) != 3 {
		t.Fatalf("Get = %v, %v", v, err)
	}

	st := m.Stats()
	if st.Hits != 1 || st.Misses != 1 || st.Len != 1 || st.HitRate != 0.5 {
		t.Errorf("Stats = %+v", st)
	}
	if !m.Delete(k) || m.Delete(k) {
		t.Error("Delete should succeed exactly once")
	}
}

func TestMemory_EvictsLeastRecentlyUsed(t *testing.T) {
	m := NewMemory(2)

	// Collect three keys that land in the same shard.
	var keys []Key
	target := m.shard(KeyOf("0"))
	for i := 0; len(keys) < 3; i++ {
		k := KeyOf(string(rune('a' + i%26)), string(rune('0' + i/26)))
		if m.shard(k) == target {
			keys = append(keys, k)
		}
	}

	_ = m.Put(keys[0], []byte("0"))
	_ = m.Put(keys[1], []byte("1"))
	if _, err := m.Get(keys[0]); err != nil { // keys[1] becomes oldest
		t.Fatalf("Get: %v", err)
	}
	_ = m.Put(keys[2], []byte("2"))

	if _, err := m.Get(keys[1]); !errors.Is(err, ErrNotFound) {
		t.Error("least recently used entry was not evicted")
	}
	if _, err := m.Get(keys[0]); err != nil {
		t.Error("recently used entry was evicted")
	}
	if m.Stats().Evictions != 1 {
		t.Errorf("Evictions = %d, want 1", m.Stats().Evictions)
	}
}

func TestMemory_ConcurrentAccess(t *testing.T) {
	m := NewMemory(8)
	done := make(chan struct{})
	for g := range 8 {
		go func() {
			defer func() { done <- struct{}{} }()
			for i := range 200 {
				k := KeyOf(string(rune('a'+g)), string(rune(i)))
				_ = m.Put(k, []byte{byte(i)})
				_, _ = m.Get(k)
			}
		}()
	}
	for range 8 {
		<-done
	}
	if m.Len() > 8*shardCount {
		t.Errorf("Len = %d exceeds capacity %d", m.Len(), 8*shardCount)
	}
}

// =============================================================================
// Tiered
// =============================================================================

func TestTiered_PromotesSlowHits(t *testing.T) {
	fast, slow := NewMemory(4), NewMemory(4)
	tiered := NewTiered(fast, slow)
	k := KeyOf("k")

	_ = slow.Put(k, []byte("v"))
	v, err := tiered.Get(k)
	if err != nil || string(v) != "v" {
		t.Fatalf("Get = %q, %v", v, err)
	}
	if _, err := fast.Get(k); err != nil {
		t.Error("slow hit was not promoted to the fast tier")
	}

	k2 := KeyOf("k2")
	if err := tiered.Put(k2, []byte("w")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := slow.Get(k2); err != nil {
		t.Error("Put did not reach the slow tier")
	}
	if _, err := tiered.Get(KeyOf("missing")); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing Get = %v, want ErrNotFound", err)
	}
}
