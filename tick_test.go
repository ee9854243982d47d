package progc

import (
	"slices"
	"testing"
)

func TestTickQueue_SnapshotThenDrain(t *testing.T) {
	var q tickQueue
	a, b := newToken("a", PriorityHigh), newToken("b", PriorityLow)

	var order []string
	q.runAtNextTick(PriorityLow, b, func() {
		order = append(order, "b")
		// Added mid-drain: belongs to the next batch.
		q.runAtNextTick(PriorityHigh, a, func() { order = append(order, "late") })
	})
	q.runAtNextTick(PriorityHigh, a, func() { order = append(order, "a") })

	for _, op := range q.take() {
		op.run()
	}
	if !slices.Equal(order, []string{"b", "a"}) {
		t.Fatalf("first drain = %v, want insertion order [b a]", order)
	}
	if q.len() != 1 {
		t.Fatalf("len = %d, want 1 late op", q.len())
	}
	for _, op := range q.take() {
		op.run()
	}
	if !slices.Equal(order, []string{"b", "a", "late"}) {
		t.Errorf("second drain = %v", order)
	}
}

func TestTickQueue_Cancel(t *testing.T) {
	var q tickQueue
	a, b := newToken("a", PriorityHigh), newToken("b", PriorityHigh)
	q.runAtNextTick(PriorityHigh, a, func() {})
	q.runAtNextTick(PriorityHigh, b, func() {})
	q.runAtNextTick(PriorityHigh, a, func() {})

	if !q.cancel(a) {
		t.Fatal("cancel(a) = false")
	}
	if q.cancel(a) {
		t.Error("second cancel(a) = true")
	}
	ops := q.take()
	if len(ops) != 1 || ops[0].token != b {
		t.Errorf("remaining ops = %+v, want only b", ops)
	}
}

func TestOutstandingSet_Settled(t *testing.T) {
	o := newOutstandingSet()
	if !o.settled(PriorityHigh) || !o.settled(PriorityLow) {
		t.Fatal("empty set not settled")
	}

	low := newToken("low", PriorityLow)
	o.add(low)
	o.add(low)
	if o.len() != 1 {
		t.Errorf("len = %d after double add", o.len())
	}
	if !o.settled(PriorityHigh) {
		t.Error("low token blocks the high threshold")
	}
	if o.settled(PriorityLow) {
		t.Error("low token does not block the low threshold")
	}

	high := newToken("high", PriorityHigh)
	o.add(high)
	if o.settled(PriorityHigh) {
		t.Error("high token does not block the high threshold")
	}

	o.remove(high)
	o.remove(high)
	o.remove(low)
	if !o.settled(PriorityLow) || o.len() != 0 {
		t.Errorf("set not empty after removals: len %d", o.len())
	}
}
