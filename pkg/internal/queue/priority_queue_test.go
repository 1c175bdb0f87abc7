package queue

import (
	"testing"
	"time"
)

func TestQueueOrdering(t *testing.T) {
	base := time.Unix(1000, 0)
	q := New[string]()
	q.Push("late", 0, base.Add(30*time.Millisecond))
	q.Push("early", 0, base.Add(10*time.Millisecond))
	q.Push("tie-low", 0, base.Add(20*time.Millisecond))
	q.Push("tie-high", 5, base.Add(20*time.Millisecond))
	q.Push("tie-low-2", 0, base.Add(20*time.Millisecond))

	if _, ok := q.NextReady(base); ok {
		t.Fatal("nothing should be ready yet")
	}

	want := []string{"early", "tie-high", "tie-low", "tie-low-2", "late"}
	now := base.Add(time.Second)
	for i, w := range want {
		got, ok := q.NextReady(now)
		if !ok || got != w {
			t.Errorf("item %d = %q (%v), want %q", i, got, ok, w)
		}
	}
	if q.Len() != 0 {
		t.Errorf("Len = %d, want 0", q.Len())
	}
}

func TestQueueRemoveFunc(t *testing.T) {
	base := time.Unix(0, 0)
	q := New[int]()
	for i := 0; i < 10; i++ {
		q.Push(i, 0, base.Add(time.Duration(i)*time.Millisecond))
	}
	if n := q.RemoveFunc(func(v int) bool { return v%2 == 0 }); n != 5 {
		t.Errorf("removed %d, want 5", n)
	}
	if q.Contains(func(v int) bool { return v == 4 }) {
		t.Error("4 should be gone")
	}
	if !q.Contains(func(v int) bool { return v == 5 }) {
		t.Error("5 should remain")
	}
	prev := -1
	for {
		v, ok := q.NextReady(base.Add(time.Second))
		if !ok {
			break
		}
		if v%2 == 0 || v < prev {
			t.Errorf("unexpected order: %d after %d", v, prev)
		}
		prev = v
	}
}

func TestQueuePeekAndClear(t *testing.T) {
	q := New[int]()
	if _, ok := q.Peek(); ok {
		t.Error("Peek on empty queue")
	}
	due := time.Unix(5, 0)
	q.Push(7, 0, due)
	it, ok := q.Peek()
	if !ok || it.Value != 7 || !it.Due.Equal(due) {
		t.Errorf("Peek = %+v", it)
	}
	q.Clear()
	if q.Len() != 0 {
		t.Error("Clear left items")
	}
}
