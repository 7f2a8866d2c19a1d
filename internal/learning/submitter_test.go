package learning

import (
	"testing"
	"time"
)

func TestSubmitterWritesQueuedSamples(t *testing.T) {
	store := New(t.TempDir())
	sub := NewSubmitter(store, 8, nil)

	for i := 0; i < 5; i++ {
		if !sub.Enqueue(points(), "hello") {
			t.Fatalf("Enqueue %d = false", i)
		}
	}
	sub.Close()

	if store.CountFor("hello") != 5 {
		t.Errorf("CountFor() = %d, want 5", store.CountFor("hello"))
	}
	if st := sub.Stats(); st.Accepted != 5 || st.Dropped != 0 {
		t.Errorf("Stats() = %+v", st)
	}
}

func TestSubmitterNeverBlocks(t *testing.T) {
	store := New(t.TempDir())
	sub := NewSubmitter(store, 1, nil)
	defer sub.Close()

	start := time.Now()
	for i := 0; i < 1000; i++ {
		sub.Enqueue(points(), "fast")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("1000 enqueues took %v", elapsed)
	}
}

func TestSubmitterClosed(t *testing.T) {
	sub := NewSubmitter(New(t.TempDir()), 4, nil)
	sub.Close()
	sub.Close()

	if sub.Enqueue(points(), "late") {
		t.Error("Enqueue after Close = true")
	}
}
