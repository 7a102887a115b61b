package tasklog

import (
	"testing"
	"time"

	"github.com/sweeney/bike-computer/internal/schedule"
)

func rec(i int) Record {
	return Record{Task: schedule.TaskGear, Start: time.Duration(i) * time.Millisecond}
}

func TestRingBufferEmptySnapshot(t *testing.T) {
	rb := newRingBuffer(10)
	if got := rb.snapshot(); got != nil {
		t.Errorf("expected nil from empty snapshot, got %d items", len(got))
	}
}

func TestRingBufferPushAndSnapshot(t *testing.T) {
	rb := newRingBuffer(10)
	for i := 0; i < 5; i++ {
		rb.push(rec(i))
	}

	got := rb.snapshot()
	if len(got) != 5 {
		t.Fatalf("expected 5 items, got %d", len(got))
	}
	for i := 0; i < 5; i++ {
		if got[i].Start != time.Duration(i)*time.Millisecond {
			t.Errorf("item %d: expected start %dms, got %v", i, i, got[i].Start)
		}
	}

	// Snapshot does not consume
	if rb.len() != 5 {
		t.Errorf("len after snapshot: got %d, want 5", rb.len())
	}
}

func TestRingBufferOverflow(t *testing.T) {
	cap := 5
	rb := newRingBuffer(cap)

	// Push cap+3 items (0..7), buffer should keep the most recent 5 (3..7)
	for i := 0; i < cap+3; i++ {
		rb.push(rec(i))
	}
	if !rb.overflow {
		t.Error("expected overflow flag after wrapping")
	}

	got := rb.snapshot()
	if len(got) != cap {
		t.Fatalf("expected %d items, got %d", cap, len(got))
	}
	for i := 0; i < cap; i++ {
		want := time.Duration(i+3) * time.Millisecond
		if got[i].Start != want {
			t.Errorf("item %d: expected start %v, got %v", i, want, got[i].Start)
		}
	}
}

func TestRingBufferClear(t *testing.T) {
	rb := newRingBuffer(3)
	for i := 0; i < 4; i++ {
		rb.push(rec(i))
	}
	rb.clear()

	if rb.len() != 0 || rb.overflow {
		t.Errorf("after clear: len=%d overflow=%v", rb.len(), rb.overflow)
	}

	rb.push(rec(9))
	got := rb.snapshot()
	if len(got) != 1 || got[0].Start != 9*time.Millisecond {
		t.Errorf("after clear and push: got %+v", got)
	}
}

func TestRingBufferZeroCapacity(t *testing.T) {
	rb := newRingBuffer(0)
	rb.push(rec(1))
	if rb.len() != 0 {
		t.Errorf("len: got %d, want 0", rb.len())
	}
}
