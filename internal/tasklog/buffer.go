package tasklog

import "github.com/rs/zerolog/log"

// ringBuffer is a fixed-capacity FIFO of the most recent invocation records.
// Not safe for concurrent use; caller must synchronize.
type ringBuffer struct {
	buf      []Record
	capacity int
	head     int // next write position
	count    int
	overflow bool // true once the oldest record has been overwritten
}

func newRingBuffer(capacity int) *ringBuffer {
	return &ringBuffer{
		buf:      make([]Record, capacity),
		capacity: capacity,
	}
}

func (r *ringBuffer) push(rec Record) {
	if r.capacity == 0 {
		return
	}
	if r.count == r.capacity {
		if !r.overflow {
			log.Debug().Int("capacity", r.capacity).Msg("tasklog: trace full, dropping oldest")
			r.overflow = true
		}
		// Overwrite oldest: head is already pointing at it
		r.buf[r.head] = rec
		r.head = (r.head + 1) % r.capacity
		return
	}
	r.buf[r.head] = rec
	r.head = (r.head + 1) % r.capacity
	r.count++
}

// snapshot returns the buffered records oldest first without removing them.
func (r *ringBuffer) snapshot() []Record {
	if r.count == 0 {
		return nil
	}

	result := make([]Record, r.count)
	// Oldest item is at (head - count) mod capacity
	start := (r.head - r.count + r.capacity) % r.capacity
	for i := 0; i < r.count; i++ {
		result[i] = r.buf[(start+i)%r.capacity]
	}
	return result
}

func (r *ringBuffer) clear() {
	r.count = 0
	r.head = 0
	r.overflow = false
}

func (r *ringBuffer) len() int {
	return r.count
}
