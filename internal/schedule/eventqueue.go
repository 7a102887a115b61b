package schedule

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sweeney/bike-computer/internal/clock"
)

type event struct {
	due    time.Duration
	seq    uint64
	period time.Duration // zero for one-shot events
	fn     func()
}

// eventHeap orders events earliest deadline first, then by posting order.
type eventHeap []*event

func (h eventHeap) Len() int { return len(h) }
func (h eventHeap) Less(i, j int) bool {
	if h[i].due != h[j].due {
		return h[i].due < h[j].due
	}
	return h[i].seq < h[j].seq
}
func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *eventHeap) Push(x any)   { *h = append(*h, x.(*event)) }
func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// EventQueue is a single-threaded cooperative dispatcher of periodic and
// one-shot events. Handlers run one at a time on the Dispatch goroutine;
// Call and Break may be used from any goroutine.
type EventQueue struct {
	clock clock.Clock

	mu     sync.Mutex
	events eventHeap
	seq    uint64

	wake       chan struct{}
	broken     atomic.Bool
	dispatched atomic.Int64
	slips      atomic.Int64
}

// NewEventQueue creates an empty queue timed by c.
func NewEventQueue(c clock.Clock) *EventQueue {
	return &EventQueue{
		clock: c,
		wake:  make(chan struct{}, 1),
	}
}

// Every registers fn to run first after delay and then every period.
func (q *EventQueue) Every(delay, period time.Duration, fn func()) error {
	if period <= 0 {
		return fmt.Errorf("%w: event period %v must be positive", ErrInvalid, period)
	}
	if delay < 0 {
		return fmt.Errorf("%w: event delay %v must not be negative", ErrInvalid, delay)
	}
	q.post(q.clock.Now()+delay, period, fn)
	return nil
}

// Call posts fn to run once, as soon as the dispatcher is free.
func (q *EventQueue) Call(fn func()) {
	q.post(q.clock.Now(), 0, fn)
}

func (q *EventQueue) post(due, period time.Duration, fn func()) {
	q.mu.Lock()
	q.seq++
	heap.Push(&q.events, &event{due: due, seq: q.seq, period: period, fn: fn})
	q.mu.Unlock()
	q.signal()
}

func (q *EventQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// PostSchedule registers every task of s as a periodic event whose first
// release is its phase from now. Each invocation is reported to rec, which
// may be nil.
func (q *EventQueue) PostSchedule(s Schedule, bodies Bodies, rec Recorder) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if err := bodies.check(s); err != nil {
		return err
	}
	for _, t := range s.Tasks {
		id, body := t.ID, bodies[t.ID]
		err := q.Every(t.Phase, t.Period, func() {
			start := q.clock.Now()
			body()
			if rec != nil {
				rec.LogPeriodAndExecutionTime(id, start)
			}
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Dispatch runs due events until Break is called or ctx is done. It returns
// nil after Break and ctx.Err() after cancellation.
func (q *EventQueue) Dispatch(ctx context.Context) error {
	for {
		if q.broken.Load() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		q.mu.Lock()
		if len(q.events) == 0 {
			q.mu.Unlock()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-q.wake:
			}
			continue
		}

		next := q.events[0]
		now := q.clock.Now()
		if wait := next.due - now; wait > 0 {
			q.mu.Unlock()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-q.wake:
			case <-q.clock.After(wait):
			}
			continue
		}

		heap.Pop(&q.events)
		if next.period > 0 {
			next.due += next.period
			if next.due < now {
				// Backlogged: slip the period instead of running a burst.
				next.due = now
				q.slips.Add(1)
			}
			heap.Push(&q.events, next)
		}
		q.mu.Unlock()

		next.fn()
		q.dispatched.Add(1)
	}
}

// Break makes Dispatch return once the running handler, if any, completes.
func (q *EventQueue) Break() {
	q.broken.Store(true)
	q.signal()
}

// Pending returns the number of queued events.
func (q *EventQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Dispatched returns how many handlers have run.
func (q *EventQueue) Dispatched() int64 {
	return q.dispatched.Load()
}

// Slips returns how many periodic releases were pushed back because the
// dispatcher fell more than a period behind.
func (q *EventQueue) Slips() int64 {
	return q.slips.Load()
}
