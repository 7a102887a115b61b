// Package tasklog measures the observed period and computation time of every
// scheduled task so schedules can be verified against their declarations.
package tasklog

import (
	"sync"
	"time"

	"github.com/sweeney/bike-computer/internal/clock"
	"github.com/sweeney/bike-computer/internal/schedule"
)

// DefaultTraceSize is the number of invocation records kept by New.
const DefaultTraceSize = 256

// Record is one measured task invocation.
type Record struct {
	Task        schedule.TaskID
	Start       time.Duration
	Period      time.Duration // zero on the first invocation
	Computation time.Duration
}

// Stats aggregates the invocations of one task.
type Stats struct {
	Count            int
	LastStart        time.Duration
	Period           time.Duration
	Computation      time.Duration
	MinPeriod        time.Duration
	MaxPeriod        time.Duration
	MaxComputation   time.Duration
	TotalComputation time.Duration
}

// Logger implements schedule.Recorder. It is safe for concurrent use so a
// query path can read results while the scheduler writes them.
type Logger struct {
	clock clock.Clock

	mu       sync.Mutex
	enabled  bool
	tasks    [schedule.NumTasks]Stats
	trace    *ringBuffer
	first    time.Duration
	last     time.Duration
	observed bool
}

// New creates an enabled Logger keeping the last DefaultTraceSize records.
func New(c clock.Clock) *Logger {
	return NewWithTrace(c, DefaultTraceSize)
}

// NewWithTrace creates an enabled Logger keeping the last traceSize records.
func NewWithTrace(c clock.Clock, traceSize int) *Logger {
	if traceSize < 0 {
		traceSize = 0
	}
	return &Logger{
		clock:   c,
		enabled: true,
		trace:   newRingBuffer(traceSize),
	}
}

// Enable turns recording on or off. While disabled LogPeriodAndExecutionTime
// has no effect.
func (l *Logger) Enable(on bool) {
	l.mu.Lock()
	l.enabled = on
	l.mu.Unlock()
}

// Enabled reports whether recording is on.
func (l *Logger) Enabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enabled
}

// LogPeriodAndExecutionTime records an invocation of id that started at
// start and has just finished.
func (l *Logger) LogPeriodAndExecutionTime(id schedule.TaskID, start time.Duration) {
	if !id.Valid() {
		return
	}
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.enabled {
		return
	}

	st := &l.tasks[id]
	rec := Record{Task: id, Start: start, Computation: now - start}
	if st.Count > 0 {
		rec.Period = start - st.LastStart
		st.Period = rec.Period
		if st.Count == 1 || rec.Period < st.MinPeriod {
			st.MinPeriod = rec.Period
		}
		if rec.Period > st.MaxPeriod {
			st.MaxPeriod = rec.Period
		}
	}
	st.Count++
	st.LastStart = start
	st.Computation = rec.Computation
	st.TotalComputation += rec.Computation
	if rec.Computation > st.MaxComputation {
		st.MaxComputation = rec.Computation
	}

	if !l.observed || start < l.first {
		l.first = start
	}
	if now > l.last {
		l.last = now
	}
	l.observed = true

	l.trace.push(rec)
}

// Period returns the last observed period of id.
func (l *Logger) Period(id schedule.TaskID) time.Duration {
	return l.Stats(id).Period
}

// ComputationTime returns the last observed computation time of id.
func (l *Logger) ComputationTime(id schedule.TaskID) time.Duration {
	return l.Stats(id).Computation
}

// Stats returns the aggregate measurements of id.
func (l *Logger) Stats(id schedule.TaskID) Stats {
	if !id.Valid() {
		return Stats{}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tasks[id]
}

// Trace returns the most recent invocation records, oldest first.
func (l *Logger) Trace() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.trace.snapshot()
}

// Utilization returns the fraction of the observed window spent inside
// task bodies, from the first recorded start to the latest recorded end.
func (l *Logger) Utilization() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	window := l.last - l.first
	if !l.observed || window <= 0 {
		return 0
	}
	var busy time.Duration
	for _, st := range l.tasks {
		busy += st.TotalComputation
	}
	return float64(busy) / float64(window)
}

// Reset forgets every measurement. The enabled state is kept.
func (l *Logger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tasks = [schedule.NumTasks]Stats{}
	l.trace.clear()
	l.first, l.last, l.observed = 0, 0, false
}
