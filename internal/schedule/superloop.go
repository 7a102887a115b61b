package schedule

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sweeney/bike-computer/internal/clock"
)

// Recorder receives one measurement per task invocation.
type Recorder interface {
	LogPeriodAndExecutionTime(id TaskID, start time.Duration)
}

// Bodies maps each task to the function that does its work.
type Bodies map[TaskID]func()

func (b Bodies) check(s Schedule) error {
	for _, t := range s.Tasks {
		if b[t.ID] == nil {
			return fmt.Errorf("%w: no body for task %s", ErrInvalid, t.ID)
		}
	}
	return nil
}

// SuperLoop runs the static table cycle after cycle on the calling
// goroutine. Each slot waits for its start time, runs its body, then holds
// the processor until its computation budget is spent so measured timings
// match the declared table.
type SuperLoop struct {
	clock  clock.Clock
	table  Table
	bodies Bodies
	rec    Recorder

	stop     atomic.Bool
	cycles   atomic.Int64
	overruns atomic.Int64
}

// NewSuperLoop builds the static table for s and checks every task has a body.
// rec may be nil.
func NewSuperLoop(s Schedule, c clock.Clock, bodies Bodies, rec Recorder) (*SuperLoop, error) {
	table, err := s.Table()
	if err != nil {
		return nil, err
	}
	if err := bodies.check(s); err != nil {
		return nil, err
	}
	return &SuperLoop{clock: c, table: table, bodies: bodies, rec: rec}, nil
}

// Table returns the static interleaving being executed.
func (l *SuperLoop) Table() Table {
	return l.table
}

// Run executes major cycles until Stop is observed at a cycle boundary or
// ctx is done. It returns nil after Stop and ctx.Err() after cancellation.
func (l *SuperLoop) Run(ctx context.Context) error {
	cycleStart := l.clock.Now()
	for {
		for _, sl := range l.table.Slots {
			if err := clock.SleepUntil(ctx, l.clock, cycleStart+sl.Start); err != nil {
				return err
			}

			start := l.clock.Now()
			l.bodies[sl.Task]()

			budgetEnd := start + sl.Computation
			if now := l.clock.Now(); now > budgetEnd {
				l.overruns.Add(1)
				log.Warn().
					Str("task", sl.Task.String()).
					Dur("budget", sl.Computation).
					Dur("took", now-start).
					Msg("task overran computation budget")
			} else if err := clock.SleepUntil(ctx, l.clock, budgetEnd); err != nil {
				return err
			}

			if l.rec != nil {
				l.rec.LogPeriodAndExecutionTime(sl.Task, start)
			}
		}

		l.cycles.Add(1)
		if l.stop.Load() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		// An overrun that spills past the cycle end shifts the next cycle
		// rather than bursting to catch up.
		cycleStart = max(cycleStart+l.table.MajorCycle, l.clock.Now())
		if err := clock.SleepUntil(ctx, l.clock, cycleStart); err != nil {
			return err
		}
	}
}

// Stop asks Run to return at the end of the current major cycle.
func (l *SuperLoop) Stop() {
	l.stop.Store(true)
}

// Cycles returns the number of completed major cycles.
func (l *SuperLoop) Cycles() int64 {
	return l.cycles.Load()
}

// Overruns returns how many task invocations exceeded their budget.
func (l *SuperLoop) Overruns() int64 {
	return l.overruns.Load()
}
