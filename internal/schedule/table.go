package schedule

import (
	"fmt"
	"sort"
	"time"
)

// Slot is one task invocation in the static table, times relative to the
// start of the major cycle.
type Slot struct {
	Task        TaskID
	Release     time.Duration
	Start       time.Duration
	Computation time.Duration
	Deadline    time.Duration
}

// End returns the instant the slot's computation budget is used up.
func (s Slot) End() time.Duration {
	return s.Start + s.Computation
}

// Jitter returns how late the slot starts relative to its release.
func (s Slot) Jitter() time.Duration {
	return s.Start - s.Release
}

// Table is the precomputed interleaving of one major cycle.
type Table struct {
	MajorCycle time.Duration
	Slots      []Slot
}

// MaxJitter returns the largest start delay of any slot.
func (t Table) MaxJitter() time.Duration {
	var j time.Duration
	for _, s := range t.Slots {
		if s.Jitter() > j {
			j = s.Jitter()
		}
	}
	return j
}

// Table builds the static interleaving: every release phase+k*period inside
// one major cycle, ordered by release time, each slot starting when both its
// release has passed and the previous slot has finished. It fails with
// ErrInfeasible if any slot ends after its deadline or the table overruns
// the major cycle.
func (s Schedule) Table() (Table, error) {
	if err := s.Validate(); err != nil {
		return Table{}, err
	}
	major, _ := s.MajorCycle()

	var slots []Slot
	for _, t := range s.Tasks {
		for r := t.Phase; r < major; r += t.Period {
			slots = append(slots, Slot{
				Task:        t.ID,
				Release:     r,
				Computation: t.Computation,
				Deadline:    r + t.Period,
			})
		}
	}
	// Stable so simultaneous releases keep declaration order.
	sort.SliceStable(slots, func(i, j int) bool {
		return slots[i].Release < slots[j].Release
	})

	var end time.Duration
	for i := range slots {
		sl := &slots[i]
		sl.Start = max(sl.Release, end)
		end = sl.End()
		if end > sl.Deadline {
			return Table{}, fmt.Errorf("%w: %s released at %v ends at %v after deadline %v",
				ErrInfeasible, sl.Task, sl.Release, end, sl.Deadline)
		}
	}
	if end > major {
		return Table{}, fmt.Errorf("%w: table ends at %v after major cycle %v", ErrInfeasible, end, major)
	}

	return Table{MajorCycle: major, Slots: slots}, nil
}
