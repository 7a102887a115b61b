// Package schedule implements the static cyclic executive of the bike
// computer: task set configuration, feasibility analysis, and the two
// dispatch strategies (a timed super-loop and an event queue).
package schedule

import (
	"errors"
	"fmt"
	"time"
)

// TaskID identifies one periodic task. Values double as TaskLogger indices.
type TaskID int

const (
	TaskGear TaskID = iota
	TaskSpeed
	TaskTemperature
	TaskReset
	TaskDisplay1
	TaskDisplay2

	// NumTasks is the number of distinct task identities.
	NumTasks = int(TaskDisplay2) + 1
)

var taskNames = [NumTasks]string{
	TaskGear:        "gear",
	TaskSpeed:       "speed",
	TaskTemperature: "temperature",
	TaskReset:       "reset",
	TaskDisplay1:    "display1",
	TaskDisplay2:    "display2",
}

// String returns the configuration name of the task.
func (id TaskID) String() string {
	if !id.Valid() {
		return fmt.Sprintf("task(%d)", int(id))
	}
	return taskNames[id]
}

// Valid reports whether id names a known task.
func (id TaskID) Valid() bool {
	return id >= 0 && int(id) < NumTasks
}

// ParseTaskID maps a configuration name back to its TaskID.
func ParseTaskID(name string) (TaskID, error) {
	for i, n := range taskNames {
		if n == name {
			return TaskID(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown task %q", ErrInvalid, name)
}

// TaskSpec declares one periodic task.
type TaskSpec struct {
	ID          TaskID
	Period      time.Duration
	Phase       time.Duration // offset of the first release from cycle start
	Computation time.Duration // worst-case computation time
}

var (
	// ErrInvalid is returned for a malformed task set.
	ErrInvalid = errors.New("invalid schedule")
	// ErrInfeasible is returned when the static table cannot meet every deadline.
	ErrInfeasible = errors.New("infeasible schedule")
)

// maxMajorCycle bounds the table size for pathological period combinations.
const maxMajorCycle = time.Hour

// Schedule is an immutable ordered task set. Declaration order breaks ties
// between tasks released at the same instant.
type Schedule struct {
	Tasks []TaskSpec
}

// DefaultSchedule is the two-display task set, laid out so the static table
// has no jitter and exactly fills its 1600ms major cycle.
func DefaultSchedule() Schedule {
	return Schedule{Tasks: []TaskSpec{
		{ID: TaskGear, Period: 800 * time.Millisecond, Phase: 0, Computation: 100 * time.Millisecond},
		{ID: TaskSpeed, Period: 400 * time.Millisecond, Phase: 100 * time.Millisecond, Computation: 200 * time.Millisecond},
		{ID: TaskTemperature, Period: 1600 * time.Millisecond, Phase: 1100 * time.Millisecond, Computation: 100 * time.Millisecond},
		{ID: TaskReset, Period: 800 * time.Millisecond, Phase: 700 * time.Millisecond, Computation: 100 * time.Millisecond},
		{ID: TaskDisplay1, Period: 1600 * time.Millisecond, Phase: 300 * time.Millisecond, Computation: 200 * time.Millisecond},
		{ID: TaskDisplay2, Period: 1600 * time.Millisecond, Phase: 1200 * time.Millisecond, Computation: 100 * time.Millisecond},
	}}
}

// SingleDisplaySchedule is the event-queue task set with one display task
// rendering every field. Its declared load exceeds one, so it has no static
// table and only runs on the EventQueue.
func SingleDisplaySchedule() Schedule {
	return Schedule{Tasks: []TaskSpec{
		{ID: TaskGear, Period: 800 * time.Millisecond, Phase: 0, Computation: 100 * time.Millisecond},
		{ID: TaskSpeed, Period: 400 * time.Millisecond, Phase: 0, Computation: 200 * time.Millisecond},
		{ID: TaskTemperature, Period: 1600 * time.Millisecond, Phase: 1100 * time.Millisecond, Computation: 100 * time.Millisecond},
		{ID: TaskReset, Period: 800 * time.Millisecond, Phase: 700 * time.Millisecond, Computation: 100 * time.Millisecond},
		{ID: TaskDisplay1, Period: 1600 * time.Millisecond, Phase: 300 * time.Millisecond, Computation: 500 * time.Millisecond},
	}}
}

// Validate checks the structural constraints of every task: positive period,
// phase before the first deadline, computation within the period, and each
// task declared at most once.
func (s Schedule) Validate() error {
	if len(s.Tasks) == 0 {
		return fmt.Errorf("%w: no tasks", ErrInvalid)
	}
	var seen [NumTasks]bool
	for i, t := range s.Tasks {
		if !t.ID.Valid() {
			return fmt.Errorf("%w: task %d has unknown id %d", ErrInvalid, i, int(t.ID))
		}
		if seen[t.ID] {
			return fmt.Errorf("%w: task %s declared twice", ErrInvalid, t.ID)
		}
		seen[t.ID] = true
		if t.Period <= 0 {
			return fmt.Errorf("%w: task %s period %v must be positive", ErrInvalid, t.ID, t.Period)
		}
		if t.Phase < 0 || t.Phase >= t.Period {
			return fmt.Errorf("%w: task %s phase %v not in [0, %v)", ErrInvalid, t.ID, t.Phase, t.Period)
		}
		if t.Computation <= 0 || t.Computation > t.Period {
			return fmt.Errorf("%w: task %s computation %v not in (0, %v]", ErrInvalid, t.ID, t.Computation, t.Period)
		}
	}
	if _, err := s.MajorCycle(); err != nil {
		return err
	}
	return nil
}

// Has reports whether the task set declares id.
func (s Schedule) Has(id TaskID) bool {
	_, ok := s.Task(id)
	return ok
}

// Task returns the declaration of id.
func (s Schedule) Task(id TaskID) (TaskSpec, bool) {
	for _, t := range s.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return TaskSpec{}, false
}

// Utilization returns the declared processor load, the sum of computation
// over period for every task.
func (s Schedule) Utilization() float64 {
	var u float64
	for _, t := range s.Tasks {
		u += float64(t.Computation) / float64(t.Period)
	}
	return u
}

// MajorCycle returns the least common multiple of all task periods.
func (s Schedule) MajorCycle() (time.Duration, error) {
	if len(s.Tasks) == 0 {
		return 0, fmt.Errorf("%w: no tasks", ErrInvalid)
	}
	m := s.Tasks[0].Period
	for _, t := range s.Tasks[1:] {
		g := gcd(m, t.Period)
		if m/g > maxMajorCycle/t.Period {
			return 0, fmt.Errorf("%w: major cycle exceeds %v", ErrInvalid, maxMajorCycle)
		}
		m = m / g * t.Period
	}
	if m > maxMajorCycle {
		return 0, fmt.Errorf("%w: major cycle %v exceeds %v", ErrInvalid, m, maxMajorCycle)
	}
	return m, nil
}

func gcd(a, b time.Duration) time.Duration {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
