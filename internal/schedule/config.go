package schedule

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// fileJSON is the on-disk schedule format. Durations use time.ParseDuration
// syntax, e.g.
//
//	{"tasks": [{"task": "gear", "period": "800ms", "phase": "0s", "computation": "100ms"}]}
type fileJSON struct {
	Tasks []taskJSON `json:"tasks"`
}

type taskJSON struct {
	Task        string `json:"task"`
	Period      string `json:"period"`
	Phase       string `json:"phase,omitempty"`
	Computation string `json:"computation"`
}

// LoadSchedule decodes and validates a schedule from r.
func LoadSchedule(r io.Reader) (Schedule, error) {
	var f fileJSON
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return Schedule{}, fmt.Errorf("decode schedule: %w", err)
	}

	var s Schedule
	for i, tj := range f.Tasks {
		id, err := ParseTaskID(tj.Task)
		if err != nil {
			return Schedule{}, fmt.Errorf("task %d: %w", i, err)
		}
		period, err := parseDuration(tj.Period)
		if err != nil {
			return Schedule{}, fmt.Errorf("task %s period: %w", id, err)
		}
		phase, err := parseDuration(tj.Phase)
		if err != nil {
			return Schedule{}, fmt.Errorf("task %s phase: %w", id, err)
		}
		comp, err := parseDuration(tj.Computation)
		if err != nil {
			return Schedule{}, fmt.Errorf("task %s computation: %w", id, err)
		}
		s.Tasks = append(s.Tasks, TaskSpec{ID: id, Period: period, Phase: phase, Computation: comp})
	}

	if err := s.Validate(); err != nil {
		return Schedule{}, err
	}
	return s, nil
}

// LoadScheduleFile reads a schedule from the JSON file at path.
func LoadScheduleFile(path string) (Schedule, error) {
	f, err := os.Open(path)
	if err != nil {
		return Schedule{}, fmt.Errorf("open schedule: %w", err)
	}
	defer f.Close()
	return LoadSchedule(f)
}

// MarshalJSON encodes the schedule in the format LoadSchedule accepts.
func (s Schedule) MarshalJSON() ([]byte, error) {
	f := fileJSON{Tasks: make([]taskJSON, 0, len(s.Tasks))}
	for _, t := range s.Tasks {
		f.Tasks = append(f.Tasks, taskJSON{
			Task:        t.ID.String(),
			Period:      t.Period.String(),
			Phase:       t.Phase.String(),
			Computation: t.Computation.String(),
		})
	}
	return json.Marshal(f)
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return d, nil
}
