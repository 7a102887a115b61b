// Package bike wires the rider inputs, the speedometer, the ambient sensor
// and the display to one of the two scheduling strategies.
package bike

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sweeney/bike-computer/internal/clock"
	"github.com/sweeney/bike-computer/internal/display"
	"github.com/sweeney/bike-computer/internal/gpio"
	"github.com/sweeney/bike-computer/internal/input"
	"github.com/sweeney/bike-computer/internal/schedule"
	"github.com/sweeney/bike-computer/internal/sensor"
	"github.com/sweeney/bike-computer/internal/speedometer"
	"github.com/sweeney/bike-computer/internal/status"
	"github.com/sweeney/bike-computer/internal/tasklog"
)

// Strategy selects how the task set is executed.
type Strategy string

const (
	// StrategySuperLoop runs the precomputed static table, padding every
	// task to its computation budget.
	StrategySuperLoop Strategy = "super-loop"
	// StrategyEventQueue posts every task as a periodic event and reacts
	// to input changes between releases.
	StrategyEventQueue Strategy = "event-queue"
)

// ErrRunning is returned by Start when the system is already running.
var ErrRunning = errors.New("bike system already running")

// ParseStrategy maps a flag value to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategySuperLoop, StrategyEventQueue:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("unknown strategy %q (want %q or %q)", s, StrategySuperLoop, StrategyEventQueue)
}

// Config is the static configuration of a System.
type Config struct {
	Strategy    Strategy
	Schedule    schedule.Schedule
	Speedometer speedometer.Config

	// TraceSize bounds the task invocation trace. Zero uses the default.
	TraceSize int

	// Labels reported in status output.
	DisplayName string
	SensorName  string
}

// DefaultConfig returns the two-display super-loop configuration.
func DefaultConfig() Config {
	return Config{
		Strategy:    StrategySuperLoop,
		Schedule:    schedule.DefaultSchedule(),
		Speedometer: speedometer.DefaultConfig(),
	}
}

// Deps are the collaborators of a System. A nil Sensor means no sensor is
// fitted; a nil Display discards output.
type Deps struct {
	Clock   clock.Clock
	Sensor  sensor.Sensor
	Display display.Sink
}

// System is one bike computer. Task bodies run on a single executor; the
// input sources may be driven from any goroutine.
type System struct {
	cfg         Config
	clock       clock.Clock
	sensor      sensor.Sensor
	display     display.Sink
	hasDisplay2 bool
	majorCycle  time.Duration

	gear    *input.Gear
	cadence *input.Cadence
	reset   *input.Reset
	speedo  *speedometer.Speedometer
	tracker *status.Tracker
	tasks   *tasklog.Logger
	bodies  schedule.Bodies

	sensorOK bool

	mu      sync.Mutex
	running bool
	stopped bool
	stopper func()

	pollMu sync.Mutex
	levels gpio.Levels
}

// New validates cfg and builds a System. Nothing runs until Start.
func New(cfg Config, deps Deps) (*System, error) {
	if deps.Clock == nil {
		return nil, errors.New("bike: nil clock")
	}
	if err := cfg.Schedule.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Strategy {
	case StrategySuperLoop:
		// The static table must be feasible before anything starts.
		if _, err := cfg.Schedule.Table(); err != nil {
			return nil, err
		}
	case StrategyEventQueue:
		if u := cfg.Schedule.Utilization(); u > 1 {
			log.Warn().Float64("utilization", u).Msg("schedule overloads the processor, releases will slip")
		}
	default:
		return nil, fmt.Errorf("unknown strategy %q", cfg.Strategy)
	}
	major, err := cfg.Schedule.MajorCycle()
	if err != nil {
		return nil, err
	}

	speedo, err := speedometer.New(deps.Clock, cfg.Speedometer)
	if err != nil {
		return nil, err
	}
	traceSize := cfg.TraceSize
	if traceSize == 0 {
		traceSize = tasklog.DefaultTraceSize
	}

	s := &System{
		cfg:         cfg,
		clock:       deps.Clock,
		sensor:      deps.Sensor,
		display:     deps.Display,
		hasDisplay2: cfg.Schedule.Has(schedule.TaskDisplay2),
		majorCycle:  major,
		gear:        input.NewGear(),
		cadence:     input.NewCadence(),
		reset:       input.NewReset(),
		speedo:      speedo,
		tasks:       tasklog.NewWithTrace(deps.Clock, traceSize),
	}
	if s.display == nil {
		s.display = display.Discard{}
	}
	s.tracker = status.NewTracker(time.Now(), status.Config{
		Strategy:     string(cfg.Strategy),
		Display:      cfg.DisplayName,
		Sensor:       cfg.SensorName,
		MajorCycleMs: major.Milliseconds(),
		Utilization:  cfg.Schedule.Utilization(),
	})
	s.tracker.SetGear(s.gear.Gear(), s.gear.Size())
	s.tracker.SetMotion(s.cadence.Period(), speedo.Speed(), 0)
	s.bodies = s.taskBodies()
	return s, nil
}

// Start initialises the peripherals and executes the schedule until Stop
// is called or ctx is done. It returns nil after Stop and ctx.Err() after
// cancellation.
func (s *System) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrRunning
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.stopper = nil
		s.mu.Unlock()
	}()

	s.init()

	log.Info().
		Str("strategy", string(s.cfg.Strategy)).
		Int("tasks", len(s.cfg.Schedule.Tasks)).
		Dur("major_cycle", s.majorCycle).
		Msg("starting bike system")

	var err error
	switch s.cfg.Strategy {
	case StrategySuperLoop:
		err = s.runSuperLoop(ctx)
	case StrategyEventQueue:
		err = s.runEventQueue(ctx)
	}

	log.Info().
		Float64("utilization", s.tasks.Utilization()).
		Int("resets", s.tracker.Snapshot().Resets).
		Msg("bike system stopped")
	return err
}

func (s *System) init() {
	if err := s.display.Init(); err != nil {
		log.Error().Err(err).Msg("display init failed, output discarded")
		s.display = display.Discard{}
	}
	displayOK := true
	if _, ok := s.display.(display.Discard); ok {
		displayOK = false
	}

	s.sensorOK = false
	if s.sensor != nil {
		if err := s.sensor.Init(); err != nil {
			log.Error().Err(err).Msg("sensor not present or initialization failed")
		} else {
			s.sensorOK = true
		}
	}
	s.tracker.SetDevices(s.sensorOK, displayOK)

	s.tasks.Enable(true)
}

// setStopper installs the strategy's stop function, honouring a Stop that
// arrived before the strategy was ready.
func (s *System) setStopper(fn func()) {
	s.mu.Lock()
	s.stopper = fn
	stopped := s.stopped
	s.mu.Unlock()
	if stopped {
		fn()
	}
}

func (s *System) runSuperLoop(ctx context.Context) error {
	loop, err := schedule.NewSuperLoop(s.cfg.Schedule, s.clock, s.bodies, s.tasks)
	if err != nil {
		return err
	}
	s.setStopper(loop.Stop)

	err = loop.Run(ctx)
	log.Info().
		Int64("cycles", loop.Cycles()).
		Int64("overruns", loop.Overruns()).
		Msg("super-loop finished")
	return err
}

func (s *System) runEventQueue(ctx context.Context) error {
	q := schedule.NewEventQueue(s.clock)
	if err := q.PostSchedule(s.cfg.Schedule, s.bodies, s.tasks); err != nil {
		return err
	}
	if err := q.Every(s.majorCycle, s.majorCycle, func() { s.logStats(q) }); err != nil {
		return err
	}

	// Rider input is applied as soon as the dispatcher is free instead of
	// waiting for the next gear or speed release.
	refresh := func() { q.Call(s.refresh) }
	s.gear.OnChange(refresh)
	s.cadence.OnChange(refresh)
	defer s.gear.OnChange(nil)
	defer s.cadence.OnChange(nil)

	s.setStopper(q.Break)

	err := q.Dispatch(ctx)
	log.Info().
		Int64("dispatched", q.Dispatched()).
		Int64("slips", q.Slips()).
		Msg("event queue finished")
	return err
}

func (s *System) logStats(q *schedule.EventQueue) {
	log.Info().
		Float64("utilization", s.tasks.Utilization()).
		Int("pending", q.Pending()).
		Int64("slips", q.Slips()).
		Msg("cpu stats")
}

// Stop asks the running strategy to return: the super-loop at the end of
// its major cycle, the event queue after the running handler.
func (s *System) Stop() {
	s.mu.Lock()
	s.stopped = true
	fn := s.stopper
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Readings returns the latest values computed by the tasks.
func (s *System) Readings() status.Readings {
	return s.tracker.Readings()
}

// Snapshot returns the full status including per-task timing.
func (s *System) Snapshot() status.Snapshot {
	snap := s.tracker.Snapshot()
	for _, t := range s.cfg.Schedule.Tasks {
		st := s.tasks.Stats(t.ID)
		snap.Tasks = append(snap.Tasks, status.TaskTiming{
			Task:           t.ID.String(),
			Count:          st.Count,
			Period:         st.Period,
			Computation:    st.Computation,
			MaxComputation: st.MaxComputation,
		})
	}
	return snap
}

// TaskLogger returns the measurements of every task invocation.
func (s *System) TaskLogger() *tasklog.Logger {
	return s.tasks
}

// Schedule returns the task set being executed.
func (s *System) Schedule() schedule.Schedule {
	return s.cfg.Schedule
}

// Reset requests a distance reset, exactly like a press of the reset button.
func (s *System) Reset() {
	s.reset.Press(s.clock.Now())
}

// HandleButton routes a button edge to its input source. Only presses act.
func (s *System) HandleButton(ev gpio.Event) {
	if !ev.Pressed {
		return
	}
	switch ev.Button {
	case gpio.ButtonUp:
		s.gear.Up()
	case gpio.ButtonDown:
		s.gear.Down()
	case gpio.ButtonLeft:
		s.cadence.Slower()
	case gpio.ButtonRight:
		s.cadence.Faster()
	case gpio.ButtonReset:
		s.reset.Press(s.clock.Now())
	}
}

// PollButtons feeds sampled button levels. Joystick directions act on the
// rising edge; the reset level is passed to the reset source's own edge
// detection.
func (s *System) PollButtons(levels gpio.Levels) {
	s.pollMu.Lock()
	prev := s.levels
	s.levels = levels
	s.pollMu.Unlock()

	for b := gpio.ButtonUp; b < gpio.ButtonReset; b++ {
		if levels[b] && !prev[b] {
			s.HandleButton(gpio.Event{Button: b, Pressed: true})
		}
	}
	s.reset.Sample(levels[gpio.ButtonReset], s.clock.Now())
}
