package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/sweeney/bike-computer/internal/bike"
	"github.com/sweeney/bike-computer/internal/clock"
	"github.com/sweeney/bike-computer/internal/display"
	"github.com/sweeney/bike-computer/internal/gpio"
	"github.com/sweeney/bike-computer/internal/schedule"
	"github.com/sweeney/bike-computer/internal/sensor"
	"github.com/sweeney/bike-computer/internal/status"
)

func newTestSystem(t *testing.T, strategy bike.Strategy) *bike.System {
	t.Helper()
	cfg := bike.DefaultConfig()
	cfg.Strategy = strategy
	sys, err := bike.New(cfg, bike.Deps{
		Clock:   clock.NewFake(),
		Sensor:  sensor.NewFake(19.5, 50),
		Display: display.NewFake(),
	})
	if err != nil {
		t.Fatalf("bike.New: %v", err)
	}
	return sys
}

func TestServeStopsOnSignal(t *testing.T) {
	sys := newTestSystem(t, bike.StrategySuperLoop)
	btn := gpio.NewFakeButtons([]gpio.Levels{{}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	if err := serve(ctx, sys, btn, "events", time.Millisecond, &out); err != nil {
		t.Fatalf("serve: %v", err)
	}

	var report status.StatusJSON
	if err := json.Unmarshal(out.Bytes(), &report); err != nil {
		t.Fatalf("report is not JSON: %v\n%s", err, out.String())
	}
	if report.Status.Gear != 1 {
		t.Errorf("Gear: got %d, want 1", report.Status.Gear)
	}
	if report.Status.TemperatureC != 19.5 {
		t.Errorf("TemperatureC: got %v, want 19.5", report.Status.TemperatureC)
	}
	if report.Status.Config.Strategy != "super-loop" {
		t.Errorf("Config.Strategy: got %q", report.Status.Config.Strategy)
	}
	// A stop is honoured at the end of a major cycle, so every task ran.
	if len(report.Status.Tasks) != 6 {
		t.Fatalf("Tasks: got %d, want 6", len(report.Status.Tasks))
	}
	for _, task := range report.Status.Tasks {
		if task.Count == 0 {
			t.Errorf("task %s never ran", task.Task)
		}
	}
}

func TestServeEventQueueStop(t *testing.T) {
	sys := newTestSystem(t, bike.StrategyEventQueue)
	btn := gpio.NewFakeButtons([]gpio.Levels{{}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	if err := serve(ctx, sys, btn, "poll", time.Millisecond, &out); err != nil {
		t.Fatalf("serve: %v", err)
	}
	if !strings.Contains(out.String(), `"event-queue"`) {
		t.Errorf("report missing strategy: %s", out.String())
	}
}

type failingButtons struct {
	*gpio.FakeButtons
	err error
}

func (f failingButtons) Watch(ctx context.Context, handle func(gpio.Event)) error {
	return f.err
}

func TestServeButtonError(t *testing.T) {
	sys := newTestSystem(t, bike.StrategySuperLoop)
	btn := failingButtons{FakeButtons: gpio.NewFakeButtons(nil), err: errors.New("line request lost")}

	var out bytes.Buffer
	err := serve(context.Background(), sys, btn, "events", time.Millisecond, &out)
	if err == nil || !strings.Contains(err.Error(), "line request lost") {
		t.Fatalf("serve: got %v, want button error", err)
	}
	if out.Len() == 0 {
		t.Error("expected final report even on error")
	}
}

func TestServeUnknownInputMode(t *testing.T) {
	sys := newTestSystem(t, bike.StrategyEventQueue)
	btn := gpio.NewFakeButtons(nil)

	var out bytes.Buffer
	if err := serve(context.Background(), sys, btn, "interrupts", time.Millisecond, &out); err == nil {
		t.Fatal("expected error for unknown input mode")
	}
}

// countingButtons stops watching after n events have been handled.
type countingButtons struct {
	*gpio.FakeButtons
	n int
}

func (c countingButtons) Watch(ctx context.Context, handle func(gpio.Event)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	seen := 0
	return c.FakeButtons.Watch(ctx, func(ev gpio.Event) {
		handle(ev)
		if seen++; seen == c.n {
			cancel()
		}
	})
}

func TestReadButtonsEvents(t *testing.T) {
	sys := newTestSystem(t, bike.StrategySuperLoop)
	fake := gpio.NewFakeButtons(nil)
	fake.Events = []gpio.Event{
		{Button: gpio.ButtonUp, Pressed: true},
		{Button: gpio.ButtonUp, Pressed: false},
		{Button: gpio.ButtonReset, Pressed: true},
	}
	// Scripted events are delivered before injected ones.
	fake.Press(gpio.ButtonUp)

	if err := readButtons(context.Background(), sys, countingButtons{FakeButtons: fake, n: 5}, "events", 0); err != nil {
		t.Fatalf("readButtons: %v", err)
	}

	// One major cycle samples the inputs.
	sys.Stop()
	if err := sys.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	snap := sys.Snapshot()
	if snap.Gear != 3 {
		t.Errorf("Gear: got %d, want 3", snap.Gear)
	}
	if snap.Resets != 1 {
		t.Errorf("Resets: got %d, want 1", snap.Resets)
	}
}

func TestReadButtonsPoll(t *testing.T) {
	sys := newTestSystem(t, bike.StrategySuperLoop)
	var right gpio.Levels
	right[gpio.ButtonRight] = true
	fake := gpio.NewFakeButtons([]gpio.Levels{{}, right, {}, right})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := readButtons(ctx, sys, fake, "poll", time.Millisecond); err != nil {
		t.Fatalf("readButtons: %v", err)
	}

	sys.Stop()
	if err := sys.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	// Two rising edges of RIGHT, then the level stays held.
	if got, want := sys.Readings().Cadence, 700*time.Millisecond; got != want {
		t.Errorf("Cadence: got %v, want %v", got, want)
	}
}

func TestResolveSchedule(t *testing.T) {
	s, err := resolveSchedule("default")
	if err != nil || len(s.Tasks) != 6 {
		t.Errorf("default: got %d tasks, err %v", len(s.Tasks), err)
	}
	s, err = resolveSchedule("single-display")
	if err != nil || s.Has(schedule.TaskDisplay2) {
		t.Errorf("single-display: got %+v, err %v", s, err)
	}

	path := filepath.Join(t.TempDir(), "tasks.json")
	data := `{"tasks":[{"task":"speed","period":"400ms","phase":"0s","computation":"200ms"}]}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err = resolveSchedule(path)
	if err != nil {
		t.Fatalf("file: %v", err)
	}
	if len(s.Tasks) != 1 || s.Tasks[0].ID != schedule.TaskSpeed {
		t.Errorf("file: got %+v", s.Tasks)
	}

	if _, err := resolveSchedule(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestBuildConfig(t *testing.T) {
	cfg, err := buildConfig(options{strategy: "event-queue", schedule: "single-display", displays: "lcd", sensor: "none"})
	if err != nil {
		t.Fatalf("buildConfig: %v", err)
	}
	if cfg.Strategy != bike.StrategyEventQueue {
		t.Errorf("Strategy: got %q", cfg.Strategy)
	}
	if cfg.DisplayName != "lcd" || cfg.SensorName != "none" {
		t.Errorf("labels: got %q/%q", cfg.DisplayName, cfg.SensorName)
	}

	if _, err := buildConfig(options{strategy: "rate-monotonic", schedule: "default"}); err == nil {
		t.Error("expected error for unknown strategy")
	}
}

func TestParseDisplays(t *testing.T) {
	tests := []struct {
		in      string
		want    []string
		wantErr bool
	}{
		{in: "lcd", want: []string{"lcd"}},
		{in: "lcd, panel,serial", want: []string{"lcd", "panel", "serial"}},
		{in: "none", want: nil},
		{in: "", want: nil},
		{in: "oled", wantErr: true},
		{in: "lcd,lcd", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseDisplays(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseDisplays(%q): err %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if strings.Join(got, ",") != strings.Join(tt.want, ",") {
			t.Errorf("parseDisplays(%q): got %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestOpenDisplayWithoutHardware(t *testing.T) {
	dev := &devices{opts: options{displays: "none"}}
	sink, err := dev.openDisplay()
	if err != nil {
		t.Fatalf("none: %v", err)
	}
	if _, ok := sink.(display.Discard); !ok {
		t.Errorf("none: got %T, want display.Discard", sink)
	}

	dev = &devices{opts: options{displays: "panel", panelPNG: filepath.Join(t.TempDir(), "panel.png")}}
	sink, err = dev.openDisplay()
	if err != nil {
		t.Fatalf("panel: %v", err)
	}
	if _, ok := sink.(*display.Panel); !ok {
		t.Errorf("panel: got %T, want *display.Panel", sink)
	}
	if err := dev.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestOpenSensorNone(t *testing.T) {
	dev := &devices{opts: options{sensor: "none"}}
	sn, err := dev.openSensor()
	if err != nil || sn != nil {
		t.Errorf("none: got %v, %v", sn, err)
	}
	dev = &devices{opts: options{sensor: "dht22"}}
	if _, err := dev.openSensor(); err == nil {
		t.Error("expected error for unknown sensor")
	}
}

func TestFormatLevels(t *testing.T) {
	var levels gpio.Levels
	levels[gpio.ButtonLeft] = true
	got := formatLevels(levels)
	want := "UP: released, DOWN: released, LEFT: pressed, RIGHT: released, RESET: released"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestFormatClimate(t *testing.T) {
	if got := formatClimate(sensor.NewFake(21.04, 40)); got != "temperature: 21.0 C, humidity: 40.0 %" {
		t.Errorf("got %q", got)
	}
	fs := sensor.NewFake(0, 0)
	fs.InitError = sensor.ErrNotPresent
	if got := formatClimate(fs); !strings.HasPrefix(got, "sensor:") {
		t.Errorf("got %q, want sensor error", got)
	}
}

func TestSetupLogging(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var buf bytes.Buffer
	if err := setupLogging("warn", false, &buf); err != nil {
		t.Fatalf("setupLogging: %v", err)
	}
	if zerolog.GlobalLevel() != zerolog.WarnLevel {
		t.Errorf("level: got %v, want warn", zerolog.GlobalLevel())
	}
	if err := setupLogging("loud", false, &buf); err == nil {
		t.Error("expected error for bad level")
	}
}
