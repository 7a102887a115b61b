package internal

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/sweeney/bike-computer/internal/bike"
	"github.com/sweeney/bike-computer/internal/clock"
	"github.com/sweeney/bike-computer/internal/display"
	"github.com/sweeney/bike-computer/internal/gpio"
	"github.com/sweeney/bike-computer/internal/schedule"
	"github.com/sweeney/bike-computer/internal/sensor"
	"github.com/sweeney/bike-computer/internal/speedometer"
	"github.com/sweeney/bike-computer/internal/status"
)

// pollingSink samples the buttons once per gear frame, standing in for a
// rider acting between screen refreshes.
type pollingSink struct {
	*display.Fake
	sys     *bike.System
	buttons gpio.Reader
	frames  int
	stopAt  int
}

func (p *pollingSink) DisplayGear(gear int) {
	p.Fake.DisplayGear(gear)
	p.frames++
	if p.frames == p.stopAt {
		p.sys.Stop()
		return
	}
	levels, err := p.buttons.Read()
	if err != nil {
		return
	}
	p.sys.PollButtons(levels)
}

// TestIntegrationFullFlow tests the complete flow from polled buttons to the
// display and the status report using fakes and a virtual clock.
func TestIntegrationFullFlow(t *testing.T) {
	var up, upReset gpio.Levels
	up[gpio.ButtonUp] = true
	upReset[gpio.ButtonUp] = true
	upReset[gpio.ButtonReset] = true

	// One sample per display1 frame (t=300ms + k*1600ms).
	buttons := gpio.NewFakeButtons([]gpio.Levels{
		up,      // t=300ms: gear 2 from the gear task at 800ms
		{},      // t=1900ms: release
		upReset, // t=3500ms: gear 3 at 4000ms, reset consumed at 3900ms
	})

	clk := clock.NewFake()
	fb := display.NewFramebuffer(128, 64, "")
	panel := display.NewPanel(fb)
	broken := display.NewFake()
	broken.InitError = errors.New("no lcd")
	sink := &pollingSink{Fake: display.NewFake(), buttons: buttons, stopAt: 4}

	sys, err := bike.New(bike.DefaultConfig(), bike.Deps{
		Clock:   clk,
		Sensor:  sensor.NewFake(17.5, 62),
		Display: display.NewTee(sink, panel, broken),
	})
	if err != nil {
		t.Fatalf("bike.New: %v", err)
	}
	sink.sys = sys

	if err := sys.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Stop in the fourth cycle is honoured at its end.
	if got := clk.Now(); got != 4*1600*time.Millisecond {
		t.Errorf("clock: got %v, want 6.4s", got)
	}

	wantGears := []int{1, 2, 2, 3}
	if len(sink.Gears) != len(wantGears) {
		t.Fatalf("gears: got %v, want %v", sink.Gears, wantGears)
	}
	for i, g := range wantGears {
		if sink.Gears[i] != g {
			t.Errorf("frame %d: got gear %d, want %d", i, sink.Gears[i], g)
		}
	}

	snap := sys.Snapshot()
	if snap.Resets != 1 {
		t.Fatalf("Resets: got %d, want 1", snap.Resets)
	}
	if snap.LastResetLatency != 400*time.Millisecond {
		t.Errorf("LastResetLatency: got %v, want 400ms", snap.LastResetLatency)
	}

	// After the reset at 3900ms the bike rides in gear 2 until the speed
	// task at 4100ms applies gear 3, up to the last speed task at 6100ms.
	v18 := speedometer.SpeedFor(speedometer.DefaultTraySize, 18, speedometer.DefaultWheelCircumference, speedometer.InitialPedalRotation)
	v17 := speedometer.SpeedFor(speedometer.DefaultTraySize, 17, speedometer.DefaultWheelCircumference, speedometer.InitialPedalRotation)
	want := (v18*200 + v17*2000) / 3_600_000
	if math.Abs(snap.Distance-want) > 1e-6 {
		t.Errorf("Distance: got %v, want %v", snap.Distance, want)
	}
	if math.Abs(snap.Speed-v17) > 1e-6 {
		t.Errorf("Speed: got %v, want %v", snap.Speed, v17)
	}

	if snap.Temperature != 17.5 || snap.Humidity != 62 {
		t.Errorf("climate: got %v/%v, want 17.5/62", snap.Temperature, snap.Humidity)
	}
	if !snap.DisplayOK {
		t.Error("expected DisplayOK with one failed sink of three")
	}
	if broken.Counts() != [4]int{} {
		t.Errorf("failed sink drew: %v", broken.Counts())
	}

	// Panel received every field of every frame.
	if err := panel.Err(); err != nil {
		t.Errorf("panel: %v", err)
	}
	if got, want := fb.Frames, 1+4*4; got != want {
		t.Errorf("panel frames: got %d, want %d", got, want)
	}

	// Every task kept its declared period and budget.
	logger := sys.TaskLogger()
	for _, spec := range schedule.DefaultSchedule().Tasks {
		st := logger.Stats(spec.ID)
		if st.MinPeriod != spec.Period || st.MaxPeriod != spec.Period {
			t.Errorf("%s: period range [%v, %v], want %v", spec.ID, st.MinPeriod, st.MaxPeriod, spec.Period)
		}
		if st.MaxComputation != spec.Computation {
			t.Errorf("%s: max computation %v, want %v", spec.ID, st.MaxComputation, spec.Computation)
		}
	}
	if u := logger.Utilization(); math.Abs(u-1) > 1e-9 {
		t.Errorf("utilization: got %v, want 1", u)
	}

	var report status.StatusJSON
	if err := json.Unmarshal(status.FormatJSON(snap), &report); err != nil {
		t.Fatalf("report: %v", err)
	}
	if report.Status.Gear != 3 || report.Status.Resets.Count != 1 {
		t.Errorf("report: got gear %d resets %d", report.Status.Gear, report.Status.Resets.Count)
	}
	if len(report.Status.Tasks) != 6 {
		t.Errorf("report tasks: got %d, want 6", len(report.Status.Tasks))
	}
}
