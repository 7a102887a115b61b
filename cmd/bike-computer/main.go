// Command bike-computer runs the bike computer task set on a Raspberry Pi:
// handlebar buttons on GPIO, an HTS221 sensor and an HD44780 LCD on I2C.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/sweeney/bike-computer/internal/bike"
	"github.com/sweeney/bike-computer/internal/clock"
	"github.com/sweeney/bike-computer/internal/display"
	"github.com/sweeney/bike-computer/internal/gpio"
	"github.com/sweeney/bike-computer/internal/i2c"
	"github.com/sweeney/bike-computer/internal/schedule"
	"github.com/sweeney/bike-computer/internal/sensor"
	"github.com/sweeney/bike-computer/internal/status"
)

type options struct {
	strategy   string
	schedule   string
	pins       gpio.Pins
	debounce   time.Duration
	input      string
	poll       time.Duration
	i2cBus     int
	lcdAddr    int
	displays   string
	serialPort string
	baud       int
	panelPNG   string
	sensor     string
	printState bool
}

func main() {
	var opts options
	flag.StringVar(&opts.strategy, "strategy", string(bike.StrategySuperLoop), `Scheduling strategy ("super-loop" or "event-queue")`)
	flag.StringVar(&opts.schedule, "schedule", "default", `Task set: "default", "single-display" or a JSON file`)
	flag.IntVar(&opts.pins.Up, "pin-up", gpio.DefaultPins.Up, "BCM pin number for joystick up")
	flag.IntVar(&opts.pins.Down, "pin-down", gpio.DefaultPins.Down, "BCM pin number for joystick down")
	flag.IntVar(&opts.pins.Left, "pin-left", gpio.DefaultPins.Left, "BCM pin number for joystick left")
	flag.IntVar(&opts.pins.Right, "pin-right", gpio.DefaultPins.Right, "BCM pin number for joystick right")
	flag.IntVar(&opts.pins.Reset, "pin-reset", gpio.DefaultPins.Reset, "BCM pin number for the reset button")
	flag.DurationVar(&opts.debounce, "debounce", 20*time.Millisecond, "Button debounce duration")
	flag.StringVar(&opts.input, "input", "events", `Button input mode ("events" or "poll")`)
	flag.DurationVar(&opts.poll, "poll", 50*time.Millisecond, "Button polling interval in poll mode")
	flag.IntVar(&opts.i2cBus, "i2c-bus", i2c.DefaultBus, "I2C bus number")
	flag.IntVar(&opts.lcdAddr, "lcd-addr", display.LCDAddress, "I2C address of the LCD backpack")
	flag.StringVar(&opts.displays, "display", "lcd", `Comma separated displays: "lcd", "panel", "serial" or "none"`)
	flag.StringVar(&opts.serialPort, "serial", "/dev/ttyUSB0", "Serial port for the serial display")
	flag.IntVar(&opts.baud, "baud", 115200, "Serial display baud rate")
	flag.StringVar(&opts.panelPNG, "panel-png", "/run/bike-computer/panel.png", "PNG snapshot path for the panel display")
	flag.StringVar(&opts.sensor, "sensor", "hts221", `Ambient sensor ("hts221" or "none")`)
	flag.BoolVar(&opts.printState, "print-state", false, "Print button and sensor state and exit")
	logLevel := flag.String("log-level", "info", "Log level")
	console := flag.Bool("console", false, "Human readable log output")

	flag.Parse()

	if err := setupLogging(*logLevel, *console, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(2)
	}
	if err := run(opts); err != nil {
		log.Fatal().Err(err).Msg("fatal")
	}
}

func setupLogging(level string, console bool, w io.Writer) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	zerolog.SetGlobalLevel(lvl)
	if console {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly})
	} else {
		log.Logger = zerolog.New(w).With().Timestamp().Logger()
	}
	return nil
}

func run(opts options) error {
	cfg, err := buildConfig(opts)
	if err != nil {
		return err
	}
	if err := opts.pins.Validate(); err != nil {
		return fmt.Errorf("pins: %w", err)
	}

	// Initialize GPIO
	buttons, err := gpio.NewRealButtons(opts.pins, opts.debounce)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer buttons.Close()

	dev := &devices{opts: opts}
	defer dev.Close()

	sn, err := dev.openSensor()
	if err != nil {
		return err
	}

	// Print state mode
	if opts.printState {
		levels, err := buttons.Read()
		if err != nil {
			return fmt.Errorf("read gpio: %w", err)
		}
		fmt.Println(formatLevels(levels))
		if sn != nil {
			fmt.Println(formatClimate(sn))
		}
		return nil
	}

	sink, err := dev.openDisplay()
	if err != nil {
		return err
	}

	sys, err := bike.New(cfg, bike.Deps{Clock: clock.NewReal(), Sensor: sn, Display: sink})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("strategy", opts.strategy).
		Str("schedule", opts.schedule).
		Str("display", opts.displays).
		Str("sensor", opts.sensor).
		Str("input", opts.input).
		Msg("started")

	return serve(ctx, sys, buttons, opts.input, opts.poll, os.Stdout)
}

func buildConfig(opts options) (bike.Config, error) {
	strategy, err := bike.ParseStrategy(opts.strategy)
	if err != nil {
		return bike.Config{}, err
	}
	sched, err := resolveSchedule(opts.schedule)
	if err != nil {
		return bike.Config{}, err
	}
	cfg := bike.DefaultConfig()
	cfg.Strategy = strategy
	cfg.Schedule = sched
	cfg.DisplayName = opts.displays
	cfg.SensorName = opts.sensor
	return cfg, nil
}

// resolveSchedule maps the -schedule flag to a task set.
func resolveSchedule(name string) (schedule.Schedule, error) {
	switch name {
	case "", "default":
		return schedule.DefaultSchedule(), nil
	case "single-display":
		return schedule.SingleDisplaySchedule(), nil
	}
	s, err := schedule.LoadScheduleFile(name)
	if err != nil {
		return schedule.Schedule{}, fmt.Errorf("schedule: %w", err)
	}
	return s, nil
}

// buttons is what the command needs from the handlebar inputs.
type buttons interface {
	gpio.Reader
	gpio.Watcher
}

// serve runs the system until it stops or ctx is done, then writes the
// final report to out. Cancelling ctx asks the system to stop cleanly.
func serve(ctx context.Context, sys *bike.System, btn buttons, mode string, poll time.Duration, out io.Writer) error {
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		defer cancel()
		return sys.Start(gctx)
	})
	g.Go(func() error {
		select {
		case <-ctx.Done():
			log.Info().Msg("shutdown requested, finishing current cycle")
			sys.Stop()
		case <-gctx.Done():
		}
		return nil
	})
	g.Go(func() error {
		return readButtons(gctx, sys, btn, mode, poll)
	})

	err := g.Wait()
	fmt.Fprintf(out, "%s\n", status.FormatJSON(sys.Snapshot()))
	return err
}

func readButtons(ctx context.Context, sys *bike.System, btn buttons, mode string, poll time.Duration) error {
	switch mode {
	case "events":
		if err := btn.Watch(ctx, sys.HandleButton); err != nil {
			return fmt.Errorf("watch buttons: %w", err)
		}
		return nil
	case "poll":
		ticker := time.NewTicker(poll)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				levels, err := btn.Read()
				if err != nil {
					log.Warn().Err(err).Msg("gpio read error")
					continue
				}
				sys.PollButtons(levels)
			}
		}
	}
	return fmt.Errorf("unknown input mode %q", mode)
}

// devices opens the I2C bus and peripherals named by the flags, keeping
// everything that must be closed on exit.
type devices struct {
	opts    options
	bus     *i2c.Bus
	closers []io.Closer
}

func (d *devices) openBus() (*i2c.Bus, error) {
	if d.bus != nil {
		return d.bus, nil
	}
	bus, err := i2c.NewBus(d.opts.i2cBus)
	if err != nil {
		return nil, fmt.Errorf("init i2c: %w", err)
	}
	d.bus = bus
	d.closers = append(d.closers, bus)
	return bus, nil
}

func (d *devices) openSensor() (sensor.Sensor, error) {
	switch d.opts.sensor {
	case "none":
		return nil, nil
	case "hts221":
		bus, err := d.openBus()
		if err != nil {
			return nil, err
		}
		return sensor.NewHTS221(bus), nil
	}
	return nil, fmt.Errorf("unknown sensor %q", d.opts.sensor)
}

func (d *devices) openDisplay() (display.Sink, error) {
	names, err := parseDisplays(d.opts.displays)
	if err != nil {
		return nil, err
	}
	var sinks []display.Sink
	for _, name := range names {
		switch name {
		case "lcd":
			bus, err := d.openBus()
			if err != nil {
				return nil, err
			}
			sinks = append(sinks, display.NewLCD(bus, uint8(d.opts.lcdAddr)))
		case "panel":
			sinks = append(sinks, display.NewPanel(display.NewFramebuffer(panelWidth, panelHeight, d.opts.panelPNG)))
		case "serial":
			term, port, err := display.OpenSerial(d.opts.serialPort, d.opts.baud)
			if err != nil {
				return nil, err
			}
			d.closers = append(d.closers, port)
			sinks = append(sinks, term)
		}
	}
	switch len(sinks) {
	case 0:
		return display.Discard{}, nil
	case 1:
		return sinks[0], nil
	}
	return display.NewTee(sinks...), nil
}

func (d *devices) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		errs = append(errs, d.closers[i].Close())
	}
	return errors.Join(errs...)
}

const (
	panelWidth  = 128
	panelHeight = 64
)

// parseDisplays splits the -display flag and rejects unknown or repeated names.
func parseDisplays(s string) ([]string, error) {
	var names []string
	seen := make(map[string]bool)
	for _, name := range strings.Split(s, ",") {
		name = strings.TrimSpace(name)
		switch name {
		case "", "none":
			continue
		case "lcd", "panel", "serial":
		default:
			return nil, fmt.Errorf("unknown display %q", name)
		}
		if seen[name] {
			return nil, fmt.Errorf("display %q listed twice", name)
		}
		seen[name] = true
		names = append(names, name)
	}
	return names, nil
}

func formatLevels(levels gpio.Levels) string {
	parts := make([]string, 0, gpio.NumButtons)
	for i, pressed := range levels {
		state := "released"
		if pressed {
			state = "pressed"
		}
		parts = append(parts, fmt.Sprintf("%s: %s", gpio.Button(i), state))
	}
	return strings.Join(parts, ", ")
}

func formatClimate(sn sensor.Sensor) string {
	if err := sn.Init(); err != nil {
		return fmt.Sprintf("sensor: %v", err)
	}
	temp, err := sn.ReadTemperature()
	if err != nil {
		return fmt.Sprintf("temperature: %v", err)
	}
	hum, err := sn.ReadHumidity()
	if err != nil {
		return fmt.Sprintf("humidity: %v", err)
	}
	return fmt.Sprintf("temperature: %.1f C, humidity: %.1f %%", temp, hum)
}
