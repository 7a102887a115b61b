package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string      `json:"event,omitempty"`
	Gear          int         `json:"gear"`
	GearSize      int         `json:"gear_size"`
	CadenceMs     int64       `json:"cadence_ms"`
	SpeedKmh      float64     `json:"speed_kmh"`
	DistanceKm    float64     `json:"distance_km"`
	TemperatureC  float64     `json:"temperature_c"`
	HumidityPct   float64     `json:"humidity_pct"`
	Resets        ResetsJSON  `json:"resets"`
	Devices       DevicesJSON `json:"devices"`
	UptimeSeconds int64       `json:"uptime_seconds"`
	StartTime     string      `json:"start_time"`
	Timestamp     string      `json:"timestamp"`
	Tasks         []TaskJSON  `json:"tasks,omitempty"`
	Config        ConfigJSON  `json:"config"`
}

// ResetsJSON reports handled reset requests.
type ResetsJSON struct {
	Count         int     `json:"count"`
	LastLatencyMs float64 `json:"last_latency_ms"`
}

// DevicesJSON reports peripheral health.
type DevicesJSON struct {
	Sensor  bool `json:"sensor"`
	Display bool `json:"display"`
}

// TaskJSON is the JSON representation of one task's timing.
type TaskJSON struct {
	Task             string  `json:"task"`
	Count            int     `json:"count"`
	PeriodMs         float64 `json:"period_ms"`
	ComputationMs    float64 `json:"computation_ms"`
	MaxComputationMs float64 `json:"max_computation_ms"`
}

// ConfigJSON is the JSON representation of run config.
type ConfigJSON struct {
	Strategy     string  `json:"strategy"`
	Display      string  `json:"display"`
	Sensor       string  `json:"sensor"`
	MajorCycleMs int64   `json:"major_cycle_ms"`
	Utilization  float64 `json:"utilization"`
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Gear:          snap.Gear,
		GearSize:      snap.GearSize,
		CadenceMs:     snap.Cadence.Milliseconds(),
		SpeedKmh:      snap.Speed / 1000,
		DistanceKm:    snap.Distance / 1000,
		TemperatureC:  snap.Temperature,
		HumidityPct:   snap.Humidity,
		Resets:        ResetsJSON{Count: snap.Resets, LastLatencyMs: millis(snap.LastResetLatency)},
		Devices:       DevicesJSON{Sensor: snap.SensorOK, Display: snap.DisplayOK},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Config: ConfigJSON{
			Strategy:     snap.Config.Strategy,
			Display:      snap.Config.Display,
			Sensor:       snap.Config.Sensor,
			MajorCycleMs: snap.Config.MajorCycleMs,
			Utilization:  snap.Config.Utilization,
		},
	}
	for _, tt := range snap.Tasks {
		inner.Tasks = append(inner.Tasks, TaskJSON{
			Task:             tt.Task,
			Count:            tt.Count,
			PeriodMs:         millis(tt.Period),
			ComputationMs:    millis(tt.Computation),
			MaxComputationMs: millis(tt.MaxComputation),
		})
	}
	return inner
}

// FormatJSON returns the indented JSON status report.
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns a compact single-line JSON status tagged with
// event, suitable for a log line or serial console.
func FormatStatusEvent(snap Snapshot, event string) []byte {
	inner := buildInner(snap)
	inner.Event = event

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
