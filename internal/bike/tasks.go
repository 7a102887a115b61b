package bike

import (
	"github.com/rs/zerolog/log"

	"github.com/sweeney/bike-computer/internal/schedule"
)

func (s *System) taskBodies() schedule.Bodies {
	b := schedule.Bodies{
		schedule.TaskGear:        s.gearTask,
		schedule.TaskSpeed:       s.speedDistanceTask,
		schedule.TaskTemperature: s.temperatureTask,
		schedule.TaskReset:       s.resetTask,
		schedule.TaskDisplay1:    s.displayTask1,
		schedule.TaskDisplay2:    s.displayTask2,
	}
	for id := range b {
		if !s.cfg.Schedule.Has(id) {
			delete(b, id)
		}
	}
	return b
}

func (s *System) gearTask() {
	s.tracker.SetGear(s.gear.Gear(), s.gear.Size())
}

func (s *System) speedDistanceTask() {
	period := s.cadence.Period()
	if err := s.speedo.SetCadence(period); err != nil {
		log.Error().Err(err).Msg("speed task: cadence rejected")
	}
	// Gear size as sampled by the gear task, not the live source.
	if err := s.speedo.SetGearSize(s.tracker.Readings().GearSize); err != nil {
		log.Error().Err(err).Msg("speed task: gear size rejected")
	}
	s.tracker.SetMotion(period, s.speedo.Speed(), s.speedo.Distance())
}

func (s *System) temperatureTask() {
	if !s.sensorOK {
		return
	}
	r := s.tracker.Readings()
	temperature, err := s.sensor.ReadTemperature()
	if err != nil {
		log.Debug().Err(err).Msg("temperature read failed, keeping last value")
		temperature = r.Temperature
	}
	humidity, err := s.sensor.ReadHumidity()
	if err != nil {
		log.Debug().Err(err).Msg("humidity read failed, keeping last value")
		humidity = r.Humidity
	}
	s.tracker.SetClimate(temperature, humidity)
}

func (s *System) resetTask() {
	at, ok := s.reset.Consume()
	if !ok {
		return
	}
	latency := s.clock.Now() - at
	log.Info().Dur("response_time", latency).Msg("reset task: distance cleared")
	s.speedo.Reset()
	s.tracker.RecordReset(latency)
}

func (s *System) displayTask1() {
	r := s.tracker.Readings()
	s.display.DisplayGear(r.Gear)
	s.display.DisplaySpeed(r.Speed)
	s.display.DisplayDistance(r.Distance)
	if !s.hasDisplay2 {
		s.display.DisplayTemperature(r.Temperature)
	}
}

func (s *System) displayTask2() {
	s.display.DisplayTemperature(s.tracker.Readings().Temperature)
}

// refresh applies a rider input change outside the periodic releases.
func (s *System) refresh() {
	s.gearTask()
	s.speedDistanceTask()
}
