package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vivekgangdhar11/wakeme/module/core/domain"
	"github.com/vivekgangdhar11/wakeme/module/core/location"
	"github.com/vivekgangdhar11/wakeme/module/core/service"
)

// Settings are the user-tunable alarm and tracking preferences, read from a
// YAML file. Keys missing from the file keep their defaults.
type Settings struct {
	DefaultRadiusMeters float64               `yaml:"default_radius_meters"`
	Alarm               service.AlarmSettings `yaml:"alarm"`
	Tracking            TrackingSettings      `yaml:"tracking"`
}

type TrackingSettings struct {
	location.WatchOptions `yaml:",inline"`
	PersistInterval       time.Duration `yaml:"persist_interval"`
	SaveTimeout           time.Duration `yaml:"save_timeout"`
	ExitFactor            float64       `yaml:"exit_factor"`
}

func DefaultSettings() Settings {
	d := service.DefaultTrackingSettings()
	return Settings{
		DefaultRadiusMeters: 500,
		Alarm:               d.Alarm,
		Tracking: TrackingSettings{
			WatchOptions:    d.Watch,
			PersistInterval: d.PersistInterval,
			SaveTimeout:     d.SaveTimeout,
			ExitFactor:      d.ExitFactor,
		},
	}
}

// LoadSettings reads the settings file at path. An empty path yields the
// defaults.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("parse settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, fmt.Errorf("settings %s: %w", path, err)
	}
	return s, nil
}

func (s *Settings) Validate() error {
	var errs []error
	if s.DefaultRadiusMeters < domain.MinRadiusMeters {
		errs = append(errs, fmt.Errorf("default_radius_meters: must be at least %d", domain.MinRadiusMeters))
	}
	if s.Alarm.Volume < 0 || s.Alarm.Volume > 1 {
		errs = append(errs, errors.New("alarm.volume: must be between 0 and 1"))
	}
	if s.Tracking.PersistInterval <= 0 {
		errs = append(errs, errors.New("tracking.persist_interval: must be positive"))
	}
	if s.Tracking.ExitFactor != 0 && s.Tracking.ExitFactor < 1 {
		errs = append(errs, errors.New("tracking.exit_factor: must be at least 1"))
	}
	if s.Tracking.MaxSampleAge < 0 || s.Tracking.Timeout < 0 {
		errs = append(errs, errors.New("tracking: durations must not be negative"))
	}
	if s.Tracking.MaxAccuracyMeters < 0 {
		errs = append(errs, errors.New("tracking.max_accuracy_meters: must not be negative"))
	}
	return errors.Join(errs...)
}

func (s Settings) TrackerSettings() service.TrackingSettings {
	return service.TrackingSettings{
		Watch:           s.Tracking.WatchOptions,
		PersistInterval: s.Tracking.PersistInterval,
		SaveTimeout:     s.Tracking.SaveTimeout,
		ExitFactor:      s.Tracking.ExitFactor,
		Alarm:           s.Alarm,
	}
}
