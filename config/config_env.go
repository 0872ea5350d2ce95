package config

import (
	"os"
)

// ApplyEnvConfig applies FIREWATCH_* environment variables. They override the
// file but not flags the user set.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("source", os.Getenv("FIREWATCH_SOURCE"), &cfg.Source)
	if err := s.setIntFromString("target-width", os.Getenv("FIREWATCH_TARGET_WIDTH"), &cfg.TargetWidth); err != nil {
		return err
	}
	s.setBoolFromString("display", os.Getenv("FIREWATCH_DISPLAY"), &cfg.Display)
	s.setString("relay-url", os.Getenv("FIREWATCH_RELAY_URL"), &cfg.RelayURL)
	s.setString("events-csv", os.Getenv("FIREWATCH_EVENTS_CSV"), &cfg.EventsCSV)
	s.setString("events-db", os.Getenv("FIREWATCH_EVENTS_DB"), &cfg.EventsDB)
	if err := s.setPolicy("alarm-policy", os.Getenv("FIREWATCH_ALARM_POLICY"), &cfg.Tracker.Policy); err != nil {
		return err
	}
	s.setString("log-level", os.Getenv("FIREWATCH_LOG_LEVEL"), &cfg.LogLevel)
	return nil
}

// Resolve layers the config file at path (if present) and the environment
// over base, then validates. base should already carry the flag values.
func Resolve(base Config, path string, changed map[string]bool) (Config, error) {
	cfg := base
	if path != "" && FileExists(path) {
		fc, err := LoadFileConfig(path)
		if err != nil {
			return cfg, err
		}
		if err := ApplyFileConfig(&cfg, fc, changed); err != nil {
			return cfg, err
		}
	}
	if err := ApplyEnvConfig(&cfg, changed); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
