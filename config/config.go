package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"firewatch/detection"
	"firewatch/tracking"

	"github.com/rs/zerolog"
)

const (
	DefaultTargetWidth  = 640
	DefaultRelayTimeout = 2 * time.Second
	DefaultEventsCSV    = "resources/logs/events.csv"
)

// Config holds the firewatch configuration
type Config struct {
	Source      string
	TargetWidth int
	Live        bool // Force drop-stale frame handoff even for files
	Display     bool
	StopOnAlarm bool

	RelayURL     string
	RelayTimeout time.Duration

	EventsCSV string
	EventsDB  string

	LogLevel    string
	WatchConfig bool

	Segmenter detection.Config
	Tracker   tracking.Config
}

// Tuning is the part of the configuration that can change while running
type Tuning struct {
	Segmenter detection.Config
	Tracker   tracking.Config
}

// DefaultConfig returns a Config with default values
func DefaultConfig() Config {
	return Config{
		TargetWidth:  DefaultTargetWidth,
		Display:      true,
		RelayTimeout: DefaultRelayTimeout,
		EventsCSV:    DefaultEventsCSV,
		LogLevel:     "info",
		Segmenter:    detection.DefaultConfig(),
		Tracker:      tracking.DefaultConfig(),
	}
}

// Tuning extracts the hot-reloadable part
func (c Config) Tuning() Tuning {
	return Tuning{Segmenter: c.Segmenter, Tracker: c.Tracker}
}

// Validate checks the configuration for errors and normalises derived values
func (c *Config) Validate() error {
	c.Source = strings.TrimSpace(c.Source)
	c.RelayURL = strings.TrimRight(strings.TrimSpace(c.RelayURL), "/")

	if c.TargetWidth < 0 {
		return fmt.Errorf("target width must not be negative")
	}
	if c.RelayTimeout <= 0 {
		return fmt.Errorf("relay timeout must be positive")
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	if err := c.Segmenter.Validate(); err != nil {
		return fmt.Errorf("segmenter: %w", err)
	}
	if err := c.Tracker.Validate(); err != nil {
		return fmt.Errorf("tracker: %w", err)
	}
	return nil
}

// configSetter applies values while respecting flag precedence: a value is
// only applied if the corresponding flag has not been set on the command line
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

func (s *configSetter) skip(flag string) bool {
	return flag != "" && s.changed[flag]
}

func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.skip(flag) {
		return
	}
	*dst = value
}

func (s *configSetter) setIntPtr(flag string, value *int, dst *int) {
	if value == nil || s.skip(flag) {
		return
	}
	*dst = *value
}

// setFloatPtr sets a float64 value when the key is present, zero included
func (s *configSetter) setFloatPtr(flag string, value *float64, dst *float64) {
	if value == nil || s.skip(flag) {
		return
	}
	*dst = *value
}

func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.skip(flag) {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.skip(flag) {
		return
	}
	*dst = *value
}

func (s *configSetter) setPolicy(flag, value string, dst *tracking.AlarmPolicy) error {
	if value == "" || s.skip(flag) {
		return nil
	}
	p, err := tracking.ParseAlarmPolicy(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = p
	return nil
}

func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.skip(flag) {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i < 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString accepts "true" and "1" as true, anything else as false
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.skip(flag) {
		return
	}
	*dst = value == "true" || value == "1"
}
