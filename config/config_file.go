package config

import (
	"os"
	"path/filepath"

	"firewatch/detection"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations and policies to make TOML friendly
type FileConfig struct {
	Source      string `toml:"source"`
	TargetWidth *int   `toml:"target_width"`
	Live        *bool  `toml:"live"`
	Display     *bool  `toml:"display"`
	StopOnAlarm *bool  `toml:"stop_on_alarm"`
	LogLevel    string `toml:"log_level"`
	WatchConfig *bool  `toml:"watch_config"`

	Segmenter SegmenterFile `toml:"segmenter"`
	Tracker   TrackerFile   `toml:"tracker"`
	Relay     RelayFile     `toml:"relay"`
	Events    EventsFile    `toml:"events"`
}

type SegmenterFile struct {
	BlurKernel   *int      `toml:"blur_kernel"`
	MorphKernel  *int      `toml:"morph_kernel"`
	HueMax       *float64  `toml:"hue_max"`
	MinArea      *float64  `toml:"min_area"`
	BrightCutoff *float64  `toml:"bright_cutoff"`
	DarkCutoff   *float64  `toml:"dark_cutoff"`
	Bright       *TierFile `toml:"bright"`
	Normal       *TierFile `toml:"normal"`
	Dark         *TierFile `toml:"dark"`
	DebugMask    string    `toml:"debug_mask"`
}

type TierFile struct {
	MinSaturation float64 `toml:"min_saturation"`
	MinValue      float64 `toml:"min_value"`
}

type TrackerFile struct {
	WanderTolerance *float64 `toml:"wander_tolerance"`
	HistorySize     *int     `toml:"history_size"`
	MinSamples      *int     `toml:"min_samples"`
	StaticVariance  *float64 `toml:"static_variance"`
	AlarmDelay      *int     `toml:"alarm_delay"`
	DecayStep       *int     `toml:"decay_step"`
	Policy          string   `toml:"policy"`
}

type RelayFile struct {
	URL     string `toml:"url"`
	Timeout string `toml:"timeout"`
}

type EventsFile struct {
	CSV string `toml:"csv"`
	DB  string `toml:"db"`
}

// LoadFileConfig reads and parses a TOML config file
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.firewatch/config.toml, or "" without a home directory
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".firewatch", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies a parsed file to cfg. Values whose flag is marked in
// changed are left alone; tuning keys without a flag always apply.
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("source", fc.Source, &cfg.Source)
	s.setIntPtr("target-width", fc.TargetWidth, &cfg.TargetWidth)
	s.setBool("live", fc.Live, &cfg.Live)
	s.setBool("display", fc.Display, &cfg.Display)
	s.setBool("stop-on-alarm", fc.StopOnAlarm, &cfg.StopOnAlarm)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setBool("watch-config", fc.WatchConfig, &cfg.WatchConfig)

	s.setString("relay-url", fc.Relay.URL, &cfg.RelayURL)
	if err := s.setDuration("relay-timeout", fc.Relay.Timeout, &cfg.RelayTimeout); err != nil {
		return err
	}
	s.setString("events-csv", fc.Events.CSV, &cfg.EventsCSV)
	s.setString("events-db", fc.Events.DB, &cfg.EventsDB)

	seg := &cfg.Segmenter
	s.setIntPtr("", fc.Segmenter.BlurKernel, &seg.BlurKernel)
	s.setIntPtr("", fc.Segmenter.MorphKernel, &seg.MorphKernel)
	s.setFloatPtr("", fc.Segmenter.HueMax, &seg.HueMax)
	s.setFloatPtr("min-area", fc.Segmenter.MinArea, &seg.MinArea)
	s.setFloatPtr("", fc.Segmenter.BrightCutoff, &seg.BrightCutoff)
	s.setFloatPtr("", fc.Segmenter.DarkCutoff, &seg.DarkCutoff)
	applyTier(fc.Segmenter.Bright, &seg.Bright)
	applyTier(fc.Segmenter.Normal, &seg.Normal)
	applyTier(fc.Segmenter.Dark, &seg.Dark)
	s.setString("debug-mask", fc.Segmenter.DebugMask, &seg.DebugMaskPath)

	trk := &cfg.Tracker
	s.setFloatPtr("", fc.Tracker.WanderTolerance, &trk.WanderTolerance)
	s.setIntPtr("", fc.Tracker.HistorySize, &trk.HistorySize)
	s.setIntPtr("", fc.Tracker.MinSamples, &trk.MinSamples)
	s.setFloatPtr("", fc.Tracker.StaticVariance, &trk.StaticVariance)
	s.setIntPtr("alarm-delay", fc.Tracker.AlarmDelay, &trk.AlarmDelay)
	s.setIntPtr("", fc.Tracker.DecayStep, &trk.DecayStep)
	return s.setPolicy("alarm-policy", fc.Tracker.Policy, &trk.Policy)
}

func applyTier(tf *TierFile, dst *detection.TierBounds) {
	if tf == nil {
		return
	}
	dst.MinSaturation = tf.MinSaturation
	dst.MinValue = tf.MinValue
}

// FileExists checks if a file exists at the given path
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
