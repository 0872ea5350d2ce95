package config

import (
	"testing"
	"time"

	"firewatch/detection"
	"firewatch/tracking"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 640, cfg.TargetWidth)
	assert.True(t, cfg.Display)
	assert.Equal(t, 2*time.Second, cfg.RelayTimeout)
	assert.Equal(t, detection.DefaultConfig(), cfg.Segmenter)
	assert.Equal(t, tracking.DefaultConfig(), cfg.Tracker)
	assert.Equal(t, Tuning{Segmenter: cfg.Segmenter, Tracker: cfg.Tracker}, cfg.Tuning())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"negative width", func(c *Config) { c.TargetWidth = -1 }, true},
		{"zero width disables resize", func(c *Config) { c.TargetWidth = 0 }, false},
		{"zero relay timeout", func(c *Config) { c.RelayTimeout = 0 }, true},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, true},
		{"bad segmenter", func(c *Config) { c.Segmenter.BlurKernel = 2 }, true},
		{"bad tracker", func(c *Config) { c.Tracker.MinSamples = 50 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateNormalises(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Source = "  temp_video.mp4 "
	cfg.RelayURL = "http://192.168.137.86:5000/"
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "temp_video.mp4", cfg.Source)
	assert.Equal(t, "http://192.168.137.86:5000", cfg.RelayURL)
}
