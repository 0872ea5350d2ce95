package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"firewatch/detection"
	"firewatch/tracking"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTOML = `
source = "rtsp://cam/stream"
target_width = 0
display = false
stop_on_alarm = true

[segmenter]
blur_kernel = 15
min_area = 250
debug_mask = "/tmp/mask.png"

[segmenter.bright]
min_saturation = 180
min_value = 230

[tracker]
alarm_delay = 20
static_variance = 0.08
policy = "latching"

[relay]
url = "http://pi.local:5000"
timeout = "750ms"

[events]
csv = "/var/log/fire.csv"
db = "/var/lib/firewatch/events.db"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestApplyFileConfig(t *testing.T) {
	fc, err := LoadFileConfig(writeConfig(t, sampleTOML))
	require.NoError(t, err)

	cfg := DefaultConfig()
	require.NoError(t, ApplyFileConfig(&cfg, fc, map[string]bool{}))

	assert.Equal(t, "rtsp://cam/stream", cfg.Source)
	assert.Equal(t, 0, cfg.TargetWidth)
	assert.False(t, cfg.Display)
	assert.True(t, cfg.StopOnAlarm)
	assert.Equal(t, "http://pi.local:5000", cfg.RelayURL)
	assert.Equal(t, 750*time.Millisecond, cfg.RelayTimeout)
	assert.Equal(t, "/var/log/fire.csv", cfg.EventsCSV)
	assert.Equal(t, "/var/lib/firewatch/events.db", cfg.EventsDB)

	assert.Equal(t, 15, cfg.Segmenter.BlurKernel)
	assert.Equal(t, 250.0, cfg.Segmenter.MinArea)
	assert.Equal(t, "/tmp/mask.png", cfg.Segmenter.DebugMaskPath)
	assert.Equal(t, detection.TierBounds{MinSaturation: 180, MinValue: 230}, cfg.Segmenter.Bright)
	assert.Equal(t, detection.DefaultConfig().Dark, cfg.Segmenter.Dark, "unset tiers keep defaults")

	assert.Equal(t, 20, cfg.Tracker.AlarmDelay)
	assert.Equal(t, 0.08, cfg.Tracker.StaticVariance)
	assert.Equal(t, tracking.PolicyLatching, cfg.Tracker.Policy)
	assert.Equal(t, 10, cfg.Tracker.HistorySize)

	require.NoError(t, cfg.Validate())
}

func TestApplyFileConfigRespectsChangedFlags(t *testing.T) {
	fc, err := LoadFileConfig(writeConfig(t, sampleTOML))
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Source = "0"
	cfg.Tracker.AlarmDelay = 5
	cfg.Segmenter.MinArea = 400
	changed := map[string]bool{"source": true, "alarm-delay": true, "min-area": true, "alarm-policy": true}
	require.NoError(t, ApplyFileConfig(&cfg, fc, changed))

	assert.Equal(t, "0", cfg.Source)
	assert.Equal(t, 5, cfg.Tracker.AlarmDelay)
	assert.Equal(t, 400.0, cfg.Segmenter.MinArea)
	assert.Equal(t, tracking.PolicyContinuous, cfg.Tracker.Policy)
	assert.Equal(t, 15, cfg.Segmenter.BlurKernel, "keys without a flag still apply")
}

func TestApplyFileConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad duration", "[relay]\ntimeout = \"soon\"\n"},
		{"bad policy", "[tracker]\npolicy = \"forever\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc, err := LoadFileConfig(writeConfig(t, tt.body))
			require.NoError(t, err)
			cfg := DefaultConfig()
			assert.Error(t, ApplyFileConfig(&cfg, fc, nil))
		})
	}
}

func TestLoadFileConfigInvalidTOML(t *testing.T) {
	_, err := LoadFileConfig(writeConfig(t, "source = [unterminated"))
	assert.Error(t, err)

	_, err = LoadFileConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestDefaultConfigPath(t *testing.T) {
	t.Setenv("HOME", "/home/firewatch")
	assert.Equal(t, "/home/firewatch/.firewatch/config.toml", DefaultConfigPath())
}

func TestApplyFileConfigHonoursExplicitZero(t *testing.T) {
	fc, err := LoadFileConfig(writeConfig(t, `
[segmenter]
min_area = 0
dark_cutoff = 0

[tracker]
static_variance = 0
`))
	require.NoError(t, err)

	cfg := DefaultConfig()
	require.NotZero(t, cfg.Segmenter.DarkCutoff)
	require.NotZero(t, cfg.Tracker.StaticVariance)
	require.NoError(t, ApplyFileConfig(&cfg, fc, map[string]bool{}))

	assert.Zero(t, cfg.Segmenter.MinArea)
	assert.Zero(t, cfg.Segmenter.DarkCutoff)
	assert.Zero(t, cfg.Tracker.StaticVariance)
	assert.Equal(t, detection.DefaultConfig().BlurKernel, cfg.Segmenter.BlurKernel, "absent keys keep defaults")
	require.NoError(t, cfg.Validate())
}
