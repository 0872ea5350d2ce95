package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherPublishesReloadedTuning(t *testing.T) {
	path := writeConfig(t, "[tracker]\nalarm_delay = 15\n")
	load := func() (Config, error) { return Resolve(DefaultConfig(), path, nil) }

	w := NewWatcher(path, load, zerolog.Nop())
	w.SetDebounce(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		assert.NoError(t, <-done)
	}()

	// Give the watcher time to register before writing
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("[tracker]\nalarm_delay = 25\n[segmenter]\nmin_area = 300\n"), 0o644))

	select {
	case tuning := <-w.Updates():
		assert.Equal(t, 25, tuning.Tracker.AlarmDelay)
		assert.Equal(t, 300.0, tuning.Segmenter.MinArea)
	case <-time.After(3 * time.Second):
		t.Fatal("no config update received")
	}
}

func TestWatcherIgnoresInvalidReload(t *testing.T) {
	path := writeConfig(t, "[tracker]\nalarm_delay = 15\n")
	load := func() (Config, error) { return Resolve(DefaultConfig(), path, nil) }

	w := NewWatcher(path, load, zerolog.Nop())
	w.SetDebounce(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("[segmenter]\nblur_kernel = 8\n"), 0o644))

	select {
	case <-w.Updates():
		t.Fatal("invalid config must not be published")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherFailsOnMissingDirectory(t *testing.T) {
	w := NewWatcher("/nonexistent/dir/config.toml", func() (Config, error) { return DefaultConfig(), nil }, zerolog.Nop())
	assert.Error(t, w.Run(context.Background()))
}
