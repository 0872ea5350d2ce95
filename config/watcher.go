package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const defaultDebounce = 100 * time.Millisecond

// Watcher reloads the config file when it changes and publishes the new tuning
type Watcher struct {
	path     string
	load     func() (Config, error)
	debounce time.Duration
	logger   zerolog.Logger
	updates  chan Tuning

	mu    sync.Mutex
	timer *time.Timer
}

// NewWatcher watches path; load rebuilds the full configuration on change
func NewWatcher(path string, load func() (Config, error), logger zerolog.Logger) *Watcher {
	return &Watcher{
		path:     path,
		load:     load,
		debounce: defaultDebounce,
		logger:   logger.With().Str("component", "configwatcher").Logger(),
		updates:  make(chan Tuning, 1),
	}
}

// SetDebounce changes the delay between the last file event and the reload
func (w *Watcher) SetDebounce(d time.Duration) {
	if d > 0 {
		w.debounce = d
	}
}

// Updates delivers the most recent valid tuning; older unread ones are replaced
func (w *Watcher) Updates() <-chan Tuning {
	return w.updates
}

// Run watches until ctx is done. The parent directory is watched so editors
// that replace the file by rename are seen.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.logger.Info().Str("path", w.path).Msg("watching config file")

	name := filepath.Base(w.path)
	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.mu.Unlock()
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.schedule()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("config watcher error")
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	cfg, err := w.load()
	if err != nil {
		w.logger.Warn().Err(err).Msg("config reload rejected, keeping current tuning")
		return
	}

	t := cfg.Tuning()
	w.mu.Lock()
	defer w.mu.Unlock()
	select {
	case <-w.updates:
	default:
	}
	w.updates <- t
	w.logger.Info().
		Float64("min_area", t.Segmenter.MinArea).
		Int("alarm_delay", t.Tracker.AlarmDelay).
		Str("policy", t.Tracker.Policy.String()).
		Msg("config reloaded")
}
