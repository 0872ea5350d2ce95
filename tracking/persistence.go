package tracking

import (
	"fmt"
	"math"

	"firewatch/detection"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// PersistenceTracker debounces per-frame detections into an alarm decision.
// It is not safe for concurrent use; feed it one frame at a time.
type PersistenceTracker struct {
	cfg    Config
	state  TrackState
	clock  clock.Clock
	logger zerolog.Logger
}

// Option configures a PersistenceTracker
type Option func(*PersistenceTracker)

// WithClock sets the clock used for event timestamps
func WithClock(c clock.Clock) Option {
	return func(t *PersistenceTracker) {
		t.clock = c
	}
}

// WithLogger sets the logger used for state transitions
func WithLogger(l zerolog.Logger) Option {
	return func(t *PersistenceTracker) {
		t.logger = l.With().Str("component", "tracker").Logger()
	}
}

// NewPersistenceTracker creates an idle tracker
func NewPersistenceTracker(cfg Config, opts ...Option) (*PersistenceTracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("tracker config: %w", err)
	}
	t := &PersistenceTracker{
		cfg:    cfg,
		clock:  clock.New(),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Config returns the active thresholds
func (t *PersistenceTracker) Config() Config {
	return t.cfg
}

// SetConfig retunes the tracker between frames without dropping the streak.
// Leaving the latching policy releases a held alarm.
func (t *PersistenceTracker) SetConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("tracker config: %w", err)
	}
	t.cfg = cfg
	if cfg.Policy != PolicyLatching && t.state.Latched {
		t.state.Latched = false
		t.logger.Debug().Msg("alarm policy no longer latching, releasing latch")
	}
	if n := len(t.state.AreaHistory); n > cfg.HistorySize {
		t.state.AreaHistory = append([]float64(nil), t.state.AreaHistory[n-cfg.HistorySize:]...)
	}
	return nil
}

// State returns a copy of the current track state
func (t *PersistenceTracker) State() TrackState {
	s := t.state
	if t.state.Origin != nil {
		origin := *t.state.Origin
		s.Origin = &origin
	}
	s.AreaHistory = append([]float64(nil), t.state.AreaHistory...)
	return s
}

// Reset returns to idle and releases a latched alarm
func (t *PersistenceTracker) Reset() {
	t.clear()
	t.state.Latched = false
	t.logger.Debug().Msg("tracker reset")
}

// Step consumes the region found in the current frame (nil when none) and
// reports whether the alarm is raised. The event is non-nil only on steps
// that fire the alarm.
func (t *PersistenceTracker) Step(region *detection.Region) (bool, *FireEvent) {
	if region == nil {
		t.decay()
		return t.state.Latched, nil
	}

	cx, cy := region.Centroid()

	if t.state.Streak == 0 {
		t.state.Origin = &Point{X: cx, Y: cy}
		t.state.AreaHistory = t.state.AreaHistory[:0]
		t.state.Streak = 1
		t.logger.Debug().Float64("x", cx).Float64("y", cy).Msg("tracking new candidate")
		return t.state.Latched, nil
	}

	// Motion gate: fire does not travel
	drift := math.Hypot(cx-t.state.Origin.X, cy-t.state.Origin.Y)
	if drift > t.cfg.WanderTolerance {
		t.logger.Debug().Float64("drift", drift).Int("streak", t.state.Streak).Msg("candidate moved, resetting")
		t.clear()
		return t.state.Latched, nil
	}

	t.pushArea(region.Area)
	if len(t.state.AreaHistory) < t.cfg.MinSamples {
		return t.state.Latched, nil
	}

	// Variance gate: lamps hold a constant area, flames flicker
	if change, ok := t.relativeChange(); ok && change < t.cfg.StaticVariance {
		t.logger.Debug().Float64("relative_change", change).Msg("candidate area static, holding")
		return t.state.Latched, nil
	}

	t.state.Streak++
	if t.state.Streak < t.cfg.AlarmDelay {
		return t.state.Latched, nil
	}

	if t.cfg.Policy == PolicyLatching && t.state.Latched {
		return true, nil
	}

	event := &FireEvent{
		Timestamp: t.clock.Now(),
		Box:       region.Box,
	}
	if t.cfg.Policy == PolicyLatching {
		t.state.Latched = true
	}
	t.logger.Info().Int("streak", t.state.Streak).Str("box", region.Box.String()).Msg("fire alarm raised")
	return true, event
}

func (t *PersistenceTracker) decay() {
	if t.state.Streak == 0 {
		return
	}
	t.state.Streak -= t.cfg.DecayStep
	if t.state.Streak <= 0 {
		t.logger.Debug().Msg("candidate lost, back to idle")
		t.clear()
	}
}

func (t *PersistenceTracker) clear() {
	t.state.Streak = 0
	t.state.Origin = nil
	t.state.AreaHistory = t.state.AreaHistory[:0]
}

func (t *PersistenceTracker) pushArea(area float64) {
	t.state.AreaHistory = append(t.state.AreaHistory, area)
	if over := len(t.state.AreaHistory) - t.cfg.HistorySize; over > 0 {
		t.state.AreaHistory = append(t.state.AreaHistory[:0], t.state.AreaHistory[over:]...)
	}
}

// relativeChange returns (max-min)/mean of the area history.
// ok is false when the mean is zero and the ratio is undefined.
func (t *PersistenceTracker) relativeChange() (float64, bool) {
	h := t.state.AreaHistory
	mean := stat.Mean(h, nil)
	if mean == 0 {
		return 0, false
	}
	return (floats.Max(h) - floats.Min(h)) / mean, true
}
