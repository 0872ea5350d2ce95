package tracking

import (
	"errors"
	"fmt"
	"image"
	"strings"
	"time"
)

// AlarmPolicy decides what happens after the alarm first fires
type AlarmPolicy int

const (
	// PolicyContinuous raises the alarm (and a new event) on every qualifying
	// step while the streak stays at or above the alarm delay
	PolicyContinuous AlarmPolicy = iota
	// PolicyLatching raises one event and holds the alarm until Reset
	PolicyLatching
)

func (p AlarmPolicy) String() string {
	switch p {
	case PolicyContinuous:
		return "continuous"
	case PolicyLatching:
		return "latching"
	default:
		return "unknown"
	}
}

// ParseAlarmPolicy maps a config string onto a policy
func ParseAlarmPolicy(s string) (AlarmPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "continuous":
		return PolicyContinuous, nil
	case "latching", "latch":
		return PolicyLatching, nil
	default:
		return PolicyContinuous, fmt.Errorf("unknown alarm policy %q", s)
	}
}

// Point is a centroid in pixel coordinates
type Point struct {
	X float64
	Y float64
}

// TrackState is the temporal state of the single tracked candidate
type TrackState struct {
	Streak      int       // Consecutive qualifying frames
	Origin      *Point    // Centroid that started the streak, nil when idle
	AreaHistory []float64 // Recent areas, oldest first
	Latched     bool      // Set by PolicyLatching once the alarm fired
}

// Idle reports whether nothing is being tracked
func (s TrackState) Idle() bool {
	return s.Streak == 0
}

// FireEvent is produced on the step that raises the alarm
type FireEvent struct {
	Timestamp time.Time
	Box       image.Rectangle
}

// Config holds the tracker thresholds
type Config struct {
	WanderTolerance float64 // Max centroid drift from the origin, px
	HistorySize     int     // Area samples kept
	MinSamples      int     // Samples needed before the variance gate is evaluated
	StaticVariance  float64 // (max-min)/mean below this is a static light
	AlarmDelay      int     // Streak that raises the alarm
	DecayStep       int     // Streak lost per frame without a region
	Policy          AlarmPolicy
}

// DefaultConfig returns the field-tested thresholds
func DefaultConfig() Config {
	return Config{
		WanderTolerance: 40,
		HistorySize:     10,
		MinSamples:      5,
		StaticVariance:  0.05,
		AlarmDelay:      15,
		DecayStep:       2,
		Policy:          PolicyContinuous,
	}
}

// Validate rejects configurations the state machine cannot honour
func (c Config) Validate() error {
	if c.WanderTolerance <= 0 {
		return errors.New("wander tolerance must be positive")
	}
	if c.HistorySize <= 0 {
		return errors.New("history size must be positive")
	}
	if c.MinSamples <= 0 || c.MinSamples > c.HistorySize {
		return fmt.Errorf("min samples must be in [1, %d], got %d", c.HistorySize, c.MinSamples)
	}
	if c.StaticVariance < 0 {
		return errors.New("static variance must not be negative")
	}
	if c.AlarmDelay <= 0 {
		return errors.New("alarm delay must be positive")
	}
	if c.DecayStep <= 0 {
		return errors.New("decay step must be positive")
	}
	if c.Policy != PolicyContinuous && c.Policy != PolicyLatching {
		return fmt.Errorf("unknown alarm policy %d", c.Policy)
	}
	return nil
}
