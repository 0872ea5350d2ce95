package pipeline

import (
	"context"
	"fmt"
	"time"

	"firewatch/config"
	"firewatch/detection"
	"firewatch/events"
	"firewatch/overlay"
	"firewatch/relay"
	"firewatch/source"
	"firewatch/tracking"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"
)

const (
	deactivateTimeout = 5 * time.Second
	quitPollMillis    = 100
)

// Tracker turns per-frame regions into an alarm decision
type Tracker interface {
	Step(region *detection.Region) (bool, *tracking.FireEvent)
	State() tracking.TrackState
	Config() tracking.Config
	SetConfig(cfg tracking.Config) error
	Reset()
}

// Analyzer is implemented by detectors that can report the scene tier
type Analyzer interface {
	Analyze(frame *gocv.Mat) (detection.Analysis, error)
}

// Renderer shows annotated frames and reads operator keys
type Renderer interface {
	Render(frame gocv.Mat, v overlay.View) overlay.Key
	WaitKey(ms int) overlay.Key
}

// Summary describes a finished run
type Summary struct {
	Frames         int
	EventsRaised   int
	EventsRecorded int
	AlarmFired     bool
}

// Pipeline runs segmentation and tracking over a frame stream
type Pipeline struct {
	detector    detection.Detector
	tracker     Tracker
	renderer    Renderer
	gate        *events.Gate
	relay       relay.Controller
	tuning      <-chan config.Tuning
	stopOnAlarm bool
	logger      zerolog.Logger

	relayArmed bool // Activate sent and not yet undone
}

// Option configures a Pipeline
type Option func(*Pipeline)

func WithRenderer(r Renderer) Option {
	return func(p *Pipeline) { p.renderer = r }
}

// WithSink records events through a once-per-alarm gate
func WithSink(s events.Sink) Option {
	return func(p *Pipeline) {
		if s != nil {
			p.gate = events.NewGate(s)
		}
	}
}

func WithRelay(c relay.Controller) Option {
	return func(p *Pipeline) {
		if c != nil {
			p.relay = c
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(p *Pipeline) { p.logger = l.With().Str("component", "pipeline").Logger() }
}

// WithTuning applies tunings received on ch between frames
func WithTuning(ch <-chan config.Tuning) Option {
	return func(p *Pipeline) { p.tuning = ch }
}

// WithStopOnAlarm stops consuming frames after the first event and waits for quit
func WithStopOnAlarm(stop bool) Option {
	return func(p *Pipeline) { p.stopOnAlarm = stop }
}

// New wires a detector and tracker with optional collaborators
func New(detector detection.Detector, tracker Tracker, opts ...Option) *Pipeline {
	p := &Pipeline{
		detector: detector,
		tracker:  tracker,
		relay:    relay.Noop{},
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run processes frames until the channel closes, ctx is done or the operator
// quits. Frames are closed after use. An Extract error ends the run.
func (p *Pipeline) Run(ctx context.Context, frames <-chan source.Frame) (Summary, error) {
	var sum Summary
	defer p.shutdown()

	p.logger.Info().Msg("system running, waiting for fire")
	for {
		p.applyTuning()

		select {
		case <-ctx.Done():
			return sum, nil
		case f, ok := <-frames:
			if !ok {
				p.logger.Info().Int("frames", sum.Frames).Msg("video ended")
				return sum, nil
			}
			key, err := p.process(ctx, &f.Mat, &sum)
			f.Mat.Close()
			if err != nil {
				return sum, fmt.Errorf("frame %d: %w", f.Seq, err)
			}
			if key == overlay.KeyQuit {
				p.logger.Info().Msg("quit requested")
				return sum, nil
			}
			if p.stopOnAlarm && sum.EventsRaised > 0 {
				p.waitForQuit(ctx)
				return sum, nil
			}
		}
	}
}

func (p *Pipeline) process(ctx context.Context, frame *gocv.Mat, sum *Summary) (overlay.Key, error) {
	view := overlay.View{}
	var region *detection.Region

	if a, ok := p.detector.(Analyzer); ok {
		analysis, err := a.Analyze(frame)
		if err != nil {
			return overlay.KeyNone, err
		}
		region = analysis.Region
		view.Tier = analysis.Thresholds.Tier
		view.Brightness = analysis.Brightness
	} else {
		r, err := p.detector.Extract(frame)
		if err != nil {
			return overlay.KeyNone, err
		}
		region = r
	}
	sum.Frames++

	alarm, event := p.tracker.Step(region)
	if event != nil {
		sum.EventsRaised++
		p.logger.Warn().
			Time("timestamp", event.Timestamp).
			Str("box", event.Box.String()).
			Msg("FIRE DETECTED - ALARM TRIGGERED")
		if p.record(ctx, *event) {
			sum.EventsRecorded++
		}
	}
	if alarm {
		sum.AlarmFired = true
		if !p.relayArmed {
			if p.relay.Activate() {
				p.relayArmed = true
			} else {
				p.logger.Warn().Msg("relay activation not queued, retrying on next alarm")
			}
		}
	}

	if p.renderer == nil {
		return overlay.KeyNone, nil
	}
	state := p.tracker.State()
	view.Region = region
	view.Event = event
	view.Alarm = alarm
	view.Streak = state.Streak
	view.AlarmDelay = p.tracker.Config().AlarmDelay

	key := p.renderer.Render(*frame, view)
	if key == overlay.KeyReset {
		p.rearm(ctx)
	}
	return key, nil
}

func (p *Pipeline) record(ctx context.Context, ev tracking.FireEvent) bool {
	if p.gate == nil {
		return false
	}
	wrote, err := p.gate.Record(ctx, ev)
	if err != nil {
		p.logger.Error().Err(err).Msg("failed to record fire event")
		return false
	}
	return wrote
}

// rearm clears the alarm so the next fire is reported again
func (p *Pipeline) rearm(ctx context.Context) {
	p.logger.Info().Msg("alarm reset by operator")
	if p.gate != nil {
		p.gate.Reset()
	}
	p.tracker.Reset()
	if p.relayArmed {
		p.relay.Deactivate(ctx)
		p.relayArmed = false
	}
}

func (p *Pipeline) applyTuning() {
	if p.tuning == nil {
		return
	}
	for {
		select {
		case t, ok := <-p.tuning:
			if !ok {
				p.tuning = nil
				return
			}
			if err := p.detector.SetConfig(t.Segmenter); err != nil {
				p.logger.Warn().Err(err).Msg("segmenter tuning rejected")
			}
			if err := p.tracker.SetConfig(t.Tracker); err != nil {
				p.logger.Warn().Err(err).Msg("tracker tuning rejected")
			}
			p.logger.Info().Msg("tuning applied")
		default:
			return
		}
	}
}

func (p *Pipeline) waitForQuit(ctx context.Context) {
	p.logger.Info().Msg("video stopped, alarm sent; press 'q' to stop alarm and exit")
	if p.renderer == nil {
		<-ctx.Done()
		return
	}
	for ctx.Err() == nil {
		if p.renderer.WaitKey(quitPollMillis) == overlay.KeyQuit {
			return
		}
	}
}

func (p *Pipeline) shutdown() {
	if !p.relayArmed {
		return
	}
	p.logger.Info().Msg("stopping alarm")
	ctx, cancel := context.WithTimeout(context.Background(), deactivateTimeout)
	defer cancel()
	p.relay.Deactivate(ctx)
}
