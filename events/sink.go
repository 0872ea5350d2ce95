package events

import (
	"context"
	"sync"

	"firewatch/tracking"

	"go.uber.org/multierr"
)

// Sink persists fire events
type Sink interface {
	Record(ctx context.Context, ev tracking.FireEvent) error
	Close() error
}

// Multi records every event to all of its sinks
type Multi []Sink

// Record writes to each sink and combines their errors
func (m Multi) Record(ctx context.Context, ev tracking.FireEvent) error {
	var err error
	for _, s := range m {
		err = multierr.Append(err, s.Record(ctx, ev))
	}
	return err
}

// Close closes each sink and combines their errors
func (m Multi) Close() error {
	var err error
	for _, s := range m {
		err = multierr.Append(err, s.Close())
	}
	return err
}

// Gate lets one event per alarm through to the sink until Reset
type Gate struct {
	sink      Sink
	mu        sync.Mutex
	triggered bool
}

// NewGate wraps a sink with an "already alarmed" gate
func NewGate(sink Sink) *Gate {
	return &Gate{sink: sink}
}

// Record writes the event if the gate is open and closes the gate on success.
// It reports whether the event was written.
func (g *Gate) Record(ctx context.Context, ev tracking.FireEvent) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.triggered {
		return false, nil
	}
	if err := g.sink.Record(ctx, ev); err != nil {
		return false, err
	}
	g.triggered = true
	return true, nil
}

// Triggered reports whether an event has gone through since the last Reset
func (g *Gate) Triggered() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.triggered
}

// Reset reopens the gate for the next alarm
func (g *Gate) Reset() {
	g.mu.Lock()
	g.triggered = false
	g.mu.Unlock()
}

// Close closes the wrapped sink
func (g *Gate) Close() error {
	return g.sink.Close()
}
