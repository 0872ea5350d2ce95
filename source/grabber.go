package source

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"
)

// maxEmptyReads is how many empty reads in a row end the stream
const maxEmptyReads = 100

// Frame is one decoded image. The receiver owns Mat and must Close it.
type Frame struct {
	Mat gocv.Mat
	Seq int
	At  time.Time
}

// Grabber reads frames on its own goroutine and hands them over a one-slot
// channel. Live grabbers replace an unread frame with the newest one; file
// grabbers block so that no frame is skipped.
type Grabber struct {
	reader Reader
	live   bool
	logger zerolog.Logger
	frames chan Frame

	mu      sync.Mutex
	err     error
	dropped int
	done    chan struct{}
}

// NewGrabber wraps r. Set live for cameras and network streams.
func NewGrabber(r Reader, live bool, logger zerolog.Logger) *Grabber {
	return &Grabber{
		reader: r,
		live:   live,
		logger: logger.With().Str("component", "grabber").Logger(),
		frames: make(chan Frame, 1),
		done:   make(chan struct{}),
	}
}

// Start launches the read loop; it stops at end of stream or when ctx is done
func (g *Grabber) Start(ctx context.Context) {
	go g.run(ctx)
}

// Frames is closed when the read loop exits
func (g *Grabber) Frames() <-chan Frame {
	return g.frames
}

// Done is closed once the read loop has exited
func (g *Grabber) Done() <-chan struct{} {
	return g.done
}

// Err returns the error that stopped the read loop, nil at end of stream
func (g *Grabber) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.err
}

// Dropped counts frames discarded because the consumer was busy
func (g *Grabber) Dropped() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.dropped
}

// Drain closes any frames still queued after the consumer stopped reading
func (g *Grabber) Drain() {
	for f := range g.frames {
		f.Mat.Close()
	}
}

func (g *Grabber) run(ctx context.Context) {
	defer close(g.done)
	defer close(g.frames)

	seq := 0
	empty := 0
	for {
		if ctx.Err() != nil {
			return
		}

		m := gocv.NewMat()
		err := g.reader.Read(&m)
		switch {
		case errors.Is(err, ErrEmptyFrame):
			m.Close()
			empty++
			if empty >= maxEmptyReads {
				g.fail(fmt.Errorf("%d empty frames in a row: %w", empty, err))
				return
			}
			continue
		case errors.Is(err, ErrEndOfStream):
			m.Close()
			g.logger.Info().Int("frames", seq).Msg("video ended")
			return
		case err != nil:
			m.Close()
			g.fail(err)
			return
		}
		empty = 0

		f := Frame{Mat: m, Seq: seq, At: time.Now()}
		seq++
		if !g.deliver(ctx, f) {
			return
		}
	}
}

func (g *Grabber) deliver(ctx context.Context, f Frame) bool {
	if !g.live {
		select {
		case g.frames <- f:
			return true
		case <-ctx.Done():
			f.Mat.Close()
			return false
		}
	}

	select {
	case g.frames <- f:
		return true
	default:
	}

	// Consumer is behind: swap the stale frame for this one
	select {
	case stale := <-g.frames:
		stale.Mat.Close()
		g.mu.Lock()
		g.dropped++
		g.mu.Unlock()
	default:
	}
	g.frames <- f
	return true
}

func (g *Grabber) fail(err error) {
	g.mu.Lock()
	g.err = err
	g.mu.Unlock()
	g.logger.Error().Err(err).Msg("frame source failed")
}
