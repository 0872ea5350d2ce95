package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultTimeout = 2 * time.Second
	defaultRetries = 3
	queueSize      = 4
)

// Controller drives the remote alarm
type Controller interface {
	Start()
	Stop()
	// Activate queues an "on" command and reports whether it was accepted
	Activate() bool
	// Deactivate supersedes pending activations, sends "off" and waits for it
	Deactivate(ctx context.Context)
	State() AlarmState
}

// Command is one request for the relay worker
type Command struct {
	Target AlarmState
	Reason string

	gen  uint64
	ctx  context.Context
	done chan struct{}
}

type statusRequest struct {
	Status string `json:"status"`
}

// HTTPController talks to a buzzer relay over HTTP. Network failures are
// logged and never surfaced to the caller. Commands run one at a time on a
// worker goroutine; a Deactivate invalidates every "on" issued before it.
type HTTPController struct {
	endpoint    string
	client      *http.Client
	retries     int
	logger      zerolog.Logger
	commandChan chan Command

	// queueMu guards the command channel lifecycle
	queueMu sync.RWMutex
	started bool
	stopped bool
	wg      sync.WaitGroup

	mu           sync.Mutex
	state        AlarmState
	gen          uint64
	cancelActive context.CancelFunc

	OnStateChanged func(oldState, newState AlarmState)
}

// Option configures an HTTPController
type Option func(*HTTPController)

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPController) {
		if d > 0 {
			c.client.Timeout = d
		}
	}
}

// WithRetries sets how many attempts a command gets
func WithRetries(n int) Option {
	return func(c *HTTPController) {
		if n > 0 {
			c.retries = n
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *HTTPController) {
		c.logger = l.With().Str("component", "relay").Logger()
	}
}

// WithHTTPClient replaces the HTTP client; its timeout is kept as-is
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPController) {
		if hc != nil {
			c.client = hc
		}
	}
}

// NewHTTPController creates a controller for the relay at baseURL
// (for example http://192.168.1.50:5000)
func NewHTTPController(baseURL string, opts ...Option) *HTTPController {
	c := &HTTPController{
		endpoint:    strings.TrimRight(baseURL, "/") + "/alarm",
		client:      &http.Client{Timeout: DefaultTimeout},
		retries:     defaultRetries,
		logger:      zerolog.Nop(),
		commandChan: make(chan Command, queueSize),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the URL commands are posted to
func (c *HTTPController) Endpoint() string {
	return c.endpoint
}

// Start begins processing queued commands
func (c *HTTPController) Start() {
	c.queueMu.Lock()
	defer c.queueMu.Unlock()
	if c.started || c.stopped {
		return
	}
	c.started = true
	c.wg.Add(1)
	go c.processCommands()
}

// Stop drains the queue and waits for the worker to exit
func (c *HTTPController) Stop() {
	c.queueMu.Lock()
	if c.stopped {
		c.queueMu.Unlock()
		return
	}
	c.stopped = true
	close(c.commandChan)
	c.queueMu.Unlock()
	c.wg.Wait()
}

func (c *HTTPController) Activate() bool {
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()

	cmd := Command{Target: SOUNDING, Reason: "fire alarm", gen: gen}

	c.queueMu.RLock()
	defer c.queueMu.RUnlock()
	if c.stopped {
		return false
	}
	select {
	case c.commandChan <- cmd:
		return true
	default:
		c.logger.Warn().Str("target", cmd.Target.String()).Msg("relay queue full, dropping command")
		return false
	}
}

func (c *HTTPController) Deactivate(ctx context.Context) {
	c.mu.Lock()
	c.gen++
	if c.cancelActive != nil {
		c.cancelActive()
	}
	gen := c.gen
	c.mu.Unlock()

	cmd := Command{Target: IDLE, Reason: "deactivate", gen: gen, ctx: ctx, done: make(chan struct{})}

	c.queueMu.RLock()
	if !c.started || c.stopped {
		stopped := c.stopped
		c.queueMu.RUnlock()
		if stopped {
			// Let a draining worker finish before sending directly
			c.wg.Wait()
		}
		c.execute(ctx, cmd)
		return
	}
	select {
	case c.commandChan <- cmd:
	case <-ctx.Done():
		c.queueMu.RUnlock()
		c.logger.Error().Err(ctx.Err()).Msg("relay deactivation not queued")
		return
	}
	c.queueMu.RUnlock()

	select {
	case <-cmd.done:
	case <-ctx.Done():
		c.logger.Warn().Err(ctx.Err()).Msg("gave up waiting for relay deactivation")
	}
}

func (c *HTTPController) State() AlarmState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *HTTPController) processCommands() {
	defer c.wg.Done()
	for cmd := range c.commandChan {
		c.run(cmd)
	}
}

func (c *HTTPController) run(cmd Command) {
	if cmd.done != nil {
		defer close(cmd.done)
	}
	if cmd.Target == IDLE {
		ctx := cmd.ctx
		if ctx == nil {
			ctx = context.Background()
		}
		c.execute(ctx, cmd)
		return
	}

	ctx, ok := c.begin(cmd.gen)
	if !ok {
		c.logger.Debug().Str("reason", cmd.Reason).Msg("skipping superseded relay command")
		return
	}
	defer c.finish()
	c.execute(ctx, cmd)
}

// begin registers cmd as the in-flight activation unless a Deactivate has
// been issued since it was queued
func (c *HTTPController) begin(gen uint64) (context.Context, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return nil, false
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancelActive = cancel
	return ctx, true
}

func (c *HTTPController) finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancelActive != nil {
		c.cancelActive()
		c.cancelActive = nil
	}
}

func (c *HTTPController) execute(ctx context.Context, cmd Command) {
	c.logger.Debug().Str("target", cmd.Target.String()).Str("reason", cmd.Reason).Msg("executing relay command")

	var lastErr error
	for attempt := 1; attempt <= c.retries; attempt++ {
		lastErr = c.post(ctx, cmd.Target.Status())
		if lastErr == nil {
			c.setState(cmd.Target)
			return
		}
		if ctx.Err() != nil {
			break
		}
		c.logger.Debug().Err(lastErr).Int("attempt", attempt).Msg("relay request failed")
	}
	if cmd.Target == SOUNDING && ctx.Err() != nil {
		c.logger.Debug().Msg("relay activation superseded by deactivate")
		return
	}
	c.logger.Error().Err(lastErr).Str("endpoint", c.endpoint).Str("target", cmd.Target.String()).Msg("relay command failed")
}

func (c *HTTPController) post(ctx context.Context, status string) error {
	body, err := json.Marshal(statusRequest{Status: status})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", status, err)
	}
	defer resp.Body.Close()
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("relay answered %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

func (c *HTTPController) setState(s AlarmState) {
	c.mu.Lock()
	old := c.state
	c.state = s
	cb := c.OnStateChanged
	c.mu.Unlock()

	if old != s {
		c.logger.Info().Str("from", old.String()).Str("to", s.String()).Msg("relay state changed")
		if cb != nil {
			cb(old, s)
		}
	}
}

// Noop is used when no relay is configured
type Noop struct{}

func (Noop) Start()                     {}
func (Noop) Stop()                      {}
func (Noop) Activate() bool             { return true }
func (Noop) Deactivate(context.Context) {}
func (Noop) State() AlarmState          { return IDLE }
