package ytdlp

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultBinary  = "yt-dlp"
	DefaultFormat  = "best[ext=mp4]/best"
	DefaultTimeout = 30 * time.Second
	stderrLines    = 50
)

// ErrNoURL is returned when yt-dlp exits cleanly without printing a media URL
var ErrNoURL = errors.New("ytdlp: no media url returned")

var youtubeHosts = []string{"youtube.com", "youtu.be"}

// IsYouTube reports whether uri points at a YouTube page
func IsYouTube(uri string) bool {
	u, err := url.Parse(strings.TrimSpace(uri))
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range youtubeHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

// Resolver turns YouTube page URLs into direct media URLs OpenCV can open
type Resolver struct {
	Binary  string
	Format  string
	Timeout time.Duration
	Logger  zerolog.Logger
}

// NewResolver returns a resolver using the yt-dlp on PATH
func NewResolver(logger zerolog.Logger) *Resolver {
	return &Resolver{
		Binary:  DefaultBinary,
		Format:  DefaultFormat,
		Timeout: DefaultTimeout,
		Logger:  logger.With().Str("component", "ytdlp").Logger(),
	}
}

// Resolve runs yt-dlp -g and returns the first URL it prints
func (r *Resolver) Resolve(ctx context.Context, pageURL string) (string, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, r.binary(), "-f", r.format(), "-g", "--no-warnings", pageURL)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", fmt.Errorf("stderr pipe: %w", err)
	}

	r.Logger.Debug().Str("url", pageURL).Str("format", r.format()).Msg("resolving stream")
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start %s: %w", r.binary(), err)
	}

	buf := NewOutputBuffer(stderrLines)
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		buf.Add(scanner.Text())
	}

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("resolve %s: %w", pageURL, ctx.Err())
		}
		return "", fmt.Errorf("resolve %s: %w: %s", pageURL, err, strings.Join(buf.Recent(), "\n"))
	}

	for _, line := range strings.Split(stdout.String(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			r.Logger.Info().Str("url", pageURL).Msg("stream resolved")
			return line, nil
		}
	}
	return "", ErrNoURL
}

func (r *Resolver) binary() string {
	if r.Binary == "" {
		return DefaultBinary
	}
	return r.Binary
}

func (r *Resolver) format() string {
	if r.Format == "" {
		return DefaultFormat
	}
	return r.Format
}
