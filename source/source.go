package source

import (
	"context"
	"errors"
	"fmt"
	"image"
	"net/url"
	"strconv"
	"strings"

	"firewatch/pkg/ytdlp"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"
)

// DefaultTargetWidth is the processing width frames are scaled to
const DefaultTargetWidth = 640

var (
	// ErrEndOfStream means the capture has no more frames
	ErrEndOfStream = errors.New("source: end of stream")
	// ErrEmptyFrame is a transient read that returned no pixels
	ErrEmptyFrame = errors.New("source: empty frame")
)

// Kind is how a source string is opened
type Kind int

const (
	KindFile Kind = iota
	KindCamera
	KindStream
	KindYouTube
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindCamera:
		return "camera"
	case KindStream:
		return "stream"
	case KindYouTube:
		return "youtube"
	default:
		return "unknown"
	}
}

// Live reports whether frames arrive in real time and may be dropped
func (k Kind) Live() bool {
	return k != KindFile
}

// Classify decides how spec should be opened
func Classify(spec string) Kind {
	s := strings.TrimSpace(spec)
	if s != "" && isDigits(s) {
		return KindCamera
	}
	if ytdlp.IsYouTube(s) {
		return KindYouTube
	}
	if u, err := url.Parse(s); err == nil && u.Scheme != "" && u.Host != "" {
		return KindStream
	}
	return KindFile
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// URLResolver maps a page URL to a direct media URL
type URLResolver interface {
	Resolve(ctx context.Context, pageURL string) (string, error)
}

// Options controls how a source is opened
type Options struct {
	TargetWidth int // 0 keeps the native size
	Resolver    URLResolver
	Logger      zerolog.Logger
}

// Reader yields frames into a caller-owned Mat
type Reader interface {
	Read(dst *gocv.Mat) error
	Close() error
}

// Capture wraps an OpenCV capture and normalises frame size
type Capture struct {
	spec        string
	kind        Kind
	vc          *gocv.VideoCapture
	targetWidth int
	scratch     gocv.Mat
}

// Open classifies spec and opens the matching capture
func Open(ctx context.Context, spec string, opts Options) (*Capture, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, errors.New("source: empty source")
	}
	kind := Classify(spec)
	logger := opts.Logger.With().Str("component", "source").Logger()

	var (
		vc  *gocv.VideoCapture
		err error
	)
	switch kind {
	case KindCamera:
		idx, convErr := strconv.Atoi(spec)
		if convErr != nil {
			return nil, fmt.Errorf("camera index %q: %w", spec, convErr)
		}
		vc, err = gocv.OpenVideoCapture(idx)
	case KindYouTube:
		if opts.Resolver == nil {
			return nil, fmt.Errorf("no resolver for %s", spec)
		}
		direct, resolveErr := opts.Resolver.Resolve(ctx, spec)
		if resolveErr != nil {
			return nil, fmt.Errorf("extract youtube stream: %w", resolveErr)
		}
		vc, err = gocv.VideoCaptureFile(direct)
	default:
		vc, err = gocv.VideoCaptureFile(spec)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s source %q: %w", kind, spec, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("could not open video source %q", spec)
	}

	logger.Info().Str("source", spec).Str("kind", kind.String()).Int("target_width", opts.TargetWidth).Msg("video source opened")
	return &Capture{
		spec:        spec,
		kind:        kind,
		vc:          vc,
		targetWidth: opts.TargetWidth,
		scratch:     gocv.NewMat(),
	}, nil
}

func (c *Capture) Kind() Kind {
	return c.kind
}

func (c *Capture) Spec() string {
	return c.spec
}

// Read grabs the next frame into dst, scaled to the target width
func (c *Capture) Read(dst *gocv.Mat) error {
	if ok := c.vc.Read(dst); !ok {
		return ErrEndOfStream
	}
	if dst.Empty() {
		return ErrEmptyFrame
	}
	ResizeToWidth(dst, &c.scratch, c.targetWidth)
	return nil
}

func (c *Capture) Close() error {
	c.scratch.Close()
	return c.vc.Close()
}

// ResizeToWidth scales img in place to width, keeping its aspect ratio.
// scratch is reused between calls. A width of 0 leaves img untouched.
func ResizeToWidth(img, scratch *gocv.Mat, width int) {
	if width <= 0 || img.Cols() == width || img.Cols() == 0 {
		return
	}
	height := img.Rows() * width / img.Cols()
	if height <= 0 {
		height = 1
	}
	interp := gocv.InterpolationArea
	if width > img.Cols() {
		interp = gocv.InterpolationLinear
	}
	gocv.Resize(*img, scratch, image.Pt(width, height), 0, 0, interp)
	scratch.CopyTo(img)
}
