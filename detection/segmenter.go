package detection

import (
	"fmt"
	"image"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"
)

// Analysis is the full result of segmenting one frame
type Analysis struct {
	Region      *Region // nil when nothing qualified
	Brightness  float64 // Mean grayscale luminance of the blurred frame
	Thresholds  Thresholds
	LargestArea float64 // Largest contour area, even when below MinArea
	Contours    int
}

// Segmenter finds fire-coloured regions with brightness-adaptive HSV thresholds.
// It keeps no state between frames.
type Segmenter struct {
	cfg    Config
	logger zerolog.Logger
}

// NewSegmenter creates a segmenter with a validated configuration
func NewSegmenter(cfg Config, logger zerolog.Logger) (*Segmenter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("segmenter config: %w", err)
	}
	return &Segmenter{
		cfg:    cfg,
		logger: logger.With().Str("component", "segmenter").Logger(),
	}, nil
}

// Config returns the active configuration
func (s *Segmenter) Config() Config {
	return s.cfg
}

// SetConfig swaps the tunables; callers must not overlap it with Extract
func (s *Segmenter) SetConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("segmenter config: %w", err)
	}
	s.cfg = cfg
	return nil
}

// Extract returns the largest qualifying region, or nil when there is none
func (s *Segmenter) Extract(frame *gocv.Mat) (*Region, error) {
	analysis, err := s.Analyze(frame)
	if err != nil {
		return nil, err
	}
	return analysis.Region, nil
}

// Analyze runs the segmentation and reports the intermediate measurements
func (s *Segmenter) Analyze(frame *gocv.Mat) (Analysis, error) {
	if frame == nil || frame.Empty() {
		return Analysis{}, ErrInvalidInput
	}
	if frame.Channels() != 3 {
		return Analysis{}, fmt.Errorf("%w: expected 3 channels, got %d", ErrInvalidInput, frame.Channels())
	}

	// Blur first so single hot pixels never survive the threshold
	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(*frame, &blurred, image.Pt(s.cfg.BlurKernel, s.cfg.BlurKernel), 0, 0, gocv.BorderDefault)

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(blurred, &gray, gocv.ColorBGRToGray)
	brightness := gray.Mean().Val1

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(blurred, &hsv, gocv.ColorBGRToHSV)

	th := s.cfg.ThresholdsFor(brightness)
	mask := gocv.NewMat()
	defer mask.Close()
	gocv.InRangeWithScalar(hsv,
		gocv.NewScalar(th.Lower.H, th.Lower.S, th.Lower.V, 0),
		gocv.NewScalar(th.Upper.H, th.Upper.S, th.Upper.V, 0),
		&mask)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(s.cfg.MorphKernel, s.cfg.MorphKernel))
	defer kernel.Close()

	closed := gocv.NewMat()
	defer closed.Close()
	gocv.MorphologyEx(mask, &closed, gocv.MorphClose, kernel)

	cleaned := gocv.NewMat()
	defer cleaned.Close()
	gocv.Erode(closed, &cleaned, kernel)

	if s.cfg.DebugMaskPath != "" {
		if ok := gocv.IMWrite(s.cfg.DebugMaskPath, cleaned); !ok {
			s.logger.Warn().Str("path", s.cfg.DebugMaskPath).Msg("failed to write debug mask")
		}
	}

	analysis := Analysis{
		Brightness: brightness,
		Thresholds: th,
	}

	contours := gocv.FindContours(cleaned, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()
	analysis.Contours = contours.Size()
	if contours.Size() == 0 {
		s.logDecision(analysis)
		return analysis, nil
	}

	maxIdx := -1
	for i := 0; i < contours.Size(); i++ {
		area := gocv.ContourArea(contours.At(i))
		if maxIdx < 0 || area > analysis.LargestArea {
			analysis.LargestArea = area
			maxIdx = i
		}
	}

	if analysis.LargestArea >= s.cfg.MinArea {
		analysis.Region = &Region{
			Box:  gocv.BoundingRect(contours.At(maxIdx)),
			Area: analysis.LargestArea,
		}
	}

	s.logDecision(analysis)
	return analysis, nil
}

func (s *Segmenter) logDecision(a Analysis) {
	ev := s.logger.Debug().
		Float64("brightness", a.Brightness).
		Stringer("tier", a.Thresholds.Tier).
		Int("contours", a.Contours).
		Float64("largest_area", a.LargestArea)
	if a.Region != nil {
		ev = ev.Str("box", a.Region.Box.String())
	}
	ev.Msg("segmented frame")
}
