package detection

import (
	"errors"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

var (
	orange = color.RGBA{R: 255, G: 165, B: 0, A: 0}
	brown  = color.RGBA{R: 140, G: 80, B: 40, A: 0}
)

func newTestSegmenter(t *testing.T, cfg Config) *Segmenter {
	t.Helper()
	s, err := NewSegmenter(cfg, zerolog.Nop())
	require.NoError(t, err)
	return s
}

// solidFrame returns a 640x480 BGR frame filled with c
func solidFrame(c color.RGBA) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(float64(c.B), float64(c.G), float64(c.R), 0), 480, 640, gocv.MatTypeCV8UC3)
}

func fillRect(m *gocv.Mat, r image.Rectangle, c color.RGBA) {
	gocv.Rectangle(m, r, c, -1)
}

func TestExtractRejectsMissingFrame(t *testing.T) {
	s := newTestSegmenter(t, DefaultConfig())

	_, err := s.Extract(nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	empty := gocv.NewMat()
	defer empty.Close()
	_, err = s.Extract(&empty)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestExtractRejectsSingleChannelFrame(t *testing.T) {
	s := newTestSegmenter(t, DefaultConfig())

	gray := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 48, 64, gocv.MatTypeCV8UC1)
	defer gray.Close()

	_, err := s.Extract(&gray)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestExtractBlackFrame(t *testing.T) {
	s := newTestSegmenter(t, DefaultConfig())
	frame := solidFrame(color.RGBA{})
	defer frame.Close()

	region, err := s.Extract(&frame)
	require.NoError(t, err)
	assert.Nil(t, region)
}

func TestExtractOrangeRectangleOnBlack(t *testing.T) {
	s := newTestSegmenter(t, DefaultConfig())
	frame := solidFrame(color.RGBA{})
	defer frame.Close()
	fillRect(&frame, image.Rect(100, 100, 200, 200), orange)

	analysis, err := s.Analyze(&frame)
	require.NoError(t, err)
	assert.Equal(t, TierDark, analysis.Thresholds.Tier)
	require.NotNil(t, analysis.Region)

	box := analysis.Region.Box
	assert.InDelta(t, 100, box.Min.X, 8)
	assert.InDelta(t, 100, box.Min.Y, 8)
	assert.InDelta(t, 200, box.Max.X, 8)
	assert.InDelta(t, 200, box.Max.Y, 8)
	assert.Greater(t, analysis.Region.Area, 6000.0)
	assert.Less(t, analysis.Region.Area, 10500.0)

	cx, cy := analysis.Region.Centroid()
	assert.InDelta(t, 150, cx, 3)
	assert.InDelta(t, 150, cy, 3)
}

func TestExtractPicksLargestRegion(t *testing.T) {
	s := newTestSegmenter(t, DefaultConfig())
	frame := solidFrame(color.RGBA{})
	defer frame.Close()
	fillRect(&frame, image.Rect(40, 40, 110, 110), orange)
	fillRect(&frame, image.Rect(300, 200, 480, 380), orange)

	region, err := s.Extract(&frame)
	require.NoError(t, err)
	require.NotNil(t, region)
	assert.True(t, region.Box.Overlaps(image.Rect(300, 200, 480, 380)))
	assert.False(t, region.Box.Overlaps(image.Rect(40, 40, 110, 110)))
}

func TestExtractIgnoresSpecks(t *testing.T) {
	s := newTestSegmenter(t, DefaultConfig())
	frame := solidFrame(color.RGBA{})
	defer frame.Close()
	// The blur smears an 8x8 spot well below the minimum brightness
	fillRect(&frame, image.Rect(300, 200, 308, 208), orange)

	region, err := s.Extract(&frame)
	require.NoError(t, err)
	assert.Nil(t, region)
}

func TestExtractAppliesMinArea(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinArea = 20000
	s := newTestSegmenter(t, cfg)
	frame := solidFrame(color.RGBA{})
	defer frame.Close()
	fillRect(&frame, image.Rect(100, 100, 200, 200), orange)

	analysis, err := s.Analyze(&frame)
	require.NoError(t, err)
	assert.Nil(t, analysis.Region)
	assert.Greater(t, analysis.LargestArea, 0.0)
}

func TestExtractRejectsDullBrown(t *testing.T) {
	s := newTestSegmenter(t, DefaultConfig())
	frame := solidFrame(color.RGBA{})
	defer frame.Close()
	fillRect(&frame, image.Rect(100, 100, 300, 300), brown)

	region, err := s.Extract(&frame)
	require.NoError(t, err)
	assert.Nil(t, region)
}

func TestExtractBrightScene(t *testing.T) {
	s := newTestSegmenter(t, DefaultConfig())

	t.Run("white frame has no fire", func(t *testing.T) {
		frame := solidFrame(color.RGBA{R: 255, G: 255, B: 255})
		defer frame.Close()

		analysis, err := s.Analyze(&frame)
		require.NoError(t, err)
		assert.Equal(t, TierBright, analysis.Thresholds.Tier)
		assert.Nil(t, analysis.Region)
	})

	t.Run("vivid flame on light background", func(t *testing.T) {
		frame := solidFrame(color.RGBA{R: 200, G: 200, B: 200})
		defer frame.Close()
		fillRect(&frame, image.Rect(200, 150, 320, 270), orange)

		analysis, err := s.Analyze(&frame)
		require.NoError(t, err)
		assert.Equal(t, TierBright, analysis.Thresholds.Tier)
		require.NotNil(t, analysis.Region)
		assert.True(t, analysis.Region.Box.Overlaps(image.Rect(200, 150, 320, 270)))
	})
}

func TestExtractWritesDebugMask(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DebugMaskPath = filepath.Join(t.TempDir(), "mask.png")
	s := newTestSegmenter(t, cfg)
	frame := solidFrame(color.RGBA{})
	defer frame.Close()
	fillRect(&frame, image.Rect(100, 100, 200, 200), orange)

	_, err := s.Extract(&frame)
	require.NoError(t, err)

	mask := gocv.IMRead(cfg.DebugMaskPath, gocv.IMReadGrayScale)
	defer mask.Close()
	require.False(t, mask.Empty())
	assert.Greater(t, gocv.CountNonZero(mask), 0)
}

func TestSetConfigValidates(t *testing.T) {
	s := newTestSegmenter(t, DefaultConfig())

	bad := DefaultConfig()
	bad.BlurKernel = 20
	assert.Error(t, s.SetConfig(bad))
	assert.Equal(t, 21, s.Config().BlurKernel)

	good := DefaultConfig()
	good.MinArea = 500
	require.NoError(t, s.SetConfig(good))
	assert.Equal(t, 500.0, s.Config().MinArea)
}
