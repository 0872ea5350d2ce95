package detection

import (
	"errors"
	"image"

	"gocv.io/x/gocv"
)

// ErrInvalidInput is returned when the frame is missing or cannot be segmented
var ErrInvalidInput = errors.New("detection: invalid input frame")

// Region is the largest fire-coloured blob found in a frame
type Region struct {
	Box  image.Rectangle
	Area float64
}

// Centroid returns the centre of the region's bounding box
func (r Region) Centroid() (float64, float64) {
	return float64(r.Box.Min.X) + float64(r.Box.Dx())/2, float64(r.Box.Min.Y) + float64(r.Box.Dy())/2
}

// Detector turns a frame into at most one candidate region.
// A nil region with a nil error means nothing fire-coloured qualified.
type Detector interface {
	Extract(frame *gocv.Mat) (*Region, error)
	SetConfig(cfg Config) error
}
