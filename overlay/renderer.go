package overlay

import (
	"fmt"
	"image"
	"image/color"

	"firewatch/detection"
	"firewatch/tracking"

	"gocv.io/x/gocv"
)

// DefaultWindowTitle is the HighGUI window name
const DefaultWindowTitle = "Fire Detection System"

const (
	StatusAlarm      = "STATUS: ALARM ACTIVE"
	StatusMonitoring = "STATUS: MONITORING"
	keyHint          = "Press 'r' to re-arm | 'q' to quit"
)

// Key is an operator command read from the keyboard
type Key int

const (
	KeyNone Key = iota
	KeyQuit
	KeyReset
)

func (k Key) String() string {
	switch k {
	case KeyQuit:
		return "quit"
	case KeyReset:
		return "reset"
	default:
		return "none"
	}
}

// KeyFromCode maps a gocv.WaitKey result to a Key
func KeyFromCode(code int) Key {
	if code < 0 {
		return KeyNone
	}
	switch code & 0xFF {
	case 'q', 'Q', 27:
		return KeyQuit
	case 'r', 'R', 'd', 'D':
		return KeyReset
	default:
		return KeyNone
	}
}

// View is everything the overlay shows for one frame
type View struct {
	Region     *detection.Region   // Candidate found in this frame
	Event      *tracking.FireEvent // Set on frames that raised the alarm
	Alarm      bool
	Streak     int
	AlarmDelay int
	Tier       detection.BrightnessTier
	Brightness float64
}

// Palette holds the overlay colours
type Palette struct {
	Fire       color.RGBA
	Candidate  color.RGBA
	Alarm      color.RGBA
	Monitoring color.RGBA
	Info       color.RGBA
	Hint       color.RGBA
}

var palette = Palette{
	Fire:       color.RGBA{R: 0, G: 0, B: 255, A: 255},
	Candidate:  color.RGBA{R: 255, G: 255, B: 0, A: 255},
	Alarm:      color.RGBA{R: 255, G: 0, B: 0, A: 255},
	Monitoring: color.RGBA{R: 0, G: 255, B: 0, A: 255},
	Info:       color.RGBA{R: 0, G: 191, B: 255, A: 255},
	Hint:       color.RGBA{R: 255, G: 255, B: 255, A: 255},
}

// Colors returns the overlay palette
func Colors() Palette {
	return palette
}

// Draw paints the overlay onto img in place
func Draw(img *gocv.Mat, v View) {
	if img == nil || img.Empty() {
		return
	}

	switch {
	case v.Event != nil:
		drawFireBox(img, v.Event.Box)
	case v.Alarm && v.Region != nil:
		drawFireBox(img, v.Region.Box)
	case v.Region != nil:
		drawCornerBrackets(img, v.Region.Box, palette.Candidate, 2, 12)
	}

	status, statusColor := StatusMonitoring, palette.Monitoring
	if v.Alarm {
		status, statusColor = StatusAlarm, palette.Alarm
	}
	gocv.PutText(img, status, image.Pt(10, 30), gocv.FontHersheySimplex, 0.7, statusColor, 2)

	if v.AlarmDelay > 0 {
		streak := v.Streak
		if streak > v.AlarmDelay {
			streak = v.AlarmDelay
		}
		gocv.PutText(img, fmt.Sprintf("STREAK %d/%d", streak, v.AlarmDelay), image.Pt(10, 55),
			gocv.FontHersheySimplex, 0.5, palette.Info, 1)
		drawProgress(img, image.Rect(130, 45, 230, 55), float64(streak)/float64(v.AlarmDelay), statusColor)
	}
	gocv.PutText(img, fmt.Sprintf("SCENE %s %.0f", v.Tier, v.Brightness), image.Pt(10, 75),
		gocv.FontHersheySimplex, 0.5, palette.Info, 1)

	gocv.PutText(img, keyHint, image.Pt(10, img.Rows()-20), gocv.FontHersheySimplex, 0.5, palette.Hint, 1)
}

func drawFireBox(img *gocv.Mat, box image.Rectangle) {
	gocv.Rectangle(img, box, palette.Fire, 2)
	label := image.Pt(box.Min.X, box.Min.Y-10)
	if label.Y < 15 {
		label.Y = box.Max.Y + 20
	}
	gocv.PutText(img, "FIRE", label, gocv.FontHersheySimplex, 0.5, palette.Fire, 2)
}

// drawCornerBrackets marks a candidate that has not confirmed yet
func drawCornerBrackets(img *gocv.Mat, rect image.Rectangle, c color.RGBA, thickness, length int) {
	if l := min(rect.Dx(), rect.Dy()) / 2; l < length {
		length = l
	}

	gocv.Line(img, rect.Min, image.Pt(rect.Min.X+length, rect.Min.Y), c, thickness)
	gocv.Line(img, rect.Min, image.Pt(rect.Min.X, rect.Min.Y+length), c, thickness)

	gocv.Line(img, image.Pt(rect.Max.X, rect.Min.Y), image.Pt(rect.Max.X-length, rect.Min.Y), c, thickness)
	gocv.Line(img, image.Pt(rect.Max.X, rect.Min.Y), image.Pt(rect.Max.X, rect.Min.Y+length), c, thickness)

	gocv.Line(img, image.Pt(rect.Min.X, rect.Max.Y), image.Pt(rect.Min.X+length, rect.Max.Y), c, thickness)
	gocv.Line(img, image.Pt(rect.Min.X, rect.Max.Y), image.Pt(rect.Min.X, rect.Max.Y-length), c, thickness)

	gocv.Line(img, rect.Max, image.Pt(rect.Max.X-length, rect.Max.Y), c, thickness)
	gocv.Line(img, rect.Max, image.Pt(rect.Max.X, rect.Max.Y-length), c, thickness)
}

func drawProgress(img *gocv.Mat, bar image.Rectangle, frac float64, c color.RGBA) {
	gocv.Rectangle(img, bar, palette.Hint, 1)
	if frac <= 0 {
		return
	}
	if frac > 1 {
		frac = 1
	}
	fill := bar
	fill.Max.X = bar.Min.X + int(float64(bar.Dx())*frac)
	gocv.Rectangle(img, fill, c, -1)
}
