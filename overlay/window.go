package overlay

import (
	"gocv.io/x/gocv"
)

// Window shows annotated frames in a HighGUI window and reads the keyboard
type Window struct {
	win     *gocv.Window
	display gocv.Mat
}

// NewWindow opens a window; it must be used from the main OS thread
func NewWindow(title string) *Window {
	if title == "" {
		title = DefaultWindowTitle
	}
	return &Window{
		win:     gocv.NewWindow(title),
		display: gocv.NewMat(),
	}
}

// Render draws v over a copy of frame, shows it and polls the keyboard for 1 ms
func (w *Window) Render(frame gocv.Mat, v View) Key {
	frame.CopyTo(&w.display)
	Draw(&w.display, v)
	w.win.IMShow(w.display)
	return KeyFromCode(w.win.WaitKey(1))
}

// WaitKey blocks up to ms milliseconds for a key
func (w *Window) WaitKey(ms int) Key {
	return KeyFromCode(w.win.WaitKey(ms))
}

func (w *Window) Close() error {
	w.display.Close()
	return w.win.Close()
}
