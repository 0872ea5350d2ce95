package ytdlp

import (
	"sync"
)

// OutputBuffer keeps the most recent lines of a process' output
type OutputBuffer struct {
	lines    []string
	maxLines int
	index    int
	full     bool
	mutex    sync.RWMutex
}

// NewOutputBuffer creates a circular buffer holding up to maxLines lines
func NewOutputBuffer(maxLines int) *OutputBuffer {
	if maxLines <= 0 {
		maxLines = 1
	}
	return &OutputBuffer{
		lines:    make([]string, maxLines),
		maxLines: maxLines,
	}
}

// Add stores a line, evicting the oldest when full
func (ob *OutputBuffer) Add(line string) {
	ob.mutex.Lock()
	defer ob.mutex.Unlock()

	ob.lines[ob.index] = line
	ob.index = (ob.index + 1) % ob.maxLines
	if ob.index == 0 {
		ob.full = true
	}
}

// Recent returns the stored lines, oldest first
func (ob *OutputBuffer) Recent() []string {
	ob.mutex.RLock()
	defer ob.mutex.RUnlock()

	if !ob.full {
		return append([]string(nil), ob.lines[:ob.index]...)
	}
	out := make([]string, 0, ob.maxLines)
	out = append(out, ob.lines[ob.index:]...)
	return append(out, ob.lines[:ob.index]...)
}
