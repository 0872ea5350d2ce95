package events

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"firewatch/tracking"
)

const csvTimeLayout = "2006-01-02 15:04:05"

var csvHeader = []string{"Message", "Timestamp", "Position (X, Y)", "Size (W x H)"}

// CSVLog appends fire events to a human-readable CSV file
type CSVLog struct {
	path string
	mu   sync.Mutex
}

// NewCSVLog creates the file and its directory if needed and writes the header once
func NewCSVLog(path string) (*CSVLog, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("create event log: %w", err)
		}
		w := csv.NewWriter(f)
		if err := w.Write(csvHeader); err != nil {
			f.Close()
			return nil, fmt.Errorf("write header: %w", err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, fmt.Errorf("write header: %w", err)
		}
		if err := f.Close(); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("stat event log: %w", err)
	}

	return &CSVLog{path: path}, nil
}

// Path returns the log file location
func (l *CSVLog) Path() string {
	return l.path
}

// Record appends one row for the event
func (l *CSVLog) Record(_ context.Context, ev tracking.FireEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvRow(ev)); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	w.Flush()
	return w.Error()
}

// Close is a no-op; the file is opened per record
func (l *CSVLog) Close() error {
	return nil
}

func csvRow(ev tracking.FireEvent) []string {
	b := ev.Box
	return []string{
		"FIRE DETECTED",
		ev.Timestamp.Format(csvTimeLayout),
		fmt.Sprintf("X: %d, Y: %d", b.Min.X, b.Min.Y),
		fmt.Sprintf("W: %d x H: %d", b.Dx(), b.Dy()),
	}
}
