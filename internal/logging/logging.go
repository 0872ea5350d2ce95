package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New returns a console logger at the named level ("debug", "info", ...)
func New(level string) (zerolog.Logger, error) {
	return NewWithWriter(os.Stderr, level)
}

// NewWithWriter is New writing to w
func NewWithWriter(w io.Writer, level string) (zerolog.Logger, error) {
	lvl := zerolog.InfoLevel
	if s := strings.TrimSpace(level); s != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(s))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("invalid log level %q", level)
		}
		lvl = parsed
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: w != os.Stderr}).
		Level(lvl).
		With().Timestamp().Logger(), nil
}
