package logger

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// New builds the process logger. Development gets the console writer,
// everything else gets JSON lines on stdout.
func New(level string, env string) zerolog.Logger {
	return NewWithWriter(os.Stdout, level, env)
}

func NewWithWriter(out io.Writer, level string, env string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	if strings.EqualFold(strings.TrimSpace(env), "development") {
		out = zerolog.ConsoleWriter{Out: out}
	}

	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}
