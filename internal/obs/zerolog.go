package obs

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// ZerologLogger bridges Logger to a zerolog.Logger.
type ZerologLogger struct {
	L zerolog.Logger
}

// NewConsoleLogger returns a human-readable zerolog logger tagged with app.
func NewConsoleLogger(w io.Writer, app string, min Level, noColor bool) ZerologLogger {
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
		NoColor:    noColor,
	}
	l := zerolog.New(output).Level(zerologLevel(min)).With().Timestamp().Str("app", app).Logger()
	return ZerologLogger{L: l}
}

func (z ZerologLogger) Logf(level Level, format string, args ...interface{}) {
	z.L.WithLevel(zerologLevel(level)).Msgf(format, args...)
}

func (z ZerologLogger) Enabled(level Level) bool {
	lvl := zerologLevel(level)
	return lvl >= z.L.GetLevel() && lvl >= zerolog.GlobalLevel()
}

func zerologLevel(l Level) zerolog.Level {
	switch l {
	case Debug:
		return zerolog.DebugLevel
	case Info:
		return zerolog.InfoLevel
	case Warn:
		return zerolog.WarnLevel
	case Error:
		return zerolog.ErrorLevel
	default:
		return zerolog.NoLevel
	}
}
