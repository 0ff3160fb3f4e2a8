// Package logging configures the process-wide slog logger. Errors carrying
// go-xerrors stack traces are rendered as structured {msg, trace} groups so
// transport and catalog failures keep their origin.
package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mdobak/go-xerrors"
)

// stackFrame is one rendered frame of an error's stack trace.
type stackFrame struct {
	Func   string `json:"func"`
	Source string `json:"source"`
	Line   int    `json:"line"`
}

// Init installs the default logger. The level comes from BUSKIT_LOG_LEVEL
// (debug, info, warn, error; defaults to info) and the output format from
// BUSKIT_LOG_FORMAT (json or text; defaults to json).
func Init() {
	level := parseLevel(os.Getenv("BUSKIT_LOG_LEVEL"))

	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceAttr,
	}

	var handler slog.Handler
	if strings.EqualFold(os.Getenv("BUSKIT_LOG_FORMAT"), "text") {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// replaceAttr rewrites error-valued attributes into {msg, trace} groups.
func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindAny {
		if err, ok := a.Value.Any().(error); ok {
			a.Value = errValue(err)
		}
	}
	return a
}

func errValue(err error) slog.Value {
	attrs := []slog.Attr{slog.String("msg", err.Error())}
	if frames := stackFrames(err); len(frames) > 0 {
		attrs = append(attrs, slog.Any("trace", frames))
	}
	return slog.GroupValue(attrs...)
}

// stackFrames extracts the frames of an xerrors stack trace, trimmed to
// package/file.go for readability.
func stackFrames(err error) []stackFrame {
	trace := xerrors.StackTrace(err)
	if len(trace) == 0 {
		return nil
	}

	frames := trace.Frames()
	out := make([]stackFrame, len(frames))
	for i, f := range frames {
		out[i] = stackFrame{
			Func: filepath.Base(f.Function),
			Source: filepath.Join(
				filepath.Base(filepath.Dir(f.File)),
				filepath.Base(f.File),
			),
			Line: f.Line,
		}
	}
	return out
}
