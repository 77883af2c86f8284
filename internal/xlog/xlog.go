// Package xlog is a thin, levelled logging facade over zerolog. Components
// log through the package-level T/D/I/W/E values rather than importing
// zerolog directly, so the rest of the tree has one place to change if the
// backing implementation ever does.
package xlog

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Level mirrors zerolog's level names.
type Level struct {
	lvl zerolog.Level
}

// F logs a formatted message at this level.
func (l Level) F(format string, a ...any) {
	base.WithLevel(l.lvl).Msgf(format, a...)
}

// Ln logs a space-joined message at this level.
func (l Level) Ln(a ...any) {
	base.WithLevel(l.lvl).Msg(sprintln(a...))
}

// C logs the lazily-computed string returned by fn, only if this level is
// enabled, so expensive formatting is skipped in the common case.
func (l Level) C(fn func() string) {
	if base.GetLevel() > l.lvl {
		return
	}
	base.WithLevel(l.lvl).Msg(fn())
}

var base zerolog.Logger

// T, D, I, W, E are the five levels components log through, from most to
// least verbose.
var (
	T = Level{zerolog.TraceLevel}
	D = Level{zerolog.DebugLevel}
	I = Level{zerolog.InfoLevel}
	W = Level{zerolog.WarnLevel}
	E = Level{zerolog.ErrorLevel}
)

func init() {
	SetOutput(os.Stderr)
	SetLevel("info")
}

// SetOutput redirects where log lines are written; used by tests to capture
// output.
func SetOutput(w io.Writer) {
	console := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	base = zerolog.New(console).With().Timestamp().Logger()
}

// SetLevel parses one of fatal/error/warn/info/debug/trace and applies it;
// unrecognized values fall back to info.
func SetLevel(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	base = base.Level(lvl)
}

func sprintln(a ...any) string {
	return strings.TrimSuffix(fmt.Sprintln(a...), "\n")
}
