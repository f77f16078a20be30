package grove

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds the engine's structured diagnostic logger: human-readable
// console output (zerolog.ConsoleWriter) written to w, with colors turned
// off when noColor is set. The console format is used whether or not w is
// a terminal; there is no JSON output mode.
// Engine diagnostics (graph building, store I/O, scheduling decisions) go
// through this logger; task stdout/stderr never does — that stays on the
// per-task Output so a task's own console output isn't wrapped in log
// fields.
func NewLogger(w io.Writer, noColor bool) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}

	console := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.Kitchen,
		NoColor:    noColor,
	}
	return zerolog.New(console).With().Timestamp().Logger()
}
