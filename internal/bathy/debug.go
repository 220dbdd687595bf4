package bathy

import (
	"io"
	"log"
)

var (
	opsLogger   *log.Logger
	diagLogger  *log.Logger
	traceLogger *log.Logger
)

// SetLogWriters configures the three logging streams for the bathy package.
// Pass nil for any writer to disable that stream. All streams start disabled.
// The loggers are package state: call this at startup, before any
// concurrent Generate call.
func SetLogWriters(ops, diag, trace io.Writer) {
	opsLogger = newLogger("[bathy] ", ops)
	diagLogger = newLogger("[bathy] ", diag)
	traceLogger = newLogger("[bathy] ", trace)
}

func newLogger(prefix string, w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, prefix, log.LstdFlags|log.Lmicroseconds)
}

// opsf logs to the ops stream (fallbacks, recovered failures).
func opsf(format string, args ...interface{}) {
	if opsLogger != nil {
		opsLogger.Printf(format, args...)
	}
}

// diagf logs to the diag stream (chosen levels, depth range, line counts).
func diagf(format string, args ...interface{}) {
	if diagLogger != nil {
		diagLogger.Printf(format, args...)
	}
}

// tracef logs to the trace stream (per-level tracing detail).
func tracef(format string, args ...interface{}) {
	if traceLogger != nil {
		traceLogger.Printf(format, args...)
	}
}
