// Package monitoring holds the process-wide diagnostic logger used by the
// survey service, the stores and the binaries.
package monitoring

import (
	"bytes"
	"io"
	"log"
	"sync"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Writer returns an io.Writer that forwards each complete line written to
// it through Logf. It lets packages that log via *log.Logger (bathy's
// ops/diag/trace streams) share the process logger.
func Writer() io.Writer {
	return &lineWriter{}
}

type lineWriter struct {
	mu  sync.Mutex
	buf []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		Logf("%s", w.buf[:i])
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}
