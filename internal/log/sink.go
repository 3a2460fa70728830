// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

import (
	"bytes"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ConsoleSink returns a human readable writer for debug output, the
// equivalent of printing to a developer console.
func ConsoleSink(w io.Writer) io.Writer {
	return zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.TimeOnly,
		NoColor:    true,
	}
}

// FuncSink adapts a line callback to an io.Writer. Every complete line
// written is delivered to fn without its trailing newline.
func FuncSink(fn func(line string)) io.Writer {
	return &funcWriter{fn: fn}
}

type funcWriter struct {
	mu      sync.Mutex
	fn      func(string)
	partial bytes.Buffer
}

func (w *funcWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.partial.Write(p)
	for {
		data := w.partial.Bytes()
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		line := string(data[:i])
		w.partial.Next(i + 1)
		if w.fn != nil {
			w.fn(line)
		}
	}
	return len(p), nil
}

// NewDebugLogger builds a logger that writes every level, including debug,
// to out. It is used for the per-controller debug output sink and does not
// follow the level passed to Configure.
func NewDebugLogger(out io.Writer, component string) zerolog.Logger {
	return zerolog.New(out).Level(zerolog.DebugLevel).With().
		Timestamp().
		Str(FieldComponent, component).
		Logger()
}
