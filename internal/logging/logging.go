// Package logging provides the single shared logging sink every worker
// goroutine writes through, so that all workers route their records to one
// handler rather than each owning its own.
//
// samgonzalezalberto-script-weaver has no logging layer of its own (it
// reported structured execution-trace values instead); this package is
// built fresh in the facade/backend style demonstrated elsewhere in the
// retrieved corpus: github.com/joeycumines/logiface (the generic
// Logger[E]/Builder[E] facade) fronting github.com/joeycumines/izerolog
// (the github.com/rs/zerolog backend adapter).
package logging

import (
	"io"
	"os"

	"github.com/joeycumines/izerolog"
	"github.com/joeycumines/logiface"
	"github.com/rs/zerolog"
)

// Logger is the concrete logger type used throughout this module: a
// logiface facade over an izerolog/zerolog backend.
type Logger = logiface.Logger[*izerolog.Event]

// New constructs the process-wide sink. A nil writer defaults to os.Stderr.
func New(w io.Writer, level logiface.Level) *Logger {
	if w == nil {
		w = os.Stderr
	}
	zl := zerolog.New(w).With().Timestamp().Logger()
	return izerolog.L.New(
		izerolog.L.WithLevel(level),
		izerolog.WithZerolog(zl),
	)
}

// Default builds the sink used when a Graph is constructed without an
// explicit Logger option: informational level, writing to stderr.
func Default() *Logger {
	return New(os.Stderr, logiface.LevelInformational)
}
