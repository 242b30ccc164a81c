// Package decoder defines the common interface every vendor metadata
// decoder implements, so pkg/dispatch can hold them in one slice instead of
// the macro-generated enum dispatch the upstream crate uses.
package decoder

import (
	"io"

	"camtelemetry/pkg/logging"
	"camtelemetry/pkg/tags"
)

// Input is the minimal random-access view a decoder needs over a file.
// A plain *os.File or bytes.Reader satisfies it once wrapped with Len.
type Input interface {
	io.ReaderAt
	Len() int64
}

// Options controls optional decode behavior.
type Options struct {
	// IncludeRawTags is not read by any decoder in this module. Raw-tag
	// handling is fixed per decoder: gpmf skips fourCCs it has no group
	// for, while sonymeta and insta360 always keep unknown tags/records
	// as tags.KindBytes.
	IncludeRawTags bool

	// Log receives recoverable-anomaly warnings (unknown tag IDs, unhandled
	// record types, heuristic track selection). Nil means silent.
	Log *logging.Logger
}

// Logger returns Log, or a no-op logger if none was set.
func (o Options) Logger() *logging.Logger {
	if o.Log == nil {
		return logging.Nop()
	}
	return o.Log
}

// Decoder identifies and parses one vendor's metadata format.
type Decoder interface {
	// Name is a short identifier used in logs and error messages.
	Name() string

	// Identify reports whether prefix (and optionally filename) belongs to
	// this decoder's format. prefix should include both the head and tail
	// of the file when practical, since some formats (Insta360) keep their
	// signature at the end.
	Identify(prefix []byte, filename string) bool

	// Decode parses input fully and returns the device identity and every
	// decoded track.
	Decode(input Input, filename string, opts Options) (*tags.Telemetry, error)
}
