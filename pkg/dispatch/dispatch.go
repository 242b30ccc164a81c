// Package dispatch holds the registry of known decoder.Decoder
// implementations and picks the right one for a given input.
//
// Grounded on original_source/src/lib.rs's impl_formats! macro, which
// generates the same "try every format's detect(), use the first match"
// dispatch this package expresses as a plain slice plus a loop — Go has no
// macro system, so the closed set is enforced by dispatch_test.go asserting
// every decoder.Decoder this module ships is present in Registry, rather
// than by generated code.
package dispatch

import (
	"io"

	"camtelemetry/pkg/camm"
	"camtelemetry/pkg/decoder"
	"camtelemetry/pkg/gpmf"
	"camtelemetry/pkg/identify"
	"camtelemetry/pkg/insta360"
	"camtelemetry/pkg/sonymeta"
	"camtelemetry/pkg/tags"
	"camtelemetry/pkg/telemetryerr"
)

// Registry lists every decoder this module ships, in probe order. Order
// matters only when two formats could both match a truncated/ambiguous
// prefix; Insta360's trailer magic is checked first since it's the most
// specific signature.
var Registry = []decoder.Decoder{
	insta360.Decoder{},
	gpmf.Decoder{},
	sonymeta.Decoder{},
	camm.Decoder{},
}

// prefixWindow is how many bytes to read from the head of the input for
// format sniffing; large enough to reach past ftyp/moov for small files.
const prefixWindow = 1 << 16

// Detect reads a sniffing window from input and returns the first decoder
// willing to claim it, or nil.
func Detect(input decoder.Input, filename string) decoder.Decoder {
	prefix := readSniffWindow(input)
	for _, d := range Registry {
		if d.Identify(prefix, filename) {
			return d
		}
	}
	return nil
}

// Open detects the format of input and fully decodes it. If no registered
// Decoder claims the input but the format identifier still recognizes a
// specific kind this module has no decoder for, the error is a
// telemetryerr.RecognizedUnsupportedError rather than a bare ErrUnsupported.
func Open(input decoder.Input, filename string, opts decoder.Options) (*tags.Telemetry, decoder.Decoder, error) {
	d := Detect(input, filename)
	if d == nil {
		prefix := readSniffWindow(input)
		res := identify.Detect(prefix, filename)
		if _, known := decodedKinds[res.Kind]; !known && res.Kind != identify.KindUnknown && res.Kind != identify.KindGenericISOBMFF {
			opts.Logger().Warn().Str("kind", string(res.Kind)).Msg("recognized format has no decoder in this module")
			return nil, nil, &telemetryerr.RecognizedUnsupportedError{Kind: string(res.Kind)}
		}
		return nil, nil, telemetryerr.ErrUnsupported
	}
	t, err := d.Decode(input, filename, opts)
	if err != nil {
		return nil, d, err
	}
	return t, d, nil
}

// decodedKinds is the set of identify.Kind values this module has a
// registered Decoder for, keyed by the kind's name. Used to distinguish
// "recognized, no decoder" from "recognized, decoder declined to claim it"
// (e.g. a GoPro-identified file whose GPMF stream itself is malformed,
// which surfaces through Decode's own error instead).
var decodedKinds = map[identify.Kind]struct{}{
	identify.KindGoPro:    {},
	identify.KindSony:     {},
	identify.KindCAMM:     {},
	identify.KindInsta360: {},
}

// readSniffWindow concatenates the head and tail of input, since
// trailer-based formats (Insta360) keep their signature at EOF while
// container-based formats keep theirs near the start.
func readSniffWindow(input decoder.Input) []byte {
	size := input.Len()
	head := make([]byte, minInt64(prefixWindow, size))
	_, _ = io.ReadFull(io.NewSectionReader(input, 0, int64(len(head))), head)

	if size <= int64(len(head)) {
		return head
	}

	tailLen := minInt64(prefixWindow, size)
	tailStart := size - tailLen
	tail := make([]byte, tailLen)
	_, _ = io.ReadFull(io.NewSectionReader(input, tailStart, tailLen), tail)

	return append(append([]byte{}, head...), tail...)
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
