// Package telemetryerr defines the error taxonomy shared by every decoder
// and demuxer in the module.
//
// API shaped after gortsplib's liberrors: a handful of sentinel values for
// conditions that carry no extra data, plus typed errors for everything
// that needs to report where and why it failed.
package telemetryerr

import "fmt"

// Sentinel errors with no associated data. Use errors.Is to test for them.
var (
	// ErrUnsupported is returned when no registered decoder recognizes the input.
	ErrUnsupported = fmt.Errorf("unsupported or unrecognized format")

	// ErrTruncated is returned when a container or payload ends before a
	// length-prefixed field finishes.
	ErrTruncated = fmt.Errorf("truncated input")
)

// MalformedContainerError is returned by the demuxer when a box's structure
// cannot be reconciled with the ISO-BMFF layout.
type MalformedContainerError struct {
	Offset int64
	Reason string
}

func (e *MalformedContainerError) Error() string {
	return fmt.Sprintf("malformed container at offset %d: %s", e.Offset, e.Reason)
}

// MalformedPayloadError is returned by a vendor decoder when it cannot make
// sense of a tag or record payload.
type MalformedPayloadError struct {
	Decoder string
	Offset  int64
	Reason  string
}

func (e *MalformedPayloadError) Error() string {
	return fmt.Sprintf("%s: malformed payload at offset %d: %s", e.Decoder, e.Offset, e.Reason)
}

// UnknownModelError describes a vendor that is identified but whose specific
// camera model has no known IMU orientation mapping. No decoder in this
// module returns it: insta360 logs a warning for such a model and uses its
// default orientation.
type UnknownModelError struct {
	Vendor string
	Model  string
}

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("unknown %s model: %q", e.Vendor, e.Model)
}

// RecognizedUnsupportedError is returned when the format identifier names a
// specific vendor/container kind but this module ships no decoder for it
// (R3D, BRAW, Betaflight and its CSV variants, gcsv, Runcam CSV, WitMotion,
// DJI). Distinct from ErrUnsupported, which means the input matched no
// rule at all. errors.Is(err, ErrUnsupported) still succeeds via Unwrap.
type RecognizedUnsupportedError struct {
	Kind string
}

func (e *RecognizedUnsupportedError) Error() string {
	return fmt.Sprintf("recognized format %q has no decoder in this module", e.Kind)
}

func (e *RecognizedUnsupportedError) Unwrap() error { return ErrUnsupported }

// AmbiguousTrackError is returned when an operation needs a single track
// but the input carries more than one candidate and none was named, or
// when the named track does not exist.
type AmbiguousTrackError struct {
	Reason string
}

func (e *AmbiguousTrackError) Error() string { return e.Reason }

// IoError wraps an underlying I/O failure (short read, seek past EOF, ...)
// so callers can distinguish it from a parse failure with errors.As.
type IoError struct {
	Op  string
	Err error
}

func (e *IoError) Error() string { return fmt.Sprintf("%s: %s", e.Op, e.Err) }
func (e *IoError) Unwrap() error { return e.Err }
