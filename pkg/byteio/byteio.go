// Package byteio provides a Try-pattern byte reader used by the vendor
// metadata decoders, mirroring the Try-pattern bit writer this module's
// ancestor uses for MP4 box marshaling, backed by icza/bitio.
package byteio

import (
	"io"

	"github.com/icza/bitio"
)

// Reader reads big- or little-endian fixed-width fields from an underlying
// byte stream, recording the first error so call sites don't need to check
// every read.
type Reader struct {
	r        *bitio.Reader
	pos      int64
	TryError error
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bitio.NewReader(r)}
}

// Pos returns the number of bytes consumed so far.
func (r *Reader) Pos() int64 { return r.pos }

// TryReadByte reads a single byte, returning 0 on error.
func (r *Reader) TryReadByte() byte {
	if r.TryError != nil {
		return 0
	}
	b, err := r.r.ReadByte()
	if err != nil {
		r.TryError = err
		return 0
	}
	r.pos++
	return b
}

// TryReadFull reads exactly n bytes, returning a nil slice on error.
func (r *Reader) TryReadFull(n int) []byte {
	if r.TryError != nil || n < 0 {
		return nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		r.TryError = err
		return nil
	}
	r.pos += int64(n)
	return buf
}

// TryReadUint16BE reads a big-endian uint16.
func (r *Reader) TryReadUint16BE() uint16 {
	b := r.TryReadFull(2)
	if b == nil {
		return 0
	}
	return uint16(b[0])<<8 | uint16(b[1])
}

// TryReadUint32BE reads a big-endian uint32.
func (r *Reader) TryReadUint32BE() uint32 {
	b := r.TryReadFull(4)
	if b == nil {
		return 0
	}
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// TryReadUint64BE reads a big-endian uint64.
func (r *Reader) TryReadUint64BE() uint64 {
	b := r.TryReadFull(8)
	if b == nil {
		return 0
	}
	var v uint64
	for _, x := range b {
		v = v<<8 | uint64(x)
	}
	return v
}

// TryReadUint16LE reads a little-endian uint16.
func (r *Reader) TryReadUint16LE() uint16 {
	b := r.TryReadFull(2)
	if b == nil {
		return 0
	}
	return uint16(b[1])<<8 | uint16(b[0])
}

// TryReadUint32LE reads a little-endian uint32.
func (r *Reader) TryReadUint32LE() uint32 {
	b := r.TryReadFull(4)
	if b == nil {
		return 0
	}
	return uint32(b[3])<<24 | uint32(b[2])<<16 | uint32(b[1])<<8 | uint32(b[0])
}

// TryReadUint64LE reads a little-endian uint64.
func (r *Reader) TryReadUint64LE() uint64 {
	b := r.TryReadFull(8)
	if b == nil {
		return 0
	}
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// TrySkip discards n bytes.
func (r *Reader) TrySkip(n int) {
	r.TryReadFull(n)
}
