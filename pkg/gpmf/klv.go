// Package gpmf decodes GoPro's GPMF metadata stream: a KLV (key-length-
// value) format nested inside DEVC containers, one per MP4 sample.
//
// Grounded on original_source/src/gopro/klv.rs: a 4-byte fourCC key, a
// 1-byte type char, a 1-byte per-item size and a 2-byte big-endian repeat
// count, padded to a 4-byte boundary.
package gpmf

import (
	"bytes"
	"fmt"
	"math"

	"camtelemetry/pkg/byteio"
	"camtelemetry/pkg/telemetryerr"
)

// entryType is the GPMF type character, a closed set per the format spec.
type entryType byte

const (
	typeNested     entryType = 0x00
	typeInt8       entryType = 'b'
	typeUint8      entryType = 'B'
	typeChar       entryType = 'c'
	typeDouble     entryType = 'd'
	typeFloat32    entryType = 'f'
	typeFourCC     entryType = 'F'
	typeGUID       entryType = 'G'
	typeInt64      entryType = 'j'
	typeUint64     entryType = 'J'
	typeInt32      entryType = 'l'
	typeUint32     entryType = 'L'
	typeQ1516      entryType = 'q'
	typeQ3132      entryType = 'Q'
	typeInt16      entryType = 's'
	typeUint16     entryType = 'S'
	typeUTCDate    entryType = 'U'
	typeComplex    entryType = '?'
)

func typeSize(t entryType) int {
	switch t {
	case typeInt8, typeUint8, typeChar:
		return 1
	case typeInt16, typeUint16:
		return 2
	case typeFloat32, typeFourCC, typeInt32, typeUint32, typeQ1516:
		return 4
	case typeDouble, typeInt64, typeUint64, typeQ3132:
		return 8
	case typeGUID, typeUTCDate:
		return 16
	default:
		return 0
	}
}

// Entry is one parsed KLV record. Nested (type==0) entries recurse into
// Children; every other type keeps Repeat*StructSize bytes in Raw, which
// Floats decodes to one float64 per scalar component.
type Entry struct {
	FourCC     string
	Type       byte
	StructSize int
	Repeat     int
	Raw        []byte
	Children   []Entry
}

// IsNested reports whether this entry is a KLV container.
func (e Entry) IsNested() bool { return e.Type == 0 }

// ParseStream parses a flat sequence of sibling KLV entries from buf,
// recursing into nested containers.
func ParseStream(buf []byte) ([]Entry, error) {
	var entries []Entry
	r := byteio.NewReader(bytes.NewReader(buf))
	total := len(buf)
	for r.Pos() < int64(total) {
		e, err := parseOne(r)
		if err != nil {
			if err == errShortHeader {
				break
			}
			return entries, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

var errShortHeader = fmt.Errorf("gpmf: short KLV header")

func parseOne(r *byteio.Reader) (Entry, error) {
	fourcc := r.TryReadFull(4)
	typeByte := r.TryReadByte()
	structSize := r.TryReadByte()
	repeat := r.TryReadUint16BE()
	if r.TryError != nil {
		return Entry{}, errShortHeader
	}
	dataLen := int(structSize) * int(repeat)
	aligned := (dataLen + 3) &^ 3
	raw := r.TryReadFull(aligned)
	if r.TryError != nil {
		return Entry{}, &telemetryerr.MalformedPayloadError{Decoder: "gpmf", Offset: r.Pos(), Reason: "truncated KLV value"}
	}
	if len(raw) > dataLen {
		raw = raw[:dataLen]
	}

	e := Entry{
		FourCC:     string(fourcc),
		Type:       typeByte,
		StructSize: int(structSize),
		Repeat:     int(repeat),
		Raw:        raw,
	}
	if entryType(typeByte) == typeNested {
		children, err := ParseStream(raw)
		if err != nil {
			return Entry{}, err
		}
		e.Children = children
	}
	return e, nil
}

// Floats decodes every scalar component of the entry (StructSize/elemSize
// per item, Repeat items) into float64, in native units (no SCAL applied).
func (e Entry) Floats() []float64 {
	elemSize := typeSize(entryType(e.Type))
	if elemSize == 0 || e.StructSize == 0 {
		return nil
	}
	perItem := e.StructSize / elemSize
	out := make([]float64, 0, perItem*e.Repeat)
	for off := 0; off+elemSize <= len(e.Raw); off += elemSize {
		out = append(out, decodeScalar(entryType(e.Type), e.Raw[off:off+elemSize]))
	}
	return out
}

func decodeScalar(t entryType, b []byte) float64 {
	switch t {
	case typeInt8:
		return float64(int8(b[0]))
	case typeUint8, typeChar:
		return float64(b[0])
	case typeInt16:
		return float64(int16(be16(b)))
	case typeUint16:
		return float64(be16(b))
	case typeInt32, typeQ1516:
		return float64(int32(be32(b)))
	case typeUint32:
		return float64(be32(b))
	case typeFloat32:
		return float64(math.Float32frombits(be32(b)))
	case typeDouble:
		return math.Float64frombits(be64(b))
	case typeInt64, typeQ3132:
		return float64(int64(be64(b)))
	case typeUint64:
		return float64(be64(b))
	default:
		return 0
	}
}

func be16(b []byte) uint16 { return uint16(b[0])<<8 | uint16(b[1]) }
func be32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
func be64(b []byte) uint64 {
	var v uint64
	for _, x := range b {
		v = v<<8 | uint64(x)
	}
	return v
}

// String returns the entry's raw bytes as an ASCII/char string, trimming
// any zero padding left by the 4-byte alignment.
func (e Entry) String() string {
	n := e.StructSize * e.Repeat
	if n > len(e.Raw) {
		n = len(e.Raw)
	}
	b := e.Raw[:n]
	for len(b) > 0 && b[len(b)-1] == 0 {
		b = b[:len(b)-1]
	}
	return string(b)
}
