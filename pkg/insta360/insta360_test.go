package insta360

import (
	"encoding/binary"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"camtelemetry/pkg/decoder"
	"camtelemetry/pkg/tags"
)

// fileInput is a minimal decoder.Input over an in-memory buffer, local to
// this test package to avoid importing the root package (which would
// create an import cycle through pkg/dispatch).
type fileInput []byte

func (b fileInput) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(b)) {
		return 0, io.EOF
	}
	n := copy(p, b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b fileInput) Len() int64 { return int64(len(b)) }

type rawRecord struct {
	format byte
	id     byte
	data   []byte
}

// buildChain lays out records backward from the footer: records[0] is
// visited first by Decode's backward scan, so its [data, header] pair sits
// last in the byte stream, immediately before the footer.
func buildChain(records []rawRecord) []byte {
	var chain []byte
	for i := len(records) - 1; i >= 0; i-- {
		r := records[i]
		n := uint32(len(r.data))
		hdr := make([]byte, 6)
		hdr[0], hdr[1] = r.format, r.id
		binary.LittleEndian.PutUint32(hdr[2:6], n)
		chain = append(chain, r.data...)
		chain = append(chain, hdr...)
	}
	return chain
}

func buildTrailer(prefix []byte, records []rawRecord) []byte {
	chain := buildChain(records)
	footer := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(footer[32:36], uint32(headerSize+6+len(chain)))
	binary.LittleEndian.PutUint32(footer[36:40], 1)
	copy(footer[headerSize-32:], []byte(magic))

	out := append([]byte{}, prefix...)
	out = append(out, chain...)
	out = append(out, footer...)
	return out
}

func le64fBytes(v float64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, math.Float64bits(v))
	return b
}

func gyroRecordData(tsUs uint64, accel, gyro tags.Vector3) []byte {
	var buf []byte
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, tsUs)
	buf = append(buf, b...)
	buf = append(buf, le64fBytes(accel.X)...)
	buf = append(buf, le64fBytes(accel.Y)...)
	buf = append(buf, le64fBytes(accel.Z)...)
	buf = append(buf, le64fBytes(gyro.X)...)
	buf = append(buf, le64fBytes(gyro.Y)...)
	buf = append(buf, le64fBytes(gyro.Z)...)
	return buf
}

func TestIdentifyRequiresMagicTrailerSuffix(t *testing.T) {
	d := Decoder{}
	require.True(t, d.Identify([]byte("...junk..."+magic), ""))
	require.False(t, d.Identify([]byte("...junk..."+magic[:10]), ""))
}

func TestDecodeUnknownModelFallsBackToDefaultOrientation(t *testing.T) {
	gyroData := gyroRecordData(1_000_000, tags.Vector3{Z: 9.8}, tags.Vector3{X: 0.1, Y: 0.2, Z: 0.3})
	file := buildTrailer(nil, []rawRecord{{format: 1, id: recordGyro, data: gyroData}})

	telemetry, err := Decoder{}.Decode(fileInput(file), "", decoder.Options{})
	require.NoError(t, err)
	require.Equal(t, "Insta360", telemetry.Device.Vendor)
	require.Equal(t, "Unknown", telemetry.Device.Model)

	gm := telemetry.Tracks[0].Samples[0].Tags
	orientation := gm.Get(tags.GroupGyroscope, "orientation")
	require.NotNil(t, orientation)
	require.Equal(t, defaultOrientation, orientation.Text)

	gyroTag := gm.Get(tags.GroupGyroscope, "data")
	require.NotNil(t, gyroTag)
	require.Len(t, gyroTag.TimeVectors, 1)
	require.Equal(t, int64(1_000_000), gyroTag.TimeVectors[0].TimestampUs)
	require.InDelta(t, 0.3, gyroTag.TimeVectors[0].V.Z, 1e-9)
}

func TestDecodeKnownModelUsesOrientationTable(t *testing.T) {
	metadata := append([]byte("Insta360 GO2"), 0x00, 0x01, 0x02)
	gyroData := gyroRecordData(2_000_000, tags.Vector3{}, tags.Vector3{X: 1})

	file := buildTrailer(nil, []rawRecord{
		{format: 0, id: recordMetadata, data: metadata},
		{format: 1, id: recordGyro, data: gyroData},
	})

	telemetry, err := Decoder{}.Decode(fileInput(file), "", decoder.Options{})
	require.NoError(t, err)
	require.Equal(t, "Insta360 GO2", telemetry.Device.Model)

	gm := telemetry.Tracks[0].Samples[0].Tags
	orientation := gm.Get(tags.GroupGyroscope, "orientation")
	require.NotNil(t, orientation)
	require.Equal(t, "XYZ", orientation.Text)
}

func TestDecodeRejectsTooShortInput(t *testing.T) {
	_, err := Decoder{}.Decode(fileInput([]byte("short")), "", decoder.Options{})
	require.Error(t, err)
}

func TestDecodeRejectsMissingMagic(t *testing.T) {
	file := make([]byte, headerSize)
	_, err := Decoder{}.Decode(fileInput(file), "", decoder.Options{})
	require.Error(t, err)
}
