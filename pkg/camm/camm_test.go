package camm

import (
	"encoding/binary"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"camtelemetry/internal/mp4fixture"
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

func le32f(v float32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, math.Float32bits(v))
	return b
}

// cammRecord builds one CAMM record: 2 reserved bytes, 2-byte little-endian
// type, then the type's payload.
func cammRecord(typ uint16, payload []byte) []byte {
	buf := []byte{0, 0, byte(typ), byte(typ >> 8)}
	return append(buf, payload...)
}

func TestIdentifyRequiresCammAndFtyp(t *testing.T) {
	d := Decoder{}
	require.True(t, d.Identify([]byte("....ftyp....camm...."), ""))
	require.False(t, d.Identify([]byte("....ftyp....no marker here...."), ""))
}

func TestDecodeGyroAndAccelRecords(t *testing.T) {
	gyroPayload := append(append(le32f(1), le32f(2)...), le32f(3)...)
	accelPayload := append(append(le32f(4), le32f(5)...), le32f(6)...)

	gyroRec := cammRecord(2, gyroPayload)
	accelRec := cammRecord(3, accelPayload)

	data := mp4fixture.Build([]mp4fixture.Track{
		{
			TrackID:     1,
			Timescale:   1000,
			HandlerType: "camm",
			HandlerName: "CAMM",
			Samples: []mp4fixture.Sample{
				{Duration: 100, Payload: gyroRec},
				{Duration: 100, Payload: accelRec},
			},
		},
	})

	telemetry, err := Decoder{}.Decode(fileInput(data), "", decoder.Options{})
	require.NoError(t, err)
	require.Equal(t, "CAMM", telemetry.Device.Vendor)
	require.Len(t, telemetry.Tracks, 1)

	gm := telemetry.Tracks[0].Samples[0].Tags
	gyroTag := gm.Get(tags.GroupGyroscope, "data")
	require.NotNil(t, gyroTag)
	require.Equal(t, tags.KindTimeVectors, gyroTag.Kind)
	require.Len(t, gyroTag.TimeVectors, 1)
	require.InDelta(t, 1, gyroTag.TimeVectors[0].V.X, 1e-6)

	accelTag := gm.Get(tags.GroupAccelerometer, "data")
	require.NotNil(t, accelTag)
	require.Len(t, accelTag.TimeVectors, 1)
	require.InDelta(t, 4, accelTag.TimeVectors[0].V.X, 1e-6)
}

func TestDecodeReturnsErrUnsupportedWithoutCammOrMetaTrack(t *testing.T) {
	data := mp4fixture.Build([]mp4fixture.Track{
		{TrackID: 1, Timescale: 1000, HandlerType: "vide", HandlerName: "video"},
	})
	_, err := Decoder{}.Decode(fileInput(data), "", decoder.Options{})
	require.Error(t, err)
}

func TestAngleAxisOrientationRecordYieldsUnitQuaternion(t *testing.T) {
	zero := append(append(le32f(0), le32f(0)...), le32f(0)...)
	rec := cammRecord(0, zero)

	data := mp4fixture.Build([]mp4fixture.Track{
		{TrackID: 1, Timescale: 1000, HandlerType: "camm", HandlerName: "CAMM",
			Samples: []mp4fixture.Sample{{Duration: 100, Payload: rec}}},
	})

	telemetry, err := Decoder{}.Decode(fileInput(data), "", decoder.Options{})
	require.NoError(t, err)

	quatTag := telemetry.Tracks[0].Samples[0].Tags.Get(tags.GroupCameraOrientation, "quaternion")
	require.NotNil(t, quatTag)
	require.Len(t, quatTag.Quaternions, 1)
	require.Equal(t, tags.Quaternion{W: 1}, quatTag.Quaternions[0])
}
