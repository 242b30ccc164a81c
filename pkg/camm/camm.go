// Package camm decodes Google's Camera Motion Metadata track: a little-
// endian, fixed-layout record per MP4 sample, keyed by a 2-byte type field
// (https://developers.google.com/streetview/publish/camm-spec).
//
// Grounded on original_source/src/camm/mod.rs. Every record carries its own
// timestamp (the MP4 sample's DTS) rather than being evenly spread across a
// sample's duration like GPMF/Sony, so the whole track collapses into one
// tags.Sample of timestamped vectors instead of one tags.Sample per MP4
// sample.
package camm

import (
	"bytes"
	"io"
	"math"
	"strconv"

	"camtelemetry/pkg/byteio"
	"camtelemetry/pkg/decoder"
	"camtelemetry/pkg/logging"
	"camtelemetry/pkg/mp4box"
	"camtelemetry/pkg/tags"
	"camtelemetry/pkg/telemetryerr"
)

// Decoder decodes CAMM metadata tracks.
type Decoder struct{}

// Name implements decoder.Decoder.
func (Decoder) Name() string { return "camm" }

// Identify implements decoder.Decoder.
func (Decoder) Identify(prefix []byte, _ string) bool {
	return bytes.Contains(prefix, []byte("camm")) && bytes.Contains(prefix, []byte("ftyp"))
}

// Decode implements decoder.Decoder.
func (Decoder) Decode(input decoder.Input, filename string, opts decoder.Options) (*tags.Telemetry, error) {
	log := opts.Logger()
	data := make([]byte, input.Len())
	if _, err := io.ReadFull(io.NewSectionReader(input, 0, input.Len()), data); err != nil {
		return nil, &telemetryerr.IoError{Op: "camm.Decode", Err: err}
	}

	tracksFound, err := mp4box.Demux(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	cammTrack := findCammTrack(tracksFound, log)
	if cammTrack == nil {
		return nil, telemetryerr.ErrUnsupported
	}

	var gyro, accl, magn, pos []tags.TimeVector3
	var quats []tags.Quaternion
	var gps []tags.GPSFix
	var frameReadoutUs int64

	for _, b := range cammTrack.Samples {
		if b.Len < 4 {
			continue
		}
		buf := make([]byte, b.Len)
		if _, err := input.ReadAt(buf, b.Offset); err != nil && err != io.EOF {
			continue
		}
		parseRecord(buf, b.TimestampUs, &gyro, &accl, &magn, &pos, &quats, &gps, &frameReadoutUs)
	}

	gm := make(tags.GroupedTagMap)
	gm.Insert(&tags.Tag{Group: tags.GroupAccelerometer, NativeID: "data", Name: "Accelerometer data", Unit: "m/s^2", Kind: tags.KindTimeVectors, TimeVectors: accl})
	gm.Insert(&tags.Tag{Group: tags.GroupGyroscope, NativeID: "data", Name: "Gyroscope data", Unit: "rad/s", Kind: tags.KindTimeVectors, TimeVectors: gyro})
	gm.Insert(&tags.Tag{Group: tags.GroupMagnetometer, NativeID: "data", Name: "Magnetometer data", Unit: "uT", Kind: tags.KindTimeVectors, TimeVectors: magn})
	gm.Insert(&tags.Tag{Group: tags.GroupCameraOrientation, NativeID: "quaternion", Name: "Quaternion data", Kind: tags.KindQuaternions, Quaternions: quats})
	gm.Insert(&tags.Tag{Group: tags.GroupGPS, NativeID: "data", Name: "GPS data", Kind: tags.KindGPS, GPSFixes: gps})

	const imuOrientation = "yxz"
	for _, g := range []tags.Group{tags.GroupAccelerometer, tags.GroupGyroscope, tags.GroupMagnetometer} {
		gm.Insert(&tags.Tag{Group: g, NativeID: "orientation", Name: "IMU orientation", Kind: tags.KindString, Text: imuOrientation})
	}

	device := tags.DeviceIdentity{Vendor: "CAMM", Model: "Unknown"}
	if frameReadoutUs > 0 {
		device.Additional = map[string]string{"frame_readout_us": strconv.FormatInt(frameReadoutUs, 10)}
	}

	track := tags.Track{
		TrackID: cammTrack.TrackID,
		Handler: cammTrack.HandlerName,
		Samples: []tags.Sample{{Index: 0, Tags: gm}},
	}
	return &tags.Telemetry{Device: device, Tracks: []tags.Track{track}}, nil
}

func findCammTrack(tracksFound []mp4box.Track, log *logging.Logger) *mp4box.Track {
	for i := range tracksFound {
		if tracksFound[i].HandlerName == "CAMM" || tracksFound[i].HandlerType == "camm" {
			return &tracksFound[i]
		}
	}
	for i := range tracksFound {
		if tracksFound[i].HandlerType == "meta" {
			log.Warn().Decoder("camm").Track(tracksFound[i].TrackID).
				Str("handler_name", tracksFound[i].HandlerName).
				Msg("no CAMM-tagged track found, falling back to first meta track")
			return &tracksFound[i]
		}
	}
	return nil
}

func parseRecord(buf []byte, timestampUs int64, gyro, accl, magn, pos *[]tags.TimeVector3, quats *[]tags.Quaternion, gps *[]tags.GPSFix, frameReadoutUs *int64) {
	r := byteio.NewReader(bytes.NewReader(buf))
	_ = r.TryReadUint16LE() // reserved
	typ := r.TryReadUint16LE()
	if r.TryError != nil {
		return
	}
	timestampSec := float64(timestampUs) / 1e6

	switch typ {
	case 0: // angle_axis orientation
		x := float64(readF32LE(r))
		y := -float64(readF32LE(r))
		z := -float64(readF32LE(r))
		if r.TryError != nil {
			return
		}
		angle := math.Sqrt(x*x + y*y + z*z)
		if angle == 0 {
			*quats = append(*quats, tags.Quaternion{W: 1})
			return
		}
		x, y, z = x/angle, y/angle, z/angle
		s := math.Sin(angle / 2)
		*quats = append(*quats, tags.Quaternion{W: math.Cos(angle / 2), X: x * s, Y: y * s, Z: z * s})
	case 1: // exposure / rolling shutter
		_ = r.TryReadUint32LE() // pixel exposure time
		skew := int32(r.TryReadUint32LE())
		*frameReadoutUs = int64(skew) / 1000
	case 2: // gyro, rad/s
		v := readVec3F32LE(r)
		*gyro = append(*gyro, tags.TimeVector3{TimestampUs: int64(timestampSec * 1e6), V: v})
	case 3: // acceleration, m/s^2
		v := readVec3F32LE(r)
		*accl = append(*accl, tags.TimeVector3{TimestampUs: int64(timestampSec * 1e6), V: v})
	case 4: // position
		v := readVec3F32LE(r)
		*pos = append(*pos, tags.TimeVector3{TimestampUs: timestampUs, V: v})
	case 5: // minimal GPS
		lat := readF64LE(r)
		lon := readF64LE(r)
		alt := readF64LE(r)
		*gps = append(*gps, tags.GPSFix{Latitude: lat, Longitude: lon, Altitude: alt, FixTimestampUs: timestampUs})
	case 6: // GPS
		epochSec := readF64LE(r)
		fixType := int32(r.TryReadUint32LE())
		lat := readF64LE(r)
		lon := readF64LE(r)
		alt := float64(readF32LE(r))
		if fixType > 0 {
			*gps = append(*gps, tags.GPSFix{Latitude: lat, Longitude: lon, Altitude: alt, FixTimestampUs: int64(epochSec * 1e6)})
		}
	case 7: // magnetic field
		v := readVec3F32LE(r)
		*magn = append(*magn, tags.TimeVector3{TimestampUs: int64(timestampSec * 1e6), V: v})
	}
}

func readF32LE(r *byteio.Reader) float32 {
	return math.Float32frombits(r.TryReadUint32LE())
}

func readF64LE(r *byteio.Reader) float64 {
	return math.Float64frombits(r.TryReadUint64LE())
}

func readVec3F32LE(r *byteio.Reader) tags.Vector3 {
	return tags.Vector3{X: float64(readF32LE(r)), Y: float64(readF32LE(r)), Z: float64(readF32LE(r))}
}
