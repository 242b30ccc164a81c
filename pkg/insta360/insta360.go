// Package insta360 decodes the metadata trailer Insta360 cameras append
// after the mdat of every .insv/.mp4 file: a fixed 72-byte footer followed
// by a backward-linked chain of variable-length records.
//
// Grounded on original_source/src/insta360/{mod.rs,record.rs}. The
// protobuf-encoded Metadata record and the fisheye lens-calibration profile
// insert_lens_profile derives from it are not ported: this module's scope
// is IMU telemetry, and reproducing Insta360's protobuf schema and camera
// model would add a large, orthogonal surface for no telemetry benefit.
// The Metadata record is kept as an opaque tags.KindBytes tag instead so
// callers can still get at it. The Offsets fast-path index is also not
// implemented; every input is walked with the backward linear scan, which
// original_source itself falls back to whenever an Offsets record isn't
// present.
package insta360

import (
	"bytes"
	"math"

	"camtelemetry/pkg/byteio"
	"camtelemetry/pkg/decoder"
	"camtelemetry/pkg/tags"
	"camtelemetry/pkg/telemetryerr"
)

const (
	headerSize = 72
	magic      = "8db42d694ccc418790edff439fe026bf"
)

// Record type IDs, per RecordType in original_source/src/insta360/record.rs.
const (
	recordOffsets            = 0
	recordMetadata           = 1
	recordThumbnail          = 2
	recordGyro               = 3
	recordExposure           = 4
	recordThumbnailExt       = 5
	recordTimelapseTimestamp = 6
	recordGps                = 7
	recordExposureSecondary  = 12
	recordTimeMap            = 128
)

// orientationTable maps a camera model onto its IMU mounting orientation.
// Grounded on the has_offset_v3-keyed tables in insta360/mod.rs process_map;
// collapsed to the common (offset_v3-present) branch, since that covers
// every currently-shipping model this module targets.
var orientationTable = map[string]string{
	"Insta360 GO2":     "XYZ",
	"Insta360 GO3":     "XYZ",
	"Insta360 GO3S":    "yXZ",
	"Insta360 OneR":    "Xyz",
	"Insta360 OneRS":   "Xyz",
	"Insta360 ONE X2":  "xZy",
}

const defaultOrientation = "Xyz"

// Decoder decodes the Insta360 trailer format.
type Decoder struct{}

// Name implements decoder.Decoder.
func (Decoder) Name() string { return "insta360" }

// Identify implements decoder.Decoder.
func (Decoder) Identify(prefix []byte, _ string) bool {
	return bytes.HasSuffix(prefix, []byte(magic))
}

// Decode implements decoder.Decoder.
func (Decoder) Decode(input decoder.Input, filename string, opts decoder.Options) (*tags.Telemetry, error) {
	log := opts.Logger()
	size := input.Len()
	if size < headerSize {
		return nil, telemetryerr.ErrTruncated
	}

	footer := make([]byte, headerSize)
	if _, err := input.ReadAt(footer, size-headerSize); err != nil {
		return nil, &telemetryerr.IoError{Op: "insta360.Decode", Err: err}
	}
	if string(footer[headerSize-32:]) != magic {
		return nil, telemetryerr.ErrUnsupported
	}
	extraSize := int64(le32(footer[32:36]))
	version := le32(footer[36:40])
	_ = version

	gm := make(tags.GroupedTagMap)
	isRawGyro := false // no known model in this input set ships raw gyro records
	var offset int64 = headerSize + 4 + 1 + 1
	for offset < extraSize {
		pos := size - offset
		if pos < 6 {
			break
		}
		hdr := make([]byte, 6)
		if _, err := input.ReadAt(hdr, pos); err != nil {
			break
		}
		format := hdr[0]
		id := hdr[1]
		recSize := int64(le32(hdr[2:6]))
		if recSize < 0 || pos-recSize < 0 {
			break
		}
		data := make([]byte, recSize)
		if _, err := input.ReadAt(data, pos-recSize); err != nil {
			break
		}
		decodeRecord(id, format, data, isRawGyro, gm)
		offset += recSize + 4 + 1 + 1
	}

	device := tags.DeviceIdentity{Vendor: "Insta360", Model: modelFromMetadata(gm)}
	orientation, ok := orientationTable[device.Model]
	if !ok {
		log.Warn().Decoder("insta360").Str("model", device.Model).
			Msg("no known IMU orientation mapping for this model, using default")
		orientation = defaultOrientation
	}
	for _, g := range []tags.Group{tags.GroupAccelerometer, tags.GroupGyroscope} {
		gm.Insert(&tags.Tag{Group: g, NativeID: "orientation", Name: "IMU orientation", Kind: tags.KindString, Text: orientation})
	}

	track := tags.Track{Handler: "insta360-trailer", Samples: []tags.Sample{{Index: 0, Tags: gm}}}
	return &tags.Telemetry{Device: device, Tracks: []tags.Track{track}}, nil
}

func decodeRecord(id, format byte, data []byte, isRawGyro bool, gm tags.GroupedTagMap) {
	switch id {
	case recordGyro:
		decodeGyro(data, isRawGyro, gm)
	case recordExposure, recordExposureSecondary:
		gm.Insert(&tags.Tag{Group: tags.GroupExposure, NativeID: "shutter_speed", Name: "Shutter speed", Kind: tags.KindTimeVectors, TimeVectors: decodeTimeScalarsAsX(data)})
	case recordTimelapseTimestamp:
		gm.Insert(&tags.Tag{Group: tags.GroupDefault, NativeID: "timelapse_timestamps", Name: "Timelapse timestamps", Kind: tags.KindBytes, Raw: data})
	case recordMetadata:
		gm.Insert(&tags.Tag{Group: tags.GroupDefault, NativeID: "metadata", Name: "Metadata", Kind: tags.KindBytes, Raw: data})
	case recordGps:
		gm.Insert(&tags.Tag{Group: tags.GroupGPS, NativeID: "gps", Name: "GPS data", Kind: tags.KindBytes, Raw: data})
	default:
		if format == 0 { // binary, unhandled type: keep raw for completeness
			gm.Insert(&tags.Tag{Group: tags.GroupCustom, NativeID: hexByte(id), Kind: tags.KindBytes, Raw: data})
		}
	}
}

// decodeGyro implements the Gyro record layout: repeating [u64 timestamp_us,
// accel xyz, gyro xyz] items, either as f64 (scaled) or u16 offset-32768
// (raw) components depending on the camera's gyro reporting mode.
func decodeGyro(data []byte, isRawGyro bool, gm tags.GroupedTagMap) {
	r := byteio.NewReader(bytes.NewReader(data))
	var accel, gyro []tags.TimeVector3
	for {
		tsRaw := r.TryReadUint64LE()
		if r.TryError != nil {
			break
		}
		tsUs := int64(tsRaw)
		var a, g tags.Vector3
		if isRawGyro {
			a = tags.Vector3{X: float64(r.TryReadUint16LE()) - 32768, Y: float64(r.TryReadUint16LE()) - 32768, Z: float64(r.TryReadUint16LE()) - 32768}
			g = tags.Vector3{X: float64(r.TryReadUint16LE()) - 32768, Y: float64(r.TryReadUint16LE()) - 32768, Z: float64(r.TryReadUint16LE()) - 32768}
		} else {
			a = readVec3F64LE(r)
			g = readVec3F64LE(r)
		}
		if r.TryError != nil {
			break
		}
		accel = append(accel, tags.TimeVector3{TimestampUs: tsUs, V: a})
		gyro = append(gyro, tags.TimeVector3{TimestampUs: tsUs, V: g})
	}

	gyroUnit := "rad/s"
	if isRawGyro {
		const gyroRangeDefault = 2000.0 // degrees/second
		const accelRangeDefault = 16.0  // g
		gyroScale := 32768.0 / gyroRangeDefault
		accelScale := 32768.0 / accelRangeDefault
		gm.Insert(&tags.Tag{Group: tags.GroupGyroscope, NativeID: "scale", Kind: tags.KindScalar, Scalar: gyroScale})
		gm.Insert(&tags.Tag{Group: tags.GroupAccelerometer, NativeID: "scale", Kind: tags.KindScalar, Scalar: accelScale})
		gyroUnit = "deg/s"
	}
	gm.Insert(&tags.Tag{Group: tags.GroupGyroscope, NativeID: "unit", Kind: tags.KindString, Text: gyroUnit})
	gm.Insert(&tags.Tag{Group: tags.GroupAccelerometer, NativeID: "unit", Kind: tags.KindString, Text: "g"})
	gm.Insert(&tags.Tag{Group: tags.GroupAccelerometer, NativeID: "data", Name: "Accelerometer data", Kind: tags.KindTimeVectors, TimeVectors: accel})
	gm.Insert(&tags.Tag{Group: tags.GroupGyroscope, NativeID: "data", Name: "Gyroscope data", Kind: tags.KindTimeVectors, TimeVectors: gyro})
}

// decodeTimeScalarsAsX decodes repeating [u64 timestamp_us, f64 value]
// pairs, storing value in TimeVector3.V.X so it fits the shared
// TimeVector3 shape without a dedicated scalar-timeseries kind.
func decodeTimeScalarsAsX(data []byte) []tags.TimeVector3 {
	r := byteio.NewReader(bytes.NewReader(data))
	var out []tags.TimeVector3
	for {
		ts := r.TryReadUint64LE()
		if r.TryError != nil {
			break
		}
		v := readF64LE(r)
		if r.TryError != nil {
			break
		}
		out = append(out, tags.TimeVector3{TimestampUs: int64(ts), V: tags.Vector3{X: v}})
	}
	return out
}

func readVec3F64LE(r *byteio.Reader) tags.Vector3 {
	return tags.Vector3{X: readF64LE(r), Y: readF64LE(r), Z: readF64LE(r)}
}

func readF64LE(r *byteio.Reader) float64 {
	return math.Float64frombits(r.TryReadUint64LE())
}

func modelFromMetadata(gm tags.GroupedTagMap) string {
	t := gm.Get(tags.GroupDefault, "metadata")
	if t == nil || len(t.Raw) == 0 {
		return "Unknown"
	}
	if idx := bytes.Index(t.Raw, []byte("Insta360 ")); idx >= 0 {
		end := idx
		for end < len(t.Raw) && t.Raw[end] >= 0x20 && t.Raw[end] < 0x7f {
			end++
		}
		return string(t.Raw[idx:end])
	}
	return "Unknown"
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func hexByte(b byte) string {
	const hex = "0123456789abcdef"
	return string([]byte{'0', 'x', hex[b>>4], hex[b&0xf]})
}
