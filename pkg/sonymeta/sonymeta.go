// Package sonymeta decodes Sony's non-real-time-metadata (rtmd) track: a
// big-endian TLV stream of 16-bit tags, with a 14-byte SMPTE UUID header
// preceding every top-level group and 0x8300 marking a nested container.
//
// Grounded on original_source/src/sony/{mod.rs,rtmd_tags.rs}. The tag table
// itself (rtmd_tags.rs is ~800 lines covering lens, color and GPS metadata
// this module has no use for) is expressed as embedded YAML decoded with
// gopkg.in/yaml.v2 instead of a Go source table, so the schema can grow
// without touching code, the way the upstream macro table grows without
// touching the TLV loop.
package sonymeta

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"camtelemetry/pkg/byteio"
	"camtelemetry/pkg/decoder"
	"camtelemetry/pkg/logging"
	"camtelemetry/pkg/mp4box"
	"camtelemetry/pkg/normalize"
	"camtelemetry/pkg/tags"
	"camtelemetry/pkg/telemetryerr"
)

var groupByName = map[string]tags.Group{
	"Gyroscope":     tags.GroupGyroscope,
	"Accelerometer": tags.GroupAccelerometer,
	"Imager":        tags.GroupImager,
	"Lens":          tags.GroupLens,
	"GPS":           tags.GroupGPS,
}

// Decoder decodes Sony rtmd metadata tracks.
type Decoder struct{}

// Name implements decoder.Decoder.
func (Decoder) Name() string { return "sonymeta" }

// Identify implements decoder.Decoder.
func (Decoder) Identify(prefix []byte, _ string) bool {
	return bytes.Contains(prefix, []byte(`manufacturer="Sony"`))
}

// Decode implements decoder.Decoder.
func (Decoder) Decode(input decoder.Input, filename string, opts decoder.Options) (*tags.Telemetry, error) {
	log := opts.Logger()
	data := make([]byte, input.Len())
	if _, err := io.ReadFull(io.NewSectionReader(input, 0, input.Len()), data); err != nil {
		return nil, &telemetryerr.IoError{Op: "sonymeta.Decode", Err: err}
	}

	device := tags.DeviceIdentity{Vendor: "Sony", Model: findModel(data)}

	tracksFound, err := mp4box.Demux(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	mdTrack := findMetadataTrack(tracksFound)
	if mdTrack == nil {
		return nil, telemetryerr.ErrUnsupported
	}

	track := tags.Track{TrackID: mdTrack.TrackID, Handler: mdTrack.HandlerName}
	var frameReadoutMs float64
	for i, b := range mdTrack.Samples {
		buf := make([]byte, b.Len)
		if n, err := input.ReadAt(buf, b.Offset); err != nil && !(err == io.EOF && n == b.Len) {
			continue
		}
		if !detectMetadata(buf) {
			continue
		}
		gm, err := parseMetadata(buf[0x1C:], log)
		if err != nil {
			continue
		}
		postProcess(gm, &frameReadoutMs)
		track.Samples = append(track.Samples, tags.Sample{
			Index:       i,
			TimestampUs: b.TimestampUs,
			DurationUs:  b.DurationUs,
			Tags:        gm,
		})
	}
	if frameReadoutMs > 0 {
		if device.Additional == nil {
			device.Additional = map[string]string{}
		}
		device.Additional["frame_readout_ms"] = fmt.Sprintf("%.4f", frameReadoutMs)
	}

	return &tags.Telemetry{Device: device, Tracks: []tags.Track{track}}, nil
}

// NormalizeOrientation implements Sony's axis convention: swap X/Y, invert
// the sign of Z. Grounded on Sony::normalize_imu_orientation.
func NormalizeOrientation(spec string) string {
	return normalize.SwapXYInvertZ(spec)
}

func findModel(data []byte) string {
	const needle = `manufacturer="Sony"`
	idx := bytes.Index(data, []byte(needle))
	if idx < 0 {
		return "Unknown"
	}
	window := data[idx:]
	if len(window) > 1024 {
		window = window[:1024]
	}
	const modelNeedle = `modelName="`
	mi := bytes.Index(window, []byte(modelNeedle))
	if mi < 0 {
		return "Unknown"
	}
	rest := window[mi+len(modelNeedle):]
	end := bytes.IndexByte(rest, '"')
	if end < 0 {
		return "Unknown"
	}
	return string(rest[:end])
}

func findMetadataTrack(tracksFound []mp4box.Track) *mp4box.Track {
	for i := range tracksFound {
		if tracksFound[i].HandlerType == "priv" || tracksFound[i].HandlerType == "meta" {
			return &tracksFound[i]
		}
	}
	return nil
}

func detectMetadata(data []byte) bool {
	return len(data) > 0x1C && data[0] == 0x00 && data[1] == 0x1C
}

func parseMetadata(data []byte, log *logging.Logger) (tags.GroupedTagMap, error) {
	gm := make(tags.GroupedTagMap)
	r := byteio.NewReader(bytes.NewReader(data))
	total := int64(len(data))

	for r.Pos() < total {
		tagID := r.TryReadUint16BE()
		if r.TryError != nil {
			break
		}
		if tagID == 0x060e {
			r.TrySkip(14)
			continue
		}
		if tagID == 0 || tagID == 0xffff {
			break
		}
		length := int(r.TryReadUint16BE())
		if r.TryError != nil {
			break
		}
		pos := r.Pos()
		if pos+int64(length) > total {
			break
		}
		tagData := data[pos : pos+int64(length)]
		r.TrySkip(length)

		if tagID == 0x8300 {
			child, err := parseMetadata(tagData, log)
			if err != nil {
				return gm, err
			}
			gm.Merge(child)
			continue
		}
		gm.Insert(decodeTag(tagID, tagData, log))
	}
	return gm, nil
}

func decodeTag(id uint16, data []byte, log *logging.Logger) *tags.Tag {
	schema, known := schemaTable[id]
	nativeID := fmt.Sprintf("0x%04x", id)
	if !known {
		log.Warn().Decoder("sonymeta").Str("tag_id", nativeID).Msg("unknown rtmd tag, keeping raw bytes")
		return &tags.Tag{Group: tags.GroupDefault, NativeID: nativeID, Kind: tags.KindBytes, Raw: data}
	}
	group := groupByName[schema.Group]
	if group == "" {
		group = tags.GroupDefault
	}
	t := &tags.Tag{Group: group, NativeID: nativeID, Name: schema.Name}

	switch schema.Type {
	case "u16":
		t.Kind = tags.KindScalar
		t.Scalar = float64(be16(data))
	case "i32":
		t.Kind = tags.KindScalar
		t.Scalar = float64(int32(be32(data)))
	case "i32ms":
		t.Kind = tags.KindScalar
		t.Scalar = float64(int32(be32(data))) / 1000.0
		t.Unit = "ms"
	case "f32":
		t.Kind = tags.KindScalar
		t.Scalar = float64(math.Float32frombits(be32(data)))
	case "bool":
		t.Kind = tags.KindScalar
		if len(data) > 0 && data[0] != 0 {
			t.Scalar = 1
		}
	case "string":
		t.Kind = tags.KindString
		t.Text = string(bytes.TrimRight(data, "\x00"))
	case "vec3i16stream":
		t.Kind = tags.KindVectors
		t.Vectors = decodeVec3I16Stream(data)
	default:
		t.Kind = tags.KindBytes
		t.Raw = data
	}
	return t
}

// decodeVec3I16Stream matches the Rust Vec_Vector3_i16 reader: a 4-byte
// item count, a 4-byte "6" sanity length (3 i16 components), then count
// (x,y,z) triples.
func decodeVec3I16Stream(data []byte) []tags.Vector3 {
	if len(data) < 8 {
		return nil
	}
	count := int32(be32(data[0:4]))
	itemLen := int32(be32(data[4:8]))
	if itemLen != 6 || count <= 0 {
		return nil
	}
	out := make([]tags.Vector3, 0, count)
	off := 8
	for i := int32(0); i < count && off+6 <= len(data); i++ {
		out = append(out, tags.Vector3{
			X: float64(int16(be16(data[off : off+2]))),
			Y: float64(int16(be16(data[off+2 : off+4]))),
			Z: float64(int16(be16(data[off+4 : off+6]))),
		})
		off += 6
	}
	return out
}

func postProcess(gm tags.GroupedTagMap, frameReadoutMs *float64) {
	if _, ok := gm[tags.GroupAccelerometer]; ok {
		gm.Insert(&tags.Tag{Group: tags.GroupAccelerometer, NativeID: "unit", Name: "Accelerometer unit", Kind: tags.KindString, Text: "g"})
	}
	if imager, ok := gm[tags.GroupImager]; ok {
		for _, t := range imager {
			if t.Name == "Frame readout time" {
				*frameReadoutMs = t.Scalar
			}
		}
	}
}

func be16(b []byte) uint16 { return uint16(b[0])<<8 | uint16(b[1]) }
func be32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
