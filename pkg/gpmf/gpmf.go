package gpmf

import (
	"bytes"
	"io"

	"camtelemetry/pkg/decoder"
	"camtelemetry/pkg/logging"
	"camtelemetry/pkg/mp4box"
	"camtelemetry/pkg/tags"
	"camtelemetry/pkg/telemetryerr"
)

// fourccGroup maps a GPMF stream fourCC onto a normalized group, per
// group_from_key in original_source/src/gopro/klv.rs. Anything absent here
// is treated as vendor-custom and skipped.
var fourccGroup = map[string]tags.Group{
	"GYRO": tags.GroupGyroscope,
	"ACCL": tags.GroupAccelerometer,
	"GRAV": tags.GroupGravityVector,
	"MAGN": tags.GroupMagnetometer,
	"CORI": tags.GroupCameraOrientation,
	"IORI": tags.GroupImageOrientation,
	"SHUT": tags.GroupExposure,
	"GPS5": tags.GroupGPS,
}

// Decoder decodes GoPro GPMF metadata tracks.
type Decoder struct{}

// Name implements decoder.Decoder.
func (Decoder) Name() string { return "gpmf" }

// Identify implements decoder.Decoder.
func (Decoder) Identify(prefix []byte, filename string) bool {
	if bytes.Contains(prefix, []byte("DEVC")) && bytes.Contains(prefix, []byte("GPMF")) {
		return true
	}
	return bytes.Contains(prefix, []byte("GoPro MET"))
}

// Decode implements decoder.Decoder. It looks for an MP4 "GoPro MET" track;
// if the input isn't a container at all it treats it as a raw, unwrapped
// GPMF stream (the format GoPro's own telemetry extractor emits).
func (Decoder) Decode(input decoder.Input, filename string, opts decoder.Options) (*tags.Telemetry, error) {
	log := opts.Logger()
	data := make([]byte, input.Len())
	if _, err := io.ReadFull(io.NewSectionReader(input, 0, input.Len()), data); err != nil {
		return nil, &telemetryerr.IoError{Op: "gpmf.Decode", Err: err}
	}

	device := tags.DeviceIdentity{Vendor: "GoPro", Model: "Unknown"}

	if bytes.Contains(data[:min(len(data), 64)], []byte("ftyp")) {
		tracksFound, err := mp4box.Demux(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		track := findMetadataTrack(tracksFound, log)
		if track == nil {
			return nil, telemetryerr.ErrUnsupported
		}
		payload, bounds, err := mp4box.ConcatTrackPayload(input, *track)
		if err != nil {
			return nil, err
		}
		entries, err := ParseStream(payload)
		if err != nil {
			return nil, err
		}
		track2 := buildTrack(track.TrackID, track.HandlerName, entries, bounds)
		return &tags.Telemetry{Device: device, Tracks: []tags.Track{track2}}, nil
	}

	entries, err := ParseStream(data)
	if err != nil {
		return nil, err
	}
	track := buildTrack(0, "GPMF", entries, nil)
	return &tags.Telemetry{Device: device, Tracks: []tags.Track{track}}, nil
}

func findMetadataTrack(tracksFound []mp4box.Track, log *logging.Logger) *mp4box.Track {
	for i := range tracksFound {
		if tracksFound[i].HandlerType == "meta" && bytes.Contains([]byte(tracksFound[i].HandlerName), []byte("GoPro")) {
			return &tracksFound[i]
		}
	}
	for i := range tracksFound {
		if tracksFound[i].HandlerType == "meta" {
			log.Warn().Decoder("gpmf").Track(tracksFound[i].TrackID).
				Str("handler_name", tracksFound[i].HandlerName).
				Msg("no GoPro-named meta track found, falling back to first meta track")
			return &tracksFound[i]
		}
	}
	return nil
}

// buildTrack walks top-level DEVC entries (one per original MP4 sample) and
// turns each into a tags.Sample. bounds, if non-nil, lets each DEVC inherit
// the timestamp of the MP4 sample it was concatenated from; otherwise
// samples are indexed but left at timestamp 0 for the caller (pkg/timeline)
// to fill in.
func buildTrack(trackID uint32, handler string, entries []Entry, bounds []mp4box.SampleBound) tags.Track {
	track := tags.Track{TrackID: trackID, Handler: handler}
	var offset int
	for i, e := range entries {
		if e.FourCC != "DEVC" {
			continue
		}
		gm := make(tags.GroupedTagMap)
		decodeContainer(e.Children, streamState{}, gm)

		sample := tags.Sample{Index: i, Tags: gm}
		if bounds != nil {
			b, _ := mp4box.SampleForOffset(bounds, offset)
			sample.TimestampUs = b.TimestampUs
			sample.DurationUs = b.DurationUs
		}
		track.Samples = append(track.Samples, sample)
		offset += len(e.Raw) + 8
	}
	return track
}

// streamState carries the SCAL/UNIT/STNM sibling entries that modify the
// data entries following them within the same STRM container.
type streamState struct {
	scale []float64
	unit  string
	name  string
}

func decodeContainer(entries []Entry, inherited streamState, into tags.GroupedTagMap) {
	st := inherited
	for _, e := range entries {
		switch e.FourCC {
		case "SCAL":
			st.scale = e.Floats()
			continue
		case "UNIT", "SIUN":
			st.unit = e.String()
			continue
		case "STNM":
			st.name = e.String()
			continue
		}
		if e.IsNested() {
			decodeContainer(e.Children, streamState{}, into)
			continue
		}
		group, known := fourccGroup[e.FourCC]
		if !known {
			continue
		}
		if t := buildTag(e, group, st); t != nil {
			into.Insert(t)
		}
	}
}

func buildTag(e Entry, group tags.Group, st streamState) *tags.Tag {
	vals := e.Floats()
	if len(vals) == 0 {
		return nil
	}
	scaleAt := func(i int) float64 {
		switch len(st.scale) {
		case 0:
			return 1
		case 1:
			return st.scale[0]
		default:
			if i < len(st.scale) {
				return st.scale[i]
			}
			return 1
		}
	}

	if group == tags.GroupCameraOrientation || group == tags.GroupImageOrientation {
		var quats []tags.Quaternion
		for i := 0; i+4 <= len(vals); i += 4 {
			quats = append(quats, tags.Quaternion{
				W: vals[i] / scaleAt(0),
				X: vals[i+1] / scaleAt(1),
				Y: vals[i+2] / scaleAt(2),
				Z: vals[i+3] / scaleAt(3),
			})
		}
		return &tags.Tag{Group: group, NativeID: e.FourCC, Name: st.name, Unit: st.unit, Kind: tags.KindQuaternions, Quaternions: quats}
	}

	var vecs []tags.Vector3
	for i := 0; i+3 <= len(vals); i += 3 {
		vecs = append(vecs, tags.Vector3{
			X: vals[i] / scaleAt(0),
			Y: vals[i+1] / scaleAt(1),
			Z: vals[i+2] / scaleAt(2),
		})
	}
	if len(vecs) == 0 {
		return &tags.Tag{Group: group, NativeID: e.FourCC, Name: st.name, Unit: st.unit, Kind: tags.KindScalar, Scalar: vals[0] / scaleAt(0)}
	}
	return &tags.Tag{Group: group, NativeID: e.FourCC, Name: st.name, Unit: st.unit, Kind: tags.KindVectors, Vectors: vecs}
}
