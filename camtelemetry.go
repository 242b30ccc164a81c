// Package camtelemetry extracts motion and sensor telemetry — gyroscope,
// accelerometer, magnetometer, GPS and camera orientation — from action
// camera, cinema camera and flight controller footage.
//
// Open identifies the format (GoPro GPMF, Sony non-real-time-metadata,
// Google CAMM, Insta360's trailer) and decodes every metadata track into a
// vendor-neutral Telemetry, and NormalizedIMU further merges the IMU groups
// into one unit- and axis-normalized, time-ordered stream.
package camtelemetry

import (
	"camtelemetry/pkg/decoder"
	"camtelemetry/pkg/dispatch"
	"camtelemetry/pkg/logging"
	"camtelemetry/pkg/sonymeta"
	"camtelemetry/pkg/tags"
	"camtelemetry/pkg/telemetryerr"
	"camtelemetry/pkg/timeline"
)

// Options controls decode behavior. It embeds decoder.Options so callers
// don't need to import the decoder package for the common case.
type Options struct {
	decoder.Options
}

// Parser holds a fully decoded input.
type Parser struct {
	device     tags.DeviceIdentity
	tracks     []tags.Track
	decoderTag string
	log        *logging.Logger
}

// Open identifies and fully decodes input. filename is only recorded in
// Open's log line; no detector or decoder reads it, so identification
// rests on content alone. Pass "" if unknown.
func Open(input decoder.Input, filename string, opts Options) (*Parser, error) {
	telemetry, d, err := dispatch.Open(input, filename, opts.Options)
	if err != nil {
		return nil, err
	}
	log := opts.Logger()
	log.Info().Decoder(d.Name()).Str("filename", filename).Msg("decoded telemetry")
	return &Parser{
		device:     telemetry.Device,
		tracks:     telemetry.Tracks,
		decoderTag: d.Name(),
		log:        log,
	}, nil
}

// Device returns the identified camera vendor and model.
func (p *Parser) Device() tags.DeviceIdentity { return p.device }

// Telemetry returns every decoded track, tags untouched from the vendor
// decoder's native units and axis orientation.
func (p *Parser) Telemetry() []tags.Track { return p.tracks }

// HasAccurateTimestamps reports whether this format's per-measurement
// timestamps come from the container/record itself (CAMM, Insta360, Sony)
// rather than being evenly interpolated across an MP4 sample's duration
// (GPMF, when no STMP tags are present).
func (p *Parser) HasAccurateTimestamps() bool {
	switch p.decoderTag {
	case "camm", "insta360", "sonymeta":
		return true
	default:
		return false
	}
}

// NormalizedIMU merges every gyro/accel/magn tag within a single track's
// samples into one time-ordered stream, in degrees/second and meters/
// second^2, in the sensor's native mounting frame corrected to a common
// right-handed convention.
//
// If Telemetry holds exactly one track carrying IMU data, that track is
// used implicitly. Files with more than one IMU-bearing track (e.g. a
// CAMM track alongside a vendor telemetry track) are never merged —
// callers must pick a track with NormalizedIMUForTrack instead.
func (p *Parser) NormalizedIMU() (*timeline.IMUStream, error) {
	bearing := p.imuBearingTracks()
	switch len(bearing) {
	case 0:
		return timeline.NewIMUStream(nil), nil
	case 1:
		return p.normalizedIMUForTrack(bearing[0])
	default:
		return nil, &telemetryerr.AmbiguousTrackError{
			Reason: "multiple tracks carry IMU data; call NormalizedIMUForTrack to pick one",
		}
	}
}

// NormalizedIMUForTrack runs NormalizedIMU's merge scoped to a single
// track, identified by its TrackID as reported in Telemetry.
func (p *Parser) NormalizedIMUForTrack(trackID uint32) (*timeline.IMUStream, error) {
	for _, track := range p.tracks {
		if track.TrackID == trackID {
			return p.normalizedIMUForTrack(track)
		}
	}
	return nil, &telemetryerr.AmbiguousTrackError{Reason: "no such track"}
}

// imuBearingTracks returns every track carrying at least one gyroscope or
// accelerometer tag.
func (p *Parser) imuBearingTracks() []tags.Track {
	var out []tags.Track
	for _, track := range p.tracks {
		for _, sample := range track.Samples {
			if _, ok := sample.Tags[tags.GroupGyroscope]; ok {
				out = append(out, track)
				break
			}
			if _, ok := sample.Tags[tags.GroupAccelerometer]; ok {
				out = append(out, track)
				break
			}
		}
	}
	return out
}

func (p *Parser) normalizedIMUForTrack(track tags.Track) (*timeline.IMUStream, error) {
	var gyro, accel, magn []timeline.Reading
	gyroUnit, accelUnit, orientationSpec := "", "", "XYZ"

	for _, sample := range track.Samples {
		extractGroup(sample, tags.GroupGyroscope, &gyro, &gyroUnit, &orientationSpec)
		extractGroup(sample, tags.GroupAccelerometer, &accel, &accelUnit, &orientationSpec)
		extractGroup(sample, tags.GroupMagnetometer, &magn, nil, nil)
	}

	if p.decoderTag == "sonymeta" {
		orientationSpec = sonymeta.NormalizeOrientation(orientationSpec)
	}

	samples, err := timeline.BuildIMUStream(gyro, accel, magn, gyroUnit, accelUnit, orientationSpec)
	if err != nil {
		return nil, err
	}
	return timeline.NewIMUStream(samples), nil
}

// extractGroup pulls every reading for group out of sample's tag map,
// spreading timestamps evenly across the sample's duration for tags whose
// values arrive as a fixed-rate Vectors array, or using each entry's own
// timestamp for TimeVectors.
func extractGroup(sample tags.Sample, group tags.Group, out *[]timeline.Reading, unit, orientation *string) {
	tm, ok := sample.Tags[group]
	if !ok {
		return
	}
	for _, t := range tm {
		switch t.NativeID {
		case "unit":
			if unit != nil && t.Unit != "" {
				*unit = t.Unit
			} else if unit != nil && t.Text != "" {
				*unit = t.Text
			}
		case "orientation":
			if orientation != nil && t.Text != "" {
				*orientation = t.Text
			}
		}
		if t.Unit != "" && unit != nil {
			*unit = t.Unit
		}
		switch t.Kind {
		case tags.KindVectors:
			ts := timeline.SpreadTimestamps(sample.TimestampUs, sample.DurationUs, len(t.Vectors))
			for i, v := range t.Vectors {
				*out = append(*out, timeline.Reading{TimestampUs: ts[i], V: v})
			}
		case tags.KindTimeVectors:
			for _, tv := range t.TimeVectors {
				*out = append(*out, timeline.Reading{TimestampUs: tv.TimestampUs, V: tv.V})
			}
		}
	}
}
