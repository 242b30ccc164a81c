// Package tags defines the vendor-neutral data model every decoder produces
// into: groups, tags, samples, tracks and the device identity that selects
// a decoder in the first place.
package tags

// Group names a semantic category of measurement, independent of the vendor
// fourCC or tag ID that produced it. Closed set: decoders map their native
// identifiers onto one of these.
type Group string

// Recognized groups.
const (
	GroupGyroscope         Group = "Gyroscope"
	GroupAccelerometer     Group = "Accelerometer"
	GroupGravityVector     Group = "GravityVector"
	GroupMagnetometer      Group = "Magnetometer"
	GroupCameraOrientation Group = "CameraOrientation"
	GroupImageOrientation  Group = "ImageOrientation"
	GroupExposure          Group = "Exposure"
	GroupGPS               Group = "GPS"
	GroupImager            Group = "Imager"
	GroupLens              Group = "Lens"
	GroupDefault           Group = "Default"
	GroupCustom            Group = "Custom"
)

// Kind identifies which field of Tag holds the decoded value.
type Kind uint8

// Recognized value kinds.
const (
	KindUnknown Kind = iota
	KindScalar       // Scalar holds the value.
	KindString       // Text holds the value.
	KindVectors      // Vectors holds one sample per fixed sub-period.
	KindTimeVectors  // TimeVectors holds self-timestamped samples.
	KindQuaternions  // Quaternions holds one rotation per fixed sub-period.
	KindGPS          // GPSFixes holds the value.
	KindBytes        // Raw holds an undecoded payload.
)

// Vector3 is a 3-axis measurement in the axis order the decoder read it in,
// before any normalization.
type Vector3 struct {
	X, Y, Z float64
}

// TimeVector3 is a Vector3 with its own timestamp, used by formats (e.g.
// Insta360) whose metadata samples carry explicit per-record times instead
// of being evenly spread across an MP4 sample's duration.
type TimeVector3 struct {
	TimestampUs int64
	V           Vector3
}

// Quaternion is a unit rotation quaternion, W first.
type Quaternion struct {
	W, X, Y, Z float64
}

// GPSFix is a single GPS reading.
type GPSFix struct {
	Latitude, Longitude, Altitude float64
	SpeedMPS                      float64
	FixTimestampUs                int64
}

// Tag is one decoded measurement: a scale, a unit string, an orientation
// hint, a raw vector stream, whatever a single native identifier produced.
type Tag struct {
	Group    Group
	NativeID string // fourCC, hex tag number, or record type name.
	Name     string
	Unit     string
	Kind     Kind

	Scalar      float64
	Text        string
	Vectors     []Vector3
	TimeVectors []TimeVector3
	Quaternions []Quaternion
	GPSFixes    []GPSFix
	Raw         []byte
}

// TagMap indexes a group's tags by native ID.
type TagMap map[string]*Tag

// GroupedTagMap is the per-sample tag table: group -> native ID -> tag.
type GroupedTagMap map[Group]TagMap

// Get returns the tag for group/nativeID, or nil.
func (m GroupedTagMap) Get(group Group, nativeID string) *Tag {
	tm, ok := m[group]
	if !ok {
		return nil
	}
	return tm[nativeID]
}

// Insert adds or overwrites a tag, creating the group's map if needed.
func (m GroupedTagMap) Insert(t *Tag) {
	tm, ok := m[t.Group]
	if !ok {
		tm = make(TagMap)
		m[t.Group] = tm
	}
	tm[t.NativeID] = t
}

// Merge copies every tag from other into m, group by group.
func (m GroupedTagMap) Merge(other GroupedTagMap) {
	for group, tm := range other {
		dst, ok := m[group]
		if !ok {
			dst = make(TagMap)
			m[group] = dst
		}
		for id, t := range tm {
			dst[id] = t
		}
	}
}

// Sample is one MP4-sample's worth of decoded metadata.
type Sample struct {
	Index       int
	TimestampUs int64
	DurationUs  int64
	Tags        GroupedTagMap
}

// Track is a decoded metadata track: the concatenated, fully-parsed payload
// of one MP4 track (or the whole file, for raw/trailer formats with no
// container).
type Track struct {
	TrackID uint32
	Handler string
	Samples []Sample
}

// DeviceIdentity names the vendor and model a decoder identified, plus any
// vendor-specific extras (firmware version, lens, ...).
type DeviceIdentity struct {
	Vendor     string
	Model      string
	Additional map[string]string
}

// Telemetry is the full decode result for one input.
type Telemetry struct {
	Device DeviceIdentity
	Tracks []Track
}

// NormalizedSample is one synchronized, unit- and axis-normalized IMU
// reading. Any subset of the pointers may be nil if that measurement
// wasn't present at this instant.
type NormalizedSample struct {
	TimestampUs int64
	Gyro        *Vector3 // degrees/second
	Accel       *Vector3 // meters/second^2
	Magn        *Vector3 // microtesla
}
