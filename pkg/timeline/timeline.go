// Package timeline reconstructs per-measurement timestamps from an MP4
// sample's (DTS, duration) pair and produces the unit- and axis-normalized
// IMU stream every decoder's output converges to.
//
// Grounded on normalized_imu/normalized_imu_interpolated in
// original_source/src/util.rs: samples with a fixed measurement rate
// (GoPro, Sony) get their sub-timestamps evenly spread across the MP4
// sample's duration; samples that already carry their own timestamp
// (Insta360, CAMM) keep it as-is.
package timeline

import (
	"sort"

	"camtelemetry/pkg/normalize"
	"camtelemetry/pkg/tags"
)

// SpreadTimestamps assigns n evenly-spaced timestamps across
// [startUs, startUs+durationUs), matching the "uniform spread" fallback the
// upstream crate uses when a stream has no per-item STMP timestamps.
func SpreadTimestamps(startUs, durationUs int64, n int) []int64 {
	if n <= 0 {
		return nil
	}
	out := make([]int64, n)
	if n == 1 || durationUs <= 0 {
		for i := range out {
			out[i] = startUs
		}
		return out
	}
	step := float64(durationUs) / float64(n)
	for i := 0; i < n; i++ {
		out[i] = startUs + int64(float64(i)*step)
	}
	return out
}

// Reading is one raw axis-orientation measurement pending unit conversion.
type Reading struct {
	TimestampUs int64
	V           tags.Vector3
}

// BuildIMUStream merges a track's per-sample gyro/accel/magn tags into a
// single, time-ordered, unit- and orientation-normalized sequence.
//
// gyroUnit/accelUnit and orientation are read once per track (GPMF/Sony
// keep them constant for the whole stream via SCAL/UNIT/Orientation
// sibling tags); callers pass the resolved values rather than re-deriving
// them per sample.
func BuildIMUStream(gyro, accel, magn []Reading, gyroUnit, accelUnit, orientationSpec string) ([]tags.NormalizedSample, error) {
	orientation, err := normalize.FromAxisString(orientationSpec)
	if err != nil {
		orientation = normalize.Identity
	}
	gyroFactor, err := normalize.GyroUnitFactor(gyroUnit)
	if err != nil {
		return nil, err
	}
	accelFactor, err := normalize.AccelUnitFactor(accelUnit)
	if err != nil {
		return nil, err
	}

	byTime := make(map[int64]*tags.NormalizedSample)
	var order []int64
	get := func(t int64) *tags.NormalizedSample {
		if s, ok := byTime[t]; ok {
			return s
		}
		s := &tags.NormalizedSample{TimestampUs: t}
		byTime[t] = s
		order = append(order, t)
		return s
	}

	for _, r := range gyro {
		v := orientation.Apply([3]float64{r.V.X * gyroFactor, r.V.Y * gyroFactor, r.V.Z * gyroFactor})
		s := get(r.TimestampUs)
		s.Gyro = &tags.Vector3{X: v[0], Y: v[1], Z: v[2]}
	}
	for _, r := range accel {
		v := orientation.Apply([3]float64{r.V.X * accelFactor, r.V.Y * accelFactor, r.V.Z * accelFactor})
		s := get(r.TimestampUs)
		s.Accel = &tags.Vector3{X: v[0], Y: v[1], Z: v[2]}
	}
	for _, r := range magn {
		v := orientation.Apply([3]float64{r.V.X, r.V.Y, r.V.Z})
		s := get(r.TimestampUs)
		s.Magn = &tags.Vector3{X: v[0], Y: v[1], Z: v[2]}
	}

	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	out := make([]tags.NormalizedSample, len(order))
	for i, t := range order {
		out[i] = *byTime[t]
	}
	return out, nil
}

// IMUStream is a pull iterator over a normalized reading sequence. Go 1.21
// predates range-over-func (iter.Seq), so this mirrors the upstream crate's
// lazy iterator with an explicit Next method instead.
type IMUStream struct {
	samples []tags.NormalizedSample
	pos     int
}

// NewIMUStream wraps a pre-built sample slice.
func NewIMUStream(samples []tags.NormalizedSample) *IMUStream {
	return &IMUStream{samples: samples}
}

// Next returns the next sample and true, or a zero value and false once the
// stream is exhausted.
func (s *IMUStream) Next() (tags.NormalizedSample, bool) {
	if s.pos >= len(s.samples) {
		return tags.NormalizedSample{}, false
	}
	v := s.samples[s.pos]
	s.pos++
	return v, true
}

// Len reports the total number of samples in the stream.
func (s *IMUStream) Len() int { return len(s.samples) }

// Reset rewinds the stream to the beginning.
func (s *IMUStream) Reset() { s.pos = 0 }
