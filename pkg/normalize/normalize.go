// Package normalize converts a decoder's native axis orientation and unit
// system into the module's common output frame: gyro in degrees/second,
// accel in meters/second^2, axes permuted to the orientation string "XYZ"
// (each letter is an axis of the target frame, case marks a sign flip, e.g.
// "xyZ" means invert X and Y).
//
// Grounded on normalized_imu/orientations_to_matrix in the upstream
// util.rs/gopro/klv.rs: rather than a general rotation, every camera's IMU
// is mounted axis-aligned, so a signed permutation matrix is always enough.
// A dependency like gonum would buy nothing here: every matrix in this
// package has exactly one nonzero entry per row, so hand-written multiply
// is both simpler and faster than a general BLAS call.
package normalize

import (
	"fmt"

	"camtelemetry/pkg/telemetryerr"
)

// Matrix3 is a 3x3 signed permutation matrix: exactly one of {-1,0,1} per
// row and column.
type Matrix3 [3][3]int8

// Identity is the no-op orientation.
var Identity = Matrix3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}

// FromAxisString parses a 3-character orientation spec such as "XYZ",
// "yxz" or "xZy" into a Matrix3. Each letter names which source axis (X=0,
// Y=1, Z=2) maps onto that output row; lowercase inverts the sign.
func FromAxisString(spec string) (Matrix3, error) {
	if len(spec) != 3 {
		return Matrix3{}, fmt.Errorf("orientation spec must be 3 characters, got %q", spec)
	}
	var m Matrix3
	for row, c := range spec {
		sign := int8(1)
		axisChar := c
		if c >= 'a' && c <= 'z' {
			sign = -1
			axisChar = c - 'a' + 'A'
		}
		col := int(axisChar - 'X')
		if col < 0 || col > 2 {
			return Matrix3{}, fmt.Errorf("orientation spec %q: invalid axis %q", spec, c)
		}
		m[row][col] = sign
	}
	return m, nil
}

// Apply transforms v from the source frame into the target frame.
func (m Matrix3) Apply(v [3]float64) [3]float64 {
	var out [3]float64
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			if m[row][col] != 0 {
				out[row] = float64(m[row][col]) * v[col]
			}
		}
	}
	return out
}

// Multiply composes two orientation matrices: (a.Multiply(b)).Apply(v) ==
// a.Apply(b.Apply(v)).
func (a Matrix3) Multiply(b Matrix3) Matrix3 {
	var out Matrix3
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			var sum int8
			for k := 0; k < 3; k++ {
				sum += a[row][k] * b[k][col]
			}
			out[row][col] = sum
		}
	}
	return out
}

// Unit conversion constants, matching the upstream util.rs raw2unit/unit2deg
// tables.
const (
	RadToDeg   = 180.0 / 3.14159265358979323846
	GToMPS2    = 9.80665
	NoopFactor = 1.0
)

// GyroUnitFactor returns the multiplier that converts unit (as read from a
// decoder's Unit tag, e.g. "rad/s", "deg/s") into degrees/second.
func GyroUnitFactor(unit string) (float64, error) {
	switch unit {
	case "", "deg/s", "dps":
		return NoopFactor, nil
	case "rad/s":
		return RadToDeg, nil
	default:
		return 0, &telemetryerr.MalformedPayloadError{Decoder: "normalize", Reason: "unknown gyro unit " + unit}
	}
}

// AccelUnitFactor returns the multiplier that converts unit into meters/second^2.
func AccelUnitFactor(unit string) (float64, error) {
	switch unit {
	case "", "m/s2", "m/s^2", "mps2":
		return NoopFactor, nil
	case "g":
		return GToMPS2, nil
	default:
		return 0, &telemetryerr.MalformedPayloadError{Decoder: "normalize", Reason: "unknown accel unit " + unit}
	}
}

// SwapXYInvertZ implements the Sony normalize_imu_orientation transform:
// swap the X and Y axis assignments, then flip the sign (case) of the axis
// assigned to Z.
func SwapXYInvertZ(spec string) string {
	r := []rune(spec)
	r[0], r[1] = r[1], r[0]
	r[2] = invertCase(r[2])
	return string(r)
}

func invertCase(c rune) rune {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c - 'A' + 'a'
}
