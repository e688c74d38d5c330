// Package imu defines motion samples produced by the accelerometer/gyro
// board and the wire format used to carry them over the serial link.
//
// The sensor firmware streams one line per reading:
//
//	M,<seq>,<ax>,<ay>,<az>,<gx>,<gy>,<gz>
//
// where ax/ay/az are accelerations in centi-g (1/100 g) and gx/gy/gz are
// angular rates in centi-degrees/second. Integer fields keep the firmware
// free of float formatting; conversion to engineering units happens here.
package imu

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// StandardGravity is the conversion factor between g and m/s^2.
const StandardGravity = 9.80665

// MotionSample is a single accelerometer/gyro reading in engineering units.
// Accelerations are in g, angular rates in degrees/second.
type MotionSample struct {
	Seq        uint64
	AxG        float64
	AyG        float64
	AzG        float64
	GxDPS      float64
	GyDPS      float64
	GzDPS      float64
	ReceivedAt time.Time
}

// Magnitude returns the acceleration vector magnitude in g. A device at rest
// reads close to 1.0 from gravity alone.
func (s MotionSample) Magnitude() float64 {
	return math.Sqrt(s.AxG*s.AxG + s.AyG*s.AyG + s.AzG*s.AzG)
}

// linePrefix marks a motion reading; other lines on the link are firmware
// chatter and are skipped by callers.
const linePrefix = "M"

const lineFields = 8

// IsMotionLine reports whether a serial line carries a motion reading.
func IsMotionLine(line string) bool {
	return strings.HasPrefix(line, linePrefix+",")
}

// ParseLine decodes one firmware line into a MotionSample. The receive
// timestamp is supplied by the caller so parsing stays clock-free.
func ParseLine(line string, receivedAt time.Time) (MotionSample, error) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) != lineFields {
		return MotionSample{}, fmt.Errorf("motion line has %d fields, want %d: %q", len(fields), lineFields, line)
	}
	if fields[0] != linePrefix {
		return MotionSample{}, fmt.Errorf("not a motion line: %q", line)
	}

	seq, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return MotionSample{}, fmt.Errorf("bad seq %q: %w", fields[1], err)
	}

	var raw [6]int64
	for i := 0; i < 6; i++ {
		v, err := strconv.ParseInt(fields[i+2], 10, 64)
		if err != nil {
			return MotionSample{}, fmt.Errorf("bad field %d %q: %w", i+2, fields[i+2], err)
		}
		raw[i] = v
	}

	return MotionSample{
		Seq:        seq,
		AxG:        float64(raw[0]) / 100,
		AyG:        float64(raw[1]) / 100,
		AzG:        float64(raw[2]) / 100,
		GxDPS:      float64(raw[3]) / 100,
		GyDPS:      float64(raw[4]) / 100,
		GzDPS:      float64(raw[5]) / 100,
		ReceivedAt: receivedAt,
	}, nil
}

// FormatLine encodes a sample back into the firmware wire format. Used by the
// mock sensor port and the admin console's replay helpers.
func FormatLine(s MotionSample) string {
	return fmt.Sprintf("%s,%d,%d,%d,%d,%d,%d,%d",
		linePrefix, s.Seq,
		int64(math.Round(s.AxG*100)),
		int64(math.Round(s.AyG*100)),
		int64(math.Round(s.AzG*100)),
		int64(math.Round(s.GxDPS*100)),
		int64(math.Round(s.GyDPS*100)),
		int64(math.Round(s.GzDPS*100)))
}
