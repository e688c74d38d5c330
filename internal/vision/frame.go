// Package vision receives camera frames from the vision board over UDP and
// reduces them to the cheap per-frame statistics the gesture recognizer and
// feed classifier consume.
//
// The vision board streams one datagram per frame: a fixed 8-byte header
// ("KF01", then width and height as big-endian uint16) followed by
// width*height bytes of 8-bit grayscale, row major. At the default 160x120
// geometry a frame fits comfortably in a single datagram.
package vision

import (
	"encoding/binary"
	"fmt"
	"time"

	"gonum.org/v1/gonum/stat"
)

// FrameMagic prefixes every frame datagram.
var FrameMagic = []byte("KF01")

const headerLen = 8

// Default frame geometry for the stock vision board.
const (
	DefaultWidth  = 160
	DefaultHeight = 120
)

// Cover detection thresholds. A finger over the lens drives the sensor to
// near-uniform darkness; either a very low mean or an overwhelmingly dark
// pixel population counts as covered.
const (
	BlackLumaMax        = 20
	BlackRatioThreshold = 0.92
)

// DefaultSampleStride controls luma subsampling. Statistics are computed on
// every Nth pixel to keep per-frame cost down on small cores.
const DefaultSampleStride = 7

// Frame is a decoded grayscale camera frame.
type Frame struct {
	Width  int
	Height int
	Pixels []byte
}

// FrameStats summarises one frame for the gesture layer.
type FrameStats struct {
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	MeanLuma   float64   `json:"mean_luma"`
	StdDevLuma float64   `json:"stddev_luma"`
	BlackRatio float64   `json:"black_ratio"`
	IsBlack    bool      `json:"is_black"`
	CapturedAt time.Time `json:"captured_at"`
}

// ParseFrame decodes a frame datagram. The pixel slice references the input
// buffer; callers that keep the frame must copy it.
func ParseFrame(datagram []byte) (Frame, error) {
	if len(datagram) < headerLen {
		return Frame{}, fmt.Errorf("frame datagram too short: %d bytes", len(datagram))
	}
	if string(datagram[:4]) != string(FrameMagic) {
		return Frame{}, fmt.Errorf("bad frame magic %q", datagram[:4])
	}

	width := int(binary.BigEndian.Uint16(datagram[4:6]))
	height := int(binary.BigEndian.Uint16(datagram[6:8]))
	if width <= 0 || height <= 0 || width > 1024 || height > 1024 {
		return Frame{}, fmt.Errorf("implausible frame geometry %dx%d", width, height)
	}

	want := headerLen + width*height
	if len(datagram) != want {
		return Frame{}, fmt.Errorf("frame datagram is %d bytes, want %d for %dx%d", len(datagram), want, width, height)
	}

	return Frame{
		Width:  width,
		Height: height,
		Pixels: datagram[headerLen:],
	}, nil
}

// EncodeFrame builds a frame datagram, used by tests and the replay tools.
func EncodeFrame(f Frame) ([]byte, error) {
	if len(f.Pixels) != f.Width*f.Height {
		return nil, fmt.Errorf("pixel count %d does not match %dx%d", len(f.Pixels), f.Width, f.Height)
	}
	out := make([]byte, headerLen+len(f.Pixels))
	copy(out, FrameMagic)
	binary.BigEndian.PutUint16(out[4:6], uint16(f.Width))
	binary.BigEndian.PutUint16(out[6:8], uint16(f.Height))
	copy(out[headerLen:], f.Pixels)
	return out, nil
}

// ComputeFrameStats reduces a frame to FrameStats, sampling every stride-th
// pixel. A stride below 1 falls back to DefaultSampleStride.
func ComputeFrameStats(f Frame, stride int, capturedAt time.Time) FrameStats {
	if stride < 1 {
		stride = DefaultSampleStride
	}

	sampled := make([]float64, 0, len(f.Pixels)/stride+1)
	dark := 0
	for i := 0; i < len(f.Pixels); i += stride {
		v := float64(f.Pixels[i])
		sampled = append(sampled, v)
		if f.Pixels[i] <= BlackLumaMax {
			dark++
		}
	}

	fs := FrameStats{
		Width:      f.Width,
		Height:     f.Height,
		CapturedAt: capturedAt,
	}
	if len(sampled) == 0 {
		return fs
	}

	fs.MeanLuma = stat.Mean(sampled, nil)
	if len(sampled) > 1 {
		fs.StdDevLuma = stat.StdDev(sampled, nil)
	}
	fs.BlackRatio = float64(dark) / float64(len(sampled))
	fs.IsBlack = fs.MeanLuma <= BlackLumaMax || fs.BlackRatio >= BlackRatioThreshold
	return fs
}
