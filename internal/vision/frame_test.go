package vision

import (
	"math"
	"testing"
	"time"
)

func solidFrame(w, h int, luma byte) Frame {
	pixels := make([]byte, w*h)
	for i := range pixels {
		pixels[i] = luma
	}
	return Frame{Width: w, Height: h, Pixels: pixels}
}

func TestEncodeParseRoundTrip(t *testing.T) {
	in := solidFrame(16, 12, 128)
	datagram, err := EncodeFrame(in)
	if err != nil {
		t.Fatalf("EncodeFrame returned error: %v", err)
	}

	out, err := ParseFrame(datagram)
	if err != nil {
		t.Fatalf("ParseFrame returned error: %v", err)
	}
	if out.Width != 16 || out.Height != 12 {
		t.Errorf("geometry = %dx%d, want 16x12", out.Width, out.Height)
	}
	if len(out.Pixels) != 16*12 {
		t.Errorf("pixel count = %d, want %d", len(out.Pixels), 16*12)
	}
	if out.Pixels[0] != 128 {
		t.Errorf("pixel[0] = %d, want 128", out.Pixels[0])
	}
}

func TestParseFrame_Errors(t *testing.T) {
	good, _ := EncodeFrame(solidFrame(8, 8, 50))

	tests := []struct {
		name     string
		datagram []byte
	}{
		{"empty", nil},
		{"short header", []byte("KF0")},
		{"bad magic", append([]byte("XX01"), good[4:]...)},
		{"truncated pixels", good[:len(good)-5]},
		{"extra bytes", append(append([]byte{}, good...), 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseFrame(tt.datagram); err == nil {
				t.Error("ParseFrame should fail")
			}
		})
	}
}

func TestComputeFrameStats_Uniform(t *testing.T) {
	at := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	fs := ComputeFrameStats(solidFrame(32, 32, 100), 1, at)

	if math.Abs(fs.MeanLuma-100) > 1e-9 {
		t.Errorf("MeanLuma = %v, want 100", fs.MeanLuma)
	}
	if fs.StdDevLuma != 0 {
		t.Errorf("StdDevLuma = %v, want 0", fs.StdDevLuma)
	}
	if fs.IsBlack {
		t.Error("mid-gray frame should not be black")
	}
	if !fs.CapturedAt.Equal(at) {
		t.Errorf("CapturedAt = %v, want %v", fs.CapturedAt, at)
	}
}

func TestComputeFrameStats_CoveredLens(t *testing.T) {
	fs := ComputeFrameStats(solidFrame(32, 32, 5), 1, time.Time{})

	if !fs.IsBlack {
		t.Error("near-zero frame should be black")
	}
	if fs.BlackRatio != 1 {
		t.Errorf("BlackRatio = %v, want 1", fs.BlackRatio)
	}
}

func TestComputeFrameStats_MostlyDarkCounts(t *testing.T) {
	// 95% dark pixels with a few bright ones: the bright outliers raise the
	// mean but the ratio path still detects the cover.
	f := solidFrame(20, 20, 5)
	for i := 0; i < 20; i++ {
		f.Pixels[i*20] = 255
	}
	fs := ComputeFrameStats(f, 1, time.Time{})

	if fs.BlackRatio < BlackRatioThreshold {
		t.Fatalf("BlackRatio = %v, expected >= %v", fs.BlackRatio, BlackRatioThreshold)
	}
	if !fs.IsBlack {
		t.Error("mostly-dark frame should be black via the ratio threshold")
	}
}

func TestComputeFrameStats_Subsampling(t *testing.T) {
	f := solidFrame(100, 1, 50)
	full := ComputeFrameStats(f, 1, time.Time{})
	strided := ComputeFrameStats(f, 7, time.Time{})

	if math.Abs(full.MeanLuma-strided.MeanLuma) > 1e-9 {
		t.Errorf("uniform frame: stride changed mean %v -> %v", full.MeanLuma, strided.MeanLuma)
	}

	// Stride below 1 falls back to the default rather than scanning nothing.
	fallback := ComputeFrameStats(f, 0, time.Time{})
	if fallback.MeanLuma != 50 {
		t.Errorf("fallback stride MeanLuma = %v, want 50", fallback.MeanLuma)
	}
}

func TestComputeFrameStats_StdDev(t *testing.T) {
	f := Frame{Width: 4, Height: 1, Pixels: []byte{0, 100, 200, 100}}
	fs := ComputeFrameStats(f, 1, time.Time{})

	if fs.StdDevLuma <= 0 {
		t.Errorf("StdDevLuma = %v, want > 0 for varied frame", fs.StdDevLuma)
	}
	if math.Abs(fs.MeanLuma-100) > 1e-9 {
		t.Errorf("MeanLuma = %v, want 100", fs.MeanLuma)
	}
}
