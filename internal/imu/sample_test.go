package imu

import (
	"math"
	"testing"
	"time"
)

func TestParseLine(t *testing.T) {
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	s, err := ParseLine("M,42,3,-12,101,0,250,-9", at)
	if err != nil {
		t.Fatalf("ParseLine returned error: %v", err)
	}

	if s.Seq != 42 {
		t.Errorf("Seq = %d, want 42", s.Seq)
	}
	if s.AxG != 0.03 {
		t.Errorf("AxG = %v, want 0.03", s.AxG)
	}
	if s.AyG != -0.12 {
		t.Errorf("AyG = %v, want -0.12", s.AyG)
	}
	if s.AzG != 1.01 {
		t.Errorf("AzG = %v, want 1.01", s.AzG)
	}
	if s.GyDPS != 2.5 {
		t.Errorf("GyDPS = %v, want 2.5", s.GyDPS)
	}
	if !s.ReceivedAt.Equal(at) {
		t.Errorf("ReceivedAt = %v, want %v", s.ReceivedAt, at)
	}
}

func TestParseLine_TrailingNewline(t *testing.T) {
	_, err := ParseLine("M,1,0,0,100,0,0,0\r\n", time.Time{})
	if err != nil {
		t.Errorf("ParseLine should tolerate line endings, got %v", err)
	}
}

func TestParseLine_Errors(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"empty", ""},
		{"wrong prefix", "R,1,0,0,100,0,0,0"},
		{"too few fields", "M,1,0,0,100"},
		{"too many fields", "M,1,0,0,100,0,0,0,0"},
		{"bad seq", "M,x,0,0,100,0,0,0"},
		{"bad accel", "M,1,0,abc,100,0,0,0"},
		{"float field", "M,1,0.5,0,100,0,0,0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseLine(tt.line, time.Time{}); err == nil {
				t.Errorf("ParseLine(%q) should fail", tt.line)
			}
		})
	}
}

func TestIsMotionLine(t *testing.T) {
	if !IsMotionLine("M,1,0,0,100,0,0,0") {
		t.Error("motion line not recognised")
	}
	if IsMotionLine("BOOT kaku-imu v3") {
		t.Error("firmware chatter misclassified as motion line")
	}
	if IsMotionLine("Mx,1") {
		t.Error("prefix match must be exact up to the comma")
	}
}

func TestFormatLine_RoundTrip(t *testing.T) {
	in := MotionSample{Seq: 7, AxG: -0.25, AyG: 0.5, AzG: 1.0, GxDPS: 12.5, GyDPS: 0, GzDPS: -3}
	out, err := ParseLine(FormatLine(in), time.Time{})
	if err != nil {
		t.Fatalf("round trip parse failed: %v", err)
	}
	in.ReceivedAt = out.ReceivedAt
	if out != in {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}
}

func TestMagnitude(t *testing.T) {
	s := MotionSample{AxG: 0, AyG: 0, AzG: 1}
	if m := s.Magnitude(); math.Abs(m-1) > 1e-9 {
		t.Errorf("rest magnitude = %v, want 1", m)
	}

	s = MotionSample{AxG: 3, AyG: 4, AzG: 0}
	if m := s.Magnitude(); math.Abs(m-5) > 1e-9 {
		t.Errorf("magnitude = %v, want 5", m)
	}
}

func TestConvertAccel(t *testing.T) {
	tests := []struct {
		name     string
		accelG   float64
		units    string
		expected float64
	}{
		{"1 g to mps2", 1.0, UnitMPS, 9.80665},
		{"1 g to mg", 1.0, UnitMG, 1000.0},
		{"1 g to g", 1.0, UnitG, 1.0},
		{"unknown units default to g", 1.5, "unknown", 1.5},
		{"shake peak 2.5 g to mps2", 2.5, UnitMPS, 24.5166},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ConvertAccel(tt.accelG, tt.units)
			if math.Abs(result-tt.expected) > 0.01 {
				t.Errorf("ConvertAccel(%f, %s) = %f, want %f", tt.accelG, tt.units, result, tt.expected)
			}
		})
	}
}

func TestIsValidUnit(t *testing.T) {
	tests := []struct {
		name     string
		unit     string
		expected bool
	}{
		{"valid g", UnitG, true},
		{"valid mps2", UnitMPS, true},
		{"valid mg", UnitMG, true},
		{"invalid unit", "kmh", false},
		{"empty string", "", false},
		{"case sensitive", "G", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidUnit(tt.unit); got != tt.expected {
				t.Errorf("IsValidUnit(%s) = %v, want %v", tt.unit, got, tt.expected)
			}
		})
	}
}
