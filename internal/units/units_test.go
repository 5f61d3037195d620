package units

import (
	"math"
	"testing"
)

func TestFeedRate(t *testing.T) {
	if got := FeedRate(60); got != 3600 {
		t.Errorf("FeedRate(60) = %v, want 3600", got)
	}
	if got := FormatFeed(25); got != "1500" {
		t.Errorf("FormatFeed(25) = %q, want %q", got, "1500")
	}
	if got := FormatFeed(83.3333); got != "5000" {
		t.Errorf("FormatFeed(83.3333) = %q, want %q", got, "5000")
	}
}

func TestFormatCoord(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{10, "10"},
		{0.1 + 0.2, "0.3"},
		{-0.0001, "0"},
		{123.45678, "123.457"},
		{-5.5, "-5.5"},
	}
	for _, tt := range tests {
		if got := FormatCoord(tt.in); got != tt.want {
			t.Errorf("FormatCoord(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatExtrusion(t *testing.T) {
	if got := FormatExtrusion(1.234567); got != "1.23457" {
		t.Errorf("FormatExtrusion = %q", got)
	}
	if got := FormatTemperature(199.6); got != "200" {
		t.Errorf("FormatTemperature = %q", got)
	}
}

func TestFilamentLength(t *testing.T) {
	// A 0.4 x 0.2 bead over 10mm is 0.8 mm^3 of plastic.
	got := FilamentLength(0.4, 0.2, 10, Filament175)
	want := 0.8 / (math.Pi * 0.875 * 0.875)
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("FilamentLength = %v, want %v", got, want)
	}
	if FilamentLength(0.4, 0.2, 10, 0) != 0 {
		t.Error("zero filament diameter should yield zero length")
	}
}
