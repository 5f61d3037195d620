package device

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.bug.st/serial"
)

func TestParseTarget(t *testing.T) {
	tests := []struct {
		in   string
		want Target
	}{
		{"/dev/ttyUSB0", Target{Scheme: SchemeSerial, Address: "/dev/ttyUSB0"}},
		{"  COM3 ", Target{Scheme: SchemeSerial, Address: "COM3"}},
		{"serial:///dev/ttyACM0?baud=250000&parity=e", Target{
			Scheme: SchemeSerial, Address: "/dev/ttyACM0",
			Serial: PortOptions{BaudRate: 250000, Parity: "e"},
		}},
		{"serial:COM7?baud=57600&stop_bits=2", Target{
			Scheme: SchemeSerial, Address: "COM7",
			Serial: PortOptions{BaudRate: 57600, StopBits: 2},
		}},
		{"tcp://octopi.local:8888", Target{Scheme: SchemeTCP, Address: "octopi.local:8888"}},
		{"sim://bench", Target{Scheme: SchemeSim, Address: "bench", Sim: SimConfig{FailAt: -1}}},
		{"sim://bench?fail_at=4&latency=2ms", Target{
			Scheme: SchemeSim, Address: "bench",
			Sim: SimConfig{FailAt: 4, Latency: 2 * time.Millisecond},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTarget(tt.in)
			if err != nil {
				t.Fatalf("ParseTarget(%q): %v", tt.in, err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseTarget(%q) mismatch (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

func TestParseTargetErrors(t *testing.T) {
	tests := []struct {
		in   string
		want error
	}{
		{"", ErrEmptyTarget},
		{"   ", ErrEmptyTarget},
		{"usb://printer", ErrUnknownScheme},
		{"octoprint.local", ErrUnknownScheme},
	}
	for _, tt := range tests {
		if _, err := ParseTarget(tt.in); !errors.Is(err, tt.want) {
			t.Errorf("ParseTarget(%q) err = %v, want %v", tt.in, err, tt.want)
		}
	}

	for _, in := range []string{
		"tcp://nohost",
		"serial://",
		"serial:///dev/ttyUSB0?baud=fast",
		"serial:///dev/ttyUSB0?parity=M",
		"sim://x?fail_at=-2",
		"sim://x?latency=soon",
	} {
		if _, err := ParseTarget(in); err == nil {
			t.Errorf("ParseTarget(%q) succeeded, want error", in)
		}
	}
}

func TestTargetKey(t *testing.T) {
	a, _ := ParseTarget("/dev/ttyUSB0")
	b, _ := ParseTarget("serial:///dev/ttyUSB0?baud=250000")
	if a.Key() != b.Key() {
		t.Errorf("same device, different keys: %q vs %q", a.Key(), b.Key())
	}
	if got := a.String(); got != "serial:///dev/ttyUSB0 (115200 8N1)" {
		t.Errorf("String() = %q", got)
	}
}

func TestPortOptionsNormalize(t *testing.T) {
	got, err := PortOptions{}.Normalize()
	if err != nil {
		t.Fatal(err)
	}
	want := PortOptions{BaudRate: 115200, DataBits: 8, StopBits: 1, Parity: "N"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Normalize mismatch (-want +got):\n%s", diff)
	}

	for _, bad := range []PortOptions{
		{BaudRate: -1},
		{DataBits: 9},
		{StopBits: 3},
		{Parity: "mark"},
	} {
		if _, err := bad.Normalize(); err == nil {
			t.Errorf("Normalize(%+v) succeeded, want error", bad)
		}
	}

	if !(PortOptions{Parity: "none"}).Equal(PortOptions{BaudRate: 115200, Parity: "N"}) {
		t.Error("equivalent options compare unequal")
	}
	if (PortOptions{BaudRate: 9600}).Equal(PortOptions{}) {
		t.Error("different baud rates compare equal")
	}
}

func TestPortOptionsWithDefaults(t *testing.T) {
	d := PortOptions{BaudRate: 250000, DataBits: 7, StopBits: 2, Parity: "E"}
	got := PortOptions{BaudRate: 57600}.WithDefaults(d)
	want := PortOptions{BaudRate: 57600, DataBits: 7, StopBits: 2, Parity: "E"}
	if got != want {
		t.Errorf("WithDefaults = %+v, want %+v", got, want)
	}
}

func TestSerialMode(t *testing.T) {
	mode, err := PortOptions{BaudRate: 250000, StopBits: 2, Parity: "odd"}.SerialMode()
	if err != nil {
		t.Fatal(err)
	}
	if mode.BaudRate != 250000 || mode.DataBits != 8 {
		t.Errorf("mode = %+v", mode)
	}
	if mode.StopBits != serial.TwoStopBits {
		t.Errorf("StopBits = %v, want TwoStopBits", mode.StopBits)
	}
	if mode.Parity != serial.OddParity {
		t.Errorf("Parity = %v, want OddParity", mode.Parity)
	}
	if _, err := (PortOptions{DataBits: 4}).SerialMode(); err == nil {
		t.Error("expected error for invalid options")
	}
}

func TestTargetURLRoundTrip(t *testing.T) {
	for _, in := range []string{
		"/dev/ttyUSB0",
		"COM3",
		"serial:///dev/ttyACM0?baud=250000&parity=E",
		"serial:COM7?baud=57600&stop_bits=2",
		"tcp://octopi.local:8888",
		"sim://bench",
		"sim://bench?fail_at=4&latency=2ms",
	} {
		t.Run(in, func(t *testing.T) {
			want, err := ParseTarget(in)
			if err != nil {
				t.Fatalf("ParseTarget(%q): %v", in, err)
			}
			got, err := ParseTarget(want.URL())
			if err != nil {
				t.Fatalf("ParseTarget(%q): %v", want.URL(), err)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("round trip through %q mismatch (-want +got):\n%s", want.URL(), diff)
			}
		})
	}
}
