package device

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Target schemes.
const (
	SchemeSerial = "serial"
	SchemeTCP    = "tcp"
	SchemeSim    = "sim"
)

var (
	ErrEmptyTarget   = errors.New("empty connection target")
	ErrUnknownScheme = errors.New("unknown connection scheme")
)

var comPort = regexp.MustCompile(`(?i)^COM[0-9]+$`)

// SimConfig configures a simulated printer.
type SimConfig struct {
	// FailAt is the zero-based index of the command the device rejects, or
	// -1 for none.
	FailAt int
	// Latency delays every acknowledgement.
	Latency time.Duration
}

// Target is a parsed connection target.
type Target struct {
	Scheme  string
	Address string
	Serial  PortOptions
	Sim     SimConfig
}

// Key identifies the physical device for exclusive leasing.
func (t Target) Key() string {
	return t.Scheme + "://" + t.Address
}

func (t Target) String() string {
	if t.Scheme == SchemeSerial {
		return t.Key() + " (" + t.Serial.String() + ")"
	}
	return t.Key()
}

// URL renders t in the form ParseTarget accepts, so that
// ParseTarget(t.URL()) yields t again.
func (t Target) URL() string {
	q := url.Values{}
	switch t.Scheme {
	case SchemeSerial:
		if t.Serial.BaudRate != 0 {
			q.Set("baud", strconv.Itoa(t.Serial.BaudRate))
		}
		if t.Serial.DataBits != 0 {
			q.Set("data_bits", strconv.Itoa(t.Serial.DataBits))
		}
		if t.Serial.StopBits != 0 {
			q.Set("stop_bits", strconv.Itoa(t.Serial.StopBits))
		}
		if t.Serial.Parity != "" {
			q.Set("parity", t.Serial.Parity)
		}
		base := "serial://" + t.Address
		if !strings.HasPrefix(t.Address, "/") {
			base = "serial:" + t.Address
		}
		if len(q) == 0 {
			return base
		}
		return base + "?" + q.Encode()
	case SchemeSim:
		if t.Sim.FailAt >= 0 {
			q.Set("fail_at", strconv.Itoa(t.Sim.FailAt))
		}
		if t.Sim.Latency > 0 {
			q.Set("latency", t.Sim.Latency.String())
		}
		if len(q) == 0 {
			return t.Key()
		}
		return t.Key() + "?" + q.Encode()
	}
	return t.Key()
}

// ParseTarget parses a connection target:
//
//	/dev/ttyUSB0, COM3                          serial port with default line settings
//	serial:///dev/ttyACM0?baud=250000&parity=N  serial port with explicit settings
//	tcp://octopi.local:8888                     raw TCP bridge (ser2net and friends)
//	sim://bench?fail_at=12&latency=5ms          simulated printer
func ParseTarget(raw string) (Target, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Target{}, ErrEmptyTarget
	}
	if strings.HasPrefix(s, "/dev/") || comPort.MatchString(s) {
		return Target{Scheme: SchemeSerial, Address: s}, nil
	}

	u, err := url.Parse(s)
	if err != nil {
		return Target{}, fmt.Errorf("parse target %q: %w", raw, err)
	}
	q := u.Query()

	switch strings.ToLower(u.Scheme) {
	case SchemeSerial:
		addr := u.Host + u.Path
		if addr == "" {
			addr = u.Opaque
		}
		if addr == "" {
			return Target{}, fmt.Errorf("serial target %q has no device path", raw)
		}
		t := Target{Scheme: SchemeSerial, Address: addr}
		if t.Serial.BaudRate, err = intParam(q, "baud"); err != nil {
			return Target{}, err
		}
		if t.Serial.DataBits, err = intParam(q, "data_bits"); err != nil {
			return Target{}, err
		}
		if t.Serial.StopBits, err = intParam(q, "stop_bits"); err != nil {
			return Target{}, err
		}
		t.Serial.Parity = q.Get("parity")
		if _, err := t.Serial.Normalize(); err != nil {
			return Target{}, fmt.Errorf("serial target %q: %w", raw, err)
		}
		return t, nil

	case SchemeTCP:
		if _, _, err := net.SplitHostPort(u.Host); err != nil {
			return Target{}, fmt.Errorf("tcp target %q: %w", raw, err)
		}
		return Target{Scheme: SchemeTCP, Address: u.Host}, nil

	case SchemeSim:
		name := u.Host + u.Path
		if name == "" {
			name = u.Opaque
		}
		if name == "" {
			name = "default"
		}
		t := Target{Scheme: SchemeSim, Address: name, Sim: SimConfig{FailAt: -1}}
		if v := q.Get("fail_at"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return Target{}, fmt.Errorf("sim target %q: fail_at must be a non-negative integer", raw)
			}
			t.Sim.FailAt = n
		}
		if v := q.Get("latency"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil || d < 0 {
				return Target{}, fmt.Errorf("sim target %q: bad latency %q", raw, v)
			}
			t.Sim.Latency = d
		}
		return t, nil
	}
	return Target{}, fmt.Errorf("%w %q in target %q", ErrUnknownScheme, u.Scheme, raw)
}

func intParam(q url.Values, key string) (int, error) {
	v := q.Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", key, v)
	}
	return n, nil
}
