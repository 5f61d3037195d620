package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"go.bug.st/serial"
)

// Port is an open connection to a printer. This abstraction enables unit
// testing without real serial hardware.
type Port interface {
	io.ReadWriter
	io.Closer
}

// Drainer is implemented by ports that can block until buffered output has
// been transmitted. go.bug.st/serial ports implement it.
type Drainer interface {
	Drain() error
}

// Opener opens a port for a parsed target.
type Opener func(ctx context.Context, t Target) (Port, error)

var (
	// ErrDeviceBusy is returned when a device is already leased to another
	// streaming operation.
	ErrDeviceBusy = errors.New("device busy")
	// ErrDialerClosed is returned after Close.
	ErrDialerClosed = errors.New("dialer closed")
)

// Dialer opens ports by scheme and hands out exclusive device leases.
type Dialer struct {
	mu      sync.Mutex
	openers map[string]Opener
	leases  map[string]struct{}
	closed  bool

	// SerialDefaults fill in serial settings a target leaves unset.
	SerialDefaults PortOptions
	// DialTimeout bounds TCP connection setup.
	DialTimeout time.Duration
}

// NewDialer returns a Dialer with the serial, tcp and sim schemes wired.
func NewDialer() *Dialer {
	d := &Dialer{
		openers:     make(map[string]Opener),
		leases:      make(map[string]struct{}),
		DialTimeout: 10 * time.Second,
	}
	d.openers[SchemeSerial] = d.openSerial
	d.openers[SchemeTCP] = d.openTCP
	d.openers[SchemeSim] = openSim
	return d
}

// SetOpener replaces the opener for a scheme.
func (d *Dialer) SetOpener(scheme string, o Opener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.openers[scheme] = o
}

// Lease is exclusive ownership of one device.
type Lease struct {
	d    *Dialer
	key  string
	once sync.Once
}

// Release gives the device back. It is safe to call more than once.
func (l *Lease) Release() {
	l.once.Do(func() {
		l.d.mu.Lock()
		delete(l.d.leases, l.key)
		l.d.mu.Unlock()
		diagf("released %s", l.key)
	})
}

// Acquire leases the device t names. A second Acquire for the same device
// fails immediately with ErrDeviceBusy until the first lease is released.
func (d *Dialer) Acquire(t Target) (*Lease, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrDialerClosed
	}
	key := t.Key()
	if _, held := d.leases[key]; held {
		return nil, fmt.Errorf("%w: %s", ErrDeviceBusy, key)
	}
	d.leases[key] = struct{}{}
	diagf("leased %s", key)
	return &Lease{d: d, key: key}, nil
}

// Open opens a port for t using the opener registered for its scheme.
func (d *Dialer) Open(ctx context.Context, t Target) (Port, error) {
	d.mu.Lock()
	open, ok := d.openers[t.Scheme]
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return nil, ErrDialerClosed
	}
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownScheme, t.Scheme)
	}
	return open(ctx, t)
}

// Reopen lets a closed dialer hand out leases and ports again.
func (d *Dialer) Reopen() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = false
}

// Close stops the dialer handing out new leases and ports.
func (d *Dialer) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	if n := len(d.leases); n > 0 {
		opsf("dialer closed with %d device(s) still leased", n)
	}
	return nil
}

func (d *Dialer) openSerial(_ context.Context, t Target) (Port, error) {
	mode, err := t.Serial.WithDefaults(d.SerialDefaults).SerialMode()
	if err != nil {
		return nil, err
	}
	p, err := serial.Open(t.Address, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", t.Address, err)
	}
	return p, nil
}

func (d *Dialer) openTCP(ctx context.Context, t Target) (Port, error) {
	nd := net.Dialer{Timeout: d.DialTimeout}
	conn, err := nd.DialContext(ctx, "tcp", t.Address)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", t.Address, err)
	}
	return conn, nil
}

func openSim(_ context.Context, t Target) (Port, error) {
	return NewSimulatedPrinter(t.Sim), nil
}
