package device

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// ErrSimulatedFault is returned when a simulated printer refuses a bulk
// upload at its configured failure index.
var ErrSimulatedFault = errors.New("simulated device fault")

// SimulatedPrinter is an in-memory Port that behaves like a Marlin printer
// on the other end of a serial line. Every complete line written is
// recorded and answered with "ok", except the command at FailAt:
//
//   - written on its own (real-time streaming), it is answered with an
//     "Error:" line;
//   - written as part of a larger upload (batch streaming), the write stops
//     short at that command and returns ErrSimulatedFault.
//
// Once faulted every further write fails.
type SimulatedPrinter struct {
	mu   sync.Mutex
	cond *sync.Cond

	cfg     SimConfig
	partial []byte
	lines   []string
	replies bytes.Buffer
	faulted bool
	closed  bool
	drained int
}

// NewSimulatedPrinter returns a simulated printer with the given behaviour.
func NewSimulatedPrinter(cfg SimConfig) *SimulatedPrinter {
	s := &SimulatedPrinter{cfg: cfg}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Write records complete lines and queues the device's replies.
func (s *SimulatedPrinter) Write(p []byte) (int, error) {
	if s.cfg.Latency > 0 {
		time.Sleep(s.cfg.Latency)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, errors.New("simulated printer closed")
	}
	if s.faulted {
		return 0, ErrSimulatedFault
	}

	single := bytes.Count(p, []byte("\n")) <= 1
	carried := len(s.partial)
	buf := append(s.partial, p...)
	consumed := 0
	s.partial = nil
	for {
		i := bytes.IndexByte(buf, '\n')
		if i < 0 {
			break
		}
		line := string(bytes.TrimRight(buf[:i], "\r"))
		idx := len(s.lines)
		if idx == s.cfg.FailAt {
			s.faulted = true
			if !single {
				s.cond.Broadcast()
				n := consumed - carried
				if n < 0 {
					n = 0
				}
				return n, fmt.Errorf("%w at command %d", ErrSimulatedFault, idx)
			}
			s.lines = append(s.lines, line)
			fmt.Fprintf(&s.replies, "Error:simulated fault at command %d\n", idx)
			s.cond.Broadcast()
			return len(p), nil
		}
		s.lines = append(s.lines, line)
		s.replies.WriteString("ok\n")
		buf = buf[i+1:]
		consumed += i + 1
	}
	s.partial = append([]byte(nil), buf...)
	s.cond.Broadcast()
	return len(p), nil
}

// Read blocks until a reply is queued or the printer is closed.
func (s *SimulatedPrinter) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.replies.Len() == 0 && !s.closed {
		s.cond.Wait()
	}
	if s.replies.Len() == 0 {
		return 0, io.EOF
	}
	return s.replies.Read(p)
}

// Drain records that the caller waited for transmission.
func (s *SimulatedPrinter) Drain() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drained++
	return nil
}

// Close wakes blocked readers; subsequent reads return io.EOF.
func (s *SimulatedPrinter) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.cond.Broadcast()
	return nil
}

// Lines returns the complete command lines received so far.
func (s *SimulatedPrinter) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

// Drained reports how many times Drain was called.
func (s *SimulatedPrinter) Drained() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drained
}

// Closed reports whether Close was called.
func (s *SimulatedPrinter) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
