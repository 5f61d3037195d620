package device

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/banshee-data/hexslice/internal/domain"
	"github.com/banshee-data/hexslice/internal/timeutil"
)

// State is a streaming operation's position in its lifecycle.
type State int

const (
	Idle State = iota
	Connecting
	Streaming
	Completed
	Failed
	Cancelled
)

var stateNames = []string{"idle", "connecting", "streaming", "completed", "failed", "cancelled"}

func (s State) String() string {
	if int(s) < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	return s == Completed || s == Failed || s == Cancelled
}

// Mode selects batch or real-time delivery.
type Mode int

const (
	Batch Mode = iota
	RealTime
)

func (m Mode) String() string {
	if m == RealTime {
		return "real-time"
	}
	return "batch"
}

// ModeFor maps the realTime flag onto a Mode.
func ModeFor(realTime bool) Mode {
	if realTime {
		return RealTime
	}
	return Batch
}

// ErrStreamFailed is matched by every *StreamError.
var ErrStreamFailed = errors.New("streaming failed")

// StreamError reports a stream that ended Failed or Cancelled.
// PartialCount is the number of commands the device confirmed before the
// failure: acknowledged commands in real-time mode, fully written lines in
// batch mode. In real-time mode it also counts the comment-only commands
// that preceded the failure, which are skipped rather than sent.
type StreamError struct {
	Target       string
	Mode         Mode
	State        State
	PartialCount int
	Err          error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("%s stream to %s %s after %d confirmed commands: %v",
		e.Mode, e.Target, e.State, e.PartialCount, e.Err)
}

func (e *StreamError) Is(target error) bool { return target == ErrStreamFailed }

func (e *StreamError) Unwrap() error { return e.Err }

// PartialCommands returns PartialCount.
func (e *StreamError) PartialCommands() int { return e.PartialCount }

// DefaultAckTimeout bounds the wait for a device acknowledgement.
const DefaultAckTimeout = 30 * time.Second

// Streamer delivers programs to devices.
type Streamer struct {
	Dialer     *Dialer
	AckTimeout time.Duration
	Clock      timeutil.Clock
	// OnState, when set, observes every state transition in order.
	OnState func(State)
}

// NewStreamer returns a Streamer using d with default timeouts.
func NewStreamer(d *Dialer) *Streamer {
	return &Streamer{Dialer: d, AckTimeout: DefaultAckTimeout, Clock: timeutil.RealClock{}}
}

func (s *Streamer) transition(target string, st State) {
	diagf("%s: %s", target, st)
	if s.OnState != nil {
		s.OnState(st)
	}
}

// Deliver runs a whole streaming operation against t: it leases the device,
// opens it, streams g and closes it again. The device is owned by this call
// until it returns.
func (s *Streamer) Deliver(ctx context.Context, t Target, g domain.GCode, mode Mode) error {
	name := t.Key()
	s.transition(name, Idle)

	lease, err := s.Dialer.Acquire(t)
	if err != nil {
		s.transition(name, Failed)
		return &StreamError{Target: name, Mode: mode, State: Failed, Err: err}
	}
	defer lease.Release()

	s.transition(name, Connecting)
	port, err := s.Dialer.Open(ctx, t)
	if err != nil {
		s.transition(name, Failed)
		opsf("connect %s: %v", name, err)
		return &StreamError{Target: name, Mode: mode, State: Failed, Err: err}
	}
	defer func() {
		if cerr := port.Close(); cerr != nil {
			opsf("close %s: %v", name, cerr)
		}
	}()

	return s.stream(ctx, name, port, g, mode)
}

// Stream sends g over an already-open port. The caller keeps ownership of
// the port and must close it.
func (s *Streamer) Stream(ctx context.Context, target string, port Port, g domain.GCode, mode Mode) error {
	return s.stream(ctx, target, port, g, mode)
}

func (s *Streamer) stream(ctx context.Context, target string, port Port, g domain.GCode, mode Mode) error {
	s.transition(target, Streaming)

	var (
		confirmed int
		err       error
	)
	if mode == RealTime {
		confirmed, err = s.realTime(ctx, target, port, g)
	} else {
		confirmed, err = s.batch(ctx, target, port, g)
	}

	switch {
	case err == nil:
		s.transition(target, Completed)
		diagf("%s: %d commands delivered (%s)", target, g.Len(), mode)
		return nil
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		s.transition(target, Cancelled)
		opsf("%s: cancelled after %d confirmed commands", target, confirmed)
		return &StreamError{Target: target, Mode: mode, State: Cancelled, PartialCount: confirmed, Err: err}
	default:
		s.transition(target, Failed)
		opsf("%s: failed after %d confirmed commands: %v", target, confirmed, err)
		return &StreamError{Target: target, Mode: mode, State: Failed, PartialCount: confirmed, Err: err}
	}
}

// batch hands the whole rendered program to the port, looping over short
// writes, then waits for the port to drain. Cancellation stops it at the
// next line boundary.
func (s *Streamer) batch(ctx context.Context, target string, port Port, g domain.GCode) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	text := g.Content()
	if text != "" {
		text += "\n"
	}
	data := []byte(text)

	written := 0
	linesWritten := func() int { return strings.Count(text[:written], "\n") }
	for written < len(data) {
		end := len(data)
		if cerr := ctx.Err(); cerr != nil {
			if written == 0 || data[written-1] == '\n' {
				return linesWritten(), cerr
			}
			// a command is never left half-sent: finish the line in flight
			end = written + bytes.IndexByte(data[written:], '\n') + 1
		}
		n, err := port.Write(data[written:end])
		written += n
		if err != nil {
			return linesWritten(), err
		}
		if n == 0 {
			return linesWritten(), io.ErrShortWrite
		}
	}
	tracef("%s: wrote %d bytes", target, written)

	if d, ok := port.(Drainer); ok {
		if err := d.Drain(); err != nil {
			return linesWritten(), fmt.Errorf("drain: %w", err)
		}
	}
	return g.Len(), nil
}

type replyKind int

const (
	replyInfo replyKind = iota
	replyOK
	replyError
)

// classify sorts a device line. Anything that is neither an acknowledgement
// nor an error (echo:, busy:, temperature reports) is informational.
func classify(line string) replyKind {
	l := strings.ToLower(strings.TrimSpace(line))
	switch {
	case strings.HasPrefix(l, "ok"):
		return replyOK
	case strings.HasPrefix(l, "error"), strings.HasPrefix(l, "!!"):
		return replyError
	}
	return replyInfo
}

// realTime sends one command per write and waits for its acknowledgement.
// It returns the number of commands acknowledged.
func (s *Streamer) realTime(ctx context.Context, target string, port Port, g domain.GCode) (int, error) {
	done := make(chan struct{})
	defer close(done)

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scan := bufio.NewScanner(port)
		for scan.Scan() {
			select {
			case lines <- scan.Text():
			case <-done:
				return
			}
		}
		if err := scan.Err(); err != nil {
			readErr <- err
		}
	}()

	clock := s.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	timeout := s.AckTimeout
	if timeout <= 0 {
		timeout = DefaultAckTimeout
	}
	timer := clock.NewTimer(timeout)
	defer timer.Stop()

	acked := 0
	for i, c := range g.Commands {
		if err := ctx.Err(); err != nil {
			return acked, err
		}
		line := c.String()
		if line == "" || strings.HasPrefix(line, ";") {
			// nothing for the device to execute or acknowledge
			acked++
			continue
		}
		if _, err := port.Write([]byte(line + "\n")); err != nil {
			return acked, fmt.Errorf("write command %d: %w", i, err)
		}
		tracef("%s: > %s", target, line)

		resetTimer(timer, timeout)
	wait:
		for {
			select {
			case <-ctx.Done():
				return acked, ctx.Err()
			case <-timer.C():
				return acked, fmt.Errorf("no acknowledgement for command %d within %s", i, timeout)
			case reply, ok := <-lines:
				if !ok {
					select {
					case err := <-readErr:
						return acked, fmt.Errorf("read: %w", err)
					default:
					}
					return acked, fmt.Errorf("device closed the connection: %w", io.ErrUnexpectedEOF)
				}
				tracef("%s: < %s", target, reply)
				switch classify(reply) {
				case replyOK:
					acked++
					break wait
				case replyError:
					return acked, fmt.Errorf("device rejected command %d %q: %s", i, line, strings.TrimSpace(reply))
				default:
					resetTimer(timer, timeout)
				}
			}
		}
	}
	return acked, nil
}

func resetTimer(t timeutil.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C():
		default:
		}
	}
	t.Reset(d)
}
