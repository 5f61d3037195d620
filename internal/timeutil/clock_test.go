package timeutil

import (
	"testing"
	"time"
)

func TestRealClock_Now(t *testing.T) {
	c := RealClock{}
	before := time.Now()
	got := c.Now()
	if got.Before(before) {
		t.Errorf("RealClock.Now() = %v, before %v", got, before)
	}
}

func TestMockClock_AdvanceFiresTimer(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c := NewMockClock(start)
	timer := c.NewTimer(10 * time.Second)

	c.Advance(5 * time.Second)
	select {
	case <-timer.C():
		t.Fatal("timer fired early")
	default:
	}

	c.Advance(5 * time.Second)
	select {
	case got := <-timer.C():
		if want := start.Add(10 * time.Second); !got.Equal(want) {
			t.Errorf("fired at %v, want %v", got, want)
		}
	default:
		t.Fatal("timer did not fire at its deadline")
	}
}

func TestMockTimer_ResetMovesDeadline(t *testing.T) {
	c := NewMockClock(time.Unix(0, 0))
	timer := c.NewTimer(time.Second)

	c.Advance(900 * time.Millisecond)
	timer.Reset(time.Second)
	c.Advance(900 * time.Millisecond)
	select {
	case <-timer.C():
		t.Fatal("reset timer fired before its new deadline")
	default:
	}

	c.Advance(100 * time.Millisecond)
	select {
	case <-timer.C():
	default:
		t.Fatal("reset timer did not fire")
	}
}

func TestMockTimer_Stop(t *testing.T) {
	c := NewMockClock(time.Unix(0, 0))
	timer := c.NewTimer(time.Second)
	if !timer.Stop() {
		t.Error("Stop on an active timer should report true")
	}
	c.Advance(2 * time.Second)
	select {
	case <-timer.C():
		t.Fatal("stopped timer fired")
	default:
	}
	if timer.Stop() {
		t.Error("second Stop should report false")
	}
}

func TestMockClock_Since(t *testing.T) {
	start := time.Unix(100, 0)
	c := NewMockClock(start)
	c.Advance(3 * time.Second)
	if got := c.Since(start); got != 3*time.Second {
		t.Errorf("Since = %v, want 3s", got)
	}
	if c.Timers() != 0 {
		t.Errorf("Timers = %d, want 0", c.Timers())
	}
}
