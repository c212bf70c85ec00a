package input

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// scriptedCursor replays a fixed path and then stays on the last position
type scriptedCursor struct {
	mu   sync.Mutex
	path [][2]int
	pos  int
}

func (c *scriptedCursor) locate() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.path[c.pos]
	if c.pos < len(c.path)-1 {
		c.pos++
	}
	return p[0], p[1]
}

func collect(t *testing.T, ch <-chan PositionEvent, n int) []PositionEvent {
	t.Helper()
	var got []PositionEvent
	timeout := time.After(2 * time.Second)
	for len(got) < n {
		select {
		case ev := <-ch:
			got = append(got, ev)
		case <-timeout:
			t.Fatalf("Expected %d events, got %d", n, len(got))
		}
	}
	return got
}

// TestPollerEmitsOnlyOnMovement checks that repeated positions are suppressed
func TestPollerEmitsOnlyOnMovement(t *testing.T) {
	cursor := &scriptedCursor{path: [][2]int{{0, 0}, {0, 0}, {10, -5}, {10, -5}, {-217, 982}}}
	p := NewPoller(cursor.locate, time.Millisecond, 16)

	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	got := collect(t, p.Events(), 3)

	// Let the poller tick on the final, unchanged position for a while
	time.Sleep(20 * time.Millisecond)
	if err := p.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	want := [][2]int{{0, 0}, {10, -5}, {-217, 982}}
	for i, ev := range got {
		if ev.X != want[i][0] || ev.Y != want[i][1] {
			t.Errorf("Event %d: expected %v, got (%d,%d)", i, want[i], ev.X, ev.Y)
		}
	}

	for ev := range p.Events() {
		t.Errorf("Expected no further events, got (%d,%d)", ev.X, ev.Y)
	}
}

func TestPollerStartStopIdempotent(t *testing.T) {
	p := NewPoller(func() (int, int) { return 1, 1 }, time.Millisecond, 4)

	if err := p.Stop(); err != nil {
		t.Errorf("Expected Stop on idle poller to succeed, got %v", err)
	}
	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := p.Start(); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("Expected ErrAlreadyRunning, got %v", err)
	}
	if err := p.Stop(); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
	if err := p.Stop(); err != nil {
		t.Errorf("Expected second Stop to be a no-op, got %v", err)
	}

	// A stopped poller can be restarted with a fresh channel
	if err := p.Start(); err != nil {
		t.Fatalf("Restart failed: %v", err)
	}
	collect(t, p.Events(), 1)
	p.Stop()
}

func TestPollerWithoutLocate(t *testing.T) {
	p := NewPoller(nil, 0, 0)
	if err := p.Start(); err == nil {
		t.Error("Expected error without locate function")
	}
}

func TestPollerDropsWhenQueueFull(t *testing.T) {
	var mu sync.Mutex
	x := 0
	p := NewPoller(func() (int, int) {
		mu.Lock()
		defer mu.Unlock()
		x++
		return x, 0
	}, time.Millisecond, 1)

	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	p.Stop()

	if p.Dropped() == 0 {
		t.Error("Expected dropped events with an unread queue of 1")
	}
}

func TestPumpForwardsUntilClosed(t *testing.T) {
	ch := make(chan PositionEvent, 3)
	ch <- PositionEvent{X: 1, Y: 2}
	ch <- PositionEvent{X: -3, Y: 4}
	close(ch)

	var got [][2]int
	n := Pump(ch, func(x, y int) { got = append(got, [2]int{x, y}) })

	if n != 2 || len(got) != 2 {
		t.Fatalf("Expected 2 forwarded events, got %d", n)
	}
	if got[1] != [2]int{-3, 4} {
		t.Errorf("Expected (-3,4), got %v", got[1])
	}
}
