// Package input provides cross-platform pointer position capture.
package input

import (
	"errors"
	"time"
)

// ErrAlreadyRunning is returned by Start when the capture is active
var ErrAlreadyRunning = errors.New("capture already running")

// PositionEvent is an absolute pointer position in virtual desktop coordinates
type PositionEvent struct {
	X    int       `json:"x"`
	Y    int       `json:"y"`
	Time time.Time `json:"time"`
}

// Capture delivers pointer positions asynchronously.
// Events returns the channel of the current run; it is closed by Stop.
type Capture interface {
	Start() error
	Stop() error
	Events() <-chan PositionEvent
}

// Pump forwards every event of the current run to handle and returns when
// the run's channel is closed. handle is the single serialization point
// between the capture thread and the rest of the program.
func Pump(events <-chan PositionEvent, handle func(x, y int)) int {
	n := 0
	for ev := range events {
		handle(ev.X, ev.Y)
		n++
	}
	return n
}
