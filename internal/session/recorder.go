// Package session records pointer positions into a store while a capture session is active.
package session

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"pointerheat/internal/store"
)

// State is the capture state of a recorder
type State string

const (
	StateIdle      State = "idle"
	StateCapturing State = "capturing"
)

// Options configures a Recorder.
type Options struct {
	// Clock supplies sample timestamps (defaults to time.Now)
	Clock func() time.Time

	// NewID generates session ids (defaults to random UUIDs)
	NewID func() string
}

// Recorder is the single entry point for position events.
// It toggles between idle and capturing; events received while idle are ignored.
type Recorder struct {
	mu        sync.Mutex
	store     *store.Store
	capturing bool
	sessionID string
	started   time.Time
	recorded  int

	clock func() time.Time
	newID func() string

	onChange func(State, string)
}

// NewRecorder creates an idle recorder writing into st
func NewRecorder(st *store.Store, opts Options) *Recorder {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	return &Recorder{
		store: st,
		clock: clock,
		newID: newID,
	}
}

// SetOnChange registers a callback invoked after every state transition
func (r *Recorder) SetOnChange(fn func(state State, sessionID string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = fn
}

// Start opens a new session. It returns false if a session is already active.
func (r *Recorder) Start() bool {
	r.mu.Lock()
	if r.capturing {
		r.mu.Unlock()
		return false
	}
	r.capturing = true
	r.sessionID = r.newID()
	r.started = r.clock()
	r.recorded = 0
	id := r.sessionID
	cb := r.onChange
	r.mu.Unlock()

	log.Printf("Capture: Session %s started", id)
	if cb != nil {
		cb(StateCapturing, id)
	}
	return true
}

// Stop closes the active session. It returns false if already idle.
func (r *Recorder) Stop() bool {
	r.mu.Lock()
	if !r.capturing {
		r.mu.Unlock()
		return false
	}
	r.capturing = false
	id := r.sessionID
	n := r.recorded
	elapsed := r.clock().Sub(r.started)
	cb := r.onChange
	r.mu.Unlock()

	log.Printf("Capture: Session %s stopped after %s, %d samples", id, elapsed.Round(time.Second), n)
	if cb != nil {
		cb(StateIdle, id)
	}
	return true
}

// OnPositionEvent records (x, y) with the current time and session id.
// It is a no-op while idle.
func (r *Recorder) OnPositionEvent(x, y int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.capturing {
		return
	}

	now := r.clock()
	r.store.Append(store.Sample{
		X:         x,
		Y:         y,
		Timestamp: float64(now.UnixNano()) / 1e9,
		SessionID: r.sessionID,
	})
	r.recorded++
}

// Capturing reports whether a session is active
func (r *Recorder) Capturing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.capturing
}

// State returns the current state
func (r *Recorder) State() State {
	if r.Capturing() {
		return StateCapturing
	}
	return StateIdle
}

// Info describes the current or last session
type Info struct {
	State     State     `json:"state"`
	SessionID string    `json:"session_id,omitempty"`
	Started   time.Time `json:"started,omitempty"`
	Recorded  int       `json:"recorded"`
}

// Info returns a snapshot of the session state
func (r *Recorder) Info() Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	state := StateIdle
	if r.capturing {
		state = StateCapturing
	}
	return Info{
		State:     state,
		SessionID: r.sessionID,
		Started:   r.started,
		Recorded:  r.recorded,
	}
}
