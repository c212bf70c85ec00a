package input

import (
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// LocateFunc returns the current absolute pointer position
type LocateFunc func() (x, y int)

// DefaultPollInterval is used when no interval is configured
const DefaultPollInterval = 20 * time.Millisecond

// Poller samples the pointer position on a ticker and emits only when it moves.
// It backs platforms without a native move hook.
type Poller struct {
	mu       sync.Mutex
	locate   LocateFunc
	interval time.Duration
	queue    int
	clock    func() time.Time

	events  chan PositionEvent
	stop    chan struct{}
	done    chan struct{}
	running bool
	dropped atomic.Uint64
}

// NewPoller creates a poller; a non-positive interval or queue uses defaults
func NewPoller(locate LocateFunc, interval time.Duration, queue int) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if queue <= 0 {
		queue = 1000
	}
	return &Poller{
		locate:   locate,
		interval: interval,
		queue:    queue,
		clock:    time.Now,
	}
}

// Start begins polling in a background goroutine
func (p *Poller) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.locate == nil {
		return errors.New("poller has no locate function")
	}
	if p.running {
		return ErrAlreadyRunning
	}

	p.events = make(chan PositionEvent, p.queue)
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	p.running = true

	go p.loop(p.events, p.stop, p.done)
	return nil
}

// Stop halts polling and closes the event channel
func (p *Poller) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return nil
	}
	p.running = false

	close(p.stop)
	<-p.done
	close(p.events)

	if n := p.dropped.Load(); n > 0 {
		log.Printf("Capture: Poller dropped %d events (queue full)", n)
	}
	return nil
}

// Events returns the position channel of the current run
func (p *Poller) Events() <-chan PositionEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events
}

// Dropped returns the number of events lost to a full queue
func (p *Poller) Dropped() uint64 {
	return p.dropped.Load()
}

func (p *Poller) loop(events chan<- PositionEvent, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	lastX, lastY := p.locate()
	p.emit(events, PositionEvent{X: lastX, Y: lastY, Time: p.clock()})

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			x, y := p.locate()
			// Only emit when the position changes
			if x == lastX && y == lastY {
				continue
			}
			lastX, lastY = x, y
			p.emit(events, PositionEvent{X: x, Y: y, Time: p.clock()})
		}
	}
}

func (p *Poller) emit(events chan<- PositionEvent, ev PositionEvent) {
	select {
	case events <- ev:
	default:
		p.dropped.Add(1)
	}
}
