//go:build windows

package input

import (
	"fmt"
	"log"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Windows implementation of pointer capture using a low-level mouse hook

const (
	WH_MOUSE_LL  = 14
	WM_MOUSEMOVE = 0x0200
	WM_QUIT      = 0x0012
)

var (
	user32                  = windows.NewLazySystemDLL("user32.dll")
	procSetWindowsHookEx    = user32.NewProc("SetWindowsHookExW")
	procUnhookWindowsHookEx = user32.NewProc("UnhookWindowsHookEx")
	procCallNextHookEx      = user32.NewProc("CallNextHookEx")
	procGetMessage          = user32.NewProc("GetMessageW")
	procPostThreadMessage   = user32.NewProc("PostThreadMessageW")
)

type POINT struct {
	X, Y int32
}

type MSG struct {
	Hwnd    windows.Handle
	Message uint32
	WParam  uintptr
	LParam  uintptr
	Time    uint32
	Pt      POINT
}

type MSLLHOOKSTRUCT struct {
	Pt          POINT
	MouseData   uint32
	Flags       uint32
	Time        uint32
	DwExtraInfo uintptr
}

// Windows limits the number of callbacks a process may create, so the hook
// procedure is created once and dispatches to the active trap.
var (
	activeTrap   atomic.Pointer[Trap]
	hookCallback = windows.NewCallback(mouseHookProc)
)

// Trap captures absolute pointer positions through WH_MOUSE_LL
type Trap struct {
	mu       sync.Mutex
	queue    int
	events   chan PositionEvent
	running  bool
	threadID uint32
	done     chan struct{}
	dropped  atomic.Uint64
}

// NewTrap creates a new mouse hook trap with the given event queue size
func NewTrap(queue int) *Trap {
	if queue <= 0 {
		queue = 1000
	}
	return &Trap{queue: queue}
}

// Start installs the hook on a dedicated OS thread
func (t *Trap) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return ErrAlreadyRunning
	}
	if !activeTrap.CompareAndSwap(nil, t) {
		return fmt.Errorf("another mouse hook is already installed")
	}

	t.events = make(chan PositionEvent, t.queue)
	t.done = make(chan struct{})
	ready := make(chan error, 1)

	go t.hookThread(ready)

	if err := <-ready; err != nil {
		activeTrap.CompareAndSwap(t, nil)
		<-t.done
		close(t.events)
		return err
	}

	t.running = true
	return nil
}

// Stop removes the hook and closes the event channel
func (t *Trap) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		return nil
	}
	t.running = false

	procPostThreadMessage.Call(uintptr(t.threadID), WM_QUIT, 0, 0)
	<-t.done
	activeTrap.CompareAndSwap(t, nil)

	close(t.events)
	if n := t.dropped.Load(); n > 0 {
		log.Printf("Capture: Mouse hook dropped %d events (queue full)", n)
	}
	return nil
}

// Events returns the position channel of the current run
func (t *Trap) Events() <-chan PositionEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.events
}

// Dropped returns the number of events lost to a full queue
func (t *Trap) Dropped() uint64 {
	return t.dropped.Load()
}

// hookThread installs the hook and pumps messages until WM_QUIT
func (t *Trap) hookThread(ready chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(t.done)

	t.threadID = windows.GetCurrentThreadId()

	var module windows.Handle
	if err := windows.GetModuleHandleEx(0, nil, &module); err != nil {
		ready <- fmt.Errorf("failed to get module handle: %w", err)
		return
	}

	hook, _, err := procSetWindowsHookEx.Call(WH_MOUSE_LL, hookCallback, uintptr(module), 0)
	if hook == 0 {
		ready <- fmt.Errorf("failed to set mouse hook: %v", err)
		return
	}
	defer procUnhookWindowsHookEx.Call(hook)

	log.Printf("Capture: Mouse hook installed")
	ready <- nil

	var msg MSG
	for {
		ret, _, _ := procGetMessage.Call(uintptr(unsafe.Pointer(&msg)), 0, 0, 0)
		if int32(ret) <= 0 {
			break
		}
	}
	log.Printf("Capture: Mouse hook removed")
}

// emit queues an event without blocking the hook thread
func (t *Trap) emit(ev PositionEvent) {
	select {
	case t.events <- ev:
	default:
		t.dropped.Add(1)
	}
}

func mouseHookProc(nCode int32, wParam uintptr, lParam uintptr) uintptr {
	if nCode >= 0 && uint32(wParam) == WM_MOUSEMOVE {
		if t := activeTrap.Load(); t != nil {
			hookStruct := (*MSLLHOOKSTRUCT)(unsafe.Pointer(lParam))
			t.emit(PositionEvent{
				X:    int(hookStruct.Pt.X),
				Y:    int(hookStruct.Pt.Y),
				Time: time.Now(),
			})
		}
	}

	ret, _, _ := procCallNextHookEx.Call(0, uintptr(nCode), wParam, lParam)
	return ret
}
