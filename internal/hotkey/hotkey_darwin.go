//go:build darwin

package hotkey

/*
#cgo LDFLAGS: -framework CoreGraphics -framework CoreFoundation -framework ApplicationServices
#include <CoreGraphics/CoreGraphics.h>
#include <CoreFoundation/CoreFoundation.h>
#include <stdint.h>

CGEventRef keyCallback(CGEventTapProxy proxy, CGEventType type, CGEventRef event, void *refcon);

// runKeyTap returns 0 when the tap cannot be created, otherwise it blocks in the run loop
static inline int runKeyTap(uintptr_t refcon) {
    CGEventMask mask = CGEventMaskBit(kCGEventKeyDown) |
        CGEventMaskBit(kCGEventKeyUp) |
        CGEventMaskBit(kCGEventFlagsChanged);
    CFMachPortRef tap = CGEventTapCreate(
        kCGSessionEventTap,
        kCGHeadInsertEventTap,
        kCGEventTapOptionListenOnly,
        mask,
        keyCallback,
        (void*)refcon
    );
    if (!tap) {
        return 0;
    }

    CFRunLoopSourceRef source = CFMachPortCreateRunLoopSource(kCFAllocatorDefault, tap, 0);
    CFRunLoopAddSource(CFRunLoopGetCurrent(), source, kCFRunLoopCommonModes);
    CGEventTapEnable(tap, true);
    CFRunLoopRun();
    return 1;
}
*/
import "C"
import (
	"log"
	"runtime"
	"runtime/cgo"
	"unsafe"
)

// macKeys maps virtual key codes of an ANSI layout to key names
var macKeys = map[uint16]string{
	55: "CMD", 54: "CMD", 56: "SHIFT", 60: "SHIFT",
	58: "ALT", 61: "ALT", 59: "CTRL", 62: "CTRL",
	49: "SPACE", 36: "ENTER", 53: "ESC",

	0: "A", 11: "B", 8: "C", 2: "D", 14: "E", 3: "F", 5: "G", 4: "H",
	34: "I", 38: "J", 40: "K", 37: "L", 46: "M", 45: "N", 31: "O", 35: "P",
	12: "Q", 15: "R", 1: "S", 17: "T", 32: "U", 9: "V", 13: "W", 7: "X",
	16: "Y", 6: "Z",

	29: "0", 18: "1", 19: "2", 20: "3", 21: "4",
	23: "5", 22: "6", 26: "7", 28: "8", 25: "9",

	122: "F1", 120: "F2", 99: "F3", 118: "F4", 96: "F5", 97: "F6",
	98: "F7", 100: "F8", 101: "F9", 109: "F10", 103: "F11", 111: "F12",
}

//export keyCallback
func keyCallback(proxy C.CGEventTapProxy, eventType C.CGEventType, event C.CGEventRef, refcon unsafe.Pointer) C.CGEventRef {
	m := cgo.Handle(uintptr(refcon)).Value().(*Manager)
	code := uint16(C.CGEventGetIntegerValueField(event, C.kCGKeyboardEventKeycode))

	switch eventType {
	case C.kCGEventKeyDown, C.kCGEventKeyUp:
		if name, ok := macKeys[code]; ok {
			m.UpdateState(name, eventType == C.kCGEventKeyDown)
		}

	case C.kCGEventFlagsChanged:
		// Modifiers only report the new flag set
		flags := C.CGEventGetFlags(event)
		var mask C.CGEventFlags
		switch macKeys[code] {
		case "CMD":
			mask = C.kCGEventFlagMaskCommand
		case "SHIFT":
			mask = C.kCGEventFlagMaskShift
		case "ALT":
			mask = C.kCGEventFlagMaskAlternate
		case "CTRL":
			mask = C.kCGEventFlagMaskControl
		default:
			return event
		}
		m.UpdateState(macKeys[code], flags&mask != 0)
	}

	return event
}

func (m *Manager) startPlatform() error {
	handle := cgo.NewHandle(m)
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer handle.Delete()

		log.Println("Hotkey: Starting macOS key event tap")
		if C.runKeyTap(C.uintptr_t(handle)) == 0 {
			log.Println("Hotkey: Failed to create event tap, is Accessibility permission granted?")
		}
	}()
	return nil
}
