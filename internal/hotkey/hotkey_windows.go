//go:build windows

package hotkey

import (
	"fmt"
	"log"
	"runtime"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32                  = windows.NewLazySystemDLL("user32.dll")
	procSetWindowsHookEx    = user32.NewProc("SetWindowsHookExW")
	procCallNextHookEx      = user32.NewProc("CallNextHookEx")
	procUnhookWindowsHookEx = user32.NewProc("UnhookWindowsHookEx")
	procGetMessage          = user32.NewProc("GetMessageW")
)

const (
	WH_KEYBOARD_LL = 13
	WM_KEYDOWN     = 0x0100
	WM_KEYUP       = 0x0101
	WM_SYSKEYDOWN  = 0x0104
	WM_SYSKEYUP    = 0x0105
)

type KBDLLHOOKSTRUCT struct {
	VkCode      uint32
	ScanCode    uint32
	Flags       uint32
	Time        uint32
	DwExtraInfo uintptr
}

type msg struct {
	Hwnd    windows.Handle
	Message uint32
	WParam  uintptr
	LParam  uintptr
	Time    uint32
	Pt      struct{ X, Y int32 }
}

var (
	activeManager atomic.Pointer[Manager]
	keyCallback   = windows.NewCallback(keyboardHookProc)
)

func (m *Manager) startPlatform() error {
	if !activeManager.CompareAndSwap(nil, m) {
		return fmt.Errorf("a keyboard hook is already installed")
	}

	ready := make(chan error, 1)

	// The hook must live on the thread that pumps its messages
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		var module windows.Handle
		if err := windows.GetModuleHandleEx(0, nil, &module); err != nil {
			ready <- fmt.Errorf("failed to get module handle: %w", err)
			return
		}

		hook, _, err := procSetWindowsHookEx.Call(WH_KEYBOARD_LL, keyCallback, uintptr(module), 0)
		if hook == 0 {
			ready <- fmt.Errorf("failed to set keyboard hook: %v", err)
			return
		}
		defer procUnhookWindowsHookEx.Call(hook)

		log.Println("Hotkey: Keyboard hook installed")
		ready <- nil

		var message msg
		for {
			ret, _, _ := procGetMessage.Call(uintptr(unsafe.Pointer(&message)), 0, 0, 0)
			if int32(ret) <= 0 {
				break
			}
		}
	}()

	if err := <-ready; err != nil {
		activeManager.CompareAndSwap(m, nil)
		return err
	}
	return nil
}

func keyboardHookProc(nCode int32, wParam uintptr, lParam uintptr) uintptr {
	if nCode >= 0 {
		if m := activeManager.Load(); m != nil {
			kbd := (*KBDLLHOOKSTRUCT)(unsafe.Pointer(lParam))
			if name := vkName(kbd.VkCode); name != "" {
				switch uint32(wParam) {
				case WM_KEYDOWN, WM_SYSKEYDOWN:
					m.UpdateState(name, true)
				case WM_KEYUP, WM_SYSKEYUP:
					m.UpdateState(name, false)
				}
			}
		}
	}
	ret, _, _ := procCallNextHookEx.Call(0, uintptr(nCode), wParam, lParam)
	return ret
}

// vkName maps a virtual key code to the names used in hotkey combinations
func vkName(vk uint32) string {
	switch {
	case vk >= 'A' && vk <= 'Z', vk >= '0' && vk <= '9':
		return string(rune(vk))
	case vk >= 0x70 && vk <= 0x7B:
		return fmt.Sprintf("F%d", vk-0x70+1)
	}

	switch vk {
	case 0x10, 0xA0, 0xA1:
		return "SHIFT"
	case 0x11, 0xA2, 0xA3:
		return "CTRL"
	case 0x12, 0xA4, 0xA5:
		return "ALT"
	case 0x5B, 0x5C:
		return "CMD"
	case 0x20:
		return "SPACE"
	case 0x0D:
		return "ENTER"
	case 0x1B:
		return "ESC"
	}
	return ""
}
