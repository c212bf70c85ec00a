//go:build windows

package platform

import (
	"fmt"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"

	"pointerheat/internal/input"
	"pointerheat/internal/topology"
)

const backendName = "win32 (EnumDisplayMonitors, WH_MOUSE_LL)"

var (
	user32                  = windows.NewLazySystemDLL("user32.dll")
	procEnumDisplayMonitors = user32.NewProc("EnumDisplayMonitors")
	procGetMonitorInfo      = user32.NewProc("GetMonitorInfoW")
)

const monitorInfoFPrimary = 1

type rect struct {
	Left, Top, Right, Bottom int32
}

type monitorInfoEx struct {
	Size    uint32
	Monitor rect
	Work    rect
	Flags   uint32
	Device  [32]uint16
}

// The runtime never frees callbacks, so the enumeration procedure is created
// once and appends into enumRegions under enumMu.
var (
	enumMu       sync.Mutex
	enumRegions  []topology.Region
	enumCallback = windows.NewCallback(monitorEnumProc)
)

func monitorEnumProc(hMonitor, hdc, lprc, data uintptr) uintptr {
	var mi monitorInfoEx
	mi.Size = uint32(unsafe.Sizeof(mi))

	ret, _, _ := procGetMonitorInfo.Call(hMonitor, uintptr(unsafe.Pointer(&mi)))
	if ret != 0 {
		enumRegions = append(enumRegions, topology.Region{
			Name:    windows.UTF16ToString(mi.Device[:]),
			X:       int(mi.Monitor.Left),
			Y:       int(mi.Monitor.Top),
			Width:   int(mi.Monitor.Right - mi.Monitor.Left),
			Height:  int(mi.Monitor.Bottom - mi.Monitor.Top),
			Primary: mi.Flags&monitorInfoFPrimary != 0,
		})
	}
	return 1
}

// listDisplays enumerates monitors in virtual desktop coordinates
func listDisplays() ([]topology.Region, error) {
	enumMu.Lock()
	defer enumMu.Unlock()

	// EnumDisplayMonitors calls back synchronously on this thread
	enumRegions = nil
	ret, _, err := procEnumDisplayMonitors.Call(0, 0, enumCallback, 0)
	regions := enumRegions
	enumRegions = nil
	if ret == 0 {
		return nil, fmt.Errorf("EnumDisplayMonitors failed: %v", err)
	}
	return regions, nil
}

func newCapture(_ time.Duration, queue int) input.Capture {
	return input.NewTrap(queue)
}
