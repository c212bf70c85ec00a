//go:build !windows

package platform

import (
	"fmt"
	"time"

	"github.com/go-vgo/robotgo"

	"pointerheat/internal/input"
	"pointerheat/internal/topology"
)

// NOTES: robotgo reads the pointer through X11 on Linux; Wayland sessions report nothing useful
const backendName = "robotgo (polling)"

// listDisplays enumerates displays through robotgo
func listDisplays() ([]topology.Region, error) {
	n := robotgo.DisplaysNum()
	if n <= 0 {
		return nil, fmt.Errorf("robotgo reported %d displays", n)
	}

	regions := make([]topology.Region, 0, n)
	for i := 0; i < n; i++ {
		x, y, w, h := robotgo.GetDisplayBounds(i)
		regions = append(regions, topology.Region{
			Name:    fmt.Sprintf("display-%d", i),
			X:       x,
			Y:       y,
			Width:   w,
			Height:  h,
			Primary: i == 0,
		})
	}
	return regions, nil
}

func newCapture(interval time.Duration, queue int) input.Capture {
	return input.NewPoller(robotgo.Location, interval, queue)
}
