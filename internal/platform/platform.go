// Package platform binds the operating system's display list and pointer
// capture to the topology and input packages.
package platform

import (
	"time"

	"pointerheat/internal/input"
	"pointerheat/internal/topology"
)

// Displays returns the native screen enumeration source
func Displays() topology.Source {
	return topology.SourceFunc(listDisplays)
}

// NewCapture returns the native pointer capture.
// interval applies to polling backends only.
func NewCapture(interval time.Duration, queue int) input.Capture {
	return newCapture(interval, queue)
}

// Name identifies the backend in logs and -list output
func Name() string {
	return backendName
}
