//go:build !windows && !darwin

package hotkey

import "log"

func (m *Manager) startPlatform() error {
	log.Println("Hotkey: Global keyboard hooks are not supported on this platform")
	return nil
}
