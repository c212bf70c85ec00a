// Package hotkey watches global key state and fires callbacks for registered combinations.
package hotkey

import (
	"fmt"
	"log"
	"strings"
	"sync"
)

// aliases maps alternative key names onto the names the platform hooks report
var aliases = map[string]string{
	"CONTROL": "CTRL",
	"OPTION":  "ALT",
	"OPT":     "ALT",
	"COMMAND": "CMD",
	"WIN":     "CMD",
	"SUPER":   "CMD",
	"META":    "CMD",
	"RETURN":  "ENTER",
	"ESCAPE":  "ESC",
}

// Manager handles global hotkey registration and matching
type Manager struct {
	mu           sync.RWMutex
	hotkeys      []*registeredHotkey
	currentState map[string]bool // keys currently held down
}

type registeredHotkey struct {
	parts    []string // e.g. ["CTRL", "ALT", "H"]
	original string
	callback func()
}

// NewManager creates a new hotkey manager
func NewManager() *Manager {
	return &Manager{
		currentState: make(map[string]bool),
	}
}

// ParseCombo splits a combination such as "Ctrl+Alt+H" into normalized key names
func ParseCombo(combo string) ([]string, error) {
	if strings.TrimSpace(combo) == "" {
		return nil, fmt.Errorf("empty hotkey")
	}

	parts := strings.Split(strings.ToUpper(combo), "+")
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, fmt.Errorf("invalid hotkey %q", combo)
		}
		if alias, ok := aliases[p]; ok {
			p = alias
		}
		parts[i] = p
	}
	return parts, nil
}

// Register adds a combination and the callback fired when it is pressed
func (m *Manager) Register(combo string, callback func()) error {
	parts, err := ParseCombo(combo)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.hotkeys = append(m.hotkeys, &registeredHotkey{
		parts:    parts,
		original: combo,
		callback: callback,
	})
	return nil
}

// Clear removes all registered hotkeys
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hotkeys = nil
}

// UpdateState records a key transition. A hotkey fires once, on the press
// that completes its combination; auto-repeat of a held key does not refire.
func (m *Manager) UpdateState(key string, isDown bool) {
	key = strings.ToUpper(key)

	m.mu.Lock()
	wasDown := m.currentState[key]
	if isDown {
		m.currentState[key] = true
	} else {
		delete(m.currentState, key)
	}
	m.mu.Unlock()

	if isDown && !wasDown {
		m.checkMatches(key)
	}
}

func (m *Manager) checkMatches(pressed string) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, hk := range m.hotkeys {
		match := false
		for _, part := range hk.parts {
			if part == pressed {
				match = true
				break
			}
		}
		// All parts of the hotkey must be held
		for _, part := range hk.parts {
			if !m.currentState[part] {
				match = false
				break
			}
		}

		if match {
			log.Printf("Hotkey: Triggered %s", hk.original)
			go hk.callback()
		}
	}
}

// Start installs the platform-specific global keyboard hook
func (m *Manager) Start() error {
	return m.startPlatform()
}
