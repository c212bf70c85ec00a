// Package tray provides system tray functionality using getlantern/systray.
package tray

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/png"
	"log"
	"math"
	"runtime"
	"sync"

	"github.com/getlantern/systray"

	"pointerheat/internal/render"
)

// MenuItem represents a menu item
type MenuItem struct {
	ID       int
	Title    string
	Callback func()
	item     *systray.MenuItem
}

// Tray manages the system tray icon and menu
type Tray struct {
	mu      sync.Mutex
	items   []*MenuItem
	tooltip string
	readyCh chan struct{}
	quitCh  chan struct{}
	onExit  func()
}

// New creates a new system tray
func New(tooltip string) *Tray {
	return &Tray{
		items:   make([]*MenuItem, 0),
		tooltip: tooltip,
		readyCh: make(chan struct{}),
		quitCh:  make(chan struct{}),
	}
}

// SetOnExit registers a function run when the tray loop ends
func (t *Tray) SetOnExit(fn func()) {
	t.onExit = fn
}

// AddMenuItem adds a menu item to the tray
func (t *Tray) AddMenuItem(title string, callback func()) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := len(t.items)
	t.items = append(t.items, &MenuItem{
		ID:       id,
		Title:    title,
		Callback: callback,
	})
	return id
}

// AddSeparator adds a separator to the menu
func (t *Tray) AddSeparator() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = append(t.items, nil) // nil indicates separator
}

// SetItemTitle renames a menu item once the menu exists
func (t *Tray) SetItemTitle(id int, title string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id >= 0 && id < len(t.items) && t.items[id] != nil {
		t.items[id].Title = title
		if t.items[id].item != nil {
			t.items[id].item.SetTitle(title)
		}
	}
}

// SetTooltip updates the tray tooltip
func (t *Tray) SetTooltip(tooltip string) {
	select {
	case <-t.readyCh:
		systray.SetTooltip(tooltip)
	default:
		t.mu.Lock()
		t.tooltip = tooltip
		t.mu.Unlock()
	}
}

// Run starts the tray event loop (blocks)
func (t *Tray) Run() {
	systray.Run(t.setupMenu, func() {
		close(t.quitCh)
		if t.onExit != nil {
			t.onExit()
		}
	})
}

// setupMenu is called when systray is ready
func (t *Tray) setupMenu() {
	t.mu.Lock()
	defer t.mu.Unlock()

	systray.SetTitle("pointerheat")
	systray.SetTooltip(t.tooltip)
	if icon, err := getIcon(); err == nil {
		systray.SetIcon(icon)
	} else {
		log.Printf("Tray: Failed to build icon: %v", err)
	}

	for _, menuItem := range t.items {
		if menuItem == nil {
			// Separator
			systray.AddSeparator()
			continue
		}

		item := systray.AddMenuItem(menuItem.Title, "")
		menuItem.item = item

		// Handle clicks in goroutine
		if menuItem.Callback != nil {
			go func(mi *MenuItem, clicked <-chan struct{}) {
				for {
					select {
					case <-clicked:
						mi.Callback()
					case <-t.quitCh:
						return
					}
				}
			}(menuItem, item.ClickedCh)
		}
	}
	close(t.readyCh)
}

// Stop stops the tray
func (t *Tray) Stop() {
	systray.Quit()
}

// getIcon draws a small radial heat spot. Windows needs an ICO container;
// the other backends take the PNG directly.
func getIcon() ([]byte, error) {
	const size = 32
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	c := float64(size-1) / 2
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			d := math.Hypot(float64(x)-c, float64(y)-c) / c
			if d > 1 {
				continue
			}
			img.SetRGBA(x, y, render.RGBA(render.Colormap(1-d*0.85)))
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	if runtime.GOOS != "windows" {
		return buf.Bytes(), nil
	}
	return wrapICO(buf.Bytes(), size), nil
}

// wrapICO embeds a PNG image in a single-entry ICO file
func wrapICO(pngData []byte, size int) []byte {
	var out bytes.Buffer
	// ICONDIR: reserved, type 1 (icon), one image
	binary.Write(&out, binary.LittleEndian, [3]uint16{0, 1, 1})
	// ICONDIRENTRY
	out.Write([]byte{byte(size), byte(size), 0, 0})
	binary.Write(&out, binary.LittleEndian, uint16(1))  // planes
	binary.Write(&out, binary.LittleEndian, uint16(32)) // bpp
	binary.Write(&out, binary.LittleEndian, uint32(len(pngData)))
	binary.Write(&out, binary.LittleEndian, uint32(6+16))
	out.Write(pngData)
	return out.Bytes()
}
