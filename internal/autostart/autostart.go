// Package autostart provides auto-start functionality.
package autostart

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"text/template"
)

// Label identifies the login item on every platform
const Label = "com.pointerheat.agent"

var macLaunchAgentPlist = template.Must(template.New("plist").Parse(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{.Label}}</string>
    <key>ProgramArguments</key>
    <array>
        <string>{{.ExecutablePath}}</string>
    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <false/>
</dict>
</plist>
`))

var linuxDesktopEntry = template.Must(template.New("desktop").Parse(`[Desktop Entry]
Type=Application
Name=pointerheat
Comment=Pointer position heatmap recorder
Exec="{{.ExecutablePath}}"
X-GNOME-Autostart-enabled=true
NoDisplay=true
`))

type entry struct {
	Label          string
	ExecutablePath string
}

// Enable enables auto-start on login
func Enable() error {
	switch runtime.GOOS {
	case "darwin":
		return enableMac()
	case "windows":
		return enableWindows()
	case "linux", "freebsd", "openbsd", "netbsd":
		return enableXDG()
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

// Disable disables auto-start on login
func Disable() error {
	switch runtime.GOOS {
	case "darwin":
		return disableMac()
	case "windows":
		return disableWindows()
	case "linux", "freebsd", "openbsd", "netbsd":
		return disableXDG()
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

// IsEnabled checks if auto-start is enabled
func IsEnabled() bool {
	switch runtime.GOOS {
	case "darwin":
		return isEnabledMac()
	case "windows":
		return isEnabledWindows()
	case "linux", "freebsd", "openbsd", "netbsd":
		return isEnabledXDG()
	default:
		return false
	}
}

// Apply brings the login item in line with the desired state
func Apply(enabled bool) error {
	if enabled == IsEnabled() {
		return nil
	}
	if enabled {
		log.Printf("Autostart: Enabling start on login")
		return Enable()
	}
	log.Printf("Autostart: Disabling start on login")
	return Disable()
}

// writeEntry renders tmpl for the running executable into path
func writeEntry(path string, tmpl *template.Template) error {
	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := render(f, tmpl, execPath); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func render(w io.Writer, tmpl *template.Template, execPath string) error {
	return tmpl.Execute(w, entry{Label: Label, ExecutablePath: execPath})
}

func removeEntry(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// macOS implementation
func macPlistPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "Library", "LaunchAgents", Label+".plist"), nil
}

func enableMac() error {
	path, err := macPlistPath()
	if err != nil {
		return err
	}
	return writeEntry(path, macLaunchAgentPlist)
}

func disableMac() error {
	path, err := macPlistPath()
	if err != nil {
		return err
	}
	return removeEntry(path)
}

func isEnabledMac() bool {
	path, err := macPlistPath()
	return err == nil && exists(path)
}

// XDG desktop implementation
func xdgEntryPath() (string, error) {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "autostart", "pointerheat.desktop"), nil
}

func enableXDG() error {
	path, err := xdgEntryPath()
	if err != nil {
		return err
	}
	return writeEntry(path, linuxDesktopEntry)
}

func disableXDG() error {
	path, err := xdgEntryPath()
	if err != nil {
		return err
	}
	return removeEntry(path)
}

func isEnabledXDG() bool {
	path, err := xdgEntryPath()
	return err == nil && exists(path)
}
